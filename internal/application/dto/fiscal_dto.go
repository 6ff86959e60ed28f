package dto

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Métodos de pago aceptados en el payload de emisión.
const (
	PaymentPix        = "pix"
	PaymentCash       = "cash"
	PaymentCreditCard = "credit_card"
	PaymentDebitCard  = "debit_card"
	PaymentBankSlip   = "bank_slip"
	PaymentTransfer   = "transfer"
	PaymentOther      = "other"
)

// InvoiceRequest body para POST /api/fiscal/invoices: la venta completada que
// se convierte en solicitud de factura electrónica. Los montos usan decimal;
// la positividad de cantidades/importes la verifica el validador.
type InvoiceRequest struct {
	SaleID   string            `json:"sale_id" validate:"required"`
	TenantID string            `json:"tenant_id" validate:"required,uuid"`
	DocType  string            `json:"doc_type,omitempty"` // vacío = "nfe"
	Customer CustomerPayload   `json:"customer" validate:"required"`
	Items    []ItemPayload     `json:"items" validate:"required,min=1,dive"`
	Totals   TotalsPayload     `json:"totals" validate:"required"`
	Payments []PaymentPayload  `json:"payments" validate:"required,min=1,dive"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// CustomerPayload receptor de la factura.
type CustomerPayload struct {
	Name        string         `json:"name" validate:"required"`
	TaxDocument string         `json:"tax_document" validate:"required"`
	Email       string         `json:"email,omitempty" validate:"omitempty,email"`
	Phone       string         `json:"phone,omitempty"`
	Address     AddressPayload `json:"address,omitempty"`
}

// AddressPayload dirección del receptor (opcional; el gateway puede exigirla según el tipo de documento).
type AddressPayload struct {
	Street   string `json:"street,omitempty"`
	Number   string `json:"number,omitempty"`
	District string `json:"district,omitempty"`
	City     string `json:"city,omitempty"`
	State    string `json:"state,omitempty"`
	ZipCode  string `json:"zip_code,omitempty"`
}

// ItemPayload línea de la venta.
type ItemPayload struct {
	ID       string          `json:"id" validate:"required"`
	Name     string          `json:"name" validate:"required"`
	Quantity decimal.Decimal `json:"quantity"`
	Unit     string          `json:"unit,omitempty"` // vacío = "un"
	Price    decimal.Decimal `json:"price"`
	Discount decimal.Decimal `json:"discount,omitempty"`
	TaxCode  string          `json:"tax_code,omitempty"`
}

// TotalsPayload totales de la venta. Amount es obligatorio y > 0.
type TotalsPayload struct {
	Amount    decimal.Decimal `json:"amount"`
	Discount  decimal.Decimal `json:"discount,omitempty"`
	Freight   decimal.Decimal `json:"freight,omitempty"`
	Insurance decimal.Decimal `json:"insurance,omitempty"`
	Other     decimal.Decimal `json:"other,omitempty"`
}

// PaymentPayload un medio de pago de la venta.
type PaymentPayload struct {
	Method  string          `json:"method" validate:"required,oneof=pix cash credit_card debit_card bank_slip transfer other"`
	Amount  decimal.Decimal `json:"amount"`
	DueDate string          `json:"due_date,omitempty"` // ISO-8601 (YYYY-MM-DD)
}

// EmitInvoiceResponse resultado de la emisión: el ticket de cola y el documento creado.
type EmitInvoiceResponse struct {
	TicketID         string `json:"ticket_id"`
	FiscalDocumentID string `json:"fiscal_document_id"`
	Status           string `json:"status"`
}

// FiscalDocumentResponse documento fiscal en listados y consultas.
type FiscalDocumentResponse struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Provider  string    `json:"provider"`
	DocType   string    `json:"doc_type"`
	Ref       string    `json:"ref"`
	Protocol  string    `json:"protocol,omitempty"`
	Status    string    `json:"status"`
	Motive    string    `json:"motive,omitempty"`
	XMLPath   string    `json:"xml_path,omitempty"`
	PDFPath   string    `json:"pdf_path,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FiscalEventResponse entrada del historial en listados.
type FiscalEventResponse struct {
	ID               string          `json:"id"`
	FiscalDocumentID string          `json:"fiscal_document_id"`
	TenantID         string          `json:"tenant_id"`
	EventType        string          `json:"event_type"`
	EventStatus      string          `json:"event_status"`
	EventData        json.RawMessage `json:"event_data,omitempty"`
	ProviderResponse json.RawMessage `json:"provider_response,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

// QueueTicketResponse ticket pendiente en GET /api/fiscal/queue.
type QueueTicketResponse struct {
	TicketID         string    `json:"ticket_id"`
	TenantID         string    `json:"tenant_id"`
	SaleID           string    `json:"sale_id"`
	FiscalDocumentID string    `json:"fiscal_document_id"`
	Status           string    `json:"status"`
	AttemptCount     int       `json:"attempt_count"`
	LastError        string    `json:"last_error,omitempty"`
	EnqueuedAt       time.Time `json:"enqueued_at"`
}

// CancelRequest motivo de la cancelación de un documento autorizado.
type CancelRequest struct {
	Reason string `json:"reason" validate:"required"`
}
