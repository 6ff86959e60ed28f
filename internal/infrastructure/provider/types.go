package provider

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jhoicas/Facturacion-api/internal/application/dto"
)

// Estados devueltos por el gateway fiscal.
const (
	StatusProcessing = "processing"
	StatusAuthorized = "authorized"
	StatusRejected   = "rejected"
	StatusCancelled  = "cancelled"
)

// SubmitResult resultado de la entrega del documento al gateway.
type SubmitResult struct {
	Protocol    string          // clave de seguimiento asignada por el gateway
	Status      string          // processing | authorized | rejected
	Motive      string          // motivo de rechazo (si aplica)
	ReceiptURL  string          // URL del comprobante (si ya autorizado)
	XMLURL      string          // URL del XML autorizado (si aplica)
	RawResponse json.RawMessage // cuerpo crudo de la respuesta, para el historial
}

// StatusResult resultado de la consulta de estado por protocolo.
type StatusResult struct {
	Status       string // authorized | rejected | processing | cancelled
	Motive       string
	AuthorizedAt *time.Time
	ReceiptURL   string
	XMLURL       string
	RawResponse  json.RawMessage
}

// Submitter define el puerto de salida hacia el gateway fiscal externo.
// La implementación concreta usa REST/JSON; para tests se inyecta un mock.
//
// Ambas llamadas son stateless por invocación: un fallo de red/timeout se
// devuelve como domain.ErrProviderUnavailable sin reintento interno; la
// programación del reintento es responsabilidad del caller (reconciliación).
type Submitter interface {
	// Submit envía el payload normalizado. ref es la clave natural del documento
	// (sale_id) que el gateway usa como referencia idempotente.
	Submit(ctx context.Context, ref string, payload *dto.InvoiceRequest) (*SubmitResult, error)
	// CheckStatus consulta el estado actual del documento por su protocolo.
	CheckStatus(ctx context.Context, protocol string) (*StatusResult, error)
}

// ── Contratos de wire (opacos más allá de los campos que leemos/escribimos) ──

// wireInvoice cuerpo JSON enviado al gateway. Los montos van como strings con
// dos decimales; las fechas en ISO-8601. environment viaja explícito en cada
// llamada: homologación jamás se confunde con producción.
type wireInvoice struct {
	Ref         string            `json:"ref"`
	DocType     string            `json:"doc_type"`
	Environment string            `json:"environment"`
	Customer    wireCustomer      `json:"customer"`
	Items       []wireItem        `json:"items"`
	Totals      wireTotals        `json:"totals"`
	Payments    []wirePayment     `json:"payments"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type wireCustomer struct {
	Name        string `json:"name"`
	TaxDocument string `json:"tax_document"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Street      string `json:"street,omitempty"`
	Number      string `json:"number,omitempty"`
	District    string `json:"district,omitempty"`
	City        string `json:"city,omitempty"`
	State       string `json:"state,omitempty"`
	ZipCode     string `json:"zip_code,omitempty"`
}

type wireItem struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Quantity string `json:"quantity"`
	Unit     string `json:"unit"`
	Price    string `json:"price"`
	Discount string `json:"discount,omitempty"`
	TaxCode  string `json:"tax_code,omitempty"`
}

type wireTotals struct {
	Amount    string `json:"amount"`
	Discount  string `json:"discount,omitempty"`
	Freight   string `json:"freight,omitempty"`
	Insurance string `json:"insurance,omitempty"`
	Other     string `json:"other,omitempty"`
}

type wirePayment struct {
	Method  string `json:"method"`
	Amount  string `json:"amount"`
	DueDate string `json:"due_date,omitempty"`
}

// wireResponse respuesta del gateway para submit y check-status.
type wireResponse struct {
	Status       string `json:"status"`
	Protocol     string `json:"protocol"`
	Motive       string `json:"motive"`
	Message      string `json:"message"`
	ReceiptURL   string `json:"receipt_url"`
	XMLURL       string `json:"xml_url"`
	AuthorizedAt string `json:"authorized_at"` // ISO-8601
}
