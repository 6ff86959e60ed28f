package entity

import (
	"encoding/json"
	"time"
)

// Estados de un ticket de la cola de emisión.
const (
	TicketPending  = "pending"  // a la espera de envío o de respuesta definitiva
	TicketResolved = "resolved" // el documento llegó a un estado terminal
	TicketFlagged  = "flagged"  // superó el máximo de reintentos; requiere revisión manual
)

// QueueTicket entrada durable de la cola de emisión. Un ticket por
// (TenantID, SaleID) mientras esté pendiente: el enqueue es idempotente frente
// a reintentos del cliente. Los tickets nunca se borran: al resolverse o
// marcarse se conserva la fila para auditoría y recuperación tras reinicio.
type QueueTicket struct {
	ID               string
	TenantID         string
	SaleID           string
	FiscalDocumentID string
	Request          json.RawMessage // InvoiceRequest normalizado
	Status           string
	AttemptCount     int
	LastError        string
	EnqueuedAt       time.Time
	UpdatedAt        time.Time
}
