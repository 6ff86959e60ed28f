package entity

import (
	"encoding/json"
	"time"
)

// Estados del documento fiscal. Las transiciones son monótonas:
//
//	QUEUED → PROCESSING → {AUTHORIZED | REJECTED}
//	AUTHORIZED → CANCELLED (solo explícito)
//
// REJECTED y CANCELLED son terminales; AUTHORIZED lo es salvo cancelación.
const (
	DocStatusQueued     = "QUEUED"     // aceptado por el validador, pendiente de envío
	DocStatusProcessing = "PROCESSING" // enviado al gateway, respuesta definitiva pendiente
	DocStatusAuthorized = "AUTHORIZED" // autorizado por la autoridad fiscal
	DocStatusRejected   = "REJECTED"   // rechazado por la autoridad fiscal (con motivo)
	DocStatusCancelled  = "CANCELLED"  // cancelación explícita de un documento autorizado
)

// docTransitions tabla de transiciones permitidas.
var docTransitions = map[string][]string{
	DocStatusQueued:     {DocStatusProcessing},
	DocStatusProcessing: {DocStatusAuthorized, DocStatusRejected},
	DocStatusAuthorized: {DocStatusCancelled},
}

// CanTransition indica si el cambio from → to está permitido por la máquina de estados.
func CanTransition(from, to string) bool {
	for _, next := range docTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminalStatus indica si el estado ya no admite progreso por reconciliación.
// AUTHORIZED cuenta como terminal para la cola: la cancelación es una acción
// explícita del operador, no un paso del pipeline.
func IsTerminalStatus(status string) bool {
	switch status {
	case DocStatusAuthorized, DocStatusRejected, DocStatusCancelled:
		return true
	}
	return false
}

// FiscalDocument representa el ciclo de vida de una factura electrónica ante el
// gateway fiscal. (TenantID, Provider, Ref) identifica un documento lógico: una
// reemisión tras rechazo terminal crea una fila nueva, nunca muta la anterior.
type FiscalDocument struct {
	ID       string
	TenantID string
	Provider string // identificador del gateway (ej. "focus")
	DocType  string // tipo de documento fiscal (ej. "nfe")
	Ref      string // clave natural: sale_id de la venta origen
	Protocol string // protocolo devuelto por el gateway tras el envío
	Status   string
	Payload  json.RawMessage // snapshot normalizado del InvoiceRequest
	Motive   string          // motivo de rechazo o razón de cancelación
	XMLPath  string          // ruta del XML autorizado (si el gateway la devuelve)
	PDFPath  string          // ruta de la representación gráfica (si el gateway la devuelve)

	CreatedAt time.Time
	UpdatedAt time.Time
}
