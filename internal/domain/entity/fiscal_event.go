package entity

import (
	"encoding/json"
	"time"
)

// Tipos de evento del historial fiscal.
const (
	EventSubmit      = "submit"       // documento creado y encolado para emisión
	EventStatusCheck = "status_check" // consulta de estado al gateway (reconciliación)
	EventAuthorize   = "authorize"    // autorización definitiva
	EventReject      = "reject"       // rechazo definitivo con motivo
	EventCancel      = "cancel"       // cancelación de un documento autorizado
	EventError       = "error"        // fallo transitorio (timeout, red); se reintentará
)

// FiscalDocumentEvent entrada append-only del historial de un documento.
// Nunca se actualiza ni se borra: los consumidores la tratan como historia
// inmutable, ordenada estrictamente por fecha de creación dentro del documento.
type FiscalDocumentEvent struct {
	ID               string
	FiscalDocumentID string
	TenantID         string
	EventType        string
	EventStatus      string          // estado del documento al registrar el evento
	EventData        json.RawMessage // snapshot del request en ese punto
	ProviderResponse json.RawMessage // respuesta cruda del gateway (verbatim)
	CreatedAt        time.Time
}
