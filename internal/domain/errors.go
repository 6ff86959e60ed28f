package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound  = errors.New("recurso no encontrado")
	ErrForbidden = errors.New("acceso denegado")
	ErrDuplicate = errors.New("recurso duplicado")

	// ErrInvalidInput entrada malformada; el caller recibe el detalle en ValidationError.
	ErrInvalidInput = errors.New("entrada inválida")

	// ErrQueueFull la cola de emisión alcanzó su capacidad; el caller debe aplicar backpressure.
	ErrQueueFull = errors.New("cola de emisión llena")

	// ErrInvalidTransition transición de estado no permitida por la máquina de estados.
	// Fatal solo para esa llamada; no escribe evento.
	ErrInvalidTransition = errors.New("transición de estado inválida")

	// ErrConflict el documento cambió de estado bajo nuestros pies (CAS fallido); reintentar la lectura.
	ErrConflict = errors.New("conflicto con el estado actual")

	// ErrProviderUnavailable fallo transitorio de red/timeout contra el gateway fiscal.
	// No es un rechazo: la reconciliación reintenta más tarde.
	ErrProviderUnavailable = errors.New("gateway fiscal no disponible")

	// ErrProviderDisabled el adaptador está deshabilitado o mal configurado;
	// las emisiones quedan retenidas en cola, no fallan.
	ErrProviderDisabled = errors.New("adaptador fiscal deshabilitado")

	// ErrRejectedByAuthority rechazo de negocio del ente fiscal (terminal, con motivo).
	ErrRejectedByAuthority = errors.New("documento rechazado por la autoridad fiscal")
)

// FieldViolation una violación concreta de un campo del payload.
type FieldViolation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError agrupa todas las violaciones encontradas en un payload,
// no solo la primera. Compatible con errors.Is(err, ErrInvalidInput).
type ValidationError struct {
	Violations []FieldViolation
}

func (e *ValidationError) Error() string {
	if len(e.Violations) == 0 {
		return ErrInvalidInput.Error()
	}
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = fmt.Sprintf("%s: %s", v.Field, v.Message)
	}
	return "entrada inválida: " + strings.Join(parts, "; ")
}

// Unwrap permite errors.Is(err, ErrInvalidInput).
func (e *ValidationError) Unwrap() error { return ErrInvalidInput }
