package dto

import "github.com/jhoicas/Facturacion-api/internal/domain"

// PageRequest paginación para listados.
type PageRequest struct {
	Limit  int `query:"limit" validate:"min=0,max=100"`
	Offset int `query:"offset" validate:"min=0"`
}

// DefaultPage aplica valores por defecto y acota Limit al máximo permitido.
func (p *PageRequest) DefaultPage() {
	if p.Limit <= 0 {
		p.Limit = 20
	}
	if p.Limit > 100 {
		p.Limit = 100
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
}

// Pagination metadatos de página en respuestas.
type Pagination struct {
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"hasMore"`
}

// SuccessResponse envelope estándar de respuestas exitosas.
type SuccessResponse struct {
	Success    bool        `json:"success"`
	Data       interface{} `json:"data,omitempty"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

// QueueResponse respuesta de la inspección de la cola de emisión: los tickets
// pendientes van en el nivel superior del envelope, no bajo data.
type QueueResponse struct {
	Success bool                  `json:"success"`
	Queued  []QueueTicketResponse `json:"queued"`
}

// ErrorResponse cuerpo de error HTTP. Violations solo viene en errores de validación.
type ErrorResponse struct {
	Success    bool                    `json:"success"`
	Code       string                  `json:"code"`
	Message    string                  `json:"message"`
	Violations []domain.FieldViolation `json:"violations,omitempty"`
}
