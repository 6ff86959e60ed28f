package repository

import (
	"context"

	"github.com/jhoicas/Facturacion-api/internal/domain/entity"
)

// EventFilter criterios de consulta del historial. Al menos uno de los dos
// campos debe venir informado; el repositorio nunca consulta sin filtro.
type EventFilter struct {
	FiscalDocumentID string
	TenantID         string
}

// FiscalEventRepository define el puerto append-only del historial fiscal.
// No existe Update ni Delete: los eventos son historia inmutable.
type FiscalEventRepository interface {
	Append(ctx context.Context, event *entity.FiscalDocumentEvent) error
	// List devuelve eventos más recientes primero, filtrados por documento y/o tenant.
	List(ctx context.Context, filter EventFilter, limit, offset int) ([]*entity.FiscalDocumentEvent, error)
	Count(ctx context.Context, filter EventFilter) (int, error)
	// ListByDocumentAsc devuelve el historial completo de un documento en orden
	// de inserción (para reconstrucción y tests de orden).
	ListByDocumentAsc(ctx context.Context, fiscalDocumentID string) ([]*entity.FiscalDocumentEvent, error)
}
