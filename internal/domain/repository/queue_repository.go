package repository

import (
	"context"

	"github.com/jhoicas/Facturacion-api/internal/domain/entity"
)

// QueueRepository define el puerto de la cola durable de emisión.
//
// La idempotencia por (tenant_id, sale_id) mientras el ticket está pendiente la
// garantiza un índice único parcial en DB: Create devuelve domain.ErrDuplicate
// si ya existe un pendiente y el caller recupera el ticket con GetPendingBySale.
type QueueRepository interface {
	Create(ctx context.Context, ticket *entity.QueueTicket) error
	GetByID(ctx context.Context, id string) (*entity.QueueTicket, error)
	GetPendingBySale(ctx context.Context, tenantID, saleID string) (*entity.QueueTicket, error)
	GetByDocument(ctx context.Context, fiscalDocumentID string) (*entity.QueueTicket, error)
	// ListPending snapshot de tickets pendientes en orden de llegada.
	// Es una vista: no remueve entradas.
	ListPending(ctx context.Context, limit int) ([]*entity.QueueTicket, error)
	CountPending(ctx context.Context) (int, error)
	// Resolve marca el ticket como resuelto cuando su documento llegó a estado terminal.
	Resolve(ctx context.Context, id string) error
	// Flag marca el ticket para revisión manual tras agotar reintentos. No lo borra.
	Flag(ctx context.Context, id, lastError string) error
	// IncrementAttempt suma un intento fallido transitorio y registra el último error.
	IncrementAttempt(ctx context.Context, id, lastError string) error
	// Reopen devuelve un ticket marcado a pendiente con el contador en cero
	// (reintento manual del operador).
	Reopen(ctx context.Context, id string) error
}
