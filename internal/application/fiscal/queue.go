package fiscal

import (
	"context"

	"github.com/jhoicas/Facturacion-api/internal/application/dto"
	"github.com/jhoicas/Facturacion-api/internal/domain/repository"
)

// SubmissionQueue vista de solo lectura sobre la cola durable de emisión,
// para el endpoint de inspección y los jobs de reconciliación.
type SubmissionQueue struct {
	repo repository.QueueRepository
}

// NewSubmissionQueue construye la vista.
func NewSubmissionQueue(repo repository.QueueRepository) *SubmissionQueue {
	return &SubmissionQueue{repo: repo}
}

// Pending devuelve el snapshot de tickets pendientes en orden de llegada.
// No remueve entradas: es una vista reiniciable.
func (q *SubmissionQueue) Pending(ctx context.Context, limit int) ([]dto.QueueTicketResponse, error) {
	if limit <= 0 {
		limit = 100
	}
	tickets, err := q.repo.ListPending(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]dto.QueueTicketResponse, 0, len(tickets))
	for _, t := range tickets {
		out = append(out, dto.QueueTicketResponse{
			TicketID:         t.ID,
			TenantID:         t.TenantID,
			SaleID:           t.SaleID,
			FiscalDocumentID: t.FiscalDocumentID,
			Status:           t.Status,
			AttemptCount:     t.AttemptCount,
			LastError:        t.LastError,
			EnqueuedAt:       t.EnqueuedAt,
		})
	}
	return out, nil
}
