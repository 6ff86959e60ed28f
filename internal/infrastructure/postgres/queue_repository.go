package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/Facturacion-api/internal/domain"
	"github.com/jhoicas/Facturacion-api/internal/domain/entity"
	"github.com/jhoicas/Facturacion-api/internal/domain/repository"
)

var _ repository.QueueRepository = (*QueueRepo)(nil)

// QueueRepo implementación de QueueRepository sobre la tabla fiscal_queue.
// Los tickets nunca se borran: resolved y flagged quedan para auditoría.
type QueueRepo struct {
	q Querier
}

// NewQueueRepository construye el adaptador. Pasar pool o tx (Querier).
func NewQueueRepository(q Querier) *QueueRepo {
	return &QueueRepo{q: q}
}

const ticketColumns = `id, tenant_id, sale_id, fiscal_document_id, request, status,
	       attempt_count, COALESCE(last_error, ''), enqueued_at, updated_at`

// Create persiste un ticket nuevo. El índice único parcial sobre
// (tenant_id, sale_id) de tickets pendientes convierte el duplicado en
// domain.ErrDuplicate: esa es la garantía de idempotencia del enqueue.
func (r *QueueRepo) Create(ctx context.Context, ticket *entity.QueueTicket) error {
	if ticket.ID == "" {
		ticket.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if ticket.EnqueuedAt.IsZero() {
		ticket.EnqueuedAt = now
	}
	ticket.UpdatedAt = now
	query := `
		INSERT INTO fiscal_queue (id, tenant_id, sale_id, fiscal_document_id, request, status, attempt_count, last_error, enqueued_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.q.Exec(ctx, query,
		ticket.ID, ticket.TenantID, ticket.SaleID, ticket.FiscalDocumentID,
		ticket.Request, ticket.Status, ticket.AttemptCount,
		nullIfEmpty(ticket.LastError), ticket.EnqueuedAt, ticket.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("insert queue ticket: %w", err)
	}
	return nil
}

// GetByID obtiene un ticket por ID. Devuelve nil si no existe.
func (r *QueueRepo) GetByID(ctx context.Context, id string) (*entity.QueueTicket, error) {
	query := `SELECT ` + ticketColumns + ` FROM fiscal_queue WHERE id = $1`
	return r.scanOne(r.q.QueryRow(ctx, query, id), "get queue ticket")
}

// GetPendingBySale busca el ticket pendiente de una venta. Devuelve nil si no hay.
func (r *QueueRepo) GetPendingBySale(ctx context.Context, tenantID, saleID string) (*entity.QueueTicket, error) {
	query := `
		SELECT ` + ticketColumns + `
		FROM fiscal_queue
		WHERE tenant_id = $1 AND sale_id = $2 AND status = 'pending'`
	return r.scanOne(r.q.QueryRow(ctx, query, tenantID, saleID), "get pending queue ticket")
}

// GetByDocument busca el ticket asociado a un documento fiscal.
func (r *QueueRepo) GetByDocument(ctx context.Context, fiscalDocumentID string) (*entity.QueueTicket, error) {
	query := `
		SELECT ` + ticketColumns + `
		FROM fiscal_queue
		WHERE fiscal_document_id = $1
		ORDER BY enqueued_at DESC
		LIMIT 1`
	return r.scanOne(r.q.QueryRow(ctx, query, fiscalDocumentID), "get queue ticket by document")
}

// ListPending snapshot de tickets pendientes en orden de llegada.
func (r *QueueRepo) ListPending(ctx context.Context, limit int) ([]*entity.QueueTicket, error) {
	query := `
		SELECT ` + ticketColumns + `
		FROM fiscal_queue
		WHERE status = 'pending'
		ORDER BY enqueued_at, id
		LIMIT $1`
	rows, err := r.q.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending queue tickets: %w", err)
	}
	defer rows.Close()
	var list []*entity.QueueTicket
	for rows.Next() {
		ticket, err := r.scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan queue ticket: %w", err)
		}
		list = append(list, ticket)
	}
	return list, rows.Err()
}

// CountPending cuenta tickets pendientes (control de capacidad de la cola).
func (r *QueueRepo) CountPending(ctx context.Context) (int, error) {
	var total int
	err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM fiscal_queue WHERE status = 'pending'`).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("count pending queue tickets: %w", err)
	}
	return total, nil
}

// Resolve marca el ticket como resuelto. Idempotente: resolver dos veces no falla.
func (r *QueueRepo) Resolve(ctx context.Context, id string) error {
	query := `
		UPDATE fiscal_queue
		SET status = 'resolved', updated_at = $2
		WHERE id = $1`
	if _, err := r.q.Exec(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("resolve queue ticket: %w", err)
	}
	return nil
}

// Flag marca el ticket para revisión manual con el último error registrado.
func (r *QueueRepo) Flag(ctx context.Context, id, lastError string) error {
	query := `
		UPDATE fiscal_queue
		SET status = 'flagged', last_error = $2, updated_at = $3
		WHERE id = $1`
	if _, err := r.q.Exec(ctx, query, id, nullIfEmpty(lastError), time.Now().UTC()); err != nil {
		return fmt.Errorf("flag queue ticket: %w", err)
	}
	return nil
}

// IncrementAttempt suma un intento fallido y registra el último error.
func (r *QueueRepo) IncrementAttempt(ctx context.Context, id, lastError string) error {
	query := `
		UPDATE fiscal_queue
		SET attempt_count = attempt_count + 1, last_error = $2, updated_at = $3
		WHERE id = $1`
	if _, err := r.q.Exec(ctx, query, id, nullIfEmpty(lastError), time.Now().UTC()); err != nil {
		return fmt.Errorf("increment queue attempt: %w", err)
	}
	return nil
}

// Reopen devuelve un ticket marcado a pendiente con el contador en cero.
// Solo aplica a tickets flagged; un ticket resuelto no se reabre.
func (r *QueueRepo) Reopen(ctx context.Context, id string) error {
	query := `
		UPDATE fiscal_queue
		SET status = 'pending', attempt_count = 0, last_error = NULL, updated_at = $2
		WHERE id = $1 AND status = 'flagged'`
	tag, err := r.q.Exec(ctx, query, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("reopen queue ticket: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrConflict
	}
	return nil
}

func (r *QueueRepo) scanOne(row pgx.Row, op string) (*entity.QueueTicket, error) {
	var t entity.QueueTicket
	err := row.Scan(
		&t.ID, &t.TenantID, &t.SaleID, &t.FiscalDocumentID, &t.Request, &t.Status,
		&t.AttemptCount, &t.LastError, &t.EnqueuedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &t, nil
}

func (r *QueueRepo) scanRow(rows pgx.Rows) (*entity.QueueTicket, error) {
	var t entity.QueueTicket
	err := rows.Scan(
		&t.ID, &t.TenantID, &t.SaleID, &t.FiscalDocumentID, &t.Request, &t.Status,
		&t.AttemptCount, &t.LastError, &t.EnqueuedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
