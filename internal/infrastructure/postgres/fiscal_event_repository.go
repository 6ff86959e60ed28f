package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/Facturacion-api/internal/domain/entity"
	"github.com/jhoicas/Facturacion-api/internal/domain/repository"
)

var _ repository.FiscalEventRepository = (*FiscalEventRepo)(nil)

// FiscalEventRepo implementación append-only de FiscalEventRepository.
// La tabla no tiene UPDATE ni DELETE: solo INSERT y SELECT.
type FiscalEventRepo struct {
	q Querier
}

// NewFiscalEventRepository construye el adaptador. Pasar pool o tx (Querier).
func NewFiscalEventRepository(q Querier) *FiscalEventRepo {
	return &FiscalEventRepo{q: q}
}

const eventColumns = `id, fiscal_document_id, tenant_id, event_type, event_status,
	       event_data, provider_response, created_at`

// Append inserta un evento nuevo al historial del documento.
func (r *FiscalEventRepo) Append(ctx context.Context, event *entity.FiscalDocumentEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO fiscal_document_events (id, fiscal_document_id, tenant_id, event_type, event_status, event_data, provider_response, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.q.Exec(ctx, query,
		event.ID, event.FiscalDocumentID, event.TenantID,
		event.EventType, event.EventStatus,
		event.EventData, event.ProviderResponse,
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert fiscal event: %w", err)
	}
	return nil
}

// List devuelve eventos más recientes primero según el filtro.
func (r *FiscalEventRepo) List(ctx context.Context, filter repository.EventFilter, limit, offset int) ([]*entity.FiscalDocumentEvent, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM fiscal_document_events
		WHERE ($1 = '' OR fiscal_document_id = $1)
		  AND ($2 = '' OR tenant_id = $2)
		ORDER BY created_at DESC, id
		LIMIT $3 OFFSET $4`
	rows, err := r.q.Query(ctx, query, filter.FiscalDocumentID, filter.TenantID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list fiscal events: %w", err)
	}
	defer rows.Close()
	return r.collect(rows)
}

// Count cuenta los eventos que cumple el filtro (para paginación).
func (r *FiscalEventRepo) Count(ctx context.Context, filter repository.EventFilter) (int, error) {
	query := `
		SELECT COUNT(*) FROM fiscal_document_events
		WHERE ($1 = '' OR fiscal_document_id = $1)
		  AND ($2 = '' OR tenant_id = $2)`
	var total int
	if err := r.q.QueryRow(ctx, query, filter.FiscalDocumentID, filter.TenantID).Scan(&total); err != nil {
		return 0, fmt.Errorf("count fiscal events: %w", err)
	}
	return total, nil
}

// ListByDocumentAsc devuelve el historial completo de un documento en orden de inserción.
func (r *FiscalEventRepo) ListByDocumentAsc(ctx context.Context, fiscalDocumentID string) ([]*entity.FiscalDocumentEvent, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM fiscal_document_events
		WHERE fiscal_document_id = $1
		ORDER BY created_at, id`
	rows, err := r.q.Query(ctx, query, fiscalDocumentID)
	if err != nil {
		return nil, fmt.Errorf("list fiscal events by document: %w", err)
	}
	defer rows.Close()
	return r.collect(rows)
}

func (r *FiscalEventRepo) collect(rows pgx.Rows) ([]*entity.FiscalDocumentEvent, error) {
	var list []*entity.FiscalDocumentEvent
	for rows.Next() {
		var ev entity.FiscalDocumentEvent
		err := rows.Scan(
			&ev.ID, &ev.FiscalDocumentID, &ev.TenantID,
			&ev.EventType, &ev.EventStatus,
			&ev.EventData, &ev.ProviderResponse,
			&ev.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan fiscal event: %w", err)
		}
		list = append(list, &ev)
	}
	return list, rows.Err()
}
