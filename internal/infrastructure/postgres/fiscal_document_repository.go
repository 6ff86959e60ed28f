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

var _ repository.FiscalDocumentRepository = (*FiscalDocumentRepo)(nil)

// FiscalDocumentRepo implementación de FiscalDocumentRepository (usable con pool o tx).
type FiscalDocumentRepo struct {
	q Querier
}

// NewFiscalDocumentRepository construye el adaptador. Pasar pool o tx (Querier).
func NewFiscalDocumentRepository(q Querier) *FiscalDocumentRepo {
	return &FiscalDocumentRepo{q: q}
}

const docColumns = `id, tenant_id, provider, doc_type, ref, COALESCE(protocol, ''),
	       status, payload, COALESCE(motive, ''), COALESCE(xml_path, ''), COALESCE(pdf_path, ''),
	       created_at, updated_at`

// Create persiste un documento nuevo. El índice único parcial sobre
// (tenant_id, provider, ref) de documentos vivos convierte el duplicado en
// domain.ErrDuplicate.
func (r *FiscalDocumentRepo) Create(ctx context.Context, doc *entity.FiscalDocument) error {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now
	query := `
		INSERT INTO fiscal_documents (id, tenant_id, provider, doc_type, ref, protocol, status, payload, motive, xml_path, pdf_path, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err := r.q.Exec(ctx, query,
		doc.ID, doc.TenantID, doc.Provider, doc.DocType, doc.Ref,
		nullIfEmpty(doc.Protocol), doc.Status, doc.Payload,
		nullIfEmpty(doc.Motive), nullIfEmpty(doc.XMLPath), nullIfEmpty(doc.PDFPath),
		doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("insert fiscal document: %w", err)
	}
	return nil
}

// GetByID obtiene un documento por ID. Devuelve nil si no existe.
func (r *FiscalDocumentRepo) GetByID(ctx context.Context, id string) (*entity.FiscalDocument, error) {
	query := `SELECT ` + docColumns + ` FROM fiscal_documents WHERE id = $1`
	return r.scanOne(r.q.QueryRow(ctx, query, id), "get fiscal document")
}

// GetActiveByRef busca el documento vivo (ni rechazado ni cancelado) para la venta.
func (r *FiscalDocumentRepo) GetActiveByRef(ctx context.Context, tenantID, provider, ref string) (*entity.FiscalDocument, error) {
	query := `
		SELECT ` + docColumns + `
		FROM fiscal_documents
		WHERE tenant_id = $1 AND provider = $2 AND ref = $3
		  AND status NOT IN ('REJECTED', 'CANCELLED')
		ORDER BY created_at DESC
		LIMIT 1`
	return r.scanOne(r.q.QueryRow(ctx, query, tenantID, provider, ref), "get active fiscal document")
}

// Transition aplica el compare-and-swap de estado: solo escribe si el estado en
// DB sigue siendo fromStatus. Cero filas afectadas significa que otro caller se
// adelantó y se devuelve domain.ErrConflict sin tocar nada.
func (r *FiscalDocumentRepo) Transition(ctx context.Context, doc *entity.FiscalDocument, fromStatus string) error {
	doc.UpdatedAt = time.Now().UTC()
	query := `
		UPDATE fiscal_documents
		SET status     = $3,
		    protocol   = COALESCE($4, protocol),
		    motive     = COALESCE($5, motive),
		    xml_path   = COALESCE($6, xml_path),
		    pdf_path   = COALESCE($7, pdf_path),
		    updated_at = $8
		WHERE id = $1 AND status = $2`
	tag, err := r.q.Exec(ctx, query,
		doc.ID, fromStatus, doc.Status,
		nullIfEmpty(doc.Protocol), nullIfEmpty(doc.Motive),
		nullIfEmpty(doc.XMLPath), nullIfEmpty(doc.PDFPath),
		doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("transition fiscal document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrConflict
	}
	return nil
}

// ListByTenant lista documentos del tenant, más recientes primero.
func (r *FiscalDocumentRepo) ListByTenant(ctx context.Context, tenantID, docType string, limit, offset int) ([]*entity.FiscalDocument, error) {
	query := `
		SELECT ` + docColumns + `
		FROM fiscal_documents
		WHERE tenant_id = $1 AND ($2 = '' OR doc_type = $2)
		ORDER BY created_at DESC, id
		LIMIT $3 OFFSET $4`
	rows, err := r.q.Query(ctx, query, tenantID, docType, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list fiscal documents: %w", err)
	}
	defer rows.Close()
	var list []*entity.FiscalDocument
	for rows.Next() {
		doc, err := r.scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan fiscal document: %w", err)
		}
		list = append(list, doc)
	}
	return list, rows.Err()
}

// CountByTenant cuenta documentos del tenant (mismo filtro que ListByTenant).
func (r *FiscalDocumentRepo) CountByTenant(ctx context.Context, tenantID, docType string) (int, error) {
	query := `
		SELECT COUNT(*) FROM fiscal_documents
		WHERE tenant_id = $1 AND ($2 = '' OR doc_type = $2)`
	var total int
	if err := r.q.QueryRow(ctx, query, tenantID, docType).Scan(&total); err != nil {
		return 0, fmt.Errorf("count fiscal documents: %w", err)
	}
	return total, nil
}

func (r *FiscalDocumentRepo) scanOne(row pgx.Row, op string) (*entity.FiscalDocument, error) {
	var doc entity.FiscalDocument
	err := row.Scan(
		&doc.ID, &doc.TenantID, &doc.Provider, &doc.DocType, &doc.Ref, &doc.Protocol,
		&doc.Status, &doc.Payload, &doc.Motive, &doc.XMLPath, &doc.PDFPath,
		&doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &doc, nil
}

func (r *FiscalDocumentRepo) scanRow(rows pgx.Rows) (*entity.FiscalDocument, error) {
	var doc entity.FiscalDocument
	err := rows.Scan(
		&doc.ID, &doc.TenantID, &doc.Provider, &doc.DocType, &doc.Ref, &doc.Protocol,
		&doc.Status, &doc.Payload, &doc.Motive, &doc.XMLPath, &doc.PDFPath,
		&doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}
