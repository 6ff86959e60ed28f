package fiscal

import (
	"context"

	"github.com/jhoicas/Facturacion-api/internal/application/dto"
	"github.com/jhoicas/Facturacion-api/internal/domain"
	"github.com/jhoicas/Facturacion-api/internal/domain/entity"
	"github.com/jhoicas/Facturacion-api/internal/domain/repository"
	"github.com/jhoicas/Facturacion-api/pkg/identifier"
)

// QueryService API de lectura paginada sobre documentos y su historial.
// Todo filtro de tenant/documento se valida como identificador bien formado
// ANTES de tocar la DB: jamás se consulta "en ancho" por un filtro inválido.
type QueryService struct {
	docRepo   repository.FiscalDocumentRepository
	eventRepo repository.FiscalEventRepository
}

// NewQueryService construye el servicio de consulta.
func NewQueryService(docRepo repository.FiscalDocumentRepository, eventRepo repository.FiscalEventRepository) *QueryService {
	return &QueryService{docRepo: docRepo, eventRepo: eventRepo}
}

// ListDocuments lista documentos del tenant, más recientes primero.
// docType vacío = todos los tipos.
func (s *QueryService) ListDocuments(ctx context.Context, tenantID, docType string, page dto.PageRequest) ([]dto.FiscalDocumentResponse, *dto.Pagination, error) {
	tenant := identifier.Normalize(tenantID)
	if tenant == "" {
		return nil, nil, &domain.ValidationError{Violations: []domain.FieldViolation{
			{Field: "tenant_id", Message: "identificador mal formado"},
		}}
	}
	page.DefaultPage()

	docs, err := s.docRepo.ListByTenant(ctx, tenant, docType, page.Limit, page.Offset)
	if err != nil {
		return nil, nil, err
	}
	total, err := s.docRepo.CountByTenant(ctx, tenant, docType)
	if err != nil {
		return nil, nil, err
	}

	out := make([]dto.FiscalDocumentResponse, 0, len(docs))
	for _, d := range docs {
		out = append(out, toDocumentResponse(d))
	}
	return out, pagination(total, page, len(out)), nil
}

// ListEvents lista el historial filtrado por documento y/o tenant, más
// recientes primero. Al menos un filtro es obligatorio.
func (s *QueryService) ListEvents(ctx context.Context, fiscalDocumentID, tenantID string, page dto.PageRequest) ([]dto.FiscalEventResponse, *dto.Pagination, error) {
	var violations []domain.FieldViolation
	filter := repository.EventFilter{}

	if fiscalDocumentID != "" {
		filter.FiscalDocumentID = identifier.Normalize(fiscalDocumentID)
		if filter.FiscalDocumentID == "" {
			violations = append(violations, domain.FieldViolation{Field: "fiscal_document_id", Message: "identificador mal formado"})
		}
	}
	if tenantID != "" {
		filter.TenantID = identifier.Normalize(tenantID)
		if filter.TenantID == "" {
			violations = append(violations, domain.FieldViolation{Field: "tenant_id", Message: "identificador mal formado"})
		}
	}
	if filter.FiscalDocumentID == "" && filter.TenantID == "" && len(violations) == 0 {
		violations = append(violations, domain.FieldViolation{Field: "fiscal_document_id", Message: "se requiere fiscal_document_id o tenant_id"})
	}
	if len(violations) > 0 {
		return nil, nil, &domain.ValidationError{Violations: violations}
	}
	page.DefaultPage()

	events, err := s.eventRepo.List(ctx, filter, page.Limit, page.Offset)
	if err != nil {
		return nil, nil, err
	}
	total, err := s.eventRepo.Count(ctx, filter)
	if err != nil {
		return nil, nil, err
	}

	out := make([]dto.FiscalEventResponse, 0, len(events))
	for _, ev := range events {
		out = append(out, dto.FiscalEventResponse{
			ID:               ev.ID,
			FiscalDocumentID: ev.FiscalDocumentID,
			TenantID:         ev.TenantID,
			EventType:        ev.EventType,
			EventStatus:      ev.EventStatus,
			EventData:        ev.EventData,
			ProviderResponse: ev.ProviderResponse,
			CreatedAt:        ev.CreatedAt,
		})
	}
	return out, pagination(total, page, len(out)), nil
}

func toDocumentResponse(d *entity.FiscalDocument) dto.FiscalDocumentResponse {
	return dto.FiscalDocumentResponse{
		ID:        d.ID,
		TenantID:  d.TenantID,
		Provider:  d.Provider,
		DocType:   d.DocType,
		Ref:       d.Ref,
		Protocol:  d.Protocol,
		Status:    d.Status,
		Motive:    d.Motive,
		XMLPath:   d.XMLPath,
		PDFPath:   d.PDFPath,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

func pagination(total int, page dto.PageRequest, returned int) *dto.Pagination {
	return &dto.Pagination{
		Total:   total,
		Limit:   page.Limit,
		Offset:  page.Offset,
		HasMore: page.Offset+returned < total,
	}
}
