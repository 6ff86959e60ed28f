package fiscal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/Facturacion-api/internal/application/dto"
	"github.com/jhoicas/Facturacion-api/internal/domain"
	"github.com/jhoicas/Facturacion-api/internal/domain/entity"
	"github.com/jhoicas/Facturacion-api/internal/domain/repository"
	"github.com/jhoicas/Facturacion-api/pkg/config"
)

// EmitInvoiceUseCase convierte una venta completada en solicitud de factura
// electrónica: valida el payload, encola de forma idempotente y crea el
// documento fiscal en QUEUED con su evento "submit", todo en una transacción.
// El envío al gateway corre después, desacoplado: la venta nunca espera al
// ente fiscal.
type EmitInvoiceUseCase struct {
	validator    *Validator
	txRunner     TxRunner
	docRepo      repository.FiscalDocumentRepository
	queueRepo    repository.QueueRepository
	orchestrator *Orchestrator
	cfg          config.FiscalConfig
}

// NewEmitInvoiceUseCase construye el caso de uso.
func NewEmitInvoiceUseCase(
	validator *Validator,
	txRunner TxRunner,
	docRepo repository.FiscalDocumentRepository,
	queueRepo repository.QueueRepository,
	orchestrator *Orchestrator,
	cfg config.FiscalConfig,
) *EmitInvoiceUseCase {
	return &EmitInvoiceUseCase{
		validator:    validator,
		txRunner:     txRunner,
		docRepo:      docRepo,
		queueRepo:    queueRepo,
		orchestrator: orchestrator,
		cfg:          cfg,
	}
}

// Emit procesa la solicitud. Repetir la misma (tenant_id, sale_id) mientras el
// ticket siga pendiente devuelve el ticket existente: los reintentos del
// cliente no duplican la facturación.
func (uc *EmitInvoiceUseCase) Emit(ctx context.Context, in dto.InvoiceRequest) (*dto.EmitInvoiceResponse, error) {
	req, err := uc.validator.ValidateInvoice(in)
	if err != nil {
		return nil, err
	}

	// Idempotencia: ¿ya hay un ticket pendiente para esta venta?
	if existing, err := uc.queueRepo.GetPendingBySale(ctx, req.TenantID, req.SaleID); err != nil {
		return nil, err
	} else if existing != nil {
		return uc.existingResponse(ctx, existing)
	}

	// Documento lógico activo para la venta: no se reemite hasta que el
	// vigente quede REJECTED o CANCELLED. El índice único parcial cubre la
	// carrera entre requests concurrentes; este chequeo responde sin intentar
	// la inserción.
	if active, err := uc.docRepo.GetActiveByRef(ctx, req.TenantID, uc.cfg.Provider, req.SaleID); err != nil {
		return nil, err
	} else if active != nil {
		return nil, fmt.Errorf("documento %s en estado %s: %w", active.ID, active.Status, domain.ErrDuplicate)
	}

	// Backpressure: la cola acotada rechaza antes que perder entregas.
	if uc.cfg.QueueCapacity > 0 {
		pending, err := uc.queueRepo.CountPending(ctx)
		if err != nil {
			return nil, err
		}
		if pending >= uc.cfg.QueueCapacity {
			return nil, fmt.Errorf("%d tickets pendientes: %w", pending, domain.ErrQueueFull)
		}
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("serializar payload: %w", err)
	}

	now := time.Now()
	doc := &entity.FiscalDocument{
		ID:        uuid.New().String(),
		TenantID:  req.TenantID,
		Provider:  uc.cfg.Provider,
		DocType:   req.DocType,
		Ref:       req.SaleID,
		Status:    entity.DocStatusQueued,
		Payload:   payload,
		CreatedAt: now,
		UpdatedAt: now,
	}
	ticket := &entity.QueueTicket{
		ID:               uuid.New().String(),
		TenantID:         req.TenantID,
		SaleID:           req.SaleID,
		FiscalDocumentID: doc.ID,
		Request:          payload,
		Status:           entity.TicketPending,
		EnqueuedAt:       now,
		UpdatedAt:        now,
	}

	err = uc.txRunner.RunFiscal(ctx, func(
		docRepo repository.FiscalDocumentRepository,
		eventRepo repository.FiscalEventRepository,
		queueRepo repository.QueueRepository,
	) error {
		if err := docRepo.Create(ctx, doc); err != nil {
			return err
		}
		if err := eventRepo.Append(ctx, &entity.FiscalDocumentEvent{
			ID:               uuid.New().String(),
			FiscalDocumentID: doc.ID,
			TenantID:         doc.TenantID,
			EventType:        entity.EventSubmit,
			EventStatus:      entity.DocStatusQueued,
			EventData:        payload,
			CreatedAt:        now,
		}); err != nil {
			return err
		}
		return queueRepo.Create(ctx, ticket)
	})
	if err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			// Carrera con otro request concurrente, o documento lógico activo
			// (autorizado) que aún no admite reemisión.
			if existing, gErr := uc.queueRepo.GetPendingBySale(ctx, req.TenantID, req.SaleID); gErr == nil && existing != nil {
				return uc.existingResponse(ctx, existing)
			}
		}
		return nil, err
	}

	uc.orchestrator.ProcessAsync(doc.ID, ticket.ID)

	return &dto.EmitInvoiceResponse{
		TicketID:         ticket.ID,
		FiscalDocumentID: doc.ID,
		Status:           doc.Status,
	}, nil
}

func (uc *EmitInvoiceUseCase) existingResponse(ctx context.Context, ticket *entity.QueueTicket) (*dto.EmitInvoiceResponse, error) {
	status := entity.DocStatusQueued
	if doc, err := uc.docRepo.GetByID(ctx, ticket.FiscalDocumentID); err == nil && doc != nil {
		status = doc.Status
	}
	return &dto.EmitInvoiceResponse{
		TicketID:         ticket.ID,
		FiscalDocumentID: ticket.FiscalDocumentID,
		Status:           status,
	}, nil
}
