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
	"github.com/jhoicas/Facturacion-api/internal/infrastructure/provider"
	"github.com/jhoicas/Facturacion-api/pkg/config"
	"github.com/jhoicas/Facturacion-api/pkg/logger"
)

// Orchestrator conduce el ciclo de vida del documento fiscal contra el gateway:
//
//	QUEUED → submit → PROCESSING → check-status → {AUTHORIZED | REJECTED}
//
// Cada transición actualiza el estado (compare-and-swap) y agrega su evento en
// una sola transacción. Dos intentos concurrentes sobre el mismo documento se
// serializan por el CAS: el perdedor recibe domain.ErrConflict y relee.
//
// El envío inicial corre en goroutine independiente (ProcessAsync) con su
// propio context + timeout, desacoplado del ciclo HTTP: la venta nunca se
// bloquea por la emisión.
type Orchestrator struct {
	txRunner  TxRunner
	docRepo   repository.FiscalDocumentRepository
	queueRepo repository.QueueRepository
	submitter provider.Submitter
	cfg       config.FiscalConfig
	log       *logger.Logger
}

// NewOrchestrator construye el orquestador con todas sus dependencias.
func NewOrchestrator(
	txRunner TxRunner,
	docRepo repository.FiscalDocumentRepository,
	queueRepo repository.QueueRepository,
	submitter provider.Submitter,
	cfg config.FiscalConfig,
	log *logger.Logger,
) *Orchestrator {
	return &Orchestrator{
		txRunner:  txRunner,
		docRepo:   docRepo,
		queueRepo: queueRepo,
		submitter: submitter,
		cfg:       cfg,
		log:       log,
	}
}

// ProcessAsync dispara el procesamiento del documento en una goroutine
// independiente. docID y ticketID ya están persistidos.
func (o *Orchestrator) ProcessAsync(docID, ticketID string) {
	go o.process(docID, ticketID)
}

func (o *Orchestrator) process(docID, ticketID string) {
	ctx, cancel := context.WithTimeout(context.Background(), o.cfg.TimeoutDuration()+10*time.Second)
	defer cancel()

	doc, err := o.docRepo.GetByID(ctx, docID)
	if err != nil || doc == nil {
		o.log.Error().Err(err).Str("fiscal_document_id", docID).Msg("documento no encontrado para procesar")
		return
	}

	switch doc.Status {
	case entity.DocStatusQueued:
		err = o.Submit(ctx, doc, ticketID)
	case entity.DocStatusProcessing:
		err = o.CheckStatus(ctx, doc, ticketID)
	default:
		// Ya terminal; nada que hacer.
		return
	}
	if err != nil && !errors.Is(err, domain.ErrConflict) {
		o.log.Error().Err(err).Str("fiscal_document_id", docID).Msg("procesamiento fiscal fallido")
	}
}

// Submit envía un documento QUEUED al gateway y aplica la transición que
// corresponda según la respuesta. Con el adaptador deshabilitado la emisión
// queda retenida (el ticket sigue pendiente para reconciliación manual).
func (o *Orchestrator) Submit(ctx context.Context, doc *entity.FiscalDocument, ticketID string) error {
	if doc.Status != entity.DocStatusQueued {
		return fmt.Errorf("submit %s: %w: estado %s", doc.ID, domain.ErrInvalidTransition, doc.Status)
	}
	if !o.cfg.Enabled {
		o.log.Info().Str("fiscal_document_id", doc.ID).Msg("adaptador fiscal deshabilitado: emisión retenida en cola")
		return nil
	}

	var payload dto.InvoiceRequest
	if err := json.Unmarshal(doc.Payload, &payload); err != nil {
		return fmt.Errorf("submit %s: payload corrupto: %w", doc.ID, err)
	}

	res, err := o.submitter.Submit(ctx, doc.Ref, &payload)
	if err != nil {
		if errors.Is(err, domain.ErrProviderDisabled) {
			return nil // retenida, no fallida
		}
		// Transitorio (red/timeout) o inesperado: evento de error + intento,
		// el documento sigue QUEUED y la reconciliación lo retomará.
		return o.recordTransientFailure(ctx, doc, ticketID, err)
	}

	if err := o.markSubmitted(ctx, doc, res); err != nil {
		return err
	}

	switch res.Status {
	case provider.StatusAuthorized:
		return o.markAuthorized(ctx, doc, ticketID, res.RawResponse, res.ReceiptURL, res.XMLURL)
	case provider.StatusRejected:
		return o.markRejected(ctx, doc, ticketID, res.Motive, res.RawResponse)
	}
	// processing: la reconciliación hará el seguimiento por protocolo.
	return nil
}

// CheckStatus consulta el gateway por protocolo y aplica la transición
// definitiva si la hay. Un timeout deja el documento en PROCESSING.
func (o *Orchestrator) CheckStatus(ctx context.Context, doc *entity.FiscalDocument, ticketID string) error {
	if doc.Status != entity.DocStatusProcessing {
		return fmt.Errorf("check status %s: %w: estado %s", doc.ID, domain.ErrInvalidTransition, doc.Status)
	}

	res, err := o.submitter.CheckStatus(ctx, doc.Protocol)
	if err != nil {
		if errors.Is(err, domain.ErrProviderDisabled) {
			return nil
		}
		return o.recordTransientFailure(ctx, doc, ticketID, err)
	}

	switch res.Status {
	case provider.StatusAuthorized:
		return o.markAuthorized(ctx, doc, ticketID, res.RawResponse, res.ReceiptURL, res.XMLURL)
	case provider.StatusRejected:
		return o.markRejected(ctx, doc, ticketID, res.Motive, res.RawResponse)
	case provider.StatusCancelled:
		// Cancelación del lado del gateway antes de autorizar: para nuestra
		// máquina equivale a un rechazo con motivo.
		motive := res.Motive
		if motive == "" {
			motive = "cancelado por el gateway"
		}
		return o.markRejected(ctx, doc, ticketID, motive, res.RawResponse)
	default:
		// Sigue en proceso: dejamos constancia de la consulta, sin consumir intentos.
		return o.appendEvent(ctx, doc, entity.EventStatusCheck, doc.Status, res.RawResponse)
	}
}

// Cancel aplica la cancelación explícita de un documento AUTORIZADO.
// Sobre cualquier otro estado falla con ErrInvalidTransition sin escribir evento.
func (o *Orchestrator) Cancel(ctx context.Context, tenantID, docID, reason string) (*entity.FiscalDocument, error) {
	doc, err := o.docRepo.GetByID(ctx, docID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, domain.ErrNotFound
	}
	if doc.TenantID != tenantID {
		return nil, domain.ErrForbidden
	}
	if doc.Status != entity.DocStatusAuthorized {
		return nil, fmt.Errorf("cancel %s: %w: estado %s", docID, domain.ErrInvalidTransition, doc.Status)
	}

	doc.Motive = reason
	if err := o.transition(ctx, doc, entity.DocStatusAuthorized, entity.DocStatusCancelled, entity.EventCancel, nil, ""); err != nil {
		return nil, err
	}
	o.log.Info().Str("tenant_id", tenantID).Str("fiscal_document_id", docID).Msg("documento fiscal cancelado")
	return doc, nil
}

// Retry reintento manual de un documento atascado (ticket marcado o en espera).
// Sobre un documento terminal no hay nada que reintentar.
func (o *Orchestrator) Retry(ctx context.Context, tenantID, docID string) (*entity.QueueTicket, error) {
	doc, err := o.docRepo.GetByID(ctx, docID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, domain.ErrNotFound
	}
	if doc.TenantID != tenantID {
		return nil, domain.ErrForbidden
	}
	if entity.IsTerminalStatus(doc.Status) {
		return nil, fmt.Errorf("retry %s: %w: estado %s", docID, domain.ErrInvalidTransition, doc.Status)
	}

	ticket, err := o.queueRepo.GetByDocument(ctx, docID)
	if err != nil {
		return nil, err
	}
	if ticket == nil {
		return nil, domain.ErrNotFound
	}
	if ticket.Status == entity.TicketFlagged {
		if err := o.queueRepo.Reopen(ctx, ticket.ID); err != nil {
			return nil, err
		}
		ticket.Status = entity.TicketPending
		ticket.AttemptCount = 0
	}

	o.ProcessAsync(doc.ID, ticket.ID)
	return ticket, nil
}

// ── transiciones internas ─────────────────────────────────────────────────────

// markSubmitted QUEUED → PROCESSING con el protocolo del gateway.
func (o *Orchestrator) markSubmitted(ctx context.Context, doc *entity.FiscalDocument, res *provider.SubmitResult) error {
	doc.Protocol = res.Protocol
	if err := o.transition(ctx, doc, entity.DocStatusQueued, entity.DocStatusProcessing, entity.EventSubmit, res.RawResponse, ""); err != nil {
		return err
	}
	o.log.Info().
		Str("tenant_id", doc.TenantID).
		Str("fiscal_document_id", doc.ID).
		Str("protocol", doc.Protocol).
		Msg("documento enviado al gateway fiscal")
	return nil
}

// markAuthorized PROCESSING → AUTHORIZED; persiste rutas de artefactos y
// resuelve el ticket de cola.
func (o *Orchestrator) markAuthorized(ctx context.Context, doc *entity.FiscalDocument, ticketID string, raw json.RawMessage, receiptURL, xmlURL string) error {
	if xmlURL != "" {
		doc.XMLPath = xmlURL
	}
	if receiptURL != "" {
		doc.PDFPath = receiptURL
	}
	if err := o.transition(ctx, doc, entity.DocStatusProcessing, entity.DocStatusAuthorized, entity.EventAuthorize, raw, ticketID); err != nil {
		return err
	}
	o.log.Info().
		Str("tenant_id", doc.TenantID).
		Str("fiscal_document_id", doc.ID).
		Str("protocol", doc.Protocol).
		Msg("documento autorizado por la autoridad fiscal")
	return nil
}

// markRejected PROCESSING → REJECTED con el motivo; resuelve el ticket.
// Una reemisión posterior de la misma venta creará un documento nuevo.
func (o *Orchestrator) markRejected(ctx context.Context, doc *entity.FiscalDocument, ticketID, motive string, raw json.RawMessage) error {
	doc.Motive = motive
	if err := o.transition(ctx, doc, entity.DocStatusProcessing, entity.DocStatusRejected, entity.EventReject, raw, ticketID); err != nil {
		return err
	}
	o.log.Warn().
		Str("tenant_id", doc.TenantID).
		Str("fiscal_document_id", doc.ID).
		Str("motive", motive).
		Msg("documento rechazado por la autoridad fiscal")
	return nil
}

// transition aplica el CAS de estado y el append del evento en una sola tx.
// resolveTicketID no vacío además resuelve el ticket de cola en la misma tx.
func (o *Orchestrator) transition(ctx context.Context, doc *entity.FiscalDocument, from, to, eventType string, raw json.RawMessage, resolveTicketID string) error {
	if !entity.CanTransition(from, to) {
		return fmt.Errorf("%s → %s: %w", from, to, domain.ErrInvalidTransition)
	}
	now := time.Now()
	doc.Status = to
	doc.UpdatedAt = now

	return o.txRunner.RunFiscal(ctx, func(
		docRepo repository.FiscalDocumentRepository,
		eventRepo repository.FiscalEventRepository,
		queueRepo repository.QueueRepository,
	) error {
		if err := docRepo.Transition(ctx, doc, from); err != nil {
			return err
		}
		ev := &entity.FiscalDocumentEvent{
			ID:               uuid.New().String(),
			FiscalDocumentID: doc.ID,
			TenantID:         doc.TenantID,
			EventType:        eventType,
			EventStatus:      to,
			EventData:        doc.Payload,
			ProviderResponse: raw,
			CreatedAt:        now,
		}
		if err := eventRepo.Append(ctx, ev); err != nil {
			return err
		}
		if resolveTicketID != "" {
			return queueRepo.Resolve(ctx, resolveTicketID)
		}
		return nil
	})
}

// recordTransientFailure registra el fallo transitorio (evento "error" + intento
// en el ticket) sin mover el estado del documento.
func (o *Orchestrator) recordTransientFailure(ctx context.Context, doc *entity.FiscalDocument, ticketID string, cause error) error {
	o.log.Warn().
		Err(cause).
		Str("tenant_id", doc.TenantID).
		Str("fiscal_document_id", doc.ID).
		Msg("fallo transitorio del gateway fiscal; se reintentará")

	return o.txRunner.RunFiscal(ctx, func(
		_ repository.FiscalDocumentRepository,
		eventRepo repository.FiscalEventRepository,
		queueRepo repository.QueueRepository,
	) error {
		ev := &entity.FiscalDocumentEvent{
			ID:               uuid.New().String(),
			FiscalDocumentID: doc.ID,
			TenantID:         doc.TenantID,
			EventType:        entity.EventError,
			EventStatus:      doc.Status,
			EventData:        doc.Payload,
			CreatedAt:        time.Now(),
		}
		if err := eventRepo.Append(ctx, ev); err != nil {
			return err
		}
		return queueRepo.IncrementAttempt(ctx, ticketID, cause.Error())
	})
}

// appendEvent registra un evento informativo sin transición de estado.
func (o *Orchestrator) appendEvent(ctx context.Context, doc *entity.FiscalDocument, eventType, eventStatus string, raw json.RawMessage) error {
	return o.txRunner.RunFiscal(ctx, func(
		_ repository.FiscalDocumentRepository,
		eventRepo repository.FiscalEventRepository,
		_ repository.QueueRepository,
	) error {
		return eventRepo.Append(ctx, &entity.FiscalDocumentEvent{
			ID:               uuid.New().String(),
			FiscalDocumentID: doc.ID,
			TenantID:         doc.TenantID,
			EventType:        eventType,
			EventStatus:      eventStatus,
			EventData:        doc.Payload,
			ProviderResponse: raw,
			CreatedAt:        time.Now(),
		})
	})
}
