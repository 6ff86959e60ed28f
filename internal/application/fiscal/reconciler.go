package fiscal

import (
	"context"
	"errors"
	"time"

	"github.com/jhoicas/Facturacion-api/internal/domain"
	"github.com/jhoicas/Facturacion-api/internal/domain/entity"
	"github.com/jhoicas/Facturacion-api/internal/domain/repository"
	"github.com/jhoicas/Facturacion-api/pkg/config"
	"github.com/jhoicas/Facturacion-api/pkg/logger"
)

// reconcileBatchSize tickets por corrida; el snapshot es reiniciable, el resto
// se toma en la siguiente pasada.
const reconcileBatchSize = 100

// backoffBase espera mínima tras un fallo transitorio; se duplica por intento.
const backoffBase = 30 * time.Second

// Reconciler job de fondo que lleva cada ticket pendiente a un estado terminal
// o lo marca para revisión manual tras agotar los reintentos. Ningún ticket se
// abandona en silencio: con el adaptador deshabilitado o el gateway caído, los
// tickets simplemente esperan la siguiente corrida.
type Reconciler struct {
	queueRepo    repository.QueueRepository
	docRepo      repository.FiscalDocumentRepository
	orchestrator *Orchestrator
	cfg          config.FiscalConfig
	log          *logger.Logger
}

// NewReconciler construye el job.
func NewReconciler(
	queueRepo repository.QueueRepository,
	docRepo repository.FiscalDocumentRepository,
	orchestrator *Orchestrator,
	cfg config.FiscalConfig,
	log *logger.Logger,
) *Reconciler {
	return &Reconciler{
		queueRepo:    queueRepo,
		docRepo:      docRepo,
		orchestrator: orchestrator,
		cfg:          cfg,
		log:          log,
	}
}

// Start corre el loop de reconciliación hasta que ctx se cancele.
// Pensado para ejecutarse en su propia goroutine desde main.
func (r *Reconciler) Start(ctx context.Context) {
	interval := time.Duration(r.cfg.ReconcileInterval) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.log.Info().Dur("interval", interval).Msg("reconciliación fiscal iniciada")
	for {
		select {
		case <-ctx.Done():
			r.log.Info().Msg("reconciliación fiscal detenida")
			return
		case <-ticker.C:
			if err := r.RunOnce(ctx); err != nil {
				r.log.Error().Err(err).Msg("corrida de reconciliación fallida")
			}
		}
	}
}

// RunOnce procesa una pasada sobre el snapshot de tickets pendientes.
func (r *Reconciler) RunOnce(ctx context.Context) error {
	tickets, err := r.queueRepo.ListPending(ctx, reconcileBatchSize)
	if err != nil {
		return err
	}
	for _, t := range tickets {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := r.reconcile(ctx, t); err != nil {
			// ErrConflict: otro worker transicionó el documento primero; la
			// próxima pasada verá el estado fresco.
			if errors.Is(err, domain.ErrConflict) {
				continue
			}
			r.log.Warn().Err(err).
				Str("ticket_id", t.ID).
				Str("fiscal_document_id", t.FiscalDocumentID).
				Msg("reconciliación de ticket fallida")
		}
	}
	return nil
}

func (r *Reconciler) reconcile(ctx context.Context, ticket *entity.QueueTicket) error {
	doc, err := r.docRepo.GetByID(ctx, ticket.FiscalDocumentID)
	if err != nil {
		return err
	}
	if doc == nil {
		return r.queueRepo.Flag(ctx, ticket.ID, "documento fiscal inexistente")
	}

	// El documento ya terminó: cerrar el ticket.
	if entity.IsTerminalStatus(doc.Status) {
		return r.queueRepo.Resolve(ctx, ticket.ID)
	}

	// Tope de reintentos: marcar para revisión manual, nunca descartar.
	if r.cfg.MaxAttempts > 0 && ticket.AttemptCount >= r.cfg.MaxAttempts {
		r.log.Warn().
			Str("ticket_id", ticket.ID).
			Str("fiscal_document_id", doc.ID).
			Int("attempts", ticket.AttemptCount).
			Msg("máximo de reintentos alcanzado: ticket marcado para revisión manual")
		return r.queueRepo.Flag(ctx, ticket.ID, "máximo de reintentos de reconciliación alcanzado")
	}

	// Backoff exponencial por intento fallido.
	if !r.due(ticket) {
		return nil
	}

	switch doc.Status {
	case entity.DocStatusQueued:
		return r.orchestrator.Submit(ctx, doc, ticket.ID)
	case entity.DocStatusProcessing:
		return r.orchestrator.CheckStatus(ctx, doc, ticket.ID)
	}
	return nil
}

// due indica si ya pasó la espera de backoff del ticket.
func (r *Reconciler) due(ticket *entity.QueueTicket) bool {
	if ticket.AttemptCount == 0 {
		return true
	}
	// 30s<<6 ya supera el tope de 30min; acotar el exponente evita el overflow
	// del shift con contadores altos (tope de reintentos deshabilitado).
	shift := ticket.AttemptCount - 1
	if shift > 6 {
		shift = 6
	}
	wait := backoffBase << shift
	if wait > 30*time.Minute {
		wait = 30 * time.Minute
	}
	return time.Since(ticket.UpdatedAt) >= wait
}
