package fiscal_test

import (
	"context"
	"sort"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/Facturacion-api/internal/application/dto"
	"github.com/jhoicas/Facturacion-api/internal/application/fiscal"
	"github.com/jhoicas/Facturacion-api/internal/domain"
	"github.com/jhoicas/Facturacion-api/internal/domain/entity"
	"github.com/jhoicas/Facturacion-api/internal/domain/repository"
	"github.com/jhoicas/Facturacion-api/internal/infrastructure/provider"
	"github.com/jhoicas/Facturacion-api/pkg/config"
	"github.com/jhoicas/Facturacion-api/pkg/logger"
)

// ──────────────────────────────────────────────────────────────────────────────
// Dobles en memoria del pipeline fiscal. Emulan las dos garantías que en
// producción da PostgreSQL: el CAS de estado (Transition) y los índices únicos
// parciales (documento activo por venta, ticket pendiente por venta).
// ──────────────────────────────────────────────────────────────────────────────

type memStore struct {
	mu      sync.Mutex
	docs    []*entity.FiscalDocument
	events  []*entity.FiscalDocumentEvent
	tickets []*entity.QueueTicket
}

func newMemStore() *memStore { return &memStore{} }

func copyDoc(d *entity.FiscalDocument) *entity.FiscalDocument {
	c := *d
	return &c
}

func copyTicket(t *entity.QueueTicket) *entity.QueueTicket {
	c := *t
	return &c
}

func copyEvent(e *entity.FiscalDocumentEvent) *entity.FiscalDocumentEvent {
	c := *e
	return &c
}

// ── FiscalDocumentRepository ──────────────────────────────────────────────────

type fakeDocRepo struct{ s *memStore }

var _ repository.FiscalDocumentRepository = (*fakeDocRepo)(nil)

func (r *fakeDocRepo) Create(_ context.Context, doc *entity.FiscalDocument) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, d := range r.s.docs {
		if d.TenantID == doc.TenantID && d.Provider == doc.Provider && d.Ref == doc.Ref &&
			d.Status != entity.DocStatusRejected && d.Status != entity.DocStatusCancelled {
			return domain.ErrDuplicate
		}
	}
	r.s.docs = append(r.s.docs, copyDoc(doc))
	return nil
}

func (r *fakeDocRepo) GetByID(_ context.Context, id string) (*entity.FiscalDocument, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, d := range r.s.docs {
		if d.ID == id {
			return copyDoc(d), nil
		}
	}
	return nil, nil
}

func (r *fakeDocRepo) GetActiveByRef(_ context.Context, tenantID, prov, ref string) (*entity.FiscalDocument, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, d := range r.s.docs {
		if d.TenantID == tenantID && d.Provider == prov && d.Ref == ref &&
			d.Status != entity.DocStatusRejected && d.Status != entity.DocStatusCancelled {
			return copyDoc(d), nil
		}
	}
	return nil, nil
}

func (r *fakeDocRepo) Transition(_ context.Context, doc *entity.FiscalDocument, fromStatus string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i, d := range r.s.docs {
		if d.ID == doc.ID {
			if d.Status != fromStatus {
				return domain.ErrConflict
			}
			r.s.docs[i] = copyDoc(doc)
			return nil
		}
	}
	return domain.ErrConflict
}

func (r *fakeDocRepo) ListByTenant(_ context.Context, tenantID, docType string, limit, offset int) ([]*entity.FiscalDocument, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var all []*entity.FiscalDocument
	for _, d := range r.s.docs {
		if d.TenantID == tenantID && (docType == "" || d.DocType == docType) {
			all = append(all, copyDoc(d))
		}
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (r *fakeDocRepo) CountByTenant(_ context.Context, tenantID, docType string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, d := range r.s.docs {
		if d.TenantID == tenantID && (docType == "" || d.DocType == docType) {
			n++
		}
	}
	return n, nil
}

// ── FiscalEventRepository ─────────────────────────────────────────────────────

type fakeEventRepo struct{ s *memStore }

var _ repository.FiscalEventRepository = (*fakeEventRepo)(nil)

func (r *fakeEventRepo) Append(_ context.Context, ev *entity.FiscalDocumentEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.events = append(r.s.events, copyEvent(ev))
	return nil
}

func (r *fakeEventRepo) matches(ev *entity.FiscalDocumentEvent, f repository.EventFilter) bool {
	if f.FiscalDocumentID != "" && ev.FiscalDocumentID != f.FiscalDocumentID {
		return false
	}
	if f.TenantID != "" && ev.TenantID != f.TenantID {
		return false
	}
	return true
}

func (r *fakeEventRepo) List(_ context.Context, f repository.EventFilter, limit, offset int) ([]*entity.FiscalDocumentEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var all []*entity.FiscalDocumentEvent
	// Más recientes primero: recorrido inverso del orden de inserción.
	for i := len(r.s.events) - 1; i >= 0; i-- {
		if r.matches(r.s.events[i], f) {
			all = append(all, copyEvent(r.s.events[i]))
		}
	}
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (r *fakeEventRepo) Count(_ context.Context, f repository.EventFilter) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, ev := range r.s.events {
		if r.matches(ev, f) {
			n++
		}
	}
	return n, nil
}

func (r *fakeEventRepo) ListByDocumentAsc(_ context.Context, docID string) ([]*entity.FiscalDocumentEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.FiscalDocumentEvent
	for _, ev := range r.s.events {
		if ev.FiscalDocumentID == docID {
			out = append(out, copyEvent(ev))
		}
	}
	return out, nil
}

// ── QueueRepository ───────────────────────────────────────────────────────────

type fakeQueueRepo struct{ s *memStore }

var _ repository.QueueRepository = (*fakeQueueRepo)(nil)

func (r *fakeQueueRepo) Create(_ context.Context, ticket *entity.QueueTicket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.tickets {
		if t.TenantID == ticket.TenantID && t.SaleID == ticket.SaleID && t.Status == entity.TicketPending {
			return domain.ErrDuplicate
		}
	}
	r.s.tickets = append(r.s.tickets, copyTicket(ticket))
	return nil
}

func (r *fakeQueueRepo) GetByID(_ context.Context, id string) (*entity.QueueTicket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.tickets {
		if t.ID == id {
			return copyTicket(t), nil
		}
	}
	return nil, nil
}

func (r *fakeQueueRepo) GetPendingBySale(_ context.Context, tenantID, saleID string) (*entity.QueueTicket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.tickets {
		if t.TenantID == tenantID && t.SaleID == saleID && t.Status == entity.TicketPending {
			return copyTicket(t), nil
		}
	}
	return nil, nil
}

func (r *fakeQueueRepo) GetByDocument(_ context.Context, docID string) (*entity.QueueTicket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := len(r.s.tickets) - 1; i >= 0; i-- {
		if r.s.tickets[i].FiscalDocumentID == docID {
			return copyTicket(r.s.tickets[i]), nil
		}
	}
	return nil, nil
}

func (r *fakeQueueRepo) ListPending(_ context.Context, limit int) ([]*entity.QueueTicket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.QueueTicket
	for _, t := range r.s.tickets {
		if t.Status == entity.TicketPending {
			out = append(out, copyTicket(t))
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (r *fakeQueueRepo) CountPending(_ context.Context) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, t := range r.s.tickets {
		if t.Status == entity.TicketPending {
			n++
		}
	}
	return n, nil
}

func (r *fakeQueueRepo) update(id string, fn func(*entity.QueueTicket)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.tickets {
		if t.ID == id {
			fn(t)
			return nil
		}
	}
	return nil
}

func (r *fakeQueueRepo) Resolve(_ context.Context, id string) error {
	return r.update(id, func(t *entity.QueueTicket) { t.Status = entity.TicketResolved })
}

func (r *fakeQueueRepo) Flag(_ context.Context, id, lastError string) error {
	return r.update(id, func(t *entity.QueueTicket) {
		t.Status = entity.TicketFlagged
		t.LastError = lastError
	})
}

func (r *fakeQueueRepo) IncrementAttempt(_ context.Context, id, lastError string) error {
	return r.update(id, func(t *entity.QueueTicket) {
		t.AttemptCount++
		t.LastError = lastError
	})
}

func (r *fakeQueueRepo) Reopen(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.tickets {
		if t.ID == id {
			if t.Status != entity.TicketFlagged {
				return domain.ErrConflict
			}
			t.Status = entity.TicketPending
			t.AttemptCount = 0
			t.LastError = ""
			return nil
		}
	}
	return domain.ErrConflict
}

// ── TxRunner ──────────────────────────────────────────────────────────────────

// fakeTxRunner ejecuta el callback directamente sobre el store compartido.
// No emula rollback: los tests cubren caminos donde la tx entera progresa.
type fakeTxRunner struct{ s *memStore }

var _ fiscal.TxRunner = (*fakeTxRunner)(nil)

func (r *fakeTxRunner) RunFiscal(_ context.Context, fn func(
	docRepo repository.FiscalDocumentRepository,
	eventRepo repository.FiscalEventRepository,
	queueRepo repository.QueueRepository,
) error) error {
	return fn(&fakeDocRepo{s: r.s}, &fakeEventRepo{s: r.s}, &fakeQueueRepo{s: r.s})
}

// ── Submitter ─────────────────────────────────────────────────────────────────

// fakeSubmitter responde con funciones programables por test y cuenta las llamadas.
type fakeSubmitter struct {
	mu          sync.Mutex
	submitFn    func(ref string) (*provider.SubmitResult, error)
	checkFn     func(protocol string) (*provider.StatusResult, error)
	submitCalls int
	checkCalls  int
}

var _ provider.Submitter = (*fakeSubmitter)(nil)

func (f *fakeSubmitter) Submit(_ context.Context, ref string, _ *dto.InvoiceRequest) (*provider.SubmitResult, error) {
	f.mu.Lock()
	f.submitCalls++
	fn := f.submitFn
	f.mu.Unlock()
	if fn == nil {
		return nil, domain.ErrProviderUnavailable
	}
	return fn(ref)
}

func (f *fakeSubmitter) CheckStatus(_ context.Context, protocol string) (*provider.StatusResult, error) {
	f.mu.Lock()
	f.checkCalls++
	fn := f.checkFn
	f.mu.Unlock()
	if fn == nil {
		return nil, domain.ErrProviderUnavailable
	}
	return fn(protocol)
}

func (f *fakeSubmitter) calls() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submitCalls, f.checkCalls
}

// ── constructores compartidos ─────────────────────────────────────────────────

const (
	testTenantID  = "11111111-1111-1111-1111-111111111111"
	testTenantID2 = "22222222-2222-2222-2222-222222222222"
)

func testConfig() config.FiscalConfig {
	return config.FiscalConfig{
		Enabled:           true,
		BaseURL:           "https://gateway.test",
		APIKey:            "test-key",
		Timeout:           5000,
		Provider:          "focus",
		Environment:       "homologation",
		QueueCapacity:     100,
		MaxAttempts:       3,
		ReconcileInterval: 60,
	}
}

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Env: "production", Level: "error"})
}

// pipeline agrupa el stack completo del caso de uso sobre el store en memoria.
type pipeline struct {
	store        *memStore
	docRepo      *fakeDocRepo
	eventRepo    *fakeEventRepo
	queueRepo    *fakeQueueRepo
	submitter    *fakeSubmitter
	orchestrator *fiscal.Orchestrator
	emit         *fiscal.EmitInvoiceUseCase
	reconciler   *fiscal.Reconciler
	cfg          config.FiscalConfig
}

func newPipeline(cfg config.FiscalConfig) *pipeline {
	s := newMemStore()
	docRepo := &fakeDocRepo{s: s}
	eventRepo := &fakeEventRepo{s: s}
	queueRepo := &fakeQueueRepo{s: s}
	tx := &fakeTxRunner{s: s}
	sub := &fakeSubmitter{}
	log := testLogger()

	orch := fiscal.NewOrchestrator(tx, docRepo, queueRepo, sub, cfg, log)
	return &pipeline{
		store:        s,
		docRepo:      docRepo,
		eventRepo:    eventRepo,
		queueRepo:    queueRepo,
		submitter:    sub,
		orchestrator: orch,
		emit:         fiscal.NewEmitInvoiceUseCase(fiscal.NewValidator(), tx, docRepo, queueRepo, orch, cfg),
		reconciler:   fiscal.NewReconciler(queueRepo, docRepo, orch, cfg, log),
		cfg:          cfg,
	}
}

// validRequest payload completo que pasa todas las reglas de validación.
func validRequest(saleID string) dto.InvoiceRequest {
	return dto.InvoiceRequest{
		SaleID:   saleID,
		TenantID: testTenantID,
		Customer: dto.CustomerPayload{
			Name:        "Comercial Andina S.A.S.",
			TaxDocument: "900123456",
			Email:       "facturacion@andina.co",
		},
		Items: []dto.ItemPayload{
			{
				ID:       "SKU-001",
				Name:     "Café tostado 500g",
				Quantity: decimal.NewFromInt(2),
				Price:    decimal.NewFromFloat(25.50),
			},
		},
		Totals: dto.TotalsPayload{
			Amount: decimal.NewFromFloat(51.00),
		},
		Payments: []dto.PaymentPayload{
			{Method: dto.PaymentPix, Amount: decimal.NewFromFloat(51.00)},
		},
	}
}

// eventTypes proyecta los tipos de evento de un documento en orden de inserción.
func eventTypes(t *testing.T, repo *fakeEventRepo, docID string) []string {
	t.Helper()
	events, err := repo.ListByDocumentAsc(context.Background(), docID)
	require.NoError(t, err)
	out := make([]string, len(events))
	for i, ev := range events {
		out[i] = ev.EventType
	}
	return out
}
