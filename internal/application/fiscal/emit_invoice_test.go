package fiscal_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/Facturacion-api/internal/domain"
	"github.com/jhoicas/Facturacion-api/internal/domain/entity"
	"github.com/jhoicas/Facturacion-api/pkg/config"
)

// holdCfg deja la cola operando pero retiene los envíos: los tests de enqueue
// no dependen de la goroutine de envío.
func holdCfg() config.FiscalConfig {
	cfg := testConfig()
	cfg.Enabled = false
	return cfg
}

func TestEmit_CreaDocumentoYTicket(t *testing.T) {
	p := newPipeline(holdCfg())
	ctx := context.Background()

	out, err := p.emit.Emit(ctx, validRequest("venta-100"))
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.NotEmpty(t, out.TicketID)
	assert.NotEmpty(t, out.FiscalDocumentID)
	assert.Equal(t, entity.DocStatusQueued, out.Status)

	doc := mustGetDoc(t, p, out.FiscalDocumentID)
	assert.Equal(t, testTenantID, doc.TenantID)
	assert.Equal(t, "venta-100", doc.Ref)
	assert.Equal(t, "focus", doc.Provider)
	assert.Equal(t, "nfe", doc.DocType)
	assert.NotEmpty(t, doc.Payload, "snapshot del payload normalizado")

	ticket := mustGetTicket(t, p, out.TicketID)
	assert.Equal(t, entity.TicketPending, ticket.Status)
	assert.Equal(t, "venta-100", ticket.SaleID)
	assert.Equal(t, doc.ID, ticket.FiscalDocumentID)

	// El documento nace con su evento de encolado, en la misma transacción.
	assert.Equal(t, []string{entity.EventSubmit}, eventTypes(t, p.eventRepo, doc.ID))
}

func TestEmit_IdempotentePorVenta(t *testing.T) {
	p := newPipeline(holdCfg())
	ctx := context.Background()

	first, err := p.emit.Emit(ctx, validRequest("venta-200"))
	require.NoError(t, err)

	// El cliente reintenta la misma venta: mismo ticket, sin duplicar nada.
	second, err := p.emit.Emit(ctx, validRequest("venta-200"))
	require.NoError(t, err)
	assert.Equal(t, first.TicketID, second.TicketID)
	assert.Equal(t, first.FiscalDocumentID, second.FiscalDocumentID)

	n, err := p.queueRepo.CountPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	docs, err := p.docRepo.ListByTenant(ctx, testTenantID, "", 100, 0)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestEmit_VentasDistintasNoComparten(t *testing.T) {
	p := newPipeline(holdCfg())
	ctx := context.Background()

	a, err := p.emit.Emit(ctx, validRequest("venta-301"))
	require.NoError(t, err)
	b, err := p.emit.Emit(ctx, validRequest("venta-302"))
	require.NoError(t, err)
	assert.NotEqual(t, a.TicketID, b.TicketID)
	assert.NotEqual(t, a.FiscalDocumentID, b.FiscalDocumentID)
}

func TestEmit_ColaLlena(t *testing.T) {
	cfg := holdCfg()
	cfg.QueueCapacity = 1
	p := newPipeline(cfg)
	ctx := context.Background()

	_, err := p.emit.Emit(ctx, validRequest("venta-400"))
	require.NoError(t, err)

	_, err = p.emit.Emit(ctx, validRequest("venta-401"))
	require.ErrorIs(t, err, domain.ErrQueueFull)

	// El reintento de una venta YA encolada no cuenta contra la capacidad.
	out, err := p.emit.Emit(ctx, validRequest("venta-400"))
	require.NoError(t, err)
	assert.NotEmpty(t, out.TicketID)
}

func TestEmit_PayloadInvalido(t *testing.T) {
	p := newPipeline(holdCfg())

	in := validRequest("venta-500")
	in.Items = nil

	_, err := p.emit.Emit(context.Background(), in)
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	// Nada persiste: ni documento, ni ticket, ni eventos.
	n, cErr := p.queueRepo.CountPending(context.Background())
	require.NoError(t, cErr)
	assert.Zero(t, n)
}

func TestEmit_DocumentoActivoBloqueaReemision(t *testing.T) {
	p := newPipeline(holdCfg())
	ctx := context.Background()

	out, err := p.emit.Emit(ctx, validRequest("venta-600"))
	require.NoError(t, err)

	// El documento se autoriza y el ticket se cierra.
	doc := mustGetDoc(t, p, out.FiscalDocumentID)
	doc.Status = entity.DocStatusProcessing
	require.NoError(t, p.docRepo.Transition(ctx, doc, entity.DocStatusQueued))
	doc.Status = entity.DocStatusAuthorized
	require.NoError(t, p.docRepo.Transition(ctx, doc, entity.DocStatusProcessing))
	require.NoError(t, p.queueRepo.Resolve(ctx, out.TicketID))

	// Mientras el documento lógico siga vivo no se emite de nuevo.
	_, err = p.emit.Emit(ctx, validRequest("venta-600"))
	require.ErrorIs(t, err, domain.ErrDuplicate)
}

func TestEmit_DocumentoEnProcesoBloqueaReemision(t *testing.T) {
	p := newPipeline(holdCfg())
	ctx := context.Background()

	out, err := p.emit.Emit(ctx, validRequest("venta-650"))
	require.NoError(t, err)

	// El documento sigue en PROCESSING pero el ticket se cerró por otra vía:
	// sin ticket pendiente que devolver, el duplicado se detecta consultando
	// el documento activo, sin llegar a insertar nada.
	doc := mustGetDoc(t, p, out.FiscalDocumentID)
	doc.Status = entity.DocStatusProcessing
	require.NoError(t, p.docRepo.Transition(ctx, doc, entity.DocStatusQueued))
	require.NoError(t, p.queueRepo.Resolve(ctx, out.TicketID))

	_, err = p.emit.Emit(ctx, validRequest("venta-650"))
	require.ErrorIs(t, err, domain.ErrDuplicate)

	p.store.mu.Lock()
	defer p.store.mu.Unlock()
	assert.Len(t, p.store.docs, 1)
	assert.Len(t, p.store.tickets, 1)
}

func TestEmit_ReemisionTrasRechazo(t *testing.T) {
	p := newPipeline(holdCfg())
	ctx := context.Background()

	out, err := p.emit.Emit(ctx, validRequest("venta-700"))
	require.NoError(t, err)

	doc := mustGetDoc(t, p, out.FiscalDocumentID)
	doc.Status = entity.DocStatusProcessing
	require.NoError(t, p.docRepo.Transition(ctx, doc, entity.DocStatusQueued))
	doc.Status = entity.DocStatusRejected
	doc.Motive = "serie no habilitada"
	require.NoError(t, p.docRepo.Transition(ctx, doc, entity.DocStatusProcessing))
	require.NoError(t, p.queueRepo.Resolve(ctx, out.TicketID))

	// Tras el rechazo terminal, la misma venta produce un documento NUEVO.
	retry, err := p.emit.Emit(ctx, validRequest("venta-700"))
	require.NoError(t, err)
	assert.NotEqual(t, out.FiscalDocumentID, retry.FiscalDocumentID)

	rejected := mustGetDoc(t, p, out.FiscalDocumentID)
	assert.Equal(t, entity.DocStatusRejected, rejected.Status, "la fila rechazada no se muta")
}
