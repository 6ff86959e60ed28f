package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/Facturacion-api/internal/application/dto"
	"github.com/jhoicas/Facturacion-api/internal/application/fiscal"
	"github.com/jhoicas/Facturacion-api/internal/domain"
	"github.com/jhoicas/Facturacion-api/pkg/identifier"
)

// FiscalHandler maneja las peticiones HTTP del pipeline de emisión fiscal.
type FiscalHandler struct {
	emit         *fiscal.EmitInvoiceUseCase
	queue        *fiscal.SubmissionQueue
	query        *fiscal.QueryService
	orchestrator *fiscal.Orchestrator
}

// NewFiscalHandler construye el handler.
func NewFiscalHandler(
	emit *fiscal.EmitInvoiceUseCase,
	queue *fiscal.SubmissionQueue,
	query *fiscal.QueryService,
	orchestrator *fiscal.Orchestrator,
) *FiscalHandler {
	return &FiscalHandler{emit: emit, queue: queue, query: query, orchestrator: orchestrator}
}

// Emit godoc
// @Summary      Emitir factura electrónica
// @Description  Valida el payload, lo encola de forma idempotente por (tenant_id, sale_id) y dispara el envío al gateway fiscal.
// @Tags         fiscal
// @Accept       json
// @Produce      json
// @Param        body  body  dto.InvoiceRequest  true  "Payload de la venta"
// @Success      200   {object}  dto.SuccessResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/fiscal/invoices [post]
func (h *FiscalHandler) Emit(c *fiber.Ctx) error {
	var in dto.InvoiceRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	out, err := h.emit.Emit(c.Context(), in)
	if err != nil {
		var vErr *domain.ValidationError
		if errors.As(err, &vErr) {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
				Code:       "VALIDATION",
				Message:    "payload inválido",
				Violations: vErr.Violations,
			})
		}
		if errors.Is(err, domain.ErrQueueFull) {
			return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "QUEUE_FULL", Message: "cola de emisión llena, reintente más tarde"})
		}
		if errors.Is(err, domain.ErrDuplicate) {
			return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "DUPLICATE", Message: "ya existe un documento activo para esta venta"})
		}
		if errors.Is(err, domain.ErrInvalidInput) {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	return c.JSON(dto.SuccessResponse{Success: true, Data: out})
}

// Queue godoc
// @Summary      Ver tickets pendientes de la cola de emisión
// @Tags         fiscal
// @Produce      json
// @Param        limit  query  int  false  "Máximo de tickets (default 50)"
// @Success      200    {object}  dto.QueueResponse
// @Router       /api/fiscal/queue [get]
func (h *FiscalHandler) Queue(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	tickets, err := h.queue.Pending(c.Context(), limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	return c.JSON(dto.QueueResponse{Success: true, Queued: tickets})
}

// ListDocuments godoc
// @Summary      Listar documentos fiscales del tenant
// @Tags         fiscal
// @Produce      json
// @Param        tenant_id  query  string  true   "ID del tenant"
// @Param        doc_type   query  string  false  "Filtro por tipo de documento"
// @Param        limit      query  int     false  "Tamaño de página (default 20, máx 100)"
// @Param        offset     query  int     false  "Desplazamiento"
// @Success      200  {object}  dto.SuccessResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Router       /api/fiscal/documents [get]
func (h *FiscalHandler) ListDocuments(c *fiber.Ctx) error {
	tenantID := c.Query("tenant_id")
	if !identifier.IsValid(tenantID) {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "tenant_id es requerido y debe ser un UUID"})
	}
	page := dto.PageRequest{Limit: c.QueryInt("limit"), Offset: c.QueryInt("offset")}
	docs, pag, err := h.query.ListDocuments(c.Context(), tenantID, c.Query("doc_type"), page)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	return c.JSON(dto.SuccessResponse{Success: true, Data: docs, Pagination: pag})
}

// ListEvents godoc
// @Summary      Consultar el historial de eventos fiscales
// @Description  Requiere al menos uno de fiscal_document_id o tenant_id. Devuelve eventos más recientes primero.
// @Tags         fiscal
// @Produce      json
// @Param        fiscal_document_id  query  string  false  "ID del documento"
// @Param        tenant_id           query  string  false  "ID del tenant"
// @Param        limit               query  int     false  "Tamaño de página (default 20, máx 100)"
// @Param        offset              query  int     false  "Desplazamiento"
// @Success      200  {object}  dto.SuccessResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Router       /api/fiscal/events [get]
func (h *FiscalHandler) ListEvents(c *fiber.Ctx) error {
	page := dto.PageRequest{Limit: c.QueryInt("limit"), Offset: c.QueryInt("offset")}
	events, pag, err := h.query.ListEvents(c.Context(), c.Query("fiscal_document_id"), c.Query("tenant_id"), page)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	return c.JSON(dto.SuccessResponse{Success: true, Data: events, Pagination: pag})
}

// Retry godoc
// @Summary      Reintentar manualmente un documento atascado
// @Description  Reabre el ticket marcado (attempt_count a cero) y vuelve a disparar el envío. Solo aplica a documentos no terminales.
// @Tags         fiscal
// @Produce      json
// @Param        id         path   string  true  "ID del documento"
// @Param        tenant_id  query  string  true  "ID del tenant"
// @Success      200  {object}  dto.SuccessResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/fiscal/documents/{id}/retry [post]
func (h *FiscalHandler) Retry(c *fiber.Ctx) error {
	tenantID := c.Query("tenant_id")
	if !identifier.IsValid(tenantID) {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "tenant_id es requerido y debe ser un UUID"})
	}
	ticket, err := h.orchestrator.Retry(c.Context(), identifier.Normalize(tenantID), c.Params("id"))
	if err != nil {
		return h.documentActionError(c, err)
	}
	return c.JSON(dto.SuccessResponse{Success: true, Data: fiber.Map{
		"ticket_id":          ticket.ID,
		"fiscal_document_id": ticket.FiscalDocumentID,
		"status":             ticket.Status,
	}})
}

// Cancel godoc
// @Summary      Cancelar un documento autorizado
// @Description  Única transición válida desde AUTHORIZED. Requiere motivo.
// @Tags         fiscal
// @Accept       json
// @Produce      json
// @Param        id         path   string  true  "ID del documento"
// @Param        tenant_id  query  string  true  "ID del tenant"
// @Param        body       body   dto.CancelRequest  true  "Motivo de la cancelación"
// @Success      200  {object}  dto.SuccessResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/fiscal/documents/{id}/cancel [post]
func (h *FiscalHandler) Cancel(c *fiber.Ctx) error {
	tenantID := c.Query("tenant_id")
	if !identifier.IsValid(tenantID) {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "tenant_id es requerido y debe ser un UUID"})
	}
	var in dto.CancelRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	if in.Reason == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "reason es requerido"})
	}
	doc, err := h.orchestrator.Cancel(c.Context(), identifier.Normalize(tenantID), c.Params("id"), in.Reason)
	if err != nil {
		return h.documentActionError(c, err)
	}
	return c.JSON(dto.SuccessResponse{Success: true, Data: fiber.Map{
		"fiscal_document_id": doc.ID,
		"status":             doc.Status,
		"motive":             doc.Motive,
	}})
}

// documentActionError mapea los errores comunes de acciones sobre un documento.
func (h *FiscalHandler) documentActionError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "documento fiscal no encontrado"})
	case errors.Is(err, domain.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Code: "FORBIDDEN", Message: "el documento pertenece a otro tenant"})
	case errors.Is(err, domain.ErrInvalidTransition):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "INVALID_TRANSITION", Message: err.Error()})
	case errors.Is(err, domain.ErrConflict):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "CONFLICT", Message: "el documento cambió de estado; recargue y reintente"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
}
