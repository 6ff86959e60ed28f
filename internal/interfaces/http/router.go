package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/Facturacion-api/internal/application/fiscal"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	EmitInvoice  *fiscal.EmitInvoiceUseCase
	Queue        *fiscal.SubmissionQueue
	Query        *fiscal.QueryService
	Orchestrator *fiscal.Orchestrator
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api")

	fiscalGroup := api.Group("/fiscal")
	handler := NewFiscalHandler(deps.EmitInvoice, deps.Queue, deps.Query, deps.Orchestrator)

	fiscalGroup.Post("/invoices", handler.Emit)
	fiscalGroup.Get("/queue", handler.Queue)
	fiscalGroup.Get("/documents", handler.ListDocuments)
	fiscalGroup.Post("/documents/:id/retry", handler.Retry)
	fiscalGroup.Post("/documents/:id/cancel", handler.Cancel)
	fiscalGroup.Get("/events", handler.ListEvents)
}
