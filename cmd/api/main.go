package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/jhoicas/Facturacion-api/internal/application/fiscal"
	"github.com/jhoicas/Facturacion-api/internal/infrastructure/postgres"
	"github.com/jhoicas/Facturacion-api/internal/infrastructure/provider"
	httpRouter "github.com/jhoicas/Facturacion-api/internal/interfaces/http"
	"github.com/jhoicas/Facturacion-api/pkg/config"
	"github.com/jhoicas/Facturacion-api/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: "info",
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("fiscal_environment", cfg.Fiscal.Environment).
		Bool("fiscal_enabled", cfg.Fiscal.Enabled).
		Msg("iniciando aplicación")

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	docRepo := postgres.NewFiscalDocumentRepository(pool)
	eventRepo := postgres.NewFiscalEventRepository(pool)
	queueRepo := postgres.NewQueueRepository(pool)
	txRunner := postgres.NewTxRunner(pool)

	// Cliente REST del gateway fiscal. Se construye siempre; si la emisión
	// está deshabilitada el orquestador retiene los envíos sin invocarlo.
	gateway := provider.NewClient(cfg.Fiscal)

	orchestrator := fiscal.NewOrchestrator(txRunner, docRepo, queueRepo, gateway, cfg.Fiscal, log)
	emitUC := fiscal.NewEmitInvoiceUseCase(fiscal.NewValidator(), txRunner, docRepo, queueRepo, orchestrator, cfg.Fiscal)
	queueView := fiscal.NewSubmissionQueue(queueRepo)
	queryService := fiscal.NewQueryService(docRepo, eventRepo)

	// Reconciliación: reintentos con backoff y recuperación tras reinicio.
	reconciler := fiscal.NewReconciler(queueRepo, docRepo, orchestrator, cfg.Fiscal, log)
	reconcileCtx, stopReconciler := context.WithCancel(ctx)
	go reconciler.Start(reconcileCtx)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "Facturación API",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name})
	})

	httpRouter.Router(app, httpRouter.RouterDeps{
		EmitInvoice:  emitUC,
		Queue:        queueView,
		Query:        queryService,
		Orchestrator: orchestrator,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	stopReconciler()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("aplicación detenida")
}
