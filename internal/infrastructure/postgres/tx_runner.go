package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jhoicas/Facturacion-api/internal/application/fiscal"
	"github.com/jhoicas/Facturacion-api/internal/domain/repository"
)

// Ensure TxRunner implements fiscal.TxRunner.
var _ fiscal.TxRunner = (*TxRunner)(nil)

// TxRunner ejecuta callbacks dentro de una transacción PostgreSQL.
type TxRunner struct {
	pool *pgxpool.Pool
}

// NewTxRunner construye el runner con el pool.
func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// RunFiscal inicia una transacción, ejecuta fn con los repos del pipeline
// fiscal atados a la tx y hace Commit o Rollback. Es la garantía de que el
// cambio de estado del documento y el evento de su historial entran juntos.
func (r *TxRunner) RunFiscal(ctx context.Context, fn func(
	docRepo repository.FiscalDocumentRepository,
	eventRepo repository.FiscalEventRepository,
	queueRepo repository.QueueRepository,
) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	docRepo := NewFiscalDocumentRepository(tx)
	eventRepo := NewFiscalEventRepository(tx)
	queueRepo := NewQueueRepository(tx)

	if err := fn(docRepo, eventRepo, queueRepo); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
