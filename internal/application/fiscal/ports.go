package fiscal

import (
	"context"

	"github.com/jhoicas/Facturacion-api/internal/domain/repository"
)

// TxRunner ejecuta una función dentro de una transacción con los repos del
// pipeline fiscal atados a la tx. Garantiza que la actualización de estado del
// documento y el append de su evento nunca se observen por separado.
type TxRunner interface {
	RunFiscal(ctx context.Context, fn func(
		docRepo repository.FiscalDocumentRepository,
		eventRepo repository.FiscalEventRepository,
		queueRepo repository.QueueRepository,
	) error) error
}
