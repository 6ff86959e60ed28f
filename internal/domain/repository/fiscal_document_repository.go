package repository

import (
	"context"

	"github.com/jhoicas/Facturacion-api/internal/domain/entity"
)

// FiscalDocumentRepository define el puerto de persistencia para FiscalDocument.
//
// Transition es la única vía de escritura del estado: aplica un
// compare-and-swap sobre la columna status (WHERE status = fromStatus) y
// devuelve domain.ErrConflict si otro caller se adelantó. El caller decide si
// relee y reintenta.
type FiscalDocumentRepository interface {
	Create(ctx context.Context, doc *entity.FiscalDocument) error
	GetByID(ctx context.Context, id string) (*entity.FiscalDocument, error)
	// GetActiveByRef busca el documento lógico vivo (no rechazado ni cancelado)
	// para (tenantID, provider, ref). Devuelve nil si no existe.
	GetActiveByRef(ctx context.Context, tenantID, provider, ref string) (*entity.FiscalDocument, error)
	// Transition persiste status, protocol, motive y rutas de artefactos del
	// documento, condicionado a que el estado actual en DB sea fromStatus.
	Transition(ctx context.Context, doc *entity.FiscalDocument, fromStatus string) error
	// ListByTenant lista documentos del tenant, más recientes primero.
	// docType vacío = todos los tipos.
	ListByTenant(ctx context.Context, tenantID, docType string, limit, offset int) ([]*entity.FiscalDocument, error)
	CountByTenant(ctx context.Context, tenantID, docType string) (int, error)
}
