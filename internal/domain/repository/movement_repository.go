package repository

import (
	"context"

	"github.com/jhoicas/inventario-auditoria/internal/domain/entity"
)

// MovementRepository persiste movimientos. Solo inserción: nunca se editan ni eliminan.
type MovementRepository interface {
	Create(ctx context.Context, m *entity.Movement) error
	ListByItem(ctx context.Context, tenantID, stockItemID string, limit, offset int) ([]*entity.Movement, error)
	// ExistsByReference indica si ya hay movimientos de ese tipo con la referencia dada (idempotencia por factura).
	ExistsByReference(ctx context.Context, tenantID, movementType, reference string) (bool, error)
}
