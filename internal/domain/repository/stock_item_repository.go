package repository

import (
	"context"
	"time"

	"github.com/jhoicas/inventario-auditoria/internal/domain/entity"
)

// StockItemRepository define el puerto de persistencia para ítems de stock.
// GetForUpdate debe usarse dentro de una transacción: bloquea la fila (SELECT FOR UPDATE)
// y es el único punto de serialización de ajustes concurrentes sobre un mismo ítem.
type StockItemRepository interface {
	Create(ctx context.Context, item *entity.StockItem) error
	GetByID(ctx context.Context, tenantID, id string) (*entity.StockItem, error)
	GetForUpdate(ctx context.Context, tenantID, id string) (*entity.StockItem, error)
	ListActive(ctx context.Context, tenantID string) ([]*entity.StockItem, error)
	ListLow(ctx context.Context, tenantID string) ([]*entity.StockItem, error)
	UpdateLevel(ctx context.Context, tenantID, id string, level int64, at time.Time) error
	Deactivate(ctx context.Context, tenantID, id string, at time.Time) error
}
