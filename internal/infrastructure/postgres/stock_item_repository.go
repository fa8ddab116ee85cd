package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/inventario-auditoria/internal/domain"
	"github.com/jhoicas/inventario-auditoria/internal/domain/entity"
	"github.com/jhoicas/inventario-auditoria/internal/domain/repository"
)

var _ repository.StockItemRepository = (*StockItemRepo)(nil)

// StockItemRepo implementación de StockItemRepository sobre PostgreSQL (usable con pool o tx).
type StockItemRepo struct {
	q Querier
}

// NewStockItemRepository construye el adaptador. Pasar pool o tx (Querier).
func NewStockItemRepository(q Querier) *StockItemRepo {
	return &StockItemRepo{q: q}
}

const stockItemColumns = `id, tenant_id, sku, name, current_level, min_threshold, active, created_at, updated_at`

func scanStockItem(row pgx.Row) (*entity.StockItem, error) {
	var s entity.StockItem
	err := row.Scan(&s.ID, &s.TenantID, &s.SKU, &s.Name, &s.CurrentLevel, &s.MinThreshold, &s.Active, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Create persiste un ítem nuevo. SKU repetido entre los activos del tenant devuelve domain.ErrDuplicate.
func (r *StockItemRepo) Create(ctx context.Context, item *entity.StockItem) error {
	query := `
		INSERT INTO stock_items (` + stockItemColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.q.Exec(ctx, query,
		item.ID, item.TenantID, item.SKU, item.Name, item.CurrentLevel, item.MinThreshold,
		item.Active, item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("insert stock item: %w", err)
	}
	return nil
}

// GetByID obtiene un ítem del tenant (activo o no).
func (r *StockItemRepo) GetByID(ctx context.Context, tenantID, id string) (*entity.StockItem, error) {
	query := `SELECT ` + stockItemColumns + ` FROM stock_items WHERE tenant_id = $1 AND id = $2`
	s, err := scanStockItem(r.q.QueryRow(ctx, query, tenantID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get stock item: %w", err)
	}
	return s, nil
}

// GetForUpdate obtiene el ítem y bloquea la fila hasta el fin de la transacción (SELECT FOR UPDATE).
func (r *StockItemRepo) GetForUpdate(ctx context.Context, tenantID, id string) (*entity.StockItem, error) {
	query := `SELECT ` + stockItemColumns + ` FROM stock_items WHERE tenant_id = $1 AND id = $2 FOR UPDATE`
	s, err := scanStockItem(r.q.QueryRow(ctx, query, tenantID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get stock item for update: %w", err)
	}
	return s, nil
}

// ListActive lista los ítems activos del tenant ordenados por SKU.
func (r *StockItemRepo) ListActive(ctx context.Context, tenantID string) ([]*entity.StockItem, error) {
	query := `SELECT ` + stockItemColumns + ` FROM stock_items WHERE tenant_id = $1 AND active ORDER BY sku`
	return r.list(ctx, "list stock items", query, tenantID)
}

// ListLow lista los ítems activos en o por debajo de su umbral mínimo.
func (r *StockItemRepo) ListLow(ctx context.Context, tenantID string) ([]*entity.StockItem, error) {
	query := `SELECT ` + stockItemColumns + ` FROM stock_items
		WHERE tenant_id = $1 AND active AND current_level <= min_threshold ORDER BY sku`
	return r.list(ctx, "list low stock", query, tenantID)
}

func (r *StockItemRepo) list(ctx context.Context, op, query string, args ...any) ([]*entity.StockItem, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()
	var out []*entity.StockItem
	for rows.Next() {
		s, err := scanStockItem(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// UpdateLevel fija el nivel del ítem. El CHECK (current_level >= 0) respalda la invariante.
func (r *StockItemRepo) UpdateLevel(ctx context.Context, tenantID, id string, level int64, at time.Time) error {
	query := `UPDATE stock_items SET current_level = $3, updated_at = $4 WHERE tenant_id = $1 AND id = $2`
	tag, err := r.q.Exec(ctx, query, tenantID, id, level, at)
	if err != nil {
		if isCheckViolation(err) {
			return domain.ErrInsufficientStock
		}
		return fmt.Errorf("update stock level: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Deactivate da de baja lógica el ítem. Sus movimientos y fotos en campañas se conservan.
func (r *StockItemRepo) Deactivate(ctx context.Context, tenantID, id string, at time.Time) error {
	query := `UPDATE stock_items SET active = false, updated_at = $3 WHERE tenant_id = $1 AND id = $2 AND active`
	tag, err := r.q.Exec(ctx, query, tenantID, id, at)
	if err != nil {
		return fmt.Errorf("deactivate stock item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
