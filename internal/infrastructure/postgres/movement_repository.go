package postgres

import (
	"context"
	"fmt"

	"github.com/jhoicas/inventario-auditoria/internal/domain/entity"
	"github.com/jhoicas/inventario-auditoria/internal/domain/repository"
)

var _ repository.MovementRepository = (*MovementRepo)(nil)

// MovementRepo implementación de MovementRepository (solo inserción).
type MovementRepo struct {
	q Querier
}

// NewMovementRepository construye el adaptador. Pasar pool o tx (Querier).
func NewMovementRepository(q Querier) *MovementRepo {
	return &MovementRepo{q: q}
}

// Create registra un movimiento del libro.
func (r *MovementRepo) Create(ctx context.Context, m *entity.Movement) error {
	query := `
		INSERT INTO stock_movements (id, tenant_id, stock_item_id, type, qty, direction, reason, reference, resulting_level, created_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := r.q.Exec(ctx, query,
		m.ID, m.TenantID, m.StockItemID, m.Type, m.Qty, m.Direction,
		m.Reason, m.Reference, m.ResultingLevel, m.CreatedAt, m.CreatedBy,
	)
	if err != nil {
		return fmt.Errorf("insert movement: %w", err)
	}
	return nil
}

// ListByItem lista los movimientos de un ítem, más recientes primero. limit <= 0 = sin límite.
func (r *MovementRepo) ListByItem(ctx context.Context, tenantID, stockItemID string, limit, offset int) ([]*entity.Movement, error) {
	query := `
		SELECT id, tenant_id, stock_item_id, type, qty, direction, reason, reference, resulting_level, created_at, created_by
		FROM stock_movements
		WHERE tenant_id = $1 AND stock_item_id = $2
		ORDER BY created_at DESC, id DESC
		LIMIT NULLIF($3, 0) OFFSET $4`
	rows, err := r.q.Query(ctx, query, tenantID, stockItemID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list movements: %w", err)
	}
	defer rows.Close()
	var out []*entity.Movement
	for rows.Next() {
		var m entity.Movement
		if err := rows.Scan(&m.ID, &m.TenantID, &m.StockItemID, &m.Type, &m.Qty, &m.Direction,
			&m.Reason, &m.Reference, &m.ResultingLevel, &m.CreatedAt, &m.CreatedBy); err != nil {
			return nil, fmt.Errorf("scan movement: %w", err)
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

// ExistsByReference indica si ya hay movimientos de ese tipo con la referencia dada.
func (r *MovementRepo) ExistsByReference(ctx context.Context, tenantID, movementType, reference string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM stock_movements WHERE tenant_id = $1 AND type = $2 AND reference = $3)`
	var exists bool
	if err := r.q.QueryRow(ctx, query, tenantID, movementType, reference).Scan(&exists); err != nil {
		return false, fmt.Errorf("movement exists by reference: %w", err)
	}
	return exists, nil
}
