package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/inventario-auditoria/internal/domain"
	"github.com/jhoicas/inventario-auditoria/internal/domain/entity"
	"github.com/jhoicas/inventario-auditoria/internal/domain/repository"
)

var _ repository.CampaignRepository = (*CampaignRepo)(nil)

// Índice único parcial: una sola campaña DRAFT/SUSPENDED por tenant.
const activeCampaignIndex = "campaigns_one_active_per_tenant"

// CampaignRepo implementación de CampaignRepository sobre PostgreSQL.
type CampaignRepo struct {
	q Querier
}

// NewCampaignRepository construye el adaptador. Pasar pool o tx (Querier).
func NewCampaignRepository(q Querier) *CampaignRepo {
	return &CampaignRepo{q: q}
}

const campaignColumns = `id, tenant_id, name, status, sync_stock, created_by, created_at, updated_at, closed_at, report`

func scanCampaign(row pgx.Row) (*entity.Campaign, error) {
	var (
		c      entity.Campaign
		report []byte
	)
	if err := row.Scan(&c.ID, &c.TenantID, &c.Name, &c.Status, &c.SyncStock, &c.CreatedBy,
		&c.CreatedAt, &c.UpdatedAt, &c.ClosedAt, &report); err != nil {
		return nil, err
	}
	if len(report) > 0 {
		c.Report = &entity.ReconciliationReport{}
		if err := json.Unmarshal(report, c.Report); err != nil {
			return nil, fmt.Errorf("decode report: %w", err)
		}
	}
	return &c, nil
}

// LockTenant toma un advisory lock transaccional por tenant.
func (r *CampaignRepo) LockTenant(ctx context.Context, tenantID string) error {
	if _, err := r.q.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, tenantID); err != nil {
		return fmt.Errorf("lock tenant campaigns: %w", err)
	}
	return nil
}

// HasActive indica si el tenant tiene una campaña DRAFT o SUSPENDED.
func (r *CampaignRepo) HasActive(ctx context.Context, tenantID string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM campaigns WHERE tenant_id = $1 AND status IN ('DRAFT', 'SUSPENDED'))`
	var active bool
	if err := r.q.QueryRow(ctx, query, tenantID).Scan(&active); err != nil {
		return false, fmt.Errorf("has active campaign: %w", err)
	}
	return active, nil
}

// Create inserta la campaña y su foto de ítems. Debe ejecutarse dentro de una transacción.
func (r *CampaignRepo) Create(ctx context.Context, c *entity.Campaign, items []*entity.CampaignItem) error {
	query := `
		INSERT INTO campaigns (id, tenant_id, name, status, sync_stock, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.q.Exec(ctx, query, c.ID, c.TenantID, c.Name, c.Status, c.SyncStock, c.CreatedBy, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		if violatesConstraint(err, activeCampaignIndex) {
			return domain.ErrCampaignConflict
		}
		return fmt.Errorf("insert campaign: %w", err)
	}
	itemQuery := `
		INSERT INTO campaign_items (id, campaign_id, stock_item_id, sku, name, system_qty, counted_qty, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	for _, it := range items {
		if _, err := r.q.Exec(ctx, itemQuery,
			it.ID, c.ID, it.StockItemID, it.SKU, it.Name, it.SystemQty, it.CountedQty, it.UpdatedAt,
		); err != nil {
			return fmt.Errorf("insert campaign item %s: %w", it.StockItemID, err)
		}
	}
	return nil
}

// GetByID obtiene una campaña del tenant.
func (r *CampaignRepo) GetByID(ctx context.Context, tenantID, id string) (*entity.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE tenant_id = $1 AND id = $2`
	c, err := scanCampaign(r.q.QueryRow(ctx, query, tenantID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get campaign: %w", err)
	}
	return c, nil
}

// GetForUpdate obtiene la campaña y bloquea la fila hasta el fin de la transacción.
func (r *CampaignRepo) GetForUpdate(ctx context.Context, tenantID, id string) (*entity.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE tenant_id = $1 AND id = $2 FOR UPDATE`
	c, err := scanCampaign(r.q.QueryRow(ctx, query, tenantID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get campaign for update: %w", err)
	}
	return c, nil
}

// List lista las campañas del tenant, más recientes primero.
func (r *CampaignRepo) List(ctx context.Context, tenantID string, limit, offset int) ([]*entity.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE tenant_id = $1
		ORDER BY created_at DESC LIMIT NULLIF($2, 0) OFFSET $3`
	rows, err := r.q.Query(ctx, query, tenantID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}
	defer rows.Close()
	var out []*entity.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, fmt.Errorf("scan campaign: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpdateStatus persiste estado, sync_stock y fechas de la campaña.
func (r *CampaignRepo) UpdateStatus(ctx context.Context, c *entity.Campaign) error {
	query := `
		UPDATE campaigns SET status = $3, sync_stock = $4, updated_at = $5, closed_at = $6
		WHERE tenant_id = $1 AND id = $2`
	tag, err := r.q.Exec(ctx, query, c.TenantID, c.ID, c.Status, c.SyncStock, c.UpdatedAt, c.ClosedAt)
	if err != nil {
		if violatesConstraint(err, activeCampaignIndex) {
			return domain.ErrCampaignConflict
		}
		return fmt.Errorf("update campaign status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SaveReport guarda el informe de conciliación como JSONB.
func (r *CampaignRepo) SaveReport(ctx context.Context, tenantID, id string, report *entity.ReconciliationReport) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	tag, err := r.q.Exec(ctx, `UPDATE campaigns SET report = $3 WHERE tenant_id = $1 AND id = $2`, tenantID, id, payload)
	if err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListItems devuelve la foto de ítems de la campaña ordenada por SKU.
func (r *CampaignRepo) ListItems(ctx context.Context, campaignID string) ([]*entity.CampaignItem, error) {
	query := `
		SELECT id, campaign_id, stock_item_id, sku, name, system_qty, counted_qty, updated_at
		FROM campaign_items WHERE campaign_id = $1 ORDER BY sku`
	rows, err := r.q.Query(ctx, query, campaignID)
	if err != nil {
		return nil, fmt.Errorf("list campaign items: %w", err)
	}
	defer rows.Close()
	var out []*entity.CampaignItem
	for rows.Next() {
		var it entity.CampaignItem
		if err := rows.Scan(&it.ID, &it.CampaignID, &it.StockItemID, &it.SKU, &it.Name,
			&it.SystemQty, &it.CountedQty, &it.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan campaign item: %w", err)
		}
		out = append(out, &it)
	}
	return out, rows.Err()
}

// UpdateCount registra la cantidad contada (NULL la borra).
func (r *CampaignRepo) UpdateCount(ctx context.Context, campaignID, stockItemID string, counted *int64, at time.Time) error {
	query := `UPDATE campaign_items SET counted_qty = $3, updated_at = $4 WHERE campaign_id = $1 AND stock_item_id = $2`
	tag, err := r.q.Exec(ctx, query, campaignID, stockItemID, counted, at)
	if err != nil {
		return fmt.Errorf("update count: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
