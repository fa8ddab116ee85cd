package repository

import (
	"context"
	"time"

	"github.com/jhoicas/inventario-auditoria/internal/domain/entity"
)

// CampaignRepository define el puerto de persistencia para campañas y sus ítems.
type CampaignRepository interface {
	// LockTenant serializa la creación de campañas del tenant hasta el fin de la transacción.
	LockTenant(ctx context.Context, tenantID string) error
	HasActive(ctx context.Context, tenantID string) (bool, error)
	// Create inserta la campaña y su foto de ítems. Devuelve domain.ErrCampaignConflict
	// si la restricción de una sola campaña activa por tenant se viola.
	Create(ctx context.Context, c *entity.Campaign, items []*entity.CampaignItem) error
	GetByID(ctx context.Context, tenantID, id string) (*entity.Campaign, error)
	GetForUpdate(ctx context.Context, tenantID, id string) (*entity.Campaign, error)
	List(ctx context.Context, tenantID string, limit, offset int) ([]*entity.Campaign, error)
	UpdateStatus(ctx context.Context, c *entity.Campaign) error
	SaveReport(ctx context.Context, tenantID, id string, report *entity.ReconciliationReport) error

	ListItems(ctx context.Context, campaignID string) ([]*entity.CampaignItem, error)
	UpdateCount(ctx context.Context, campaignID, stockItemID string, counted *int64, at time.Time) error
}
