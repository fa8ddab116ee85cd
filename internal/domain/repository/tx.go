package repository

import "context"

// Repos agrupa los repositorios atados a una misma transacción (o al pool, fuera de ella).
type Repos struct {
	Stock     StockItemRepository
	Movements MovementRepository
	Campaigns CampaignRepository
	Audit     AuditLogRepository
	Billing   TenantBillingRepository
}

// TxRunner ejecuta fn dentro de una transacción, pasando repositorios atados a esa tx.
// Si fn devuelve error se hace Rollback; si no, Commit.
type TxRunner interface {
	Run(ctx context.Context, fn func(r Repos) error) error
}
