package repository

import (
	"context"

	"github.com/jhoicas/inventario-auditoria/internal/domain/entity"
)

// TenantBillingRepository persiste el estado de facturación del tenant.
type TenantBillingRepository interface {
	// Get devuelve domain.ErrNotFound si el tenant aún no tiene estado de facturación.
	Get(ctx context.Context, tenantID string) (*entity.TenantBilling, error)
	Upsert(ctx context.Context, b *entity.TenantBilling) error
	// RecordEvent registra el id de evento del proveedor; false si ya estaba registrado.
	RecordEvent(ctx context.Context, provider, eventID string) (bool, error)
}
