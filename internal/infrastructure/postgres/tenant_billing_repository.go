package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/inventario-auditoria/internal/domain"
	"github.com/jhoicas/inventario-auditoria/internal/domain/entity"
	"github.com/jhoicas/inventario-auditoria/internal/domain/repository"
)

var _ repository.TenantBillingRepository = (*TenantBillingRepo)(nil)

// TenantBillingRepo estado de facturación por tenant y eventos de pago procesados.
type TenantBillingRepo struct {
	q Querier
}

// NewTenantBillingRepository construye el adaptador. Pasar pool o tx (Querier).
func NewTenantBillingRepository(q Querier) *TenantBillingRepo {
	return &TenantBillingRepo{q: q}
}

// Get obtiene el estado de facturación. Los montos NUMERIC se leen como decimal.Decimal.
func (r *TenantBillingRepo) Get(ctx context.Context, tenantID string) (*entity.TenantBilling, error) {
	query := `
		SELECT tenant_id, status, provider, last_payment_amount, last_payment_at, total_paid, updated_at
		FROM tenant_billing WHERE tenant_id = $1`
	var b entity.TenantBilling
	err := r.q.QueryRow(ctx, query, tenantID).Scan(
		&b.TenantID, &b.Status, &b.Provider, &b.LastPaymentAmount, &b.LastPaymentAt, &b.TotalPaid, &b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get tenant billing: %w", err)
	}
	return &b, nil
}

// Upsert inserta o actualiza el estado del tenant.
func (r *TenantBillingRepo) Upsert(ctx context.Context, b *entity.TenantBilling) error {
	query := `
		INSERT INTO tenant_billing (tenant_id, status, provider, last_payment_amount, last_payment_at, total_paid, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (tenant_id) DO UPDATE SET
			status = EXCLUDED.status,
			provider = EXCLUDED.provider,
			last_payment_amount = EXCLUDED.last_payment_amount,
			last_payment_at = EXCLUDED.last_payment_at,
			total_paid = EXCLUDED.total_paid,
			updated_at = EXCLUDED.updated_at`
	_, err := r.q.Exec(ctx, query, b.TenantID, b.Status, b.Provider, b.LastPaymentAmount, b.LastPaymentAt, b.TotalPaid, b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert tenant billing: %w", err)
	}
	return nil
}

// RecordEvent registra (provider, eventID). false si ya existía.
func (r *TenantBillingRepo) RecordEvent(ctx context.Context, provider, eventID string) (bool, error) {
	query := `INSERT INTO payment_events (provider, event_id, received_at) VALUES ($1, $2, now()) ON CONFLICT DO NOTHING`
	tag, err := r.q.Exec(ctx, query, provider, eventID)
	if err != nil {
		return false, fmt.Errorf("record payment event: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
