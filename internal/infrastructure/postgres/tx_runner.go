package postgres

import (
	"context"
	"fmt"

	"github.com/jhoicas/inventario-auditoria/internal/domain/repository"
)

var _ repository.TxRunner = (*TxRunner)(nil)

// TxRunner ejecuta callbacks dentro de una transacción PostgreSQL.
type TxRunner struct {
	db TxBeginner
}

// NewTxRunner construye el runner con el pool.
func NewTxRunner(db TxBeginner) *TxRunner {
	return &TxRunner{db: db}
}

// NewRepos devuelve todos los repositorios atados a q (pool o tx).
func NewRepos(q Querier) repository.Repos {
	return repository.Repos{
		Stock:     NewStockItemRepository(q),
		Movements: NewMovementRepository(q),
		Campaigns: NewCampaignRepository(q),
		Audit:     NewAuditLogRepository(q),
		Billing:   NewTenantBillingRepository(q),
	}
}

// Run inicia una transacción, ejecuta fn con repos atados a la tx y hace Commit o Rollback.
func (r *TxRunner) Run(ctx context.Context, fn func(repos repository.Repos) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(context.WithoutCancel(ctx))
		}
	}()

	if err := fn(NewRepos(tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	committed = true
	return nil
}
