package campaign

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/inventario-auditoria/internal/application/audit"
	"github.com/jhoicas/inventario-auditoria/internal/application/reconciliation"
	"github.com/jhoicas/inventario-auditoria/internal/domain"
	domcampaign "github.com/jhoicas/inventario-auditoria/internal/domain/campaign"
	"github.com/jhoicas/inventario-auditoria/internal/domain/entity"
	"github.com/jhoicas/inventario-auditoria/internal/domain/repository"
	"github.com/jhoicas/inventario-auditoria/pkg/logger"
)

// UseCase gobierna el ciclo de vida de las campañas de conteo físico.
type UseCase struct {
	tx     repository.TxRunner
	repos  repository.Repos
	audit  *audit.LedgerUseCase
	engine *reconciliation.Engine
	log    *logger.Logger
	now    func() time.Time
}

// NewUseCase construye el caso de uso.
func NewUseCase(
	tx repository.TxRunner,
	repos repository.Repos,
	auditUC *audit.LedgerUseCase,
	engine *reconciliation.Engine,
	log *logger.Logger,
) *UseCase {
	return &UseCase{tx: tx, repos: repos, audit: auditUC, engine: engine, log: log, now: time.Now}
}

// Create abre una campaña con la foto de todos los ítems activos (CountedQty = nil).
// Falla con domain.ErrCampaignConflict si el tenant ya tiene una campaña DRAFT o SUSPENDED.
// La verificación y la inserción ocurren bajo un lock por tenant; el índice único parcial
// de la tabla respalda la invariante.
func (uc *UseCase) Create(ctx context.Context, tenantID, userID, name string) (*entity.Campaign, error) {
	name = strings.TrimSpace(name)
	if tenantID == "" || name == "" {
		return nil, domain.ErrInvalidInput
	}
	now := uc.now()
	c := &entity.Campaign{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		Name:      name,
		Status:    entity.CampaignStatusDraft,
		CreatedBy: userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	var snapshot []*entity.CampaignItem
	err := uc.tx.Run(ctx, func(r repository.Repos) error {
		if err := r.Campaigns.LockTenant(ctx, tenantID); err != nil {
			return err
		}
		active, err := r.Campaigns.HasActive(ctx, tenantID)
		if err != nil {
			return err
		}
		if active {
			return domain.ErrCampaignConflict
		}
		items, err := r.Stock.ListActive(ctx, tenantID)
		if err != nil {
			return err
		}
		snapshot = make([]*entity.CampaignItem, 0, len(items))
		for _, it := range items {
			snapshot = append(snapshot, &entity.CampaignItem{
				ID:          uuid.New().String(),
				CampaignID:  c.ID,
				StockItemID: it.ID,
				SKU:         it.SKU,
				Name:        it.Name,
				SystemQty:   it.CurrentLevel,
				UpdatedAt:   now,
			})
		}
		if err := r.Campaigns.Create(ctx, c, snapshot); err != nil {
			return err
		}
		_, err = uc.audit.AppendTx(ctx, r.Audit, audit.Record{
			TenantID: tenantID,
			Action:   entity.ActionCreateCampaign,
			Resource: c.ID,
			Severity: entity.SeverityMedium,
			Actor:    userID,
			Details: map[string]string{
				"name":  name,
				"items": strconv.Itoa(len(snapshot)),
			},
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	uc.log.Info().Str("tenant_id", tenantID).Str("campaign_id", c.ID).Int("items", len(snapshot)).Msg("campaña creada")
	return c, nil
}

// Get devuelve una campaña del tenant.
func (uc *UseCase) Get(ctx context.Context, tenantID, id string) (*entity.Campaign, error) {
	return uc.repos.Campaigns.GetByID(ctx, tenantID, id)
}

// List lista las campañas del tenant (más recientes primero).
func (uc *UseCase) List(ctx context.Context, tenantID string, limit, offset int) ([]*entity.Campaign, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return uc.repos.Campaigns.List(ctx, tenantID, limit, offset)
}

// ListItems devuelve la campaña y sus ítems. El llamador decide ocultar SystemQty mientras
// la campaña está abierta (conteo ciego).
func (uc *UseCase) ListItems(ctx context.Context, tenantID, id string) (*entity.Campaign, []*entity.CampaignItem, error) {
	c, err := uc.repos.Campaigns.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, nil, err
	}
	items, err := uc.repos.Campaigns.ListItems(ctx, c.ID)
	if err != nil {
		return nil, nil, err
	}
	return c, items, nil
}

// RecordCount registra (o borra, con nil) la cantidad contada de un ítem. Solo en DRAFT.
func (uc *UseCase) RecordCount(ctx context.Context, tenantID, userID, campaignID, stockItemID string, counted *int64) error {
	if counted != nil && *counted < 0 {
		return domain.ErrInvalidInput
	}
	return uc.tx.Run(ctx, func(r repository.Repos) error {
		c, err := r.Campaigns.GetForUpdate(ctx, tenantID, campaignID)
		if err != nil {
			return err
		}
		if !domcampaign.CanRecordCount(c.Status) {
			return domain.ErrInvalidTransition
		}
		if err := r.Campaigns.UpdateCount(ctx, c.ID, stockItemID, counted, uc.now()); err != nil {
			return err
		}
		value := "null"
		if counted != nil {
			value = strconv.FormatInt(*counted, 10)
		}
		_, err = uc.audit.AppendTx(ctx, r.Audit, audit.Record{
			TenantID: tenantID,
			Action:   entity.ActionRecordCount,
			Resource: c.ID,
			Severity: entity.SeverityLow,
			Actor:    userID,
			Details: map[string]string{
				"stockItemId": stockItemID,
				"countedQty":  value,
			},
		})
		return err
	})
}

// Suspend pausa el conteo conservando los valores registrados.
func (uc *UseCase) Suspend(ctx context.Context, tenantID, userID, id string) (*entity.Campaign, error) {
	return uc.transition(ctx, tenantID, userID, id, domcampaign.TransitionSuspend)
}

// Resume reanuda una campaña suspendida.
func (uc *UseCase) Resume(ctx context.Context, tenantID, userID, id string) (*entity.Campaign, error) {
	return uc.transition(ctx, tenantID, userID, id, domcampaign.TransitionResume)
}

// Cancel cierra la campaña sin efecto sobre el stock.
func (uc *UseCase) Cancel(ctx context.Context, tenantID, userID, id string) (*entity.Campaign, error) {
	return uc.transition(ctx, tenantID, userID, id, domcampaign.TransitionCancel)
}

func (uc *UseCase) transition(ctx context.Context, tenantID, userID, id, transition string) (*entity.Campaign, error) {
	var out *entity.Campaign
	err := uc.tx.Run(ctx, func(r repository.Repos) error {
		c, err := r.Campaigns.GetForUpdate(ctx, tenantID, id)
		if err != nil {
			return err
		}
		step, err := domcampaign.Next(c.Status, transition)
		if err != nil {
			return err
		}
		now := uc.now()
		c.Status = step.To
		c.UpdatedAt = now
		if c.IsTerminal() {
			c.ClosedAt = &now
		}
		if err := r.Campaigns.UpdateStatus(ctx, c); err != nil {
			return err
		}
		_, err = uc.audit.AppendTx(ctx, r.Audit, audit.Record{
			TenantID: tenantID,
			Action:   step.Action,
			Resource: c.ID,
			Severity: step.Severity,
			Actor:    userID,
			Details:  map[string]string{"from": step.From, "to": step.To},
		})
		if err != nil {
			return err
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Validate cierra la campaña y concilia.
//
// Ya VALIDATED: devuelve la campaña guardada, sin ajustes ni registros nuevos.
// En una transacción (con la campaña bloqueada) verifica que todos los ítems estén contados,
// pasa a VALIDATED, guarda el informe con los veredictos y registra la transición. Después,
// fuera de esa transacción, el motor aplica los ajustes (si syncStock) y actualiza el informe.
// La transición se reclama antes de ajustar: una segunda llamada nunca repite ajustes.
func (uc *UseCase) Validate(ctx context.Context, tenantID, userID, id string, syncStock bool) (*entity.Campaign, error) {
	c, err := uc.repos.Campaigns.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if c.Status == entity.CampaignStatusValidated {
		return c, nil
	}
	if _, err := domcampaign.Next(c.Status, domcampaign.TransitionValidate); err != nil {
		return nil, err
	}

	var (
		claimed *entity.Campaign
		report  *entity.ReconciliationReport
	)
	err = uc.tx.Run(ctx, func(r repository.Repos) error {
		cur, err := r.Campaigns.GetForUpdate(ctx, tenantID, id)
		if err != nil {
			return err
		}
		if cur.Status == entity.CampaignStatusValidated {
			// Otra llamada concurrente ganó el cierre.
			claimed = cur
			return nil
		}
		step, err := domcampaign.Next(cur.Status, domcampaign.TransitionValidate)
		if err != nil {
			return err
		}
		items, err := r.Campaigns.ListItems(ctx, cur.ID)
		if err != nil {
			return err
		}
		if missing := domcampaign.Incomplete(items); len(missing) > 0 {
			return fmt.Errorf("%w: %d de %d ítems sin contar", domain.ErrIncompleteCount, len(missing), len(items))
		}
		rep, err := uc.engine.Plan(cur.ID, items, syncStock)
		if err != nil {
			return err
		}
		now := uc.now()
		cur.Status = step.To
		cur.SyncStock = syncStock
		cur.ClosedAt = &now
		cur.UpdatedAt = now
		if err := r.Campaigns.UpdateStatus(ctx, cur); err != nil {
			return err
		}
		if err := r.Campaigns.SaveReport(ctx, tenantID, cur.ID, rep); err != nil {
			return err
		}
		_, err = uc.audit.AppendTx(ctx, r.Audit, audit.Record{
			TenantID: tenantID,
			Action:   step.Action,
			Resource: cur.ID,
			Severity: step.Severity,
			Actor:    userID,
			Details: map[string]string{
				"from":      step.From,
				"to":        step.To,
				"syncStock": strconv.FormatBool(syncStock),
				"items":     strconv.Itoa(len(items)),
			},
		})
		if err != nil {
			return err
		}
		cur.Report = rep
		claimed = cur
		report = rep
		return nil
	})
	if err != nil {
		return nil, err
	}
	if report == nil {
		return claimed, nil
	}

	// Desde aquí el cierre es definitivo: Apply se desliga del deadline del request.
	applyErr := uc.engine.Apply(ctx, tenantID, userID, report)
	// El informe se guarda aunque falle el resumen: los ajustes ya se confirmaron.
	saveErr := uc.repos.Campaigns.SaveReport(context.WithoutCancel(ctx), tenantID, claimed.ID, report)
	if err := errors.Join(applyErr, saveErr); err != nil {
		uc.log.Error().Err(err).Str("campaign_id", claimed.ID).Msg("cierre de campaña incompleto")
		return claimed, fmt.Errorf("finish validation: %w", err)
	}
	return claimed, nil
}

// Report devuelve el informe de conciliación de una campaña VALIDATED.
func (uc *UseCase) Report(ctx context.Context, tenantID, id string) (*entity.ReconciliationReport, error) {
	c, err := uc.repos.Campaigns.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if c.Status != entity.CampaignStatusValidated {
		return nil, domain.ErrInvalidTransition
	}
	if c.Report == nil {
		return nil, domain.ErrNotFound
	}
	return c.Report, nil
}
