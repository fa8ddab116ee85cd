package reconciliation

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/jhoicas/inventario-auditoria/internal/application/audit"
	"github.com/jhoicas/inventario-auditoria/internal/application/stock"
	"github.com/jhoicas/inventario-auditoria/internal/domain"
	"github.com/jhoicas/inventario-auditoria/internal/domain/entity"
	domrec "github.com/jhoicas/inventario-auditoria/internal/domain/reconciliation"
	"github.com/jhoicas/inventario-auditoria/pkg/logger"
)

// Adjuster es el puerto hacia el libro de stock (lo implementa *stock.LedgerUseCase).
type Adjuster interface {
	Adjust(ctx context.Context, in stock.AdjustInput) (*entity.Movement, error)
}

// Config parámetros de conciliación.
type Config struct {
	TolerancePct decimal.Decimal
	Parallelism  int
	ApplyTimeout time.Duration // por defecto 5m
}

// Engine convierte un conteo ciego completo en un informe por ítem y, si se pide, en ajustes del libro.
type Engine struct {
	ledger Adjuster
	audit  *audit.LedgerUseCase
	cfg    Config
	log    *logger.Logger
	now    func() time.Time
}

// NewEngine construye el motor. Tolerancia negativa, paralelismo < 1 o ApplyTimeout <= 0 toman los
// valores por defecto.
func NewEngine(ledger Adjuster, auditUC *audit.LedgerUseCase, cfg Config, log *logger.Logger) *Engine {
	if cfg.TolerancePct.IsNegative() {
		cfg.TolerancePct = domrec.DefaultTolerancePct
	}
	if cfg.Parallelism < 1 {
		cfg.Parallelism = 8
	}
	if cfg.ApplyTimeout <= 0 {
		cfg.ApplyTimeout = 5 * time.Minute
	}
	return &Engine{ledger: ledger, audit: auditUC, cfg: cfg, log: log, now: time.Now}
}

// Plan calcula deltas y veredictos con la foto congelada de la campaña.
func (e *Engine) Plan(campaignID string, items []*entity.CampaignItem, syncStock bool) (*entity.ReconciliationReport, error) {
	return domrec.Plan(campaignID, items, syncStock, e.cfg.TolerancePct, e.now())
}

// Apply ejecuta los ajustes (si report.SyncStock) y agrega un registro resumen.
// Cada ajuste corre en su propia transacción, en paralelo entre ítems distintos y bajo el mismo
// bloqueo de fila que usa el libro de stock. Un fallo en un ítem se registra en report.Failures
// y no detiene a los demás. Solo devuelve error si no se pudo registrar el resumen.
//
// Apply corre después de confirmar el cierre, que no se reintenta: la cancelación o el deadline
// del llamador no lo cortan. Su único tope es cfg.ApplyTimeout.
func (e *Engine) Apply(ctx context.Context, tenantID, userID string, report *entity.ReconciliationReport) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.cfg.ApplyTimeout)
	defer cancel()
	if report.SyncStock {
		e.adjust(ctx, tenantID, userID, report)
	}

	_, err := e.audit.Append(ctx, audit.Record{
		TenantID: tenantID,
		Action:   entity.ActionReconcileCampaign,
		Resource: report.CampaignID,
		Severity: entity.SeverityHigh,
		Actor:    userID,
		Details: map[string]string{
			"syncStock":    strconv.FormatBool(report.SyncStock),
			"items":        strconv.Itoa(report.TotalItems),
			"normal":       strconv.Itoa(report.Normal),
			"consistent":   strconv.Itoa(report.Consistent),
			"inconsistent": strconv.Itoa(report.Inconsistent),
			"adjustments":  strconv.Itoa(report.AdjustmentsApplied),
			"failures":     strconv.Itoa(len(report.Failures)),
		},
	})
	if err != nil {
		return err
	}
	e.log.Info().
		Str("tenant_id", tenantID).
		Str("campaign_id", report.CampaignID).
		Bool("sync_stock", report.SyncStock).
		Int("items", report.TotalItems).
		Int("adjustments", report.AdjustmentsApplied).
		Int("failures", len(report.Failures)).
		Msg("campaña conciliada")
	return nil
}

func (e *Engine) adjust(ctx context.Context, tenantID, userID string, report *entity.ReconciliationReport) {
	var (
		mu       sync.Mutex
		failures []entity.ItemFailure
		applied  int
		seen     = map[string]struct{}{}
	)
	var g errgroup.Group
	g.SetLimit(e.cfg.Parallelism)

	for i := range report.Lines {
		line := &report.Lines[i]
		if line.Delta == 0 {
			continue
		}
		if _, dup := seen[line.StockItemID]; dup {
			mu.Lock()
			failures = append(failures, entity.ItemFailure{
				StockItemID: line.StockItemID, SKU: line.SKU, Error: "ítem duplicado en la campaña",
			})
			mu.Unlock()
			continue
		}
		seen[line.StockItemID] = struct{}{}

		g.Go(func() error {
			mov, err := e.ledger.Adjust(ctx, stock.AdjustInput{
				TenantID:    tenantID,
				UserID:      userID,
				StockItemID: line.StockItemID,
				Type:        entity.MovementTypeADJUSTMENT,
				Quantity:    line.Delta,
				Reason:      "conciliación de conteo físico",
				Reference:   report.CampaignID,
			})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures = append(failures, entity.ItemFailure{
					StockItemID: line.StockItemID, SKU: line.SKU, Error: failureCode(err),
				})
				e.log.Warn().Err(err).
					Str("campaign_id", report.CampaignID).
					Str("stock_item_id", line.StockItemID).
					Int64("delta", line.Delta).
					Msg("ajuste de conciliación fallido")
				return nil
			}
			line.Adjusted = true
			line.MovementID = mov.ID
			applied++
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(failures, func(i, j int) bool { return failures[i].SKU < failures[j].SKU })
	report.AdjustmentsApplied = applied
	report.Failures = append(report.Failures, failures...)
}

// failureCode traduce el error a un código estable para el informe.
func failureCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrInsufficientStock):
		return "INSUFFICIENT_STOCK"
	case errors.Is(err, domain.ErrNotFound):
		return "ITEM_NOT_FOUND"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "TIMEOUT"
	default:
		return "ERROR: " + err.Error()
	}
}
