package reconciliation_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/inventario-auditoria/internal/application/audit"
	"github.com/jhoicas/inventario-auditoria/internal/application/reconciliation"
	"github.com/jhoicas/inventario-auditoria/internal/application/stock"
	"github.com/jhoicas/inventario-auditoria/internal/domain"
	"github.com/jhoicas/inventario-auditoria/internal/domain/auditsig"
	"github.com/jhoicas/inventario-auditoria/internal/domain/entity"
	"github.com/jhoicas/inventario-auditoria/internal/domain/repository"
	"github.com/jhoicas/inventario-auditoria/internal/infrastructure/memory"
	"github.com/jhoicas/inventario-auditoria/pkg/logger"
)

// ──────────────────────────────────────────────────────────────────────────────
// Mock del libro de stock
// ──────────────────────────────────────────────────────────────────────────────

type mockAdjuster struct{ mock.Mock }

func (m *mockAdjuster) Adjust(ctx context.Context, in stock.AdjustInput) (*entity.Movement, error) {
	args := m.Called(ctx, in)
	mov, _ := args.Get(0).(*entity.Movement)
	return mov, args.Error(1)
}

func forItem(id string) interface{} {
	return mock.MatchedBy(func(in stock.AdjustInput) bool { return in.StockItemID == id })
}

func newEngine(t *testing.T, adj reconciliation.Adjuster) (*reconciliation.Engine, *memory.Store) {
	t.Helper()
	ring, err := auditsig.NewKeyRing("v1", map[string]string{"v1": "k"})
	require.NoError(t, err)
	store := memory.NewStore()
	auditUC := audit.NewLedgerUseCase(store.Repos().Audit, auditsig.NewSigner(ring))
	e := reconciliation.NewEngine(adj, auditUC, reconciliation.Config{
		TolerancePct: decimal.NewFromInt(5),
		Parallelism:  2,
	}, logger.Nop())
	return e, store
}

func counted(id, sku string, system, qty int64) *entity.CampaignItem {
	return &entity.CampaignItem{StockItemID: id, SKU: sku, Name: sku, SystemQty: system, CountedQty: &qty}
}

// ──────────────────────────────────────────────────────────────────────────────
// Plan
// ──────────────────────────────────────────────────────────────────────────────

func TestPlan_VeredictosYOrden(t *testing.T) {
	e, _ := newEngine(t, &mockAdjuster{})

	rep, err := e.Plan("camp-1", []*entity.CampaignItem{
		counted("i3", "C", 100, 80),
		counted("i1", "A", 100, 104),
		counted("i2", "B", 10, 10),
	}, false)
	require.NoError(t, err)

	require.Len(t, rep.Lines, 3)
	assert.Equal(t, []string{"A", "B", "C"}, []string{rep.Lines[0].SKU, rep.Lines[1].SKU, rep.Lines[2].SKU})
	assert.Equal(t, entity.VerdictConsistent, rep.Lines[0].Verdict)
	assert.Equal(t, entity.VerdictNormal, rep.Lines[1].Verdict)
	assert.Equal(t, entity.VerdictInconsistent, rep.Lines[2].Verdict)
	assert.Equal(t, int64(-20), rep.Lines[2].Delta)
	assert.Equal(t, 3, rep.TotalItems)
}

func TestNewEngine_ToleranciaNegativaUsaLaPorDefecto(t *testing.T) {
	ring, err := auditsig.NewKeyRing("v1", map[string]string{"v1": "k"})
	require.NoError(t, err)
	store := memory.NewStore()
	auditUC := audit.NewLedgerUseCase(store.Repos().Audit, auditsig.NewSigner(ring))
	e := reconciliation.NewEngine(&mockAdjuster{}, auditUC, reconciliation.Config{TolerancePct: decimal.NewFromInt(-1)}, logger.Nop())

	rep, err := e.Plan("c", []*entity.CampaignItem{counted("i1", "A", 100, 105)}, false)
	require.NoError(t, err)
	assert.Equal(t, entity.VerdictConsistent, rep.Lines[0].Verdict)
	assert.True(t, rep.TolerancePct.Equal(decimal.NewFromInt(5)))
}

// ──────────────────────────────────────────────────────────────────────────────
// Apply
// ──────────────────────────────────────────────────────────────────────────────

func TestApply_SinSyncNoLlamaAlLibro(t *testing.T) {
	adj := &mockAdjuster{}
	e, store := newEngine(t, adj)

	rep, err := e.Plan("camp-1", []*entity.CampaignItem{counted("i1", "A", 50, 45)}, false)
	require.NoError(t, err)
	require.NoError(t, e.Apply(context.Background(), "t-1", "u-1", rep))

	adj.AssertNotCalled(t, "Adjust", mock.Anything, mock.Anything)
	entries, err := store.Repos().Audit.List(context.Background(), "t-1", repository.AuditFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, entity.ActionReconcileCampaign, entries[0].Action)
	assert.Equal(t, "false", entries[0].Details["syncStock"])
}

func TestApply_AjustaSoloDeltasDistintosDeCero(t *testing.T) {
	adj := &mockAdjuster{}
	e, _ := newEngine(t, adj)
	adj.On("Adjust", mock.Anything, mock.MatchedBy(func(in stock.AdjustInput) bool {
		return in.StockItemID == "i1" && in.Type == entity.MovementTypeADJUSTMENT &&
			in.Quantity == -5 && in.Reference == "camp-1" && in.UserID == "u-1"
	})).Return(&entity.Movement{ID: "mov-1"}, nil).Once()

	rep, err := e.Plan("camp-1", []*entity.CampaignItem{
		counted("i1", "A", 50, 45),
		counted("i2", "B", 7, 7),
	}, true)
	require.NoError(t, err)
	require.NoError(t, e.Apply(context.Background(), "t-1", "u-1", rep))

	adj.AssertExpectations(t)
	assert.Equal(t, 1, rep.AdjustmentsApplied)
	assert.True(t, rep.Lines[0].Adjusted)
	assert.Equal(t, "mov-1", rep.Lines[0].MovementID)
	assert.False(t, rep.Lines[1].Adjusted)
	assert.Empty(t, rep.Failures)
}

func TestApply_FallosPorItemNoDetienenAlResto(t *testing.T) {
	adj := &mockAdjuster{}
	e, store := newEngine(t, adj)
	adj.On("Adjust", mock.Anything, forItem("i1")).Return(nil, fmt.Errorf("adjust: %w", domain.ErrInsufficientStock))
	adj.On("Adjust", mock.Anything, forItem("i2")).Return(nil, domain.ErrNotFound)
	adj.On("Adjust", mock.Anything, forItem("i3")).Return(nil, context.DeadlineExceeded)
	adj.On("Adjust", mock.Anything, forItem("i4")).Return(nil, fmt.Errorf("conexión perdida"))
	adj.On("Adjust", mock.Anything, forItem("i5")).Return(&entity.Movement{ID: "mov-5"}, nil)

	rep, err := e.Plan("camp-1", []*entity.CampaignItem{
		counted("i1", "A", 10, 2),
		counted("i2", "B", 10, 12),
		counted("i3", "C", 10, 9),
		counted("i4", "D", 10, 1),
		counted("i5", "E", 10, 20),
	}, true)
	require.NoError(t, err)
	require.NoError(t, e.Apply(context.Background(), "t-1", "u-1", rep))

	require.Len(t, rep.Failures, 4)
	assert.Equal(t, "INSUFFICIENT_STOCK", rep.Failures[0].Error)
	assert.Equal(t, "ITEM_NOT_FOUND", rep.Failures[1].Error)
	assert.Equal(t, "TIMEOUT", rep.Failures[2].Error)
	assert.Equal(t, "ERROR: conexión perdida", rep.Failures[3].Error)
	assert.Equal(t, 1, rep.AdjustmentsApplied)
	assert.True(t, rep.Lines[4].Adjusted)

	entries, err := store.Repos().Audit.List(context.Background(), "t-1", repository.AuditFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, entity.SeverityHigh, entries[0].Severity)
	assert.Equal(t, "4", entries[0].Details["failures"])
	assert.Equal(t, "1", entries[0].Details["adjustments"])
}

// El cierre ya se confirmó: un request cancelado no corta los ajustes ni el resumen.
func TestApply_IgnoraLaCancelacionDelLlamador(t *testing.T) {
	adj := &mockAdjuster{}
	e, store := newEngine(t, adj)
	live := mock.MatchedBy(func(ctx context.Context) bool { return ctx.Err() == nil })
	adj.On("Adjust", live, forItem("i1")).Return(&entity.Movement{ID: "mov-1"}, nil).Once()
	adj.On("Adjust", live, forItem("i2")).Return(&entity.Movement{ID: "mov-2"}, nil).Once()

	rep, err := e.Plan("camp-1", []*entity.CampaignItem{
		counted("i1", "A", 10, 8),
		counted("i2", "B", 10, 13),
	}, true)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, e.Apply(ctx, "t-1", "u-1", rep))

	adj.AssertExpectations(t)
	assert.Equal(t, 2, rep.AdjustmentsApplied)
	assert.Empty(t, rep.Failures)
	entries, err := store.Repos().Audit.List(context.Background(), "t-1", repository.AuditFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, entity.ActionReconcileCampaign, entries[0].Action)
}

func TestApply_ItemDuplicadoSeAjustaUnaVez(t *testing.T) {
	adj := &mockAdjuster{}
	e, _ := newEngine(t, adj)
	adj.On("Adjust", mock.Anything, forItem("i1")).Return(&entity.Movement{ID: "mov-1"}, nil).Once()

	rep, err := e.Plan("camp-1", []*entity.CampaignItem{
		counted("i1", "A", 10, 8),
		counted("i1", "A", 10, 8),
	}, true)
	require.NoError(t, err)
	require.NoError(t, e.Apply(context.Background(), "t-1", "u-1", rep))

	adj.AssertNumberOfCalls(t, "Adjust", 1)
	assert.Equal(t, 1, rep.AdjustmentsApplied)
	assert.Len(t, rep.Failures, 1)
}
