package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Veredictos de conciliación por ítem.
const (
	VerdictNormal       = "NORMAL"
	VerdictConsistent   = "CONSISTENT"
	VerdictInconsistent = "INCONSISTENT"
)

// ReconciliationReport es el registro permanente del cierre de una campaña.
// Se persiste como JSONB junto a la campaña.
type ReconciliationReport struct {
	CampaignID         string               `json:"campaignId"`
	SyncStock          bool                 `json:"syncStock"`
	TolerancePct       decimal.Decimal      `json:"tolerancePct"`
	GeneratedAt        time.Time            `json:"generatedAt"`
	Lines              []ReconciliationLine `json:"lines"`
	TotalItems         int                  `json:"totalItems"`
	Normal             int                  `json:"normal"`
	Consistent         int                  `json:"consistent"`
	Inconsistent       int                  `json:"inconsistent"`
	AdjustmentsApplied int                  `json:"adjustmentsApplied"`
	Failures           []ItemFailure        `json:"failures"`
}

// ReconciliationLine resultado de un ítem: delta, veredicto y ajuste aplicado (si hubo sync).
type ReconciliationLine struct {
	StockItemID string          `json:"stockItemId"`
	SKU         string          `json:"sku"`
	Name        string          `json:"name"`
	SystemQty   int64           `json:"systemQty"`
	CountedQty  int64           `json:"countedQty"`
	Delta       int64           `json:"delta"`
	VariancePct decimal.Decimal `json:"variancePct"`
	Verdict     string          `json:"verdict"`
	Adjusted    bool            `json:"adjusted"`
	MovementID  string          `json:"movementId,omitempty"`
}

// ItemFailure error de ajuste de un ítem; no aborta al resto.
type ItemFailure struct {
	StockItemID string `json:"stockItemId"`
	SKU         string `json:"sku"`
	Error       string `json:"error"`
}
