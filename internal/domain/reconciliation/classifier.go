// Package reconciliation: cálculo de deltas y veredictos entre cantidades contadas y de sistema.
// Usa únicamente la foto congelada de la campaña, nunca el nivel vivo del ítem.
package reconciliation

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/inventario-auditoria/internal/domain/entity"
)

var hundred = decimal.NewFromInt(100)

// DefaultTolerancePct banda de tolerancia por defecto (inclusiva).
var DefaultTolerancePct = decimal.NewFromInt(5)

// Classify devuelve el veredicto de un ítem.
// NORMAL si delta == 0; CONSISTENT si |delta| / max(system,1) <= tolerancia (límite inclusivo);
// INCONSISTENT en otro caso. Aritmética exacta: |delta|*100 <= tol*max(system,1).
func Classify(systemQty, countedQty int64, tolerancePct decimal.Decimal) string {
	delta := countedQty - systemQty
	if delta == 0 {
		return entity.VerdictNormal
	}
	lhs := decimal.NewFromInt(abs(delta)).Mul(hundred)
	rhs := tolerancePct.Mul(decimal.NewFromInt(base(systemQty)))
	if lhs.LessThanOrEqual(rhs) {
		return entity.VerdictConsistent
	}
	return entity.VerdictInconsistent
}

// VariancePct porcentaje de variación con signo, redondeado a 2 decimales.
func VariancePct(systemQty, countedQty int64) decimal.Decimal {
	delta := decimal.NewFromInt(countedQty - systemQty)
	return delta.Mul(hundred).Div(decimal.NewFromInt(base(systemQty))).Round(2)
}

// Plan construye el informe de conciliación (sin ajustes aplicados) a partir de la foto.
// Todos los ítems deben estar contados.
func Plan(campaignID string, items []*entity.CampaignItem, syncStock bool, tolerancePct decimal.Decimal, now time.Time) (*entity.ReconciliationReport, error) {
	report := &entity.ReconciliationReport{
		CampaignID:   campaignID,
		SyncStock:    syncStock,
		TolerancePct: tolerancePct,
		GeneratedAt:  now,
		Lines:        make([]entity.ReconciliationLine, 0, len(items)),
		Failures:     []entity.ItemFailure{},
	}
	for _, it := range items {
		if it.CountedQty == nil {
			return nil, fmt.Errorf("reconciliation: item %s sin cantidad contada", it.StockItemID)
		}
		counted := *it.CountedQty
		line := entity.ReconciliationLine{
			StockItemID: it.StockItemID,
			SKU:         it.SKU,
			Name:        it.Name,
			SystemQty:   it.SystemQty,
			CountedQty:  counted,
			Delta:       counted - it.SystemQty,
			VariancePct: VariancePct(it.SystemQty, counted),
			Verdict:     Classify(it.SystemQty, counted, tolerancePct),
		}
		switch line.Verdict {
		case entity.VerdictNormal:
			report.Normal++
		case entity.VerdictConsistent:
			report.Consistent++
		default:
			report.Inconsistent++
		}
		report.Lines = append(report.Lines, line)
	}
	sort.Slice(report.Lines, func(i, j int) bool { return report.Lines[i].SKU < report.Lines[j].SKU })
	report.TotalItems = len(report.Lines)
	return report, nil
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}

func base(systemQty int64) int64 {
	if systemQty < 1 {
		return 1
	}
	return systemQty
}
