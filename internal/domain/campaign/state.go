// Package campaign: máquina de estados de una campaña de conteo físico (sin dependencias de infraestructura).
package campaign

import (
	"github.com/jhoicas/inventario-auditoria/internal/domain"
	"github.com/jhoicas/inventario-auditoria/internal/domain/entity"
)

// Transiciones soportadas.
const (
	TransitionSuspend  = "suspend"
	TransitionResume   = "resume"
	TransitionCancel   = "cancel"
	TransitionValidate = "validate"
)

type rule struct {
	from     []string
	to       string
	action   string
	severity string
}

var rules = map[string]rule{
	TransitionSuspend: {
		from:     []string{entity.CampaignStatusDraft},
		to:       entity.CampaignStatusSuspended,
		action:   entity.ActionSuspendCampaign,
		severity: entity.SeverityLow,
	},
	TransitionResume: {
		from:     []string{entity.CampaignStatusSuspended},
		to:       entity.CampaignStatusDraft,
		action:   entity.ActionResumeCampaign,
		severity: entity.SeverityLow,
	},
	TransitionCancel: {
		from:     []string{entity.CampaignStatusDraft, entity.CampaignStatusSuspended},
		to:       entity.CampaignStatusCancelled,
		action:   entity.ActionCancelCampaign,
		severity: entity.SeverityHigh,
	},
	TransitionValidate: {
		from:     []string{entity.CampaignStatusDraft},
		to:       entity.CampaignStatusValidated,
		action:   entity.ActionValidateCampaign,
		severity: entity.SeverityHigh,
	},
}

// Step describe el resultado de aplicar una transición válida.
type Step struct {
	From     string
	To       string
	Action   string
	Severity string
}

// Next valida la transición desde el estado actual.
// Devuelve domain.ErrInvalidTransition si el estado es terminal o incompatible.
func Next(current, transition string) (Step, error) {
	r, ok := rules[transition]
	if !ok {
		return Step{}, domain.ErrInvalidTransition
	}
	for _, from := range r.from {
		if from == current {
			return Step{From: current, To: r.to, Action: r.action, Severity: r.severity}, nil
		}
	}
	return Step{}, domain.ErrInvalidTransition
}

// CanRecordCount indica si la campaña admite registrar conteos (solo en DRAFT).
func CanRecordCount(status string) bool {
	return status == entity.CampaignStatusDraft
}

// Incomplete devuelve los ítems sin cantidad contada.
func Incomplete(items []*entity.CampaignItem) []*entity.CampaignItem {
	var out []*entity.CampaignItem
	for _, it := range items {
		if !it.IsCounted() {
			out = append(out, it)
		}
	}
	return out
}
