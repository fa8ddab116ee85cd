package entity

import "time"

// Estados de una campaña de conteo físico.
const (
	CampaignStatusDraft     = "DRAFT"
	CampaignStatusSuspended = "SUSPENDED"
	CampaignStatusCancelled = "CANCELLED"
	CampaignStatusValidated = "VALIDATED"
)

// Campaign es un ejercicio acotado de conteo ciego contra cantidades de sistema congeladas.
type Campaign struct {
	ID        string
	TenantID  string
	Name      string
	Status    string
	SyncStock bool
	CreatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
	ClosedAt  *time.Time
	Report    *ReconciliationReport
}

// IsActive indica si la campaña bloquea la creación de otra (DRAFT o SUSPENDED).
func (c *Campaign) IsActive() bool {
	return c.Status == CampaignStatusDraft || c.Status == CampaignStatusSuspended
}

// IsTerminal indica si la campaña ya no admite transiciones.
func (c *Campaign) IsTerminal() bool {
	return c.Status == CampaignStatusCancelled || c.Status == CampaignStatusValidated
}

// CampaignItem es la foto de un StockItem al crear la campaña.
// SKU, Name y SystemQty no cambian después de la creación.
type CampaignItem struct {
	ID          string
	CampaignID  string
	StockItemID string
	SKU         string
	Name        string
	SystemQty   int64
	CountedQty  *int64 // nil hasta que el operador registra un valor
	UpdatedAt   time.Time
}

// IsCounted indica si el ítem ya tiene cantidad contada.
func (i *CampaignItem) IsCounted() bool {
	return i.CountedQty != nil
}
