package dto

import (
	"time"

	"github.com/jhoicas/inventario-auditoria/internal/domain/entity"
)

// CreateCampaignRequest body para POST /api/stock/campaigns.
type CreateCampaignRequest struct {
	Name string `json:"name"`
}

// RecordCountRequest body para PUT /api/stock/campaigns/:id/items/:itemId.
// CountedQty null borra el valor registrado.
type RecordCountRequest struct {
	CountedQty *int64 `json:"countedQty"`
}

// ValidateCampaignRequest body para PUT /api/stock/campaigns/:id/validate.
type ValidateCampaignRequest struct {
	SyncStock bool `json:"syncStock"`
}

// CampaignResponse campaña sin su informe (el informe tiene su propia ruta).
type CampaignResponse struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Status    string     `json:"status"`
	SyncStock bool       `json:"syncStock"`
	CreatedBy string     `json:"createdBy"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	ClosedAt  *time.Time `json:"closedAt,omitempty"`
}

// CampaignItemResponse ítem de la campaña. SystemQty solo se expone cuando la campaña
// ya no está abierta: el conteo es ciego.
type CampaignItemResponse struct {
	StockItemID string    `json:"stockItemId"`
	SKU         string    `json:"sku"`
	Name        string    `json:"name"`
	SystemQty   *int64    `json:"systemQty,omitempty"`
	CountedQty  *int64    `json:"countedQty"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// CampaignItemsResponse ítems de la campaña con el avance del conteo.
type CampaignItemsResponse struct {
	CampaignID string                 `json:"campaignId"`
	Status     string                 `json:"status"`
	Total      int                    `json:"total"`
	Counted    int                    `json:"counted"`
	Items      []CampaignItemResponse `json:"items"`
}

// ToCampaignResponse convierte la entidad.
func ToCampaignResponse(c *entity.Campaign) CampaignResponse {
	return CampaignResponse{
		ID:        c.ID,
		Name:      c.Name,
		Status:    c.Status,
		SyncStock: c.SyncStock,
		CreatedBy: c.CreatedBy,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
		ClosedAt:  c.ClosedAt,
	}
}

// ToCampaignList convierte una lista de campañas.
func ToCampaignList(cs []*entity.Campaign) []CampaignResponse {
	out := make([]CampaignResponse, 0, len(cs))
	for _, c := range cs {
		out = append(out, ToCampaignResponse(c))
	}
	return out
}

// ToCampaignItems arma la vista de ítems; oculta SystemQty mientras la campaña esté abierta.
func ToCampaignItems(c *entity.Campaign, items []*entity.CampaignItem) CampaignItemsResponse {
	blind := c.IsActive()
	resp := CampaignItemsResponse{
		CampaignID: c.ID,
		Status:     c.Status,
		Total:      len(items),
		Items:      make([]CampaignItemResponse, 0, len(items)),
	}
	for _, it := range items {
		row := CampaignItemResponse{
			StockItemID: it.StockItemID,
			SKU:         it.SKU,
			Name:        it.Name,
			CountedQty:  it.CountedQty,
			UpdatedAt:   it.UpdatedAt,
		}
		if !blind {
			qty := it.SystemQty
			row.SystemQty = &qty
		}
		if it.IsCounted() {
			resp.Counted++
		}
		resp.Items = append(resp.Items, row)
	}
	return resp
}
