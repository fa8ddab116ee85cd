package dto

import (
	"time"

	"github.com/jhoicas/inventario-auditoria/internal/domain/entity"
)

// CreateStockItemRequest body para POST /api/stock.
type CreateStockItemRequest struct {
	SKU          string `json:"sku"`
	Name         string `json:"name"`
	InitialLevel int64  `json:"initialLevel"`
	MinThreshold int64  `json:"minThreshold"`
}

// AdjustStockRequest body para POST /api/stock/:id/adjust.
// Type: IN, OUT o ADJUSTMENT (cantidad con signo).
type AdjustStockRequest struct {
	Type      string `json:"type"`
	Quantity  int64  `json:"quantity"`
	Reason    string `json:"reason"`
	Reference string `json:"reference,omitempty"`
}

// StockItemResponse ítem de stock con su nivel actual.
type StockItemResponse struct {
	ID           string    `json:"id"`
	SKU          string    `json:"sku"`
	Name         string    `json:"name"`
	CurrentLevel int64     `json:"currentLevel"`
	MinThreshold int64     `json:"minThreshold"`
	Low          bool      `json:"low"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// MovementResponse movimiento del libro de stock.
type MovementResponse struct {
	ID             string    `json:"id"`
	StockItemID    string    `json:"stockItemId"`
	Type           string    `json:"type"`
	Qty            int64     `json:"qty"`
	Direction      int       `json:"direction"`
	Reason         string    `json:"reason,omitempty"`
	Reference      string    `json:"reference,omitempty"`
	ResultingLevel int64     `json:"resultingLevel"`
	CreatedAt      time.Time `json:"createdAt"`
	CreatedBy      string    `json:"createdBy,omitempty"`
}

// InvoiceFinalizedRequest body para POST /api/invoices/:id/finalized.
type InvoiceFinalizedRequest struct {
	Lines []InvoiceLineRequest `json:"lines"`
}

// InvoiceLineRequest línea de la factura finalizada.
type InvoiceLineRequest struct {
	StockItemID string `json:"stockItemId"`
	Qty         int64  `json:"qty"`
}

// InvoiceFinalizedResponse resultado del descuento. Applied=false: la factura ya se había descontado.
type InvoiceFinalizedResponse struct {
	InvoiceID string             `json:"invoiceId"`
	Applied   bool               `json:"applied"`
	Movements []MovementResponse `json:"movements"`
}

// ToStockItemResponse convierte la entidad.
func ToStockItemResponse(s *entity.StockItem) StockItemResponse {
	return StockItemResponse{
		ID:           s.ID,
		SKU:          s.SKU,
		Name:         s.Name,
		CurrentLevel: s.CurrentLevel,
		MinThreshold: s.MinThreshold,
		Low:          s.IsLow(),
		UpdatedAt:    s.UpdatedAt,
	}
}

// ToStockItemList convierte una lista de ítems.
func ToStockItemList(items []*entity.StockItem) []StockItemResponse {
	out := make([]StockItemResponse, 0, len(items))
	for _, s := range items {
		out = append(out, ToStockItemResponse(s))
	}
	return out
}

// ToMovementResponse convierte la entidad.
func ToMovementResponse(m *entity.Movement) MovementResponse {
	return MovementResponse{
		ID:             m.ID,
		StockItemID:    m.StockItemID,
		Type:           m.Type,
		Qty:            m.Qty,
		Direction:      m.Direction,
		Reason:         m.Reason,
		Reference:      m.Reference,
		ResultingLevel: m.ResultingLevel,
		CreatedAt:      m.CreatedAt,
		CreatedBy:      m.CreatedBy,
	}
}

// ToMovementList convierte una lista de movimientos.
func ToMovementList(ms []*entity.Movement) []MovementResponse {
	out := make([]MovementResponse, 0, len(ms))
	for _, m := range ms {
		out = append(out, ToMovementResponse(m))
	}
	return out
}
