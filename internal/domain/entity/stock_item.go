package entity

import "time"

// StockItem representa un ítem de inventario del tenant con su nivel actual.
// CurrentLevel solo cambia a través del libro de stock y nunca es negativo.
type StockItem struct {
	ID           string
	TenantID     string
	SKU          string
	Name         string
	CurrentLevel int64
	MinThreshold int64
	Active       bool // false = eliminado del catálogo (baja lógica)
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsLow indica si el nivel actual está en o por debajo del umbral mínimo.
func (s *StockItem) IsLow() bool {
	return s.CurrentLevel <= s.MinThreshold
}
