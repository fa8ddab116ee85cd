package entity

import "time"

// Tipos de movimiento del libro de stock.
const (
	MovementTypeIN         = "IN"         // entrada
	MovementTypeOUT        = "OUT"        // salida
	MovementTypeADJUSTMENT = "ADJUSTMENT" // ajuste (conteo físico o corrección manual)
)

// Movement es un registro inmutable del libro de stock. Se agrega uno por cada mutación.
type Movement struct {
	ID             string
	TenantID       string
	StockItemID    string
	Type           string
	Qty            int64 // siempre positivo
	Direction      int   // +1 suma, -1 resta
	Reason         string
	Reference      string // factura o campaña que originó el movimiento
	ResultingLevel int64  // nivel tras aplicar el movimiento, capturado al confirmar
	CreatedAt      time.Time
	CreatedBy      string
}

// Signed devuelve la cantidad con signo aplicada al nivel.
func (m *Movement) Signed() int64 {
	return int64(m.Direction) * m.Qty
}

// IsValidMovementType indica si t es un tipo de movimiento soportado.
func IsValidMovementType(t string) bool {
	switch t {
	case MovementTypeIN, MovementTypeOUT, MovementTypeADJUSTMENT:
		return true
	}
	return false
}
