package entity

// InvoiceLine línea de una factura finalizada que descuenta stock.
type InvoiceLine struct {
	StockItemID string
	Qty         int64
}
