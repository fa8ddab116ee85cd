package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/inventario-auditoria/internal/application/dto"
	"github.com/jhoicas/inventario-auditoria/internal/application/stock"
	"github.com/jhoicas/inventario-auditoria/internal/domain/entity"
	"github.com/jhoicas/inventario-auditoria/pkg/logger"
)

// InvoiceHandler recibe los eventos de facturas finalizadas del módulo de facturación (protegido).
type InvoiceHandler struct {
	handlerBase
	uc *stock.LedgerUseCase
}

// NewInvoiceHandler construye el handler.
func NewInvoiceHandler(uc *stock.LedgerUseCase, log *logger.Logger) *InvoiceHandler {
	return &InvoiceHandler{handlerBase: handlerBase{log: log}, uc: uc}
}

// Finalized godoc
// @Summary      Descontar stock de una factura finalizada
// @Description  Todas las líneas en una transacción. Repetir el evento no descuenta dos veces.
// @Tags         invoices
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path      string                       true  "ID de la factura"
// @Param        body  body      dto.InvoiceFinalizedRequest  true  "líneas"
// @Success      200   {object}  dto.InvoiceFinalizedResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/invoices/{id}/finalized [post]
func (h *InvoiceHandler) Finalized(c *fiber.Ctx) error {
	tenantID, userID := GetTenantID(c), GetUserID(c)
	if tenantID == "" || userID == "" {
		return unauthorized(c)
	}
	var in dto.InvoiceFinalizedRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	lines := make([]entity.InvoiceLine, 0, len(in.Lines))
	for _, l := range in.Lines {
		lines = append(lines, entity.InvoiceLine{StockItemID: l.StockItemID, Qty: l.Qty})
	}
	invoiceID := c.Params("id")
	ms, applied, err := h.uc.DecrementForInvoice(c.UserContext(), tenantID, userID, invoiceID, lines)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(dto.InvoiceFinalizedResponse{
		InvoiceID: invoiceID,
		Applied:   applied,
		Movements: dto.ToMovementList(ms),
	})
}
