package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/inventario-auditoria/internal/application/dto"
	"github.com/jhoicas/inventario-auditoria/internal/application/stock"
	"github.com/jhoicas/inventario-auditoria/pkg/logger"
)

// StockHandler ítems de stock y su libro de movimientos (protegido).
type StockHandler struct {
	handlerBase
	uc *stock.LedgerUseCase
}

// NewStockHandler construye el handler.
func NewStockHandler(uc *stock.LedgerUseCase, log *logger.Logger) *StockHandler {
	return &StockHandler{handlerBase: handlerBase{log: log}, uc: uc}
}

// List godoc
// @Summary      Listar ítems activos con su nivel actual
// @Tags         stock
// @Security     Bearer
// @Produce      json
// @Success      200  {array}   dto.StockItemResponse
// @Failure      401  {object}  dto.ErrorResponse
// @Router       /api/stock [get]
func (h *StockHandler) List(c *fiber.Ctx) error {
	tenantID := GetTenantID(c)
	if tenantID == "" {
		return unauthorized(c)
	}
	items, err := h.uc.ListItems(c.UserContext(), tenantID)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(dto.ToStockItemList(items))
}

// Low godoc
// @Summary      Ítems en o por debajo del umbral mínimo
// @Tags         stock
// @Security     Bearer
// @Produce      json
// @Success      200  {array}   dto.StockItemResponse
// @Router       /api/stock/low [get]
func (h *StockHandler) Low(c *fiber.Ctx) error {
	tenantID := GetTenantID(c)
	if tenantID == "" {
		return unauthorized(c)
	}
	items, err := h.uc.LowStock(c.UserContext(), tenantID)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"total": len(items),
		"items": dto.ToStockItemList(items),
	})
}

// Create godoc
// @Summary      Alta de ítem de stock
// @Tags         stock
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body      dto.CreateStockItemRequest  true  "sku, name, initialLevel, minThreshold"
// @Success      201   {object}  dto.StockItemResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/stock [post]
func (h *StockHandler) Create(c *fiber.Ctx) error {
	tenantID, userID := GetTenantID(c), GetUserID(c)
	if tenantID == "" || userID == "" {
		return unauthorized(c)
	}
	var in dto.CreateStockItemRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	item, err := h.uc.CreateItem(c.UserContext(), stock.CreateItemInput{
		TenantID:     tenantID,
		UserID:       userID,
		SKU:          in.SKU,
		Name:         in.Name,
		InitialLevel: in.InitialLevel,
		MinThreshold: in.MinThreshold,
	})
	if err != nil {
		return h.respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.ToStockItemResponse(item))
}

// Movements godoc
// @Summary      Historial de movimientos de un ítem
// @Tags         stock
// @Security     Bearer
// @Produce      json
// @Param        id      path   string  true   "ID del ítem"
// @Param        limit   query  int     false  "máximo 200"
// @Param        offset  query  int     false  "desplazamiento"
// @Success      200  {array}   dto.MovementResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/stock/{id}/movements [get]
func (h *StockHandler) Movements(c *fiber.Ctx) error {
	tenantID := GetTenantID(c)
	if tenantID == "" {
		return unauthorized(c)
	}
	page := dto.NewPageRequest(c.QueryInt("limit"), c.QueryInt("offset"), dto.MovementPageDefault, dto.MovementPageMax)
	ms, err := h.uc.ListMovements(c.UserContext(), tenantID, c.Params("id"), page.Limit, page.Offset)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(dto.ToMovementList(ms))
}

// Adjust godoc
// @Summary      Registrar movimiento en el libro de stock
// @Description  IN/OUT con cantidad positiva; ADJUSTMENT con cantidad con signo. Nunca deja el nivel negativo.
// @Tags         stock
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path      string                  true  "ID del ítem"
// @Param        body  body      dto.AdjustStockRequest  true  "type, quantity, reason"
// @Success      201   {object}  dto.MovementResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/stock/{id}/adjust [post]
func (h *StockHandler) Adjust(c *fiber.Ctx) error {
	tenantID, userID := GetTenantID(c), GetUserID(c)
	if tenantID == "" || userID == "" {
		return unauthorized(c)
	}
	var in dto.AdjustStockRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	mov, err := h.uc.Adjust(c.UserContext(), stock.AdjustInput{
		TenantID:    tenantID,
		UserID:      userID,
		StockItemID: c.Params("id"),
		Type:        in.Type,
		Quantity:    in.Quantity,
		Reason:      in.Reason,
		Reference:   in.Reference,
	})
	if err != nil {
		return h.respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.ToMovementResponse(mov))
}

// Delete godoc
// @Summary      Baja lógica de un ítem
// @Tags         stock
// @Security     Bearer
// @Param        id  path  string  true  "ID del ítem"
// @Success      204
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/stock/{id} [delete]
func (h *StockHandler) Delete(c *fiber.Ctx) error {
	tenantID, userID := GetTenantID(c), GetUserID(c)
	if tenantID == "" || userID == "" {
		return unauthorized(c)
	}
	if err := h.uc.DeactivateItem(c.UserContext(), tenantID, userID, c.Params("id")); err != nil {
		return h.respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
