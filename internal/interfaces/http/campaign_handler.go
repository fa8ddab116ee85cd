package http

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/inventario-auditoria/internal/application/campaign"
	"github.com/jhoicas/inventario-auditoria/internal/application/dto"
	"github.com/jhoicas/inventario-auditoria/internal/domain/entity"
	"github.com/jhoicas/inventario-auditoria/pkg/logger"
)

// CampaignHandler campañas de conteo físico (protegido).
type CampaignHandler struct {
	handlerBase
	uc *campaign.UseCase
}

// NewCampaignHandler construye el handler.
func NewCampaignHandler(uc *campaign.UseCase, log *logger.Logger) *CampaignHandler {
	return &CampaignHandler{handlerBase: handlerBase{log: log}, uc: uc}
}

// Create godoc
// @Summary      Crear campaña de conteo
// @Description  Congela la cantidad de sistema de todos los ítems activos. Una sola campaña abierta por tenant.
// @Tags         campaigns
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body      dto.CreateCampaignRequest  true  "name"
// @Success      201   {object}  dto.CampaignResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/stock/campaigns [post]
func (h *CampaignHandler) Create(c *fiber.Ctx) error {
	tenantID, userID := GetTenantID(c), GetUserID(c)
	if tenantID == "" || userID == "" {
		return unauthorized(c)
	}
	var in dto.CreateCampaignRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	camp, err := h.uc.Create(c.UserContext(), tenantID, userID, in.Name)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.ToCampaignResponse(camp))
}

// List godoc
// @Summary      Listar campañas
// @Tags         campaigns
// @Security     Bearer
// @Produce      json
// @Param        limit   query  int  false  "máximo 100"
// @Param        offset  query  int  false  "desplazamiento"
// @Success      200  {array}  dto.CampaignResponse
// @Router       /api/stock/campaigns [get]
func (h *CampaignHandler) List(c *fiber.Ctx) error {
	tenantID := GetTenantID(c)
	if tenantID == "" {
		return unauthorized(c)
	}
	page := dto.NewPageRequest(c.QueryInt("limit"), c.QueryInt("offset"), dto.CampaignPageDefault, dto.CampaignPageMax)
	cs, err := h.uc.List(c.UserContext(), tenantID, page.Limit, page.Offset)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"items": dto.ToCampaignList(cs),
		"page":  page.Response(),
	})
}

// Get godoc
// @Summary      Obtener campaña
// @Tags         campaigns
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "ID de la campaña"
// @Success      200  {object}  dto.CampaignResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/stock/campaigns/{id} [get]
func (h *CampaignHandler) Get(c *fiber.Ctx) error {
	tenantID := GetTenantID(c)
	if tenantID == "" {
		return unauthorized(c)
	}
	camp, err := h.uc.Get(c.UserContext(), tenantID, c.Params("id"))
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(dto.ToCampaignResponse(camp))
}

// Items godoc
// @Summary      Ítems de la campaña
// @Description  Mientras la campaña está en DRAFT o SUSPENDED no se expone systemQty.
// @Tags         campaigns
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "ID de la campaña"
// @Success      200  {object}  dto.CampaignItemsResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/stock/campaigns/{id}/items [get]
func (h *CampaignHandler) Items(c *fiber.Ctx) error {
	tenantID := GetTenantID(c)
	if tenantID == "" {
		return unauthorized(c)
	}
	camp, items, err := h.uc.ListItems(c.UserContext(), tenantID, c.Params("id"))
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(dto.ToCampaignItems(camp, items))
}

// RecordCount godoc
// @Summary      Registrar cantidad contada
// @Description  countedQty null borra el valor. Solo en DRAFT.
// @Tags         campaigns
// @Security     Bearer
// @Accept       json
// @Param        id      path  string                  true  "ID de la campaña"
// @Param        itemId  path  string                  true  "ID del ítem de stock"
// @Param        body    body  dto.RecordCountRequest  true  "countedQty"
// @Success      204
// @Failure      400  {object}  dto.ErrorResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/stock/campaigns/{id}/items/{itemId} [put]
func (h *CampaignHandler) RecordCount(c *fiber.Ctx) error {
	tenantID, userID := GetTenantID(c), GetUserID(c)
	if tenantID == "" || userID == "" {
		return unauthorized(c)
	}
	var in dto.RecordCountRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	if err := h.uc.RecordCount(c.UserContext(), tenantID, userID, c.Params("id"), c.Params("itemId"), in.CountedQty); err != nil {
		return h.respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

type transitionFunc func(ctx context.Context, tenantID, userID, id string) (*entity.Campaign, error)

func (h *CampaignHandler) transition(c *fiber.Ctx, fn transitionFunc) error {
	tenantID, userID := GetTenantID(c), GetUserID(c)
	if tenantID == "" || userID == "" {
		return unauthorized(c)
	}
	camp, err := fn(c.UserContext(), tenantID, userID, c.Params("id"))
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(dto.ToCampaignResponse(camp))
}

// Suspend godoc
// @Summary      Suspender campaña
// @Tags         campaigns
// @Security     Bearer
// @Param        id  path  string  true  "ID de la campaña"
// @Success      200  {object}  dto.CampaignResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/stock/campaigns/{id}/suspend [put]
func (h *CampaignHandler) Suspend(c *fiber.Ctx) error { return h.transition(c, h.uc.Suspend) }

// Resume godoc
// @Summary      Reanudar campaña
// @Tags         campaigns
// @Security     Bearer
// @Param        id  path  string  true  "ID de la campaña"
// @Success      200  {object}  dto.CampaignResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/stock/campaigns/{id}/resume [put]
func (h *CampaignHandler) Resume(c *fiber.Ctx) error { return h.transition(c, h.uc.Resume) }

// Cancel godoc
// @Summary      Cancelar campaña
// @Tags         campaigns
// @Security     Bearer
// @Param        id  path  string  true  "ID de la campaña"
// @Success      200  {object}  dto.CampaignResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/stock/campaigns/{id}/cancel [put]
func (h *CampaignHandler) Cancel(c *fiber.Ctx) error { return h.transition(c, h.uc.Cancel) }

// Validate godoc
// @Summary      Validar campaña y conciliar
// @Description  Exige todos los ítems contados. Con syncStock=true ajusta el stock a lo contado.
// @Tags         campaigns
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path      string                       true  "ID de la campaña"
// @Param        body  body      dto.ValidateCampaignRequest  true  "syncStock"
// @Success      200   {object}  entity.ReconciliationReport
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/stock/campaigns/{id}/validate [put]
func (h *CampaignHandler) Validate(c *fiber.Ctx) error {
	tenantID, userID := GetTenantID(c), GetUserID(c)
	if tenantID == "" || userID == "" {
		return unauthorized(c)
	}
	var in dto.ValidateCampaignRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&in); err != nil {
			return badBody(c)
		}
	}
	camp, err := h.uc.Validate(c.UserContext(), tenantID, userID, c.Params("id"), in.SyncStock)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"campaign": dto.ToCampaignResponse(camp),
		"report":   camp.Report,
	})
}

// Report godoc
// @Summary      Informe de conciliación
// @Tags         campaigns
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "ID de la campaña"
// @Success      200  {object}  entity.ReconciliationReport
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/stock/campaigns/{id}/report [get]
func (h *CampaignHandler) Report(c *fiber.Ctx) error {
	tenantID := GetTenantID(c)
	if tenantID == "" {
		return unauthorized(c)
	}
	rep, err := h.uc.Report(c.UserContext(), tenantID, c.Params("id"))
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(rep)
}
