package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/inventario-auditoria/internal/application/audit"
	"github.com/jhoicas/inventario-auditoria/internal/application/dto"
	"github.com/jhoicas/inventario-auditoria/internal/domain/repository"
	"github.com/jhoicas/inventario-auditoria/pkg/logger"
)

// AuditHandler consulta y verificación de la bitácora (protegido).
type AuditHandler struct {
	handlerBase
	uc *audit.LedgerUseCase
}

// NewAuditHandler construye el handler.
func NewAuditHandler(uc *audit.LedgerUseCase, log *logger.Logger) *AuditHandler {
	return &AuditHandler{handlerBase: handlerBase{log: log}, uc: uc}
}

// List godoc
// @Summary      Listar registros de auditoría
// @Tags         audit
// @Security     Bearer
// @Produce      json
// @Param        action    query  string  false  "filtrar por acción"
// @Param        resource  query  string  false  "filtrar por recurso"
// @Param        limit     query  int     false  "máximo 500"
// @Param        offset    query  int     false  "desplazamiento"
// @Success      200  {array}  dto.AuditEntryResponse
// @Router       /api/audit [get]
func (h *AuditHandler) List(c *fiber.Ctx) error {
	tenantID := GetTenantID(c)
	if tenantID == "" {
		return unauthorized(c)
	}
	var req dto.AuditListRequest
	if err := c.QueryParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_QUERY", Message: "parámetros inválidos"})
	}
	page := dto.NewPageRequest(req.Limit, req.Offset, dto.AuditPageDefault, dto.AuditPageMax)
	entries, err := h.uc.List(c.UserContext(), tenantID, repository.AuditFilter{
		Action:   req.Action,
		Resource: req.Resource,
		Limit:    page.Limit,
		Offset:   page.Offset,
	})
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(dto.ToAuditEntryList(entries))
}

// Verify godoc
// @Summary      Verificar integridad de la bitácora del tenant
// @Description  409 con los IDs cuya firma no coincide. Nunca corrige registros.
// @Tags         audit
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  dto.AuditVerifyResponse
// @Failure      409  {object}  dto.AuditVerifyResponse
// @Router       /api/audit/verify [get]
func (h *AuditHandler) Verify(c *fiber.Ctx) error {
	tenantID := GetTenantID(c)
	if tenantID == "" {
		return unauthorized(c)
	}
	checked, err := h.uc.VerifyTenant(c.UserContext(), tenantID)
	if err != nil {
		h.log.Error().Err(err).Str("tenant_id", tenantID).Msg("verificación de bitácora fallida")
		return h.respondError(c, err)
	}
	return c.JSON(dto.AuditVerifyResponse{Valid: true, Checked: checked})
}
