package http

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/inventario-auditoria/internal/application/audit"
	"github.com/jhoicas/inventario-auditoria/internal/application/dto"
	"github.com/jhoicas/inventario-auditoria/internal/domain"
)

type errorMapping struct {
	target  error
	status  int
	code    string
	message string
}

// Orden relevante: el primer sentinel que coincide con errors.Is gana.
var errorMappings = []errorMapping{
	{domain.ErrCampaignConflict, fiber.StatusConflict, "CAMPAIGN_CONFLICT", "ya existe una campaña activa"},
	{domain.ErrInvalidTransition, fiber.StatusConflict, "INVALID_TRANSITION", "la campaña no admite esta operación en su estado actual"},
	{domain.ErrIncompleteCount, fiber.StatusConflict, "INCOMPLETE_COUNT", "hay ítems sin cantidad contada"},
	{domain.ErrInsufficientStock, fiber.StatusConflict, "INSUFFICIENT_STOCK", "stock insuficiente"},
	{domain.ErrDuplicate, fiber.StatusConflict, "DUPLICATE", "el recurso ya existe"},
	{domain.ErrNotFound, fiber.StatusNotFound, "NOT_FOUND", "recurso no encontrado"},
	{domain.ErrInvalidInput, fiber.StatusBadRequest, "VALIDATION", "datos inválidos"},
	{domain.ErrUnauthorized, fiber.StatusUnauthorized, "UNAUTHORIZED", "no autorizado"},
	{domain.ErrForbidden, fiber.StatusForbidden, "FORBIDDEN", "acceso denegado"},
}

// respondError traduce errores de dominio a HTTP. Lo no mapeado es 500 y se registra.
func (h *handlerBase) respondError(c *fiber.Ctx, err error) error {
	var mm *audit.MismatchError
	if errors.As(err, &mm) {
		return c.Status(fiber.StatusConflict).JSON(dto.AuditVerifyResponse{Valid: false, Checked: mm.Checked, Mismatched: mm.EntryIDs})
	}
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return c.Status(m.status).JSON(dto.ErrorResponse{Code: m.code, Message: m.message})
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return c.Status(fiber.StatusGatewayTimeout).JSON(dto.ErrorResponse{Code: "TIMEOUT", Message: "la operación excedió el tiempo límite"})
	}
	h.log.Error().Err(err).Str("method", c.Method()).Str("path", c.Path()).Str("tenant_id", GetTenantID(c)).Msg("error interno")
	return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: "error interno"})
}

func badBody(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
}
