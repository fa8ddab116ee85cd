package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/inventario-auditoria/internal/application/billing"
	"github.com/jhoicas/inventario-auditoria/internal/application/dto"
	"github.com/jhoicas/inventario-auditoria/pkg/logger"
)

// WebhookHandler webhooks de proveedores externos (público; autenticado por firma).
type WebhookHandler struct {
	handlerBase
	uc *billing.PaymentWebhookUseCase
}

// NewWebhookHandler construye el handler.
func NewWebhookHandler(uc *billing.PaymentWebhookUseCase, log *logger.Logger) *WebhookHandler {
	return &WebhookHandler{handlerBase: handlerBase{log: log}, uc: uc}
}

// Payments godoc
// @Summary      Webhook de pagos
// @Description  Firma HMAC-SHA256 en el campo signature. Firma inválida = 401 sin cambios de estado. SUCCESS sin eventId = 400.
// @Tags         webhooks
// @Accept       json
// @Produce      json
// @Param        body  body      billing.PaymentEvent  true  "evento del proveedor"
// @Success      200   {object}  dto.WebhookAckResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      401   {object}  dto.ErrorResponse
// @Router       /api/webhooks/payments [post]
func (h *WebhookHandler) Payments(c *fiber.Ctx) error {
	var ev billing.PaymentEvent
	if err := c.BodyParser(&ev); err != nil {
		return badBody(c)
	}
	res, err := h.uc.Process(c.UserContext(), ev)
	if err != nil {
		return h.respondError(c, err)
	}
	ack := dto.WebhookAckResponse{Received: true, Applied: res.Applied, Duplicate: res.Duplicate}
	if res.Billing != nil {
		ack.Status = res.Billing.Status
	}
	return c.JSON(ack)
}
