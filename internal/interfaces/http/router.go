package http

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/inventario-auditoria/internal/application/audit"
	"github.com/jhoicas/inventario-auditoria/internal/application/billing"
	"github.com/jhoicas/inventario-auditoria/internal/application/campaign"
	"github.com/jhoicas/inventario-auditoria/internal/application/stock"
	"github.com/jhoicas/inventario-auditoria/pkg/jwt"
	"github.com/jhoicas/inventario-auditoria/pkg/logger"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	StockLedger    *stock.LedgerUseCase
	CampaignUC     *campaign.UseCase
	AuditUC        *audit.LedgerUseCase
	WebhookUC      *billing.PaymentWebhookUseCase
	JWTSecret      string
	JWTIssuer      string
	RequestTimeout time.Duration
	Log            *logger.Logger
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api", RequestTimeout(deps.RequestTimeout))

	// Webhooks (público; la firma autentica al proveedor)
	webhookHandler := NewWebhookHandler(deps.WebhookUC, deps.Log)
	api.Post("/webhooks/payments", webhookHandler.Payments)

	// Rutas protegidas (requieren Bearer Token)
	protected := api.Group("/", AuthMiddleware(deps.JWTSecret, deps.JWTIssuer))
	closers := RequireRole(jwt.RoleAdmin, jwt.RoleSupervisor)

	// Campañas de conteo (antes de /stock/:id)
	campaigns := protected.Group("/stock/campaigns")
	campaignHandler := NewCampaignHandler(deps.CampaignUC, deps.Log)
	campaigns.Get("/", campaignHandler.List)
	campaigns.Post("/", campaignHandler.Create)
	campaigns.Get("/:id", campaignHandler.Get)
	campaigns.Get("/:id/items", campaignHandler.Items)
	campaigns.Put("/:id/items/:itemId", campaignHandler.RecordCount)
	campaigns.Put("/:id/suspend", campaignHandler.Suspend)
	campaigns.Put("/:id/resume", campaignHandler.Resume)
	campaigns.Put("/:id/cancel", closers, campaignHandler.Cancel)
	campaigns.Put("/:id/validate", closers, campaignHandler.Validate)
	campaigns.Get("/:id/report", campaignHandler.Report)

	// Stock
	stockGroup := protected.Group("/stock")
	stockHandler := NewStockHandler(deps.StockLedger, deps.Log)
	stockGroup.Get("/", stockHandler.List)
	stockGroup.Post("/", stockHandler.Create)
	stockGroup.Get("/low", stockHandler.Low)
	stockGroup.Get("/:id/movements", stockHandler.Movements)
	stockGroup.Post("/:id/adjust", stockHandler.Adjust)
	stockGroup.Delete("/:id", stockHandler.Delete)

	// Facturas finalizadas (descuento de stock)
	invoiceHandler := NewInvoiceHandler(deps.StockLedger, deps.Log)
	protected.Post("/invoices/:id/finalized", invoiceHandler.Finalized)

	// Bitácora
	auditGroup := protected.Group("/audit")
	auditHandler := NewAuditHandler(deps.AuditUC, deps.Log)
	auditGroup.Get("/", auditHandler.List)
	auditGroup.Get("/verify", auditHandler.Verify)
}
