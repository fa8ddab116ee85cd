package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/jhoicas/inventario-auditoria/internal/application/audit"
	"github.com/jhoicas/inventario-auditoria/internal/application/billing"
	"github.com/jhoicas/inventario-auditoria/internal/application/campaign"
	"github.com/jhoicas/inventario-auditoria/internal/application/dto"
	"github.com/jhoicas/inventario-auditoria/internal/application/reconciliation"
	"github.com/jhoicas/inventario-auditoria/internal/application/stock"
	"github.com/jhoicas/inventario-auditoria/internal/domain/auditsig"
	"github.com/jhoicas/inventario-auditoria/internal/infrastructure/postgres"
	httpRouter "github.com/jhoicas/inventario-auditoria/internal/interfaces/http"
	"github.com/jhoicas/inventario-auditoria/pkg/config"
	"github.com/jhoicas/inventario-auditoria/pkg/logger"
)

// @title                       Inventario Auditoría API
// @version                     1.0
// @description                 Stock, campañas de conteo físico con conciliación y bitácora de auditoría firmada.
// @BasePath                    /
// @securityDefinitions.apikey  Bearer
// @in                          header
// @name                        Authorization
// @description                 Bearer <token>
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:     cfg.App.Env,
		Level:   cfg.App.LogLevel,
		Service: cfg.App.Name,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Int("reconciliation_parallelism", cfg.Reconciliation.Parallelism).
		Str("tolerance_pct", cfg.Reconciliation.TolerancePct.String()).
		Msg("iniciando aplicación")

	if cfg.JWT.Secret == "" {
		log.Fatal().Msg("JWT_SECRET requerido")
	}
	keys, err := auditsig.ParseKeyRing(cfg.Audit.SigningKeys, cfg.Audit.ActiveKeyVersion)
	if err != nil {
		log.Fatal().Err(err).Msg("llaves de firma de auditoría")
	}

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	txRunner := postgres.NewTxRunner(pool)
	repos := postgres.NewRepos(pool)

	auditUC := audit.NewLedgerUseCase(repos.Audit, auditsig.NewSigner(keys))
	ledgerUC := stock.NewLedgerUseCase(txRunner, repos, auditUC)
	engine := reconciliation.NewEngine(ledgerUC, auditUC, reconciliation.Config{
		TolerancePct: cfg.Reconciliation.TolerancePct,
		Parallelism:  cfg.Reconciliation.Parallelism,
		ApplyTimeout: cfg.Reconciliation.ApplyTimeout,
	}, log.WithComponent("reconciliation"))
	campaignUC := campaign.NewUseCase(txRunner, repos, auditUC, engine, log.WithComponent("campaign"))
	webhookUC := billing.NewPaymentWebhookUseCase(txRunner, auditUC, cfg.Webhook.Secrets, log.WithComponent("webhook"))

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: cfg.HTTP.RequestTimeout + 5*time.Second,
		IdleTimeout:  time.Second * 60,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				code = fe.Code
			}
			return c.Status(code).JSON(dto.ErrorResponse{Code: "HTTP_ERROR", Message: err.Error()})
		},
	})
	app.Use(recover.New())
	app.Use(httpRouter.RequestLogger(log.WithComponent("http")))

	// Swagger UI en local: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "Inventario Auditoría API",
	}))

	httpRouter.Router(app, httpRouter.RouterDeps{
		StockLedger:    ledgerUC,
		CampaignUC:     campaignUC,
		AuditUC:        auditUC,
		WebhookUC:      webhookUC,
		JWTSecret:      cfg.JWT.Secret,
		JWTIssuer:      cfg.JWT.Issuer,
		RequestTimeout: cfg.HTTP.RequestTimeout,
		Log:            log,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("aplicación detenida")
}
