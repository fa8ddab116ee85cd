package billing

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/inventario-auditoria/internal/application/audit"
	"github.com/jhoicas/inventario-auditoria/internal/domain"
	"github.com/jhoicas/inventario-auditoria/internal/domain/entity"
	"github.com/jhoicas/inventario-auditoria/internal/domain/repository"
	"github.com/jhoicas/inventario-auditoria/pkg/logger"
)

// PaymentStatusSuccess único estado del proveedor que modifica la facturación del tenant.
const PaymentStatusSuccess = "SUCCESS"

// PaymentEvent cuerpo del webhook del proveedor de pagos.
type PaymentEvent struct {
	EventID   string          `json:"eventId,omitempty"`
	Provider  string          `json:"provider"`
	TenantID  string          `json:"tenantId"`
	Amount    decimal.Decimal `json:"amount"`
	Status    string          `json:"status"`
	Signature string          `json:"signature"`
}

// SignPayload calcula hex(HMAC-SHA256(secret, json canónico del evento sin la firma)).
// El monto se serializa como string decimal para que la firma no dependa del formato numérico.
func SignPayload(secret string, ev PaymentEvent) (string, error) {
	payload, err := json.Marshal(map[string]string{
		"amount":   ev.Amount.String(),
		"eventId":  ev.EventID,
		"provider": ev.Provider,
		"status":   ev.Status,
		"tenantId": ev.TenantID,
	})
	if err != nil {
		return "", err
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// WebhookResult resultado del procesamiento.
type WebhookResult struct {
	Applied   bool
	Duplicate bool
	Billing   *entity.TenantBilling
}

// PaymentWebhookUseCase actualiza el estado de facturación del tenant y lo registra en la bitácora
// en la misma transacción.
type PaymentWebhookUseCase struct {
	tx      repository.TxRunner
	audit   *audit.LedgerUseCase
	secrets map[string]string
	log     *logger.Logger
	now     func() time.Time
}

// NewPaymentWebhookUseCase construye el caso de uso. secrets: proveedor -> secreto HMAC.
func NewPaymentWebhookUseCase(tx repository.TxRunner, auditUC *audit.LedgerUseCase, secrets map[string]string, log *logger.Logger) *PaymentWebhookUseCase {
	norm := make(map[string]string, len(secrets))
	for k, v := range secrets {
		norm[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return &PaymentWebhookUseCase{tx: tx, audit: auditUC, secrets: norm, log: log, now: time.Now}
}

// Verify comprueba la firma del evento. Firma ausente, proveedor desconocido o firma distinta
// devuelven domain.ErrUnauthorized.
func (uc *PaymentWebhookUseCase) Verify(ev PaymentEvent) error {
	if ev.Signature == "" {
		return domain.ErrUnauthorized
	}
	secret, ok := uc.secrets[strings.ToLower(ev.Provider)]
	if !ok || secret == "" {
		return domain.ErrUnauthorized
	}
	expected, err := SignPayload(secret, ev)
	if err != nil {
		return err
	}
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(ev.Signature))) {
		return domain.ErrUnauthorized
	}
	return nil
}

// Process verifica y aplica el evento. Solo SUCCESS cambia estado; el resto se confirma sin efectos.
// Un SUCCESS exige EventID: la firma no lleva nonce ni fecha, y el EventID es lo único que impide
// reaplicar un evento capturado. Un EventID repetido no se aplica dos veces.
func (uc *PaymentWebhookUseCase) Process(ctx context.Context, ev PaymentEvent) (*WebhookResult, error) {
	if err := uc.Verify(ev); err != nil {
		uc.log.Warn().Str("provider", ev.Provider).Str("tenant_id", ev.TenantID).Msg("webhook de pago rechazado")
		return nil, err
	}
	if ev.TenantID == "" || ev.Amount.IsNegative() {
		return nil, domain.ErrInvalidInput
	}
	if ev.Status == PaymentStatusSuccess && strings.TrimSpace(ev.EventID) == "" {
		uc.log.Warn().Str("provider", ev.Provider).Str("tenant_id", ev.TenantID).Msg("webhook de pago sin eventId")
		return nil, domain.ErrInvalidInput
	}
	if ev.Status != PaymentStatusSuccess {
		uc.log.Info().Str("provider", ev.Provider).Str("tenant_id", ev.TenantID).Str("status", ev.Status).Msg("webhook de pago sin efecto")
		return &WebhookResult{}, nil
	}

	res := &WebhookResult{}
	err := uc.tx.Run(ctx, func(r repository.Repos) error {
		inserted, err := r.Billing.RecordEvent(ctx, ev.Provider, ev.EventID)
		if err != nil {
			return err
		}
		if !inserted {
			res.Duplicate = true
			return nil
		}
		b, err := r.Billing.Get(ctx, ev.TenantID)
		if errors.Is(err, domain.ErrNotFound) {
			b = &entity.TenantBilling{TenantID: ev.TenantID, Status: entity.BillingStatusTrial, TotalPaid: decimal.Zero}
		} else if err != nil {
			return err
		}
		now := uc.now()
		b.Status = entity.BillingStatusActive
		b.Provider = ev.Provider
		b.LastPaymentAmount = ev.Amount
		b.LastPaymentAt = &now
		b.TotalPaid = b.TotalPaid.Add(ev.Amount)
		b.UpdatedAt = now
		if err := r.Billing.Upsert(ctx, b); err != nil {
			return err
		}
		_, err = uc.audit.AppendTx(ctx, r.Audit, audit.Record{
			TenantID: ev.TenantID,
			Action:   entity.ActionPaymentReceived,
			Resource: ev.TenantID,
			Severity: entity.SeverityMedium,
			Actor:    "webhook:" + ev.Provider,
			Details: map[string]string{
				"provider": ev.Provider,
				"amount":   ev.Amount.String(),
				"eventId":  ev.EventID,
				"status":   ev.Status,
			},
		})
		if err != nil {
			return err
		}
		res.Applied = true
		res.Billing = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
