package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Estados de facturación del tenant.
const (
	BillingStatusTrial   = "TRIAL"
	BillingStatusActive  = "ACTIVE"
	BillingStatusPastDue = "PAST_DUE"
)

// TenantBilling estado de suscripción del tenant, actualizado por el webhook de pagos.
type TenantBilling struct {
	TenantID          string
	Status            string
	Provider          string
	LastPaymentAmount decimal.Decimal
	LastPaymentAt     *time.Time
	TotalPaid         decimal.Decimal
	UpdatedAt         time.Time
}
