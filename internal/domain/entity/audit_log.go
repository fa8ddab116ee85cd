package entity

import "time"

// Severidad de un registro de auditoría.
const (
	SeverityLow    = "LOW"
	SeverityMedium = "MEDIUM"
	SeverityHigh   = "HIGH"
)

// Acciones auditadas (verbo + tipo de recurso).
const (
	ActionCreateStockItem   = "CREATE_STOCK_ITEM"
	ActionDeleteStockItem   = "DELETE_STOCK_ITEM"
	ActionAdjustStock       = "ADJUST_STOCK"
	ActionDecrementInvoice  = "DECREMENT_INVOICE"
	ActionCreateCampaign    = "CREATE_CAMPAIGN"
	ActionRecordCount       = "RECORD_COUNT"
	ActionSuspendCampaign   = "SUSPEND_CAMPAIGN"
	ActionResumeCampaign    = "RESUME_CAMPAIGN"
	ActionCancelCampaign    = "CANCEL_CAMPAIGN"
	ActionValidateCampaign  = "VALIDATE_CAMPAIGN"
	ActionReconcileCampaign = "RECONCILE_CAMPAIGN"
	ActionPaymentReceived   = "PAYMENT_RECEIVED"
)

// AuditLogEntry registro firmado e inmutable de una operación que cambia estado.
// Signature = hex(SHA256(json canónico sin firma + secreto[KeyVersion])).
type AuditLogEntry struct {
	ID         string
	TenantID   string
	Timestamp  time.Time
	Action     string
	Resource   string
	Severity   string
	Actor      string
	Details    map[string]string
	KeyVersion string
	Signature  string
}
