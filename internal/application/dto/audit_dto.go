package dto

import (
	"time"

	"github.com/jhoicas/inventario-auditoria/internal/domain/entity"
)

// AuditListRequest filtros de GET /api/audit.
type AuditListRequest struct {
	Action   string `query:"action"`
	Resource string `query:"resource"`
	Limit    int    `query:"limit"`
	Offset   int    `query:"offset"`
}

// AuditEntryResponse registro de la bitácora con su firma.
type AuditEntryResponse struct {
	ID         string            `json:"id"`
	Timestamp  time.Time         `json:"timestamp"`
	Action     string            `json:"action"`
	Resource   string            `json:"resource"`
	Severity   string            `json:"severity"`
	Actor      string            `json:"actor"`
	Details    map[string]string `json:"details,omitempty"`
	KeyVersion string            `json:"keyVersion"`
	Signature  string            `json:"signature"`
}

// AuditVerifyResponse resultado de GET /api/audit/verify.
type AuditVerifyResponse struct {
	Valid      bool     `json:"valid"`
	Checked    int      `json:"checked"`
	Mismatched []string `json:"mismatched,omitempty"`
}

// ToAuditEntryList convierte registros de la bitácora.
func ToAuditEntryList(es []*entity.AuditLogEntry) []AuditEntryResponse {
	out := make([]AuditEntryResponse, 0, len(es))
	for _, e := range es {
		out = append(out, AuditEntryResponse{
			ID:         e.ID,
			Timestamp:  e.Timestamp,
			Action:     e.Action,
			Resource:   e.Resource,
			Severity:   e.Severity,
			Actor:      e.Actor,
			Details:    e.Details,
			KeyVersion: e.KeyVersion,
			Signature:  e.Signature,
		})
	}
	return out
}
