package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/inventario-auditoria/internal/domain/entity"
	"github.com/jhoicas/inventario-auditoria/internal/domain/repository"
)

var _ repository.AuditLogRepository = (*AuditLogRepo)(nil)

// AuditLogRepo bitácora sobre PostgreSQL. La tabla solo recibe INSERT; el rol de la app
// no tiene UPDATE ni DELETE sobre audit_logs.
type AuditLogRepo struct {
	q Querier
}

// NewAuditLogRepository construye el adaptador. Pasar pool o tx (Querier).
func NewAuditLogRepository(q Querier) *AuditLogRepo {
	return &AuditLogRepo{q: q}
}

const auditColumns = `id, tenant_id, ts, action, resource, severity, actor, details, key_version, signature`

func scanAudit(row pgx.Row) (*entity.AuditLogEntry, error) {
	var (
		e       entity.AuditLogEntry
		details []byte
	)
	if err := row.Scan(&e.ID, &e.TenantID, &e.Timestamp, &e.Action, &e.Resource, &e.Severity,
		&e.Actor, &details, &e.KeyVersion, &e.Signature); err != nil {
		return nil, err
	}
	e.Details = map[string]string{}
	if len(details) > 0 {
		if err := json.Unmarshal(details, &e.Details); err != nil {
			return nil, fmt.Errorf("decode details: %w", err)
		}
	}
	return &e, nil
}

// Create inserta un registro firmado.
func (r *AuditLogRepo) Create(ctx context.Context, e *entity.AuditLogEntry) error {
	details := e.Details
	if details == nil {
		details = map[string]string{}
	}
	payload, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("encode details: %w", err)
	}
	query := `INSERT INTO audit_logs (` + auditColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err = r.q.Exec(ctx, query, e.ID, e.TenantID, e.Timestamp, e.Action, e.Resource, e.Severity,
		e.Actor, payload, e.KeyVersion, e.Signature)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

// List lista registros del tenant con filtros opcionales, más recientes primero.
func (r *AuditLogRepo) List(ctx context.Context, tenantID string, f repository.AuditFilter) ([]*entity.AuditLogEntry, error) {
	var (
		where = []string{"tenant_id = $1"}
		args  = []any{tenantID}
	)
	if f.Action != "" {
		args = append(args, f.Action)
		where = append(where, fmt.Sprintf("action = $%d", len(args)))
	}
	if f.Resource != "" {
		args = append(args, f.Resource)
		where = append(where, fmt.Sprintf("resource = $%d", len(args)))
	}
	args = append(args, f.Limit, f.Offset)
	query := fmt.Sprintf(`SELECT %s FROM audit_logs WHERE %s ORDER BY ts DESC, id DESC LIMIT NULLIF($%d, 0) OFFSET $%d`,
		auditColumns, strings.Join(where, " AND "), len(args)-1, len(args))

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	defer rows.Close()
	var out []*entity.AuditLogEntry
	for rows.Next() {
		e, err := scanAudit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Each recorre la bitácora del tenant en orden cronológico sin cargarla entera en memoria.
func (r *AuditLogRepo) Each(ctx context.Context, tenantID string, fn func(*entity.AuditLogEntry) error) error {
	query := `SELECT ` + auditColumns + ` FROM audit_logs WHERE tenant_id = $1 ORDER BY ts, id`
	rows, err := r.q.Query(ctx, query, tenantID)
	if err != nil {
		return fmt.Errorf("walk audit logs: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		e, err := scanAudit(rows)
		if err != nil {
			return fmt.Errorf("scan audit log: %w", err)
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return rows.Err()
}

// ListTenants devuelve los tenants con registros en la bitácora.
func (r *AuditLogRepo) ListTenants(ctx context.Context) ([]string, error) {
	rows, err := r.q.Query(ctx, `SELECT DISTINCT tenant_id FROM audit_logs ORDER BY tenant_id`)
	if err != nil {
		return nil, fmt.Errorf("list audit tenants: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan tenant: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
