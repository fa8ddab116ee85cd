package repository

import (
	"context"

	"github.com/jhoicas/inventario-auditoria/internal/domain/entity"
)

// AuditFilter filtros opcionales para listar la bitácora.
type AuditFilter struct {
	Action   string
	Resource string
	Limit    int
	Offset   int
}

// AuditLogRepository bitácora de solo inserción. No existe Update ni Delete.
type AuditLogRepository interface {
	Create(ctx context.Context, e *entity.AuditLogEntry) error
	List(ctx context.Context, tenantID string, f AuditFilter) ([]*entity.AuditLogEntry, error)
	// Each recorre todos los registros del tenant en orden cronológico.
	Each(ctx context.Context, tenantID string, fn func(*entity.AuditLogEntry) error) error
	ListTenants(ctx context.Context) ([]string, error)
}
