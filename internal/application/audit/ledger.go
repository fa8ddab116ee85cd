package audit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/inventario-auditoria/internal/domain"
	"github.com/jhoicas/inventario-auditoria/internal/domain/auditsig"
	"github.com/jhoicas/inventario-auditoria/internal/domain/entity"
	"github.com/jhoicas/inventario-auditoria/internal/domain/repository"
)

// Record datos de una operación a auditar. El ledger asigna id, timestamp, versión de llave y firma.
type Record struct {
	TenantID string
	Action   string
	Resource string
	Severity string
	Actor    string
	Details  map[string]string
}

// LedgerUseCase bitácora de auditoría de solo inserción, firmada.
// Es la única fuente de verdad de "quién hizo qué y cuándo".
type LedgerUseCase struct {
	repo   repository.AuditLogRepository
	signer *auditsig.Signer
	now    func() time.Time
}

// NewLedgerUseCase construye el caso de uso. repo es el repositorio fuera de transacción (lecturas y Append).
func NewLedgerUseCase(repo repository.AuditLogRepository, signer *auditsig.Signer) *LedgerUseCase {
	return &LedgerUseCase{repo: repo, signer: signer, now: time.Now}
}

// Append firma y persiste un registro fuera de cualquier transacción.
func (uc *LedgerUseCase) Append(ctx context.Context, rec Record) (*entity.AuditLogEntry, error) {
	return uc.AppendTx(ctx, uc.repo, rec)
}

// AppendTx firma y persiste el registro con el repositorio dado (normalmente atado a la tx del caller),
// de modo que la mutación y su registro se confirman o revierten juntos.
func (uc *LedgerUseCase) AppendTx(ctx context.Context, repo repository.AuditLogRepository, rec Record) (*entity.AuditLogEntry, error) {
	if rec.TenantID == "" || rec.Action == "" || rec.Resource == "" {
		return nil, domain.ErrInvalidInput
	}
	switch rec.Severity {
	case entity.SeverityLow, entity.SeverityMedium, entity.SeverityHigh:
	default:
		return nil, domain.ErrInvalidInput
	}
	e := &entity.AuditLogEntry{
		ID:        uuid.New().String(),
		TenantID:  rec.TenantID,
		Timestamp: uc.now(),
		Action:    rec.Action,
		Resource:  rec.Resource,
		Severity:  rec.Severity,
		Actor:     rec.Actor,
		Details:   copyDetails(rec.Details),
	}
	if err := uc.signer.Sign(e); err != nil {
		return nil, fmt.Errorf("sign audit entry: %w", err)
	}
	if err := repo.Create(ctx, e); err != nil {
		return nil, fmt.Errorf("append audit entry: %w", err)
	}
	return e, nil
}

// Verify recalcula la firma y devuelve el veredicto de integridad.
func (uc *LedgerUseCase) Verify(e *entity.AuditLogEntry) bool {
	return uc.signer.Verify(e)
}

// MismatchError agrupa los registros cuya firma no coincide. Envuelve domain.ErrSignatureMismatch.
type MismatchError struct {
	TenantID string
	EntryIDs []string
	Checked  int
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("%s: tenant %s, %d de %d registros (%s)",
		domain.ErrSignatureMismatch, e.TenantID, len(e.EntryIDs), e.Checked, strings.Join(e.EntryIDs, ", "))
}

func (e *MismatchError) Unwrap() error { return domain.ErrSignatureMismatch }

// VerifyTenant recorre toda la bitácora del tenant. Devuelve *MismatchError si algún registro no verifica.
// Nunca corrige registros.
func (uc *LedgerUseCase) VerifyTenant(ctx context.Context, tenantID string) (int, error) {
	checked := 0
	var bad []string
	err := uc.repo.Each(ctx, tenantID, func(e *entity.AuditLogEntry) error {
		checked++
		if !uc.signer.Verify(e) {
			bad = append(bad, e.ID)
		}
		return nil
	})
	if err != nil {
		return checked, fmt.Errorf("walk audit log: %w", err)
	}
	if len(bad) > 0 {
		return checked, &MismatchError{TenantID: tenantID, EntryIDs: bad, Checked: checked}
	}
	return checked, nil
}

// VerifyAll verifica todos los tenants; se detiene en el primer error que no sea de firma.
func (uc *LedgerUseCase) VerifyAll(ctx context.Context) (map[string]int, error) {
	tenants, err := uc.repo.ListTenants(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	checked := make(map[string]int, len(tenants))
	var mismatches []error
	for _, t := range tenants {
		n, err := uc.VerifyTenant(ctx, t)
		checked[t] = n
		if err != nil {
			var mm *MismatchError
			if errors.As(err, &mm) {
				mismatches = append(mismatches, err)
				continue
			}
			return checked, err
		}
	}
	return checked, errors.Join(mismatches...)
}

// List devuelve registros del tenant (más recientes primero).
func (uc *LedgerUseCase) List(ctx context.Context, tenantID string, f repository.AuditFilter) ([]*entity.AuditLogEntry, error) {
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 100
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return uc.repo.List(ctx, tenantID, f)
}

func copyDetails(d map[string]string) map[string]string {
	out := make(map[string]string, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}
