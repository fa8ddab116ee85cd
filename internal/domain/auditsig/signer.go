// Package auditsig: firma de registros de auditoría.
// Algoritmo: SHA-256 sobre el JSON canónico del registro (sin la firma) concatenado con el
// secreto de la versión de llave. JSON canónico = claves ordenadas, sin espacios, timestamp UTC
// en RFC 3339 con precisión de microsegundos.

package auditsig

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jhoicas/inventario-auditoria/internal/domain/entity"
)

// Signer firma y verifica registros con las llaves de un KeyProvider.
type Signer struct {
	keys KeyProvider
}

// NewSigner crea el firmador.
func NewSigner(keys KeyProvider) *Signer {
	return &Signer{keys: keys}
}

// NormalizeTimestamp lleva el timestamp a UTC con precisión de microsegundos,
// la misma que conserva PostgreSQL (timestamptz).
func NormalizeTimestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

// Canonical devuelve el JSON canónico del registro excluyendo Signature.
func Canonical(e *entity.AuditLogEntry) ([]byte, error) {
	if e == nil {
		return nil, fmt.Errorf("auditsig: registro nil")
	}
	details := e.Details
	if details == nil {
		details = map[string]string{}
	}
	// encoding/json ordena las claves de los mapas.
	fields := map[string]any{
		"id":         e.ID,
		"tenantId":   e.TenantID,
		"timestamp":  NormalizeTimestamp(e.Timestamp).Format(time.RFC3339Nano),
		"action":     e.Action,
		"resource":   e.Resource,
		"severity":   e.Severity,
		"actor":      e.Actor,
		"details":    details,
		"keyVersion": e.KeyVersion,
	}
	return json.Marshal(fields)
}

// Compute calcula la firma hexadecimal del registro con el secreto dado.
func Compute(e *entity.AuditLogEntry, secret string) (string, error) {
	payload, err := Canonical(e)
	if err != nil {
		return "", err
	}
	h := sha256.New()
	h.Write(payload)
	h.Write([]byte(secret))
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Sign asigna la versión de llave vigente y la firma. Normaliza el timestamp antes de firmar.
func (s *Signer) Sign(e *entity.AuditLogEntry) error {
	version, secret := s.keys.Current()
	if secret == "" {
		return fmt.Errorf("auditsig: no hay llave de firma vigente")
	}
	e.Timestamp = NormalizeTimestamp(e.Timestamp)
	e.KeyVersion = version
	sig, err := Compute(e, secret)
	if err != nil {
		return err
	}
	e.Signature = sig
	return nil
}

// Verify recalcula la firma con la llave de la versión del registro.
// Devuelve false si la versión es desconocida o la firma no coincide.
func (s *Signer) Verify(e *entity.AuditLogEntry) bool {
	if e == nil || e.Signature == "" {
		return false
	}
	secret, ok := s.keys.Secret(e.KeyVersion)
	if !ok {
		return false
	}
	expected, err := Compute(e, secret)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(e.Signature)) == 1
}
