// Command auditverify recalcula las firmas de la bitácora de auditoría y reporta los registros
// que no coinciden. Nunca modifica registros.
//
// Salida: 0 = todo verifica, 1 = error de ejecución, 2 = hay firmas que no coinciden.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/jhoicas/inventario-auditoria/internal/application/audit"
	"github.com/jhoicas/inventario-auditoria/internal/domain"
	"github.com/jhoicas/inventario-auditoria/internal/domain/auditsig"
	"github.com/jhoicas/inventario-auditoria/internal/infrastructure/postgres"
	"github.com/jhoicas/inventario-auditoria/pkg/config"
	"github.com/jhoicas/inventario-auditoria/pkg/logger"
)

func main() {
	os.Exit(run())
}

func run() int {
	tenant := flag.String("tenant", "", "verificar solo este tenant (vacío = todos)")
	timeout := flag.Duration("timeout", 10*time.Minute, "tope total de la verificación")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "cargar configuración:", err)
		return 1
	}
	log := logger.New(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel, Service: "auditverify"})

	keys, err := auditsig.ParseKeyRing(cfg.Audit.SigningKeys, cfg.Audit.ActiveKeyVersion)
	if err != nil {
		log.Error().Err(err).Msg("llaves de firma de auditoría")
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Error().Err(err).Msg("conexión a PostgreSQL")
		return 1
	}
	defer pool.Close()

	uc := audit.NewLedgerUseCase(postgres.NewAuditLogRepository(pool), auditsig.NewSigner(keys))

	checked := map[string]int{}
	if *tenant != "" {
		n, verr := uc.VerifyTenant(ctx, *tenant)
		checked[*tenant] = n
		err = verr
	} else {
		checked, err = uc.VerifyAll(ctx)
	}

	tenants := make([]string, 0, len(checked))
	for t := range checked {
		tenants = append(tenants, t)
	}
	sort.Strings(tenants)
	for _, t := range tenants {
		log.Info().Str("tenant_id", t).Int("checked", checked[t]).Msg("bitácora recorrida")
	}

	if err == nil {
		log.Info().Int("tenants", len(tenants)).Msg("todas las firmas verifican")
		return 0
	}
	if !errors.Is(err, domain.ErrSignatureMismatch) {
		log.Error().Err(err).Msg("verificación interrumpida")
		return 1
	}
	for _, mm := range mismatches(err) {
		log.Error().
			Str("tenant_id", mm.TenantID).
			Strs("entry_ids", mm.EntryIDs).
			Int("checked", mm.Checked).
			Msg("firmas de auditoría no coinciden")
	}
	return 2
}

// mismatches extrae los *audit.MismatchError de un error simple o de un errors.Join.
func mismatches(err error) []*audit.MismatchError {
	var out []*audit.MismatchError
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			out = append(out, mismatches(e)...)
		}
		return out
	}
	var mm *audit.MismatchError
	if errors.As(err, &mm) {
		out = append(out, mm)
	}
	return out
}
