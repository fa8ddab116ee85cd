// Package memory implementa los repositorios en memoria (desarrollo y tests).
// Las transacciones toman el lock global, trabajan sobre una copia del estado y la publican
// solo si fn termina sin error; así un Rollback descarta todos los cambios.
package memory

import (
	"context"
	"sync"

	"github.com/jhoicas/inventario-auditoria/internal/domain/entity"
	"github.com/jhoicas/inventario-auditoria/internal/domain/repository"
)

type state struct {
	items         map[string]*entity.StockItem
	movements     []*entity.Movement
	campaigns     map[string]*entity.Campaign
	campaignItems map[string][]*entity.CampaignItem
	audit         []*entity.AuditLogEntry
	billing       map[string]*entity.TenantBilling
	events        map[string]struct{}
}

func newState() *state {
	return &state{
		items:         map[string]*entity.StockItem{},
		campaigns:     map[string]*entity.Campaign{},
		campaignItems: map[string][]*entity.CampaignItem{},
		billing:       map[string]*entity.TenantBilling{},
		events:        map[string]struct{}{},
	}
}

// clone copia los contenedores y las estructuras mutables.
// Movimientos y registros de auditoría son inmutables y se comparten.
func (s *state) clone() *state {
	c := &state{
		items:         make(map[string]*entity.StockItem, len(s.items)),
		movements:     append([]*entity.Movement(nil), s.movements...),
		campaigns:     make(map[string]*entity.Campaign, len(s.campaigns)),
		campaignItems: make(map[string][]*entity.CampaignItem, len(s.campaignItems)),
		audit:         append([]*entity.AuditLogEntry(nil), s.audit...),
		billing:       make(map[string]*entity.TenantBilling, len(s.billing)),
		events:        make(map[string]struct{}, len(s.events)),
	}
	for k, v := range s.items {
		cp := *v
		c.items[k] = &cp
	}
	for k, v := range s.campaigns {
		cp := *v
		c.campaigns[k] = &cp
	}
	for k, list := range s.campaignItems {
		out := make([]*entity.CampaignItem, len(list))
		for i, it := range list {
			cp := *it
			out[i] = &cp
		}
		c.campaignItems[k] = out
	}
	for k, v := range s.billing {
		cp := *v
		c.billing[k] = &cp
	}
	for k := range s.events {
		c.events[k] = struct{}{}
	}
	return c
}

// Store estado compartido protegido por un RWMutex.
type Store struct {
	mu sync.RWMutex
	st *state
}

var _ repository.TxRunner = (*Store)(nil)

// NewStore crea un store vacío.
func NewStore() *Store {
	return &Store{st: newState()}
}

// Repos devuelve repositorios fuera de transacción (cada llamada toma el lock).
func (s *Store) Repos() repository.Repos {
	return reposFor(base{s: s})
}

// Run ejecuta fn con repositorios atados a una copia del estado. Commit = publicar la copia.
// Dentro de fn no deben usarse los repositorios de Repos(): el lock global ya está tomado.
func (s *Store) Run(ctx context.Context, fn func(r repository.Repos) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := s.st.clone()
	if err := fn(reposFor(base{s: s, tx: tx})); err != nil {
		return err
	}
	s.st = tx
	return nil
}

// UnsafeMutateAudit modifica un registro persistido sin pasar por el ledger.
// Solo para simular manipulación en tests de integridad.
func (s *Store) UnsafeMutateAudit(id string, fn func(e *entity.AuditLogEntry)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.st.audit {
		if e.ID == id {
			cp := copyEntry(e)
			fn(cp)
			s.st.audit[i] = cp
			return true
		}
	}
	return false
}

func reposFor(b base) repository.Repos {
	return repository.Repos{
		Stock:     &stockItemRepo{b},
		Movements: &movementRepo{b},
		Campaigns: &campaignRepo{b},
		Audit:     &auditRepo{b},
		Billing:   &billingRepo{b},
	}
}

type base struct {
	s  *Store
	tx *state
}

func (b base) read(fn func(st *state) error) error {
	if b.tx != nil {
		return fn(b.tx)
	}
	b.s.mu.RLock()
	defer b.s.mu.RUnlock()
	return fn(b.s.st)
}

// write fuera de transacción modifica el estado publicado directamente (autocommit).
func (b base) write(fn func(st *state) error) error {
	if b.tx != nil {
		return fn(b.tx)
	}
	b.s.mu.Lock()
	defer b.s.mu.Unlock()
	tx := b.s.st.clone()
	if err := fn(tx); err != nil {
		return err
	}
	b.s.st = tx
	return nil
}
