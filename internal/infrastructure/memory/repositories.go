package memory

import (
	"context"
	"sort"
	"time"

	"github.com/jhoicas/inventario-auditoria/internal/domain"
	"github.com/jhoicas/inventario-auditoria/internal/domain/entity"
	"github.com/jhoicas/inventario-auditoria/internal/domain/repository"
)

var (
	_ repository.StockItemRepository     = (*stockItemRepo)(nil)
	_ repository.MovementRepository      = (*movementRepo)(nil)
	_ repository.CampaignRepository      = (*campaignRepo)(nil)
	_ repository.AuditLogRepository      = (*auditRepo)(nil)
	_ repository.TenantBillingRepository = (*billingRepo)(nil)
)

// ── Stock ────────────────────────────────────────────────────────────────────

type stockItemRepo struct{ base }

func (r *stockItemRepo) Create(_ context.Context, item *entity.StockItem) error {
	return r.write(func(st *state) error {
		if _, ok := st.items[item.ID]; ok {
			return domain.ErrDuplicate
		}
		for _, it := range st.items {
			if it.TenantID == item.TenantID && it.SKU == item.SKU && it.Active {
				return domain.ErrDuplicate
			}
		}
		cp := *item
		st.items[item.ID] = &cp
		return nil
	})
}

func (r *stockItemRepo) GetByID(_ context.Context, tenantID, id string) (*entity.StockItem, error) {
	var out *entity.StockItem
	err := r.read(func(st *state) error {
		it, ok := st.items[id]
		if !ok || it.TenantID != tenantID {
			return domain.ErrNotFound
		}
		cp := *it
		out = &cp
		return nil
	})
	return out, err
}

// GetForUpdate: en memoria el lock global de la transacción ya serializa los ajustes.
func (r *stockItemRepo) GetForUpdate(ctx context.Context, tenantID, id string) (*entity.StockItem, error) {
	return r.GetByID(ctx, tenantID, id)
}

func (r *stockItemRepo) ListActive(_ context.Context, tenantID string) ([]*entity.StockItem, error) {
	return r.list(tenantID, func(it *entity.StockItem) bool { return it.Active })
}

func (r *stockItemRepo) ListLow(_ context.Context, tenantID string) ([]*entity.StockItem, error) {
	return r.list(tenantID, func(it *entity.StockItem) bool { return it.Active && it.IsLow() })
}

func (r *stockItemRepo) list(tenantID string, keep func(*entity.StockItem) bool) ([]*entity.StockItem, error) {
	var out []*entity.StockItem
	err := r.read(func(st *state) error {
		for _, it := range st.items {
			if it.TenantID == tenantID && keep(it) {
				cp := *it
				out = append(out, &cp)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].SKU < out[j].SKU })
	return out, err
}

func (r *stockItemRepo) UpdateLevel(_ context.Context, tenantID, id string, level int64, at time.Time) error {
	return r.write(func(st *state) error {
		it, ok := st.items[id]
		if !ok || it.TenantID != tenantID {
			return domain.ErrNotFound
		}
		// Mismo CHECK (current_level >= 0) que en PostgreSQL.
		if level < 0 {
			return domain.ErrInsufficientStock
		}
		it.CurrentLevel = level
		it.UpdatedAt = at
		return nil
	})
}

func (r *stockItemRepo) Deactivate(_ context.Context, tenantID, id string, at time.Time) error {
	return r.write(func(st *state) error {
		it, ok := st.items[id]
		if !ok || it.TenantID != tenantID || !it.Active {
			return domain.ErrNotFound
		}
		it.Active = false
		it.UpdatedAt = at
		return nil
	})
}

// ── Movimientos ──────────────────────────────────────────────────────────────

type movementRepo struct{ base }

func (r *movementRepo) Create(_ context.Context, m *entity.Movement) error {
	return r.write(func(st *state) error {
		cp := *m
		st.movements = append(st.movements, &cp)
		return nil
	})
}

func (r *movementRepo) ListByItem(_ context.Context, tenantID, stockItemID string, limit, offset int) ([]*entity.Movement, error) {
	var out []*entity.Movement
	err := r.read(func(st *state) error {
		// Más recientes primero.
		for i := len(st.movements) - 1; i >= 0; i-- {
			m := st.movements[i]
			if m.TenantID == tenantID && m.StockItemID == stockItemID {
				cp := *m
				out = append(out, &cp)
			}
		}
		return nil
	})
	return page(out, limit, offset), err
}

func (r *movementRepo) ExistsByReference(_ context.Context, tenantID, movementType, reference string) (bool, error) {
	found := false
	err := r.read(func(st *state) error {
		for _, m := range st.movements {
			if m.TenantID == tenantID && m.Type == movementType && m.Reference == reference {
				found = true
				return nil
			}
		}
		return nil
	})
	return found, err
}

// ── Campañas ─────────────────────────────────────────────────────────────────

type campaignRepo struct{ base }

func (r *campaignRepo) LockTenant(context.Context, string) error { return nil }

func (r *campaignRepo) HasActive(_ context.Context, tenantID string) (bool, error) {
	active := false
	err := r.read(func(st *state) error {
		active = hasActive(st, tenantID)
		return nil
	})
	return active, err
}

func hasActive(st *state, tenantID string) bool {
	for _, c := range st.campaigns {
		if c.TenantID == tenantID && c.IsActive() {
			return true
		}
	}
	return false
}

func (r *campaignRepo) Create(_ context.Context, c *entity.Campaign, items []*entity.CampaignItem) error {
	return r.write(func(st *state) error {
		// Equivalente al índice único parcial campaigns_one_active_per_tenant.
		if c.IsActive() && hasActive(st, c.TenantID) {
			return domain.ErrCampaignConflict
		}
		cp := *c
		st.campaigns[c.ID] = &cp
		list := make([]*entity.CampaignItem, len(items))
		for i, it := range items {
			ic := *it
			list[i] = &ic
		}
		st.campaignItems[c.ID] = list
		return nil
	})
}

func (r *campaignRepo) GetByID(_ context.Context, tenantID, id string) (*entity.Campaign, error) {
	var out *entity.Campaign
	err := r.read(func(st *state) error {
		c, ok := st.campaigns[id]
		if !ok || c.TenantID != tenantID {
			return domain.ErrNotFound
		}
		cp := *c
		out = &cp
		return nil
	})
	return out, err
}

func (r *campaignRepo) GetForUpdate(ctx context.Context, tenantID, id string) (*entity.Campaign, error) {
	return r.GetByID(ctx, tenantID, id)
}

func (r *campaignRepo) List(_ context.Context, tenantID string, limit, offset int) ([]*entity.Campaign, error) {
	var out []*entity.Campaign
	err := r.read(func(st *state) error {
		for _, c := range st.campaigns {
			if c.TenantID == tenantID {
				cp := *c
				out = append(out, &cp)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, limit, offset), err
}

func (r *campaignRepo) UpdateStatus(_ context.Context, c *entity.Campaign) error {
	return r.write(func(st *state) error {
		cur, ok := st.campaigns[c.ID]
		if !ok || cur.TenantID != c.TenantID {
			return domain.ErrNotFound
		}
		if c.IsActive() && !cur.IsActive() && hasActive(st, c.TenantID) {
			return domain.ErrCampaignConflict
		}
		cur.Status = c.Status
		cur.SyncStock = c.SyncStock
		cur.ClosedAt = c.ClosedAt
		cur.UpdatedAt = c.UpdatedAt
		return nil
	})
}

func (r *campaignRepo) SaveReport(_ context.Context, tenantID, id string, report *entity.ReconciliationReport) error {
	return r.write(func(st *state) error {
		cur, ok := st.campaigns[id]
		if !ok || cur.TenantID != tenantID {
			return domain.ErrNotFound
		}
		cur.Report = cloneReport(report)
		return nil
	})
}

func (r *campaignRepo) ListItems(_ context.Context, campaignID string) ([]*entity.CampaignItem, error) {
	var out []*entity.CampaignItem
	err := r.read(func(st *state) error {
		for _, it := range st.campaignItems[campaignID] {
			cp := *it
			out = append(out, &cp)
		}
		return nil
	})
	return out, err
}

func (r *campaignRepo) UpdateCount(_ context.Context, campaignID, stockItemID string, counted *int64, at time.Time) error {
	return r.write(func(st *state) error {
		for _, it := range st.campaignItems[campaignID] {
			if it.StockItemID == stockItemID {
				if counted == nil {
					it.CountedQty = nil
				} else {
					v := *counted
					it.CountedQty = &v
				}
				it.UpdatedAt = at
				return nil
			}
		}
		return domain.ErrNotFound
	})
}

// ── Auditoría ────────────────────────────────────────────────────────────────

type auditRepo struct{ base }

func (r *auditRepo) Create(_ context.Context, e *entity.AuditLogEntry) error {
	return r.write(func(st *state) error {
		st.audit = append(st.audit, copyEntry(e))
		return nil
	})
}

func (r *auditRepo) List(_ context.Context, tenantID string, f repository.AuditFilter) ([]*entity.AuditLogEntry, error) {
	var out []*entity.AuditLogEntry
	err := r.read(func(st *state) error {
		for i := len(st.audit) - 1; i >= 0; i-- {
			e := st.audit[i]
			if e.TenantID != tenantID {
				continue
			}
			if f.Action != "" && e.Action != f.Action {
				continue
			}
			if f.Resource != "" && e.Resource != f.Resource {
				continue
			}
			out = append(out, copyEntry(e))
		}
		return nil
	})
	return page(out, f.Limit, f.Offset), err
}

func (r *auditRepo) Each(_ context.Context, tenantID string, fn func(*entity.AuditLogEntry) error) error {
	var snapshot []*entity.AuditLogEntry
	_ = r.read(func(st *state) error {
		for _, e := range st.audit {
			if e.TenantID == tenantID {
				snapshot = append(snapshot, copyEntry(e))
			}
		}
		return nil
	})
	for _, e := range snapshot {
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

func (r *auditRepo) ListTenants(context.Context) ([]string, error) {
	seen := map[string]struct{}{}
	var out []string
	_ = r.read(func(st *state) error {
		for _, e := range st.audit {
			if _, ok := seen[e.TenantID]; !ok {
				seen[e.TenantID] = struct{}{}
				out = append(out, e.TenantID)
			}
		}
		return nil
	})
	sort.Strings(out)
	return out, nil
}

// ── Facturación ──────────────────────────────────────────────────────────────

type billingRepo struct{ base }

func (r *billingRepo) Get(_ context.Context, tenantID string) (*entity.TenantBilling, error) {
	var out *entity.TenantBilling
	err := r.read(func(st *state) error {
		b, ok := st.billing[tenantID]
		if !ok {
			return domain.ErrNotFound
		}
		cp := *b
		out = &cp
		return nil
	})
	return out, err
}

func (r *billingRepo) Upsert(_ context.Context, b *entity.TenantBilling) error {
	return r.write(func(st *state) error {
		cp := *b
		st.billing[b.TenantID] = &cp
		return nil
	})
}

func (r *billingRepo) RecordEvent(_ context.Context, provider, eventID string) (bool, error) {
	inserted := false
	err := r.write(func(st *state) error {
		key := provider + "/" + eventID
		if _, ok := st.events[key]; ok {
			return nil
		}
		st.events[key] = struct{}{}
		inserted = true
		return nil
	})
	return inserted, err
}

// ── helpers ──────────────────────────────────────────────────────────────────

func copyEntry(e *entity.AuditLogEntry) *entity.AuditLogEntry {
	cp := *e
	cp.Details = make(map[string]string, len(e.Details))
	for k, v := range e.Details {
		cp.Details[k] = v
	}
	return &cp
}

func cloneReport(r *entity.ReconciliationReport) *entity.ReconciliationReport {
	if r == nil {
		return nil
	}
	cp := *r
	cp.Lines = append([]entity.ReconciliationLine(nil), r.Lines...)
	cp.Failures = append([]entity.ItemFailure(nil), r.Failures...)
	return &cp
}

func page[T any](list []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(list) {
			return nil
		}
		list = list[offset:]
	}
	if limit > 0 && limit < len(list) {
		list = list[:limit]
	}
	return list
}
