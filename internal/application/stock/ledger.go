package stock

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/inventario-auditoria/internal/application/audit"
	"github.com/jhoicas/inventario-auditoria/internal/domain"
	"github.com/jhoicas/inventario-auditoria/internal/domain/entity"
	"github.com/jhoicas/inventario-auditoria/internal/domain/repository"
)

// LedgerUseCase libro de stock: único punto de mutación de CurrentLevel.
// Cada mutación bloquea la fila (SELECT FOR UPDATE), agrega un Movement y un registro de auditoría
// en la misma transacción.
type LedgerUseCase struct {
	tx    repository.TxRunner
	repos repository.Repos
	audit *audit.LedgerUseCase
	now   func() time.Time
}

// NewLedgerUseCase construye el caso de uso.
func NewLedgerUseCase(tx repository.TxRunner, repos repository.Repos, auditUC *audit.LedgerUseCase) *LedgerUseCase {
	return &LedgerUseCase{tx: tx, repos: repos, audit: auditUC, now: time.Now}
}

// AdjustInput entrada de un ajuste del libro.
// IN/OUT: Quantity > 0. ADJUSTMENT: Quantity != 0; positivo se comporta como IN, negativo como OUT.
type AdjustInput struct {
	TenantID    string
	UserID      string
	StockItemID string
	Type        string
	Quantity    int64
	Reason      string
	Reference   string
}

// Adjust aplica un movimiento de forma atómica. Nunca aplica cantidades parciales:
// si el nivel resultante fuera negativo falla con domain.ErrInsufficientStock.
func (uc *LedgerUseCase) Adjust(ctx context.Context, in AdjustInput) (*entity.Movement, error) {
	qty, direction, err := resolve(in.Type, in.Quantity)
	if err != nil {
		return nil, err
	}
	if in.TenantID == "" || in.StockItemID == "" {
		return nil, domain.ErrInvalidInput
	}

	var mov *entity.Movement
	err = uc.tx.Run(ctx, func(r repository.Repos) error {
		m, err := uc.applyTx(ctx, r, in.TenantID, in.UserID, in.StockItemID, in.Type, qty, direction, in.Reason, in.Reference)
		if err != nil {
			return err
		}
		_, err = uc.audit.AppendTx(ctx, r.Audit, audit.Record{
			TenantID: in.TenantID,
			Action:   entity.ActionAdjustStock,
			Resource: in.StockItemID,
			Severity: entity.SeverityMedium,
			Actor:    in.UserID,
			Details: map[string]string{
				"movementId":     m.ID,
				"type":           m.Type,
				"qty":            strconv.FormatInt(m.Qty, 10),
				"direction":      strconv.Itoa(m.Direction),
				"resultingLevel": strconv.FormatInt(m.ResultingLevel, 10),
				"reason":         m.Reason,
				"reference":      m.Reference,
			},
		})
		if err != nil {
			return err
		}
		mov = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return mov, nil
}

// applyTx bloquea la fila, valida el nivel resultante, lo escribe y agrega el movimiento.
func (uc *LedgerUseCase) applyTx(
	ctx context.Context, r repository.Repos,
	tenantID, userID, itemID, movType string,
	qty int64, direction int, reason, reference string,
) (*entity.Movement, error) {
	item, err := r.Stock.GetForUpdate(ctx, tenantID, itemID)
	if err != nil {
		return nil, err
	}
	if !item.Active {
		return nil, domain.ErrNotFound
	}
	level := item.CurrentLevel + int64(direction)*qty
	if level < 0 {
		return nil, domain.ErrInsufficientStock
	}
	now := uc.now()
	if err := r.Stock.UpdateLevel(ctx, tenantID, itemID, level, now); err != nil {
		return nil, err
	}
	m := &entity.Movement{
		ID:             uuid.New().String(),
		TenantID:       tenantID,
		StockItemID:    itemID,
		Type:           movType,
		Qty:            qty,
		Direction:      direction,
		Reason:         reason,
		Reference:      reference,
		ResultingLevel: level,
		CreatedAt:      now,
		CreatedBy:      userID,
	}
	if err := r.Movements.Create(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// DecrementForInvoice descuenta todas las líneas de una factura finalizada en una sola transacción.
// Si alguna línea falla no queda ningún descuento de esa factura. Repetir la llamada para una factura
// ya descontada no tiene efecto (applied = false).
func (uc *LedgerUseCase) DecrementForInvoice(ctx context.Context, tenantID, userID, invoiceID string, lines []entity.InvoiceLine) (movements []*entity.Movement, applied bool, err error) {
	if tenantID == "" || invoiceID == "" || len(lines) == 0 {
		return nil, false, domain.ErrInvalidInput
	}
	merged := map[string]int64{}
	for _, l := range lines {
		if l.StockItemID == "" || l.Qty <= 0 {
			return nil, false, domain.ErrInvalidInput
		}
		merged[l.StockItemID] += l.Qty
	}
	// Orden estable de bloqueo para evitar deadlocks entre facturas concurrentes.
	ids := make([]string, 0, len(merged))
	for id := range merged {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	err = uc.tx.Run(ctx, func(r repository.Repos) error {
		items := make(map[string]*entity.StockItem, len(ids))
		for _, id := range ids {
			item, err := r.Stock.GetForUpdate(ctx, tenantID, id)
			if err != nil {
				return fmt.Errorf("line %s: %w", id, err)
			}
			items[id] = item
		}
		// La verificación va después de bloquear: una llamada concurrente para la misma factura
		// ya confirmó sus movimientos cuando obtenemos los locks.
		done, err := r.Movements.ExistsByReference(ctx, tenantID, entity.MovementTypeOUT, invoiceID)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		for _, id := range ids {
			if !items[id].Active {
				return fmt.Errorf("line %s: %w", id, domain.ErrNotFound)
			}
			m, err := uc.applyTx(ctx, r, tenantID, userID, id, entity.MovementTypeOUT, merged[id], -1, "factura finalizada", invoiceID)
			if err != nil {
				return fmt.Errorf("line %s: %w", id, err)
			}
			movements = append(movements, m)
		}
		_, err = uc.audit.AppendTx(ctx, r.Audit, audit.Record{
			TenantID: tenantID,
			Action:   entity.ActionDecrementInvoice,
			Resource: invoiceID,
			Severity: entity.SeverityMedium,
			Actor:    userID,
			Details: map[string]string{
				"lines": strconv.Itoa(len(ids)),
				"units": strconv.FormatInt(sum(merged), 10),
			},
		})
		if err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return movements, applied, nil
}

// CreateItemInput alta de un ítem de stock.
type CreateItemInput struct {
	TenantID     string
	UserID       string
	SKU          string
	Name         string
	InitialLevel int64
	MinThreshold int64
}

// CreateItem da de alta un ítem. El nivel inicial (si > 0) se registra como movimiento IN.
func (uc *LedgerUseCase) CreateItem(ctx context.Context, in CreateItemInput) (*entity.StockItem, error) {
	if in.TenantID == "" || in.SKU == "" || in.Name == "" || in.InitialLevel < 0 || in.MinThreshold < 0 {
		return nil, domain.ErrInvalidInput
	}
	now := uc.now()
	item := &entity.StockItem{
		ID:           uuid.New().String(),
		TenantID:     in.TenantID,
		SKU:          in.SKU,
		Name:         in.Name,
		MinThreshold: in.MinThreshold,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err := uc.tx.Run(ctx, func(r repository.Repos) error {
		if err := r.Stock.Create(ctx, item); err != nil {
			return err
		}
		if in.InitialLevel > 0 {
			if _, err := uc.applyTx(ctx, r, in.TenantID, in.UserID, item.ID, entity.MovementTypeIN, in.InitialLevel, 1, "saldo inicial", ""); err != nil {
				return err
			}
			item.CurrentLevel = in.InitialLevel
		}
		_, err := uc.audit.AppendTx(ctx, r.Audit, audit.Record{
			TenantID: in.TenantID,
			Action:   entity.ActionCreateStockItem,
			Resource: item.ID,
			Severity: entity.SeverityMedium,
			Actor:    in.UserID,
			Details: map[string]string{
				"sku":          item.SKU,
				"initialLevel": strconv.FormatInt(in.InitialLevel, 10),
			},
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// DeactivateItem baja lógica. Las campañas abiertas conservan su foto del ítem.
func (uc *LedgerUseCase) DeactivateItem(ctx context.Context, tenantID, userID, itemID string) error {
	return uc.tx.Run(ctx, func(r repository.Repos) error {
		if err := r.Stock.Deactivate(ctx, tenantID, itemID, uc.now()); err != nil {
			return err
		}
		_, err := uc.audit.AppendTx(ctx, r.Audit, audit.Record{
			TenantID: tenantID,
			Action:   entity.ActionDeleteStockItem,
			Resource: itemID,
			Severity: entity.SeverityMedium,
			Actor:    userID,
		})
		return err
	})
}

// GetItem devuelve un ítem del tenant.
func (uc *LedgerUseCase) GetItem(ctx context.Context, tenantID, id string) (*entity.StockItem, error) {
	return uc.repos.Stock.GetByID(ctx, tenantID, id)
}

// ListItems lista los ítems activos con su nivel actual.
func (uc *LedgerUseCase) ListItems(ctx context.Context, tenantID string) ([]*entity.StockItem, error) {
	return uc.repos.Stock.ListActive(ctx, tenantID)
}

// LowStock lista los ítems en o por debajo de su umbral mínimo.
func (uc *LedgerUseCase) LowStock(ctx context.Context, tenantID string) ([]*entity.StockItem, error) {
	return uc.repos.Stock.ListLow(ctx, tenantID)
}

// ListMovements historial de movimientos de un ítem (más recientes primero).
func (uc *LedgerUseCase) ListMovements(ctx context.Context, tenantID, itemID string, limit, offset int) ([]*entity.Movement, error) {
	if _, err := uc.repos.Stock.GetByID(ctx, tenantID, itemID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return uc.repos.Movements.ListByItem(ctx, tenantID, itemID, limit, offset)
}

// resolve normaliza tipo y cantidad a (qty positiva, dirección).
func resolve(movType string, quantity int64) (int64, int, error) {
	switch movType {
	case entity.MovementTypeIN:
		if quantity <= 0 {
			return 0, 0, domain.ErrInvalidInput
		}
		return quantity, 1, nil
	case entity.MovementTypeOUT:
		if quantity <= 0 {
			return 0, 0, domain.ErrInvalidInput
		}
		return quantity, -1, nil
	case entity.MovementTypeADJUSTMENT:
		if quantity == 0 {
			return 0, 0, domain.ErrInvalidInput
		}
		if quantity < 0 {
			return -quantity, -1, nil
		}
		return quantity, 1, nil
	}
	return 0, 0, domain.ErrInvalidInput
}

func sum(m map[string]int64) int64 {
	var total int64
	for _, v := range m {
		total += v
	}
	return total
}
