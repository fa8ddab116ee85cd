package countbatch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jhoicas/inventario-auditoria/pkg/logger"
)

// ErrPersistenceTimeout un flush no alcanzó a persistir algunos ítems; siguen pendientes
// y se reintentan en el siguiente ciclo.
var ErrPersistenceTimeout = errors.New("no se pudieron persistir todos los conteos; se reintentará")

// Config parámetros del batcher.
type Config struct {
	ChunkSize      int           // ítems por lote (por defecto 50)
	RequestTimeout time.Duration // tope por escritura (por defecto 5s)
}

// FlushResult resultado de un ciclo de flush.
type FlushResult struct {
	Attempted int
	Persisted int
	Rejected  map[string]error // rechazados por el servidor; salen de la cola pero conservan el borrador
	Failed    map[string]error // siguen pendientes
}

// Err devuelve ErrPersistenceTimeout (envuelto) si quedaron ítems pendientes y ErrRejected si el
// servidor rechazó alguno; ambos cuando pasan las dos cosas.
func (r FlushResult) Err() error {
	var errs []error
	if len(r.Failed) > 0 {
		errs = append(errs, fmt.Errorf("%w: %d de %d ítems", ErrPersistenceTimeout, len(r.Failed), r.Attempted))
	}
	if len(r.Rejected) > 0 {
		errs = append(errs, fmt.Errorf("%w: %d de %d ítems", ErrRejected, len(r.Rejected), r.Attempted))
	}
	return errors.Join(errs...)
}

type pending struct {
	raw     string
	version uint64
}

// Batcher acumulador de ediciones de una campaña.
type Batcher struct {
	campaignID string
	writer     CountWriter
	drafts     DraftStore
	cfg        Config
	log        *logger.Logger

	mu       sync.Mutex // protege dirty, rejected, seq y el DraftStore
	dirty    map[string]pending
	rejected map[string]string // valor rechazado por ítem; se limpia con una nueva edición
	seq      uint64

	flushMu sync.Mutex // un solo ciclo de flush a la vez: nunca dos escrituras en vuelo del mismo ítem
}

// New construye el batcher. ChunkSize < 1 y RequestTimeout <= 0 toman los valores por defecto.
func New(campaignID string, writer CountWriter, drafts DraftStore, cfg Config, log *logger.Logger) *Batcher {
	if cfg.ChunkSize < 1 {
		cfg.ChunkSize = 50
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 5 * time.Second
	}
	return &Batcher{
		campaignID: campaignID,
		writer:     writer,
		drafts:     drafts,
		cfg:        cfg,
		log:        log,
		dirty:      map[string]pending{},
		rejected:   map[string]string{},
	}
}

// CampaignID campaña a la que pertenecen las ediciones.
func (b *Batcher) CampaignID() string { return b.campaignID }

// RecordEdit registra el texto crudo del operador para itemID. Ediciones repetidas antes de un
// flush se funden en una sola escritura con el último valor.
func (b *Batcher) RecordEdit(ctx context.Context, itemID, raw string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++
	b.dirty[itemID] = pending{raw: raw, version: b.seq}
	delete(b.rejected, itemID)
	if err := b.drafts.Save(ctx, b.campaignID, itemID, raw); err != nil {
		// El valor queda en memoria y se envía igual en el próximo flush.
		b.log.Warn().Err(err).Str("campaign_id", b.campaignID).Str("item_id", itemID).Msg("borrador no persistido")
	}
	return nil
}

// Pending devuelve una copia de los valores pendientes.
func (b *Batcher) Pending() map[string]string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]string, len(b.dirty))
	for id, p := range b.dirty {
		out[id] = p.raw
	}
	return out
}

// Rejected devuelve una copia de los valores que el servidor rechazó y que el operador aún no corrigió.
func (b *Batcher) Rejected() map[string]string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]string, len(b.rejected))
	for id, raw := range b.rejected {
		out[id] = raw
	}
	return out
}

// Restore recupera del DraftStore las ediciones que no se alcanzaron a enviar (tras una recarga).
// Un valor ya presente en memoria es más reciente y se conserva.
func (b *Batcher) Restore(ctx context.Context) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	drafts, err := b.drafts.Load(ctx, b.campaignID)
	if err != nil {
		return 0, err
	}
	restored := 0
	for id, raw := range drafts {
		if _, ok := b.dirty[id]; ok {
			continue
		}
		b.seq++
		b.dirty[id] = pending{raw: raw, version: b.seq}
		restored++
	}
	return restored, nil
}

// Hidden se llama cuando el operador deja la pantalla de conteo en segundo plano.
func (b *Batcher) Hidden(ctx context.Context) FlushResult {
	return b.Flush(ctx)
}

// BeforeTransition vacía los pendientes antes de suspender, cancelar o validar la campaña.
// Si algo queda sin persistir devuelve ErrPersistenceTimeout; si hay valores rechazados sin
// corregir, ErrRejected. En ambos casos la transición no debe enviarse.
func (b *Batcher) BeforeTransition(ctx context.Context) error {
	if err := b.Flush(ctx).Err(); err != nil {
		return err
	}
	if n := len(b.Rejected()); n > 0 {
		return fmt.Errorf("%w: %d ítems sin corregir", ErrRejected, n)
	}
	return nil
}

// Transition ejecuta BeforeTransition y, si todo se persistió, fn.
func (b *Batcher) Transition(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := b.BeforeTransition(ctx); err != nil {
		return err
	}
	return fn(ctx)
}

type flushItem struct {
	id  string
	raw string
	ver uint64
}

// Flush envía los pendientes en lotes de ChunkSize que corren en paralelo.
// Lo que falla sigue pendiente; lo que se editó durante el envío también.
func (b *Batcher) Flush(ctx context.Context) FlushResult {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	b.mu.Lock()
	batch := make([]flushItem, 0, len(b.dirty))
	for id, p := range b.dirty {
		batch = append(batch, flushItem{id: id, raw: p.raw, ver: p.version})
	}
	b.mu.Unlock()

	res := FlushResult{Attempted: len(batch), Rejected: map[string]error{}, Failed: map[string]error{}}
	if len(batch) == 0 {
		return res
	}
	sort.Slice(batch, func(i, j int) bool { return batch[i].id < batch[j].id })

	var (
		resMu    sync.Mutex
		done     []flushItem
		rejected []flushItem
	)
	record := func(it flushItem, err error) {
		resMu.Lock()
		defer resMu.Unlock()
		switch {
		case err == nil:
			res.Persisted++
			done = append(done, it)
		case errors.Is(err, ErrRejected):
			res.Rejected[it.id] = err
			rejected = append(rejected, it)
		default:
			res.Failed[it.id] = err
		}
	}

	var g errgroup.Group
	for start := 0; start < len(batch); start += b.cfg.ChunkSize {
		chunk := batch[start:min(start+b.cfg.ChunkSize, len(batch))]
		g.Go(func() error {
			var cg errgroup.Group
			for _, it := range chunk {
				cg.Go(func() error {
					reqCtx, cancel := context.WithTimeout(ctx, b.cfg.RequestTimeout)
					defer cancel()
					record(it, b.writer.WriteCount(reqCtx, b.campaignID, it.id, ParseCount(it.raw)))
					return nil
				})
			}
			return cg.Wait()
		})
	}
	_ = g.Wait()

	b.settle(ctx, done, rejected)

	if len(res.Failed) > 0 {
		b.log.Warn().
			Str("campaign_id", b.campaignID).
			Int("attempted", res.Attempted).
			Int("failed", len(res.Failed)).
			Msg("flush de conteos incompleto")
	}
	for id, err := range res.Rejected {
		b.log.Warn().Err(err).Str("campaign_id", b.campaignID).Str("item_id", id).Msg("conteo rechazado por el servidor")
	}
	return res
}

// settle quita de pendientes (y del DraftStore) los ítems persistidos cuya versión no cambió.
// Los rechazados salen de pendientes pero su borrador se conserva hasta que el operador lo corrija.
func (b *Batcher) settle(ctx context.Context, done, rejected []flushItem) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var cleared []string
	for _, it := range done {
		if cur, ok := b.dirty[it.id]; ok && cur.version == it.ver {
			delete(b.dirty, it.id)
			delete(b.rejected, it.id)
			cleared = append(cleared, it.id)
		}
	}
	for _, it := range rejected {
		if cur, ok := b.dirty[it.id]; ok && cur.version == it.ver {
			delete(b.dirty, it.id)
			b.rejected[it.id] = it.raw
		}
	}
	if len(cleared) == 0 {
		return
	}
	if err := b.drafts.Delete(context.WithoutCancel(ctx), b.campaignID, cleared...); err != nil {
		b.log.Warn().Err(err).Str("campaign_id", b.campaignID).Msg("no se limpiaron los borradores enviados")
	}
}
