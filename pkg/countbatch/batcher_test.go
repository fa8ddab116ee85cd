package countbatch_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/inventario-auditoria/pkg/countbatch"
	"github.com/jhoicas/inventario-auditoria/pkg/logger"
)

// ──────────────────────────────────────────────────────────────────────────────
// Writer falso
// ──────────────────────────────────────────────────────────────────────────────

type write struct {
	item string
	qty  *int64
}

type fakeWriter struct {
	mu     sync.Mutex
	calls  []write
	fail   map[string]error
	block  map[string]chan struct{} // ítems cuya escritura espera hasta cerrar el canal
	served map[string]*int64        // último valor persistido por ítem
}

func newFakeWriter() *fakeWriter {
	return &fakeWriter{fail: map[string]error{}, block: map[string]chan struct{}{}, served: map[string]*int64{}}
}

func (w *fakeWriter) WriteCount(ctx context.Context, _, itemID string, qty *int64) error {
	w.mu.Lock()
	w.calls = append(w.calls, write{item: itemID, qty: qty})
	err := w.fail[itemID]
	wait := w.block[itemID]
	w.mu.Unlock()

	if wait != nil {
		select {
		case <-wait:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err != nil {
		return err
	}
	w.mu.Lock()
	w.served[itemID] = qty
	w.mu.Unlock()
	return nil
}

func (w *fakeWriter) callsFor(item string) []write {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []write
	for _, c := range w.calls {
		if c.item == item {
			out = append(out, c)
		}
	}
	return out
}

func (w *fakeWriter) total() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.calls)
}

func newBatcher(w countbatch.CountWriter, drafts countbatch.DraftStore, cfg countbatch.Config) *countbatch.Batcher {
	return countbatch.New("camp-1", w, drafts, cfg, logger.Nop())
}

func i64(n int64) *int64 { return &n }

// ──────────────────────────────────────────────────────────────────────────────
// ParseCount
// ──────────────────────────────────────────────────────────────────────────────

func TestParseCount(t *testing.T) {
	assert.Nil(t, countbatch.ParseCount(""))
	assert.Nil(t, countbatch.ParseCount("   "))
	assert.Nil(t, countbatch.ParseCount("abc"))
	assert.Nil(t, countbatch.ParseCount("-3"))
	assert.Nil(t, countbatch.ParseCount("2.5"))
	assert.Equal(t, i64(0), countbatch.ParseCount("0"))
	assert.Equal(t, i64(42), countbatch.ParseCount(" 42 "))
}

// ──────────────────────────────────────────────────────────────────────────────
// Flush
// ──────────────────────────────────────────────────────────────────────────────

func TestFlush_CincoEdicionesUnaEscritura(t *testing.T) {
	w := newFakeWriter()
	b := newBatcher(w, countbatch.NewMemoryDraftStore(), countbatch.Config{})
	ctx := context.Background()

	for _, v := range []string{"1", "2", "3", "4", "5"} {
		require.NoError(t, b.RecordEdit(ctx, "item-1", v))
	}
	res := b.Flush(ctx)
	require.NoError(t, res.Err())

	calls := w.callsFor("item-1")
	require.Len(t, calls, 1)
	assert.Equal(t, i64(5), calls[0].qty)
	assert.Equal(t, 1, res.Persisted)
	assert.Empty(t, b.Pending())

	res = b.Flush(ctx)
	assert.Zero(t, res.Attempted, "sin pendientes no hay red")
}

func TestFlush_VacioYCeroSonDistintos(t *testing.T) {
	w := newFakeWriter()
	b := newBatcher(w, countbatch.NewMemoryDraftStore(), countbatch.Config{})
	ctx := context.Background()
	require.NoError(t, b.RecordEdit(ctx, "vacio", ""))
	require.NoError(t, b.RecordEdit(ctx, "cero", "0"))
	require.NoError(t, b.RecordEdit(ctx, "basura", "x1"))

	assert.Equal(t, map[string]string{"vacio": "", "cero": "0", "basura": "x1"}, b.Pending())
	require.NoError(t, b.Flush(ctx).Err())

	assert.Nil(t, w.callsFor("vacio")[0].qty)
	assert.Equal(t, i64(0), w.callsFor("cero")[0].qty)
	assert.Nil(t, w.callsFor("basura")[0].qty, "texto no numérico se envía como null")
}

func TestFlush_FallosQuedanPendientes(t *testing.T) {
	w := newFakeWriter()
	w.fail["item-2"] = errors.New("connection reset")
	drafts := countbatch.NewMemoryDraftStore()
	b := newBatcher(w, drafts, countbatch.Config{})
	ctx := context.Background()
	require.NoError(t, b.RecordEdit(ctx, "item-1", "10"))
	require.NoError(t, b.RecordEdit(ctx, "item-2", "20"))

	res := b.Flush(ctx)
	assert.ErrorIs(t, res.Err(), countbatch.ErrPersistenceTimeout)
	assert.Equal(t, 1, res.Persisted)
	assert.Contains(t, res.Failed, "item-2")
	assert.Equal(t, map[string]string{"item-2": "20"}, b.Pending())

	stored, err := drafts.Load(ctx, "camp-1")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"item-2": "20"}, stored, "el borrador sobrevive hasta persistir")

	delete(w.fail, "item-2")
	require.NoError(t, b.Flush(ctx).Err())
	assert.Empty(t, b.Pending())
	assert.Len(t, w.callsFor("item-2"), 2, "at-least-once")
}

func TestFlush_TimeoutPorRequest(t *testing.T) {
	w := newFakeWriter()
	w.block["lento"] = make(chan struct{})
	defer close(w.block["lento"])
	b := newBatcher(w, countbatch.NewMemoryDraftStore(), countbatch.Config{RequestTimeout: 20 * time.Millisecond})
	require.NoError(t, b.RecordEdit(context.Background(), "lento", "1"))

	res := b.Flush(context.Background())
	require.ErrorIs(t, res.Err(), countbatch.ErrPersistenceTimeout)
	assert.ErrorIs(t, res.Failed["lento"], context.DeadlineExceeded)
	assert.Contains(t, b.Pending(), "lento")
}

func TestFlush_RechazoDefinitivoConservaBorrador(t *testing.T) {
	w := newFakeWriter()
	w.fail["item-1"] = fmt.Errorf("%w: HTTP 422", countbatch.ErrRejected)
	drafts := countbatch.NewMemoryDraftStore()
	b := newBatcher(w, drafts, countbatch.Config{})
	ctx := context.Background()
	require.NoError(t, b.RecordEdit(ctx, "item-1", "3"))

	res := b.Flush(ctx)
	assert.ErrorIs(t, res.Err(), countbatch.ErrRejected)
	assert.NotErrorIs(t, res.Err(), countbatch.ErrPersistenceTimeout)
	assert.Contains(t, res.Rejected, "item-1")
	assert.Empty(t, b.Pending(), "no se reintenta el mismo valor")
	assert.Equal(t, map[string]string{"item-1": "3"}, b.Rejected())

	stored, err := drafts.Load(ctx, "camp-1")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"item-1": "3"}, stored, "el valor del operador no se pierde")

	called := false
	err = b.Transition(ctx, func(context.Context) error { called = true; return nil })
	assert.ErrorIs(t, err, countbatch.ErrRejected)
	assert.False(t, called, "no se valida con rechazos sin corregir")

	// El operador corrige el valor.
	delete(w.fail, "item-1")
	require.NoError(t, b.RecordEdit(ctx, "item-1", "4"))
	assert.Empty(t, b.Rejected())
	require.NoError(t, b.Transition(ctx, func(context.Context) error { called = true; return nil }))
	assert.True(t, called)
	stored, err = drafts.Load(ctx, "camp-1")
	require.NoError(t, err)
	assert.Empty(t, stored)
}

// Token vencido, sin permisos o campaña suspendida: el conteo sigue pendiente y se reintenta.
func TestFlush_RechazoTransitorioQuedaPendiente(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusConflict} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			var (
				mu     sync.Mutex
				answer = status
			)
			srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, _ *http.Request) {
				mu.Lock()
				defer mu.Unlock()
				rw.WriteHeader(answer)
			}))
			defer srv.Close()

			drafts := countbatch.NewMemoryDraftStore()
			b := newBatcher(countbatch.NewHTTPCountWriter(srv.URL, "tok"), drafts, countbatch.Config{})
			ctx := context.Background()
			require.NoError(t, b.RecordEdit(ctx, "item-1", "42"))

			res := b.Flush(ctx)
			assert.ErrorIs(t, res.Err(), countbatch.ErrPersistenceTimeout)
			assert.Empty(t, res.Rejected)
			assert.Contains(t, res.Failed, "item-1")
			assert.Equal(t, map[string]string{"item-1": "42"}, b.Pending())
			stored, err := drafts.Load(ctx, "camp-1")
			require.NoError(t, err)
			assert.Equal(t, map[string]string{"item-1": "42"}, stored)

			mu.Lock()
			answer = http.StatusNoContent
			mu.Unlock()
			require.NoError(t, b.Flush(ctx).Err())
			assert.Empty(t, b.Pending())
		})
	}
}

func TestFlush_LotesAcotados(t *testing.T) {
	w := newFakeWriter()
	b := newBatcher(w, countbatch.NewMemoryDraftStore(), countbatch.Config{ChunkSize: 7})
	for i := 0; i < 120; i++ {
		require.NoError(t, b.RecordEdit(context.Background(), fmt.Sprintf("item-%03d", i), "1"))
	}
	res := b.Flush(context.Background())
	require.NoError(t, res.Err())
	assert.Equal(t, 120, res.Persisted)
	assert.Equal(t, 120, w.total())
}

// Una edición que llega mientras su escritura está en vuelo no se pierde.
func TestFlush_EdicionDuranteEnvioQuedaPendiente(t *testing.T) {
	w := newFakeWriter()
	gate := make(chan struct{})
	w.block["item-1"] = gate
	b := newBatcher(w, countbatch.NewMemoryDraftStore(), countbatch.Config{RequestTimeout: time.Second})
	ctx := context.Background()
	require.NoError(t, b.RecordEdit(ctx, "item-1", "1"))

	done := make(chan countbatch.FlushResult)
	go func() { done <- b.Flush(ctx) }()
	require.Eventually(t, func() bool { return len(w.callsFor("item-1")) == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, b.RecordEdit(ctx, "item-1", "2"))
	close(gate)
	require.NoError(t, (<-done).Err())

	assert.Equal(t, map[string]string{"item-1": "2"}, b.Pending())
	w.mu.Lock()
	delete(w.block, "item-1")
	w.mu.Unlock()
	require.NoError(t, b.Flush(ctx).Err())
	assert.Equal(t, i64(2), w.served["item-1"], "gana la última edición")
}

// ──────────────────────────────────────────────────────────────────────────────
// Recarga y transiciones
// ──────────────────────────────────────────────────────────────────────────────

func TestRestore_RecargaRetomaPendientes(t *testing.T) {
	w := newFakeWriter()
	w.fail["item-2"] = errors.New("offline")
	drafts := countbatch.NewMemoryDraftStore()
	ctx := context.Background()

	first := newBatcher(w, drafts, countbatch.Config{})
	require.NoError(t, first.RecordEdit(ctx, "item-1", "7"))
	require.NoError(t, first.RecordEdit(ctx, "item-2", ""))
	require.NoError(t, first.RecordEdit(ctx, "item-3", "9"))
	_ = first.Flush(ctx)

	// Simula cierre del cliente: el batcher en memoria se pierde.
	second := newBatcher(w, drafts, countbatch.Config{})
	n, err := second.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, map[string]string{"item-2": ""}, second.Pending())
}

func TestTransition_NoSeEnviaConPendientes(t *testing.T) {
	w := newFakeWriter()
	w.fail["item-1"] = errors.New("offline")
	b := newBatcher(w, countbatch.NewMemoryDraftStore(), countbatch.Config{})
	require.NoError(t, b.RecordEdit(context.Background(), "item-1", "4"))

	called := false
	err := b.Transition(context.Background(), func(context.Context) error { called = true; return nil })
	assert.ErrorIs(t, err, countbatch.ErrPersistenceTimeout)
	assert.False(t, called)

	delete(w.fail, "item-1")
	require.NoError(t, b.Transition(context.Background(), func(context.Context) error { called = true; return nil }))
	assert.True(t, called)
}

func TestScheduler_FlushPeriodico(t *testing.T) {
	w := newFakeWriter()
	b := newBatcher(w, countbatch.NewMemoryDraftStore(), countbatch.Config{})
	require.NoError(t, b.RecordEdit(context.Background(), "item-1", "3"))

	s, err := countbatch.NewScheduler(context.Background(), b, 20*time.Millisecond, logger.Nop())
	require.NoError(t, err)
	s.Start()
	defer func() { _ = s.Stop() }()

	assert.Eventually(t, func() bool { return len(b.Pending()) == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.Len(t, w.callsFor("item-1"), 1)
}

// ──────────────────────────────────────────────────────────────────────────────
// HTTPCountWriter
// ──────────────────────────────────────────────────────────────────────────────

func TestHTTPCountWriter(t *testing.T) {
	var (
		mu   sync.Mutex
		seen = map[string]string{}
	)
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		seen[r.URL.Path] = fmt.Sprint(body["countedQty"])
		mu.Unlock()
		switch r.URL.Path {
		case "/api/stock/campaigns/camp-1/items/cerrada":
			rw.WriteHeader(http.StatusConflict)
		case "/api/stock/campaigns/camp-1/items/vencido":
			rw.WriteHeader(http.StatusUnauthorized)
		case "/api/stock/campaigns/camp-1/items/inexistente":
			rw.WriteHeader(http.StatusNotFound)
		case "/api/stock/campaigns/camp-1/items/invalido":
			rw.WriteHeader(http.StatusBadRequest)
		case "/api/stock/campaigns/camp-1/items/caida":
			rw.WriteHeader(http.StatusBadGateway)
		default:
			rw.WriteHeader(http.StatusNoContent)
		}
	}))
	defer srv.Close()

	w := countbatch.NewHTTPCountWriter(srv.URL+"/", "tok")
	ctx := context.Background()

	require.NoError(t, w.WriteCount(ctx, "camp-1", "item-1", i64(12)))
	require.NoError(t, w.WriteCount(ctx, "camp-1", "item-2", nil))
	assert.ErrorIs(t, w.WriteCount(ctx, "camp-1", "inexistente", i64(1)), countbatch.ErrRejected)
	assert.ErrorIs(t, w.WriteCount(ctx, "camp-1", "invalido", i64(1)), countbatch.ErrRejected)
	for _, item := range []string{"cerrada", "vencido"} {
		err := w.WriteCount(ctx, "camp-1", item, i64(1))
		require.Error(t, err)
		assert.NotErrorIs(t, err, countbatch.ErrRejected, "%s se reintenta", item)
	}
	err := w.WriteCount(ctx, "camp-1", "caida", i64(1))
	require.Error(t, err)
	assert.NotErrorIs(t, err, countbatch.ErrRejected, "5xx se reintenta")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "12", seen["/api/stock/campaigns/camp-1/items/item-1"])
	assert.Equal(t, "<nil>", seen["/api/stock/campaigns/camp-1/items/item-2"])
}

// ──────────────────────────────────────────────────────────────────────────────
// RedisDraftStore (requiere REDIS_ADDR)
// ──────────────────────────────────────────────────────────────────────────────

func TestRedisDraftStore(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR no definido")
	}
	ctx := context.Background()
	client, err := countbatch.NewRedisClient(ctx, addr, os.Getenv("REDIS_PASSWORD"), 0)
	require.NoError(t, err)
	defer client.Close()

	store := countbatch.NewRedisDraftStore(client, time.Minute)
	campaign := fmt.Sprintf("test-%d", time.Now().UnixNano())
	defer func() { _ = store.Delete(ctx, campaign, "a", "b") }()

	require.NoError(t, store.Save(ctx, campaign, "a", ""))
	require.NoError(t, store.Save(ctx, campaign, "b", "5"))
	got, err := store.Load(ctx, campaign)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "", "b": "5"}, got)

	require.NoError(t, store.Delete(ctx, campaign, "a"))
	got, err = store.Load(ctx, campaign)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"b": "5"}, got)
}
