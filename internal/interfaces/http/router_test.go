package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/inventario-auditoria/internal/application/audit"
	"github.com/jhoicas/inventario-auditoria/internal/application/billing"
	"github.com/jhoicas/inventario-auditoria/internal/application/campaign"
	"github.com/jhoicas/inventario-auditoria/internal/application/reconciliation"
	"github.com/jhoicas/inventario-auditoria/internal/application/stock"
	"github.com/jhoicas/inventario-auditoria/internal/domain/auditsig"
	"github.com/jhoicas/inventario-auditoria/internal/domain/entity"
	domrec "github.com/jhoicas/inventario-auditoria/internal/domain/reconciliation"
	"github.com/jhoicas/inventario-auditoria/internal/domain/repository"
	"github.com/jhoicas/inventario-auditoria/internal/infrastructure/memory"
	apphttp "github.com/jhoicas/inventario-auditoria/internal/interfaces/http"
	pkgjwt "github.com/jhoicas/inventario-auditoria/pkg/jwt"
	"github.com/jhoicas/inventario-auditoria/pkg/logger"
)

// ──────────────────────────────────────────────────────────────────────────────
// Helpers de test
// ──────────────────────────────────────────────────────────────────────────────

const webhookSecret = "whsec-test"

type apiFixture struct {
	app   *fiber.App
	store *memory.Store
}

func newAPI(t *testing.T) *apiFixture {
	t.Helper()
	ring, err := auditsig.NewKeyRing("v1", map[string]string{"v1": "test-key"})
	require.NoError(t, err)
	store := memory.NewStore()
	log := logger.Nop()
	auditUC := audit.NewLedgerUseCase(store.Repos().Audit, auditsig.NewSigner(ring))
	ledger := stock.NewLedgerUseCase(store, store.Repos(), auditUC)
	engine := reconciliation.NewEngine(ledger, auditUC, reconciliation.Config{
		TolerancePct: domrec.DefaultTolerancePct,
		Parallelism:  2,
	}, log)

	app := fiber.New()
	apphttp.Router(app, apphttp.RouterDeps{
		StockLedger:    ledger,
		CampaignUC:     campaign.NewUseCase(store, store.Repos(), auditUC, engine, log),
		AuditUC:        auditUC,
		WebhookUC:      billing.NewPaymentWebhookUseCase(store, auditUC, map[string]string{"wompi": webhookSecret}, log),
		JWTSecret:      testJWTSecret,
		JWTIssuer:      testIssuer,
		RequestTimeout: 5 * time.Second,
		Log:            log,
	})
	return &apiFixture{app: app, store: store}
}

// call ejecuta el request y decodifica el cuerpo JSON (si lo hay) en out.
func (f *apiFixture) call(t *testing.T, method, path, auth string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (f *apiFixture) createItem(t *testing.T, auth, sku string, level int64) string {
	t.Helper()
	var item struct {
		ID string `json:"id"`
	}
	status := f.call(t, http.MethodPost, "/api/stock", auth, map[string]any{
		"sku": sku, "name": "Item " + sku, "initialLevel": level, "minThreshold": 2,
	}, &item)
	require.Equal(t, http.StatusCreated, status)
	return item.ID
}

type campaignItems struct {
	Status  string `json:"status"`
	Total   int    `json:"total"`
	Counted int    `json:"counted"`
	Items   []struct {
		StockItemID string `json:"stockItemId"`
		SystemQty   *int64 `json:"systemQty"`
		CountedQty  *int64 `json:"countedQty"`
	} `json:"items"`
}

// ──────────────────────────────────────────────────────────────────────────────
// Rutas públicas
// ──────────────────────────────────────────────────────────────────────────────

func TestHealth(t *testing.T) {
	f := newAPI(t)
	var body map[string]string
	assert.Equal(t, http.StatusOK, f.call(t, http.MethodGet, "/health", "", nil, &body))
	assert.Equal(t, "ok", body["status"])
}

func TestRutasProtegidas_SinToken401(t *testing.T) {
	f := newAPI(t)
	for _, path := range []string{"/api/stock", "/api/stock/campaigns", "/api/audit", "/api/audit/verify"} {
		assert.Equal(t, http.StatusUnauthorized, f.call(t, http.MethodGet, path, "", nil, nil), path)
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Stock
// ──────────────────────────────────────────────────────────────────────────────

func TestStock_AltaAjusteYBajo(t *testing.T) {
	f := newAPI(t)
	auth := bearer(t, testTenantID, pkgjwt.RoleOperator)
	id := f.createItem(t, auth, "SKU-1", 5)

	var mov struct {
		ResultingLevel int64 `json:"resultingLevel"`
	}
	status := f.call(t, http.MethodPost, "/api/stock/"+id+"/adjust", auth, map[string]any{"type": "OUT", "quantity": 4, "reason": "merma"}, &mov)
	require.Equal(t, http.StatusCreated, status)
	assert.EqualValues(t, 1, mov.ResultingLevel)

	var errBody map[string]string
	status = f.call(t, http.MethodPost, "/api/stock/"+id+"/adjust", auth, map[string]any{"type": "OUT", "quantity": 2}, &errBody)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "INSUFFICIENT_STOCK", errBody["code"])

	var low struct {
		Total int `json:"total"`
	}
	require.Equal(t, http.StatusOK, f.call(t, http.MethodGet, "/api/stock/low", auth, nil, &low))
	assert.Equal(t, 1, low.Total)

	var movements []map[string]any
	require.Equal(t, http.StatusOK, f.call(t, http.MethodGet, "/api/stock/"+id+"/movements", auth, nil, &movements))
	assert.Len(t, movements, 2) // saldo inicial + salida
}

func TestStock_SkuDuplicado409YTenantAislado(t *testing.T) {
	f := newAPI(t)
	auth := bearer(t, testTenantID, pkgjwt.RoleOperator)
	f.createItem(t, auth, "SKU-1", 1)

	var errBody map[string]string
	status := f.call(t, http.MethodPost, "/api/stock", auth, map[string]any{"sku": "SKU-1", "name": "otro"}, &errBody)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "DUPLICATE", errBody["code"])

	var items []map[string]any
	require.Equal(t, http.StatusOK, f.call(t, http.MethodGet, "/api/stock", bearer(t, "otro-tenant", pkgjwt.RoleOperator), nil, &items))
	assert.Empty(t, items)
}

func TestInvoiceFinalized_NoDescuentaDosVeces(t *testing.T) {
	f := newAPI(t)
	auth := bearer(t, testTenantID, pkgjwt.RoleOperator)
	id := f.createItem(t, auth, "SKU-1", 10)
	body := map[string]any{"lines": []map[string]any{{"stockItemId": id, "qty": 3}}}

	var first, second struct {
		Applied   bool             `json:"applied"`
		Movements []map[string]any `json:"movements"`
	}
	require.Equal(t, http.StatusOK, f.call(t, http.MethodPost, "/api/invoices/inv-1/finalized", auth, body, &first))
	require.Equal(t, http.StatusOK, f.call(t, http.MethodPost, "/api/invoices/inv-1/finalized", auth, body, &second))
	assert.True(t, first.Applied)
	assert.Len(t, first.Movements, 1)
	assert.False(t, second.Applied)

	it, err := f.store.Repos().Stock.GetByID(context.Background(), testTenantID, id)
	require.NoError(t, err)
	assert.EqualValues(t, 7, it.CurrentLevel)
}

// ──────────────────────────────────────────────────────────────────────────────
// Campañas
// ──────────────────────────────────────────────────────────────────────────────

func TestCampaign_FlujoCompletoConConteoCiego(t *testing.T) {
	f := newAPI(t)
	operator := bearer(t, testTenantID, pkgjwt.RoleOperator)
	supervisor := bearer(t, testTenantID, pkgjwt.RoleSupervisor)
	id := f.createItem(t, operator, "SKU-1", 50)

	var camp struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	require.Equal(t, http.StatusCreated, f.call(t, http.MethodPost, "/api/stock/campaigns", operator, map[string]string{"name": "Cierre mensual"}, &camp))
	assert.Equal(t, entity.CampaignStatusDraft, camp.Status)

	// Segunda campaña abierta: conflicto.
	var errBody map[string]string
	assert.Equal(t, http.StatusConflict, f.call(t, http.MethodPost, "/api/stock/campaigns", operator, map[string]string{"name": "otra"}, &errBody))
	assert.Equal(t, "CAMPAIGN_CONFLICT", errBody["code"])

	base := "/api/stock/campaigns/" + camp.ID

	var items campaignItems
	require.Equal(t, http.StatusOK, f.call(t, http.MethodGet, base+"/items", operator, nil, &items))
	require.Len(t, items.Items, 1)
	assert.Nil(t, items.Items[0].SystemQty, "SystemQty oculto mientras la campaña está abierta")
	assert.Zero(t, items.Counted)

	// Validar sin contar: incompleto.
	assert.Equal(t, http.StatusConflict, f.call(t, http.MethodPut, base+"/validate", supervisor, map[string]bool{"syncStock": true}, &errBody))
	assert.Equal(t, "INCOMPLETE_COUNT", errBody["code"])

	require.Equal(t, http.StatusNoContent, f.call(t, http.MethodPut, base+"/items/"+id, operator, map[string]any{"countedQty": 45}, nil))

	// El operador no puede cerrar la campaña.
	assert.Equal(t, http.StatusForbidden, f.call(t, http.MethodPut, base+"/validate", operator, map[string]bool{"syncStock": true}, nil))

	// Informe antes de validar: estado inválido.
	assert.Equal(t, http.StatusConflict, f.call(t, http.MethodGet, base+"/report", operator, nil, &errBody))
	assert.Equal(t, "INVALID_TRANSITION", errBody["code"])

	var validated struct {
		Campaign struct {
			Status string `json:"status"`
		} `json:"campaign"`
		Report entity.ReconciliationReport `json:"report"`
	}
	require.Equal(t, http.StatusOK, f.call(t, http.MethodPut, base+"/validate", supervisor, map[string]bool{"syncStock": true}, &validated))
	assert.Equal(t, entity.CampaignStatusValidated, validated.Campaign.Status)
	assert.Equal(t, 1, validated.Report.AdjustmentsApplied)
	require.Len(t, validated.Report.Lines, 1)
	assert.EqualValues(t, -5, validated.Report.Lines[0].Delta)

	require.Equal(t, http.StatusOK, f.call(t, http.MethodGet, base+"/items", operator, nil, &items))
	require.NotNil(t, items.Items[0].SystemQty)
	assert.EqualValues(t, 50, *items.Items[0].SystemQty)

	var report entity.ReconciliationReport
	require.Equal(t, http.StatusOK, f.call(t, http.MethodGet, base+"/report", operator, nil, &report))
	assert.Equal(t, camp.ID, report.CampaignID)

	it, err := f.store.Repos().Stock.GetByID(context.Background(), testTenantID, id)
	require.NoError(t, err)
	assert.EqualValues(t, 45, it.CurrentLevel)

	// Campaña cerrada: no admite más conteos.
	assert.Equal(t, http.StatusConflict, f.call(t, http.MethodPut, base+"/items/"+id, operator, map[string]any{"countedQty": 1}, nil))
}

func TestCampaign_SuspenderReanudarCancelar(t *testing.T) {
	f := newAPI(t)
	operator := bearer(t, testTenantID, pkgjwt.RoleOperator)
	admin := bearer(t, testTenantID, pkgjwt.RoleAdmin)
	f.createItem(t, operator, "SKU-1", 1)

	var camp struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	require.Equal(t, http.StatusCreated, f.call(t, http.MethodPost, "/api/stock/campaigns", operator, map[string]string{"name": "c"}, &camp))
	base := "/api/stock/campaigns/" + camp.ID

	require.Equal(t, http.StatusOK, f.call(t, http.MethodPut, base+"/suspend", operator, nil, &camp))
	assert.Equal(t, entity.CampaignStatusSuspended, camp.Status)
	assert.Equal(t, http.StatusConflict, f.call(t, http.MethodPut, base+"/suspend", operator, nil, nil))

	require.Equal(t, http.StatusOK, f.call(t, http.MethodPut, base+"/resume", operator, nil, &camp))
	assert.Equal(t, entity.CampaignStatusDraft, camp.Status)

	assert.Equal(t, http.StatusForbidden, f.call(t, http.MethodPut, base+"/cancel", operator, nil, nil))
	require.Equal(t, http.StatusOK, f.call(t, http.MethodPut, base+"/cancel", admin, nil, &camp))
	assert.Equal(t, entity.CampaignStatusCancelled, camp.Status)

	var list struct {
		Items []map[string]any `json:"items"`
	}
	require.Equal(t, http.StatusOK, f.call(t, http.MethodGet, "/api/stock/campaigns", operator, nil, &list))
	assert.Len(t, list.Items, 1)

	var paged struct {
		Page struct {
			Limit  int `json:"limit"`
			Offset int `json:"offset"`
		} `json:"page"`
	}
	require.Equal(t, http.StatusOK, f.call(t, http.MethodGet, "/api/stock/campaigns?limit=500&offset=-3", operator, nil, &paged))
	assert.Equal(t, 20, paged.Page.Limit, "el límite fuera de rango toma el valor por defecto")
	assert.Zero(t, paged.Page.Offset)

	assert.Equal(t, http.StatusNotFound, f.call(t, http.MethodGet, "/api/stock/campaigns/no-existe", operator, nil, nil))
}

// ──────────────────────────────────────────────────────────────────────────────
// Bitácora
// ──────────────────────────────────────────────────────────────────────────────

func TestAudit_ListarYVerificar(t *testing.T) {
	f := newAPI(t)
	auth := bearer(t, testTenantID, pkgjwt.RoleAdmin)
	f.createItem(t, auth, "SKU-1", 3)

	var entries []struct {
		ID        string `json:"id"`
		Action    string `json:"action"`
		Signature string `json:"signature"`
	}
	require.Equal(t, http.StatusOK, f.call(t, http.MethodGet, "/api/audit?action="+entity.ActionCreateStockItem, auth, nil, &entries))
	require.Len(t, entries, 1)
	assert.NotEmpty(t, entries[0].Signature)

	var verify struct {
		Valid      bool     `json:"valid"`
		Checked    int      `json:"checked"`
		Mismatched []string `json:"mismatched"`
	}
	require.Equal(t, http.StatusOK, f.call(t, http.MethodGet, "/api/audit/verify", auth, nil, &verify))
	assert.True(t, verify.Valid)
	assert.Positive(t, verify.Checked)

	require.True(t, f.store.UnsafeMutateAudit(entries[0].ID, func(e *entity.AuditLogEntry) {
		e.Details["sku"] = "SKU-ALTERADO"
	}))
	assert.Equal(t, http.StatusConflict, f.call(t, http.MethodGet, "/api/audit/verify", auth, nil, &verify))
	assert.False(t, verify.Valid)
	assert.Equal(t, []string{entries[0].ID}, verify.Mismatched)
}

// ──────────────────────────────────────────────────────────────────────────────
// Webhook de pagos
// ──────────────────────────────────────────────────────────────────────────────

func TestWebhook_FirmaInvalida401SinCambios(t *testing.T) {
	f := newAPI(t)
	ev := billing.PaymentEvent{EventID: "evt-1", Provider: "wompi", TenantID: testTenantID, Amount: decimal.NewFromInt(10), Status: billing.PaymentStatusSuccess, Signature: "deadbeef"}

	var errBody map[string]string
	assert.Equal(t, http.StatusUnauthorized, f.call(t, http.MethodPost, "/api/webhooks/payments", "", ev, &errBody))
	assert.Equal(t, "UNAUTHORIZED", errBody["code"])

	_, err := f.store.Repos().Billing.Get(context.Background(), testTenantID)
	assert.Error(t, err)
	entries, err := f.store.Repos().Audit.List(context.Background(), testTenantID, repository.AuditFilter{})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestWebhook_PagoValidoActivaTenant(t *testing.T) {
	f := newAPI(t)
	ev := billing.PaymentEvent{EventID: "evt-1", Provider: "wompi", TenantID: testTenantID, Amount: decimal.NewFromInt(10), Status: billing.PaymentStatusSuccess}
	sig, err := billing.SignPayload(webhookSecret, ev)
	require.NoError(t, err)
	ev.Signature = sig

	var ack struct {
		Received      bool   `json:"received"`
		Applied       bool   `json:"applied"`
		Duplicate     bool   `json:"duplicate"`
		BillingStatus string `json:"billingStatus"`
	}
	require.Equal(t, http.StatusOK, f.call(t, http.MethodPost, "/api/webhooks/payments", "", ev, &ack))
	assert.True(t, ack.Applied)
	assert.Equal(t, entity.BillingStatusActive, ack.BillingStatus)

	require.Equal(t, http.StatusOK, f.call(t, http.MethodPost, "/api/webhooks/payments", "", ev, &ack))
	assert.False(t, ack.Applied)
	assert.True(t, ack.Duplicate)
}

func TestWebhook_ExitosoSinEventID400(t *testing.T) {
	f := newAPI(t)
	ev := billing.PaymentEvent{Provider: "wompi", TenantID: testTenantID, Amount: decimal.NewFromInt(10), Status: billing.PaymentStatusSuccess}
	sig, err := billing.SignPayload(webhookSecret, ev)
	require.NoError(t, err)
	ev.Signature = sig

	for i := 0; i < 2; i++ {
		var errBody map[string]string
		assert.Equal(t, http.StatusBadRequest, f.call(t, http.MethodPost, "/api/webhooks/payments", "", ev, &errBody))
		assert.Equal(t, "VALIDATION", errBody["code"])
	}
	_, err = f.store.Repos().Billing.Get(context.Background(), testTenantID)
	assert.Error(t, err)
}
