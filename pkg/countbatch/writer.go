package countbatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ErrRejected el servidor rechazó el valor de forma definitiva (400, 404, 422...): reintentar
// el mismo valor no sirve. 401/403/408/409/429 no cuentan: dependen de la sesión o del estado
// de la campaña y se reintentan.
var ErrRejected = errors.New("escritura de conteo rechazada por el servidor")

// CountWriter persiste la cantidad contada de un ítem. qty nil = campo vacío.
type CountWriter interface {
	WriteCount(ctx context.Context, campaignID, itemID string, qty *int64) error
}

// ParseCount interpreta el texto del operador. Vacío, no numérico, decimal o negativo = nil.
func ParseCount(raw string) *int64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return nil
	}
	return &n
}

// HTTPCountWriter cliente del API de campañas.
type HTTPCountWriter struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewHTTPCountWriter construye el cliente. El timeout por request lo impone el batcher vía context;
// el del http.Client es solo un tope de red.
func NewHTTPCountWriter(baseURL, token string) *HTTPCountWriter {
	return &HTTPCountWriter{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type countBody struct {
	CountedQty *int64 `json:"countedQty"`
}

type validateBody struct {
	SyncStock bool `json:"syncStock"`
}

// WriteCount PUT /api/stock/campaigns/{id}/items/{itemId}.
func (w *HTTPCountWriter) WriteCount(ctx context.Context, campaignID, itemID string, qty *int64) error {
	path := fmt.Sprintf("/api/stock/campaigns/%s/items/%s", url.PathEscape(campaignID), url.PathEscape(itemID))
	return w.put(ctx, path, countBody{CountedQty: qty})
}

// Validate PUT /api/stock/campaigns/{id}/validate.
func (w *HTTPCountWriter) Validate(ctx context.Context, campaignID string, syncStock bool) error {
	return w.put(ctx, "/api/stock/campaigns/"+url.PathEscape(campaignID)+"/validate", validateBody{SyncStock: syncStock})
}

// Transition PUT /api/stock/campaigns/{id}/{suspend|resume|cancel}.
func (w *HTTPCountWriter) Transition(ctx context.Context, campaignID, action string) error {
	return w.put(ctx, "/api/stock/campaigns/"+url.PathEscape(campaignID)+"/"+url.PathEscape(action), struct{}{})
}

func (w *HTTPCountWriter) put(ctx context.Context, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("countbatch: serializar request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, w.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("countbatch: crear HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if w.token != "" {
		req.Header.Set("Authorization", "Bearer "+w.token)
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("countbatch: timeout o cancelación: %w", ctx.Err())
		}
		return fmt.Errorf("countbatch: llamada HTTP fallida: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
	msg := strings.TrimSpace(string(raw))
	switch {
	case retryableStatus(resp.StatusCode):
		return fmt.Errorf("countbatch: HTTP %d: %s", resp.StatusCode, msg)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return fmt.Errorf("%w: HTTP %d: %s", ErrRejected, resp.StatusCode, msg)
	default:
		return fmt.Errorf("countbatch: HTTP %d: %s", resp.StatusCode, msg)
	}
}

// retryableStatus 4xx transitorios: token vencido, permisos, campaña suspendida, límites.
func retryableStatus(code int) bool {
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusRequestTimeout,
		http.StatusConflict, http.StatusTooManyRequests:
		return true
	}
	return false
}
