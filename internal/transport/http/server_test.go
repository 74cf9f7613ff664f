package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"brokergate/internal/config"
	"brokergate/internal/mockdata"
	"brokergate/internal/registry"
	"brokergate/internal/store/accounts"
)

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	store, err := accounts.New(filepath.Join(t.TempDir(), "brokergate.db"))
	require.NoError(t, err)
	reg := registry.New(config.Default(), mockdata.NewPolicy(true))
	srv, err := NewServer(ServerConfig{Addr: ":0", Registry: reg, Accounts: store})
	require.NoError(t, err)
	return srv.Handler()
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(buf)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	h := newTestHandler(t)
	rec := doJSON(t, h, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListPlatformsEnvelope(t *testing.T) {
	h := newTestHandler(t)
	rec := doJSON(t, h, http.MethodGet, "/api/platforms", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.True(t, gjson.Get(body, "success").Bool())
	assert.Equal(t, int64(5), gjson.Get(body, "data.#").Int())
	assert.False(t, gjson.Get(body, "message").Exists(), "success responses carry no message field")
}

func TestConnectFlow(t *testing.T) {
	h := newTestHandler(t)

	rec := doJSON(t, h, http.MethodPost, "/api/platforms/mt5/connect", map[string]any{
		"environment": "demo",
		"credentials": map[string]string{"login": "100234", "password": "secret", "server": "Demo-01"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, gjson.Get(rec.Body.String(), "success").Bool())

	rec = doJSON(t, h, http.MethodGet, "/api/platforms/mt5/accounts?environment=demo", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Greater(t, gjson.Get(rec.Body.String(), "data.#").Int(), int64(0))
}

func TestConnectRejectsBadCredentialsWith400(t *testing.T) {
	h := newTestHandler(t)
	rec := doJSON(t, h, http.MethodPost, "/api/platforms/mt5/connect", map[string]any{
		"environment": "demo",
		"credentials": map[string]string{"login": "100234"},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	body := rec.Body.String()
	assert.False(t, gjson.Get(body, "success").Bool())
	assert.NotEmpty(t, gjson.Get(body, "message").String())
	assert.False(t, gjson.Get(body, "data").Exists(), "failure responses carry no data field")
}

func TestUnknownPlatformIs400(t *testing.T) {
	h := newTestHandler(t)
	rec := doJSON(t, h, http.MethodGet, "/api/platforms/etrade/accounts", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, gjson.Get(rec.Body.String(), "success").Bool())
}

func TestUnknownEnvironmentIs400(t *testing.T) {
	h := newTestHandler(t)
	rec := doJSON(t, h, http.MethodGet, "/api/platforms/mt5/accounts?environment=staging", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTradeHistoryEnvelope(t *testing.T) {
	h := newTestHandler(t)

	rec := doJSON(t, h, http.MethodGet,
		"/api/platforms/mt5/accounts/100234/trades?environment=demo&from=2026-07-01T00:00:00Z&to=2026-08-30T00:00:00Z", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, gjson.Get(body, "success").Bool())
	assert.True(t, gjson.Get(body, "data").IsArray())

	// An empty window still answers with an array, never null.
	rec = doJSON(t, h, http.MethodGet,
		"/api/platforms/mt5/accounts/100234/trades?environment=demo&from=2020-01-01T00:00:00Z&to=2020-01-02T00:00:00Z", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body = rec.Body.String()
	assert.True(t, gjson.Get(body, "data").IsArray())
	assert.Equal(t, int64(0), gjson.Get(body, "data.#").Int())
}

func TestTradeHistoryInvertedRangeIs400(t *testing.T) {
	h := newTestHandler(t)
	rec := doJSON(t, h, http.MethodGet,
		"/api/platforms/mt5/accounts/100234/trades?environment=demo&from=2026-08-30T00:00:00Z&to=2026-07-01T00:00:00Z", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDisconnectIsIdempotentOverHTTP(t *testing.T) {
	h := newTestHandler(t)
	body := map[string]any{"environment": "demo", "accountId": "100234"}

	rec := doJSON(t, h, http.MethodPost, "/api/platforms/mt5/disconnect", body)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, h, http.MethodPost, "/api/platforms/mt5/disconnect", body)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, gjson.Get(rec.Body.String(), "data.disconnected").Bool())
}

func TestProviderEndpoints(t *testing.T) {
	h := newTestHandler(t)

	rec := doJSON(t, h, http.MethodGet, "/api/providers", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Greater(t, gjson.Get(rec.Body.String(), "data.#").Int(), int64(0))

	rec = doJSON(t, h, http.MethodGet, "/api/providers/binance/symbols", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, gjson.Get(rec.Body.String(), "data").IsArray())

	rec = doJSON(t, h, http.MethodGet,
		"/api/providers/binance/bars?symbol=BTCUSD&timeframe=H1&from=2026-08-01T00:00:00Z&to=2026-08-02T00:00:00Z", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, gjson.Get(rec.Body.String(), "data").IsArray())

	rec = doJSON(t, h, http.MethodGet, "/api/providers/binance/bars?symbol=BTCUSD&timeframe=W9", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLinkedAccountCRUD(t *testing.T) {
	h := newTestHandler(t)

	rec := doJSON(t, h, http.MethodPost, "/api/accounts", map[string]string{
		"accountId": "100234", "platform": "mt5", "environment": "demo", "name": "Main", "currency": "USD",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/accounts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.Equal(t, int64(1), gjson.Get(body, "data.#").Int())
	assert.Equal(t, "100234", gjson.Get(body, "data.0.accountId").String())

	rec = doJSON(t, h, http.MethodPost, "/api/accounts", map[string]string{
		"accountId": "100234", "platform": "mt5", "environment": "live", "name": "Renamed",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, h, http.MethodGet, "/api/accounts", nil)
	body = rec.Body.String()
	require.Equal(t, int64(1), gjson.Get(body, "data.#").Int(), "linking the same id twice upserts")
	assert.Equal(t, "Renamed", gjson.Get(body, "data.0.name").String())

	rec = doJSON(t, h, http.MethodDelete, "/api/accounts/100234", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, h, http.MethodGet, "/api/accounts", nil)
	assert.Equal(t, int64(0), gjson.Get(rec.Body.String(), "data.#").Int())

	rec = doJSON(t, h, http.MethodPost, "/api/accounts", map[string]string{"platform": "mt5"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
