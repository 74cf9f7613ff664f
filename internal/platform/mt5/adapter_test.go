package mt5

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brokergate/internal/config"
	"brokergate/internal/domain"
	"brokergate/internal/mockdata"
	"brokergate/internal/platform"
)

func newBridgeAdapter(t *testing.T, handler http.Handler) (*Adapter, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	a, err := New(domain.EnvDemo, config.PlatformConfig{DemoURL: srv.URL, TimeoutSeconds: 5}, mockdata.NewPolicy(false))
	require.NoError(t, err)
	return a, srv
}

func validCreds() domain.Credentials {
	return domain.Credentials{Kind: domain.CredentialPassword, Login: "100234", Password: "secret", Server: "Demo-01"}
}

func TestConnectRejectsEmptyCredentialsWithoutNetwork(t *testing.T) {
	var hits int64
	a, _ := newBridgeAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
	}))

	res := a.Connect(context.Background(), domain.Credentials{Login: "100234"})
	require.False(t, res.Success)
	assert.True(t, errors.Is(res.Err, platform.ErrValidation))
	assert.EqualValues(t, 0, atomic.LoadInt64(&hits), "validation failures must not reach the bridge")
}

func TestConnectRetriesTransportFailures(t *testing.T) {
	var hits int64
	a, _ := newBridgeAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt64(&hits, 1)
		if n < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		require.Equal(t, "/connect", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]string{"token": "sess-1", "accountId": "100234"})
	}))

	res := a.Connect(context.Background(), validCreds())
	require.True(t, res.Success, "connect should recover within the retry budget: %v", res.Err)
	assert.EqualValues(t, 3, atomic.LoadInt64(&hits))
}

func TestConnectDoesNotRetryAuthRejection(t *testing.T) {
	var hits int64
	a, _ := newBridgeAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))

	res := a.Connect(context.Background(), validCreds())
	require.False(t, res.Success)
	assert.True(t, errors.Is(res.Err, platform.ErrAuth))
	assert.EqualValues(t, 1, atomic.LoadInt64(&hits))
}

func TestConnectGivesUpAfterMaxAttempts(t *testing.T) {
	var hits int64
	a, _ := newBridgeAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	res := a.Connect(context.Background(), validCreds())
	require.False(t, res.Success)
	assert.True(t, errors.Is(res.Err, platform.ErrTransport))
	assert.EqualValues(t, platform.MaxAttempts, atomic.LoadInt64(&hits))
}

func TestOperationsBeforeConnect(t *testing.T) {
	a, _ := newBridgeAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("unauthenticated operations must not reach the bridge")
	}))

	_, err := a.Accounts(context.Background())
	assert.True(t, errors.Is(err, platform.ErrNotAuthenticated))
	_, err = a.OpenPositions(context.Background(), "100234")
	assert.True(t, errors.Is(err, platform.ErrNotAuthenticated))
	_, err = a.TradeHistory(context.Background(), "100234", time.Now().Add(-time.Hour), time.Now())
	assert.True(t, errors.Is(err, platform.ErrNotAuthenticated))
}

func TestAccountsMapsBridgePayload(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/connect", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"token": "sess-1", "accountId": "100234"})
	})
	mux.HandleFunc("/accounts", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sess-1", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode([]map[string]any{
			{"accountId": "100234", "name": "Main", "server": "Demo-01", "balance": 10432.17, "equity": 10561.02, "currency": "EUR", "leverage": 100},
			{"accountId": "100235", "name": "Scalp", "server": "Demo-01", "balance": 250.0, "equity": 250.0, "leverage": 30},
		})
	})
	a, _ := newBridgeAdapter(t, mux)

	require.True(t, a.Connect(context.Background(), validCreds()).Success)
	accounts, err := a.Accounts(context.Background())
	require.NoError(t, err)
	require.Len(t, accounts, 2)

	assert.Equal(t, domain.PlatformMT5, accounts[0].Platform)
	assert.Equal(t, domain.EnvDemo, accounts[0].Environment)
	assert.Equal(t, "EUR", accounts[0].Currency)
	assert.InDelta(t, 10432.17, accounts[0].Balance, 1e-9)
	// Missing currency falls back to USD.
	assert.Equal(t, "USD", accounts[1].Currency)
}

func TestTradeHistoryPaginatesAndValidatesDeals(t *testing.T) {
	ts := time.Date(2026, 8, 10, 12, 0, 0, 0, time.UTC)
	closeTS := ts.Add(2 * time.Hour).Unix()
	closePrice := 1.085

	mux := http.NewServeMux()
	mux.HandleFunc("/connect", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"token": "sess-1"})
	})
	var pages int64
	mux.HandleFunc("/history", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&pages, 1)
		json.NewEncoder(w).Encode([]map[string]any{
			{"symbol": "EURUSD", "type": "buy", "openTime": ts.Unix(), "openPrice": 1.081,
				"closeTime": closeTS, "closePrice": closePrice, "volume": 1.5, "profit": 60.0},
			{"symbol": "GBPUSD", "type": "sell", "openTime": ts.Add(time.Hour).Unix(), "openPrice": 1.27, "volume": 0.5},
		})
	})
	a, _ := newBridgeAdapter(t, mux)

	require.True(t, a.Connect(context.Background(), validCreds()).Success)
	trades, err := a.TradeHistory(context.Background(), "100234", ts.Add(-time.Hour), ts.Add(24*time.Hour))
	require.NoError(t, err)
	// Short page means no further fetches.
	assert.EqualValues(t, 1, atomic.LoadInt64(&pages))
	require.Len(t, trades, 2)

	require.NoError(t, trades[0].Validate())
	assert.Equal(t, domain.TradeClosed, trades[0].Status)
	require.NotNil(t, trades[0].CloseTime)
	assert.Equal(t, closeTS, trades[0].CloseTime.Unix())
	assert.Equal(t, domain.TradeOpen, trades[1].Status)
	assert.Nil(t, trades[1].ClosePrice)
}

func TestTradeHistoryRejectsMismatchedCloseFields(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/connect", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"token": "sess-1"})
	})
	mux.HandleFunc("/history", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]any{
			{"symbol": "EURUSD", "type": "buy", "openTime": time.Now().Add(-time.Hour).Unix(),
				"openPrice": 1.081, "closeTime": time.Now().Unix(), "volume": 1.0},
		})
	})
	a, _ := newBridgeAdapter(t, mux)

	require.True(t, a.Connect(context.Background(), validCreds()).Success)
	_, err := a.TradeHistory(context.Background(), "100234", time.Now().Add(-24*time.Hour), time.Now())
	require.Error(t, err)
	assert.True(t, errors.Is(err, platform.ErrUpstreamFormat))
}

func TestDisconnectIsIdempotent(t *testing.T) {
	var disconnects int64
	mux := http.NewServeMux()
	mux.HandleFunc("/connect", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"token": "sess-1"})
	})
	mux.HandleFunc("/disconnect", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&disconnects, 1)
		// Upstream failure must not surface to the caller.
		w.WriteHeader(http.StatusInternalServerError)
	})
	a, _ := newBridgeAdapter(t, mux)

	require.True(t, a.Connect(context.Background(), validCreds()).Success)
	assert.NoError(t, a.Disconnect(context.Background(), "100234"))
	assert.NoError(t, a.Disconnect(context.Background(), "100234"))
	// Second disconnect has no session, so the bridge sees exactly one call.
	assert.EqualValues(t, 1, atomic.LoadInt64(&disconnects))

	_, err := a.Accounts(context.Background())
	assert.True(t, errors.Is(err, platform.ErrNotAuthenticated))
}

func TestMockModeServesWithoutBridge(t *testing.T) {
	a, err := New(domain.EnvDemo, config.PlatformConfig{DemoURL: "http://127.0.0.1:1"}, mockdata.NewPolicy(true))
	require.NoError(t, err)

	res := a.Connect(context.Background(), domain.Credentials{})
	require.False(t, res.Success, "mock mode still validates credentials")
	assert.True(t, errors.Is(res.Err, platform.ErrValidation))

	require.True(t, a.Connect(context.Background(), validCreds()).Success)
	accounts, err := a.Accounts(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, accounts)
}
