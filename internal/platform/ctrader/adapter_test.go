package ctrader

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

func newGatewayAdapter(t *testing.T, handler http.Handler) *Adapter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	a, err := New(domain.EnvDemo, config.PlatformConfig{
		DemoURL:        srv.URL,
		ClientID:       "cid",
		ClientSecret:   "sec",
		TimeoutSeconds: 5,
	}, mockdata.NewPolicy(false))
	require.NoError(t, err)
	return a
}

func tokenCreds(expiresAt time.Time) domain.Credentials {
	return domain.Credentials{
		Kind:         domain.CredentialToken,
		AccessToken:  "at-1",
		RefreshToken: "rt-1",
		ExpiresAt:    expiresAt,
	}
}

func TestConnectVerifiesTokenBeforeCommit(t *testing.T) {
	var hits int64
	a := newGatewayAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
		assert.Equal(t, "/v2/tradingaccounts", r.URL.Path)
		assert.Equal(t, "Bearer at-1", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusUnauthorized)
	}))

	res := a.Connect(context.Background(), tokenCreds(time.Now().Add(time.Hour)))
	require.False(t, res.Success)
	assert.True(t, errors.Is(res.Err, platform.ErrAuth))
	assert.EqualValues(t, 1, atomic.LoadInt64(&hits))

	// The rejected token was never committed.
	_, err := a.Accounts(context.Background())
	assert.True(t, errors.Is(err, platform.ErrNotAuthenticated))
}

func TestConnectRejectsMissingToken(t *testing.T) {
	a := newGatewayAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("validation failures must not reach the gateway")
	}))
	res := a.Connect(context.Background(), domain.Credentials{Kind: domain.CredentialToken, RefreshToken: "rt-1"})
	require.False(t, res.Success)
	assert.True(t, errors.Is(res.Err, platform.ErrValidation))
}

func TestAccountsNormalizesCents(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/tradingaccounts", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{
				"accountId": 7001, "accountNumber": 3120841, "brokerTitle": "IC-Demo",
				"live": false, "depositCurrency": "EUR", "balance": 1043217, "leverageInCents": 10000,
			}},
		})
	})
	a := newGatewayAdapter(t, mux)

	require.True(t, a.Connect(context.Background(), tokenCreds(time.Now().Add(time.Hour))).Success)
	accounts, err := a.Accounts(context.Background())
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "7001", accounts[0].ID)
	assert.InDelta(t, 10432.17, accounts[0].Balance, 1e-9)
	assert.Equal(t, 100, accounts[0].Leverage)
	assert.Equal(t, "EUR", accounts[0].Currency)
}

func TestTokenRefreshNearExpiry(t *testing.T) {
	var refreshes int64
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/tradingaccounts", func(w http.ResponseWriter, r *http.Request) {
		switch r.Header.Get("Authorization") {
		case "Bearer at-1", "Bearer at-2":
			json.NewEncoder(w).Encode(map[string]any{"data": []map[string]any{}})
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	})
	mux.HandleFunc("/apps/token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&refreshes, 1)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "refresh_token", body["grant_type"])
		assert.Equal(t, "rt-1", body["refresh_token"])
		assert.Equal(t, "cid", body["client_id"])
		json.NewEncoder(w).Encode(map[string]any{
			"accessToken": "at-2", "refreshToken": "rt-2", "expiresIn": 3600,
		})
	})
	a := newGatewayAdapter(t, mux)

	// Token expires inside the refresh skew, so the first data call
	// refreshes before hitting the gateway.
	require.True(t, a.Connect(context.Background(), tokenCreds(time.Now().Add(10*time.Second))).Success)

	_, err := a.Accounts(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt64(&refreshes))

	// The refreshed token is far from expiry; no second refresh.
	_, err = a.Accounts(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt64(&refreshes))
}

func TestConnectionCheckDoesNotRefreshToken(t *testing.T) {
	var refreshes int64
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/tradingaccounts", func(w http.ResponseWriter, r *http.Request) {
		// The probe carries the held token as-is, even near expiry.
		assert.Equal(t, "Bearer at-1", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(map[string]any{"data": []map[string]any{}})
	})
	mux.HandleFunc("/apps/token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&refreshes, 1)
		json.NewEncoder(w).Encode(map[string]any{
			"accessToken": "at-2", "refreshToken": "rt-2", "expiresIn": 3600,
		})
	})
	a := newGatewayAdapter(t, mux)

	require.True(t, a.Connect(context.Background(), tokenCreds(time.Now().Add(10*time.Second))).Success)
	res := a.TestConnection(context.Background())
	require.True(t, res.Success)
	assert.EqualValues(t, 0, atomic.LoadInt64(&refreshes))
}

func TestExpiredTokenWithoutRefreshTokenIsAuthError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/tradingaccounts", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"data": []map[string]any{}})
	})
	a := newGatewayAdapter(t, mux)

	creds := domain.Credentials{
		Kind:        domain.CredentialToken,
		AccessToken: "at-1",
		ExpiresAt:   time.Now().Add(-time.Minute),
	}
	require.True(t, a.Connect(context.Background(), creds).Success)

	_, err := a.Accounts(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, platform.ErrAuth))
}

func TestTradeHistoryFiltersToRange(t *testing.T) {
	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(7 * 24 * time.Hour)
	inside := from.Add(24 * time.Hour)
	outside := from.Add(-24 * time.Hour)

	mux := http.NewServeMux()
	mux.HandleFunc("/v2/tradingaccounts", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"data": []map[string]any{}})
	})
	mux.HandleFunc("/v2/tradingaccounts/7001/deals", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"data": []map[string]any{
			{"symbolName": "EURUSD", "tradeSide": "BUY", "openTimestamp": inside.UnixMilli(), "entryPrice": 1.08, "volume": 1.0},
			{"symbolName": "EURUSD", "tradeSide": "SELL", "openTimestamp": outside.UnixMilli(), "entryPrice": 1.07, "volume": 1.0},
		}})
	})
	a := newGatewayAdapter(t, mux)

	require.True(t, a.Connect(context.Background(), tokenCreds(time.Now().Add(time.Hour))).Success)
	trades, err := a.TradeHistory(context.Background(), "7001", from, to)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, inside, trades[0].OpenTime)
	assert.Equal(t, domain.TradeBuy, trades[0].Direction)
}

func TestDisconnectDropsToken(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/tradingaccounts", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"data": []map[string]any{}})
	})
	a := newGatewayAdapter(t, mux)

	require.True(t, a.Connect(context.Background(), tokenCreds(time.Now().Add(time.Hour))).Success)
	require.NoError(t, a.Disconnect(context.Background(), "7001"))
	require.NoError(t, a.Disconnect(context.Background(), "7001"))

	_, err := a.Accounts(context.Background())
	assert.True(t, errors.Is(err, platform.ErrNotAuthenticated))
}
