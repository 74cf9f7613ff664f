// Package ctrader integrates cTrader accounts via the Open API REST
// gateway. Auth is OAuth-style: the caller supplies an access token and
// refresh token, and the adapter refreshes transparently near expiry
// using the configured client id/secret.
package ctrader

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"brokergate/internal/config"
	"brokergate/internal/domain"
	"brokergate/internal/logger"
	"brokergate/internal/mockdata"
	"brokergate/internal/platform"
	"brokergate/internal/platform/httpx"
)

const (
	historyPageLimit = 500
	refreshSkew      = 60 * time.Second
)

type token struct {
	access    string
	refresh   string
	expiresAt time.Time
}

// Adapter implements platform.Adapter for cTrader.
type Adapter struct {
	env          domain.Environment
	client       *httpx.Client
	mock         mockdata.Policy
	clientID     string
	clientSecret string

	mu    sync.Mutex
	token *token
}

// New builds a cTrader adapter for the environment's API gateway.
func New(env domain.Environment, cfg config.PlatformConfig, mock mockdata.Policy) (*Adapter, error) {
	client, err := httpx.New(cfg.BaseURL(string(env)), time.Duration(cfg.TimeoutSeconds)*time.Second)
	if err != nil {
		return nil, fmt.Errorf("ctrader %s: %w", env, err)
	}
	return &Adapter{
		env:          env,
		client:       client,
		mock:         mock,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
	}, nil
}

func (a *Adapter) Platform() domain.Platform       { return domain.PlatformCTrader }
func (a *Adapter) Environment() domain.Environment { return a.env }

// SetHTTPClient swaps the transport for testing.
func (a *Adapter) SetHTTPClient(c *http.Client) { a.client.SetHTTPClient(c) }

func (a *Adapter) Connect(ctx context.Context, creds domain.Credentials) domain.ConnectionResult {
	if err := creds.Validate(domain.CredentialToken); err != nil {
		return domain.ConnectFailed(platform.Validationf("%v", err), "")
	}
	candidate := &token{access: creds.AccessToken, refresh: creds.RefreshToken, expiresAt: creds.ExpiresAt}
	if a.mock.Enabled() {
		a.setToken(candidate)
		return domain.ConnectOK()
	}
	// Verify the token before committing it to the session: a rejected
	// token must leave existing state untouched.
	err := platform.WithRetry(ctx, "ctrader connect", func(ctx context.Context) error {
		return a.client.Do(ctx, http.MethodGet, "/v2/tradingaccounts", nil, nil, httpx.WithBearer(candidate.access))
	})
	if err != nil {
		return domain.ConnectFailed(err, "")
	}
	a.setToken(candidate)
	return domain.ConnectOK()
}

func (a *Adapter) Disconnect(ctx context.Context, accountID string) error {
	a.mu.Lock()
	a.token = nil
	a.mu.Unlock()
	// The gateway has no logout endpoint; dropping the token is the
	// whole teardown. Idempotent for unknown account ids.
	return nil
}

func (a *Adapter) TestConnection(ctx context.Context) domain.ConnectionResult {
	if a.mock.Enabled() {
		return domain.ConnectOK()
	}
	// A health probe must not mutate the session, so it reads the token
	// as-is instead of going through the refresh path.
	tok, err := a.currentToken()
	if err != nil {
		return domain.ConnectFailed(err, "ctrader session missing")
	}
	if err := a.client.Do(ctx, http.MethodGet, "/v2/tradingaccounts", nil, nil, httpx.WithBearer(tok)); err != nil {
		return domain.ConnectFailed(err, "ctrader connectivity check failed")
	}
	return domain.ConnectOK()
}

type tradingAccount struct {
	ID       int64  `json:"accountId"`
	Number   int64  `json:"accountNumber"`
	Name     string `json:"brokerTitle"`
	Live     bool   `json:"live"`
	Currency string `json:"depositCurrency"`
	Balance  int64  `json:"balance"` // cents
	Leverage int    `json:"leverageInCents"`
}

type tradingAccountsResponse struct {
	Data []tradingAccount `json:"data"`
}

func (a *Adapter) Accounts(ctx context.Context) ([]domain.Account, error) {
	if a.mock.Enabled() {
		return mockdata.Accounts(domain.PlatformCTrader, a.env), nil
	}
	var resp tradingAccountsResponse
	if err := a.authedGet(ctx, "ctrader accounts", "/v2/tradingaccounts", &resp); err != nil {
		return nil, err
	}
	accounts := make([]domain.Account, 0, len(resp.Data))
	for _, acc := range resp.Data {
		accounts = append(accounts, a.mapAccount(acc))
	}
	return accounts, nil
}

func (a *Adapter) AccountInfo(ctx context.Context, accountID string) (domain.Account, error) {
	if a.mock.Enabled() {
		return mockdata.Account(domain.PlatformCTrader, a.env, accountID), nil
	}
	var acc tradingAccount
	if err := a.authedGet(ctx, "ctrader account info", "/v2/tradingaccounts/"+url.PathEscape(accountID), &acc); err != nil {
		return domain.Account{}, err
	}
	return a.mapAccount(acc), nil
}

func (a *Adapter) mapAccount(acc tradingAccount) domain.Account {
	currency := acc.Currency
	if currency == "" {
		logger.Warnf("ctrader account %d missing deposit currency, defaulting to USD", acc.ID)
		currency = "USD"
	}
	leverage := acc.Leverage / 100
	return domain.Account{
		Platform:    domain.PlatformCTrader,
		Environment: a.env,
		ID:          strconv.FormatInt(acc.ID, 10),
		Name:        acc.Name,
		Server:      "cTrader",
		Balance:     float64(acc.Balance) / 100,
		Equity:      float64(acc.Balance) / 100,
		Currency:    currency,
		Leverage:    leverage,
		Status:      domain.AccountActive,
		UpdatedAt:   time.Now().UTC(),
	}
}

type ctPosition struct {
	Symbol       string  `json:"symbolName"`
	TradeSide    string  `json:"tradeSide"` // "BUY" | "SELL"
	EntryPrice   float64 `json:"entryPrice"`
	CurrentPrice float64 `json:"currentPrice"`
	Volume       float64 `json:"volume"`
	Profit       float64 `json:"profit"`
	OpenMillis   int64   `json:"openTimestamp"`
}

type ctPositionsResponse struct {
	Data []ctPosition `json:"data"`
}

func (a *Adapter) OpenPositions(ctx context.Context, accountID string) ([]domain.Position, error) {
	if a.mock.Enabled() {
		return mockdata.Positions(domain.PlatformCTrader, a.env, accountID), nil
	}
	var resp ctPositionsResponse
	path := "/v2/tradingaccounts/" + url.PathEscape(accountID) + "/positions"
	if err := a.authedGet(ctx, "ctrader positions", path, &resp); err != nil {
		return nil, err
	}
	positions := make([]domain.Position, 0, len(resp.Data))
	for _, p := range resp.Data {
		direction := domain.PositionLong
		if p.TradeSide == "SELL" {
			direction = domain.PositionShort
		}
		positions = append(positions, domain.Position{
			AccountID: accountID,
			Symbol:    p.Symbol,
			Direction: direction,
			OpenPrice: p.EntryPrice,
			MarkPrice: p.CurrentPrice,
			Volume:    p.Volume,
			Profit:    p.Profit,
			OpenedAt:  time.UnixMilli(p.OpenMillis).UTC(),
		})
	}
	return positions, nil
}

type ctDeal struct {
	Symbol      string   `json:"symbolName"`
	TradeSide   string   `json:"tradeSide"`
	OpenMillis  int64    `json:"openTimestamp"`
	CloseMillis *int64   `json:"closeTimestamp"`
	OpenPrice   float64  `json:"entryPrice"`
	ClosePrice  *float64 `json:"closePrice"`
	Volume      float64  `json:"volume"`
	Profit      float64  `json:"grossProfit"`
	StopLoss    *float64 `json:"stopLoss"`
	TakeProfit  *float64 `json:"takeProfit"`
}

type ctDealsResponse struct {
	Data []ctDeal `json:"data"`
}

func (a *Adapter) TradeHistory(ctx context.Context, accountID string, from, to time.Time) ([]domain.Trade, error) {
	if a.mock.Enabled() {
		return mockdata.Trades(domain.PlatformCTrader, a.env, accountID, from, to), nil
	}
	trades := make([]domain.Trade, 0, historyPageLimit)
	for page := 0; page < platform.MaxHistoryPages; page++ {
		path := fmt.Sprintf("/v2/tradingaccounts/%s/deals?from=%d&to=%d&offset=%d&limit=%d",
			url.PathEscape(accountID), from.UnixMilli(), to.UnixMilli(), page*historyPageLimit, historyPageLimit)
		var resp ctDealsResponse
		if err := a.authedGet(ctx, "ctrader deals", path, &resp); err != nil {
			return nil, err
		}
		for _, d := range resp.Data {
			tr, err := mapDeal(accountID, d)
			if err != nil {
				return nil, err
			}
			if tr.OpenTime.Before(from) || tr.OpenTime.After(to) {
				continue
			}
			trades = append(trades, tr)
		}
		if len(resp.Data) < historyPageLimit {
			return trades, nil
		}
	}
	logger.Warnf("ctrader deals for %s hit the page cap, result may be truncated", accountID)
	return trades, nil
}

func mapDeal(accountID string, d ctDeal) (domain.Trade, error) {
	direction := domain.TradeBuy
	if d.TradeSide == "SELL" {
		direction = domain.TradeSell
	}
	tr := domain.Trade{
		AccountID:  accountID,
		Symbol:     d.Symbol,
		Direction:  direction,
		OpenTime:   time.UnixMilli(d.OpenMillis).UTC(),
		OpenPrice:  d.OpenPrice,
		Volume:     d.Volume,
		Profit:     d.Profit,
		Status:     domain.TradeOpen,
		StopLoss:   d.StopLoss,
		TakeProfit: d.TakeProfit,
	}
	if d.CloseMillis != nil && d.ClosePrice != nil {
		closed := time.UnixMilli(*d.CloseMillis).UTC()
		tr.Status = domain.TradeClosed
		tr.CloseTime = &closed
		tr.ClosePrice = d.ClosePrice
	} else if d.CloseMillis != nil || d.ClosePrice != nil {
		return domain.Trade{}, platform.UpstreamFormatf("ctrader deal %s/%s has mismatched close fields", accountID, d.Symbol)
	}
	return tr, nil
}

func (a *Adapter) authedGet(ctx context.Context, op, path string, out any) error {
	tok, err := a.accessToken(ctx)
	if err != nil {
		return err
	}
	return platform.WithRetry(ctx, op, func(ctx context.Context) error {
		return a.client.Do(ctx, http.MethodGet, path, nil, out, httpx.WithBearer(tok))
	})
}

type refreshResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

// accessToken returns the current access token, refreshing it when it
// is within refreshSkew of expiry. The refresh runs under the session
// mutex so concurrent calls cannot race a half-written token; a refresh
// that completes is kept even if the triggering caller is cancelled.
func (a *Adapter) accessToken(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.token == nil {
		return "", platform.ErrNotAuthenticated
	}
	if a.token.expiresAt.IsZero() || time.Until(a.token.expiresAt) > refreshSkew {
		return a.token.access, nil
	}
	if a.token.refresh == "" {
		return "", platform.Authf("ctrader access token expired and no refresh token is held")
	}
	var resp refreshResponse
	err := a.client.Do(ctx, http.MethodPost, "/apps/token", map[string]string{
		"grant_type":    "refresh_token",
		"refresh_token": a.token.refresh,
		"client_id":     a.clientID,
		"client_secret": a.clientSecret,
	}, &resp)
	if err != nil {
		return "", err
	}
	if resp.AccessToken == "" {
		return "", platform.UpstreamFormatf("ctrader token refresh returned no access token")
	}
	refreshed := &token{
		access:    resp.AccessToken,
		refresh:   resp.RefreshToken,
		expiresAt: time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second),
	}
	if refreshed.refresh == "" {
		refreshed.refresh = a.token.refresh
	}
	a.token = refreshed
	logger.Debugf("ctrader %s token refreshed, expires %s", a.env, refreshed.expiresAt.Format(time.RFC3339))
	return refreshed.access, nil
}

func (a *Adapter) currentToken() (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.token == nil {
		return "", platform.ErrNotAuthenticated
	}
	return a.token.access, nil
}

func (a *Adapter) setToken(t *token) {
	a.mu.Lock()
	a.token = t
	a.mu.Unlock()
}
