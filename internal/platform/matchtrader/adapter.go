// Package matchtrader integrates Match-Trader accounts. The broker API
// nests payloads inconsistently across broker deployments, so parsing
// goes through gjson and tolerates both flat and wrapped shapes.
package matchtrader

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/tidwall/gjson"

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

// Adapter implements platform.Adapter for Match-Trader.
type Adapter struct {
	env    domain.Environment
	client *httpx.Client
	mock   mockdata.Policy

	mu    sync.Mutex
	token *token
}

// New builds a Match-Trader adapter for the environment's broker API.
func New(env domain.Environment, cfg config.PlatformConfig, mock mockdata.Policy) (*Adapter, error) {
	client, err := httpx.New(cfg.BaseURL(string(env)), time.Duration(cfg.TimeoutSeconds)*time.Second)
	if err != nil {
		return nil, fmt.Errorf("matchtrader %s: %w", env, err)
	}
	return &Adapter{env: env, client: client, mock: mock}, nil
}

func (a *Adapter) Platform() domain.Platform       { return domain.PlatformMatchTrader }
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
	err := platform.WithRetry(ctx, "matchtrader connect", func(ctx context.Context) error {
		return a.client.Do(ctx, http.MethodGet, "/mtr-api/accounts", nil, nil, httpx.WithBearer(candidate.access))
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
	return nil
}

func (a *Adapter) TestConnection(ctx context.Context) domain.ConnectionResult {
	if a.mock.Enabled() {
		return domain.ConnectOK()
	}
	if err := a.client.Do(ctx, http.MethodGet, "/mtr-api/health", nil, nil); err != nil {
		return domain.ConnectFailed(err, "matchtrader health check failed")
	}
	return domain.ConnectOK()
}

func (a *Adapter) Accounts(ctx context.Context) ([]domain.Account, error) {
	if a.mock.Enabled() {
		return mockdata.Accounts(domain.PlatformMatchTrader, a.env), nil
	}
	raw, err := a.authedGet(ctx, "matchtrader accounts", "/mtr-api/accounts")
	if err != nil {
		return nil, err
	}
	items := unwrapArray(raw)
	if !items.Exists() {
		return nil, platform.UpstreamFormatf("matchtrader accounts payload has no recognizable list (%d bytes)", len(raw))
	}
	var accounts []domain.Account
	items.ForEach(func(_, item gjson.Result) bool {
		accounts = append(accounts, a.mapAccount(item))
		return true
	})
	return accounts, nil
}

func (a *Adapter) AccountInfo(ctx context.Context, accountID string) (domain.Account, error) {
	if a.mock.Enabled() {
		return mockdata.Account(domain.PlatformMatchTrader, a.env, accountID), nil
	}
	raw, err := a.authedGet(ctx, "matchtrader account info", "/mtr-api/accounts/"+url.PathEscape(accountID))
	if err != nil {
		return domain.Account{}, err
	}
	item := gjson.ParseBytes(raw)
	if item.Get("data").Exists() {
		item = item.Get("data")
	}
	if !item.IsObject() {
		return domain.Account{}, platform.UpstreamFormatf("matchtrader account payload is not an object (%d bytes)", len(raw))
	}
	return a.mapAccount(item), nil
}

// mapAccount pulls canonical fields out of a loosely shaped account
// object. Missing numerics default to 0 with a logged anomaly.
func (a *Adapter) mapAccount(item gjson.Result) domain.Account {
	id := firstString(item, "uuid", "accountId", "login")
	currency := firstString(item, "currency", "depositCurrency")
	if currency == "" {
		logger.Warnf("matchtrader account %s missing currency, defaulting to USD", id)
		currency = "USD"
	}
	balance := firstFloat(item, id, "balance", "accountBalance")
	equity := firstFloat(item, id, "equity", "accountEquity")
	return domain.Account{
		Platform:    domain.PlatformMatchTrader,
		Environment: a.env,
		ID:          id,
		Name:        firstString(item, "name", "accountName", "login"),
		Server:      firstString(item, "offerName", "server"),
		Balance:     balance,
		Equity:      equity,
		Currency:    currency,
		Leverage:    int(item.Get("leverage").Float()),
		Status:      domain.AccountActive,
		UpdatedAt:   time.Now().UTC(),
	}
}

func (a *Adapter) OpenPositions(ctx context.Context, accountID string) ([]domain.Position, error) {
	if a.mock.Enabled() {
		return mockdata.Positions(domain.PlatformMatchTrader, a.env, accountID), nil
	}
	raw, err := a.authedGet(ctx, "matchtrader positions", "/mtr-api/accounts/"+url.PathEscape(accountID)+"/positions")
	if err != nil {
		return nil, err
	}
	items := unwrapArray(raw)
	if !items.Exists() {
		return nil, platform.UpstreamFormatf("matchtrader positions payload has no recognizable list (%d bytes)", len(raw))
	}
	var positions []domain.Position
	items.ForEach(func(_, item gjson.Result) bool {
		direction := domain.PositionLong
		if item.Get("side").String() == "SELL" {
			direction = domain.PositionShort
		}
		positions = append(positions, domain.Position{
			AccountID: accountID,
			Symbol:    item.Get("symbol").String(),
			Direction: direction,
			OpenPrice: firstFloat(item, accountID, "openPrice", "entryPrice"),
			MarkPrice: firstFloat(item, accountID, "currentPrice", "markPrice"),
			Volume:    firstFloat(item, accountID, "volume", "quantity"),
			Profit:    firstFloat(item, accountID, "profit", "unrealizedPl"),
			OpenedAt:  time.UnixMilli(item.Get("openTime").Int()).UTC(),
		})
		return true
	})
	return positions, nil
}

func (a *Adapter) TradeHistory(ctx context.Context, accountID string, from, to time.Time) ([]domain.Trade, error) {
	if a.mock.Enabled() {
		return mockdata.Trades(domain.PlatformMatchTrader, a.env, accountID, from, to), nil
	}
	trades := make([]domain.Trade, 0, historyPageLimit)
	for page := 0; page < platform.MaxHistoryPages; page++ {
		path := fmt.Sprintf("/mtr-api/accounts/%s/closed-positions?from=%d&to=%d&page=%d&size=%d",
			url.PathEscape(accountID), from.UnixMilli(), to.UnixMilli(), page, historyPageLimit)
		raw, err := a.authedGet(ctx, "matchtrader history", path)
		if err != nil {
			return nil, err
		}
		items := unwrapArray(raw)
		if !items.Exists() {
			return nil, platform.UpstreamFormatf("matchtrader history payload has no recognizable list (%d bytes)", len(raw))
		}
		count := 0
		var mapErr error
		items.ForEach(func(_, item gjson.Result) bool {
			count++
			tr, err := a.mapTrade(accountID, item)
			if err != nil {
				mapErr = err
				return false
			}
			if tr.OpenTime.Before(from) || tr.OpenTime.After(to) {
				return true
			}
			trades = append(trades, tr)
			return true
		})
		if mapErr != nil {
			return nil, mapErr
		}
		if count < historyPageLimit {
			return trades, nil
		}
	}
	logger.Warnf("matchtrader history for %s hit the page cap, result may be truncated", accountID)
	return trades, nil
}

func (a *Adapter) mapTrade(accountID string, item gjson.Result) (domain.Trade, error) {
	direction := domain.TradeBuy
	if item.Get("side").String() == "SELL" {
		direction = domain.TradeSell
	}
	openMillis := item.Get("openTime").Int()
	if openMillis == 0 {
		return domain.Trade{}, platform.UpstreamFormatf("matchtrader trade for %s missing open time", accountID)
	}
	tr := domain.Trade{
		AccountID: accountID,
		Symbol:    item.Get("symbol").String(),
		Direction: direction,
		OpenTime:  time.UnixMilli(openMillis).UTC(),
		OpenPrice: firstFloat(item, accountID, "openPrice", "entryPrice"),
		Volume:    firstFloat(item, accountID, "volume", "quantity"),
		Status:    domain.TradeOpen,
	}
	if sl := item.Get("stopLoss"); sl.Exists() && sl.Float() > 0 {
		v := sl.Float()
		tr.StopLoss = &v
	}
	if tp := item.Get("takeProfit"); tp.Exists() && tp.Float() > 0 {
		v := tp.Float()
		tr.TakeProfit = &v
	}
	// MatchTrader serializes open trades with explicit nulls, so a null
	// close field counts as absent rather than present-but-empty.
	closeMillis := item.Get("closeTime").Int()
	closePrice := item.Get("closePrice")
	hasClosePrice := closePrice.Exists() && closePrice.Type != gjson.Null
	if closeMillis > 0 && hasClosePrice {
		closed := time.UnixMilli(closeMillis).UTC()
		price := closePrice.Float()
		tr.Status = domain.TradeClosed
		tr.CloseTime = &closed
		tr.ClosePrice = &price
		tr.Profit = firstFloat(item, accountID, "profit", "realizedPl")
	} else if closeMillis > 0 || hasClosePrice {
		return domain.Trade{}, platform.UpstreamFormatf("matchtrader trade %s/%s has mismatched close fields", accountID, tr.Symbol)
	}
	return tr, nil
}

func (a *Adapter) authedGet(ctx context.Context, op, path string) (json.RawMessage, error) {
	tok, err := a.accessToken(ctx)
	if err != nil {
		return nil, err
	}
	var raw json.RawMessage
	err = platform.WithRetry(ctx, op, func(ctx context.Context) error {
		return a.client.Do(ctx, http.MethodGet, path, nil, &raw, httpx.WithBearer(tok))
	})
	if err != nil {
		return nil, err
	}
	return raw, nil
}

// accessToken mirrors the cTrader refresh discipline: single writer
// under the mutex, a completed refresh survives caller cancellation.
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
		return "", platform.Authf("matchtrader access token expired and no refresh token is held")
	}
	var raw json.RawMessage
	err := a.client.Do(ctx, http.MethodPost, "/mtr-api/refresh-token",
		map[string]string{"refreshToken": a.token.refresh}, &raw)
	if err != nil {
		return "", err
	}
	parsed := gjson.ParseBytes(raw)
	access := firstString(parsed, "token", "accessToken", "data.token")
	if access == "" {
		return "", platform.UpstreamFormatf("matchtrader token refresh returned no token (%d bytes)", len(raw))
	}
	refreshed := &token{access: access, refresh: a.token.refresh}
	if next := firstString(parsed, "refreshToken", "data.refreshToken"); next != "" {
		refreshed.refresh = next
	}
	if exp := parsed.Get("expiresIn").Int(); exp > 0 {
		refreshed.expiresAt = time.Now().Add(time.Duration(exp) * time.Second)
	}
	a.token = refreshed
	logger.Debugf("matchtrader %s token refreshed", a.env)
	return refreshed.access, nil
}

func (a *Adapter) setToken(t *token) {
	a.mu.Lock()
	a.token = t
	a.mu.Unlock()
}

// unwrapArray finds the payload list whether the API returns a bare
// array or wraps it under data/items/content.
func unwrapArray(raw []byte) gjson.Result {
	parsed := gjson.ParseBytes(raw)
	if parsed.IsArray() {
		return parsed
	}
	for _, key := range []string{"data", "items", "content", "positions", "accounts"} {
		if v := parsed.Get(key); v.IsArray() {
			return v
		}
	}
	return gjson.Result{}
}

func firstString(item gjson.Result, keys ...string) string {
	for _, key := range keys {
		if v := item.Get(key); v.Exists() && v.String() != "" {
			return v.String()
		}
	}
	return ""
}

func firstFloat(item gjson.Result, account string, keys ...string) float64 {
	for _, key := range keys {
		if v := item.Get(key); v.Exists() {
			return v.Float()
		}
	}
	logger.Warnf("matchtrader payload for %s missing %v, defaulting to 0", account, keys)
	return 0
}
