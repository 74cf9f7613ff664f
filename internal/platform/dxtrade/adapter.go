// Package dxtrade integrates DXtrade accounts. Login yields a session
// token carried in a vendor header; the API quotes most numeric fields
// as strings, so normalization goes through decimal parsing with
// zero-defaults for fields the platform omits.
package dxtrade

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
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
	sessionHeader    = "X-Auth-Token"
)

// Adapter implements platform.Adapter for DXtrade.
type Adapter struct {
	env    domain.Environment
	client *httpx.Client
	mock   mockdata.Policy

	mu           sync.Mutex
	sessionToken string
}

// New builds a DXtrade adapter for the environment's web API.
func New(env domain.Environment, cfg config.PlatformConfig, mock mockdata.Policy) (*Adapter, error) {
	client, err := httpx.New(cfg.BaseURL(string(env)), time.Duration(cfg.TimeoutSeconds)*time.Second)
	if err != nil {
		return nil, fmt.Errorf("dxtrade %s: %w", env, err)
	}
	return &Adapter{env: env, client: client, mock: mock}, nil
}

func (a *Adapter) Platform() domain.Platform       { return domain.PlatformDXtrade }
func (a *Adapter) Environment() domain.Environment { return a.env }

// SetHTTPClient swaps the transport for testing.
func (a *Adapter) SetHTTPClient(c *http.Client) { a.client.SetHTTPClient(c) }

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Domain   string `json:"domain"`
}

type loginResponse struct {
	SessionToken string `json:"sessionToken"`
}

func (a *Adapter) Connect(ctx context.Context, creds domain.Credentials) domain.ConnectionResult {
	if err := creds.Validate(domain.CredentialPassword); err != nil {
		return domain.ConnectFailed(platform.Validationf("%v", err), "")
	}
	if a.mock.Enabled() {
		a.setToken("mock")
		return domain.ConnectOK()
	}
	var resp loginResponse
	err := platform.WithRetry(ctx, "dxtrade login", func(ctx context.Context) error {
		return a.client.Do(ctx, http.MethodPost, "/login", loginRequest{
			Username: creds.Login,
			Password: creds.Password,
			Domain:   creds.Server,
		}, &resp)
	})
	if err != nil {
		return domain.ConnectFailed(err, "")
	}
	if resp.SessionToken == "" {
		return domain.ConnectFailed(platform.UpstreamFormatf("dxtrade login returned no session token"), "")
	}
	a.setToken(resp.SessionToken)
	return domain.ConnectOK()
}

func (a *Adapter) Disconnect(ctx context.Context, accountID string) error {
	a.mu.Lock()
	tok := a.sessionToken
	a.sessionToken = ""
	a.mu.Unlock()
	if tok == "" || tok == "mock" {
		return nil
	}
	if err := a.client.Do(ctx, http.MethodPost, "/logout", nil, nil, httpx.WithHeader(sessionHeader, tok)); err != nil {
		logger.Warnf("dxtrade logout for %s: %v", accountID, err)
	}
	return nil
}

func (a *Adapter) TestConnection(ctx context.Context) domain.ConnectionResult {
	if a.mock.Enabled() {
		return domain.ConnectOK()
	}
	if err := a.client.Do(ctx, http.MethodGet, "/status", nil, nil); err != nil {
		return domain.ConnectFailed(err, "dxtrade status check failed")
	}
	return domain.ConnectOK()
}

type dxAccount struct {
	Account  string `json:"account"`
	Name     string `json:"description"`
	Balance  string `json:"balance"`
	Equity   string `json:"equity"`
	Currency string `json:"currency"`
	Leverage string `json:"leverage"`
}

type dxAccountsResponse struct {
	Accounts []dxAccount `json:"accounts"`
}

func (a *Adapter) Accounts(ctx context.Context) ([]domain.Account, error) {
	if a.mock.Enabled() {
		return mockdata.Accounts(domain.PlatformDXtrade, a.env), nil
	}
	tok, err := a.currentToken()
	if err != nil {
		return nil, err
	}
	var resp dxAccountsResponse
	err = platform.WithRetry(ctx, "dxtrade accounts", func(ctx context.Context) error {
		return a.client.Do(ctx, http.MethodGet, "/accounts", nil, &resp, httpx.WithHeader(sessionHeader, tok))
	})
	if err != nil {
		return nil, err
	}
	accounts := make([]domain.Account, 0, len(resp.Accounts))
	for _, acc := range resp.Accounts {
		accounts = append(accounts, a.mapAccount(acc))
	}
	return accounts, nil
}

func (a *Adapter) AccountInfo(ctx context.Context, accountID string) (domain.Account, error) {
	if a.mock.Enabled() {
		return mockdata.Account(domain.PlatformDXtrade, a.env, accountID), nil
	}
	tok, err := a.currentToken()
	if err != nil {
		return domain.Account{}, err
	}
	var acc dxAccount
	err = platform.WithRetry(ctx, "dxtrade account info", func(ctx context.Context) error {
		return a.client.Do(ctx, http.MethodGet, "/accounts/"+url.PathEscape(accountID), nil, &acc, httpx.WithHeader(sessionHeader, tok))
	})
	if err != nil {
		return domain.Account{}, err
	}
	return a.mapAccount(acc), nil
}

// numeric parses a string-quoted number, defaulting to 0 on anomaly so
// one malformed field does not fail the whole account fetch.
func numeric(account, field, raw string) float64 {
	v, err := httpx.Float(raw)
	if err != nil {
		logger.Warnf("dxtrade account %s: unparseable %s %q, defaulting to 0", account, field, raw)
		return 0
	}
	return v
}

func (a *Adapter) mapAccount(acc dxAccount) domain.Account {
	currency := acc.Currency
	if currency == "" {
		logger.Warnf("dxtrade account %s missing currency, defaulting to USD", acc.Account)
		currency = "USD"
	}
	return domain.Account{
		Platform:    domain.PlatformDXtrade,
		Environment: a.env,
		ID:          acc.Account,
		Name:        acc.Name,
		Server:      "DXtrade",
		Balance:     numeric(acc.Account, "balance", acc.Balance),
		Equity:      numeric(acc.Account, "equity", acc.Equity),
		Currency:    currency,
		Leverage:    int(numeric(acc.Account, "leverage", acc.Leverage)),
		Status:      domain.AccountActive,
		UpdatedAt:   time.Now().UTC(),
	}
}

type dxPosition struct {
	Symbol   string `json:"symbol"`
	Side     string `json:"side"` // "BUY" | "SELL"
	Price    string `json:"openPrice"`
	MarkPx   string `json:"markPrice"`
	Quantity string `json:"quantity"`
	PL       string `json:"unrealizedPl"`
	OpenTime string `json:"openTime"` // RFC3339
}

type dxPositionsResponse struct {
	Positions []dxPosition `json:"positions"`
}

func (a *Adapter) OpenPositions(ctx context.Context, accountID string) ([]domain.Position, error) {
	if a.mock.Enabled() {
		return mockdata.Positions(domain.PlatformDXtrade, a.env, accountID), nil
	}
	tok, err := a.currentToken()
	if err != nil {
		return nil, err
	}
	var resp dxPositionsResponse
	path := "/accounts/" + url.PathEscape(accountID) + "/positions"
	err = platform.WithRetry(ctx, "dxtrade positions", func(ctx context.Context) error {
		return a.client.Do(ctx, http.MethodGet, path, nil, &resp, httpx.WithHeader(sessionHeader, tok))
	})
	if err != nil {
		return nil, err
	}
	positions := make([]domain.Position, 0, len(resp.Positions))
	for _, p := range resp.Positions {
		direction := domain.PositionLong
		if p.Side == "SELL" {
			direction = domain.PositionShort
		}
		openedAt, err := time.Parse(time.RFC3339, p.OpenTime)
		if err != nil {
			return nil, platform.UpstreamFormatf("dxtrade position %s/%s has bad open time %q", accountID, p.Symbol, p.OpenTime)
		}
		positions = append(positions, domain.Position{
			AccountID: accountID,
			Symbol:    p.Symbol,
			Direction: direction,
			OpenPrice: numeric(accountID, "openPrice", p.Price),
			MarkPrice: numeric(accountID, "markPrice", p.MarkPx),
			Volume:    numeric(accountID, "quantity", p.Quantity),
			Profit:    numeric(accountID, "unrealizedPl", p.PL),
			OpenedAt:  openedAt.UTC(),
		})
	}
	return positions, nil
}

type dxOrder struct {
	Symbol     string `json:"symbol"`
	Side       string `json:"side"`
	OpenTime   string `json:"openTime"`
	CloseTime  string `json:"closeTime"` // empty while open
	OpenPrice  string `json:"openPrice"`
	ClosePrice string `json:"closePrice"` // empty while open
	Quantity   string `json:"quantity"`
	PL         string `json:"realizedPl"`
	StopLoss   string `json:"stopLoss"`
	TakeProfit string `json:"takeProfit"`
}

type dxHistoryResponse struct {
	Orders []dxOrder `json:"orders"`
}

func (a *Adapter) TradeHistory(ctx context.Context, accountID string, from, to time.Time) ([]domain.Trade, error) {
	if a.mock.Enabled() {
		return mockdata.Trades(domain.PlatformDXtrade, a.env, accountID, from, to), nil
	}
	tok, err := a.currentToken()
	if err != nil {
		return nil, err
	}
	trades := make([]domain.Trade, 0, historyPageLimit)
	for page := 0; page < platform.MaxHistoryPages; page++ {
		path := fmt.Sprintf("/accounts/%s/history?from=%s&to=%s&offset=%d&limit=%d",
			url.PathEscape(accountID), from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339),
			page*historyPageLimit, historyPageLimit)
		var resp dxHistoryResponse
		err = platform.WithRetry(ctx, "dxtrade history", func(ctx context.Context) error {
			return a.client.Do(ctx, http.MethodGet, path, nil, &resp, httpx.WithHeader(sessionHeader, tok))
		})
		if err != nil {
			return nil, err
		}
		for _, o := range resp.Orders {
			tr, err := a.mapOrder(accountID, o)
			if err != nil {
				return nil, err
			}
			if tr.OpenTime.Before(from) || tr.OpenTime.After(to) {
				continue
			}
			trades = append(trades, tr)
		}
		if len(resp.Orders) < historyPageLimit {
			return trades, nil
		}
	}
	logger.Warnf("dxtrade history for %s hit the page cap, result may be truncated", accountID)
	return trades, nil
}

func (a *Adapter) mapOrder(accountID string, o dxOrder) (domain.Trade, error) {
	direction := domain.TradeBuy
	if o.Side == "SELL" {
		direction = domain.TradeSell
	}
	openTime, err := time.Parse(time.RFC3339, o.OpenTime)
	if err != nil {
		return domain.Trade{}, platform.UpstreamFormatf("dxtrade order %s/%s has bad open time %q", accountID, o.Symbol, o.OpenTime)
	}
	tr := domain.Trade{
		AccountID: accountID,
		Symbol:    o.Symbol,
		Direction: direction,
		OpenTime:  openTime.UTC(),
		OpenPrice: numeric(accountID, "openPrice", o.OpenPrice),
		Volume:    numeric(accountID, "quantity", o.Quantity),
		Status:    domain.TradeOpen,
	}
	if sl, err := httpx.Float(o.StopLoss); err == nil && o.StopLoss != "" {
		tr.StopLoss = &sl
	}
	if tp, err := httpx.Float(o.TakeProfit); err == nil && o.TakeProfit != "" {
		tr.TakeProfit = &tp
	}
	if o.CloseTime != "" && o.ClosePrice != "" {
		closeTime, err := time.Parse(time.RFC3339, o.CloseTime)
		if err != nil {
			return domain.Trade{}, platform.UpstreamFormatf("dxtrade order %s/%s has bad close time %q", accountID, o.Symbol, o.CloseTime)
		}
		closePrice, err := httpx.Float(o.ClosePrice)
		if err != nil {
			return domain.Trade{}, err
		}
		closed := closeTime.UTC()
		tr.Status = domain.TradeClosed
		tr.CloseTime = &closed
		tr.ClosePrice = &closePrice
		tr.Profit = numeric(accountID, "realizedPl", o.PL)
	} else if o.CloseTime != "" || o.ClosePrice != "" {
		return domain.Trade{}, platform.UpstreamFormatf("dxtrade order %s/%s has mismatched close fields", accountID, o.Symbol)
	}
	return tr, nil
}

func (a *Adapter) currentToken() (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sessionToken == "" {
		return "", platform.ErrNotAuthenticated
	}
	return a.sessionToken, nil
}

func (a *Adapter) setToken(tok string) {
	a.mu.Lock()
	a.sessionToken = tok
	a.mu.Unlock()
}
