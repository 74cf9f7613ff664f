// Package mt5 integrates MetaTrader 5 accounts through the bridge
// backend process configured per environment. The bridge terminates
// the MT5 wire protocol; this adapter speaks plain JSON to it.
package mt5

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"brokergate/internal/config"
	"brokergate/internal/domain"
	"brokergate/internal/logger"
	"brokergate/internal/mockdata"
	"brokergate/internal/platform"
	"brokergate/internal/platform/httpx"
)

const historyPageLimit = 500

type session struct {
	token     string
	accountID string
}

// Adapter implements platform.Adapter for MetaTrader 5.
type Adapter struct {
	env    domain.Environment
	client *httpx.Client
	mock   mockdata.Policy

	mu      sync.Mutex
	session *session
}

// New builds an MT5 adapter bound to the environment's bridge URL.
func New(env domain.Environment, cfg config.PlatformConfig, mock mockdata.Policy) (*Adapter, error) {
	client, err := httpx.New(cfg.BaseURL(string(env)), time.Duration(cfg.TimeoutSeconds)*time.Second)
	if err != nil {
		return nil, fmt.Errorf("mt5 %s: %w", env, err)
	}
	return &Adapter{env: env, client: client, mock: mock}, nil
}

func (a *Adapter) Platform() domain.Platform       { return domain.PlatformMT5 }
func (a *Adapter) Environment() domain.Environment { return a.env }

// SetHTTPClient swaps the transport for testing.
func (a *Adapter) SetHTTPClient(c *http.Client) { a.client.SetHTTPClient(c) }

type connectRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
	Server   string `json:"server"`
}

type connectResponse struct {
	Token     string `json:"token"`
	AccountID string `json:"accountId"`
}

func (a *Adapter) Connect(ctx context.Context, creds domain.Credentials) domain.ConnectionResult {
	if err := creds.Validate(domain.CredentialPassword); err != nil {
		return domain.ConnectFailed(platform.Validationf("%v", err), "")
	}
	if a.mock.Enabled() {
		a.setSession(&session{token: "mock", accountID: creds.Login})
		return domain.ConnectOK()
	}
	var resp connectResponse
	err := platform.WithRetry(ctx, "mt5 connect", func(ctx context.Context) error {
		return a.client.Do(ctx, http.MethodPost, "/connect", connectRequest{
			Login:    creds.Login,
			Password: creds.Password,
			Server:   creds.Server,
		}, &resp)
	})
	if err != nil {
		return domain.ConnectFailed(err, "")
	}
	if resp.Token == "" {
		return domain.ConnectFailed(platform.UpstreamFormatf("bridge returned no session token"), "")
	}
	a.setSession(&session{token: resp.Token, accountID: resp.AccountID})
	return domain.ConnectOK()
}

func (a *Adapter) Disconnect(ctx context.Context, accountID string) error {
	a.mu.Lock()
	sess := a.session
	a.session = nil
	a.mu.Unlock()
	if sess == nil || a.mock.Enabled() {
		return nil
	}
	// Single attempt: the bridge session may have expired upstream and
	// local state is already cleared either way.
	err := a.client.Do(ctx, http.MethodPost, "/disconnect",
		map[string]string{"accountId": accountID}, nil, httpx.WithBearer(sess.token))
	if err != nil {
		logger.Warnf("mt5 disconnect for %s: %v", accountID, err)
	}
	return nil
}

func (a *Adapter) TestConnection(ctx context.Context) domain.ConnectionResult {
	if a.mock.Enabled() {
		return domain.ConnectOK()
	}
	if err := a.client.Do(ctx, http.MethodGet, "/health", nil, nil); err != nil {
		return domain.ConnectFailed(err, "mt5 bridge health check failed")
	}
	return domain.ConnectOK()
}

type bridgeAccount struct {
	ID       string  `json:"accountId"`
	Name     string  `json:"name"`
	Server   string  `json:"server"`
	Balance  float64 `json:"balance"`
	Equity   float64 `json:"equity"`
	Currency string  `json:"currency"`
	Leverage int     `json:"leverage"`
}

func (a *Adapter) Accounts(ctx context.Context) ([]domain.Account, error) {
	if a.mock.Enabled() {
		return mockdata.Accounts(domain.PlatformMT5, a.env), nil
	}
	sess, err := a.currentSession()
	if err != nil {
		return nil, err
	}
	var raw []bridgeAccount
	err = platform.WithRetry(ctx, "mt5 accounts", func(ctx context.Context) error {
		return a.client.Do(ctx, http.MethodGet, "/accounts", nil, &raw, httpx.WithBearer(sess.token))
	})
	if err != nil {
		return nil, err
	}
	accounts := make([]domain.Account, 0, len(raw))
	for _, acc := range raw {
		accounts = append(accounts, a.mapAccount(acc))
	}
	return accounts, nil
}

func (a *Adapter) AccountInfo(ctx context.Context, accountID string) (domain.Account, error) {
	if a.mock.Enabled() {
		return mockdata.Account(domain.PlatformMT5, a.env, accountID), nil
	}
	sess, err := a.currentSession()
	if err != nil {
		return domain.Account{}, err
	}
	var raw bridgeAccount
	err = platform.WithRetry(ctx, "mt5 account info", func(ctx context.Context) error {
		return a.client.Do(ctx, http.MethodGet, "/accounts/"+accountID, nil, &raw, httpx.WithBearer(sess.token))
	})
	if err != nil {
		return domain.Account{}, err
	}
	return a.mapAccount(raw), nil
}

func (a *Adapter) mapAccount(acc bridgeAccount) domain.Account {
	if acc.Currency == "" {
		logger.Warnf("mt5 account %s missing currency, defaulting to USD", acc.ID)
		acc.Currency = "USD"
	}
	return domain.Account{
		Platform:    domain.PlatformMT5,
		Environment: a.env,
		ID:          acc.ID,
		Name:        acc.Name,
		Server:      acc.Server,
		Balance:     acc.Balance,
		Equity:      acc.Equity,
		Currency:    acc.Currency,
		Leverage:    acc.Leverage,
		Status:      domain.AccountActive,
		UpdatedAt:   time.Now().UTC(),
	}
}

type bridgePosition struct {
	Symbol    string  `json:"symbol"`
	Type      string  `json:"type"` // "buy" | "sell"
	OpenPrice float64 `json:"openPrice"`
	Price     float64 `json:"currentPrice"`
	Volume    float64 `json:"volume"`
	Profit    float64 `json:"profit"`
	OpenTime  int64   `json:"openTime"` // unix seconds
}

func (a *Adapter) OpenPositions(ctx context.Context, accountID string) ([]domain.Position, error) {
	if a.mock.Enabled() {
		return mockdata.Positions(domain.PlatformMT5, a.env, accountID), nil
	}
	sess, err := a.currentSession()
	if err != nil {
		return nil, err
	}
	var raw []bridgePosition
	err = platform.WithRetry(ctx, "mt5 positions", func(ctx context.Context) error {
		return a.client.Do(ctx, http.MethodGet, "/positions?accountId="+accountID, nil, &raw, httpx.WithBearer(sess.token))
	})
	if err != nil {
		return nil, err
	}
	positions := make([]domain.Position, 0, len(raw))
	for _, p := range raw {
		direction := domain.PositionLong
		if p.Type == "sell" {
			direction = domain.PositionShort
		}
		positions = append(positions, domain.Position{
			AccountID: accountID,
			Symbol:    p.Symbol,
			Direction: direction,
			OpenPrice: p.OpenPrice,
			MarkPrice: p.Price,
			Volume:    p.Volume,
			Profit:    p.Profit,
			OpenedAt:  time.Unix(p.OpenTime, 0).UTC(),
		})
	}
	return positions, nil
}

type bridgeDeal struct {
	Symbol     string   `json:"symbol"`
	Type       string   `json:"type"`
	OpenTime   int64    `json:"openTime"`
	CloseTime  *int64   `json:"closeTime"`
	OpenPrice  float64  `json:"openPrice"`
	ClosePrice *float64 `json:"closePrice"`
	Volume     float64  `json:"volume"`
	Profit     float64  `json:"profit"`
	StopLoss   *float64 `json:"stopLoss"`
	TakeProfit *float64 `json:"takeProfit"`
}

func (a *Adapter) TradeHistory(ctx context.Context, accountID string, from, to time.Time) ([]domain.Trade, error) {
	if a.mock.Enabled() {
		return mockdata.Trades(domain.PlatformMT5, a.env, accountID, from, to), nil
	}
	sess, err := a.currentSession()
	if err != nil {
		return nil, err
	}
	trades := make([]domain.Trade, 0, historyPageLimit)
	for page := 0; page < platform.MaxHistoryPages; page++ {
		path := fmt.Sprintf("/history?accountId=%s&from=%d&to=%d&offset=%d&limit=%d",
			accountID, from.Unix(), to.Unix(), page*historyPageLimit, historyPageLimit)
		var raw []bridgeDeal
		err = platform.WithRetry(ctx, "mt5 history", func(ctx context.Context) error {
			return a.client.Do(ctx, http.MethodGet, path, nil, &raw, httpx.WithBearer(sess.token))
		})
		if err != nil {
			return nil, err
		}
		for _, d := range raw {
			tr, err := a.mapDeal(accountID, d)
			if err != nil {
				return nil, err
			}
			if tr.OpenTime.Before(from) || tr.OpenTime.After(to) {
				continue
			}
			trades = append(trades, tr)
		}
		if len(raw) < historyPageLimit {
			return trades, nil
		}
	}
	logger.Warnf("mt5 history for %s hit the page cap, result may be truncated", accountID)
	return trades, nil
}

func (a *Adapter) mapDeal(accountID string, d bridgeDeal) (domain.Trade, error) {
	direction := domain.TradeBuy
	if d.Type == "sell" {
		direction = domain.TradeSell
	}
	tr := domain.Trade{
		AccountID:  accountID,
		Symbol:     d.Symbol,
		Direction:  direction,
		OpenTime:   time.Unix(d.OpenTime, 0).UTC(),
		OpenPrice:  d.OpenPrice,
		Volume:     d.Volume,
		Profit:     d.Profit,
		Status:     domain.TradeOpen,
		StopLoss:   d.StopLoss,
		TakeProfit: d.TakeProfit,
	}
	if d.CloseTime != nil && d.ClosePrice != nil {
		closed := time.Unix(*d.CloseTime, 0).UTC()
		tr.Status = domain.TradeClosed
		tr.CloseTime = &closed
		tr.ClosePrice = d.ClosePrice
	} else if d.CloseTime != nil || d.ClosePrice != nil {
		return domain.Trade{}, platform.UpstreamFormatf("mt5 deal %s/%s has mismatched close fields", accountID, d.Symbol)
	}
	return tr, nil
}

func (a *Adapter) currentSession() (*session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.session == nil {
		return nil, platform.ErrNotAuthenticated
	}
	return a.session, nil
}

func (a *Adapter) setSession(s *session) {
	a.mu.Lock()
	a.session = s
	a.mu.Unlock()
}
