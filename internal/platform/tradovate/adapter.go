// Package tradovate integrates Tradovate futures accounts. Auth trades
// username/password plus the configured API client id/secret for an
// access token, renewed in place before it lapses.
package tradovate

import (
	"context"
	"fmt"
	"net/http"
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
	renewSkew        = 2 * time.Minute
)

type session struct {
	accessToken string
	expiresAt   time.Time
}

// Adapter implements platform.Adapter for Tradovate.
type Adapter struct {
	env          domain.Environment
	client       *httpx.Client
	mock         mockdata.Policy
	clientID     string
	clientSecret string

	mu      sync.Mutex
	session *session
}

// New builds a Tradovate adapter for the environment's API host.
func New(env domain.Environment, cfg config.PlatformConfig, mock mockdata.Policy) (*Adapter, error) {
	client, err := httpx.New(cfg.BaseURL(string(env)), time.Duration(cfg.TimeoutSeconds)*time.Second)
	if err != nil {
		return nil, fmt.Errorf("tradovate %s: %w", env, err)
	}
	return &Adapter{
		env:          env,
		client:       client,
		mock:         mock,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
	}, nil
}

func (a *Adapter) Platform() domain.Platform       { return domain.PlatformTradovate }
func (a *Adapter) Environment() domain.Environment { return a.env }

// SetHTTPClient swaps the transport for testing.
func (a *Adapter) SetHTTPClient(c *http.Client) { a.client.SetHTTPClient(c) }

type accessTokenRequest struct {
	Name       string `json:"name"`
	Password   string `json:"password"`
	AppID      string `json:"appId"`
	AppVersion string `json:"appVersion"`
	CID        string `json:"cid"`
	Sec        string `json:"sec"`
}

type accessTokenResponse struct {
	AccessToken    string `json:"accessToken"`
	ExpirationTime string `json:"expirationTime"` // RFC3339
	ErrorText      string `json:"errorText"`
}

func (a *Adapter) Connect(ctx context.Context, creds domain.Credentials) domain.ConnectionResult {
	if err := creds.Validate(domain.CredentialPassword); err != nil {
		return domain.ConnectFailed(platform.Validationf("%v", err), "")
	}
	if a.mock.Enabled() {
		a.setSession(&session{accessToken: "mock"})
		return domain.ConnectOK()
	}
	var resp accessTokenResponse
	err := platform.WithRetry(ctx, "tradovate auth", func(ctx context.Context) error {
		return a.client.Do(ctx, http.MethodPost, "/auth/accesstokenrequest", accessTokenRequest{
			Name:       creds.Login,
			Password:   creds.Password,
			AppID:      "brokergate",
			AppVersion: "1.0",
			CID:        a.clientID,
			Sec:        a.clientSecret,
		}, &resp)
	})
	if err != nil {
		return domain.ConnectFailed(err, "")
	}
	// Tradovate reports bad credentials inside a 200 body.
	if resp.ErrorText != "" {
		return domain.ConnectFailed(platform.Authf("tradovate: %s", resp.ErrorText), "")
	}
	if resp.AccessToken == "" {
		return domain.ConnectFailed(platform.UpstreamFormatf("tradovate auth returned no access token"), "")
	}
	sess := &session{accessToken: resp.AccessToken}
	if t, err := time.Parse(time.RFC3339, resp.ExpirationTime); err == nil {
		sess.expiresAt = t
	}
	a.setSession(sess)
	return domain.ConnectOK()
}

func (a *Adapter) Disconnect(ctx context.Context, accountID string) error {
	a.mu.Lock()
	a.session = nil
	a.mu.Unlock()
	// Access tokens expire server-side; dropping ours is the teardown.
	return nil
}

func (a *Adapter) TestConnection(ctx context.Context) domain.ConnectionResult {
	if a.mock.Enabled() {
		return domain.ConnectOK()
	}
	a.mu.Lock()
	sess := a.session
	a.mu.Unlock()
	if sess == nil {
		// Unauthenticated reachability probe only.
		if err := a.client.Do(ctx, http.MethodGet, "/auth/ping", nil, nil); err != nil {
			return domain.ConnectFailed(err, "tradovate unreachable")
		}
		return domain.ConnectOK()
	}
	if err := a.client.Do(ctx, http.MethodGet, "/account/list", nil, nil, httpx.WithBearer(sess.accessToken)); err != nil {
		return domain.ConnectFailed(err, "tradovate connectivity check failed")
	}
	return domain.ConnectOK()
}

type tvAccount struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	Nickname string  `json:"nickname"`
	Balance  float64 `json:"cashBalance"`
	Currency string  `json:"currency"`
}

func (a *Adapter) Accounts(ctx context.Context) ([]domain.Account, error) {
	if a.mock.Enabled() {
		return mockdata.Accounts(domain.PlatformTradovate, a.env), nil
	}
	var raw []tvAccount
	if err := a.authedGet(ctx, "tradovate accounts", "/account/list", &raw); err != nil {
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
		return mockdata.Account(domain.PlatformTradovate, a.env, accountID), nil
	}
	var acc tvAccount
	if err := a.authedGet(ctx, "tradovate account info", "/account/item?id="+accountID, &acc); err != nil {
		return domain.Account{}, err
	}
	return a.mapAccount(acc), nil
}

func (a *Adapter) mapAccount(acc tvAccount) domain.Account {
	name := acc.Nickname
	if name == "" {
		name = acc.Name
	}
	currency := acc.Currency
	if currency == "" {
		logger.Warnf("tradovate account %d missing currency, defaulting to USD", acc.ID)
		currency = "USD"
	}
	return domain.Account{
		Platform:    domain.PlatformTradovate,
		Environment: a.env,
		ID:          strconv.FormatInt(acc.ID, 10),
		Name:        name,
		Server:      "Tradovate",
		Balance:     acc.Balance,
		Equity:      acc.Balance,
		Currency:    currency,
		Leverage:    1, // futures margin, no retail leverage figure
		Status:      domain.AccountActive,
		UpdatedAt:   time.Now().UTC(),
	}
}

type tvPosition struct {
	Symbol    string  `json:"symbol"`
	NetPos    float64 `json:"netPos"`
	NetPrice  float64 `json:"netPrice"`
	MarkPrice float64 `json:"markPrice"`
	OpenPL    float64 `json:"openPl"`
	Timestamp string  `json:"timestamp"`
}

func (a *Adapter) OpenPositions(ctx context.Context, accountID string) ([]domain.Position, error) {
	if a.mock.Enabled() {
		return mockdata.Positions(domain.PlatformTradovate, a.env, accountID), nil
	}
	var raw []tvPosition
	if err := a.authedGet(ctx, "tradovate positions", "/position/list?accountId="+accountID, &raw); err != nil {
		return nil, err
	}
	positions := make([]domain.Position, 0, len(raw))
	for _, p := range raw {
		if p.NetPos == 0 {
			continue // flat contract rows are not open positions
		}
		direction := domain.PositionLong
		volume := p.NetPos
		if p.NetPos < 0 {
			direction = domain.PositionShort
			volume = -p.NetPos
		}
		openedAt, err := time.Parse(time.RFC3339, p.Timestamp)
		if err != nil {
			return nil, platform.UpstreamFormatf("tradovate position %s/%s has bad timestamp %q", accountID, p.Symbol, p.Timestamp)
		}
		positions = append(positions, domain.Position{
			AccountID: accountID,
			Symbol:    p.Symbol,
			Direction: direction,
			OpenPrice: p.NetPrice,
			MarkPrice: p.MarkPrice,
			Volume:    volume,
			Profit:    p.OpenPL,
			OpenedAt:  openedAt.UTC(),
		})
	}
	return positions, nil
}

type tvFillPair struct {
	Symbol     string   `json:"symbol"`
	Action     string   `json:"action"` // "Buy" | "Sell"
	BoughtTime string   `json:"boughtTimestamp"`
	SoldTime   *string  `json:"soldTimestamp"`
	BuyPrice   float64  `json:"buyPrice"`
	SellPrice  *float64 `json:"sellPrice"`
	Qty        float64  `json:"qty"`
	PL         float64  `json:"pnl"`
}

func (a *Adapter) TradeHistory(ctx context.Context, accountID string, from, to time.Time) ([]domain.Trade, error) {
	if a.mock.Enabled() {
		return mockdata.Trades(domain.PlatformTradovate, a.env, accountID, from, to), nil
	}
	trades := make([]domain.Trade, 0, historyPageLimit)
	for page := 0; page < platform.MaxHistoryPages; page++ {
		path := fmt.Sprintf("/fillpair/list?accountId=%s&from=%d&to=%d&offset=%d&limit=%d",
			accountID, from.Unix(), to.Unix(), page*historyPageLimit, historyPageLimit)
		var raw []tvFillPair
		if err := a.authedGet(ctx, "tradovate fill pairs", path, &raw); err != nil {
			return nil, err
		}
		for _, fp := range raw {
			tr, err := mapFillPair(accountID, fp)
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
	logger.Warnf("tradovate fill pairs for %s hit the page cap, result may be truncated", accountID)
	return trades, nil
}

func mapFillPair(accountID string, fp tvFillPair) (domain.Trade, error) {
	direction := domain.TradeBuy
	if fp.Action == "Sell" {
		direction = domain.TradeSell
	}
	openTime, err := time.Parse(time.RFC3339, fp.BoughtTime)
	if err != nil {
		return domain.Trade{}, platform.UpstreamFormatf("tradovate fill pair %s/%s has bad open timestamp %q", accountID, fp.Symbol, fp.BoughtTime)
	}
	tr := domain.Trade{
		AccountID: accountID,
		Symbol:    fp.Symbol,
		Direction: direction,
		OpenTime:  openTime.UTC(),
		OpenPrice: fp.BuyPrice,
		Volume:    fp.Qty,
		Status:    domain.TradeOpen,
	}
	if fp.SoldTime != nil && fp.SellPrice != nil {
		closeTime, err := time.Parse(time.RFC3339, *fp.SoldTime)
		if err != nil {
			return domain.Trade{}, platform.UpstreamFormatf("tradovate fill pair %s/%s has bad close timestamp %q", accountID, fp.Symbol, *fp.SoldTime)
		}
		closed := closeTime.UTC()
		tr.Status = domain.TradeClosed
		tr.CloseTime = &closed
		tr.ClosePrice = fp.SellPrice
		tr.Profit = fp.PL
	} else if fp.SoldTime != nil || fp.SellPrice != nil {
		return domain.Trade{}, platform.UpstreamFormatf("tradovate fill pair %s/%s has mismatched close fields", accountID, fp.Symbol)
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

type renewResponse struct {
	AccessToken    string `json:"accessToken"`
	ExpirationTime string `json:"expirationTime"`
}

// accessToken returns the session token, renewing it when close to
// expiry. Single writer under the mutex; a completed renewal is kept
// regardless of the triggering caller's fate.
func (a *Adapter) accessToken(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.session == nil {
		return "", platform.ErrNotAuthenticated
	}
	if a.session.expiresAt.IsZero() || time.Until(a.session.expiresAt) > renewSkew {
		return a.session.accessToken, nil
	}
	var resp renewResponse
	err := a.client.Do(ctx, http.MethodGet, "/auth/renewaccesstoken", nil, &resp,
		httpx.WithBearer(a.session.accessToken))
	if err != nil {
		return "", err
	}
	if resp.AccessToken == "" {
		return "", platform.UpstreamFormatf("tradovate token renewal returned no access token")
	}
	renewed := &session{accessToken: resp.AccessToken}
	if t, err := time.Parse(time.RFC3339, resp.ExpirationTime); err == nil {
		renewed.expiresAt = t
	}
	a.session = renewed
	logger.Debugf("tradovate %s access token renewed", a.env)
	return renewed.accessToken, nil
}

func (a *Adapter) setSession(s *session) {
	a.mu.Lock()
	a.session = s
	a.mu.Unlock()
}
