package mockdata

import (
	"context"
	"sync"
	"time"

	"brokergate/internal/domain"
	"brokergate/internal/platform"
)

// Adapter is a fully mock-backed platform adapter. The registry
// substitutes it when a real adapter fails to initialize and the mock
// policy allows degraded mode. It enforces the same ordering contract
// as a live adapter: operations before Connect fail.
type Adapter struct {
	platform       domain.Platform
	env            domain.Environment
	credentialKind domain.CredentialKind

	mu        sync.Mutex
	connected bool
}

var _ platform.Adapter = (*Adapter)(nil)

// NewAdapter builds a mock adapter for one (platform, environment).
func NewAdapter(p domain.Platform, env domain.Environment) *Adapter {
	kind := domain.CredentialPassword
	for _, d := range platform.Descriptors() {
		if d.Key == p {
			kind = d.CredentialKind
			break
		}
	}
	return &Adapter{platform: p, env: env, credentialKind: kind}
}

func (a *Adapter) Platform() domain.Platform       { return a.platform }
func (a *Adapter) Environment() domain.Environment { return a.env }

func (a *Adapter) Connect(ctx context.Context, creds domain.Credentials) domain.ConnectionResult {
	if err := creds.Validate(a.credentialKind); err != nil {
		return domain.ConnectFailed(platform.Validationf("%v", err), "")
	}
	a.mu.Lock()
	a.connected = true
	a.mu.Unlock()
	return domain.ConnectOK()
}

func (a *Adapter) Disconnect(ctx context.Context, accountID string) error {
	a.mu.Lock()
	a.connected = false
	a.mu.Unlock()
	return nil
}

func (a *Adapter) TestConnection(ctx context.Context) domain.ConnectionResult {
	return domain.ConnectOK()
}

func (a *Adapter) requireConnected() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.connected {
		return platform.ErrNotAuthenticated
	}
	return nil
}

func (a *Adapter) Accounts(ctx context.Context) ([]domain.Account, error) {
	if err := a.requireConnected(); err != nil {
		return nil, err
	}
	return Accounts(a.platform, a.env), nil
}

func (a *Adapter) AccountInfo(ctx context.Context, accountID string) (domain.Account, error) {
	if err := a.requireConnected(); err != nil {
		return domain.Account{}, err
	}
	return Account(a.platform, a.env, accountID), nil
}

func (a *Adapter) OpenPositions(ctx context.Context, accountID string) ([]domain.Position, error) {
	if err := a.requireConnected(); err != nil {
		return nil, err
	}
	return Positions(a.platform, a.env, accountID), nil
}

func (a *Adapter) TradeHistory(ctx context.Context, accountID string, from, to time.Time) ([]domain.Trade, error) {
	if err := a.requireConnected(); err != nil {
		return nil, err
	}
	return Trades(a.platform, a.env, accountID, from, to), nil
}
