// Package platform defines the uniform contract every trading-platform
// adapter implements, plus the shared error taxonomy and retry policy.
package platform

import (
	"context"
	"time"

	"brokergate/internal/domain"
)

// MaxHistoryPages caps adapter-side pagination per history request.
const MaxHistoryPages = 20

// Adapter is the capability set shared by all platform integrations.
// One instance serves one (platform, environment) pair and owns the
// credentials/session it authenticated with.
type Adapter interface {
	Platform() domain.Platform
	Environment() domain.Environment

	// Connect validates credentials locally, performs the platform
	// handshake and stores the session on success. All-or-nothing: a
	// failed handshake leaves session state unchanged.
	Connect(ctx context.Context, creds domain.Credentials) domain.ConnectionResult

	// Disconnect tears down the session for the account. Idempotent:
	// unknown or already-disconnected account ids succeed.
	Disconnect(ctx context.Context, accountID string) error

	// TestConnection performs the cheapest possible round-trip without
	// mutating session state.
	TestConnection(ctx context.Context) domain.ConnectionResult

	Accounts(ctx context.Context) ([]domain.Account, error)
	AccountInfo(ctx context.Context, accountID string) (domain.Account, error)
	OpenPositions(ctx context.Context, accountID string) ([]domain.Position, error)

	// TradeHistory returns every trade whose open time falls inside
	// [from, to], both ends inclusive. Pagination is resolved inside
	// the adapter.
	TradeHistory(ctx context.Context, accountID string, from, to time.Time) ([]domain.Trade, error)
}

// Descriptor is the static capability listing for one platform.
// Serving it never requires network access.
type Descriptor struct {
	Key            domain.Platform       `json:"key"`
	Name           string                `json:"name"`
	CredentialKind domain.CredentialKind `json:"credentialKind"`
	Environments   []domain.Environment  `json:"environments"`
}

// Descriptors lists every supported platform.
func Descriptors() []Descriptor {
	envs := []domain.Environment{domain.EnvDemo, domain.EnvLive, domain.EnvProp}
	return []Descriptor{
		{Key: domain.PlatformMT5, Name: "MetaTrader 5", CredentialKind: domain.CredentialPassword, Environments: envs},
		{Key: domain.PlatformCTrader, Name: "cTrader", CredentialKind: domain.CredentialToken, Environments: envs},
		{Key: domain.PlatformDXtrade, Name: "DXtrade", CredentialKind: domain.CredentialPassword, Environments: envs},
		{Key: domain.PlatformMatchTrader, Name: "Match-Trader", CredentialKind: domain.CredentialToken, Environments: envs},
		{Key: domain.PlatformTradovate, Name: "Tradovate", CredentialKind: domain.CredentialPassword, Environments: envs},
	}
}
