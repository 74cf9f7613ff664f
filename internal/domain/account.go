// Package domain holds the canonical shapes every platform adapter
// normalizes into. Pure data: no behavior beyond parsing and validation.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// Platform identifies a supported external trading platform.
type Platform string

const (
	PlatformMT5         Platform = "mt5"
	PlatformCTrader     Platform = "ctrader"
	PlatformDXtrade     Platform = "dxtrade"
	PlatformMatchTrader Platform = "matchtrader"
	PlatformTradovate   Platform = "tradovate"
)

// Platforms lists every supported platform in stable order.
func Platforms() []Platform {
	return []Platform{PlatformMT5, PlatformCTrader, PlatformDXtrade, PlatformMatchTrader, PlatformTradovate}
}

// ParsePlatform normalizes a user-supplied platform key.
func ParsePlatform(s string) (Platform, error) {
	key := Platform(strings.ToLower(strings.TrimSpace(s)))
	switch key {
	case PlatformMT5, PlatformCTrader, PlatformDXtrade, PlatformMatchTrader, PlatformTradovate:
		return key, nil
	}
	return "", fmt.Errorf("unsupported platform: %q", s)
}

// Environment segregates credentials and sessions for the same platform.
type Environment string

const (
	EnvDemo Environment = "demo"
	EnvLive Environment = "live"
	EnvProp Environment = "prop"
)

// ParseEnvironment maps a request value onto an environment.
// Empty input selects demo, matching the UI default.
func ParseEnvironment(s string) (Environment, error) {
	switch Environment(strings.ToLower(strings.TrimSpace(s))) {
	case "", EnvDemo:
		return EnvDemo, nil
	case EnvLive:
		return EnvLive, nil
	case EnvProp:
		return EnvProp, nil
	}
	return "", fmt.Errorf("unsupported environment: %q", s)
}

// AccountStatus reflects the connection state of a trading account.
type AccountStatus string

const (
	AccountActive       AccountStatus = "active"
	AccountDisconnected AccountStatus = "disconnected"
	AccountPending      AccountStatus = "pending"
	AccountError        AccountStatus = "error"
)

// Account is the canonical trading-account shape.
// (Platform, ID, Environment) is unique within the registry cache.
type Account struct {
	Platform    Platform      `json:"platform"`
	Environment Environment   `json:"environment"`
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Server      string        `json:"server"`
	Balance     float64       `json:"balance"`
	Equity      float64       `json:"equity"`
	Currency    string        `json:"currency"`
	Leverage    int           `json:"leverage"`
	Status      AccountStatus `json:"status"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}
