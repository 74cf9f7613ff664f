package config

import (
	"strings"
	"time"
)

// Config is the top-level configuration carrier.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Log       LogConfig       `toml:"log"`
	Mock      MockConfig      `toml:"mock"`
	Platforms PlatformsConfig `toml:"platforms"`
	Providers ProvidersConfig `toml:"providers"`
	Store     StoreConfig     `toml:"store"`
}

type ServerConfig struct {
	Addr                string `toml:"addr"`
	ReadTimeoutSeconds  int    `toml:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `toml:"write_timeout_seconds"`
}

// ReadTimeoutDuration returns the read timeout as a duration.
func (s ServerConfig) ReadTimeoutDuration() time.Duration {
	return time.Duration(s.ReadTimeoutSeconds) * time.Second
}

// WriteTimeoutDuration returns the write timeout as a duration.
func (s ServerConfig) WriteTimeoutDuration() time.Duration {
	return time.Duration(s.WriteTimeoutSeconds) * time.Second
}

type LogConfig struct {
	Level string `toml:"level"`
	// Format is "text" or "json".
	Format string `toml:"format"`
	Path   string `toml:"path"`
	// WirePath enables the raw platform request/response trace when
	// set. Kept out of the main log on purpose.
	WirePath     string `toml:"wire_path"`
	WireDumpBody bool   `toml:"wire_dump_body"`
}

// MockConfig controls the process-wide mock-data policy. Read once at
// startup; never mutated afterwards.
type MockConfig struct {
	Enabled bool `toml:"enabled"`
}

type PlatformsConfig struct {
	MT5         PlatformConfig `toml:"mt5"`
	CTrader     PlatformConfig `toml:"ctrader"`
	DXtrade     PlatformConfig `toml:"dxtrade"`
	MatchTrader PlatformConfig `toml:"matchtrader"`
	Tradovate   PlatformConfig `toml:"tradovate"`
}

// PlatformConfig holds the per-platform connection settings. DemoURL
// and LiveURL point at the platform gateway (or the bridge backend for
// MT5); prop accounts ride the live endpoint.
type PlatformConfig struct {
	DemoURL        string `toml:"demo_url"`
	LiveURL        string `toml:"live_url"`
	ClientID       string `toml:"client_id"`
	ClientSecret   string `toml:"client_secret"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// BaseURL selects the endpoint for an environment key ("demo"
// selects DemoURL, everything else the live endpoint).
func (p PlatformConfig) BaseURL(environment string) string {
	if strings.EqualFold(strings.TrimSpace(environment), "demo") {
		return strings.TrimSpace(p.DemoURL)
	}
	return strings.TrimSpace(p.LiveURL)
}

type ProvidersConfig struct {
	Binance  BinanceProviderConfig  `toml:"binance"`
	HistData HistDataProviderConfig `toml:"histdata"`
}

type BinanceProviderConfig struct {
	APIKey    string `toml:"api_key"`
	APISecret string `toml:"api_secret"`
}

type HistDataProviderConfig struct {
	BaseURL        string `toml:"base_url"`
	APIKey         string `toml:"api_key"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

type StoreConfig struct {
	Path string `toml:"path"`
}
