package config

import (
	"fmt"
	"net/url"
	"strings"
)

func validate(c *Config) error {
	if err := c.Server.validate(); err != nil {
		return err
	}
	for name, p := range map[string]PlatformConfig{
		"mt5":         c.Platforms.MT5,
		"ctrader":     c.Platforms.CTrader,
		"dxtrade":     c.Platforms.DXtrade,
		"matchtrader": c.Platforms.MatchTrader,
		"tradovate":   c.Platforms.Tradovate,
	} {
		if err := p.validate(name); err != nil {
			return err
		}
	}
	if err := validateURL(c.Providers.HistData.BaseURL, "providers.histdata.base_url"); err != nil {
		return err
	}
	return nil
}

func (s ServerConfig) validate() error {
	if strings.TrimSpace(s.Addr) == "" {
		return fmt.Errorf("server.addr cannot be empty")
	}
	return nil
}

func (p PlatformConfig) validate(name string) error {
	if err := validateURL(p.DemoURL, "platforms."+name+".demo_url"); err != nil {
		return err
	}
	return validateURL(p.LiveURL, "platforms."+name+".live_url")
}

func validateURL(raw, key string) error {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return fmt.Errorf("%s cannot be empty", key)
	}
	u, err := url.Parse(trimmed)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s is not a valid URL: %q", key, raw)
	}
	return nil
}
