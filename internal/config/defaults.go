package config

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8090"
	}
	if c.Server.ReadTimeoutSeconds <= 0 {
		c.Server.ReadTimeoutSeconds = 30
	}
	if c.Server.WriteTimeoutSeconds <= 0 {
		c.Server.WriteTimeoutSeconds = 60
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Store.Path == "" {
		c.Store.Path = "data/brokergate.db"
	}
	if c.Providers.HistData.BaseURL == "" {
		c.Providers.HistData.BaseURL = "https://api.histdata.dev/v1"
	}
	if c.Providers.HistData.TimeoutSeconds <= 0 {
		c.Providers.HistData.TimeoutSeconds = 15
	}

	applyPlatformDefaults(&c.Platforms.MT5, "http://127.0.0.1:5000", "http://127.0.0.1:5000")
	applyPlatformDefaults(&c.Platforms.CTrader, "https://demo.ctraderapi.com", "https://live.ctraderapi.com")
	applyPlatformDefaults(&c.Platforms.DXtrade, "https://demo.dx.trade/dxsca-web", "https://trade.dx.trade/dxsca-web")
	applyPlatformDefaults(&c.Platforms.MatchTrader, "https://platform-demo.match-trade.com", "https://platform.match-trade.com")
	applyPlatformDefaults(&c.Platforms.Tradovate, "https://demo.tradovateapi.com/v1", "https://live.tradovateapi.com/v1")
}

func applyPlatformDefaults(p *PlatformConfig, demoURL, liveURL string) {
	if p.DemoURL == "" {
		p.DemoURL = demoURL
	}
	if p.LiveURL == "" {
		p.LiveURL = liveURL
	}
	if p.TimeoutSeconds <= 0 {
		p.TimeoutSeconds = 15
	}
}
