// Package histdata serves forex and index bars from the HistData REST
// vendor. Responses vary between bare arrays and wrapped envelopes
// depending on plan tier, so parsing goes through gjson.
package histdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/tidwall/gjson"

	"brokergate/internal/config"
	"brokergate/internal/dataprovider"
	"brokergate/internal/domain"
	"brokergate/internal/mockdata"
	"brokergate/internal/platform"
	"brokergate/internal/platform/httpx"
)

// ProviderName is the registry key for this vendor.
const ProviderName = "histdata"

// Provider implements dataprovider.Provider against the HistData API.
type Provider struct {
	client *httpx.Client
	apiKey string
	mock   mockdata.Policy
}

// New builds the provider from configuration.
func New(cfg config.HistDataProviderConfig, mock mockdata.Policy) (*Provider, error) {
	client, err := httpx.New(cfg.BaseURL, time.Duration(cfg.TimeoutSeconds)*time.Second)
	if err != nil {
		return nil, fmt.Errorf("histdata: %w", err)
	}
	return &Provider{client: client, apiKey: cfg.APIKey, mock: mock}, nil
}

func (p *Provider) Name() string { return ProviderName }

func (p *Provider) Info() dataprovider.Info {
	return dataprovider.Info{
		Name:       ProviderName,
		Title:      "HistData",
		Markets:    []string{"forex", "indices", "metals"},
		Timeframes: dataprovider.AllTimeframes(),
	}
}

// SetHTTPClient swaps the transport for testing.
func (p *Provider) SetHTTPClient(c *http.Client) { p.client.SetHTTPClient(c) }

func (p *Provider) TestConnection(ctx context.Context) domain.ConnectionResult {
	if p.mock.Enabled() {
		return domain.ConnectOK()
	}
	if err := p.client.Do(ctx, http.MethodGet, "/health", nil, nil, p.auth()); err != nil {
		return domain.ConnectFailed(err, "histdata health check failed")
	}
	return domain.ConnectOK()
}

func (p *Provider) Symbols(ctx context.Context) ([]string, error) {
	if p.mock.Enabled() {
		return mockdata.Symbols(ProviderName), nil
	}
	var raw json.RawMessage
	err := platform.WithRetry(ctx, "histdata symbols", func(ctx context.Context) error {
		return p.client.Do(ctx, http.MethodGet, "/symbols", nil, &raw, p.auth())
	})
	if err != nil {
		return nil, err
	}
	parsed := gjson.ParseBytes(raw)
	list := parsed
	if !parsed.IsArray() {
		list = parsed.Get("symbols")
	}
	if !list.IsArray() {
		return nil, platform.UpstreamFormatf("histdata symbols payload has no list (%d bytes)", len(raw))
	}
	var symbols []string
	list.ForEach(func(_, item gjson.Result) bool {
		if item.Type == gjson.String {
			symbols = append(symbols, item.String())
		} else if name := item.Get("symbol").String(); name != "" {
			symbols = append(symbols, name)
		}
		return true
	})
	return symbols, nil
}

func (p *Provider) Bars(ctx context.Context, symbol string, tf domain.Timeframe, from, to time.Time) ([]domain.Bar, error) {
	if p.mock.Enabled() {
		return mockdata.Bars(ProviderName, symbol, tf, from, to), nil
	}
	path := fmt.Sprintf("/bars?symbol=%s&resolution=%s&from=%d&to=%d",
		url.QueryEscape(symbol), tf, from.Unix(), to.Unix())
	var raw json.RawMessage
	err := platform.WithRetry(ctx, "histdata bars", func(ctx context.Context) error {
		return p.client.Do(ctx, http.MethodGet, path, nil, &raw, p.auth())
	})
	if err != nil {
		return nil, err
	}
	parsed := gjson.ParseBytes(raw)
	list := parsed
	if !parsed.IsArray() {
		list = parsed.Get("bars")
	}
	if !list.IsArray() {
		return nil, platform.UpstreamFormatf("histdata bars payload has no list (%d bytes)", len(raw))
	}
	var bars []domain.Bar
	var lastTime time.Time
	var mapErr error
	list.ForEach(func(_, item gjson.Result) bool {
		ts := time.Unix(item.Get("time").Int(), 0).UTC()
		if ts.IsZero() || item.Get("time").Int() == 0 {
			mapErr = platform.UpstreamFormatf("histdata bar for %s missing timestamp", symbol)
			return false
		}
		if ts.Before(from) || ts.After(to) {
			return true
		}
		if !lastTime.IsZero() && !ts.After(lastTime) {
			// Vendor occasionally repeats the boundary candle between
			// chunks; keep the first occurrence.
			return true
		}
		lastTime = ts
		bars = append(bars, domain.Bar{
			Provider:  ProviderName,
			Symbol:    symbol,
			Timeframe: tf,
			Time:      ts,
			Open:      item.Get("open").Float(),
			High:      item.Get("high").Float(),
			Low:       item.Get("low").Float(),
			Close:     item.Get("close").Float(),
			Volume:    item.Get("volume").Float(),
		})
		return true
	})
	if mapErr != nil {
		return nil, mapErr
	}
	return bars, nil
}

func (p *Provider) auth() httpx.Option {
	return httpx.WithHeader("X-API-Key", p.apiKey)
}
