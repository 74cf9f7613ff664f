// Package binance serves historical bars from Binance spot market data
// through the official REST API.
package binance

import (
	"context"
	"errors"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"

	"brokergate/internal/config"
	"brokergate/internal/dataprovider"
	"brokergate/internal/domain"
	"brokergate/internal/logger"
	"brokergate/internal/mockdata"
	"brokergate/internal/platform"
	"brokergate/internal/platform/httpx"
)

const (
	// ProviderName is the registry key for this vendor.
	ProviderName = "binance"

	klinesPageLimit = 1000
	maxKlinePages   = 20
)

// Provider implements dataprovider.Provider against Binance.
type Provider struct {
	client *binance.Client
	mock   mockdata.Policy
}

// New builds the provider. API keys are optional: market-data endpoints
// are public.
func New(cfg config.BinanceProviderConfig, mock mockdata.Policy) *Provider {
	return &Provider{
		client: binance.NewClient(cfg.APIKey, cfg.APISecret),
		mock:   mock,
	}
}

func (p *Provider) Name() string { return ProviderName }

func (p *Provider) Info() dataprovider.Info {
	return dataprovider.Info{
		Name:       ProviderName,
		Title:      "Binance Spot",
		Markets:    []string{"crypto"},
		Timeframes: dataprovider.AllTimeframes(),
	}
}

func (p *Provider) TestConnection(ctx context.Context) domain.ConnectionResult {
	if p.mock.Enabled() {
		return domain.ConnectOK()
	}
	if err := p.client.NewPingService().Do(ctx); err != nil {
		return domain.ConnectFailed(classify(err), "binance ping failed")
	}
	return domain.ConnectOK()
}

func (p *Provider) Symbols(ctx context.Context) ([]string, error) {
	if p.mock.Enabled() {
		return mockdata.Symbols(ProviderName), nil
	}
	var info *binance.ExchangeInfo
	err := platform.WithRetry(ctx, "binance exchange info", func(ctx context.Context) error {
		var err error
		info, err = p.client.NewExchangeInfoService().Do(ctx)
		return classify(err)
	})
	if err != nil {
		return nil, err
	}
	symbols := make([]string, 0, len(info.Symbols))
	for _, s := range info.Symbols {
		if s.Status == "TRADING" {
			symbols = append(symbols, s.Symbol)
		}
	}
	return symbols, nil
}

func (p *Provider) Bars(ctx context.Context, symbol string, tf domain.Timeframe, from, to time.Time) ([]domain.Bar, error) {
	if p.mock.Enabled() {
		return mockdata.Bars(ProviderName, symbol, tf, from, to), nil
	}
	interval, err := toInterval(tf)
	if err != nil {
		return nil, err
	}
	bars := make([]domain.Bar, 0, klinesPageLimit)
	cursor := from
	for page := 0; page < maxKlinePages && !cursor.After(to); page++ {
		var klines []*binance.Kline
		err := platform.WithRetry(ctx, "binance klines", func(ctx context.Context) error {
			var err error
			klines, err = p.client.NewKlinesService().
				Symbol(symbol).
				Interval(interval).
				StartTime(cursor.UnixMilli()).
				EndTime(to.UnixMilli()).
				Limit(klinesPageLimit).
				Do(ctx)
			return classify(err)
		})
		if err != nil {
			return nil, err
		}
		for _, k := range klines {
			bar, err := p.mapKline(symbol, tf, k)
			if err != nil {
				return nil, err
			}
			if bar.Time.Before(from) || bar.Time.After(to) {
				continue
			}
			bars = append(bars, bar)
		}
		if len(klines) < klinesPageLimit {
			return bars, nil
		}
		cursor = time.UnixMilli(klines[len(klines)-1].OpenTime).Add(tf.Duration())
	}
	if !cursor.After(to) {
		logger.Warnf("binance klines for %s %s hit the page cap, result may be truncated", symbol, tf)
	}
	return bars, nil
}

func (p *Provider) mapKline(symbol string, tf domain.Timeframe, k *binance.Kline) (domain.Bar, error) {
	open, err := httpx.Float(k.Open)
	if err != nil {
		return domain.Bar{}, err
	}
	high, err := httpx.Float(k.High)
	if err != nil {
		return domain.Bar{}, err
	}
	low, err := httpx.Float(k.Low)
	if err != nil {
		return domain.Bar{}, err
	}
	closeP, err := httpx.Float(k.Close)
	if err != nil {
		return domain.Bar{}, err
	}
	volume, err := httpx.Float(k.Volume)
	if err != nil {
		return domain.Bar{}, err
	}
	return domain.Bar{
		Provider:  ProviderName,
		Symbol:    symbol,
		Timeframe: tf,
		Time:      time.UnixMilli(k.OpenTime).UTC(),
		Open:      open,
		High:      high,
		Low:       low,
		Close:     closeP,
		Volume:    volume,
	}, nil
}

func toInterval(tf domain.Timeframe) (string, error) {
	switch tf {
	case domain.TimeframeM1:
		return "1m", nil
	case domain.TimeframeM5:
		return "5m", nil
	case domain.TimeframeM15:
		return "15m", nil
	case domain.TimeframeM30:
		return "30m", nil
	case domain.TimeframeH1:
		return "1h", nil
	case domain.TimeframeH4:
		return "4h", nil
	case domain.TimeframeD1:
		return "1d", nil
	}
	return "", platform.Validationf("unsupported timeframe %q", tf)
}

// classify maps go-binance errors onto the shared taxonomy.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == -1003: // rate limited, safe to back off and retry
			return platform.Transportf("binance rate limited: %s", apiErr.Message)
		case apiErr.Code == -2014 || apiErr.Code == -2015 || apiErr.Code == -1022:
			return platform.Authf("binance: %s", apiErr.Message)
		case apiErr.Code <= -1100 && apiErr.Code >= -1199:
			return platform.Validationf("binance: %s", apiErr.Message)
		default:
			return platform.UpstreamFormatf("binance error %d: %s", apiErr.Code, apiErr.Message)
		}
	}
	return platform.Transportf("binance: %v", err)
}
