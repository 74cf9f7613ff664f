package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"brokergate/internal/config"
	"brokergate/internal/dataprovider"
	"brokergate/internal/dataprovider/binance"
	"brokergate/internal/dataprovider/histdata"
	"brokergate/internal/domain"
	"brokergate/internal/logger"
	"brokergate/internal/mockdata"
	"brokergate/internal/platform"
)

// providerSet caches historical-data vendors by name with the same
// construct-on-demand and unhealthy-eviction discipline as the
// platform side.
type providerSet struct {
	cfg  *config.Config
	mock mockdata.Policy

	mu        sync.RWMutex
	providers map[string]*providerEntry
}

type providerEntry struct {
	provider  dataprovider.Provider
	unhealthy int
}

func newProviderSet(cfg *config.Config, mock mockdata.Policy) *providerSet {
	return &providerSet{
		cfg:       cfg,
		mock:      mock,
		providers: make(map[string]*providerEntry),
	}
}

// ListProviders returns the static vendor descriptors.
func (r *Registry) ListProviders() []dataprovider.Info {
	infos := []dataprovider.Info{
		binance.New(r.cfg.Providers.Binance, r.mock).Info(),
		{Name: histdata.ProviderName, Title: "HistData", Markets: []string{"forex", "indices", "metals"}, Timeframes: dataprovider.AllTimeframes()},
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// Provider resolves a vendor by name, constructing and caching it on
// first use with mock fallback on init failure.
func (r *Registry) Provider(name string) (dataprovider.Provider, error) {
	s := r.providers

	s.mu.RLock()
	cached, ok := s.providers[name]
	s.mu.RUnlock()
	if ok {
		return cached.provider, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if cached, ok := s.providers[name]; ok {
		return cached.provider, nil
	}
	provider, err := s.build(name)
	if err != nil {
		if !s.mock.Enabled() {
			return nil, fmt.Errorf("%w: provider %s: %v", platform.ErrProviderUnavailable, name, err)
		}
		logger.Warnf("provider init for %s failed (%v), serving mock fallback", name, err)
		provider = mockdata.NewDataProvider(name)
	}
	s.providers[name] = &providerEntry{provider: provider}
	logger.Infof("registry: constructed data provider %s", name)
	return provider, nil
}

func (s *providerSet) build(name string) (dataprovider.Provider, error) {
	switch name {
	case binance.ProviderName:
		return binance.New(s.cfg.Providers.Binance, s.mock), nil
	case histdata.ProviderName:
		return histdata.New(s.cfg.Providers.HistData, s.mock)
	}
	return nil, platform.Validationf("unknown data provider %q", name)
}

// ProviderInfo returns the descriptor for one vendor.
func (r *Registry) ProviderInfo(name string) (dataprovider.Info, error) {
	p, err := r.Provider(name)
	if err != nil {
		return dataprovider.Info{}, err
	}
	return p.Info(), nil
}

// Symbols lists the vendor's tradable symbols.
func (r *Registry) Symbols(ctx context.Context, name string) ([]string, error) {
	p, err := r.Provider(name)
	if err != nil {
		return nil, err
	}
	return p.Symbols(ctx)
}

// Bars fetches candles from the vendor.
func (r *Registry) Bars(ctx context.Context, name, symbol string, tf domain.Timeframe, from, to time.Time) ([]domain.Bar, error) {
	p, err := r.Provider(name)
	if err != nil {
		return nil, err
	}
	return p.Bars(ctx, symbol, tf, from, to)
}

// TestProvider probes the vendor, tracking consecutive failures with
// the same eviction rule as platform adapters.
func (r *Registry) TestProvider(ctx context.Context, name string) (domain.ConnectionResult, error) {
	p, err := r.Provider(name)
	if err != nil {
		return domain.ConnectionResult{}, err
	}
	result := p.TestConnection(ctx)

	s := r.providers
	s.mu.Lock()
	if e, ok := s.providers[name]; ok {
		if result.Success {
			e.unhealthy = 0
		} else {
			e.unhealthy++
			if e.unhealthy >= unhealthyEvictThreshold {
				delete(s.providers, name)
				logger.Warnf("registry: provider %s unhealthy %d times in a row, evicting", name, unhealthyEvictThreshold)
			}
		}
	}
	s.mu.Unlock()
	return result, nil
}
