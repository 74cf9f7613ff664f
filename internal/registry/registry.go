// Package registry owns adapter and provider instances: one live
// instance per (platform, environment), constructed on first resolve,
// evicted on disconnect or repeated health failures so the next
// resolve starts from fresh state.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"brokergate/internal/config"
	"brokergate/internal/domain"
	"brokergate/internal/logger"
	"brokergate/internal/mockdata"
	"brokergate/internal/platform"
	"brokergate/internal/platform/ctrader"
	"brokergate/internal/platform/dxtrade"
	"brokergate/internal/platform/matchtrader"
	"brokergate/internal/platform/mt5"
	"brokergate/internal/platform/tradovate"
)

// unhealthyEvictThreshold is how many consecutive failed health checks
// evict a cached instance.
const unhealthyEvictThreshold = 2

type entry struct {
	id        string
	adapter   platform.Adapter
	unhealthy int
}

// Registry caches adapter instances keyed by (platform, environment).
type Registry struct {
	cfg  *config.Config
	mock mockdata.Policy

	mu       sync.RWMutex
	adapters map[string]*entry

	providers *providerSet
}

// New builds a registry. The mock policy is fixed for the process
// lifetime.
func New(cfg *config.Config, mock mockdata.Policy) *Registry {
	return &Registry{
		cfg:       cfg,
		mock:      mock,
		adapters:  make(map[string]*entry),
		providers: newProviderSet(cfg, mock),
	}
}

func cacheKey(p domain.Platform, env domain.Environment) string {
	return string(p) + "/" + string(env)
}

// ListAvailable returns the static platform capability listing.
func (r *Registry) ListAvailable() []platform.Descriptor {
	return platform.Descriptors()
}

// Resolve returns the cached adapter for (platform, env), constructing
// and caching one on first use. Demo and live never share an instance.
// Construction failure falls back to a mock-backed adapter when the
// mock policy is on, and surfaces ErrProviderUnavailable otherwise.
func (r *Registry) Resolve(ctx context.Context, p domain.Platform, env domain.Environment) (platform.Adapter, error) {
	key := cacheKey(p, env)

	r.mu.RLock()
	cached, ok := r.adapters[key]
	r.mu.RUnlock()
	if ok {
		return cached.adapter, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if cached, ok := r.adapters[key]; ok {
		return cached.adapter, nil
	}
	adapter, err := r.build(p, env)
	if err != nil {
		if !r.mock.Enabled() {
			return nil, fmt.Errorf("%w: %s %s: %v", platform.ErrProviderUnavailable, p, env, err)
		}
		logger.Warnf("adapter init for %s/%s failed (%v), serving mock fallback", p, env, err)
		adapter = mockdata.NewAdapter(p, env)
	}
	e := &entry{id: uuid.NewString(), adapter: adapter}
	r.adapters[key] = e
	logger.Infof("registry: constructed %s/%s adapter (instance %s)", p, env, e.id)
	return adapter, nil
}

func (r *Registry) build(p domain.Platform, env domain.Environment) (platform.Adapter, error) {
	switch p {
	case domain.PlatformMT5:
		return mt5.New(env, r.cfg.Platforms.MT5, r.mock)
	case domain.PlatformCTrader:
		return ctrader.New(env, r.cfg.Platforms.CTrader, r.mock)
	case domain.PlatformDXtrade:
		return dxtrade.New(env, r.cfg.Platforms.DXtrade, r.mock)
	case domain.PlatformMatchTrader:
		return matchtrader.New(env, r.cfg.Platforms.MatchTrader, r.mock)
	case domain.PlatformTradovate:
		return tradovate.New(env, r.cfg.Platforms.Tradovate, r.mock)
	}
	return nil, fmt.Errorf("unsupported platform %q", p)
}

// Evict drops the cached instance for (platform, env); the next
// Resolve constructs fresh state.
func (r *Registry) Evict(p domain.Platform, env domain.Environment) {
	key := cacheKey(p, env)
	r.mu.Lock()
	e, ok := r.adapters[key]
	if ok {
		delete(r.adapters, key)
	}
	r.mu.Unlock()
	if ok {
		logger.Infof("registry: evicted %s/%s adapter (instance %s)", p, env, e.id)
	}
}

// Disconnect tears the account's session down through the adapter and
// evicts the instance so credentials are discarded with it.
func (r *Registry) Disconnect(ctx context.Context, p domain.Platform, env domain.Environment, accountID string) error {
	key := cacheKey(p, env)
	r.mu.RLock()
	e, ok := r.adapters[key]
	r.mu.RUnlock()
	if !ok {
		// Nothing cached: disconnect is idempotent.
		return nil
	}
	err := e.adapter.Disconnect(ctx, accountID)
	r.Evict(p, env)
	return err
}

// TestConnection runs the adapter's health probe and tracks
// consecutive failures, evicting the instance after the threshold so
// stale sessions self-heal.
func (r *Registry) TestConnection(ctx context.Context, p domain.Platform, env domain.Environment) (domain.ConnectionResult, error) {
	adapter, err := r.Resolve(ctx, p, env)
	if err != nil {
		return domain.ConnectionResult{}, err
	}
	result := adapter.TestConnection(ctx)
	r.reportHealth(p, env, result.Success)
	return result, nil
}

func (r *Registry) reportHealth(p domain.Platform, env domain.Environment, healthy bool) {
	key := cacheKey(p, env)
	r.mu.Lock()
	e, ok := r.adapters[key]
	if !ok {
		r.mu.Unlock()
		return
	}
	if healthy {
		e.unhealthy = 0
		r.mu.Unlock()
		return
	}
	e.unhealthy++
	evict := e.unhealthy >= unhealthyEvictThreshold
	r.mu.Unlock()
	if evict {
		logger.Warnf("registry: %s/%s unhealthy %d times in a row, evicting", p, env, unhealthyEvictThreshold)
		r.Evict(p, env)
	}
}

// HealthStatus is one entry of the aggregated health snapshot.
type HealthStatus struct {
	Platform    domain.Platform    `json:"platform"`
	Environment domain.Environment `json:"environment"`
	Healthy     bool               `json:"healthy"`
	Message     string             `json:"message,omitempty"`
}

// HealthSnapshot probes every cached adapter concurrently. Platforms
// are independent, so probes fan out and individual failures never
// abort the sweep.
func (r *Registry) HealthSnapshot(ctx context.Context) []HealthStatus {
	r.mu.RLock()
	type probe struct {
		p   domain.Platform
		env domain.Environment
		a   platform.Adapter
	}
	probes := make([]probe, 0, len(r.adapters))
	for _, e := range r.adapters {
		probes = append(probes, probe{p: e.adapter.Platform(), env: e.adapter.Environment(), a: e.adapter})
	}
	r.mu.RUnlock()

	statuses := make([]HealthStatus, len(probes))
	g, ctx := errgroup.WithContext(ctx)
	for i, pr := range probes {
		i, pr := i, pr
		g.Go(func() error {
			result := pr.a.TestConnection(ctx)
			statuses[i] = HealthStatus{
				Platform:    pr.p,
				Environment: pr.env,
				Healthy:     result.Success,
				Message:     result.Message,
			}
			r.reportHealth(pr.p, pr.env, result.Success)
			return nil
		})
	}
	_ = g.Wait()
	return statuses
}

// CachedInstanceID exposes the cache identity for tests and logs; the
// boolean reports whether an instance is currently cached.
func (r *Registry) CachedInstanceID(p domain.Platform, env domain.Environment) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.adapters[cacheKey(p, env)]
	if !ok {
		return "", false
	}
	return e.id, true
}

// IsUnavailable reports whether err is the degraded-init failure.
func IsUnavailable(err error) bool {
	return errors.Is(err, platform.ErrProviderUnavailable)
}
