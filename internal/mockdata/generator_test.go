package mockdata

import (
	"context"
	"errors"
	"math"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brokergate/internal/domain"
	"brokergate/internal/platform"
)

var currencyRe = regexp.MustCompile(`^[A-Z]{3}$`)

func TestAccountsDeterministic(t *testing.T) {
	first := Accounts(domain.PlatformMT5, domain.EnvDemo)
	second := Accounts(domain.PlatformMT5, domain.EnvDemo)
	require.Len(t, second, len(first))
	for i := range first {
		// UpdatedAt is stamped at call time; everything else is seeded.
		first[i].UpdatedAt = time.Time{}
		second[i].UpdatedAt = time.Time{}
	}
	assert.Equal(t, first, second, "same (platform, environment) must yield identical data")
	require.NotEmpty(t, first)

	other := Accounts(domain.PlatformMT5, domain.EnvLive)
	require.NotEmpty(t, other)
	assert.NotEqual(t, first[0].ID, other[0].ID, "environments must not share account IDs")
}

func TestAccountInvariants(t *testing.T) {
	for _, p := range domain.Platforms() {
		for _, acc := range Accounts(p, domain.EnvDemo) {
			assert.GreaterOrEqual(t, acc.Balance, 0.0)
			assert.Regexp(t, currencyRe, acc.Currency)
			assert.Equal(t, p, acc.Platform)
			assert.Equal(t, domain.EnvDemo, acc.Environment)
			assert.Equal(t, domain.AccountActive, acc.Status)
		}
	}
}

func TestTradesRespectRangeAndOrdering(t *testing.T) {
	to := time.Now().UTC()
	from := to.Add(-100 * 24 * time.Hour)
	trades := Trades(domain.PlatformCTrader, domain.EnvDemo, "acc-1", from, to)
	require.NotEmpty(t, trades)

	for i, tr := range trades {
		require.NoError(t, tr.Validate())
		assert.False(t, tr.OpenTime.Before(from), "trade %d before range start", i)
		assert.False(t, tr.OpenTime.After(to), "trade %d after range end", i)
		if i > 0 {
			assert.False(t, trades[i].OpenTime.Before(trades[i-1].OpenTime), "trades must ascend by open time")
		}
	}

	// Narrowing the range only drops trades, never reshapes survivors.
	narrowFrom := to.Add(-30 * 24 * time.Hour)
	narrow := Trades(domain.PlatformCTrader, domain.EnvDemo, "acc-1", narrowFrom, to)
	assert.LessOrEqual(t, len(narrow), len(trades))
	for _, tr := range narrow {
		assert.Contains(t, trades, tr)
	}
}

func TestTradesEmptyOutsideSeries(t *testing.T) {
	to := time.Now().UTC().Add(-5 * 365 * 24 * time.Hour)
	from := to.Add(-24 * time.Hour)
	assert.Empty(t, Trades(domain.PlatformMT5, domain.EnvDemo, "acc-1", from, to))
}

func TestTradesInvertedRange(t *testing.T) {
	now := time.Now().UTC()
	assert.Empty(t, Trades(domain.PlatformMT5, domain.EnvDemo, "acc-1", now, now.Add(-time.Hour)))
}

func TestBarsInvariants(t *testing.T) {
	to := time.Now().UTC().Truncate(time.Hour)
	from := to.Add(-72 * time.Hour)
	bars := Bars("histdata", "EURUSD", domain.TimeframeH1, from, to)
	require.NotEmpty(t, bars)
	assert.LessOrEqual(t, len(bars), 500)

	for i, b := range bars {
		assert.GreaterOrEqual(t, b.High, math.Max(b.Open, b.Close), "bar %d high", i)
		assert.LessOrEqual(t, b.Low, math.Min(b.Open, b.Close), "bar %d low", i)
		if i > 0 {
			assert.True(t, b.Time.After(bars[i-1].Time), "bar times must strictly ascend")
		}
	}

	again := Bars("histdata", "EURUSD", domain.TimeframeH1, from, to)
	assert.Equal(t, bars, again)
}

func TestBarsCappedAt500(t *testing.T) {
	to := time.Now().UTC().Truncate(time.Minute)
	from := to.Add(-1000 * time.Minute)
	bars := Bars("histdata", "BTCUSD", domain.TimeframeM1, from, to)
	assert.Len(t, bars, 500)
}

func TestAdapterRequiresConnect(t *testing.T) {
	a := NewAdapter(domain.PlatformDXtrade, domain.EnvDemo)

	_, err := a.Accounts(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, platform.ErrNotAuthenticated))

	res := a.Connect(context.Background(), domain.Credentials{})
	require.False(t, res.Success)
	assert.True(t, errors.Is(res.Err, platform.ErrValidation))

	res = a.Connect(context.Background(), domain.Credentials{Login: "u", Password: "p", Server: "s"})
	require.True(t, res.Success)

	accounts, err := a.Accounts(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, accounts)

	require.NoError(t, a.Disconnect(context.Background(), accounts[0].ID))
	_, err = a.Accounts(context.Background())
	assert.True(t, errors.Is(err, platform.ErrNotAuthenticated))
}
