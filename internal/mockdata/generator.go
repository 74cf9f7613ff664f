// Package mockdata synthesizes canonical-model responses for mock mode
// and for the registry's degraded-mode fallback. Output is derived from
// a hash of the requested key, so identical requests produce identical
// data across processes, and every value satisfies the domain
// invariants so downstream code cannot tell it from live data.
package mockdata

import (
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"sort"
	"time"

	"brokergate/internal/domain"
)

// Policy is the process-wide mock switch. Set once at startup from
// configuration and read-only afterwards; injected, never a mutable
// global.
type Policy struct {
	enabled bool
}

// NewPolicy builds the policy from the configured flag.
func NewPolicy(enabled bool) Policy {
	return Policy{enabled: enabled}
}

// Enabled reports whether mock mode is on.
func (p Policy) Enabled() bool {
	return p.enabled
}

func seedFor(parts ...string) int64 {
	h := fnv.New64a()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return int64(h.Sum64() & math.MaxInt64)
}

func rngFor(parts ...string) *rand.Rand {
	return rand.New(rand.NewSource(seedFor(parts...)))
}

var symbolPool = []string{"EURUSD", "GBPUSD", "USDJPY", "XAUUSD", "US500", "BTCUSD", "NAS100", "AUDUSD"}

// Accounts returns the synthetic account set for one (platform, env).
func Accounts(p domain.Platform, env domain.Environment) []domain.Account {
	rng := rngFor("accounts", string(p), string(env))
	n := 2 + rng.Intn(2)
	accounts := make([]domain.Account, 0, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("%s-%s-%d", p, env, 1001+i)
		accounts = append(accounts, Account(p, env, id))
	}
	return accounts
}

// Account returns the synthetic account for one id.
func Account(p domain.Platform, env domain.Environment, id string) domain.Account {
	rng := rngFor("account", string(p), string(env), id)
	balance := round2(5000 + rng.Float64()*95000)
	equity := round2(balance * (0.92 + rng.Float64()*0.16))
	leverages := []int{30, 50, 100, 200, 500}
	return domain.Account{
		Platform:    p,
		Environment: env,
		ID:          id,
		Name:        fmt.Sprintf("%s %s account", displayName(p), env),
		Server:      fmt.Sprintf("%s-%s-01", p, env),
		Balance:     balance,
		Equity:      equity,
		Currency:    "USD",
		Leverage:    leverages[rng.Intn(len(leverages))],
		Status:      domain.AccountActive,
		UpdatedAt:   time.Now().UTC().Truncate(time.Minute),
	}
}

// Positions returns the synthetic open positions for one account.
func Positions(p domain.Platform, env domain.Environment, accountID string) []domain.Position {
	rng := rngFor("positions", string(p), string(env), accountID)
	n := 1 + rng.Intn(4)
	now := time.Now().UTC().Truncate(time.Minute)
	positions := make([]domain.Position, 0, n)
	for i := 0; i < n; i++ {
		symbol := symbolPool[rng.Intn(len(symbolPool))]
		direction := domain.PositionLong
		if rng.Intn(2) == 1 {
			direction = domain.PositionShort
		}
		open := basePrice(symbol, rng)
		drift := open * (rng.Float64()*0.02 - 0.01)
		mark := round5(open + drift)
		volume := round2(0.1 + rng.Float64()*4.9)
		profit := (mark - open) * volume * 1000
		if direction == domain.PositionShort {
			profit = -profit
		}
		positions = append(positions, domain.Position{
			AccountID: accountID,
			Symbol:    symbol,
			Direction: direction,
			OpenPrice: round5(open),
			MarkPrice: mark,
			Volume:    volume,
			Profit:    round2(profit),
			OpenedAt:  now.Add(-time.Duration(1+rng.Intn(72)) * time.Hour),
		})
	}
	return positions
}

// Trades returns the synthetic trade history for one account, filtered
// to open times inside [from, to] inclusive.
func Trades(p domain.Platform, env domain.Environment, accountID string, from, to time.Time) []domain.Trade {
	if to.Before(from) {
		return []domain.Trade{}
	}
	rng := rngFor("trades", string(p), string(env), accountID)
	// Fixed 90-day series anchored to the account seed, then filtered,
	// so overlapping range queries agree on the shared trades.
	anchor := time.Now().UTC().Truncate(24 * time.Hour)
	trades := make([]domain.Trade, 0, 32)
	for i := 0; i < 30; i++ {
		openTime := anchor.Add(-time.Duration(rng.Intn(90*24)) * time.Hour)
		symbol := symbolPool[rng.Intn(len(symbolPool))]
		direction := domain.TradeBuy
		if rng.Intn(2) == 1 {
			direction = domain.TradeSell
		}
		open := round5(basePrice(symbol, rng))
		volume := round2(0.1 + rng.Float64()*2.9)
		tr := domain.Trade{
			AccountID: accountID,
			Symbol:    symbol,
			Direction: direction,
			OpenTime:  openTime,
			OpenPrice: open,
			Volume:    volume,
			Status:    domain.TradeOpen,
		}
		if rng.Float64() < 0.85 {
			closeTime := openTime.Add(time.Duration(5+rng.Intn(2880)) * time.Minute)
			closePrice := round5(open * (0.99 + rng.Float64()*0.02))
			profit := (closePrice - open) * volume * 1000
			if direction == domain.TradeSell {
				profit = -profit
			}
			tr.Status = domain.TradeClosed
			tr.CloseTime = &closeTime
			tr.ClosePrice = &closePrice
			tr.Profit = round2(profit)
		}
		if rng.Float64() < 0.4 {
			sl := round5(open * 0.98)
			tp := round5(open * 1.03)
			tr.StopLoss = &sl
			tr.TakeProfit = &tp
		}
		if tr.OpenTime.Before(from) || tr.OpenTime.After(to) {
			continue
		}
		trades = append(trades, tr)
	}
	sort.Slice(trades, func(i, j int) bool { return trades[i].OpenTime.Before(trades[j].OpenTime) })
	return trades
}

// Symbols returns the synthetic symbol listing for a data provider.
func Symbols(provider string) []string {
	out := make([]string, len(symbolPool))
	copy(out, symbolPool)
	return out
}

// Bars returns synthetic candles, ascending, no duplicate timestamps,
// capped at 500 per request.
func Bars(provider, symbol string, tf domain.Timeframe, from, to time.Time) []domain.Bar {
	if to.Before(from) {
		return []domain.Bar{}
	}
	rng := rngFor("bars", provider, symbol, string(tf), from.UTC().Format(time.RFC3339))
	step := tf.Duration()
	start := from.UTC().Truncate(step)
	if start.Before(from) {
		start = start.Add(step)
	}
	price := basePrice(symbol, rng)
	bars := make([]domain.Bar, 0, 128)
	for ts := start; !ts.After(to) && len(bars) < 500; ts = ts.Add(step) {
		open := price
		price = price * (1 + (rng.Float64()*0.008 - 0.004))
		closeP := price
		high := math.Max(open, closeP) * (1 + rng.Float64()*0.002)
		low := math.Min(open, closeP) * (1 - rng.Float64()*0.002)
		bars = append(bars, domain.Bar{
			Provider:  provider,
			Symbol:    symbol,
			Timeframe: tf,
			Time:      ts,
			Open:      round5(open),
			High:      round5(high),
			Low:       round5(low),
			Close:     round5(closeP),
			Volume:    float64(100 + rng.Intn(9900)),
		})
	}
	return bars
}

func basePrice(symbol string, rng *rand.Rand) float64 {
	base := map[string]float64{
		"EURUSD": 1.08, "GBPUSD": 1.27, "USDJPY": 148.2, "XAUUSD": 2350,
		"US500": 5200, "BTCUSD": 64000, "NAS100": 18200, "AUDUSD": 0.66,
	}
	if v, ok := base[symbol]; ok {
		return v * (0.98 + rng.Float64()*0.04)
	}
	return 100 * (0.9 + rng.Float64()*0.2)
}

func displayName(p domain.Platform) string {
	switch p {
	case domain.PlatformMT5:
		return "MetaTrader 5"
	case domain.PlatformCTrader:
		return "cTrader"
	case domain.PlatformDXtrade:
		return "DXtrade"
	case domain.PlatformMatchTrader:
		return "Match-Trader"
	case domain.PlatformTradovate:
		return "Tradovate"
	}
	return string(p)
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round5(v float64) float64 { return math.Round(v*100000) / 100000 }
