// Package dataprovider defines the read-only market-data analogue of
// the platform adapter contract: named vendors serving symbol listings
// and historical bars.
package dataprovider

import (
	"context"
	"time"

	"brokergate/internal/domain"
)

// Provider is one historical-data vendor.
type Provider interface {
	Name() string
	Info() Info

	// TestConnection performs the cheapest vendor round-trip.
	TestConnection(ctx context.Context) domain.ConnectionResult

	Symbols(ctx context.Context) ([]string, error)

	// Bars returns candles with open time inside [from, to], ascending,
	// pagination resolved internally.
	Bars(ctx context.Context, symbol string, tf domain.Timeframe, from, to time.Time) ([]domain.Bar, error)
}

// Info is the static descriptor for a vendor; serving it never touches
// the network.
type Info struct {
	Name       string             `json:"name"`
	Title      string             `json:"title"`
	Markets    []string           `json:"markets"`
	Timeframes []domain.Timeframe `json:"timeframes"`
}

// AllTimeframes is the resolution set most vendors serve.
func AllTimeframes() []domain.Timeframe {
	return []domain.Timeframe{
		domain.TimeframeM1, domain.TimeframeM5, domain.TimeframeM15, domain.TimeframeM30,
		domain.TimeframeH1, domain.TimeframeH4, domain.TimeframeD1,
	}
}
