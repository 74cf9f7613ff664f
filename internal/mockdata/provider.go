package mockdata

import (
	"context"
	"time"

	"brokergate/internal/dataprovider"
	"brokergate/internal/domain"
)

// DataProvider is a fully mock-backed historical-data vendor, used as
// the degraded-mode substitute when a real provider cannot initialize.
type DataProvider struct {
	name string
}

var _ dataprovider.Provider = (*DataProvider)(nil)

// NewDataProvider builds a mock vendor answering under the given name.
func NewDataProvider(name string) *DataProvider {
	return &DataProvider{name: name}
}

func (p *DataProvider) Name() string { return p.name }

func (p *DataProvider) Info() dataprovider.Info {
	return dataprovider.Info{
		Name:       p.name,
		Title:      p.name + " (mock)",
		Markets:    []string{"forex", "crypto"},
		Timeframes: dataprovider.AllTimeframes(),
	}
}

func (p *DataProvider) TestConnection(ctx context.Context) domain.ConnectionResult {
	return domain.ConnectOK()
}

func (p *DataProvider) Symbols(ctx context.Context) ([]string, error) {
	return Symbols(p.name), nil
}

func (p *DataProvider) Bars(ctx context.Context, symbol string, tf domain.Timeframe, from, to time.Time) ([]domain.Bar, error) {
	return Bars(p.name, symbol, tf, from, to), nil
}
