package histdata

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brokergate/internal/config"
	"brokergate/internal/domain"
	"brokergate/internal/mockdata"
	"brokergate/internal/platform"
)

func newVendor(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	p, err := New(config.HistDataProviderConfig{BaseURL: srv.URL, APIKey: "k-1", TimeoutSeconds: 5}, mockdata.NewPolicy(false))
	require.NoError(t, err)
	return p
}

func TestSymbolsBareArray(t *testing.T) {
	p := newVendor(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "k-1", r.Header.Get("X-API-Key"))
		w.Write([]byte(`["EURUSD","GBPUSD"]`))
	})
	symbols, err := p.Symbols(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"EURUSD", "GBPUSD"}, symbols)
}

func TestSymbolsWrappedObjects(t *testing.T) {
	p := newVendor(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"symbols":[{"symbol":"EURUSD","market":"forex"},{"symbol":"XAUUSD"}]}`))
	})
	symbols, err := p.Symbols(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"EURUSD", "XAUUSD"}, symbols)
}

func TestSymbolsUnrecognizedPayload(t *testing.T) {
	p := newVendor(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"count":2}`))
	})
	_, err := p.Symbols(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, platform.ErrUpstreamFormat))
}

func TestBarsDedupesBoundaryCandles(t *testing.T) {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	p := newVendor(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "EURUSD", q.Get("symbol"))
		assert.Equal(t, "H1", q.Get("resolution"))
		// Second chunk repeats the first chunk's boundary candle.
		body := `{"bars":[` +
			barJSON(base, 1.081) + "," +
			barJSON(base.Add(time.Hour), 1.082) + "," +
			barJSON(base.Add(time.Hour), 1.082) + "," +
			barJSON(base.Add(2*time.Hour), 1.083) +
			`]}`
		w.Write([]byte(body))
	})

	bars, err := p.Bars(context.Background(), "EURUSD", domain.TimeframeH1, base, base.Add(6*time.Hour))
	require.NoError(t, err)
	require.Len(t, bars, 3)
	for i := 1; i < len(bars); i++ {
		assert.True(t, bars[i].Time.After(bars[i-1].Time))
	}
}

func TestBarsFiltersOutOfRange(t *testing.T) {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	p := newVendor(t, func(w http.ResponseWriter, r *http.Request) {
		body := `[` + barJSON(base.Add(-time.Hour), 1.08) + "," + barJSON(base, 1.081) + `]`
		w.Write([]byte(body))
	})
	bars, err := p.Bars(context.Background(), "EURUSD", domain.TimeframeH1, base, base.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, base, bars[0].Time)
}

func TestBarsMissingTimestampIsUpstreamFormat(t *testing.T) {
	p := newVendor(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"open":1.08,"close":1.09}]`))
	})
	_, err := p.Bars(context.Background(), "EURUSD", domain.TimeframeH1, time.Now().Add(-time.Hour), time.Now())
	require.Error(t, err)
	assert.True(t, errors.Is(err, platform.ErrUpstreamFormat))
}

func barJSON(ts time.Time, px float64) string {
	return fmt.Sprintf(`{"time":%d,"open":%g,"high":%g,"low":%g,"close":%g,"volume":100}`,
		ts.Unix(), px, px+0.001, px-0.001, px)
}
