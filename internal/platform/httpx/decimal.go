package httpx

import (
	"strings"

	"github.com/shopspring/decimal"

	"brokergate/internal/platform"
)

// Float parses a numeric field that the platform delivers as a string
// (DXtrade and Match-Trader quote prices and balances this way).
// Decimal parsing avoids drift on values like "10432.17".
func Float(s string) (float64, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return 0, nil
	}
	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return 0, platform.UpstreamFormatf("unparseable numeric field %q", s)
	}
	return d.InexactFloat64(), nil
}

// FloatOrZero parses like Float but logs nothing and swallows the
// error, for fields the canonical model defaults to zero.
func FloatOrZero(s string) float64 {
	v, err := Float(s)
	if err != nil {
		return 0
	}
	return v
}
