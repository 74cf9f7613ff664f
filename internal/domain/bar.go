package domain

import (
	"fmt"
	"strings"
	"time"
)

// Timeframe is a candle resolution supported by data providers.
type Timeframe string

const (
	TimeframeM1  Timeframe = "M1"
	TimeframeM5  Timeframe = "M5"
	TimeframeM15 Timeframe = "M15"
	TimeframeM30 Timeframe = "M30"
	TimeframeH1  Timeframe = "H1"
	TimeframeH4  Timeframe = "H4"
	TimeframeD1  Timeframe = "D1"
)

// ParseTimeframe normalizes a timeframe token.
func ParseTimeframe(s string) (Timeframe, error) {
	tf := Timeframe(strings.ToUpper(strings.TrimSpace(s)))
	switch tf {
	case TimeframeM1, TimeframeM5, TimeframeM15, TimeframeM30, TimeframeH1, TimeframeH4, TimeframeD1:
		return tf, nil
	}
	return "", fmt.Errorf("unsupported timeframe: %q", s)
}

// Duration returns the candle width.
func (tf Timeframe) Duration() time.Duration {
	switch tf {
	case TimeframeM1:
		return time.Minute
	case TimeframeM5:
		return 5 * time.Minute
	case TimeframeM15:
		return 15 * time.Minute
	case TimeframeM30:
		return 30 * time.Minute
	case TimeframeH1:
		return time.Hour
	case TimeframeH4:
		return 4 * time.Hour
	case TimeframeD1:
		return 24 * time.Hour
	}
	return time.Minute
}

// Bar is one historical candle. Per (provider, symbol, timeframe) bars
// are ordered ascending by Time with no duplicate timestamps.
type Bar struct {
	Provider  string    `json:"provider"`
	Symbol    string    `json:"symbol"`
	Timeframe Timeframe `json:"timeframe"`
	Time      time.Time `json:"time"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}
