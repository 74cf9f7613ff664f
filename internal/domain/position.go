package domain

import "time"

// PositionDirection is the side of an open position.
type PositionDirection string

const (
	PositionLong  PositionDirection = "long"
	PositionShort PositionDirection = "short"
)

// Position is a snapshot of an open position. Ephemeral: recomputed on
// every fetch, never persisted by this service.
type Position struct {
	AccountID string            `json:"accountId"`
	Symbol    string            `json:"symbol"`
	Direction PositionDirection `json:"direction"`
	OpenPrice float64           `json:"openPrice"`
	MarkPrice float64           `json:"markPrice"`
	Volume    float64           `json:"volume"`
	Profit    float64           `json:"profit"`
	OpenedAt  time.Time         `json:"openedAt"`
}
