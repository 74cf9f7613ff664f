package domain

import (
	"fmt"
	"time"
)

// TradeDirection is the side of an executed trade.
type TradeDirection string

const (
	TradeBuy  TradeDirection = "buy"
	TradeSell TradeDirection = "sell"
)

// TradeStatus marks whether a trade has been closed.
type TradeStatus string

const (
	TradeOpen   TradeStatus = "open"
	TradeClosed TradeStatus = "closed"
)

// Trade is a canonical executed trade. Close fields are nil while the
// trade is open and must both be set once it closes.
type Trade struct {
	AccountID  string         `json:"accountId"`
	Symbol     string         `json:"symbol"`
	Direction  TradeDirection `json:"direction"`
	OpenTime   time.Time      `json:"openTime"`
	CloseTime  *time.Time     `json:"closeTime,omitempty"`
	OpenPrice  float64        `json:"openPrice"`
	ClosePrice *float64       `json:"closePrice,omitempty"`
	Volume     float64        `json:"volume"`
	Profit     float64        `json:"profit"`
	Status     TradeStatus    `json:"status"`
	StopLoss   *float64       `json:"stopLoss,omitempty"`
	TakeProfit *float64       `json:"takeProfit,omitempty"`
}

// Validate enforces the open/closed field pairing.
func (t Trade) Validate() error {
	switch t.Status {
	case TradeClosed:
		if t.CloseTime == nil || t.ClosePrice == nil {
			return fmt.Errorf("closed trade %s/%s missing close time or price", t.AccountID, t.Symbol)
		}
	case TradeOpen:
		if t.CloseTime != nil || t.ClosePrice != nil {
			return fmt.Errorf("open trade %s/%s carries close fields", t.AccountID, t.Symbol)
		}
	default:
		return fmt.Errorf("unknown trade status %q", t.Status)
	}
	if t.Direction != TradeBuy && t.Direction != TradeSell {
		return fmt.Errorf("unknown trade direction %q", t.Direction)
	}
	return nil
}
