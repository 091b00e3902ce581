package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SignalType classifies a trade signal.
type SignalType string

const (
	SignalBuy  SignalType = "BUY"
	SignalSell SignalType = "SELL"
	SignalHold SignalType = "HOLD"
)

// ActionableConfidence is the minimum confidence for a non-HOLD signal to be
// worth dispatching.
const ActionableConfidence = 0.6

// Bar is an immutable OHLCV record for one candle interval.
type Bar struct {
	BeginTime time.Time       `json:"begin_time"`
	EndTime   time.Time       `json:"end_time"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
	Volume    float64         `json:"volume"`
}

// ChangePercent returns the open-to-close change of the bar, rounded half-up
// to 6 decimal places.
func (b Bar) ChangePercent() float64 {
	if b.Open.IsZero() {
		return 0
	}
	pct := b.Close.Sub(b.Open).
		DivRound(b.Open, 8).
		Mul(decimal.NewFromInt(100)).
		Round(6)
	f, _ := pct.Float64()
	return f
}

// TradeSignal is the outcome of evaluating a strategy against a bar series.
type TradeSignal struct {
	Symbol     string          `json:"symbol"`
	Type       SignalType      `json:"type"`
	Price      decimal.Decimal `json:"price"`
	Confidence float64         `json:"confidence"`
	Strategy   string          `json:"strategy"`
	Timestamp  time.Time       `json:"timestamp"`
	Reason     string          `json:"reason"`
}

// Actionable reports whether the signal should be dispatched to subscribers.
func (s TradeSignal) Actionable() bool {
	return s.Type != SignalHold && s.Confidence >= ActionableConfidence
}

// BacktestResult summarizes a historical replay of a strategy over one symbol.
type BacktestResult struct {
	Symbol         string  `json:"symbol"`
	Strategy       string  `json:"strategy"`
	Bars           int     `json:"bars"`
	ClosedTrades   int     `json:"closed_trades"`
	TotalReturnPct float64 `json:"total_return_pct"`
}
