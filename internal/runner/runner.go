// Package runner turns gated rule outcomes into BUY/SELL/HOLD signals.
package runner

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"tradescan/internal/domain"
	"tradescan/internal/series"
	"tradescan/internal/strategy"
)

// Runner evaluates a strategy against a live series and keeps the trading
// record that gates entries and exits. One runner serves one evaluation
// context; it reuses the series instance rather than copying it.
type Runner struct {
	series   *series.Series
	strategy *strategy.Strategy
	record   *TradingRecord
	now      func() time.Time
}

// New creates a runner for a series/strategy pair. now may be nil.
func New(s *series.Series, strat *strategy.Strategy, now func() time.Time) *Runner {
	if now == nil {
		now = time.Now
	}
	return &Runner{
		series:   s,
		strategy: strat,
		record:   NewTradingRecord(),
		now:      now,
	}
}

// Record exposes the trading record, mainly for tests and backtest reports.
func (r *Runner) Record() *TradingRecord { return r.record }

// Evaluate inspects only the newest bar and emits exactly one signal.
// Raw rule truth is gated by position state: an entry firing while already
// in position degrades to HOLD, and vice versa.
func (r *Runner) Evaluate(symbol string) domain.TradeSignal {
	endIndex := r.series.EndIndex()
	if endIndex < 0 {
		return r.holdSignal(symbol, decimal.Zero, "no bars available")
	}

	closePrice := r.series.Bar(endIndex).Close
	inPosition := r.record.InPosition()

	if r.strategy.ShouldEnter(endIndex, inPosition) {
		if err := r.record.Enter(endIndex, closePrice); err == nil {
			return domain.TradeSignal{
				Symbol:     symbol,
				Type:       domain.SignalBuy,
				Price:      closePrice,
				Confidence: 0.8,
				Strategy:   r.strategy.Name,
				Timestamp:  r.now().UTC(),
				Reason:     fmt.Sprintf("entry condition met at bar %d", endIndex),
			}
		}
	}

	if r.strategy.ShouldExit(endIndex, inPosition) {
		if err := r.record.Exit(endIndex, closePrice); err == nil {
			return domain.TradeSignal{
				Symbol:     symbol,
				Type:       domain.SignalSell,
				Price:      closePrice,
				Confidence: 0.8,
				Strategy:   r.strategy.Name,
				Timestamp:  r.now().UTC(),
				Reason:     fmt.Sprintf("exit condition met at bar %d", endIndex),
			}
		}
	}

	return r.holdSignal(symbol, closePrice, fmt.Sprintf("no signal at bar %d", endIndex))
}

// Backtest replays the whole series from the warm-up index forward with the
// same gated evaluation, then reports the compounded return over all closed
// trades as a percentage. An empty record yields 0%.
func (r *Runner) Backtest() float64 {
	record := NewTradingRecord()
	start := r.series.BeginIndex() + r.strategy.UnstableBars

	for i := start; i <= r.series.EndIndex(); i++ {
		closePrice := r.series.Bar(i).Close
		inPosition := record.InPosition()
		if r.strategy.ShouldEnter(i, inPosition) {
			_ = record.Enter(i, closePrice)
		} else if r.strategy.ShouldExit(i, inPosition) {
			_ = record.Exit(i, closePrice)
		}
	}
	r.record = record

	trades := record.ClosedTrades()
	if len(trades) == 0 {
		return 0
	}

	growth := decimal.NewFromInt(1)
	for _, t := range trades {
		if t.Entry.Price.IsZero() {
			continue
		}
		growth = growth.Mul(t.Exit.Price.DivRound(t.Entry.Price, 12))
	}

	pct := growth.Sub(decimal.NewFromInt(1)).
		Mul(decimal.NewFromInt(100)).
		Round(6)
	f, _ := pct.Float64()
	return f
}

func (r *Runner) holdSignal(symbol string, price decimal.Decimal, reason string) domain.TradeSignal {
	return domain.TradeSignal{
		Symbol:     symbol,
		Type:       domain.SignalHold,
		Price:      price,
		Confidence: 0.5,
		Strategy:   r.strategy.Name,
		Timestamp:  r.now().UTC(),
		Reason:     reason,
	}
}
