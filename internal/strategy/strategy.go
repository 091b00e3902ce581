package strategy

import (
	"tradescan/internal/indicator"
	"tradescan/internal/series"
)

// Strategy bundles an entry rule, an exit rule and a warm-up length. The
// runner never consults a strategy below the warm-up index.
type Strategy struct {
	Name         string
	Entry        Rule
	Exit         Rule
	UnstableBars int

	series *series.Series
}

// New assembles a strategy from explicit rules; the builders below cover the
// shipped strategies.
func New(name string, entry, exit Rule, unstableBars int, s *series.Series) *Strategy {
	return &Strategy{
		Name:         name,
		Entry:        entry,
		Exit:         exit,
		UnstableBars: unstableBars,
		series:       s,
	}
}

// IsUnstableAt reports whether the index is still inside the warm-up window.
func (s *Strategy) IsUnstableAt(index int) bool {
	return index < s.series.BeginIndex()+s.UnstableBars
}

// ShouldEnter evaluates the entry rule, gated by position state: an entry is
// only considered while flat.
func (s *Strategy) ShouldEnter(index int, inPosition bool) bool {
	if inPosition || s.IsUnstableAt(index) {
		return false
	}
	return s.Entry(index, inPosition)
}

// ShouldExit evaluates the exit rule, gated by position state: an exit is
// only considered while in a position.
func (s *Strategy) ShouldExit(index int, inPosition bool) bool {
	if !inPosition || s.IsUnstableAt(index) {
		return false
	}
	return s.Exit(index, inPosition)
}

// BuildComposite assembles the multi-indicator strategy:
//
//	BUY  when EMA9 crosses above EMA21, RSI14 < 65, MACD above its signal
//	     line, and price sits below the middle Bollinger band or %K14 < 30.
//	SELL when EMA9 crosses below EMA21, or RSI14 > 70, or price breaks the
//	     upper Bollinger band, or MACD drops under its signal with RSI14 > 60.
//
// All indicators share one close-price instance so nothing is computed twice.
func BuildComposite(s *series.Series) *Strategy {
	closePrice := indicator.ClosePrice(s)

	ema9 := indicator.EMA(closePrice, 9)
	ema21 := indicator.EMA(closePrice, 21)

	rsi := indicator.RSI(closePrice, 14)

	macd := indicator.MACD(closePrice, 12, 26)
	macdSignal := indicator.EMA(macd, 9)

	bbMiddle := indicator.BollingerMiddle(closePrice, 20)
	bbDev := indicator.StdDev(closePrice, 20)
	bbUpper := indicator.BollingerUpper(bbMiddle, bbDev, 2)

	stochK := indicator.StochasticK(s, 14)

	entry := And(
		CrossedUp(ema9, ema21),
		Under(rsi, 65),
		OverIndicator(macd, macdSignal),
		Or(
			UnderIndicator(closePrice, bbMiddle),
			Under(stochK, 30),
		),
	)

	exit := Or(
		CrossedDown(ema9, ema21),
		Over(rsi, 70),
		OverIndicator(closePrice, bbUpper),
		And(
			UnderIndicator(macd, macdSignal),
			Over(rsi, 60),
		),
	)

	return &Strategy{
		Name:         "CompositeEMA-RSI-MACD-BB",
		Entry:        entry,
		Exit:         exit,
		UnstableBars: 9,
		series:       s,
	}
}

// BuildScalping assembles the lightweight EMA(5,13) + RSI(7) variant meant
// for short intervals.
func BuildScalping(s *series.Series) *Strategy {
	closePrice := indicator.ClosePrice(s)

	ema5 := indicator.EMA(closePrice, 5)
	ema13 := indicator.EMA(closePrice, 13)
	rsi := indicator.RSI(closePrice, 7)

	return &Strategy{
		Name: "ScalpingEMA5-13",
		Entry: And(
			CrossedUp(ema5, ema13),
			Under(rsi, 60),
		),
		Exit: Or(
			CrossedDown(ema5, ema13),
			Over(rsi, 75),
		),
		UnstableBars: 5,
		series:       s,
	}
}
