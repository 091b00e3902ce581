package indicator

import "tradescan/internal/series"

// macdIndicator is the difference between a fast and a slow EMA of the same
// source. Its signal line is just EMA(macd, 9), built by the caller.
type macdIndicator struct {
	fast Indicator
	slow Indicator
}

// MACD creates a Moving Average Convergence Divergence line of src.
func MACD(src Indicator, fastPeriod, slowPeriod int) Indicator {
	return &macdIndicator{
		fast: EMA(src, fastPeriod),
		slow: EMA(src, slowPeriod),
	}
}

func (m *macdIndicator) Value(index int) float64 {
	// NaN during the slow EMA warm-up propagates through the subtraction.
	return m.fast.Value(index) - m.slow.Value(index)
}

func (m *macdIndicator) Series() *series.Series { return m.fast.Series() }
