package indicator

import (
	"math"

	"tradescan/internal/series"
)

// stochasticK places the current close inside the high-low range of the last
// period bars: 100 * (close - lowestLow) / (highestHigh - lowestLow). A zero
// range yields 0.
type stochasticK struct {
	*cached
	period int
}

// StochasticK creates a Stochastic Oscillator %K over period bars.
func StochasticK(s *series.Series, period int) Indicator {
	k := &stochasticK{period: period}
	k.cached = newCached(s, k.calculate)
	return k
}

func (k *stochasticK) calculate(index int) float64 {
	s := k.Series()
	if index-s.BeginIndex() < k.period-1 {
		return math.NaN()
	}

	lowest := math.Inf(1)
	highest := math.Inf(-1)
	for i := index - k.period + 1; i <= index; i++ {
		bar := s.Bar(i)
		low, _ := bar.Low.Float64()
		high, _ := bar.High.Float64()
		lowest = math.Min(lowest, low)
		highest = math.Max(highest, high)
	}

	if highest == lowest {
		return 0
	}
	return 100 * (s.Close(index) - lowest) / (highest - lowest)
}
