package indicator

import (
	"math"

	"tradescan/internal/series"
)

// wilderAverage smooths per-bar gains or losses the Wilder way: seeded with
// the plain average of the first period changes, then
// avg[i] = (avg[i-1]*(period-1) + change[i]) / period.
type wilderAverage struct {
	*cached
	src    Indicator
	period int
	gains  bool
	fv     firstValid
}

func newWilderAverage(src Indicator, period int, gains bool) *wilderAverage {
	w := &wilderAverage{src: src, period: period, gains: gains, fv: firstValid{src: src}}
	w.cached = newCached(src.Series(), w.calculate)
	return w
}

func (w *wilderAverage) change(index int) float64 {
	delta := w.src.Value(index) - w.src.Value(index-1)
	if w.gains {
		return math.Max(delta, 0)
	}
	return math.Max(-delta, 0)
}

func (w *wilderAverage) calculate(index int) float64 {
	first, ok := w.fv.locate()
	if !ok {
		return math.NaN()
	}
	// The first change exists at first+1, so the seed average of period
	// changes lands at first+period.
	seedIndex := first + w.period
	if index < seedIndex {
		return math.NaN()
	}
	if index == seedIndex {
		sum := 0.0
		for i := first + 1; i <= index; i++ {
			sum += w.change(i)
		}
		return sum / float64(w.period)
	}
	prev := w.Value(index - 1)
	return (prev*float64(w.period-1) + w.change(index)) / float64(w.period)
}

// rsiIndicator is the Relative Strength Index over Wilder-smoothed average
// gains and losses. Values are bounded to [0, 100]; a zero average loss
// yields 100.
type rsiIndicator struct {
	src     Indicator
	avgGain *wilderAverage
	avgLoss *wilderAverage
}

// RSI creates a Relative Strength Index of src over period bars.
func RSI(src Indicator, period int) Indicator {
	return &rsiIndicator{
		src:     src,
		avgGain: newWilderAverage(src, period, true),
		avgLoss: newWilderAverage(src, period, false),
	}
}

func (r *rsiIndicator) Value(index int) float64 {
	gain := r.avgGain.Value(index)
	loss := r.avgLoss.Value(index)
	if math.IsNaN(gain) || math.IsNaN(loss) {
		return math.NaN()
	}
	if loss == 0 {
		return 100
	}
	rs := gain / loss
	v := 100 - 100/(1+rs)
	return math.Min(100, math.Max(0, v))
}

func (r *rsiIndicator) Series() *series.Series { return r.src.Series() }
