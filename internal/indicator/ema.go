package indicator

import "math"

// emaIndicator is an exponential moving average with alpha = 2/(period+1).
// The seed at the end of the warm-up window is the simple average of the
// first period source values; later values follow the recurrence
// EMA[i] = EMA[i-1] + alpha*(src[i] - EMA[i-1]).
type emaIndicator struct {
	*cached
	src    Indicator
	period int
	alpha  float64
	fv     firstValid
}

// EMA creates an exponential moving average of src over period bars.
func EMA(src Indicator, period int) Indicator {
	e := &emaIndicator{
		src:    src,
		period: period,
		alpha:  2.0 / (float64(period) + 1.0),
		fv:     firstValid{src: src},
	}
	e.cached = newCached(src.Series(), e.calculate)
	return e
}

func (e *emaIndicator) calculate(index int) float64 {
	first, ok := e.fv.locate()
	if !ok {
		return math.NaN()
	}
	seedIndex := first + e.period - 1
	if index < seedIndex {
		return math.NaN()
	}
	if index == seedIndex {
		sum := 0.0
		for i := first; i <= index; i++ {
			sum += e.src.Value(i)
		}
		return sum / float64(e.period)
	}
	prev := e.Value(index - 1)
	return prev + e.alpha*(e.src.Value(index)-prev)
}
