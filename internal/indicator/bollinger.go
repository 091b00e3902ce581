package indicator

import (
	"math"

	"tradescan/internal/series"
)

// stdDevIndicator is the population standard deviation of src over a rolling
// window of period values.
type stdDevIndicator struct {
	*cached
	src    Indicator
	period int
}

// StdDev creates a rolling population standard deviation of src.
func StdDev(src Indicator, period int) Indicator {
	d := &stdDevIndicator{src: src, period: period}
	d.cached = newCached(src.Series(), d.calculate)
	return d
}

func (d *stdDevIndicator) calculate(index int) float64 {
	begin := d.Series().BeginIndex()
	if index-begin < d.period-1 {
		return math.NaN()
	}
	mean := 0.0
	for i := index - d.period + 1; i <= index; i++ {
		mean += d.src.Value(i)
	}
	mean /= float64(d.period)

	variance := 0.0
	for i := index - d.period + 1; i <= index; i++ {
		diff := d.src.Value(i) - mean
		variance += diff * diff
	}
	return math.Sqrt(variance / float64(d.period))
}

// bollingerBand offsets a middle band by k standard deviations.
type bollingerBand struct {
	middle Indicator
	dev    Indicator
	k      float64
}

// BollingerMiddle is the middle Bollinger band: EMA(src, period).
func BollingerMiddle(src Indicator, period int) Indicator {
	return EMA(src, period)
}

// BollingerUpper is middle + k*stddev.
func BollingerUpper(middle, dev Indicator, k float64) Indicator {
	return &bollingerBand{middle: middle, dev: dev, k: k}
}

// BollingerLower is middle - k*stddev.
func BollingerLower(middle, dev Indicator, k float64) Indicator {
	return &bollingerBand{middle: middle, dev: dev, k: -k}
}

func (b *bollingerBand) Value(index int) float64 {
	return b.middle.Value(index) + b.k*b.dev.Value(index)
}

func (b *bollingerBand) Series() *series.Series { return b.middle.Series() }
