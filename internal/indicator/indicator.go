// Package indicator implements memoized technical indicators over a bar series.
//
// An indicator is a pure function of (series, index). Values are cached per
// absolute index, so extending the series by one bar costs one incremental
// step for recurrence-based indicators instead of a full recompute. Indices
// below an indicator's warm-up length yield NaN.
package indicator

import (
	"math"

	"tradescan/internal/series"
)

// Indicator computes a numeric value at an absolute series index.
type Indicator interface {
	Value(index int) float64
	Series() *series.Series
}

// cached memoizes calculated values per absolute index. Out-of-range indices
// are NaN. Not safe for concurrent use; a series and its indicators belong to
// one evaluation context.
type cached struct {
	series *series.Series
	calc   func(index int) float64
	values map[int]float64
}

func newCached(s *series.Series, calc func(int) float64) *cached {
	return &cached{series: s, calc: calc, values: make(map[int]float64)}
}

func (c *cached) Value(index int) float64 {
	if index < c.series.BeginIndex() || index > c.series.EndIndex() {
		return math.NaN()
	}
	if v, ok := c.values[index]; ok {
		return v
	}
	v := c.calc(index)
	c.values[index] = v
	return v
}

func (c *cached) Series() *series.Series { return c.series }

// closePrice exposes bar closes as an indicator.
type closePrice struct {
	series *series.Series
}

// ClosePrice returns the close-price indicator for a series. All derived
// indicators of one evaluation share a single instance.
func ClosePrice(s *series.Series) Indicator {
	return &closePrice{series: s}
}

func (c *closePrice) Value(index int) float64 {
	if index < c.series.BeginIndex() || index > c.series.EndIndex() {
		return math.NaN()
	}
	return c.series.Close(index)
}

func (c *closePrice) Series() *series.Series { return c.series }

// firstValid lazily locates the first index at which src is defined. For
// close prices that is the series begin index; for derived series (e.g. the
// MACD line feeding its signal EMA) it is the end of the source's warm-up.
type firstValid struct {
	src   Indicator
	found bool
	index int
}

func (f *firstValid) locate() (int, bool) {
	if f.found {
		return f.index, true
	}
	s := f.src.Series()
	for i := s.BeginIndex(); i <= s.EndIndex(); i++ {
		if !math.IsNaN(f.src.Value(i)) {
			f.index = i
			f.found = true
			return f.index, true
		}
	}
	return 0, false
}
