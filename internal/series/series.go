// Package series provides a bounded, append-only sequence of OHLCV bars.
package series

import (
	"fmt"

	"tradescan/internal/domain"
)

// DefaultMaxBars caps the memory footprint of a series.
const DefaultMaxBars = 500

// Series is a named, chronological bar sequence with FIFO eviction.
//
// Indices are absolute: appending beyond capacity evicts the oldest bar and
// advances BeginIndex, so an index keeps addressing the same bar for as long
// as that bar is retained. A Series is owned by a single evaluation context
// and is not safe for concurrent use.
type Series struct {
	name    string
	maxBars int
	bars    []domain.Bar
	removed int
}

// New creates an empty series. maxBars <= 0 falls back to DefaultMaxBars.
func New(name string, maxBars int) *Series {
	if maxBars <= 0 {
		maxBars = DefaultMaxBars
	}
	return &Series{name: name, maxBars: maxBars}
}

func (s *Series) Name() string { return s.name }

// BarCount returns the number of currently retained bars.
func (s *Series) BarCount() int { return len(s.bars) }

// BeginIndex is the absolute index of the oldest retained bar.
func (s *Series) BeginIndex() int { return s.removed }

// EndIndex is the absolute index of the newest bar, or -1 when empty.
func (s *Series) EndIndex() int {
	if len(s.bars) == 0 {
		return -1
	}
	return s.removed + len(s.bars) - 1
}

// AddBar appends a bar. Bars must arrive in chronological order; the oldest
// bar is evicted once the capacity is exceeded.
func (s *Series) AddBar(b domain.Bar) error {
	if n := len(s.bars); n > 0 && !b.EndTime.After(s.bars[n-1].EndTime) {
		return fmt.Errorf("series %s: bar ending %s is not after last bar ending %s",
			s.name, b.EndTime, s.bars[n-1].EndTime)
	}
	s.bars = append(s.bars, b)
	if len(s.bars) > s.maxBars {
		s.bars = s.bars[1:]
		s.removed++
	}
	return nil
}

// Bar returns the bar at an absolute index. Out-of-range access panics; the
// scan engine treats that as a malformed-series failure at the task boundary.
func (s *Series) Bar(i int) domain.Bar {
	if i < s.BeginIndex() || i > s.EndIndex() {
		panic(fmt.Sprintf("series %s: index %d out of range [%d, %d]",
			s.name, i, s.BeginIndex(), s.EndIndex()))
	}
	return s.bars[i-s.removed]
}

// Close returns the close price at an absolute index as a float64.
// Indicator math runs on float64; decimal precision is kept at the edges.
func (s *Series) Close(i int) float64 {
	f, _ := s.Bar(i).Close.Float64()
	return f
}

// LastBar returns the newest bar, if any.
func (s *Series) LastBar() (domain.Bar, bool) {
	if len(s.bars) == 0 {
		return domain.Bar{}, false
	}
	return s.bars[len(s.bars)-1], true
}
