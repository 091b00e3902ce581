package runner

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tradescan/internal/domain"
	"tradescan/internal/series"
	"tradescan/internal/strategy"
)

func fixedNow() time.Time { return time.Unix(1700000000, 0).UTC() }

func newTestSeries(t *testing.T, closes ...float64) *series.Series {
	t.Helper()
	s := series.New("BTCUSDT", 0)
	appendCloses(t, s, closes...)
	return s
}

func appendCloses(t *testing.T, s *series.Series, closes ...float64) {
	t.Helper()
	base := time.Unix(0, 0).UTC()
	offset := s.BarCount() + s.BeginIndex()
	for i, c := range closes {
		n := offset + i
		err := s.AddBar(domain.Bar{
			BeginTime: base.Add(time.Duration(n) * time.Minute),
			EndTime:   base.Add(time.Duration(n+1) * time.Minute),
			Open:      decimal.NewFromFloat(c),
			High:      decimal.NewFromFloat(c + 1),
			Low:       decimal.NewFromFloat(c - 1),
			Close:     decimal.NewFromFloat(c),
			Volume:    100,
		})
		if err != nil {
			t.Fatalf("add bar: %v", err)
		}
	}
}

// thresholdStrategy enters above 10 and exits below 5, with no warm-up, so
// tests can steer signals with close prices alone.
func thresholdStrategy(s *series.Series) *strategy.Strategy {
	entry := func(i int, _ bool) bool { return s.Close(i) > 10 }
	exit := func(i int, _ bool) bool { return s.Close(i) < 5 }
	return strategy.New("threshold", entry, exit, 0, s)
}

func TestEvaluateEmptySeries(t *testing.T) {
	s := newTestSeries(t)
	r := New(s, thresholdStrategy(s), fixedNow)

	sig := r.Evaluate("BTCUSDT")
	if sig.Type != domain.SignalHold {
		t.Fatalf("expected HOLD, got %s", sig.Type)
	}
	if !sig.Price.IsZero() {
		t.Fatalf("expected zero price, got %s", sig.Price)
	}
	if sig.Confidence != 0.5 {
		t.Fatalf("expected confidence 0.5, got %v", sig.Confidence)
	}
	if sig.Reason != "no bars available" {
		t.Fatalf("unexpected reason %q", sig.Reason)
	}
	if sig.Strategy != "threshold" {
		t.Fatalf("unexpected strategy %q", sig.Strategy)
	}
	if !sig.Timestamp.Equal(fixedNow()) {
		t.Fatalf("unexpected timestamp %s", sig.Timestamp)
	}
}

func TestEvaluateLifecycle(t *testing.T) {
	s := newTestSeries(t, 11)
	r := New(s, thresholdStrategy(s), fixedNow)

	sig := r.Evaluate("BTCUSDT")
	if sig.Type != domain.SignalBuy {
		t.Fatalf("expected BUY, got %s (%s)", sig.Type, sig.Reason)
	}
	if sig.Confidence != 0.8 {
		t.Fatalf("expected confidence 0.8, got %v", sig.Confidence)
	}
	if sig.Reason != "entry condition met at bar 0" {
		t.Fatalf("unexpected reason %q", sig.Reason)
	}
	if !r.Record().InPosition() {
		t.Fatal("expected open position after BUY")
	}

	// The entry rule stays true but the position gate degrades it to HOLD.
	appendCloses(t, s, 12)
	sig = r.Evaluate("BTCUSDT")
	if sig.Type != domain.SignalHold {
		t.Fatalf("expected HOLD while in position, got %s", sig.Type)
	}
	if sig.Reason != "no signal at bar 1" {
		t.Fatalf("unexpected reason %q", sig.Reason)
	}

	appendCloses(t, s, 4)
	sig = r.Evaluate("BTCUSDT")
	if sig.Type != domain.SignalSell {
		t.Fatalf("expected SELL, got %s", sig.Type)
	}
	if sig.Reason != "exit condition met at bar 2" {
		t.Fatalf("unexpected reason %q", sig.Reason)
	}
	if r.Record().InPosition() {
		t.Fatal("expected flat position after SELL")
	}

	// Exit rule still true, but there is nothing to exit.
	appendCloses(t, s, 3)
	sig = r.Evaluate("BTCUSDT")
	if sig.Type != domain.SignalHold {
		t.Fatalf("expected HOLD while flat, got %s", sig.Type)
	}
}

func TestEvaluateHoldCarriesLastClose(t *testing.T) {
	s := newTestSeries(t, 7)
	r := New(s, thresholdStrategy(s), fixedNow)

	sig := r.Evaluate("BTCUSDT")
	if sig.Type != domain.SignalHold {
		t.Fatalf("expected HOLD, got %s", sig.Type)
	}
	if f, _ := sig.Price.Float64(); f != 7 {
		t.Fatalf("expected price 7, got %v", f)
	}
}

func TestBacktestNoTrades(t *testing.T) {
	s := newTestSeries(t, 6, 7, 8, 9)
	r := New(s, thresholdStrategy(s), fixedNow)

	if got := r.Backtest(); got != 0 {
		t.Fatalf("expected 0%% with no trades, got %v", got)
	}
	if n := len(r.Record().ClosedTrades()); n != 0 {
		t.Fatalf("expected 0 closed trades, got %d", n)
	}
}

func TestBacktestOpenTradeExcluded(t *testing.T) {
	s := newTestSeries(t, 11, 12)
	r := New(s, thresholdStrategy(s), fixedNow)

	if got := r.Backtest(); got != 0 {
		t.Fatalf("expected 0%% with only an open trade, got %v", got)
	}
	if !r.Record().InPosition() {
		t.Fatal("expected replay to leave an open position")
	}
}

func TestBacktestCompoundsClosedTrades(t *testing.T) {
	s := newTestSeries(t, 11, 12, 4, 20, 2)
	r := New(s, thresholdStrategy(s), fixedNow)

	got := r.Backtest()
	// Two trades: 11 -> 4 and 20 -> 2, so growth is (4/11)*(2/20).
	want := ((4.0 / 11.0 * 2.0 / 20.0) - 1) * 100
	if math.Abs(got-want) > 1e-5 {
		t.Fatalf("expected %.6f%%, got %v", want, got)
	}
	if n := len(r.Record().ClosedTrades()); n != 2 {
		t.Fatalf("expected 2 closed trades, got %d", n)
	}
}

func TestBacktestRespectsWarmup(t *testing.T) {
	s := newTestSeries(t, 11, 12, 13, 14)
	entry := func(i int, _ bool) bool { return true }
	exit := func(i int, _ bool) bool { return false }
	strat := strategy.New("warmup", entry, exit, 2, s)
	r := New(s, strat, fixedNow)

	r.Backtest()
	events := r.Record().Events()
	if len(events) != 1 {
		t.Fatalf("expected a single entry, got %d events", len(events))
	}
	if events[0].Index != 2 {
		t.Fatalf("expected entry at the first stable bar 2, got %d", events[0].Index)
	}
}
