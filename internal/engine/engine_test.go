package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"tradescan/internal/domain"
	"tradescan/internal/series"
)

type fakeFetcher struct {
	bars  int
	calls atomic.Int64
	err   error
}

func (f *fakeFetcher) FetchBars(ctx context.Context, symbol, interval string, limit int) (*series.Series, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	s := series.New(symbol, limit)
	base := time.Unix(0, 0).UTC()
	for i := 0; i < f.bars; i++ {
		price := decimal.NewFromInt(100)
		_ = s.AddBar(domain.Bar{
			BeginTime: base.Add(time.Duration(i) * time.Minute),
			EndTime:   base.Add(time.Duration(i+1) * time.Minute),
			Open:      price,
			High:      price.Add(decimal.NewFromInt(1)),
			Low:       price.Sub(decimal.NewFromInt(1)),
			Close:     price,
			Volume:    100,
		})
	}
	return s, nil
}

type fakeNotifier struct {
	mu      sync.Mutex
	signals []domain.TradeSignal
}

func (n *fakeNotifier) NotifySignal(ctx context.Context, sig domain.TradeSignal) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.signals = append(n.signals, sig)
	return nil
}

func (n *fakeNotifier) received() []domain.TradeSignal {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]domain.TradeSignal, len(n.signals))
	copy(out, n.signals)
	return out
}

func newTestEngine(cfg Config, fetcher Fetcher, notifier Notifier) *Engine {
	var tick atomic.Int64
	now := func() time.Time {
		return time.Unix(1700000000, 0).UTC().Add(time.Duration(tick.Add(1)) * time.Second)
	}
	tracer := sdktrace.NewTracerProvider().Tracer("test")
	return New(cfg, tracer, fetcher, notifier, now)
}

func TestEvaluateRecordsHoldSignal(t *testing.T) {
	e := newTestEngine(Config{Symbols: []string{"BTCUSDT"}}, &fakeFetcher{bars: 40}, nil)

	e.evaluate(context.Background(), "BTCUSDT")

	history := e.SymbolHistory("BTCUSDT")
	if len(history) != 1 {
		t.Fatalf("expected 1 signal, got %d", len(history))
	}
	// A flat series has no crossovers, so the composite strategy holds.
	if history[0].Type != domain.SignalHold {
		t.Fatalf("expected HOLD, got %s", history[0].Type)
	}
	if e.TotalSignals() != 1 {
		t.Fatalf("expected total 1, got %d", e.TotalSignals())
	}
	buy, sell, hold := e.SignalCounts()
	if buy != 0 || sell != 0 || hold != 1 {
		t.Fatalf("unexpected counts buy=%d sell=%d hold=%d", buy, sell, hold)
	}
}

func TestEvaluateSkipsThinSeries(t *testing.T) {
	for _, bars := range []int{0, 10, 29} {
		e := newTestEngine(Config{}, &fakeFetcher{bars: bars}, nil)
		e.evaluate(context.Background(), "BTCUSDT")

		if e.TotalSignals() != 0 {
			t.Fatalf("bars=%d: expected no signals, got %d", bars, e.TotalSignals())
		}
		if len(e.SymbolHistory("BTCUSDT")) != 0 {
			t.Fatalf("bars=%d: expected empty history", bars)
		}
	}
}

func TestEvaluateContainsFetchError(t *testing.T) {
	e := newTestEngine(Config{}, &fakeFetcher{err: errors.New("boom")}, nil)
	e.evaluate(context.Background(), "BTCUSDT")
	if e.TotalSignals() != 0 {
		t.Fatalf("expected no signals after fetch error, got %d", e.TotalSignals())
	}
}

func TestHistoryCapKeepsNewest(t *testing.T) {
	e := newTestEngine(Config{HistoryLimit: 3}, &fakeFetcher{bars: 40}, nil)

	for i := 0; i < 5; i++ {
		e.evaluate(context.Background(), "BTCUSDT")
	}

	history := e.SymbolHistory("BTCUSDT")
	if len(history) != 3 {
		t.Fatalf("expected history capped at 3, got %d", len(history))
	}
	for i := 1; i < len(history); i++ {
		if !history[i].Timestamp.After(history[i-1].Timestamp) {
			t.Fatal("expected history ordered oldest-first")
		}
	}
	// The two oldest signals were evicted, so the first retained timestamp is
	// strictly later than the very first evaluation's.
	first := time.Unix(1700000000, 0).UTC().Add(1 * time.Second)
	if !history[0].Timestamp.After(first) {
		t.Fatal("expected the oldest signals evicted")
	}
}

func TestEvaluateSymbolQueueFull(t *testing.T) {
	e := newTestEngine(Config{QueueSize: 1}, &fakeFetcher{bars: 40}, nil)

	if err := e.EvaluateSymbol("BTCUSDT"); err != nil {
		t.Fatalf("first enqueue: %v", err)
	}
	if err := e.EvaluateSymbol("ETHUSDT"); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
}

func TestStoppedEngineRejectsTasks(t *testing.T) {
	e := newTestEngine(Config{ShutdownGrace: time.Second}, &fakeFetcher{bars: 40}, nil)

	e.Stop()
	e.Stop() // idempotent

	if err := e.EvaluateSymbol("BTCUSDT"); !errors.Is(err, ErrStopped) {
		t.Fatalf("expected ErrStopped, got %v", err)
	}
	if err := e.Scan(); err == nil {
		t.Fatal("expected scan to fail after stop")
	}
}

func TestScanEnqueuesEverySymbol(t *testing.T) {
	e := newTestEngine(Config{
		Symbols:   []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"},
		QueueSize: 10,
	}, &fakeFetcher{bars: 40}, nil)

	if err := e.Scan(); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if got := len(e.tasks); got != 3 {
		t.Fatalf("expected 3 queued tasks, got %d", got)
	}
}

func TestConcurrentEvaluationsStayIsolated(t *testing.T) {
	fetcher := &fakeFetcher{bars: 40}
	e := newTestEngine(Config{
		Workers:       4,
		QueueSize:     120,
		HistoryLimit:  200,
		ShutdownGrace: 5 * time.Second,
	}, fetcher, nil)

	ctx := context.Background()
	for i := 0; i < e.cfg.Workers; i++ {
		e.workers.Add(1)
		go e.worker(ctx)
	}

	const perSymbol = 50
	for i := 0; i < perSymbol; i++ {
		for _, symbol := range []string{"BTCUSDT", "ETHUSDT"} {
			if err := e.EvaluateSymbol(symbol); err != nil {
				t.Fatalf("enqueue %s #%d: %v", symbol, i, err)
			}
		}
	}
	e.Stop()

	if got := e.TotalSignals(); got != 2*perSymbol {
		t.Fatalf("expected %d signals, got %d", 2*perSymbol, got)
	}
	for _, symbol := range []string{"BTCUSDT", "ETHUSDT"} {
		if got := len(e.SymbolHistory(symbol)); got != perSymbol {
			t.Fatalf("expected %d signals for %s, got %d", perSymbol, symbol, got)
		}
		for _, sig := range e.SymbolHistory(symbol) {
			if sig.Symbol != symbol {
				t.Fatalf("signal for %s leaked into %s history", sig.Symbol, symbol)
			}
		}
	}
}

func TestDispatchOnlyActionableSignals(t *testing.T) {
	notifier := &fakeNotifier{}
	e := newTestEngine(Config{}, &fakeFetcher{bars: 40}, notifier)

	ctx := context.Background()
	e.dispatch(ctx, domain.TradeSignal{Symbol: "BTCUSDT", Type: domain.SignalHold, Confidence: 0.5})
	e.dispatch(ctx, domain.TradeSignal{Symbol: "BTCUSDT", Type: domain.SignalBuy, Confidence: 0.4})
	e.dispatch(ctx, domain.TradeSignal{Symbol: "BTCUSDT", Type: domain.SignalBuy, Confidence: 0.8})

	got := notifier.received()
	if len(got) != 1 {
		t.Fatalf("expected 1 dispatched signal, got %d", len(got))
	}
	if got[0].Type != domain.SignalBuy || got[0].Confidence != 0.8 {
		t.Fatalf("unexpected dispatched signal %+v", got[0])
	}
}

func TestEvaluateRecoversFromPanic(t *testing.T) {
	e := newTestEngine(Config{}, panicFetcher{}, nil)
	// Must not crash the worker.
	e.evaluate(context.Background(), "BTCUSDT")
	if e.TotalSignals() != 0 {
		t.Fatalf("expected no signals, got %d", e.TotalSignals())
	}
}

type panicFetcher struct{}

func (panicFetcher) FetchBars(context.Context, string, string, int) (*series.Series, error) {
	panic("malformed series")
}

func TestBacktestSymbol(t *testing.T) {
	e := newTestEngine(Config{HistoryBars: 40}, &fakeFetcher{bars: 40}, nil)

	result, err := e.BacktestSymbol(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("backtest: %v", err)
	}
	if result.Symbol != "BTCUSDT" {
		t.Fatalf("unexpected symbol %q", result.Symbol)
	}
	if result.Bars != 40 {
		t.Fatalf("expected 40 bars, got %d", result.Bars)
	}
	if result.Strategy == "" {
		t.Fatal("expected strategy name")
	}
	// Flat closes never trade.
	if result.ClosedTrades != 0 || result.TotalReturnPct != 0 {
		t.Fatalf("expected no trades on flat series, got %+v", result)
	}
}

func TestBacktestSymbolThinSeries(t *testing.T) {
	e := newTestEngine(Config{}, &fakeFetcher{bars: 5}, nil)
	if _, err := e.BacktestSymbol(context.Background(), "BTCUSDT"); err == nil {
		t.Fatal("expected error for thin series")
	}
}

func TestWatchedSymbolsIsACopy(t *testing.T) {
	e := newTestEngine(Config{Symbols: []string{"BTCUSDT"}}, &fakeFetcher{bars: 40}, nil)
	symbols := e.WatchedSymbols()
	symbols[0] = "MUTATED"
	if e.WatchedSymbols()[0] != "BTCUSDT" {
		t.Fatal("mutating the returned slice must not affect the engine")
	}
}
