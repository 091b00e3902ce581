// Package engine schedules strategy evaluation across the watched symbols.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"tradescan/internal/domain"
	"tradescan/internal/runner"
	"tradescan/internal/series"
	"tradescan/internal/strategy"
)

// minWarmupBars is the smallest series worth evaluating; thinner fetch
// results (including the empty-series fetch-failure sentinel) are skipped
// with a warning and leave history and counters untouched.
const minWarmupBars = 30

var (
	// ErrQueueFull is returned when the task queue rejects a new evaluation.
	ErrQueueFull = errors.New("engine: task queue full")
	// ErrStopped is returned once shutdown has begun.
	ErrStopped = errors.New("engine: stopped")
)

// Fetcher supplies bar series for evaluation. Degraded or failed fetches may
// surface as series with fewer bars than requested, or empty series; the
// engine treats those the same as legitimately thin history.
type Fetcher interface {
	FetchBars(ctx context.Context, symbol, interval string, limit int) (*series.Series, error)
}

// Notifier receives actionable signals. A nil notifier disables dispatch.
type Notifier interface {
	NotifySignal(ctx context.Context, sig domain.TradeSignal) error
}

// Config bounds the engine's scheduling and memory behavior.
type Config struct {
	Symbols       []string
	Interval      string
	HistoryBars   int
	ScanRate      time.Duration
	Workers       int
	QueueSize     int
	HistoryLimit  int
	ShutdownGrace time.Duration
}

// Engine owns the scan scheduler, the bounded worker pool, the per-symbol
// signal history and the process-wide counters. Scheduled and manual scans
// share the same queue, so a symbol may be evaluated twice in overlapping
// windows; evaluations are independent, so interleaving only affects
// ordering, never correctness.
type Engine struct {
	cfg      Config
	tracer   trace.Tracer
	fetcher  Fetcher
	notifier Notifier
	now      func() time.Time

	tasks   chan string
	workers sync.WaitGroup

	stateMu sync.RWMutex
	closed  bool

	historyMu sync.RWMutex
	history   map[string]*symbolHistory

	totalSignals atomic.Int64
	buySignals   atomic.Int64
	sellSignals  atomic.Int64
	holdSignals  atomic.Int64
}

// symbolHistory is one exclusion domain: writers to the same symbol
// serialize, different symbols evaluate with full parallelism.
type symbolHistory struct {
	mu      sync.Mutex
	signals []domain.TradeSignal
}

// New creates an engine. notifier and now may be nil.
func New(cfg Config, tracer trace.Tracer, fetcher Fetcher, notifier Notifier, now func() time.Time) *Engine {
	if cfg.Workers <= 0 {
		cfg.Workers = 8
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 50
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 100
	}
	if cfg.ScanRate <= 0 {
		cfg.ScanRate = time.Minute
	}
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = 30 * time.Second
	}
	if now == nil {
		now = time.Now
	}
	return &Engine{
		cfg:      cfg,
		tracer:   tracer,
		fetcher:  fetcher,
		notifier: notifier,
		now:      now,
		tasks:    make(chan string, cfg.QueueSize),
		history:  make(map[string]*symbolHistory),
	}
}

// SetNotifier attaches the signal sink. Call before Start; dispatch reads
// the field without locking once workers are running.
func (e *Engine) SetNotifier(n Notifier) {
	e.notifier = n
}

// Start launches the worker pool and the scan ticker. The first scan runs
// immediately; the ticker repeats it until ctx is cancelled. Blocks until
// ctx is cancelled.
func (e *Engine) Start(ctx context.Context) {
	for i := 0; i < e.cfg.Workers; i++ {
		e.workers.Add(1)
		go e.worker(ctx)
	}

	log.Printf("engine: scanning %d symbols every %s on %s interval",
		len(e.cfg.Symbols), e.cfg.ScanRate, e.cfg.Interval)

	if err := e.Scan(); err != nil {
		log.Printf("engine: initial scan: %v", err)
	}

	ticker := time.NewTicker(e.cfg.ScanRate)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := e.Scan(); err != nil {
				log.Printf("engine: scheduled scan: %v", err)
			}
		}
	}
}

// Stop refuses new tasks, gives in-flight evaluations a bounded grace period
// and then stops waiting.
func (e *Engine) Stop() {
	e.stateMu.Lock()
	if e.closed {
		e.stateMu.Unlock()
		return
	}
	e.closed = true
	close(e.tasks)
	e.stateMu.Unlock()

	done := make(chan struct{})
	go func() {
		e.workers.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(e.cfg.ShutdownGrace):
		log.Printf("engine: shutdown grace of %s elapsed, abandoning in-flight tasks", e.cfg.ShutdownGrace)
	}
}

// Scan enqueues one evaluation task per watched symbol. Only resource
// exhaustion (full queue, shutdown in progress) surfaces to the caller;
// per-symbol evaluation failures stay inside their tasks.
func (e *Engine) Scan() error {
	var errs []error
	for _, symbol := range e.cfg.Symbols {
		if err := e.EvaluateSymbol(symbol); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", symbol, err))
		}
	}
	return errors.Join(errs...)
}

// EvaluateSymbol enqueues a single asynchronous evaluation. A full queue
// rejects the task with ErrQueueFull; it is never silently dropped.
func (e *Engine) EvaluateSymbol(symbol string) error {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()
	if e.closed {
		return ErrStopped
	}
	select {
	case e.tasks <- symbol:
		return nil
	default:
		log.Printf("engine: queue full, rejecting evaluation of %s", symbol)
		return ErrQueueFull
	}
}

func (e *Engine) worker(ctx context.Context) {
	defer e.workers.Done()
	for symbol := range e.tasks {
		e.evaluate(ctx, symbol)
	}
}

// evaluate runs one per-symbol task. All failures are contained here: one
// symbol must never abort or delay the rest of the scan cycle.
func (e *Engine) evaluate(ctx context.Context, symbol string) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("engine: evaluation of %s panicked: %v", symbol, r)
		}
	}()

	ctx, span := e.tracer.Start(ctx, "engine.evaluate-symbol",
		trace.WithAttributes(attribute.String("symbol", symbol)))
	defer span.End()

	s, err := e.fetcher.FetchBars(ctx, symbol, e.cfg.Interval, e.cfg.HistoryBars)
	if err != nil {
		log.Printf("engine: fetch bars for %s: %v", symbol, err)
		return
	}
	if s == nil || s.BarCount() < minWarmupBars {
		count := 0
		if s != nil {
			count = s.BarCount()
		}
		log.Printf("engine: not enough bars for %s (got %d, need %d), skipping", symbol, count, minWarmupBars)
		return
	}

	strat := strategy.BuildComposite(s)
	sig := runner.New(s, strat, e.now).Evaluate(symbol)

	e.recordSignal(symbol, sig)
	e.dispatch(ctx, sig)
}

func (e *Engine) recordSignal(symbol string, sig domain.TradeSignal) {
	h := e.symbolBucket(symbol)

	h.mu.Lock()
	h.signals = append(h.signals, sig)
	if len(h.signals) > e.cfg.HistoryLimit {
		h.signals = h.signals[1:]
	}
	h.mu.Unlock()

	e.totalSignals.Add(1)
	switch sig.Type {
	case domain.SignalBuy:
		e.buySignals.Add(1)
	case domain.SignalSell:
		e.sellSignals.Add(1)
	case domain.SignalHold:
		e.holdSignals.Add(1)
	}
}

func (e *Engine) symbolBucket(symbol string) *symbolHistory {
	e.historyMu.RLock()
	h, ok := e.history[symbol]
	e.historyMu.RUnlock()
	if ok {
		return h
	}

	e.historyMu.Lock()
	defer e.historyMu.Unlock()
	if h, ok = e.history[symbol]; ok {
		return h
	}
	h = &symbolHistory{}
	e.history[symbol] = h
	return h
}

func (e *Engine) dispatch(ctx context.Context, sig domain.TradeSignal) {
	if !sig.Actionable() {
		return
	}
	log.Printf("engine: actionable signal %s %s @ %s [%s] confidence=%.2f",
		sig.Type, sig.Symbol, sig.Price, sig.Strategy, sig.Confidence)
	if e.notifier == nil {
		return
	}
	if err := e.notifier.NotifySignal(ctx, sig); err != nil {
		log.Printf("engine: notify %s signal for %s: %v", sig.Type, sig.Symbol, err)
	}
}

// SignalHistory returns a copy of every symbol's history, oldest-first.
func (e *Engine) SignalHistory() map[string][]domain.TradeSignal {
	e.historyMu.RLock()
	buckets := make(map[string]*symbolHistory, len(e.history))
	for symbol, h := range e.history {
		buckets[symbol] = h
	}
	e.historyMu.RUnlock()

	out := make(map[string][]domain.TradeSignal, len(buckets))
	for symbol, h := range buckets {
		h.mu.Lock()
		signals := make([]domain.TradeSignal, len(h.signals))
		copy(signals, h.signals)
		h.mu.Unlock()
		out[symbol] = signals
	}
	return out
}

// SymbolHistory returns a copy of one symbol's history, oldest-first.
func (e *Engine) SymbolHistory(symbol string) []domain.TradeSignal {
	e.historyMu.RLock()
	h, ok := e.history[symbol]
	e.historyMu.RUnlock()
	if !ok {
		return []domain.TradeSignal{}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	signals := make([]domain.TradeSignal, len(h.signals))
	copy(signals, h.signals)
	return signals
}

// TotalSignals returns the monotonic signal count since process start.
func (e *Engine) TotalSignals() int64 { return e.totalSignals.Load() }

// SignalCounts returns the per-type counters.
func (e *Engine) SignalCounts() (buy, sell, hold int64) {
	return e.buySignals.Load(), e.sellSignals.Load(), e.holdSignals.Load()
}

// WatchedSymbols returns the configured symbol list in order.
func (e *Engine) WatchedSymbols() []string {
	out := make([]string, len(e.cfg.Symbols))
	copy(out, e.cfg.Symbols)
	return out
}

// BacktestSymbol fetches fresh bars and replays the composite strategy over
// them. It runs synchronously outside the worker pool and mutates nothing.
func (e *Engine) BacktestSymbol(ctx context.Context, symbol string) (*domain.BacktestResult, error) {
	ctx, span := e.tracer.Start(ctx, "engine.backtest-symbol",
		trace.WithAttributes(attribute.String("symbol", symbol)))
	defer span.End()

	s, err := e.fetcher.FetchBars(ctx, symbol, e.cfg.Interval, e.cfg.HistoryBars)
	if err != nil {
		return nil, fmt.Errorf("fetch bars for %s: %w", symbol, err)
	}
	if s == nil || s.BarCount() < minWarmupBars {
		return nil, fmt.Errorf("not enough bars for %s backtest", symbol)
	}

	strat := strategy.BuildComposite(s)
	run := runner.New(s, strat, e.now)
	totalReturn := run.Backtest()

	return &domain.BacktestResult{
		Symbol:         symbol,
		Strategy:       strat.Name,
		Bars:           s.BarCount(),
		ClosedTrades:   len(run.Record().ClosedTrades()),
		TotalReturnPct: totalReturn,
	}, nil
}
