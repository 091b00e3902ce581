package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"

	"tradescan/internal/domain"
)

// ScanEngine is the slice of the engine the API layer needs.
type ScanEngine interface {
	SignalHistory() map[string][]domain.TradeSignal
	SymbolHistory(symbol string) []domain.TradeSignal
	TotalSignals() int64
	SignalCounts() (buy, sell, hold int64)
	WatchedSymbols() []string
	EvaluateSymbol(symbol string) error
	Scan() error
	BacktestSymbol(ctx context.Context, symbol string) (*domain.BacktestResult, error)
}

type Handler struct {
	tracer trace.Tracer
	engine ScanEngine
}

func New(tracer trace.Tracer, engine ScanEngine) *Handler {
	return &Handler{
		tracer: tracer,
		engine: engine,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)
	r.GET("/api/status", h.Status)
	r.GET("/api/signals", h.GetSignals)
	r.GET("/api/signals/:symbol", h.GetSymbolSignals)
	r.POST("/api/scan", h.TriggerScan)
	r.POST("/api/scan/:symbol", h.TriggerSymbolScan)
	r.GET("/api/backtest/:symbol", h.Backtest)
}
