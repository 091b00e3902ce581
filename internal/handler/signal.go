package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"

	"tradescan/internal/engine"
)

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":        "UP",
		"timestamp":     time.Now().UTC().Format(time.RFC3339),
		"total_signals": h.engine.TotalSignals(),
	})
}

func (h *Handler) Status(c *gin.Context) {
	buy, sell, hold := h.engine.SignalCounts()
	c.JSON(http.StatusOK, gin.H{
		"status":          "RUNNING",
		"watched_symbols": h.engine.WatchedSymbols(),
		"total_signals":   h.engine.TotalSignals(),
		"signal_counts": gin.H{
			"buy":  buy,
			"sell": sell,
			"hold": hold,
		},
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) GetSignals(c *gin.Context) {
	_, span := h.tracer.Start(c.Request.Context(), "handler.get-signals")
	defer span.End()

	c.JSON(http.StatusOK, gin.H{"signals": h.engine.SignalHistory()})
}

// GetSymbolSignals returns one symbol's history, oldest-first. Unknown
// symbols yield an empty list, not an error.
func (h *Handler) GetSymbolSignals(c *gin.Context) {
	_, span := h.tracer.Start(c.Request.Context(), "handler.get-symbol-signals")
	defer span.End()

	symbol := strings.ToUpper(strings.TrimSpace(c.Param("symbol")))
	span.SetAttributes(attribute.String("symbol", symbol))

	c.JSON(http.StatusOK, gin.H{
		"symbol":  symbol,
		"signals": h.engine.SymbolHistory(symbol),
	})
}

func (h *Handler) TriggerScan(c *gin.Context) {
	_, span := h.tracer.Start(c.Request.Context(), "handler.trigger-scan")
	defer span.End()

	if err := h.engine.Scan(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"message": fmt.Sprintf("scan triggered for %d symbols", len(h.engine.WatchedSymbols())),
	})
}

func (h *Handler) TriggerSymbolScan(c *gin.Context) {
	_, span := h.tracer.Start(c.Request.Context(), "handler.trigger-symbol-scan")
	defer span.End()

	symbol := strings.ToUpper(strings.TrimSpace(c.Param("symbol")))
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol is required"})
		return
	}
	span.SetAttributes(attribute.String("symbol", symbol))

	if err := h.engine.EvaluateSymbol(symbol); err != nil {
		status := http.StatusServiceUnavailable
		if errors.Is(err, engine.ErrStopped) {
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message": "evaluation queued for " + symbol})
}

func (h *Handler) Backtest(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.backtest")
	defer span.End()

	symbol := strings.ToUpper(strings.TrimSpace(c.Param("symbol")))
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol is required"})
		return
	}
	span.SetAttributes(attribute.String("symbol", symbol))

	result, err := h.engine.BacktestSymbol(ctx, symbol)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}
