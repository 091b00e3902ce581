package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/trace"

	"tradescan/internal/bot"
	"tradescan/internal/cache"
	"tradescan/internal/config"
	"tradescan/internal/engine"
	"tradescan/internal/handler"
	"tradescan/internal/marketdata"
	"tradescan/pkg/tracing"
)

var (
	loadEnvFunc        = godotenv.Load
	loadConfigFunc     = config.Load
	initRedisFunc      = cache.InitRedis
	initTracerFunc     = tracing.InitTracer
	newMarketDataFunc  = func(tracer trace.Tracer, baseURL string) engine.Fetcher {
		return marketdata.NewClient(tracer, cache.Client, baseURL)
	}
	startTelegramBotFunc   = bot.StartTelegramBot
	newEngineFunc          = engine.New
	startEngineFunc        = func(e *engine.Engine, ctx context.Context) { go e.Start(ctx) }
	newHandlerFunc         = handler.New
	newRouterFunc          = gin.Default
	setupSignalNotify      = ossignal.Notify
	waitForSignalFunc      = func(quit <-chan os.Signal) { <-quit }
	startHTTPServerFunc    = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownHTTPServerFunc = func(srv *http.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
)

func main() {
	loadEnvFunc()

	cfg := loadConfigFunc()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	initRedisFunc(ctx, cfg.RedisURL)

	tp, tracer, err := initTracerFunc(ctx)
	if err != nil {
		log.Fatalf("failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("error shutting down tracer provider: %v", err)
		}
	}()

	market := newMarketDataFunc(tracer, cfg.BinanceBaseURL)

	scanEngine := newEngineFunc(engine.Config{
		Symbols:       cfg.Symbols,
		Interval:      cfg.Interval,
		HistoryBars:   cfg.HistoryBars,
		ScanRate:      cfg.ScanRate,
		Workers:       cfg.Workers,
		QueueSize:     cfg.QueueSize,
		HistoryLimit:  cfg.HistoryLimit,
		ShutdownGrace: cfg.ShutdownGrace,
	}, tracer, market, nil, nil)

	// The dispatcher needs the engine for bot commands and the engine needs
	// the dispatcher for alerts; the bot is wired first, then attached.
	alerts := startTelegramBotFunc(cfg.TelegramBotToken, scanEngine)
	if alerts != nil {
		scanEngine.SetNotifier(alerts)
	}

	startEngineFunc(scanEngine, ctx)

	h := newHandlerFunc(tracer, scanEngine)

	r := newRouterFunc()
	r.Use(otelgin.Middleware("tradescan"))
	r.Use(cors.Default())
	h.RegisterRoutes(r)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: r,
	}

	go func() {
		if err := startHTTPServerFunc(srv); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	log.Println("Shutting down server...")

	cancel()
	scanEngine.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := shutdownHTTPServerFunc(srv, shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}
