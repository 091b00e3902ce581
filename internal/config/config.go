package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Symbols       []string
	Interval      string
	HistoryBars   int
	ScanRate      time.Duration
	Workers       int
	QueueSize     int
	HistoryLimit  int
	ShutdownGrace time.Duration

	RedisURL         string
	TelegramBotToken string
	BinanceBaseURL   string
	HTTPPort         int
}

func Load() *Config {
	cfg := &Config{
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		RedisURL:         os.Getenv("REDIS_URL"),
		BinanceBaseURL:   os.Getenv("BINANCE_BASE_URL"),
	}

	if cfg.TelegramBotToken == "" {
		log.Println("Warning: TELEGRAM_BOT_TOKEN not set, signal alerts disabled")
	}
	if cfg.RedisURL == "" {
		log.Println("Warning: REDIS_URL not set, defaulting to localhost:6379")
		cfg.RedisURL = "localhost:6379"
	}

	cfg.Symbols = parseSymbols(os.Getenv("SYMBOLS"))

	cfg.Interval = strings.TrimSpace(os.Getenv("CANDLE_INTERVAL"))
	if cfg.Interval == "" {
		cfg.Interval = "5m"
	}

	cfg.HistoryBars = 200
	if v := strings.TrimSpace(os.Getenv("HISTORY_BARS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.HistoryBars = n
		}
	}

	cfg.ScanRate = 60 * time.Second
	if v := strings.TrimSpace(os.Getenv("SCAN_RATE_MS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ScanRate = time.Duration(n) * time.Millisecond
		}
	}

	cfg.Workers = 8
	if v := strings.TrimSpace(os.Getenv("WORKER_POOL_SIZE")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Workers = n
		}
	}

	cfg.QueueSize = 50
	if v := strings.TrimSpace(os.Getenv("WORKER_QUEUE_SIZE")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.QueueSize = n
		}
	}

	cfg.HistoryLimit = 100
	if v := strings.TrimSpace(os.Getenv("SIGNAL_HISTORY_LIMIT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.HistoryLimit = n
		}
	}

	cfg.ShutdownGrace = 30 * time.Second
	if v := strings.TrimSpace(os.Getenv("SHUTDOWN_GRACE_SECS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ShutdownGrace = time.Duration(n) * time.Second
		}
	}

	cfg.HTTPPort = 8080
	if v := strings.TrimSpace(os.Getenv("HTTP_PORT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.HTTPPort = n
		}
	}

	return cfg
}

func parseSymbols(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"}
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		symbol := strings.ToUpper(strings.TrimSpace(part))
		if symbol == "" {
			continue
		}
		if _, ok := seen[symbol]; ok {
			continue
		}
		seen[symbol] = struct{}{}
		out = append(out, symbol)
	}
	if len(out) == 0 {
		return []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"}
	}
	return out
}
