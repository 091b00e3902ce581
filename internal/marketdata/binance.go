// Package marketdata fetches OHLCV bars from the Binance public API.
package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"tradescan/internal/domain"
	"tradescan/internal/series"
)

const (
	// DefaultBaseURL is the public klines endpoint; no API key required.
	DefaultBaseURL = "https://api.binance.com"

	connectTimeout  = 10 * time.Second
	requestTimeout  = 15 * time.Second
	defaultCacheTTL = 30 * time.Second
)

// Client fetches klines over HTTP with a short-lived Redis cache in front,
// so overlapping scan cycles do not hammer the exchange. A nil redis client
// disables caching.
//
// Failed or non-200 fetches collapse into an empty series rather than an
// error: the scan engine cannot (and does not) distinguish a degraded fetch
// from legitimately thin history. Both fall into its insufficient-data path.
type Client struct {
	tracer   trace.Tracer
	http     *http.Client
	redis    *redis.Client
	baseURL  string
	cacheTTL time.Duration
}

// NewClient creates a market data client. redisClient may be nil.
func NewClient(tracer trace.Tracer, redisClient *redis.Client, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		tracer: tracer,
		http: &http.Client{
			Timeout: requestTimeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{Timeout: connectTimeout}).DialContext,
			},
		},
		redis:    redisClient,
		baseURL:  baseURL,
		cacheTTL: defaultCacheTTL,
	}
}

// FetchBars returns up to limit bars for (symbol, interval), oldest first.
// The returned series is capped at 500 bars. Network and HTTP failures are
// logged and yield an empty series with a nil error; only malformed payloads
// surface as errors.
func (c *Client) FetchBars(ctx context.Context, symbol, interval string, limit int) (*series.Series, error) {
	ctx, span := c.tracer.Start(ctx, "marketdata.fetch-bars",
		trace.WithAttributes(
			attribute.String("symbol", symbol),
			attribute.String("interval", interval),
			attribute.Int("limit", limit),
		))
	defer span.End()

	key := fmt.Sprintf("klines:%s:%s:%d", symbol, interval, limit)
	if body, ok := c.cacheGet(ctx, key); ok {
		return parseKlines(symbol, body)
	}

	body, err := c.fetch(ctx, symbol, interval, limit)
	if err != nil {
		log.Printf("marketdata: fetch %s %s: %v", symbol, interval, err)
		return series.New(symbol, series.DefaultMaxBars), nil
	}

	c.cacheSet(ctx, key, body)
	return parseKlines(symbol, body)
}

func (c *Client) fetch(ctx context.Context, symbol, interval string, limit int) ([]byte, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("interval", interval)
	q.Set("limit", strconv.Itoa(limit))
	endpoint := fmt.Sprintf("%s/api/v3/klines?%s", c.baseURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request klines: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("klines endpoint returned HTTP %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (c *Client) cacheGet(ctx context.Context, key string) ([]byte, bool) {
	if c.redis == nil {
		return nil, false
	}
	body, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Printf("marketdata: cache get %s: %v", key, err)
		}
		return nil, false
	}
	return body, true
}

func (c *Client) cacheSet(ctx context.Context, key string, body []byte) {
	if c.redis == nil {
		return
	}
	if err := c.redis.Set(ctx, key, body, c.cacheTTL).Err(); err != nil {
		log.Printf("marketdata: cache set %s: %v", key, err)
	}
}

// parseKlines decodes the Binance kline payload:
// [[openTime, "open", "high", "low", "close", "volume", closeTime, ...], ...]
func parseKlines(symbol string, body []byte) (*series.Series, error) {
	var klines [][]json.RawMessage
	if err := json.Unmarshal(body, &klines); err != nil {
		return nil, fmt.Errorf("decode klines for %s: %w", symbol, err)
	}

	s := series.New(symbol, series.DefaultMaxBars)
	for _, k := range klines {
		if len(k) < 7 {
			return nil, fmt.Errorf("kline for %s has %d fields, want at least 7", symbol, len(k))
		}
		bar, err := parseKline(k)
		if err != nil {
			return nil, fmt.Errorf("parse kline for %s: %w", symbol, err)
		}
		if err := s.AddBar(bar); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func parseKline(k []json.RawMessage) (domain.Bar, error) {
	var openTimeMs, closeTimeMs int64
	if err := json.Unmarshal(k[0], &openTimeMs); err != nil {
		return domain.Bar{}, fmt.Errorf("open time: %w", err)
	}
	if err := json.Unmarshal(k[6], &closeTimeMs); err != nil {
		return domain.Bar{}, fmt.Errorf("close time: %w", err)
	}

	prices := make([]decimal.Decimal, 4)
	for i, field := range []string{"open", "high", "low", "close"} {
		var raw string
		if err := json.Unmarshal(k[i+1], &raw); err != nil {
			return domain.Bar{}, fmt.Errorf("%s price: %w", field, err)
		}
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return domain.Bar{}, fmt.Errorf("%s price %q: %w", field, raw, err)
		}
		prices[i] = d
	}

	var rawVolume string
	if err := json.Unmarshal(k[5], &rawVolume); err != nil {
		return domain.Bar{}, fmt.Errorf("volume: %w", err)
	}
	volume, err := strconv.ParseFloat(rawVolume, 64)
	if err != nil {
		return domain.Bar{}, fmt.Errorf("volume %q: %w", rawVolume, err)
	}

	return domain.Bar{
		BeginTime: time.UnixMilli(openTimeMs).UTC(),
		EndTime:   time.UnixMilli(closeTimeMs).UTC(),
		Open:      prices[0],
		High:      prices[1],
		Low:       prices[2],
		Close:     prices[3],
		Volume:    volume,
	}, nil
}
