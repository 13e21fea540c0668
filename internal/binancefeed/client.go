// Package binancefeed adapts the Binance REST API to the engine's
// HistoryPort and TopOfBookPort, replacing the teacher's bespoke
// internal/binance client with a circuit-breaker- and token-bucket-
// guarded HTTP client.
package binancefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"cryptosignal-engine/internal/candle"
	"cryptosignal-engine/internal/errs"
	"cryptosignal-engine/internal/ports"
)

// Config tunes the REST client, rate limiter and circuit breaker.
type Config struct {
	BaseURL            string
	Timeout            time.Duration
	RequestsPerSecond  float64
	Burst              int
	BreakerMaxFailures uint32
	BreakerOpenTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		BaseURL:            "https://api.binance.com",
		Timeout:            10 * time.Second,
		RequestsPerSecond:  10,
		Burst:              20,
		BreakerMaxFailures: 5,
		BreakerOpenTimeout: 30 * time.Second,
	}
}

// Client implements ports.HistoryPort and ports.TopOfBookPort.
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
}

var (
	_ ports.HistoryPort    = (*Client)(nil)
	_ ports.TopOfBookPort  = (*Client)(nil)
)

func New(cfg Config) *Client {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "binance-rest",
		Timeout: cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerMaxFailures
		},
	})
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		breaker:    breaker,
	}
}

// FetchKlines implements ports.HistoryPort.
func (c *Client) FetchKlines(ctx context.Context, symbol, interval string, limit int) ([]candle.Candle, error) {
	raw, err := c.guarded(ctx, func(ctx context.Context) (any, error) {
		return c.getKlines(ctx, symbol, interval, limit)
	})
	if err != nil {
		return nil, err
	}
	return raw.([]candle.Candle), nil
}

// BestBidAsk implements ports.TopOfBookPort.
func (c *Client) BestBidAsk(ctx context.Context, symbol string) (ports.TopOfBook, error) {
	raw, err := c.guarded(ctx, func(ctx context.Context) (any, error) {
		return c.getBookTicker(ctx, symbol)
	})
	if err != nil {
		return ports.TopOfBook{}, err
	}
	return raw.(ports.TopOfBook), nil
}

// guarded applies the rate limiter and circuit breaker around fn,
// translating both exhaustion and an open breaker into
// errs.KindExternalUnavailable so callers (warmup, the live feed) can
// degrade uniformly regardless of which guard tripped.
func (c *Client) guarded(ctx context.Context, fn func(context.Context) (any, error)) (any, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errs.Wrap(errs.KindExternalUnavailable, "rate limiter wait canceled", err)
	}
	result, err := c.breaker.Execute(func() (any, error) {
		return fn(ctx)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, errs.Wrap(errs.KindExternalUnavailable, "binance circuit breaker open", err)
		}
		return nil, errs.Wrap(errs.KindExternalUnavailable, "binance request failed", err)
	}
	return result, nil
}

func (c *Client) getKlines(ctx context.Context, symbol, interval string, limit int) ([]candle.Candle, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("interval", interval)
	q.Set("limit", strconv.Itoa(limit))
	endpoint := fmt.Sprintf("%s/api/v3/klines?%s", c.cfg.BaseURL, q.Encode())

	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var raw [][]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("parsing klines: %w", err)
	}

	candles := make([]candle.Candle, 0, len(raw))
	for _, row := range raw {
		openTime := int64(row[0].(float64))
		cl, err := candle.New(
			time.UnixMilli(openTime).UTC(),
			parseFloat(row[1]),
			parseFloat(row[2]),
			parseFloat(row[3]),
			parseFloat(row[4]),
			parseFloat(row[5]),
		)
		if err != nil {
			continue
		}
		candles = append(candles, cl)
	}
	return candles, nil
}

func (c *Client) getBookTicker(ctx context.Context, symbol string) (ports.TopOfBook, error) {
	endpoint := fmt.Sprintf("%s/api/v3/ticker/bookTicker?symbol=%s", c.cfg.BaseURL, symbol)
	body, err := c.get(ctx, endpoint)
	if err != nil {
		return ports.TopOfBook{}, err
	}

	var resp struct {
		Symbol   string  `json:"symbol"`
		BidPrice float64 `json:"bidPrice,string"`
		BidQty   float64 `json:"bidQty,string"`
		AskPrice float64 `json:"askPrice,string"`
		AskQty   float64 `json:"askQty,string"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return ports.TopOfBook{}, fmt.Errorf("parsing book ticker: %w", err)
	}

	return ports.TopOfBook{
		Bid:    resp.BidPrice,
		Ask:    resp.AskPrice,
		BidQty: resp.BidQty,
		AskQty: resp.AskQty,
		Ts:     time.Now().UTC(),
	}, nil
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("binance API error %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

func parseFloat(v any) float64 {
	switch t := v.(type) {
	case string:
		f, _ := strconv.ParseFloat(t, 64)
		return f
	case float64:
		return t
	default:
		return 0
	}
}
