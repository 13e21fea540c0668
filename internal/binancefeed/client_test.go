package binancefeed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cryptosignal-engine/internal/errs"
)

func TestFetchKlinesParsesBinanceResponse(t *testing.T) {
	row := []any{
		float64(1700000000000), "100.0", "102.0", "98.0", "101.0", "10.5",
		float64(1700000899999), "0", 0, "0", "0", "0",
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([][]any{row})
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.BaseURL = srv.URL
	cfg.RequestsPerSecond = 100
	cfg.Burst = 100
	c := New(cfg)

	candles, err := c.FetchKlines(context.Background(), "BTCUSDT", "1m", 1)
	if err != nil {
		t.Fatalf("FetchKlines: %v", err)
	}
	if len(candles) != 1 {
		t.Fatalf("expected 1 candle, got %d", len(candles))
	}
	if candles[0].Open != 100.0 || candles[0].Close != 101.0 {
		t.Fatalf("unexpected candle: %+v", candles[0])
	}
}

func TestFetchKlinesSurfacesExternalUnavailableOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.BaseURL = srv.URL
	cfg.RequestsPerSecond = 100
	cfg.Burst = 100
	cfg.BreakerMaxFailures = 1
	c := New(cfg)

	_, err := c.FetchKlines(context.Background(), "BTCUSDT", "1m", 1)
	if err == nil {
		t.Fatal("expected an error from a 500 response")
	}
	if !errs.Is(err, errs.KindExternalUnavailable) {
		t.Fatalf("expected ExternalUnavailable, got %v", err)
	}
}

func TestBestBidAskParsesBookTicker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{
			"symbol": "BTCUSDT", "bidPrice": "100.0", "bidQty": "1.0", "askPrice": "100.5", "askQty": "2.0",
		})
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.BaseURL = srv.URL
	cfg.RequestsPerSecond = 100
	cfg.Burst = 100
	c := New(cfg)

	tob, err := c.BestBidAsk(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("BestBidAsk: %v", err)
	}
	if tob.Bid != 100.0 || tob.Ask != 100.5 {
		t.Fatalf("unexpected top of book: %+v", tob)
	}
	if !tob.Fresh(time.Minute) {
		t.Fatal("expected a just-fetched snapshot to be fresh")
	}
}
