package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"cryptosignal-engine/internal/candle"
	"cryptosignal-engine/internal/orchestrator"
	"cryptosignal-engine/internal/ports"
)

type fakeHistory struct{ candles []candle.Candle }

func (f fakeHistory) FetchKlines(ctx context.Context, symbol, interval string, limit int) ([]candle.Candle, error) {
	if limit > len(f.candles) {
		limit = len(f.candles)
	}
	return f.candles[len(f.candles)-limit:], nil
}

var _ ports.HistoryPort = fakeHistory{}

func syntheticHistory(n int) []candle.Candle {
	out := make([]candle.Candle, 0, n)
	ts := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	price := 100.0
	for i := 0; i < n; i++ {
		c, err := candle.New(ts, price, price+1, price-1, price+0.5, 10.0)
		if err != nil {
			panic(err)
		}
		out = append(out, c)
		ts = ts.Add(15 * time.Minute)
		price += 0.1
	}
	return out
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := orchestrator.DefaultConfig("BTCUSDT")
	history := fakeHistory{candles: syntheticHistory(200)}
	orch, err := orchestrator.New(cfg, history, nil, nil, nil, 10000)
	if err != nil {
		t.Fatalf("orchestrator.New: %v", err)
	}
	orch.Start(context.Background())

	srvCfg := DefaultConfig()
	return NewServer(srvCfg, orch, prometheus.NewRegistry(), zerolog.Nop())
}

func TestHealthEndpointReportsWarmupState(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body healthView
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.WarmupOK {
		t.Fatal("expected warmup to have completed")
	}
}

func TestLatestSignalReturns404BeforeFirstEvaluation(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/signal", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 before any 15m close, got %d", rec.Code)
	}
}

func TestMetricsEndpointServesPrometheusFormat(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestAuthRequiredRejectsMissingBearerToken(t *testing.T) {
	cfg := orchestrator.DefaultConfig("BTCUSDT")
	orch, err := orchestrator.New(cfg, fakeHistory{candles: syntheticHistory(200)}, nil, nil, nil, 10000)
	if err != nil {
		t.Fatalf("orchestrator.New: %v", err)
	}
	orch.Start(context.Background())

	srvCfg := DefaultConfig()
	srvCfg.AuthEnabled = true
	srvCfg.JWTSecret = "test-secret"
	s := NewServer(srvCfg, orch, prometheus.NewRegistry(), zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/api/account", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a token, got %d", rec.Code)
	}
}
