// Package httpapi exposes the orchestrator's read-only accessor
// surface (candles, latest signal, paper account, positions, health)
// over HTTP, grounded on the teacher's internal/api server but trimmed
// to this engine's single concern: there are no user accounts, order
// placement, or strategy toggles here, only snapshot reads plus a
// Prometheus scrape endpoint.
package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"cryptosignal-engine/internal/httpapi/authmw"
	"cryptosignal-engine/internal/orchestrator"
	"cryptosignal-engine/internal/paper"
)

// RateLimiter is a simple in-memory sliding-window limiter per route,
// adapted from the teacher's internal/api.RateLimiter.
type RateLimiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	limit    int
	window   time.Duration
}

// NewRateLimiter builds a RateLimiter allowing limit requests per
// window, keyed by the key passed to it (the middleware passes the
// matched route path, so every caller of a route shares one budget).
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{requests: make(map[string][]time.Time), limit: limit, window: window}
}

// Allow reports whether a request under key is within the window's
// budget, recording it if so.
func (r *RateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-r.window)
	var recent []time.Time
	for _, t := range r.requests[key] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}
	if len(recent) >= r.limit {
		r.requests[key] = recent
		return false
	}
	r.requests[key] = append(recent, now)
	return true
}

// Config tunes the accessor server.
type Config struct {
	Host             string
	Port             int
	ProductionMode   bool
	AuthEnabled      bool
	JWTSecret        string
	RateLimitPerMin  int
}

// DefaultConfig returns sane accessor-server defaults.
func DefaultConfig() Config {
	return Config{
		Host:            "0.0.0.0",
		Port:            8080,
		ProductionMode:  false,
		AuthEnabled:     false,
		RateLimitPerMin: 120,
	}
}

// Server is the engine's HTTP accessor surface.
type Server struct {
	router      *gin.Engine
	httpServer  *http.Server
	cfg         Config
	orch        *orchestrator.Orchestrator
	authMgr     *authmw.Manager
	rateLimiter *RateLimiter
	logger      zerolog.Logger
}

// NewServer wires the accessor routes against orch. registry backs
// the /metrics endpoint; pass prometheus.NewRegistry() in tests to
// avoid colliding with the global registry across package-level runs.
func NewServer(cfg Config, orch *orchestrator.Orchestrator, registry *prometheus.Registry, logger zerolog.Logger) *Server {
	if cfg.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowOrigins = []string{"http://localhost:5173", "http://localhost:8080"}
	corsCfg.AllowMethods = []string{"GET", "OPTIONS"}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	router.Use(cors.New(corsCfg))

	s := &Server{
		router:      router,
		cfg:         cfg,
		orch:        orch,
		rateLimiter: NewRateLimiter(cfg.RateLimitPerMin, time.Minute),
		logger:      logger,
	}
	if cfg.AuthEnabled {
		s.authMgr = authmw.NewManager(cfg.JWTSecret, 24*time.Hour)
	}

	router.Use(s.requestLogMiddleware())
	router.Use(s.rateLimitMiddleware())

	s.setupRoutes(registry)
	return s
}

func (s *Server) requestLogMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("http request")
	}
}

func (s *Server) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		if !s.rateLimiter.Allow(path) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":   "rate_limited",
				"message": "too many requests to this endpoint",
			})
			return
		}
		c.Next()
	}
}

func (s *Server) setupRoutes(registry *prometheus.Registry) {
	s.router.GET("/health", s.handleHealth)

	gatherer := prometheus.Gatherer(prometheus.DefaultGatherer)
	if registry != nil {
		gatherer = registry
	}
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	api := s.router.Group("/api")
	if s.authMgr != nil {
		api.Use(s.authMgr.Middleware())
	}
	api.GET("/candles/:timeframe/latest", s.handleLatestCandle)
	api.GET("/candles/:timeframe", s.handleCandleHistory)
	api.GET("/signal", s.handleLatestSignal)
	api.GET("/account", s.handleAccount)
	api.GET("/positions", s.handlePositions)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, newHealthView(s.orch.Health()))
}

func (s *Server) handleLatestCandle(c *gin.Context) {
	tf := c.Param("timeframe")
	candle, ok := s.orch.LatestCandle(tf)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no_candle", "message": "no candle available yet for this timeframe"})
		return
	}
	c.JSON(http.StatusOK, newCandleView(candle))
}

func (s *Server) handleCandleHistory(c *gin.Context) {
	tf := c.Param("timeframe")
	n := 100
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			n = parsed
		}
	}
	c.JSON(http.StatusOK, newCandleViews(s.orch.LastNCandles(tf, n)))
}

func (s *Server) handleLatestSignal(c *gin.Context) {
	sig, ok := s.orch.LatestSignal()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no_signal", "message": "no signal has been emitted yet"})
		return
	}
	c.JSON(http.StatusOK, newSignalView(sig))
}

func (s *Server) handleAccount(c *gin.Context) {
	c.JSON(http.StatusOK, newAccountView(s.orch.Account()))
}

func (s *Server) handlePositions(c *gin.Context) {
	state := paper.State(c.Query("state"))
	c.JSON(http.StatusOK, newPositionViews(s.orch.Positions(state)))
}

// Start runs the HTTP server until the process is stopped; it blocks
// until Shutdown is called or ListenAndServe fails.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:    s.cfg.Host + ":" + strconv.Itoa(s.cfg.Port),
		Handler: s.router,
	}
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
