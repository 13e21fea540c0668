// Package config loads the engine's process configuration from
// config.json plus environment-variable overrides, the same two-layer
// pattern as the teacher: a file for the base shape, environment for
// anything that varies per deployment (and for anything secret).
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"cryptosignal-engine/internal/aggregator"
	"cryptosignal-engine/internal/binancefeed"
	"cryptosignal-engine/internal/httpapi"
	"cryptosignal-engine/internal/orchestrator"
	"cryptosignal-engine/internal/paper"
	"cryptosignal-engine/internal/risk"
	"cryptosignal-engine/internal/signal"
	"cryptosignal-engine/internal/storage/postgres"
	"cryptosignal-engine/internal/vaultsecrets"
)

// Config is the engine's full process configuration.
type Config struct {
	EngineConfig   EngineConfig   `json:"engine"`
	RiskConfig     RiskConfig     `json:"risk"`
	PaperConfig    PaperConfig    `json:"paper"`
	BinanceConfig  BinanceConfig  `json:"binance"`
	PostgresConfig PostgresConfig `json:"postgres"`
	RedisConfig    RedisConfig    `json:"redis"`
	ServerConfig   ServerConfig   `json:"server"`
	AuthConfig     AuthConfig     `json:"auth"`
	VaultConfig    VaultConfig    `json:"vault"`
	LoggingConfig  LoggingConfig  `json:"logging"`
}

// EngineConfig names the symbol and analysis timeframe the signal
// pipeline runs over (spec §1/§4.F).
type EngineConfig struct {
	Symbol            string `json:"symbol"`
	AnalysisTimeframe string `json:"analysis_timeframe"` // "15m" or "1h"
	WarmupCandles     int    `json:"warmup_candles"`
}

// RiskConfig mirrors internal/risk.Config (spec §4.G).
type RiskConfig struct {
	RiskPct             float64 `json:"risk_pct"`
	MaxOpenPositions    int     `json:"max_open_positions"`
	MaxDailyDrawdownPct float64 `json:"max_daily_drawdown_pct"`
}

// ToRiskConfig converts to internal/risk.Config.
func (c RiskConfig) ToRiskConfig() risk.Config {
	return risk.Config{
		RiskPct:             c.RiskPct,
		MaxOpenPositions:    c.MaxOpenPositions,
		MaxDailyDrawdownPct: c.MaxDailyDrawdownPct,
	}
}

// PaperConfig mirrors internal/paper.Config plus the wallet seed
// (spec §4.H).
type PaperConfig struct {
	InitialWallet         float64 `json:"initial_wallet"`
	DefaultLeverage        float64 `json:"default_leverage"`
	MaintenanceMarginRate  float64 `json:"maintenance_margin_rate"`
}

// ToMatcherConfig converts to internal/paper.Config.
func (c PaperConfig) ToMatcherConfig() paper.Config {
	return paper.Config{
		DefaultLeverage:       c.DefaultLeverage,
		MaintenanceMarginRate: c.MaintenanceMarginRate,
	}
}

// BinanceConfig mirrors internal/binancefeed.Config. Unlike the
// teacher, there is no per-user API key here -- the engine reads
// market data only, which Binance's klines/bookTicker endpoints serve
// unauthenticated, so no credentials belong in this struct at all. The
// key pair vaultsecrets fetches is for an eventual live-order path,
// not market-data ingestion.
type BinanceConfig struct {
	BaseURL            string        `json:"base_url"`
	Timeout            time.Duration `json:"timeout"`
	RequestsPerSecond  float64       `json:"requests_per_second"`
	Burst              int           `json:"burst"`
	BreakerMaxFailures uint32        `json:"breaker_max_failures"`
	BreakerOpenTimeout time.Duration `json:"breaker_open_timeout"`
}

// ToBinanceFeedConfig converts to internal/binancefeed.Config.
func (c BinanceConfig) ToBinanceFeedConfig() binancefeed.Config {
	return binancefeed.Config{
		BaseURL:            c.BaseURL,
		Timeout:            c.Timeout,
		RequestsPerSecond:  c.RequestsPerSecond,
		Burst:              c.Burst,
		BreakerMaxFailures: c.BreakerMaxFailures,
		BreakerOpenTimeout: c.BreakerOpenTimeout,
	}
}

// PostgresConfig mirrors internal/storage/postgres.Config.
type PostgresConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"ssl_mode"`
}

// ToPostgresConfig converts to internal/storage/postgres.Config.
func (c PostgresConfig) ToPostgresConfig() postgres.Config {
	return postgres.Config{
		Host:     c.Host,
		Port:     c.Port,
		User:     c.User,
		Password: c.Password,
		Database: c.Database,
		SSLMode:  c.SSLMode,
	}
}

// RedisConfig holds Redis configuration for the snapshot cache
// (internal/cache).
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
	TTL      time.Duration `json:"ttl"`
}

// ServerConfig mirrors internal/httpapi.Config plus a few teacher-style
// HTTP timeouts the accessor server honors on shutdown.
type ServerConfig struct {
	Port            int    `json:"port"`
	Host            string `json:"host"`
	ProductionMode  bool   `json:"production_mode"`
	RateLimitPerMin int    `json:"rate_limit_per_min"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
}

// ToHTTPAPIConfig converts to internal/httpapi.Config. auth carries the
// JWT gate settings since httpapi.Config bundles both concerns.
func (c ServerConfig) ToHTTPAPIConfig(auth AuthConfig) httpapi.Config {
	return httpapi.Config{
		Host:            c.Host,
		Port:            c.Port,
		ProductionMode:  c.ProductionMode,
		RateLimitPerMin: c.RateLimitPerMin,
		AuthEnabled:     auth.Enabled,
		JWTSecret:       auth.JWTSecret,
	}
}

// AuthConfig gates the accessor API's /api routes, trimmed from the
// teacher's multi-tenant AuthConfig (no password policy, sessions, or
// email verification -- there are no user accounts to protect here).
type AuthConfig struct {
	Enabled   bool   `json:"enabled"`
	JWTSecret string `json:"jwt_secret"`
}

// VaultConfig mirrors internal/vaultsecrets.Config.
type VaultConfig struct {
	Enabled    bool   `json:"enabled"`
	Address    string `json:"address"`
	Token      string `json:"token"`
	MountPath  string `json:"mount_path"`
	SecretPath string `json:"secret_path"`
	TLSEnabled bool   `json:"tls_enabled"`
	CACert     string `json:"ca_cert"`
}

// ToVaultConfig converts to internal/vaultsecrets.Config.
func (c VaultConfig) ToVaultConfig() vaultsecrets.Config {
	return vaultsecrets.Config{
		Enabled:    c.Enabled,
		Address:    c.Address,
		Token:      c.Token,
		MountPath:  c.MountPath,
		SecretPath: c.SecretPath,
		TLSEnabled: c.TLSEnabled,
		CACert:     c.CACert,
	}
}

// LoggingConfig sets the level and format of the internal/logging
// default logger that main installs; the zerolog logger used by
// internal/httpapi does not read it.
type LoggingConfig struct {
	Level      string `json:"level"`       // debug, info, warn, error
	JSONFormat bool   `json:"json_format"`
}

// ToOrchestratorConfig builds the orchestrator's composite Config from
// the process config plus engine-level defaults for the sub-packages
// that don't have a dedicated section (aggregator buffer sizes, the
// signal engine's thresholds, and the enricher's ATR multipliers) --
// these are tuning knobs an operator rarely needs to override, so they
// stay at each package's own DefaultConfig() unless code overrides them.
func (c Config) ToOrchestratorConfig() orchestrator.Config {
	oc := orchestrator.DefaultConfig(c.EngineConfig.Symbol)
	if c.EngineConfig.AnalysisTimeframe == "1h" {
		oc.AnalysisTimeframe = orchestrator.Analysis1h
	} else {
		oc.AnalysisTimeframe = orchestrator.Analysis15m
	}
	// Warmup.Interval must match AnalysisTimeframe: warm-up replays
	// history straight into the buffer the signal engine reads from
	// (see internal/aggregator.ReplayClosed), so the two can never
	// diverge without leaving the analysis buffer cold.
	oc.Warmup.Interval = string(oc.AnalysisTimeframe)
	oc.Warmup.Limit = c.EngineConfig.WarmupCandles
	oc.Risk = c.RiskConfig.ToRiskConfig()
	oc.Matcher = c.PaperConfig.ToMatcherConfig()
	oc.Aggregator = aggregator.DefaultConfig()
	oc.Signal = signal.DefaultConfig()
	oc.Enrich = signal.DefaultEnrichConfig(c.EngineConfig.AnalysisTimeframe)
	return oc
}

// Load reads config.json if present, then applies environment
// overrides on top -- env always wins, matching the teacher's
// Load()/applyEnvOverrides() split.
func Load() (*Config, error) {
	cfg, err := loadFromFile("config.json")
	if err != nil {
		cfg = &Config{}
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

func loadFromFile(filename string) (*Config, error) {
	file, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(file, &cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	cfg.EngineConfig.Symbol = getEnvOrDefault("ENGINE_SYMBOL", orDefault(cfg.EngineConfig.Symbol, "BTCUSDT"))
	cfg.EngineConfig.AnalysisTimeframe = getEnvOrDefault("ENGINE_ANALYSIS_TIMEFRAME", orDefault(cfg.EngineConfig.AnalysisTimeframe, "15m"))
	cfg.EngineConfig.WarmupCandles = getEnvIntOrDefault("ENGINE_WARMUP_CANDLES", orDefaultInt(cfg.EngineConfig.WarmupCandles, 1000))

	cfg.RiskConfig.RiskPct = getEnvFloatOrDefault("RISK_PCT", orDefaultFloat(cfg.RiskConfig.RiskPct, 0.01))
	cfg.RiskConfig.MaxOpenPositions = getEnvIntOrDefault("RISK_MAX_OPEN_POSITIONS", orDefaultInt(cfg.RiskConfig.MaxOpenPositions, 5))
	cfg.RiskConfig.MaxDailyDrawdownPct = getEnvFloatOrDefault("RISK_MAX_DAILY_DRAWDOWN_PCT", orDefaultFloat(cfg.RiskConfig.MaxDailyDrawdownPct, 0.10))

	cfg.PaperConfig.InitialWallet = getEnvFloatOrDefault("PAPER_INITIAL_WALLET", orDefaultFloat(cfg.PaperConfig.InitialWallet, 10000))
	cfg.PaperConfig.DefaultLeverage = getEnvFloatOrDefault("PAPER_DEFAULT_LEVERAGE", orDefaultFloat(cfg.PaperConfig.DefaultLeverage, 1))
	cfg.PaperConfig.MaintenanceMarginRate = getEnvFloatOrDefault("PAPER_MAINTENANCE_MARGIN_RATE", orDefaultFloat(cfg.PaperConfig.MaintenanceMarginRate, 0.005))

	cfg.BinanceConfig.BaseURL = getEnvOrDefault("BINANCE_BASE_URL", orDefault(cfg.BinanceConfig.BaseURL, "https://api.binance.com"))
	cfg.BinanceConfig.Timeout = getEnvDurationOrDefault("BINANCE_TIMEOUT", orDefaultDuration(cfg.BinanceConfig.Timeout, 10*time.Second))
	cfg.BinanceConfig.RequestsPerSecond = getEnvFloatOrDefault("BINANCE_REQUESTS_PER_SECOND", orDefaultFloat(cfg.BinanceConfig.RequestsPerSecond, 10))
	cfg.BinanceConfig.Burst = getEnvIntOrDefault("BINANCE_BURST", orDefaultInt(cfg.BinanceConfig.Burst, 20))
	cfg.BinanceConfig.BreakerMaxFailures = uint32(getEnvIntOrDefault("BINANCE_BREAKER_MAX_FAILURES", orDefaultInt(int(cfg.BinanceConfig.BreakerMaxFailures), 5)))
	cfg.BinanceConfig.BreakerOpenTimeout = getEnvDurationOrDefault("BINANCE_BREAKER_OPEN_TIMEOUT", orDefaultDuration(cfg.BinanceConfig.BreakerOpenTimeout, 30*time.Second))

	cfg.PostgresConfig.Host = getEnvOrDefault("POSTGRES_HOST", orDefault(cfg.PostgresConfig.Host, "localhost"))
	cfg.PostgresConfig.Port = getEnvIntOrDefault("POSTGRES_PORT", orDefaultInt(cfg.PostgresConfig.Port, 5432))
	cfg.PostgresConfig.User = getEnvOrDefault("POSTGRES_USER", orDefault(cfg.PostgresConfig.User, "cryptosignal"))
	cfg.PostgresConfig.Password = getEnvOrDefault("POSTGRES_PASSWORD", cfg.PostgresConfig.Password)
	cfg.PostgresConfig.Database = getEnvOrDefault("POSTGRES_DATABASE", orDefault(cfg.PostgresConfig.Database, "cryptosignal"))
	cfg.PostgresConfig.SSLMode = getEnvOrDefault("POSTGRES_SSL_MODE", orDefault(cfg.PostgresConfig.SSLMode, "disable"))

	cfg.RedisConfig.Enabled = getEnvOrDefault("REDIS_ENABLED", strconv.FormatBool(cfg.RedisConfig.Enabled)) == "true"
	cfg.RedisConfig.Address = getEnvOrDefault("REDIS_ADDRESS", orDefault(cfg.RedisConfig.Address, "localhost:6379"))
	cfg.RedisConfig.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisConfig.Password)
	cfg.RedisConfig.DB = getEnvIntOrDefault("REDIS_DB", cfg.RedisConfig.DB)
	cfg.RedisConfig.PoolSize = getEnvIntOrDefault("REDIS_POOL_SIZE", orDefaultInt(cfg.RedisConfig.PoolSize, 10))
	cfg.RedisConfig.TTL = getEnvDurationOrDefault("REDIS_TTL", orDefaultDuration(cfg.RedisConfig.TTL, 30*time.Second))

	cfg.ServerConfig.Port = getEnvIntOrDefault("SERVER_PORT", orDefaultInt(cfg.ServerConfig.Port, 8080))
	cfg.ServerConfig.Host = getEnvOrDefault("SERVER_HOST", orDefault(cfg.ServerConfig.Host, "0.0.0.0"))
	cfg.ServerConfig.ProductionMode = getEnvOrDefault("SERVER_PRODUCTION_MODE", strconv.FormatBool(cfg.ServerConfig.ProductionMode)) == "true"
	cfg.ServerConfig.RateLimitPerMin = getEnvIntOrDefault("SERVER_RATE_LIMIT_PER_MIN", orDefaultInt(cfg.ServerConfig.RateLimitPerMin, 120))
	cfg.ServerConfig.ShutdownTimeout = getEnvDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", orDefaultDuration(cfg.ServerConfig.ShutdownTimeout, 10*time.Second))

	cfg.AuthConfig.Enabled = getEnvOrDefault("AUTH_ENABLED", strconv.FormatBool(cfg.AuthConfig.Enabled)) == "true"
	cfg.AuthConfig.JWTSecret = getEnvOrDefault("AUTH_JWT_SECRET", cfg.AuthConfig.JWTSecret)

	cfg.VaultConfig.Enabled = getEnvOrDefault("VAULT_ENABLED", strconv.FormatBool(cfg.VaultConfig.Enabled)) == "true"
	cfg.VaultConfig.Address = getEnvOrDefault("VAULT_ADDR", orDefault(cfg.VaultConfig.Address, "http://localhost:8200"))
	cfg.VaultConfig.Token = getEnvOrDefault("VAULT_TOKEN", cfg.VaultConfig.Token)
	cfg.VaultConfig.MountPath = getEnvOrDefault("VAULT_MOUNT_PATH", orDefault(cfg.VaultConfig.MountPath, "secret"))
	cfg.VaultConfig.SecretPath = getEnvOrDefault("VAULT_SECRET_PATH", orDefault(cfg.VaultConfig.SecretPath, "cryptosignal-engine/binance"))
	cfg.VaultConfig.TLSEnabled = getEnvOrDefault("VAULT_TLS_ENABLED", strconv.FormatBool(cfg.VaultConfig.TLSEnabled)) == "true"

	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", orDefault(cfg.LoggingConfig.Level, "info"))
	cfg.LoggingConfig.JSONFormat = getEnvOrDefault("LOG_JSON", "true") == "true"
}

func orDefault(v, d string) string {
	if v == "" {
		return d
	}
	return v
}

func orDefaultInt(v, d int) int {
	if v == 0 {
		return d
	}
	return v
}

func orDefaultFloat(v, d float64) float64 {
	if v == 0 {
		return d
	}
	return v
}

func orDefaultDuration(v, d time.Duration) time.Duration {
	if v == 0 {
		return d
	}
	return v
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
