// Package cache provides Redis-based caching for the orchestrator's
// latest snapshot (candle/signal/account), with graceful degradation:
// callers fall back to reading the in-process orchestrator directly
// when Redis is unavailable, matching the teacher's own circuit-
// breaker-over-Redis pattern.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config mirrors config.RedisConfig -- duplicated here rather than
// imported to avoid a dependency from internal/cache back onto the
// root config package.
type Config struct {
	Enabled  bool
	Address  string
	Password string
	DB       int
	PoolSize int
	TTL      time.Duration
}

// Service provides Redis-based caching with graceful degradation. When
// Redis is unavailable, operations return errors that callers should
// handle by falling back to reading the orchestrator's in-process
// snapshot accessors directly.
type Service struct {
	client *redis.Client
	ttl    time.Duration

	mu           sync.RWMutex
	healthy      bool
	failureCount int
	lastCheck    time.Time

	maxFailures     int
	checkInterval   time.Duration
}

// NewService connects to Redis and verifies connectivity. It returns a
// (degraded-mode) Service even when the initial ping fails, so callers
// can retry later rather than failing engine startup over a transient
// Redis outage.
func NewService(cfg Config) (*Service, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("redis is not enabled in configuration")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}

	svc := &Service{
		client:        client,
		ttl:           ttl,
		maxFailures:   3,
		checkInterval: 30 * time.Second,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("[CACHE] initial redis connection failed: %v", err)
		return svc, nil
	}

	svc.healthy = true
	svc.lastCheck = time.Now()
	log.Printf("[CACHE] redis connected at %s", cfg.Address)
	return svc, nil
}

// IsHealthy returns whether Redis is currently available.
func (s *Service) IsHealthy() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.healthy
}

func (s *Service) recordFailure() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failureCount++
	if s.failureCount >= s.maxFailures && s.healthy {
		log.Printf("[CACHE] circuit OPEN: redis marked unhealthy after %d failures", s.failureCount)
		s.healthy = false
	}
}

func (s *Service) recordSuccess() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.healthy {
		log.Printf("[CACHE] circuit CLOSED: redis recovered")
	}
	s.healthy = true
	s.failureCount = 0
	s.lastCheck = time.Now()
}

func (s *Service) checkHealth() {
	s.mu.RLock()
	shouldCheck := !s.healthy && time.Since(s.lastCheck) >= s.checkInterval
	s.mu.RUnlock()
	if !shouldCheck {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.client.Ping(ctx).Err(); err == nil {
			s.recordSuccess()
		}
	}()
}

// Get retrieves a raw string value from cache.
func (s *Service) Get(ctx context.Context, key string) (string, error) {
	s.checkHealth()
	if !s.IsHealthy() {
		return "", fmt.Errorf("redis unavailable (circuit breaker open)")
	}
	val, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return "", err
		}
		s.recordFailure()
		return "", fmt.Errorf("redis get failed: %w", err)
	}
	s.recordSuccess()
	return val, nil
}

// Set stores value (JSON-encoded unless already a string) under key
// with the service's configured TTL.
func (s *Service) Set(ctx context.Context, key string, value interface{}) error {
	s.checkHealth()
	if !s.IsHealthy() {
		return fmt.Errorf("redis unavailable (circuit breaker open)")
	}

	var data string
	switch v := value.(type) {
	case string:
		data = v
	case []byte:
		data = string(v)
	default:
		encoded, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("failed to marshal value: %w", err)
		}
		data = string(encoded)
	}

	if err := s.client.Set(ctx, key, data, s.ttl).Err(); err != nil {
		s.recordFailure()
		return fmt.Errorf("redis set failed: %w", err)
	}
	s.recordSuccess()
	return nil
}

// Close releases the underlying Redis connection pool.
func (s *Service) Close() error {
	return s.client.Close()
}
