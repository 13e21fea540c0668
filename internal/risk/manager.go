// Package risk implements the position-sizing and account-state
// tracking the signal enricher and paper matcher share (spec §4.G
// position size, §3 Account).
package risk

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"cryptosignal-engine/internal/errs"
)

// Config holds the risk parameters validated once at construction.
// RiskPct must lie in (0, 0.05] per spec §4.G; out-of-range values are
// a ConfigError, the only error kind allowed to fail construction.
type Config struct {
	RiskPct          float64 // fraction, e.g. 0.01 for 1%
	MaxOpenPositions int
	MaxDailyDrawdownPct float64
}

// DefaultConfig matches spec §4.G defaults: 1% risk per trade.
func DefaultConfig() Config {
	return Config{RiskPct: 0.01, MaxOpenPositions: 5, MaxDailyDrawdownPct: 0.10}
}

func (c Config) validate() error {
	if c.RiskPct <= 0 || c.RiskPct > 0.05 {
		return errs.New(errs.KindConfigError, "risk_pct must lie in (0, 0.05]")
	}
	if c.MaxOpenPositions <= 0 {
		return errs.New(errs.KindConfigError, "max_open_positions must be positive")
	}
	return nil
}

// Manager tracks account balance, open-position count, and daily P&L,
// and computes risk-consistent position sizes. All mutations happen on
// the single ingestion thread (spec §5); the mutex exists purely to
// let accessor snapshots read concurrently without blocking ingestion.
type Manager struct {
	mu sync.RWMutex

	cfg Config

	accountBalance float64
	openPositions  int
	dailyPnL       float64
	dailyReset     time.Time
}

// New validates cfg and constructs a Manager. Returns a ConfigError on
// an invalid risk_pct or position-count cap.
func New(cfg Config, now time.Time) (*Manager, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Manager{cfg: cfg, dailyReset: now.Truncate(24 * time.Hour)}, nil
}

// SetAccountBalance updates the balance used for sizing.
func (m *Manager) SetAccountBalance(balance float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accountBalance = balance
}

// AccountBalance returns the current tracked balance.
func (m *Manager) AccountBalance() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.accountBalance
}

// CanOpenPosition reports whether the position cap and the daily
// drawdown limit both still permit a new paper position.
func (m *Manager) CanOpenPosition(now time.Time) (bool, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetDailyIfNeeded(now)

	if m.openPositions >= m.cfg.MaxOpenPositions {
		return false, "max open positions reached"
	}
	if m.accountBalance > 0 {
		drawdown := -m.dailyPnL / m.accountBalance
		if drawdown >= m.cfg.MaxDailyDrawdownPct {
			return false, "daily drawdown limit reached"
		}
	}
	return true, ""
}

// PositionSize implements spec §4.G's formula exactly:
// size = floor_to_8dp((account * risk_pct) / |entry - SL|), returning
// zero when the stop distance is zero. Per §9, quantities are
// truncated — never rounded — to 8 decimals, matching exchange
// behavior; shopspring/decimal gives an exact truncation that avoids
// float64 rounding artifacts at the 8th decimal place.
func (m *Manager) PositionSize(entry, stopLoss float64) float64 {
	m.mu.RLock()
	balance := m.accountBalance
	riskPct := m.cfg.RiskPct
	m.mu.RUnlock()

	distance := entry - stopLoss
	if distance < 0 {
		distance = -distance
	}
	if distance == 0 || balance <= 0 {
		return 0
	}

	riskAmount := decimal.NewFromFloat(balance).Mul(decimal.NewFromFloat(riskPct))
	size := riskAmount.Div(decimal.NewFromFloat(distance))
	truncated := size.Truncate(8)

	f, _ := truncated.Float64()
	if f < 0 {
		return 0
	}
	return f
}

// RegisterOpen records a new open position against the cap.
func (m *Manager) RegisterOpen() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.openPositions++
}

// RegisterClose records a position closing and its realized P&L.
func (m *Manager) RegisterClose(now time.Time, pnl float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.openPositions > 0 {
		m.openPositions--
	}
	m.resetDailyIfNeeded(now)
	m.dailyPnL += pnl
}

// OpenPositionCount returns the number of currently tracked open positions.
func (m *Manager) OpenPositionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.openPositions
}

// DailyPnL returns the realized P&L accumulated since the last UTC-day reset.
func (m *Manager) DailyPnL() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dailyPnL
}

func (m *Manager) resetDailyIfNeeded(now time.Time) {
	today := now.Truncate(24 * time.Hour)
	if today.After(m.dailyReset) {
		m.dailyPnL = 0
		m.dailyReset = today
	}
}
