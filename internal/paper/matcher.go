package paper

import (
	"context"
	"time"

	"github.com/google/uuid"

	"cryptosignal-engine/internal/errs"
	"cryptosignal-engine/internal/logging"
	"cryptosignal-engine/internal/signal"
)

// Config tunes the matcher's isolated-margin model.
type Config struct {
	DefaultLeverage        float64 // default 1 (no liquidation)
	MaintenanceMarginRate  float64 // default 0.005
}

// DefaultConfig matches spec §4.H's defaults.
func DefaultConfig() Config {
	return Config{DefaultLeverage: 1, MaintenanceMarginRate: 0.005}
}

// Matcher owns every PENDING/OPEN position and applies spec §4.H's
// tick-driven state machine. Like the rest of the engine it is driven
// exclusively from the single ingestion thread (spec §5) — it holds
// no internal locking of its own.
type Matcher struct {
	cfg      Config
	repo     OrderRepository
	health   HealthRecorder
	wallet   float64
	byID     map[string]*Position
	lastMark map[string]float64
	logger   *logging.Logger
}

// NewMatcher constructs a Matcher. repo and health may be nil; a nil
// health recorder is replaced with a no-op sink.
func NewMatcher(cfg Config, repo OrderRepository, health HealthRecorder, initialWallet float64) *Matcher {
	if health == nil {
		health = noopHealth{}
	}
	return &Matcher{
		cfg:      cfg,
		repo:     repo,
		health:   health,
		wallet:   initialWallet,
		byID:     make(map[string]*Position),
		lastMark: make(map[string]float64),
		logger:   logging.WithComponent("matcher"),
	}
}

// AcceptSignal creates a PENDING position from an enriched signal
// (spec §4.H "Signal accepted" event). NEUTRAL signals are rejected.
func (m *Matcher) AcceptSignal(ctx context.Context, sig signal.EnrichedSignal, symbol string, now time.Time) (*Position, error) {
	if sig.Side == signal.SideNeutral {
		return nil, errs.New(errs.KindMatcherInvariant, "cannot open a position from a NEUTRAL signal")
	}

	side := SideLong
	if sig.Side == signal.SideSell {
		side = SideShort
	}

	leverage := m.cfg.DefaultLeverage
	if leverage <= 0 {
		leverage = 1
	}
	margin := sig.EntryPrice * sig.PositionSize / leverage

	liqPrice, hasLiq := computeLiquidationPrice(side, sig.EntryPrice, leverage, m.cfg.MaintenanceMarginRate)

	var tps []TPTarget
	for _, tp := range sig.TPLevels {
		tps = append(tps, TPTarget{Price: tp.Price, Weight: tp.Weight})
	}

	p := &Position{
		ID:               uuid.New().String(),
		Symbol:           symbol,
		Side:             side,
		Quantity:         sig.PositionSize,
		originalQuantity: sig.PositionSize,
		EntryPrice:       sig.EntryPrice,
		StopLoss:         sig.StopLoss,
		TakeProfit:       tps,
		Confidence:       sig.Confidence,
		Margin:           margin,
		Leverage:         leverage,
		MaintenanceRate:  m.cfg.MaintenanceMarginRate,
		HasLiquidation:   hasLiq,
		LiquidationPrice: liqPrice,
		State:            StatePending,
	}

	m.byID[p.ID] = p
	if m.repo != nil {
		if err := m.repo.Save(ctx, p); err != nil {
			m.health.RecordMatcherError()
			m.logger.Error("failed to persist pending position", "position_id", p.ID, "symbol", symbol, "error", err)
		}
	}
	m.logger.Info("position pending", "position_id", p.ID, "symbol", symbol, "side", side, "entry_price", p.EntryPrice)
	return p, nil
}

// OnTick marks every PENDING/OPEN position for symbol against the
// bar's (close, high, low) and applies at most one state transition
// per position (spec §3/§8).
func (m *Matcher) OnTick(ctx context.Context, symbol string, close, high, low float64, now time.Time) []*Position {
	m.lastMark[symbol] = close
	var changed []*Position

	for _, p := range m.byID {
		if p.Symbol != symbol || p.State == StateClosed {
			continue
		}
		if p.State == StatePending {
			if m.tryOpen(p, high, low, now) {
				changed = append(changed, p)
			}
			continue
		}
		if m.tryClose(ctx, p, high, low, now) {
			changed = append(changed, p)
		}
	}
	return changed
}

func (m *Matcher) tryOpen(p *Position, high, low float64, now time.Time) bool {
	if low <= p.EntryPrice && p.EntryPrice <= high {
		p.State = StateOpen
		p.OpenTime = now
		m.wallet -= p.Margin
		return true
	}
	return false
}

func (m *Matcher) tryClose(ctx context.Context, p *Position, high, low float64, now time.Time) bool {
	liqHit := p.HasLiquidation && low <= p.LiquidationPrice && p.LiquidationPrice <= high
	tpIdx, tpHit := m.nextTPHit(p, high, low)
	slHit := m.slHit(p, high, low)

	switch {
	case liqHit:
		if tpHit {
			m.health.RecordLiquidationPrecedence()
		}
		m.logger.Warn("position liquidated", "position_id", p.ID, "symbol", p.Symbol, "liquidation_price", p.LiquidationPrice)
		m.closeFully(ctx, p, p.LiquidationPrice, ExitLiquidation, now)
		return true
	case slHit && tpHit:
		m.health.RecordSLTPAmbiguity()
		m.closeFully(ctx, p, p.StopLoss, ExitStopLoss, now)
		return true
	case slHit:
		m.closeFully(ctx, p, p.StopLoss, ExitStopLoss, now)
		return true
	case tpHit:
		m.applyTP(ctx, p, tpIdx, now)
		return true
	default:
		return false
	}
}

func (m *Matcher) slHit(p *Position, high, low float64) bool {
	if p.Side == SideLong {
		return low <= p.StopLoss
	}
	return high >= p.StopLoss
}

// nextTPHit reports whether the nearest remaining TP level was
// touched within the bar's range, and its index in p.TakeProfit.
func (m *Matcher) nextTPHit(p *Position, high, low float64) (int, bool) {
	if len(p.TakeProfit) == 0 {
		return 0, false
	}
	tp := p.TakeProfit[0]
	if p.Side == SideLong {
		return 0, high >= tp.Price
	}
	return 0, low <= tp.Price
}

// applyTP realizes PnL pro-rata for the hit level. The last remaining
// level always closes the position in full (spec §4.H.4).
func (m *Matcher) applyTP(ctx context.Context, p *Position, idx int, now time.Time) {
	tp := p.TakeProfit[idx]
	last := len(p.TakeProfit) == 1

	if last {
		m.closeFully(ctx, p, tp.Price, ExitTakeProfit, now)
		return
	}

	closedQty := p.originalQuantity * tp.Weight
	if closedQty > p.Quantity {
		closedQty = p.Quantity
	}
	pnl := closedQty * priceDelta(p.Side, p.EntryPrice, tp.Price)

	p.Quantity -= closedQty
	p.TakeProfit = p.TakeProfit[1:]
	m.wallet += pnl
	m.persist(ctx, p)
}

func (m *Matcher) closeFully(ctx context.Context, p *Position, execPrice float64, reason ExitReason, now time.Time) {
	pnl := p.Quantity * priceDelta(p.Side, p.EntryPrice, execPrice)
	realized := pnl
	p.RealizedPnL = &realized
	p.ExitReason = reason
	p.State = StateClosed
	t := now
	p.CloseTime = &t
	m.wallet += pnl + p.Margin
	p.Quantity = 0
	m.logger.Info("position closed", "position_id", p.ID, "symbol", p.Symbol, "reason", reason, "realized_pnl", pnl)
	m.persist(ctx, p)
}

// CloseManually idempotently closes a position by id (spec §4.H
// "Manual close"): a no-op if the position is already CLOSED or
// unknown.
func (m *Matcher) CloseManually(ctx context.Context, id string, markPrice float64, now time.Time) error {
	p, ok := m.byID[id]
	if !ok {
		return errs.New(errs.KindMatcherInvariant, "unknown position id")
	}
	if p.State == StateClosed {
		return nil
	}
	m.closeFully(ctx, p, markPrice, ExitManual, now)
	return nil
}

func (m *Matcher) persist(ctx context.Context, p *Position) {
	if m.repo == nil {
		return
	}
	if err := m.repo.Update(ctx, p); err != nil {
		m.health.RecordMatcherError()
		m.logger.Error("failed to persist position update", "position_id", p.ID, "error", err)
	}
}

func priceDelta(side Side, entry, mark float64) float64 {
	if side == SideLong {
		return mark - entry
	}
	return entry - mark
}

// Positions returns every tracked position, regardless of state.
func (m *Matcher) Positions() []*Position {
	out := make([]*Position, 0, len(m.byID))
	for _, p := range m.byID {
		out = append(out, p)
	}
	return out
}

// Position looks up a single tracked position by id.
func (m *Matcher) Position(id string) (*Position, bool) {
	p, ok := m.byID[id]
	return p, ok
}

// WalletBalance returns the realized cash balance: deposits plus every
// closed position's PnL and released margin, minus margin currently
// locked in open positions.
func (m *Matcher) WalletBalance() float64 {
	return m.wallet
}
