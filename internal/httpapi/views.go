package httpapi

import (
	"time"

	"cryptosignal-engine/internal/candle"
	"cryptosignal-engine/internal/orchestrator"
	"cryptosignal-engine/internal/paper"
	"cryptosignal-engine/internal/signal"
)

// candleView is the wire shape for candle.Candle.
type candleView struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

func newCandleView(c candle.Candle) candleView {
	return candleView{
		Timestamp: c.Timestamp,
		Open:      c.Open,
		High:      c.High,
		Low:       c.Low,
		Close:     c.Close,
		Volume:    c.Volume,
	}
}

func newCandleViews(cs []candle.Candle) []candleView {
	out := make([]candleView, 0, len(cs))
	for _, c := range cs {
		out = append(out, newCandleView(c))
	}
	return out
}

type tpLevelView struct {
	Price  float64 `json:"price"`
	Weight float64 `json:"weight"`
}

// signalView is the wire shape for signal.EnrichedSignal.
type signalView struct {
	Side              signal.Side            `json:"side"`
	Confidence        float64                `json:"confidence"`
	ConfidenceLevel   signal.ConfidenceLevel `json:"confidence_level"`
	ReferencePrice    float64                `json:"reference_price"`
	Timestamp         time.Time              `json:"timestamp"`
	Reasons           []string               `json:"reasons"`
	EntryPrice        float64                `json:"entry_price"`
	SwingAnchored     bool                   `json:"swing_anchored"`
	StopLoss          float64                `json:"stop_loss"`
	TPLevels          []tpLevelView          `json:"tp_levels"`
	RiskRewardRatio   float64                `json:"risk_reward_ratio"`
	PositionSize      float64                `json:"position_size"`
	IsLimitOrder      bool                   `json:"is_limit_order"`
}

func newSignalView(s signal.EnrichedSignal) signalView {
	tps := make([]tpLevelView, 0, len(s.TPLevels))
	for _, tp := range s.TPLevels {
		tps = append(tps, tpLevelView{Price: tp.Price, Weight: tp.Weight})
	}
	return signalView{
		Side:            s.Side,
		Confidence:      s.Confidence,
		ConfidenceLevel: s.ConfidenceLevel,
		ReferencePrice:  s.ReferencePrice,
		Timestamp:       s.Timestamp,
		Reasons:         s.Reasons,
		EntryPrice:      s.EntryPrice,
		SwingAnchored:   s.SwingAnchored,
		StopLoss:        s.StopLoss,
		TPLevels:        tps,
		RiskRewardRatio: s.RiskRewardRatio,
		PositionSize:    s.PositionSize,
		IsLimitOrder:    s.IsLimitOrder,
	}
}

// positionView is the wire shape for paper.Position.
type positionView struct {
	ID               string            `json:"id"`
	Symbol           string            `json:"symbol"`
	Side             paper.Side        `json:"side"`
	Quantity         float64           `json:"quantity"`
	EntryPrice       float64           `json:"entry_price"`
	StopLoss         float64           `json:"stop_loss"`
	TakeProfit       []tpLevelView     `json:"take_profit"`
	Margin           float64           `json:"margin"`
	Leverage         float64           `json:"leverage"`
	HasLiquidation   bool              `json:"has_liquidation"`
	LiquidationPrice float64           `json:"liquidation_price,omitempty"`
	State            paper.State       `json:"state"`
	OpenTime         time.Time         `json:"open_time,omitempty"`
	CloseTime        *time.Time        `json:"close_time,omitempty"`
	RealizedPnL      *float64          `json:"realized_pnl,omitempty"`
	ExitReason       paper.ExitReason  `json:"exit_reason,omitempty"`
}

func newPositionView(p *paper.Position) positionView {
	tps := make([]tpLevelView, 0, len(p.TakeProfit))
	for _, tp := range p.TakeProfit {
		tps = append(tps, tpLevelView{Price: tp.Price, Weight: tp.Weight})
	}
	return positionView{
		ID:               p.ID,
		Symbol:           p.Symbol,
		Side:             p.Side,
		Quantity:         p.Quantity,
		EntryPrice:       p.EntryPrice,
		StopLoss:         p.StopLoss,
		TakeProfit:       tps,
		Margin:           p.Margin,
		Leverage:         p.Leverage,
		HasLiquidation:   p.HasLiquidation,
		LiquidationPrice: p.LiquidationPrice,
		State:            p.State,
		OpenTime:         p.OpenTime,
		CloseTime:        p.CloseTime,
		RealizedPnL:      p.RealizedPnL,
		ExitReason:       p.ExitReason,
	}
}

func newPositionViews(ps []*paper.Position) []positionView {
	out := make([]positionView, 0, len(ps))
	for _, p := range ps {
		out = append(out, newPositionView(p))
	}
	return out
}

type healthView struct {
	IsRunning      bool      `json:"is_running"`
	LastTickTime   time.Time `json:"last_tick_time"`
	WarmupOK       bool      `json:"warmup_ok"`
	DroppedUpdates int64     `json:"dropped_updates"`
	MatcherErrors  int64     `json:"matcher_errors"`
}

func newHealthView(h orchestrator.HealthSnapshot) healthView {
	return healthView{
		IsRunning:      h.IsRunning,
		LastTickTime:   h.LastTickTime,
		WarmupOK:       h.WarmupOK,
		DroppedUpdates: h.DroppedUpdates,
		MatcherErrors:  h.MatcherErrors,
	}
}

type accountView struct {
	WalletBalance float64 `json:"wallet_balance"`
	MarginBalance float64 `json:"margin_balance"`
	UsedMargin    float64 `json:"used_margin"`
	Available     float64 `json:"available"`
	OpenPositions int     `json:"open_positions"`
}

func newAccountView(a orchestrator.AccountSummary) accountView {
	return accountView{
		WalletBalance: a.WalletBalance,
		MarginBalance: a.MarginBalance,
		UsedMargin:    a.UsedMargin,
		Available:     a.Available,
		OpenPositions: a.OpenPositions,
	}
}
