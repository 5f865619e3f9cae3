package sim

import (
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/quantlab/backcast/internal/id"
)

// Config holds the cost model applied to every fill.
type Config struct {
	InitialCapital float64 `yaml:"initial_capital"`
	SlippageBps    float64 `yaml:"slippage_bps"`
	CommissionRate float64 `yaml:"commission_rate"`
}

// Tracker is the position-accounting state machine: at most one open
// position, fractional exits with exact PnL attribution, and a realized
// trade log. All mutation goes through Tracker methods; nothing else owns
// Position state.
//
// Invalid requests (no open position, non-positive size) are silent no-ops
// returning nil, so the bar loop never needs exception-style handling for
// routine "nothing to close" cases.
type Tracker struct {
	cfg     Config
	capital float64
	pos     *Position
	trades  []Trade

	realized         float64
	cachedUnrealized float64

	log *zap.Logger
}

// NewTracker returns a tracker with fresh state. A nil logger is replaced by
// a nop logger so instrumentation can never alter outcomes.
func NewTracker(cfg Config, log *zap.Logger) *Tracker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Tracker{cfg: cfg, capital: cfg.InitialCapital, log: log}
}

// Reset restores the tracker to its initial state. Independent runs must not
// share tracker state.
func (t *Tracker) Reset() {
	t.capital = t.cfg.InitialCapital
	t.pos = nil
	t.trades = nil
	t.realized = 0
	t.cachedUnrealized = 0
}

// Position returns the open position, or nil when flat.
func (t *Tracker) Position() *Position { return t.pos }

// Trades returns the realized fills in execution order.
func (t *Tracker) Trades() []Trade { return t.trades }

// Capital returns current capital (initial capital plus realized PnL net of
// costs).
func (t *Tracker) Capital() float64 { return t.capital }

func (t *Tracker) slip(price float64) float64 {
	return price * t.cfg.SlippageBps / 10000
}

// entryFill applies slippage against the opener: longs buy up, shorts sell
// down.
func (t *Tracker) entryFill(side Side, price float64) float64 {
	if side == Long {
		return price + t.slip(price)
	}
	return price - t.slip(price)
}

// exitFill applies slippage against the closer: long exits sell down, short
// exits buy up.
func (t *Tracker) exitFill(side Side, price float64) float64 {
	if side == Long {
		return price - t.slip(price)
	}
	return price + t.slip(price)
}

// OpenPosition creates a new Position, charging entry commission against
// capital. A nil return means the request was invalid (already open, or
// non-positive size/price).
func (t *Tracker) OpenPosition(side Side, size, price float64, ts time.Time, symbol string) *Position {
	if t.pos != nil || size <= 0 || price <= 0 {
		return nil
	}
	fill := t.entryFill(side, price)
	t.capital -= size * fill * t.cfg.CommissionRate

	t.pos = &Position{
		ID:          id.New(),
		Symbol:      symbol,
		Side:        side,
		InitialSize: size,
		CurrentSize: size,
		EntryPrice:  fill,
		EntryTime:   ts,
	}
	t.log.Debug("position opened",
		zap.String("id", t.pos.ID),
		zap.String("symbol", symbol),
		zap.String("side", side.String()),
		zap.Float64("size", size),
		zap.Float64("fill", fill))
	return t.pos
}

// SetExitContext freezes exit-level context on the open position. No-op when
// flat.
func (t *Tracker) SetExitContext(ctx map[string]float64) {
	if t.pos == nil {
		return
	}
	t.pos.ExitCtx = ctx
}

// PartialClose realizes size units of the open position at price. Requests
// exceeding the remainder clamp to the full remainder and close the position
// outright (IsPartial=false) rather than being rejected. Returns nil for
// no-position and non-positive-size requests.
func (t *Tracker) PartialClose(size, price float64, ts time.Time, reason string) *Trade {
	if t.pos == nil || size <= 0 || price <= 0 {
		return nil
	}
	// Oversize clamp. The comparison runs on decimals so a remainder left
	// by earlier fractional fills cannot dodge the clamp on float dust.
	if decimal.NewFromFloat(size).Cmp(decimal.NewFromFloat(t.pos.CurrentSize)) >= 0 {
		return t.ClosePositionWithReason(price, ts, reason)
	}

	fill := t.exitFill(t.pos.Side, price)
	tr := t.realize(size, fill, ts, reason, true)

	t.pos.CurrentSize -= size
	t.pos.Partials = append(t.pos.Partials, PartialExit{
		Size:   size,
		Price:  fill,
		Time:   ts,
		Reason: reason,
	})
	return tr
}

// ClosePositionWithReason force-closes whatever remains of the open
// position. Returns nil when flat.
func (t *Tracker) ClosePositionWithReason(price float64, ts time.Time, reason string) *Trade {
	if t.pos == nil || price <= 0 {
		return nil
	}
	fill := t.exitFill(t.pos.Side, price)
	tr := t.realize(t.pos.CurrentSize, fill, ts, reason, false)

	t.log.Debug("position closed",
		zap.String("id", t.pos.ID),
		zap.String("reason", reason),
		zap.Float64("pnl", tr.PnL))
	t.pos = nil
	t.cachedUnrealized = 0
	return tr
}

// realize books one fill against the open position and returns the Trade.
func (t *Tracker) realize(size, fill float64, ts time.Time, reason string, partial bool) *Trade {
	p := t.pos
	pnl := float64(p.Side) * (fill - p.EntryPrice) * size
	pnl -= size * fill * t.cfg.CommissionRate

	t.capital += pnl
	t.realized += pnl

	tr := Trade{
		PositionID: p.ID,
		Symbol:     p.Symbol,
		Side:       p.Side,
		Size:       size,
		EntryPrice: p.EntryPrice,
		ExitPrice:  fill,
		EntryTime:  p.EntryTime,
		ExitTime:   ts,
		Reason:     reason,
		PnL:        pnl,
		IsPartial:  partial,
	}
	t.trades = append(t.trades, tr)
	return &tr
}

// RealizedPnL is a pure read over recorded fills.
func (t *Tracker) RealizedPnL() float64 { return t.realized }

// RemainingPct returns CurrentSize/InitialSize, or 0 when flat.
func (t *Tracker) RemainingPct() float64 {
	if t.pos == nil || t.pos.InitialSize <= 0 {
		return 0
	}
	return t.pos.CurrentSize / t.pos.InitialSize
}

// UnrealizedPnL values the live remainder at the given price without
// touching state.
func (t *Tracker) UnrealizedPnL(price float64) float64 {
	if t.pos == nil {
		return 0
	}
	return float64(t.pos.Side) * (price - t.pos.EntryPrice) * t.pos.CurrentSize
}

// UnrealizedPnLPct returns the live remainder's return relative to entry.
func (t *Tracker) UnrealizedPnLPct(price float64) float64 {
	if t.pos == nil || t.pos.EntryPrice <= 0 {
		return 0
	}
	return float64(t.pos.Side) * (price - t.pos.EntryPrice) / t.pos.EntryPrice
}

// UpdatePnL refreshes the cached unrealized figure. This is the only read
// path permitted a side effect, and the cache is the only thing it touches.
func (t *Tracker) UpdatePnL(price float64) float64 {
	t.cachedUnrealized = t.UnrealizedPnL(price)
	return t.cachedUnrealized
}

// Equity returns capital plus the unrealized value of the open remainder.
func (t *Tracker) Equity(price float64) float64 {
	return t.capital + t.UnrealizedPnL(price)
}
