package backtest

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/quantlab/backcast/config"
	"github.com/quantlab/backcast/decision"
	"github.com/quantlab/backcast/indicators"
	"github.com/quantlab/backcast/journal"
	"github.com/quantlab/backcast/market"
	"github.com/quantlab/backcast/sim"
)

// Exit reason codes produced by the engine itself.
const (
	ReasonStop      = "STOP"
	ReasonTP1       = "TP1"
	ReasonTP2       = "TP2"
	ReasonTimeExit  = "TIME_EXIT"
	ReasonEndOfData = "END_OF_DATA"
)

// EvaluationHook may inspect and rewrite the pipeline result before the
// engine acts on it. An absent hook must be behaviorally identical to an
// identity hook: the engine guarantees its own behavior does not depend on
// whether a hook is installed.
type EvaluationHook func(res *decision.Result, meta map[string]any, bars []market.Bar)

// PostExecutionHook observes the execution outcome of each processed bar.
// It runs after the engine's own post-execution step (cooldown recording)
// and must not assume it can influence it.
type PostExecutionHook func(symbol string, barIndex int, action decision.Action, executed bool)

// Hooks bundles the two optional instrumentation points.
type Hooks struct {
	Evaluation    EvaluationHook
	PostExecution PostExecutionHook
}

// HookRecord is one entry of the hook-invocation log.
type HookRecord struct {
	BarIndex int
	Action   decision.Action
	Executed bool
}

// Report is the complete output of one run.
type Report struct {
	Trades  []sim.Trade
	Summary Summary

	// HookLog holds one record per processed (post-warmup) bar, whether or
	// not hooks are installed, so instrumented and bare runs can be
	// compared record-for-record.
	HookLog []HookRecord
}

// Params wires an Engine.
type Params struct {
	Decision *decision.Engine
	Tracker  *sim.Tracker // optional; built from the config's account section when nil
	Journal  journal.Journal
	Hooks    Hooks
	Logger   *zap.Logger
}

// Engine drives one deterministic bar-by-bar replay: WARMUP until the
// configured bar count has passed, then one pipeline evaluation per bar with
// exits always evaluated before entries. A run either completes the full bar
// range or the caller discards everything it produced; there is no per-bar
// recovery.
type Engine struct {
	dec     *decision.Engine
	tracker *sim.Tracker
	journal journal.Journal
	hooks   Hooks
	log     *zap.Logger

	entryBar int
}

// New validates wiring. Only the decision engine is required.
func New(p Params) (*Engine, error) {
	if p.Decision == nil {
		return nil, fmt.Errorf("backtest: decision engine is required")
	}
	tracker := p.Tracker
	if tracker == nil {
		tracker = sim.NewTracker(p.Decision.Config().Account, p.Logger)
	}
	log := p.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		dec:     p.Decision,
		tracker: tracker,
		journal: p.Journal,
		hooks:   p.Hooks,
		log:     log,
	}, nil
}

// Tracker exposes the position tracker (primarily for tests and reporting).
func (e *Engine) Tracker() *sim.Tracker { return e.tracker }

// Run replays the bar series. Arrays are the precomputed indicator series
// keyed by the names in the indicators package; pass nil to force the
// on-the-fly fallback (the outcome must be identical either way).
func (e *Engine) Run(bars []market.Bar, arrays map[string][]float64) (*Report, error) {
	if len(bars) == 0 {
		return nil, fmt.Errorf("backtest: empty bar series")
	}
	cfg := e.dec.Config()

	// Independent runs never share state.
	e.tracker.Reset()
	e.dec.ResetState()
	e.entryBar = -1

	report := &Report{}
	initialCapital := e.tracker.Capital()
	peak := initialCapital
	maxDD := 0.0

	for i := range bars {
		if i < cfg.WarmupBars {
			continue
		}
		bar := bars[i]

		w, err := market.NewWindow(bars, i, arrays)
		if err != nil {
			return nil, err
		}

		res, meta, err := e.dec.Decide(w)
		if err != nil {
			return nil, fmt.Errorf("backtest: bar %d: %w", i, err)
		}
		evalIdx := res.BarIndex
		if e.hooks.Evaluation != nil {
			e.hooks.Evaluation(&res, meta, w.Bars())
		}

		// Exits always run before any new entry is considered.
		e.applyExits(i, bar)

		executed := false
		if e.tracker.Position() == nil && res.Action != decision.ActionNone && res.Size > 0 {
			executed = e.enterPosition(i, bar, res)
		}

		// Post-execution step: the single authorized call site for
		// cooldown recording, entries only. Recording uses the index the
		// decision evaluated, so live and replay space entries identically.
		if executed {
			e.dec.Cooldown().RecordTrade(cfg.Symbol, evalIdx)
		}
		if e.hooks.PostExecution != nil {
			e.hooks.PostExecution(cfg.Symbol, i, res.Action, executed)
		}

		report.HookLog = append(report.HookLog, HookRecord{
			BarIndex: i,
			Action:   res.Action,
			Executed: executed,
		})

		e.tracker.UpdatePnL(bar.Close)
		equity := e.tracker.Equity(bar.Close)
		if equity > peak {
			peak = equity
		}
		if peak > 0 {
			if dd := (peak - equity) / peak; dd > maxDD {
				maxDD = dd
			}
		}
		if e.journal != nil {
			if err := e.journal.RecordEquity(journal.EquitySnapshot{
				Time:    bar.Time,
				Balance: e.tracker.Capital(),
				Equity:  equity,
			}); err != nil {
				return nil, fmt.Errorf("backtest: journal equity: %w", err)
			}
		}
	}

	// Terminal: the loop ends at the last bar; whatever remains open is
	// closed at the final close.
	if e.tracker.Position() != nil {
		last := bars[len(bars)-1]
		e.recordTrade(e.tracker.ClosePositionWithReason(last.Close, last.Time, ReasonEndOfData))
	}

	barsProcessed := len(bars) - cfg.WarmupBars
	if barsProcessed < 0 {
		barsProcessed = 0
	}
	report.Trades = e.tracker.Trades()
	report.Summary = summarize(report.Trades, initialCapital, e.tracker.Capital(), maxDD, barsProcessed)
	if e.journal != nil {
		for _, tr := range report.Trades {
			if err := e.journal.RecordTrade(journal.FromSim(tr)); err != nil {
				return nil, fmt.Errorf("backtest: journal trade: %w", err)
			}
		}
	}
	e.log.Info("run complete",
		zap.Int("bars", barsProcessed),
		zap.Int("trades", report.Summary.Trades),
		zap.Float64("return", report.Summary.TotalReturn),
		zap.Float64("max_drawdown", report.Summary.MaxDrawdown))
	return report, nil
}

// applyExits walks the exit ladder for the open position, stop first, then
// the tiered partial take-profits, then the time stop. Any step may close
// the position entirely; later steps re-check.
func (e *Engine) applyExits(barIndex int, bar market.Bar) {
	cfg := e.dec.Config()

	pos := e.tracker.Position()
	if pos == nil {
		return
	}

	if stop, ok := pos.ExitCtx["stop"]; ok && cfg.Exit.StopAtSwing {
		hit := (pos.Side == sim.Long && bar.Low <= stop) ||
			(pos.Side == sim.Short && bar.High >= stop)
		if hit {
			// Stop-first: when stop and take land in the same bar the
			// worst case for the trader wins.
			e.recordTrade(e.tracker.ClosePositionWithReason(stop, bar.Time, ReasonStop))
			return
		}
	}

	for _, tier := range []struct {
		key      string
		reason   string
		fraction float64
	}{
		{"tp1", ReasonTP1, cfg.Exit.TP1Fraction},
		{"tp2", ReasonTP2, cfg.Exit.TP2Fraction},
	} {
		pos = e.tracker.Position()
		if pos == nil {
			return
		}
		target, ok := pos.ExitCtx[tier.key]
		if !ok || tier.fraction <= 0 || tierFired(pos, tier.reason) {
			continue
		}
		hit := (pos.Side == sim.Long && bar.High >= target) ||
			(pos.Side == sim.Short && bar.Low <= target)
		if hit {
			e.recordTrade(e.tracker.PartialClose(pos.InitialSize*tier.fraction, target, bar.Time, tier.reason))
		}
	}

	pos = e.tracker.Position()
	if pos == nil {
		return
	}
	if cfg.Exit.MaxHoldingBars > 0 && e.entryBar >= 0 && barIndex-e.entryBar >= cfg.Exit.MaxHoldingBars {
		e.recordTrade(e.tracker.ClosePositionWithReason(bar.Close, bar.Time, ReasonTimeExit))
	}
}

// tierFired reports whether a partial exit with the given reason has already
// been taken on this position.
func tierFired(pos *sim.Position, reason string) bool {
	for _, pe := range pos.Partials {
		if pe.Reason == reason {
			return true
		}
	}
	return false
}

// enterPosition executes an entry signal and freezes the exit-level context
// captured from the HTF structure at entry time.
func (e *Engine) enterPosition(barIndex int, bar market.Bar, res decision.Result) bool {
	if bar.Close <= 0 {
		return false
	}
	side := sim.Long
	if res.Action == decision.ActionShort {
		side = sim.Short
	}
	units := e.tracker.Capital() * res.Size / bar.Close
	pos := e.tracker.OpenPosition(side, units, bar.Close, bar.Time, e.dec.Config().Symbol)
	if pos == nil {
		return false
	}
	e.tracker.SetExitContext(buildExitContext(side, pos.EntryPrice, res, e.dec.Config().Exit))
	e.entryBar = barIndex
	return true
}

// buildExitContext freezes take-profit targets from the HTF level map
// relative to the entry fill. The configured level keys win when the level
// exists and lies beyond entry; otherwise the nearest level beyond entry
// becomes TP1 and the next one TP2. The stop goes to the opposite swing
// bound. Positions opened without available HTF structure get no frozen
// levels and exit only on the time stop or end of data.
func buildExitContext(side sim.Side, entry float64, res decision.Result, exit config.Exit) map[string]float64 {
	if !res.HTF.Available {
		return nil
	}
	ctx := make(map[string]float64, 3)

	beyond := func(lv float64) bool {
		return (side == sim.Long && lv > entry) || (side == sim.Short && lv < entry)
	}

	var fallback []float64
	for _, lv := range res.HTF.Levels {
		if beyond(lv) {
			fallback = append(fallback, lv)
		}
	}
	// Nearest-first relative to entry.
	for i := 0; i < len(fallback); i++ {
		for j := i + 1; j < len(fallback); j++ {
			di := fallback[i] - entry
			dj := fallback[j] - entry
			if di < 0 {
				di = -di
			}
			if dj < 0 {
				dj = -dj
			}
			if dj < di {
				fallback[i], fallback[j] = fallback[j], fallback[i]
			}
		}
	}

	configured := func(key string) (float64, bool) {
		lv, ok := res.HTF.Levels[key]
		return lv, ok && beyond(lv)
	}

	tp1, ok1 := configured(exit.TP1LevelKey)
	if !ok1 && len(fallback) > 0 {
		tp1, ok1 = fallback[0], true
	}
	tp2, ok2 := configured(exit.TP2LevelKey)
	if !ok2 && len(fallback) > 1 {
		tp2, ok2 = fallback[1], true
	}
	if ok1 {
		ctx["tp1"] = tp1
	}
	if ok2 && (!ok1 || tp2 != tp1) {
		ctx["tp2"] = tp2
	}
	if side == sim.Long {
		ctx["stop"] = res.HTF.SwingLow
	} else {
		ctx["stop"] = res.HTF.SwingHigh
	}
	return ctx
}

func (e *Engine) recordTrade(tr *sim.Trade) {
	if tr == nil {
		return
	}
	if !tr.IsPartial {
		e.entryBar = -1
	}
}

// PrecomputeArrays is a convenience wrapper so callers can build the fast
// path arrays with the engine's own indicator config.
func (e *Engine) PrecomputeArrays(bars []market.Bar) (map[string][]float64, error) {
	return indicators.Precompute(bars, e.dec.Config().Indicators)
}
