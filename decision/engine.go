package decision

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/quantlab/backcast/config"
	"github.com/quantlab/backcast/htf"
	"github.com/quantlab/backcast/market"
	"github.com/quantlab/backcast/model"
	"github.com/quantlab/backcast/strategy"
)

// Action is the engine's final directive for one bar.
type Action string

const (
	ActionNone  Action = "NONE"
	ActionLong  Action = "LONG"
	ActionShort Action = "SHORT"
)

// Result is the full outcome of one per-bar pipeline pass.
type Result struct {
	Action      Action
	Size        float64 // fraction of capital; 0 when Action is NONE
	BarIndex    int     // as-of index the pipeline evaluated; in live mode one behind the loop index
	Probability float64
	Confidence  float64
	Regime      string
	HTFRegime   string
	Reason      string // set when Action is NONE
	Chain       strategy.Decision
	HTF         htf.Context
}

// Reason codes for NONE results that did not come out of the component
// chain.
const (
	ReasonNoDirection = "NO_DIRECTIONAL_SIGNAL"
	ReasonNoSizing    = "NO_SIZING_FOR_REGIME"
)

// Deps carries the engine's collaborators. Zero values get deterministic
// defaults.
type Deps struct {
	// Champion is consulted only when the config lacks the explicit replay
	// marker. During replay the supplied config is authoritative and
	// Champion is ignored entirely.
	Champion config.ChampionLoader

	Model     model.Model
	Extractor FeatureExtractor
	HTF       *htf.Provider
	Cooldown  *strategy.Cooldown
	Logger    *zap.Logger
}

// Engine orchestrates the per-bar pipeline in a strict stage order:
// feature extraction, regime classification, probability inference,
// confidence scaling, HTF regime derivation, final action+size.
type Engine struct {
	cfg       *config.Config
	mode      market.IndexMode
	model     model.Model
	extractor FeatureExtractor
	chain     *strategy.Composite
	cooldown  *strategy.Cooldown
	htf       *htf.Provider
	log       *zap.Logger
}

// New builds the engine. The config-authority rule is applied here: with the
// replay marker set the supplied config is final; without it the champion
// loader (when present) replaces the config entirely, so there is never a
// partial merge of replay and live settings.
func New(cfg *config.Config, deps Deps) (*Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("decision: config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("decision: %w", err)
	}
	if !cfg.Replay && deps.Champion != nil {
		loaded, err := deps.Champion.Load(cfg.Symbol, cfg.Timeframe)
		if err != nil {
			return nil, fmt.Errorf("decision: champion config: %w", err)
		}
		cfg = loaded
	}

	mode := market.Replay
	if !cfg.Replay {
		mode = market.Live
	}

	cooldown := deps.Cooldown
	if cooldown == nil {
		cooldown = strategy.NewCooldown(cfg.Gating.MinBarsBetweenTrades)
	}

	// Chain order is load-bearing: cheap stateful gate first, then
	// volatility, then structure, model confidence last.
	chain, err := strategy.NewComposite(
		cooldown,
		strategy.ATRFilter{MinATRPct: cfg.Gating.ATRMinPct, MaxATRPct: cfg.Gating.ATRMaxPct},
		strategy.HTFGate{UnknownConfidence: cfg.Gating.HTFUnknownConfidence},
		strategy.MLConfidence{MinProbability: cfg.Thresholds.MinProbability},
	)
	if err != nil {
		return nil, err
	}

	m := deps.Model
	if m == nil {
		m = model.Logistic{Weights: []float64{4, 2, 3, 2, 0, 0, 0.02}}
	}
	ex := deps.Extractor
	if ex == nil {
		ex = builtinExtractor{}
	}
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &Engine{
		cfg:       cfg,
		mode:      mode,
		model:     m,
		extractor: ex,
		chain:     chain,
		cooldown:  cooldown,
		htf:       deps.HTF,
		log:       log,
	}, nil
}

// Config returns the effective config after authority resolution.
func (e *Engine) Config() *config.Config { return e.cfg }

// Cooldown exposes the chain's cooldown gate so the backtest engine's
// post-execution step (the single authorized call site) can record entries.
func (e *Engine) Cooldown() *strategy.Cooldown { return e.cooldown }

// ResetState clears all engine-held mutable state between independent runs.
func (e *Engine) ResetState() { e.cooldown.Reset() }

// Decide runs the pipeline for the window's current bar. The second return
// value is the meta map handed to the evaluation hook; mutating it has no
// effect on engine state.
func (e *Engine) Decide(w *market.Window) (Result, map[string]any, error) {
	asOf, err := w.LastIndex(e.mode)
	if err != nil {
		return Result{Action: ActionNone}, nil, err
	}
	bar, err := w.Bar(asOf)
	if err != nil {
		return Result{Action: ActionNone}, nil, err
	}

	// Stage 1: as-of feature extraction.
	features, featMeta, err := e.extractor.Extract(w, asOf, e.cfg.Indicators)
	if err != nil {
		return Result{Action: ActionNone}, nil, err
	}

	// Stage 2: trend regime from EMA slope.
	regime := classifyRegime(w, asOf, e.cfg.Indicators, e.cfg.Gating.SlopeHysteresis)

	// Stage 3: regime-aware probability inference.
	prob, err := e.model.Predict(features, regime)
	if err != nil {
		return Result{Action: ActionNone}, nil, fmt.Errorf("decision: model: %w", err)
	}

	// Stage 4: confidence scaling from market-quality signals.
	qScale, qMeta := qualityScale(w, asOf, e.cfg.Indicators,
		e.cfg.Gating.ATRMinPct, e.cfg.Gating.ATRMaxPct)

	// Stage 5: HTF regime from swing structure.
	htfCtx := htf.Context{Reason: "HTF_DISABLED"}
	if e.htf != nil {
		htfCtx = e.htf.ContextAt(bar.Time)
	}
	htfRegime := htfCtx.Regime(bar.Close)

	meta := map[string]any{
		"features":  featMeta,
		"quality":   qMeta,
		"regime":    regime,
		"htf":       htfRegime,
		"prob":      prob,
		"mode":      e.mode.String(),
		"bar_index": asOf,
	}
	if htfCtx.Available {
		meta["htf_levels"] = htfCtx.Levels
	}

	res := Result{
		BarIndex:    asOf,
		Probability: prob,
		Regime:      regime,
		HTFRegime:   htfRegime,
		HTF:         htfCtx,
	}

	// Stage 6: final action + size.
	side := ActionNone
	switch regime {
	case RegimeBull:
		side = ActionLong
	case RegimeBear:
		side = ActionShort
	}
	if side == ActionNone {
		res.Action = ActionNone
		res.Reason = ReasonNoDirection
		return res, meta, nil
	}

	chainCtx := strategy.Context{
		strategy.KeySymbol:        e.cfg.Symbol,
		strategy.KeyBarIndex:      asOf,
		strategy.KeySide:          string(side),
		strategy.KeyMLProbability: prob,
		strategy.KeyHTFRegime:     htfRegime,
	}
	if v, ok := featMeta["atr_pct"]; ok {
		chainCtx[strategy.KeyATRPct] = v
	}

	res.Chain = e.chain.Evaluate(chainCtx)
	res.Confidence = res.Chain.Confidence * qScale

	if !res.Chain.Allowed {
		res.Action = ActionNone
		res.Reason = res.Chain.VetoReason
		return res, meta, nil
	}
	if res.Confidence < e.cfg.Thresholds.MinConfidence {
		res.Action = ActionNone
		res.Reason = strategy.ReasonConfidenceTooLow
		return res, meta, nil
	}

	sizing := e.cfg.Risk.SizeFor(htfRegime)
	if sizing <= 0 {
		res.Action = ActionNone
		res.Reason = ReasonNoSizing
		return res, meta, nil
	}

	res.Action = side
	res.Size = sizing * res.Confidence
	e.log.Debug("entry signal",
		zap.String("action", string(res.Action)),
		zap.Float64("size", res.Size),
		zap.String("regime", regime),
		zap.String("htf_regime", htfRegime),
		zap.Float64("probability", prob))
	return res, meta, nil
}
