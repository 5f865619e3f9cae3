package strategy

// Context carries the per-bar inputs a component may read. Components must
// treat it as read-only; the engine owns its construction.
type Context map[string]any

// Well-known context keys.
const (
	KeySymbol        = "symbol"
	KeyBarIndex      = "bar_index"
	KeySide          = "side"
	KeyMLProbability = "ml_probability"
	KeyATRPct        = "atr_pct"
	KeyHTFRegime     = "htf_regime"
)

// Reason codes attached to vetoes. A "no trade" outcome is always one of
// these, never an error.
const (
	ReasonCooldownActive   = "COOLDOWN_ACTIVE"
	ReasonConfidenceTooLow = "CONFIDENCE_TOO_LOW"
	ReasonVolatilityFilter = "VOLATILITY_FILTER"
	ReasonHTFUnfavorable   = "HTF_REGIME_UNFAVORABLE"
	ReasonMissingInput     = "MISSING_INPUT"
)

// ComponentResult is one component's verdict. Confidence is always clamped
// to [0,1].
type ComponentResult struct {
	Allowed    bool
	Confidence float64
	Reason     string
	Meta       map[string]any
}

// Component is a single evaluator in the decision chain. Implementations are
// pure functions of the context; the one stateful exception (Cooldown)
// mutates its state only through an explicit side-channel, never from
// Evaluate, so Evaluate may be invoked speculatively any number of times.
type Component interface {
	Name() string
	Evaluate(ctx Context) ComponentResult
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func allow(confidence float64, meta map[string]any) ComponentResult {
	return ComponentResult{Allowed: true, Confidence: clamp01(confidence), Meta: meta}
}

func veto(reason string, confidence float64, meta map[string]any) ComponentResult {
	return ComponentResult{Allowed: false, Confidence: clamp01(confidence), Reason: reason, Meta: meta}
}

// ctxFloat pulls a float out of the context, tolerating the integer types
// that config plumbing tends to produce.
func ctxFloat(ctx Context, key string) (float64, bool) {
	v, ok := ctx[key]
	if !ok {
		return 0, false
	}
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	default:
		return 0, false
	}
}

func ctxInt(ctx Context, key string) (int, bool) {
	v, ok := ctx[key]
	if !ok {
		return 0, false
	}
	switch x := v.(type) {
	case int:
		return x, true
	case int64:
		return int(x), true
	case float64:
		return int(x), true
	default:
		return 0, false
	}
}

func ctxString(ctx Context, key string) (string, bool) {
	v, ok := ctx[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
