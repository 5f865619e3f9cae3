package strategy

// MLConfidence gates entries on the probability emitted by the model stage.
// The probability is a required input: a missing key is a typed veto, not a
// panic and not a pass.
type MLConfidence struct {
	MinProbability float64
}

func (m MLConfidence) Name() string { return "ml_confidence" }

func (m MLConfidence) Evaluate(ctx Context) ComponentResult {
	prob, ok := ctxFloat(ctx, KeyMLProbability)
	if !ok {
		return veto(ReasonMissingInput, 0, map[string]any{"missing": KeyMLProbability})
	}
	prob = clamp01(prob)
	if prob < m.MinProbability {
		return veto(ReasonConfidenceTooLow, prob, map[string]any{
			"probability": prob,
			"min":         m.MinProbability,
		})
	}
	return allow(prob, map[string]any{"probability": prob})
}

// ATRFilter vetoes entries when volatility sits outside the configured band.
// ATR% is a quality signal: when it is unavailable the filter stays neutral
// rather than failing the pipeline.
type ATRFilter struct {
	MinATRPct float64
	MaxATRPct float64
}

func (f ATRFilter) Name() string { return "atr_filter" }

func (f ATRFilter) Evaluate(ctx Context) ComponentResult {
	atrPct, ok := ctxFloat(ctx, KeyATRPct)
	if !ok {
		// Neutral: quality inputs never hard-fail the chain.
		return allow(1, map[string]any{"atr_pct": nil})
	}
	if atrPct < f.MinATRPct || (f.MaxATRPct > 0 && atrPct > f.MaxATRPct) {
		return veto(ReasonVolatilityFilter, 0, map[string]any{
			"atr_pct": atrPct,
			"min":     f.MinATRPct,
			"max":     f.MaxATRPct,
		})
	}
	return allow(1, map[string]any{"atr_pct": atrPct})
}

// HTFGate vetoes entries that fight the higher-timeframe regime: longs in a
// bear structure, shorts in a bull structure. An unknown regime passes with
// reduced confidence; defensive sizing handles the uncertainty downstream.
type HTFGate struct {
	UnknownConfidence float64 // confidence granted when the regime is unknown
}

func (g HTFGate) Name() string { return "htf_gate" }

func (g HTFGate) Evaluate(ctx Context) ComponentResult {
	regime, ok := ctxString(ctx, KeyHTFRegime)
	if !ok || regime == "" || regime == "unknown" {
		conf := g.UnknownConfidence
		if conf <= 0 {
			conf = 0.5
		}
		return allow(conf, map[string]any{"htf_regime": "unknown"})
	}
	side, _ := ctxString(ctx, KeySide)
	meta := map[string]any{"htf_regime": regime, "side": side}
	if (side == "LONG" && regime == "bear") || (side == "SHORT" && regime == "bull") {
		return veto(ReasonHTFUnfavorable, 0, meta)
	}
	return allow(1, meta)
}
