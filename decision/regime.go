package decision

import (
	"github.com/quantlab/backcast/indicators"
	"github.com/quantlab/backcast/market"
)

// Trend regimes derived from EMA slope.
const (
	RegimeBull     = "bull"
	RegimeBear     = "bear"
	RegimeRanging  = "ranging"
	RegimeBalanced = "balanced"
)

// slopeLookback is the bar distance over which the slow-EMA slope is
// measured.
const slopeLookback = 5

// classifyRegime reads the slow EMA's slope (normalized by price) and the
// fast/slow EMA ordering:
//
//	|slope| <= hysteresis          -> ranging
//	slope up   and fast above slow -> bull
//	slope down and fast below slow -> bear
//	slope and ordering disagree    -> balanced
//
// The function is stateless and reads only through indicators.Lookup, so the
// precomputed fast path and the on-the-fly fallback classify identically.
func classifyRegime(w *market.Window, asOf int, cfg indicators.Config, hysteresis float64) string {
	bar, err := w.Bar(asOf)
	if err != nil || bar.Close <= 0 {
		return RegimeRanging
	}
	cur, ok := indicators.Lookup(w, cfg, indicators.SeriesEMASlow, asOf)
	if !ok || cur <= 0 {
		return RegimeRanging
	}
	prev, ok := indicators.Lookup(w, cfg, indicators.SeriesEMASlow, asOf-slopeLookback)
	if !ok || prev <= 0 {
		return RegimeRanging
	}
	slope := (cur - prev) / float64(slopeLookback) / bar.Close

	if slope <= hysteresis && slope >= -hysteresis {
		return RegimeRanging
	}

	fast, ok := indicators.Lookup(w, cfg, indicators.SeriesEMAFast, asOf)
	if !ok || fast <= 0 {
		return RegimeRanging
	}

	switch {
	case slope > 0 && fast > cur:
		return RegimeBull
	case slope < 0 && fast < cur:
		return RegimeBear
	default:
		return RegimeBalanced
	}
}
