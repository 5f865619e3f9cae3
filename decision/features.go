package decision

import (
	"fmt"

	"github.com/quantlab/backcast/indicators"
	"github.com/quantlab/backcast/market"
)

// FeatureExtractor is the boundary to feature computation. Implementations
// must behave identically in live and replay modes given the same explicit
// as-of index; nothing about the extraction may depend on the wall clock.
type FeatureExtractor interface {
	Extract(w *market.Window, asOf int, cfg indicators.Config) ([]float64, map[string]any, error)
}

// builtinExtractor derives a small, fixed-order feature vector from price
// action and the precomputed indicator arrays (falling back to on-the-fly
// computation when arrays are absent).
//
// Vector layout: [ret1, ret5, emaFastRel, emaMidRel, rsi, atrPct, volRatio].
type builtinExtractor struct{}

func (builtinExtractor) Extract(w *market.Window, asOf int, cfg indicators.Config) ([]float64, map[string]any, error) {
	bar, err := w.Bar(asOf)
	if err != nil {
		return nil, nil, fmt.Errorf("decision: feature extraction: %w", err)
	}
	if bar.Close <= 0 {
		return nil, nil, fmt.Errorf("decision: non-positive close at bar %d", asOf)
	}

	ret := func(lag int) float64 {
		prev, err := w.Bar(asOf - lag)
		if err != nil || prev.Close <= 0 {
			return 0
		}
		return bar.Close/prev.Close - 1
	}

	rel := func(name string) float64 {
		v, ok := indicators.Lookup(w, cfg, name, asOf)
		if !ok || v <= 0 {
			return 0
		}
		return bar.Close/v - 1
	}

	rsi, _ := indicators.Lookup(w, cfg, indicators.SeriesRSI, asOf)

	atrPct := 0.0
	atrOK := false
	if atr, ok := indicators.Lookup(w, cfg, indicators.SeriesATR, asOf); ok && atr > 0 {
		atrPct = atr / bar.Close
		atrOK = true
	}

	volRatio := 0.0
	if sma, ok := indicators.Lookup(w, cfg, indicators.SeriesVolSMA, asOf); ok && sma > 0 {
		volRatio = bar.Volume / sma
	}

	vector := []float64{
		ret(1),
		ret(5),
		rel(indicators.SeriesEMAFast),
		rel(indicators.SeriesEMAMid),
		rsi / 100,
		atrPct,
		volRatio,
	}
	// atr_pct is only present when ATR was actually computed: downstream
	// volatility gating treats an absent key as neutral, and a zero would
	// read as an out-of-band reading instead.
	meta := map[string]any{
		"as_of_index": asOf,
		"vol_ratio":   volRatio,
		"rsi":         rsi,
	}
	if atrOK {
		meta["atr_pct"] = atrPct
	}
	return vector, meta, nil
}
