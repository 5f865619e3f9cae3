package decision

import (
	"github.com/quantlab/backcast/indicators"
	"github.com/quantlab/backcast/market"
)

// Quality penalty multipliers. Each market-quality signal scales confidence
// down when it looks unhealthy and stays at the neutral 1.0 when the signal
// is unavailable; quality inputs never hard-fail the pipeline.
const (
	penaltyExtremeVol  = 0.8
	penaltyVolumeSpike = 0.8
	penaltyStaleBar    = 0.7
	volumeSpikeRatio   = 3.0
	staleGapFactor     = 1.5
)

// qualityScale aggregates the market-quality multipliers for the bar at
// asOf: ATR% extremes, volume anomaly, and bar staleness. Spread is part of
// the contract but OHLCV series carry no quote data, so it resolves to
// neutral here.
func qualityScale(w *market.Window, asOf int, cfg indicators.Config, atrMin, atrMax float64) (float64, map[string]any) {
	scale := 1.0
	meta := map[string]any{}
	bar, err := w.Bar(asOf)
	if err != nil {
		return scale, meta
	}

	if atr, ok := indicators.Lookup(w, cfg, indicators.SeriesATR, asOf); ok && atr > 0 && bar.Close > 0 {
		atrPct := atr / bar.Close
		meta["atr_pct"] = atrPct
		if atrPct < atrMin || (atrMax > 0 && atrPct > atrMax) {
			scale *= penaltyExtremeVol
			meta["atr_penalty"] = true
		}
	}

	if sma, ok := indicators.Lookup(w, cfg, indicators.SeriesVolSMA, asOf); ok && sma > 0 {
		ratio := bar.Volume / sma
		meta["vol_ratio"] = ratio
		if ratio > volumeSpikeRatio {
			scale *= penaltyVolumeSpike
			meta["volume_penalty"] = true
		}
	}

	// Staleness: a gap between this bar and the previous one larger than
	// the series' own spacing marks the bar as stale.
	if asOf >= 1 {
		prev, err1 := w.Bar(asOf - 1)
		var expected float64
		if first, err2 := w.Bar(0); err2 == nil && asOf >= 2 {
			if second, err3 := w.Bar(1); err3 == nil {
				expected = second.Time.Sub(first.Time).Seconds()
			}
		}
		if err1 == nil && expected > 0 {
			gap := bar.Time.Sub(prev.Time).Seconds()
			if gap > staleGapFactor*expected {
				scale *= penaltyStaleBar
				meta["stale_penalty"] = true
			}
		}
	}

	meta["quality_scale"] = scale
	return scale, meta
}
