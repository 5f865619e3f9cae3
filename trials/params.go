package trials

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"

	"github.com/quantlab/backcast/config"
)

// Parameters is one optimizer trial's parameter assignment, keyed by the
// dotted config field it overrides.
type Parameters map[string]float64

// Fingerprint returns a stable hex digest of the parameter set. Two
// assignments with the same keys and values fingerprint identically
// regardless of map iteration order, so the digest is safe as a
// cross-process dedup key.
func (p Parameters) Fingerprint() string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(strconv.FormatFloat(p[k], 'g', -1, 64))
		b.WriteByte(';')
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// Apply overlays the parameter assignment onto a copy of base. Unknown keys
// are ignored so a sweep definition can outlive config schema changes.
func (p Parameters) Apply(base config.Config) config.Config {
	cfg := base
	for k, v := range p {
		switch k {
		case "thresholds.min_probability":
			cfg.Thresholds.MinProbability = v
		case "thresholds.min_confidence":
			cfg.Thresholds.MinConfidence = v
		case "gating.min_bars_between_trades":
			cfg.Gating.MinBarsBetweenTrades = int(v)
		case "gating.atr_min_pct":
			cfg.Gating.ATRMinPct = v
		case "gating.atr_max_pct":
			cfg.Gating.ATRMaxPct = v
		case "gating.slope_hysteresis":
			cfg.Gating.SlopeHysteresis = v
		case "exit.tp1_fraction":
			cfg.Exit.TP1Fraction = v
		case "exit.tp2_fraction":
			cfg.Exit.TP2Fraction = v
		case "exit.max_holding_bars":
			cfg.Exit.MaxHoldingBars = int(v)
		}
	}
	return cfg
}
