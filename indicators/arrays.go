package indicators

import (
	"fmt"

	talib "github.com/markcheno/go-talib"

	"github.com/quantlab/backcast/market"
)

// Series names used to key precomputed arrays inside a market.Window.
const (
	SeriesEMAFast = "ema_fast"
	SeriesEMAMid  = "ema_mid"
	SeriesEMASlow = "ema_slow"
	SeriesATR     = "atr"
	SeriesRSI     = "rsi"
	SeriesVolSMA  = "vol_sma"
)

// Config holds the indicator periods used by both the precomputed fast path
// and the as-of fallback. Both paths must run the same kernels over the same
// prefix so their outputs agree exactly.
type Config struct {
	EMAFast   int `yaml:"ema_fast"`
	EMAMid    int `yaml:"ema_mid"`
	EMASlow   int `yaml:"ema_slow"`
	ATRPeriod int `yaml:"atr_period"`
	RSIPeriod int `yaml:"rsi_period"`
	VolPeriod int `yaml:"vol_period"`
}

// DefaultConfig returns the standard period set.
func DefaultConfig() Config {
	return Config{
		EMAFast:   12,
		EMAMid:    26,
		EMASlow:   50,
		ATRPeriod: 14,
		RSIPeriod: 14,
		VolPeriod: 20,
	}
}

// Validate rejects non-positive periods.
func (c Config) Validate() error {
	for name, p := range map[string]int{
		"ema_fast":   c.EMAFast,
		"ema_mid":    c.EMAMid,
		"ema_slow":   c.EMASlow,
		"atr_period": c.ATRPeriod,
		"rsi_period": c.RSIPeriod,
		"vol_period": c.VolPeriod,
	} {
		if p <= 0 {
			return fmt.Errorf("indicators: %s must be positive, got %d", name, p)
		}
	}
	return nil
}

// Warmup returns the number of leading bars the slowest indicator needs
// before its values stabilize.
func (c Config) Warmup() int {
	w := c.EMASlow
	for _, p := range []int{c.EMAFast, c.EMAMid, c.ATRPeriod + 1, c.RSIPeriod + 1, c.VolPeriod} {
		if p > w {
			w = p
		}
	}
	return w
}

func split(bars []market.Bar) (highs, lows, closes, volumes []float64) {
	highs = make([]float64, len(bars))
	lows = make([]float64, len(bars))
	closes = make([]float64, len(bars))
	volumes = make([]float64, len(bars))
	for i, b := range bars {
		highs[i] = b.High
		lows[i] = b.Low
		closes[i] = b.Close
		volumes[i] = b.Volume
	}
	return
}

// Precompute runs every configured indicator over the full bar series and
// returns the arrays keyed by series name. All kernels are causal: the value
// at index i depends only on bars [0..i], so the arrays are safe to read
// through an as-of-bounded window.
func Precompute(bars []market.Bar, cfg Config) (map[string][]float64, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("indicators: empty bar series")
	}
	highs, lows, closes, volumes := split(bars)
	return map[string][]float64{
		SeriesEMAFast: talib.Ema(closes, cfg.EMAFast),
		SeriesEMAMid:  talib.Ema(closes, cfg.EMAMid),
		SeriesEMASlow: talib.Ema(closes, cfg.EMASlow),
		SeriesATR:     talib.Atr(highs, lows, closes, cfg.ATRPeriod),
		SeriesRSI:     talib.Rsi(closes, cfg.RSIPeriod),
		SeriesVolSMA:  talib.Sma(volumes, cfg.VolPeriod),
	}, nil
}

// At computes one indicator value on the fly over bars[0..idx]. It is the
// fallback for windows built without precomputed arrays and runs the same
// talib kernel over the same prefix as Precompute, so the two paths agree
// exactly, not approximately.
func At(bars []market.Bar, cfg Config, name string, idx int) (float64, bool) {
	if idx < 0 || idx >= len(bars) {
		return 0, false
	}
	clipped := bars[:idx+1]
	highs, lows, closes, volumes := split(clipped)

	var series []float64
	switch name {
	case SeriesEMAFast:
		series = talib.Ema(closes, cfg.EMAFast)
	case SeriesEMAMid:
		series = talib.Ema(closes, cfg.EMAMid)
	case SeriesEMASlow:
		series = talib.Ema(closes, cfg.EMASlow)
	case SeriesATR:
		series = talib.Atr(highs, lows, closes, cfg.ATRPeriod)
	case SeriesRSI:
		series = talib.Rsi(closes, cfg.RSIPeriod)
	case SeriesVolSMA:
		series = talib.Sma(volumes, cfg.VolPeriod)
	default:
		return 0, false
	}
	if len(series) <= idx {
		return 0, false
	}
	return series[idx], true
}

// Lookup reads an indicator value from the window's precomputed arrays when
// present and falls back to At otherwise.
func Lookup(w *market.Window, cfg Config, name string, idx int) (float64, bool) {
	if v, ok := w.Value(name, idx); ok {
		return v, true
	}
	return At(w.Bars(), cfg, name, idx)
}
