package htf

import (
	"fmt"
	"sort"
	"time"

	"github.com/quantlab/backcast/market"
)

// Unavailability reason codes. Callers must treat an unavailable context as a
// first-class branch, not an error path.
const (
	ReasonNoClosedCandle = "HTF_NO_CLOSED_CANDLE"
	ReasonStale          = "HTF_STALE"
	ReasonInvalidSwing   = "HTF_SWING_INVALID"
	ReasonNoLevels       = "HTF_LEVELS_INCOMPLETE"
	ReasonOutOfBounds    = "HTF_LEVELS_OUT_OF_BOUNDS"
)

// Context is the higher-timeframe structural picture available strictly
// before one lower-timeframe bar. When Available is false every other field
// except Reason is zero; no value is ever synthesized.
type Context struct {
	Available    bool
	Reason       string
	SwingHigh    float64
	SwingLow     float64
	Levels       map[string]float64 // keyed by ratio, e.g. "0.382"
	SwingAgeBars int
	DataAgeHours float64
}

// Config controls swing detection and level generation.
type Config struct {
	Timeframe       time.Duration `yaml:"-"`
	SwingLookback   int           `yaml:"swing_lookback"`
	Ratios          []float64     `yaml:"ratios"`
	MaxDataAgeHours float64       `yaml:"max_data_age_hours"`
}

// DefaultConfig matches a daily structural timeframe feeding an hourly
// execution series.
func DefaultConfig() Config {
	return Config{
		Timeframe:       24 * time.Hour,
		SwingLookback:   20,
		Ratios:          []float64{0.236, 0.382, 0.5, 0.618, 0.786},
		MaxDataAgeHours: 72,
	}
}

// Provider performs the as-of join from lower-timeframe bar timestamps onto
// higher-timeframe swing structure. The join is keyed by the *close* time of
// the HTF candle (open time + timeframe), so a still-forming candle is never
// visible to any query.
type Provider struct {
	bars       []market.Bar
	closeTimes []time.Time
	cfg        Config
	cache      levelCache
}

// NewProvider validates the config and precomputes HTF close times. Bars
// must be in ascending time order.
func NewProvider(bars []market.Bar, cfg Config) (*Provider, error) {
	if cfg.Timeframe <= 0 {
		return nil, fmt.Errorf("htf: timeframe must be positive")
	}
	if cfg.SwingLookback <= 0 {
		return nil, fmt.Errorf("htf: swing_lookback must be positive")
	}
	closeTimes := make([]time.Time, len(bars))
	for i, b := range bars {
		closeTimes[i] = b.Time.Add(cfg.Timeframe)
		if i > 0 && !bars[i].Time.After(bars[i-1].Time) {
			return nil, fmt.Errorf("htf: bars out of order at index %d", i)
		}
	}
	return &Provider{bars: bars, closeTimes: closeTimes, cfg: cfg}, nil
}

// ContextAt returns the swing/level structure available strictly before ts.
// The source candle's close time is always < ts; equality counts as "not yet
// available" so a candle closing exactly at the queried bar is excluded.
func (p *Provider) ContextAt(ts time.Time) Context {
	// Last HTF index whose close time is strictly before ts.
	n := sort.Search(len(p.closeTimes), func(i int) bool {
		return !p.closeTimes[i].Before(ts)
	})
	last := n - 1
	if last < 0 {
		return Context{Reason: ReasonNoClosedCandle}
	}

	dataAge := ts.Sub(p.closeTimes[last]).Hours()
	if p.cfg.MaxDataAgeHours > 0 && dataAge > p.cfg.MaxDataAgeHours {
		return Context{Reason: ReasonStale}
	}

	lo := last - p.cfg.SwingLookback + 1
	if lo < 0 {
		lo = 0
	}
	swingHigh, swingLow := p.bars[lo].High, p.bars[lo].Low
	highIdx, lowIdx := lo, lo
	for i := lo + 1; i <= last; i++ {
		if p.bars[i].High > swingHigh {
			swingHigh = p.bars[i].High
			highIdx = i
		}
		if p.bars[i].Low < swingLow {
			swingLow = p.bars[i].Low
			lowIdx = i
		}
	}
	if !validSwing(swingHigh, swingLow) {
		return Context{Reason: ReasonInvalidSwing}
	}
	if len(p.cfg.Ratios) == 0 {
		return Context{Reason: ReasonNoLevels}
	}

	fp := fingerprint(swingHigh, swingLow, p.cfg.Ratios)
	levels := p.cache.getOrCompute(fp, func() map[string]float64 {
		return computeLevels(swingHigh, swingLow, p.cfg.Ratios)
	})
	if !levelsInBounds(levels, swingHigh, swingLow) {
		return Context{Reason: ReasonOutOfBounds}
	}

	// Swing age counts bars since the more recent extreme.
	extreme := highIdx
	if lowIdx > extreme {
		extreme = lowIdx
	}

	return Context{
		Available:    true,
		SwingHigh:    swingHigh,
		SwingLow:     swingLow,
		Levels:       levels,
		SwingAgeBars: last - extreme,
		DataAgeHours: dataAge,
	}
}

// Regime classifies where price sits inside the available swing structure:
// upper third bull, lower third bear, middle ranging, no structure unknown.
func (c Context) Regime(price float64) string {
	if !c.Available {
		return "unknown"
	}
	span := c.SwingHigh - c.SwingLow
	if span <= 0 {
		return "unknown"
	}
	pos := (price - c.SwingLow) / span
	switch {
	case pos >= 0.618:
		return "bull"
	case pos <= 0.382:
		return "bear"
	default:
		return "ranging"
	}
}
