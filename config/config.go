package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/quantlab/backcast/htf"
	"github.com/quantlab/backcast/indicators"
	"github.com/quantlab/backcast/sim"
)

// Config is the merged configuration consumed by the decision engine and the
// backtest loop. During explicit replay the caller-supplied Config is
// authoritative: no externally-loaded champion configuration is ever merged
// in, so a concurrently-changing live config cannot alter historical output.
type Config struct {
	Symbol     string `json:"symbol" yaml:"symbol"`
	Timeframe  string `json:"timeframe" yaml:"timeframe"`
	WarmupBars int    `json:"warmup_bars" yaml:"warmup_bars"`

	// Replay is the explicit replay index marker. When set, the engine
	// uses replay index resolution (last bar) and treats this config as
	// authoritative.
	Replay bool `json:"replay" yaml:"replay"`

	Thresholds Thresholds        `json:"thresholds" yaml:"thresholds"`
	Gating     Gating            `json:"gating" yaml:"gating"`
	Risk       Risk              `json:"risk" yaml:"risk"`
	Exit       Exit              `json:"exit" yaml:"exit"`
	HTF        HTFSection        `json:"htf" yaml:"htf"`
	Account    sim.Config        `json:"account" yaml:"account"`
	Indicators indicators.Config `json:"indicators" yaml:"indicators"`
}

// Thresholds gate the final action decision.
type Thresholds struct {
	MinProbability float64 `json:"min_probability" yaml:"min_probability"`
	MinConfidence  float64 `json:"min_confidence" yaml:"min_confidence"`
}

// Gating parameterizes the component chain.
type Gating struct {
	MinBarsBetweenTrades int     `json:"min_bars_between_trades" yaml:"min_bars_between_trades"`
	ATRMinPct            float64 `json:"atr_min_pct" yaml:"atr_min_pct"`
	ATRMaxPct            float64 `json:"atr_max_pct" yaml:"atr_max_pct"`
	HTFUnknownConfidence float64 `json:"htf_unknown_confidence" yaml:"htf_unknown_confidence"`

	// SlopeHysteresis is the dead-band (as a fraction of price) around zero
	// EMA slope inside which the regime reads as ranging. Classification
	// stays stateless so the fast path and fallback cannot drift apart.
	SlopeHysteresis float64 `json:"slope_hysteresis" yaml:"slope_hysteresis"`
}

// Risk maps HTF regimes onto position size fractions of capital. Unknown
// structure sizes defensively.
type Risk struct {
	Sizing map[string]float64 `json:"sizing" yaml:"sizing"`
}

// SizeFor returns the configured fraction for a regime, or 0 when the regime
// has no entry (no entry means no trade).
func (r Risk) SizeFor(regime string) float64 {
	return r.Sizing[regime]
}

// Exit holds the HTF exit configuration: tiered partial take-profits at
// frozen structural levels plus a swing stop and max holding time.
type Exit struct {
	TP1LevelKey    string  `json:"tp1_level" yaml:"tp1_level"`
	TP2LevelKey    string  `json:"tp2_level" yaml:"tp2_level"`
	TP1Fraction    float64 `json:"tp1_fraction" yaml:"tp1_fraction"`
	TP2Fraction    float64 `json:"tp2_fraction" yaml:"tp2_fraction"`
	StopAtSwing    bool    `json:"stop_at_swing" yaml:"stop_at_swing"`
	MaxHoldingBars int     `json:"max_holding_bars" yaml:"max_holding_bars"`
}

// HTFSection configures the higher-timeframe context provider.
type HTFSection struct {
	Timeframe       string    `json:"timeframe" yaml:"timeframe"`
	SwingLookback   int       `json:"swing_lookback" yaml:"swing_lookback"`
	Ratios          []float64 `json:"ratios" yaml:"ratios"`
	MaxDataAgeHours float64   `json:"max_data_age_hours" yaml:"max_data_age_hours"`
}

// ProviderConfig converts the section into an htf.Config, parsing the
// timeframe duration.
func (h HTFSection) ProviderConfig() (htf.Config, error) {
	d, err := time.ParseDuration(h.Timeframe)
	if err != nil {
		return htf.Config{}, fmt.Errorf("config: htf.timeframe: %w", err)
	}
	return htf.Config{
		Timeframe:       d,
		SwingLookback:   h.SwingLookback,
		Ratios:          h.Ratios,
		MaxDataAgeHours: h.MaxDataAgeHours,
	}, nil
}

// LoadFromFile loads configuration from a file (YAML or JSON).
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jerr := json.Unmarshal(data, cfg); jerr != nil {
			return nil, fmt.Errorf("config: parse %s (tried YAML and JSON): %w", path, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: invalid %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Symbol == "" {
		return fmt.Errorf("symbol is required")
	}
	if c.WarmupBars < 0 {
		return fmt.Errorf("warmup_bars must be non-negative")
	}
	if c.Thresholds.MinProbability < 0 || c.Thresholds.MinProbability > 1 {
		return fmt.Errorf("thresholds.min_probability must be in [0,1]")
	}
	if c.Thresholds.MinConfidence < 0 || c.Thresholds.MinConfidence > 1 {
		return fmt.Errorf("thresholds.min_confidence must be in [0,1]")
	}
	if c.Gating.MinBarsBetweenTrades < 0 {
		return fmt.Errorf("gating.min_bars_between_trades must be non-negative")
	}
	if c.Gating.ATRMaxPct > 0 && c.Gating.ATRMaxPct < c.Gating.ATRMinPct {
		return fmt.Errorf("gating.atr_max_pct must be >= atr_min_pct")
	}
	for regime, frac := range c.Risk.Sizing {
		if frac < 0 || frac > 1 {
			return fmt.Errorf("risk.sizing[%s] must be in [0,1]", regime)
		}
	}
	if c.Exit.TP1Fraction < 0 || c.Exit.TP1Fraction > 1 ||
		c.Exit.TP2Fraction < 0 || c.Exit.TP2Fraction > 1 {
		return fmt.Errorf("exit TP fractions must be in [0,1]")
	}
	if c.Exit.TP1Fraction+c.Exit.TP2Fraction > 1 {
		return fmt.Errorf("exit TP fractions must sum to at most 1")
	}
	if c.Account.InitialCapital <= 0 {
		return fmt.Errorf("account.initial_capital must be positive")
	}
	if c.Account.SlippageBps < 0 || c.Account.CommissionRate < 0 {
		return fmt.Errorf("account cost parameters must be non-negative")
	}
	if _, err := c.HTF.ProviderConfig(); err != nil {
		return err
	}
	if err := c.Indicators.Validate(); err != nil {
		return err
	}
	return nil
}

// Default returns a configuration with sensible defaults for an hourly
// execution series under a daily structural timeframe.
func Default() *Config {
	return &Config{
		Symbol:     "tBTCUSD",
		Timeframe:  "1h",
		WarmupBars: 50,
		Replay:     true,
		Thresholds: Thresholds{
			MinProbability: 0.55,
			MinConfidence:  0.50,
		},
		Gating: Gating{
			MinBarsBetweenTrades: 24,
			ATRMinPct:            0.001,
			ATRMaxPct:            0.05,
			HTFUnknownConfidence: 0.5,
			SlopeHysteresis:      0.0002,
		},
		Risk: Risk{
			Sizing: map[string]float64{
				"bull":    0.20,
				"bear":    0.20,
				"ranging": 0.10,
				"unknown": 0.05,
			},
		},
		Exit: Exit{
			TP1LevelKey:    "0.618",
			TP2LevelKey:    "0.786",
			TP1Fraction:    0.4,
			TP2Fraction:    0.3,
			StopAtSwing:    true,
			MaxHoldingBars: 168,
		},
		HTF: HTFSection{
			Timeframe:       "24h",
			SwingLookback:   20,
			Ratios:          []float64{0.236, 0.382, 0.5, 0.618, 0.786},
			MaxDataAgeHours: 72,
		},
		Account: sim.Config{
			InitialCapital: 100000,
			SlippageBps:    2,
			CommissionRate: 0.0004,
		},
		Indicators: indicators.DefaultConfig(),
	}
}
