package decision

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantlab/backcast/config"
	"github.com/quantlab/backcast/indicators"
	"github.com/quantlab/backcast/market"
	"github.com/quantlab/backcast/model"
	"github.com/quantlab/backcast/strategy"
)

// championStub counts loads so tests can prove whether the loader was
// consulted.
type championStub struct {
	cfg  *config.Config
	hits int
}

func (c *championStub) Load(symbol, timeframe string) (*config.Config, error) {
	c.hits++
	return c.cfg, nil
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Replay = true
	cfg.Gating.ATRMinPct = 0
	cfg.Gating.ATRMaxPct = 0
	cfg.Gating.HTFUnknownConfidence = 1
	return cfg
}

func trendBars(n int, drift float64) []market.Bar {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]market.Bar, n)
	px := 100.0
	for i := range bars {
		px *= 1 + drift
		bars[i] = market.Bar{
			Time:   start.Add(time.Duration(i) * time.Hour),
			Open:   px * 0.999,
			High:   px * 1.002,
			Low:    px * 0.998,
			Close:  px,
			Volume: 1000,
		}
	}
	return bars
}

func windowAt(t *testing.T, bars []market.Bar, asOf int) *market.Window {
	t.Helper()
	w, err := market.NewWindow(bars, asOf, nil)
	require.NoError(t, err)
	return w
}

func TestReplayConfigIsAuthoritative(t *testing.T) {
	t.Parallel()

	other := config.Default()
	other.Symbol = "tETHUSD"
	champ := &championStub{cfg: other}

	cfg := testConfig()
	eng, err := New(cfg, Deps{Champion: champ})
	require.NoError(t, err)

	assert.Equal(t, 0, champ.hits)
	assert.Equal(t, "tBTCUSD", eng.Config().Symbol)
	assert.Same(t, cfg, eng.Config())
}

func TestLiveConfigComesFromChampion(t *testing.T) {
	t.Parallel()

	other := config.Default()
	other.Symbol = "tETHUSD"
	champ := &championStub{cfg: other}

	cfg := testConfig()
	cfg.Replay = false
	eng, err := New(cfg, Deps{Champion: champ})
	require.NoError(t, err)

	// The champion config replaces the supplied one entirely; there is no
	// field-by-field merge.
	assert.Equal(t, 1, champ.hits)
	assert.Same(t, other, eng.Config())
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Deps{})
	assert.Error(t, err)

	bad := testConfig()
	bad.Symbol = ""
	_, err = New(bad, Deps{})
	assert.Error(t, err)
}

func TestDecideLongInUptrend(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	eng, err := New(cfg, Deps{Model: model.Static{P: 0.9}})
	require.NoError(t, err)

	bars := trendBars(120, 0.01)
	res, meta, err := eng.Decide(windowAt(t, bars, 110))
	require.NoError(t, err)

	assert.Equal(t, ActionLong, res.Action)
	assert.Equal(t, RegimeBull, res.Regime)
	assert.Equal(t, "unknown", res.HTFRegime)
	assert.Equal(t, 0.9, res.Probability)
	assert.InDelta(t, 0.9, res.Confidence, 1e-9)
	assert.InDelta(t, cfg.Risk.SizeFor("unknown")*0.9, res.Size, 1e-9)
	assert.Equal(t, 110, meta["bar_index"])
	assert.Equal(t, 110, res.BarIndex)
	assert.Equal(t, "replay", meta["mode"])
}

// staticExtractor returns a fixed meta map so tests can control exactly
// which context keys reach the component chain.
type staticExtractor struct{ meta map[string]any }

func (s staticExtractor) Extract(*market.Window, int, indicators.Config) ([]float64, map[string]any, error) {
	return make([]float64, 7), s.meta, nil
}

func TestUnavailableATRDoesNotVeto(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Gating.ATRMinPct = 0.01 // a zero reading would sit below this band

	eng, err := New(cfg, Deps{
		Model:     model.Static{P: 0.9},
		Extractor: staticExtractor{meta: map[string]any{}},
	})
	require.NoError(t, err)

	bars := trendBars(120, 0.01)
	res, _, err := eng.Decide(windowAt(t, bars, 110))
	require.NoError(t, err)

	// An extractor that could not compute ATR omits the key; the filter
	// stays neutral instead of reading the absence as zero volatility.
	assert.Equal(t, ActionLong, res.Action)
	assert.NotEqual(t, strategy.ReasonVolatilityFilter, res.Reason)
}

func TestDecideReportsEvaluatedIndexPerMode(t *testing.T) {
	t.Parallel()

	bars := trendBars(120, 0.01)

	replay, err := New(testConfig(), Deps{Model: model.Static{P: 0.9}})
	require.NoError(t, err)
	res, _, err := replay.Decide(windowAt(t, bars, 110))
	require.NoError(t, err)
	assert.Equal(t, 110, res.BarIndex)

	liveCfg := testConfig()
	liveCfg.Replay = false
	live, err := New(liveCfg, Deps{Model: model.Static{P: 0.9}})
	require.NoError(t, err)
	res, _, err = live.Decide(windowAt(t, bars, 110))
	require.NoError(t, err)
	assert.Equal(t, 109, res.BarIndex)
}

func TestDecideShortInDowntrend(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	eng, err := New(cfg, Deps{Model: model.Static{P: 0.9}})
	require.NoError(t, err)

	bars := trendBars(120, -0.01)
	res, _, err := eng.Decide(windowAt(t, bars, 110))
	require.NoError(t, err)

	assert.Equal(t, ActionShort, res.Action)
	assert.Equal(t, RegimeBear, res.Regime)
}

func TestDecideNoDirectionInFlatMarket(t *testing.T) {
	t.Parallel()

	eng, err := New(testConfig(), Deps{Model: model.Static{P: 0.9}})
	require.NoError(t, err)

	bars := trendBars(120, 0)
	res, _, err := eng.Decide(windowAt(t, bars, 110))
	require.NoError(t, err)

	assert.Equal(t, ActionNone, res.Action)
	assert.Equal(t, ReasonNoDirection, res.Reason)
	assert.Zero(t, res.Size)
}

func TestDecideVetoedByLowProbability(t *testing.T) {
	t.Parallel()

	eng, err := New(testConfig(), Deps{Model: model.Static{P: 0.3}})
	require.NoError(t, err)

	bars := trendBars(120, 0.01)
	res, _, err := eng.Decide(windowAt(t, bars, 110))
	require.NoError(t, err)

	assert.Equal(t, ActionNone, res.Action)
	assert.Equal(t, strategy.ReasonConfidenceTooLow, res.Reason)
	assert.Equal(t, "ml_confidence", res.Chain.VetoComponent)
	assert.Zero(t, res.Size)
}

func TestDecideVetoedByCooldown(t *testing.T) {
	t.Parallel()

	eng, err := New(testConfig(), Deps{Model: model.Static{P: 0.9}})
	require.NoError(t, err)

	bars := trendBars(120, 0.01)
	eng.Cooldown().RecordTrade("tBTCUSD", 100)

	res, _, err := eng.Decide(windowAt(t, bars, 110))
	require.NoError(t, err)

	assert.Equal(t, ActionNone, res.Action)
	assert.Equal(t, strategy.ReasonCooldownActive, res.Reason)

	// Only the vetoing gate and the ones before it were evaluated.
	assert.Len(t, res.Chain.Results, 1)
	assert.Contains(t, res.Chain.Results, "cooldown")
}

func TestDecideNoSizingForRegime(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Risk.Sizing = map[string]float64{}
	eng, err := New(cfg, Deps{Model: model.Static{P: 0.9}})
	require.NoError(t, err)

	bars := trendBars(120, 0.01)
	res, _, err := eng.Decide(windowAt(t, bars, 110))
	require.NoError(t, err)

	assert.Equal(t, ActionNone, res.Action)
	assert.Equal(t, ReasonNoSizing, res.Reason)
}

func TestDecideBelowMinConfidence(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Thresholds.MinProbability = 0.5
	cfg.Thresholds.MinConfidence = 0.8
	eng, err := New(cfg, Deps{Model: model.Static{P: 0.6}})
	require.NoError(t, err)

	bars := trendBars(120, 0.01)
	res, _, err := eng.Decide(windowAt(t, bars, 110))
	require.NoError(t, err)

	// The chain allowed the entry but the scaled confidence missed the
	// final threshold.
	assert.True(t, res.Chain.Allowed)
	assert.Equal(t, ActionNone, res.Action)
	assert.Equal(t, strategy.ReasonConfidenceTooLow, res.Reason)
}

func TestDecideIsDeterministic(t *testing.T) {
	t.Parallel()

	eng, err := New(testConfig(), Deps{Model: model.Static{P: 0.9}})
	require.NoError(t, err)

	bars := trendBars(120, 0.01)
	first, _, err := eng.Decide(windowAt(t, bars, 110))
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		res, _, err := eng.Decide(windowAt(t, bars, 110))
		require.NoError(t, err)
		assert.Equal(t, first, res)
	}
}

func TestResetStateClearsCooldown(t *testing.T) {
	t.Parallel()

	eng, err := New(testConfig(), Deps{Model: model.Static{P: 0.9}})
	require.NoError(t, err)
	eng.Cooldown().RecordTrade("tBTCUSD", 100)

	eng.ResetState()

	bars := trendBars(120, 0.01)
	res, _, err := eng.Decide(windowAt(t, bars, 110))
	require.NoError(t, err)
	assert.Equal(t, ActionLong, res.Action)
}
