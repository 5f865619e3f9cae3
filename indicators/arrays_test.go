package indicators

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantlab/backcast/market"
)

func syntheticBars(n int) []market.Bar {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]market.Bar, n)
	px := 100.0
	for i := range bars {
		// Deterministic wobble so every indicator has something to chew on.
		px += 0.8*math.Sin(float64(i)/5) + 0.1
		bars[i] = market.Bar{
			Time:   start.Add(time.Duration(i) * time.Hour),
			Open:   px - 0.2,
			High:   px + 0.5,
			Low:    px - 0.5,
			Close:  px,
			Volume: 1000 + 50*math.Sin(float64(i)/3),
		}
	}
	return bars
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	assert.NoError(t, DefaultConfig().Validate())

	bad := DefaultConfig()
	bad.ATRPeriod = 0
	assert.Error(t, bad.Validate())

	bad = DefaultConfig()
	bad.EMASlow = -1
	assert.Error(t, bad.Validate())
}

func TestConfigWarmup(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 50, DefaultConfig().Warmup())

	cfg := DefaultConfig()
	cfg.RSIPeriod = 80
	assert.Equal(t, 81, cfg.Warmup())
}

func TestPrecomputeShapes(t *testing.T) {
	t.Parallel()

	bars := syntheticBars(120)
	arrays, err := Precompute(bars, DefaultConfig())
	require.NoError(t, err)

	for _, name := range []string{
		SeriesEMAFast, SeriesEMAMid, SeriesEMASlow,
		SeriesATR, SeriesRSI, SeriesVolSMA,
	} {
		require.Contains(t, arrays, name)
		assert.Len(t, arrays[name], len(bars), name)
	}

	_, err = Precompute(nil, DefaultConfig())
	assert.Error(t, err)
}

func TestFastPathAndFallbackAgreeExactly(t *testing.T) {
	t.Parallel()

	bars := syntheticBars(120)
	cfg := DefaultConfig()
	arrays, err := Precompute(bars, cfg)
	require.NoError(t, err)

	names := []string{
		SeriesEMAFast, SeriesEMAMid, SeriesEMASlow,
		SeriesATR, SeriesRSI, SeriesVolSMA,
	}

	// Same kernels over the same prefix: bit-for-bit agreement, not
	// within-tolerance agreement.
	for _, name := range names {
		for _, idx := range []int{cfg.Warmup(), 60, 90, len(bars) - 1} {
			got, ok := At(bars, cfg, name, idx)
			require.True(t, ok, "%s at %d", name, idx)
			assert.Equal(t, arrays[name][idx], got, "%s at %d", name, idx)
		}
	}
}

func TestAtBounds(t *testing.T) {
	t.Parallel()

	bars := syntheticBars(60)
	cfg := DefaultConfig()

	_, ok := At(bars, cfg, SeriesEMAFast, -1)
	assert.False(t, ok)
	_, ok = At(bars, cfg, SeriesEMAFast, len(bars))
	assert.False(t, ok)
	_, ok = At(bars, cfg, "bogus", 30)
	assert.False(t, ok)
}

func TestLookupPrefersArraysFallsBackToAt(t *testing.T) {
	t.Parallel()

	bars := syntheticBars(120)
	cfg := DefaultConfig()
	arrays, err := Precompute(bars, cfg)
	require.NoError(t, err)

	withArrays, err := market.NewWindow(bars, 100, arrays)
	require.NoError(t, err)
	bare, err := market.NewWindow(bars, 100, nil)
	require.NoError(t, err)

	for _, name := range []string{SeriesEMAFast, SeriesATR, SeriesRSI} {
		fast, ok := Lookup(withArrays, cfg, name, 100)
		require.True(t, ok)
		slow, ok := Lookup(bare, cfg, name, 100)
		require.True(t, ok)
		assert.Equal(t, fast, slow, name)
	}
}
