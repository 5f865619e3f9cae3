package sim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTracker(t *testing.T, cfg Config) *Tracker {
	t.Helper()
	if cfg.InitialCapital == 0 {
		cfg.InitialCapital = 100_000
	}
	return NewTracker(cfg, nil)
}

func ts(hour int) time.Time {
	return time.Date(2024, 1, 1, hour, 0, 0, 0, time.UTC)
}

func TestOpenPartialPartialClose(t *testing.T) {
	t.Parallel()

	tr := newTestTracker(t, Config{})

	pos := tr.OpenPosition(Long, 1.0, 100_000, ts(0), "tBTCUSD")
	require.NotNil(t, pos)
	assert.NotEmpty(t, pos.ID)
	assert.Equal(t, 1.0, pos.InitialSize)
	assert.Equal(t, 1.0, pos.CurrentSize)

	t1 := tr.PartialClose(0.4, 105_000, ts(1), "TP1")
	require.NotNil(t, t1)
	assert.True(t, t1.IsPartial)
	assert.InDelta(t, 0.4, t1.Size, 1e-12)
	assert.InDelta(t, 0.6, tr.Position().CurrentSize, 1e-12)

	t2 := tr.PartialClose(0.3, 108_000, ts(2), "TP2")
	require.NotNil(t, t2)
	assert.True(t, t2.IsPartial)
	assert.InDelta(t, 0.3, t2.Size, 1e-12)
	assert.InDelta(t, 0.3, tr.Position().CurrentSize, 1e-12)

	t3 := tr.ClosePositionWithReason(110_000, ts(3), "TRAIL")
	require.NotNil(t, t3)
	assert.False(t, t3.IsPartial)
	assert.InDelta(t, 0.3, t3.Size, 1e-12)
	assert.Nil(t, tr.Position())

	trades := tr.Trades()
	require.Len(t, trades, 3)

	total := 0.0
	for _, tt := range trades {
		total += tt.Size
		assert.Equal(t, trades[0].PositionID, tt.PositionID)
	}
	assert.InDelta(t, 1.0, total, 1e-9)

	// 0.4*(105000-100000) + 0.3*(108000-100000) + 0.3*(110000-100000)
	assert.InDelta(t, 7400.0, tr.RealizedPnL(), 1e-6)
	assert.InDelta(t, 107_400.0, tr.Capital(), 1e-6)
}

func TestPartialCloseOversizeClamps(t *testing.T) {
	t.Parallel()

	tr := newTestTracker(t, Config{})
	require.NotNil(t, tr.OpenPosition(Long, 1.0, 100_000, ts(0), "tBTCUSD"))

	tt := tr.PartialClose(2.0, 105_000, ts(1), "X")
	require.NotNil(t, tt)
	assert.False(t, tt.IsPartial)
	assert.InDelta(t, 1.0, tt.Size, 1e-12)
	assert.Equal(t, "X", tt.Reason)
	assert.Nil(t, tr.Position())
}

func TestPartialCloseExactRemainderCloses(t *testing.T) {
	t.Parallel()

	tr := newTestTracker(t, Config{})
	require.NotNil(t, tr.OpenPosition(Long, 1.0, 100_000, ts(0), "tBTCUSD"))
	require.NotNil(t, tr.PartialClose(0.4, 105_000, ts(1), "TP1"))

	// Requesting exactly the remainder is a full close, not a partial.
	tt := tr.PartialClose(0.6, 106_000, ts(2), "TP2")
	require.NotNil(t, tt)
	assert.False(t, tt.IsPartial)
	assert.Nil(t, tr.Position())
}

func TestInvalidRequestsAreSilentNoops(t *testing.T) {
	t.Parallel()

	tr := newTestTracker(t, Config{})

	assert.Nil(t, tr.PartialClose(0.5, 100_000, ts(0), "TP1"))
	assert.Nil(t, tr.ClosePositionWithReason(100_000, ts(0), "STOP"))

	require.NotNil(t, tr.OpenPosition(Long, 1.0, 100_000, ts(0), "tBTCUSD"))
	assert.Nil(t, tr.PartialClose(0, 100_000, ts(1), "TP1"))
	assert.Nil(t, tr.PartialClose(-0.5, 100_000, ts(1), "TP1"))
	assert.Nil(t, tr.OpenPosition(Long, 1.0, 100_000, ts(1), "tBTCUSD"))

	assert.Equal(t, 1.0, tr.Position().CurrentSize)
	assert.Empty(t, tr.Trades())
}

func TestSlippageDirection(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		side      Side
		wantEntry float64
		wantExit  float64
	}{
		{"long_pays_up_in_sells_down_out", Long, 100_010, 104_989.5},
		{"short_sells_down_in_buys_up_out", Short, 99_990, 105_010.5},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			tr := newTestTracker(t, Config{SlippageBps: 1})
			pos := tr.OpenPosition(tc.side, 1.0, 100_000, ts(0), "tBTCUSD")
			require.NotNil(t, pos)
			assert.InDelta(t, tc.wantEntry, pos.EntryPrice, 1e-6)

			tt := tr.ClosePositionWithReason(105_000, ts(1), "STOP")
			require.NotNil(t, tt)
			assert.InDelta(t, tc.wantExit, tt.ExitPrice, 1e-6)
		})
	}
}

func TestShortPnL(t *testing.T) {
	t.Parallel()

	tr := newTestTracker(t, Config{})
	require.NotNil(t, tr.OpenPosition(Short, 2.0, 100_000, ts(0), "tBTCUSD"))

	tt := tr.ClosePositionWithReason(95_000, ts(1), "TP1")
	require.NotNil(t, tt)
	assert.InDelta(t, 10_000.0, tt.PnL, 1e-6)
	assert.InDelta(t, 110_000.0, tr.Capital(), 1e-6)
}

func TestCommissionCharged(t *testing.T) {
	t.Parallel()

	tr := newTestTracker(t, Config{CommissionRate: 0.001})
	require.NotNil(t, tr.OpenPosition(Long, 1.0, 100_000, ts(0), "tBTCUSD"))

	// Entry commission: 1.0 * 100000 * 0.001 = 100
	assert.InDelta(t, 99_900.0, tr.Capital(), 1e-6)

	tt := tr.ClosePositionWithReason(100_000, ts(1), "FLAT")
	require.NotNil(t, tt)
	// Exit commission only; the flat close earns nothing.
	assert.InDelta(t, -100.0, tt.PnL, 1e-6)
	assert.InDelta(t, 99_800.0, tr.Capital(), 1e-6)
}

func TestUnrealizedAndEquity(t *testing.T) {
	t.Parallel()

	tr := newTestTracker(t, Config{})
	assert.Equal(t, 0.0, tr.UnrealizedPnL(123))
	assert.Equal(t, 0.0, tr.RemainingPct())

	require.NotNil(t, tr.OpenPosition(Long, 1.0, 100_000, ts(0), "tBTCUSD"))
	assert.InDelta(t, 5000.0, tr.UnrealizedPnL(105_000), 1e-6)
	assert.InDelta(t, 0.05, tr.UnrealizedPnLPct(105_000), 1e-9)
	assert.InDelta(t, 105_000.0, tr.Equity(105_000), 1e-6)

	require.NotNil(t, tr.PartialClose(0.4, 105_000, ts(1), "TP1"))
	assert.InDelta(t, 0.6, tr.RemainingPct(), 1e-12)
	assert.InDelta(t, 3000.0, tr.UnrealizedPnL(105_000), 1e-6)
}

func TestReset(t *testing.T) {
	t.Parallel()

	tr := newTestTracker(t, Config{})
	require.NotNil(t, tr.OpenPosition(Long, 1.0, 100_000, ts(0), "tBTCUSD"))
	require.NotNil(t, tr.ClosePositionWithReason(110_000, ts(1), "TP1"))

	tr.Reset()
	assert.Nil(t, tr.Position())
	assert.Empty(t, tr.Trades())
	assert.Equal(t, 100_000.0, tr.Capital())
	assert.Equal(t, 0.0, tr.RealizedPnL())
}
