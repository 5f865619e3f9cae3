package backtest

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/quantlab/backcast/sim"
)

func TestSummarize(t *testing.T) {
	t.Parallel()

	trades := []sim.Trade{
		{PnL: 2000},
		{PnL: -500},
		{PnL: 1000},
		{PnL: 0}, // break-even counts as a win
	}

	s := summarize(trades, 100_000, 102_500, 0.08, 140)

	assert.Equal(t, 4, s.Trades)
	assert.Equal(t, 3, s.Wins)
	assert.Equal(t, 1, s.Losses)
	assert.InDelta(t, 0.75, s.WinRate, 1e-9)
	assert.InDelta(t, 0.025, s.TotalReturn, 1e-9)
	assert.InDelta(t, 6.0, s.ProfitFactor, 1e-9)
	assert.Equal(t, 0.08, s.MaxDrawdown)
	assert.Equal(t, 140, s.BarsProcessed)
	assert.Equal(t, 102_500.0, s.FinalCapital)
}

func TestSummarizeNoTrades(t *testing.T) {
	t.Parallel()

	s := summarize(nil, 100_000, 100_000, 0, 50)
	assert.Zero(t, s.Trades)
	assert.Zero(t, s.WinRate)
	assert.Zero(t, s.ProfitFactor)
	assert.Zero(t, s.TotalReturn)
}

func TestSummarizeNoLosses(t *testing.T) {
	t.Parallel()

	s := summarize([]sim.Trade{{PnL: 100}, {PnL: 200}}, 100_000, 100_300, 0, 50)
	assert.True(t, math.IsInf(s.ProfitFactor, 1))
	assert.Equal(t, 1.0, s.WinRate)
}
