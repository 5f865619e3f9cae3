package backtest

import (
	"math"

	"github.com/quantlab/backcast/sim"
)

// Summary aggregates one completed run.
type Summary struct {
	Trades        int
	Wins          int
	Losses        int
	WinRate       float64
	TotalReturn   float64
	ProfitFactor  float64
	MaxDrawdown   float64
	BarsProcessed int
	FinalCapital  float64
}

// summarize computes the aggregate metrics from the realized trade list plus
// the equity statistics collected during the loop.
func summarize(trades []sim.Trade, initialCapital, finalCapital, maxDrawdown float64, barsProcessed int) Summary {
	s := Summary{
		Trades:        len(trades),
		MaxDrawdown:   maxDrawdown,
		BarsProcessed: barsProcessed,
		FinalCapital:  finalCapital,
	}

	grossProfit := 0.0
	grossLoss := 0.0
	for _, tr := range trades {
		if tr.PnL >= 0 {
			s.Wins++
			grossProfit += tr.PnL
		} else {
			s.Losses++
			grossLoss += -tr.PnL
		}
	}
	if s.Trades > 0 {
		s.WinRate = float64(s.Wins) / float64(s.Trades)
	}
	if initialCapital > 0 {
		s.TotalReturn = (finalCapital - initialCapital) / initialCapital
	}
	switch {
	case grossLoss > 0:
		s.ProfitFactor = grossProfit / grossLoss
	case grossProfit > 0:
		s.ProfitFactor = math.Inf(1)
	}
	return s
}
