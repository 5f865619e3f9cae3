package journal

import (
	"time"

	"github.com/quantlab/backcast/sim"
)

// TradeRecord is one realized fill. Partial exits and the final close of the
// same position share a PositionID.
type TradeRecord struct {
	PositionID string
	Symbol     string
	Side       string
	Size       float64
	EntryPrice float64
	ExitPrice  float64
	OpenTime   time.Time
	CloseTime  time.Time
	RealizedPL float64
	Reason     string
	IsPartial  bool
}

// EquitySnapshot is the per-bar account mark.
type EquitySnapshot struct {
	Time    time.Time
	Balance float64
	Equity  float64
}

// RunSummary is the terminal record of one completed backtest run.
type RunSummary struct {
	RunID        string
	Symbol       string
	Finished     time.Time
	Bars         int
	Trades       int
	TotalReturn  float64
	MaxDrawdown  float64
	FinalCapital float64
}

type Journal interface {
	RecordTrade(TradeRecord) error
	RecordEquity(EquitySnapshot) error
	Close() error
}

// FromSim converts a simulator trade into its journal form.
func FromSim(t sim.Trade) TradeRecord {
	return TradeRecord{
		PositionID: t.PositionID,
		Symbol:     t.Symbol,
		Side:       t.Side.String(),
		Size:       t.Size,
		EntryPrice: t.EntryPrice,
		ExitPrice:  t.ExitPrice,
		OpenTime:   t.EntryTime,
		CloseTime:  t.ExitTime,
		RealizedPL: t.PnL,
		Reason:     t.Reason,
		IsPartial:  t.IsPartial,
	}
}
