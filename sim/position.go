package sim

import "time"

// Side: +1 long, -1 short.
type Side int8

const (
	Long  Side = +1
	Short Side = -1
)

func (s Side) String() string {
	if s == Short {
		return "SHORT"
	}
	return "LONG"
}

// PartialExit records one fractional fill against an open position.
type PartialExit struct {
	Size   float64
	Price  float64
	Time   time.Time
	Reason string
}

// Position is the live state of one logical trade. It is created by
// Tracker.OpenPosition, mutated exclusively through Tracker methods, and
// ceases to exist exactly when CurrentSize reaches zero.
type Position struct {
	ID          string // ULID shared by every fill of this position
	Symbol      string
	Side        Side
	InitialSize float64
	CurrentSize float64
	EntryPrice  float64
	EntryTime   time.Time
	Partials    []PartialExit

	// ExitCtx freezes exit-level context captured at entry (e.g. HTF
	// levels), so later structural shifts cannot move a live position's
	// targets.
	ExitCtx map[string]float64
}

// Trade is one realized fill, partial or final. PositionID ties every fill
// of a logical position together.
type Trade struct {
	PositionID string
	Symbol     string
	Side       Side
	Size       float64
	EntryPrice float64
	ExitPrice  float64
	EntryTime  time.Time
	ExitTime   time.Time
	Reason     string
	PnL        float64
	IsPartial  bool
}
