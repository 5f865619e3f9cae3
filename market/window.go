package market

import (
	"fmt"
	"time"
)

// IndexMode selects which bar a consumer treats as "current". The two modes
// exist so the same code path can serve live evaluation (where the newest bar
// is still forming) and historical replay (where every bar is closed). Given
// equivalent data they must behave bit-identically.
type IndexMode int

const (
	// Replay uses the last bar of the window (length-1). Every bar in a
	// historical dataset is closed, so the newest bar is safe to read.
	Replay IndexMode = iota

	// Live uses the last *closed* bar (length-2), skipping the bar that is
	// still forming.
	Live
)

func (m IndexMode) String() string {
	if m == Live {
		return "live"
	}
	return "replay"
}

// Window is an ordered, as-of-bounded view over a bar series plus any
// precomputed indicator arrays indexed by the same integer bar position.
// No accessor ever returns data past the as-of index; that is the whole
// point of the type.
type Window struct {
	bars   []Bar
	arrays map[string][]float64
	asOf   int
}

// NewWindow builds a view over bars[0..asOf]. The backing slices are shared,
// not copied; the as-of bound is what prevents lookahead.
func NewWindow(bars []Bar, asOf int, arrays map[string][]float64) (*Window, error) {
	if len(bars) == 0 {
		return nil, fmt.Errorf("market: empty bar series")
	}
	if asOf < 0 || asOf >= len(bars) {
		return nil, fmt.Errorf("market: as-of index %d out of range [0,%d]", asOf, len(bars)-1)
	}
	return &Window{bars: bars, arrays: arrays, asOf: asOf}, nil
}

// AsOf returns the inclusive upper bound of the window.
func (w *Window) AsOf() int { return w.asOf }

// Len returns the number of visible bars (asOf+1).
func (w *Window) Len() int { return w.asOf + 1 }

// Bar returns the bar at index i, or an error if i is outside the as-of bound.
func (w *Window) Bar(i int) (Bar, error) {
	if i < 0 || i > w.asOf {
		return Bar{}, fmt.Errorf("market: index %d outside as-of bound %d", i, w.asOf)
	}
	return w.bars[i], nil
}

// Last returns the newest visible bar.
func (w *Window) Last() Bar { return w.bars[w.asOf] }

// LastIndex resolves the "current" bar index for the given mode. The caller
// supplies the mode explicitly; nothing here consults the wall clock.
func (w *Window) LastIndex(mode IndexMode) (int, error) {
	idx := w.asOf
	if mode == Live {
		idx--
	}
	if idx < 0 {
		return 0, fmt.Errorf("market: window too short for %s mode (%d bars)", mode, w.Len())
	}
	return idx, nil
}

// Time returns the timestamp of the newest visible bar.
func (w *Window) Time() time.Time { return w.bars[w.asOf].Time }

// Closes returns the visible close prices, clipped at the as-of bound.
// The returned slice shares backing memory and must not be mutated.
func (w *Window) Closes() []float64 {
	out := make([]float64, w.Len())
	for i := range out {
		out[i] = w.bars[i].Close
	}
	return out
}

// Series returns a precomputed indicator array clipped at the as-of bound.
// ok is false when no array with that name was supplied.
func (w *Window) Series(name string) ([]float64, bool) {
	s, ok := w.arrays[name]
	if !ok {
		return nil, false
	}
	n := w.Len()
	if len(s) < n {
		n = len(s)
	}
	return s[:n], true
}

// Value returns one element of a precomputed array, bounds-checked against
// the as-of index.
func (w *Window) Value(name string, i int) (float64, bool) {
	if i < 0 || i > w.asOf {
		return 0, false
	}
	s, ok := w.arrays[name]
	if !ok || i >= len(s) {
		return 0, false
	}
	return s[i], true
}

// Bars returns the visible bars as a clipped subslice. Callers must treat the
// result as read-only.
func (w *Window) Bars() []Bar { return w.bars[:w.asOf+1] }
