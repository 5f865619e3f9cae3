package strategy

// Cooldown enforces a minimum bar spacing between entries per symbol.
//
// Evaluate is a pure read of the last-entry map; the only mutator is
// RecordTrade, which exactly one call site (the backtest engine's
// post-execution step, after a confirmed entry) is allowed to invoke.
// Keeping the read and write paths separate means Evaluate can run
// speculatively multiple times per bar without double-counting.
type Cooldown struct {
	MinBars   int
	lastEntry map[string]int
}

// NewCooldown returns a cooldown gate with empty state.
func NewCooldown(minBars int) *Cooldown {
	return &Cooldown{MinBars: minBars, lastEntry: make(map[string]int)}
}

func (c *Cooldown) Name() string { return "cooldown" }

// Evaluate allows when no entry has ever been recorded for the symbol, or
// when at least MinBars bars have elapsed since the last recorded entry.
func (c *Cooldown) Evaluate(ctx Context) ComponentResult {
	symbol, ok := ctxString(ctx, KeySymbol)
	if !ok {
		return veto(ReasonMissingInput, 0, map[string]any{"missing": KeySymbol})
	}
	bar, ok := ctxInt(ctx, KeyBarIndex)
	if !ok {
		return veto(ReasonMissingInput, 0, map[string]any{"missing": KeyBarIndex})
	}
	last, seen := c.lastEntry[symbol]
	if !seen {
		return allow(1, nil)
	}
	since := bar - last
	meta := map[string]any{"bars_since_trade": since}
	if since < c.MinBars {
		return veto(ReasonCooldownActive, 0, meta)
	}
	return allow(1, meta)
}

// RecordTrade marks a confirmed entry for the symbol at the given bar. It is
// never called from Evaluate and must never be called for exits or
// management actions.
func (c *Cooldown) RecordTrade(symbol string, barIndex int) {
	c.lastEntry[symbol] = barIndex
}

// Reset clears all recorded entries. Independent runs must not share
// cooldown state.
func (c *Cooldown) Reset() {
	c.lastEntry = make(map[string]int)
}
