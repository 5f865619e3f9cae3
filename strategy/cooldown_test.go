package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cooldownCtx(symbol string, bar int) Context {
	return Context{KeySymbol: symbol, KeyBarIndex: bar}
}

func TestCooldownAllowsBeforeAnyTrade(t *testing.T) {
	t.Parallel()

	cd := NewCooldown(24)
	res := cd.Evaluate(cooldownCtx("tBTCUSD", 500))
	assert.True(t, res.Allowed)
	assert.Equal(t, 1.0, res.Confidence)
}

func TestCooldownWindow(t *testing.T) {
	t.Parallel()

	cd := NewCooldown(24)
	cd.RecordTrade("tBTCUSD", 100)

	res := cd.Evaluate(cooldownCtx("tBTCUSD", 110))
	require.False(t, res.Allowed)
	assert.Equal(t, ReasonCooldownActive, res.Reason)
	assert.Equal(t, 10, res.Meta["bars_since_trade"])

	res = cd.Evaluate(cooldownCtx("tBTCUSD", 123))
	assert.False(t, res.Allowed)

	res = cd.Evaluate(cooldownCtx("tBTCUSD", 124))
	require.True(t, res.Allowed)
	assert.Equal(t, 24, res.Meta["bars_since_trade"])
}

func TestCooldownSameBarVetoed(t *testing.T) {
	t.Parallel()

	cd := NewCooldown(24)
	cd.RecordTrade("tBTCUSD", 100)

	res := cd.Evaluate(cooldownCtx("tBTCUSD", 100))
	assert.False(t, res.Allowed)
	assert.Equal(t, 0, res.Meta["bars_since_trade"])
}

func TestCooldownPerSymbol(t *testing.T) {
	t.Parallel()

	cd := NewCooldown(24)
	cd.RecordTrade("tBTCUSD", 100)

	res := cd.Evaluate(cooldownCtx("tETHUSD", 101))
	assert.True(t, res.Allowed)
}

func TestCooldownEvaluateIsPureRead(t *testing.T) {
	t.Parallel()

	cd := NewCooldown(24)
	cd.RecordTrade("tBTCUSD", 100)

	// Repeated evaluation must never advance or reset the window.
	for i := 0; i < 10; i++ {
		res := cd.Evaluate(cooldownCtx("tBTCUSD", 110))
		assert.False(t, res.Allowed)
		assert.Equal(t, 10, res.Meta["bars_since_trade"])
	}
}

func TestCooldownReset(t *testing.T) {
	t.Parallel()

	cd := NewCooldown(24)
	cd.RecordTrade("tBTCUSD", 100)
	cd.Reset()

	res := cd.Evaluate(cooldownCtx("tBTCUSD", 101))
	assert.True(t, res.Allowed)
}
