package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stub is a fixed-verdict component for chain-behavior tests.
type stub struct {
	name string
	res  ComponentResult
	hits *int
}

func (s stub) Name() string { return s.name }

func (s stub) Evaluate(Context) ComponentResult {
	if s.hits != nil {
		*s.hits++
	}
	return s.res
}

func TestNewCompositeRejectsEmptyChain(t *testing.T) {
	t.Parallel()

	_, err := NewComposite()
	assert.Error(t, err)

	_, err = NewComposite(stub{name: "a", res: allow(1, nil)}, nil)
	assert.Error(t, err)
}

func TestCompositeAllAllowed(t *testing.T) {
	t.Parallel()

	chain, err := NewComposite(
		stub{name: "a", res: allow(0.9, nil)},
		stub{name: "b", res: allow(0.6, nil)},
		stub{name: "c", res: allow(0.8, nil)},
	)
	require.NoError(t, err)

	dec := chain.Evaluate(Context{})
	assert.True(t, dec.Allowed)
	assert.Equal(t, 0.6, dec.Confidence)
	assert.Empty(t, dec.VetoComponent)
	assert.Len(t, dec.Results, 3)
}

func TestCompositeShortCircuitsOnVeto(t *testing.T) {
	t.Parallel()

	var aHits, cHits int
	chain, err := NewComposite(
		stub{name: "a", res: allow(0.9, nil), hits: &aHits},
		stub{name: "b", res: veto(ReasonVolatilityFilter, 0.3, nil)},
		stub{name: "c", res: allow(0.8, nil), hits: &cHits},
	)
	require.NoError(t, err)

	dec := chain.Evaluate(Context{})
	require.False(t, dec.Allowed)
	assert.Equal(t, "b", dec.VetoComponent)
	assert.Equal(t, ReasonVolatilityFilter, dec.VetoReason)

	// The veto's own confidence participates in the minimum.
	assert.Equal(t, 0.3, dec.Confidence)

	// Only evaluated components appear; the one behind the veto never ran.
	assert.Len(t, dec.Results, 2)
	assert.Contains(t, dec.Results, "a")
	assert.Contains(t, dec.Results, "b")
	assert.NotContains(t, dec.Results, "c")
	assert.Equal(t, 1, aHits)
	assert.Equal(t, 0, cHits)
}

func TestCompositeAllowedIffEveryComponentAllows(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		results []ComponentResult
		want    bool
	}{
		{"all_allow", []ComponentResult{allow(1, nil), allow(1, nil)}, true},
		{"first_vetoes", []ComponentResult{veto("X", 0, nil), allow(1, nil)}, false},
		{"last_vetoes", []ComponentResult{allow(1, nil), veto("X", 0, nil)}, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			comps := make([]Component, len(tc.results))
			for i, r := range tc.results {
				comps[i] = stub{name: string(rune('a' + i)), res: r}
			}
			chain, err := NewComposite(comps...)
			require.NoError(t, err)
			assert.Equal(t, tc.want, chain.Evaluate(Context{}).Allowed)
		})
	}
}
