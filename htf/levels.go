package htf

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
)

// computeLevels maps each configured ratio onto a price between the swing
// bounds: level = low + (high-low)*ratio. The arithmetic runs on decimals so
// level keys like "0.382" land on exact, reproducible prices regardless of
// how the ratios were parsed.
func computeLevels(swingHigh, swingLow float64, ratios []float64) map[string]float64 {
	high := decimal.NewFromFloat(swingHigh)
	low := decimal.NewFromFloat(swingLow)
	span := high.Sub(low)

	levels := make(map[string]float64, len(ratios))
	for _, r := range ratios {
		ratio := decimal.NewFromFloat(r)
		level, _ := low.Add(span.Mul(ratio)).Float64()
		levels[ratioKey(r)] = level
	}
	return levels
}

// ratioKey renders a ratio as its canonical map key, e.g. 0.382 -> "0.382".
func ratioKey(r float64) string {
	return decimal.NewFromFloat(r).String()
}

// levelsInBounds verifies every level sits inside [swingLow, swingHigh].
// Comparison runs on decimals to avoid misclassifying a boundary level that
// float rounding nudged a hair outside the swing.
func levelsInBounds(levels map[string]float64, swingHigh, swingLow float64) bool {
	high := decimal.NewFromFloat(swingHigh)
	low := decimal.NewFromFloat(swingLow)
	for _, lv := range levels {
		d := decimal.NewFromFloat(lv)
		if d.Cmp(low) < 0 || d.Cmp(high) > 0 {
			return false
		}
	}
	return true
}

func validSwing(high, low float64) bool {
	if math.IsNaN(high) || math.IsNaN(low) || math.IsInf(high, 0) || math.IsInf(low, 0) {
		return false
	}
	return high > low
}

// levelCache is a get-or-compute cache keyed by a stable fingerprint of the
// swing bounds and ratio set. It replaces the ambient module-level cache the
// original system used: ownership is explicit, and the documented
// invalidation trigger is a fingerprint change (a new swing or new ratios).
type levelCache struct {
	mu     sync.Mutex
	fp     string
	levels map[string]float64
}

func (c *levelCache) getOrCompute(fp string, compute func() map[string]float64) map[string]float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fp == fp && c.levels != nil {
		return c.levels
	}
	c.fp = fp
	c.levels = compute()
	return c.levels
}

// fingerprint produces a stable key for one (swing, ratios) pairing.
func fingerprint(swingHigh, swingLow float64, ratios []float64) string {
	keys := make([]string, len(ratios))
	for i, r := range ratios {
		keys[i] = ratioKey(r)
	}
	sort.Strings(keys)
	payload := fmt.Sprintf("%s|%s|%s",
		decimal.NewFromFloat(swingHigh).String(),
		decimal.NewFromFloat(swingLow).String(),
		strings.Join(keys, ","))
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}
