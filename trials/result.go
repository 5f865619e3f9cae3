package trials

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/quantlab/backcast/backtest"
)

// Score is the optimizer-facing evaluation of one trial.
type Score struct {
	Score        float64            `json:"score"`
	Metrics      map[string]float64 `json:"metrics"`
	HardFailures []string           `json:"hard_failures"`
}

// Constraints reports whether the trial satisfied every hard constraint.
type Constraints struct {
	OK bool `json:"ok"`
}

// Result is the persisted form of one trial, one JSON file each.
type Result struct {
	TrialID     string      `json:"trial_id"`
	Parameters  Parameters  `json:"parameters"`
	Score       Score       `json:"score"`
	Constraints Constraints `json:"constraints"`
}

// minTrades is the floor below which a backtest result is statistically
// meaningless and the trial hard-fails.
const minTrades = 5

// ScoreReport reduces a backtest report to the optimizer scoring contract:
// return net of a drawdown penalty, with hard failures for degenerate runs.
func ScoreReport(rep *backtest.Report) Score {
	s := rep.Summary
	sc := Score{
		Metrics: map[string]float64{
			"trades":        float64(s.Trades),
			"win_rate":      s.WinRate,
			"total_return":  s.TotalReturn,
			"profit_factor": s.ProfitFactor,
			"max_drawdown":  s.MaxDrawdown,
		},
	}
	if s.Trades < minTrades {
		sc.HardFailures = append(sc.HardFailures, "insufficient_trades")
	}
	if s.MaxDrawdown > 0.5 {
		sc.HardFailures = append(sc.HardFailures, "excessive_drawdown")
	}
	if len(sc.HardFailures) > 0 {
		return sc
	}
	sc.Score = s.TotalReturn - s.MaxDrawdown
	return sc
}

// NewResult stamps a fresh trial id onto a scored parameter set.
func NewResult(params Parameters, score Score) Result {
	return Result{
		TrialID:     uuid.NewString(),
		Parameters:  params,
		Score:       score,
		Constraints: Constraints{OK: len(score.HardFailures) == 0},
	}
}

// Write persists the result as <dir>/<trial_id>.json.
func (r Result) Write(dir string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("trials: marshal result: %w", err)
	}
	path := filepath.Join(dir, r.TrialID+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("trials: write result: %w", err)
	}
	return nil
}
