package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "backcast",
	Short: "Deterministic bar-by-bar backtesting for ML-gated strategies",
	Long: `Backcast replays historical candles through a machine-learning-gated
decision pipeline and simulates the resulting trades with exact,
reproducible accounting.

It provides tools for:
  - Replaying a strategy configuration over a candle CSV
  - Sweeping parameter sets concurrently with cross-process dedup
  - Journaling trades and equity curves to SQLite or CSV`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}
