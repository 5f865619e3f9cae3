package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/quantlab/backcast/config"
	"github.com/quantlab/backcast/indicators"
	"github.com/quantlab/backcast/market"
	"github.com/quantlab/backcast/trials"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Evaluate parameter trials concurrently",
	Long: `Sweep reads a YAML list of parameter sets and evaluates each one as an
independent backtest trial, writing one JSON result per trial. A shared
SQLite signature store deduplicates parameter sets across concurrent
sweep processes.

Example:
  backcast sweep --candles data/btcusd_1h.csv --params sweep.yaml --out results/ --signatures sigs.sqlite`,
	RunE: runSweep,
}

var (
	sweepCandlesPath string
	sweepHTFPath     string
	sweepConfigPath  string
	sweepParamsPath  string
	sweepOutDir      string
	sweepSigPath     string
	sweepWorkers     int
)

func init() {
	rootCmd.AddCommand(sweepCmd)

	sweepCmd.Flags().StringVarP(&sweepCandlesPath, "candles", "c", "", "path to candle CSV (required)")
	sweepCmd.Flags().StringVar(&sweepHTFPath, "htf-candles", "", "path to higher-timeframe candle CSV")
	sweepCmd.Flags().StringVar(&sweepConfigPath, "config", "", "base strategy config YAML (defaults used when omitted)")
	sweepCmd.Flags().StringVarP(&sweepParamsPath, "params", "p", "", "YAML list of parameter sets (required)")
	sweepCmd.Flags().StringVarP(&sweepOutDir, "out", "o", "results", "directory for per-trial JSON results")
	sweepCmd.Flags().StringVar(&sweepSigPath, "signatures", "", "path to SQLite signature store for cross-process dedup")
	sweepCmd.Flags().IntVarP(&sweepWorkers, "workers", "w", 4, "concurrent trial workers")

	sweepCmd.MarkFlagRequired("candles")
	sweepCmd.MarkFlagRequired("params")
}

func loadParamSets(path string) ([]trials.Parameters, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read params: %w", err)
	}
	var sets []trials.Parameters
	if err := yaml.Unmarshal(data, &sets); err != nil {
		return nil, fmt.Errorf("parse params: %w", err)
	}
	if len(sets) == 0 {
		return nil, fmt.Errorf("params: %s contains no parameter sets", path)
	}
	return sets, nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	log, err := buildLogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	cfg := config.Default()
	if sweepConfigPath != "" {
		cfg, err = config.LoadFromFile(sweepConfigPath)
		if err != nil {
			return err
		}
	}
	cfg.Replay = true

	bars, err := loadCandles(sweepCandlesPath)
	if err != nil {
		return err
	}
	var htfBars []market.Bar
	if sweepHTFPath != "" {
		htfBars, err = loadCandles(sweepHTFPath)
		if err != nil {
			return err
		}
	}
	sets, err := loadParamSets(sweepParamsPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(sweepOutDir, 0o755); err != nil {
		return err
	}

	var store *trials.SignatureStore
	if sweepSigPath != "" {
		store, err = trials.NewSignatureStore(sweepSigPath)
		if err != nil {
			return err
		}
		defer store.Close()
	}

	arrays, err := indicators.Precompute(bars, cfg.Indicators)
	if err != nil {
		return err
	}

	runner := &trials.Runner{
		Base:    *cfg,
		Bars:    bars,
		HTFBars: htfBars,
		Arrays:  arrays,
		Store:   store,
		OutDir:  sweepOutDir,
		Workers: sweepWorkers,
		Logger:  log,
	}
	results, err := runner.Run(cmd.Context(), sets)
	if err != nil {
		return err
	}

	fmt.Printf("evaluated %d of %d trials (rest deduplicated)\n", len(results), len(sets))
	for _, r := range results {
		status := "ok"
		if !r.Constraints.OK {
			status = "failed constraints"
		}
		fmt.Printf("  %s  score=%.4f  %s\n", r.TrialID, r.Score.Score, status)
	}
	return nil
}
