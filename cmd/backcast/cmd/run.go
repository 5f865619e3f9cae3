package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/quantlab/backcast/backtest"
	"github.com/quantlab/backcast/config"
	"github.com/quantlab/backcast/decision"
	"github.com/quantlab/backcast/htf"
	"github.com/quantlab/backcast/indicators"
	"github.com/quantlab/backcast/internal/id"
	"github.com/quantlab/backcast/journal"
	"github.com/quantlab/backcast/sim"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Replay a strategy configuration over a candle CSV",
	Long: `Run one deterministic backtest: load candles, evaluate the decision
pipeline bar by bar, and print the trade summary.

Example:
  backcast run --candles data/btcusd_1h.csv --config champion.yaml --db results.sqlite`,
	RunE: runRun,
}

var (
	runCandlesPath string
	runHTFPath     string
	runConfigPath  string
	runChampionDir string
	runDBPath      string
	runResumePath  string
	runVerbose     bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runCandlesPath, "candles", "c", "", "path to candle CSV (time,open,high,low,close,volume) (required)")
	runCmd.Flags().StringVar(&runHTFPath, "htf-candles", "", "path to higher-timeframe candle CSV")
	runCmd.Flags().StringVar(&runConfigPath, "config", "", "strategy config YAML (defaults used when omitted)")
	runCmd.Flags().StringVar(&runChampionDir, "champions", "", "champion config directory (ignored for replay configs)")
	runCmd.Flags().StringVarP(&runDBPath, "db", "d", "", "path to SQLite journal DB")
	runCmd.Flags().StringVar(&runResumePath, "resume", "", "path to resume-state checkpoint file")
	runCmd.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "enable debug logging")

	runCmd.MarkFlagRequired("candles")
}

func buildLogger() (*zap.Logger, error) {
	if runVerbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func runRun(cmd *cobra.Command, args []string) error {
	log, err := buildLogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	cfg := config.Default()
	if runConfigPath != "" {
		cfg, err = config.LoadFromFile(runConfigPath)
		if err != nil {
			return err
		}
	}

	bars, err := loadCandles(runCandlesPath)
	if err != nil {
		return err
	}

	// A corrupted checkpoint aborts the run; only a cleanly absent file
	// means a fresh start.
	if runResumePath != "" {
		st, err := config.LoadResume(runResumePath)
		if err != nil {
			return err
		}
		if st != nil && st.LastBar >= len(bars)-1 {
			fmt.Printf("run %s already completed through bar %d, nothing to do\n", st.RunID, st.LastBar)
			return nil
		}
	}

	var provider *htf.Provider
	if runHTFPath != "" {
		htfBars, err := loadCandles(runHTFPath)
		if err != nil {
			return err
		}
		hcfg, err := cfg.HTF.ProviderConfig()
		if err != nil {
			return err
		}
		provider, err = htf.NewProvider(htfBars, hcfg)
		if err != nil {
			return err
		}
	}

	deps := decision.Deps{HTF: provider, Logger: log}
	if runChampionDir != "" {
		deps.Champion = &config.FileChampionLoader{Dir: runChampionDir}
	}
	dec, err := decision.New(cfg, deps)
	if err != nil {
		return err
	}

	var jrnl journal.Journal
	var db *journal.SQLite
	if runDBPath != "" {
		db, err = journal.NewSQLite(runDBPath)
		if err != nil {
			return fmt.Errorf("open db: %w", err)
		}
		defer db.Close()
		jrnl = db
	}

	eng, err := backtest.New(backtest.Params{
		Decision: dec,
		Tracker:  sim.NewTracker(dec.Config().Account, log),
		Journal:  jrnl,
		Logger:   log,
	})
	if err != nil {
		return err
	}

	arrays, err := indicators.Precompute(bars, dec.Config().Indicators)
	if err != nil {
		return err
	}
	rep, err := eng.Run(bars, arrays)
	if err != nil {
		return err
	}

	runID := id.New()
	if db != nil {
		if err := db.RecordRun(journal.RunSummary{
			RunID:        runID,
			Symbol:       dec.Config().Symbol,
			Finished:     bars[len(bars)-1].Time,
			Bars:         rep.Summary.BarsProcessed,
			Trades:       rep.Summary.Trades,
			TotalReturn:  rep.Summary.TotalReturn,
			MaxDrawdown:  rep.Summary.MaxDrawdown,
			FinalCapital: rep.Summary.FinalCapital,
		}); err != nil {
			return fmt.Errorf("record run: %w", err)
		}
	}

	if runResumePath != "" {
		st := config.ResumeState{
			RunID:     runID,
			Symbol:    dec.Config().Symbol,
			LastBar:   len(bars) - 1,
			Capital:   rep.Summary.FinalCapital,
			UpdatedAt: bars[len(bars)-1].Time,
		}
		if err := config.SaveResume(runResumePath, st); err != nil {
			return err
		}
	}

	s := rep.Summary
	fmt.Printf("bars processed: %d\n", s.BarsProcessed)
	fmt.Printf("trades:         %d (wins %d / losses %d, win rate %.1f%%)\n",
		s.Trades, s.Wins, s.Losses, s.WinRate*100)
	fmt.Printf("total return:   %.2f%%\n", s.TotalReturn*100)
	fmt.Printf("profit factor:  %.2f\n", s.ProfitFactor)
	fmt.Printf("max drawdown:   %.2f%%\n", s.MaxDrawdown*100)
	fmt.Printf("final capital:  %.2f\n", s.FinalCapital)
	return nil
}
