package trials

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/quantlab/backcast/backtest"
	"github.com/quantlab/backcast/config"
	"github.com/quantlab/backcast/decision"
	"github.com/quantlab/backcast/htf"
	"github.com/quantlab/backcast/market"
	"github.com/quantlab/backcast/sim"
)

// Runner evaluates parameter trials concurrently against one shared,
// immutable bar series. Every trial builds its own engine, tracker, and
// cooldown state; nothing mutable crosses trial boundaries.
type Runner struct {
	Base    config.Config
	Bars    []market.Bar
	HTFBars []market.Bar
	Arrays  map[string][]float64
	Store   *SignatureStore
	OutDir  string

	// Workers bounds concurrent trials; zero means serial.
	Workers int

	Logger *zap.Logger
}

// Run claims and evaluates each parameter set, writing one JSON result per
// evaluated trial. Sets whose fingerprint another process already claimed
// are skipped. Returns the results this process produced.
func (r *Runner) Run(ctx context.Context, sets []Parameters) ([]Result, error) {
	log := r.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if !r.Base.Replay {
		return nil, fmt.Errorf("trials: sweeps require a replay config")
	}

	g, ctx := errgroup.WithContext(ctx)
	if r.Workers > 0 {
		g.SetLimit(r.Workers)
	} else {
		g.SetLimit(1)
	}

	var mu sync.Mutex
	var results []Result

	for _, params := range sets {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			fp := params.Fingerprint()
			if r.Store != nil {
				won, err := r.Store.Claim(fp)
				if err != nil {
					return fmt.Errorf("trials: claim %s: %w", fp, err)
				}
				if !won {
					log.Debug("trial skipped", zap.String("fingerprint", fp))
					return nil
				}
			}

			res, err := r.evaluate(params)
			if err != nil {
				return err
			}
			if r.OutDir != "" {
				if err := res.Write(r.OutDir); err != nil {
					return err
				}
			}
			log.Info("trial complete",
				zap.String("trial_id", res.TrialID),
				zap.Float64("score", res.Score.Score),
				zap.Bool("ok", res.Constraints.OK))

			mu.Lock()
			results = append(results, res)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// evaluate runs one trial end to end with fully isolated state.
func (r *Runner) evaluate(params Parameters) (Result, error) {
	cfg := params.Apply(r.Base)

	var provider *htf.Provider
	if len(r.HTFBars) > 0 {
		hcfg, err := cfg.HTF.ProviderConfig()
		if err != nil {
			return Result{}, fmt.Errorf("trials: htf config: %w", err)
		}
		p, err := htf.NewProvider(r.HTFBars, hcfg)
		if err != nil {
			return Result{}, fmt.Errorf("trials: htf provider: %w", err)
		}
		provider = p
	}

	dec, err := decision.New(&cfg, decision.Deps{HTF: provider})
	if err != nil {
		return Result{}, fmt.Errorf("trials: decision engine: %w", err)
	}
	eng, err := backtest.New(backtest.Params{
		Decision: dec,
		Tracker:  sim.NewTracker(cfg.Account, nil),
	})
	if err != nil {
		return Result{}, fmt.Errorf("trials: backtest engine: %w", err)
	}

	rep, err := eng.Run(r.Bars, r.Arrays)
	if err != nil {
		return Result{}, fmt.Errorf("trials: run: %w", err)
	}
	return NewResult(params, ScoreReport(rep)), nil
}
