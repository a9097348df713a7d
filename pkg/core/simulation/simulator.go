package simulation

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"time"

	"lbo_valuation/pkg/core/assumption"
	"lbo_valuation/pkg/core/modelerr"
	"lbo_valuation/pkg/core/valuation"
	"lbo_valuation/pkg/core/waterfall"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Simulator runs Monte Carlo deal simulations. It holds no per-run state
// and may be shared.
type Simulator struct {
	log zerolog.Logger
}

// NewSimulator creates a simulator that logs to logger.
func NewSimulator(logger zerolog.Logger) *Simulator {
	return &Simulator{log: logger.With().Str("component", "simulation").Logger()}
}

// Run samples opts.Iterations assumption vectors, runs the deal chain for
// each on a worker pool and aggregates the valid draws in index order.
// The same seed yields identical results for any worker count.
func (s *Simulator) Run(ctx context.Context, in Input, opts Options) (*Result, error) {
	// 1. Validate configuration and the deterministic base case
	workers, err := validate(in, opts)
	if err != nil {
		return nil, err
	}
	base, err := valuation.EvaluateDeal(in.Deal, in.Base)
	if err != nil {
		return nil, fmt.Errorf("base case: %w", err)
	}

	start := time.Now()
	s.log.Info().
		Str("deal", in.Deal.Name).
		Int("iterations", opts.Iterations).
		Int("workers", workers).
		Uint64("seed", opts.Seed).
		Int("variables", len(in.Distributions)).
		Msg("simulation started")

	// 2. Fan out
	draws, err := s.runPool(ctx, in, opts, workers)
	if err != nil {
		s.log.Warn().Err(err).Msg("simulation cancelled")
		return nil, err
	}

	// 3. Reduce in index order
	res := aggregate(draws, opts, in.Waterfall)
	res.Seed = opts.Seed
	res.Workers = workers
	res.Base = base

	if res.Invalid > 0 {
		s.log.Warn().
			Int("invalid", res.Invalid).
			Str("reasons", formatReasons(res.InvalidReasons)).
			Msg("draws excluded from aggregation")
	}
	frac := float64(res.Invalid) / float64(opts.Iterations)
	if frac > opts.MaxInvalidFraction || res.Valid == 0 {
		return nil, modelerr.Instability("simulation.invalid_draws",
			"%d of %d draws invalid (%.2f%% > %.2f%% tolerance): %s",
			res.Invalid, opts.Iterations, frac*100, opts.MaxInvalidFraction*100, formatReasons(res.InvalidReasons))
	}

	if opts.KeepDraws {
		res.Draws = draws
	}

	s.log.Info().
		Int("valid", res.Valid).
		Int("invalid", res.Invalid).
		Float64("irr_mean", res.IRR.Mean).
		Float64("moic_mean", res.MOIC.Mean).
		Dur("elapsed", time.Since(start)).
		Msg("simulation finished")
	return res, nil
}

// runPool evaluates every iteration on at most workers goroutines. Each
// draw is written to its own index, so the result does not depend on
// scheduling.
func (s *Simulator) runPool(ctx context.Context, in Input, opts Options, workers int) ([]Draw, error) {
	draws := make([]Draw, opts.Iterations)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i < opts.Iterations; i++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			draws[i] = s.runDraw(in, opts, i)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("simulation: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("simulation: %w", err)
	}
	return draws, nil
}

// runDraw samples and evaluates iteration i. Engine failures and
// non-finite outputs mark the draw invalid instead of failing the run.
func (s *Simulator) runDraw(in Input, opts Options, i int) Draw {
	vec := drawVector(in.Distributions, newSource(opts.Seed, i))
	d := Draw{Index: i, Values: vec.values}
	for _, c := range vec.clamped {
		d.Clamped = append(d.Clamped, c.Field)
		s.log.Debug().Err(c).Int("iteration", i).Msg("draw clamped")
	}

	deal, a := apply(in.Deal, in.Base, vec.values)
	out, err := valuation.EvaluateDeal(deal, a)
	if err != nil {
		d.Reason = reason(err)
		s.log.Debug().Err(err).Int("iteration", i).Msg("draw invalid")
		return d
	}

	r := out.Returns
	d.ExitEBITDA = r.ExitEBITDA
	d.ExitEV = r.ExitEV
	d.RemainingDebt = r.RemainingDebt
	d.ExitEquity = r.ExitEquity
	d.Proceeds = r.TotalProceeds()
	d.MOIC = r.MOIC
	d.IRR = r.IRR
	if out.DCF != nil {
		d.EnterpriseValue = out.DCF.EnterpriseValue
	}

	if in.Waterfall != nil {
		total := d.Proceeds
		if total < 0 {
			total = 0
		}
		split, err := waterfall.Allocate(total, in.Waterfall.Tiers, in.Waterfall.Classes)
		if err != nil {
			d.Reason = reason(err)
			return d
		}
		d.Split = make(map[string]float64, len(split.Classes))
		for _, c := range split.Classes {
			d.Split[c.Name] = c.Amount
		}
	}

	d.Valid = true
	return d
}

func reason(err error) string {
	kind := modelerr.KindOf(err)
	if kind == "" {
		return "UNKNOWN"
	}
	return string(kind) + ": " + modelerr.FieldOf(err)
}

func formatReasons(reasons map[string]int) string {
	keys := make([]string, 0, len(reasons))
	for k := range reasons {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s ×%d", k, reasons[k])
	}
	return strings.Join(parts, "; ")
}

func validate(in Input, opts Options) (int, error) {
	if opts.Iterations < 1 {
		return 0, modelerr.Configuration("iterations", "must be at least 1, got %d", opts.Iterations)
	}
	if opts.MaxInvalidFraction < 0 || opts.MaxInvalidFraction > 1 {
		return 0, modelerr.Configuration("max_invalid_fraction", "must be within [0,1], got %v", opts.MaxInvalidFraction)
	}
	if opts.VaRConfidence <= 0 || opts.VaRConfidence >= 1 {
		return 0, modelerr.Configuration("var_confidence", "must be within (0,1), got %v", opts.VaRConfidence)
	}
	for _, p := range opts.Percentiles {
		if p < 0 || p > 1 {
			return 0, modelerr.Configuration("percentiles", "must be within [0,1], got %v", p)
		}
	}

	seen := make(map[string]bool, len(in.Distributions))
	for _, spec := range in.Distributions {
		if err := spec.Validate(); err != nil {
			return 0, err
		}
		if seen[spec.Variable] {
			return 0, modelerr.Configuration("distributions."+spec.Variable, "variable sampled twice")
		}
		seen[spec.Variable] = true
	}
	if seen[assumption.VarRevenueGrowth] && in.Base.Horizon() == 0 {
		return 0, modelerr.Assumption("growth_rates", "horizon must be at least one period")
	}

	if in.Waterfall != nil {
		if err := waterfall.Validate(in.Waterfall.Tiers, in.Waterfall.Classes); err != nil {
			return 0, err
		}
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > opts.Iterations {
		workers = opts.Iterations
	}
	return workers, nil
}
