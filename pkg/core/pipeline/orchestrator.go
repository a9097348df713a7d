// Package pipeline wires the engines into end-to-end runs: one
// deterministic deal evaluation, or a Monte Carlo simulation over it.
package pipeline

import (
	"context"
	"fmt"
	"math"
	"time"

	"lbo_valuation/pkg/core/assumption"
	"lbo_valuation/pkg/core/config"
	"lbo_valuation/pkg/core/modelerr"
	"lbo_valuation/pkg/core/projection"
	"lbo_valuation/pkg/core/simulation"
	"lbo_valuation/pkg/core/valuation"
	"lbo_valuation/pkg/core/waterfall"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ValidationConfig sets the tolerance for post-run integrity checks.
type ValidationConfig struct {
	EnableStrictValidation bool    // if true, a failed check fails the run
	Tolerance              float64 // allowed absolute gap (default 0.01)
}

// SensitivityRequest lists grid axes. Empty axes skip that grid.
type SensitivityRequest struct {
	DiscountRates  []float64
	TerminalGrowth []float64
	EntryMultiples []float64
	ExitMultiples  []float64
}

// DealRequest is everything one run needs. Only Deal and Assumptions are
// required.
type DealRequest struct {
	Deal        valuation.Deal
	Assumptions assumption.Assumptions

	Entity       string  // looked up in the history provider when set
	TargetIRR    float64 // > 0 enables ability-to-pay
	Target       *valuation.MetricInput
	Comps        []valuation.PeerComparable
	Transactions []valuation.PeerComparable
	Waterfall    *simulation.WaterfallSpec
	Sensitivity  *SensitivityRequest
}

// Check is one post-run integrity check.
type Check struct {
	Label string  `json:"label"`
	Diff  float64 `json:"diff"`
	OK    bool    `json:"ok"`
}

// DealReport is the outcome of RunDeal.
type DealReport struct {
	RunID        string                             `json:"run_id"`
	Deal         string                             `json:"deal"`
	Assumptions  assumption.Assumptions             `json:"assumptions"`
	Outcome      valuation.DealOutcome              `json:"outcome"`
	AbilityToPay *valuation.AbilityToPayResult      `json:"ability_to_pay,omitempty"`
	Comps        *valuation.RelativeValuationResult `json:"comps,omitempty"`
	Transactions *valuation.RelativeValuationResult `json:"transactions,omitempty"`
	Summary      []valuation.ValuationLineItem      `json:"summary"`
	Distribution *waterfall.DistributionResult      `json:"distribution,omitempty"`
	Sensitivity  []valuation.SensitivityGrid        `json:"sensitivity,omitempty"`
	Checks       []Check                            `json:"checks"`
	Elapsed      time.Duration                      `json:"elapsed"`
}

// SimulationReport is the outcome of Simulate.
type SimulationReport struct {
	RunID   string             `json:"run_id"`
	Deal    string             `json:"deal"`
	Result  *simulation.Result `json:"result"`
	Elapsed time.Duration      `json:"elapsed"`
}

// Orchestrator runs deals through projection, debt, valuation and
// distribution, and simulations through the Monte Carlo engine.
type Orchestrator struct {
	log              zerolog.Logger
	history          projection.HistoricalDataProvider
	simulator        *simulation.Simulator
	validationConfig ValidationConfig
}

// NewOrchestrator creates an orchestrator logging to logger.
func NewOrchestrator(logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		log:       logger.With().Str("component", "pipeline").Logger(),
		simulator: simulation.NewSimulator(logger),
		validationConfig: ValidationConfig{
			EnableStrictValidation: false, // Default: log warnings but proceed
			Tolerance:              0.01,
		},
	}
}

// SetHistoryProvider enables entity lookups for base revenue and margin.
func (o *Orchestrator) SetHistoryProvider(h projection.HistoricalDataProvider) {
	o.history = h
}

// SetValidationConfig updates the validation configuration.
func (o *Orchestrator) SetValidationConfig(cfg ValidationConfig) {
	o.validationConfig = cfg
}

// RunDeal executes one deterministic pass and every optional analysis the
// request enables.
func (o *Orchestrator) RunDeal(ctx context.Context, req DealRequest) (*DealReport, error) {
	runID := uuid.NewString()
	log := o.log.With().Str("run_id", runID).Str("deal", req.Deal.Name).Logger()
	start := time.Now()
	log.Info().Msg("deal run started")

	// 0. Base from history
	a, err := o.resolveAssumptions(ctx, req, log)
	if err != nil {
		return nil, err
	}

	// 1. Projection → debt → DCF → returns
	out, err := valuation.EvaluateDeal(req.Deal, a)
	if err != nil {
		log.Error().Err(err).Msg("deal evaluation failed")
		return nil, fmt.Errorf("evaluate %s: %w", req.Deal.Name, err)
	}
	log.Info().
		Float64("equity", out.SourcesUses.Equity).
		Float64("moic", out.Returns.MOIC).
		Float64("irr", out.Returns.IRR).
		Msg("deal evaluated")

	report := &DealReport{RunID: runID, Deal: req.Deal.Name, Assumptions: a, Outcome: out}

	// 2. Integrity checks
	report.Checks = o.validateOutcome(out, log)
	if o.validationConfig.EnableStrictValidation {
		for _, c := range report.Checks {
			if !c.OK {
				return nil, modelerr.Instability("checks."+c.Label, "gap %.6f exceeds tolerance %.6f", c.Diff, o.validationConfig.Tolerance)
			}
		}
	}

	// 3. Ability to pay
	if req.TargetIRR > 0 {
		atp, err := valuation.AbilityToPay(req.Deal, a, req.TargetIRR)
		if err != nil {
			return nil, fmt.Errorf("ability to pay: %w", err)
		}
		report.AbilityToPay = &atp
		log.Info().Float64("max_entry_ev", atp.MaxEntryEV).Msg("ability to pay computed")
	}

	// 4. Relative valuation
	if req.Target != nil {
		if len(req.Comps) > 0 {
			c := valuation.CalculateComps(*req.Target, req.Comps)
			report.Comps = &c
		}
		if len(req.Transactions) > 0 {
			t := valuation.CalculateTransactions(*req.Target, req.Transactions)
			report.Transactions = &t
		}
	}
	report.Summary = valuation.Summarize(valuation.SummaryInput{
		Outcome:      out,
		AbilityToPay: report.AbilityToPay,
		Comps:        report.Comps,
		Transactions: report.Transactions,
	})

	// 5. Distribution of realized proceeds
	if req.Waterfall != nil {
		dist, err := waterfall.Allocate(math.Max(out.Returns.TotalProceeds(), 0), req.Waterfall.Tiers, req.Waterfall.Classes)
		if err != nil {
			return nil, fmt.Errorf("waterfall: %w", err)
		}
		report.Distribution = &dist
	}

	// 6. Sensitivities
	if s := req.Sensitivity; s != nil {
		if len(s.DiscountRates) > 0 && len(s.TerminalGrowth) > 0 {
			g, err := valuation.Sensitivity(a, s.DiscountRates, s.TerminalGrowth)
			if err != nil {
				return nil, fmt.Errorf("dcf sensitivity: %w", err)
			}
			report.Sensitivity = append(report.Sensitivity, g)
		}
		if len(s.EntryMultiples) > 0 && len(s.ExitMultiples) > 0 {
			g, err := valuation.ReturnsSensitivity(req.Deal, a, s.EntryMultiples, s.ExitMultiples)
			if err != nil {
				return nil, fmt.Errorf("returns sensitivity: %w", err)
			}
			report.Sensitivity = append(report.Sensitivity, g)
		}
	}

	report.Elapsed = time.Since(start)
	log.Info().Dur("elapsed", report.Elapsed).Msg("deal run finished")
	return report, nil
}

// Simulate runs the Monte Carlo engine over the request's deal.
func (o *Orchestrator) Simulate(ctx context.Context, req DealRequest, dists []assumption.DistributionSpec, opts simulation.Options) (*SimulationReport, error) {
	runID := uuid.NewString()
	log := o.log.With().Str("run_id", runID).Str("deal", req.Deal.Name).Logger()
	start := time.Now()

	a, err := o.resolveAssumptions(ctx, req, log)
	if err != nil {
		return nil, err
	}

	res, err := o.simulator.Run(ctx, simulation.Input{
		Deal:          req.Deal,
		Base:          a,
		Distributions: dists,
		Waterfall:     req.Waterfall,
	}, opts)
	if err != nil {
		log.Error().Err(err).Msg("simulation failed")
		return nil, fmt.Errorf("simulate %s: %w", req.Deal.Name, err)
	}

	rep := &SimulationReport{RunID: runID, Deal: req.Deal.Name, Result: res, Elapsed: time.Since(start)}
	log.Info().Int("valid", res.Valid).Dur("elapsed", rep.Elapsed).Msg("simulation run finished")
	return rep, nil
}

// resolveAssumptions replaces base revenue and margin with the entity's
// latest history when a provider and entity are set.
func (o *Orchestrator) resolveAssumptions(ctx context.Context, req DealRequest, log zerolog.Logger) (assumption.Assumptions, error) {
	a := req.Assumptions.Clone()
	if req.Entity == "" || o.history == nil {
		return a, nil
	}

	snap, err := o.history.Snapshot(ctx, req.Entity)
	if err != nil {
		return assumption.Assumptions{}, fmt.Errorf("history for %s: %w", req.Entity, err)
	}
	base, err := projection.BaseFromHistory(snap)
	if err != nil {
		return assumption.Assumptions{}, modelerr.Assumption("base_revenue", "%v", err)
	}
	a.BaseRevenue = base.BaseRevenue
	if base.EBITDAMargin > 0 {
		a.EBITDAMargin = base.EBITDAMargin
	}
	log.Info().
		Str("entity", req.Entity).
		Float64("base_revenue", a.BaseRevenue).
		Float64("ebitda_margin", a.EBITDAMargin).
		Float64("historical_cagr", base.AverageGrowth).
		Msg("base taken from history")
	return a, nil
}

// validateOutcome re-derives totals the engines report and compares.
func (o *Orchestrator) validateOutcome(out valuation.DealOutcome, log zerolog.Logger) []Check {
	var checks []Check

	// --- A. Sources equal uses ---
	su := out.SourcesUses
	checks = append(checks, o.checkTolerance(log, "sources_uses", su.TotalDebt+su.Equity-su.TotalUses))

	// --- B. Debt roll-forward (opening - paydown = ending, never negative) ---
	for _, row := range out.Schedule {
		gap := 0.0
		for _, tr := range row.Tranches {
			gap = math.Max(gap, math.Abs(tr.Opening-tr.Paydown()-tr.Ending))
			if tr.Ending < 0 {
				gap = math.Max(gap, -tr.Ending)
			}
		}
		checks = append(checks, o.checkTolerance(log, fmt.Sprintf("debt_rollforward.period_%d", row.Period), gap))
	}

	// --- C. DCF (EV = PV explicit + PV terminal) ---
	if out.DCF != nil {
		d := out.DCF
		checks = append(checks, o.checkTolerance(log, "dcf_enterprise_value", d.PVExplicit+d.PVTerminal-d.EnterpriseValue))
	}

	// --- D. Exit equity = exit EV - remaining debt ---
	r := out.Returns
	checks = append(checks, o.checkTolerance(log, "exit_equity", r.ExitEV-r.RemainingDebt-r.ExitEquity))
	return checks
}

// checkTolerance logs one check result.
func (o *Orchestrator) checkTolerance(log zerolog.Logger, label string, diff float64) Check {
	c := Check{Label: label, Diff: math.Abs(diff), OK: math.Abs(diff) <= o.validationConfig.Tolerance}
	if c.OK {
		log.Debug().Str("check", label).Msg("check passed")
		return c
	}
	ev := log.Warn()
	if o.validationConfig.EnableStrictValidation {
		ev = log.Error()
	}
	ev.Str("check", label).Float64("diff", c.Diff).Float64("tolerance", o.validationConfig.Tolerance).Msg("check failed")
	return c
}

// RequestFromFile builds a request from a loaded deal file.
func RequestFromFile(f *config.DealFile) (DealRequest, error) {
	d, err := f.ToDeal()
	if err != nil {
		return DealRequest{}, err
	}
	a, err := f.Assumptions()
	if err != nil {
		return DealRequest{}, err
	}
	req := DealRequest{
		Deal:        d,
		Assumptions: a,
		TargetIRR:   f.Deal.TargetIRR,
		Waterfall:   f.WaterfallSpec(),
	}
	if target, comps, transactions, ok := f.Relative(); ok {
		req.Target = &target
		req.Comps = comps
		req.Transactions = transactions
	}
	if s := f.Sensitivity; s != nil {
		req.Sensitivity = &SensitivityRequest{
			DiscountRates:  s.DiscountRates,
			TerminalGrowth: s.TerminalGrowth,
			EntryMultiples: s.EntryMultiples,
			ExitMultiples:  s.ExitMultiples,
		}
	}
	return req, nil
}
