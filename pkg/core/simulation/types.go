// Package simulation runs the deal chain once per Monte Carlo draw and
// aggregates the resulting return distribution.
package simulation

import (
	"lbo_valuation/pkg/core/assumption"
	"lbo_valuation/pkg/core/valuation"
	"lbo_valuation/pkg/core/waterfall"
)

// Input is everything a run samples around.
type Input struct {
	Deal          valuation.Deal
	Base          assumption.Assumptions
	Distributions []assumption.DistributionSpec
	Waterfall     *WaterfallSpec // optional: split each draw's proceeds
}

// WaterfallSpec is the distribution waterfall applied to each draw's
// total equity proceeds. Negative proceeds distribute zero.
type WaterfallSpec struct {
	Tiers   []waterfall.Tier
	Classes []waterfall.Class
}

// Options control sampling, parallelism and aggregation.
type Options struct {
	Iterations int
	Seed       uint64
	Workers    int // <= 0 uses GOMAXPROCS

	KeepDraws bool

	Percentiles        []float64 // in [0,1]
	IRRThresholds      []float64 // report P(IRR >= t) for each
	VaRConfidence      float64   // e.g. 0.95 → VaR at the 5th percentile of IRR
	MaxInvalidFraction float64   // run fails when invalid/iterations exceeds this
}

// DefaultOptions mirrors the usual deal-committee run.
func DefaultOptions() Options {
	return Options{
		Iterations:         10_000,
		Seed:               42,
		Percentiles:        []float64{0.05, 0.10, 0.25, 0.50, 0.75, 0.90, 0.95},
		IRRThresholds:      []float64{0, 0.15, 0.20, 0.25},
		VaRConfidence:      0.95,
		MaxInvalidFraction: 0.05,
	}
}

// Draw is one sampled assumption vector and its outcome.
type Draw struct {
	Index           int                `json:"index"`
	Values          map[string]float64 `json:"values"`
	Clamped         []string           `json:"clamped,omitempty"`
	ExitEBITDA      float64            `json:"exit_ebitda"`
	ExitEV          float64            `json:"exit_ev"`
	RemainingDebt   float64            `json:"remaining_debt"`
	ExitEquity      float64            `json:"exit_equity"`
	Proceeds        float64            `json:"proceeds"` // exit equity plus interim distributions
	EnterpriseValue float64            `json:"enterprise_value"`
	MOIC            float64            `json:"moic"`
	IRR             float64            `json:"irr"`
	Split           map[string]float64 `json:"split,omitempty"`
	Valid           bool               `json:"valid"`
	Reason          string             `json:"reason,omitempty"`
}

// Percentile is one quantile of a distribution.
type Percentile struct {
	P     float64 `json:"p"`
	Value float64 `json:"value"`
}

// Stats summarizes one output across valid draws.
type Stats struct {
	Mean        float64      `json:"mean"`
	Median      float64      `json:"median"`
	StdDev      float64      `json:"std_dev"`
	Min         float64      `json:"min"`
	Max         float64      `json:"max"`
	Percentiles []Percentile `json:"percentiles"`
}

// At returns the percentile p, if it was requested.
func (s Stats) At(p float64) (float64, bool) {
	for _, q := range s.Percentiles {
		if q.P == p {
			return q.Value, true
		}
	}
	return 0, false
}

// Probability is P(IRR >= Threshold).
type Probability struct {
	Threshold   float64 `json:"threshold"`
	Probability float64 `json:"probability"`
}

// ClassStats summarizes one capital class's waterfall take.
type ClassStats struct {
	Class string `json:"class"`
	Stats Stats  `json:"stats"`
}

// Result is the aggregate of a run.
type Result struct {
	Seed       uint64 `json:"seed"`
	Iterations int    `json:"iterations"`
	Workers    int    `json:"workers"`
	Valid      int    `json:"valid"`
	Invalid    int    `json:"invalid"`

	InvalidReasons map[string]int `json:"invalid_reasons,omitempty"` // "KIND: field" → count
	Clamped        map[string]int `json:"clamped,omitempty"`         // variable → draws clamped

	IRR             Stats `json:"irr"`
	MOIC            Stats `json:"moic"`
	ExitEquity      Stats `json:"exit_equity"`
	EnterpriseValue Stats `json:"enterprise_value"` // DCF value; empty when no discount inputs

	ProbIRRAbove  []Probability `json:"prob_irr_above"`
	ProbLoss      float64       `json:"prob_loss"` // P(MOIC < 1)
	VaRConfidence float64       `json:"var_confidence"`
	VaR           float64       `json:"var"`  // IRR at the (1-confidence) percentile
	CVaR          float64       `json:"cvar"` // mean IRR at or below VaR
	Sharpe        float64       `json:"sharpe"`

	Waterfall []ClassStats `json:"waterfall,omitempty"`

	Base  valuation.DealOutcome `json:"base"`
	Draws []Draw                `json:"draws,omitempty"`
}
