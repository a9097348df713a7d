package assumption

import (
	"math"

	"lbo_valuation/pkg/core/modelerr"
)

// DistributionType for Monte Carlo simulation
type DistributionType string

const (
	DistNormal     DistributionType = "normal"
	DistTriangular DistributionType = "triangular"
	DistUniform    DistributionType = "uniform"
	DistLognormal  DistributionType = "lognormal"
)

// Variables the simulator knows how to perturb.
const (
	VarRevenueGrowth  = "revenue_growth"  // flat growth rate for every period
	VarEBITDAMargin   = "ebitda_margin"   // EBITDA / revenue
	VarExitMultiple   = "exit_multiple"   // exit EV / EBITDA (deal exit and exit-multiple terminal value)
	VarDebtPaydown    = "debt_paydown"    // share of residual cash swept against debt
	VarDiscountRate   = "discount_rate"   // DCF discount rate
	VarTerminalGrowth = "terminal_growth" // perpetuity growth rate
)

// KnownVariables lists every variable a DistributionSpec may target.
var KnownVariables = []string{
	VarRevenueGrowth,
	VarEBITDAMargin,
	VarExitMultiple,
	VarDebtPaydown,
	VarDiscountRate,
	VarTerminalGrowth,
}

// DistributionSpec describes how one variable is sampled.
//
// Normal: Mean, Std. Lognormal: Mean and Std of the underlying normal (log space).
// Uniform: support [Min, Max]. Triangular: Min, Mode, Max.
// For normal and lognormal, Min and Max are optional clamp bounds and must
// be given together; a sample outside them is clamped. Clamping piles
// probability mass on the bounds, so the clamped variable's mean and spread
// differ from the unclamped distribution.
type DistributionSpec struct {
	Variable     string           `json:"variable" yaml:"variable"`
	Distribution DistributionType `json:"distribution" yaml:"distribution"`
	Mean         float64          `json:"mean" yaml:"mean"`
	Std          float64          `json:"std" yaml:"std"`
	Mode         float64          `json:"mode" yaml:"mode"`
	Min          *float64         `json:"min,omitempty" yaml:"min"`
	Max          *float64         `json:"max,omitempty" yaml:"max"`
}

// Bound returns a pointer to v for Min and Max.
func Bound(v float64) *float64 { return &v }

// Lo is Min, or -Inf when unset.
func (d DistributionSpec) Lo() float64 {
	if d.Min == nil {
		return math.Inf(-1)
	}
	return *d.Min
}

// Hi is Max, or +Inf when unset.
func (d DistributionSpec) Hi() float64 {
	if d.Max == nil {
		return math.Inf(1)
	}
	return *d.Max
}

// Bounded reports whether Min/Max clamp this spec.
func (d DistributionSpec) Bounded() bool {
	return d.Min != nil || d.Max != nil
}

// Clamp limits v to [Min, Max] and reports whether it had to.
func (d DistributionSpec) Clamp(v float64) (float64, bool) {
	if !d.Bounded() {
		return v, false
	}
	if lo := d.Lo(); v < lo {
		return lo, true
	}
	if hi := d.Hi(); v > hi {
		return hi, true
	}
	return v, false
}

// Validate checks the distribution's shape parameters.
func (d DistributionSpec) Validate() error {
	field := "distributions." + d.Variable
	known := false
	for _, v := range KnownVariables {
		if v == d.Variable {
			known = true
			break
		}
	}
	if !known {
		return modelerr.Configuration(field, "unknown variable %q", d.Variable)
	}
	params := []float64{d.Mean, d.Std, d.Mode}
	for _, b := range []*float64{d.Min, d.Max} {
		if b != nil {
			params = append(params, *b)
		}
	}
	for _, v := range params {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return modelerr.Configuration(field, "parameters must be finite")
		}
	}
	if (d.Min == nil) != (d.Max == nil) {
		return modelerr.Configuration(field, "min and max must be given together")
	}
	if d.Bounded() && d.Lo() > d.Hi() {
		return modelerr.Configuration(field, "min %v exceeds max %v", d.Lo(), d.Hi())
	}

	switch d.Distribution {
	case DistNormal, DistLognormal:
		if d.Std < 0 {
			return modelerr.Configuration(field, "std must be non-negative, got %v", d.Std)
		}
	case DistUniform:
		if !d.Bounded() || d.Lo() >= d.Hi() {
			return modelerr.Configuration(field, "uniform needs min < max")
		}
	case DistTriangular:
		if !d.Bounded() || d.Lo() >= d.Hi() || d.Mode < d.Lo() || d.Mode > d.Hi() {
			return modelerr.Configuration(field, "triangular needs min <= mode <= max and min < max")
		}
	default:
		return modelerr.Configuration(field, "unknown distribution %q", d.Distribution)
	}
	return nil
}
