// Package assumption defines the immutable operating, discount and
// terminal-value assumptions that drive a projection, plus the
// distribution specs the Monte Carlo layer samples them from.
package assumption

import (
	"fmt"
	"math"

	"lbo_valuation/pkg/core/modelerr"
)

// =============================================================================
// TERMINAL VALUE
// =============================================================================

// TerminalMethod selects how value beyond the explicit horizon is estimated.
type TerminalMethod string

const (
	TerminalPerpetuity   TerminalMethod = "perpetuity"
	TerminalExitMultiple TerminalMethod = "exit_multiple"
)

// TerminalSpec holds the terminal-value method and its parameter.
type TerminalSpec struct {
	Method       TerminalMethod `json:"method"`
	GrowthRate   float64        `json:"growth_rate"`   // perpetuity only
	ExitMultiple float64        `json:"exit_multiple"` // EV / EBITDA, exit_multiple only
}

// DiscountInputs are the components of the discount rate.
// When Rate is non-zero it is used directly and the WACC inputs are ignored.
type DiscountInputs struct {
	Rate              float64 `json:"rate"`
	RiskFreeRate      float64 `json:"risk_free_rate"`
	Beta              float64 `json:"beta"`
	EquityRiskPremium float64 `json:"equity_risk_premium"`
	PreTaxCostOfDebt  float64 `json:"pre_tax_cost_of_debt"`
	EquityMarketValue float64 `json:"equity_market_value"`
	DebtMarketValue   float64 `json:"debt_market_value"`

	// UnleveredBeta, when set with WACC inputs, re-levers beta each period
	// against the debt schedule instead of using one rate.
	UnleveredBeta float64 `json:"unlevered_beta,omitempty"`
}

// =============================================================================
// ASSUMPTIONS
// =============================================================================

// Assumptions is one scenario's full set of drivers.
// Percent fields are decimals (0.25 = 25%) of same-period revenue.
type Assumptions struct {
	BaseRevenue  float64   `json:"base_revenue"`  // period-0 revenue, > 0
	GrowthRates  []float64 `json:"growth_rates"`  // one per projected period, each > -1
	EBITDAMargin float64   `json:"ebitda_margin"` // [0,1]
	DAPercent    float64   `json:"da_percent"`    // [0,1]
	CapexPercent float64   `json:"capex_percent"` // [0,1]
	NWCPercent   float64   `json:"nwc_percent"`   // [0,1]
	TaxRate      float64   `json:"tax_rate"`      // [0,1]

	Discount DiscountInputs `json:"discount"`
	Terminal TerminalSpec   `json:"terminal"`
}

// New copies a and validates it. The returned value shares no slices with a.
func New(a Assumptions) (Assumptions, error) {
	c := a.Clone()
	if err := c.Validate(); err != nil {
		return Assumptions{}, err
	}
	return c, nil
}

// Clone returns a deep copy.
func (a Assumptions) Clone() Assumptions {
	c := a
	c.GrowthRates = append([]float64(nil), a.GrowthRates...)
	return c
}

// Horizon is the number of projected periods.
func (a Assumptions) Horizon() int {
	return len(a.GrowthRates)
}

// WithFlatGrowth returns a copy whose every period grows at g.
func (a Assumptions) WithFlatGrowth(g float64) Assumptions {
	c := a.Clone()
	for i := range c.GrowthRates {
		c.GrowthRates[i] = g
	}
	return c
}

// WithMargin returns a copy with a different EBITDA margin.
func (a Assumptions) WithMargin(m float64) Assumptions {
	c := a.Clone()
	c.EBITDAMargin = m
	return c
}

// WithTerminal returns a copy with a different terminal spec.
func (a Assumptions) WithTerminal(t TerminalSpec) Assumptions {
	c := a.Clone()
	c.Terminal = t
	return c
}

// WithDiscountRate returns a copy with an explicit discount rate.
func (a Assumptions) WithDiscountRate(r float64) Assumptions {
	c := a.Clone()
	c.Discount.Rate = r
	return c
}

// Validate checks the operating assumptions against their documented ranges.
// Discount and terminal parameters are checked by the valuation engine,
// which knows the rate they are compared against.
func (a Assumptions) Validate() error {
	if !finite(a.BaseRevenue) || a.BaseRevenue <= 0 {
		return modelerr.Assumption("base_revenue", "must be positive and finite, got %v", a.BaseRevenue)
	}
	if len(a.GrowthRates) == 0 {
		return modelerr.Assumption("growth_rates", "horizon must be at least one period")
	}
	for i, g := range a.GrowthRates {
		if !finite(g) || g <= -1 {
			return modelerr.Assumption(fmt.Sprintf("growth_rates[%d]", i), "must be finite and greater than -1, got %v", g)
		}
	}

	unit := []struct {
		field string
		value float64
	}{
		{"ebitda_margin", a.EBITDAMargin},
		{"da_percent", a.DAPercent},
		{"capex_percent", a.CapexPercent},
		{"nwc_percent", a.NWCPercent},
		{"tax_rate", a.TaxRate},
	}
	for _, u := range unit {
		if !finite(u.value) || u.value < 0 || u.value > 1 {
			return modelerr.Assumption(u.field, "must be within [0,1], got %v", u.value)
		}
	}

	switch a.Terminal.Method {
	case TerminalPerpetuity, TerminalExitMultiple, "":
	default:
		return modelerr.Assumption("terminal.method", "unknown method %q", a.Terminal.Method)
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
