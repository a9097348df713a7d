package valuation

import (
	"fmt"
	"math"

	"lbo_valuation/pkg/core/assumption"
	"lbo_valuation/pkg/core/debt"
	"lbo_valuation/pkg/core/modelerr"
	"lbo_valuation/pkg/core/projection"

	"gonum.org/v1/gonum/floats"
)

// EquityBridge holds the balance-sheet items between enterprise and equity value.
type EquityBridge struct {
	Cash              float64 `json:"cash"`
	Debt              float64 `json:"debt"` // ignored when a schedule is supplied
	MinorityInterest  float64 `json:"minority_interest"`
	Investments       float64 `json:"investments"`
	SharesOutstanding float64 `json:"shares_outstanding"`
}

// DCFInput encapsulates all inputs required for a discounted cash flow valuation.
type DCFInput struct {
	FCF         []float64 // unlevered free cash flow, period 1..n
	FinalEBITDA float64   // EBITDA of period n, for exit-multiple terminal value
	Rate        float64   // single discount rate
	PeriodRates []float64 // optional: one rate per period, overrides Rate
	Terminal    assumption.TerminalSpec
	Bridge      EquityBridge
	Schedule    []debt.ScheduleRow // optional: final ending balance is the bridge debt
}

// PVLine is one discounted period.
type PVLine struct {
	Period         int     `json:"period"`
	FCF            float64 `json:"fcf"`
	Rate           float64 `json:"rate"`
	DiscountFactor float64 `json:"discount_factor"`
	PV             float64 `json:"pv"`
}

// DCFResult holds the valuation outputs.
type DCFResult struct {
	EnterpriseValue float64  `json:"enterprise_value"`
	EquityValue     float64  `json:"equity_value"`
	SharePrice      float64  `json:"share_price"`
	PVExplicit      float64  `json:"pv_explicit"`
	TerminalValue   float64  `json:"terminal_value"`
	PVTerminal      float64  `json:"pv_terminal"`
	NetDebt         float64  `json:"net_debt"`         // debt + minority interest - cash - investments
	ImpliedMultiple float64  `json:"implied_multiple"` // TV / final EBITDA
	Detail          []PVLine `json:"detail"`
}

// NewDCFInput builds a DCFInput from a projection and its assumptions.
func NewDCFInput(rows []projection.Row, a assumption.Assumptions, rate float64) DCFInput {
	return DCFInput{
		FCF:         projection.FreeCashFlows(rows),
		FinalEBITDA: projection.FinalEBITDA(rows),
		Rate:        rate,
		Terminal:    a.Terminal,
	}
}

// Discount values a free-cash-flow series.
//
// FORMULA:
//
//	PV explicit = Σ FCF_t × DF_t, DF_t = Π_{k<=t} 1/(1+r_k)
//	Perpetuity TV = FCF_n × (1+g) / (r_n - g), requires r_n > g
//	Exit-multiple TV = EBITDA_n × multiple
//	EV = PV explicit + TV × DF_n
//	Equity = EV + cash - debt - minority interest + investments
func Discount(in DCFInput) (DCFResult, error) {
	if err := validateDCF(in); err != nil {
		return DCFResult{}, err
	}

	res := DCFResult{Detail: make([]PVLine, len(in.FCF))}

	// 1. Explicit period, cumulative discount factor
	df := 1.0
	pvs := make([]float64, len(in.FCF))
	for i, f := range in.FCF {
		r := periodRate(in, i)
		df /= 1 + r
		pvs[i] = f * df
		res.Detail[i] = PVLine{Period: i + 1, FCF: f, Rate: r, DiscountFactor: df, PV: pvs[i]}
	}
	res.PVExplicit = floats.SumCompensated(pvs)

	// 2. Terminal value
	n := len(in.FCF)
	switch in.Terminal.Method {
	case assumption.TerminalExitMultiple:
		res.TerminalValue = in.FinalEBITDA * in.Terminal.ExitMultiple
	default:
		g := in.Terminal.GrowthRate
		res.TerminalValue = in.FCF[n-1] * (1 + g) / (periodRate(in, n-1) - g)
	}
	res.PVTerminal = res.TerminalValue * df

	// 3. Equity bridge
	debtBalance := in.Bridge.Debt
	if len(in.Schedule) > 0 {
		debtBalance = in.Schedule[len(in.Schedule)-1].TotalEnding
	}
	res.EnterpriseValue = res.PVExplicit + res.PVTerminal
	res.NetDebt = debtBalance + in.Bridge.MinorityInterest - in.Bridge.Cash - in.Bridge.Investments
	res.EquityValue = res.EnterpriseValue - res.NetDebt
	if in.Bridge.SharesOutstanding > 0 {
		res.SharePrice = res.EquityValue / in.Bridge.SharesOutstanding
	}
	if in.FinalEBITDA != 0 {
		res.ImpliedMultiple = res.TerminalValue / in.FinalEBITDA
	}

	for _, c := range []struct {
		field string
		v     float64
	}{
		{"terminal_value", res.TerminalValue},
		{"enterprise_value", res.EnterpriseValue},
		{"equity_value", res.EquityValue},
	} {
		if !finite(c.v) {
			return DCFResult{}, modelerr.Instability(c.field, "non-finite result %v", c.v)
		}
	}
	return res, nil
}

func periodRate(in DCFInput, i int) float64 {
	if len(in.PeriodRates) > 0 {
		return in.PeriodRates[i]
	}
	return in.Rate
}

func validateDCF(in DCFInput) error {
	if len(in.FCF) == 0 {
		return modelerr.Assumption("fcf", "at least one period is required")
	}
	for i, f := range in.FCF {
		if !finite(f) {
			return modelerr.Assumption(fmt.Sprintf("fcf[%d]", i), "must be finite, got %v", f)
		}
	}
	if len(in.PeriodRates) > 0 {
		if len(in.PeriodRates) != len(in.FCF) {
			return modelerr.Assumption("period_rates", "expected %d rates, got %d", len(in.FCF), len(in.PeriodRates))
		}
		for i, r := range in.PeriodRates {
			if !finite(r) || r <= -1 {
				return modelerr.Assumption(fmt.Sprintf("period_rates[%d]", i), "must be finite and greater than -1, got %v", r)
			}
		}
	} else if !finite(in.Rate) || in.Rate <= -1 {
		return modelerr.Assumption("discount.rate", "must be finite and greater than -1, got %v", in.Rate)
	}

	switch in.Terminal.Method {
	case assumption.TerminalExitMultiple:
		if !finite(in.Terminal.ExitMultiple) || in.Terminal.ExitMultiple < 0 {
			return modelerr.Assumption("terminal.exit_multiple", "must be non-negative, got %v", in.Terminal.ExitMultiple)
		}
		if !finite(in.FinalEBITDA) {
			return modelerr.Assumption("final_ebitda", "must be finite, got %v", in.FinalEBITDA)
		}
	case assumption.TerminalPerpetuity, "":
		g := in.Terminal.GrowthRate
		r := periodRate(in, len(in.FCF)-1)
		if !finite(g) {
			return modelerr.Assumption("terminal.growth_rate", "must be finite, got %v", g)
		}
		if r <= g {
			return modelerr.Assumption("terminal.growth_rate", "discount rate %v must exceed terminal growth %v", r, g)
		}
	default:
		return modelerr.Assumption("terminal.method", "unknown method %q", in.Terminal.Method)
	}

	b := in.Bridge
	for _, c := range []struct {
		field string
		v     float64
	}{
		{"bridge.cash", b.Cash},
		{"bridge.debt", b.Debt},
		{"bridge.minority_interest", b.MinorityInterest},
		{"bridge.investments", b.Investments},
		{"bridge.shares_outstanding", b.SharesOutstanding},
	} {
		if !finite(c.v) || c.v < 0 {
			return modelerr.Assumption(c.field, "must be non-negative, got %v", c.v)
		}
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
