package valuation

import (
	"fmt"
	"math"

	"lbo_valuation/pkg/core/modelerr"
)

// ApproximateIRR is the single-compounding shortcut MOIC^(1/years) - 1.
// It ignores the timing of interim cash flows. A MOIC at or below zero
// returns -1 (total loss).
func ApproximateIRR(moic float64, years float64) float64 {
	if moic <= 0 || years <= 0 {
		return -1
	}
	return math.Pow(moic, 1/years) - 1
}

// CashFlow is one dated amount; Time is in years from the investment date.
// Outflows are negative.
type CashFlow struct {
	Time   float64 `json:"time"`
	Amount float64 `json:"amount"`
}

// AnnualFlows turns an end-of-year series (index 0 = today) into dated flows.
func AnnualFlows(values []float64) []CashFlow {
	out := make([]CashFlow, len(values))
	for i, v := range values {
		out[i] = CashFlow{Time: float64(i), Amount: v}
	}
	return out
}

const (
	irrTolerance = 1e-10
	irrMaxIter   = 100
	irrFloor     = -0.999999
	irrCeiling   = 100.0
)

// NPV of flows at annual rate r.
func NPV(r float64, flows []CashFlow) float64 {
	v := 0.0
	for _, f := range flows {
		v += f.Amount / math.Pow(1+r, f.Time)
	}
	return v
}

// IRR solves NPV(r) = 0 over a possibly irregular cash-flow timeline.
// Newton-Raphson from a 10% guess; when Newton leaves the bracket or
// stalls, bisection over [irrFloor, irrCeiling] takes over.
func IRR(flows []CashFlow) (float64, error) {
	if len(flows) < 2 {
		return 0, modelerr.Assumption("cash_flows", "need at least two cash flows, got %d", len(flows))
	}
	var hasNeg, hasPos bool
	for i, f := range flows {
		if !finite(f.Amount) || !finite(f.Time) {
			return 0, modelerr.Assumption(fmt.Sprintf("cash_flows[%d]", i), "must be finite")
		}
		hasNeg = hasNeg || f.Amount < 0
		hasPos = hasPos || f.Amount > 0
	}
	if !hasNeg || !hasPos {
		return 0, modelerr.Assumption("cash_flows", "need both an outflow and an inflow")
	}

	// 1. Newton-Raphson
	r := 0.10
	for iter := 0; iter < irrMaxIter; iter++ {
		f, d := npvAndDeriv(r, flows)
		if math.Abs(f) < irrTolerance {
			return r, nil
		}
		if d == 0 || !finite(d) {
			break
		}
		next := r - f/d
		if next <= irrFloor || next >= irrCeiling || !finite(next) {
			break
		}
		if math.Abs(next-r) < irrTolerance {
			return next, nil
		}
		r = next
	}

	// 2. Bisection fallback
	lo, hi := irrFloor, irrCeiling
	flo := NPV(lo, flows)
	fhi := NPV(hi, flows)
	if math.Signbit(flo) == math.Signbit(fhi) {
		return 0, modelerr.Instability("irr", "no sign change in NPV over [%v, %v]", lo, hi)
	}
	for iter := 0; iter < 200; iter++ {
		mid := (lo + hi) / 2
		fm := NPV(mid, flows)
		if math.Abs(fm) < irrTolerance || (hi-lo)/2 < irrTolerance {
			return mid, nil
		}
		if math.Signbit(fm) == math.Signbit(flo) {
			lo, flo = mid, fm
		} else {
			hi = mid
		}
	}
	return (lo + hi) / 2, nil
}

// npvAndDeriv returns NPV and dNPV/dr.
//
//	NPV   = Σ CF_k / (1+r)^t_k
//	dNPV  = Σ -t_k × CF_k / (1+r)^(t_k+1)
func npvAndDeriv(r float64, flows []CashFlow) (float64, float64) {
	var v, d float64
	for _, f := range flows {
		disc := math.Pow(1+r, f.Time)
		v += f.Amount / disc
		d += -f.Time * f.Amount / (disc * (1 + r))
	}
	return v, d
}
