package simulation

import (
	"math/rand/v2"

	"lbo_valuation/pkg/core/assumption"
	"lbo_valuation/pkg/core/debt"
	"lbo_valuation/pkg/core/modelerr"
	"lbo_valuation/pkg/core/valuation"

	"gonum.org/v1/gonum/stat/distuv"
)

// newSource derives iteration i's generator from the run seed. Every
// iteration gets its own stream, so the draw for i never depends on which
// worker ran it or in what order.
func newSource(seed uint64, i int) rand.Source {
	return rand.NewPCG(seed, uint64(i))
}

// sample draws one value for spec from src.
func sample(spec assumption.DistributionSpec, src rand.Source) float64 {
	switch spec.Distribution {
	case assumption.DistUniform:
		return distuv.Uniform{Min: spec.Lo(), Max: spec.Hi(), Src: src}.Rand()
	case assumption.DistTriangular:
		return distuv.NewTriangle(spec.Lo(), spec.Hi(), spec.Mode, src).Rand()
	case assumption.DistLognormal:
		return distuv.LogNormal{Mu: spec.Mean, Sigma: spec.Std, Src: src}.Rand()
	default:
		return distuv.Normal{Mu: spec.Mean, Sigma: spec.Std, Src: src}.Rand()
	}
}

// sampled is one iteration's draw before the chain runs.
type sampled struct {
	values  map[string]float64
	clamped []*modelerr.Error
}

// drawVector samples every spec in order from one source and clamps.
func drawVector(specs []assumption.DistributionSpec, src rand.Source) sampled {
	s := sampled{values: make(map[string]float64, len(specs))}
	for _, spec := range specs {
		raw := sample(spec, src)
		v, clamped := spec.Clamp(raw)
		if clamped {
			s.clamped = append(s.clamped, modelerr.OutOfBounds(spec.Variable, "sample %v clamped to %v", raw, v))
		}
		s.values[spec.Variable] = v
	}
	return s
}

// apply returns the deal and assumptions for one draw. base is never mutated.
func apply(deal valuation.Deal, base assumption.Assumptions, values map[string]float64) (valuation.Deal, assumption.Assumptions) {
	a := base.Clone()
	d := deal

	if g, ok := values[assumption.VarRevenueGrowth]; ok {
		a = a.WithFlatGrowth(g)
	}
	if m, ok := values[assumption.VarEBITDAMargin]; ok {
		a.EBITDAMargin = m
	}
	if x, ok := values[assumption.VarExitMultiple]; ok {
		d.ExitMultiple = x
		if a.Terminal.Method == assumption.TerminalExitMultiple && a.Terminal.ExitMultiple != 0 {
			a.Terminal.ExitMultiple = x
		}
	}
	if p, ok := values[assumption.VarDebtPaydown]; ok {
		d.SweepPercent = debt.Sweep(p)
	}
	if r, ok := values[assumption.VarDiscountRate]; ok {
		a.Discount.Rate = r
	}
	if g, ok := values[assumption.VarTerminalGrowth]; ok {
		a.Terminal.GrowthRate = g
	}
	return d, a
}
