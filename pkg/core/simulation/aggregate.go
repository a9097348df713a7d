package simulation

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// aggregate reduces draws in index order. Order is fixed by the draw
// slice, not by completion, so sums are reproducible bit for bit.
func aggregate(draws []Draw, opts Options, wf *WaterfallSpec) *Result {
	res := &Result{
		Iterations:     len(draws),
		InvalidReasons: map[string]int{},
		Clamped:        map[string]int{},
		VaRConfidence:  opts.VaRConfidence,
	}

	var irr, moic, equity, ev []float64
	var split map[string][]float64
	if wf != nil {
		split = make(map[string][]float64, len(wf.Classes))
	}

	for _, d := range draws {
		for _, v := range d.Clamped {
			res.Clamped[v]++
		}
		if !d.Valid {
			res.Invalid++
			res.InvalidReasons[d.Reason]++
			continue
		}
		res.Valid++
		irr = append(irr, d.IRR)
		moic = append(moic, d.MOIC)
		equity = append(equity, d.ExitEquity)
		if d.EnterpriseValue != 0 {
			ev = append(ev, d.EnterpriseValue)
		}
		for class, amount := range d.Split {
			split[class] = append(split[class], amount)
		}
	}
	if res.Valid == 0 {
		return res
	}

	res.IRR = summarize(irr, opts.Percentiles)
	res.MOIC = summarize(moic, opts.Percentiles)
	res.ExitEquity = summarize(equity, opts.Percentiles)
	res.EnterpriseValue = summarize(ev, opts.Percentiles)

	// Probabilities over valid draws
	n := float64(res.Valid)
	for _, t := range opts.IRRThresholds {
		hits := 0
		for _, v := range irr {
			if v >= t {
				hits++
			}
		}
		res.ProbIRRAbove = append(res.ProbIRRAbove, Probability{Threshold: t, Probability: float64(hits) / n})
	}
	losses := 0
	for _, m := range moic {
		if m < 1 {
			losses++
		}
	}
	res.ProbLoss = float64(losses) / n

	// Tail risk
	res.VaR, res.CVaR = valueAtRisk(irr, opts.VaRConfidence)
	if res.IRR.StdDev > 0 {
		res.Sharpe = res.IRR.Mean / res.IRR.StdDev
	}

	if wf != nil {
		for _, c := range wf.Classes {
			res.Waterfall = append(res.Waterfall, ClassStats{Class: c.Name, Stats: summarize(split[c.Name], opts.Percentiles)})
		}
	}
	return res
}

// summarize computes mean, sample standard deviation, extremes and
// linearly interpolated percentiles.
func summarize(x []float64, percentiles []float64) Stats {
	if len(x) == 0 {
		return Stats{}
	}
	sorted := append([]float64(nil), x...)
	sort.Float64s(sorted)

	s := Stats{
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
		Median: stat.Quantile(0.5, stat.LinInterp, sorted, nil),
	}
	if len(x) > 1 {
		s.Mean, s.StdDev = stat.MeanStdDev(x, nil)
	} else {
		s.Mean = x[0]
	}
	for _, p := range percentiles {
		s.Percentiles = append(s.Percentiles, Percentile{P: p, Value: stat.Quantile(p, stat.LinInterp, sorted, nil)})
	}
	return s
}

// valueAtRisk returns the IRR at the (1-confidence) percentile and the mean
// of all IRRs at or below it.
func valueAtRisk(irr []float64, confidence float64) (float64, float64) {
	if len(irr) == 0 {
		return 0, 0
	}
	sorted := append([]float64(nil), irr...)
	sort.Float64s(sorted)

	v := stat.Quantile(1-confidence, stat.LinInterp, sorted, nil)
	var tail []float64
	for _, r := range sorted {
		if r > v {
			break
		}
		tail = append(tail, r)
	}
	if len(tail) == 0 {
		return v, v
	}
	return v, stat.Mean(tail, nil)
}
