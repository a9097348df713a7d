package valuation

import (
	"sort"

	"lbo_valuation/pkg/core/assumption"
	"lbo_valuation/pkg/core/modelerr"

	"gonum.org/v1/gonum/stat"
)

// MetricInput holds the target company's current metrics (LTM).
type MetricInput struct {
	Revenue   float64
	EBITDA    float64
	NetIncome float64
	NetDebt   float64
	SharesOut float64
}

// PeerComparable represents a comparable company or transaction.
type PeerComparable struct {
	Name          string  `json:"name"`
	EVRevenue     float64 `json:"ev_revenue"`
	EVEBITDA      float64 `json:"ev_ebitda"`
	PERatio       float64 `json:"pe_ratio"`
	IsTransaction bool    `json:"is_transaction"` // precedent transaction rather than trading comp
}

// Range is an interquartile low/high pair.
type Range struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// RelativeValuationResult holds the valuation ranges derived from multiples.
type RelativeValuationResult struct {
	ImpliedEVRevenue Range `json:"implied_ev_revenue"`
	ImpliedEVEBITDA  Range `json:"implied_ev_ebitda"`
	ImpliedPEPrice   Range `json:"implied_pe_price"`
	Peers            int   `json:"peers"`
}

// CalculateComps performs comparable companies analysis.
func CalculateComps(target MetricInput, peers []PeerComparable) RelativeValuationResult {
	return calculateMultiples(target, peers, false)
}

// CalculateTransactions performs precedent transaction analysis.
// Multiples usually carry a control premium.
func CalculateTransactions(target MetricInput, peers []PeerComparable) RelativeValuationResult {
	return calculateMultiples(target, peers, true)
}

func calculateMultiples(target MetricInput, peers []PeerComparable, transactions bool) RelativeValuationResult {
	var revMults, ebitdaMults, peMults []float64
	res := RelativeValuationResult{}

	for _, p := range peers {
		if p.IsTransaction != transactions {
			continue
		}
		res.Peers++
		if p.EVRevenue > 0 {
			revMults = append(revMults, p.EVRevenue)
		}
		if p.EVEBITDA > 0 {
			ebitdaMults = append(ebitdaMults, p.EVEBITDA)
		}
		if p.PERatio > 0 {
			peMults = append(peMults, p.PERatio)
		}
	}

	rLo, rHi := interquartile(revMults)
	res.ImpliedEVRevenue = Range{rLo * target.Revenue, rHi * target.Revenue}

	eLo, eHi := interquartile(ebitdaMults)
	res.ImpliedEVEBITDA = Range{eLo * target.EBITDA, eHi * target.EBITDA}

	if target.SharesOut > 0 {
		pLo, pHi := interquartile(peMults)
		eps := target.NetIncome / target.SharesOut
		res.ImpliedPEPrice = Range{pLo * eps, pHi * eps}
	}
	return res
}

// interquartile returns the 25th and 75th percentiles (linear interpolation).
func interquartile(mults []float64) (float64, float64) {
	if len(mults) == 0 {
		return 0, 0
	}
	s := append([]float64(nil), mults...)
	sort.Float64s(s)
	return stat.Quantile(0.25, stat.LinInterp, s, nil), stat.Quantile(0.75, stat.LinInterp, s, nil)
}

// ExitMultipleDistribution fits a normal exit-multiple distribution to peer
// EV/EBITDA multiples, clamped to the observed peer range.
func ExitMultipleDistribution(peers []PeerComparable) (assumption.DistributionSpec, error) {
	var mults []float64
	for _, p := range peers {
		if p.EVEBITDA > 0 {
			mults = append(mults, p.EVEBITDA)
		}
	}
	if len(mults) < 2 {
		return assumption.DistributionSpec{}, modelerr.Configuration("peers", "need at least two EV/EBITDA multiples, got %d", len(mults))
	}
	sort.Float64s(mults)

	mean, std := stat.MeanStdDev(mults, nil)
	return assumption.DistributionSpec{
		Variable:     assumption.VarExitMultiple,
		Distribution: assumption.DistNormal,
		Mean:         mean,
		Std:          std,
		Min:          assumption.Bound(mults[0]),
		Max:          assumption.Bound(mults[len(mults)-1]),
	}, nil
}
