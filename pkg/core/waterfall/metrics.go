package waterfall

import (
	"lbo_valuation/pkg/core/modelerr"
	"lbo_valuation/pkg/core/valuation"
)

// Holding is one fund investment, realized or still held.
type Holding struct {
	Name     string  `json:"name"`
	Invested float64 `json:"invested"`
	Realized float64 `json:"realized"` // proceeds already distributed
	NAV      float64 `json:"nav"`      // residual value still held
}

// FundMetrics are the standard multiples on paid-in capital.
type FundMetrics struct {
	PaidIn      float64 `json:"paid_in"`
	Distributed float64 `json:"distributed"`
	NAV         float64 `json:"nav"`
	DPI         float64 `json:"dpi"`  // distributed / paid-in
	RVPI        float64 `json:"rvpi"` // NAV / paid-in
	TVPI        float64 `json:"tvpi"` // (distributed + NAV) / paid-in
}

// Metrics rolls a portfolio of holdings into DPI, RVPI and TVPI.
func Metrics(holdings []Holding) (FundMetrics, error) {
	var m FundMetrics
	for _, h := range holdings {
		if h.Invested < 0 || h.Realized < 0 || h.NAV < 0 {
			return FundMetrics{}, modelerr.Assumption("holdings."+h.Name, "amounts must be non-negative")
		}
		m.PaidIn += h.Invested
		m.Distributed += h.Realized
		m.NAV += h.NAV
	}
	if m.PaidIn <= 0 {
		return FundMetrics{}, modelerr.Assumption("holdings", "paid-in capital must be positive")
	}
	m.DPI = m.Distributed / m.PaidIn
	m.RVPI = m.NAV / m.PaidIn
	m.TVPI = m.DPI + m.RVPI
	return m, nil
}

// ClassEconomics summarizes what a distribution means for one class.
type ClassEconomics struct {
	Name        string  `json:"name"`
	Capital     float64 `json:"capital"`
	Proceeds    float64 `json:"proceeds"`
	Profit      float64 `json:"profit"`
	ProfitShare float64 `json:"profit_share"` // share of total profit
	MOIC        float64 `json:"moic"`
	ApproxIRR   float64 `json:"approx_irr"`
}

// Economics derives per-class MOIC, profit share and approximate IRR from
// an allocation realized after years.
func Economics(r DistributionResult, years float64) []ClassEconomics {
	capital, total := 0.0, 0.0
	for _, c := range r.Classes {
		capital += c.Capital
		total += c.Amount
	}
	totalProfit := total - capital

	out := make([]ClassEconomics, 0, len(r.Classes))
	for _, c := range r.Classes {
		e := ClassEconomics{
			Name:     c.Name,
			Capital:  c.Capital,
			Proceeds: c.Amount,
			Profit:   c.Amount - c.Capital,
		}
		if totalProfit > 0 {
			e.ProfitShare = e.Profit / totalProfit
		}
		if c.Capital > 0 {
			e.MOIC = c.Amount / c.Capital
			e.ApproxIRR = valuation.ApproximateIRR(e.MOIC, years)
		}
		out = append(out, e)
	}
	return out
}
