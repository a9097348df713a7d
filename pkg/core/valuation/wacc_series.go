package valuation

import (
	"lbo_valuation/pkg/core/assumption"
	"lbo_valuation/pkg/core/debt"
)

// PeriodWACCs calculates a WACC for each schedule period from the opening
// leverage of that period. Equity is approximated as enterpriseValue minus
// opening debt; when that is not positive the target D/E in base is used.
func PeriodWACCs(base WACCInput, enterpriseValue float64, schedule []debt.ScheduleRow) []float64 {
	waccs := make([]float64, len(schedule))

	for i, row := range schedule {
		// 1. Opening debt
		opening := 0.0
		for _, t := range row.Tranches {
			opening += t.Opening
		}

		// 2. Leverage, falling back to target
		de := base.DebtToEquityRatio
		if equity := enterpriseValue - opening; equity > 0 {
			de = opening / equity
		}

		// 3. WACC for this period
		in := base
		in.DebtToEquityRatio = de
		waccs[i] = CalculateWACC(in).WACC
	}

	return waccs
}

// releveredRates returns per-period rates when a carries an unlevered beta
// and market WACC inputs, nil otherwise. Target D/E is the market-value
// leverage.
func releveredRates(a assumption.Assumptions, enterpriseValue float64, schedule []debt.ScheduleRow) []float64 {
	d := a.Discount
	if d.Rate != 0 || d.UnleveredBeta <= 0 || d.EquityMarketValue <= 0 {
		return nil
	}
	return PeriodWACCs(WACCInput{
		UnleveredBeta:     d.UnleveredBeta,
		RiskFreeRate:      d.RiskFreeRate,
		MarketRiskPremium: d.EquityRiskPremium,
		PreTaxCostOfDebt:  d.PreTaxCostOfDebt,
		TaxRate:           a.TaxRate,
		DebtToEquityRatio: d.DebtMarketValue / d.EquityMarketValue,
	}, enterpriseValue, schedule)
}
