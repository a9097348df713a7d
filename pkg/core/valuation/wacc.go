package valuation

import (
	"lbo_valuation/pkg/core/assumption"
	"lbo_valuation/pkg/core/modelerr"
)

// WACCInput parameters for a target-leverage cost of capital.
type WACCInput struct {
	UnleveredBeta     float64
	RiskFreeRate      float64
	MarketRiskPremium float64
	PreTaxCostOfDebt  float64
	TaxRate           float64
	DebtToEquityRatio float64 // target leverage (D/E)
}

// MarketWACCInput parameters for a market-value-weighted cost of capital.
type MarketWACCInput struct {
	RiskFreeRate      float64
	Beta              float64 // levered
	EquityRiskPremium float64
	PreTaxCostOfDebt  float64
	TaxRate           float64
	EquityValue       float64
	DebtValue         float64
}

// WACCResult holds the calculated rates.
type WACCResult struct {
	LeveredBeta  float64
	CostOfEquity float64
	CostOfDebt   float64 // after-tax
	WACC         float64
	WeightDebt   float64
	WeightEquity float64
}

// CalculateWACC computes WACC at a target D/E using CAPM and the Hamada relevering equation.
func CalculateWACC(input WACCInput) WACCResult {
	// 1. Re-lever beta (Hamada)
	// BetaL = BetaU * (1 + (1-t)*(D/E))
	leveredBeta := input.UnleveredBeta * (1 + (1-input.TaxRate)*input.DebtToEquityRatio)

	// 2. Cost of equity (CAPM)
	ke := input.RiskFreeRate + leveredBeta*input.MarketRiskPremium

	// 3. After-tax cost of debt
	kd := input.PreTaxCostOfDebt * (1 - input.TaxRate)

	// 4. Weights from D/E = x: Wd = x/(1+x), We = 1/(1+x)
	wd := input.DebtToEquityRatio / (1 + input.DebtToEquityRatio)
	we := 1.0 / (1 + input.DebtToEquityRatio)

	return WACCResult{
		LeveredBeta:  leveredBeta,
		CostOfEquity: ke,
		CostOfDebt:   kd,
		WACC:         ke*we + kd*wd,
		WeightDebt:   wd,
		WeightEquity: we,
	}
}

// MarketWACC weights CAPM cost of equity and after-tax cost of debt by
// market values.
//
// FORMULA: WACC = E/(D+E) × (rf + β × ERP) + D/(D+E) × kd × (1 - t)
func MarketWACC(in MarketWACCInput) (WACCResult, error) {
	for _, c := range []struct {
		field string
		v     float64
	}{
		{"discount.equity_market_value", in.EquityValue},
		{"discount.debt_market_value", in.DebtValue},
		{"discount.pre_tax_cost_of_debt", in.PreTaxCostOfDebt},
	} {
		if !finite(c.v) || c.v < 0 {
			return WACCResult{}, modelerr.Assumption(c.field, "must be non-negative, got %v", c.v)
		}
	}
	if !finite(in.TaxRate) || in.TaxRate < 0 || in.TaxRate > 1 {
		return WACCResult{}, modelerr.Assumption("tax_rate", "must be within [0,1], got %v", in.TaxRate)
	}
	total := in.EquityValue + in.DebtValue
	if total <= 0 {
		return WACCResult{}, modelerr.Assumption("discount.equity_market_value", "equity plus debt market value must be positive")
	}

	ke := in.RiskFreeRate + in.Beta*in.EquityRiskPremium
	kd := in.PreTaxCostOfDebt * (1 - in.TaxRate)
	we := in.EquityValue / total
	wd := in.DebtValue / total

	res := WACCResult{
		LeveredBeta:  in.Beta,
		CostOfEquity: ke,
		CostOfDebt:   kd,
		WACC:         we*ke + wd*kd,
		WeightDebt:   wd,
		WeightEquity: we,
	}
	if !finite(res.WACC) {
		return WACCResult{}, modelerr.Instability("wacc", "non-finite result %v", res.WACC)
	}
	return res, nil
}

// DiscountRate resolves the scenario discount rate: the explicit rate when
// set, otherwise the market-value WACC built from the components.
func DiscountRate(a assumption.Assumptions) (float64, error) {
	d := a.Discount
	if d.Rate != 0 {
		return d.Rate, nil
	}
	res, err := MarketWACC(MarketWACCInput{
		RiskFreeRate:      d.RiskFreeRate,
		Beta:              d.Beta,
		EquityRiskPremium: d.EquityRiskPremium,
		PreTaxCostOfDebt:  d.PreTaxCostOfDebt,
		TaxRate:           a.TaxRate,
		EquityValue:       d.EquityMarketValue,
		DebtValue:         d.DebtMarketValue,
	})
	if err != nil {
		return 0, err
	}
	return res.WACC, nil
}

// HasDiscount reports whether a carries enough to discount cash flows.
func HasDiscount(a assumption.Assumptions) bool {
	d := a.Discount
	return d.Rate != 0 || d.EquityMarketValue+d.DebtMarketValue > 0
}
