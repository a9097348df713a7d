package valuation

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"lbo_valuation/pkg/core/assumption"
	"lbo_valuation/pkg/core/debt"
	"lbo_valuation/pkg/core/modelerr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func retailCo() (Deal, assumption.Assumptions) {
	d := Deal{
		Name:          "RetailCo",
		EntryEBITDA:   100,
		EntryMultiple: 8,
		ExitMultiple:  9,
		Tranches: []debt.Tranche{
			{Name: "Senior", Principal: 400, Rate: 0.06, Seniority: 1, AmortizationRate: 0.05},
			{Name: "Subordinated", Principal: 150, Rate: 0.10, Seniority: 2},
		},
		TransactionFeePercent: 0.02,
		FinancingFeePercent:   0.03,
	}
	a := assumption.Assumptions{
		BaseRevenue:  500,
		GrowthRates:  []float64{0.08, 0.08, 0.07, 0.06, 0.05},
		EBITDAMargin: 0.20,
		DAPercent:    0.025,
		CapexPercent: 0.03,
		NWCPercent:   0.10,
		TaxRate:      0.25,
		Discount:     assumption.DiscountInputs{Rate: 0.10},
		Terminal:     assumption.TerminalSpec{Method: assumption.TerminalPerpetuity, GrowthRate: 0.02},
	}
	return d, a
}

func TestQuickReturns_ScenarioB(t *testing.T) {
	r, err := QuickReturns(QuickInput{
		EntryEBITDA:   60,
		EntryMultiple: 7.5,
		EquityPercent: 0.40,
		ExitEBITDA:    90,
		ExitMultiple:  9.0,
		RemainingDebt: 120,
		Years:         5,
	})
	require.NoError(t, err)

	assert.InDelta(t, 180.0, r.EquityInvested, 1e-9)
	assert.InDelta(t, 810.0, r.ExitEV, 1e-9)
	assert.InDelta(t, 690.0, r.ExitEquity, 1e-9)
	assert.InDelta(t, 690.0/180.0, r.MOIC, 1e-9)
	assert.InDelta(t, 0.308, r.IRR, 0.001)
}

func TestApproximateIRR(t *testing.T) {
	assert.InDelta(t, math.Pow(2, 0.2)-1, ApproximateIRR(2, 5), 1e-12)
	assert.Equal(t, -1.0, ApproximateIRR(0, 5))
	assert.Equal(t, -1.0, ApproximateIRR(-0.3, 5))
}

func TestSourcesAndUses(t *testing.T) {
	d, _ := retailCo()
	su, err := SourcesAndUses(d)
	require.NoError(t, err)

	assert.InDelta(t, 800.0, su.PurchasePrice, 1e-9)
	assert.InDelta(t, 16.0, su.TransactionFees, 1e-9)
	assert.InDelta(t, 16.5, su.FinancingFees, 1e-9)
	assert.InDelta(t, 832.5, su.TotalUses, 1e-9)
	assert.InDelta(t, 550.0, su.TotalDebt, 1e-9)
	assert.InDelta(t, 282.5, su.Equity, 1e-9)
	assert.Equal(t, 400.0, su.Debt["Senior"])

	d.Tranches = append(d.Tranches, debt.Tranche{Name: "Mezz", Principal: 400, Seniority: 3})
	_, err = SourcesAndUses(d)
	assert.True(t, errors.Is(err, modelerr.ErrInvalidConfiguration))
}

func TestEvaluateDeal(t *testing.T) {
	d, a := retailCo()
	out, err := EvaluateDeal(d, a)
	require.NoError(t, err)

	require.Len(t, out.Projection, 5)
	require.Len(t, out.Schedule, 5)
	require.NotNil(t, out.DCF)

	r := out.Returns
	assert.Equal(t, 5, r.Years)
	assert.InDelta(t, out.Projection[4].EBITDA, r.ExitEBITDA, 1e-9)
	assert.InDelta(t, r.ExitEBITDA*9, r.ExitEV, 1e-9)
	assert.InDelta(t, out.Schedule[4].TotalEnding, r.RemainingDebt, 1e-9)
	assert.InDelta(t, r.ExitEV-r.RemainingDebt, r.ExitEquity, 1e-9)
	assert.InDelta(t, r.ExitEquity/282.5, r.MOIC, 1e-9)
	assert.Less(t, r.RemainingDebt, 550.0)
	assert.Equal(t, IRRApproximate, r.Method)

	assert.InDelta(t, r.RemainingDebt, out.DCF.NetDebt, 1e-9, "bridge debt comes from the schedule")
}

func TestEvaluateDeal_ExactIRRMatchesApproximationWithoutInterimCash(t *testing.T) {
	d, a := retailCo()
	d.IRRMethod = IRRExact

	out, err := EvaluateDeal(d, a)
	require.NoError(t, err)
	assert.InDelta(t, out.Returns.ApproxIRR, out.Returns.IRR, 1e-8)
}

func TestEvaluateDeal_DistributionsRaiseExactIRR(t *testing.T) {
	d, a := retailCo()
	d.IRRMethod = IRRExact
	d.SweepPercent = debt.Sweep(0.5)
	d.DistributeUnusedCash = true

	out, err := EvaluateDeal(d, a)
	require.NoError(t, err)
	assert.Greater(t, out.Returns.Distributions, 0.0)
	assert.Greater(t, out.Returns.IRR, out.Returns.ApproxIRR, "earlier cash is worth more than the single-compounding shortcut credits")
}

func TestEvaluateDeal_MOICIncreasesWithExitMultiple(t *testing.T) {
	d, a := retailCo()

	prev := math.Inf(-1)
	for m := 5.0; m <= 13.0; m += 0.5 {
		d.ExitMultiple = m
		out, err := EvaluateDeal(d, a)
		require.NoError(t, err)
		assert.Greater(t, out.Returns.MOIC, prev, "exit multiple %v", m)
		prev = out.Returns.MOIC
	}
}

func TestEvaluateDeal_ExitMultipleTerminalDefaultsToDealMultiple(t *testing.T) {
	d, a := retailCo()
	a.Terminal = assumption.TerminalSpec{Method: assumption.TerminalExitMultiple}

	out, err := EvaluateDeal(d, a)
	require.NoError(t, err)
	assert.InDelta(t, out.Returns.ExitEV, out.DCF.TerminalValue, 1e-9)
}

func TestEvaluateDeal_NoDiscountInputsSkipsDCF(t *testing.T) {
	d, a := retailCo()
	a.Discount = assumption.DiscountInputs{}

	out, err := EvaluateDeal(d, a)
	require.NoError(t, err)
	assert.Nil(t, out.DCF)
}

func TestEvaluateDeal_FailsFast(t *testing.T) {
	d, a := retailCo()
	a.Terminal.GrowthRate = 0.10

	out, err := EvaluateDeal(d, a)
	require.Error(t, err)
	assert.True(t, errors.Is(err, modelerr.ErrInvalidAssumption))
	assert.Nil(t, out.Projection)

	d, a = retailCo()
	d.EntryEBITDA = 0
	_, err = EvaluateDeal(d, a)
	assert.Equal(t, "deal.entry_ebitda", modelerr.FieldOf(err))

	d, a = retailCo()
	d.Tranches[1].Seniority = 1
	_, err = EvaluateDeal(d, a)
	assert.True(t, errors.Is(err, modelerr.ErrInvalidConfiguration))
}

func TestAbilityToPay_HitsTargetIRR(t *testing.T) {
	d, a := retailCo()

	res, err := AbilityToPay(d, a, 0.20)
	require.NoError(t, err)
	assert.Greater(t, res.MaxEntryEV, 0.0)

	d.EntryMultiple = res.ImpliedEntryMultiple
	out, err := EvaluateDeal(d, a)
	require.NoError(t, err)
	assert.InDelta(t, 0.20, out.Returns.IRR, 1e-9)
	assert.InDelta(t, res.EquityCheck, out.SourcesUses.Equity, 1e-6)
}

func TestAbilityToPay_DiscountsInterimDistributionsByPeriod(t *testing.T) {
	d, a := retailCo()
	d.IRRMethod = IRRExact
	d.SweepPercent = debt.Sweep(0.5)
	d.DistributeUnusedCash = true

	res, err := AbilityToPay(d, a, 0.20)
	require.NoError(t, err)

	out, err := EvaluateDeal(d, a)
	require.NoError(t, err)
	require.Greater(t, out.Returns.Distributions, 0.0)
	lumped := out.Returns.TotalProceeds() / math.Pow(1.20, float64(out.Returns.Years))
	assert.Greater(t, res.EquityCheck, lumped, "cash received before exit is worth more than the same cash at exit")

	d.EntryMultiple = res.ImpliedEntryMultiple
	out, err = EvaluateDeal(d, a)
	require.NoError(t, err)
	assert.InDelta(t, 0.20, out.Returns.IRR, 1e-8)
	assert.InDelta(t, res.EquityCheck, out.SourcesUses.Equity, 1e-6)
}

func TestAbilityToPay_RejectsWorthlessEquity(t *testing.T) {
	d, a := retailCo()
	d.ExitMultiple = 0

	_, err := AbilityToPay(d, a, 0.20)
	assert.Equal(t, "target_irr", modelerr.FieldOf(err))
}

func TestIRR(t *testing.T) {
	r, err := IRR(AnnualFlows([]float64{-100, 0, 0, 0, 0, 200}))
	require.NoError(t, err)
	assert.InDelta(t, math.Pow(2, 0.2)-1, r, 1e-9)

	r, err = IRR([]CashFlow{{0, -100}, {1, 110}})
	require.NoError(t, err)
	assert.InDelta(t, 0.10, r, 1e-9)

	irregular := []CashFlow{{0, -100}, {0.5, 50}, {1.75, 70}}
	r, err = IRR(irregular)
	require.NoError(t, err)
	assert.InDelta(t, 0, NPV(r, irregular), 1e-7)

	_, err = IRR([]CashFlow{{0, 100}, {1, 100}})
	assert.True(t, errors.Is(err, modelerr.ErrInvalidAssumption))
	_, err = IRR([]CashFlow{{0, -100}})
	assert.Error(t, err)
}

func TestEvaluateDeal_ReleversPerPeriod(t *testing.T) {
	d, a := retailCo()
	a.Discount = assumption.DiscountInputs{
		RiskFreeRate:      0.04,
		Beta:              1.2,
		EquityRiskPremium: 0.055,
		PreTaxCostOfDebt:  0.07,
		EquityMarketValue: 600,
		DebtMarketValue:   400,
	}
	flat, err := EvaluateDeal(d, a)
	require.NoError(t, err)
	require.NotNil(t, flat.DCF)

	a.Discount.UnleveredBeta = 0.8
	relevered, err := EvaluateDeal(d, a)
	require.NoError(t, err)
	require.NotNil(t, relevered.DCF)
	assert.NotEqual(t, flat.DCF.EnterpriseValue, relevered.DCF.EnterpriseValue)
	assert.Greater(t, relevered.DCF.EnterpriseValue, 0.0)
}

func TestSensitivity(t *testing.T) {
	_, a := retailCo()
	grid, err := Sensitivity(a, []float64{0.08, 0.10, 0.12}, []float64{0.01, 0.02, 0.10})
	require.NoError(t, err)

	require.Len(t, grid.Values, 3)
	assert.True(t, grid.Valid(0, 0))
	assert.False(t, grid.Valid(1, 2), "r == g is left blank")
	assert.Greater(t, grid.Values[0][0], grid.Values[1][0], "higher rate, lower value")
	assert.Greater(t, grid.Values[1][1], grid.Values[1][0], "higher growth, higher value")
}

func TestSensitivity_JSONNullsInvalidCells(t *testing.T) {
	_, a := retailCo()
	grid, err := Sensitivity(a, []float64{0.10}, []float64{0.02, 0.10})
	require.NoError(t, err)

	data, err := json.Marshal(grid)
	require.NoError(t, err)
	var back struct {
		Output string       `json:"output"`
		Values [][]*float64 `json:"values"`
	}
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, "enterprise_value", back.Output)
	require.NotNil(t, back.Values[0][0])
	assert.InDelta(t, grid.Values[0][0], *back.Values[0][0], 1e-9)
	assert.Nil(t, back.Values[0][1])
}

func TestReturnsSensitivity(t *testing.T) {
	d, a := retailCo()
	grid, err := ReturnsSensitivity(d, a, []float64{7, 8, 9}, []float64{8, 9, 10})
	require.NoError(t, err)

	assert.Greater(t, grid.Values[0][1], grid.Values[2][1], "paying more lowers MOIC")
	assert.Greater(t, grid.Values[1][2], grid.Values[1][0])
}

func TestRelativeValuation(t *testing.T) {
	peers := []PeerComparable{
		{Name: "A", EVEBITDA: 7, EVRevenue: 1.2, PERatio: 14},
		{Name: "B", EVEBITDA: 8, EVRevenue: 1.5, PERatio: 16},
		{Name: "C", EVEBITDA: 9, EVRevenue: 1.7, PERatio: 18},
		{Name: "D", EVEBITDA: 10, EVRevenue: 2.0, PERatio: 20},
		{Name: "Deal X", EVEBITDA: 11, IsTransaction: true},
	}
	comps := CalculateComps(MetricInput{Revenue: 500, EBITDA: 100, NetIncome: 40, SharesOut: 10}, peers)
	assert.Equal(t, 4, comps.Peers)
	assert.LessOrEqual(t, comps.ImpliedEVEBITDA.Low, comps.ImpliedEVEBITDA.High)
	assert.GreaterOrEqual(t, comps.ImpliedEVEBITDA.Low, 700.0)
	assert.LessOrEqual(t, comps.ImpliedEVEBITDA.High, 1000.0)

	tx := CalculateTransactions(MetricInput{EBITDA: 100}, peers)
	assert.Equal(t, 1, tx.Peers)
	assert.InDelta(t, 1100.0, tx.ImpliedEVEBITDA.Low, 1e-9)

	spec, err := ExitMultipleDistribution(peers)
	require.NoError(t, err)
	require.NoError(t, spec.Validate())
	assert.Equal(t, assumption.VarExitMultiple, spec.Variable)
	assert.InDelta(t, 9.0, spec.Mean, 1e-9)
	assert.Equal(t, 7.0, spec.Lo())
	assert.Equal(t, 11.0, spec.Hi())

	_, err = ExitMultipleDistribution(peers[:1])
	assert.True(t, errors.Is(err, modelerr.ErrInvalidConfiguration))
}

func TestSummarize(t *testing.T) {
	d, a := retailCo()
	out, err := EvaluateDeal(d, a)
	require.NoError(t, err)
	atp, err := AbilityToPay(d, a, 0.2)
	require.NoError(t, err)

	lines := Summarize(SummaryInput{Outcome: out, AbilityToPay: &atp})
	require.Len(t, lines, 4)
	assert.Equal(t, "Entry Purchase Price", lines[0].ModelName)
	assert.Equal(t, "LBO Ability To Pay", lines[3].ModelName)
}
