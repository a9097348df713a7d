package report

import (
	"bytes"
	"context"
	"math"
	"strings"
	"testing"

	"lbo_valuation/pkg/core/assumption"
	"lbo_valuation/pkg/core/debt"
	"lbo_valuation/pkg/core/simulation"
	"lbo_valuation/pkg/core/valuation"
	"lbo_valuation/pkg/core/waterfall"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func retailCo() (valuation.Deal, assumption.Assumptions) {
	d := valuation.Deal{
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
		IRRMethod:             valuation.IRRExact,
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

func TestDeal_RendersEveryTable(t *testing.T) {
	d, a := retailCo()
	out, err := valuation.EvaluateDeal(d, a)
	require.NoError(t, err)

	md := NewRenderer().Deal(d.Name, out)
	tables := renderHTML(t, md)

	for _, title := range []string{"Sources & Uses", "Projection", "Debt Schedule", "Discounted Cash Flow", "Sponsor Returns"} {
		_, ok := findTable(tables, title)
		assert.True(t, ok, title)
	}

	proj, _ := findTable(tables, "Projection")
	assert.Equal(t, []string{"Line", "Y1", "Y2", "Y3", "Y4", "Y5"}, proj.Headers)
	rev, ok := proj.Cell("Revenue", "Y1")
	require.True(t, ok)
	assert.Equal(t, "540.00", rev)

	su, _ := findTable(tables, "Sources & Uses")
	price, _ := su.Cell("Purchase Price", "Amount")
	assert.Equal(t, "800.00", price)
	senior, _ := su.Cell("Senior", "Amount")
	assert.Equal(t, "400.00", senior)

	sched, _ := findTable(tables, "Debt Schedule")
	assert.Contains(t, sched.Headers, "Senior")
	assert.Contains(t, sched.Headers, "Subordinated")
	assert.Len(t, sched.Rows, 5)

	ret, _ := findTable(tables, "Sponsor Returns")
	moic, _ := ret.Cell("MOIC", "Value")
	assert.True(t, strings.HasSuffix(moic, "x"))
	_, ok = ret.Cell("IRR (MOIC approximation)", "Value")
	assert.True(t, ok, "exact method also shows the approximation")
}

func TestDeal_HTMLRightAlignsNumbers(t *testing.T) {
	d, a := retailCo()
	out, err := valuation.EvaluateDeal(d, a)
	require.NoError(t, err)

	html, err := HTML(NewRenderer().SourcesUses(out.SourcesUses))
	require.NoError(t, err)
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)

	align, ok := doc.Find("table th").Eq(1).Attr("style")
	if !ok {
		align, ok = doc.Find("table th").Eq(1).Attr("align")
	}
	require.True(t, ok)
	assert.Contains(t, align, "right")
	assert.Equal(t, 1, doc.Find("h2").Length())
}

func TestSensitivity_MarksInvalidCells(t *testing.T) {
	_, a := retailCo()
	g, err := valuation.Sensitivity(a, []float64{0.02, 0.10}, []float64{0.02, 0.03})
	require.NoError(t, err)

	tables := renderHTML(t, NewRenderer().Sensitivity(g))
	require.Len(t, tables, 1)
	tb := tables[0]
	assert.Equal(t, "Discount Rate \\ Terminal Growth", tb.Headers[0])

	cell, ok := tb.Cell("2.00%", "2.00%")
	require.True(t, ok)
	assert.Equal(t, "n/a", cell, "r == g has no value")
	cell, _ = tb.Cell("10.00%", "2.00%")
	assert.NotEqual(t, "n/a", cell)
}

func TestDistribution_RowsAndTotals(t *testing.T) {
	res, err := waterfall.Allocate(1000,
		[]waterfall.Tier{
			{Kind: waterfall.ReturnOfCapital},
			{Kind: waterfall.PreferredReturn, HurdleRate: 0.08, Years: 5},
			{Kind: waterfall.CatchUp, CarryRate: 0.20, CarryClass: "GP"},
			{Kind: waterfall.ResidualSplit, Splits: []waterfall.Split{{Class: "LP", Share: 0.8}, {Class: "GP", Share: 0.2}}},
		},
		[]waterfall.Class{{Name: "LP", Capital: 400}, {Name: "GP", Capital: 0}},
	)
	require.NoError(t, err)

	tables := renderHTML(t, NewRenderer().Distribution(res))
	require.Len(t, tables, 2)
	tb := tables[0]
	assert.Equal(t, []string{"Tier", "LP", "GP", "Total"}, tb.Headers)
	roc, _ := tb.Cell("Return Of Capital", "LP")
	assert.Equal(t, "400.00", roc)
	total, _ := tb.Cell("Total", "Total")
	assert.Equal(t, "1000.00", total)

	gp, _ := tables[1].Cell("GP", "Multiple")
	assert.Equal(t, "n/a", gp)
}

func TestSimulation_TablesAndExport(t *testing.T) {
	d, a := retailCo()
	opts := simulation.DefaultOptions()
	opts.Iterations = 300
	opts.KeepDraws = true
	res, err := simulation.NewSimulator(zerolog.Nop()).Run(context.Background(), simulation.Input{
		Deal: d,
		Base: a,
		Distributions: []assumption.DistributionSpec{
			{Variable: assumption.VarExitMultiple, Distribution: assumption.DistNormal, Mean: 9, Std: 3, Min: assumption.Bound(6), Max: assumption.Bound(12)},
		},
	}, opts)
	require.NoError(t, err)

	md := NewRenderer().Simulation(res)
	assert.Contains(t, md, "300 iterations, seed 42")
	tables := renderHTML(t, md)
	require.GreaterOrEqual(t, len(tables), 3)
	assert.Equal(t, []string{"Output", "Mean", "Std Dev", "Min", "P5", "P10", "P25", "P50", "P75", "P90", "P95", "Max"}, tables[0].Headers)
	_, ok := tables[1].Cell("IRR VaR (95%)", "Value")
	assert.True(t, ok)
	clamped, ok := tables[2].Cell("exit_multiple", "Draws Clamped")
	require.True(t, ok)
	assert.NotEqual(t, "0", clamped)

	var buf bytes.Buffer
	require.NoError(t, WriteDraws(&buf, "run-1", res))
	back, err := ReadDraws(&buf)
	require.NoError(t, err)
	assert.Equal(t, "run-1", back.RunID)
	assert.Equal(t, uint64(42), back.Seed)
	require.Len(t, back.Draws, 300)
	assert.Equal(t, res.Draws[17].IRR, back.Draws[17].IRR)
	assert.Equal(t, res.Draws[17].Values, back.Draws[17].Values)
}

func TestWriteDraws_RequiresRetainedDraws(t *testing.T) {
	err := WriteDraws(&bytes.Buffer{}, "run-2", &simulation.Result{})
	assert.Error(t, err)
}

func TestFormatting(t *testing.T) {
	r := &Renderer{Precision: 1}
	assert.Equal(t, "12.3", r.num(12.345))
	assert.Equal(t, "15.0%", r.pct(0.15))
	assert.Equal(t, "2.5x", r.mult(2.5))
	assert.Equal(t, "n/a", r.num(math.NaN()))
	assert.Equal(t, "Exit Multiple", label("exit_multiple"))
	assert.Equal(t, "MOIC", label("moic"))
	assert.Equal(t, "a&#124;b", escape("a|b"))
}

func TestTable_Markdown(t *testing.T) {
	tb := newTable("Period", "Senior")
	tb.add("1", "380.00")
	tb.add("a|b", "")

	var sb strings.Builder
	tb.write(&sb)
	md := sb.String()

	assert.Contains(t, md, "Period")
	assert.NotContains(t, md, "PERIOD")
	assert.Contains(t, md, "---:")
	assert.True(t, strings.HasSuffix(md, "\n\n"))

	tables := renderHTML(t, "## Debt\n\n"+md)
	require.Len(t, tables, 1)
	assert.Equal(t, []string{"Period", "Senior"}, tables[0].Headers)
	v, ok := tables[0].Cell("1", "Senior")
	require.True(t, ok)
	assert.Equal(t, "380.00", v)
	_, ok = tables[0].Cell("a|b", "Senior")
	assert.True(t, ok)
}

func TestEconomicsAndFundMetrics(t *testing.T) {
	res, err := waterfall.Allocate(600,
		[]waterfall.Tier{
			{Kind: waterfall.ReturnOfCapital},
			{Kind: waterfall.ResidualSplit, Splits: []waterfall.Split{{Class: "LP", Share: 0.8}, {Class: "GP", Share: 0.2}}},
		},
		[]waterfall.Class{{Name: "LP", Capital: 300}, {Name: "GP", Capital: 0}},
	)
	require.NoError(t, err)

	r := NewRenderer()
	tables := renderHTML(t, r.Economics(waterfall.Economics(res, 5)))
	require.Len(t, tables, 1)
	lp, _ := tables[0].Cell("LP", "MOIC")
	assert.Equal(t, "1.80x", lp)
	gp, _ := tables[0].Cell("GP", "Profit Share")
	assert.Equal(t, "20.00%", gp)

	m, err := waterfall.Metrics([]waterfall.Holding{{Name: "RetailCo", Invested: 300, Realized: 150, NAV: 450}})
	require.NoError(t, err)
	tables = renderHTML(t, r.FundMetrics(m))
	tvpi, _ := tables[0].Cell("TVPI", "Value")
	assert.Equal(t, "2.00x", tvpi)
}
