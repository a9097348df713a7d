package report

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"lbo_valuation/pkg/core/debt"
	"lbo_valuation/pkg/core/projection"
	"lbo_valuation/pkg/core/simulation"
	"lbo_valuation/pkg/core/utils"
	"lbo_valuation/pkg/core/valuation"
	"lbo_valuation/pkg/core/waterfall"
)

// Renderer formats results as markdown. It holds formatting options only.
type Renderer struct {
	Precision int // decimals for amounts, percentages and multiples
}

// NewRenderer returns a renderer with two-decimal output.
func NewRenderer() *Renderer {
	return &Renderer{Precision: 2}
}

// HTML renders markdown produced by this package as an HTML fragment.
func HTML(md string) (string, error) {
	return utils.MarkdownToHTML(md)
}

// =============================================================================
// DETERMINISTIC DEAL
// =============================================================================

// Deal renders the full deterministic outcome.
func (r *Renderer) Deal(name string, out valuation.DealOutcome) string {
	var sb strings.Builder
	title := "Deal"
	if name != "" {
		title = name
	}
	heading(&sb, 1, title)
	sb.WriteString(r.SourcesUses(out.SourcesUses))
	sb.WriteString(r.Projection(out.Projection))
	sb.WriteString(r.Schedule(out.Schedule))
	if out.DCF != nil {
		sb.WriteString(r.DCF(*out.DCF))
	}
	sb.WriteString(r.Returns(out.Returns))
	return sb.String()
}

// SourcesUses renders the funding table.
func (r *Renderer) SourcesUses(su valuation.SourcesUses) string {
	var sb strings.Builder
	heading(&sb, 2, "Sources & Uses")

	names := make([]string, 0, len(su.Debt))
	for n := range su.Debt {
		names = append(names, n)
	}
	sort.Strings(names)

	t := newTable("Item", "Amount")
	t.add("Purchase Price", r.num(su.PurchasePrice))
	t.add("Transaction Fees", r.num(su.TransactionFees))
	t.add("Financing Fees", r.num(su.FinancingFees))
	t.add("Total Uses", r.num(su.TotalUses))
	for _, n := range names {
		t.add(n, r.num(su.Debt[n]))
	}
	t.add("Total Debt", r.num(su.TotalDebt))
	t.add("Sponsor Equity", r.num(su.Equity))
	t.write(&sb)
	return sb.String()
}

// Projection renders the free-cash-flow build, one column per period.
func (r *Renderer) Projection(rows []projection.Row) string {
	var sb strings.Builder
	heading(&sb, 2, "Projection")

	headers := []string{"Line"}
	for _, row := range rows {
		headers = append(headers, "Y"+strconv.Itoa(row.Period))
	}
	t := newTable(headers...)
	lines := []struct {
		label string
		get   func(projection.Row) float64
	}{
		{"Revenue", func(x projection.Row) float64 { return x.Revenue }},
		{"EBITDA", func(x projection.Row) float64 { return x.EBITDA }},
		{"D&A", func(x projection.Row) float64 { return x.DA }},
		{"EBIT", func(x projection.Row) float64 { return x.EBIT }},
		{"Tax", func(x projection.Row) float64 { return x.Tax }},
		{"NOPAT", func(x projection.Row) float64 { return x.NOPAT }},
		{"Capex", func(x projection.Row) float64 { return x.Capex }},
		{"Change in NWC", func(x projection.Row) float64 { return x.DeltaNWC }},
		{"Free Cash Flow", func(x projection.Row) float64 { return x.FCF }},
	}
	for _, l := range lines {
		cells := []string{l.label}
		for _, row := range rows {
			cells = append(cells, r.num(l.get(row)))
		}
		t.add(cells...)
	}
	t.write(&sb)
	return sb.String()
}

// Schedule renders the debt schedule: one row per period with each
// tranche's ending balance, plus the period totals.
func (r *Renderer) Schedule(rows []debt.ScheduleRow) string {
	var sb strings.Builder
	heading(&sb, 2, "Debt Schedule")
	if len(rows) == 0 {
		sb.WriteString("No debt.\n\n")
		return sb.String()
	}

	headers := []string{"Period", "FCF", "Interest"}
	for _, tr := range rows[0].Tranches {
		headers = append(headers, tr.Name)
	}
	headers = append(headers, "Paydown", "Total Debt", "Unused Cash")
	t := newTable(headers...)

	var arrears []string
	for _, row := range rows {
		cells := []string{strconv.Itoa(row.Period), r.num(row.FCF), r.num(row.TotalInterest)}
		for _, tr := range row.Tranches {
			cells = append(cells, r.num(tr.Ending))
			if tr.Arrears > 0 {
				arrears = append(arrears, fmt.Sprintf("period %d %s %s", row.Period, tr.Name, r.num(tr.Arrears)))
			}
		}
		cells = append(cells, r.num(row.TotalPaydown), r.num(row.TotalEnding), r.num(row.UnusedCash))
		t.add(cells...)
	}
	t.write(&sb)

	if len(arrears) > 0 {
		sb.WriteString("Mandatory amortization in arrears: " + strings.Join(arrears, "; ") + "\n\n")
	}
	return sb.String()
}

// DCF renders the discounted cash flow and equity bridge.
func (r *Renderer) DCF(res valuation.DCFResult) string {
	var sb strings.Builder
	heading(&sb, 2, "Discounted Cash Flow")

	t := newTable("Period", "FCF", "Rate", "Discount Factor", "PV")
	for _, l := range res.Detail {
		t.add(strconv.Itoa(l.Period), r.num(l.FCF), r.pct(l.Rate), fmt.Sprintf("%.4f", l.DiscountFactor), r.num(l.PV))
	}
	t.write(&sb)

	b := newTable("Item", "Value")
	b.add("PV of Explicit FCF", r.num(res.PVExplicit))
	b.add("Terminal Value", r.num(res.TerminalValue))
	b.add("PV of Terminal Value", r.num(res.PVTerminal))
	b.add("Enterprise Value", r.num(res.EnterpriseValue))
	b.add("Net Debt", r.num(res.NetDebt))
	b.add("Equity Value", r.num(res.EquityValue))
	if res.SharePrice != 0 {
		b.add("Value per Share", r.num(res.SharePrice))
	}
	b.add("Implied Terminal Multiple", r.mult(res.ImpliedMultiple))
	b.write(&sb)
	return sb.String()
}

// Returns renders the sponsor returns at exit.
func (r *Renderer) Returns(ret valuation.Returns) string {
	var sb strings.Builder
	heading(&sb, 2, "Sponsor Returns")

	t := newTable("Metric", "Value")
	t.add("Holding Period (years)", strconv.Itoa(ret.Years))
	t.add("Equity Invested", r.num(ret.EquityInvested))
	t.add("Exit EBITDA", r.num(ret.ExitEBITDA))
	t.add("Exit Multiple", r.mult(ret.ExitMultiple))
	t.add("Exit Enterprise Value", r.num(ret.ExitEV))
	t.add("Remaining Debt", r.num(ret.RemainingDebt))
	t.add("Exit Equity", r.num(ret.ExitEquity))
	if ret.Distributions != 0 {
		t.add("Interim Distributions", r.num(ret.Distributions))
	}
	t.add("MOIC", r.mult(ret.MOIC))
	t.add("IRR", r.pct(ret.IRR))
	if ret.Method == valuation.IRRExact {
		t.add("IRR (MOIC approximation)", r.pct(ret.ApproxIRR))
	}
	t.write(&sb)
	return sb.String()
}

// AbilityToPay renders the maximum price for a target IRR.
func (r *Renderer) AbilityToPay(res valuation.AbilityToPayResult) string {
	var sb strings.Builder
	heading(&sb, 2, "Ability To Pay")
	t := newTable("Metric", "Value")
	t.add("Target IRR", r.pct(res.TargetIRR))
	t.add("Max Entry EV", r.num(res.MaxEntryEV))
	t.add("Implied Entry Multiple", r.mult(res.ImpliedEntryMultiple))
	t.add("Equity Check", r.num(res.EquityCheck))
	t.add("Debt Raised", r.num(res.DebtRaised))
	t.add("Exit Equity Value", r.num(res.ExitEquityValue))
	t.write(&sb)
	return sb.String()
}

// Summary renders the football field.
func (r *Renderer) Summary(items []valuation.ValuationLineItem) string {
	var sb strings.Builder
	heading(&sb, 2, "Valuation Summary")
	t := newTable("Method", "Low", "High")
	for _, it := range items {
		t.add(it.ModelName, r.num(it.Low), r.num(it.High))
	}
	t.write(&sb)
	return sb.String()
}

// Sensitivity renders a two-way grid. Invalid cells show "n/a".
func (r *Renderer) Sensitivity(g valuation.SensitivityGrid) string {
	var sb strings.Builder
	heading(&sb, 2, fmt.Sprintf("Sensitivity: %s by %s × %s", label(g.Output), label(g.RowLabel), label(g.ColLabel)))

	headers := []string{label(g.RowLabel) + " \\ " + label(g.ColLabel)}
	for _, c := range g.Cols {
		headers = append(headers, r.axis(g.ColLabel, c))
	}
	t := newTable(headers...)
	for i, row := range g.Rows {
		cells := []string{r.axis(g.RowLabel, row)}
		for j := range g.Cols {
			cells = append(cells, r.cell(g.Output, g.Values[i][j]))
		}
		t.add(cells...)
	}
	t.write(&sb)
	return sb.String()
}

func (r *Renderer) axis(name string, v float64) string {
	if strings.Contains(name, "multiple") {
		return r.mult(v)
	}
	return r.pct(v)
}

func (r *Renderer) cell(output string, v float64) string {
	switch output {
	case "moic":
		return r.mult(v)
	case "irr":
		return r.pct(v)
	default:
		return r.num(v)
	}
}

func label(s string) string {
	words := strings.Split(s, "_")
	for i, w := range words {
		switch w {
		case "moic", "irr", "ev", "dcf":
			words[i] = strings.ToUpper(w)
		default:
			if w != "" {
				words[i] = strings.ToUpper(w[:1]) + w[1:]
			}
		}
	}
	return strings.Join(words, " ")
}

// =============================================================================
// SIMULATION
// =============================================================================

// Simulation renders the aggregate statistics of a Monte Carlo run.
func (r *Renderer) Simulation(res *simulation.Result) string {
	var sb strings.Builder
	heading(&sb, 2, "Monte Carlo Simulation")
	fmt.Fprintf(&sb, "%d iterations, seed %d: %d valid, %d invalid.\n\n", res.Iterations, res.Seed, res.Valid, res.Invalid)

	// Percentile table
	headers := []string{"Output", "Mean", "Std Dev", "Min"}
	var ps []float64
	for _, p := range res.IRR.Percentiles {
		headers = append(headers, fmt.Sprintf("P%g", math.Round(p.P*10000)/100))
		ps = append(ps, p.P)
	}
	headers = append(headers, "Max")
	t := newTable(headers...)
	t.add(r.statsRow("IRR", res.IRR, ps, r.pct)...)
	t.add(r.statsRow("MOIC", res.MOIC, ps, r.mult)...)
	t.add(r.statsRow("Exit Equity", res.ExitEquity, ps, r.num)...)
	if res.EnterpriseValue.Percentiles != nil {
		t.add(r.statsRow("DCF Enterprise Value", res.EnterpriseValue, ps, r.num)...)
	}
	t.write(&sb)

	// Risk table
	risk := newTable("Measure", "Value")
	for _, p := range res.ProbIRRAbove {
		risk.add("P(IRR ≥ "+r.pct(p.Threshold)+")", r.pct(p.Probability))
	}
	risk.add("P(MOIC < 1.0x)", r.pct(res.ProbLoss))
	conf := math.Round(res.VaRConfidence*10000) / 100
	risk.add(fmt.Sprintf("IRR VaR (%g%%)", conf), r.pct(res.VaR))
	risk.add(fmt.Sprintf("IRR CVaR (%g%%)", conf), r.pct(res.CVaR))
	risk.add("Mean / Std Dev", fmt.Sprintf("%.*f", r.Precision, res.Sharpe))
	risk.write(&sb)

	if len(res.Clamped) > 0 {
		c := newTable("Variable", "Draws Clamped")
		for _, k := range sortedKeys(res.Clamped) {
			c.add(k, strconv.Itoa(res.Clamped[k]))
		}
		c.write(&sb)
	}
	if len(res.InvalidReasons) > 0 {
		c := newTable("Invalid Reason", "Draws")
		for _, k := range sortedKeys(res.InvalidReasons) {
			c.add(k, strconv.Itoa(res.InvalidReasons[k]))
		}
		c.write(&sb)
	}

	if len(res.Waterfall) > 0 {
		heading(&sb, 3, "Distribution by Class")
		w := newTable("Class", "Mean", "P5", "Median", "P95")
		for _, cs := range res.Waterfall {
			p5, _ := cs.Stats.At(0.05)
			p95, _ := cs.Stats.At(0.95)
			w.add(cs.Class, r.num(cs.Stats.Mean), r.num(p5), r.num(cs.Stats.Median), r.num(p95))
		}
		w.write(&sb)
	}
	return sb.String()
}

func (r *Renderer) statsRow(name string, s simulation.Stats, ps []float64, f func(float64) string) []string {
	cells := []string{name, f(s.Mean), f(s.StdDev), f(s.Min)}
	for _, p := range ps {
		v, _ := s.At(p)
		cells = append(cells, f(v))
	}
	return append(cells, f(s.Max))
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// =============================================================================
// WATERFALL
// =============================================================================

// Distribution renders one waterfall allocation: tiers as rows, classes
// as columns.
func (r *Renderer) Distribution(res waterfall.DistributionResult) string {
	var sb strings.Builder
	heading(&sb, 2, "Distribution Waterfall")
	fmt.Fprintf(&sb, "Total distributed: %s\n\n", r.num(res.Total))

	headers := []string{"Tier"}
	for _, c := range res.Classes {
		headers = append(headers, c.Name)
	}
	headers = append(headers, "Total")
	t := newTable(headers...)

	for _, tier := range res.Tiers {
		cells := []string{label(string(tier.Kind))}
		for _, c := range res.Classes {
			cells = append(cells, r.num(tier.Amounts[c.Name]))
		}
		t.add(append(cells, r.num(tier.Total))...)
	}
	total := []string{"Total"}
	for _, c := range res.Classes {
		total = append(total, r.num(c.Amount))
	}
	t.add(append(total, r.num(res.Total))...)
	t.write(&sb)

	m := newTable("Class", "Capital", "Received", "Multiple")
	for _, c := range res.Classes {
		multiple := "n/a"
		if c.Capital > 0 {
			multiple = r.mult(c.Amount / c.Capital)
		}
		m.add(c.Name, r.num(c.Capital), r.num(c.Amount), multiple)
	}
	m.write(&sb)
	return sb.String()
}

// Economics renders per-class returns on a distribution.
func (r *Renderer) Economics(econ []waterfall.ClassEconomics) string {
	var sb strings.Builder
	heading(&sb, 2, "Class Economics")
	t := newTable("Class", "Capital", "Proceeds", "Profit", "Profit Share", "MOIC", "IRR (approx.)")
	for _, e := range econ {
		moic, irr := "n/a", "n/a"
		if e.Capital > 0 {
			moic, irr = r.mult(e.MOIC), r.pct(e.ApproxIRR)
		}
		t.add(e.Name, r.num(e.Capital), r.num(e.Proceeds), r.num(e.Profit), r.pct(e.ProfitShare), moic, irr)
	}
	t.write(&sb)
	return sb.String()
}

// FundMetrics renders DPI, RVPI and TVPI.
func (r *Renderer) FundMetrics(m waterfall.FundMetrics) string {
	var sb strings.Builder
	heading(&sb, 2, "Fund Metrics")
	t := newTable("Metric", "Value")
	t.add("Paid-In", r.num(m.PaidIn))
	t.add("Distributed", r.num(m.Distributed))
	t.add("NAV", r.num(m.NAV))
	t.add("DPI", r.mult(m.DPI))
	t.add("RVPI", r.mult(m.RVPI))
	t.add("TVPI", r.mult(m.TVPI))
	t.write(&sb)
	return sb.String()
}
