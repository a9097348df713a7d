package valuation

import (
	"lbo_valuation/pkg/core/assumption"
	"lbo_valuation/pkg/core/debt"
	"lbo_valuation/pkg/core/modelerr"
	"lbo_valuation/pkg/core/projection"
)

// IRRMethod selects how a deal's IRR is reported.
type IRRMethod string

const (
	IRRApproximate IRRMethod = "approximate" // MOIC^(1/years) - 1
	IRRExact       IRRMethod = "exact"       // root of NPV over the dated equity cash flows
)

// Deal describes the transaction around a projected company.
type Deal struct {
	Name                  string         `json:"name"`
	EntryEBITDA           float64        `json:"entry_ebitda"`
	EntryMultiple         float64        `json:"entry_multiple"`
	ExitMultiple          float64        `json:"exit_multiple"`
	Tranches              []debt.Tranche `json:"tranches"`
	TransactionFeePercent float64        `json:"transaction_fee_percent"` // of purchase price
	FinancingFeePercent   float64        `json:"financing_fee_percent"`   // of debt raised
	SweepPercent          *float64       `json:"sweep_percent,omitempty"` // nil = full sweep
	DistributeUnusedCash  bool           `json:"distribute_unused_cash"`  // pay unswept cash to equity each period
	IRRMethod             IRRMethod      `json:"irr_method"`
	Bridge                EquityBridge   `json:"bridge"`
}

// PurchasePrice is entry EBITDA × entry multiple.
func (d Deal) PurchasePrice() float64 {
	return d.EntryEBITDA * d.EntryMultiple
}

// Validate checks the entry and exit economics. Tranches are checked by the
// debt scheduler.
func (d Deal) Validate() error {
	if !finite(d.EntryEBITDA) || d.EntryEBITDA <= 0 {
		return modelerr.Assumption("deal.entry_ebitda", "must be positive, got %v", d.EntryEBITDA)
	}
	if !finite(d.EntryMultiple) || d.EntryMultiple <= 0 {
		return modelerr.Assumption("deal.entry_multiple", "must be positive, got %v", d.EntryMultiple)
	}
	if !finite(d.ExitMultiple) || d.ExitMultiple < 0 {
		return modelerr.Assumption("deal.exit_multiple", "must be non-negative, got %v", d.ExitMultiple)
	}
	for _, c := range []struct {
		field string
		v     float64
	}{
		{"deal.transaction_fee_percent", d.TransactionFeePercent},
		{"deal.financing_fee_percent", d.FinancingFeePercent},
	} {
		if !finite(c.v) || c.v < 0 || c.v > 1 {
			return modelerr.Configuration(c.field, "must be within [0,1], got %v", c.v)
		}
	}
	switch d.IRRMethod {
	case IRRApproximate, IRRExact, "":
	default:
		return modelerr.Configuration("deal.irr_method", "unknown method %q", d.IRRMethod)
	}
	return nil
}

// SourcesUses is the funding table at close.
type SourcesUses struct {
	PurchasePrice   float64            `json:"purchase_price"`
	TransactionFees float64            `json:"transaction_fees"`
	FinancingFees   float64            `json:"financing_fees"`
	TotalUses       float64            `json:"total_uses"`
	Debt            map[string]float64 `json:"debt"`
	TotalDebt       float64            `json:"total_debt"`
	Equity          float64            `json:"equity"`
}

// SourcesAndUses builds the funding table. Equity is the plug:
// total uses less debt raised.
func SourcesAndUses(d Deal) (SourcesUses, error) {
	if err := d.Validate(); err != nil {
		return SourcesUses{}, err
	}

	su := SourcesUses{
		PurchasePrice: d.PurchasePrice(),
		Debt:          make(map[string]float64, len(d.Tranches)),
	}
	for _, t := range d.Tranches {
		su.Debt[t.Name] += t.Principal
		su.TotalDebt += t.Principal
	}
	su.TransactionFees = su.PurchasePrice * d.TransactionFeePercent
	su.FinancingFees = su.TotalDebt * d.FinancingFeePercent
	su.TotalUses = su.PurchasePrice + su.TransactionFees + su.FinancingFees
	su.Equity = su.TotalUses - su.TotalDebt

	if su.Equity <= 0 {
		return SourcesUses{}, modelerr.Configuration("deal.tranches", "debt %.2f leaves no equity against uses of %.2f", su.TotalDebt, su.TotalUses)
	}
	return su, nil
}

// Returns is the sponsor's outcome at exit.
type Returns struct {
	Years          int        `json:"years"`
	EquityInvested float64    `json:"equity_invested"`
	ExitEBITDA     float64    `json:"exit_ebitda"`
	ExitMultiple   float64    `json:"exit_multiple"`
	ExitEV         float64    `json:"exit_ev"`
	RemainingDebt  float64    `json:"remaining_debt"`
	ExitEquity     float64    `json:"exit_equity"`
	Distributions  float64    `json:"distributions"` // interim cash paid to equity
	MOIC           float64    `json:"moic"`
	IRR            float64    `json:"irr"`
	ApproxIRR      float64    `json:"approx_irr"`
	Method         IRRMethod  `json:"method"`
	CashFlows      []CashFlow `json:"cash_flows"` // dated equity flows, entry at time 0
}

// TotalProceeds is everything equity receives.
func (r Returns) TotalProceeds() float64 {
	return r.ExitEquity + r.Distributions
}

// DealOutcome is one deterministic pass through the full chain.
type DealOutcome struct {
	SourcesUses SourcesUses        `json:"sources_uses"`
	Projection  []projection.Row   `json:"projection"`
	Schedule    []debt.ScheduleRow `json:"schedule"`
	Rate        float64            `json:"rate"`
	DCF         *DCFResult         `json:"dcf,omitempty"` // nil when the assumptions carry no discount inputs
	Returns     Returns            `json:"returns"`
}

// EvaluateDeal runs projection, debt schedule, DCF and sponsor returns.
// Fails fast; no partial outcome is returned.
func EvaluateDeal(d Deal, a assumption.Assumptions) (DealOutcome, error) {
	// 1. Funding
	su, err := SourcesAndUses(d)
	if err != nil {
		return DealOutcome{}, err
	}

	// 2. Operating projection
	rows, err := projection.Project(a)
	if err != nil {
		return DealOutcome{}, err
	}

	// 3. Debt schedule
	schedule, err := debt.Amortize(d.Tranches, projection.FreeCashFlows(rows), debt.Options{SweepPercent: d.SweepPercent})
	if err != nil {
		return DealOutcome{}, err
	}

	out := DealOutcome{SourcesUses: su, Projection: rows, Schedule: schedule}

	// 4. Intrinsic value
	if HasDiscount(a) {
		rate, err := DiscountRate(a)
		if err != nil {
			return DealOutcome{}, err
		}
		in := NewDCFInput(rows, a, rate)
		if in.Terminal.Method == assumption.TerminalExitMultiple && in.Terminal.ExitMultiple == 0 {
			in.Terminal.ExitMultiple = d.ExitMultiple
		}
		in.Bridge = d.Bridge
		in.Schedule = schedule
		if rates := releveredRates(a, d.PurchasePrice(), schedule); rates != nil {
			in.PeriodRates = rates
		}
		dcf, err := Discount(in)
		if err != nil {
			return DealOutcome{}, err
		}
		out.Rate = rate
		out.DCF = &dcf
	}

	// 5. Sponsor returns
	ret, err := sponsorReturns(d, su.Equity, rows, schedule)
	if err != nil {
		return DealOutcome{}, err
	}
	out.Returns = ret
	return out, nil
}

func sponsorReturns(d Deal, equity float64, rows []projection.Row, schedule []debt.ScheduleRow) (Returns, error) {
	years := len(rows)
	r := Returns{
		Years:          years,
		EquityInvested: equity,
		ExitEBITDA:     projection.FinalEBITDA(rows),
		ExitMultiple:   d.ExitMultiple,
		RemainingDebt:  debt.EndingBalance(d.Tranches, schedule),
		Method:         d.IRRMethod,
	}
	if r.Method == "" {
		r.Method = IRRApproximate
	}
	r.ExitEV = r.ExitEBITDA * d.ExitMultiple
	r.ExitEquity = r.ExitEV - r.RemainingDebt

	flows := make([]CashFlow, 0, years+1)
	flows = append(flows, CashFlow{Time: 0, Amount: -equity})
	for i, row := range schedule {
		amount := 0.0
		if d.DistributeUnusedCash {
			amount = row.UnusedCash
			r.Distributions += amount
		}
		if i == len(schedule)-1 {
			amount += r.ExitEquity
		}
		flows = append(flows, CashFlow{Time: float64(row.Period), Amount: amount})
	}

	r.CashFlows = flows

	r.MOIC = r.TotalProceeds() / equity
	r.ApproxIRR = ApproximateIRR(r.MOIC, float64(years))
	r.IRR = r.ApproxIRR
	if r.Method == IRRExact {
		irr, err := exactOrLoss(flows)
		if err != nil {
			return Returns{}, err
		}
		r.IRR = irr
	}

	for _, c := range []struct {
		field string
		v     float64
	}{
		{"exit_equity", r.ExitEquity},
		{"moic", r.MOIC},
		{"irr", r.IRR},
	} {
		if !finite(c.v) {
			return Returns{}, modelerr.Instability(c.field, "non-finite result %v", c.v)
		}
	}
	return r, nil
}

// exactOrLoss solves the IRR, reporting -1 when equity gets nothing back.
func exactOrLoss(flows []CashFlow) (float64, error) {
	inflow := 0.0
	for _, f := range flows[1:] {
		inflow += f.Amount
	}
	if inflow <= 0 {
		return -1, nil
	}
	return IRR(flows)
}

// QuickInput is the back-of-envelope LBO check.
type QuickInput struct {
	EntryEBITDA   float64
	EntryMultiple float64
	EquityPercent float64 // equity share of purchase price
	ExitEBITDA    float64
	ExitMultiple  float64
	RemainingDebt float64
	Years         int
}

// QuickReturns computes MOIC and approximate IRR from headline numbers alone.
func QuickReturns(in QuickInput) (Returns, error) {
	if in.EntryEBITDA <= 0 || in.EntryMultiple <= 0 {
		return Returns{}, modelerr.Assumption("entry", "entry EBITDA and multiple must be positive")
	}
	if in.EquityPercent <= 0 || in.EquityPercent > 1 {
		return Returns{}, modelerr.Assumption("equity_percent", "must be within (0,1], got %v", in.EquityPercent)
	}
	if in.Years < 1 {
		return Returns{}, modelerr.Assumption("years", "must be at least 1, got %d", in.Years)
	}

	equity := in.EntryEBITDA * in.EntryMultiple * in.EquityPercent
	r := Returns{
		Years:          in.Years,
		EquityInvested: equity,
		ExitEBITDA:     in.ExitEBITDA,
		ExitMultiple:   in.ExitMultiple,
		ExitEV:         in.ExitEBITDA * in.ExitMultiple,
		RemainingDebt:  in.RemainingDebt,
		Method:         IRRApproximate,
	}
	r.ExitEquity = r.ExitEV - r.RemainingDebt
	r.MOIC = r.ExitEquity / equity
	r.ApproxIRR = ApproximateIRR(r.MOIC, float64(in.Years))
	r.IRR = r.ApproxIRR
	return r, nil
}

// AbilityToPayResult is the highest price that still clears a target IRR.
type AbilityToPayResult struct {
	TargetIRR            float64 `json:"target_irr"`
	MaxEntryEV           float64 `json:"max_entry_ev"`
	ImpliedEntryMultiple float64 `json:"implied_entry_multiple"`
	EquityCheck          float64 `json:"equity_check"`
	DebtRaised           float64 `json:"debt_raised"`
	ExitEquityValue      float64 `json:"exit_equity_value"`
}

// AbilityToPay determines the maximum entry enterprise value at which the
// sponsor still earns targetIRR. The operating case and debt package are
// held fixed, so the equity cash flows after entry do not depend on the
// price paid. Each inflow is discounted from its own period, so interim
// distributions count for more than the same dollars received at exit.
func AbilityToPay(d Deal, a assumption.Assumptions, targetIRR float64) (AbilityToPayResult, error) {
	if !finite(targetIRR) || targetIRR <= -1 {
		return AbilityToPayResult{}, modelerr.Assumption("target_irr", "must be greater than -1, got %v", targetIRR)
	}

	// 1. Exit equity from the full chain at the quoted price
	out, err := EvaluateDeal(d, a)
	if err != nil {
		return AbilityToPayResult{}, err
	}
	// 2. Entry equity = PV of the dated inflows at the target IRR
	required := NPV(targetIRR, out.Returns.CashFlows[1:])
	if !finite(required) || required <= 0 {
		return AbilityToPayResult{}, modelerr.Assumption("target_irr", "equity inflows have no positive value at %v", targetIRR)
	}

	// 3. Uses = EV × (1 + txFee) + finFee = equity + debt
	debtRaised := out.SourcesUses.TotalDebt
	maxEV := (required + debtRaised - out.SourcesUses.FinancingFees) / (1 + d.TransactionFeePercent)

	return AbilityToPayResult{
		TargetIRR:            targetIRR,
		MaxEntryEV:           maxEV,
		ImpliedEntryMultiple: maxEV / d.EntryEBITDA,
		EquityCheck:          required,
		DebtRaised:           debtRaised,
		ExitEquityValue:      out.Returns.ExitEquity,
	}, nil
}
