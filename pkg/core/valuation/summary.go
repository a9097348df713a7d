package valuation

// SummaryInput aggregates what has been computed for one target.
type SummaryInput struct {
	Outcome      DealOutcome
	AbilityToPay *AbilityToPayResult
	Comps        *RelativeValuationResult
	Transactions *RelativeValuationResult
}

// ValuationLineItem is one bar of the football-field summary, in enterprise value.
type ValuationLineItem struct {
	ModelName string  `json:"model_name"`
	Low       float64 `json:"low"`
	High      float64 `json:"high"`
}

// Summarize lines up every enterprise-value estimate available for a deal.
func Summarize(in SummaryInput) []ValuationLineItem {
	results := []ValuationLineItem{}
	price := in.Outcome.SourcesUses.PurchasePrice

	// 1. Price paid
	results = append(results, ValuationLineItem{ModelName: "Entry Purchase Price", Low: price, High: price})

	// 2. Intrinsic (DCF)
	if in.Outcome.DCF != nil {
		ev := in.Outcome.DCF.EnterpriseValue
		results = append(results, ValuationLineItem{ModelName: "Discounted Cash Flow", Low: ev, High: ev})
	}

	// 3. Exit value at the deal's exit multiple
	exit := in.Outcome.Returns.ExitEV
	results = append(results, ValuationLineItem{ModelName: "Exit Enterprise Value", Low: exit, High: exit})

	// 4. Sponsor ability to pay
	if in.AbilityToPay != nil {
		v := in.AbilityToPay.MaxEntryEV
		results = append(results, ValuationLineItem{ModelName: "LBO Ability To Pay", Low: v, High: v})
	}

	// 5. Trading comps and precedent transactions
	if in.Comps != nil && in.Comps.Peers > 0 {
		r := in.Comps.ImpliedEVEBITDA
		results = append(results, ValuationLineItem{ModelName: "Trading Comparables (EV/EBITDA)", Low: r.Low, High: r.High})
	}
	if in.Transactions != nil && in.Transactions.Peers > 0 {
		r := in.Transactions.ImpliedEVEBITDA
		results = append(results, ValuationLineItem{ModelName: "Precedent Transactions (EV/EBITDA)", Low: r.Low, High: r.High})
	}

	return results
}
