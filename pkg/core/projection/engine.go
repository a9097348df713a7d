// Package projection turns operating assumptions into a period-by-period
// free-cash-flow projection.
package projection

import (
	"fmt"

	"lbo_valuation/pkg/core/assumption"
	"lbo_valuation/pkg/core/modelerr"
)

// Project builds one Row per growth rate in a.
//
// Tax policy: tax = max(EBIT, 0) × taxRate. A negative EBIT produces zero
// tax, never a negative tax (no shield, no loss carry-forward).
//
// Project is a pure function of a: identical inputs give identical rows.
func Project(a assumption.Assumptions) ([]Row, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}

	rows := make([]Row, 0, len(a.GrowthRates))

	prevRevenue := a.BaseRevenue
	prevNWC := a.BaseRevenue * a.NWCPercent

	for i, g := range a.GrowthRates {
		// 1. Revenue compounds off the prior period
		revenue := prevRevenue * (1 + g)

		// 2. Operating build
		ebitda := revenue * a.EBITDAMargin
		da := revenue * a.DAPercent
		ebit := ebitda - da

		tax := 0.0
		if ebit > 0 {
			tax = ebit * a.TaxRate
		}
		nopat := ebit - tax

		// 3. Reinvestment
		capex := revenue * a.CapexPercent
		nwc := revenue * a.NWCPercent
		deltaNWC := nwc - prevNWC

		// 4. Unlevered free cash flow
		fcf := nopat + da - capex - deltaNWC

		row := Row{
			Period:   i + 1,
			Revenue:  revenue,
			EBITDA:   ebitda,
			DA:       da,
			EBIT:     ebit,
			Tax:      tax,
			NOPAT:    nopat,
			Capex:    capex,
			NWC:      nwc,
			DeltaNWC: deltaNWC,
			FCF:      fcf,
		}
		if err := checkRow(row); err != nil {
			return nil, err
		}
		rows = append(rows, row)

		prevRevenue = revenue
		prevNWC = nwc
	}

	return rows, nil
}

func checkRow(r Row) error {
	fields := []struct {
		name  string
		value float64
	}{
		{"revenue", r.Revenue},
		{"ebitda", r.EBITDA},
		{"da", r.DA},
		{"ebit", r.EBIT},
		{"tax", r.Tax},
		{"nopat", r.NOPAT},
		{"capex", r.Capex},
		{"delta_nwc", r.DeltaNWC},
		{"fcf", r.FCF},
	}
	for _, f := range fields {
		if !isFinite(f.value) {
			return modelerr.Assumption(
				fmt.Sprintf("period[%d].%s", r.Period, f.name),
				"projection produced a non-finite value (%v)", f.value,
			)
		}
	}
	return nil
}
