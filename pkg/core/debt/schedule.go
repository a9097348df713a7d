// Package debt amortizes a stack of debt tranches against projected free
// cash flow.
//
// Interest convention: interest for a period is charged on each tranche's
// OPENING balance for that period. Paydowns made during the period do not
// reduce that period's interest.
package debt

import (
	"fmt"
	"math"
	"sort"

	"lbo_valuation/pkg/core/modelerr"
)

// Tranche is one slice of acquisition debt.
type Tranche struct {
	Name             string  `json:"name"`
	Principal        float64 `json:"principal"`
	Rate             float64 `json:"rate"`              // annual cash interest rate
	Seniority        int     `json:"seniority"`         // 1 = most senior
	AmortizationRate float64 `json:"amortization_rate"` // mandatory paydown, fraction of original principal per period
}

// Options tunes the cash sweep.
type Options struct {
	// SweepPercent is the share of cash left after mandatory amortization
	// that is swept against principal. Nil means 1.0 (full sweep).
	SweepPercent *float64
}

// Sweep returns a pointer suitable for Options.SweepPercent.
func Sweep(p float64) *float64 { return &p }

// TrancheRow is one tranche's movement within a period.
type TrancheRow struct {
	Name      string  `json:"name"`
	Opening   float64 `json:"opening"`
	Interest  float64 `json:"interest"`
	Mandatory float64 `json:"mandatory"` // mandatory amortization paid
	Sweep     float64 `json:"sweep"`     // optional paydown from excess cash
	Ending    float64 `json:"ending"`
	Arrears   float64 `json:"arrears"` // mandatory amortization due but unpaid, carried forward
}

// Paydown is the total principal repaid this period.
func (r TrancheRow) Paydown() float64 { return r.Mandatory + r.Sweep }

// ScheduleRow is one period of the debt schedule. Tranches are in seniority order.
type ScheduleRow struct {
	Period        int          `json:"period"`
	FCF           float64      `json:"fcf"`
	TotalInterest float64      `json:"total_interest"`
	CashAvailable float64      `json:"cash_available"` // FCF - total interest
	Tranches      []TrancheRow `json:"tranches"`
	TotalPaydown  float64      `json:"total_paydown"`
	TotalEnding   float64      `json:"total_ending"`
	UnusedCash    float64      `json:"unused_cash"`
}

// Ordered returns a copy of tranches sorted most senior first.
func Ordered(tranches []Tranche) []Tranche {
	out := append([]Tranche(nil), tranches...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Seniority < out[j].Seniority })
	return out
}

// TotalPrincipal sums the original principal of all tranches.
func TotalPrincipal(tranches []Tranche) float64 {
	total := 0.0
	for _, t := range tranches {
		total += t.Principal
	}
	return total
}

// EndingBalance is the total debt outstanding after the last period, or the
// original principal when the schedule is empty.
func EndingBalance(tranches []Tranche, rows []ScheduleRow) float64 {
	if len(rows) == 0 {
		return TotalPrincipal(tranches)
	}
	return rows[len(rows)-1].TotalEnding
}

// Validate checks the tranche stack and sweep options.
func Validate(tranches []Tranche, opts Options) error {
	seen := make(map[int]string, len(tranches))
	for i, t := range tranches {
		field := fmt.Sprintf("tranches[%d]", i)
		if t.Name != "" {
			field = "tranches." + t.Name
		}
		if t.Seniority < 1 {
			return modelerr.Configuration(field+".seniority", "seniority rank must be >= 1, got %d", t.Seniority)
		}
		if other, dup := seen[t.Seniority]; dup {
			return modelerr.Configuration(field+".seniority", "rank %d already used by %q", t.Seniority, other)
		}
		seen[t.Seniority] = t.Name
		if !finite(t.Principal) || t.Principal < 0 {
			return modelerr.Configuration(field+".principal", "must be non-negative, got %v", t.Principal)
		}
		if !finite(t.Rate) || t.Rate < 0 {
			return modelerr.Configuration(field+".rate", "must be non-negative, got %v", t.Rate)
		}
		if !finite(t.AmortizationRate) || t.AmortizationRate < 0 || t.AmortizationRate > 1 {
			return modelerr.Configuration(field+".amortization_rate", "must be within [0,1], got %v", t.AmortizationRate)
		}
	}
	if opts.SweepPercent != nil {
		s := *opts.SweepPercent
		if !finite(s) || s < 0 || s > 1 {
			return modelerr.Configuration("sweep_percent", "must be within [0,1], got %v", s)
		}
	}
	return nil
}

// Amortize builds the debt schedule for the given FCF series.
//
// Each period:
//  1. interest = opening balance × rate, per tranche
//  2. cash available = FCF - total interest; if <= 0 nothing is repaid
//  3. mandatory amortization (rate × original principal plus arrears,
//     capped at balance) is paid most senior first, limited by cash
//  4. SweepPercent of the remaining cash repays principal most senior first
//
// Unpaid mandatory amortization is carried forward as arrears. Unpaid
// interest is not capitalized. Balances never go below zero.
func Amortize(tranches []Tranche, fcf []float64, opts Options) ([]ScheduleRow, error) {
	if err := Validate(tranches, opts); err != nil {
		return nil, err
	}
	for i, f := range fcf {
		if !finite(f) {
			return nil, modelerr.Assumption(fmt.Sprintf("fcf[%d]", i), "free cash flow must be finite, got %v", f)
		}
	}

	sweepPct := 1.0
	if opts.SweepPercent != nil {
		sweepPct = *opts.SweepPercent
	}

	ordered := Ordered(tranches)
	balances := make([]float64, len(ordered))
	arrears := make([]float64, len(ordered))
	for i, t := range ordered {
		balances[i] = t.Principal
	}

	rows := make([]ScheduleRow, 0, len(fcf))
	for p, periodFCF := range fcf {
		row := ScheduleRow{
			Period:   p + 1,
			FCF:      periodFCF,
			Tranches: make([]TrancheRow, len(ordered)),
		}

		// 1. Interest on opening balances
		for i, t := range ordered {
			interest := balances[i] * t.Rate
			row.Tranches[i] = TrancheRow{
				Name:     t.Name,
				Opening:  balances[i],
				Interest: interest,
			}
			row.TotalInterest += interest
		}

		// 2. Cash left for principal
		row.CashAvailable = periodFCF - row.TotalInterest
		cash := math.Max(row.CashAvailable, 0)

		// 3. Mandatory amortization, most senior first
		for i, t := range ordered {
			due := math.Min(t.Principal*t.AmortizationRate+arrears[i], balances[i])
			paid := math.Min(due, cash)
			balances[i] -= paid
			cash -= paid
			arrears[i] = due - paid
			row.Tranches[i].Mandatory = paid
		}

		// 4. Optional sweep of the residual, most senior first
		sweepable := cash * sweepPct
		for i := range ordered {
			if sweepable <= 0 {
				break
			}
			pay := math.Min(sweepable, balances[i])
			balances[i] -= pay
			sweepable -= pay
			cash -= pay
			row.Tranches[i].Sweep = pay
		}

		for i := range ordered {
			if balances[i] < 0 {
				balances[i] = 0
			}
			if balances[i] == 0 {
				arrears[i] = 0
			}
			row.Tranches[i].Ending = balances[i]
			row.Tranches[i].Arrears = arrears[i]
			row.TotalPaydown += row.Tranches[i].Paydown()
			row.TotalEnding += balances[i]
		}
		row.UnusedCash = cash

		rows = append(rows, row)
	}

	return rows, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
