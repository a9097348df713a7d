// Package waterfall splits realized proceeds between capital classes
// through an ordered set of distribution tiers.
//
// Amounts are carried in decimal arithmetic so that the class totals sum
// exactly to the value being distributed.
package waterfall

import (
	"fmt"
	"math"

	"lbo_valuation/pkg/core/modelerr"

	"github.com/shopspring/decimal"
)

// TierKind names a distribution tier.
type TierKind string

const (
	ReturnOfCapital TierKind = "return_of_capital"
	PreferredReturn TierKind = "preferred_return"
	CatchUp         TierKind = "catch_up"
	ResidualSplit   TierKind = "residual_split"
)

// canonical order; a tier's rank must be strictly greater than the previous tier's.
var tierRank = map[TierKind]int{
	ReturnOfCapital: 1,
	PreferredReturn: 2,
	CatchUp:         3,
	ResidualSplit:   4,
}

// Class is one capital class (e.g. LP, GP).
type Class struct {
	Name    string  `json:"name" yaml:"name"`
	Capital float64 `json:"capital" yaml:"capital"`
}

// Split is one class's share of the residual.
type Split struct {
	Class string  `json:"class" yaml:"class"`
	Share float64 `json:"share" yaml:"share"`
}

// Tier is one step of the waterfall. Which fields apply depends on Kind.
type Tier struct {
	Kind TierKind `json:"kind" yaml:"kind"`

	// preferred_return
	HurdleRate float64  `json:"hurdle_rate,omitempty" yaml:"hurdle_rate"`
	Years      float64  `json:"years,omitempty" yaml:"years"`
	Classes    []string `json:"classes,omitempty" yaml:"classes"` // empty = every class except the carry holder

	// catch_up
	CarryRate  float64 `json:"carry_rate,omitempty" yaml:"carry_rate"`
	CarryClass string  `json:"carry_class,omitempty" yaml:"carry_class"`

	// residual_split; the last split absorbs rounding
	Splits []Split `json:"splits,omitempty" yaml:"splits"`
}

// TierAllocation is what one tier paid out.
type TierAllocation struct {
	Kind    TierKind           `json:"kind"`
	Amounts map[string]float64 `json:"amounts"`
	Total   float64            `json:"total"`
}

// ClassAllocation is one class's final take.
type ClassAllocation struct {
	Name    string          `json:"name"`
	Capital float64         `json:"capital"`
	Amount  float64         `json:"amount"`
	Exact   decimal.Decimal `json:"exact"`
}

// DistributionResult is the full split of one realized value.
type DistributionResult struct {
	Total   float64           `json:"total"`
	Classes []ClassAllocation `json:"classes"`
	Tiers   []TierAllocation  `json:"tiers"`
}

// Amount returns the total allocated to class, or 0 when unknown.
func (r DistributionResult) Amount(class string) float64 {
	for _, c := range r.Classes {
		if c.Name == class {
			return c.Amount
		}
	}
	return 0
}

// ExactTotal sums the class allocations in decimal.
func (r DistributionResult) ExactTotal() decimal.Decimal {
	sum := decimal.Zero
	for _, c := range r.Classes {
		sum = sum.Add(c.Exact)
	}
	return sum
}

// Validate checks classes and tiers. Every failure is INVALID_CONFIGURATION.
func Validate(tiers []Tier, classes []Class) error {
	if len(classes) == 0 {
		return modelerr.Configuration("classes", "at least one capital class is required")
	}
	known := make(map[string]bool, len(classes))
	for i, c := range classes {
		if c.Name == "" {
			return modelerr.Configuration(fmt.Sprintf("classes[%d].name", i), "name is required")
		}
		if known[c.Name] {
			return modelerr.Configuration(fmt.Sprintf("classes[%d].name", i), "duplicate class %q", c.Name)
		}
		known[c.Name] = true
		if !finite(c.Capital) || c.Capital < 0 {
			return modelerr.Configuration(fmt.Sprintf("classes.%s.capital", c.Name), "must be non-negative, got %v", c.Capital)
		}
	}

	if len(tiers) == 0 {
		return modelerr.Configuration("tiers", "at least a residual split tier is required")
	}
	prev := 0
	for i, t := range tiers {
		field := fmt.Sprintf("tiers[%d]", i)
		rank, ok := tierRank[t.Kind]
		if !ok {
			return modelerr.Configuration(field+".kind", "unknown tier kind %q", t.Kind)
		}
		if rank <= prev {
			return modelerr.Configuration(field+".kind", "%s is out of order or repeated", t.Kind)
		}
		prev = rank

		switch t.Kind {
		case PreferredReturn:
			if !finite(t.HurdleRate) || t.HurdleRate < 0 {
				return modelerr.Configuration(field+".hurdle_rate", "must be non-negative, got %v", t.HurdleRate)
			}
			if !finite(t.Years) || t.Years < 0 {
				return modelerr.Configuration(field+".years", "must be non-negative, got %v", t.Years)
			}
			for _, name := range t.Classes {
				if !known[name] {
					return modelerr.Configuration(field+".classes", "unknown class %q", name)
				}
			}
		case CatchUp:
			if !finite(t.CarryRate) || t.CarryRate < 0 || t.CarryRate >= 1 {
				return modelerr.Configuration(field+".carry_rate", "must be within [0,1), got %v", t.CarryRate)
			}
			if !known[t.CarryClass] {
				return modelerr.Configuration(field+".carry_class", "unknown class %q", t.CarryClass)
			}
		case ResidualSplit:
			if len(t.Splits) == 0 {
				return modelerr.Configuration(field+".splits", "at least one split is required")
			}
			sum := 0.0
			for _, s := range t.Splits {
				if !known[s.Class] {
					return modelerr.Configuration(field+".splits", "unknown class %q", s.Class)
				}
				if !finite(s.Share) || s.Share < 0 {
					return modelerr.Configuration(field+".splits", "share for %q must be non-negative, got %v", s.Class, s.Share)
				}
				sum += s.Share
			}
			if math.Abs(sum-1) > 1e-9 {
				return modelerr.Configuration(field+".splits", "shares must sum to 1, got %v", sum)
			}
		}
	}
	if tiers[len(tiers)-1].Kind != ResidualSplit {
		return modelerr.Configuration("tiers", "the last tier must be a residual split")
	}

	return nil
}

// carryHolder is the catch-up beneficiary, or "" when no catch-up tier exists.
func carryHolder(tiers []Tier) string {
	for _, t := range tiers {
		if t.Kind == CatchUp {
			return t.CarryClass
		}
	}
	return ""
}

// Allocate distributes total through tiers in order. Configuration errors
// are reported before anything is allocated; the class totals always sum
// exactly to total.
//
// FORMULA:
//
//	Return of capital: each class in listed order, up to contributed capital
//	Preferred return:  returned capital × ((1+h)^years - 1) per beneficiary
//	Catch-up:          max(carry × (total - Σ capital) - carry class profit so far, 0)
//	Residual split:    remaining × share, last share takes the remainder
func Allocate(total float64, tiers []Tier, classes []Class) (DistributionResult, error) {
	if err := Validate(tiers, classes); err != nil {
		return DistributionResult{}, err
	}
	if !finite(total) || total < 0 {
		return DistributionResult{}, modelerr.Assumption("total_value", "must be non-negative and finite, got %v", total)
	}

	remaining := decimal.NewFromFloat(total)
	received := make(map[string]decimal.Decimal, len(classes))
	returned := make(map[string]decimal.Decimal, len(classes))
	totalCapital := decimal.Zero
	for _, c := range classes {
		received[c.Name] = decimal.Zero
		returned[c.Name] = decimal.Zero
		totalCapital = totalCapital.Add(decimal.NewFromFloat(c.Capital))
	}
	holder := carryHolder(tiers)

	res := DistributionResult{Total: total}
	for _, t := range tiers {
		paid := make(map[string]decimal.Decimal)
		pay := func(class string, amount decimal.Decimal) {
			amount = decimal.Min(amount, remaining)
			if amount.Sign() <= 0 {
				return
			}
			remaining = remaining.Sub(amount)
			received[class] = received[class].Add(amount)
			paid[class] = paid[class].Add(amount)
		}

		switch t.Kind {
		case ReturnOfCapital:
			for _, c := range classes {
				before := remaining
				pay(c.Name, decimal.NewFromFloat(c.Capital))
				returned[c.Name] = returned[c.Name].Add(before.Sub(remaining))
			}

		case PreferredReturn:
			factor := decimal.NewFromFloat(math.Pow(1+t.HurdleRate, t.Years) - 1)
			for _, name := range beneficiaries(t, classes, holder) {
				pay(name, returned[name].Mul(factor))
			}

		case CatchUp:
			profit := decimal.Max(decimal.NewFromFloat(total).Sub(totalCapital), decimal.Zero)
			target := profit.Mul(decimal.NewFromFloat(t.CarryRate))
			already := received[t.CarryClass].Sub(returned[t.CarryClass])
			pay(t.CarryClass, decimal.Max(target.Sub(already), decimal.Zero))

		case ResidualSplit:
			pool := remaining
			for i, s := range t.Splits {
				if i == len(t.Splits)-1 {
					pay(s.Class, remaining)
					break
				}
				pay(s.Class, pool.Mul(decimal.NewFromFloat(s.Share)))
			}
		}

		res.Tiers = append(res.Tiers, tierAllocation(t.Kind, paid))
	}

	for _, c := range classes {
		res.Classes = append(res.Classes, ClassAllocation{
			Name:    c.Name,
			Capital: c.Capital,
			Amount:  received[c.Name].InexactFloat64(),
			Exact:   received[c.Name],
		})
	}
	return res, nil
}

func beneficiaries(t Tier, classes []Class, holder string) []string {
	if len(t.Classes) > 0 {
		return t.Classes
	}
	var out []string
	for _, c := range classes {
		if c.Name != holder {
			out = append(out, c.Name)
		}
	}
	return out
}

func tierAllocation(kind TierKind, paid map[string]decimal.Decimal) TierAllocation {
	ta := TierAllocation{Kind: kind, Amounts: make(map[string]float64, len(paid))}
	sum := decimal.Zero
	for name, amount := range paid {
		ta.Amounts[name] = amount.InexactFloat64()
		sum = sum.Add(amount)
	}
	ta.Total = sum.InexactFloat64()
	return ta
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
