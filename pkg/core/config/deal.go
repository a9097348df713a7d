package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"lbo_valuation/pkg/core/assumption"
	"lbo_valuation/pkg/core/debt"
	"lbo_valuation/pkg/core/modelerr"
	"lbo_valuation/pkg/core/projection"
	"lbo_valuation/pkg/core/simulation"
	"lbo_valuation/pkg/core/utils"
	"lbo_valuation/pkg/core/valuation"
	"lbo_valuation/pkg/core/waterfall"

	"gopkg.in/yaml.v2"
)

// Format is a deal file encoding.
type Format string

const (
	FormatYAML  Format = "yaml"
	FormatJSON  Format = "json"
	FormatHJSON Format = "hjson"
)

// FormatOf infers the format from a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	case ".hjson":
		return FormatHJSON, nil
	default:
		return "", modelerr.Configuration("config.path", "unsupported extension %q (want .yaml, .yml, .json or .hjson)", filepath.Ext(path))
	}
}

// =============================================================================
// DEAL FILE
// =============================================================================

// DealFile is the on-disk description of one deal and its scenarios.
type DealFile struct {
	Name        string              `json:"name" yaml:"name"`
	Deal        DealSection         `json:"deal" yaml:"deal"`
	Operating   OperatingSection    `json:"operating" yaml:"operating"`
	Discount    DiscountSection     `json:"discount" yaml:"discount"`
	Terminal    TerminalSection     `json:"terminal" yaml:"terminal"`
	Bridge      BridgeSection       `json:"bridge" yaml:"bridge"`
	Simulation  *SimulationSection  `json:"simulation,omitempty" yaml:"simulation"`
	Waterfall   *WaterfallSection   `json:"waterfall,omitempty" yaml:"waterfall"`
	Target      *TargetSection      `json:"target,omitempty" yaml:"target"`
	Peers       []PeerSection       `json:"peers,omitempty" yaml:"peers"`
	Sensitivity *SensitivitySection `json:"sensitivity,omitempty" yaml:"sensitivity"`
}

// DealSection holds entry/exit terms and the debt package.
type DealSection struct {
	EntryEBITDA           float64          `json:"entry_ebitda" yaml:"entry_ebitda"`
	EntryMultiple         float64          `json:"entry_multiple" yaml:"entry_multiple"`
	ExitMultiple          float64          `json:"exit_multiple" yaml:"exit_multiple"`
	TransactionFeePercent float64          `json:"transaction_fee_percent" yaml:"transaction_fee_percent"`
	FinancingFeePercent   float64          `json:"financing_fee_percent" yaml:"financing_fee_percent"`
	SweepPercent          *float64         `json:"sweep_percent,omitempty" yaml:"sweep_percent"`
	DistributeUnusedCash  bool             `json:"distribute_unused_cash" yaml:"distribute_unused_cash"`
	IRRMethod             string           `json:"irr_method" yaml:"irr_method"`
	TargetIRR             float64          `json:"target_irr,omitempty" yaml:"target_irr"` // enables ability-to-pay
	Tranches              []TrancheSection `json:"tranches" yaml:"tranches"`
}

// TrancheSection sizes a tranche either in currency or as a multiple of
// entry EBITDA. Exactly one of Principal and Leverage must be set.
type TrancheSection struct {
	Name             string  `json:"name" yaml:"name"`
	Principal        float64 `json:"principal,omitempty" yaml:"principal"`
	Leverage         float64 `json:"leverage,omitempty" yaml:"leverage"` // × entry EBITDA
	Rate             float64 `json:"rate" yaml:"rate"`
	Seniority        int     `json:"seniority" yaml:"seniority"`
	AmortizationRate float64 `json:"amortization_rate" yaml:"amortization_rate"`
}

// OperatingSection holds the projection drivers.
type OperatingSection struct {
	BaseRevenue  float64   `json:"base_revenue" yaml:"base_revenue"`
	GrowthRates  []float64 `json:"growth_rates" yaml:"growth_rates"`
	EBITDAMargin float64   `json:"ebitda_margin" yaml:"ebitda_margin"`
	DAPercent    float64   `json:"da_percent" yaml:"da_percent"`
	CapexPercent float64   `json:"capex_percent" yaml:"capex_percent"`
	NWCPercent   float64   `json:"nwc_percent" yaml:"nwc_percent"`
	TaxRate      float64   `json:"tax_rate" yaml:"tax_rate"`

	// GrowthPath generates GrowthRates when they are not listed.
	GrowthPath *GrowthPathSection `json:"growth_path,omitempty" yaml:"growth_path"`
}

// GrowthPathSection names a growth strategy (constant, linear,
// exponential, s-curve) with its params (rate, start, end, decay,
// steepness) over Years periods.
type GrowthPathSection struct {
	Name   string             `json:"name" yaml:"name"`
	Years  int                `json:"years" yaml:"years"`
	Params map[string]float64 `json:"params,omitempty" yaml:"params"`
}

// DiscountSection is either an explicit rate or market WACC inputs.
type DiscountSection struct {
	Rate              float64 `json:"rate,omitempty" yaml:"rate"`
	RiskFreeRate      float64 `json:"risk_free_rate,omitempty" yaml:"risk_free_rate"`
	Beta              float64 `json:"beta,omitempty" yaml:"beta"`
	EquityRiskPremium float64 `json:"equity_risk_premium,omitempty" yaml:"equity_risk_premium"`
	PreTaxCostOfDebt  float64 `json:"pre_tax_cost_of_debt,omitempty" yaml:"pre_tax_cost_of_debt"`
	EquityMarketValue float64 `json:"equity_market_value,omitempty" yaml:"equity_market_value"`
	DebtMarketValue   float64 `json:"debt_market_value,omitempty" yaml:"debt_market_value"`
	UnleveredBeta     float64 `json:"unlevered_beta,omitempty" yaml:"unlevered_beta"`
}

// TerminalSection selects the terminal-value method.
type TerminalSection struct {
	Method       string  `json:"method" yaml:"method"`
	GrowthRate   float64 `json:"growth_rate,omitempty" yaml:"growth_rate"`
	ExitMultiple float64 `json:"exit_multiple,omitempty" yaml:"exit_multiple"`
}

// BridgeSection holds the EV-to-equity items.
type BridgeSection struct {
	Cash              float64 `json:"cash,omitempty" yaml:"cash"`
	Debt              float64 `json:"debt,omitempty" yaml:"debt"`
	MinorityInterest  float64 `json:"minority_interest,omitempty" yaml:"minority_interest"`
	Investments       float64 `json:"investments,omitempty" yaml:"investments"`
	SharesOutstanding float64 `json:"shares_outstanding,omitempty" yaml:"shares_outstanding"`
}

// SimulationSection overrides simulation defaults. Unset fields keep them.
type SimulationSection struct {
	Iterations         int                           `json:"iterations,omitempty" yaml:"iterations"`
	Seed               *uint64                       `json:"seed,omitempty" yaml:"seed"`
	Workers            int                           `json:"workers,omitempty" yaml:"workers"`
	KeepDraws          bool                          `json:"keep_draws,omitempty" yaml:"keep_draws"`
	Percentiles        []float64                     `json:"percentiles,omitempty" yaml:"percentiles"`
	IRRThresholds      []float64                     `json:"irr_thresholds,omitempty" yaml:"irr_thresholds"`
	VaRConfidence      float64                       `json:"var_confidence,omitempty" yaml:"var_confidence"`
	MaxInvalidFraction *float64                      `json:"max_invalid_fraction,omitempty" yaml:"max_invalid_fraction"`
	Distributions      []assumption.DistributionSpec `json:"distributions" yaml:"distributions"`

	// ExitMultipleFromPeers replaces any exit_multiple distribution with a
	// normal fitted to the peers' EV/EBITDA.
	ExitMultipleFromPeers bool `json:"exit_multiple_from_peers,omitempty" yaml:"exit_multiple_from_peers"`
}

// WaterfallSection is the distribution structure for exit proceeds.
type WaterfallSection struct {
	Classes []waterfall.Class `json:"classes" yaml:"classes"`
	Tiers   []waterfall.Tier  `json:"tiers" yaml:"tiers"`
}

// TargetSection holds the target's trailing metrics for relative valuation.
type TargetSection struct {
	Revenue   float64 `json:"revenue" yaml:"revenue"`
	EBITDA    float64 `json:"ebitda" yaml:"ebitda"`
	NetIncome float64 `json:"net_income" yaml:"net_income"`
	NetDebt   float64 `json:"net_debt" yaml:"net_debt"`
	SharesOut float64 `json:"shares_out" yaml:"shares_out"`
}

// PeerSection is one comparable company or precedent transaction.
type PeerSection struct {
	Name        string  `json:"name" yaml:"name"`
	EVRevenue   float64 `json:"ev_revenue,omitempty" yaml:"ev_revenue"`
	EVEBITDA    float64 `json:"ev_ebitda,omitempty" yaml:"ev_ebitda"`
	PERatio     float64 `json:"pe_ratio,omitempty" yaml:"pe_ratio"`
	Transaction bool    `json:"transaction,omitempty" yaml:"transaction"`
}

// SensitivitySection lists the grid axes.
type SensitivitySection struct {
	DiscountRates  []float64 `json:"discount_rates,omitempty" yaml:"discount_rates"`
	TerminalGrowth []float64 `json:"terminal_growth,omitempty" yaml:"terminal_growth"`
	EntryMultiples []float64 `json:"entry_multiples,omitempty" yaml:"entry_multiples"`
	ExitMultiples  []float64 `json:"exit_multiples,omitempty" yaml:"exit_multiples"`
}

// =============================================================================
// LOADING
// =============================================================================

// LoadDeal reads and parses the deal file at path.
func LoadDeal(path string) (*DealFile, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &modelerr.Error{Kind: modelerr.InvalidConfiguration, Field: "config.path", Message: "cannot read deal file", Err: err}
	}
	f, err := ParseDeal(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// ParseDeal decodes data in the given format. Unknown keys are rejected.
// JSON input falls back through repair and Hjson before failing.
func ParseDeal(data []byte, format Format) (*DealFile, error) {
	var f DealFile
	var err error

	switch format {
	case FormatYAML:
		err = yaml.UnmarshalStrict(data, &f)
	case FormatJSON:
		_, err = utils.SmartParse(data, &f)
	case FormatHJSON:
		var converted []byte
		if converted, err = utils.HJSONToJSON(data); err == nil {
			err = utils.DecodeStrict(converted, &f)
		}
	default:
		return nil, modelerr.Configuration("config.format", "unsupported format %q", format)
	}
	if err != nil {
		return nil, &modelerr.Error{Kind: modelerr.InvalidConfiguration, Field: "config", Message: "cannot decode " + string(format), Err: err}
	}
	return &f, nil
}

// =============================================================================
// CONVERSION
// =============================================================================

// Assumptions returns the operating, discount and terminal assumptions.
func (f *DealFile) Assumptions() (assumption.Assumptions, error) {
	op := f.Operating
	growth, err := op.growthRates()
	if err != nil {
		return assumption.Assumptions{}, err
	}
	return assumption.Assumptions{
		BaseRevenue:  op.BaseRevenue,
		GrowthRates:  growth,
		EBITDAMargin: op.EBITDAMargin,
		DAPercent:    op.DAPercent,
		CapexPercent: op.CapexPercent,
		NWCPercent:   op.NWCPercent,
		TaxRate:      op.TaxRate,
		Discount: assumption.DiscountInputs{
			Rate:              f.Discount.Rate,
			RiskFreeRate:      f.Discount.RiskFreeRate,
			Beta:              f.Discount.Beta,
			EquityRiskPremium: f.Discount.EquityRiskPremium,
			PreTaxCostOfDebt:  f.Discount.PreTaxCostOfDebt,
			EquityMarketValue: f.Discount.EquityMarketValue,
			DebtMarketValue:   f.Discount.DebtMarketValue,
			UnleveredBeta:     f.Discount.UnleveredBeta,
		},
		Terminal: assumption.TerminalSpec{
			Method:       assumption.TerminalMethod(f.Terminal.Method),
			GrowthRate:   f.Terminal.GrowthRate,
			ExitMultiple: f.Terminal.ExitMultiple,
		},
	}, nil
}

// growthRates returns the listed rates, or expands the growth path.
func (op OperatingSection) growthRates() ([]float64, error) {
	if op.GrowthPath == nil {
		return append([]float64(nil), op.GrowthRates...), nil
	}
	if len(op.GrowthRates) > 0 {
		return nil, modelerr.Configuration("operating.growth_path", "give growth_rates or growth_path, not both")
	}
	gp := op.GrowthPath
	path, err := projection.GrowthPathByName(gp.Name, gp.Params)
	if err != nil {
		return nil, &modelerr.Error{Kind: modelerr.InvalidConfiguration, Field: "operating.growth_path.name", Message: "unknown strategy", Err: err}
	}
	rates, err := path.Rates(gp.Years)
	if err != nil {
		return nil, &modelerr.Error{Kind: modelerr.InvalidConfiguration, Field: "operating.growth_path", Message: path.Name() + " path rejected", Err: err}
	}
	return rates, nil
}

// ToDeal returns the transaction. Tranches given as leverage multiples are
// sized off entry EBITDA.
func (f *DealFile) ToDeal() (valuation.Deal, error) {
	s := f.Deal
	d := valuation.Deal{
		Name:                  f.Name,
		EntryEBITDA:           s.EntryEBITDA,
		EntryMultiple:         s.EntryMultiple,
		ExitMultiple:          s.ExitMultiple,
		TransactionFeePercent: s.TransactionFeePercent,
		FinancingFeePercent:   s.FinancingFeePercent,
		DistributeUnusedCash:  s.DistributeUnusedCash,
		IRRMethod:             valuation.IRRMethod(s.IRRMethod),
		Bridge: valuation.EquityBridge{
			Cash:              f.Bridge.Cash,
			Debt:              f.Bridge.Debt,
			MinorityInterest:  f.Bridge.MinorityInterest,
			Investments:       f.Bridge.Investments,
			SharesOutstanding: f.Bridge.SharesOutstanding,
		},
	}
	if s.SweepPercent != nil {
		d.SweepPercent = debt.Sweep(*s.SweepPercent)
	}

	for i, t := range s.Tranches {
		field := fmt.Sprintf("deal.tranches[%d]", i)
		principal := t.Principal
		switch {
		case t.Principal != 0 && t.Leverage != 0:
			return valuation.Deal{}, modelerr.Configuration(field, "set principal or leverage, not both")
		case t.Leverage != 0:
			principal = t.Leverage * s.EntryEBITDA
		case t.Principal == 0:
			return valuation.Deal{}, modelerr.Configuration(field, "principal or leverage is required")
		}
		d.Tranches = append(d.Tranches, debt.Tranche{
			Name:             t.Name,
			Principal:        principal,
			Rate:             t.Rate,
			Seniority:        t.Seniority,
			AmortizationRate: t.AmortizationRate,
		})
	}
	return d, nil
}

// SimulationOptions layers the file's simulation section over the
// defaults, then the environment settings over both.
func (f *DealFile) SimulationOptions(s Settings) simulation.Options {
	opts := simulation.DefaultOptions()
	if sim := f.Simulation; sim != nil {
		if sim.Iterations > 0 {
			opts.Iterations = sim.Iterations
		}
		if sim.Seed != nil {
			opts.Seed = *sim.Seed
		}
		if sim.Workers > 0 {
			opts.Workers = sim.Workers
		}
		opts.KeepDraws = sim.KeepDraws
		if len(sim.Percentiles) > 0 {
			opts.Percentiles = append([]float64(nil), sim.Percentiles...)
		}
		if len(sim.IRRThresholds) > 0 {
			opts.IRRThresholds = append([]float64(nil), sim.IRRThresholds...)
		}
		if sim.VaRConfidence != 0 {
			opts.VaRConfidence = sim.VaRConfidence
		}
		if sim.MaxInvalidFraction != nil {
			opts.MaxInvalidFraction = *sim.MaxInvalidFraction
		}
	}
	return s.Apply(opts)
}

// SimulationInput bundles the deal, base case, distributions and the
// optional waterfall for the simulator.
func (f *DealFile) SimulationInput() (simulation.Input, error) {
	d, err := f.ToDeal()
	if err != nil {
		return simulation.Input{}, err
	}
	base, err := f.Assumptions()
	if err != nil {
		return simulation.Input{}, err
	}
	in := simulation.Input{Deal: d, Base: base, Waterfall: f.WaterfallSpec()}
	if f.Simulation == nil {
		return in, nil
	}
	in.Distributions = append([]assumption.DistributionSpec(nil), f.Simulation.Distributions...)
	if f.Simulation.ExitMultipleFromPeers {
		fitted, err := valuation.ExitMultipleDistribution(f.peers())
		if err != nil {
			return simulation.Input{}, err
		}
		kept := in.Distributions[:0]
		for _, ds := range in.Distributions {
			if ds.Variable != assumption.VarExitMultiple {
				kept = append(kept, ds)
			}
		}
		in.Distributions = append(kept, fitted)
	}
	return in, nil
}

// WaterfallSpec returns the distribution structure, or nil when none is configured.
func (f *DealFile) WaterfallSpec() *simulation.WaterfallSpec {
	if f.Waterfall == nil {
		return nil
	}
	return &simulation.WaterfallSpec{
		Tiers:   append([]waterfall.Tier(nil), f.Waterfall.Tiers...),
		Classes: append([]waterfall.Class(nil), f.Waterfall.Classes...),
	}
}

// Relative returns the target metrics and the peer set split into trading
// comps and precedent transactions. ok is false when no target is given.
func (f *DealFile) Relative() (target valuation.MetricInput, comps, transactions []valuation.PeerComparable, ok bool) {
	if f.Target == nil {
		return valuation.MetricInput{}, nil, nil, false
	}
	target = valuation.MetricInput{
		Revenue:   f.Target.Revenue,
		EBITDA:    f.Target.EBITDA,
		NetIncome: f.Target.NetIncome,
		NetDebt:   f.Target.NetDebt,
		SharesOut: f.Target.SharesOut,
	}
	for _, pc := range f.peers() {
		if pc.IsTransaction {
			transactions = append(transactions, pc)
		} else {
			comps = append(comps, pc)
		}
	}
	return target, comps, transactions, true
}

func (f *DealFile) peers() []valuation.PeerComparable {
	out := make([]valuation.PeerComparable, 0, len(f.Peers))
	for _, p := range f.Peers {
		out = append(out, valuation.PeerComparable{
			Name:          p.Name,
			EVRevenue:     p.EVRevenue,
			EVEBITDA:      p.EVEBITDA,
			PERatio:       p.PERatio,
			IsTransaction: p.Transaction,
		})
	}
	return out
}
