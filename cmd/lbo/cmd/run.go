package cmd

import (
	"math"
	"strings"

	"lbo_valuation/pkg/core/pipeline"
	"lbo_valuation/pkg/core/report"
	"lbo_valuation/pkg/core/waterfall"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Evaluate a deal deterministically",
	Long: `Run projects the operating case, schedules the debt, values the business
with a DCF and computes sponsor returns. Ability-to-pay, relative
valuation, the distribution waterfall and sensitivity grids run when the
deal file configures them.

Example:
  lbo run -f config/retailco.yaml --format html > retailco.html`,
	RunE: runDeal,
}

var (
	runDealPath  string
	runStrict    bool
	runTolerance float64
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runDealPath, "config", "f", "", "deal file (.yaml, .json, .hjson) (required)")
	runCmd.Flags().BoolVar(&runStrict, "strict", false, "fail the run when an integrity check fails")
	runCmd.Flags().Float64Var(&runTolerance, "tolerance", 0.01, "absolute tolerance for integrity checks")

	runCmd.MarkFlagRequired("config")
}

func runDeal(cmd *cobra.Command, args []string) error {
	_, req, err := loadRequest(runDealPath)
	if err != nil {
		return err
	}

	o := pipeline.NewOrchestrator(log)
	o.SetValidationConfig(pipeline.ValidationConfig{EnableStrictValidation: runStrict, Tolerance: runTolerance})
	rep, err := o.RunDeal(cmd.Context(), req)
	if err != nil {
		return err
	}
	return emit(cmd, renderDeal(report.NewRenderer(), rep), rep)
}

// renderDeal lays out every section a deal report carries.
func renderDeal(r *report.Renderer, rep *pipeline.DealReport) string {
	var sb strings.Builder
	sb.WriteString(r.Deal(rep.Deal, rep.Outcome))
	if rep.AbilityToPay != nil {
		sb.WriteString(r.AbilityToPay(*rep.AbilityToPay))
	}
	sb.WriteString(r.Summary(rep.Summary))

	ret := rep.Outcome.Returns
	m, err := waterfall.Metrics([]waterfall.Holding{{
		Name:     rep.Deal,
		Invested: ret.EquityInvested,
		Realized: ret.Distributions,
		NAV:      math.Max(ret.ExitEquity, 0),
	}})
	if err == nil {
		sb.WriteString(r.FundMetrics(m))
	}

	if rep.Distribution != nil {
		sb.WriteString(r.Distribution(*rep.Distribution))
		sb.WriteString(r.Economics(waterfall.Economics(*rep.Distribution, float64(ret.Years))))
	}
	for _, g := range rep.Sensitivity {
		sb.WriteString(r.Sensitivity(g))
	}
	return sb.String()
}
