package cmd

import (
	"fmt"
	"math"
	"strings"

	"lbo_valuation/pkg/core/modelerr"
	"lbo_valuation/pkg/core/report"
	"lbo_valuation/pkg/core/valuation"
	"lbo_valuation/pkg/core/waterfall"

	"github.com/spf13/cobra"
)

var waterfallCmd = &cobra.Command{
	Use:   "waterfall",
	Short: "Distribute proceeds through the deal's waterfall",
	Long: `Waterfall allocates an amount through the tiers configured in the deal
file and reports each class's take and returns. Without --total the
deterministic sponsor proceeds are distributed.

Example:
  lbo waterfall -f config/retailco.yaml --total 900 --years 5`,
	RunE: runWaterfall,
}

var (
	wfDealPath string
	wfTotal    float64
	wfYears    float64
)

func init() {
	rootCmd.AddCommand(waterfallCmd)

	waterfallCmd.Flags().StringVarP(&wfDealPath, "config", "f", "", "deal file (.yaml, .json, .hjson) (required)")
	waterfallCmd.Flags().Float64VarP(&wfTotal, "total", "t", 0, "amount to distribute (default: deal proceeds)")
	waterfallCmd.Flags().Float64Var(&wfYears, "years", 0, "holding period for approximate class IRR (default: projection horizon)")

	waterfallCmd.MarkFlagRequired("config")
}

func runWaterfall(cmd *cobra.Command, args []string) error {
	f, req, err := loadRequest(wfDealPath)
	if err != nil {
		return err
	}
	spec := f.WaterfallSpec()
	if spec == nil {
		return modelerr.Configuration("waterfall", "deal file %s has no waterfall section", wfDealPath)
	}

	total, years := wfTotal, wfYears
	if !cmd.Flags().Changed("total") || years == 0 {
		out, err := valuation.EvaluateDeal(req.Deal, req.Assumptions)
		if err != nil {
			return fmt.Errorf("evaluate %s: %w", req.Deal.Name, err)
		}
		if !cmd.Flags().Changed("total") {
			total = math.Max(out.Returns.TotalProceeds(), 0)
		}
		if years == 0 {
			years = float64(out.Returns.Years)
		}
	}

	res, err := waterfall.Allocate(total, spec.Tiers, spec.Classes)
	if err != nil {
		return err
	}
	log.Info().Float64("total", total).Int("classes", len(res.Classes)).Msg("waterfall allocated")

	r := report.NewRenderer()
	var sb strings.Builder
	sb.WriteString(r.Distribution(res))
	econ := waterfall.Economics(res, years)
	sb.WriteString(r.Economics(econ))
	return emit(cmd, sb.String(), struct {
		Distribution waterfall.DistributionResult `json:"distribution"`
		Economics    []waterfall.ClassEconomics   `json:"economics"`
	}{res, econ})
}
