package cmd

import (
	"strings"

	"lbo_valuation/pkg/core/modelerr"
	"lbo_valuation/pkg/core/report"
	"lbo_valuation/pkg/core/valuation"

	"github.com/spf13/cobra"
)

var sensitivityCmd = &cobra.Command{
	Use:   "sensitivity",
	Short: "Build DCF and returns sensitivity grids",
	Long: `Sensitivity re-values the deal across discount rate × terminal growth
(enterprise value) and entry × exit multiple (MOIC). Axes come from the
deal file's sensitivity section unless given as flags.

Example:
  lbo sensitivity -f config/retailco.yaml --rates 0.09,0.10,0.11 --growth 0.015,0.02,0.025`,
	RunE: runSensitivity,
}

var (
	sensDealPath string
	sensRates    []float64
	sensGrowth   []float64
	sensEntry    []float64
	sensExit     []float64
)

func init() {
	rootCmd.AddCommand(sensitivityCmd)

	sensitivityCmd.Flags().StringVarP(&sensDealPath, "config", "f", "", "deal file (.yaml, .json, .hjson) (required)")
	sensitivityCmd.Flags().Float64SliceVar(&sensRates, "rates", nil, "discount rate axis")
	sensitivityCmd.Flags().Float64SliceVar(&sensGrowth, "growth", nil, "terminal growth axis")
	sensitivityCmd.Flags().Float64SliceVar(&sensEntry, "entry", nil, "entry multiple axis")
	sensitivityCmd.Flags().Float64SliceVar(&sensExit, "exit", nil, "exit multiple axis")

	sensitivityCmd.MarkFlagRequired("config")
}

func runSensitivity(cmd *cobra.Command, args []string) error {
	f, req, err := loadRequest(sensDealPath)
	if err != nil {
		return err
	}
	rates, growth, entry, exit := sensRates, sensGrowth, sensEntry, sensExit
	if s := f.Sensitivity; s != nil {
		rates = pick(rates, s.DiscountRates)
		growth = pick(growth, s.TerminalGrowth)
		entry = pick(entry, s.EntryMultiples)
		exit = pick(exit, s.ExitMultiples)
	}

	var grids []valuation.SensitivityGrid
	if len(rates) > 0 && len(growth) > 0 {
		g, err := valuation.Sensitivity(req.Assumptions, rates, growth)
		if err != nil {
			return err
		}
		grids = append(grids, g)
	}
	if len(entry) > 0 && len(exit) > 0 {
		g, err := valuation.ReturnsSensitivity(req.Deal, req.Assumptions, entry, exit)
		if err != nil {
			return err
		}
		grids = append(grids, g)
	}
	if len(grids) == 0 {
		return modelerr.Configuration("sensitivity", "no complete pair of axes given")
	}

	r := report.NewRenderer()
	var sb strings.Builder
	for _, g := range grids {
		sb.WriteString(r.Sensitivity(g))
	}
	return emit(cmd, sb.String(), grids)
}

// pick prefers flag values over the file's.
func pick(flag, file []float64) []float64 {
	if len(flag) > 0 {
		return flag
	}
	return file
}
