package cmd

import (
	"encoding/json"
	"fmt"

	"lbo_valuation/pkg/core/config"
	"lbo_valuation/pkg/core/pipeline"
	"lbo_valuation/pkg/core/report"
	"lbo_valuation/pkg/logger"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	envFiles []string
	logLevel string
	pretty   bool
	format   string

	settings config.Settings
	log      zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "lbo",
	Short: "Leveraged buyout, DCF and Monte Carlo deal valuation",
	Long: `lbo evaluates a leveraged buyout described in a YAML, JSON or Hjson deal file.

It provides tools for:
  - Deterministic projection, debt schedule, DCF and sponsor returns
  - Ability-to-pay and relative valuation
  - Monte Carlo simulation of returns under uncertain assumptions
  - Distribution waterfalls across equity classes
  - Sensitivity grids

Settings are read from .env (or --env files) with LBO_* keys; flags win.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		settings, err = config.LoadSettings(envFiles...)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") {
			settings.LogLevel = logLevel
		}
		if cmd.Flags().Changed("pretty") {
			settings.LogPretty = pretty
		}
		switch format {
		case "md", "html", "json":
		default:
			return fmt.Errorf("unknown --format %q (md, html, json)", format)
		}
		log = logger.New(settings.Logger())
		logger.SetGlobalLogger(log)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env", nil, "dotenv files to load (default .env if present)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&pretty, "pretty", false, "human-readable console logs")
	rootCmd.PersistentFlags().StringVar(&format, "format", "md", "output format (md, html, json)")
}

// loadRequest reads a deal file and builds the pipeline request.
func loadRequest(path string) (*config.DealFile, pipeline.DealRequest, error) {
	f, err := config.LoadDeal(path)
	if err != nil {
		return nil, pipeline.DealRequest{}, err
	}
	req, err := pipeline.RequestFromFile(f)
	if err != nil {
		return nil, pipeline.DealRequest{}, err
	}
	return f, req, nil
}

// emit writes md (or its HTML rendering, or v as JSON) to stdout.
func emit(cmd *cobra.Command, md string, v any) error {
	out := cmd.OutOrStdout()
	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "html":
		html, err := report.HTML(md)
		if err != nil {
			return err
		}
		_, err = fmt.Fprint(out, html)
		return err
	default:
		_, err := fmt.Fprint(out, md)
		return err
	}
}
