package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"lbo_valuation/pkg/core/pipeline"
	"lbo_valuation/pkg/core/report"

	"github.com/spf13/cobra"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run a Monte Carlo simulation over a deal",
	Long: `Simulate samples the deal file's distributions, re-runs the full deal
chain per iteration and reports IRR and MOIC percentiles, hurdle
probabilities, value at risk and the per-class distribution.

Runs are reproducible for a given seed regardless of worker count.

Example:
  lbo simulate -f config/retailco.yaml --iterations 20000 --seed 7 --draws draws.msgpack`,
	RunE: runSimulate,
}

var (
	simDealPath   string
	simIterations int
	simSeed       uint64
	simWorkers    int
	simDrawsPath  string
)

func init() {
	rootCmd.AddCommand(simulateCmd)

	simulateCmd.Flags().StringVarP(&simDealPath, "config", "f", "", "deal file (.yaml, .json, .hjson) (required)")
	simulateCmd.Flags().IntVarP(&simIterations, "iterations", "n", 0, "iterations (overrides file and LBO_ITERATIONS)")
	simulateCmd.Flags().Uint64Var(&simSeed, "seed", 0, "random seed (overrides file and LBO_SEED)")
	simulateCmd.Flags().IntVarP(&simWorkers, "workers", "w", 0, "worker goroutines (0 = GOMAXPROCS)")
	simulateCmd.Flags().StringVar(&simDrawsPath, "draws", "", "write raw draws to this msgpack file")

	simulateCmd.MarkFlagRequired("config")
}

func runSimulate(cmd *cobra.Command, args []string) error {
	f, req, err := loadRequest(simDealPath)
	if err != nil {
		return err
	}

	// Flags sit above env settings, which sit above the file.
	s := settings
	if cmd.Flags().Changed("iterations") {
		s.Iterations = simIterations
	}
	if cmd.Flags().Changed("seed") {
		seed := simSeed
		s.Seed = &seed
	}
	if cmd.Flags().Changed("workers") {
		s.Workers = simWorkers
	}
	opts := f.SimulationOptions(s)
	if simDrawsPath != "" {
		opts.KeepDraws = true
	}
	in, err := f.SimulationInput()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rep, err := pipeline.NewOrchestrator(log).Simulate(ctx, req, in.Distributions, opts)
	if err != nil {
		return err
	}

	if simDrawsPath != "" {
		if err := writeDraws(simDrawsPath, rep); err != nil {
			return err
		}
		log.Info().Str("path", simDrawsPath).Int("draws", len(rep.Result.Draws)).Msg("draws written")
	}
	return emit(cmd, report.NewRenderer().Simulation(rep.Result), rep)
}

func writeDraws(path string, rep *pipeline.SimulationReport) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := report.WriteDraws(out, rep.RunID, rep.Result); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
