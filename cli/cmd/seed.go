package cmd

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/anomaly-stack/cli/internal/client"
	"github.com/telhawk-systems/anomaly-stack/cli/internal/seeder"
	"github.com/telhawk-systems/anomaly-stack/cli/pkg/output"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Generate fake sensor traffic",
	Long: `Generate realistic fake anomalies and send them to the service.

In ingest mode raw sensor readings are posted to the ingestion gateway.
In create mode validated creates are posted to the worker endpoint, with
an optional share of deliberately invalid requests.

Configuration cascade (priority order):
  1. Command-line flags
  2. ./seeder.yaml (project directory)
  3. ~/.anomctl/seeder.yaml (user directory)
  4. Built-in defaults`,
	Example: `  anomctl seed --count 500
  anomctl seed --mode create --count 50 --invalid-ratio 0.2
  anomctl seed --interval 200ms --count 1000`,
	RunE: runSeed,
}

func runSeed(cmd *cobra.Command, args []string) error {
	seedCfgPath, _ := cmd.Flags().GetString("seed-config")
	seedCfg, err := seeder.LoadConfig(seedCfgPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("mode") {
		seedCfg.Defaults.Mode, _ = flags.GetString("mode")
	}
	if flags.Changed("count") {
		seedCfg.Defaults.Count, _ = flags.GetInt("count")
	}
	if flags.Changed("interval") {
		seedCfg.Defaults.Interval, _ = flags.GetDuration("interval")
	}
	if flags.Changed("time-spread") {
		seedCfg.Defaults.TimeSpread, _ = flags.GetDuration("time-spread")
	}
	if flags.Changed("invalid-ratio") {
		seedCfg.Defaults.InvalidRatio, _ = flags.GetFloat64("invalid-ratio")
	}
	if flags.Changed("seed") {
		seedCfg.Defaults.Seed, _ = flags.GetInt64("seed")
	}
	if err := seedCfg.Validate(); err != nil {
		return err
	}

	p := activeProfile(cmd)
	runner := seeder.NewRunner(seedCfg,
		client.NewIngestClient(p.ServerURL, p.IngestPath),
		client.NewAnomalyClient(p.ServerURL),
	)
	runner.IngestToken = p.IngestToken
	runner.WorkerToken = p.WorkerToken
	runner.Logger = log.New(cmd.ErrOrStderr(), "", log.LstdFlags)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	res, err := runner.Run(ctx)
	if err != nil {
		output.Warn("Seeding interrupted after %d events: %v", res.Sent+res.Rejected+res.Failed, err)
		return nil
	}

	output.Success("Seeded %d events in %s", res.Sent, time.Since(start).Round(time.Millisecond))
	if res.Rejected > 0 {
		output.Info("%d creates were rejected by validation", res.Rejected)
	}
	if res.Failed > 0 {
		return fmt.Errorf("%d events failed", res.Failed)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(seedCmd)

	seedCmd.Flags().String("seed-config", "", "seeder config file (default: ./seeder.yaml or ~/.anomctl/seeder.yaml)")
	seedCmd.Flags().String("mode", seeder.ModeIngest, "ingest or create")
	seedCmd.Flags().IntP("count", "n", 100, "number of events")
	seedCmd.Flags().Duration("interval", 0, "delay between events")
	seedCmd.Flags().Duration("time-spread", 24*time.Hour, "window the generated timestamps are spread over")
	seedCmd.Flags().Float64("invalid-ratio", 0, "share of invalid creates in create mode")
	seedCmd.Flags().Int64("seed", 0, "random seed (0 picks one)")
}
