package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/anomaly-stack/cli/internal/config"
	"github.com/telhawk-systems/anomaly-stack/cli/pkg/output"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage connection profiles",
	Long:  "Store service URLs and secrets for each deployment in ~/.anomctl/config.yaml",
}

var profileSetCmd = &cobra.Command{
	Use:   "set <name>",
	Short: "Create or update a profile and make it current",
	Example: `  anomctl profile set staging --server https://anomaly.staging.example.com \
    --ingest-token $INGEST_TOKEN --worker-token $WORKER_TOKEN`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		p, err := cfg.GetProfile(name)
		if err != nil {
			p = &config.Profile{}
		}

		set := func(flag string, dst *string) {
			if cmd.Flags().Changed(flag) {
				*dst, _ = cmd.Flags().GetString(flag)
			}
		}
		set("server", &p.ServerURL)
		set("ingest-path", &p.IngestPath)
		set("ingest-token", &p.IngestToken)
		set("worker-token", &p.WorkerToken)
		set("redis-url", &p.RedisURL)
		set("nats-url", &p.NATSURL)
		set("database-url", &p.DatabaseURL)
		set("stream", &p.Stream)
		set("subject", &p.Subject)

		if err := cfg.SaveProfile(name, p); err != nil {
			return fmt.Errorf("failed to save profile: %w", err)
		}
		output.Success("Profile '%s' saved and selected", name)
		return nil
	},
}

var profileListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(cfg.Profiles) == 0 {
			output.Info("No profiles configured; built-in defaults are used")
			return nil
		}

		names := make([]string, 0, len(cfg.Profiles))
		for name := range cfg.Profiles {
			names = append(names, name)
		}
		sort.Strings(names)

		table := output.NewTable([]string{"", "Name", "Server"})
		for _, name := range names {
			marker := ""
			if name == cfg.CurrentProfile {
				marker = "*"
			}
			table.AddRow([]string{marker, name, cfg.Resolve(name).ServerURL})
		}
		table.Render()
		return nil
	},
}

var profileUseCmd = &cobra.Command{
	Use:   "use <name>",
	Short: "Select the current profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := cfg.GetProfile(args[0]); err != nil {
			return err
		}
		cfg.CurrentProfile = args[0]
		if err := cfg.Save(); err != nil {
			return err
		}
		output.Success("Using profile '%s'", args[0])
		return nil
	},
}

var profileRemoveCmd = &cobra.Command{
	Use:     "remove <name>",
	Aliases: []string{"rm"},
	Short:   "Delete a profile",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.RemoveProfile(args[0]); err != nil {
			return err
		}
		output.Success("Profile '%s' removed", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(profileCmd)
	profileCmd.AddCommand(profileSetCmd, profileListCmd, profileUseCmd, profileRemoveCmd)

	profileSetCmd.Flags().String("ingest-path", "", "ingestion path")
	profileSetCmd.Flags().String("ingest-token", "", "ingestion bearer token")
	profileSetCmd.Flags().String("worker-token", "", "worker shared secret")
	profileSetCmd.Flags().String("redis-url", "", "Redis URL")
	profileSetCmd.Flags().String("nats-url", "", "NATS URL")
	profileSetCmd.Flags().String("database-url", "", "PostgreSQL URL")
	profileSetCmd.Flags().String("stream", "", "raw queue stream name")
	profileSetCmd.Flags().String("subject", "", "fan-out subject")
}
