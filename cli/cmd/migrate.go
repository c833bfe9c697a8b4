package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/anomaly-stack/cli/pkg/output"
	"github.com/telhawk-systems/anomaly-stack/common/database"
)

var migrateCmd = &cobra.Command{
	Use:       "migrate <up|down>",
	Short:     "Apply or roll back the anomaly schema",
	Long:      "Run the SQL migrations against the profile's PostgreSQL database",
	Example:   "  anomctl migrate up --path anomaly/migrations",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{string(database.Up), string(database.Down)},
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := database.ParseDirection(args[0])
		if err != nil {
			return err
		}

		p := activeProfile(cmd)
		dbURL, _ := cmd.Flags().GetString("database-url")
		if dbURL == "" {
			dbURL = p.DatabaseURL
		}
		path, _ := cmd.Flags().GetString("path")

		if err := database.Migrate(database.SourceURL(path), dbURL, dir); err != nil {
			return fmt.Errorf("migrate %s failed: %w", dir, err)
		}

		output.Success("Migrations applied (%s)", dir)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)

	migrateCmd.Flags().String("path", "anomaly/migrations", "migrations directory")
	migrateCmd.Flags().String("database-url", "", "PostgreSQL URL (default: profile)")
}
