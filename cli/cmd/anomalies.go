package cmd

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/anomaly-stack/anomaly/pkg/model"
	"github.com/telhawk-systems/anomaly-stack/cli/internal/client"
	"github.com/telhawk-systems/anomaly-stack/cli/pkg/output"
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Submit a validated anomaly",
	Long:  "Create an anomaly record through the worker endpoint, as the queue worker does",
	Example: `  anomctl create --source-ip 10.0.0.5 --severity high --score 0.87 \
    --description "Port scan from 10.0.0.5"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		p := activeProfile(cmd)
		token, _ := cmd.Flags().GetString("token")
		if token == "" {
			token = p.WorkerToken
		}

		req := &model.CreateAnomalyRequest{}
		req.SourceIP, _ = cmd.Flags().GetString("source-ip")
		req.DestinationIP, _ = cmd.Flags().GetString("destination-ip")
		req.Protocol, _ = cmd.Flags().GetString("protocol")
		req.Severity, _ = cmd.Flags().GetString("severity")
		req.Description, _ = cmd.Flags().GetString("description")
		req.RawPayload, _ = cmd.Flags().GetString("raw-payload")
		req.DetectedAt, _ = cmd.Flags().GetString("detected-at")
		if cmd.Flags().Changed("score") {
			score, _ := cmd.Flags().GetFloat64("score")
			req.Score = model.NewScore(score)
		}

		id, err := client.NewAnomalyClient(p.ServerURL).Create(token, req)
		if err != nil {
			var verr *client.ValidationError
			if errors.As(err, &verr) {
				for _, msg := range verr.Messages {
					output.Error("%s", msg)
				}
				return fmt.Errorf("anomaly rejected")
			}
			return fmt.Errorf("failed to create anomaly: %w", err)
		}

		if jsonOutput(cmd) {
			return output.JSONTo(cmd.OutOrStdout(), model.CreatedResponse{Status: "created", ID: id})
		}
		output.Success("Anomaly %d created", id)
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List recent anomalies",
	Long:    "List the most recent anomalies, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		p := activeProfile(cmd)
		limit, _ := cmd.Flags().GetInt("limit")

		anomalies, err := client.NewAnomalyClient(p.ServerURL).List(limit)
		if err != nil {
			return fmt.Errorf("failed to list anomalies: %w", err)
		}

		if jsonOutput(cmd) {
			return output.JSONTo(cmd.OutOrStdout(), anomalies)
		}
		if len(anomalies) == 0 {
			output.Info("No anomalies found")
			return nil
		}

		table := output.NewTable([]string{"ID", "Source IP", "Severity", "Score", "Description", "Created At"})
		for _, a := range anomalies {
			table.AddRow(anomalyRow(a))
		}
		table.RenderTo(cmd.OutOrStdout())
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show anomaly counts by severity",
	RunE: func(cmd *cobra.Command, args []string) error {
		p := activeProfile(cmd)

		stats, err := client.NewAnomalyClient(p.ServerURL).Stats()
		if err != nil {
			return fmt.Errorf("failed to load stats: %w", err)
		}

		if jsonOutput(cmd) {
			return output.JSONTo(cmd.OutOrStdout(), stats)
		}

		table := output.NewTable([]string{"Severity", "Count"})
		for _, sev := range model.Severities() {
			table.AddRow([]string{string(sev), strconv.FormatInt(stats.BySeverity[sev], 10)})
		}
		table.AddRow([]string{"total", strconv.FormatInt(stats.Total, 10)})
		table.RenderTo(cmd.OutOrStdout())
		return nil
	},
}

func anomalyRow(a model.Anomaly) []string {
	desc := a.Description
	if len(desc) > 60 {
		desc = desc[:57] + "..."
	}
	return []string{
		strconv.FormatInt(a.ID, 10),
		a.SourceIP,
		string(a.Severity),
		strconv.FormatFloat(a.Score, 'f', 3, 64),
		desc,
		a.CreatedAt.Local().Format(time.DateTime),
	}
}

func init() {
	rootCmd.AddCommand(createCmd, listCmd, statsCmd)

	createCmd.Flags().String("source-ip", "", "source IP address")
	createCmd.Flags().String("destination-ip", "", "destination IP address")
	createCmd.Flags().String("protocol", "", "network protocol")
	createCmd.Flags().String("severity", "", "low, medium, high or critical")
	createCmd.Flags().Float64("score", 0, "anomaly score in [0, 1]")
	createCmd.Flags().String("description", "", "description")
	createCmd.Flags().String("raw-payload", "", "original sensor payload")
	createCmd.Flags().String("detected-at", "", "detection time (RFC 3339)")
	createCmd.Flags().StringP("token", "t", "", "worker token (default: profile)")

	listCmd.Flags().IntP("limit", "n", 20, "number of anomalies (max 100)")
}
