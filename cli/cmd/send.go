package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/anomaly-stack/cli/internal/client"
	"github.com/telhawk-systems/anomaly-stack/cli/pkg/output"
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send a raw payload to the ingestion gateway",
	Long:  "Post one raw sensor payload, byte for byte, to the ingestion gateway",
	Example: `  anomctl send --data '{"sensor_id":"s-1","score":0.91}'
  anomctl send --file capture.bin --content-type application/octet-stream
  cat reading.json | anomctl send --file -`,
	RunE: func(cmd *cobra.Command, args []string) error {
		p := activeProfile(cmd)
		data, _ := cmd.Flags().GetString("data")
		file, _ := cmd.Flags().GetString("file")
		contentType, _ := cmd.Flags().GetString("content-type")
		token, _ := cmd.Flags().GetString("token")
		if token == "" {
			token = p.IngestToken
		}

		payload, err := readPayload(cmd.InOrStdin(), data, file)
		if err != nil {
			return err
		}

		ingestClient := client.NewIngestClient(p.ServerURL, p.IngestPath)
		if err := ingestClient.Send(token, payload, contentType); err != nil {
			return fmt.Errorf("failed to send payload: %w", err)
		}

		output.Success("Payload accepted (%d bytes)", len(payload))
		return nil
	},
}

func readPayload(stdin io.Reader, data, file string) ([]byte, error) {
	switch {
	case data != "" && file != "":
		return nil, errors.New("use either --data or --file, not both")
	case data != "":
		return []byte(data), nil
	case file == "-":
		return io.ReadAll(stdin)
	case file != "":
		return os.ReadFile(file)
	default:
		return nil, errors.New("either --data or --file is required")
	}
}

func init() {
	rootCmd.AddCommand(sendCmd)

	sendCmd.Flags().StringP("data", "d", "", "payload to send")
	sendCmd.Flags().StringP("file", "f", "", "read the payload from a file (- for stdin)")
	sendCmd.Flags().String("content-type", "application/json", "Content-Type of the payload")
	sendCmd.Flags().StringP("token", "t", "", "ingestion token (default: profile)")
}
