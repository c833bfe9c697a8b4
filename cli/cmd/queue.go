package cmd

import (
	"context"
	"fmt"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/telhawk-systems/anomaly-stack/anomaly/pkg/model"
	"github.com/telhawk-systems/anomaly-stack/cli/pkg/output"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect the raw ingestion queue",
	Long:  "Read-only views of the Redis stream the ingestion gateway appends to",
}

var queueLenCmd = &cobra.Command{
	Use:   "len",
	Short: "Show the number of entries in the raw queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		p := activeProfile(cmd)
		rdb, err := dialRedis(cmd.Context(), p.RedisURL)
		if err != nil {
			return err
		}
		defer rdb.Close()

		n, err := rdb.XLen(cmd.Context(), p.Stream).Result()
		if err != nil {
			return fmt.Errorf("failed to read stream length: %w", err)
		}

		if jsonOutput(cmd) {
			return output.JSONTo(cmd.OutOrStdout(), map[string]interface{}{"stream": p.Stream, "length": n})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d entries\n", p.Stream, n)
		return nil
	},
}

var queuePeekCmd = &cobra.Command{
	Use:   "peek",
	Short: "Show the newest entries in the raw queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		p := activeProfile(cmd)
		count, _ := cmd.Flags().GetInt64("count")

		rdb, err := dialRedis(cmd.Context(), p.RedisURL)
		if err != nil {
			return err
		}
		defer rdb.Close()

		entries, err := peekEntries(cmd.Context(), rdb, p.Stream, count)
		if err != nil {
			return err
		}

		if jsonOutput(cmd) {
			return output.JSONTo(cmd.OutOrStdout(), entries)
		}
		if len(entries) == 0 {
			output.Info("Stream %s is empty", p.Stream)
			return nil
		}

		table := output.NewTable([]string{"Entry ID", "IP", "Received At", "Content Type", "Bytes", "Preview"})
		for _, e := range entries {
			table.AddRow([]string{e.ID, e.IP, e.ReceivedAt, e.ContentType, strconv.Itoa(e.Bytes), e.Preview})
		}
		table.RenderTo(cmd.OutOrStdout())
		return nil
	},
}

// peekedEntry is the printable form of one queue entry.
type peekedEntry struct {
	ID          string `json:"id"`
	IP          string `json:"ip"`
	ReceivedAt  string `json:"rcv_at"`
	ContentType string `json:"content_type"`
	Bytes       int    `json:"bytes"`
	Preview     string `json:"preview"`
}

func peekEntries(ctx context.Context, rdb redis.UniversalClient, stream string, count int64) ([]peekedEntry, error) {
	msgs, err := rdb.XRevRangeN(ctx, stream, "+", "-", count).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read stream: %w", err)
	}

	entries := make([]peekedEntry, 0, len(msgs))
	for _, msg := range msgs {
		env, err := model.ParseEnvelope(msg.Values)
		if err != nil {
			entries = append(entries, peekedEntry{ID: msg.ID, Preview: "unreadable: " + err.Error()})
			continue
		}
		entries = append(entries, peekedEntry{
			ID:          msg.ID,
			IP:          env.IP,
			ReceivedAt:  model.FormatReceivedAt(env.ReceivedAt),
			ContentType: env.ContentType,
			Bytes:       env.Len(),
			Preview:     preview(env.Payload(), 40),
		})
	}
	return entries, nil
}

// preview shows up to n bytes of text payloads and a marker for binary ones.
func preview(payload []byte, n int) string {
	if !utf8.Valid(payload) {
		return "<binary>"
	}
	if len(payload) <= n {
		return string(payload)
	}
	cut := payload[:n]
	for !utf8.Valid(cut) {
		cut = cut[:len(cut)-1]
	}
	return string(cut) + "..."
}

func dialRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return rdb, nil
}

func init() {
	rootCmd.AddCommand(queueCmd)
	queueCmd.AddCommand(queueLenCmd, queuePeekCmd)

	queuePeekCmd.Flags().Int64P("count", "n", 10, "number of entries")
}
