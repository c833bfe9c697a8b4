package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/telhawk-systems/anomaly-stack/anomaly/pkg/model"
	"github.com/telhawk-systems/anomaly-stack/cli/pkg/output"
	"github.com/telhawk-systems/anomaly-stack/common/logging"
	"github.com/telhawk-systems/anomaly-stack/common/messaging"
	natsclient "github.com/telhawk-systems/anomaly-stack/common/messaging/nats"
	redismsg "github.com/telhawk-systems/anomaly-stack/common/messaging/redis"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow newly created anomalies",
	Long: `Subscribe to the fan-out channel and print each anomaly as it is created.

Only records committed after the subscription starts are shown.`,
	Example: `  anomctl watch
  anomctl watch --backend nats --min-severity high
  anomctl watch --count 10 --output json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		p := activeProfile(cmd)
		backend, _ := cmd.Flags().GetString("backend")
		count, _ := cmd.Flags().GetInt("count")
		minSev, _ := cmd.Flags().GetString("min-severity")

		var floor model.Severity
		if minSev != "" {
			s, err := model.ParseSeverity(minSev)
			if err != nil {
				return err
			}
			floor = s
		}

		logger := logging.NewWithWriter(cmd.ErrOrStderr(), slog.LevelWarn, "text")
		sub, err := newWatchSubscriber(cmd.Context(), backend, p.RedisURL, p.NATSURL, logger)
		if err != nil {
			return err
		}
		defer sub.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		printer := &eventPrinter{
			w:     cmd.OutOrStdout(),
			json:  jsonOutput(cmd),
			floor: floor,
			limit: count,
			done:  stop,
		}

		subscription, err := sub.Subscribe(p.Subject, printer.handle)
		if err != nil {
			return fmt.Errorf("failed to subscribe: %w", err)
		}
		defer subscription.Unsubscribe()

		if !printer.json {
			output.Info("Watching %s on %s (Ctrl-C to stop)", p.Subject, backend)
		}
		<-ctx.Done()
		return nil
	},
}

func newWatchSubscriber(ctx context.Context, backend, redisURL, natsURL string, logger *logging.Logger) (messaging.Subscriber, error) {
	switch backend {
	case "redis":
		rdb, err := dialRedis(ctx, redisURL)
		if err != nil {
			return nil, err
		}
		return &ownedRedisSubscriber{Client: redismsg.NewClient(rdb, logger.Logger), rdb: rdb}, nil
	case "nats":
		natsCfg := natsclient.DefaultConfig()
		natsCfg.URL = natsURL
		natsCfg.Name = "anomctl-watch"
		natsCfg.MaxReconnects = 0
		natsCfg.Logger = logger.Logger
		return natsclient.NewClient(natsCfg)
	default:
		return nil, fmt.Errorf("unknown backend %q (want redis or nats)", backend)
	}
}

// ownedRedisSubscriber closes the connection it was built on.
type ownedRedisSubscriber struct {
	*redismsg.Client
	rdb *redis.Client
}

func (s *ownedRedisSubscriber) Close() error {
	_ = s.Client.Close()
	return s.rdb.Close()
}

type eventPrinter struct {
	w     io.Writer
	json  bool
	floor model.Severity
	limit int
	done  func()

	mu   sync.Mutex
	seen int
}

func (p *eventPrinter) handle(_ context.Context, msg *messaging.Message) error {
	var ev model.CreatedEvent
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		return err
	}
	if ev.Type != model.EventAnomalyCreated || ev.Anomaly == nil {
		return nil
	}
	if p.floor != "" && ev.Anomaly.Severity.Less(p.floor) {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.limit > 0 && p.seen >= p.limit {
		return nil
	}
	p.seen++

	if p.json {
		if err := json.NewEncoder(p.w).Encode(ev); err != nil {
			return err
		}
	} else {
		a := ev.Anomaly
		fmt.Fprintf(p.w, "%s  #%-6d %-8s %.3f  %-15s %s\n",
			a.CreatedAt.Local().Format(time.TimeOnly), a.ID, output.Severity(string(a.Severity)), a.Score, a.SourceIP, a.Description)
	}

	if p.limit > 0 && p.seen >= p.limit && p.done != nil {
		p.done()
	}
	return nil
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().String("backend", "redis", "fan-out broker: redis or nats")
	watchCmd.Flags().IntP("count", "n", 0, "exit after this many events (0 means forever)")
	watchCmd.Flags().String("min-severity", "", "hide anomalies below this severity")
}
