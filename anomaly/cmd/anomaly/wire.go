package main

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/redis/go-redis/v9"

	"github.com/telhawk-systems/anomaly-stack/anomaly/internal/config"
	"github.com/telhawk-systems/anomaly-stack/anomaly/internal/queue"
	"github.com/telhawk-systems/anomaly-stack/common/logging"
	"github.com/telhawk-systems/anomaly-stack/common/messaging"
	natsclient "github.com/telhawk-systems/anomaly-stack/common/messaging/nats"
	redismsg "github.com/telhawk-systems/anomaly-stack/common/messaging/redis"
)

// natsConnection is the single NATS connection shared by the JetStream queue
// and the NATS fan-out backend.
type natsConnection struct {
	*natsclient.JetStreamClient
}

func connectNATS(cfg *config.Config, logger *logging.Logger) (*natsConnection, error) {
	natsCfg := natsclient.DefaultConfig()
	natsCfg.URL = cfg.NATS.URL
	natsCfg.MaxReconnects = cfg.NATS.MaxReconnects
	natsCfg.ReconnectWait = cfg.NATS.ReconnectWait
	natsCfg.Logger = logger.Component("nats").Logger

	js, err := natsclient.NewJetStreamClient(natsCfg)
	if err != nil {
		return nil, err
	}
	return &natsConnection{JetStreamClient: js}, nil
}

func newQueue(ctx context.Context, cfg *config.Config, rdb *redis.Client, nc *natsConnection) (queue.Queue, error) {
	switch cfg.Queue.Backend {
	case config.BackendJetStream:
		stream, subject := queue.JetStreamNames(cfg.Queue.Stream)
		if _, err := nc.EnsureBoundedStream(ctx, natsclient.BoundedStreamConfig{
			Name:    stream,
			Subject: subject,
			MaxMsgs: cfg.Queue.MaxLen,
			Storage: jetstream.FileStorage,
		}); err != nil {
			return nil, err
		}
		return queue.NewJetStreamQueue(nc.JetStreamClient, stream, subject), nil
	case config.BackendRedis:
		return queue.NewRedisStream(rdb, cfg.Queue.Stream, cfg.Queue.MaxLen), nil
	default:
		return nil, fmt.Errorf("unknown queue backend %q", cfg.Queue.Backend)
	}
}

func newFanout(cfg *config.Config, rdb *redis.Client, nc *natsConnection, logger *logging.Logger) messaging.Client {
	if cfg.Fanout.Backend == config.BackendNATS {
		return nc.Client
	}
	return redismsg.NewClient(rdb, logger.Component("fanout").Logger)
}
