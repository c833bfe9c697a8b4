package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/telhawk-systems/anomaly-stack/anomaly/internal/broadcast"
	"github.com/telhawk-systems/anomaly-stack/anomaly/internal/config"
	"github.com/telhawk-systems/anomaly-stack/anomaly/internal/handlers"
	"github.com/telhawk-systems/anomaly-stack/anomaly/internal/redisclient"
	"github.com/telhawk-systems/anomaly-stack/anomaly/internal/repository"
	"github.com/telhawk-systems/anomaly-stack/anomaly/internal/server"
	"github.com/telhawk-systems/anomaly-stack/anomaly/internal/service"
	"github.com/telhawk-systems/anomaly-stack/anomaly/internal/validator"
	"github.com/telhawk-systems/anomaly-stack/common/database"
	"github.com/telhawk-systems/anomaly-stack/common/logging"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize structured logging
	logger := logging.New(
		logging.ParseLevel(cfg.Logging.Level),
		cfg.Logging.Format,
	).With(logging.Service("anomaly"))
	logging.SetDefault(logger)

	slog.Info("Starting anomaly service",
		slog.Int("port", cfg.Server.Port),
		slog.String("ingestion_path", cfg.Ingestion.Path),
		slog.String("queue_backend", cfg.Queue.Backend),
		slog.String("fanout_backend", cfg.Fanout.Backend),
		slog.String("log_level", cfg.Logging.Level),
	)
	if *configPath != "" {
		slog.Info("Loaded configuration", slog.String("config_path", *configPath))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Shared Redis pool: raw queue and, by default, the fan-out channel
	rdb, err := redisclient.New(ctx, cfg.Redis)
	if err != nil {
		fatal("Failed to connect to Redis", err)
	}
	defer rdb.Close()
	slog.Info("Connected to Redis",
		slog.Int("pool_size", cfg.Redis.PoolSize),
		slog.Duration("pool_timeout", cfg.Redis.PoolTimeout),
	)

	var nc *natsConnection
	if cfg.UsesNATS() {
		nc, err = connectNATS(cfg, logger)
		if err != nil {
			fatal("Failed to connect to NATS", err)
		}
		defer nc.Close()
	}

	rawQueue, err := newQueue(ctx, cfg, rdb, nc)
	if err != nil {
		fatal("Failed to initialize raw queue", err)
	}
	slog.Info("Raw queue ready", logging.Stream(rawQueue.Name()), slog.Int64("max_len", cfg.Queue.MaxLen))

	// Persistent store
	if cfg.Database.Migrate {
		if err := database.Migrate(database.SourceURL(cfg.Database.MigrationsPath), cfg.Database.URL, database.Up); err != nil {
			fatal("Failed to run migrations", err)
		}
		slog.Info("Database migrations applied", slog.String("path", cfg.Database.MigrationsPath))
	}

	repo, err := repository.NewPostgresRepository(ctx, cfg.Database)
	if err != nil {
		fatal("Failed to connect to PostgreSQL", err)
	}
	defer repo.Close()

	// Fan-out channel
	fanout := newFanout(cfg, rdb, nc, logger)
	defer fanout.Close()

	hub := broadcast.NewHub(fanout, cfg.Fanout.Subject, cfg.Fanout.ObserverBuffer, logger)
	if err := hub.Start(); err != nil {
		fatal("Failed to subscribe to fan-out channel", err)
	}
	defer hub.Stop()

	publisher := broadcast.NewPublisher(fanout, cfg.Fanout.Subject, cfg.Fanout.PublishTimeout)
	anomalyService := service.NewAnomalyService(repo, validator.Default(), publisher, cfg.Database.AcquireTimeout, logger)

	// Initialize HTTP handlers
	router := server.NewRouter(server.Handlers{
		Gateway: handlers.NewIngestGateway(handlers.IngestGatewayConfig{
			Path:              cfg.Ingestion.Path,
			Token:             cfg.Ingestion.Token,
			MaxBodySize:       cfg.Ingestion.MaxBodySize,
			TrustProxyHeaders: cfg.Server.TrustProxyHeaders,
		}, rawQueue, logger),
		Anomalies: handlers.NewAnomalyHandler(handlers.AnomalyHandlerConfig{
			WorkerToken:       cfg.Worker.Token,
			MaxBodySize:       cfg.Ingestion.MaxBodySize,
			TrustProxyHeaders: cfg.Server.TrustProxyHeaders,
		}, anomalyService, logger),
		Stream: handlers.NewStreamHandler(hub, logger),
		Health: handlers.NewHealthHandler(map[string]handlers.Checker{
			"redis":    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
			"queue":    func(ctx context.Context) error { _, err := rawQueue.Len(ctx); return err },
			"postgres": repo.Ping,
			"fanout":   fanout.Ping,
		}),
		Logger: logger,
	})

	// Create server with config values
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		slog.Info("Anomaly service listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fatal("Server error", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.WriteTimeout)
	defer shutdownCancel()

	// Close SSE observers first so Shutdown is not held open by them.
	if err := hub.Stop(); err != nil {
		slog.Warn("Failed to stop broadcast hub", logging.Error(err))
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", logging.Error(err))
	}

	slog.Info("Server stopped")
}

func fatal(msg string, err error) {
	slog.Error(msg, logging.Error(err))
	os.Exit(1)
}
