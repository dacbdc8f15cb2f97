// Command etl runs the weather ETL pipeline. By default it executes a single
// batch and exits non-zero if the run failed. With -daemon it runs batches on
// a schedule and serves health, status, and metrics endpoints.
//
// Usage:
//
//	etl [-config config.yaml]          # one batch, then exit
//	etl [-config config.yaml] -daemon  # scheduled batches + status server
package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/couchcryptid/weather-data-etl/internal/acquire"
	httpadapter "github.com/couchcryptid/weather-data-etl/internal/adapter/http"
	"github.com/couchcryptid/weather-data-etl/internal/alert"
	"github.com/couchcryptid/weather-data-etl/internal/config"
	"github.com/couchcryptid/weather-data-etl/internal/observability"
	"github.com/couchcryptid/weather-data-etl/internal/pipeline"
	"github.com/couchcryptid/weather-data-etl/internal/quality"
	"github.com/couchcryptid/weather-data-etl/internal/scheduler"
	"github.com/couchcryptid/weather-data-etl/internal/store"
	"github.com/couchcryptid/weather-data-etl/internal/warehouse"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "", "path to config file (default: search ./config.yaml, ./config/config.yaml)")
	daemon := flag.Bool("daemon", false, "run on a schedule with the status server")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	wh, whCloser, err := openWarehouse(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open warehouse", "driver", cfg.Warehouse.Driver, "error", err)
		os.Exit(1)
	}

	notifier, kafkaNotifier := buildNotifier(cfg, logger)

	p := pipeline.New(pipeline.Options{
		Locations:   cfg.Locations,
		Fetcher:     newFetcher(cfg, logger),
		Transformer: pipeline.NewTransform(cfg.Source.Version, logger),
		Gate:        quality.NewGate(cfg.Quality.Ranges, logger),
		Writer: store.NewWriter(store.Options{
			Root:      cfg.Storage.Root,
			Warehouse: wh,
			Logger:    logger,
		}),
		Notifier: notifier,
		Metrics:  metrics,
		Logger:   logger,
	})

	code := 0
	if *daemon {
		runDaemon(ctx, cfg, p, logger)
	} else {
		code = runOnce(ctx, cfg, p, logger)
	}

	if kafkaNotifier != nil {
		if err := kafkaNotifier.Close(); err != nil {
			logger.Error("kafka notifier close error", "error", err)
		}
	}
	if whCloser != nil {
		if err := whCloser.Close(); err != nil {
			logger.Error("warehouse close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
	os.Exit(code)
}

// runOnce executes a single batch and returns the process exit code.
func runOnce(ctx context.Context, cfg *config.Config, p *pipeline.Pipeline, logger *slog.Logger) int {
	runCtx := ctx
	if cfg.Pipeline.RunTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, cfg.Pipeline.RunTimeout)
		defer cancel()
	}

	report, runErr := p.Run(runCtx)

	// Pushgateway publication is for one-shot runs only; daemon mode exposes
	// /metrics for scraping instead.
	if cfg.Observability.PushgatewayURL != "" {
		if err := observability.PushMetrics(ctx, cfg.Observability.PushgatewayURL, cfg.Observability.PushJob); err != nil {
			logger.Warn("metrics push failed", "url", cfg.Observability.PushgatewayURL, "error", err)
		}
	}

	if runErr != nil {
		logger.Error("run failed", "error", runErr)
		return 1
	}
	logger.Info("run complete", "summary", report.Summary())
	return 0
}

// runDaemon schedules batches and serves the status endpoints until a
// termination signal arrives.
func runDaemon(ctx context.Context, cfg *config.Config, p *pipeline.Pipeline, logger *slog.Logger) {
	sched := scheduler.New(p, cfg.Pipeline.Interval, cfg.Pipeline.RunTimeout, logger)
	srv := httpadapter.NewServer(cfg.Server.Addr, p, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	if err := sched.Start(); err != nil {
		logger.Error("scheduler start error", "error", err)
		return
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	sched.Stop()
}

func newFetcher(cfg *config.Config, logger *slog.Logger) *acquire.Acquirer {
	client := acquire.NewClient(acquire.ClientOptions{
		BaseURL: cfg.Source.BaseURL,
		Params:  cfg.Source.Parameters,
		Timeout: cfg.Source.Timeout,
		Retry: acquire.RetryPolicy{
			MaxAttempts:         cfg.Source.Retry.MaxAttempts,
			InitialInterval:     cfg.Source.Retry.InitialInterval,
			RandomizationFactor: cfg.Source.Retry.RandomizationFactor,
			Multiplier:          cfg.Source.Retry.Multiplier,
			MaxInterval:         cfg.Source.Retry.MaxInterval,
			MaxElapsedTime:      cfg.Source.Retry.MaxElapsedTime,
		},
		Breaker: acquire.BreakerOptions{
			MaxRequests:      cfg.Source.Breaker.MaxRequests,
			Interval:         cfg.Source.Breaker.Interval,
			Timeout:          cfg.Source.Breaker.Timeout,
			FailureThreshold: cfg.Source.Breaker.FailureThreshold,
		},
	}, logger)
	return acquire.NewAcquirer(client, cfg.Pipeline.Concurrency, logger)
}

// openWarehouse returns the configured warehouse, or nils when the driver
// is "none".
func openWarehouse(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Warehouse, io.Closer, error) {
	switch cfg.Warehouse.Driver {
	case "sqlite":
		s, err := warehouse.OpenSQLite(cfg.Warehouse.SQLite.Path, logger)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case "postgres":
		pg, err := warehouse.OpenPostgres(ctx, cfg.Warehouse.Postgres.DSN, logger)
		if err != nil {
			return nil, nil, err
		}
		return pg, pg, nil
	default:
		return nil, nil, nil
	}
}

// buildNotifier assembles the enabled alert channels. The Kafka notifier is
// returned separately so main can close it on shutdown.
func buildNotifier(cfg *config.Config, logger *slog.Logger) (pipeline.Notifier, *alert.Kafka) {
	var channels alert.Multi
	if cfg.Alerts.Webhook.URL != "" {
		channels = append(channels, alert.NewWebhook(cfg.Alerts.Webhook.URL, cfg.Alerts.Webhook.Timeout, logger))
	}
	var kafkaNotifier *alert.Kafka
	if len(cfg.Alerts.Kafka.Brokers) > 0 {
		kafkaNotifier = alert.NewKafka(cfg.Alerts.Kafka.Brokers, cfg.Alerts.Kafka.Topic, logger)
		channels = append(channels, kafkaNotifier)
	}
	if len(channels) == 0 {
		return nil, nil
	}
	return channels, kafkaNotifier
}
