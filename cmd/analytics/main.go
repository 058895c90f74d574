// Command analytics starts the standalone search analytics service.
//
// It consumes search events from the Kafka analytics stream, aggregates them in memory (totals,
// latency percentiles, cache hit rate, zero-result and top queries), and
// exposes an HTTP API at GET /api/v1/analytics for dashboards. When a
// Postgres database is reachable the aggregate is snapshotted periodically.
//
// Usage:
//
//	go run ./cmd/analytics [-config configs/development.yaml]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/verse-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/verse-search/internal/analytics/aggregator"
	"github.com/Adithya-Monish-Kumar-K/verse-search/internal/analytics/stream"
	"github.com/Adithya-Monish-Kumar-K/verse-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/verse-search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/verse-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/verse-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/verse-search/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/verse-search/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	if err := run(cfg); err != nil {
		slog.Error("analytics service failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	slog.Info("starting analytics service", "port", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	if cfg.Metrics.Enabled {
		m.Serve(ctx, cfg.Metrics.Port)
	}

	agg := analytics.NewAggregator()
	sub := stream.NewSubscriber(cfg.Kafka)
	defer sub.Close()
	sub.OnSkip(func(error) { m.AnalyticsEventsTotal.WithLabelValues("skipped").Inc() })
	go func() {
		err := sub.Run(ctx, func(ctx context.Context, event analytics.SearchEvent) error {
			if err := agg.HandleSearchEvent(ctx, event); err != nil {
				return err
			}
			m.AnalyticsEventsTotal.WithLabelValues("consumed").Inc()
			return nil
		})
		if err != nil {
			slog.Error("analytics subscriber error", "error", err)
		}
	}()
	slog.Info("analytics aggregator started", "topic", cfg.Kafka.AnalyticsTopic)

	checker := health.NewChecker()
	checker.Register("aggregator", func(ctx context.Context) health.ComponentHealth {
		return health.ComponentHealth{Status: health.StatusUp, Message: fmt.Sprintf("%d searches aggregated", agg.Stats().TotalSearches)}
	})

	var snapshots analytics.SnapshotLister
	db, err := postgres.New(ctx, cfg.Postgres)
	if err != nil {
		slog.Warn("postgres unavailable, snapshots disabled", "error", err)
	} else {
		defer db.Close()
		store := aggregator.NewStore(db)
		if err := store.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("preparing snapshot table: %w", err)
		}
		store.StartPeriodicSave(ctx, agg, cfg.Analytics.SnapshotInterval)
		snapshots = store
		checker.Register("postgres", health.PingCheck(db.Ping, false))
	}

	h := analytics.NewHandler(agg, snapshots)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/analytics", h.Stats)
	mux.HandleFunc("GET /api/v1/analytics/snapshots", h.Snapshots)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	server := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: middleware.Chain(mux,
			middleware.RequestID,
			middleware.CORS(middleware.DefaultCORSConfig(cfg.CORS.AllowedOrigin)),
			middleware.Metrics(m, "/api/v1/analytics", "/api/v1/analytics/snapshots", "/health/live", "/health/ready"),
		),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("analytics service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving http: %w", err)
	}

	slog.Info("analytics service stopped")
	return nil
}
