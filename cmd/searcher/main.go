// Command searcher loads the verse corpus into memory and serves ranked
// subsequence search over HTTP.
//
// Usage:
//
//	go run ./cmd/searcher [-config configs/development.yaml]
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
	"strconv"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/verse-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/verse-search/internal/analytics/collector"
	"github.com/Adithya-Monish-Kumar-K/verse-search/internal/analytics/stream"
	"github.com/Adithya-Monish-Kumar-K/verse-search/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/verse-search/internal/corpus/source"
	"github.com/Adithya-Monish-Kumar-K/verse-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/verse-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/verse-search/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/verse-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/verse-search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/verse-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/verse-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/verse-search/pkg/middleware"
	pkgredis "github.com/Adithya-Monish-Kumar-K/verse-search/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/verse-search/pkg/resilience"
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
		slog.Error("search service failed", "error", err)
		os.Exit(1)
	}
}

// run owns every resource of the service so its deferred cleanup happens on
// both clean shutdown and startup failure.
func run(cfg *config.Config) error {
	slog.Info("starting search service",
		"port", cfg.Server.Port,
		"source", cfg.Corpus.Source,
		"shards", cfg.Search.Shards,
		"workers", cfg.Search.Workers,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	if cfg.Metrics.Enabled {
		m.Serve(ctx, cfg.Metrics.Port)
	}

	arena, report, err := source.LoadFromConfig(ctx, cfg.Corpus, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("loading corpus: %w", err)
	}
	m.CorpusRecords.Set(float64(arena.Len()))
	m.CorpusSkippedRecords.Set(float64(report.Skipped))

	exec, err := executor.NewSharded(arena, cfg.Search.Shards, cfg.Search.Workers)
	if err != nil {
		return fmt.Errorf("creating sharded executor: %w", err)
	}
	shards := exec.Shards()
	m.ActiveShards.Set(float64(len(shards)))
	for _, s := range shards {
		m.ShardRecordCount.WithLabelValues(strconv.Itoa(s.ID)).Set(float64(s.Len()))
	}

	var queryCache *cache.QueryCache
	var redisClient *pkgredis.Client
	if cfg.Redis.Enabled {
		redisClient, err = pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			breaker := resilience.NewCircuitBreaker("redis", resilience.CircuitBreakerConfig{
				FailureThreshold: 5,
				ResetTimeout:     30 * time.Second,
				OnStateChange: func(name string, to resilience.State) {
					m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
				},
			})
			queryCache = cache.New(redisClient, cacheNamespace(report, arena), cfg.Redis.CacheTTL, breaker)
			queryCache.SetComputeTimeout(cfg.Search.Timeout)
			slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	var tracker analytics.Tracker
	if cfg.Kafka.Enabled {
		publisher := stream.NewPublisher(cfg.Kafka)
		defer publisher.Close()
		bc := collector.NewBatchCollector(publisher, cfg.Analytics.BatchSize, cfg.Analytics.FlushInterval)
		bc.OnDrop(func(n int) { m.AnalyticsEventsTotal.WithLabelValues("dropped").Add(float64(n)) })
		bc.Start(ctx)
		defer bc.Close()
		tracker = bc
		slog.Info("analytics collector started", "topic", cfg.Kafka.AnalyticsTopic)
	}

	checker := health.NewChecker()
	checker.Register("corpus", func(ctx context.Context) health.ComponentHealth {
		if arena.Len() == 0 {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "corpus is empty"}
		}
		return health.ComponentHealth{Status: health.StatusUp, Message: fmt.Sprintf("%d verses in %d shards", arena.Len(), len(shards))}
	})
	if redisClient != nil {
		checker.Register("redis", health.PingCheck(redisClient.Ping, false))
	}

	h := handler.New(exec, handler.Options{
		DefaultLimit: cfg.Search.DefaultLimit,
		MaxResults:   cfg.Search.MaxResults,
		Timeout:      cfg.Search.Timeout,
		Corpus: handler.CorpusInfo{
			Source:   report.Source,
			Stats:    arena.Stats(),
			Skipped:  report.Skipped,
			Shards:   len(shards),
			Workers:  exec.Workers(),
			LoadTime: report.Duration,
		},
		Cache:   queryCache,
		Tracker: tracker,
		Metrics: m,
	})

	mux := http.NewServeMux()
	h.Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	middlewares := []func(http.Handler) http.Handler{
		middleware.RequestID,
		middleware.CORS(middleware.DefaultCORSConfig(cfg.CORS.AllowedOrigin)),
		middleware.Metrics(m, append(h.Paths(), "/health/live", "/health/ready")...),
	}
	if cfg.RateLimit.Enabled {
		limiter := middleware.NewLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window)
		if err := limiter.TrustProxies(cfg.RateLimit.TrustedProxies); err != nil {
			return fmt.Errorf("configuring rate limiter: %w", err)
		}
		go limiter.RunSweeper(5*time.Minute, ctx.Done())
		middlewares = append(middlewares, middleware.RateLimit(limiter))
	}
	middlewares = append(middlewares, middleware.Timeout(cfg.Server.WriteTimeout))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      middleware.Chain(mux, middlewares...),
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

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving http: %w", err)
	}

	slog.Info("search service stopped")
	return nil
}

// cacheNamespace changes whenever the loaded corpus does, so a reload with
// different data never serves stale entries.
func cacheNamespace(report corpus.LoadReport, arena *corpus.Arena) string {
	st := arena.Stats()
	return fmt.Sprintf("%s:%d:%d", report.Source, st.Records, st.DisplayBytes)
}
