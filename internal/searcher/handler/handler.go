// Package handler exposes the search engine over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/verse-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/verse-search/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/verse-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/verse-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/verse-search/internal/searcher/parser"
	apperrors "github.com/Adithya-Monish-Kumar-K/verse-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/verse-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/verse-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/verse-search/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/verse-search/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/verse-search/pkg/tracing"
)

type SearchExecutor interface {
	Execute(ctx context.Context, plan *parser.QueryPlan, limit int) (*executor.SearchResult, error)
}

// CorpusInfo describes the loaded corpus for the stats endpoint.
type CorpusInfo struct {
	Source   string        `json:"source"`
	Stats    corpus.Stats  `json:"stats"`
	Skipped  int           `json:"skipped"`
	Shards   int           `json:"shards"`
	Workers  int           `json:"workers"`
	LoadTime time.Duration `json:"load_time_ns"`
}

// Options carries the handler's limits and optional collaborators. Nil
// Cache, Tracker and Metrics disable the corresponding feature.
type Options struct {
	DefaultLimit int
	MaxResults   int
	Timeout      time.Duration
	Corpus       CorpusInfo
	Cache        *cache.QueryCache
	Tracker      analytics.Tracker
	Metrics      *metrics.Metrics
}

type Handler struct {
	executor SearchExecutor
	opts     Options
	logger   *slog.Logger
}

func New(exec SearchExecutor, opts Options) *Handler {
	if opts.DefaultLimit < 1 {
		opts.DefaultLimit = 10
	}
	if opts.MaxResults < opts.DefaultLimit {
		opts.MaxResults = opts.DefaultLimit
	}
	return &Handler{
		executor: exec,
		opts:     opts,
		logger:   slog.Default().With("component", "search-handler"),
	}
}

type route struct {
	method string
	path   string
	fn     http.HandlerFunc
}

func (h *Handler) routes() []route {
	return []route{
		{http.MethodGet, "/search", h.Search},
		{http.MethodGet, "/api/v1/corpus", h.CorpusStats},
		{http.MethodGet, "/api/v1/cache/stats", h.CacheStats},
		{http.MethodPost, "/api/v1/cache/invalidate", h.CacheInvalidate},
	}
}

// Register mounts the handler's routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	for _, rt := range h.routes() {
		mux.HandleFunc(rt.method+" "+rt.path, rt.fn)
	}
}

// Paths lists the URL paths Register mounts.
func (h *Handler) Paths() []string {
	rts := h.routes()
	paths := make([]string, len(rts))
	for i, rt := range rts {
		paths[i] = rt.path
	}
	return paths
}

type searchOutcome struct {
	hits     []executor.Hit
	cacheHit bool
}

// Search answers GET /search?query=...&limit=n with a JSON array of hits.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	params := r.URL.Query()
	if !params.Has("query") {
		h.writeError(w, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "query parameter 'query' is required"))
		return
	}
	limit, err := h.parseLimit(params.Get("limit"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	plan := parser.Parse(strings.TrimSpace(params.Get("query")))
	ctx, span := tracing.StartSpan(ctx, "search", middleware.GetRequestID(ctx))
	span.SetAttr("query", plan.RawQuery)
	span.SetAttr("limit", limit)

	out, err := resilience.CallWithTimeout(ctx, h.opts.Timeout, "search", func(ctx context.Context) (searchOutcome, error) {
		return h.run(ctx, plan, limit)
	})
	span.End()
	span.Log(ctx, log)
	elapsed := time.Since(start)

	if err != nil {
		log.Error("search failed", "query", plan.RawQuery, "error", err)
		h.observe("error", "none", 0, elapsed)
		h.writeError(w, err)
		return
	}

	cacheStatus, resultType := "miss", "miss"
	if out.cacheHit {
		cacheStatus, resultType = "hit", "hit"
	}
	if len(out.hits) == 0 {
		resultType = "zero_result"
	}
	h.observe(resultType, cacheStatus, len(out.hits), elapsed)

	log.Info("search completed",
		"query", plan.RawQuery,
		"limit", limit,
		"returned", len(out.hits),
		"cache_hit", out.cacheHit,
		"latency_ms", elapsed.Milliseconds(),
	)
	if h.opts.Tracker != nil {
		h.opts.Tracker.TrackSearch(analytics.SearchEvent{
			Type:       analytics.TypeFor(len(out.hits), out.cacheHit),
			Query:      plan.RawQuery,
			Normalized: plan.Key(),
			Limit:      limit,
			Returned:   len(out.hits),
			Scanned:    h.opts.Corpus.Stats.Records,
			Shards:     h.opts.Corpus.Shards,
			LatencyMs:  elapsed.Milliseconds(),
			CacheHit:   out.cacheHit,
			Timestamp:  time.Now().UTC(),
			RequestID:  middleware.GetRequestID(ctx),
		})
	}

	h.writeJSON(w, http.StatusOK, out.hits)
}

func (h *Handler) run(ctx context.Context, plan *parser.QueryPlan, limit int) (searchOutcome, error) {
	compute := func(ctx context.Context) ([]executor.Hit, error) {
		result, err := h.executor.Execute(ctx, plan, limit)
		if err != nil {
			return nil, err
		}
		return executor.Hits(result.Matches), nil
	}
	if h.opts.Cache == nil {
		hits, err := compute(ctx)
		return searchOutcome{hits: hits}, err
	}
	hits, hit, err := h.opts.Cache.GetOrCompute(ctx, plan, limit, compute)
	if m := h.opts.Metrics; m != nil && err == nil {
		if hit {
			m.CacheHitsTotal.Inc()
		} else {
			m.CacheMissesTotal.Inc()
		}
	}
	return searchOutcome{hits: hits, cacheHit: hit}, err
}

func (h *Handler) parseLimit(raw string) (int, error) {
	if raw == "" {
		return h.opts.DefaultLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "limit must be a positive integer")
	}
	if n > h.opts.MaxResults {
		n = h.opts.MaxResults
	}
	return n, nil
}

func (h *Handler) observe(resultType, cacheStatus string, returned int, elapsed time.Duration) {
	m := h.opts.Metrics
	if m == nil {
		return
	}
	m.SearchQueriesTotal.WithLabelValues(resultType).Inc()
	m.SearchLatency.WithLabelValues(cacheStatus).Observe(elapsed.Seconds())
	if resultType != "error" {
		m.SearchResultsCount.Observe(float64(returned))
	}
}

func (h *Handler) CorpusStats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.opts.Corpus)
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.opts.Cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.opts.Cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.opts.Cache == nil {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "caching is disabled"})
		return
	}

	deleted, err := h.opts.Cache.Invalidate(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "cache invalidation failed"})
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

// writeError maps err to a status via its sentinel; internal details are
// not exposed for 5xx responses.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatusCode(err)
	msg := err.Error()
	var appErr *apperrors.AppError
	if apperrors.As(err, &appErr) {
		msg = appErr.Message
	} else if status >= http.StatusInternalServerError {
		msg = http.StatusText(status)
	}
	h.writeJSON(w, status, map[string]string{"error": msg})
}
