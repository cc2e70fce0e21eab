// Package handler exposes the index over HTTP: ranked search, the legacy
// title lookup, per-term scoring statistics, cache control and reload.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/keyword-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/keyword-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/keyword-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/keyword-search/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/keyword-search/internal/searcher/scoring"
	apperrors "github.com/Adithya-Monish-Kumar-K/keyword-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/keyword-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/keyword-search/pkg/metrics"
)

// Engine is the query surface the handler serves. *indexer.Engine
// satisfies it.
type Engine interface {
	Search(query string, limit int) ([]ranker.ScoredDoc, error)
	Resolve(results []ranker.ScoredDoc) []indexer.Hit
	MatchTitles(query string, max int) []index.Document
	Generation() uint64
	Stats() indexer.Stats
	Params() scoring.Params
	Document(docID int) (index.Document, bool)

	TermFrequency(docID int, term string) (int, error)
	DocumentFrequency(term string) (int, error)
	IDF(term string) (float64, error)
	TFIDF(docID int, term string) (float64, error)
	BM25IDF(term string) (float64, error)
	BM25TF(docID int, term string, p scoring.Params) (float64, error)
	BM25Score(docID int, term string, p scoring.Params) (float64, error)
}

// Reloader reloads the persisted index.
type Reloader interface {
	Reload(ctx context.Context) error
}

// Options configure limits. Zero values fall back to the config defaults.
type Options struct {
	DefaultLimit int
	MaxResults   int
	TitleMatches int
}

type Handler struct {
	engine   Engine
	cache    *cache.QueryCache
	reloader Reloader
	metrics  *metrics.Metrics
	opts     Options
	logger   *slog.Logger
}

// New builds a Handler. queryCache, reloader and m may be nil.
func New(engine Engine, queryCache *cache.QueryCache, reloader Reloader, m *metrics.Metrics, opts Options) *Handler {
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = 5
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = 100
	}
	if opts.TitleMatches <= 0 {
		opts.TitleMatches = 4
	}
	return &Handler{
		engine:   engine,
		cache:    queryCache,
		reloader: reloader,
		metrics:  m,
		opts:     opts,
		logger:   slog.Default().With("component", "search-handler"),
	}
}

// Routes registers every endpoint on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/titles", h.Titles)
	mux.HandleFunc("GET /api/v1/terms/{term}", h.Term)
	mux.HandleFunc("GET /api/v1/index/stats", h.IndexStats)
	mux.HandleFunc("POST /api/v1/index/reload", h.Reload)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	query := r.URL.Query().Get("q")
	if query == "" {
		h.writeError(w, apperrors.InvalidArgumentf("query parameter 'q' is required"))
		return
	}
	limit, err := h.limit(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	gen := h.engine.Generation()
	compute := func() (*cache.Result, error) {
		results, err := h.engine.Search(query, limit)
		if err != nil {
			return nil, err
		}
		return &cache.Result{
			Query:      query,
			Limit:      limit,
			Generation: gen,
			Hits:       h.engine.Resolve(results),
		}, nil
	}

	var (
		result   *cache.Result
		cacheHit bool
	)
	if h.cache != nil {
		result, cacheHit, err = h.cache.GetOrCompute(ctx, gen, query, limit, compute)
	} else {
		result, err = compute()
	}
	if err != nil {
		log.Error("search failed", "query", query, "error", err)
		h.writeError(w, err)
		return
	}

	elapsed := time.Since(start)
	if h.metrics != nil {
		status := "miss"
		switch {
		case h.cache == nil:
			status = "disabled"
		case cacheHit:
			status = "hit"
		}
		h.metrics.SearchLatency.WithLabelValues(status).Observe(elapsed.Seconds())
	}
	log.Info("search completed",
		"query", query,
		"limit", limit,
		"returned", len(result.Hits),
		"cache_hit", cacheHit,
		"latency_ms", elapsed.Milliseconds(),
	)
	h.writeJSON(w, http.StatusOK, result)
}

// Titles serves the unranked title-substring lookup.
func (h *Handler) Titles(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		h.writeError(w, apperrors.InvalidArgumentf("query parameter 'q' is required"))
		return
	}
	docs := h.engine.MatchTitles(query, h.opts.TitleMatches)
	h.writeJSON(w, http.StatusOK, map[string]any{
		"query":   query,
		"results": docs,
	})
}

// TermStats is the response of GET /api/v1/terms/{term}. The per-document
// fields are set only when ?doc= is given.
type TermStats struct {
	Term              string   `json:"term"`
	DocumentFrequency int      `json:"df"`
	IDF               float64  `json:"idf"`
	BM25IDF           float64  `json:"bm25_idf"`
	DocID             *int     `json:"doc_id,omitempty"`
	TermFrequency     *int     `json:"tf,omitempty"`
	TFIDF             *float64 `json:"tfidf,omitempty"`
	BM25TF            *float64 `json:"bm25_tf,omitempty"`
	BM25              *float64 `json:"bm25,omitempty"`
}

func (h *Handler) Term(w http.ResponseWriter, r *http.Request) {
	term := r.PathValue("term")
	stats, err := h.termStats(term, r.URL.Query().Get("doc"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) termStats(term, docParam string) (*TermStats, error) {
	df, err := h.engine.DocumentFrequency(term)
	if err != nil {
		return nil, err
	}
	idf, err := h.engine.IDF(term)
	if err != nil {
		return nil, err
	}
	bidf, err := h.engine.BM25IDF(term)
	if err != nil {
		return nil, err
	}
	stats := &TermStats{Term: term, DocumentFrequency: df, IDF: idf, BM25IDF: bidf}
	if docParam == "" {
		return stats, nil
	}

	docID, err := strconv.Atoi(docParam)
	if err != nil {
		return nil, apperrors.InvalidArgumentf("doc must be an integer, got %q", docParam)
	}
	if _, ok := h.engine.Document(docID); !ok {
		return nil, apperrors.Newf(apperrors.ErrDocumentNotFound, http.StatusNotFound, "document %d is not indexed", docID)
	}
	tf, err := h.engine.TermFrequency(docID, term)
	if err != nil {
		return nil, err
	}
	tfidf, err := h.engine.TFIDF(docID, term)
	if err != nil {
		return nil, err
	}
	p := h.engine.Params()
	btf, err := h.engine.BM25TF(docID, term, p)
	if err != nil {
		return nil, err
	}
	bm25, err := h.engine.BM25Score(docID, term, p)
	if err != nil {
		return nil, err
	}
	stats.DocID = &docID
	stats.TermFrequency = &tf
	stats.TFIDF = &tfidf
	stats.BM25TF = &btf
	stats.BM25 = &bm25
	return stats, nil
}

func (h *Handler) IndexStats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.engine.Stats())
}

func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	if h.reloader == nil {
		h.writeError(w, apperrors.New(apperrors.ErrInternal, http.StatusServiceUnavailable, "reload is not configured"))
		return
	}
	if err := h.reloader.Reload(r.Context()); err != nil {
		logger.FromContext(r.Context()).Warn("index reload failed", "error", err)
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, h.engine.Stats())
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	hits, misses := h.cache.Stats()
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
	if h.cache == nil {
		h.writeError(w, apperrors.New(apperrors.ErrInternal, http.StatusServiceUnavailable, "caching is disabled"))
		return
	}
	deleted, err := h.cache.Invalidate(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}

// limit parses ?limit=. Absent means the default; larger than MaxResults is
// clamped.
func (h *Handler) limit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return h.opts.DefaultLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apperrors.InvalidArgumentf("limit must be a non-negative integer, got %q", raw)
	}
	return min(n, h.opts.MaxResults), nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	msg := err.Error()
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		msg = appErr.Message
	}
	h.writeJSON(w, apperrors.HTTPStatusCode(err), map[string]string{"error": msg})
}
