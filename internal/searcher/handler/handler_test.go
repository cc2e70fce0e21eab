package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/keyword-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/keyword-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/keyword-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/keyword-search/internal/searcher/cache"
	apperrors "github.com/Adithya-Monish-Kumar-K/keyword-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/keyword-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/keyword-search/pkg/middleware"
)

type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *memStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memStore) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memStore) FlushByPattern(context.Context, string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := int64(len(m.data))
	m.data = make(map[string][]byte)
	return n, nil
}

type stubReloader struct{ err error }

func (s stubReloader) Reload(context.Context) error { return s.err }

type fixture struct {
	engine  *indexer.Engine
	cache   *cache.QueryCache
	metrics *metrics.Metrics
	mux     *http.ServeMux
}

func newFixture(t *testing.T, withCache bool, reloader Reloader) *fixture {
	t.Helper()
	e := indexer.NewEngine(filepath.Join(t.TempDir(), "cache"), tokenizer.NewDefault())
	require.NoError(t, e.Build([]index.Document{
		{ID: 1, Title: "The Matrix", Description: "A hacker learns reality is a simulation"},
		{ID: 2, Title: "The Matrix Reloaded", Description: "Neo fights more machines"},
		{ID: 3, Title: "Alien", Description: "A crew meets a hostile creature"},
	}))
	f := &fixture{engine: e, metrics: metrics.New(prometheus.NewRegistry()), mux: http.NewServeMux()}
	if withCache {
		f.cache = cache.New(&memStore{data: make(map[string][]byte)}, time.Minute, f.metrics)
	}
	New(e, f.cache, reloader, f.metrics, Options{DefaultLimit: 5, MaxResults: 2, TitleMatches: 4}).Routes(f.mux)
	return f
}

func (f *fixture) do(t *testing.T, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func TestSearchRanksAndResolves(t *testing.T) {
	f := newFixture(t, false, nil)
	rec := f.do(t, http.MethodGet, "/api/v1/search?q=matrix&limit=1")
	require.Equal(t, http.StatusOK, rec.Code)

	res := decode[cache.Result](t, rec)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, 1, res.Hits[0].DocID)
	assert.Equal(t, "The Matrix", res.Hits[0].Title)
	assert.Greater(t, res.Hits[0].Score, 0.0)
	assert.Equal(t, 1, testutil.CollectAndCount(f.metrics.SearchLatency))
}

func TestSearchClampsLimit(t *testing.T) {
	f := newFixture(t, false, nil)
	res := decode[cache.Result](t, f.do(t, http.MethodGet, "/api/v1/search?q=matrix+alien&limit=50"))
	assert.Equal(t, 2, res.Limit)
	assert.Len(t, res.Hits, 2)
}

func TestSearchValidation(t *testing.T) {
	f := newFixture(t, false, nil)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/v1/search").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/v1/search?q=matrix&limit=-1").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/v1/search?q=matrix&limit=abc").Code)

	rec := f.do(t, http.MethodGet, "/api/v1/search?q=matrix&limit=0")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[cache.Result](t, rec).Hits)
}

func TestSearchUsesCache(t *testing.T) {
	f := newFixture(t, true, nil)
	f.do(t, http.MethodGet, "/api/v1/search?q=matrix")
	f.do(t, http.MethodGet, "/api/v1/search?q=Matrix")

	hits, misses := f.cache.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)

	stats := decode[map[string]any](t, f.do(t, http.MethodGet, "/api/v1/cache/stats"))
	assert.Equal(t, "50.0%", stats["hit_rate"])

	rec := f.do(t, http.MethodPost, "/api/v1/cache/invalidate")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1.0, decode[map[string]any](t, rec)["keys_deleted"])
}

func TestCacheDisabledEndpoints(t *testing.T) {
	f := newFixture(t, false, nil)
	assert.JSONEq(t, `{"status":"disabled"}`, f.do(t, http.MethodGet, "/api/v1/cache/stats").Body.String())
	assert.Equal(t, http.StatusServiceUnavailable, f.do(t, http.MethodPost, "/api/v1/cache/invalidate").Code)
}

func TestTitles(t *testing.T) {
	f := newFixture(t, false, nil)
	rec := f.do(t, http.MethodGet, "/api/v1/titles?q=matr")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[struct {
		Results []index.Document `json:"results"`
	}](t, rec)
	require.Len(t, body.Results, 2)
	assert.Equal(t, 1, body.Results[0].ID)
	assert.Equal(t, 2, body.Results[1].ID)
}

func TestTermStats(t *testing.T) {
	f := newFixture(t, false, nil)

	rec := f.do(t, http.MethodGet, "/api/v1/terms/matrix")
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[TermStats](t, rec)
	assert.Equal(t, 2, stats.DocumentFrequency)
	assert.Nil(t, stats.TermFrequency)

	rec = f.do(t, http.MethodGet, "/api/v1/terms/matrix?doc=1")
	require.Equal(t, http.StatusOK, rec.Code)
	stats = decode[TermStats](t, rec)
	require.NotNil(t, stats.TermFrequency)
	assert.Equal(t, 1, *stats.TermFrequency)
	require.NotNil(t, stats.BM25)
	assert.InDelta(t, stats.BM25IDF*(*stats.BM25TF), *stats.BM25, 1e-12)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/v1/terms/matrix?doc=x").Code)

	rec = f.do(t, http.MethodGet, "/api/v1/terms/matrix?doc=42")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "document 42 is not indexed", decode[map[string]string](t, rec)["error"])

	rec = f.do(t, http.MethodGet, "/api/v1/terms/the")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[map[string]string](t, rec)["error"], "exactly one token")
}

func TestReload(t *testing.T) {
	f := newFixture(t, false, stubReloader{})
	rec := f.do(t, http.MethodPost, "/api/v1/index/reload")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, decode[indexer.Stats](t, rec).Documents)

	f = newFixture(t, false, stubReloader{err: fmt.Errorf("reloading index: %w", apperrors.ErrCorruptState)})
	assert.Equal(t, http.StatusServiceUnavailable, f.do(t, http.MethodPost, "/api/v1/index/reload").Code)

	f = newFixture(t, false, nil)
	assert.Equal(t, http.StatusServiceUnavailable, f.do(t, http.MethodPost, "/api/v1/index/reload").Code)
}

func TestIndexStats(t *testing.T) {
	f := newFixture(t, false, nil)
	stats := decode[indexer.Stats](t, f.do(t, http.MethodGet, "/api/v1/index/stats"))
	assert.Equal(t, 3, stats.Documents)
	assert.Equal(t, uint64(1), stats.Generation)
}

func TestRoutesShareOneMetricsLabelPerPattern(t *testing.T) {
	f := newFixture(t, false, nil)
	h := middleware.Metrics(f.metrics, middleware.MuxRoute(f.mux))(f.mux)
	for _, target := range []string{"/api/v1/terms/matrix", "/api/v1/terms/neo", "/api/v1/terms/hacker?doc=1", "/api/v1/search?q=matrix"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		require.Equal(t, http.StatusOK, rec.Code, target)
	}

	assert.Equal(t, 3.0, testutil.ToFloat64(
		f.metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/api/v1/terms/{term}", "200"),
	))
	assert.Equal(t, 1.0, testutil.ToFloat64(
		f.metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/api/v1/search", "200"),
	))
}
