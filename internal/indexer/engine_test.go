package indexer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/keyword-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/keyword-search/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/keyword-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/keyword-search/internal/searcher/scoring"
	apperrors "github.com/Adithya-Monish-Kumar-K/keyword-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/keyword-search/pkg/metrics"
)

func matrixDocs() []index.Document {
	return []index.Document{
		{ID: 1, Title: "The Matrix", Description: "A hacker learns reality is a simulation"},
		{ID: 2, Title: "The Matrix Reloaded", Description: "Neo fights more machines"},
	}
}

func newEngine(t *testing.T, opts ...Option) (*Engine, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "cache")
	return NewEngine(dir, tokenizer.NewDefault(), opts...), dir
}

func TestEngineQuerySurface(t *testing.T) {
	e, _ := newEngine(t)
	require.NoError(t, e.Build(matrixDocs()))

	tf, err := e.TermFrequency(1, "matrix")
	require.NoError(t, err)
	assert.Equal(t, 1, tf)

	df, err := e.DocumentFrequency("matrix")
	require.NoError(t, err)
	assert.Equal(t, 2, df)

	idf, err := e.IDF("neo")
	require.NoError(t, err)
	assert.Greater(t, idf, 0.0)

	tfidf, err := e.TFIDF(2, "neo")
	require.NoError(t, err)
	assert.InDelta(t, idf, tfidf, 1e-12)

	bidf, err := e.BM25IDF("matrix")
	require.NoError(t, err)
	btf, err := e.BM25TF(1, "matrix", e.Params())
	require.NoError(t, err)
	score, err := e.BM25Score(1, "matrix", e.Params())
	require.NoError(t, err)
	assert.InDelta(t, bidf*btf, score, 1e-12)

	_, err = e.TermFrequency(1, "matrix reloaded")
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)

	results, err := e.Search("matrix", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 1, results[0].DocID)
	assert.InDelta(t, score, results[0].Score, 1e-12)

	hits := e.Resolve(results)
	require.Len(t, hits, 1)
	assert.Equal(t, "The Matrix", hits[0].Title)
}

func TestEngineSearchRejectsNegativeLimit(t *testing.T) {
	e, _ := newEngine(t)
	require.NoError(t, e.Build(matrixDocs()))
	_, err := e.Search("matrix", -1)
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)

	results, err := e.Search("matrix", 0)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestEngineCustomParams(t *testing.T) {
	p := scoring.Params{K1: 2, B: 0}
	e, _ := newEngine(t, WithParams(p))
	require.NoError(t, e.Build(matrixDocs()))
	assert.Equal(t, p, e.Params())

	// With b = 0 length is ignored, so both documents tie and the lower ID
	// comes first.
	results, err := e.Search("matrix", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, results[0].Score, results[1].Score)
	assert.Equal(t, 1, results[0].DocID)
}

func TestEngineSaveLoadRoundTrip(t *testing.T) {
	e, dir := newEngine(t)
	require.NoError(t, e.Build(matrixDocs()))
	path, err := e.Save()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, segment.FileName), path)

	fresh := NewEngine(dir, tokenizer.NewDefault())
	require.NoError(t, fresh.Load())
	assert.Equal(t, e.Stats().Documents, fresh.Stats().Documents)
	assert.Equal(t, e.Stats().Terms, fresh.Stats().Terms)

	want, err := e.Search("matrix hacker", 10)
	require.NoError(t, err)
	got, err := fresh.Search("matrix hacker", 10)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	doc, ok := fresh.Document(2)
	require.True(t, ok)
	assert.Equal(t, "Neo fights more machines", doc.Description)
}

func TestEngineLoadMissingLeavesEmptyIndex(t *testing.T) {
	e, _ := newEngine(t)
	require.NoError(t, e.Build(matrixDocs()))

	err := e.Load()
	assert.ErrorIs(t, err, apperrors.ErrPersistenceUnavailable)
	assert.True(t, apperrors.IsRecoverableLoad(err))
	assert.Equal(t, 0, e.Stats().Documents)
	assert.Equal(t, 0, e.Stats().Terms)

	results, err := e.Search("matrix", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestEngineLoadCorruptLeavesEmptyIndex(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	e, dir := newEngine(t, WithMetrics(m))
	require.NoError(t, e.Build(matrixDocs()))
	path, err := e.Save()
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data[:len(data)/2], 0o644))

	fresh := NewEngine(dir, tokenizer.NewDefault(), WithMetrics(m))
	err = fresh.Load()
	assert.ErrorIs(t, err, apperrors.ErrCorruptState)
	assert.Equal(t, 0, fresh.Stats().Documents)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IndexLoadsTotal.WithLabelValues("corrupt")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.IndexDocuments))
}

func TestEngineFailedBuildKeepsPreviousIndex(t *testing.T) {
	e, _ := newEngine(t)
	require.NoError(t, e.Build(matrixDocs()))
	gen := e.Generation()

	err := e.Build([]index.Document{{ID: 3}, {ID: 3}})
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)
	assert.Equal(t, gen, e.Generation())
	assert.Equal(t, 2, e.Stats().Documents)
}

func TestEngineRebuildIsNotCumulative(t *testing.T) {
	e, _ := newEngine(t)
	require.NoError(t, e.Build(matrixDocs()))
	first := e.Stats()
	require.NoError(t, e.Build(matrixDocs()))
	second := e.Stats()

	assert.Equal(t, first.Documents, second.Documents)
	assert.Equal(t, first.Terms, second.Terms)
	assert.Equal(t, first.AverageLength, second.AverageLength)
	assert.Greater(t, second.Generation, first.Generation)

	df, err := e.DocumentFrequency("matrix")
	require.NoError(t, err)
	assert.Equal(t, 2, df)
}

func TestEngineMetrics(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	e, _ := newEngine(t, WithMetrics(m))
	require.NoError(t, e.Build(matrixDocs()))
	_, _ = e.Search("matrix", 3)
	_, _ = e.Search("zeppelin", 3)
	_, _ = e.Search("matrix", -2)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.IndexBuildsTotal.WithLabelValues("ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.IndexDocuments))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchQueriesTotal.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchQueriesTotal.WithLabelValues("zero_result")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchQueriesTotal.WithLabelValues("error")))
}

func TestEngineMatchTitles(t *testing.T) {
	e, _ := newEngine(t)
	require.NoError(t, e.Build(matrixDocs()))
	got := e.MatchTitles("reload", 4)
	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].ID)
}
