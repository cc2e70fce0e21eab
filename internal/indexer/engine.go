package indexer

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/keyword-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/keyword-search/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/keyword-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/keyword-search/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/keyword-search/internal/searcher/scoring"
	apperrors "github.com/Adithya-Monish-Kumar-K/keyword-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/keyword-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/keyword-search/pkg/metrics"
)

// Engine owns one index: the tokenizer that normalises it, the live Store
// and the segment it is persisted to. Build and Load swap in a complete new
// Store, so readers never observe a half-built index.
type Engine struct {
	mu         sync.RWMutex
	store      *index.Store
	generation uint64
	builtAt    time.Time

	tok     *tokenizer.Tokenizer
	writer  *segment.Writer
	dataDir string
	params  scoring.Params
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// Option customises an Engine.
type Option func(*Engine)

// WithParams sets the BM25 tunables used by Search.
func WithParams(p scoring.Params) Option {
	return func(e *Engine) { e.params = p }
}

// WithMetrics makes the engine record build, load and search metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine creates an Engine with an empty index persisted under dataDir.
func NewEngine(dataDir string, tok *tokenizer.Tokenizer, opts ...Option) *Engine {
	e := &Engine{
		store:   index.NewStore(),
		tok:     tok,
		writer:  segment.NewWriter(dataDir),
		dataDir: dataDir,
		params:  scoring.DefaultParams(),
		logger:  logger.WithComponent("indexer"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Stats summarises the live index.
type Stats struct {
	Documents     int       `json:"documents"`
	Terms         int       `json:"terms"`
	AverageLength float64   `json:"average_length"`
	Generation    uint64    `json:"generation"`
	BuiltAt       time.Time `json:"built_at"`
}

// Build indexes docs into a fresh store and makes it live. On error the
// previous index is kept.
func (e *Engine) Build(docs []index.Document) error {
	start := time.Now()
	store := index.NewStore()
	if err := store.Build(e.tok, docs); err != nil {
		e.observeBuild("error", 0)
		return fmt.Errorf("building index: %w", err)
	}
	e.swap(store)
	e.observeBuild("ok", time.Since(start))
	e.logger.Info("index built",
		"documents", store.DocumentCount(),
		"terms", store.TermCount(),
		"tokens", store.TotalLength(),
		"duration", time.Since(start),
	)
	return nil
}

// Save persists the live index to the engine's data directory and returns
// the segment path.
func (e *Engine) Save() (string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	path, err := e.writer.Write(e.store.Snapshot())
	if err != nil {
		return "", fmt.Errorf("saving index: %w", err)
	}
	e.logger.Info("index saved",
		"path", path,
		"documents", e.store.DocumentCount(),
		"terms", e.store.TermCount(),
	)
	return path, nil
}

// Load replaces the live index with the persisted one. If the segment is
// missing or corrupt the engine is reset to an empty index and the error is
// returned; callers should treat that as "needs rebuild".
func (e *Engine) Load() error {
	snap, header, err := segment.Read(e.dataDir)
	if err == nil {
		var store *index.Store
		store, err = index.FromSnapshot(snap)
		if err == nil {
			e.swap(store)
			e.observeLoad("ok")
			e.logger.Info("index loaded",
				"path", e.writer.Path(),
				"documents", store.DocumentCount(),
				"terms", store.TermCount(),
				"created_at", time.Unix(header.CreatedAt, 0).UTC(),
			)
			return nil
		}
	}

	e.swap(index.NewStore())
	status := "corrupt"
	if errors.Is(err, apperrors.ErrPersistenceUnavailable) {
		status = "unavailable"
	}
	e.observeLoad(status)
	e.logger.Warn("persisted index not loaded, starting empty",
		"path", e.writer.Path(),
		"status", status,
		"error", err,
	)
	return fmt.Errorf("loading index: %w", err)
}

// Search ranks documents for query with BM25 and returns at most limit of
// them.
func (e *Engine) Search(query string, limit int) ([]ranker.ScoredDoc, error) {
	if limit < 0 {
		e.observeSearch("error", 0)
		return nil, apperrors.InvalidArgumentf("limit must be non-negative, got %d", limit)
	}
	e.mu.RLock()
	results := ranker.Search(e.store, e.tok, query, limit, e.params)
	e.mu.RUnlock()

	resultType := "hit"
	if len(results) == 0 {
		resultType = "zero_result"
	}
	e.observeSearch(resultType, len(results))
	e.logger.Debug("search executed",
		"query", query,
		"limit", limit,
		"results", len(results),
	)
	return results, nil
}

// Hit is a ranked result resolved against the document map.
type Hit struct {
	ranker.ScoredDoc
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// Resolve attaches document data to ranked results. Results whose document
// is no longer indexed are dropped.
func (e *Engine) Resolve(results []ranker.ScoredDoc) []Hit {
	e.mu.RLock()
	defer e.mu.RUnlock()
	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		doc, ok := e.store.Document(r.DocID)
		if !ok {
			continue
		}
		hits = append(hits, Hit{ScoredDoc: r, Title: doc.Title, Description: doc.Description})
	}
	return hits
}

// MatchTitles runs the unranked title-substring lookup.
func (e *Engine) MatchTitles(query string, max int) []index.Document {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return ranker.MatchTitles(e.store, query, max)
}

// Document looks up an indexed document by ID.
func (e *Engine) Document(docID int) (index.Document, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store.Document(docID)
}

func (e *Engine) TermFrequency(docID int, term string) (int, error) {
	return e.scorer().TermFrequency(docID, term)
}

func (e *Engine) DocumentFrequency(term string) (int, error) {
	return e.scorer().DocumentFrequency(term)
}

func (e *Engine) IDF(term string) (float64, error) {
	return e.scorer().IDF(term)
}

func (e *Engine) TFIDF(docID int, term string) (float64, error) {
	return e.scorer().TFIDF(docID, term)
}

func (e *Engine) BM25IDF(term string) (float64, error) {
	return e.scorer().BM25IDF(term)
}

// BM25TF uses p as given; pass Params() for the engine's configured values.
func (e *Engine) BM25TF(docID int, term string, p scoring.Params) (float64, error) {
	return e.scorer().BM25TF(docID, term, p)
}

func (e *Engine) BM25Score(docID int, term string, p scoring.Params) (float64, error) {
	return e.scorer().BM25Score(docID, term, p)
}

// Params returns the BM25 tunables Search uses.
func (e *Engine) Params() scoring.Params {
	return e.params
}

// Generation increases every time a new index becomes live.
func (e *Engine) Generation() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.generation
}

func (e *Engine) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Stats{
		Documents:     e.store.DocumentCount(),
		Terms:         e.store.TermCount(),
		AverageLength: scoring.AverageDocumentLength(e.store),
		Generation:    e.generation,
		BuiltAt:       e.builtAt,
	}
}

// scorer returns a Scorer over the store that is live right now. The store
// is never mutated after it becomes live, so the Scorer is safe to use
// without holding the lock.
func (e *Engine) scorer() *scoring.Scorer {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return scoring.New(e.store, e.tok)
}

func (e *Engine) swap(store *index.Store) {
	e.mu.Lock()
	e.store = store
	e.generation++
	e.builtAt = time.Now().UTC()
	e.mu.Unlock()
	if e.metrics != nil {
		e.metrics.IndexDocuments.Set(float64(store.DocumentCount()))
		e.metrics.IndexTerms.Set(float64(store.TermCount()))
	}
}

func (e *Engine) observeBuild(status string, d time.Duration) {
	if e.metrics == nil {
		return
	}
	e.metrics.IndexBuildsTotal.WithLabelValues(status).Inc()
	if status == "ok" {
		e.metrics.IndexBuildDuration.Observe(d.Seconds())
	}
}

func (e *Engine) observeLoad(status string) {
	if e.metrics != nil {
		e.metrics.IndexLoadsTotal.WithLabelValues(status).Inc()
	}
}

func (e *Engine) observeSearch(resultType string, n int) {
	if e.metrics == nil {
		return
	}
	e.metrics.SearchQueriesTotal.WithLabelValues(resultType).Inc()
	if resultType != "error" {
		e.metrics.SearchResultsCount.Observe(float64(n))
	}
}
