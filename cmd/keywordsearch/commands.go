package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	"github.com/Adithya-Monish-Kumar-K/keyword-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/keyword-search/internal/indexer/notify"
	"github.com/Adithya-Monish-Kumar-K/keyword-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/keyword-search/internal/loader"
	"github.com/Adithya-Monish-Kumar-K/keyword-search/internal/searcher/scoring"
	"github.com/Adithya-Monish-Kumar-K/keyword-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/keyword-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/keyword-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/keyword-search/pkg/resilience"
)

type cliEnv struct {
	cfg    *config.Config
	tok    *tokenizer.Tokenizer
	stdout io.Writer
}

func newCLIEnv(configPath, logLevel string, stdout, stderr io.Writer) (*cliEnv, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format, stderr)

	tok, err := loader.Tokenizer(cfg.Index.StopWordsPath)
	if err != nil {
		return nil, err
	}
	return &cliEnv{cfg: cfg, tok: tok, stdout: stdout}, nil
}

func (env *cliEnv) params() scoring.Params {
	return scoring.Params{K1: env.cfg.Search.K1, B: env.cfg.Search.B}
}

func (env *cliEnv) newEngine() *indexer.Engine {
	return indexer.NewEngine(env.cfg.Index.CacheDir, env.tok, indexer.WithParams(env.params()))
}

// openEngine loads the persisted index. A missing or corrupt index is an
// error for every query command.
func (env *cliEnv) openEngine() (*indexer.Engine, error) {
	e := env.newEngine()
	if err := e.Load(); err != nil {
		return nil, fmt.Errorf("%w (run \"keywordsearch build\" first)", err)
	}
	return e, nil
}

func limitFlag(fs *pflag.FlagSet) {
	fs.IntP("limit", "n", 0, "maximum number of results (default search.defaultLimit)")
}

func maxFlag(fs *pflag.FlagSet) {
	fs.Int("max", 0, "maximum number of titles (default search.titleMatches)")
}

func bm25Flags(fs *pflag.FlagSet) {
	fs.Float64("k1", 0, "term-frequency saturation (default search.k1)")
	fs.Float64("b", 0, "length normalisation strength (default search.b)")
}

func runBuild(ctx context.Context, env *cliEnv, _ *pflag.FlagSet, args []string) error {
	if len(args) != 0 {
		return usageError{msg: "build takes no arguments"}
	}
	src, closeSrc, err := loader.FromConfig(ctx, env.cfg)
	if err != nil {
		return err
	}
	defer closeSrc()

	docs, err := src.Documents(ctx)
	if err != nil {
		return err
	}
	e := env.newEngine()
	if err := e.Build(docs); err != nil {
		return err
	}
	path, err := e.Save()
	if err != nil {
		return err
	}
	stats := e.Stats()
	fmt.Fprintf(env.stdout, "Indexed %d documents, %d terms into %s\n", stats.Documents, stats.Terms, path)

	if env.cfg.Kafka.Enabled {
		producer := kafka.NewProducer(env.cfg.Kafka, env.cfg.Kafka.Topics.IndexComplete)
		defer producer.Close()
		err := notify.New(producer, resilience.RetryConfig{}).IndexComplete(ctx, notify.IndexComplete{
			Generation: stats.Generation,
			Documents:  stats.Documents,
			Terms:      stats.Terms,
			Path:       path,
			BuiltAt:    stats.BuiltAt,
		})
		if err != nil {
			slog.Warn("index saved but build notification failed", "error", err)
		}
	}
	return nil
}

func runSearch(_ context.Context, env *cliEnv, fs *pflag.FlagSet, args []string) error {
	if len(args) == 0 {
		return usageError{msg: "search needs a query"}
	}
	query := strings.Join(args, " ")
	limit, _ := fs.GetInt("limit")
	if !fs.Changed("limit") {
		limit = env.cfg.Search.DefaultLimit
	}

	e, err := env.openEngine()
	if err != nil {
		return err
	}
	results, err := e.Search(query, limit)
	if err != nil {
		return err
	}
	fmt.Fprintf(env.stdout, "Searching for: %s\n", query)
	for i, hit := range e.Resolve(results) {
		fmt.Fprintf(env.stdout, "%d. (%d) %s - Score: %.2f\n", i+1, hit.DocID, hit.Title, hit.Score)
	}
	return nil
}

func runTitles(_ context.Context, env *cliEnv, fs *pflag.FlagSet, args []string) error {
	if len(args) == 0 {
		return usageError{msg: "titles needs a query"}
	}
	query := strings.Join(args, " ")
	n, _ := fs.GetInt("max")
	if !fs.Changed("max") {
		n = env.cfg.Search.TitleMatches
	}

	e, err := env.openEngine()
	if err != nil {
		return err
	}
	fmt.Fprintf(env.stdout, "Searching for: %s\n", query)
	for i, doc := range e.MatchTitles(query, n) {
		fmt.Fprintf(env.stdout, "%d. %s\n", i+1, doc.Title)
	}
	return nil
}

func runTF(_ context.Context, env *cliEnv, _ *pflag.FlagSet, args []string) error {
	docID, term, err := docTermArgs("tf", args)
	if err != nil {
		return err
	}
	e, err := env.openEngine()
	if err != nil {
		return err
	}
	tf, err := e.TermFrequency(docID, term)
	if err != nil {
		return err
	}
	fmt.Fprintf(env.stdout, "Term frequency of '%s' in document %d: %d\n", term, docID, tf)
	return nil
}

func runIDF(_ context.Context, env *cliEnv, _ *pflag.FlagSet, args []string) error {
	term, err := termArg("idf", args)
	if err != nil {
		return err
	}
	e, err := env.openEngine()
	if err != nil {
		return err
	}
	idf, err := e.IDF(term)
	if err != nil {
		return err
	}
	fmt.Fprintf(env.stdout, "Inverse document frequency of '%s': %.2f\n", term, idf)
	return nil
}

func runTFIDF(_ context.Context, env *cliEnv, _ *pflag.FlagSet, args []string) error {
	docID, term, err := docTermArgs("tfidf", args)
	if err != nil {
		return err
	}
	e, err := env.openEngine()
	if err != nil {
		return err
	}
	score, err := e.TFIDF(docID, term)
	if err != nil {
		return err
	}
	fmt.Fprintf(env.stdout, "TF-IDF score of '%s' in document '%d': %.2f\n", term, docID, score)
	return nil
}

func runBM25IDF(_ context.Context, env *cliEnv, _ *pflag.FlagSet, args []string) error {
	term, err := termArg("bm25idf", args)
	if err != nil {
		return err
	}
	e, err := env.openEngine()
	if err != nil {
		return err
	}
	score, err := e.BM25IDF(term)
	if err != nil {
		return err
	}
	fmt.Fprintf(env.stdout, "BM25 IDF score of '%s': %.2f\n", term, score)
	return nil
}

func runBM25TF(_ context.Context, env *cliEnv, fs *pflag.FlagSet, args []string) error {
	docID, term, err := docTermArgs("bm25tf", args)
	if err != nil {
		return err
	}
	p := env.params()
	if fs.Changed("k1") {
		p.K1, _ = fs.GetFloat64("k1")
	}
	if fs.Changed("b") {
		p.B, _ = fs.GetFloat64("b")
	}
	if err := p.Validate(); err != nil {
		return usageError{msg: err.Error()}
	}
	e, err := env.openEngine()
	if err != nil {
		return err
	}
	score, err := e.BM25TF(docID, term, p)
	if err != nil {
		return err
	}
	fmt.Fprintf(env.stdout, "BM25 TF score of '%s' in document '%d': %.2f\n", term, docID, score)
	return nil
}

func termArg(cmd string, args []string) (string, error) {
	if len(args) != 1 {
		return "", usageError{msg: fmt.Sprintf("%s needs exactly one term", cmd)}
	}
	return args[0], nil
}

func docTermArgs(cmd string, args []string) (int, string, error) {
	if len(args) != 2 {
		return 0, "", usageError{msg: fmt.Sprintf("%s needs a document ID and a term", cmd)}
	}
	docID, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, "", usageError{msg: fmt.Sprintf("document ID must be an integer, got %q", args[0])}
	}
	return docID, args[1], nil
}
