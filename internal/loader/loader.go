// Package loader reads the document collection and the stop-word list the
// index is built from.
package loader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/keyword-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/keyword-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/keyword-search/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/keyword-search/pkg/resilience"
)

// Source yields the full document collection for one build.
type Source interface {
	Documents(ctx context.Context) ([]index.Document, error)
	Name() string
}

// movieFile is the on-disk shape of the JSON collection.
type movieFile struct {
	Movies []index.Document `json:"movies"`
}

// JSONFile reads documents from a `{"movies": [...]}` file.
type JSONFile struct {
	Path string
}

func (f JSONFile) Name() string { return "json:" + f.Path }

func (f JSONFile) Documents(ctx context.Context) ([]index.Document, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("reading documents file: %w", err)
	}
	docs, err := DecodeMovies(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.Path, err)
	}
	slog.Default().With("component", "loader").Info("documents loaded",
		"source", f.Name(),
		"documents", len(docs),
	)
	return docs, nil
}

// DecodeMovies parses a JSON collection. A file without a "movies" key yields
// no documents.
func DecodeMovies(data []byte) ([]index.Document, error) {
	var mf movieFile
	if err := json.Unmarshal(data, &mf); err != nil {
		return nil, fmt.Errorf("decoding documents: %w", err)
	}
	if mf.Movies == nil {
		return []index.Document{}, nil
	}
	return mf.Movies, nil
}

// FromConfig returns the Source selected by cfg.Index.Source. The returned
// close function releases any connection the source holds.
func FromConfig(ctx context.Context, cfg *config.Config) (Source, func() error, error) {
	switch cfg.Index.Source {
	case config.SourcePostgres:
		var client *postgres.Client
		err := resilience.Retry(ctx, "postgres connect", resilience.RetryConfig{}, func(ctx context.Context) error {
			var err error
			client, err = postgres.New(ctx, cfg.Postgres)
			if permanentConnectError(err) {
				return resilience.Permanent(err)
			}
			return err
		})
		if err != nil {
			return nil, nil, err
		}
		return NewPostgres(client, client.Table()), client.Close, nil
	case config.SourceJSON, "":
		return JSONFile{Path: cfg.Index.DocumentsPath}, func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown document source %q", cfg.Index.Source)
	}
}

// permanentConnectError reports whether a connect failure will not go away
// on retry: rejected credentials (class 28) or a missing database (class 3D).
func permanentConnectError(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	switch pqErr.Code.Class() {
	case "28", "3D":
		return true
	}
	return false
}
