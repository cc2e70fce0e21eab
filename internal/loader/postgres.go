package loader

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/keyword-search/internal/indexer/index"
)

// TxRunner runs fn inside a read-only transaction. *postgres.Client
// satisfies it.
type TxRunner interface {
	ReadOnly(ctx context.Context, fn func(tx *sql.Tx) error) error
}

// Postgres reads documents from a table with id, title and description
// columns.
type Postgres struct {
	db    TxRunner
	table string
}

func NewPostgres(db TxRunner, table string) *Postgres {
	if table == "" {
		table = "documents"
	}
	return &Postgres{db: db, table: table}
}

func (p *Postgres) Name() string { return "postgres:" + p.table }

// Query is the statement Documents runs.
func (p *Postgres) Query() string {
	return fmt.Sprintf(
		"SELECT id, title, COALESCE(description, '') FROM %s ORDER BY id",
		pq.QuoteIdentifier(p.table),
	)
}

func (p *Postgres) Documents(ctx context.Context) ([]index.Document, error) {
	var docs []index.Document
	err := p.db.ReadOnly(ctx, func(tx *sql.Tx) error {
		var err error
		docs, err = p.scan(ctx, tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	slog.Default().With("component", "loader").Info("documents loaded",
		"source", p.Name(),
		"documents", len(docs),
	)
	return docs, nil
}

func (p *Postgres) scan(ctx context.Context, tx *sql.Tx) ([]index.Document, error) {
	rows, err := tx.QueryContext(ctx, p.Query())
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", p.table, err)
	}
	defer rows.Close()

	docs := make([]index.Document, 0, 256)
	for rows.Next() {
		var (
			id  int64
			doc index.Document
		)
		if err := rows.Scan(&id, &doc.Title, &doc.Description); err != nil {
			return nil, fmt.Errorf("scanning %s row: %w", p.table, err)
		}
		doc.ID = int(id)
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating %s rows: %w", p.table, err)
	}
	return docs, nil
}
