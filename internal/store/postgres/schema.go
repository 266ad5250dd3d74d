package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"grimoire/internal/store"
)

var _ store.Store = (*Client)(nil)

// Client stores entries in a shared postgres database so several
// checkouts of the same rules can query one ingest.
type Client struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, dsn string) (*Client, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing postgres DSN: %w", err)
	}
	if _, ok := cfg.ConnConfig.RuntimeParams["application_name"]; !ok {
		cfg.ConnConfig.RuntimeParams["application_name"] = "grimoire"
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return &Client{pool: pool}, nil
}

func (c *Client) Close(ctx context.Context) error {
	c.pool.Close()
	return nil
}

// EnsureSchema creates the tables in one implicit transaction. Every
// statement is idempotent.
func (c *Client) EnsureSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS entries (
    id              TEXT PRIMARY KEY,
    category        TEXT NOT NULL,
    name            TEXT NOT NULL,
    name_normalized TEXT NOT NULL,
    base_category   TEXT NOT NULL,
    source          TEXT NOT NULL,
    source_file     TEXT,
    source_hash     TEXT,
    bases           TEXT[] DEFAULT '{}',
    extensions      TEXT[] DEFAULT '{}',
    attributes      JSONB DEFAULT '{}',
    body            TEXT DEFAULT '',
    search_vector   TSVECTOR,
    last_ingested   TIMESTAMPTZ DEFAULT now(),
    CONSTRAINT uq_entry_key UNIQUE (category, name_normalized)
);

CREATE TABLE IF NOT EXISTS base_links (
    entry_id        TEXT NOT NULL REFERENCES entries(id) ON DELETE CASCADE,
    position        INTEGER NOT NULL,
    base_category   TEXT NOT NULL,
    base_name       TEXT NOT NULL,
    base_normalized TEXT NOT NULL,
    CONSTRAINT uq_base_link UNIQUE (entry_id, position)
);

CREATE INDEX IF NOT EXISTS idx_entries_search ON entries USING GIN (search_vector);
CREATE INDEX IF NOT EXISTS idx_entries_source ON entries (source);
CREATE INDEX IF NOT EXISTS idx_entries_category ON entries (category);
CREATE INDEX IF NOT EXISTS idx_entries_source_file ON entries (source, source_file);
CREATE INDEX IF NOT EXISTS idx_entries_extensions ON entries USING GIN (extensions);
CREATE INDEX IF NOT EXISTS idx_base_links_target ON base_links (base_category, base_normalized);
`
	_, err := c.pool.Exec(ctx, ddl)
	if err != nil {
		return fmt.Errorf("ensuring schema: %w", err)
	}
	return nil
}
