package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"grimoire/internal/schema"
	"grimoire/internal/store"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (c *Client) UpsertEntry(ctx context.Context, rec store.Record) (string, error) {
	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	id, err := upsertEntry(ctx, tx, rec)
	if err != nil {
		return "", err
	}
	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("committing transaction: %w", err)
	}
	return id, nil
}

func upsertEntry(ctx context.Context, q querier, rec store.Record) (string, error) {
	if strings.TrimSpace(rec.Name) == "" {
		return "", fmt.Errorf("upserting entry: name is required")
	}
	category := schema.Normalize(rec.Category)
	baseCategory := schema.Normalize(rec.BaseCategory)
	if baseCategory == "" {
		baseCategory = category
	}
	id := rec.ID
	if id == "" {
		id = uuid.New().String()
	}

	attrs := rec.Attributes
	if attrs == nil {
		attrs = map[string]string{}
	}
	attrsJSON, err := json.Marshal(attrs)
	if err != nil {
		return "", fmt.Errorf("marshaling attributes: %w", err)
	}

	query := `
INSERT INTO entries (id, category, name, name_normalized, base_category, source, source_file, source_hash, bases, extensions, attributes, body, last_ingested, search_vector)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now(),
    setweight(to_tsvector('simple', coalesce($3, '')), 'A') ||
    setweight(to_tsvector('english', coalesce($13, '')), 'B') ||
    setweight(to_tsvector('english', coalesce($12, '')), 'C')
)
ON CONFLICT (category, name_normalized) DO UPDATE SET
    name = EXCLUDED.name,
    base_category = EXCLUDED.base_category,
    source = EXCLUDED.source,
    source_file = EXCLUDED.source_file,
    source_hash = EXCLUDED.source_hash,
    bases = EXCLUDED.bases,
    extensions = EXCLUDED.extensions,
    attributes = EXCLUDED.attributes,
    body = EXCLUDED.body,
    last_ingested = now(),
    search_vector = EXCLUDED.search_vector
RETURNING id
`

	err = q.QueryRow(ctx, query,
		id,
		category,
		rec.Name,
		store.NormalizeName(rec.Name),
		baseCategory,
		rec.Source,
		rec.SourceFile,
		rec.SourceHash,
		nonNil(rec.Bases),
		nonNil(rec.Extensions),
		attrsJSON,
		rec.Text,
		string(attrsJSON),
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("upserting entry: %w", err)
	}

	if _, err := q.Exec(ctx, `DELETE FROM base_links WHERE entry_id = $1`, id); err != nil {
		return "", fmt.Errorf("clearing base links: %w", err)
	}
	for i, base := range rec.Bases {
		_, err := q.Exec(ctx,
			`INSERT INTO base_links (entry_id, position, base_category, base_name, base_normalized) VALUES ($1, $2, $3, $4, $5)`,
			id, i, baseCategory, base, store.NormalizeName(base),
		)
		if err != nil {
			return "", fmt.Errorf("inserting base link: %w", err)
		}
	}
	return id, nil
}

func (c *Client) GetEntry(ctx context.Context, category, name string) (*store.Record, error) {
	query := `
SELECT id, category, name, base_category, source, coalesce(source_file, ''), coalesce(source_hash, ''), bases, extensions, attributes, body
FROM entries
WHERE category = $1 AND name_normalized = $2
`

	var rec store.Record
	var attrsJSON []byte
	err := c.pool.QueryRow(ctx, query, schema.Normalize(category), store.NormalizeName(name)).Scan(
		&rec.ID,
		&rec.Category,
		&rec.Name,
		&rec.BaseCategory,
		&rec.Source,
		&rec.SourceFile,
		&rec.SourceHash,
		&rec.Bases,
		&rec.Extensions,
		&attrsJSON,
		&rec.Text,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s/%s", store.ErrNotFound, category, name)
	}
	if err != nil {
		return nil, fmt.Errorf("getting entry: %w", err)
	}
	if len(attrsJSON) > 0 {
		if err := json.Unmarshal(attrsJSON, &rec.Attributes); err != nil {
			return nil, fmt.Errorf("unmarshaling attributes: %w", err)
		}
	}
	rec.Bases = nonNil(rec.Bases)
	rec.Extensions = nonNil(rec.Extensions)
	return &rec, nil
}

func (c *Client) ListEntries(ctx context.Context, f store.Filter) ([]store.Summary, error) {
	query := `
SELECT category, name, source, bases, extensions
FROM entries
WHERE ($1 = '' OR category = $1)
  AND ($2 = '' OR source = $2)
  AND ($3 = '' OR EXISTS (SELECT 1 FROM unnest(extensions) x WHERE lower(x) = lower($3)))
ORDER BY category, name_normalized
`

	rows, err := c.pool.Query(ctx, query, schema.Normalize(f.Category), f.Source, f.Extension)
	if err != nil {
		return nil, fmt.Errorf("listing entries: %w", err)
	}
	defer rows.Close()

	summaries := []store.Summary{}
	for rows.Next() {
		var s store.Summary
		if err := rows.Scan(&s.Category, &s.Name, &s.Source, &s.Bases, &s.Extensions); err != nil {
			return nil, fmt.Errorf("scanning entry summary: %w", err)
		}
		s.Bases = nonNil(s.Bases)
		s.Extensions = nonNil(s.Extensions)
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entry summaries: %w", err)
	}
	return summaries, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
