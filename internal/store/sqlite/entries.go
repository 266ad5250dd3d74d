package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"grimoire/internal/schema"
	"grimoire/internal/store"
)

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (c *Client) UpsertEntry(ctx context.Context, rec store.Record) (string, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	id, err := upsertEntry(ctx, tx, rec)
	if err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing transaction: %w", err)
	}
	return id, nil
}

// upsertEntry writes rec and its base links. An existing row keeps its id.
func upsertEntry(ctx context.Context, db execer, rec store.Record) (string, error) {
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

	basesJSON, err := json.Marshal(nonNil(rec.Bases))
	if err != nil {
		return "", fmt.Errorf("marshaling bases: %w", err)
	}
	extsJSON, err := json.Marshal(nonNil(rec.Extensions))
	if err != nil {
		return "", fmt.Errorf("marshaling extensions: %w", err)
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
	INSERT INTO entries (id, category, name, name_normalized, base_category, source, source_file, source_hash, bases, extensions, attributes, body, last_ingested)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, datetime('now'))
	ON CONFLICT (category, name_normalized) DO UPDATE SET
		name = excluded.name,
		base_category = excluded.base_category,
		source = excluded.source,
		source_file = excluded.source_file,
		source_hash = excluded.source_hash,
		bases = excluded.bases,
		extensions = excluded.extensions,
		attributes = excluded.attributes,
		body = excluded.body,
		last_ingested = datetime('now')
	RETURNING id
	`

	err = db.QueryRowContext(ctx, query,
		id,
		category,
		rec.Name,
		store.NormalizeName(rec.Name),
		baseCategory,
		rec.Source,
		rec.SourceFile,
		rec.SourceHash,
		string(basesJSON),
		string(extsJSON),
		string(attrsJSON),
		rec.Text,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("upserting entry: %w", err)
	}

	if _, err := db.ExecContext(ctx, `DELETE FROM base_links WHERE entry_id = ?`, id); err != nil {
		return "", fmt.Errorf("clearing base links: %w", err)
	}
	for i, base := range rec.Bases {
		_, err := db.ExecContext(ctx,
			`INSERT INTO base_links (entry_id, position, base_category, base_name, base_normalized) VALUES (?, ?, ?, ?, ?)`,
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
	SELECT id, category, name, base_category, source, source_file, source_hash, bases, extensions, attributes, body
	FROM entries
	WHERE category = ? AND name_normalized = ?
	`

	var rec store.Record
	var sourceFile, sourceHash sql.NullString
	var basesJSON, extsJSON, attrsJSON string
	err := c.db.QueryRowContext(ctx, query, schema.Normalize(category), store.NormalizeName(name)).Scan(
		&rec.ID,
		&rec.Category,
		&rec.Name,
		&rec.BaseCategory,
		&rec.Source,
		&sourceFile,
		&sourceHash,
		&basesJSON,
		&extsJSON,
		&attrsJSON,
		&rec.Text,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s/%s", store.ErrNotFound, category, name)
	}
	if err != nil {
		return nil, fmt.Errorf("getting entry: %w", err)
	}
	rec.SourceFile = sourceFile.String
	rec.SourceHash = sourceHash.String

	if err := json.Unmarshal([]byte(basesJSON), &rec.Bases); err != nil {
		return nil, fmt.Errorf("unmarshaling bases: %w", err)
	}
	if err := json.Unmarshal([]byte(extsJSON), &rec.Extensions); err != nil {
		return nil, fmt.Errorf("unmarshaling extensions: %w", err)
	}
	if err := json.Unmarshal([]byte(attrsJSON), &rec.Attributes); err != nil {
		return nil, fmt.Errorf("unmarshaling attributes: %w", err)
	}
	return &rec, nil
}

func (c *Client) ListEntries(ctx context.Context, f store.Filter) ([]store.Summary, error) {
	category := schema.Normalize(f.Category)
	query := `
	SELECT category, name, source, bases, extensions
	FROM entries
	WHERE (? = '' OR category = ?)
	  AND (? = '' OR source = ?)
	ORDER BY category, name_normalized
	`

	rows, err := c.db.QueryContext(ctx, query, category, category, f.Source, f.Source)
	if err != nil {
		return nil, fmt.Errorf("listing entries: %w", err)
	}
	defer rows.Close()

	summaries := []store.Summary{}
	for rows.Next() {
		s, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		if f.Extension != "" && !containsFold(s.Extensions, f.Extension) {
			continue
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entry summaries: %w", err)
	}
	return summaries, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSummary(row scanner, extra ...any) (store.Summary, error) {
	var s store.Summary
	var basesJSON, extsJSON string
	dest := append([]any{&s.Category, &s.Name, &s.Source, &basesJSON, &extsJSON}, extra...)
	if err := row.Scan(dest...); err != nil {
		return s, fmt.Errorf("scanning entry summary: %w", err)
	}
	if err := json.Unmarshal([]byte(basesJSON), &s.Bases); err != nil {
		return s, fmt.Errorf("unmarshaling bases: %w", err)
	}
	if err := json.Unmarshal([]byte(extsJSON), &s.Extensions); err != nil {
		return s, fmt.Errorf("unmarshaling extensions: %w", err)
	}
	s.Bases = nonNil(s.Bases)
	s.Extensions = nonNil(s.Extensions)
	return s, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
