package postgres

import (
	"context"
	"fmt"

	"grimoire/internal/store"
)

func (c *Client) ReplaceFile(ctx context.Context, source, file string, recs []store.Record) (int64, error) {
	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	ids := make([]string, 0, len(recs))
	for _, rec := range recs {
		rec.Source = source
		rec.SourceFile = file
		id, err := upsertEntry(ctx, tx, rec)
		if err != nil {
			return 0, err
		}
		ids = append(ids, id)
	}

	tag, err := tx.Exec(ctx,
		`DELETE FROM entries WHERE source = $1 AND source_file = $2 AND NOT (id = ANY($3))`,
		source, file, ids,
	)
	if err != nil {
		return 0, fmt.Errorf("removing replaced entries: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing transaction: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (c *Client) RemoveStaleEntries(ctx context.Context, source string, currentSourceFiles []string) (int64, error) {
	if currentSourceFiles == nil {
		currentSourceFiles = []string{}
	}
	query := `
DELETE FROM entries
WHERE source = $1
  AND source_file IS NOT NULL
  AND source_file <> ''
  AND NOT (source_file = ANY($2))
`
	tag, err := c.pool.Exec(ctx, query, source, currentSourceFiles)
	if err != nil {
		return 0, fmt.Errorf("removing stale entries: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (c *Client) GetSourceHashes(ctx context.Context, source string) (map[string]string, error) {
	query := `
SELECT DISTINCT source_file, source_hash FROM entries
WHERE source = $1
  AND source_file IS NOT NULL
  AND source_file <> ''
`
	rows, err := c.pool.Query(ctx, query, source)
	if err != nil {
		return nil, fmt.Errorf("query source hashes: %w", err)
	}
	defer rows.Close()

	hashes := make(map[string]string)
	for rows.Next() {
		var sourceFile, sourceHash string
		if err := rows.Scan(&sourceFile, &sourceHash); err != nil {
			return nil, fmt.Errorf("scanning source hash: %w", err)
		}
		hashes[sourceFile] = sourceHash
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating source hashes: %w", err)
	}
	return hashes, nil
}
