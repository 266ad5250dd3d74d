package sqlite

import (
	"context"
	"fmt"

	"grimoire/internal/store"
)

// ReplaceFile makes the entries stored for one source file exactly recs.
// Entries that kept their key keep their id. It returns how many entries
// of the file were removed.
func (c *Client) ReplaceFile(ctx context.Context, source, file string, recs []store.Record) (int64, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

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

	args := []any{source, file}
	query := `DELETE FROM entries WHERE source = ? AND source_file = ?`
	if len(ids) > 0 {
		for _, id := range ids {
			args = append(args, id)
		}
		query += fmt.Sprintf(" AND id NOT IN (%s)", joinPlaceholders(len(ids)))
	}

	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("removing replaced entries: %w", err)
	}
	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("getting rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing transaction: %w", err)
	}
	return removed, nil
}

// RemoveStaleEntries deletes the entries of source whose file is not in
// currentSourceFiles.
func (c *Client) RemoveStaleEntries(ctx context.Context, source string, currentSourceFiles []string) (int64, error) {
	args := make([]any, 0, len(currentSourceFiles)+1)
	args = append(args, source)

	query := `
	DELETE FROM entries
	WHERE source = ?
	  AND source_file IS NOT NULL
	  AND source_file <> ''`
	if len(currentSourceFiles) > 0 {
		for _, f := range currentSourceFiles {
			args = append(args, f)
		}
		query += fmt.Sprintf("\n\t  AND source_file NOT IN (%s)", joinPlaceholders(len(currentSourceFiles)))
	}

	result, err := c.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("removing stale entries: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("getting rows affected: %w", err)
	}

	return affected, nil
}

func (c *Client) GetSourceHashes(ctx context.Context, source string) (map[string]string, error) {
	query := `
	SELECT DISTINCT source_file, source_hash FROM entries
	WHERE source = ?
	  AND source_file IS NOT NULL
	  AND source_file <> ''
	`

	rows, err := c.db.QueryContext(ctx, query, source)
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
