package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"grimoire/internal/store"
)

// RunSQL runs a read-only query against the entry tables inside a
// READ ONLY transaction that is always rolled back. Params keyed "1",
// "2", ... bind $1, $2, ...; when every key is a name they bind @name
// markers.
func (c *Client) RunSQL(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	if err := store.CheckReadOnly(query); err != nil {
		return nil, err
	}
	positional, named := store.SplitParams(params)
	args := positional
	if len(named) > 0 && len(positional) == 0 {
		args = []any{pgx.NamedArgs(named)}
	}

	tx, err := c.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("beginning read-only transaction: %w", err)
	}
	defer tx.Rollback(context.WithoutCancel(ctx))

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("running sql: %w", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	results := make([]map[string]any, 0)
	for rows.Next() {
		if len(results) == store.MaxSQLRows {
			return nil, store.ErrTooManyRows
		}
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("getting row values: %w", err)
		}
		row := make(map[string]any, len(fields))
		for i, fd := range fields {
			row[fd.Name] = values[i]
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sql rows: %w", err)
	}
	return results, nil
}
