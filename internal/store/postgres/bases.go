package postgres

import (
	"context"
	"fmt"

	"grimoire/internal/schema"
	"grimoire/internal/store"
)

// ListDependents walks base links backwards with a recursive query. The
// shallowest path to each dependent wins.
func (c *Client) ListDependents(ctx context.Context, category, name string, depth int) ([]store.Dependent, error) {
	if depth < 1 || depth > store.MaxDependentDepth {
		return nil, fmt.Errorf("depth must be between 1 and %d", store.MaxDependentDepth)
	}

	query := `
WITH RECURSIVE walk(category, name_normalized, via, depth) AS (
    SELECT e.category, e.name_normalized, l.base_normalized, 1
    FROM base_links l
    JOIN entries e ON e.id = l.entry_id
    WHERE l.base_category = $1 AND l.base_normalized = $2
  UNION
    SELECT e.category, e.name_normalized, l.base_normalized, w.depth + 1
    FROM walk w
    JOIN base_links l ON l.base_category = w.category AND l.base_normalized = w.name_normalized
    JOIN entries e ON e.id = l.entry_id
    WHERE w.depth < $3
),
shallowest AS (
    SELECT DISTINCT ON (category, name_normalized) category, name_normalized, via, depth
    FROM walk
    WHERE NOT (category = $1 AND name_normalized = $2)
    ORDER BY category, name_normalized, depth
)
SELECT e.category, e.name, e.source, e.bases, e.extensions, s.via, s.depth
FROM shallowest s
JOIN entries e ON e.category = s.category AND e.name_normalized = s.name_normalized
ORDER BY s.depth, e.category, e.name_normalized
`

	rows, err := c.pool.Query(ctx, query, schema.Normalize(category), store.NormalizeName(name), depth)
	if err != nil {
		return nil, fmt.Errorf("querying dependents: %w", err)
	}
	defer rows.Close()

	results := []store.Dependent{}
	for rows.Next() {
		var d store.Dependent
		if err := rows.Scan(&d.Category, &d.Name, &d.Source, &d.Bases, &d.Extensions, &d.Via, &d.Depth); err != nil {
			return nil, fmt.Errorf("scanning dependent: %w", err)
		}
		d.Bases = nonNil(d.Bases)
		d.Extensions = nonNil(d.Extensions)
		results = append(results, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating dependents: %w", err)
	}
	return results, nil
}

func (c *Client) ListUnresolvedBases(ctx context.Context) ([]store.UnresolvedBase, error) {
	query := `
SELECT e.category, e.name, l.base_category, l.base_name
FROM base_links l
JOIN entries e ON e.id = l.entry_id
WHERE NOT EXISTS (
    SELECT 1 FROM entries b
    WHERE b.category = l.base_category AND b.name_normalized = l.base_normalized
)
ORDER BY e.category, e.name_normalized, l.position
`
	rows, err := c.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing unresolved bases: %w", err)
	}
	defer rows.Close()

	out := []store.UnresolvedBase{}
	for rows.Next() {
		var u store.UnresolvedBase
		if err := rows.Scan(&u.Category, &u.Name, &u.BaseCategory, &u.Base); err != nil {
			return nil, fmt.Errorf("scanning unresolved base: %w", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating unresolved bases: %w", err)
	}
	return out, nil
}
