package sqlite

import (
	"context"
	"fmt"
	"strings"

	"grimoire/internal/schema"
	"grimoire/internal/store"
)

// ListDependents walks base links backwards from the named entry, one
// level per depth step, visiting each entry once.
func (c *Client) ListDependents(ctx context.Context, category, name string, depth int) ([]store.Dependent, error) {
	if depth < 1 || depth > store.MaxDependentDepth {
		return nil, fmt.Errorf("depth must be between 1 and %d", store.MaxDependentDepth)
	}

	type node struct{ category, name string }
	start := node{schema.Normalize(category), store.NormalizeName(name)}
	visited := map[node]bool{start: true}
	frontier := []node{start}
	results := []store.Dependent{}

	query := `
	SELECT e.category, e.name, e.source, e.bases, e.extensions, e.name_normalized
	FROM base_links l
	JOIN entries e ON e.id = l.entry_id
	WHERE l.base_category = ? AND l.base_normalized = ?
	ORDER BY e.category, e.name_normalized
	`

	for currentDepth := 1; currentDepth <= depth && len(frontier) > 0; currentDepth++ {
		var next []node
		for _, target := range frontier {
			rows, err := c.db.QueryContext(ctx, query, target.category, target.name)
			if err != nil {
				return nil, fmt.Errorf("querying dependents: %w", err)
			}
			for rows.Next() {
				var normalized string
				s, err := scanSummary(rows, &normalized)
				if err != nil {
					rows.Close()
					return nil, err
				}
				n := node{s.Category, normalized}
				if visited[n] {
					continue
				}
				visited[n] = true
				results = append(results, store.Dependent{Summary: s, Via: target.name, Depth: currentDepth})
				next = append(next, n)
			}
			rows.Close()
			if err := rows.Err(); err != nil {
				return nil, fmt.Errorf("iterating dependents: %w", err)
			}
		}
		frontier = next
	}

	return results, nil
}

// ListUnresolvedBases reports base links that name no stored entry.
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

	rows, err := c.db.QueryContext(ctx, query)
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

// joinPlaceholders returns n comma-separated "?" markers.
func joinPlaceholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
