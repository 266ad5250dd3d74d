package postgres

import (
	"context"
	"fmt"
	"strings"

	"grimoire/internal/schema"
	"grimoire/internal/store"
)

func (c *Client) Search(ctx context.Context, query, category string) ([]store.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query must not be empty")
	}

	sql := `
SELECT category, name, source,
    ts_rank(search_vector, websearch_to_tsquery('english', $1)) AS score,
    CASE WHEN body <> '' THEN
        ts_headline('english', body, websearch_to_tsquery('english', $1),
            'MaxFragments=2, MaxWords=40, MinWords=20, StartSel=**, StopSel=**')
    ELSE '' END AS snippet
FROM entries
WHERE search_vector @@ websearch_to_tsquery('english', $1)
  AND ($2 = '' OR category = $2)
ORDER BY score DESC, name_normalized ASC
LIMIT 50
`

	rows, err := c.pool.Query(ctx, sql, query, schema.Normalize(category))
	if err != nil {
		return nil, fmt.Errorf("searching entries: %w", err)
	}
	defer rows.Close()

	results := []store.SearchResult{}
	for rows.Next() {
		var r store.SearchResult
		var score float32
		if err := rows.Scan(&r.Category, &r.Name, &r.Source, &score, &r.Snippet); err != nil {
			return nil, fmt.Errorf("scanning search result: %w", err)
		}
		r.Score = float64(score)
		results = append(results, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating search results: %w", err)
	}

	return results, nil
}
