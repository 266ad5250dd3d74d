package sqlite

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

	ftsQuery := convertWebsearchToFTS5(query)
	category = schema.Normalize(category)

	sqlQuery := `
	SELECT e.category, e.name, e.source,
		   bm25(entries_fts, 10.0, 4.0, 1.0) AS score,
		   snippet(entries_fts, 2, '**', '**', '...', 32) AS snippet
	FROM entries_fts
	JOIN entries e ON entries_fts.rowid = e.seq
	WHERE entries_fts MATCH ?
	  AND (? = '' OR e.category = ?)
	ORDER BY score, e.name_normalized
	LIMIT 50
	`

	rows, err := c.db.QueryContext(ctx, sqlQuery, ftsQuery, category, category)
	if err != nil {
		return nil, fmt.Errorf("searching entries: %w", err)
	}
	defer rows.Close()

	results := []store.SearchResult{}
	for rows.Next() {
		var r store.SearchResult
		if err := rows.Scan(&r.Category, &r.Name, &r.Source, &r.Score, &r.Snippet); err != nil {
			return nil, fmt.Errorf("scanning search result: %w", err)
		}
		// bm25 ranks better matches lower
		r.Score = -r.Score
		results = append(results, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating search results: %w", err)
	}

	return results, nil
}

func convertWebsearchToFTS5(query string) string {
	var result strings.Builder
	var inQuote bool
	var current strings.Builder

	flushToken := func() {
		token := current.String()
		current.Reset()
		if token == "" {
			return
		}

		upper := strings.ToUpper(token)
		switch upper {
		case "AND", "OR", "NOT":
			if result.Len() > 0 {
				result.WriteString(" ")
			}
			result.WriteString(upper)
			return
		}

		negate := strings.HasPrefix(token, "-") && len(token) > 1
		if negate {
			token = token[1:]
		}

		if result.Len() > 0 {
			lastWord := lastWord(result.String())
			switch {
			case lastWord == "AND" || lastWord == "OR" || lastWord == "NOT":
				result.WriteString(" ")
			case negate:
				// FTS5 NOT is binary: "a NOT b"
				result.WriteString(" NOT ")
			default:
				result.WriteString(" AND ")
			}
		}
		result.WriteString(quoteTerm(token))
	}

	for i := 0; i < len(query); i++ {
		ch := query[i]
		switch {
		case ch == '"':
			if inQuote {
				inQuote = false
				token := current.String()
				current.Reset()
				if token != "" {
					if result.Len() > 0 {
						result.WriteString(" AND ")
					}
					result.WriteString(`"`)
					result.WriteString(token)
					result.WriteString(`"`)
				}
			} else {
				flushToken()
				inQuote = true
			}
		case inQuote:
			current.WriteByte(ch)
		case ch == ' ' || ch == '\t':
			flushToken()
		default:
			current.WriteByte(ch)
		}
	}

	flushToken()

	return result.String()
}

func lastWord(s string) string {
	words := strings.Fields(s)
	if len(words) == 0 {
		return ""
	}
	return words[len(words)-1]
}

// quoteTerm wraps a bare term in quotes when it holds characters FTS5
// would read as syntax, keeping a trailing prefix star outside.
func quoteTerm(token string) string {
	word, star := strings.CutSuffix(token, "*")
	if word == "" || strings.IndexFunc(word, func(r rune) bool {
		return !(r == '_' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r > 127)
	}) < 0 {
		return token
	}
	quoted := `"` + strings.ReplaceAll(word, `"`, `""`) + `"`
	if star {
		quoted += "*"
	}
	return quoted
}
