package store

import (
	"context"
	"errors"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"grimoire/internal/entry"
	"grimoire/internal/parser"
	"grimoire/internal/schema"
)

// CachedLookup resolves entries from a Store, parsing each record's text.
// Hits and misses are cached.
type CachedLookup struct {
	st      Store
	parser  *parser.Parser
	cache   *lru.Cache[string, *entry.Entry]
	timeout time.Duration
	logger  *slog.Logger
}

var _ entry.Lookup = (*CachedLookup)(nil)

func NewLookup(st Store, p *parser.Parser, size int, logger *slog.Logger) (*CachedLookup, error) {
	if size <= 0 {
		size = 1024
	}
	cache, err := lru.New[string, *entry.Entry](size)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedLookup{st: st, parser: p, cache: cache, timeout: 10 * time.Second, logger: logger}, nil
}

func (l *CachedLookup) Lookup(category, id string) (*entry.Entry, bool) {
	key := schema.Normalize(category) + "/" + NormalizeName(id)
	if e, ok := l.cache.Get(key); ok {
		return e, e != nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()

	e, err := l.fetch(ctx, category, id)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			l.logger.Warn("store lookup failed", "category", category, "entry", id, "error", err)
			return nil, false
		}
		e = nil
	}
	l.cache.Add(key, e)
	return e, e != nil
}

func (l *CachedLookup) fetch(ctx context.Context, category, id string) (*entry.Entry, error) {
	rec, err := l.st.GetEntry(ctx, category, id)
	if err != nil {
		return nil, err
	}
	e, err := l.parser.Parse(rec.Text)
	if err != nil {
		return nil, err
	}
	e.Source = rec.SourceFile
	e.SetLookup(l)
	return e, nil
}

// Invalidate drops every cached entry.
func (l *CachedLookup) Invalidate() {
	l.cache.Purge()
}

func (l *CachedLookup) Len() int {
	return l.cache.Len()
}
