// Package catalog holds every loaded entry keyed by category and name and
// resolves base references between them.
package catalog

import (
	"log/slog"
	"sort"
	"sync"

	"grimoire/internal/entry"
)

// Duplicate records an entry that was ignored because an entry with the
// same key had already been added.
type Duplicate struct {
	Key    entry.Key
	Kept   string
	Ignore string
}

type Catalog struct {
	mu       sync.RWMutex
	entries  map[entry.Key]*entry.Entry
	sources  map[entry.Key]string
	order    []entry.Key
	dups     []Duplicate
	fallback entry.Lookup
	logger   *slog.Logger
}

var _ entry.Lookup = (*Catalog)(nil)

type Option func(*Catalog)

// WithFallback consults l for entries the catalog does not hold.
func WithFallback(l entry.Lookup) Option {
	return func(c *Catalog) { c.fallback = l }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Catalog) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func New(opts ...Option) *Catalog {
	c := &Catalog{
		entries: make(map[entry.Key]*entry.Entry),
		sources: make(map[entry.Key]string),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Add stores e under its key and points e's base resolution at the
// catalog. The first entry added for a key wins.
func (c *Catalog) Add(e *entry.Entry, source string) bool {
	key := e.Key().Normalize()

	c.mu.Lock()
	defer c.mu.Unlock()
	if kept, ok := c.entries[key]; ok {
		c.dups = append(c.dups, Duplicate{Key: e.Key(), Kept: kept.Source, Ignore: e.Source})
		c.logger.Warn("duplicate entry ignored", "entry", e.String(), "kept", kept.Source, "ignored", e.Source)
		return false
	}
	c.entries[key] = e
	c.sources[key] = source
	c.order = append(c.order, key)
	e.SetLookup(c)
	return true
}

func (c *Catalog) Lookup(category, id string) (*entry.Entry, bool) {
	c.mu.RLock()
	e, ok := c.entries[entry.Key{Category: category, ID: id}.Normalize()]
	fallback := c.fallback
	c.mu.RUnlock()
	if ok {
		return e, true
	}
	if fallback != nil {
		return fallback.Lookup(category, id)
	}
	return nil, false
}

func (c *Catalog) Get(key entry.Key) (*entry.Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key.Normalize()]
	return e, ok
}

// SourceOf returns the configured source an entry was loaded from.
func (c *Catalog) SourceOf(key entry.Key) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sources[key.Normalize()]
}

// Entries returns the entries in the order they were added.
func (c *Catalog) Entries() []*entry.Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*entry.Entry, 0, len(c.order))
	for _, k := range c.order {
		out = append(out, c.entries[k])
	}
	return out
}

// Category returns the entries of one category sorted by name.
func (c *Catalog) Category(name string) []*entry.Entry {
	want := entry.Key{Category: name}.Normalize().Category
	var out []*entry.Entry
	for _, e := range c.Entries() {
		if e.Key().Normalize().Category == want {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Key().Normalize().ID < out[j].Key().Normalize().ID
	})
	return out
}

func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.order)
}

func (c *Catalog) Duplicates() []Duplicate {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Duplicate(nil), c.dups...)
}

// RemoveFile drops every entry read from file and returns how many went.
// The remaining entries forget their resolved bases.
func (c *Catalog) RemoveFile(file string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	kept := c.order[:0]
	removed := 0
	for _, k := range c.order {
		if c.entries[k].Source == file {
			delete(c.entries, k)
			delete(c.sources, k)
			removed++
			continue
		}
		kept = append(kept, k)
	}
	c.order = kept
	if removed > 0 {
		for _, k := range c.order {
			c.entries[k].ResetBases()
		}
	}
	return removed
}

// Finalize retries bases that were absent when first resolved, then
// attaches to every entry the extensions its bases carry. Bases are
// finalized before the entries built on them.
func (c *Catalog) Finalize() {
	for _, e := range c.Entries() {
		e.EnsureBasesResolved()
	}
	done := make(map[*entry.Entry]bool)
	var visit func(e *entry.Entry)
	visit = func(e *entry.Entry) {
		if done[e] {
			return
		}
		done[e] = true
		for _, base := range e.BaseEntries() {
			if base != nil {
				visit(base)
			}
		}
		e.InheritExtensions()
	}
	for _, e := range c.Entries() {
		visit(e)
	}
}
