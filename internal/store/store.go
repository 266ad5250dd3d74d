package store

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("entry not found")

// Store persists entries in their canonical text form together with the
// columns needed to list, search and link them without parsing.
type Store interface {
	Close(ctx context.Context) error
	EnsureSchema(ctx context.Context) error

	UpsertEntry(ctx context.Context, rec Record) (string, error)
	ReplaceFile(ctx context.Context, source, file string, recs []Record) (int64, error)
	RemoveStaleEntries(ctx context.Context, source string, currentFiles []string) (int64, error)
	GetSourceHashes(ctx context.Context, source string) (map[string]string, error)

	GetEntry(ctx context.Context, category, name string) (*Record, error)
	ListEntries(ctx context.Context, f Filter) ([]Summary, error)
	ListDependents(ctx context.Context, category, name string, depth int) ([]Dependent, error)
	ListUnresolvedBases(ctx context.Context) ([]UnresolvedBase, error)
	Search(ctx context.Context, query, category string) ([]SearchResult, error)

	RunSQL(ctx context.Context, query string, params map[string]any) ([]map[string]any, error)
}

const MaxDependentDepth = 5
