package mcp

import (
	"context"
	"log/slog"
	"sync"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"grimoire/internal/config"
	"grimoire/internal/entry"
	"grimoire/internal/expr"
	"grimoire/internal/parser"
	"grimoire/internal/store"
)

// Catalog is the in-memory view of loaded entries the tools read from.
type Catalog interface {
	Lookup(category, id string) (*entry.Entry, bool)
	Entries() []*entry.Entry
	SourceOf(key entry.Key) string
}

// Querier is the part of the store used for listing, search and
// dependents.
type Querier interface {
	ListEntries(ctx context.Context, filter store.Filter) ([]store.Summary, error)
	Search(ctx context.Context, query, category string) ([]store.SearchResult, error)
	ListDependents(ctx context.Context, category, name string, depth int) ([]store.Dependent, error)
}

type Server struct {
	schema *config.Schema
	parser *parser.Parser
	eval   *expr.Evaluator
	db     Querier
	logger *slog.Logger

	mu  sync.RWMutex
	cat Catalog

	mcp *sdk.Server
}

// NewServer builds the tool server. db may be nil, in which case listing
// reads the catalog and search is unavailable.
func NewServer(schema *config.Schema, p *parser.Parser, cat Catalog, db Querier, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		schema: schema,
		parser: p,
		eval:   expr.New(logger),
		db:     db,
		logger: logger,
		cat:    cat,
		mcp: sdk.NewServer(&sdk.Implementation{
			Name:    "grimoire",
			Version: version,
		}, nil),
	}
	s.registerTools()
	return s
}

// SetCatalog swaps the catalog served by the tools, as after a reload.
func (s *Server) SetCatalog(cat Catalog) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cat = cat
}

func (s *Server) catalog() Catalog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cat
}

func (s *Server) Run(ctx context.Context, transport sdk.Transport) error {
	return s.mcp.Run(ctx, transport)
}
