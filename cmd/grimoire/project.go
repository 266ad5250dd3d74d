package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"grimoire/internal/config"
	"grimoire/internal/log"
	"grimoire/internal/parser"
	"grimoire/internal/store"
	"grimoire/internal/store/postgres"
	"grimoire/internal/store/sqlite"
)

const (
	configFile = "grimoire.yaml"
	schemaFile = "schema.yaml"
)

type project struct {
	cfg    *config.ProjectConfig
	schema *config.Schema
	parser *parser.Parser
	logger *slog.Logger
}

func loadProject() (*project, error) {
	cfg, err := config.LoadProjectConfig(configFile)
	if err != nil {
		return nil, err
	}

	schema, err := config.LoadSchema(schemaFile)
	if err != nil {
		return nil, err
	}
	if err := schema.CheckTypeWords(cfg.Format.TypeWords); err != nil {
		return nil, err
	}
	reg, err := schema.Registry()
	if err != nil {
		return nil, err
	}

	logger, err := log.New(cfg.Log, os.Stderr)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	p := parser.New(reg,
		parser.WithSyntax(syntaxFromConfig(cfg.Format)),
		parser.WithLogger(log.For(logger, log.CompParser)),
	)
	return &project{cfg: cfg, schema: schema, parser: p, logger: logger}, nil
}

func syntaxFromConfig(f config.FormatConfig) parser.Syntax {
	return parser.Syntax{
		Terminator:       f.Terminator,
		KeyDelimiter:     f.KeyDelimiter,
		Introducer:       f.Introducer,
		CommentPrefix:    f.CommentPrefix,
		ExtensionKeyword: f.ExtensionKeyword,
		TypeWords:        f.TypeWords,
		KeyIndent:        f.KeyIndent,
	}
}

// openStore connects to the configured database and makes sure its tables
// exist.
func openStore(ctx context.Context, cfg *config.ProjectConfig) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		var c *postgres.Client
		c, err = postgres.New(ctx, cfg.Database.DSN)
		if err == nil {
			st = c
		}
	default:
		var c *sqlite.Client
		c, err = sqlite.New(ctx, cfg.Database.DSN)
		if err == nil {
			st = c
		}
	}
	if err != nil {
		return nil, err
	}
	if err := st.EnsureSchema(ctx); err != nil {
		st.Close(ctx)
		return nil, fmt.Errorf("preparing database: %w", err)
	}
	return st, nil
}
