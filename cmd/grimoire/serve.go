package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"grimoire/internal/catalog"
	"grimoire/internal/log"
	"grimoire/internal/mcp"
	"grimoire/internal/store"
	"grimoire/internal/watch"
)

func serveCmd() *cobra.Command {
	var watchSources bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(watchSources)
		},
	}
	cmd.Flags().BoolVar(&watchSources, "watch", false, "Reload entries when source files change")
	return cmd
}

func runServe(watchSources bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	proj, err := loadProject()
	if err != nil {
		return err
	}

	st, err := openStore(ctx, proj.cfg)
	if err != nil {
		return err
	}
	defer st.Close(context.Background())

	lookup, err := store.NewLookup(st, proj.parser, proj.cfg.Cache.Entries, log.For(proj.logger, log.CompStore))
	if err != nil {
		return err
	}

	load := func() (*catalog.Catalog, error) {
		cat := catalog.New(
			catalog.WithFallback(lookup),
			catalog.WithLogger(log.For(proj.logger, log.CompCatalog)),
		)
		result, err := catalog.Load(ctx, cat, proj.cfg, proj.parser, st, catalog.Options{})
		if err != nil {
			return nil, err
		}
		for _, item := range result.Errors {
			proj.logger.Warn("loading entries", "error", item)
		}
		proj.logger.Info("entries loaded", "entries", result.EntriesLoaded, "stored", result.EntriesStored, "warnings", len(result.Warnings))
		return cat, nil
	}

	cat, err := load()
	if err != nil {
		return err
	}
	server := mcp.NewServer(proj.schema, proj.parser, cat, st, version, log.For(proj.logger, log.CompMCP))

	if watchSources {
		logger := log.For(proj.logger, log.CompWatch)
		var roots []string
		for _, src := range proj.cfg.Sources {
			roots = append(roots, src.Paths...)
		}
		cfg := watch.DefaultConfig(roots, func(path string) bool {
			return catalog.IsEntryFile(path) && !catalog.IsExcluded(path, proj.cfg.Exclude)
		})
		cfg.Logger = logger
		w, err := watch.New(cfg)
		if err != nil {
			return err
		}
		defer w.Stop()
		changes, err := w.Start()
		if err != nil {
			return err
		}

		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case files := <-changes:
					logger.Info("sources changed", "files", len(files))
					lookup.Invalidate()
					next, err := load()
					if err != nil {
						logger.Error("reload failed", "error", err)
						continue
					}
					server.SetCatalog(next)
				}
			}
		}()
	}

	return server.Run(ctx, &sdk.StdioTransport{})
}
