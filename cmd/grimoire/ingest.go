package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"grimoire/internal/catalog"
	"grimoire/internal/log"
)

var ingestFull bool

func ingestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Synchronise the database with entry source files",
		RunE:  runIngest,
	}
	cmd.Flags().BoolVar(&ingestFull, "full", false, "Force full re-ingestion (ignore incremental hashes)")
	return cmd
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	proj, err := loadProject()
	if err != nil {
		return err
	}

	st, err := openStore(ctx, proj.cfg)
	if err != nil {
		return err
	}
	defer st.Close(ctx)

	cat := catalog.New(catalog.WithLogger(log.For(proj.logger, log.CompCatalog)))
	result, err := catalog.Load(ctx, cat, proj.cfg, proj.parser, st, catalog.Options{Full: ingestFull})
	if err != nil {
		return err
	}

	fmt.Fprintln(os.Stdout, "Ingestion complete.")
	fmt.Fprintf(os.Stdout, "  Files read:      %d\n", result.FilesRead)
	fmt.Fprintf(os.Stdout, "  Entries loaded:  %d\n", result.EntriesLoaded)
	fmt.Fprintf(os.Stdout, "  Entries stored:  %d\n", result.EntriesStored)
	fmt.Fprintf(os.Stdout, "  Entries removed: %d\n", result.EntriesRemoved)
	fmt.Fprintf(os.Stdout, "  Files skipped:   %d\n", result.FilesSkipped)
	if len(result.Warnings) > 0 {
		fmt.Fprintf(os.Stdout, "  Warnings:        %d (run validate for details)\n", len(result.Warnings))
	}

	if len(result.Errors) > 0 {
		fmt.Fprintf(os.Stdout, "\nErrors (%d):\n", len(result.Errors))
		for _, item := range result.Errors {
			fmt.Fprintf(os.Stdout, "  - %v\n", item)
		}
		return fmt.Errorf("ingestion completed with errors")
	}

	return nil
}
