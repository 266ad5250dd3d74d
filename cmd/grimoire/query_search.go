package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func querySearchCmd() *cobra.Command {
	var category string
	cmd := &cobra.Command{
		Use:   "search <text>",
		Short: "Search stored entries using the full-text index",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuerySearch(strings.Join(args, " "), category)
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "Category to filter")
	return cmd
}

func runQuerySearch(query, category string) error {
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

	results, err := st.Search(ctx, query, category)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Fprintln(os.Stdout, "No matches found.")
		return nil
	}

	for _, result := range results {
		fmt.Fprintf(os.Stdout, "%s (%s) [%s] score=%.2f\n", result.Name, result.Category, result.Source, result.Score)
		if result.Snippet != "" {
			fmt.Fprintf(os.Stdout, "  %s\n", result.Snippet)
		}
	}
	return nil
}
