package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"grimoire/internal/store"
)

func queryListCmd() *cobra.Command {
	var filter store.Filter
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored entries with optional filters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQueryList(filter)
		},
	}
	cmd.Flags().StringVar(&filter.Category, "category", "", "Category to filter")
	cmd.Flags().StringVar(&filter.Source, "source", "", "Source to filter")
	cmd.Flags().StringVar(&filter.Extension, "extension", "", "Extension to filter")
	return cmd
}

func runQueryList(filter store.Filter) error {
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

	items, err := st.ListEntries(ctx, filter)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Fprintln(os.Stdout, "No entries found.")
		return nil
	}

	for _, item := range items {
		line := fmt.Sprintf("%s (%s) [%s]", item.Name, item.Category, item.Source)
		if len(item.Bases) > 0 {
			line += " based on " + joinValues(item.Bases)
		}
		if len(item.Extensions) > 0 {
			line += " with " + joinValues(item.Extensions)
		}
		fmt.Fprintln(os.Stdout, line)
	}
	return nil
}

func joinValues(values []string) string {
	return strings.Join(values, ", ")
}
