package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"grimoire/internal/store"
)

func queryDependentsCmd() *cobra.Command {
	var depth int
	cmd := &cobra.Command{
		Use:   "dependents <category> <name>",
		Short: "List entries built on a base entry",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if depth < 1 || depth > store.MaxDependentDepth {
				return fmt.Errorf("--depth must be between 1 and %d", store.MaxDependentDepth)
			}
			return runQueryDependents(args[0], args[1], depth)
		},
	}
	cmd.Flags().IntVar(&depth, "depth", 1, "Maximum traversal depth")
	return cmd
}

func runQueryDependents(category, name string, depth int) error {
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

	deps, err := st.ListDependents(ctx, category, name, depth)
	if err != nil {
		return err
	}
	if len(deps) == 0 {
		fmt.Fprintln(os.Stdout, "No dependents found.")
		return nil
	}

	for _, d := range deps {
		indent := strings.Repeat("  ", d.Depth-1)
		fmt.Fprintf(os.Stdout, "%s%s (%s) [%s] via %s\n", indent, d.Name, d.Category, d.Source, d.Via)
	}
	return nil
}
