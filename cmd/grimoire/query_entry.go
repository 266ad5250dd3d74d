package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"grimoire/internal/entry"
	"grimoire/internal/log"
	"grimoire/internal/store"
)

func queryEntryCmd() *cobra.Command {
	var dm bool
	cmd := &cobra.Command{
		Use:   "entry <category> <name>",
		Short: "Display a stored entry and its attributes",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQueryEntry(args[0], args[1], dm)
		},
	}
	cmd.Flags().BoolVar(&dm, "dm", false, "Include dm-only attributes")
	return cmd
}

// withEntry fetches one stored entry with its bases resolvable through the
// store and hands it to fn.
func withEntry(category, name string, fn func(p *project, e *entry.Entry) error) error {
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

	lookup, err := store.NewLookup(st, proj.parser, proj.cfg.Cache.Entries, log.For(proj.logger, log.CompStore))
	if err != nil {
		return err
	}
	e, ok := lookup.Lookup(category, name)
	if !ok {
		return fmt.Errorf("no %s found for %q", category, name)
	}
	return fn(proj, e)
}

func runQueryEntry(category, name string, dm bool) error {
	return withEntry(category, name, func(proj *project, e *entry.Entry) error {
		fmt.Fprintf(os.Stdout, "Name: %s\n", e.Name())
		fmt.Fprintf(os.Stdout, "Category: %s\n", e.Category().Name)
		if bases := e.BaseNames(); len(bases) > 0 {
			fmt.Fprintf(os.Stdout, "Bases: %s\n", joinValues(bases))
		}
		if exts := e.ExtensionNames(); len(exts) > 0 {
			fmt.Fprintf(os.Stdout, "Extensions: %s\n", joinValues(exts))
		}
		if e.Source != "" {
			fmt.Fprintf(os.Stdout, "Source: %s\n", e.Source)
		}

		var lines []string
		for _, slot := range e.VisibleSlots(dm) {
			if v := e.Get(slot.Key); v != nil {
				lines = append(lines, fmt.Sprintf("  %s: %s", slot.Key, v))
			}
		}
		if len(lines) > 0 {
			fmt.Fprintln(os.Stdout, "Attributes:")
			for _, line := range lines {
				fmt.Fprintln(os.Stdout, line)
			}
		}

		fmt.Fprintln(os.Stdout)
		fmt.Fprint(os.Stdout, proj.parser.Format(e))
		return nil
	})
}
