package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"grimoire/internal/combine"
	"grimoire/internal/entry"
	"grimoire/internal/expr"
	"grimoire/internal/log"
	"grimoire/internal/value"
)

func queryCombineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "combine <category> <name> <key>",
		Short: "Compute an attribute across bases and extensions",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQueryCombine(args[0], args[1], args[2])
		},
	}
	return cmd
}

func runQueryCombine(category, name, key string) error {
	return withEntry(category, name, func(proj *project, e *entry.Entry) error {
		result := combine.Combine(e, key)
		if !result.Defined() {
			fmt.Fprintf(os.Stdout, "%s: %s\n", key, value.Undefined)
			return nil
		}

		fmt.Fprintf(os.Stdout, "%s: %s\n", key, result.Value)
		for _, c := range result.Provenance {
			fmt.Fprintf(os.Stdout, "  from %s: %s\n", c.Source, c.Value)
		}
		if text := e.Expression(key); text != "" {
			params := map[string]string{}
			for _, slot := range e.Slots() {
				if r := combine.Combine(e, slot.Key); r.Defined() {
					params[slot.Key] = r.Value.String()
				}
			}
			computed := expr.New(log.For(proj.logger, log.CompExpr)).Compute(text, params)
			fmt.Fprintf(os.Stdout, "  pending %s = %s\n", text, computed)
		}
		return nil
	})
}
