package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"grimoire/internal/expr"
)

func evalCmd() *cobra.Command {
	var paramPairs []string
	cmd := &cobra.Command{
		Use:   "eval <text>",
		Short: "Substitute $parameters and evaluate [[expressions]] in text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := parseParamPairs(paramPairs)
			if err != nil {
				return err
			}
			text := strings.Join(args, " ")
			fmt.Fprintln(os.Stdout, expr.New(nil).Compute(text, params))
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&paramPairs, "param", nil, "Parameter as name=value (repeatable)")
	return cmd
}
