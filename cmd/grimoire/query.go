package main

import "github.com/spf13/cobra"

func queryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Query entries from the CLI",
	}
	cmd.AddCommand(queryEntryCmd())
	cmd.AddCommand(queryCombineCmd())
	cmd.AddCommand(queryListCmd())
	cmd.AddCommand(querySearchCmd())
	cmd.AddCommand(queryDependentsCmd())
	cmd.AddCommand(querySQLCmd())
	return cmd
}
