package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"grimoire/internal/catalog"
	"grimoire/internal/log"
	"grimoire/internal/validate"
)

func validateCmd() *cobra.Command {
	var stored bool
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Run consistency checks against the entry sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(stored)
		},
	}
	cmd.Flags().BoolVar(&stored, "stored", false, "Also check entries stored in the database")
	return cmd
}

func runValidate(stored bool) error {
	ctx := context.Background()

	proj, err := loadProject()
	if err != nil {
		return err
	}

	cat := catalog.New(catalog.WithLogger(log.For(proj.logger, log.CompCatalog)))
	result, err := catalog.Load(ctx, cat, proj.cfg, proj.parser, nil, catalog.Options{})
	if err != nil {
		return err
	}
	for _, item := range result.Errors {
		fmt.Fprintf(os.Stderr, "warning: %v\n", item)
	}

	var validator validate.StoreValidator
	if stored {
		st, err := openStore(ctx, proj.cfg)
		if err != nil {
			return err
		}
		defer st.Close(ctx)
		validator = st
	}

	report, err := validate.Run(ctx, cat, result.Warnings, validator)
	if err != nil {
		return err
	}

	var errorIssues []validate.Issue
	var warnIssues []validate.Issue
	for _, issue := range report.Issues {
		switch issue.Severity {
		case validate.SeverityError:
			errorIssues = append(errorIssues, issue)
		case validate.SeverityWarn:
			warnIssues = append(warnIssues, issue)
		}
	}

	if len(errorIssues) == 0 && len(warnIssues) == 0 {
		fmt.Fprintf(os.Stdout, "No issues found in %d entries.\n", cat.Len())
		return nil
	}

	if len(errorIssues) > 0 {
		fmt.Fprintf(os.Stdout, "Errors (%d):\n", len(errorIssues))
		printIssues(os.Stdout, errorIssues)
	}
	if len(warnIssues) > 0 {
		if len(errorIssues) > 0 {
			fmt.Fprintln(os.Stdout, "")
		}
		fmt.Fprintf(os.Stdout, "Warnings (%d):\n", len(warnIssues))
		printIssues(os.Stdout, warnIssues)
	}

	if len(errorIssues) > 0 {
		return fmt.Errorf("validation found errors")
	}
	return nil
}

func printIssues(out io.Writer, issues []validate.Issue) {
	for _, issue := range issues {
		location := issue.Entry
		if issue.Source != "" {
			location = fmt.Sprintf("%s [%s]", issue.Entry, issue.Source)
		}
		if issue.FilePath != "" {
			file := issue.FilePath
			if issue.Line > 0 {
				file = fmt.Sprintf("%s:%d", file, issue.Line)
			}
			if location == "" {
				location = file
			} else {
				location = fmt.Sprintf("%s (%s)", location, file)
			}
		}
		fmt.Fprintf(out, "  - %s: %s (%s)\n", location, issue.Message, issue.Code)
	}
}
