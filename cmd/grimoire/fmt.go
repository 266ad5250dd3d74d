package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/spf13/cobra"

	"grimoire/internal/parser"
	"grimoire/internal/scan"
)

func fmtCmd() *cobra.Command {
	var write bool
	var diff bool
	cmd := &cobra.Command{
		Use:   "fmt <file>...",
		Short: "Rewrite entry files in canonical form",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if write && diff {
				return fmt.Errorf("--write and --diff are exclusive")
			}
			return runFmt(args, write, diff)
		},
	}
	cmd.Flags().BoolVarP(&write, "write", "w", false, "Write the result back to each file")
	cmd.Flags().BoolVarP(&diff, "diff", "d", false, "Print a diff instead of the formatted text")
	return cmd
}

func runFmt(files []string, write, diff bool) error {
	proj, err := loadProject()
	if err != nil {
		return err
	}

	failed := 0
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		formatted, warnings, err := formatSource(proj.parser, path, string(data))
		if err != nil {
			return err
		}
		if len(warnings) > 0 {
			// text the reader skipped would be lost on rewrite
			for _, w := range warnings {
				fmt.Fprintf(os.Stderr, "%s\n", w)
			}
			failed++
			continue
		}

		switch {
		case write:
			if formatted == string(data) {
				continue
			}
			if err := os.WriteFile(path, []byte(formatted), 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", path, err)
			}
			fmt.Fprintln(os.Stdout, path)
		case diff:
			printLineDiff(os.Stdout, path, string(data), formatted)
		default:
			fmt.Fprint(os.Stdout, formatted)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d file(s) not formatted due to warnings", failed)
	}
	return nil
}

// formatSource reads every entry of text and writes them back in framed
// canonical form.
func formatSource(p *parser.Parser, name, text string) (string, []scan.Warning, error) {
	entries, warnings := p.ParseString(name, text)
	var buf bytes.Buffer
	if err := p.Write(&buf, entries...); err != nil {
		return "", nil, fmt.Errorf("formatting %s: %w", name, err)
	}
	return buf.String(), warnings, nil
}

// printLineDiff writes a line-oriented diff of before and after. Nothing
// is printed when they are equal.
func printLineDiff(out io.Writer, name, before, after string) {
	if before == after {
		return
	}
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	fmt.Fprintf(out, "--- %s\n+++ %s (formatted)\n", name, name)
	for _, d := range diffs {
		prefix := " "
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		}
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			fmt.Fprint(out, prefix, line)
			if !strings.HasSuffix(line, "\n") {
				fmt.Fprintln(out)
			}
		}
	}
}
