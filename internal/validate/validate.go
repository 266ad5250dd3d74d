package validate

import (
	"context"
	"fmt"
	"strings"

	"grimoire/internal/catalog"
	"grimoire/internal/entry"
	"grimoire/internal/scan"
	"grimoire/internal/schema"
	"grimoire/internal/store"
)

type Severity string

const (
	SeverityError Severity = "error"
	SeverityWarn  Severity = "warning"
)

const (
	codeUnresolvedBase       = "unresolved_base"
	codeBaseCycle            = "base_cycle"
	codeUnknownExtension     = "unknown_extension"
	codeExtensionCategory    = "extension_category"
	codeUnknownCategory      = "unknown_category"
	codeParseWarning         = "parse_warning"
	codeDuplicateEntry       = "duplicate_entry"
	codeStoredUnresolvedBase = "stored_unresolved_base"
)

type Issue struct {
	Severity Severity
	Code     string
	Message  string
	Source   string
	Entry    string
	FilePath string
	Line     int
}

type Report struct {
	Issues []Issue
}

func (r *Report) Count(s Severity) int {
	n := 0
	for _, issue := range r.Issues {
		if issue.Severity == s {
			n++
		}
	}
	return n
}

// StoreValidator is the part of a store consulted for stored entries
// whose bases do not exist.
type StoreValidator interface {
	ListUnresolvedBases(ctx context.Context) ([]store.UnresolvedBase, error)
}

// Run checks a loaded catalog. Reader warnings collected while loading are
// reported too; st may be nil.
func Run(ctx context.Context, cat *catalog.Catalog, warnings []scan.Warning, st StoreValidator) (*Report, error) {
	if cat == nil {
		return nil, fmt.Errorf("catalog is required")
	}

	issues := make([]Issue, 0)
	for _, w := range warnings {
		issues = append(issues, issueFromWarning(w, ""))
	}

	for _, e := range cat.Entries() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		source := cat.SourceOf(e.Key())
		issues = append(issues, validateBases(e, source)...)
		for _, w := range e.Warnings {
			if !strings.HasPrefix(w.Code, "extension.") {
				// reader warnings arrive separately and bases are checked above
				continue
			}
			issue := issueFromWarning(w, source)
			issue.Entry = e.String()
			issues = append(issues, issue)
		}
	}

	for _, d := range cat.Duplicates() {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Code:     codeDuplicateEntry,
			Message:  fmt.Sprintf("duplicate entry ignored, first defined in %s", d.Kept),
			Entry:    d.Key.String(),
			FilePath: d.Ignore,
		})
	}

	if st != nil {
		unresolved, err := st.ListUnresolvedBases(ctx)
		if err != nil {
			return nil, fmt.Errorf("list unresolved bases: %w", err)
		}
		for _, u := range unresolved {
			key := entry.Key{Category: u.Category, ID: u.Name}
			if _, ok := cat.Get(key); ok {
				// the catalog check covers loaded entries
				continue
			}
			issues = append(issues, Issue{
				Severity: SeverityWarn,
				Code:     codeStoredUnresolvedBase,
				Message:  fmt.Sprintf("stored base %q not found in %s", u.Base, u.BaseCategory),
				Entry:    key.String(),
			})
		}
	}

	return &Report{Issues: issues}, nil
}

func validateBases(e *entry.Entry, source string) []Issue {
	var issues []Issue
	for _, ref := range e.Bases() {
		if ref.Found {
			continue
		}
		issues = append(issues, Issue{
			Severity: SeverityError,
			Code:     codeUnresolvedBase,
			Message:  fmt.Sprintf("base %q not found in %s", ref.Name, e.BaseCategory()),
			Source:   source,
			Entry:    e.String(),
			FilePath: e.Source,
			Line:     e.Span.Start.Line,
		})
	}
	if e.HasName() && schema.Normalize(e.BaseCategory()) == schema.Normalize(e.Category().Name) && e.IsBasedOn(e.Name()) {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Code:     codeBaseCycle,
			Message:  fmt.Sprintf("%s is based on itself", e.Name()),
			Source:   source,
			Entry:    e.String(),
			FilePath: e.Source,
			Line:     e.Span.Start.Line,
		})
	}
	return issues
}

func issueFromWarning(w scan.Warning, source string) Issue {
	issue := Issue{
		Severity: SeverityWarn,
		Code:     codeParseWarning,
		Message:  w.Message,
		Source:   source,
		FilePath: w.Source,
		Line:     w.Position.Line,
	}
	switch w.Code {
	case "entry.type.unknown":
		issue.Severity = SeverityError
		issue.Code = codeUnknownCategory
	case "extension.unknown":
		issue.Code = codeUnknownExtension
	case "extension.category":
		issue.Code = codeExtensionCategory
	}
	return issue
}
