package parser

import (
	"regexp"
	"strings"

	"grimoire/internal/entry"
	"grimoire/internal/scan"
)

var (
	blankRuns      = regexp.MustCompile(`([ \t\f]*\n){3,}`)
	trailingDashes = regexp.MustCompile(`[ \t]*-{3,}[ \t]*(\n|$)`)
)

// readComment consumes comment lines and blank lines. A negative limit is
// unlimited; maxComments counts comment blocks closed by a blank line.
func (p *Parser) readComment(r *scan.Reader, maxComments, maxLines int) string {
	var b strings.Builder
	afterComment := false
	for !r.AtEnd() && maxComments != 0 && maxLines != 0 {
		pos := r.Pos()
		line := r.ReadLine()
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
			b.WriteString("\n")
			if afterComment && maxComments > 0 {
				maxComments--
				afterComment = false
			}
		case strings.HasPrefix(trimmed, p.syntax.CommentPrefix):
			b.WriteString(line)
			b.WriteString("\n")
			if maxLines > 0 {
				maxLines--
			}
			afterComment = true
		default:
			r.Seek(pos)
			return b.String()
		}
	}
	return b.String()
}

// FixComment limits blank runs to one empty line and normalizes header
// and footer rulers.
func (p *Parser) FixComment(c string) string {
	prefix := regexp.QuoteMeta(p.syntax.CommentPrefix)
	c = blankRuns.ReplaceAllString(c, "\n\n")
	c = regexp.MustCompile(`(^|\n)([ \t]*)`+prefix+`-{6,}`).
		ReplaceAllString(c, "${1}${2}"+escapeTemplate(p.syntax.CommentPrefix)+"-----")
	c = trailingDashes.ReplaceAllString(c, "${1}")
	c = regexp.MustCompile(`(^|\n)([ \t]*)`+prefix+`\.{6,}[ \t]*(\n|$)`).
		ReplaceAllString(c, "${1}${2}"+escapeTemplate(p.syntax.CommentPrefix)+".....\n")
	return c
}

func (p *Parser) DefaultLeading(e *entry.Entry) string {
	if !e.HasName() {
		return ""
	}
	return p.syntax.CommentPrefix + "----- " + e.Name() + "\n\n"
}

func (p *Parser) DefaultTrailing() string {
	return "\n" + p.syntax.CommentPrefix + ".....\n"
}

func escapeTemplate(s string) string {
	return strings.ReplaceAll(s, "$", "$$")
}
