package parser

import (
	"bufio"
	"io"
	"regexp"
	"strings"

	"grimoire/internal/entry"
	"grimoire/internal/scan"
	"grimoire/internal/value"
)

var continuation = regexp.MustCompile(`\s*\n\s*`)

// Format renders the entry body without its comments.
func (p *Parser) Format(e *entry.Entry) string {
	var b strings.Builder
	b.WriteString(e.Category().Name)
	b.WriteString(" ")
	if exts := e.ExtensionNames(); len(exts) > 0 {
		b.WriteString(p.syntax.ExtensionKeyword)
		b.WriteString(" ")
		b.WriteString(strings.Join(exts, ", "))
		b.WriteString(" ")
	}
	if e.HasName() {
		b.WriteString(p.escapeName(e.Name()))
	} else {
		b.WriteString(value.Undefined)
	}
	b.WriteString(" ")
	b.WriteString(p.syntax.Introducer)
	b.WriteString("\n\n")
	b.WriteString(p.formatValues(e))
	b.WriteString(p.syntax.Terminator)
	b.WriteString("\n")
	return b.String()
}

// String renders the entry framed by its comments, synthesizing default
// comments when the entry has none.
func (p *Parser) String(e *entry.Entry) string {
	leading := e.Leading
	if strings.TrimSpace(leading) == "" {
		leading = p.DefaultLeading(e)
	}
	trailing := e.Trailing
	if strings.TrimSpace(trailing) == "" {
		trailing = p.DefaultTrailing()
	}
	return leading + p.Format(e) + trailing
}

func (p *Parser) formatValues(e *entry.Entry) string {
	width := e.KeyWidth()
	indent := strings.Repeat(" ", p.syntax.KeyIndent)
	stops := p.valueStops()

	var lines []string
	for _, s := range e.Slots() {
		if !s.Stored() {
			continue
		}
		v := e.Get(s.Key)
		expr := e.Expression(s.Key)
		if v == nil && expr == "" {
			continue
		}

		var text string
		switch {
		case v == nil:
			text = "{" + expr + "}"
		case expr != "":
			text = s.Type.Format(v, stops) + " {" + expr + "}"
		default:
			text = s.Type.Format(v, stops)
		}
		text = continuation.ReplaceAllString(text, "\n"+strings.Repeat(" ", width+p.syntax.KeyIndent))

		pad := width - len(s.Key)
		if pad < 1 {
			pad = 1
		}
		lines = append(lines, indent+s.Key+strings.Repeat(" ", pad)+text)
	}
	return strings.Join(lines, p.syntax.KeyDelimiter+"\n")
}

// escapeName escapes the framing runes in name, and a leading extension
// keyword so it is not read back as the start of an extension list.
func (p *Parser) escapeName(name string) string {
	special := p.syntax.Introducer + p.syntax.Terminator
	var b strings.Builder
	if scan.New("", name).Expect(p.syntax.ExtensionKeyword) {
		b.WriteRune('\\')
	}
	for _, c := range name {
		if c == '\\' || strings.ContainsRune(special, c) {
			b.WriteRune('\\')
		}
		b.WriteRune(c)
	}
	return b.String()
}

// Write writes the framed entries to w and moves each entry's span to the
// position of its text in the output.
func (p *Parser) Write(w io.Writer, entries ...*entry.Entry) error {
	bw := bufio.NewWriter(w)
	pos := scan.Position{Line: 1}
	for _, e := range entries {
		text := p.String(e)
		if _, err := bw.WriteString(text); err != nil {
			return err
		}
		start := pos
		pos.Offset += len([]rune(text))
		pos.Line += strings.Count(text, "\n")
		e.Span = entry.Span{Start: start, End: pos}
	}
	return bw.Flush()
}
