package parser

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"grimoire/internal/entry"
	"grimoire/internal/scan"
	"grimoire/internal/schema"
	"grimoire/internal/value"
)

var (
	ErrNoEntryType    = errors.New("no entry type")
	ErrMalformedEntry = errors.New("malformed entry")
)

// Syntax holds the punctuation of the entry text format.
type Syntax struct {
	Terminator       string
	KeyDelimiter     string
	Introducer       string
	CommentPrefix    string
	ExtensionKeyword string
	TypeWords        int
	KeyIndent        int
}

func DefaultSyntax() Syntax {
	return Syntax{
		Terminator:       ".",
		KeyDelimiter:     ";",
		Introducer:       "=",
		CommentPrefix:    "#",
		ExtensionKeyword: "with",
		TypeWords:        2,
		KeyIndent:        2,
	}
}

type Parser struct {
	reg    *schema.Registry
	syntax Syntax
	logger *slog.Logger
}

type Option func(*Parser)

func WithSyntax(s Syntax) Option {
	return func(p *Parser) { p.syntax = s }
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Parser) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func New(reg *schema.Registry, opts ...Option) *Parser {
	p := &Parser{reg: reg, syntax: DefaultSyntax(), logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Parser) Registry() *schema.Registry {
	return p.reg
}

func (p *Parser) Syntax() Syntax {
	return p.syntax
}

func (p *Parser) valueStops() string {
	return p.syntax.KeyDelimiter + p.syntax.Terminator
}

func (p *Parser) wordStops() string {
	return p.syntax.KeyDelimiter + p.syntax.Terminator + p.syntax.Introducer + ","
}

// Read parses the next entry. It returns io.EOF when only whitespace and
// comments remain, and ErrNoEntryType with the reader rewound when the
// text does not start with a known entry type.
func (p *Parser) Read(r *scan.Reader) (*entry.Entry, error) {
	start := r.Pos()
	mark := len(r.Warnings())

	leading := p.readComment(r, -1, -1)
	r.SkipSpace()
	if r.AtEnd() {
		return nil, io.EOF
	}

	cat := p.readType(r)
	if cat == nil {
		r.Seek(start)
		return nil, ErrNoEntryType
	}

	e, err := entry.New(p.reg, cat.Name, "", entry.WithLogger(p.logger))
	if err != nil {
		return nil, err
	}
	e.Source = r.Name()
	e.Span.Start = start

	if err := p.readBody(r, e); err != nil {
		return nil, err
	}

	skipBlanks(r)
	r.Expect("\n")
	trailing := p.readComment(r, 1, 1)
	e.Span.End = r.Pos()

	if strings.TrimSpace(leading) == "" {
		e.Leading = p.DefaultLeading(e)
	} else {
		e.Leading = p.FixComment(leading)
	}
	if strings.TrimSpace(trailing) == "" {
		e.Trailing = p.DefaultTrailing()
	} else {
		e.Trailing = p.FixComment(trailing)
	}

	e.Warnings = append(e.Warnings, r.Warnings()[mark:]...)
	return e, nil
}

func skipBlanks(r *scan.Reader) {
	for {
		c, ok := r.Peek()
		if !ok || (c != ' ' && c != '\t') {
			return
		}
		r.Next()
	}
}

func (p *Parser) readType(r *scan.Reader) *schema.Category {
	var words []string
	for i := 0; i < p.syntax.TypeWords; i++ {
		w, ok := r.ReadWord(p.wordStops())
		if !ok {
			return nil
		}
		words = append(words, w)
		if c, err := p.reg.Category(strings.Join(words, " ")); err == nil {
			return c
		}
	}
	return nil
}

func (p *Parser) readBody(r *scan.Reader, e *entry.Entry) error {
	var extensions []string
	if r.Expect(p.syntax.ExtensionKeyword) {
		for {
			mark := r.Pos()
			name, ok := r.ReadWord(p.wordStops())
			if !ok || strings.ContainsAny(name, p.wordStops()) {
				r.Seek(mark)
				r.Warn(mark, "entry.extension.incomplete", "incomplete extension list")
				break
			}
			extensions = append(extensions, name)
			if !r.Expect(",") {
				break
			}
		}
	}

	raw, _ := r.ReadUntil(p.syntax.Introducer + p.syntax.Terminator)
	name := strings.Join(strings.Fields(raw), " ")
	if name != value.Undefined {
		e.SetName(name)
	}

	for _, x := range extensions {
		e.AddExtension(x)
	}

	switch {
	case r.Expect(p.syntax.Terminator):
		return nil
	case r.Expect(p.syntax.Introducer):
		p.readValues(r, e)
		return nil
	}

	pos := r.Pos()
	r.Warn(pos, "entry.introducer.missing", fmt.Sprintf("expected %q after %s", p.syntax.Introducer, e.String()))
	r.SkipTo(p.syntax.Terminator)
	return fmt.Errorf("%w: %s at line %d", ErrMalformedEntry, e.String(), pos.Line)
}

func (p *Parser) readValues(r *scan.Reader, e *entry.Entry) {
	var keys []string
	for _, s := range e.Slots() {
		if s.Stored() {
			keys = append(keys, s.Key)
		}
	}

	for {
		if r.Expect(p.syntax.Terminator) {
			return
		}
		r.SkipSpace()
		if r.AtEnd() {
			r.Warn(r.Pos(), "entry.terminator.missing", fmt.Sprintf("%s is not terminated", e.String()))
			return
		}

		pos := r.Pos()
		key, ok := r.ExpectAny(keys, true)
		if !ok {
			word, _ := r.ReadWord(p.wordStops())
			r.Seek(pos)
			r.Warn(pos, "entry.key.unknown", fmt.Sprintf("unknown key %q in %s ignored", word, e.String()))
			if p.skipValue(r) {
				return
			}
			continue
		}

		if done := p.readValue(r, e, key); done {
			return
		}
		if r.Expect(p.syntax.Terminator) {
			return
		}
		if !r.Expect(p.syntax.KeyDelimiter) {
			r.Warn(r.Pos(), "entry.delimiter.missing", fmt.Sprintf("expected %q after %s in %s", p.syntax.KeyDelimiter, key, e.String()))
		}
	}
}

// readValue reads the value for key and an optional pending expression.
// It reports true when recovery consumed the entry terminator.
func (p *Parser) readValue(r *scan.Reader, e *entry.Entry, key string) bool {
	slot, err := e.Slot(key)
	if err != nil {
		return p.skipValue(r)
	}

	if r.Expect(string(value.ExpressionOpen)) {
		return p.readExpression(r, e, key)
	}

	pos := r.Pos()
	v, ok := slot.Type.Read(r, p.valueStops())
	if !ok {
		r.Warn(pos, "entry.value.invalid", fmt.Sprintf("invalid %s value for %s in %s", slot.Type, key, e.String()))
		return p.skipValue(r)
	}
	if err := e.SetValue(key, v); err != nil {
		r.Warn(pos, "entry.value.invalid", err.Error())
	}

	if r.Expect(string(value.ExpressionOpen)) {
		return p.readExpression(r, e, key)
	}
	return false
}

func (p *Parser) readExpression(r *scan.Reader, e *entry.Entry, key string) bool {
	pos := r.Pos()
	body, ok := r.ReadBalanced(value.ExpressionOpen, '}')
	if !ok {
		r.Warn(pos, "entry.expression.unclosed", fmt.Sprintf("unclosed expression for %s in %s", key, e.String()))
		return p.skipValue(r)
	}
	e.SetExpression(key, strings.TrimSpace(body))
	return false
}

// skipValue drops input through the next delimiter or terminator and
// reports whether the entry ended.
func (p *Parser) skipValue(r *scan.Reader) bool {
	c, found := r.SkipTo(p.valueStops())
	return !found || string(c) == p.syntax.Terminator
}

// ReadAll reads every entry from r. Text that does not start with an
// entry type is skipped through the next terminator.
func (p *Parser) ReadAll(r *scan.Reader) ([]*entry.Entry, []scan.Warning) {
	var entries []*entry.Entry
	for {
		e, err := p.Read(r)
		if errors.Is(err, io.EOF) {
			break
		}
		if errors.Is(err, ErrNoEntryType) {
			r.SkipSpace()
			pos := r.Pos()
			word, _ := r.ReadWord(p.wordStops())
			r.Warn(pos, "entry.type.unknown", fmt.Sprintf("no entry type at %q", word))
			if _, ok := r.SkipTo(p.syntax.Terminator); !ok {
				break
			}
			continue
		}
		if err != nil {
			continue
		}
		entries = append(entries, e)
	}
	return entries, r.Warnings()
}

func (p *Parser) ParseString(name, text string) ([]*entry.Entry, []scan.Warning) {
	return p.ReadAll(scan.New(name, text, scan.WithLogger(p.logger)))
}

func (p *Parser) ParseFile(path string) ([]*entry.Entry, []scan.Warning, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	entries, warnings := p.ParseString(path, string(data))
	return entries, warnings, nil
}

// Parse reads exactly one entry from text.
func (p *Parser) Parse(text string) (*entry.Entry, error) {
	return p.Read(scan.New("", text, scan.WithLogger(p.logger)))
}
