package scan

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"unicode"
)

type Position struct {
	Offset int
	Line   int
}

type Warning struct {
	Source   string
	Position Position
	Code     string
	Message  string
}

func (w Warning) String() string {
	if w.Source == "" {
		return fmt.Sprintf("line %d: %s (%s)", w.Position.Line, w.Message, w.Code)
	}
	return fmt.Sprintf("%s:%d: %s (%s)", w.Source, w.Position.Line, w.Message, w.Code)
}

// Reader is a rewindable cursor over entry text. Positions are rune
// offsets so that Seek always lands on a character boundary.
type Reader struct {
	name     string
	src      []rune
	pos      int
	line     int
	warnings []Warning
	logger   *slog.Logger
}

type Option func(*Reader)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Reader) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func New(name, text string, opts ...Option) *Reader {
	r := &Reader{
		name:   name,
		src:    []rune(text),
		line:   1,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Reader) Name() string {
	return r.name
}

func (r *Reader) Pos() Position {
	return Position{Offset: r.pos, Line: r.line}
}

func (r *Reader) Seek(p Position) {
	if p.Offset < 0 {
		p.Offset = 0
	}
	if p.Offset > len(r.src) {
		p.Offset = len(r.src)
	}
	r.pos = p.Offset
	r.line = p.Line
}

func (r *Reader) AtEnd() bool {
	return r.pos >= len(r.src)
}

func (r *Reader) Peek() (rune, bool) {
	if r.AtEnd() {
		return 0, false
	}
	return r.src[r.pos], true
}

func (r *Reader) Next() (rune, bool) {
	if r.AtEnd() {
		return 0, false
	}
	c := r.src[r.pos]
	r.pos++
	if c == '\n' {
		r.line++
	}
	return c, true
}

func (r *Reader) SkipSpace() {
	for {
		c, ok := r.Peek()
		if !ok || !unicode.IsSpace(c) {
			return
		}
		r.Next()
	}
}

// Rest returns the unread text without consuming it.
func (r *Reader) Rest() string {
	return string(r.src[r.pos:])
}

func (r *Reader) Slice(from, to Position) string {
	if from.Offset < 0 || to.Offset > len(r.src) || from.Offset > to.Offset {
		return ""
	}
	return string(r.src[from.Offset:to.Offset])
}

// Expect consumes text if it comes next. Runs of whitespace in text match
// any run of whitespace in the input, and a text ending in a word character
// only matches at a word boundary. A whitespace-only text must match
// exactly. On failure the reader is left where it was.
func (r *Reader) Expect(text string) bool {
	return r.expect(text, false)
}

func (r *Reader) ExpectFold(text string) bool {
	return r.expect(text, true)
}

func (r *Reader) expect(text string, fold bool) bool {
	start := r.Pos()
	words := strings.Fields(text)
	if len(words) == 0 {
		if text == "" {
			return false
		}
		for _, want := range text {
			got, ok := r.Next()
			if !ok || got != want {
				r.Seek(start)
				return false
			}
		}
		return true
	}

	for _, word := range words {
		r.SkipSpace()
		for _, want := range word {
			got, ok := r.Next()
			if !ok || !sameRune(got, want, fold) {
				r.Seek(start)
				return false
			}
		}
	}

	last := []rune(words[len(words)-1])
	if isWordRune(last[len(last)-1]) {
		if next, ok := r.Peek(); ok && isWordRune(next) {
			r.Seek(start)
			return false
		}
	}
	return true
}

// ExpectAny tries the candidates longest first and returns the one that
// matched, so that "hit dice" wins over "hit".
func (r *Reader) ExpectAny(candidates []string, fold bool) (string, bool) {
	sorted := make([]string, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i]) > len(sorted[j])
	})
	for _, c := range sorted {
		if r.expect(c, fold) {
			return c, true
		}
	}
	return "", false
}

// ReadWord skips whitespace and reads up to the next whitespace or stop
// rune. A stop rune at the cursor is returned as a word of its own.
func (r *Reader) ReadWord(stop string) (string, bool) {
	r.SkipSpace()
	var b strings.Builder
	for {
		c, ok := r.Peek()
		if !ok || unicode.IsSpace(c) {
			break
		}
		if strings.ContainsRune(stop, c) {
			if b.Len() == 0 {
				r.Next()
				b.WriteRune(c)
			}
			break
		}
		r.Next()
		b.WriteRune(c)
	}
	if b.Len() == 0 {
		return "", false
	}
	return b.String(), true
}

// ReadUntil reads up to, but not including, the next unescaped stop rune.
// A backslash makes the following rune literal. The boolean reports whether
// a stop rune was reached before the end of input.
func (r *Reader) ReadUntil(stop string) (string, bool) {
	var b strings.Builder
	for {
		c, ok := r.Peek()
		if !ok {
			return b.String(), false
		}
		if c == '\\' {
			r.Next()
			if escaped, ok := r.Next(); ok {
				b.WriteRune(escaped)
			}
			continue
		}
		if strings.ContainsRune(stop, c) {
			return b.String(), true
		}
		r.Next()
		b.WriteRune(c)
	}
}

// ReadLine consumes through the next newline and returns the line without it.
func (r *Reader) ReadLine() string {
	var b strings.Builder
	for {
		c, ok := r.Next()
		if !ok || c == '\n' {
			return b.String()
		}
		b.WriteRune(c)
	}
}

// SkipTo consumes input through the first stop rune and returns it.
func (r *Reader) SkipTo(stop string) (rune, bool) {
	for {
		c, ok := r.Next()
		if !ok {
			return 0, false
		}
		if strings.ContainsRune(stop, c) {
			return c, true
		}
	}
}

// ReadBalanced reads the body of a bracketed group whose opening rune has
// already been consumed, honoring nested groups.
func (r *Reader) ReadBalanced(open, close rune) (string, bool) {
	start := r.Pos()
	depth := 1
	var b strings.Builder
	for {
		c, ok := r.Next()
		if !ok {
			r.Seek(start)
			return "", false
		}
		switch c {
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return b.String(), true
			}
		}
		b.WriteRune(c)
	}
}

func (r *Reader) Warn(pos Position, code, message string) {
	w := Warning{Source: r.name, Position: pos, Code: code, Message: message}
	r.warnings = append(r.warnings, w)
	r.logger.Warn(message, "source", r.name, "line", pos.Line, "code", code)
}

func (r *Reader) Warnings() []Warning {
	return r.warnings
}

// TakeWarnings returns the pending warnings and clears them.
func (r *Reader) TakeWarnings() []Warning {
	w := r.warnings
	r.warnings = nil
	return w
}

func sameRune(a, b rune, fold bool) bool {
	if a == b {
		return true
	}
	return fold && unicode.ToLower(a) == unicode.ToLower(b)
}

func isWordRune(c rune) bool {
	return c == '_' || unicode.IsLetter(c) || unicode.IsDigit(c)
}
