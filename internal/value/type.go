package value

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"grimoire/internal/scan"
)

// ExpressionOpen starts a pending expression attached to a value.
const ExpressionOpen = '{'

const listSeparator = ","

var lineBreak = regexp.MustCompile(`\s*\n\s*`)

// Type reads and writes the textual form of one kind of value.
type Type struct {
	kind  Kind
	scale *Scale
	elem  *Type
}

func TextType() *Type   { return &Type{kind: KindText} }
func NameType() *Type   { return &Type{kind: KindName} }
func NumberType() *Type { return &Type{kind: KindNumber} }
func FlagType() *Type   { return &Type{kind: KindFlag} }

func OrdinalType(scale *Scale) *Type {
	return &Type{kind: KindOrdinal, scale: scale}
}

func ListOf(elem *Type) *Type {
	return &Type{kind: KindList, elem: elem}
}

func (t *Type) Kind() Kind    { return t.kind }
func (t *Type) Scale() *Scale { return t.scale }
func (t *Type) Elem() *Type   { return t.elem }

func (t *Type) String() string {
	switch t.kind {
	case KindOrdinal:
		if t.scale != nil && t.scale.Name != "" {
			return fmt.Sprintf("ordinal(%s)", t.scale.Name)
		}
	case KindList:
		return "list of " + t.elem.String()
	}
	return string(t.kind)
}

// Zero is the identity value for Add, or nil when the kind has none.
func (t *Type) Zero() Value {
	switch t.kind {
	case KindNumber:
		return Number(0)
	case KindText:
		return Text("")
	case KindFlag:
		return Flag(false)
	case KindList:
		return List{}
	}
	return nil
}

// Read parses a value from r, stopping before any rune in stop. It returns
// (nil, true) for the undefined marker. On failure the reader is restored.
func (t *Type) Read(r *scan.Reader, stop string) (Value, bool) {
	start := r.Pos()
	if r.Expect(Undefined) {
		return nil, true
	}
	v, ok := t.read(r, stop)
	if !ok {
		r.Seek(start)
	}
	return v, ok
}

func (t *Type) read(r *scan.Reader, stop string) (Value, bool) {
	r.SkipSpace()
	switch t.kind {
	case KindText:
		return readText(r)
	case KindName:
		raw, _ := r.ReadUntil(stop + string(ExpressionOpen))
		name := compact(raw)
		if name == "" {
			return nil, false
		}
		return Name(name), true
	case KindNumber:
		return readNumber(r)
	case KindFlag:
		word, ok := r.ExpectAny([]string{"yes", "no", "true", "false"}, true)
		if !ok {
			return nil, false
		}
		w := strings.ToLower(word)
		return Flag(w == "yes" || w == "true"), true
	case KindOrdinal:
		if t.scale == nil {
			return nil, false
		}
		word, ok := r.ExpectAny(t.scale.Values, true)
		if !ok {
			return nil, false
		}
		return t.scale.Lookup(word)
	case KindList:
		return t.readList(r, stop)
	}
	return nil, false
}

func (t *Type) readList(r *scan.Reader, stop string) (Value, bool) {
	elemStop := stop + listSeparator
	first, ok := t.elem.Read(r, elemStop)
	if !ok {
		return nil, false
	}
	list := List{first}
	for {
		mark := r.Pos()
		if !r.Expect(listSeparator) {
			break
		}
		next, ok := t.elem.Read(r, elemStop)
		if !ok {
			r.Seek(mark)
			break
		}
		list = append(list, next)
	}
	return list, true
}

func readText(r *scan.Reader) (Value, bool) {
	if !r.Expect(`"`) {
		return nil, false
	}
	raw, found := r.ReadUntil(`"`)
	if !found {
		return nil, false
	}
	r.Next()
	return Text(lineBreak.ReplaceAllString(raw, "\n")), true
}

func readNumber(r *scan.Reader) (Value, bool) {
	var b strings.Builder
	if c, ok := r.Peek(); ok && (c == '-' || c == '+') {
		r.Next()
		b.WriteRune(c)
	}
	digits := 0
	for {
		c, ok := r.Peek()
		if !ok || !unicode.IsDigit(c) {
			break
		}
		r.Next()
		b.WriteRune(c)
		digits++
	}
	if digits == 0 {
		return nil, false
	}
	if c, ok := r.Peek(); ok && (unicode.IsLetter(c) || c == '_') {
		return nil, false
	}
	n, err := strconv.ParseInt(b.String(), 10, 64)
	if err != nil {
		return nil, false
	}
	return Number(n), true
}

// Format renders v so that Read with the same stop runes yields it back.
func (t *Type) Format(v Value, stop string) string {
	if v == nil {
		return Undefined
	}
	switch x := v.(type) {
	case Text:
		return `"` + escape(string(x), `"`) + `"`
	case Name:
		return escape(string(x), stop+string(ExpressionOpen))
	case List:
		elem := t.elem
		if elem == nil {
			elem = NameType()
		}
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = elem.Format(e, stop+listSeparator)
		}
		return strings.Join(parts, listSeparator+" ")
	}
	return v.String()
}

// Parse reads a value from the start of text and returns what is left.
func (t *Type) Parse(text string) (Value, string, error) {
	r := scan.New("", text)
	v, ok := t.Read(r, "")
	if !ok {
		return nil, text, fmt.Errorf("cannot read %s from %q", t, text)
	}
	return v, strings.TrimSpace(r.Rest()), nil
}

func escape(s, special string) string {
	var b strings.Builder
	for _, c := range s {
		if c == '\\' || strings.ContainsRune(special, c) {
			b.WriteRune('\\')
		}
		b.WriteRune(c)
	}
	return b.String()
}

func compact(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
