package value

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

type Kind string

const (
	KindText    Kind = "text"
	KindName    Kind = "name"
	KindNumber  Kind = "number"
	KindOrdinal Kind = "ordinal"
	KindFlag    Kind = "flag"
	KindList    Kind = "list"
)

// Undefined is the textual marker for a slot that has no value.
const Undefined = "$undefined$"

var (
	ErrUnsupported = errors.New("operation not supported")
	ErrMismatch    = errors.New("mismatched value kinds")
)

// Value is a typed attribute value. A nil Value means undefined.
type Value interface {
	Kind() Kind
	String() string
}

type Text string

func (Text) Kind() Kind       { return KindText }
func (v Text) String() string { return string(v) }

type Name string

func (Name) Kind() Kind       { return KindName }
func (v Name) String() string { return string(v) }

type Number int64

func (Number) Kind() Kind       { return KindNumber }
func (v Number) String() string { return strconv.FormatInt(int64(v), 10) }

type Flag bool

func (Flag) Kind() Kind { return KindFlag }
func (v Flag) String() string {
	if v {
		return "yes"
	}
	return "no"
}

// Scale is the ordered set of values an ordinal may take.
type Scale struct {
	Name   string
	Values []string
}

func NewScale(name string, values ...string) *Scale {
	return &Scale{Name: name, Values: values}
}

func (s *Scale) Lookup(text string) (Ordinal, bool) {
	for i, v := range s.Values {
		if strings.EqualFold(v, strings.TrimSpace(text)) {
			return Ordinal{Index: i, Scale: s}, true
		}
	}
	return Ordinal{}, false
}

type Ordinal struct {
	Index int
	Scale *Scale
}

func (Ordinal) Kind() Kind { return KindOrdinal }
func (v Ordinal) String() string {
	if v.Scale == nil || v.Index < 0 || v.Index >= len(v.Scale.Values) {
		return Undefined
	}
	return v.Scale.Values[v.Index]
}

type List []Value

func (List) Kind() Kind { return KindList }
func (v List) String() string {
	parts := make([]string, 0, len(v))
	for _, e := range v {
		if e == nil {
			parts = append(parts, Undefined)
			continue
		}
		parts = append(parts, e.String())
	}
	return strings.Join(parts, ", ")
}

// Add combines two values of the same kind: numbers sum, texts join with a
// space, flags or, and lists concatenate. A list absorbs a single element.
func Add(a, b Value) (Value, error) {
	if a == nil {
		return b, nil
	}
	if b == nil {
		return a, nil
	}
	if l, ok := a.(List); ok {
		out := make(List, 0, len(l)+1)
		out = append(out, l...)
		if other, ok := b.(List); ok {
			return append(out, other...), nil
		}
		return append(out, b), nil
	}
	if a.Kind() != b.Kind() {
		return nil, fmt.Errorf("%w: %s + %s", ErrMismatch, a.Kind(), b.Kind())
	}
	switch x := a.(type) {
	case Number:
		return x + b.(Number), nil
	case Text:
		y := b.(Text)
		if x == "" {
			return y, nil
		}
		if y == "" {
			return x, nil
		}
		return x + " " + y, nil
	case Flag:
		return x || b.(Flag), nil
	}
	return nil, fmt.Errorf("%w: add on %s", ErrUnsupported, a.Kind())
}

// Compare orders two values of an ordered kind. Numbers compare
// numerically, ordinals by their position in a shared scale, and names
// case-insensitively.
func Compare(a, b Value) (int, error) {
	if a == nil || b == nil {
		return 0, fmt.Errorf("%w: compare with undefined", ErrUnsupported)
	}
	if a.Kind() != b.Kind() {
		return 0, fmt.Errorf("%w: %s vs %s", ErrMismatch, a.Kind(), b.Kind())
	}
	switch x := a.(type) {
	case Number:
		return cmpInt(int64(x), int64(b.(Number))), nil
	case Ordinal:
		y := b.(Ordinal)
		if x.Scale != y.Scale {
			return 0, fmt.Errorf("%w: ordinals from different scales", ErrMismatch)
		}
		return cmpInt(int64(x.Index), int64(y.Index)), nil
	case Name:
		return strings.Compare(strings.ToLower(string(x)), strings.ToLower(string(b.(Name)))), nil
	}
	return 0, fmt.Errorf("%w: compare on %s", ErrUnsupported, a.Kind())
}

func Ordered(k Kind) bool {
	switch k {
	case KindNumber, KindOrdinal, KindName:
		return true
	}
	return false
}

// Additive reports whether Add folds two values of kind k.
func Additive(k Kind) bool {
	switch k {
	case KindNumber, KindText, KindFlag, KindList:
		return true
	}
	return false
}

func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch x := a.(type) {
	case Name:
		return strings.EqualFold(string(x), string(b.(Name)))
	case List:
		y := b.(List)
		if len(x) != len(y) {
			return false
		}
		for i := range x {
			if !Equal(x[i], y[i]) {
				return false
			}
		}
		return true
	case Ordinal:
		y := b.(Ordinal)
		return x.Index == y.Index && x.Scale == y.Scale
	}
	return a == b
}

// Empty reports whether v is undefined or carries no content.
func Empty(v Value) bool {
	if v == nil {
		return true
	}
	switch x := v.(type) {
	case Text:
		return strings.TrimSpace(string(x)) == ""
	case Name:
		return strings.TrimSpace(string(x)) == ""
	case List:
		return len(x) == 0
	}
	return false
}

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
