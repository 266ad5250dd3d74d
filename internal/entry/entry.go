package entry

import (
	"fmt"
	"log/slog"
	"strings"

	"grimoire/internal/scan"
	"grimoire/internal/schema"
	"grimoire/internal/value"
)

type Key struct {
	Category string
	ID       string
	Parent   string
}

func (k Key) String() string {
	s := k.Category + "/" + k.ID
	if k.Parent != "" {
		return k.Parent + "/" + s
	}
	return s
}

// Normalize folds case and whitespace so that keys compare the way names
// are matched in text.
func (k Key) Normalize() Key {
	return Key{
		Category: schema.Normalize(k.Category),
		ID:       schema.Normalize(k.ID),
		Parent:   schema.Normalize(k.Parent),
	}
}

// Lookup finds entries by category and id. Implementations decide where
// entries live; an entry only ever holds the keys of its bases.
type Lookup interface {
	Lookup(category, id string) (*Entry, bool)
}

type BaseRef struct {
	Name  string
	Key   Key
	Found bool
}

type Span struct {
	Start scan.Position
	End   scan.Position
}

type attached struct {
	name string
	ext  *schema.Extension
}

type Entry struct {
	reg      *schema.Registry
	category *schema.Category
	name     string
	parent   string

	baseNames []string
	bases     []BaseRef

	extensions []attached
	values     map[string]value.Value
	exprs      map[string]string

	Leading  string
	Trailing string
	Span     Span
	Source   string
	Warnings []scan.Warning

	lookup Lookup
	logger *slog.Logger
}

type Option func(*Entry)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Entry) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func WithLookup(l Lookup) Option {
	return func(e *Entry) { e.lookup = l }
}

func WithParent(parent Key) Option {
	return func(e *Entry) { e.parent = parent.String() }
}

func New(reg *schema.Registry, category, name string, opts ...Option) (*Entry, error) {
	cat, err := reg.Category(category)
	if err != nil {
		return nil, err
	}
	e := &Entry{
		reg:      reg,
		category: cat,
		name:     strings.Join(strings.Fields(name), " "),
		values:   make(map[string]value.Value),
		exprs:    make(map[string]string),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func (e *Entry) Registry() *schema.Registry {
	return e.reg
}

func (e *Entry) Category() *schema.Category {
	return e.category
}

func (e *Entry) Name() string {
	return e.name
}

func (e *Entry) HasName() bool {
	return e.name != ""
}

func (e *Entry) SetName(name string) {
	e.name = strings.Join(strings.Fields(name), " ")
}

func (e *Entry) Logger() *slog.Logger {
	return e.logger
}

// SetLookup changes where bases are resolved and drops any cached refs.
func (e *Entry) SetLookup(l Lookup) {
	e.lookup = l
	e.bases = nil
}

func (e *Entry) Key() Key {
	return Key{Category: e.category.Name, ID: e.name, Parent: e.parent}
}

func (e *Entry) BaseCategory() string {
	return e.reg.BaseCategory(e.category.Name)
}

func (e *Entry) String() string {
	return e.Key().String()
}

func (e *Entry) Expression(key string) string {
	return e.exprs[schema.Normalize(key)]
}

// Slots is the effective schema: the category's slots followed by the
// slots of each attached extension in attach order.
func (e *Entry) Slots() []*schema.Slot {
	slots, _ := e.reg.Slots(e.category.Name)
	if len(e.extensions) == 0 {
		return slots
	}
	out := make([]*schema.Slot, 0, len(slots))
	out = append(out, slots...)
	for _, a := range e.extensions {
		out = append(out, a.ext.Slots...)
	}
	return out
}

func (e *Entry) Slot(key string) (*schema.Slot, error) {
	for _, s := range e.Slots() {
		if strings.EqualFold(s.Key, key) {
			return s, nil
		}
	}
	return nil, fmt.Errorf("%w: %s has no %q", schema.ErrUnknownSlot, e.category.Name, key)
}

// VisibleSlots filters the effective schema for a dm or player view.
func (e *Entry) VisibleSlots(dm bool) []*schema.Slot {
	var out []*schema.Slot
	for _, s := range e.Slots() {
		if s.Visible(dm) {
			out = append(out, s)
		}
	}
	return out
}

func (e *Entry) KeyWidth() int {
	w := e.reg.KeyWidth(e.category.Name)
	for _, a := range e.extensions {
		if x := schema.Width(a.ext.Slots); x > w {
			w = x
		}
	}
	return w
}

// Policy returns the combination policy for key. The first attached
// extension that overrides it wins over the slot's own policy.
func (e *Entry) Policy(key string) schema.Policy {
	for _, a := range e.extensions {
		if p, ok := a.ext.Policy(key); ok {
			return p
		}
	}
	if s, err := e.Slot(key); err == nil {
		return s.Policy
	}
	return schema.First
}

func (e *Entry) Get(key string) value.Value {
	switch schema.Normalize(key) {
	case schema.NameKey:
		if e.name == "" {
			return nil
		}
		return value.Name(e.name)
	case schema.BaseKey:
		if len(e.baseNames) == 0 {
			return nil
		}
		list := make(value.List, len(e.baseNames))
		for i, n := range e.baseNames {
			list[i] = value.Name(n)
		}
		return list
	}
	return e.values[schema.Normalize(key)]
}

// SetValue stores v under key; a nil v clears it.
func (e *Entry) SetValue(key string, v value.Value) error {
	if _, err := e.Slot(key); err != nil {
		return err
	}
	switch k := schema.Normalize(key); k {
	case schema.NameKey:
		if v == nil {
			e.name = ""
		} else {
			e.SetName(v.String())
		}
	case schema.BaseKey:
		e.baseNames = nil
		e.bases = nil
		if list, ok := v.(value.List); ok {
			for _, n := range list {
				if n != nil {
					e.AddBase(n.String())
				}
			}
		} else if v != nil {
			e.AddBase(v.String())
		}
	default:
		if v == nil {
			delete(e.values, k)
		} else {
			e.values[k] = v
		}
	}
	return nil
}

// Set parses text with the slot's type, stores the value and returns the
// part of text that was not consumed.
func (e *Entry) Set(key, text string) (string, error) {
	s, err := e.Slot(key)
	if err != nil {
		return text, err
	}
	v, rest, err := s.Type.Parse(text)
	if err != nil {
		return text, err
	}
	return rest, e.SetValue(key, v)
}

func (e *Entry) SetExpression(key, expr string) {
	k := schema.Normalize(key)
	if strings.TrimSpace(expr) == "" {
		delete(e.exprs, k)
		return
	}
	e.exprs[k] = expr
}

// AllValues maps every slot key with a defined own value to that value.
func (e *Entry) AllValues() map[string]value.Value {
	out := make(map[string]value.Value)
	for _, s := range e.Slots() {
		if v := e.Get(s.Key); v != nil {
			out[s.Key] = v
		}
	}
	return out
}

func (e *Entry) Warn(code, message string) {
	e.Warnings = append(e.Warnings, scan.Warning{
		Source:   e.Source,
		Position: e.Span.Start,
		Code:     code,
		Message:  message,
	})
	e.logger.Warn(message, "entry", e.String(), "code", code)
}
