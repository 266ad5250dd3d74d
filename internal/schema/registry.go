package schema

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"grimoire/internal/value"
)

var (
	ErrUnknownCategory   = errors.New("unknown category")
	ErrUnknownSlot       = errors.New("unknown slot")
	ErrUnknownExtension  = errors.New("unknown extension")
	ErrDuplicateCategory = errors.New("duplicate category")
	ErrDuplicateSlot     = errors.New("duplicate slot")
)

// Category is an entry type. Its name doubles as the type words that
// introduce an entry in text.
type Category struct {
	Name         string
	Parent       string
	BaseCategory string
	Slots        []*Slot
}

type Extension struct {
	Name     string
	Category string
	Slots    []*Slot
	Policies map[string]Policy
	Values   map[string]value.Value
}

// Value returns the value the extension itself contributes for key.
func (x *Extension) Value(key string) value.Value {
	for k, v := range x.Values {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return nil
}

func (x *Extension) Policy(key string) (Policy, bool) {
	for k, p := range x.Policies {
		if strings.EqualFold(k, key) {
			return p, true
		}
	}
	return "", false
}

type ExtensionFactory func() *Extension

// Registry holds categories and extension factories. Per-category slot
// lists and key widths are memoized on first use.
type Registry struct {
	mu         sync.RWMutex
	categories map[string]*Category
	order      []string
	extensions map[string]ExtensionFactory
	extOrder   []string
	slots      map[string][]*Slot
	widths     map[string]int
}

func NewRegistry() *Registry {
	return &Registry{
		categories: make(map[string]*Category),
		extensions: make(map[string]ExtensionFactory),
		slots:      make(map[string][]*Slot),
		widths:     make(map[string]int),
	}
}

func Normalize(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// DefineCategory registers c. A parent must be defined first; a category
// without a parent receives the built-in name and base slots.
func (r *Registry) DefineCategory(c Category) error {
	key := Normalize(c.Name)
	if key == "" {
		return fmt.Errorf("category name must not be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.categories[key]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateCategory, c.Name)
	}

	var inherited []*Slot
	if c.Parent != "" {
		parent, ok := r.categories[Normalize(c.Parent)]
		if !ok {
			return fmt.Errorf("category %q: parent %w: %s", c.Name, ErrUnknownCategory, c.Parent)
		}
		c.Parent = parent.Name
		inherited = r.slotsLocked(parent)
	} else {
		c.Slots = append(builtinSlots(), c.Slots...)
	}
	if c.BaseCategory != "" {
		if _, ok := r.categories[Normalize(c.BaseCategory)]; !ok && Normalize(c.BaseCategory) != key {
			return fmt.Errorf("category %q: base category %w: %s", c.Name, ErrUnknownCategory, c.BaseCategory)
		}
	}

	seen := make(map[string]bool)
	for _, s := range inherited {
		seen[Normalize(s.Key)] = true
	}
	for _, s := range c.Slots {
		k := Normalize(s.Key)
		if seen[k] {
			return fmt.Errorf("category %q: %w: %s", c.Name, ErrDuplicateSlot, s.Key)
		}
		seen[k] = true
		if s.Policy == "" {
			s.Policy = First
		}
	}

	cat := c
	r.categories[key] = &cat
	r.order = append(r.order, key)
	return nil
}

func (r *Registry) Category(name string) (*Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.categories[Normalize(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCategory, name)
	}
	return c, nil
}

func (r *Registry) Categories() []*Category {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Category, 0, len(r.order))
	for _, k := range r.order {
		out = append(out, r.categories[k])
	}
	return out
}

// BaseCategory returns the category in which base names of entries of
// the given category are resolved.
func (r *Registry) BaseCategory(name string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.categories[Normalize(name)]
	for ok {
		if c.BaseCategory != "" {
			return c.BaseCategory
		}
		if c.Parent == "" {
			break
		}
		c, ok = r.categories[Normalize(c.Parent)]
	}
	return name
}

// IsA reports whether category equals ancestor or descends from it.
func (r *Registry) IsA(category, ancestor string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	want := Normalize(ancestor)
	c, ok := r.categories[Normalize(category)]
	for ok {
		if Normalize(c.Name) == want {
			return true
		}
		c, ok = r.categories[Normalize(c.Parent)]
	}
	return false
}

// Slots returns the full slot list of a category: its ancestors' slots
// first, then its own.
func (r *Registry) Slots(category string) ([]*Slot, error) {
	key := Normalize(category)

	r.mu.RLock()
	if s, ok := r.slots[key]; ok {
		r.mu.RUnlock()
		return s, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.categories[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCategory, category)
	}
	return r.slotsLocked(c), nil
}

func (r *Registry) slotsLocked(c *Category) []*Slot {
	key := Normalize(c.Name)
	if s, ok := r.slots[key]; ok {
		return s
	}
	var out []*Slot
	if c.Parent != "" {
		if parent, ok := r.categories[Normalize(c.Parent)]; ok {
			out = append(out, r.slotsLocked(parent)...)
		}
	}
	out = append(out, c.Slots...)
	r.slots[key] = out
	return out
}

func (r *Registry) Slot(category, key string) (*Slot, error) {
	slots, err := r.Slots(category)
	if err != nil {
		return nil, err
	}
	for _, s := range slots {
		if strings.EqualFold(s.Key, key) {
			return s, nil
		}
	}
	return nil, fmt.Errorf("%w: %s has no %q", ErrUnknownSlot, category, key)
}

// KeyWidth is one more than the longest stored key of the category, the
// column at which values are aligned when written.
func (r *Registry) KeyWidth(category string) int {
	key := Normalize(category)
	r.mu.RLock()
	if w, ok := r.widths[key]; ok {
		r.mu.RUnlock()
		return w
	}
	r.mu.RUnlock()

	slots, err := r.Slots(category)
	if err != nil {
		return 0
	}
	w := Width(slots)

	r.mu.Lock()
	r.widths[key] = w
	r.mu.Unlock()
	return w
}

func Width(slots []*Slot) int {
	w := 0
	for _, s := range slots {
		if s.Stored() && len(s.Key) >= w {
			w = len(s.Key) + 1
		}
	}
	return w
}

func (r *Registry) RegisterExtension(name string, factory ExtensionFactory) error {
	key := Normalize(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.extensions[key]; ok {
		return fmt.Errorf("duplicate extension %q", name)
	}
	r.extensions[key] = factory
	r.extOrder = append(r.extOrder, name)
	return nil
}

// DefineExtension registers a factory that hands out copies of x.
func (r *Registry) DefineExtension(x Extension) error {
	for _, s := range x.Slots {
		s.Extension = x.Name
		if s.Policy == "" {
			s.Policy = First
		}
	}
	return r.RegisterExtension(x.Name, func() *Extension {
		c := x
		c.Slots = append([]*Slot(nil), x.Slots...)
		c.Policies = make(map[string]Policy, len(x.Policies))
		for k, p := range x.Policies {
			c.Policies[k] = p
		}
		c.Values = make(map[string]value.Value, len(x.Values))
		for k, v := range x.Values {
			c.Values[k] = v
		}
		return &c
	})
}

func (r *Registry) NewExtension(name string) (*Extension, error) {
	r.mu.RLock()
	factory, ok := r.extensions[Normalize(name)]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownExtension, name)
	}
	return factory(), nil
}

func (r *Registry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.extOrder...)
}
