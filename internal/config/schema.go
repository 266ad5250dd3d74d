package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"grimoire/internal/schema"
	"grimoire/internal/value"
)

// Schema is the declaration file describing categories and extensions.
type Schema struct {
	Version    int             `yaml:"version"`
	Categories []CategoryDecl  `yaml:"categories"`
	Extensions []ExtensionDecl `yaml:"extensions"`

	categoryIndex  map[string]*CategoryDecl
	extensionIndex map[string]*ExtensionDecl
}

type CategoryDecl struct {
	Name         string     `yaml:"name"`
	Base         string     `yaml:"base"`
	BaseCategory string     `yaml:"base_category"`
	Slots        []SlotDecl `yaml:"slots"`
}

type SlotDecl struct {
	Key            string   `yaml:"key"`
	Plural         string   `yaml:"plural"`
	Kind           string   `yaml:"kind"`
	Values         []string `yaml:"values"`
	Element        string   `yaml:"element"`
	Policy         string   `yaml:"policy"`
	Stored         *bool    `yaml:"stored"`
	DMOnly         bool     `yaml:"dm_only"`
	PlayerOnly     bool     `yaml:"player_only"`
	PlayerEditable bool     `yaml:"player_editable"`
	PrintUndefined bool     `yaml:"print_undefined"`
	IncludeBases   bool     `yaml:"include_bases"`
}

type ExtensionDecl struct {
	Name     string            `yaml:"name"`
	Category string            `yaml:"category"`
	Slots    []SlotDecl        `yaml:"slots"`
	Policies map[string]string `yaml:"policies"`
	Values   map[string]string `yaml:"values"`
}

func LoadSchema(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading schema: %w", err)
	}
	return ParseSchema(data)
}

func ParseSchema(data []byte) (*Schema, error) {
	var s Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("loading schema: %w", err)
	}

	if err := validateSchema(&s); err != nil {
		return nil, fmt.Errorf("loading schema: %w", err)
	}

	s.categoryIndex = make(map[string]*CategoryDecl)
	for i := range s.Categories {
		c := &s.Categories[i]
		s.categoryIndex[schema.Normalize(c.Name)] = c
	}

	s.extensionIndex = make(map[string]*ExtensionDecl)
	for i := range s.Extensions {
		x := &s.Extensions[i]
		s.extensionIndex[schema.Normalize(x.Name)] = x
	}

	return &s, nil
}

func validateSchema(s *Schema) error {
	if s.Version != 1 {
		return fmt.Errorf("unsupported version: %d", s.Version)
	}
	if len(s.Categories) == 0 {
		return fmt.Errorf("at least one category is required")
	}

	names := make(map[string]*CategoryDecl)
	for i := range s.Categories {
		c := &s.Categories[i]
		if strings.TrimSpace(c.Name) == "" {
			return fmt.Errorf("category %d name is required", i)
		}
		key := schema.Normalize(c.Name)
		if _, exists := names[key]; exists {
			return fmt.Errorf("duplicate category name: %s", c.Name)
		}
		names[key] = c
	}

	for _, c := range s.Categories {
		if c.Base != "" {
			if _, ok := names[schema.Normalize(c.Base)]; !ok {
				return fmt.Errorf("category %s base references unknown category: %s", c.Name, c.Base)
			}
		}
		if c.BaseCategory != "" {
			if _, ok := names[schema.Normalize(c.BaseCategory)]; !ok {
				return fmt.Errorf("category %s base_category references unknown category: %s", c.Name, c.BaseCategory)
			}
		}
		if err := validateSlots("category "+c.Name, c.Slots); err != nil {
			return err
		}
	}

	for _, c := range s.Categories {
		seen := map[string]bool{}
		for cur := &c; cur != nil && cur.Base != ""; cur = names[schema.Normalize(cur.Base)] {
			key := schema.Normalize(cur.Name)
			if seen[key] {
				return fmt.Errorf("category %s has an inheritance cycle", c.Name)
			}
			seen[key] = true
		}
	}

	extNames := make(map[string]struct{})
	for i, x := range s.Extensions {
		if strings.TrimSpace(x.Name) == "" {
			return fmt.Errorf("extension %d name is required", i)
		}
		key := schema.Normalize(x.Name)
		if _, exists := extNames[key]; exists {
			return fmt.Errorf("duplicate extension name: %s", x.Name)
		}
		extNames[key] = struct{}{}
		if x.Category != "" {
			if _, ok := names[schema.Normalize(x.Category)]; !ok {
				return fmt.Errorf("extension %s references unknown category: %s", x.Name, x.Category)
			}
		}
		if err := validateSlots("extension "+x.Name, x.Slots); err != nil {
			return err
		}
		for k, p := range x.Policies {
			target := extensionSlotDecl(s, names, x, k)
			if target == nil {
				if _, err := schema.ParsePolicy(p); err != nil {
					return fmt.Errorf("extension %s policy for %s: %w", x.Name, k, err)
				}
				continue
			}
			if err := target.checkPolicy(p); err != nil {
				return fmt.Errorf("extension %s policy for %s: %w", x.Name, k, err)
			}
		}
	}

	return nil
}

// extensionSlotDecl finds the slot a policy override applies to, searched
// like contributed values: the extension, its category chain, then any
// category.
func extensionSlotDecl(s *Schema, names map[string]*CategoryDecl, x ExtensionDecl, key string) *SlotDecl {
	find := func(slots []SlotDecl) *SlotDecl {
		for i := range slots {
			if schema.Normalize(slots[i].Key) == schema.Normalize(key) {
				return &slots[i]
			}
		}
		return nil
	}
	if d := find(x.Slots); d != nil {
		return d
	}
	seen := map[string]bool{}
	for c := names[schema.Normalize(x.Category)]; c != nil && !seen[c.Name]; c = names[schema.Normalize(c.Base)] {
		seen[c.Name] = true
		if d := find(c.Slots); d != nil {
			return d
		}
	}
	for i := range s.Categories {
		if d := find(s.Categories[i].Slots); d != nil {
			return d
		}
	}
	return nil
}

func (d SlotDecl) checkPolicy(name string) error {
	policy, err := schema.ParsePolicy(name)
	if err != nil {
		return err
	}
	t, err := d.valueType()
	if err != nil {
		return err
	}
	return policy.Check(t.Kind())
}

func validateSlots(owner string, slots []SlotDecl) error {
	keys := make(map[string]struct{})
	for _, slot := range slots {
		key := schema.Normalize(slot.Key)
		if key == "" {
			return fmt.Errorf("%s has slot with empty key", owner)
		}
		if key == schema.NameKey || key == schema.BaseKey {
			return fmt.Errorf("%s redeclares built-in slot: %s", owner, slot.Key)
		}
		if _, exists := keys[key]; exists {
			return fmt.Errorf("%s has duplicate slot: %s", owner, slot.Key)
		}
		keys[key] = struct{}{}
		if _, err := slot.valueType(); err != nil {
			return fmt.Errorf("%s slot %s: %w", owner, slot.Key, err)
		}
		if err := slot.checkPolicy(slot.Policy); err != nil {
			return fmt.Errorf("%s slot %s: %w", owner, slot.Key, err)
		}
		if slot.DMOnly && slot.PlayerOnly {
			return fmt.Errorf("%s slot %s cannot be both dm_only and player_only", owner, slot.Key)
		}
	}
	return nil
}

func (d SlotDecl) valueType() (*value.Type, error) {
	kind := strings.ToLower(strings.TrimSpace(d.Kind))
	if kind == "" {
		kind = string(value.KindText)
	}
	if kind == string(value.KindList) {
		elemKind := d.Element
		if elemKind == "" {
			elemKind = string(value.KindName)
		}
		if strings.EqualFold(elemKind, string(value.KindList)) {
			return nil, fmt.Errorf("list of list is not supported")
		}
		elem, err := SlotDecl{Key: d.Key, Kind: elemKind, Values: d.Values}.valueType()
		if err != nil {
			return nil, err
		}
		return value.ListOf(elem), nil
	}
	switch value.Kind(kind) {
	case value.KindText:
		return value.TextType(), nil
	case value.KindName:
		return value.NameType(), nil
	case value.KindNumber:
		return value.NumberType(), nil
	case value.KindFlag:
		return value.FlagType(), nil
	case value.KindOrdinal:
		if len(d.Values) == 0 {
			return nil, fmt.Errorf("ordinal has no values")
		}
		return value.OrdinalType(value.NewScale(d.Key, d.Values...)), nil
	}
	return nil, fmt.Errorf("unknown kind %q", d.Kind)
}

func (d SlotDecl) slot() (*schema.Slot, error) {
	t, err := d.valueType()
	if err != nil {
		return nil, err
	}
	p, err := schema.ParsePolicy(d.Policy)
	if err != nil {
		return nil, err
	}
	return &schema.Slot{
		Key:            strings.TrimSpace(d.Key),
		Plural:         d.Plural,
		Type:           t,
		Policy:         p,
		NoStore:        d.Stored != nil && !*d.Stored,
		DMOnly:         d.DMOnly,
		PlayerOnly:     d.PlayerOnly,
		PlayerEditable: d.PlayerEditable,
		PrintUndefined: d.PrintUndefined,
		IncludeBases:   d.IncludeBases,
	}, nil
}

// Registry registers every declared category, parents first, and every
// extension into a new schema registry.
func (s *Schema) Registry() (*schema.Registry, error) {
	reg := schema.NewRegistry()

	defined := make(map[string]bool)
	var define func(c *CategoryDecl) error
	define = func(c *CategoryDecl) error {
		key := schema.Normalize(c.Name)
		if defined[key] {
			return nil
		}
		if c.Base != "" {
			if err := define(s.categoryIndex[schema.Normalize(c.Base)]); err != nil {
				return err
			}
		}
		slots := make([]*schema.Slot, 0, len(c.Slots))
		for _, d := range c.Slots {
			slot, err := d.slot()
			if err != nil {
				return fmt.Errorf("category %s: %w", c.Name, err)
			}
			slots = append(slots, slot)
		}
		defined[key] = true
		return reg.DefineCategory(schema.Category{
			Name:         c.Name,
			Parent:       c.Base,
			BaseCategory: c.BaseCategory,
			Slots:        slots,
		})
	}
	for i := range s.Categories {
		if err := define(&s.Categories[i]); err != nil {
			return nil, fmt.Errorf("building registry: %w", err)
		}
	}

	for _, x := range s.Extensions {
		ext, err := s.extension(reg, x)
		if err != nil {
			return nil, fmt.Errorf("building registry: %w", err)
		}
		if err := reg.DefineExtension(ext); err != nil {
			return nil, fmt.Errorf("building registry: %w", err)
		}
	}

	return reg, nil
}

func (s *Schema) extension(reg *schema.Registry, x ExtensionDecl) (schema.Extension, error) {
	ext := schema.Extension{
		Name:     x.Name,
		Category: x.Category,
		Policies: make(map[string]schema.Policy, len(x.Policies)),
		Values:   make(map[string]value.Value, len(x.Values)),
	}
	for _, d := range x.Slots {
		slot, err := d.slot()
		if err != nil {
			return ext, fmt.Errorf("extension %s: %w", x.Name, err)
		}
		ext.Slots = append(ext.Slots, slot)
	}
	for k, p := range x.Policies {
		policy, err := schema.ParsePolicy(p)
		if err != nil {
			return ext, fmt.Errorf("extension %s: %w", x.Name, err)
		}
		ext.Policies[k] = policy
	}
	for k, text := range x.Values {
		t := extensionValueType(reg, ext, k)
		if t == nil {
			return ext, fmt.Errorf("extension %s: value for unknown slot %s", x.Name, k)
		}
		v, _, err := t.Parse(text)
		if err != nil {
			return ext, fmt.Errorf("extension %s value %s: %w", x.Name, k, err)
		}
		ext.Values[k] = v
	}
	return ext, nil
}

// extensionValueType finds the slot type a contributed value is read with:
// the extension's own slots, then its category, then any category.
func extensionValueType(reg *schema.Registry, ext schema.Extension, key string) *value.Type {
	for _, slot := range ext.Slots {
		if strings.EqualFold(slot.Key, key) {
			return slot.Type
		}
	}
	if ext.Category != "" {
		if slot, err := reg.Slot(ext.Category, key); err == nil {
			return slot.Type
		}
	}
	for _, c := range reg.Categories() {
		if slot, err := reg.Slot(c.Name, key); err == nil {
			return slot.Type
		}
	}
	return nil
}

func (s *Schema) CategoryByName(name string) (*CategoryDecl, bool) {
	if s == nil {
		return nil, false
	}
	c, ok := s.categoryIndex[schema.Normalize(name)]
	return c, ok
}

func (s *Schema) ExtensionByName(name string) (*ExtensionDecl, bool) {
	if s == nil {
		return nil, false
	}
	x, ok := s.extensionIndex[schema.Normalize(name)]
	return x, ok
}

func (s *Schema) IsValidCategory(name string) bool {
	_, ok := s.CategoryByName(name)
	return ok
}

// CheckTypeWords reports categories whose names need more words than an
// entry type may span.
func (s *Schema) CheckTypeWords(max int) error {
	for _, c := range s.Categories {
		if n := len(strings.Fields(c.Name)); n > max {
			return fmt.Errorf("category %s has %d words, format allows %d", c.Name, n, max)
		}
	}
	return nil
}
