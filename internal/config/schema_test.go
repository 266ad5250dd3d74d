package config

import (
	"os"
	"path/filepath"
	"testing"

	"grimoire/internal/schema"
	"grimoire/internal/value"
)

func TestLoadSchema(t *testing.T) {
	t.Run("valid schema loads", func(t *testing.T) {
		s, err := LoadSchema(filepath.Join("testdata", "valid_schema.yaml"))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !s.IsValidCategory("base weapon") {
			t.Fatalf("expected base weapon category to be valid")
		}
	})

	cases := []struct {
		name     string
		contents string
	}{
		{"unsupported version", "version: 2\ncategories:\n  - name: item\n"},
		{"missing categories", "version: 1\ncategories: []\n"},
		{"duplicate category names", "version: 1\ncategories:\n  - name: base item\n  - name: Base  Item\n"},
		{"unknown base", "version: 1\ncategories:\n  - name: item\n    base: thing\n"},
		{"unknown base category", "version: 1\ncategories:\n  - name: item\n    base_category: thing\n"},
		{"inheritance cycle", "version: 1\ncategories:\n  - name: a\n    base: b\n  - name: b\n    base: a\n"},
		{"ordinal without values", "version: 1\ncategories:\n  - name: item\n    slots:\n      - { key: size, kind: ordinal }\n"},
		{"unknown kind", "version: 1\ncategories:\n  - name: item\n    slots:\n      - { key: size, kind: float }\n"},
		{"unknown policy", "version: 1\ncategories:\n  - name: item\n    slots:\n      - { key: worth, kind: number, policy: average }\n"},
		{"duplicate slot", "version: 1\ncategories:\n  - name: item\n    slots:\n      - { key: worth }\n      - { key: Worth }\n"},
		{"redeclared built-in", "version: 1\ncategories:\n  - name: item\n    slots:\n      - { key: name }\n"},
		{"dm and player only", "version: 1\ncategories:\n  - name: item\n    slots:\n      - { key: notes, dm_only: true, player_only: true }\n"},
		{"extension unknown category", "version: 1\ncategories:\n  - name: item\nextensions:\n  - name: magic\n    category: spell\n"},
		{"duplicate extensions", "version: 1\ncategories:\n  - name: item\nextensions:\n  - name: magic\n  - name: MAGIC\n"},
		{"extension unknown policy", "version: 1\ncategories:\n  - name: item\nextensions:\n  - name: magic\n    policies:\n      worth: average\n"},
		{"max on text", "version: 1\ncategories:\n  - name: item\n    slots:\n      - { key: lore, kind: text, policy: max }\n"},
		{"min on flag", "version: 1\ncategories:\n  - name: item\n    slots:\n      - { key: magic, kind: flag, policy: min }\n"},
		{"max on list", "version: 1\ncategories:\n  - name: item\n    slots:\n      - { key: tags, kind: list, policy: max }\n"},
		{"sum on ordinal", "version: 1\ncategories:\n  - name: item\n    slots:\n      - { key: size, kind: ordinal, values: [small, large], policy: sum }\n"},
		{"bonus on name", "version: 1\ncategories:\n  - name: item\n    slots:\n      - { key: maker, kind: name, policy: bonus }\n"},
		{"extension slot max on text", "version: 1\ncategories:\n  - name: item\nextensions:\n  - name: magic\n    slots:\n      - { key: aura, kind: text, policy: max }\n"},
		{"extension override sum on ordinal", "version: 1\ncategories:\n  - name: item\n    slots:\n      - { key: size, kind: ordinal, values: [small, large] }\nextensions:\n  - name: magic\n    category: item\n    policies:\n      size: sum\n"},
		{"extension override max on inherited text", "version: 1\ncategories:\n  - name: item\n    slots:\n      - { key: lore }\n  - name: weapon\n    base: item\nextensions:\n  - name: magic\n    category: weapon\n    policies:\n      lore: max\n"},
		{"extension override on own slot", "version: 1\ncategories:\n  - name: item\nextensions:\n  - name: magic\n    slots:\n      - { key: school, kind: name }\n    policies:\n      school: sum\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := LoadSchema(writeTempSchema(t, tc.contents)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestSchemaRegistry(t *testing.T) {
	s, err := LoadSchema(filepath.Join("testdata", "valid_schema.yaml"))
	if err != nil {
		t.Fatalf("loading schema: %v", err)
	}
	reg, err := s.Registry()
	if err != nil {
		t.Fatalf("building registry: %v", err)
	}

	t.Run("inherited slots come first", func(t *testing.T) {
		slots, err := reg.Slots("base weapon")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if slots[0].Key != schema.NameKey || slots[1].Key != schema.BaseKey {
			t.Fatalf("expected built-in slots first, got %q, %q", slots[0].Key, slots[1].Key)
		}
		if slots[len(slots)-1].Key != "bonus" {
			t.Fatalf("expected own slots last, got %q", slots[len(slots)-1].Key)
		}
	})

	t.Run("slot declarations map to slots", func(t *testing.T) {
		size, err := reg.Slot("base item", "size")
		if err != nil {
			t.Fatalf("expected size slot: %v", err)
		}
		if size.Type.Kind() != value.KindOrdinal || size.Policy != schema.Max {
			t.Fatalf("unexpected size slot: %s %s", size.Type, size.Policy)
		}
		syn, err := reg.Slot("base item", "synonyms")
		if err != nil {
			t.Fatalf("expected synonyms slot: %v", err)
		}
		if syn.Type.String() != "list of name" {
			t.Fatalf("expected list of name, got %s", syn.Type)
		}
		notes, _ := reg.Slot("base item", "notes")
		if !notes.DMOnly || notes.Visible(false) {
			t.Fatalf("expected notes to be dm only")
		}
		damage, _ := reg.Slot("base weapon", "damage")
		if !damage.IncludeBases {
			t.Fatalf("expected damage to include bases")
		}
	})

	t.Run("base category resolution", func(t *testing.T) {
		if got := reg.BaseCategory("item"); got != "base item" {
			t.Fatalf("expected base item, got %q", got)
		}
		if got := reg.BaseCategory("base weapon"); got != "base weapon" {
			t.Fatalf("expected base weapon, got %q", got)
		}
	})

	t.Run("extension values and policies", func(t *testing.T) {
		ext, err := reg.NewExtension("Masterwork")
		if err != nil {
			t.Fatalf("expected extension: %v", err)
		}
		if v := ext.Value("worth"); v == nil || v.String() != "300" {
			t.Fatalf("expected worth 300, got %v", v)
		}
		if p, ok := ext.Policy("worth"); !ok || p != schema.Sum {
			t.Fatalf("expected sum override, got %q", p)
		}
		if len(ext.Slots) != 1 || ext.Slots[0].Extension != "masterwork" {
			t.Fatalf("expected crafter slot owned by masterwork")
		}
	})

	t.Run("policies that fit their kinds load", func(t *testing.T) {
		contents := "version: 1\ncategories:\n  - name: item\n    slots:\n" +
			"      - { key: size, kind: ordinal, values: [small, large], policy: max }\n" +
			"      - { key: maker, kind: name, policy: min }\n" +
			"      - { key: lore, kind: text, policy: sum }\n" +
			"      - { key: tags, kind: list, policy: bonus }\n" +
			"      - { key: cursed, kind: flag, policy: sum }\n" +
			"extensions:\n  - name: magic\n    category: item\n    policies:\n      size: min\n      lore: string\n"
		ok, err := LoadSchema(writeTempSchema(t, contents))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if _, err := ok.Registry(); err != nil {
			t.Fatalf("building registry: %v", err)
		}
	})

	t.Run("extension value for unknown slot", func(t *testing.T) {
		bad, err := LoadSchema(writeTempSchema(t, "version: 1\ncategories:\n  - name: item\nextensions:\n  - name: magic\n    values:\n      aura: strong\n"))
		if err != nil {
			t.Fatalf("loading schema: %v", err)
		}
		if _, err := bad.Registry(); err == nil {
			t.Fatalf("expected error")
		}
	})
}

func TestSchemaHelpers(t *testing.T) {
	s, err := LoadSchema(filepath.Join("testdata", "valid_schema.yaml"))
	if err != nil {
		t.Fatalf("loading schema: %v", err)
	}

	t.Run("CategoryByName normalizes", func(t *testing.T) {
		if _, ok := s.CategoryByName("BASE   ITEM"); !ok {
			t.Fatalf("expected to find base item")
		}
	})

	t.Run("ExtensionByName case-insensitive", func(t *testing.T) {
		if _, ok := s.ExtensionByName("MASTERWORK"); !ok {
			t.Fatalf("expected to find masterwork")
		}
	})

	t.Run("CheckTypeWords", func(t *testing.T) {
		if err := s.CheckTypeWords(2); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if err := s.CheckTypeWords(1); err == nil {
			t.Fatalf("expected error for two-word categories")
		}
	})
}

func writeTempSchema(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "schema.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("writing temp schema: %v", err)
	}
	return path
}
