package parser

import (
	"testing"

	"pgregory.net/rapid"

	"grimoire/internal/entry"
	"grimoire/internal/schema"
	"grimoire/internal/value"
)

func TestRoundTripProperty(t *testing.T) {
	reg := testRegistry(t)
	p := New(reg)

	rapid.Check(t, func(rt *rapid.T) {
		name := rapid.StringMatching(`[a-z][a-z .=]{0,12}[a-z]`).Draw(rt, "name")
		e, err := entry.New(reg, "base item", name)
		if err != nil {
			rt.Fatal(err)
		}
		if rapid.Bool().Draw(rt, "with weapon") {
			e.AddExtension("weapon")
			_ = e.SetValue("damage", value.Text(rapid.StringMatching(`[0-9d+ ]{1,6}`).Draw(rt, "damage")))
		}
		if rapid.Bool().Draw(rt, "has value") {
			_ = e.SetValue("value", value.Number(rapid.Int64Range(-500, 500).Draw(rt, "value")))
		}
		if rapid.Bool().Draw(rt, "has description") {
			text := rapid.StringMatching(`[A-Za-z;.,"\\]{1,10}(\n[A-Za-z][A-Za-z ]{0,9})?`).Draw(rt, "description")
			_ = e.SetValue("description", value.Text(text))
		}
		tags := rapid.SliceOfN(rapid.StringMatching(`[a-z;.,]{1,6}`), 0, 3).Draw(rt, "tags")
		if len(tags) > 0 {
			list := make(value.List, len(tags))
			for i, tag := range tags {
				list[i] = value.Name(tag)
			}
			_ = e.SetValue("tags", list)
		}
		for _, b := range rapid.SliceOfN(rapid.StringMatching(`[a-z]{1,6}`), 0, 2).Draw(rt, "bases") {
			e.AddBase(b)
		}

		text := p.String(e)
		got, err := p.Parse(text)
		if err != nil {
			rt.Fatalf("parse %q: %v", text, err)
		}
		if len(got.Warnings) != 0 {
			rt.Fatalf("parse %q: warnings %v", text, got.Warnings)
		}
		if got.Name() != e.Name() {
			rt.Fatalf("name %q became %q", e.Name(), got.Name())
		}
		want, have := e.AllValues(), got.AllValues()
		if len(want) != len(have) {
			rt.Fatalf("values %v became %v", want, have)
		}
		for k, v := range want {
			if !value.Equal(v, have[k]) {
				rt.Fatalf("%s: %#v became %#v in\n%s", k, v, have[k], text)
			}
		}
		if again := p.String(got); again != text {
			rt.Fatalf("second write differs:\n%s\n---\n%s", text, again)
		}
	})
}

func TestNameStartingWithExtensionKeyword(t *testing.T) {
	reg := testRegistry(t)
	p := New(reg)

	for _, name := range []string{"with honor", "with", "with.x"} {
		for _, withWeapon := range []bool{false, true} {
			checkNameRoundTrip(t, p, reg, name, withWeapon)
		}
	}

	e, err := p.Parse("base item withering blade =\n\n.\n")
	if err != nil {
		t.Fatal(err)
	}
	if e.Name() != "withering blade" {
		t.Fatalf("expected withering blade, got %q", e.Name())
	}
}

func checkNameRoundTrip(t *testing.T, p *Parser, reg *schema.Registry, name string, withWeapon bool) {
	t.Helper()
	e, err := entry.New(reg, "base item", name)
	if err != nil {
		t.Fatal(err)
	}
	if withWeapon {
		e.AddExtension("weapon")
	}
	text := p.String(e)
	got, err := p.Parse(text)
	if err != nil {
		t.Fatalf("parse %q: %v", text, err)
	}
	if got.Name() != name {
		t.Fatalf("name %q became %q in\n%s", name, got.Name(), text)
	}
	if got.HasExtension("honor") {
		t.Fatalf("name word read as extension in\n%s", text)
	}
	if again := p.String(got); again != text {
		t.Fatalf("second write differs:\n%s\n---\n%s", text, again)
	}
}
