package parser

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimoire/internal/scan"
	"grimoire/internal/schema"
	"grimoire/internal/value"
)

func testRegistry(t testing.TB) *schema.Registry {
	t.Helper()
	r := schema.NewRegistry()
	require.NoError(t, r.DefineCategory(schema.Category{Name: "abstract entry"}))
	require.NoError(t, r.DefineCategory(schema.Category{
		Name:   "base item",
		Parent: "abstract entry",
		Slots: []*schema.Slot{
			{Key: "value", Type: value.NumberType(), Policy: schema.Sum},
			{Key: "description", Type: value.TextType()},
			{Key: "weight", Type: value.NumberType(), Policy: schema.Sum},
			{Key: "size", Type: value.OrdinalType(value.NewScale("size", "small", "medium", "large")), Policy: schema.Max},
			{Key: "tags", Type: value.ListOf(value.NameType()), Policy: schema.List},
			{Key: "notes", Type: value.TextType(), NoStore: true},
		},
	}))
	require.NoError(t, r.DefineExtension(schema.Extension{
		Name:  "weapon",
		Slots: []*schema.Slot{{Key: "damage", Type: value.TextType()}},
	}))
	return r
}

func line(key, val string) string {
	return fmt.Sprintf("  %-12s%s", key, val)
}

func canonicalSword() string {
	return "#----- long sword\n\n" +
		"base item with weapon long sword =\n\n" +
		line("base", "blade, steel thing") + ";\n" +
		line("value", "15") + ";\n" +
		line("description", "\"A long\n"+strings.Repeat(" ", 14)+"sharp blade\"") + ";\n" +
		line("size", "medium") + ";\n" +
		line("damage", "\"1d8\"") + ".\n" +
		"\n#.....\n"
}

func TestMinimalEntry(t *testing.T) {
	p := New(testRegistry(t))
	e, err := p.Parse("abstract entry test.")
	require.NoError(t, err)

	assert.Equal(t, "test", e.Name())
	assert.Equal(t, "abstract entry test =\n\n.\n", p.Format(e))
	assert.Equal(t, "#----- test\n\nabstract entry test =\n\n.\n\n#.....\n", p.String(e))
}

func TestUndefinedName(t *testing.T) {
	p := New(testRegistry(t))
	e, err := p.Parse("abstract entry = .")
	require.NoError(t, err)

	assert.False(t, e.HasName())
	assert.Equal(t, "abstract entry $undefined$ =\n\n.\n\n#.....\n", p.String(e))
}

func TestEscapedName(t *testing.T) {
	p := New(testRegistry(t))
	e, err := p.Parse(`abstract entry just a \= test = .`)
	require.NoError(t, err)

	assert.Equal(t, "just a = test", e.Name())
	assert.Equal(t, "abstract entry just a \\= test =\n\n.\n", p.Format(e))
}

func TestReadFullEntry(t *testing.T) {
	p := New(testRegistry(t))
	e, err := p.Parse(canonicalSword())
	require.NoError(t, err)

	assert.Equal(t, "long sword", e.Name())
	assert.Equal(t, []string{"weapon"}, e.ExtensionNames())
	assert.Equal(t, []string{"blade", "steel thing"}, e.BaseNames())
	assert.Equal(t, value.Number(15), e.Get("value"))
	assert.Equal(t, value.Text("A long\nsharp blade"), e.Get("description"))
	assert.Equal(t, "medium", e.Get("size").String())
	assert.Equal(t, value.Text("1d8"), e.Get("damage"))
	assert.Empty(t, e.Warnings)
	assert.Equal(t, "#----- long sword\n\n", e.Leading)
	assert.Equal(t, "\n#.....\n", e.Trailing)
}

func TestCanonicalRoundTrip(t *testing.T) {
	p := New(testRegistry(t))
	text := canonicalSword()

	first, err := p.Parse(text)
	require.NoError(t, err)
	assert.Equal(t, text, p.String(first))

	second, err := p.Parse(p.String(first))
	require.NoError(t, err)
	assertSameValues(t, first.AllValues(), second.AllValues())
}

func TestRoundTripOfLooseText(t *testing.T) {
	p := New(testRegistry(t))
	loose := "base item  dagger=value 2;size SMALL;tags edged,cheap;weight 1."

	first, err := p.Parse(loose)
	require.NoError(t, err)
	require.Empty(t, first.Warnings)

	second, err := p.Parse(p.String(first))
	require.NoError(t, err)
	assertSameValues(t, first.AllValues(), second.AllValues())
	assert.Equal(t, p.String(first), p.String(second))
}

func assertSameValues(t *testing.T, want, got map[string]value.Value) {
	t.Helper()
	require.Len(t, got, len(want))
	for k, v := range want {
		assert.True(t, value.Equal(v, got[k]), "key %s: want %v, got %v", k, v, got[k])
	}
}

func TestUnknownKeyRecovery(t *testing.T) {
	p := New(testRegistry(t))
	e, err := p.Parse("base item sword =\n  junk 12;\n  value 5;\n  description \"x\".\n")
	require.NoError(t, err)

	assert.Equal(t, value.Number(5), e.Get("value"))
	assert.Equal(t, value.Text("x"), e.Get("description"))
	require.Len(t, e.Warnings, 1)
	assert.Equal(t, "entry.key.unknown", e.Warnings[0].Code)
}

func TestUnknownKeyAtEnd(t *testing.T) {
	p := New(testRegistry(t))
	e, err := p.Parse("base item sword = value 5; junk 12.")
	require.NoError(t, err)
	assert.Equal(t, value.Number(5), e.Get("value"))
	require.Len(t, e.Warnings, 1)
}

func TestNonStoredKeyIsNotAccepted(t *testing.T) {
	p := New(testRegistry(t))
	e, err := p.Parse(`base item sword = notes "x"; value 1.`)
	require.NoError(t, err)
	assert.Nil(t, e.Get("notes"))
	assert.Equal(t, value.Number(1), e.Get("value"))
}

func TestMissingDelimiter(t *testing.T) {
	p := New(testRegistry(t))
	e, err := p.Parse("base item sword = value 5 weight 2.")
	require.NoError(t, err)

	assert.Equal(t, value.Number(5), e.Get("value"))
	assert.Equal(t, value.Number(2), e.Get("weight"))
	require.Len(t, e.Warnings, 1)
	assert.Equal(t, "entry.delimiter.missing", e.Warnings[0].Code)
}

func TestInvalidValue(t *testing.T) {
	p := New(testRegistry(t))
	e, err := p.Parse("base item sword = value lots; weight 2.")
	require.NoError(t, err)

	assert.Nil(t, e.Get("value"))
	assert.Equal(t, value.Number(2), e.Get("weight"))
	require.Len(t, e.Warnings, 1)
	assert.Equal(t, "entry.value.invalid", e.Warnings[0].Code)
}

func TestUnknownExtensionWarns(t *testing.T) {
	p := New(testRegistry(t))
	e, err := p.Parse("base item with cursed, weapon sword = damage \"1d4\".")
	require.NoError(t, err)

	assert.Equal(t, []string{"weapon"}, e.ExtensionNames())
	assert.Equal(t, value.Text("1d4"), e.Get("damage"))
	require.Len(t, e.Warnings, 1)
	assert.Equal(t, "extension.unknown", e.Warnings[0].Code)
}

func TestExpressions(t *testing.T) {
	p := New(testRegistry(t))
	e, err := p.Parse("base item sword = value 5 {$level * 2}; weight {3 + $bonus}.")
	require.NoError(t, err)

	assert.Equal(t, value.Number(5), e.Get("value"))
	assert.Equal(t, "$level * 2", e.Expression("value"))
	assert.Nil(t, e.Get("weight"))
	assert.Equal(t, "3 + $bonus", e.Expression("weight"))

	out := p.Format(e)
	assert.Contains(t, out, line("value", "5 {$level * 2}"))
	assert.Contains(t, out, line("weight", "{3 + $bonus}"))

	again, err := p.Parse(out)
	require.NoError(t, err)
	assert.Equal(t, "3 + $bonus", again.Expression("weight"))
}

func TestMissingIntroducer(t *testing.T) {
	p := New(testRegistry(t))
	r := scan.New("", "abstract entry broken")
	_, err := p.Read(r)
	assert.ErrorIs(t, err, ErrMalformedEntry)
	require.Len(t, r.Warnings(), 1)
	assert.Equal(t, "entry.introducer.missing", r.Warnings()[0].Code)
}

func TestNoEntryTypeRewinds(t *testing.T) {
	p := New(testRegistry(t))
	r := scan.New("", "spaceship enterprise.")
	_, err := p.Read(r)
	assert.ErrorIs(t, err, ErrNoEntryType)
	assert.Equal(t, 0, r.Pos().Offset)
}

func TestReadAll(t *testing.T) {
	p := New(testRegistry(t))
	text := "# header\n\nabstract entry a.\nspaceship b = value 1.\nbase item c = value 2.\n# footer\n"
	entries, warnings := p.ParseString("test.dma", text)

	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].Name())
	assert.Equal(t, "# header\n\n", entries[0].Leading)
	assert.Equal(t, "c", entries[1].Name())
	assert.Equal(t, "# footer\n", entries[1].Trailing)
	require.Len(t, warnings, 1)
	assert.Equal(t, "entry.type.unknown", warnings[0].Code)
	assert.Equal(t, "test.dma", entries[1].Source)
}

func TestReadAtEnd(t *testing.T) {
	p := New(testRegistry(t))
	_, err := p.Read(scan.New("", "\n  # only a comment\n\n"))
	assert.True(t, errors.Is(err, io.EOF))
}

func TestWriteUpdatesSpans(t *testing.T) {
	p := New(testRegistry(t))
	entries, _ := p.ParseString("", "abstract entry a.\nabstract entry b.")
	require.Len(t, entries, 2)

	var buf bytes.Buffer
	require.NoError(t, p.Write(&buf, entries...))

	out := buf.String()
	first := p.String(entries[0])
	assert.Equal(t, first+p.String(entries[1]), out)
	assert.Equal(t, 0, entries[0].Span.Start.Offset)
	assert.Equal(t, len(first), entries[1].Span.Start.Offset)
	assert.Equal(t, len(out), entries[1].Span.End.Offset)

	again, _ := p.ParseString("", out)
	require.Len(t, again, 2)
	assert.Equal(t, out, p.String(again[0])+p.String(again[1]))
}

func TestParseFile(t *testing.T) {
	p := New(testRegistry(t))
	path := filepath.Join(t.TempDir(), "items.dma")
	require.NoError(t, os.WriteFile(path, []byte(canonicalSword()), 0o644))

	entries, warnings, err := p.ParseFile(path)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.Len(t, entries, 1)
	assert.Equal(t, path, entries[0].Source)

	_, _, err = p.ParseFile(filepath.Join(t.TempDir(), "missing.dma"))
	assert.Error(t, err)
}

func TestCustomSyntax(t *testing.T) {
	syntax := DefaultSyntax()
	syntax.Terminator = "!"
	syntax.CommentPrefix = "//"
	p := New(testRegistry(t), WithSyntax(syntax))

	e, err := p.Parse("base item club = value 1; weight 4!")
	require.NoError(t, err)
	assert.Equal(t, value.Number(4), e.Get("weight"))
	assert.True(t, strings.HasPrefix(p.String(e), "//----- club\n\n"))
	assert.True(t, strings.HasSuffix(p.String(e), "!\n\n//.....\n"))
}
