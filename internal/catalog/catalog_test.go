package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimoire/internal/config"
	"grimoire/internal/entry"
	"grimoire/internal/parser"
	"grimoire/internal/schema"
	"grimoire/internal/store"
	"grimoire/internal/value"
)

func testParser(t *testing.T) *parser.Parser {
	t.Helper()
	r := schema.NewRegistry()
	require.NoError(t, r.DefineCategory(schema.Category{
		Name: "base item",
		Slots: []*schema.Slot{
			{Key: "value", Type: value.NumberType(), Policy: schema.Sum},
		},
	}))
	require.NoError(t, r.DefineCategory(schema.Category{Name: "item", Parent: "base item", BaseCategory: "base item"}))
	require.NoError(t, r.DefineExtension(schema.Extension{Name: "magic"}))
	return parser.New(r)
}

const weapons = `base item with magic sword =

  value 10.

base item long sword =

  base  sword;
  value 5.

base item flaming long sword =

  base  long sword.
`

type memStore struct {
	store.Store
	hashes   map[string]map[string]string
	replaced map[string][]store.Record
	stale    map[string][]string
}

func newMemStore() *memStore {
	return &memStore{
		hashes:   map[string]map[string]string{},
		replaced: map[string][]store.Record{},
		stale:    map[string][]string{},
	}
}

func (m *memStore) EnsureSchema(ctx context.Context) error { return nil }

func (m *memStore) GetSourceHashes(ctx context.Context, source string) (map[string]string, error) {
	return m.hashes[source], nil
}

func (m *memStore) ReplaceFile(ctx context.Context, source, file string, recs []store.Record) (int64, error) {
	m.replaced[file] = recs
	if m.hashes[source] == nil {
		m.hashes[source] = map[string]string{}
	}
	if len(recs) > 0 {
		m.hashes[source][file] = recs[0].SourceHash
	}
	return 0, nil
}

func (m *memStore) RemoveStaleEntries(ctx context.Context, source string, files []string) (int64, error) {
	m.stale[source] = files
	return 0, nil
}

func writeFile(t *testing.T, dir, name, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestCatalogLookup(t *testing.T) {
	p := testParser(t)
	entries, _ := p.ParseString("weapons.dma", weapons)
	require.Len(t, entries, 3)

	c := New()
	for _, e := range entries {
		require.True(t, c.Add(e, "core"))
	}
	c.Finalize()

	got, ok := c.Lookup("Base  Item", "LONG SWORD")
	require.True(t, ok)
	assert.Equal(t, "long sword", got.Name())
	assert.Equal(t, "core", c.SourceOf(got.Key()))

	flaming, _ := c.Get(entry.Key{Category: "base item", ID: "flaming long sword"})
	require.NotNil(t, flaming)
	assert.True(t, flaming.IsBasedOn("sword"))
	assert.True(t, flaming.HasExtension("magic"), "extensions are inherited through the base chain")

	_, ok = c.Lookup("base item", "axe")
	assert.False(t, ok)
	assert.Len(t, c.Category("base item"), 3)
	assert.Equal(t, "flaming long sword", c.Category("base item")[0].Name())
}

func TestCatalogDuplicatesAndFallback(t *testing.T) {
	p := testParser(t)
	first, _ := p.ParseString("a.dma", "base item sword =\n\n  value 1.\n")
	second, _ := p.ParseString("b.dma", "base item Sword =\n\n  value 2.\n")
	axe, _ := p.ParseString("c.dma", "base item axe =\n\n  value 3.\n")

	fallback := New()
	fallback.Add(axe[0], "store")

	c := New(WithFallback(fallback))
	assert.True(t, c.Add(first[0], "core"))
	assert.False(t, c.Add(second[0], "homebrew"))

	dups := c.Duplicates()
	require.Len(t, dups, 1)
	assert.Equal(t, "a.dma", dups[0].Kept)
	assert.Equal(t, "b.dma", dups[0].Ignore)

	got, ok := c.Lookup("base item", "axe")
	require.True(t, ok)
	assert.Equal(t, value.Number(3), got.Get("value"))

	assert.Equal(t, 1, c.RemoveFile("a.dma"))
	assert.Zero(t, c.Len())
}

func TestRemoveFileForgetsResolvedBases(t *testing.T) {
	p := testParser(t)
	sword, _ := p.ParseString("a.dma", "base item sword =\n\n  value 1.\n")
	rope, _ := p.ParseString("b.dma", "item rope =\n\n  base sword.\n")
	require.Len(t, sword, 1)
	require.Len(t, rope, 1)

	c := New()
	require.True(t, c.Add(rope[0], "core"))
	assert.False(t, rope[0].Bases()[0].Found)
	require.True(t, c.Add(sword[0], "core"))
	c.Finalize()
	assert.Same(t, sword[0], rope[0].BaseEntries()[0], "bases added later resolve on finalize")

	assert.Equal(t, 1, c.RemoveFile("a.dma"))
	assert.False(t, rope[0].Bases()[0].Found)
	assert.Equal(t, []*entry.Entry{nil}, rope[0].BaseEntries())

	again, _ := p.ParseString("a.dma", "base item sword =\n\n  value 2.\n")
	require.True(t, c.Add(again[0], "core"))
	c.Finalize()
	assert.Same(t, again[0], rope[0].BaseEntries()[0])
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	core := writeFile(t, dir, "core/weapons.dma", weapons)
	writeFile(t, dir, "core/notes.txt", "not an entry file")
	writeFile(t, dir, "core/drafts/wip.dma", "base item wip =\n\n.\n")
	home := writeFile(t, dir, "home/gear.dma", "item rope =\n\n  base  sword.\n\nbase item sword =\n\n  value 99.\n\nbogus thing.\n")

	cfg := &config.ProjectConfig{
		Sources: []config.Source{
			{Name: "home", Paths: []string{filepath.Join(dir, "home")}},
			{Name: "core", Paths: []string{filepath.Join(dir, "core")}, Canonical: true},
		},
		Exclude: []string{filepath.Join(dir, "core", "drafts")},
	}
	p := testParser(t)
	st := newMemStore()

	c := New()
	result, err := Load(context.Background(), c, cfg, p, st, Options{})
	require.NoError(t, err)

	assert.Equal(t, 2, result.FilesRead)
	assert.Equal(t, 4, result.EntriesLoaded, "the homebrew sword duplicates the canonical one")
	assert.Equal(t, 4, result.EntriesStored, "ignored duplicates are not stored")
	assert.Empty(t, result.Errors)
	assert.NotEmpty(t, result.Warnings, "the unknown entry type is reported")
	require.Len(t, c.Duplicates(), 1)

	sword, ok := c.Lookup("base item", "sword")
	require.True(t, ok)
	assert.Equal(t, value.Number(10), sword.Get("value"), "canonical sources load first")

	rope, ok := c.Lookup("item", "rope")
	require.True(t, ok)
	assert.True(t, rope.HasExtension("magic"))

	require.Len(t, st.replaced[core], 3)
	assert.Equal(t, "core", st.replaced[core][0].Source)
	assert.Equal(t, []string{home}, st.stale["home"])

	t.Run("unchanged files are skipped on the next run", func(t *testing.T) {
		again, err := Load(context.Background(), New(), cfg, p, st, Options{})
		require.NoError(t, err)
		assert.Equal(t, 2, again.FilesSkipped)
		assert.Zero(t, again.EntriesStored)
		assert.Equal(t, 4, again.EntriesLoaded)
	})

	t.Run("full reload stores everything", func(t *testing.T) {
		full, err := Load(context.Background(), New(), cfg, p, st, Options{Full: true})
		require.NoError(t, err)
		assert.Zero(t, full.FilesSkipped)
		assert.Equal(t, 4, full.EntriesStored)
	})

	t.Run("without a store only the catalog is filled", func(t *testing.T) {
		only, err := Load(context.Background(), New(), cfg, p, nil, Options{})
		require.NoError(t, err)
		assert.Equal(t, 4, only.EntriesLoaded)
		assert.Zero(t, only.EntriesStored)
	})
}

func TestWalkFiles(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.dma", "")
	writeFile(t, dir, "b.DMA.bak", "")
	upper := writeFile(t, dir, "sub/C.DMA", "")
	writeFile(t, dir, "sub/skip.dma", "")

	files, err := WalkFiles([]string{dir}, []string{"skip.dma"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{a, upper}, files)
}
