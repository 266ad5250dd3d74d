package schema

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimoire/internal/value"
)

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry()
	require.NoError(t, r.DefineCategory(Category{Name: "abstract entry"}))
	require.NoError(t, r.DefineCategory(Category{
		Name:   "base entry",
		Parent: "abstract entry",
		Slots: []*Slot{
			{Key: "description", Type: value.TextType()},
		},
	}))
	require.NoError(t, r.DefineCategory(Category{
		Name:   "base monster",
		Parent: "base entry",
		Slots: []*Slot{
			{Key: "hit dice", Type: value.NumberType(), Policy: Sum},
			{Key: "secret", Type: value.TextType(), DMOnly: true},
		},
	}))
	require.NoError(t, r.DefineCategory(Category{
		Name:         "monster",
		Parent:       "abstract entry",
		BaseCategory: "base monster",
	}))
	return r
}

func keys(slots []*Slot) []string {
	out := make([]string, len(slots))
	for i, s := range slots {
		out[i] = s.Key
	}
	return out
}

func TestSlotsConcatenateAncestorsFirst(t *testing.T) {
	r := testRegistry(t)
	slots, err := r.Slots("Base  Monster")
	require.NoError(t, err)
	assert.Equal(t, []string{NameKey, BaseKey, "description", "hit dice", "secret"}, keys(slots))

	again, err := r.Slots("base monster")
	require.NoError(t, err)
	assert.Same(t, slots[0], again[0])
}

func TestSlotLookup(t *testing.T) {
	r := testRegistry(t)
	s, err := r.Slot("base monster", "HIT DICE")
	require.NoError(t, err)
	assert.Equal(t, Sum, s.Policy)

	_, err = r.Slot("base monster", "wings")
	assert.ErrorIs(t, err, ErrUnknownSlot)

	_, err = r.Slots("vehicle")
	assert.ErrorIs(t, err, ErrUnknownCategory)
}

func TestDefineCategoryErrors(t *testing.T) {
	r := testRegistry(t)
	assert.ErrorIs(t, r.DefineCategory(Category{Name: "monster"}), ErrDuplicateCategory)
	assert.ErrorIs(t, r.DefineCategory(Category{Name: "npc", Parent: "person"}), ErrUnknownCategory)
	assert.ErrorIs(t, r.DefineCategory(Category{
		Name:   "base npc",
		Parent: "base entry",
		Slots:  []*Slot{{Key: "Description", Type: value.TextType()}},
	}), ErrDuplicateSlot)
	assert.Error(t, r.DefineCategory(Category{Name: "  "}))
}

func TestKeyWidth(t *testing.T) {
	r := testRegistry(t)
	assert.Equal(t, len("description")+1, r.KeyWidth("base monster"))
	assert.Equal(t, len("base")+1, r.KeyWidth("abstract entry"))
	assert.Equal(t, 0, r.KeyWidth("unknown"))
}

func TestBaseCategoryAndIsA(t *testing.T) {
	r := testRegistry(t)
	assert.Equal(t, "base monster", r.BaseCategory("monster"))
	assert.Equal(t, "base entry", r.BaseCategory("base entry"))
	assert.True(t, r.IsA("base monster", "abstract entry"))
	assert.False(t, r.IsA("monster", "base entry"))
}

func TestExtensionsAreFreshCopies(t *testing.T) {
	r := testRegistry(t)
	require.NoError(t, r.DefineExtension(Extension{
		Name:     "magic",
		Slots:    []*Slot{{Key: "aura", Type: value.TextType()}},
		Policies: map[string]Policy{"hit dice": Max},
		Values:   map[string]value.Value{"hit dice": value.Number(1)},
	}))

	a, err := r.NewExtension("Magic")
	require.NoError(t, err)
	b, err := r.NewExtension("magic")
	require.NoError(t, err)
	assert.NotSame(t, a, b)

	a.Values["hit dice"] = value.Number(9)
	assert.Equal(t, value.Number(1), b.Value("HIT DICE"))
	assert.Equal(t, "magic", a.Slots[0].Extension)

	p, ok := a.Policy("hit dice")
	require.True(t, ok)
	assert.Equal(t, Max, p)

	_, err = r.NewExtension("cursed")
	assert.ErrorIs(t, err, ErrUnknownExtension)
	assert.Equal(t, []string{"magic"}, r.Extensions())
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("SUM")
	require.NoError(t, err)
	assert.Equal(t, Sum, p)

	p, err = ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, First, p)

	_, err = ParsePolicy("average")
	assert.Error(t, err)
}

func TestPolicyCheck(t *testing.T) {
	assert.NoError(t, Max.Check(value.KindOrdinal))
	assert.NoError(t, Min.Check(value.KindName))
	assert.NoError(t, Sum.Check(value.KindText))
	assert.NoError(t, Bonus.Check(value.KindList))
	assert.NoError(t, First.Check(value.KindFlag))
	assert.NoError(t, List.Check(value.KindOrdinal))

	assert.Error(t, Max.Check(value.KindText))
	assert.Error(t, Min.Check(value.KindFlag))
	assert.Error(t, Sum.Check(value.KindOrdinal))
	assert.Error(t, Bonus.Check(value.KindName))
}

func TestConcurrentSlotAccess(t *testing.T) {
	r := testRegistry(t)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			slots, err := r.Slots("base monster")
			assert.NoError(t, err)
			assert.Len(t, slots, 5)
			assert.Equal(t, len("description")+1, r.KeyWidth("base monster"))
		}()
	}
	wg.Wait()
}
