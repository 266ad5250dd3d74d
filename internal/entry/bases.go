package entry

import (
	"fmt"
	"strings"

	"grimoire/internal/schema"
)

func (e *Entry) BaseNames() []string {
	return append([]string(nil), e.baseNames...)
}

// AddBase records a base by name. Naming the entry itself in its own base
// category is ignored. A base that cannot be found is kept by name and
// reported, so it can still resolve once the base is loaded.
func (e *Entry) AddBase(name string) {
	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		return
	}
	if strings.EqualFold(name, e.name) && schema.Normalize(e.BaseCategory()) == schema.Normalize(e.category.Name) {
		e.logger.Debug("ignoring self reference as base", "entry", e.String())
		return
	}
	e.baseNames = append(e.baseNames, name)

	ref := e.resolve(name)
	if !ref.Found && e.lookup != nil {
		e.Warn("entry.base.unresolved", fmt.Sprintf("base %q of %s not found", name, e.String()))
	}
	if e.bases != nil {
		e.bases = append(e.bases, ref)
	}
}

func (e *Entry) RemoveBase(name string) bool {
	for i, n := range e.baseNames {
		if strings.EqualFold(n, name) {
			e.baseNames = append(e.baseNames[:i], e.baseNames[i+1:]...)
			e.bases = nil
			return true
		}
	}
	return false
}

func (e *Entry) resolve(name string) BaseRef {
	ref := BaseRef{Name: name}
	if e.lookup == nil {
		return ref
	}
	base, ok := e.lookup.Lookup(e.BaseCategory(), name)
	if !ok || base == nil {
		return ref
	}
	ref.Key = base.Key()
	ref.Found = true
	return ref
}

// Bases resolves every base name. The refs are cached, absent ones
// included, until ResetBases or EnsureBasesResolved looks again.
func (e *Entry) Bases() []BaseRef {
	if e.bases == nil {
		refs := make([]BaseRef, 0, len(e.baseNames))
		for _, n := range e.baseNames {
			refs = append(refs, e.resolve(n))
		}
		e.bases = refs
	}
	return append([]BaseRef(nil), e.bases...)
}

// ResetBases drops the cached refs so the next Bases call resolves every
// name again.
func (e *Entry) ResetBases() {
	e.bases = nil
}

// EnsureBasesResolved retries the bases that were absent and reports
// whether every base name now refers to an entry that can be found. It
// never fails hard.
func (e *Entry) EnsureBasesResolved() bool {
	e.Bases()
	complete := true
	for i, ref := range e.bases {
		if !ref.Found {
			e.bases[i] = e.resolve(ref.Name)
			complete = complete && e.bases[i].Found
		}
	}
	return complete
}

// BaseEntries returns the base entries in declaration order, with nil in
// place of bases that cannot be found.
func (e *Entry) BaseEntries() []*Entry {
	refs := e.Bases()
	out := make([]*Entry, len(refs))
	for i, ref := range refs {
		if !ref.Found || e.lookup == nil {
			continue
		}
		if base, ok := e.lookup.Lookup(ref.Key.Category, ref.Key.ID); ok {
			out[i] = base
		}
	}
	return out
}

// IsBasedOn reports whether name appears anywhere in the base chain.
func (e *Entry) IsBasedOn(name string) bool {
	return e.isBasedOn(name, make(map[*Entry]bool))
}

func (e *Entry) isBasedOn(name string, seen map[*Entry]bool) bool {
	if seen[e] {
		return false
	}
	seen[e] = true
	for _, n := range e.baseNames {
		if strings.EqualFold(n, name) {
			return true
		}
	}
	for _, base := range e.BaseEntries() {
		if base != nil && base.isBasedOn(name, seen) {
			return true
		}
	}
	return false
}
