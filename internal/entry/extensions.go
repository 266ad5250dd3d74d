package entry

import (
	"fmt"
	"strings"

	"grimoire/internal/schema"
)

// AddExtension attaches a registered extension. Unknown extensions and
// extensions meant for another category are reported and skipped.
func (e *Entry) AddExtension(name string) bool {
	if e.HasExtension(name) {
		return true
	}
	x, err := e.reg.NewExtension(name)
	if err != nil {
		e.Warn("extension.unknown", fmt.Sprintf("%s: %v", e.String(), err))
		return false
	}
	if x.Category != "" && !e.reg.IsA(e.category.Name, x.Category) {
		e.Warn("extension.category", fmt.Sprintf("extension %s does not apply to %s", x.Name, e.category.Name))
		return false
	}
	e.extensions = append(e.extensions, attached{name: x.Name, ext: x})
	return true
}

func (e *Entry) RemoveExtension(name string) bool {
	for i, a := range e.extensions {
		if !strings.EqualFold(a.name, name) {
			continue
		}
		for _, s := range a.ext.Slots {
			k := schema.Normalize(s.Key)
			delete(e.values, k)
			delete(e.exprs, k)
		}
		e.extensions = append(e.extensions[:i], e.extensions[i+1:]...)
		return true
	}
	return false
}

// SetExtensions makes the attached set equal to names, keeping extensions
// that stay and attaching new ones in the given order.
func (e *Entry) SetExtensions(names []string) {
	keep := make(map[string]bool, len(names))
	for _, n := range names {
		keep[schema.Normalize(n)] = true
	}
	for _, n := range e.ExtensionNames() {
		if !keep[schema.Normalize(n)] {
			e.RemoveExtension(n)
		}
	}
	for _, n := range names {
		e.AddExtension(n)
	}
}

func (e *Entry) HasExtension(name string) bool {
	for _, a := range e.extensions {
		if strings.EqualFold(a.name, name) {
			return true
		}
	}
	return false
}

func (e *Entry) Extensions() []*schema.Extension {
	out := make([]*schema.Extension, len(e.extensions))
	for i, a := range e.extensions {
		out[i] = a.ext
	}
	return out
}

func (e *Entry) ExtensionNames() []string {
	out := make([]string, len(e.extensions))
	for i, a := range e.extensions {
		out[i] = a.name
	}
	return out
}

// InheritExtensions attaches every extension carried by a resolved base.
func (e *Entry) InheritExtensions() {
	for _, base := range e.BaseEntries() {
		if base == nil {
			continue
		}
		for _, n := range base.ExtensionNames() {
			if !e.HasExtension(n) {
				e.AddExtension(n)
			}
		}
	}
}
