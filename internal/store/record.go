package store

import (
	"strings"

	"grimoire/internal/entry"
	"grimoire/internal/parser"
	"grimoire/internal/schema"
)

// NewRecord captures e as it would be written by p.
func NewRecord(p *parser.Parser, e *entry.Entry, source, file, hash string) Record {
	attrs := make(map[string]string)
	for key, v := range e.AllValues() {
		k := schema.Normalize(key)
		if k == schema.NameKey || k == schema.BaseKey {
			continue
		}
		attrs[k] = v.String()
	}
	return Record{
		Category:     schema.Normalize(e.Category().Name),
		Name:         e.Name(),
		BaseCategory: schema.Normalize(e.BaseCategory()),
		Source:       source,
		SourceFile:   file,
		SourceHash:   hash,
		Bases:        e.BaseNames(),
		Extensions:   e.ExtensionNames(),
		Attributes:   attrs,
		Text:         p.Format(e),
	}
}

// NormalizeName folds an entry name for keyed lookups.
func NormalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}
