package sqlite

import (
	"testing"
)

func TestConvertWebsearchToFTS5(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "simple term", input: "longsword", expected: "longsword"},
		{name: "multiple terms", input: "magic sword", expected: "magic AND sword"},
		{name: "explicit AND", input: "sword AND shield", expected: "sword AND shield"},
		{name: "explicit OR", input: "sword OR axe", expected: "sword OR axe"},
		{name: "negation", input: "sword -cursed", expected: "sword NOT cursed"},
		{name: "phrase", input: `"flaming sword"`, expected: `"flaming sword"`},
		{name: "phrase with other term", input: `"flaming sword" dwarf`, expected: `"flaming sword" AND dwarf`},
		{name: "prefix search", input: "sword*", expected: "sword*"},
		{name: "punctuation is quoted", input: "d8+1", expected: `"d8+1"`},
		{name: "quoted prefix keeps star", input: "half-orc*", expected: `"half-orc"*`},
		{
			name:     "complex query",
			input:    `"flaming sword" -cursed dwarf OR elf`,
			expected: `"flaming sword" NOT cursed AND dwarf OR elf`,
		},
		{name: "NOT operator", input: "sword NOT cursed", expected: "sword NOT cursed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := convertWebsearchToFTS5(tt.input)
			if result != tt.expected {
				t.Errorf("convertWebsearchToFTS5(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}
