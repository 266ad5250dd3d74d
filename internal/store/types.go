package store

type Record struct {
	ID           string
	Category     string
	Name         string
	BaseCategory string
	Source       string
	SourceFile   string
	SourceHash   string
	Bases        []string
	Extensions   []string
	Attributes   map[string]string
	Text         string
}

type Summary struct {
	Category   string
	Name       string
	Source     string
	Bases      []string
	Extensions []string
}

type Filter struct {
	Category  string
	Source    string
	Extension string
}

// Dependent is an entry that names another entry as a base, directly at
// depth 1 or through intermediate bases.
type Dependent struct {
	Summary
	Via   string
	Depth int
}

type UnresolvedBase struct {
	Category     string
	Name         string
	BaseCategory string
	Base         string
}

type SearchResult struct {
	Category string
	Name     string
	Source   string
	Score    float64
	Snippet  string
}
