package mcp

import (
	"context"
	"fmt"
	"sort"
	"strings"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"grimoire/internal/combine"
	"grimoire/internal/config"
	"grimoire/internal/entry"
	"grimoire/internal/store"
	"grimoire/internal/value"
)

type GetEntryInput struct {
	Category string `json:"category" jsonschema:"entry category"`
	Name     string `json:"name" jsonschema:"entry name"`
	DM       bool   `json:"dm,omitempty" jsonschema:"include dm-only attributes"`
}

type CombineValueInput struct {
	Category string `json:"category" jsonschema:"entry category"`
	Name     string `json:"name" jsonschema:"entry name"`
	Key      string `json:"key" jsonschema:"attribute key"`
}

type ComputeTextInput struct {
	Text     string            `json:"text" jsonschema:"text with $parameters and [[expressions]]"`
	Params   map[string]string `json:"params,omitempty" jsonschema:"parameter values"`
	Category string            `json:"category,omitempty" jsonschema:"category of an entry whose values become parameters"`
	Name     string            `json:"name,omitempty" jsonschema:"name of an entry whose values become parameters"`
}

type ListEntriesInput struct {
	Category  string `json:"category,omitempty" jsonschema:"category filter"`
	Source    string `json:"source,omitempty" jsonschema:"source filter"`
	Extension string `json:"extension,omitempty" jsonschema:"extension filter"`
}

type SearchEntriesInput struct {
	Query    string `json:"query" jsonschema:"search terms"`
	Category string `json:"category,omitempty" jsonschema:"restrict to a category"`
}

type GetDependentsInput struct {
	Category string `json:"category" jsonschema:"category of the base entry"`
	Name     string `json:"name" jsonschema:"name of the base entry"`
	Depth    int    `json:"depth,omitempty" jsonschema:"maximum depth"`
}

type GetSchemaInput struct{}

type EntryOutput struct {
	Category   string            `json:"category"`
	Name       string            `json:"name"`
	Source     string            `json:"source"`
	SourceFile string            `json:"source_file"`
	Bases      []string          `json:"bases"`
	Extensions []string          `json:"extensions"`
	Attributes map[string]string `json:"attributes"`
	Text       string            `json:"text"`
}

type ContributionOutput struct {
	Source string `json:"source"`
	Value  string `json:"value"`
}

type CombineValueOutput struct {
	Key        string               `json:"key"`
	Defined    bool                 `json:"defined"`
	Value      string               `json:"value"`
	Expression string               `json:"expression,omitempty"`
	Computed   string               `json:"computed,omitempty"`
	Provenance []ContributionOutput `json:"provenance"`
}

type ComputeTextOutput struct {
	Text string `json:"text"`
}

type EntrySummaryOutput struct {
	Category   string   `json:"category"`
	Name       string   `json:"name"`
	Source     string   `json:"source"`
	Bases      []string `json:"bases"`
	Extensions []string `json:"extensions"`
}

type ListEntriesOutput struct {
	Entries []EntrySummaryOutput `json:"entries"`
}

type SearchResultOutput struct {
	Category string  `json:"category"`
	Name     string  `json:"name"`
	Source   string  `json:"source"`
	Score    float64 `json:"score"`
	Snippet  string  `json:"snippet"`
}

type SearchEntriesOutput struct {
	Results []SearchResultOutput `json:"results"`
}

type DependentOutput struct {
	EntrySummaryOutput
	Via   string `json:"via"`
	Depth int    `json:"depth"`
}

type GetDependentsOutput struct {
	Dependents []DependentOutput `json:"dependents"`
}

type SchemaOutput struct {
	Version    int               `json:"version"`
	Categories []CategoryOutput  `json:"categories"`
	Extensions []ExtensionOutput `json:"extensions"`
}

type CategoryOutput struct {
	Name         string       `json:"name"`
	Base         string       `json:"base,omitempty"`
	BaseCategory string       `json:"base_category,omitempty"`
	Slots        []SlotOutput `json:"slots"`
}

type ExtensionOutput struct {
	Name     string            `json:"name"`
	Category string            `json:"category,omitempty"`
	Slots    []SlotOutput      `json:"slots"`
	Policies map[string]string `json:"policies,omitempty"`
}

type SlotOutput struct {
	Key    string   `json:"key"`
	Kind   string   `json:"kind"`
	Values []string `json:"values,omitempty"`
	Policy string   `json:"policy,omitempty"`
	DMOnly bool     `json:"dm_only,omitempty"`
}

func (s *Server) registerTools() {
	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "get_entry",
		Description: "Retrieve an entry with its attributes and canonical text",
	}, s.handleGetEntry)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "combine_value",
		Description: "Compute the effective value of an attribute across bases and extensions",
	}, s.handleCombineValue)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "compute_text",
		Description: "Substitute parameters and evaluate [[expressions]] in text",
	}, s.handleComputeText)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "list_entries",
		Description: "List entries with optional filters",
	}, s.handleListEntries)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "search_entries",
		Description: "Full-text search over stored entries",
	}, s.handleSearchEntries)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "get_dependents",
		Description: "List entries built on a base entry",
	}, s.handleGetDependents)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "get_schema",
		Description: "Return the category and extension declarations",
	}, s.handleGetSchema)
}

func (s *Server) lookup(category, name string) (*entry.Entry, error) {
	if category == "" || name == "" {
		return nil, fmt.Errorf("category and name are required")
	}
	cat := s.catalog()
	if cat == nil {
		return nil, fmt.Errorf("no entries loaded")
	}
	e, ok := cat.Lookup(category, name)
	if !ok {
		return nil, fmt.Errorf("entry not found: %s %s", category, name)
	}
	return e, nil
}

func (s *Server) handleGetEntry(ctx context.Context, req *sdk.CallToolRequest, input GetEntryInput) (*sdk.CallToolResult, EntryOutput, error) {
	e, err := s.lookup(input.Category, input.Name)
	if err != nil {
		return nil, EntryOutput{}, err
	}
	out := EntryOutput{
		Category:   e.Category().Name,
		Name:       e.Name(),
		Source:     s.catalog().SourceOf(e.Key()),
		SourceFile: e.Source,
		Bases:      append([]string{}, e.BaseNames()...),
		Extensions: append([]string{}, e.ExtensionNames()...),
		Attributes: map[string]string{},
		Text:       s.parser.Format(e),
	}
	for _, slot := range e.VisibleSlots(input.DM) {
		if v := e.Get(slot.Key); v != nil {
			out.Attributes[slot.Key] = v.String()
		}
	}
	return nil, out, nil
}

func (s *Server) handleCombineValue(ctx context.Context, req *sdk.CallToolRequest, input CombineValueInput) (*sdk.CallToolResult, CombineValueOutput, error) {
	if input.Key == "" {
		return nil, CombineValueOutput{}, fmt.Errorf("key is required")
	}
	e, err := s.lookup(input.Category, input.Name)
	if err != nil {
		return nil, CombineValueOutput{}, err
	}

	result := combine.Combine(e, input.Key)
	out := CombineValueOutput{
		Key:        input.Key,
		Defined:    result.Defined(),
		Value:      valueString(result.Value),
		Provenance: make([]ContributionOutput, 0, len(result.Provenance)),
	}
	for _, c := range result.Provenance {
		out.Provenance = append(out.Provenance, ContributionOutput{Source: c.Source, Value: valueString(c.Value)})
	}
	if text := e.Expression(input.Key); text != "" {
		out.Expression = text
		out.Computed = s.eval.Compute(text, entryParams(e))
	}
	return nil, out, nil
}

func (s *Server) handleComputeText(ctx context.Context, req *sdk.CallToolRequest, input ComputeTextInput) (*sdk.CallToolResult, ComputeTextOutput, error) {
	if input.Text == "" {
		return nil, ComputeTextOutput{}, fmt.Errorf("text is required")
	}
	params := map[string]string{}
	if input.Category != "" || input.Name != "" {
		e, err := s.lookup(input.Category, input.Name)
		if err != nil {
			return nil, ComputeTextOutput{}, err
		}
		params = entryParams(e)
	}
	for k, v := range input.Params {
		params[k] = v
	}
	return nil, ComputeTextOutput{Text: s.eval.Compute(input.Text, params)}, nil
}

func (s *Server) handleListEntries(ctx context.Context, req *sdk.CallToolRequest, input ListEntriesInput) (*sdk.CallToolResult, ListEntriesOutput, error) {
	if s.db != nil {
		items, err := s.db.ListEntries(ctx, store.Filter{Category: input.Category, Source: input.Source, Extension: input.Extension})
		if err != nil {
			return nil, ListEntriesOutput{}, err
		}
		output := make([]EntrySummaryOutput, 0, len(items))
		for _, item := range items {
			output = append(output, summaryOutputFromStore(item))
		}
		return nil, ListEntriesOutput{Entries: output}, nil
	}

	cat := s.catalog()
	if cat == nil {
		return nil, ListEntriesOutput{Entries: []EntrySummaryOutput{}}, nil
	}
	output := make([]EntrySummaryOutput, 0)
	for _, e := range cat.Entries() {
		source := cat.SourceOf(e.Key())
		if input.Category != "" && !strings.EqualFold(e.Category().Name, input.Category) {
			continue
		}
		if input.Source != "" && !strings.EqualFold(source, input.Source) {
			continue
		}
		if input.Extension != "" && !e.HasExtension(input.Extension) {
			continue
		}
		output = append(output, EntrySummaryOutput{
			Category:   e.Category().Name,
			Name:       e.Name(),
			Source:     source,
			Bases:      append([]string{}, e.BaseNames()...),
			Extensions: append([]string{}, e.ExtensionNames()...),
		})
	}
	sort.Slice(output, func(i, j int) bool {
		if output[i].Category != output[j].Category {
			return output[i].Category < output[j].Category
		}
		return strings.ToLower(output[i].Name) < strings.ToLower(output[j].Name)
	})
	return nil, ListEntriesOutput{Entries: output}, nil
}

func (s *Server) handleSearchEntries(ctx context.Context, req *sdk.CallToolRequest, input SearchEntriesInput) (*sdk.CallToolResult, SearchEntriesOutput, error) {
	if input.Query == "" {
		return nil, SearchEntriesOutput{}, fmt.Errorf("query is required")
	}
	if s.db == nil {
		return nil, SearchEntriesOutput{}, fmt.Errorf("search requires a database")
	}
	results, err := s.db.Search(ctx, input.Query, input.Category)
	if err != nil {
		return nil, SearchEntriesOutput{}, err
	}

	output := make([]SearchResultOutput, 0, len(results))
	for _, r := range results {
		output = append(output, SearchResultOutput{
			Category: r.Category,
			Name:     r.Name,
			Source:   r.Source,
			Score:    r.Score,
			Snippet:  r.Snippet,
		})
	}
	return nil, SearchEntriesOutput{Results: output}, nil
}

func (s *Server) handleGetDependents(ctx context.Context, req *sdk.CallToolRequest, input GetDependentsInput) (*sdk.CallToolResult, GetDependentsOutput, error) {
	if input.Category == "" || input.Name == "" {
		return nil, GetDependentsOutput{}, fmt.Errorf("category and name are required")
	}
	if s.db == nil {
		return nil, GetDependentsOutput{}, fmt.Errorf("dependents require a database")
	}
	depth := input.Depth
	if depth == 0 {
		depth = 1
	}
	deps, err := s.db.ListDependents(ctx, input.Category, input.Name, depth)
	if err != nil {
		return nil, GetDependentsOutput{}, err
	}

	output := make([]DependentOutput, 0, len(deps))
	for _, d := range deps {
		output = append(output, DependentOutput{
			EntrySummaryOutput: summaryOutputFromStore(d.Summary),
			Via:                d.Via,
			Depth:              d.Depth,
		})
	}
	return nil, GetDependentsOutput{Dependents: output}, nil
}

func (s *Server) handleGetSchema(ctx context.Context, req *sdk.CallToolRequest, input GetSchemaInput) (*sdk.CallToolResult, SchemaOutput, error) {
	return nil, schemaOutputFromConfig(s.schema), nil
}

// entryParams exposes the combined value of every attribute of e as an
// expression parameter.
func entryParams(e *entry.Entry) map[string]string {
	params := map[string]string{}
	for _, slot := range e.Slots() {
		if r := combine.Combine(e, slot.Key); r.Defined() {
			params[slot.Key] = r.Value.String()
		}
	}
	return params
}

func valueString(v value.Value) string {
	if v == nil {
		return value.Undefined
	}
	return v.String()
}

func summaryOutputFromStore(item store.Summary) EntrySummaryOutput {
	return EntrySummaryOutput{
		Category:   item.Category,
		Name:       item.Name,
		Source:     item.Source,
		Bases:      append([]string{}, item.Bases...),
		Extensions: append([]string{}, item.Extensions...),
	}
}

func schemaOutputFromConfig(schema *config.Schema) SchemaOutput {
	if schema == nil {
		return SchemaOutput{}
	}

	out := SchemaOutput{
		Version:    schema.Version,
		Categories: make([]CategoryOutput, 0, len(schema.Categories)),
		Extensions: make([]ExtensionOutput, 0, len(schema.Extensions)),
	}
	for _, c := range schema.Categories {
		out.Categories = append(out.Categories, CategoryOutput{
			Name:         c.Name,
			Base:         c.Base,
			BaseCategory: c.BaseCategory,
			Slots:        slotOutputs(c.Slots),
		})
	}
	for _, x := range schema.Extensions {
		out.Extensions = append(out.Extensions, ExtensionOutput{
			Name:     x.Name,
			Category: x.Category,
			Slots:    slotOutputs(x.Slots),
			Policies: x.Policies,
		})
	}
	return out
}

func slotOutputs(decls []config.SlotDecl) []SlotOutput {
	out := make([]SlotOutput, 0, len(decls))
	for _, d := range decls {
		kind := d.Kind
		if kind == "" {
			kind = string(value.KindText)
		}
		out = append(out, SlotOutput{
			Key:    d.Key,
			Kind:   kind,
			Values: d.Values,
			Policy: d.Policy,
			DMOnly: d.DMOnly,
		})
	}
	return out
}
