package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimoire/internal/config"
	"grimoire/internal/parser"
	"grimoire/internal/validate"
)

func templateParser(t *testing.T) *parser.Parser {
	t.Helper()
	s, err := config.ParseSchema([]byte(schemaTemplate))
	require.NoError(t, err)
	reg, err := s.Registry()
	require.NoError(t, err)
	return parser.New(reg)
}

func TestFormatSource(t *testing.T) {
	p := templateParser(t)

	formatted, warnings, err := formatSource(p, "items.dma", entriesTemplate)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Contains(t, formatted, "base item with masterwork long sword =")

	again, _, err := formatSource(p, "items.dma", formatted)
	require.NoError(t, err)
	assert.Equal(t, formatted, again)

	_, warnings, err = formatSource(p, "bad.dma", "bogus thing.\n")
	require.NoError(t, err)
	assert.NotEmpty(t, warnings)
}

func TestPrintLineDiff(t *testing.T) {
	var out bytes.Buffer
	printLineDiff(&out, "a.dma", "one\ntwo\n", "one\nthree\n")
	assert.Equal(t, "--- a.dma\n+++ a.dma (formatted)\n one\n-two\n+three\n", out.String())

	out.Reset()
	printLineDiff(&out, "a.dma", "same\n", "same\n")
	assert.Empty(t, out.String())
}

func TestParseParamPairs(t *testing.T) {
	params, err := parseParamPairs([]string{"level=3", " name = Orrin ", ""})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"level": "3", "name": "Orrin"}, params)

	_, err = parseParamPairs([]string{"level"})
	assert.Error(t, err)
	_, err = parseParamPairs([]string{"=3"})
	assert.Error(t, err)
}

func TestPrintIssues(t *testing.T) {
	var out bytes.Buffer
	printIssues(&out, []validate.Issue{
		{Code: "unresolved_base", Message: "base missing", Entry: "base item/sword", Source: "core", FilePath: "items.dma", Line: 4},
		{Code: "parse_warning", Message: "odd text", FilePath: "x.dma"},
	})
	assert.Equal(t,
		"  - base item/sword [core] (items.dma:4): base missing (unresolved_base)\n"+
			"  - x.dma: odd text (parse_warning)\n",
		out.String())
}
