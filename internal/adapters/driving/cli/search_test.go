package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/dossier/internal/core/domain"
)

func TestSearchCmd_Use(t *testing.T) {
	assert.Equal(t, "search [query]", searchCmd.Use)
}

func TestSearchCmd_Long(t *testing.T) {
	assert.Contains(t, searchCmd.Long, "BM25")
}

func TestSearchCmd_RequiresExactlyOneArg(t *testing.T) {
	_, err := execute(t, "search")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg(s)")
}

func TestSearchCmd_Flags(t *testing.T) {
	tests := []struct {
		name      string
		shorthand string
		def       string
	}{
		{"page", "", "1"},
		{"per-page", "n", "20"},
		{"source", "", ""},
		{"json", "", "false"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flag := searchCmd.Flags().Lookup(tt.name)
			require.NotNil(t, flag)
			assert.Equal(t, tt.shorthand, flag.Shorthand)
			assert.Equal(t, tt.def, flag.DefValue)
		})
	}
}

func TestSearchCmd_ExecutesWithQuery(t *testing.T) {
	svc := setupTestServices(t)

	out, err := execute(t, "search", "manifest")

	require.NoError(t, err)
	assert.Equal(t, domain.SearchQuery{Query: "manifest", Page: 1, PerPage: 20}, svc.search.last)
	assert.Contains(t, out, "Results 1 of 1 (page 1 of 1)")
	assert.Contains(t, out, "[1] Flight log 1997")
	assert.Contains(t, out, "Source: doj")
	assert.Contains(t, out, "for the flight")
	assert.NotContains(t, out, "<mark>")
}

func TestSearchCmd_PassesFlags(t *testing.T) {
	svc := setupTestServices(t)

	_, err := execute(t, "search", "--page", "3", "-n", "5", "--source", "doj", "flight log")

	require.NoError(t, err)
	assert.Equal(t, domain.SearchQuery{Query: "flight log", Source: "doj", Page: 3, PerPage: 5}, svc.search.last)
}

func TestSearchCmd_JSONOutput(t *testing.T) {
	setupTestServices(t)

	out, err := execute(t, "search", "--json", "manifest")
	require.NoError(t, err)

	var page domain.SearchPage
	require.NoError(t, json.Unmarshal([]byte(out), &page))
	assert.Equal(t, 1, page.Total)
	require.Len(t, page.Results, 1)
	assert.Equal(t, int64(1), page.Results[0].ID)
}

func TestSearchCmd_ServiceNotConfigured(t *testing.T) {
	SetServices(nil)

	_, err := execute(t, "search", "test")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "search service not configured")
}

func TestSearchCmd_ServiceError(t *testing.T) {
	svc := setupTestServices(t)
	svc.search.err = domain.ErrInvalidInput

	_, err := execute(t, "search", "a")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "search failed")
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestOutputSearchTable_EmptyResults(t *testing.T) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)

	err := outputSearchTable(rootCmd, &domain.SearchPage{})

	assert.NoError(t, err)
	assert.Contains(t, buf.String(), "No results found")
}

func TestOutputSearchTable_WithoutTitle(t *testing.T) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)

	page := &domain.SearchPage{
		Results: []domain.SearchResult{{ID: 9, Filename: "cl-4355835-12.pdf", Source: "courtlistener"}},
		Total:   41, Page: 3, PerPage: 20, Pages: 3,
	}
	err := outputSearchTable(rootCmd, page)

	assert.NoError(t, err)
	assert.Contains(t, buf.String(), "[41] cl-4355835-12.pdf")
}

func TestPlainSnippet(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no marks", "plain text", "plain text"},
		{"collapses whitespace", "a\n\n  b", "a b"},
		{"unterminated mark", "a <mark>b", "a <mark>b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, plainSnippet(tt.in))
		})
	}
}
