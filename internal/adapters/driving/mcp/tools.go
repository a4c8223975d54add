package mcp

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/dossier/internal/core/domain"
)

// MaxTextChars caps the extracted text returned by get_document.
const MaxTextChars = 50000

// SearchInput is the input schema for the search tool.
type SearchInput struct {
	Query   string `json:"query" jsonschema:"full-text query; at least two characters"`
	Page    int    `json:"page,omitempty" jsonschema:"1-based result page (default 1)"`
	PerPage int    `json:"per_page,omitempty" jsonschema:"results per page (default 20, max 100)"`
	Source  string `json:"source,omitempty" jsonschema:"restrict results to one source, e.g. doj"`
}

// SearchOutput is the output schema for the search tool.
type SearchOutput struct {
	Results []SearchResultOutput `json:"results"`
	Total   int                  `json:"total"`
	Page    int                  `json:"page"`
	Pages   int                  `json:"pages"`
}

// SearchResultOutput represents a single search result.
type SearchResultOutput struct {
	DocumentID int64   `json:"document_id"`
	Title      string  `json:"title"`
	Source     string  `json:"source"`
	URL        string  `json:"url"`
	Snippet    string  `json:"snippet"`
	Rank       float64 `json:"rank"`
}

// GetDocumentInput is the input schema for the get_document tool.
type GetDocumentInput struct {
	ID int64 `json:"id" jsonschema:"document id as returned by search"`
}

// DocumentOutput is the output schema for the get_document tool.
type DocumentOutput struct {
	ID               int64  `json:"id"`
	Title            string `json:"title"`
	Source           string `json:"source"`
	URL              string `json:"url"`
	Filename         string `json:"filename"`
	DownloadStatus   string `json:"download_status"`
	ExtractionStatus string `json:"extraction_status,omitempty"`
	Method           string `json:"method,omitempty"`
	PageCount        int    `json:"page_count,omitempty"`
	Text             string `json:"text,omitempty"`
	Truncated        bool   `json:"truncated,omitempty"`
}

// StatsInput is the (empty) input schema for the stats tool.
type StatsInput struct{}

// StatsOutput is the output schema for the stats tool.
type StatsOutput struct {
	Documents     int                 `json:"documents"`
	Downloaded    int                 `json:"downloaded"`
	Failed        int                 `json:"failed"`
	Extracted     int                 `json:"extracted"`
	Pages         int                 `json:"pages"`
	OCRPages      int                 `json:"ocr_pages"`
	ChunksIndexed int                 `json:"chunks_indexed"`
	Sources       []SourceStatsOutput `json:"sources"`
}

// SourceStatsOutput is one per-source row of StatsOutput.
type SourceStatsOutput struct {
	Source     string `json:"source"`
	Documents  int    `json:"documents"`
	Downloaded int    `json:"downloaded"`
	Extracted  int    `json:"extracted"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search",
		Description: "Full-text search over the extracted text of archived documents. Matches are wrapped in <mark></mark> in snippets.",
	}, s.handleSearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_document",
		Description: "Fetch one document's metadata and extracted text. Pages are delimited by '--- Page N ---' markers.",
	}, s.handleGetDocument)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "stats",
		Description: "Collection statistics: document, download, extraction and chunk totals per source.",
	}, s.handleStats)
}

// handleSearch handles the search tool invocation.
func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	page, err := s.ports.Search.Search(ctx, domain.SearchQuery{
		Query:   input.Query,
		Source:  input.Source,
		Page:    input.Page,
		PerPage: input.PerPage,
	})
	if err != nil {
		return nil, SearchOutput{}, err
	}

	output := SearchOutput{
		Results: make([]SearchResultOutput, len(page.Results)),
		Total:   page.Total,
		Page:    page.Page,
		Pages:   page.Pages,
	}
	for i := range page.Results {
		r := &page.Results[i]
		output.Results[i] = SearchResultOutput{
			DocumentID: r.ID,
			Title:      r.Title,
			Source:     r.Source,
			URL:        r.URL,
			Snippet:    r.Snippet,
			Rank:       r.Rank,
		}
	}
	return nil, output, nil
}

// handleGetDocument handles the get_document tool invocation.
func (s *Server) handleGetDocument(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input GetDocumentInput,
) (*mcp.CallToolResult, DocumentOutput, error) {
	if s.ports.Document == nil {
		return nil, DocumentOutput{}, fmt.Errorf("get_document: %w", errServiceNotConfigured)
	}

	detail, err := s.ports.Document.Get(ctx, input.ID)
	if err != nil {
		return nil, DocumentOutput{}, err
	}

	doc := detail.Document
	output := DocumentOutput{
		ID:             doc.ID,
		Title:          doc.Title,
		Source:         doc.Source,
		URL:            doc.URL,
		Filename:       doc.Filename,
		DownloadStatus: string(doc.DownloadStatus),
	}
	if e := detail.Extraction; e != nil {
		output.ExtractionStatus = string(e.Status)
		output.Method = string(e.Method)
		output.PageCount = e.PageCount
	}
	output.Text, output.Truncated = truncate(detail.Text, MaxTextChars)
	return nil, output, nil
}

// handleStats handles the stats tool invocation.
func (s *Server) handleStats(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ StatsInput,
) (*mcp.CallToolResult, StatsOutput, error) {
	if s.ports.Stats == nil {
		return nil, StatsOutput{}, fmt.Errorf("stats: %w", errServiceNotConfigured)
	}

	stats, err := s.ports.Stats.Stats(ctx)
	if err != nil {
		return nil, StatsOutput{}, err
	}

	output := StatsOutput{
		Documents:     stats.Documents,
		Downloaded:    stats.Downloaded,
		Failed:        stats.Failed,
		Extracted:     stats.Extracted,
		Pages:         stats.Pages,
		OCRPages:      stats.OCRPages,
		ChunksIndexed: stats.ChunksIndexed,
		Sources:       make([]SourceStatsOutput, len(stats.Sources)),
	}
	for i, row := range stats.Sources {
		output.Sources[i] = SourceStatsOutput{
			Source:     row.Source,
			Documents:  row.Documents,
			Downloaded: row.Downloaded,
			Extracted:  row.Extracted,
		}
	}
	return nil, output, nil
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) (string, bool) {
	if utf8.RuneCountInString(s) <= n {
		return s, false
	}
	runes := []rune(s)
	return string(runes[:n]), true
}
