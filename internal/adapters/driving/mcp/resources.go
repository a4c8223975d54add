package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/dossier/internal/core/domain"
)

const (
	// uriScheme is the custom URI scheme for archive resources.
	uriScheme = "dossier://"
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "sources",
		Name:        "sources",
		Description: "Configured document sources and whether each is enabled",
		MIMEType:    "application/json",
	}, s.handleSourcesResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "sources/{source}/documents",
		Name:        "source-documents",
		Description: "First page of documents acquired from one source",
		MIMEType:    "application/json",
	}, s.handleDocumentsResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "documents/{id}",
		Name:        "document-text",
		Description: "Extracted text of one document",
		MIMEType:    "text/plain",
	}, s.handleDocumentTextResource)
}

// handleSourcesResource lists the configured sources.
func (s *Server) handleSourcesResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	infos := []domain.SourceInfo{}
	if s.ports.Acquisition != nil {
		infos = append(infos, s.ports.Acquisition.Sources(ctx)...)
	}
	return jsonResource(req.Params.URI, infos)
}

// handleDocumentsResource returns the first page of a source's documents.
func (s *Server) handleDocumentsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Document == nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	source := extractSource(req.Params.URI)
	if source == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	page, err := s.ports.Document.List(ctx, domain.DocumentFilter{
		Source:  source,
		PerPage: domain.MaxDocumentsPerPage,
	})
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}

	type docInfo struct {
		ID     int64  `json:"id"`
		Title  string `json:"title"`
		URL    string `json:"url"`
		Status string `json:"download_status"`
	}
	infos := make([]docInfo, len(page.Documents))
	for i := range page.Documents {
		d := &page.Documents[i]
		infos[i] = docInfo{ID: d.ID, Title: d.Title, URL: d.URL, Status: string(d.DownloadStatus)}
	}
	return jsonResource(req.Params.URI, infos)
}

// handleDocumentTextResource returns a document's extracted text.
func (s *Server) handleDocumentTextResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Document == nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	id := extractDocumentID(req.Params.URI)
	if id <= 0 {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	detail, err := s.ports.Document.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting document: %w", err)
	}
	if detail.Text == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "text/plain",
			Text:     detail.Text,
		}},
	}, nil
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling %s: %w", uri, err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// extractSource extracts the source name from dossier://sources/{source}/documents.
func extractSource(uri string) string {
	const prefix = uriScheme + "sources/"
	const suffix = "/documents"

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}
	uri = strings.TrimPrefix(uri, prefix)
	if !strings.HasSuffix(uri, suffix) {
		return ""
	}
	return strings.TrimSuffix(uri, suffix)
}

// extractDocumentID extracts the id from dossier://documents/{id}.
// It returns 0 when the URI does not name a document.
func extractDocumentID(uri string) int64 {
	const prefix = uriScheme + "documents/"

	if !strings.HasPrefix(uri, prefix) {
		return 0
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(uri, prefix), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
