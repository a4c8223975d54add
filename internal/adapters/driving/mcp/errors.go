// Package mcp provides an MCP (Model Context Protocol) server adapter for dossier.
// It lets AI assistants search the archive, read documents and inspect
// collection statistics.
package mcp

import "errors"

// ErrMissingSearchService is returned when the search service is not provided.
var ErrMissingSearchService = errors.New("mcp: search service is required")

// errServiceNotConfigured is returned by tools whose port is nil.
var errServiceNotConfigured = errors.New("mcp: service not configured")
