package mcp

import (
	"github.com/custodia-labs/dossier/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces used by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Search runs lexical queries.
	Search driving.SearchService

	// Document browses documents and their extracted text.
	Document driving.DocumentService

	// Stats reports collection totals.
	Stats driving.StatsService

	// Acquisition lists the configured sources.
	Acquisition driving.AcquisitionService
}

// Validate ensures all required ports are set.
// Only Search is required; tools backed by a nil port report an error.
func (p *Ports) Validate() error {
	if p.Search == nil {
		return ErrMissingSearchService
	}
	return nil
}
