package driving

import (
	"context"

	"github.com/custodia-labs/dossier/internal/core/domain"
)

// ExtractionService turns downloaded files into text.
type ExtractionService interface {
	// RunPending extracts every downloaded document lacking a successful
	// extraction. Per-document failures are recorded, never returned.
	RunPending(ctx context.Context, opts ExtractOptions) (*domain.ExtractionReport, error)

	// Watch runs pending extraction whenever the downloads tree changes.
	// Blocks until ctx is cancelled.
	Watch(ctx context.Context, opts ExtractOptions) error
}

// ExtractOptions narrows an extraction run.
type ExtractOptions struct {
	// Source restricts the run to one source when set.
	Source string

	// Force re-extracts documents that already have a successful extraction.
	Force bool
}
