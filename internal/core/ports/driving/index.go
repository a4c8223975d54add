package driving

import (
	"context"

	"github.com/custodia-labs/dossier/internal/core/domain"
)

// IndexService maintains the lexical index.
type IndexService interface {
	// Rebuild repopulates the index from scratch.
	Rebuild(ctx context.Context) (*domain.IndexReport, error)

	// Update indexes extractions changed since the last run.
	Update(ctx context.Context) (*domain.IndexReport, error)
}

// IngestionService maintains the vector index.
type IngestionService interface {
	// Run embeds documents whose extraction changed since they were last
	// ingested, and purges documents whose extraction is no longer successful.
	Run(ctx context.Context) (*domain.IngestionReport, error)
}
