package driven

import (
	"context"

	"github.com/custodia-labs/dossier/internal/core/domain"
)

// LexicalIndex provides ranked full-text search over successful extractions.
// Backed by SQLite FTS5 with BM25 ranking.
type LexicalIndex interface {
	// Rebuild clears the index and repopulates it from the metadata store.
	Rebuild(ctx context.Context) (*domain.IndexReport, error)

	// Update indexes extractions that changed since the last run, tracked by
	// a high-water mark over extraction revisions, then verifies the index.
	Update(ctx context.Context) (*domain.IndexReport, error)

	// Verify checks the index row count against the metadata store.
	// Returns *domain.IndexInconsistency on mismatch.
	Verify(ctx context.Context) error

	// Search runs a validated query. Ties in rank are broken by document id.
	Search(ctx context.Context, q domain.SearchQuery) (*domain.SearchPage, error)
}
