package driving

import (
	"context"

	"github.com/custodia-labs/dossier/internal/core/domain"
)

// DocumentService provides document browsing.
type DocumentService interface {
	// List returns one page of documents, newest first.
	List(ctx context.Context, filter domain.DocumentFilter) (*domain.DocumentPage, error)

	// Get returns a document with its extraction and, when available, its text.
	// Returns domain.ErrNotFound if the document does not exist.
	Get(ctx context.Context, id int64) (*domain.DocumentDetail, error)

	// File returns the on-disk path of a downloaded document.
	// The path is guaranteed to be inside the data directory.
	File(ctx context.Context, id int64) (path string, doc *domain.Document, err error)
}

// StatsService reports aggregate corpus statistics.
type StatsService interface {
	Stats(ctx context.Context) (*domain.Stats, error)
}
