package driven

import (
	"context"

	"github.com/custodia-labs/dossier/internal/core/domain"
)

// Chunker splits a document's extracted text into embedding units.
type Chunker interface {
	// Name returns the chunker name.
	Name() string

	// Chunk splits text into chunks carrying doc's citation fields.
	// Chunk IDs must be stable for unchanged text.
	Chunk(ctx context.Context, doc *domain.Document, text string) ([]domain.Chunk, error)
}
