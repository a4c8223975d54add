package driven

import (
	"context"

	"github.com/custodia-labs/dossier/internal/core/domain"
)

// VectorIndex stores chunk embeddings and answers similarity queries.
// Backed by Qdrant, or an in-memory brute-force store for small corpora.
type VectorIndex interface {
	// EnsureCollection prepares storage for vectors of the given size.
	EnsureCollection(ctx context.Context, dimensions int) error

	// Upsert inserts or replaces chunks keyed by their stable chunk ID.
	Upsert(ctx context.Context, chunks []domain.Chunk) error

	// DeleteDocument removes every chunk of a document.
	DeleteDocument(ctx context.Context, documentID int64) error

	// Search finds the k nearest chunks to the query vector, nearest first.
	Search(ctx context.Context, query []float32, k int) ([]domain.VectorHit, error)

	// Close releases resources.
	Close() error
}

// ChunkStore persists the chunks of an in-process vector index so that it
// survives restarts.
type ChunkStore interface {
	// SaveChunks inserts or replaces chunks, embeddings included.
	SaveChunks(ctx context.Context, chunks []domain.Chunk) error

	// DeleteDocumentChunks removes every chunk of a document.
	DeleteDocumentChunks(ctx context.Context, documentID int64) error

	// ListChunks returns every stored chunk.
	ListChunks(ctx context.Context) ([]domain.Chunk, error)
}
