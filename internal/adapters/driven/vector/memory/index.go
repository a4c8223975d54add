// Package memory implements a brute-force cosine vector index held in memory.
// It suits small corpora and tests. An index opened over a ChunkStore writes
// every change through to it and reloads its chunks on the next Open.
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/custodia-labs/dossier/internal/core/domain"
	"github.com/custodia-labs/dossier/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// Index stores chunks by id. Safe for concurrent use.
type Index struct {
	mu         sync.RWMutex
	dimensions int
	chunks     map[string]domain.Chunk
	norms      map[string]float64

	// store is nil for a purely in-memory index.
	store driven.ChunkStore
}

// New creates an empty index.
func New() *Index {
	return &Index{
		chunks: make(map[string]domain.Chunk),
		norms:  make(map[string]float64),
	}
}

// Open creates an index backed by store and loads the chunks it holds.
func Open(ctx context.Context, store driven.ChunkStore) (*Index, error) {
	chunks, err := store.ListChunks(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading chunks: %w", err)
	}

	x := New()
	x.store = store
	for _, c := range chunks {
		if len(c.Embedding) == 0 {
			continue
		}
		if x.dimensions == 0 {
			x.dimensions = len(c.Embedding)
		}
		if len(c.Embedding) != x.dimensions {
			return nil, fmt.Errorf("%w: stored chunk %s has %d dimensions, want %d",
				domain.ErrInvalidInput, c.ID, len(c.Embedding), x.dimensions)
		}
		x.chunks[c.ID] = c
		x.norms[c.ID] = norm(c.Embedding)
	}
	return x, nil
}

// EnsureCollection fixes the vector size. A later call with a different size
// is rejected while the index holds chunks.
func (x *Index) EnsureCollection(_ context.Context, dimensions int) error {
	if dimensions <= 0 {
		return fmt.Errorf("%w: vector dimensions must be positive", domain.ErrInvalidInput)
	}
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.dimensions != 0 && x.dimensions != dimensions && len(x.chunks) > 0 {
		return fmt.Errorf("%w: index holds %d-dimensional vectors, got %d",
			domain.ErrInvalidInput, x.dimensions, dimensions)
	}
	x.dimensions = dimensions
	return nil
}

// Upsert inserts or replaces chunks by id. Nothing is written unless every
// chunk is valid.
func (x *Index) Upsert(ctx context.Context, chunks []domain.Chunk) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	dimensions := x.dimensions
	for i := range chunks {
		c := &chunks[i]
		if len(c.Embedding) == 0 {
			return fmt.Errorf("%w: chunk %s has no embedding", domain.ErrInvalidInput, c.ID)
		}
		if dimensions == 0 {
			dimensions = len(c.Embedding)
		}
		if len(c.Embedding) != dimensions {
			return fmt.Errorf("%w: chunk %s has %d dimensions, want %d",
				domain.ErrInvalidInput, c.ID, len(c.Embedding), dimensions)
		}
	}

	if x.store != nil {
		if err := x.store.SaveChunks(ctx, chunks); err != nil {
			return fmt.Errorf("persisting chunks: %w", err)
		}
	}

	x.dimensions = dimensions
	for i := range chunks {
		c := chunks[i]
		c.Embedding = append([]float32(nil), c.Embedding...)
		x.chunks[c.ID] = c
		x.norms[c.ID] = norm(c.Embedding)
	}
	return nil
}

// DeleteDocument removes every chunk of a document.
func (x *Index) DeleteDocument(ctx context.Context, documentID int64) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.store != nil {
		if err := x.store.DeleteDocumentChunks(ctx, documentID); err != nil {
			return fmt.Errorf("deleting persisted chunks: %w", err)
		}
	}

	for id, c := range x.chunks {
		if c.DocumentID == documentID {
			delete(x.chunks, id)
			delete(x.norms, id)
		}
	}
	return nil
}

// Search scans every chunk and returns the k nearest by cosine distance.
// Ties are broken by chunk id.
func (x *Index) Search(ctx context.Context, query []float32, k int) ([]domain.VectorHit, error) {
	if k <= 0 {
		return nil, nil
	}
	x.mu.RLock()
	defer x.mu.RUnlock()

	if x.dimensions != 0 && len(query) != x.dimensions {
		return nil, fmt.Errorf("%w: query has %d dimensions, want %d",
			domain.ErrInvalidInput, len(query), x.dimensions)
	}
	qn := norm(query)

	hits := make([]domain.VectorHit, 0, len(x.chunks))
	for id, c := range x.chunks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		hits = append(hits, domain.VectorHit{
			Chunk:    withoutEmbedding(c),
			Distance: 1 - cosine(query, c.Embedding, qn, x.norms[id]),
		})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		return hits[i].Chunk.ID < hits[j].Chunk.ID
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Len returns the number of stored chunks.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.chunks)
}

// Close is a no-op; the backing store is owned by the caller.
func (x *Index) Close() error {
	return nil
}

func withoutEmbedding(c domain.Chunk) domain.Chunk {
	c.Embedding = nil
	return c
}

func norm(v []float32) float64 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	return math.Sqrt(sum)
}

func cosine(a, b []float32, na, nb float64) float64 {
	if na == 0 || nb == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (na * nb)
}
