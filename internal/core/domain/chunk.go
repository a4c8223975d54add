package domain

import "fmt"

// Chunk is a bounded span of a document's extracted text, the unit of
// semantic embedding and retrieval. Chunks are immutable once created and
// regenerated wholesale when the parent Extraction changes.
type Chunk struct {
	// ID is stable across re-ingestion of unchanged text (see ChunkID).
	ID string

	DocumentID int64

	// PageNum is the page on which the chunk starts.
	PageNum int

	// Offset is the rune offset of the chunk within the extracted text.
	Offset int

	Text string

	Embedding []float32

	// Citation fields copied from the parent Document.
	Title    string
	Filename string
	Source   string
	URL      string
}

// ChunkID derives the stable identifier of the chunk at offset in a document.
func ChunkID(documentID int64, offset int) string {
	return fmt.Sprintf("%d:%d", documentID, offset)
}

// VectorHit is a chunk returned by a similarity search.
type VectorHit struct {
	Chunk Chunk

	// Distance is the cosine distance to the query (0 = identical).
	Distance float64
}

// VectorRecord tracks which extraction revision a document was embedded from.
type VectorRecord struct {
	DocumentID    int64
	ExtractionSeq int64
	ChunkCount    int
}
