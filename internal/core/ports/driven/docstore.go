package driven

import (
	"context"

	"github.com/custodia-labs/dossier/internal/core/domain"
)

// DocumentStore persists documents and their download lifecycle.
// Backed by SQLite for metadata storage.
type DocumentStore interface {
	// FindOrCreate returns the document with the descriptor's URL, creating a
	// pending one if none exists. created reports whether a row was inserted.
	FindOrCreate(ctx context.Context, desc domain.SourceDescriptor) (doc *domain.Document, created bool, err error)

	// GetDocument retrieves a document by ID.
	// Returns domain.ErrNotFound if it does not exist.
	GetDocument(ctx context.Context, id int64) (*domain.Document, error)

	// UpdateDownload persists the download fields of doc (status, attempts,
	// local path, digest, size, error).
	UpdateDownload(ctx context.Context, doc *domain.Document) error

	// FindBySHA256 returns a downloaded document other than excludeID with the
	// given digest, or nil if there is none.
	FindBySHA256(ctx context.Context, sha256 string, excludeID int64) (*domain.Document, error)

	// ListDocuments returns one page of documents, newest first, and the total
	// number matching the filter.
	ListDocuments(ctx context.Context, filter domain.DocumentFilter) ([]domain.Document, int, error)

	// ListByStatus returns documents of a source with the given status.
	ListByStatus(ctx context.Context, source string, status domain.DownloadStatus) ([]domain.Document, error)
}

// ExtractionStore persists extraction records.
type ExtractionStore interface {
	// GetExtraction returns the extraction of a document.
	// Returns domain.ErrNotFound if the document has none.
	GetExtraction(ctx context.Context, documentID int64) (*domain.Extraction, error)

	// SaveExtraction upserts e in one transaction. When the content-bearing
	// fields differ from the stored row, e.Seq is set to a new store-wide
	// revision; otherwise nothing is written and changed is false.
	SaveExtraction(ctx context.Context, e *domain.Extraction) (changed bool, err error)

	// ListExtractable returns downloaded documents without a successful
	// extraction (or every downloaded document when force is set), optionally
	// restricted to one source.
	ListExtractable(ctx context.Context, source string, force bool) ([]domain.Document, error)
}

// VectorRecordStore tracks which extraction revision each document was embedded from.
type VectorRecordStore interface {
	// ListIngestionCandidates returns documents whose successful extraction has
	// not been embedded yet, or was embedded from an older revision.
	ListIngestionCandidates(ctx context.Context, limit int) ([]IngestionCandidate, error)

	// ListOrphanedVectorRecords returns documents that have embedded chunks but
	// whose extraction is no longer successful.
	ListOrphanedVectorRecords(ctx context.Context) ([]int64, error)

	// SaveVectorRecord records a completed ingestion.
	SaveVectorRecord(ctx context.Context, rec domain.VectorRecord) error

	// DeleteVectorRecord forgets a document's ingestion.
	DeleteVectorRecord(ctx context.Context, documentID int64) error

	// CountChunks returns the number of chunks recorded across all documents.
	CountChunks(ctx context.Context) (int, error)
}

// IngestionCandidate is a document paired with the extraction to embed.
type IngestionCandidate struct {
	Document   domain.Document
	Extraction domain.Extraction
}

// StatsStore aggregates corpus statistics.
type StatsStore interface {
	Stats(ctx context.Context) (*domain.Stats, error)
}
