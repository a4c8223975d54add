package services

import (
	"context"
	"fmt"
	"os"

	"github.com/custodia-labs/dossier/internal/core/domain"
	"github.com/custodia-labs/dossier/internal/core/ports/driven"
	"github.com/custodia-labs/dossier/internal/core/ports/driving"
	"github.com/custodia-labs/dossier/internal/logger"
)

// Ensure IngestionService implements the interface.
var _ driving.IngestionService = (*IngestionService)(nil)

// DefaultEmbedBatchSize is used when no batch size is configured.
const DefaultEmbedBatchSize = 32

// IngestionService chunks extracted text, embeds it and keeps the vector
// index in step with the extraction table.
type IngestionService struct {
	records   driven.VectorRecordStore
	chunker   driven.Chunker
	embedder  driven.EmbeddingService
	index     driven.VectorIndex
	batchSize int
	metrics   driven.Metrics
}

// NewIngestionService creates the ingestion service. embedder and index may
// be nil, in which case Run reports them unavailable.
func NewIngestionService(
	records driven.VectorRecordStore,
	chunker driven.Chunker,
	embedder driven.EmbeddingService,
	index driven.VectorIndex,
	batchSize int,
	metrics driven.Metrics,
) *IngestionService {
	if batchSize <= 0 {
		batchSize = DefaultEmbedBatchSize
	}
	return &IngestionService{
		records:   records,
		chunker:   chunker,
		embedder:  embedder,
		index:     index,
		batchSize: batchSize,
		metrics:   metricsOrNop(metrics),
	}
}

// Run purges orphaned documents, then embeds every document whose
// extraction changed since it was last ingested.
func (s *IngestionService) Run(ctx context.Context) (*domain.IngestionReport, error) {
	if s.embedder == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}
	if s.index == nil {
		return nil, domain.ErrVectorIndexUnavailable
	}
	if err := s.index.EnsureCollection(ctx, s.embedder.Dimensions()); err != nil {
		return nil, fmt.Errorf("preparing vector collection: %w", err)
	}

	report := &domain.IngestionReport{}

	orphans, err := s.records.ListOrphanedVectorRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing orphaned vector records: %w", err)
	}
	for _, id := range orphans {
		if err := s.purge(ctx, id); err != nil {
			logger.Warn("Purging vectors of %d: %v", id, err)
			report.Failed++
			continue
		}
		report.Purged++
	}

	candidates, err := s.records.ListIngestionCandidates(ctx, 0)
	if err != nil {
		return report, fmt.Errorf("listing ingestion candidates: %w", err)
	}
	if len(candidates) > 0 {
		logger.Info("Embedding %d document(s) with %s", len(candidates), s.embedder.ModelName())
	}

	for i := range candidates {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		c := &candidates[i]
		n, err := s.ingest(ctx, c)
		if err != nil {
			s.discard(ctx, c.Document.ID)
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			logger.Warn("Ingesting document %d: %v", c.Document.ID, err)
			report.Failed++
			continue
		}
		report.Documents++
		report.Chunks += n
	}

	logger.Info("Ingestion: %d document(s), %d chunk(s), %d purged, %d failed",
		report.Documents, report.Chunks, report.Purged, report.Failed)
	return report, nil
}

func (s *IngestionService) purge(ctx context.Context, documentID int64) error {
	if err := s.index.DeleteDocument(ctx, documentID); err != nil {
		return err
	}
	return s.records.DeleteVectorRecord(ctx, documentID)
}

// discard drops whatever a failed ingestion left behind, so that no chunk
// outlives its vector record. The document stays a candidate.
func (s *IngestionService) discard(ctx context.Context, documentID int64) {
	if err := s.purge(context.WithoutCancel(ctx), documentID); err != nil {
		logger.Warn("Discarding partial chunks of %d: %v", documentID, err)
	}
}

// ingest replaces the chunks of one document and returns how many were written.
func (s *IngestionService) ingest(ctx context.Context, c *driven.IngestionCandidate) (int, error) {
	text, err := os.ReadFile(c.Extraction.OutputPath)
	if err != nil {
		return 0, fmt.Errorf("reading extracted text: %w", err)
	}

	if err := s.index.DeleteDocument(ctx, c.Document.ID); err != nil {
		return 0, fmt.Errorf("purging old chunks: %w", err)
	}

	chunks, err := s.chunker.Chunk(ctx, &c.Document, string(text))
	if err != nil {
		return 0, fmt.Errorf("chunking: %w", err)
	}

	for start := 0; start < len(chunks); start += s.batchSize {
		end := min(start+s.batchSize, len(chunks))
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i := range batch {
			texts[i] = batch[i].Text
		}
		vectors, err := s.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return 0, fmt.Errorf("embedding chunks %d-%d: %w", start, end, err)
		}
		if len(vectors) != len(batch) {
			return 0, fmt.Errorf("embedding returned %d vectors for %d chunks", len(vectors), len(batch))
		}
		for i := range batch {
			batch[i].Embedding = vectors[i]
		}

		if err := s.index.Upsert(ctx, batch); err != nil {
			return 0, fmt.Errorf("upserting chunks: %w", err)
		}
		s.metrics.ChunksEmbedded(len(batch))
	}

	rec := domain.VectorRecord{
		DocumentID:    c.Document.ID,
		ExtractionSeq: c.Extraction.Seq,
		ChunkCount:    len(chunks),
	}
	if err := s.records.SaveVectorRecord(ctx, rec); err != nil {
		return 0, fmt.Errorf("recording ingestion: %w", err)
	}
	return len(chunks), nil
}
