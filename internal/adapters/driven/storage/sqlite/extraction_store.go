package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/dossier/internal/core/domain"
	"github.com/custodia-labs/dossier/internal/core/ports/driven"
)

// extractionStore implements driven.ExtractionStore.
type extractionStore struct {
	store *Store
}

var _ driven.ExtractionStore = (*extractionStore)(nil)

const extractionColumns = `e.document_id, e.output_path, e.method, e.page_count, e.char_count,
	e.ocr_pages, e.status, e.error, e.text_sha256, e.seq, e.updated_at`

// GetExtraction returns the extraction of a document.
func (s *extractionStore) GetExtraction(ctx context.Context, documentID int64) (*domain.Extraction, error) {
	row := s.store.db.QueryRowContext(ctx,
		"SELECT "+extractionColumns+" FROM extractions e WHERE e.document_id = ?", documentID)
	e, err := scanExtractionFrom(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning extraction: %w", err)
	}
	return e, nil
}

// SaveExtraction upserts an extraction, bumping its revision only when content changed.
func (s *extractionStore) SaveExtraction(ctx context.Context, e *domain.Extraction) (bool, error) {
	if e == nil {
		return false, domain.ErrInvalidInput
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	row := tx.QueryRowContext(ctx,
		"SELECT "+extractionColumns+" FROM extractions e WHERE e.document_id = ?", e.DocumentID)
	existing, err := scanExtractionFrom(row)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		existing = nil
	case err != nil:
		return false, fmt.Errorf("scanning extraction: %w", err)
	}

	if existing != nil && existing.SameContent(e) {
		e.Seq = existing.Seq
		e.UpdatedAt = existing.UpdatedAt
		return false, nil
	}

	var seq int64
	if err := tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(seq), 0) + 1 FROM extractions").Scan(&seq); err != nil {
		return false, fmt.Errorf("allocating extraction seq: %w", err)
	}

	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO extractions (document_id, output_path, method, page_count, char_count,
			ocr_pages, status, error, text_sha256, seq, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(document_id) DO UPDATE SET
			output_path = excluded.output_path,
			method = excluded.method,
			page_count = excluded.page_count,
			char_count = excluded.char_count,
			ocr_pages = excluded.ocr_pages,
			status = excluded.status,
			error = excluded.error,
			text_sha256 = excluded.text_sha256,
			seq = excluded.seq,
			updated_at = excluded.updated_at
	`, e.DocumentID, e.OutputPath, string(e.Method), e.PageCount, e.CharCount,
		e.OCRPages, string(e.Status), nullString(e.Error), e.TextSHA256, seq, formatTime(now))
	if err != nil {
		return false, fmt.Errorf("saving extraction: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("committing extraction: %w", err)
	}

	e.Seq = seq
	e.UpdatedAt = now
	return true, nil
}

// ListExtractable returns downloaded documents that still need extraction.
func (s *extractionStore) ListExtractable(ctx context.Context, source string, force bool) ([]domain.Document, error) {
	query := "SELECT " + documentColumns + ` FROM documents d
		LEFT JOIN extractions e ON e.document_id = d.id
		WHERE d.download_status = ?`
	args := []any{string(domain.StatusDownloaded)}
	if !force {
		query += " AND (e.status IS NULL OR e.status != ?)"
		args = append(args, string(domain.ExtractionSuccess))
	}
	if source != "" {
		query += " AND d.source = ?"
		args = append(args, source)
	}
	query += " ORDER BY d.id"

	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying extractable documents: %w", err)
	}
	defer rows.Close()
	return scanDocuments(rows)
}

// ==================== Vector Record Store ====================

// vectorRecordStore implements driven.VectorRecordStore.
type vectorRecordStore struct {
	store *Store
}

var _ driven.VectorRecordStore = (*vectorRecordStore)(nil)

// ListIngestionCandidates returns successful extractions not yet embedded at their current revision.
func (s *vectorRecordStore) ListIngestionCandidates(
	ctx context.Context, limit int,
) ([]driven.IngestionCandidate, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.store.db.QueryContext(ctx, "SELECT "+documentColumns+", "+extractionColumns+`
		FROM extractions e
		JOIN documents d ON d.id = e.document_id
		LEFT JOIN vector_documents v ON v.document_id = e.document_id
		WHERE e.status = ? AND (v.document_id IS NULL OR v.extraction_seq < e.seq)
		ORDER BY e.seq
		LIMIT ?`, string(domain.ExtractionSuccess), limit)
	if err != nil {
		return nil, fmt.Errorf("querying ingestion candidates: %w", err)
	}
	defer rows.Close()

	var out []driven.IngestionCandidate //nolint:prealloc // size unknown from query
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating ingestion candidates: %w", err)
	}
	return out, nil
}

// ListOrphanedVectorRecords returns embedded documents whose extraction is no longer successful.
func (s *vectorRecordStore) ListOrphanedVectorRecords(ctx context.Context) ([]int64, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT v.document_id FROM vector_documents v
		LEFT JOIN extractions e ON e.document_id = v.document_id
		WHERE e.status IS NULL OR e.status != ?
		ORDER BY v.document_id`, string(domain.ExtractionSuccess))
	if err != nil {
		return nil, fmt.Errorf("querying orphaned vector records: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning vector record: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating vector records: %w", err)
	}
	return ids, nil
}

// SaveVectorRecord records a completed ingestion.
func (s *vectorRecordStore) SaveVectorRecord(ctx context.Context, rec domain.VectorRecord) error {
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO vector_documents (document_id, extraction_seq, chunk_count, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(document_id) DO UPDATE SET
			extraction_seq = excluded.extraction_seq,
			chunk_count = excluded.chunk_count,
			updated_at = excluded.updated_at
	`, rec.DocumentID, rec.ExtractionSeq, rec.ChunkCount, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("saving vector record: %w", err)
	}
	return nil
}

// DeleteVectorRecord forgets a document's ingestion.
func (s *vectorRecordStore) DeleteVectorRecord(ctx context.Context, documentID int64) error {
	_, err := s.store.db.ExecContext(ctx, "DELETE FROM vector_documents WHERE document_id = ?", documentID)
	if err != nil {
		return fmt.Errorf("deleting vector record: %w", err)
	}
	return nil
}

// CountChunks returns the number of chunks recorded across all documents.
func (s *vectorRecordStore) CountChunks(ctx context.Context) (int, error) {
	var n int
	if err := s.store.db.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(chunk_count), 0) FROM vector_documents").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return n, nil
}

// ==================== Helper Functions ====================

func scanExtractionFrom(sc rowScanner) (*domain.Extraction, error) {
	var e domain.Extraction
	var method, status, updatedAt string
	var errMsg sql.NullString

	if err := sc.Scan(&e.DocumentID, &e.OutputPath, &method, &e.PageCount, &e.CharCount,
		&e.OCRPages, &status, &errMsg, &e.TextSHA256, &e.Seq, &updatedAt); err != nil {
		return nil, err
	}
	e.Method = domain.ExtractionMethod(method)
	e.Status = domain.ExtractionStatus(status)
	e.Error = errMsg.String
	e.UpdatedAt = parseTime(updatedAt)
	return &e, nil
}

// scanCandidate scans a document row joined with its extraction.
func scanCandidate(rows *sql.Rows) (*driven.IngestionCandidate, error) {
	var c driven.IngestionCandidate
	var metadataJSON, status, createdAt, updatedAt string
	var localPath, sha, errMsg sql.NullString
	var method, eStatus, eUpdatedAt string
	var eErr sql.NullString

	d := &c.Document
	e := &c.Extraction
	if err := rows.Scan(&d.ID, &d.URL, &d.Source, &d.SourceID, &d.Filename, &d.Title,
		&metadataJSON, &localPath, &sha, &d.FileSize, &status, &d.Attempts, &errMsg,
		&createdAt, &updatedAt,
		&e.DocumentID, &e.OutputPath, &method, &e.PageCount, &e.CharCount, &e.OCRPages,
		&eStatus, &eErr, &e.TextSHA256, &e.Seq, &eUpdatedAt); err != nil {
		return nil, fmt.Errorf("scanning ingestion candidate: %w", err)
	}

	d.LocalPath = localPath.String
	d.SHA256 = sha.String
	d.Error = errMsg.String
	d.DownloadStatus = domain.DownloadStatus(status)
	d.CreatedAt = parseTime(createdAt)
	d.UpdatedAt = parseTime(updatedAt)
	e.Method = domain.ExtractionMethod(method)
	e.Status = domain.ExtractionStatus(eStatus)
	e.Error = eErr.String
	e.UpdatedAt = parseTime(eUpdatedAt)
	return &c, nil
}
