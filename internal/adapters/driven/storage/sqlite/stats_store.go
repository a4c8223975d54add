package sqlite

import (
	"context"
	"fmt"
	"sort"

	"github.com/custodia-labs/dossier/internal/core/domain"
	"github.com/custodia-labs/dossier/internal/core/ports/driven"
)

// statsStore implements driven.StatsStore.
type statsStore struct {
	store *Store
}

var _ driven.StatsStore = (*statsStore)(nil)

// Stats aggregates document and extraction counters per source.
func (s *statsStore) Stats(ctx context.Context) (*domain.Stats, error) {
	bySource := map[string]*domain.SourceStats{}
	get := func(name string) *domain.SourceStats {
		st, ok := bySource[name]
		if !ok {
			st = &domain.SourceStats{Source: name}
			bySource[name] = st
		}
		return st
	}

	rows, err := s.store.db.QueryContext(ctx, `
		SELECT source,
			COUNT(*),
			SUM(CASE WHEN download_status IN ('pending', 'downloading') THEN 1 ELSE 0 END),
			SUM(CASE WHEN download_status = 'downloaded' THEN 1 ELSE 0 END),
			SUM(CASE WHEN download_status = 'failed' THEN 1 ELSE 0 END),
			SUM(CASE WHEN download_status = 'skipped' THEN 1 ELSE 0 END),
			COALESCE(SUM(CASE WHEN download_status = 'downloaded' THEN file_size ELSE 0 END), 0)
		FROM documents
		GROUP BY source`)
	if err != nil {
		return nil, fmt.Errorf("querying document stats: %w", err)
	}
	for rows.Next() {
		var name string
		var docs, pending, downloaded, failed, skipped int
		var bytes int64
		if err := rows.Scan(&name, &docs, &pending, &downloaded, &failed, &skipped, &bytes); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning document stats: %w", err)
		}
		st := get(name)
		st.Documents, st.Pending, st.Downloaded = docs, pending, downloaded
		st.Failed, st.Skipped, st.Bytes = failed, skipped, bytes
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterating document stats: %w", err)
	}
	rows.Close()

	rows, err = s.store.db.QueryContext(ctx, `
		SELECT d.source,
			SUM(CASE WHEN e.status = 'success' THEN 1 ELSE 0 END),
			SUM(CASE WHEN e.status = 'failed' THEN 1 ELSE 0 END),
			COALESCE(SUM(CASE WHEN e.status = 'success' THEN e.page_count ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN e.status = 'success' THEN e.char_count ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN e.status = 'success' THEN e.ocr_pages ELSE 0 END), 0)
		FROM extractions e
		JOIN documents d ON d.id = e.document_id
		GROUP BY d.source`)
	if err != nil {
		return nil, fmt.Errorf("querying extraction stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		var extracted, failed, pages, ocr int
		var chars int64
		if err := rows.Scan(&name, &extracted, &failed, &pages, &chars, &ocr); err != nil {
			return nil, fmt.Errorf("scanning extraction stats: %w", err)
		}
		st := get(name)
		st.Extracted, st.ExtractionFailed = extracted, failed
		st.Pages, st.Chars, st.OCRPages = pages, chars, ocr
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating extraction stats: %w", err)
	}

	names := make([]string, 0, len(bySource))
	for name := range bySource {
		names = append(names, name)
	}
	sort.Strings(names)

	stats := &domain.Stats{Sources: []domain.SourceStats{}}
	for _, name := range names {
		stats.Add(*bySource[name])
	}

	chunks, err := s.store.VectorRecordStore().CountChunks(ctx)
	if err != nil {
		return nil, err
	}
	stats.ChunksIndexed = chunks
	return stats, nil
}
