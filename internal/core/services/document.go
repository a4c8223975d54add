package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/dossier/internal/core/domain"
	"github.com/custodia-labs/dossier/internal/core/ports/driven"
	"github.com/custodia-labs/dossier/internal/core/ports/driving"
	"github.com/custodia-labs/dossier/internal/logger"
)

// Ensure DocumentService implements the interfaces.
var (
	_ driving.DocumentService = (*DocumentService)(nil)
	_ driving.StatsService    = (*DocumentService)(nil)
)

// DocumentService provides document browsing and corpus statistics.
type DocumentService struct {
	dataDir     string
	docs        driven.DocumentStore
	extractions driven.ExtractionStore
	stats       driven.StatsStore
}

// NewDocumentService creates a new document service. Files are only served
// from inside dataDir.
func NewDocumentService(
	dataDir string,
	docs driven.DocumentStore,
	extractions driven.ExtractionStore,
	stats driven.StatsStore,
) *DocumentService {
	return &DocumentService{
		dataDir:     dataDir,
		docs:        docs,
		extractions: extractions,
		stats:       stats,
	}
}

// List returns one page of documents, newest first.
func (s *DocumentService) List(ctx context.Context, filter domain.DocumentFilter) (*domain.DocumentPage, error) {
	if filter.Page == 0 {
		filter.Page = 1
	}
	if filter.PerPage == 0 {
		filter.PerPage = domain.DefaultDocumentsLimit
	}
	if filter.Page < 1 {
		return nil, fmt.Errorf("%w: page must be >= 1", domain.ErrInvalidInput)
	}
	if filter.PerPage < 1 || filter.PerPage > domain.MaxDocumentsPerPage {
		return nil, fmt.Errorf("%w: per_page must be between 1 and %d", domain.ErrInvalidInput, domain.MaxDocumentsPerPage)
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidInput, filter.Status)
	}

	docs, total, err := s.docs.ListDocuments(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	if docs == nil {
		docs = []domain.Document{}
	}
	return &domain.DocumentPage{
		Documents: docs,
		Total:     total,
		Page:      filter.Page,
		PerPage:   filter.PerPage,
		Pages:     domain.PageCount(total, filter.PerPage),
	}, nil
}

// Get returns a document with its extraction and extracted text.
func (s *DocumentService) Get(ctx context.Context, id int64) (*domain.DocumentDetail, error) {
	doc, err := s.docs.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}

	detail := &domain.DocumentDetail{Document: *doc}

	e, err := s.extractions.GetExtraction(ctx, id)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return detail, nil
	case err != nil:
		return nil, fmt.Errorf("loading extraction: %w", err)
	}
	detail.Extraction = e

	if e.Status == domain.ExtractionSuccess && e.OutputPath != "" {
		text, err := os.ReadFile(e.OutputPath)
		if err != nil {
			logger.Warn("Reading extracted text of %d: %v", id, err)
		} else {
			detail.Text = string(text)
		}
	}
	return detail, nil
}

// File returns the on-disk path of a downloaded document. Documents that
// are not downloaded, or whose path resolves outside the data directory,
// are reported as domain.ErrNotFound.
func (s *DocumentService) File(ctx context.Context, id int64) (string, *domain.Document, error) {
	doc, err := s.docs.GetDocument(ctx, id)
	if err != nil {
		return "", nil, err
	}
	if doc.DownloadStatus != domain.StatusDownloaded || doc.LocalPath == "" {
		return "", nil, fmt.Errorf("%w: document %d has no downloaded file", domain.ErrNotFound, id)
	}

	path, err := s.contained(doc.LocalPath)
	if err != nil {
		logger.Warn("Refusing to serve document %d: %v", id, err)
		return "", nil, fmt.Errorf("%w: document %d file unavailable", domain.ErrNotFound, id)
	}
	if _, err := os.Stat(path); err != nil {
		return "", nil, fmt.Errorf("%w: document %d file missing", domain.ErrNotFound, id)
	}
	return path, doc, nil
}

// contained resolves path and checks that it stays inside the data directory.
func (s *DocumentService) contained(path string) (string, error) {
	root, err := filepath.Abs(s.dataDir)
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}

	rel, err := filepath.Rel(root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return "", fmt.Errorf("%s is outside %s", path, root)
	}
	return abs, nil
}

// Stats returns aggregate corpus statistics.
func (s *DocumentService) Stats(ctx context.Context) (*domain.Stats, error) {
	stats, err := s.stats.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("computing stats: %w", err)
	}
	return stats, nil
}
