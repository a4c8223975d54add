package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/dossier/internal/core/domain"
	"github.com/custodia-labs/dossier/internal/core/ports/driven"
	"github.com/custodia-labs/dossier/internal/core/ports/driving"
	"github.com/custodia-labs/dossier/internal/logger"
)

// Ensure IndexService implements the interface.
var _ driving.IndexService = (*IndexService)(nil)

// IndexService maintains the lexical index.
type IndexService struct {
	index driven.LexicalIndex
}

// NewIndexService creates a new index service.
func NewIndexService(index driven.LexicalIndex) *IndexService {
	return &IndexService{index: index}
}

// Rebuild repopulates the index from scratch.
func (s *IndexService) Rebuild(ctx context.Context) (*domain.IndexReport, error) {
	start := time.Now()
	report, err := s.index.Rebuild(ctx)
	if err != nil {
		return report, fmt.Errorf("rebuilding lexical index: %w", err)
	}
	logger.Info("Lexical index rebuilt: %d document(s) in %s", report.Rows, time.Since(start).Round(time.Millisecond))
	return report, nil
}

// Update indexes changed extractions. An inconsistent index is reported
// with a hint to rebuild.
func (s *IndexService) Update(ctx context.Context) (*domain.IndexReport, error) {
	report, err := s.index.Update(ctx)
	if err != nil {
		var inconsistent *domain.IndexInconsistency
		if errors.As(err, &inconsistent) {
			logger.Error("%v", inconsistent)
		}
		return report, fmt.Errorf("updating lexical index: %w", err)
	}
	logger.Info("Lexical index: %d indexed, %d removed, %d row(s), high water %d",
		report.Indexed, report.Removed, report.Rows, report.HighWater)
	return report, nil
}
