package services

import (
	"context"
	"fmt"

	"github.com/custodia-labs/dossier/internal/core/domain"
	"github.com/custodia-labs/dossier/internal/core/ports/driven"
	"github.com/custodia-labs/dossier/internal/core/ports/driving"
)

// Ensure SearchService implements the interface.
var _ driving.SearchService = (*SearchService)(nil)

// SearchService validates queries and delegates to the lexical index.
type SearchService struct {
	index driven.LexicalIndex
}

// NewSearchService creates a new search service.
func NewSearchService(index driven.LexicalIndex) *SearchService {
	return &SearchService{index: index}
}

// Search returns one page of ranked results.
func (s *SearchService) Search(ctx context.Context, q domain.SearchQuery) (*domain.SearchPage, error) {
	if err := q.Normalise(); err != nil {
		return nil, err
	}

	page, err := s.index.Search(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	if page.Results == nil {
		page.Results = []domain.SearchResult{}
	}
	return page, nil
}
