package mcp

import (
	"context"

	"github.com/custodia-labs/dossier/internal/core/domain"
	"github.com/custodia-labs/dossier/internal/core/ports/driving"
)

// mockSearchService is a mock implementation of driving.SearchService.
type mockSearchService struct {
	page  *domain.SearchPage
	last  domain.SearchQuery
	err   error
	calls int
}

func (m *mockSearchService) Search(_ context.Context, q domain.SearchQuery) (*domain.SearchPage, error) {
	m.calls++
	m.last = q
	if m.err != nil {
		return nil, m.err
	}
	if m.page == nil {
		return &domain.SearchPage{Results: []domain.SearchResult{}}, nil
	}
	return m.page, nil
}

// mockDocumentService is a mock implementation of driving.DocumentService
// and driving.StatsService.
type mockDocumentService struct {
	page   *domain.DocumentPage
	detail *domain.DocumentDetail
	stats  *domain.Stats
	filter domain.DocumentFilter
	err    error
}

func (m *mockDocumentService) List(_ context.Context, filter domain.DocumentFilter) (*domain.DocumentPage, error) {
	m.filter = filter
	if m.err != nil {
		return nil, m.err
	}
	return m.page, nil
}

func (m *mockDocumentService) Get(_ context.Context, id int64) (*domain.DocumentDetail, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.detail == nil || m.detail.Document.ID != id {
		return nil, domain.ErrNotFound
	}
	return m.detail, nil
}

func (m *mockDocumentService) File(context.Context, int64) (string, *domain.Document, error) {
	return "", nil, domain.ErrNotFound
}

func (m *mockDocumentService) Stats(context.Context) (*domain.Stats, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.stats, nil
}

// mockAcquisitionService lists fixed sources.
type mockAcquisitionService struct {
	driving.AcquisitionService
	infos []domain.SourceInfo
}

func (m *mockAcquisitionService) Sources(context.Context) []domain.SourceInfo {
	return m.infos
}
