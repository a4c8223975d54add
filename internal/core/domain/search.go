package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Search limits.
const (
	MinQueryLength        = 2
	MaxSearchPerPage      = 100
	DefaultSearchPerPage  = 20
	MaxDocumentsPerPage   = 200
	DefaultDocumentsLimit = 50
)

// SearchQuery is a paginated lexical query.
type SearchQuery struct {
	Query   string
	Source  string
	Page    int
	PerPage int
}

// Normalise applies defaults and validates the query.
func (q *SearchQuery) Normalise() error {
	q.Query = strings.TrimSpace(q.Query)
	if utf8.RuneCountInString(q.Query) < MinQueryLength {
		return fmt.Errorf("%w: query must be at least %d characters", ErrInvalidInput, MinQueryLength)
	}
	if q.Page == 0 {
		q.Page = 1
	}
	if q.Page < 1 {
		return fmt.Errorf("%w: page must be >= 1", ErrInvalidInput)
	}
	if q.PerPage == 0 {
		q.PerPage = DefaultSearchPerPage
	}
	if q.PerPage < 1 || q.PerPage > MaxSearchPerPage {
		return fmt.Errorf("%w: per_page must be between 1 and %d", ErrInvalidInput, MaxSearchPerPage)
	}
	return nil
}

// Offset returns the number of results preceding the requested page.
func (q *SearchQuery) Offset() int {
	return (q.Page - 1) * q.PerPage
}

// SearchResult is a single ranked lexical hit.
type SearchResult struct {
	ID             int64          `json:"id"`
	Title          string         `json:"title"`
	Source         string         `json:"source"`
	Filename       string         `json:"filename"`
	FileSize       int64          `json:"file_size"`
	URL            string         `json:"url"`
	DownloadStatus DownloadStatus `json:"download_status"`
	CreatedAt      time.Time      `json:"created_at"`

	// Snippet is an excerpt with matched terms wrapped in <mark></mark>.
	Snippet string `json:"snippet"`

	// Rank is the BM25 score; lower is better.
	Rank float64 `json:"rank"`
}

// SearchPage is one page of ranked results.
type SearchPage struct {
	Results []SearchResult `json:"results"`
	Total   int            `json:"total"`
	Page    int            `json:"page"`
	PerPage int            `json:"per_page"`
	Pages   int            `json:"pages"`
	Query   string         `json:"query"`
}
