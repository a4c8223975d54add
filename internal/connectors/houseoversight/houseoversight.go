// Package houseoversight discovers PDFs linked from House Oversight
// Committee release pages.
package houseoversight

import (
	"context"

	"github.com/custodia-labs/dossier/internal/connectors/discovery"
	"github.com/custodia-labs/dossier/internal/core/domain"
	"github.com/custodia-labs/dossier/internal/core/ports/driven"
	"github.com/custodia-labs/dossier/internal/logger"
)

// Name is the source tag.
const Name = "house_oversight"

// ReleasePages are the committee release pages that link documents.
var ReleasePages = []string{
	"https://oversight.house.gov/release/oversight-committee-releases-epstein-records-provided-by-the-department-of-justice/",
	"https://oversight.house.gov/release/oversight-committee-releases-additional-epstein-estate-documents/",
	"https://oversight.house.gov/release/oversight-committee-releases-records-provided-by-the-epstein-estate-chairman-comer-provides-statement/",
}

// Ensure Adapter implements the interface.
var _ driven.SourceAdapter = (*Adapter)(nil)

// Adapter scrapes the release pages.
type Adapter struct {
	pages []string
}

// New creates the adapter over ReleasePages.
func New() *Adapter {
	return &Adapter{pages: ReleasePages}
}

// Name returns "house_oversight".
func (a *Adapter) Name() string { return Name }

// Info describes the source.
func (a *Adapter) Info() domain.SourceInfo {
	return discovery.Info(Name, "House Oversight Committee document releases")
}

// Available always succeeds.
func (a *Adapter) Available(context.Context) error { return nil }

// Discover emits the PDF links of every release page. A page that cannot be
// fetched is logged and skipped.
func (a *Adapter) Discover(ctx context.Context, env driven.DiscoveryEnv) (<-chan domain.SourceDescriptor, <-chan error) {
	return discovery.Stream(ctx, func(emit discovery.Emit) error {
		seen := make(map[string]bool)
		for _, page := range a.pages {
			links, err := scrape(ctx, env.Pages, page)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				logger.Warn("[%s] scrape %s: %v", Name, page, err)
				continue
			}

			for _, link := range links {
				if seen[link.URL] {
					continue
				}
				seen[link.URL] = true

				err := emit(domain.SourceDescriptor{
					URL:               link.URL,
					Source:            Name,
					SourceID:          "house-" + link.Filename,
					SuggestedFilename: link.Filename,
					Title:             "House Oversight: " + link.Filename,
					Metadata:          map[string]any{"release_page": page},
				})
				if err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func scrape(ctx context.Context, pages driven.PageClient, url string) ([]discovery.Link, error) {
	html, err := pages.GetText(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return discovery.DocumentLinks(html, url, ".pdf")
}
