// Package doj discovers documents in the Justice Department's Epstein
// library: twelve paginated data-set indexes plus a few court-record pages.
package doj

import (
	"context"
	"fmt"
	"strconv"

	"github.com/custodia-labs/dossier/internal/connectors/discovery"
	"github.com/custodia-labs/dossier/internal/core/domain"
	"github.com/custodia-labs/dossier/internal/core/ports/driven"
	"github.com/custodia-labs/dossier/internal/logger"
)

// Name is the source tag.
const Name = "doj"

const dataSetURL = "https://www.justice.gov/epstein/doj-disclosures/data-set-%d-files"

// DataSetPages caps the pagination of each data set. Page numbers start at 0.
var DataSetPages = map[int]int{
	1: 62, 2: 11, 3: 1, 4: 3, 5: 2, 6: 1, 7: 1,
	8: 219, 9: 1974, 10: 10027, 11: 2595, 12: 2,
}

// CourtPages are additional pages linking court records.
var CourtPages = []string{
	"https://www.justice.gov/epstein/court-records/giuffre-v-maxwell-no-115-cv-07433-sdny-2015",
	"https://www.justice.gov/usao-sdny/united-states-v-jeffrey-epstein",
	"https://www.justice.gov/usao-sdny/united-states-v-ghislaine-maxwell",
}

// Ensure Adapter implements the interface.
var _ driven.SourceAdapter = (*Adapter)(nil)

// Adapter walks the data-set indexes, resuming each from its last page.
type Adapter struct {
	dataSets   int
	pageCaps   map[int]int
	courtPages []string
}

// New creates the DOJ adapter.
func New() *Adapter {
	return &Adapter{dataSets: 12, pageCaps: DataSetPages, courtPages: CourtPages}
}

// Name returns "doj".
func (a *Adapter) Name() string { return Name }

// Info describes the source.
func (a *Adapter) Info() domain.SourceInfo {
	return discovery.Info(Name, "DOJ Epstein library data sets 1-12 and court records")
}

// Available always succeeds.
func (a *Adapter) Available(context.Context) error { return nil }

// Discover pages through every data set, then the court-record pages.
func (a *Adapter) Discover(ctx context.Context, env driven.DiscoveryEnv) (<-chan domain.SourceDescriptor, <-chan error) {
	return discovery.Stream(ctx, func(emit discovery.Emit) error {
		state, err := env.State.GetSourceState(ctx, Name)
		if err != nil {
			return fmt.Errorf("load state: %w", err)
		}

		for ds := 1; ds <= a.dataSets; ds++ {
			if err := a.dataSet(ctx, env, state, ds, emit); err != nil {
				return err
			}
		}

		for _, page := range a.courtPages {
			if _, err := a.pageCount(ctx, env.Pages, page, 0, emit); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				logger.Warn("[%s] scrape %s: %v", Name, page, err)
			}
		}
		return nil
	})
}

func (a *Adapter) dataSet(ctx context.Context, env driven.DiscoveryEnv, state domain.SourceState, ds int, emit discovery.Emit) error {
	key := "ds" + strconv.Itoa(ds) + "_page"
	maxPage := a.pageCaps[ds]
	start := state.Int(key)
	base := fmt.Sprintf(dataSetURL, ds)

	logger.Info("[%s] data set %d: pages %d-%d", Name, ds, start, maxPage)

	for page := start; page <= maxPage; page++ {
		url := base
		if page > 0 {
			url = base + "?page=" + strconv.Itoa(page)
		}

		n, err := a.pageCount(ctx, env.Pages, url, ds, emit)
		switch {
		case ctx.Err() != nil:
			return ctx.Err()
		case err != nil:
			logger.Warn("[%s] data set %d page %d: %v", Name, ds, page, err)
		case n == 0 && page > 0:
			logger.Info("[%s] data set %d: no PDFs on page %d, stopping", Name, ds, page)
			return nil
		}

		state[key] = page
		if err := env.State.SaveSourceState(ctx, Name, state); err != nil {
			return fmt.Errorf("save state: %w", err)
		}
	}
	return nil
}

// pageCount emits the PDF links of one listing page and returns how many it found.
func (a *Adapter) pageCount(ctx context.Context, pages driven.PageClient, url string, ds int, emit discovery.Emit) (int, error) {
	html, err := pages.GetText(ctx, url, nil)
	if err != nil {
		return 0, err
	}
	links, err := discovery.DocumentLinks(html, url, ".pdf")
	if err != nil {
		return 0, err
	}

	for _, link := range links {
		if err := emit(descriptor(link, ds)); err != nil {
			return 0, err
		}
	}
	return len(links), nil
}

func descriptor(link discovery.Link, ds int) domain.SourceDescriptor {
	d := domain.SourceDescriptor{
		URL:               link.URL,
		Source:            Name,
		SuggestedFilename: link.Filename,
		Metadata:          map[string]any{"dataset": ds},
	}
	if ds > 0 {
		d.SourceID = fmt.Sprintf("ds%d-%s", ds, link.Filename)
		d.Title = fmt.Sprintf("DOJ DataSet %d: %s", ds, link.Filename)
	} else {
		d.SourceID = "court-" + link.Filename
		d.Title = "DOJ Court: " + link.Filename
	}
	return d
}
