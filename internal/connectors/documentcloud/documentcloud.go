// Package documentcloud discovers documents through the DocumentCloud search API.
package documentcloud

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/custodia-labs/dossier/internal/connectors/discovery"
	"github.com/custodia-labs/dossier/internal/core/domain"
	"github.com/custodia-labs/dossier/internal/core/ports/driven"
	"github.com/custodia-labs/dossier/internal/logger"
)

// Name is the source tag.
const Name = "documentcloud"

const (
	defaultSearchURL = "https://api.www.documentcloud.org/api/documents/search/"
	defaultAssetURL  = "https://assets.documentcloud.org/documents"
	perPage          = 100
)

// Queries are the searches run in order.
var Queries = []string{
	"jeffrey epstein",
	"ghislaine maxwell",
	"epstein flight logs",
	"epstein grand jury",
}

// Ensure Adapter implements the interface.
var _ driven.SourceAdapter = (*Adapter)(nil)

// Adapter follows the search API's next links.
type Adapter struct {
	searchURL string
	assetURL  string
	queries   []string
}

// New creates the adapter.
func New() *Adapter {
	return &Adapter{searchURL: defaultSearchURL, assetURL: defaultAssetURL, queries: Queries}
}

// Name returns "documentcloud".
func (a *Adapter) Name() string { return Name }

// Info describes the source.
func (a *Adapter) Info() domain.SourceInfo {
	return discovery.Info(Name, "DocumentCloud public search results")
}

// Available always succeeds.
func (a *Adapter) Available(context.Context) error { return nil }

type searchResponse struct {
	Next    string `json:"next"`
	Results []struct {
		ID        int64  `json:"id"`
		Slug      string `json:"slug"`
		Title     string `json:"title"`
		PageCount int    `json:"page_count"`
	} `json:"results"`
}

// Discover runs every query. An interrupted query resumes from the next
// link saved in the source state (next_url, query); a finished query
// clears it.
func (a *Adapter) Discover(ctx context.Context, env driven.DiscoveryEnv) (<-chan domain.SourceDescriptor, <-chan error) {
	return discovery.Stream(ctx, func(emit discovery.Emit) error {
		state, err := env.State.GetSourceState(ctx, Name)
		if err != nil {
			return fmt.Errorf("load state: %w", err)
		}

		seen := make(map[int64]bool)
		for _, q := range a.queries {
			next := a.searchURL + "?" + url.Values{"q": {q}, "per_page": {strconv.Itoa(perPage)}}.Encode()
			if state.String("query") == q && state.String("next_url") != "" {
				next = state.String("next_url")
				logger.Info("[%s] resuming %q", Name, q)
			}
			if err := a.search(ctx, env, q, next, seen, emit); err != nil {
				return err
			}
		}
		return nil
	})
}

func (a *Adapter) search(ctx context.Context, env driven.DiscoveryEnv, query, next string, seen map[int64]bool, emit discovery.Emit) error {
	for next != "" {
		var resp searchResponse
		if err := env.Pages.GetJSON(ctx, next, nil, &resp); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Warn("[%s] search %q: %v", Name, query, err)
			return nil
		}
		if len(resp.Results) == 0 {
			break
		}

		for _, doc := range resp.Results {
			if doc.ID == 0 || seen[doc.ID] {
				continue
			}
			seen[doc.ID] = true
			if err := emit(a.descriptor(doc.ID, doc.Slug, doc.Title, doc.PageCount)); err != nil {
				return err
			}
		}

		next = resp.Next
		state := domain.SourceState{}
		if next != "" {
			state = domain.SourceState{"next_url": next, "query": query}
		}
		if err := env.State.SaveSourceState(ctx, Name, state); err != nil {
			return fmt.Errorf("save state: %w", err)
		}
	}
	return nil
}

func (a *Adapter) descriptor(id int64, slug, title string, pages int) domain.SourceDescriptor {
	if slug == "" {
		slug = "document"
	}
	if title == "" {
		title = fmt.Sprintf("DocumentCloud %d", id)
	}
	idStr := strconv.FormatInt(id, 10)
	return domain.SourceDescriptor{
		URL:               fmt.Sprintf("%s/%d/%s.pdf", a.assetURL, id, slug),
		Source:            Name,
		SourceID:          idStr,
		SuggestedFilename: idStr + "-" + slug + ".pdf",
		Title:             title,
		Metadata:          map[string]any{"dc_id": idStr, "pages": pages},
	}
}
