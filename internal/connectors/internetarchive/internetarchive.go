// Package internetarchive discovers files in Internet Archive items: a list
// of known collections first, then items found through the scrape search API.
package internetarchive

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/custodia-labs/dossier/internal/connectors/discovery"
	"github.com/custodia-labs/dossier/internal/core/domain"
	"github.com/custodia-labs/dossier/internal/core/ports/driven"
	"github.com/custodia-labs/dossier/internal/logger"
)

// Name is the source tag.
const Name = "internet_archive"

const (
	defaultBaseURL = "https://archive.org"
	searchPageSize = 100
)

// KnownCollections are item identifiers verified to hold release documents.
var KnownCollections = []string{
	"epstein-documents-943-pages",
	"epstein-documents-943-pages-1",
	"j-epstein-files",
	"final-epstein-documents",
	"jeffrey-epstein-court-documents",
	"epsteindocs",
	"epstein-doj-datasets-9-11-jan2026",
	"Epstein-Data-Sets-So-Far",
}

// Queries find further items through the scrape API.
var Queries = []string{
	`subject:"jeffrey epstein" AND mediatype:texts`,
	`subject:"ghislaine maxwell" AND mediatype:texts`,
	`creator:"Department of Justice" AND title:"epstein" AND mediatype:texts`,
}

// FileExtensions are the item files worth downloading.
var FileExtensions = []string{".pdf", ".txt", ".doc", ".docx", ".zip"}

// Ensure Adapter implements the interface.
var _ driven.SourceAdapter = (*Adapter)(nil)

// Adapter walks item metadata and search results.
type Adapter struct {
	baseURL     string
	collections []string
	queries     []string
}

// New creates the adapter.
func New() *Adapter {
	return &Adapter{baseURL: defaultBaseURL, collections: KnownCollections, queries: Queries}
}

// Name returns "internet_archive".
func (a *Adapter) Name() string { return Name }

// Info describes the source.
func (a *Adapter) Info() domain.SourceInfo {
	return discovery.Info(Name, "Internet Archive collections and search results")
}

// Available always succeeds.
func (a *Adapter) Available(context.Context) error { return nil }

type metadataResponse struct {
	Metadata struct {
		Title json.RawMessage `json:"title"`
	} `json:"metadata"`
	Files []struct {
		Name   string `json:"name"`
		Format string `json:"format"`
		Size   string `json:"size"`
	} `json:"files"`
}

type searchResponse struct {
	Items []struct {
		Identifier string `json:"identifier"`
	} `json:"items"`
	Cursor string `json:"cursor"`
}

// Discover emits the files of known collections, then of search results.
// Each query resumes from its saved cursor (cursor_<i>).
func (a *Adapter) Discover(ctx context.Context, env driven.DiscoveryEnv) (<-chan domain.SourceDescriptor, <-chan error) {
	return discovery.Stream(ctx, func(emit discovery.Emit) error {
		seen := make(map[string]bool)
		for _, id := range a.collections {
			if seen[id] {
				continue
			}
			seen[id] = true
			if err := a.item(ctx, env.Pages, id, emit); err != nil {
				return err
			}
		}

		state, err := env.State.GetSourceState(ctx, Name)
		if err != nil {
			return fmt.Errorf("load state: %w", err)
		}
		for i, q := range a.queries {
			if err := a.search(ctx, env, state, i, q, seen, emit); err != nil {
				return err
			}
		}
		return nil
	})
}

func (a *Adapter) search(
	ctx context.Context,
	env driven.DiscoveryEnv,
	state domain.SourceState,
	i int,
	query string,
	seen map[string]bool,
	emit discovery.Emit,
) error {
	key := "cursor_" + strconv.Itoa(i)
	cursor := state.String(key)

	for {
		params := url.Values{}
		params.Set("q", query)
		params.Set("fields", "identifier,title")
		params.Set("count", strconv.Itoa(searchPageSize))
		if cursor != "" {
			params.Set("cursor", cursor)
		}

		var resp searchResponse
		if err := env.Pages.GetJSON(ctx, a.baseURL+"/services/search/v1/scrape?"+params.Encode(), nil, &resp); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Warn("[%s] search %q: %v", Name, query, err)
			return nil
		}
		if len(resp.Items) == 0 {
			return nil
		}

		for _, item := range resp.Items {
			if item.Identifier == "" || seen[item.Identifier] {
				continue
			}
			seen[item.Identifier] = true
			if err := a.item(ctx, env.Pages, item.Identifier, emit); err != nil {
				return err
			}
		}

		if resp.Cursor == "" {
			return nil
		}
		cursor = resp.Cursor
		state[key] = cursor
		if err := env.State.SaveSourceState(ctx, Name, state); err != nil {
			return fmt.Errorf("save state: %w", err)
		}
	}
}

// item emits the downloadable files of one item. A metadata failure skips the item.
func (a *Adapter) item(ctx context.Context, pages driven.PageClient, id string, emit discovery.Emit) error {
	var meta metadataResponse
	if err := pages.GetJSON(ctx, a.baseURL+"/metadata/"+url.PathEscape(id), nil, &meta); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Warn("[%s] metadata for %s: %v", Name, id, err)
		return nil
	}

	title := itemTitle(meta.Metadata.Title, id)
	for _, f := range meta.Files {
		if !wanted(f.Name) {
			continue
		}
		err := emit(domain.SourceDescriptor{
			URL:               a.baseURL + "/download/" + url.PathEscape(id) + "/" + escapePath(f.Name),
			Source:            Name,
			SourceID:          id + "/" + f.Name,
			SuggestedFilename: strings.ReplaceAll(id+"__"+f.Name, "/", "_"),
			Title:             title + ": " + f.Name,
			Metadata:          map[string]any{"ia_identifier": id, "format": f.Format},
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// itemTitle reads a title that the API returns either as a string or a list.
func itemTitle(raw json.RawMessage, fallback string) string {
	var s string
	if json.Unmarshal(raw, &s) == nil && s != "" {
		return s
	}
	var list []string
	if json.Unmarshal(raw, &list) == nil && len(list) > 0 && list[0] != "" {
		return list[0]
	}
	return fallback
}

func wanted(name string) bool {
	ext := strings.ToLower(path.Ext(name))
	for _, want := range FileExtensions {
		if ext == want {
			return true
		}
	}
	return false
}

// escapePath escapes each segment of a file path inside an item.
func escapePath(p string) string {
	parts := strings.Split(p, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}
