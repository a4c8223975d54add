// Package courtlistener discovers RECAP documents on CourtListener dockets.
// The REST API requires a free token (sources.courtlistener.api_token or
// COURTLISTENER_TOKEN); without one the source is disabled.
package courtlistener

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/custodia-labs/dossier/internal/connectors/discovery"
	"github.com/custodia-labs/dossier/internal/core/domain"
	"github.com/custodia-labs/dossier/internal/core/ports/driven"
	"github.com/custodia-labs/dossier/internal/logger"
)

// Name is the source tag.
const Name = "courtlistener"

const (
	defaultAPIBase    = "https://www.courtlistener.com/api/rest/v4"
	defaultStorageURL = "https://storage.courtlistener.com"
)

// Dockets are the key cases, walked first.
var Dockets = []string{
	"4154484",  // Giuffre v. Maxwell (SDNY 1:15-cv-07433)
	"17318376", // United States v. Maxwell (SDNY 1:20-cr-00330)
	"6302530",  // United States v. Epstein (SDFL 9:08-cr-80736)
	"67534580", // Doe v. Epstein
}

// SearchQueries find additional dockets.
var SearchQueries = []string{
	"jeffrey epstein",
	"ghislaine maxwell trafficking",
}

// Ensure Adapter implements the interface.
var _ driven.SourceAdapter = (*Adapter)(nil)

// Config configures the adapter.
type Config struct {
	Token string
}

// Adapter walks docket entries with token authentication.
type Adapter struct {
	token      string
	apiBase    string
	storageURL string
	dockets    []string
	queries    []string
}

// New creates the adapter.
func New(cfg Config) *Adapter {
	return &Adapter{
		token:      cfg.Token,
		apiBase:    defaultAPIBase,
		storageURL: defaultStorageURL,
		dockets:    Dockets,
		queries:    SearchQueries,
	}
}

// Name returns "courtlistener".
func (a *Adapter) Name() string { return Name }

// Info describes the source.
func (a *Adapter) Info() domain.SourceInfo {
	info := discovery.Info(Name, "CourtListener RECAP docket documents (needs API token)")
	info.RequiresAuth = true
	return info
}

// Available reports ErrSourceDisabled when no token is configured.
func (a *Adapter) Available(context.Context) error {
	if a.token == "" {
		return fmt.Errorf("%w: no API token (set sources.courtlistener.api_token; free at https://www.courtlistener.com/sign-in/)",
			domain.ErrSourceDisabled)
	}
	return nil
}

type docketEntries struct {
	Next    string `json:"next"`
	Results []struct {
		EntryNumber    any `json:"entry_number"`
		RecapDocuments []struct {
			ID            int64  `json:"id"`
			Description   string `json:"description"`
			FilepathIA    string `json:"filepath_ia"`
			FilepathLocal string `json:"filepath_local"`
		} `json:"recap_documents"`
	} `json:"results"`
}

type searchResponse struct {
	Results []struct {
		DocketID int64 `json:"docket_id"`
	} `json:"results"`
}

// Discover walks the known dockets, then dockets found by search.
func (a *Adapter) Discover(ctx context.Context, env driven.DiscoveryEnv) (<-chan domain.SourceDescriptor, <-chan error) {
	return discovery.Stream(ctx, func(emit discovery.Emit) error {
		if err := a.Available(ctx); err != nil {
			return err
		}

		seen := make(map[int64]bool)
		for _, docket := range a.dockets {
			if err := a.docket(ctx, env.Pages, docket, seen, emit); err != nil {
				return err
			}
		}

		for _, q := range a.queries {
			params := url.Values{"q": {q}, "type": {"r"}, "page_size": {"20"}}
			var resp searchResponse
			if err := env.Pages.GetJSON(ctx, a.apiBase+"/search/?"+params.Encode(), a.headers(), &resp); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				logger.Warn("[%s] search %q: %v", Name, q, err)
				continue
			}
			for _, r := range resp.Results {
				if r.DocketID == 0 {
					continue
				}
				if err := a.docket(ctx, env.Pages, strconv.FormatInt(r.DocketID, 10), seen, emit); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func (a *Adapter) docket(ctx context.Context, pages driven.PageClient, docket string, seen map[int64]bool, emit discovery.Emit) error {
	next := a.apiBase + "/docket-entries/?" + url.Values{"docket": {docket}, "page_size": {"100"}}.Encode()

	for next != "" {
		var resp docketEntries
		if err := pages.GetJSON(ctx, next, a.headers(), &resp); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Warn("[%s] docket %s: %v", Name, docket, err)
			return nil
		}

		for _, entry := range resp.Results {
			for _, rd := range entry.RecapDocuments {
				if rd.ID == 0 || seen[rd.ID] {
					continue
				}
				seen[rd.ID] = true

				file := rd.FilepathIA
				if file == "" {
					file = rd.FilepathLocal
				}
				if file == "" {
					continue
				}
				if err := emit(a.descriptor(docket, entry.EntryNumber, rd.ID, rd.Description, file)); err != nil {
					return err
				}
			}
		}
		next = resp.Next
	}
	return nil
}

func (a *Adapter) descriptor(docket string, entry any, id int64, description, file string) domain.SourceDescriptor {
	fileURL := file
	if !strings.HasPrefix(file, "http") {
		fileURL = a.storageURL + "/" + strings.TrimPrefix(file, "/")
	}
	if description == "" {
		description = fmt.Sprintf("Entry %v", entry)
	}
	idStr := strconv.FormatInt(id, 10)
	return domain.SourceDescriptor{
		URL:               fileURL,
		Source:            Name,
		SourceID:          idStr,
		SuggestedFilename: fmt.Sprintf("cl-%s-%s.pdf", docket, idStr),
		Title:             description,
		Metadata:          map[string]any{"docket_id": docket, "entry_number": entry},
		Headers:           a.downloadHeaders(fileURL),
	}
}

func (a *Adapter) headers() map[string]string {
	return map[string]string{"Authorization": "Token " + a.token}
}

// downloadHeaders only sends the token to CourtListener's own hosts.
func (a *Adapter) downloadHeaders(fileURL string) map[string]string {
	u, err := url.Parse(fileURL)
	if err != nil || !strings.HasSuffix(u.Hostname(), "courtlistener.com") {
		return nil
	}
	return a.headers()
}
