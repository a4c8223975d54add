// Package epsteingraph crawls the people profiles published by the
// epsteingraph.com API.
//
// The top-people endpoint caps out at 200 results, so discovery seeds a
// queue from every list endpoint and then snowballs: each profile's
// connections are resolved to slugs and enqueued until nothing new turns up.
// Each profile is emitted as a JSON document.
package epsteingraph

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"

	"github.com/custodia-labs/dossier/internal/connectors/discovery"
	"github.com/custodia-labs/dossier/internal/core/domain"
	"github.com/custodia-labs/dossier/internal/core/ports/driven"
	"github.com/custodia-labs/dossier/internal/logger"
)

// Name is the source tag.
const Name = "epsteingraph"

const (
	defaultAPIBase = "https://api.epsteingraph.com"
	topLimit       = 200
	docsPerPage    = 100
	saveEvery      = 25
)

// Roles are the role filters used to seed beyond the top-200 cap.
var Roles = []string{
	"academic", "actor", "artist", "author", "business", "diplomat",
	"financier", "government", "judge", "lawyer", "media", "model",
	"musician", "other public figure", "philanthropist", "politician",
	"royalty", "scientist", "socialite",
}

// GraphLevels are the min_shared thresholds used to seed from the graph.
var GraphLevels = []int{1, 10, 100}

// State keys.
const (
	stateCompleted = "completed_slugs"
	stateFailed    = "failed_slugs"
	stateLookedUp  = "looked_up_names"
)

// Ensure Adapter implements the interface.
var _ driven.SourceAdapter = (*Adapter)(nil)

// Adapter is the snowball crawler.
type Adapter struct {
	apiBase string
	roles   []string
	levels  []int
}

// New creates the adapter.
func New() *Adapter {
	return &Adapter{apiBase: defaultAPIBase, roles: Roles, levels: GraphLevels}
}

// Name returns "epsteingraph".
func (a *Adapter) Name() string { return Name }

// Info describes the source.
func (a *Adapter) Info() domain.SourceInfo {
	return discovery.Info(Name, "epsteingraph.com people profiles and connections (JSON)")
}

// Available always succeeds.
func (a *Adapter) Available(context.Context) error { return nil }

type person struct {
	Slug     string `json:"slug"`
	Name     string `json:"name"`
	Mentions int    `json:"mentions"`
}

type topResponse struct {
	People []person `json:"people"`
}

type graphResponse struct {
	Nodes []person `json:"nodes"`
}

type redirectsResponse struct {
	Redirects []string `json:"redirects"`
}

type lookupResponse struct {
	Match bool   `json:"match"`
	Slug  string `json:"slug"`
}

type profileResponse struct {
	Person struct {
		CanonicalName string `json:"canonical_name"`
	} `json:"person"`
	TotalDocuments int `json:"total_documents"`
	Connections    []struct {
		ConnectedPerson string `json:"connected_person"`
	} `json:"connections"`
}

// crawl is the state of one discovery run.
type crawl struct {
	completed map[string]bool
	failed    map[string]bool
	lookedUp  map[string]bool
	known     map[string]bool
	queue     []string
}

// Discover seeds the queue and walks it breadth first.
func (a *Adapter) Discover(ctx context.Context, env driven.DiscoveryEnv) (<-chan domain.SourceDescriptor, <-chan error) {
	return discovery.Stream(ctx, func(emit discovery.Emit) error {
		state, err := env.State.GetSourceState(ctx, Name)
		if err != nil {
			return fmt.Errorf("loading state: %w", err)
		}

		c := &crawl{
			completed: set(state.Strings(stateCompleted)),
			failed:    set(state.Strings(stateFailed)),
			lookedUp:  set(state.Strings(stateLookedUp)),
			known:     make(map[string]bool),
		}
		for slug := range c.completed {
			c.known[slug] = true
		}

		seeds, err := a.seed(ctx, env.Pages)
		if err != nil {
			return err
		}
		for _, slug := range seeds {
			c.enqueue(slug)
		}
		logger.Info("[%s] %d seed people, %d already done, %d queued", Name, len(seeds), len(c.completed), len(c.queue))

		scraped := 0
		for len(c.queue) > 0 {
			slug := c.queue[0]
			c.queue = c.queue[1:]
			if c.completed[slug] {
				continue
			}

			desc, names, err := a.profile(ctx, env.Pages, slug)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				logger.Warn("[%s] %s: %v", Name, slug, err)
				c.failed[slug] = true
				continue
			}
			if err := emit(desc); err != nil {
				return err
			}
			c.completed[slug] = true
			delete(c.failed, slug)
			scraped++

			for _, name := range names {
				if c.lookedUp[name] {
					continue
				}
				c.lookedUp[name] = true
				if resolved := a.lookup(ctx, env.Pages, name); resolved != "" {
					c.enqueue(resolved)
				}
			}

			if scraped%saveEvery == 0 {
				if err := c.save(ctx, env.State); err != nil {
					return err
				}
				logger.Debug("[%s] %d done, %d queued, %d known", Name, len(c.completed), len(c.queue), len(c.known))
			}
		}
		return c.save(ctx, env.State)
	})
}

func (c *crawl) enqueue(slug string) {
	if slug == "" || c.known[slug] {
		return
	}
	c.known[slug] = true
	c.queue = append(c.queue, slug)
}

func (c *crawl) save(ctx context.Context, store driven.SourceStateStore) error {
	state := domain.SourceState{
		stateCompleted: sorted(c.completed),
		stateFailed:    sorted(c.failed),
		stateLookedUp:  sorted(c.lookedUp),
	}
	if err := store.SaveSourceState(ctx, Name, state); err != nil {
		return fmt.Errorf("saving state: %w", err)
	}
	return nil
}

// seed collects slugs from the top lists, the graph and the redirects.
// Individual list failures are logged and skipped.
func (a *Adapter) seed(ctx context.Context, pages driven.PageClient) ([]string, error) {
	var slugs []string
	seen := make(map[string]bool)
	add := func(slug string) {
		if slug != "" && !seen[slug] {
			seen[slug] = true
			slugs = append(slugs, slug)
		}
	}

	filters := []url.Values{{}}
	for _, role := range a.roles {
		filters = append(filters, url.Values{"role": {role}})
	}
	filters = append(filters, url.Values{"public_figures": {"true"}})

	for _, f := range filters {
		f.Set("limit", strconv.Itoa(topLimit))
		f.Set("order_by", "mentions")
		var resp topResponse
		if err := pages.GetJSON(ctx, a.apiBase+"/api/people/top?"+f.Encode(), nil, &resp); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Warn("[%s] people/top %s: %v", Name, f.Encode(), err)
			continue
		}
		for _, p := range resp.People {
			add(p.Slug)
		}
	}

	for _, level := range a.levels {
		params := url.Values{"limit": {strconv.Itoa(topLimit)}, "min_shared": {strconv.Itoa(level)}}
		var resp graphResponse
		if err := pages.GetJSON(ctx, a.apiBase+"/api/graph?"+params.Encode(), nil, &resp); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Warn("[%s] graph min_shared=%d: %v", Name, level, err)
			continue
		}
		for _, n := range resp.Nodes {
			add(n.Slug)
		}
	}

	var redirects redirectsResponse
	if err := pages.GetJSON(ctx, a.apiBase+"/api/person-redirects", nil, &redirects); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logger.Warn("[%s] person-redirects: %v", Name, err)
	}
	for _, name := range redirects.Redirects {
		add(a.lookup(ctx, pages, name))
	}
	return slugs, nil
}

// lookup resolves a person name to a slug, or "" when there is no match.
func (a *Adapter) lookup(ctx context.Context, pages driven.PageClient, name string) string {
	var resp lookupResponse
	if err := pages.GetJSON(ctx, a.apiBase+"/api/person-lookup?"+url.Values{"q": {name}}.Encode(), nil, &resp); err != nil {
		logger.Debug("[%s] lookup %q: %v", Name, name, err)
		return ""
	}
	if !resp.Match {
		return ""
	}
	return resp.Slug
}

// profile fetches one person and returns its descriptor plus the names of
// its connections.
func (a *Adapter) profile(ctx context.Context, pages driven.PageClient, slug string) (domain.SourceDescriptor, []string, error) {
	profileURL := a.apiBase + "/api/people/" + url.PathEscape(slug)
	params := url.Values{"limit": {strconv.Itoa(docsPerPage)}, "offset": {"0"}, "sort": {"doc_id"}}

	var resp profileResponse
	if err := pages.GetJSON(ctx, profileURL+"?"+params.Encode(), nil, &resp); err != nil {
		return domain.SourceDescriptor{}, nil, err
	}

	var names []string
	for _, conn := range resp.Connections {
		if conn.ConnectedPerson != "" {
			names = append(names, conn.ConnectedPerson)
		}
	}

	title := resp.Person.CanonicalName
	if title == "" {
		title = slug
	}
	return domain.SourceDescriptor{
		URL:               profileURL + "?" + params.Encode(),
		Source:            Name,
		SourceID:          slug,
		SuggestedFilename: slug + ".json",
		Title:             title,
		Metadata:          map[string]any{"total_documents": resp.TotalDocuments, "connections": len(names)},
	}, names, nil
}

func set(items []string) map[string]bool {
	m := make(map[string]bool, len(items))
	for _, s := range items {
		m[s] = true
	}
	return m
}

func sorted(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
