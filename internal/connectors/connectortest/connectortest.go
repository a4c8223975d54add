// Package connectortest provides in-memory collaborators for source adapter tests.
package connectortest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/custodia-labs/dossier/internal/core/domain"
	"github.com/custodia-labs/dossier/internal/core/ports/driven"
)

// Ensure the fakes implement the interfaces.
var (
	_ driven.PageClient       = (*Pages)(nil)
	_ driven.SourceStateStore = (*State)(nil)
)

// Pages serves canned bodies by URL. Unknown URLs fail with an HTTP 404 error.
type Pages struct {
	mu       sync.Mutex
	bodies   map[string]string
	errs     map[string]error
	requests []string
	headers  map[string]map[string]string
}

// NewPages creates an empty page set.
func NewPages() *Pages {
	return &Pages{
		bodies:  make(map[string]string),
		errs:    make(map[string]error),
		headers: make(map[string]map[string]string),
	}
}

// Text registers a text body for url.
func (p *Pages) Text(url, body string) *Pages {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bodies[url] = body
	return p
}

// JSON registers v, marshalled, as the body for url.
func (p *Pages) JSON(url string, v any) *Pages {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return p.Text(url, string(data))
}

// Fail makes url return err.
func (p *Pages) Fail(url string, err error) *Pages {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errs[url] = err
	return p
}

// Requests returns the URLs requested so far, in order.
func (p *Pages) Requests() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.requests...)
}

// HeadersFor returns the headers sent with the last request to url.
func (p *Pages) HeadersFor(url string) map[string]string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.headers[url]
}

// GetText returns the registered body.
func (p *Pages) GetText(ctx context.Context, url string, headers map[string]string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.requests = append(p.requests, url)
	p.headers[url] = headers
	if err, ok := p.errs[url]; ok {
		return "", err
	}
	body, ok := p.bodies[url]
	if !ok {
		return "", &domain.HTTPStatusError{URL: url, StatusCode: 404}
	}
	return body, nil
}

// GetJSON decodes the registered body into out.
func (p *Pages) GetJSON(ctx context.Context, url string, headers map[string]string, out any) error {
	body, err := p.GetText(ctx, url, headers)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(body), out); err != nil {
		return fmt.Errorf("decoding %s: %w", url, err)
	}
	return nil
}

// State is an in-memory SourceStateStore.
type State struct {
	mu     sync.Mutex
	states map[string]domain.SourceState
	saves  int
}

// NewState creates an empty state store.
func NewState() *State {
	return &State{states: make(map[string]domain.SourceState)}
}

// GetSourceState returns a copy of the saved state.
func (s *State) GetSourceState(_ context.Context, source string) (domain.SourceState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return roundTrip(s.states[source]), nil
}

// SaveSourceState stores a copy of state.
func (s *State) SaveSourceState(_ context.Context, source string, state domain.SourceState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[source] = roundTrip(state)
	s.saves++
	return nil
}

// Saves returns the number of SaveSourceState calls.
func (s *State) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

// roundTrip copies state through JSON, the way the SQLite store persists it.
func roundTrip(state domain.SourceState) domain.SourceState {
	out := domain.SourceState{}
	if state == nil {
		return out
	}
	data, err := json.Marshal(state)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		panic(err)
	}
	return out
}

// Collect runs a discovery to completion and returns what it produced.
func Collect(ctx context.Context, adapter driven.SourceAdapter, env driven.DiscoveryEnv) ([]domain.SourceDescriptor, error) {
	out, errs := adapter.Discover(ctx, env)

	var descs []domain.SourceDescriptor
	for d := range out {
		descs = append(descs, d)
	}
	return descs, <-errs
}

// Env bundles pages and state into a DiscoveryEnv.
func Env(pages *Pages, state *State) driven.DiscoveryEnv {
	return driven.DiscoveryEnv{Pages: pages, State: state}
}
