package driven

import (
	"context"

	"github.com/custodia-labs/dossier/internal/core/domain"
)

// SourceAdapter discovers documents for one curated source.
// Each source (doj, internet_archive, courtlistener, etc.) implements this interface.
type SourceAdapter interface {
	// Name returns the source name tag (e.g. "doj").
	Name() string

	// Info describes the adapter for listings.
	Info() domain.SourceInfo

	// Available checks if the adapter can run right now.
	// Returns nil if ready, or an error wrapping domain.ErrSourceDisabled
	// that names the reason (missing token, missing tool, access block).
	Available(ctx context.Context) error

	// Discover produces a lazy, finite, restartable sequence of descriptors.
	// Re-discovering a known URL is a no-op downstream, so adapters may
	// restart from their saved state or from scratch.
	//
	// Fatal source-level errors are sent on the error channel; recoverable
	// page-level errors are logged and skipped. Both channels are closed
	// when discovery ends.
	Discover(ctx context.Context, env DiscoveryEnv) (<-chan domain.SourceDescriptor, <-chan error)
}

// DiscoveryEnv carries the collaborators a source needs while discovering.
type DiscoveryEnv struct {
	// Pages fetches listing pages and API responses. Requests are already
	// throttled by the source's rate limiter.
	Pages PageClient

	// State persists resume state (pagination cursors, crawl queues).
	State SourceStateStore
}

// PageClient fetches discovery pages.
type PageClient interface {
	// GetText fetches a page body as text. HTML pages are gated by robots.txt
	// when the fetcher is configured to respect it.
	GetText(ctx context.Context, url string, headers map[string]string) (string, error)

	// GetJSON fetches url and decodes the JSON response into out.
	GetJSON(ctx context.Context, url string, headers map[string]string, out any) error
}

// SourceRegistry resolves a name tag to an adapter.
type SourceRegistry interface {
	// Get returns the adapter registered under name.
	// Returns domain.ErrUnknownSource if there is none.
	Get(name string) (SourceAdapter, error)

	// List returns every adapter in a fixed order.
	List() []SourceAdapter
}

// SourceStateStore persists opaque per-source resume state.
type SourceStateStore interface {
	// GetSourceState returns the saved state, or an empty state if none exists.
	GetSourceState(ctx context.Context, source string) (domain.SourceState, error)

	// SaveSourceState replaces the saved state.
	SaveSourceState(ctx context.Context, source string, state domain.SourceState) error
}
