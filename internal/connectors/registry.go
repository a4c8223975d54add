package connectors

import (
	"fmt"

	"github.com/custodia-labs/dossier/internal/connectors/courtlistener"
	"github.com/custodia-labs/dossier/internal/connectors/directurls"
	"github.com/custodia-labs/dossier/internal/connectors/documentcloud"
	"github.com/custodia-labs/dossier/internal/connectors/doj"
	"github.com/custodia-labs/dossier/internal/connectors/epsteingraph"
	"github.com/custodia-labs/dossier/internal/connectors/fbivault"
	"github.com/custodia-labs/dossier/internal/connectors/houseoversight"
	"github.com/custodia-labs/dossier/internal/connectors/internetarchive"
	"github.com/custodia-labs/dossier/internal/connectors/torrents"
	"github.com/custodia-labs/dossier/internal/core/domain"
	"github.com/custodia-labs/dossier/internal/core/ports/driven"
)

// Ensure Registry implements the interface.
var _ driven.SourceRegistry = (*Registry)(nil)

// Registry holds adapters by name, in registration order.
type Registry struct {
	adapters []driven.SourceAdapter
	byName   map[string]driven.SourceAdapter
}

// NewRegistry creates a registry. Later adapters with a duplicate name
// replace earlier ones in place.
func NewRegistry(adapters ...driven.SourceAdapter) *Registry {
	r := &Registry{byName: make(map[string]driven.SourceAdapter)}
	for _, a := range adapters {
		r.Register(a)
	}
	return r
}

// Register adds an adapter.
func (r *Registry) Register(a driven.SourceAdapter) {
	if _, exists := r.byName[a.Name()]; exists {
		for i, existing := range r.adapters {
			if existing.Name() == a.Name() {
				r.adapters[i] = a
			}
		}
	} else {
		r.adapters = append(r.adapters, a)
	}
	r.byName[a.Name()] = a
}

// Get returns the adapter registered under name.
func (r *Registry) Get(name string) (driven.SourceAdapter, error) {
	a, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownSource, name)
	}
	return a, nil
}

// List returns the adapters in registration order.
func (r *Registry) List() []driven.SourceAdapter {
	return append([]driven.SourceAdapter(nil), r.adapters...)
}

// Defaults builds the registry of built-in sources in their run order.
func Defaults(cfg *domain.AppConfig, runner driven.CommandRunner) *Registry {
	return NewRegistry(
		doj.New(),
		directurls.New(),
		internetarchive.New(),
		documentcloud.New(),
		houseoversight.New(),
		torrents.New(runner),
		epsteingraph.New(),
		courtlistener.New(courtlistener.Config{Token: cfg.SourceConfigFor(courtlistener.Name).APIToken}),
		fbivault.New(),
	)
}
