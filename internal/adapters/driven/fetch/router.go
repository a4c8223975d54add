package fetch

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/dossier/internal/core/domain"
	"github.com/custodia-labs/dossier/internal/core/ports/driven"
)

// Ensure Router implements the interface.
var _ driven.Fetcher = (*Router)(nil)

// Router sends magnet links to the torrent fetcher and everything else to HTTP.
type Router struct {
	http   driven.Fetcher
	magnet driven.Fetcher
}

// NewRouter creates a router. magnet may be nil when aria2c is unavailable.
func NewRouter(http, magnet driven.Fetcher) *Router {
	return &Router{http: http, magnet: magnet}
}

// Download dispatches on the URL scheme.
func (r *Router) Download(ctx context.Context, req driven.FetchRequest) (*driven.FetchResult, error) {
	if strings.HasPrefix(req.URL, "magnet:") {
		if r.magnet == nil {
			return nil, fmt.Errorf("%w: %s", domain.ErrToolNotFound, Aria2Binary)
		}
		return r.magnet.Download(ctx, req)
	}
	return r.http.Download(ctx, req)
}
