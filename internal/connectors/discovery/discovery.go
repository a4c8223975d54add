// Package discovery holds the plumbing shared by source adapters: running a
// discovery function behind the descriptor/error channel pair, and pulling
// document links out of HTML listing pages.
package discovery

import (
	"context"

	"github.com/custodia-labs/dossier/internal/core/domain"
)

// Emit sends one descriptor downstream. It returns ctx.Err() once the
// consumer has gone away.
type Emit func(domain.SourceDescriptor) error

// Stream runs discover in its own goroutine. Descriptors passed to emit are
// delivered on the first channel; a non-nil error returned by discover is
// delivered on the second. Both channels are closed when discover returns.
func Stream(ctx context.Context, discover func(emit Emit) error) (<-chan domain.SourceDescriptor, <-chan error) {
	out := make(chan domain.SourceDescriptor)
	errs := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errs)

		emit := func(d domain.SourceDescriptor) error {
			select {
			case out <- d:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err := discover(emit); err != nil {
			errs <- err
		}
	}()

	return out, errs
}

// Info builds the listing entry of an always-available adapter.
func Info(name, description string) domain.SourceInfo {
	return domain.SourceInfo{Name: name, Description: description, Enabled: true}
}
