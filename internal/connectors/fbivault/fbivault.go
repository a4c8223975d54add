// Package fbivault emits the 22 parts of the FBI Vault FOIA release.
//
// The vault rejects automated clients, so the source ships disabled and must
// be enabled explicitly with sources.fbi_vault.enabled = true.
package fbivault

import (
	"context"
	"fmt"

	"github.com/custodia-labs/dossier/internal/connectors/discovery"
	"github.com/custodia-labs/dossier/internal/core/domain"
	"github.com/custodia-labs/dossier/internal/core/ports/driven"
)

// Name is the source tag.
const Name = "fbi_vault"

// Parts is the number of parts in the release.
const Parts = 22

const (
	partURL      = "https://vault.fbi.gov/jeffrey-epstein/Jeffrey%%20Epstein%%20Part%%20%02d/at_download/file"
	finalPartURL = "https://vault.fbi.gov/jeffrey-epstein/Jeffrey%20Epstein%20Part%2022%20(Final)/at_download/file"
)

// Ensure Adapter implements the interface.
var _ driven.SourceAdapter = (*Adapter)(nil)

// Adapter emits one descriptor per part.
type Adapter struct{}

// New creates the adapter.
func New() *Adapter { return &Adapter{} }

// Name returns "fbi_vault".
func (a *Adapter) Name() string { return Name }

// Info describes the source.
func (a *Adapter) Info() domain.SourceInfo {
	return discovery.Info(Name, "FBI Vault FOIA release, 22 parts (blocks automated clients)")
}

// Available always succeeds; the config gate decides whether the source runs.
func (a *Adapter) Available(context.Context) error { return nil }

// Discover emits parts 1 to 22.
func (a *Adapter) Discover(ctx context.Context, _ driven.DiscoveryEnv) (<-chan domain.SourceDescriptor, <-chan error) {
	return discovery.Stream(ctx, func(emit discovery.Emit) error {
		for part := 1; part <= Parts; part++ {
			if err := emit(descriptor(part)); err != nil {
				return err
			}
		}
		return nil
	})
}

// PartURL returns the download URL of a part. The last part carries a "(Final)" suffix.
func PartURL(part int) string {
	if part == Parts {
		return finalPartURL
	}
	return fmt.Sprintf(partURL, part)
}

func descriptor(part int) domain.SourceDescriptor {
	return domain.SourceDescriptor{
		URL:               PartURL(part),
		Source:            Name,
		SourceID:          fmt.Sprintf("part-%02d", part),
		SuggestedFilename: fmt.Sprintf("jeffrey-epstein-fbi-vault-part-%02d.pdf", part),
		Title:             fmt.Sprintf("Jeffrey Epstein FBI Vault Part %d of %d", part, Parts),
		Metadata:          map[string]any{"part": part},
	}
}
