// Package torrents emits magnet links for bulk archives of the document
// releases. The aria2 fetcher downloads them.
package torrents

import (
	"context"
	"fmt"

	"github.com/custodia-labs/dossier/internal/connectors/discovery"
	"github.com/custodia-labs/dossier/internal/core/domain"
	"github.com/custodia-labs/dossier/internal/core/ports/driven"
)

// Name is the source tag.
const Name = "torrents"

// Tool is the external downloader the magnets require.
const Tool = "aria2c"

// Magnet is one torrent.
type Magnet struct {
	URI      string
	SourceID string
	Filename string
	Title    string
}

// Magnets is the curated list.
var Magnets = []Magnet{
	{
		URI:      "magnet:?xt=urn:btih:f5cbe5026b1f86617c520d0a9cd610d6254cbe85&dn=epstein-files-structured-full-20250204.tar.zst&xl=221393230690",
		SourceID: "full-structured",
		Filename: "epstein-files-structured-full-20250204.tar.zst",
		Title:    "Epstein Files: Full Structured Dataset (221GB)",
	},
	{
		URI:      "magnet:?xt=urn:btih:7ac8f771678d19c75a26ea6c14e7d4c003fbf9b6&dn=dataset9-more-complete.tar.zst",
		SourceID: "dataset-9-torrent",
		Filename: "dataset9-more-complete.tar.zst",
		Title:    "DOJ Data Set 9 (Torrent)",
	},
	{
		URI:      "magnet:?xt=urn:btih:d509cc4ca1a415a9ba3b6cb920f67c44aed7fe1f&dn=DataSet%2010.zip",
		SourceID: "dataset-10-torrent",
		Filename: "DataSet-10.zip",
		Title:    "DOJ Data Set 10 (Torrent)",
	},
	{
		URI:      "magnet:?xt=urn:btih:59975667f8bdd5baf9945b0e2db8a57d52d32957&dn=DataSet%2011.zip",
		SourceID: "dataset-11-torrent",
		Filename: "DataSet-11.zip",
		Title:    "DOJ Data Set 11 (Torrent)",
	},
}

// Ensure Adapter implements the interface.
var _ driven.SourceAdapter = (*Adapter)(nil)

// Adapter emits the magnets when aria2c is installed.
type Adapter struct {
	runner  driven.CommandRunner
	magnets []Magnet
}

// New creates the adapter. runner is used to look up aria2c.
func New(runner driven.CommandRunner) *Adapter {
	return &Adapter{runner: runner, magnets: Magnets}
}

// Name returns "torrents".
func (a *Adapter) Name() string { return Name }

// Info describes the source.
func (a *Adapter) Info() domain.SourceInfo {
	return discovery.Info(Name, "Bulk data-set archives over BitTorrent (needs aria2c)")
}

// Available reports ErrSourceDisabled when aria2c is not on PATH.
func (a *Adapter) Available(context.Context) error {
	if err := a.runner.LookPath(Tool); err != nil {
		return fmt.Errorf("%w: %s not installed (e.g. apt install aria2)", domain.ErrSourceDisabled, Tool)
	}
	return nil
}

// Discover emits the magnets as descriptor URLs.
func (a *Adapter) Discover(ctx context.Context, _ driven.DiscoveryEnv) (<-chan domain.SourceDescriptor, <-chan error) {
	return discovery.Stream(ctx, func(emit discovery.Emit) error {
		if err := a.Available(ctx); err != nil {
			return err
		}
		for _, m := range a.magnets {
			err := emit(domain.SourceDescriptor{
				URL:               m.URI,
				Source:            Name,
				SourceID:          m.SourceID,
				SuggestedFilename: m.Filename,
				Title:             m.Title,
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}
