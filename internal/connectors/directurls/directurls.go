// Package directurls emits a curated list of verified document URLs.
package directurls

import (
	"context"

	"github.com/custodia-labs/dossier/internal/connectors/discovery"
	"github.com/custodia-labs/dossier/internal/core/domain"
	"github.com/custodia-labs/dossier/internal/core/ports/driven"
)

// Name is the source tag.
const Name = "direct_urls"

// Document is one curated entry.
type Document struct {
	URL      string
	SourceID string
	Filename string
	Title    string
}

// Documents is the curated list.
var Documents = []Document{
	{
		URL:      "https://www.justice.gov/usao-sdny/press-release/file/1180481/download",
		SourceID: "sdny-indictment",
		Filename: "epstein-sdny-indictment-2019.pdf",
		Title:    "SDNY Indictment of Jeffrey Epstein (2019)",
	},
	{
		URL:      "https://www.justice.gov/usao-sdny/press-release/file/1291481/download",
		SourceID: "maxwell-indictment",
		Filename: "maxwell-indictment-2020.pdf",
		Title:    "Indictment of Ghislaine Maxwell (2020)",
	},
	{
		URL:      "https://www.justice.gov/usao-sdny/press-release/file/1380016/download",
		SourceID: "maxwell-superseding",
		Filename: "maxwell-superseding-indictment-2021.pdf",
		Title:    "Superseding Indictment of Ghislaine Maxwell (2021)",
	},
	{
		URL:      "https://oig.justice.gov/sites/default/files/reports/24-043.pdf",
		SourceID: "bop-death-report",
		Filename: "doj-oig-epstein-death-report.pdf",
		Title:    "DOJ OIG Report on Epstein Death at MCC",
	},
	{
		URL:      "https://assets.documentcloud.org/documents/1507315/epstein-flight-manifests.pdf",
		SourceID: "flight-logs",
		Filename: "epstein-flight-manifests.pdf",
		Title:    "Epstein Flight Manifests / Logs",
	},
	{
		URL:      "https://assets.documentcloud.org/documents/1508273/jeffrey-epsteins-little-black-book-redacted.pdf",
		SourceID: "black-book",
		Filename: "epstein-little-black-book-redacted.pdf",
		Title:    "Jeffrey Epstein's Little Black Book (Redacted)",
	},
	{
		URL:      "https://assets.documentcloud.org/documents/6250552/Epstein-Police-Report.pdf",
		SourceID: "pb-police-report",
		Filename: "epstein-palm-beach-police-report.pdf",
		Title:    "Palm Beach Police Report: Jeffrey Epstein",
	},
	{
		URL:      "https://assets.documentcloud.org/documents/1508967/non-prosecution-agreement.pdf",
		SourceID: "npa-2007",
		Filename: "epstein-non-prosecution-agreement-2007.pdf",
		Title:    "Epstein Non-Prosecution Agreement (2007)",
	},
}

// Ensure Adapter implements the interface.
var _ driven.SourceAdapter = (*Adapter)(nil)

// Adapter emits the curated list.
type Adapter struct {
	docs []Document
}

// New creates the adapter over Documents.
func New() *Adapter {
	return &Adapter{docs: Documents}
}

// Name returns "direct_urls".
func (a *Adapter) Name() string { return Name }

// Info describes the source.
func (a *Adapter) Info() domain.SourceInfo {
	return discovery.Info(Name, "Curated indictments, reports and exhibits")
}

// Available always succeeds.
func (a *Adapter) Available(context.Context) error { return nil }

// Discover emits every curated document. No requests are made.
func (a *Adapter) Discover(ctx context.Context, _ driven.DiscoveryEnv) (<-chan domain.SourceDescriptor, <-chan error) {
	return discovery.Stream(ctx, func(emit discovery.Emit) error {
		for _, doc := range a.docs {
			err := emit(domain.SourceDescriptor{
				URL:               doc.URL,
				Source:            Name,
				SourceID:          doc.SourceID,
				SuggestedFilename: doc.Filename,
				Title:             doc.Title,
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}
