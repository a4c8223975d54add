// Command dossier acquires, extracts, indexes and answers questions about
// public-record documents.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/custodia-labs/dossier/internal/adapters/driving/api"
	"github.com/custodia-labs/dossier/internal/adapters/driving/cli"
	"github.com/custodia-labs/dossier/internal/app"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cli.SetOpener(open)

	if err := cli.Execute(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

// open builds the application and exposes its services to the CLI.
func open(ctx context.Context, configDir string) (*cli.Services, func() error, error) {
	a, err := app.Open(ctx, configDir)
	if err != nil {
		return nil, nil, fmt.Errorf("build app: %w", err)
	}

	return &cli.Services{
		Acquisition: a.Acquisition,
		Extraction:  a.Extraction,
		Index:       a.Index,
		Ingestion:   a.Ingestion,
		Search:      a.Search,
		Documents:   a.Documents,
		Stats:       a.Documents,
		Chat:        a.Chat,
		Scheduler:   a.Scheduler,
		Metrics:     a.Metrics.Handler(),
		Server: api.Config{
			Addr:               a.Config.Server.Addr,
			SearchRateLimit:    a.Config.Server.SearchRateLimit,
			DocumentsRateLimit: a.Config.Server.DocumentsRateLimit,
		},
	}, a.Close, nil
}
