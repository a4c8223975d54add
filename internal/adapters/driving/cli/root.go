// Package cli provides the dossier command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/dossier/internal/adapters/driving/api"
	"github.com/custodia-labs/dossier/internal/core/ports/driving"
	"github.com/custodia-labs/dossier/internal/logger"
)

// version is set at build time with -ldflags "-X .../cli.version=...".
var version = "dev"

// Global flags.
var (
	configDir string
	verbose   bool
)

// Services holds the driving ports the commands use.
// Any port may be nil; commands needing it report it is not configured.
type Services struct {
	Acquisition driving.AcquisitionService
	Extraction  driving.ExtractionService
	Index       driving.IndexService
	Ingestion   driving.IngestionService
	Search      driving.SearchService
	Documents   driving.DocumentService
	Stats       driving.StatsService
	Chat        driving.ChatService
	Scheduler   driving.Scheduler

	// Metrics is served at /metrics by the serve command when set.
	Metrics http.Handler

	// Server configures the serve command.
	Server api.Config
}

// Opener builds the services for a config directory. The returned close
// function releases them.
type Opener func(ctx context.Context, configDir string) (*Services, func() error, error)

var (
	acquisitionService driving.AcquisitionService
	extractionService  driving.ExtractionService
	indexService       driving.IndexService
	ingestionService   driving.IngestionService
	searchService      driving.SearchService
	documentService    driving.DocumentService
	statsService       driving.StatsService
	chatService        driving.ChatService
	scheduler          driving.Scheduler
	metricsHandler     http.Handler
	serverConfig       api.Config

	opener        Opener
	closeServices func() error
)

// annotationNoServices marks commands that run without opening the archive.
const annotationNoServices = "no-services"

var rootCmd = &cobra.Command{
	Use:   "dossier",
	Short: "Acquire, extract, index and question public-record documents",
	Long: `dossier builds a searchable archive of public-record documents.

It downloads documents from a curated set of sources, extracts their text
(falling back to OCR for scanned pages), indexes that text for full-text and
semantic search, and answers questions with citations to the pages used.

Configuration is read from <config-dir>/config.toml (default ~/.dossier).`,
	SilenceUsage:      true,
	PersistentPreRunE: openServices,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "configuration directory (default ~/.dossier)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
}

// SetServices installs the driving ports used by the commands.
func SetServices(svc *Services) {
	if svc == nil {
		svc = &Services{}
	}
	acquisitionService = svc.Acquisition
	extractionService = svc.Extraction
	indexService = svc.Index
	ingestionService = svc.Ingestion
	searchService = svc.Search
	documentService = svc.Documents
	statsService = svc.Stats
	chatService = svc.Chat
	scheduler = svc.Scheduler
	metricsHandler = svc.Metrics
	serverConfig = svc.Server
}

// SetOpener sets how services are built once flags are parsed.
func SetOpener(o Opener) {
	opener = o
}

// Execute runs the root command and releases any opened services.
func Execute(ctx context.Context) error {
	err := rootCmd.ExecuteContext(ctx)
	if closeServices != nil {
		if cerr := closeServices(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("close: %w", cerr))
		}
		closeServices = nil
	}
	return err
}

func openServices(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)

	if opener == nil || closeServices != nil || cmd.Annotations[annotationNoServices] != "" {
		return nil
	}

	svc, closeFn, err := opener(cmd.Context(), configDir)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	SetServices(svc)
	closeServices = closeFn
	return nil
}
