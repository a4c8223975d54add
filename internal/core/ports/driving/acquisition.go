package driving

import (
	"context"

	"github.com/custodia-labs/dossier/internal/core/domain"
)

// AcquisitionService runs discovery and download cycles.
type AcquisitionService interface {
	// Sources lists every adapter with its effective enabled state.
	Sources(ctx context.Context) []domain.SourceInfo

	// Run discovers and downloads documents for one source.
	// Returns domain.ErrUnknownSource, domain.ErrSourceDisabled or
	// domain.ErrRunInProgress without doing any work.
	Run(ctx context.Context, source string, opts AcquireOptions) (*domain.RunReport, error)

	// RunAll runs the named sources concurrently (every enabled source when
	// names is empty). A failing source never aborts the others; their
	// errors are joined.
	RunAll(ctx context.Context, names []string, opts AcquireOptions) ([]domain.RunReport, error)

	// Status returns the live status of a source's most recent run.
	Status(source string) (domain.RunStatus, bool)
}

// AcquireOptions tunes an acquisition run.
type AcquireOptions struct {
	// RetryFailed re-enqueues documents previously marked failed.
	RetryFailed bool
}
