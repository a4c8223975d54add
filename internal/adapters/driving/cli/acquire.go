package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/dossier/internal/core/domain"
	"github.com/custodia-labs/dossier/internal/core/ports/driving"
)

var acquireRetryFailed bool

// progressInterval is how often live run status is redrawn.
var progressInterval = 500 * time.Millisecond

var acquireCmd = &cobra.Command{
	Use:   "acquire [source...]",
	Short: "Discover and download documents",
	Long: `Discovers documents at the named sources and downloads the new ones.
With no arguments every enabled source runs concurrently.

Already-downloaded documents are never fetched again. Use --retry-failed to
give documents that previously failed another attempt.`,
	RunE: runAcquire,
}

func init() {
	acquireCmd.Flags().BoolVar(&acquireRetryFailed, "retry-failed", false, "retry documents that previously failed")
	rootCmd.AddCommand(acquireCmd)
}

func runAcquire(cmd *cobra.Command, args []string) error {
	if acquisitionService == nil {
		return errors.New("acquisition service not configured")
	}

	ctx := cmd.Context()
	opts := driving.AcquireOptions{RetryFailed: acquireRetryFailed}

	if len(args) == 0 {
		cmd.Println("Acquiring from all enabled sources...")
	} else {
		cmd.Printf("Acquiring from %d source(s)...\n", len(args))
	}

	reports, err := acquireWithProgress(ctx, cmd, args, opts)
	printRunReports(cmd, reports)
	if err != nil {
		return fmt.Errorf("acquire failed: %w", err)
	}
	return nil
}

// acquireWithProgress runs acquisition while redrawing the live download
// count on interactive terminals.
func acquireWithProgress(
	ctx context.Context,
	cmd *cobra.Command,
	names []string,
	opts driving.AcquireOptions,
) ([]domain.RunReport, error) {
	if !isTerminal(cmd.OutOrStdout()) {
		return acquisitionService.RunAll(ctx, names, opts)
	}

	type result struct {
		reports []domain.RunReport
		err     error
	}
	done := make(chan result, 1)
	go func() {
		reports, err := acquisitionService.RunAll(ctx, names, opts)
		done <- result{reports, err}
	}()

	if len(names) == 0 {
		for _, info := range acquisitionService.Sources(ctx) {
			if info.Enabled {
				names = append(names, info.Name)
			}
		}
	}

	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()

	for {
		select {
		case r := <-done:
			cmd.Print("\r\033[K")
			return r.reports, r.err
		case <-ticker.C:
			downloaded, running := 0, 0
			for _, name := range names {
				status, ok := acquisitionService.Status(name)
				if !ok {
					continue
				}
				downloaded += status.Report.Downloaded
				if status.Running {
					running++
				}
			}
			cmd.Printf("\r\033[KDownloading... %d documents (%d source(s) running)", downloaded, running)
		}
	}
}

func printRunReports(cmd *cobra.Command, reports []domain.RunReport) {
	if len(reports) == 0 {
		return
	}

	rows := make([][]string, 0, len(reports))
	for _, r := range reports {
		outcome := successStyle.Render("ok")
		if r.Error != "" {
			outcome = errorStyle.Render(r.Error)
		}
		rows = append(rows, []string{
			r.Source,
			strconv.Itoa(r.Discovered),
			strconv.Itoa(r.Downloaded),
			strconv.Itoa(r.Skipped),
			strconv.Itoa(r.Failed),
			r.Duration.Round(time.Second).String(),
			outcome,
		})
	}
	cmd.Println()
	cmd.Print(table([]string{"SOURCE", "DISCOVERED", "DOWNLOADED", "SKIPPED", "FAILED", "TIME", "RESULT"}, rows))
}
