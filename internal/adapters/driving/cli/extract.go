package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/dossier/internal/core/domain"
	"github.com/custodia-labs/dossier/internal/core/ports/driving"
)

var (
	extractSource string
	extractForce  bool
	extractWatch  bool
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract text from downloaded documents",
	Long: `Extracts text from every downloaded document that has no successful
extraction yet. Pages with too little embedded text are run through OCR.

With --watch the command keeps running and extracts new downloads as they
land, until interrupted.`,
	Args: cobra.NoArgs,
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().StringVar(&extractSource, "source", "", "only extract documents from this source")
	extractCmd.Flags().BoolVar(&extractForce, "force", false, "re-extract documents that already succeeded")
	extractCmd.Flags().BoolVar(&extractWatch, "watch", false, "keep extracting as new documents are downloaded")
	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, _ []string) error {
	if extractionService == nil {
		return errors.New("extraction service not configured")
	}

	opts := driving.ExtractOptions{Source: extractSource, Force: extractForce}

	if extractWatch {
		cmd.Println("Watching for new downloads (Ctrl+C to stop)...")
		if err := extractionService.Watch(cmd.Context(), opts); err != nil {
			return fmt.Errorf("watch failed: %w", err)
		}
		return nil
	}

	report, err := extractionService.RunPending(cmd.Context(), opts)
	if err != nil {
		return fmt.Errorf("extraction failed: %w", err)
	}
	printExtractionReport(cmd, report)
	return nil
}

func printExtractionReport(cmd *cobra.Command, r *domain.ExtractionReport) {
	if r.Candidates == 0 {
		cmd.Println("Nothing to extract.")
		return
	}
	cmd.Printf("Extracted %d of %d document(s): %d failed, %d unchanged, %d unsupported, %d needed OCR.\n",
		r.Succeeded, r.Candidates, r.Failed, r.Unchanged, r.Unsupported, r.OCR)
}
