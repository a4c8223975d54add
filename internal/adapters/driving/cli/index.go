package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/dossier/internal/core/domain"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Maintain the full-text index",
}

var indexRebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuild the full-text index from scratch",
	Long: `Drops every indexed row and indexes all successful extractions again.
Run this after changing lexical settings or when an update reports the
index is inconsistent.`,
	Args: cobra.NoArgs,
	RunE: runIndexRebuild,
}

var indexUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Index extractions changed since the last run",
	Args:  cobra.NoArgs,
	RunE:  runIndexUpdate,
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Embed extracted text into the vector index",
	Long: `Chunks and embeds every document whose extraction changed since it was
last ingested, and removes documents whose extraction no longer succeeds.
Requires an embedding provider.`,
	Args: cobra.NoArgs,
	RunE: runIngest,
}

func init() {
	indexCmd.AddCommand(indexRebuildCmd)
	indexCmd.AddCommand(indexUpdateCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(ingestCmd)
}

func runIndexRebuild(cmd *cobra.Command, _ []string) error {
	if indexService == nil {
		return errors.New("index service not configured")
	}
	report, err := indexService.Rebuild(cmd.Context())
	if err != nil {
		return fmt.Errorf("rebuild failed: %w", err)
	}
	printIndexReport(cmd, report)
	return nil
}

func runIndexUpdate(cmd *cobra.Command, _ []string) error {
	if indexService == nil {
		return errors.New("index service not configured")
	}
	report, err := indexService.Update(cmd.Context())
	if err != nil {
		return fmt.Errorf("update failed: %w", err)
	}
	printIndexReport(cmd, report)
	return nil
}

func printIndexReport(cmd *cobra.Command, r *domain.IndexReport) {
	cmd.Printf("Indexed %d document(s), removed %d. Index holds %d row(s).\n", r.Indexed, r.Removed, r.Rows)
}

func runIngest(cmd *cobra.Command, _ []string) error {
	if ingestionService == nil {
		return errors.New("ingestion service not configured")
	}
	r, err := ingestionService.Run(cmd.Context())
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}
	cmd.Printf("Ingested %d document(s) as %d chunk(s); %d failed, %d purged.\n", r.Documents, r.Chunks, r.Failed, r.Purged)
	return nil
}
