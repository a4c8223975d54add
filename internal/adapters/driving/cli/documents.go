package cli

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/dossier/internal/core/domain"
)

var documentsCmd = &cobra.Command{
	Use:     "documents",
	Aliases: []string{"document", "docs"},
	Short:   "Browse acquired documents",
	Long:    `List acquired documents or show one document with its extraction.`,
}

var documentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List documents, newest first",
	Args:  cobra.NoArgs,
	RunE:  runDocumentsList,
}

var documentsShowCmd = &cobra.Command{
	Use:   "show [doc-id]",
	Short: "Show document info",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentsShow,
}

var (
	documentsSource  string
	documentsStatus  string
	documentsPage    int
	documentsPerPage int
	documentsText    bool
)

func init() {
	documentsListCmd.Flags().StringVar(&documentsSource, "source", "", "only list documents from this source")
	documentsListCmd.Flags().StringVar(&documentsStatus, "status", "",
		"only list documents with this download status (pending, downloaded, failed, skipped)")
	documentsListCmd.Flags().IntVar(&documentsPage, "page", 1, "page to show")
	documentsListCmd.Flags().IntVar(&documentsPerPage, "per-page", domain.DefaultDocumentsLimit, "documents per page")
	documentsShowCmd.Flags().BoolVar(&documentsText, "text", false, "print the extracted text")

	documentsCmd.AddCommand(documentsListCmd)
	documentsCmd.AddCommand(documentsShowCmd)
	rootCmd.AddCommand(documentsCmd)
}

func runDocumentsList(cmd *cobra.Command, _ []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	status := domain.DownloadStatus(documentsStatus)
	if status != "" && !status.Valid() {
		return fmt.Errorf("unknown status %q", documentsStatus)
	}

	page, err := documentService.List(cmd.Context(), domain.DocumentFilter{
		Source:  documentsSource,
		Status:  status,
		Page:    documentsPage,
		PerPage: documentsPerPage,
	})
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	if len(page.Documents) == 0 {
		cmd.Println("No documents found.")
		return nil
	}

	rows := make([][]string, 0, len(page.Documents))
	for i := range page.Documents {
		d := &page.Documents[i]
		rows = append(rows, []string{
			strconv.FormatInt(d.ID, 10),
			d.Source,
			string(d.DownloadStatus),
			d.Title,
		})
	}
	cmd.Print(table([]string{"ID", "SOURCE", "STATUS", "TITLE"}, rows))
	cmd.Println()
	cmd.Printf("Page %d of %d (%d documents)\n", page.Page, page.Pages, page.Total)
	return nil
}

func runDocumentsShow(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return fmt.Errorf("invalid document id %q", args[0])
	}

	detail, err := documentService.Get(cmd.Context(), id)
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}

	doc := detail.Document
	cmd.Printf("Document: %d\n\n", doc.ID)
	cmd.Printf("  Title:    %s\n", doc.Title)
	cmd.Printf("  Source:   %s (%s)\n", doc.Source, doc.SourceID)
	cmd.Printf("  URL:      %s\n", doc.URL)
	cmd.Printf("  File:     %s\n", doc.Filename)
	cmd.Printf("  Status:   %s\n", doc.DownloadStatus)
	if doc.Error != "" {
		cmd.Printf("  Error:    %s\n", errorStyle.Render(doc.Error))
	}
	if doc.FileSize > 0 {
		cmd.Printf("  Size:     %d bytes\n", doc.FileSize)
	}
	cmd.Printf("  Created:  %s\n", doc.CreatedAt.Format("2006-01-02 15:04:05"))

	if e := detail.Extraction; e != nil {
		cmd.Println("\n  Extraction:")
		cmd.Printf("    Status:  %s\n", e.Status)
		if e.Method != "" {
			cmd.Printf("    Method:  %s\n", e.Method)
		}
		cmd.Printf("    Pages:   %d (%d OCR)\n", e.PageCount, e.OCRPages)
		cmd.Printf("    Chars:   %d\n", e.CharCount)
		if e.Error != "" {
			cmd.Printf("    Error:   %s\n", errorStyle.Render(e.Error))
		}
	}

	if len(doc.Metadata) > 0 {
		cmd.Println("\n  Metadata:")
		for k, v := range doc.Metadata {
			cmd.Printf("    %s: %v\n", k, v)
		}
	}

	if documentsText && detail.Text != "" {
		cmd.Println()
		cmd.Println(detail.Text)
	}
	return nil
}
