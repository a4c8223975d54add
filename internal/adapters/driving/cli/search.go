package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/dossier/internal/core/domain"
)

var (
	searchPage    int
	searchPerPage int
	searchSource  string
	searchJSON    bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search extracted documents",
	Long: `Performs a full-text search across all indexed documents.
Results are ranked by BM25; the best match comes first.

The query supports prefix matches (flig*), quoted phrases and OR.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVar(&searchPage, "page", 1, "result page")
	searchCmd.Flags().IntVarP(&searchPerPage, "per-page", "n", domain.DefaultSearchPerPage, "results per page")
	searchCmd.Flags().StringVar(&searchSource, "source", "", "only search documents from this source")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	if searchService == nil {
		return errors.New("search service not configured")
	}

	page, err := searchService.Search(cmd.Context(), domain.SearchQuery{
		Query:   args[0],
		Source:  searchSource,
		Page:    searchPage,
		PerPage: searchPerPage,
	})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		return outputSearchJSON(cmd, page)
	}

	return outputSearchTable(cmd, page)
}

func outputSearchJSON(cmd *cobra.Command, page *domain.SearchPage) error {
	data, err := json.MarshalIndent(page, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputSearchTable(cmd *cobra.Command, page *domain.SearchPage) error {
	if len(page.Results) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	cmd.Printf("Results %d of %d (page %d of %d):\n\n", len(page.Results), page.Total, page.Page, page.Pages)
	offset := (page.Page - 1) * page.PerPage
	for i := range page.Results {
		r := &page.Results[i]
		title := r.Title
		if title == "" {
			title = r.Filename
		}

		cmd.Printf("  [%d] %s %s\n", offset+i+1, title, mutedStyle.Render(fmt.Sprintf("#%d", r.ID)))
		cmd.Printf("      Source: %s\n", r.Source)
		if snippet := plainSnippet(r.Snippet); snippet != "" {
			cmd.Printf("      %s\n", snippet)
		}
		cmd.Println()
	}
	return nil
}

// plainSnippet turns the index's <mark> highlighting into terminal emphasis.
func plainSnippet(s string) string {
	var b strings.Builder
	for {
		start := strings.Index(s, "<mark>")
		if start < 0 {
			break
		}
		end := strings.Index(s[start:], "</mark>")
		if end < 0 {
			break
		}
		b.WriteString(s[:start])
		b.WriteString(headerStyle.Render(s[start+len("<mark>") : start+end]))
		s = s[start+end+len("</mark>"):]
	}
	b.WriteString(s)
	return strings.Join(strings.Fields(b.String()), " ")
}
