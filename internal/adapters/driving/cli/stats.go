package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/dossier/internal/core/domain"
)

var statsJSON bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show archive statistics",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "output statistics as JSON")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, _ []string) error {
	if statsService == nil {
		return errors.New("stats service not configured")
	}

	stats, err := statsService.Stats(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to read stats: %w", err)
	}

	if statsJSON {
		data, err := json.MarshalIndent(stats, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal stats: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	printStats(cmd, stats)
	return nil
}

func printStats(cmd *cobra.Command, s *domain.Stats) {
	cmd.Println(titleStyle.Render("Archive"))
	cmd.Printf("  Documents:   %d (%d downloaded, %d pending, %d failed, %d skipped)\n",
		s.Documents, s.Downloaded, s.Pending, s.Failed, s.Skipped)
	cmd.Printf("  Size:        %s\n", humanBytes(s.Bytes))
	cmd.Printf("  Extracted:   %d (%d failed)\n", s.Extracted, s.ExtractionFailed)
	cmd.Printf("  Pages:       %d (%d OCR)\n", s.Pages, s.OCRPages)
	cmd.Printf("  Characters:  %d\n", s.Chars)
	cmd.Printf("  Chunks:      %d\n", s.ChunksIndexed)

	if len(s.Sources) == 0 {
		return
	}

	rows := make([][]string, 0, len(s.Sources))
	for _, src := range s.Sources {
		rows = append(rows, []string{
			src.Source,
			strconv.Itoa(src.Documents),
			strconv.Itoa(src.Downloaded),
			strconv.Itoa(src.Failed),
			strconv.Itoa(src.Extracted),
			strconv.Itoa(src.Pages),
			humanBytes(src.Bytes),
		})
	}
	cmd.Println()
	cmd.Println(titleStyle.Render("By source"))
	cmd.Print(table([]string{"SOURCE", "DOCS", "DOWNLOADED", "FAILED", "EXTRACTED", "PAGES", "SIZE"}, rows))
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
