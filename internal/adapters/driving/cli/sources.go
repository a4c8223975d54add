package cli

import (
	"errors"

	"github.com/spf13/cobra"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List document sources",
	Long: `Lists every source adapter with its effective state.

A source is disabled in configuration, or because a credential it needs
(such as an API token) is missing.`,
	Args: cobra.NoArgs,
	RunE: runSources,
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
}

func runSources(cmd *cobra.Command, _ []string) error {
	if acquisitionService == nil {
		return errors.New("acquisition service not configured")
	}

	infos := acquisitionService.Sources(cmd.Context())
	if len(infos) == 0 {
		cmd.Println("No sources registered.")
		return nil
	}

	rows := make([][]string, 0, len(infos))
	for _, info := range infos {
		state := successStyle.Render("enabled")
		if !info.Enabled {
			state = warningStyle.Render("disabled")
			if info.DisabledReason != "" {
				state += mutedStyle.Render(" (" + info.DisabledReason + ")")
			}
		}
		rows = append(rows, []string{info.Name, state, info.RateLimit.String(), info.Description})
	}

	cmd.Println(titleStyle.Render("Sources"))
	cmd.Println()
	cmd.Print(table([]string{"NAME", "STATE", "RATE", "DESCRIPTION"}, rows))
	return nil
}
