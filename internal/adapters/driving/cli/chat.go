package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/dossier/internal/core/domain"
)

// cliCaller is the rate-limit key for questions asked from the terminal.
const cliCaller = "cli"

var chatProvider string

var chatCmd = &cobra.Command{
	Use:   "chat [message]",
	Short: "Ask a question about the archive",
	Long: `Answers a question from the most relevant indexed passages and streams
the answer to the terminal, followed by the documents it cites.

Requires vector ingestion to have run and a configured chat provider.`,
	Args: cobra.ExactArgs(1),
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&chatProvider, "provider", "p", "", "chat provider (anthropic, openai, ollama)")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	if chatService == nil {
		return errors.New("chat service not configured")
	}

	events, err := chatService.Stream(cmd.Context(), cliCaller, domain.ChatRequest{
		Message:  args[0],
		Provider: chatProvider,
	})
	if err != nil {
		return fmt.Errorf("chat failed: %w", err)
	}

	var sources []domain.Citation
	var streamErr error
	for ev := range events {
		switch ev.Type {
		case domain.EventSources:
			sources = ev.Sources
		case domain.EventText:
			cmd.Print(ev.Text)
		case domain.EventError:
			streamErr = errors.New(ev.Error)
		}
	}
	cmd.Println()

	if streamErr != nil {
		return fmt.Errorf("chat failed: %w", streamErr)
	}
	if err := cmd.Context().Err(); err != nil {
		return nil
	}

	printCitations(cmd, sources)
	return nil
}

func printCitations(cmd *cobra.Command, sources []domain.Citation) {
	if len(sources) == 0 {
		return
	}
	cmd.Println()
	cmd.Println(titleStyle.Render("Sources"))
	for i, c := range sources {
		title := c.Title
		if title == "" {
			title = c.Filename
		}
		cmd.Printf("  [%d] %s, page %d %s\n", i+1, title, c.PageNum, mutedStyle.Render("("+c.Source+")"))
		if c.URL != "" {
			cmd.Printf("      %s\n", mutedStyle.Render(c.URL))
		}
	}
}
