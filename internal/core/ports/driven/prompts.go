package driven

// Prompt names.
const (
	// PromptChatSystem is the system prompt of the answer generator.
	PromptChatSystem = "chat_system"

	// PromptChatContext wraps the retrieved excerpts and the question,
	// marked by PlaceholderExcerpts and PlaceholderQuestion.
	PromptChatContext = "chat_context"

	// PromptNoContext replaces the excerpts when retrieval found nothing.
	PromptNoContext = "no_context"
)

// Named placeholders of PromptChatContext.
const (
	PlaceholderExcerpts = "{{excerpts}}"
	PlaceholderQuestion = "{{question}}"
)

// PromptStore loads prompt templates by name.
type PromptStore interface {
	// Load returns the template for name, falling back to the built-in default.
	Load(name string) (string, error)

	// Reload drops cached templates.
	Reload()
}
