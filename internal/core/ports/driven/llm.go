package driven

import "context"

// ChatProvider streams generated text from a language model.
//
// Implementations include:
//   - Anthropic (Messages API)
//   - OpenAI (Chat Completions API)
//   - Ollama (local models)
type ChatProvider interface {
	// Name returns the provider name ("anthropic", "openai", "ollama").
	Name() string

	// Stream sends the conversation and calls fn with each text delta as it
	// arrives. Cancelling ctx stops upstream generation. An error returned
	// by fn aborts the stream and is returned.
	Stream(ctx context.Context, req ChatCompletion, fn func(delta string) error) error

	// ModelName returns the name of the model being used.
	ModelName() string

	// Ping validates the provider is configured and reachable.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// ChatCompletion is one generation request.
type ChatCompletion struct {
	// System is the system prompt.
	System string

	// Messages is the conversation, oldest first. Roles are "user" or "assistant".
	Messages []ChatMessage

	// MaxTokens is the maximum number of tokens to generate.
	MaxTokens int

	// Temperature controls randomness (0.0 = deterministic, 1.0 = creative).
	Temperature float64
}

// ChatMessage represents a single message in a conversation.
type ChatMessage struct {
	// Role is one of "system", "user", or "assistant".
	Role string

	// Content is the message text.
	Content string
}
