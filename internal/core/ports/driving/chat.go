package driving

import (
	"context"

	"github.com/custodia-labs/dossier/internal/core/domain"
)

// ChatService streams grounded, cited answers.
type ChatService interface {
	// Stream starts answering req for caller.
	//
	// Returns domain.ErrRateLimited when the caller is over budget,
	// domain.ErrProviderUnavailable for an unknown provider and
	// domain.ErrInvalidInput for an empty message; in those cases no
	// stream is opened.
	//
	// The channel yields exactly one EventSources first, then zero or more
	// EventText, then exactly one EventDone or EventError, and is closed.
	// If ctx is cancelled the channel is closed without a terminal event.
	Stream(ctx context.Context, caller string, req domain.ChatRequest) (<-chan domain.ChatEvent, error)

	// Providers lists the configured provider names.
	Providers() []string
}
