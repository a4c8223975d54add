package driving

import (
	"context"

	"github.com/custodia-labs/dossier/internal/core/domain"
)

// SearchService provides lexical search to external actors.
type SearchService interface {
	// Search validates the query and returns one page of ranked results.
	// Invalid queries return an error wrapping domain.ErrInvalidInput.
	Search(ctx context.Context, q domain.SearchQuery) (*domain.SearchPage, error)
}
