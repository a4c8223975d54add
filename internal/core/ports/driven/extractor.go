package driven

import (
	"context"

	"github.com/custodia-labs/dossier/internal/core/domain"
)

// TextExtractor turns a stored file into page text.
// Implementations include the poppler/tesseract PDF extractor and a plain
// text extractor for .txt and .json files.
type TextExtractor interface {
	// Extensions lists the lower-case file extensions handled, including the dot.
	Extensions() []string

	// Extract reads the file at path and returns its text, one entry per page.
	// Files without pages yield a single page.
	Extract(ctx context.Context, path string) (*domain.ExtractedText, error)
}
