package driven

import (
	"time"

	"github.com/custodia-labs/dossier/internal/core/domain"
)

// Metrics records pipeline counters.
type Metrics interface {
	// DownloadFinished counts a document reaching a terminal download status.
	DownloadFinished(source string, status domain.DownloadStatus, bytes int64)

	// DownloadRetried counts a retried download attempt.
	DownloadRetried(source string)

	// ExtractionFinished counts a finished extraction.
	ExtractionFinished(method domain.ExtractionMethod, status domain.ExtractionStatus, elapsed time.Duration)

	// ChunksEmbedded counts chunks written to the vector index.
	ChunksEmbedded(n int)

	// ChatTransition counts a chat request entering state.
	ChatTransition(provider string, state domain.ChatState)
}
