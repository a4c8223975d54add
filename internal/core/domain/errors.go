package domain

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates a file type no extractor handles.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrUnknownSource indicates no adapter is registered under the given name.
	ErrUnknownSource = errors.New("unknown source")

	// ErrSourceDisabled indicates a source cannot run (disabled in config,
	// missing credentials, missing tooling or blocked upstream).
	ErrSourceDisabled = errors.New("source disabled")

	// ErrRunInProgress indicates a run for the same source is already active.
	ErrRunInProgress = errors.New("run in progress")

	// ErrRateLimited indicates the caller exceeded its request budget.
	ErrRateLimited = errors.New("rate limited")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrVectorIndexUnavailable indicates the vector index is not configured.
	ErrVectorIndexUnavailable = errors.New("vector index unavailable")

	// ErrProviderUnavailable indicates the requested chat provider is not configured.
	ErrProviderUnavailable = errors.New("chat provider unavailable")

	// ErrToolNotFound indicates an external program (pdftotext, tesseract, aria2c) is missing.
	ErrToolNotFound = errors.New("external tool not found")

	// ErrContentRejected indicates a response body was not what the request expected
	// (an HTML page instead of a PDF, or a body over the size limit).
	ErrContentRejected = errors.New("content rejected")
)

// TransientNetworkError is a retryable fetch failure.
type TransientNetworkError struct {
	URL        string
	StatusCode int

	// RetryAfter is the server-requested delay, if any.
	RetryAfter time.Duration

	Err error
}

func (e *TransientNetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transient error fetching %s: HTTP %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("transient error fetching %s: %v", e.URL, e.Err)
}

func (e *TransientNetworkError) Unwrap() error { return e.Err }

// HTTPStatusError is a non-retryable HTTP response.
type HTTPStatusError struct {
	URL        string
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("fetching %s: HTTP %d", e.URL, e.StatusCode)
}

// StatusError classifies an HTTP status code into a transient or terminal error.
func StatusError(url string, code int) error {
	if code == http.StatusTooManyRequests || code >= 500 {
		return &TransientNetworkError{URL: url, StatusCode: code}
	}
	return &HTTPStatusError{URL: url, StatusCode: code}
}

// DownloadFailedError is the terminal state after all attempts failed.
type DownloadFailedError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *DownloadFailedError) Error() string {
	return fmt.Sprintf("download %s failed after %d attempt(s): %v", e.URL, e.Attempts, e.Err)
}

func (e *DownloadFailedError) Unwrap() error { return e.Err }

// OCRFailure reports that the OCR escalation path failed.
type OCRFailure struct {
	Page int
	Err  error
}

func (e *OCRFailure) Error() string {
	return fmt.Sprintf("ocr page %d: %v", e.Page, e.Err)
}

func (e *OCRFailure) Unwrap() error { return e.Err }

// ExtractionFailure is a document-scoped extraction error. It is recorded on
// the Extraction and never aborts the batch.
type ExtractionFailure struct {
	DocumentID int64
	Err        error
}

func (e *ExtractionFailure) Error() string {
	return fmt.Sprintf("extract document %d: %v", e.DocumentID, e.Err)
}

func (e *ExtractionFailure) Unwrap() error { return e.Err }

// IndexInconsistency is fatal to an index build job; the index must be
// rebuilt from the metadata store.
type IndexInconsistency struct {
	Index  string
	Detail string
}

func (e *IndexInconsistency) Error() string {
	return fmt.Sprintf("%s index inconsistent: %s (run a full rebuild)", e.Index, e.Detail)
}

// ProviderError is an upstream generation failure.
type ProviderError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s provider error (HTTP %d): %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s provider error: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// IsRetryable reports whether a fetch error should be retried.
// Per-attempt timeouts count as retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var transient *TransientNetworkError
	if errors.As(err, &transient) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
