package domain

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestErrors_Existence tests that all error variables exist and are not nil
func TestErrors_Existence(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"ErrNotFound", ErrNotFound},
		{"ErrInvalidInput", ErrInvalidInput},
		{"ErrUnsupportedType", ErrUnsupportedType},
		{"ErrUnknownSource", ErrUnknownSource},
		{"ErrSourceDisabled", ErrSourceDisabled},
		{"ErrRunInProgress", ErrRunInProgress},
		{"ErrRateLimited", ErrRateLimited},
		{"ErrEmbeddingUnavailable", ErrEmbeddingUnavailable},
		{"ErrVectorIndexUnavailable", ErrVectorIndexUnavailable},
		{"ErrProviderUnavailable", ErrProviderUnavailable},
		{"ErrToolNotFound", ErrToolNotFound},
		{"ErrContentRejected", ErrContentRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotNil(t, tt.err)
			assert.NotEmpty(t, tt.err.Error())
		})
	}
}

func TestStatusError(t *testing.T) {
	tests := []struct {
		code      int
		retryable bool
	}{
		{http.StatusInternalServerError, true},
		{http.StatusBadGateway, true},
		{http.StatusServiceUnavailable, true},
		{http.StatusTooManyRequests, true},
		{http.StatusNotFound, false},
		{http.StatusForbidden, false},
		{http.StatusBadRequest, false},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.code), func(t *testing.T) {
			err := StatusError("https://example.com/a.pdf", tt.code)
			assert.Equal(t, tt.retryable, IsRetryable(err))
			assert.Contains(t, err.Error(), fmt.Sprintf("HTTP %d", tt.code))
		})
	}
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(errors.New("boom")))
	assert.False(t, IsRetryable(ErrContentRejected))
	assert.True(t, IsRetryable(&TransientNetworkError{URL: "u", Err: errors.New("reset")}))
	assert.True(t, IsRetryable(fmt.Errorf("attempt 2: %w", context.DeadlineExceeded)))
	assert.False(t, IsRetryable(context.Canceled))
}

func TestDownloadFailedError_Unwrap(t *testing.T) {
	inner := &TransientNetworkError{URL: "u", StatusCode: 503}
	err := &DownloadFailedError{URL: "u", Attempts: 3, Err: inner}

	assert.Contains(t, err.Error(), "after 3 attempt(s)")
	var transient *TransientNetworkError
	assert.True(t, errors.As(err, &transient))
	assert.Equal(t, 503, transient.StatusCode)
}

func TestExtractionFailure_WrapsOCRFailure(t *testing.T) {
	err := &ExtractionFailure{DocumentID: 7, Err: &OCRFailure{Page: 2, Err: ErrToolNotFound}}

	assert.Contains(t, err.Error(), "extract document 7")
	assert.ErrorIs(t, err, ErrToolNotFound)
	var ocr *OCRFailure
	assert.True(t, errors.As(err, &ocr))
	assert.Equal(t, 2, ocr.Page)
}

func TestIndexInconsistency_Message(t *testing.T) {
	err := &IndexInconsistency{Index: "lexical", Detail: "3 rows, expected 4"}
	assert.Contains(t, err.Error(), "lexical index inconsistent")
	assert.Contains(t, err.Error(), "rebuild")
}

func TestProviderError(t *testing.T) {
	err := &ProviderError{Provider: "openai", StatusCode: 500, Err: errors.New("overloaded")}
	assert.Contains(t, err.Error(), "openai provider error (HTTP 500)")

	err = &ProviderError{Provider: "ollama", Err: context.Canceled}
	assert.ErrorIs(t, err, context.Canceled)
}
