// Package plaintext extracts text from plain text and JSON files.
package plaintext

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/dossier/internal/core/domain"
	"github.com/custodia-labs/dossier/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.TextExtractor = (*Extractor)(nil)

// Extractor handles .txt and .json documents as a single page.
type Extractor struct{}

// New creates a new plain text extractor.
func New() *Extractor {
	return &Extractor{}
}

// Extensions returns the handled file extensions.
func (e *Extractor) Extensions() []string {
	return []string{".txt", ".json"}
}

// Extract reads the file. JSON is re-indented so nested profiles stay readable
// and searchable; invalid JSON is kept verbatim.
func (e *Extractor) Extract(_ context.Context, path string) (*domain.ExtractedText, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}

	if strings.EqualFold(filepath.Ext(path), ".json") {
		var out bytes.Buffer
		if err := json.Indent(&out, data, "", "  "); err == nil {
			data = out.Bytes()
		}
	}

	text := toValidUTF8(data)
	return &domain.ExtractedText{
		Pages:  []string{strings.TrimSpace(text)},
		Method: domain.MethodNative,
	}, nil
}

// toValidUTF8 replaces invalid byte sequences, which are common in OCR'd
// text dumps, with the replacement character.
func toValidUTF8(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	return strings.ToValidUTF8(string(data), "�")
}
