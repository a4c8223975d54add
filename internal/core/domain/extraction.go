package domain

import (
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// ExtractionMethod records how text was obtained.
type ExtractionMethod string

const (
	// MethodNative means the text layer of the file was used as-is.
	MethodNative ExtractionMethod = "native"

	// MethodOCR means optical character recognition was needed for sparse pages.
	MethodOCR ExtractionMethod = "ocr"
)

// ExtractionStatus is the state of an Extraction.
type ExtractionStatus string

const (
	ExtractionPending ExtractionStatus = "pending"
	ExtractionSuccess ExtractionStatus = "success"
	ExtractionFailed  ExtractionStatus = "failed"
)

// Extraction is the text extracted from exactly one Document.
//
// A successful Extraction implies text exists at OutputPath and CharCount > 0.
type Extraction struct {
	DocumentID int64            `json:"document_id"`
	OutputPath string           `json:"output_path,omitempty"`
	Method     ExtractionMethod `json:"method,omitempty"`
	PageCount  int              `json:"page_count"`
	CharCount  int              `json:"char_count"`
	OCRPages   int              `json:"ocr_pages"`
	Status     ExtractionStatus `json:"status"`
	Error      string           `json:"error,omitempty"`

	// TextSHA256 is the digest of the extracted text.
	TextSHA256 string `json:"text_sha256,omitempty"`

	// Seq is a store-wide revision number. It only advances when the
	// content-bearing fields change, so indices use it as a high-water mark.
	Seq int64 `json:"seq"`

	UpdatedAt time.Time `json:"updated_at"`
}

// SameContent reports whether two extractions carry identical content-bearing fields.
func (e *Extraction) SameContent(other *Extraction) bool {
	if other == nil {
		return false
	}
	return e.OutputPath == other.OutputPath &&
		e.Method == other.Method &&
		e.PageCount == other.PageCount &&
		e.CharCount == other.CharCount &&
		e.OCRPages == other.OCRPages &&
		e.Status == other.Status &&
		e.Error == other.Error &&
		e.TextSHA256 == other.TextSHA256
}

// ExtractedText is the output of a text extractor for one file.
type ExtractedText struct {
	// Pages holds the text of each page, in order.
	Pages []string

	// OCRPages counts pages whose text came from OCR.
	OCRPages int

	// Method is the method that produced the text.
	Method ExtractionMethod
}

// PageMarker returns the page-boundary marker that precedes page n (1-based).
func PageMarker(n int) string {
	return "--- Page " + strconv.Itoa(n) + " ---"
}

// JoinPages renders page texts as one stream with explicit page-boundary markers.
func JoinPages(pages []string) string {
	var b strings.Builder
	for i, p := range pages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(PageMarker(i + 1))
		b.WriteString("\n")
		b.WriteString(p)
	}
	return b.String()
}

// CharCount returns the number of characters across all pages, ignoring surrounding whitespace.
func (t *ExtractedText) CharCount() int {
	n := 0
	for _, p := range t.Pages {
		n += utf8.RuneCountInString(strings.TrimSpace(p))
	}
	return n
}
