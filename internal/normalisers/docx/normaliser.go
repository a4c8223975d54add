// Package docx extracts text from Word (OOXML) documents.
package docx

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/dossier/internal/core/domain"
	"github.com/custodia-labs/dossier/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.TextExtractor = (*Extractor)(nil)

// Extractor handles DOCX documents. Explicit page breaks split pages.
type Extractor struct{}

// New creates a new DOCX extractor.
func New() *Extractor {
	return &Extractor{}
}

// Extensions returns the handled file extensions.
func (e *Extractor) Extensions() []string {
	return []string{".docx"}
}

// Extract reads word/document.xml from the archive at path.
func (e *Extractor) Extract(_ context.Context, path string) (*domain.ExtractedText, error) {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s is not a DOCX archive: %v", domain.ErrInvalidInput, filepath.Base(path), err)
	}
	defer reader.Close()

	content, err := readDocumentXML(&reader.Reader)
	if err != nil {
		return nil, err
	}

	return &domain.ExtractedText{
		Pages:  parseDocumentXML(content),
		Method: domain.MethodNative,
	}, nil
}

// readDocumentXML returns the main document part.
func readDocumentXML(reader *zip.Reader) ([]byte, error) {
	for _, file := range reader.File {
		if file.Name != "word/document.xml" {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("open document part: %w", err)
		}
		defer rc.Close()

		content, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("read document part: %w", err)
		}
		return content, nil
	}
	return nil, fmt.Errorf("%w: word/document.xml missing", domain.ErrInvalidInput)
}

// documentXML represents the structure of word/document.xml.
type documentXML struct {
	Body struct {
		Paragraphs []paragraph `xml:"p"`
	} `xml:"body"`
}

type paragraph struct {
	Runs []run `xml:"r"`
}

type run struct {
	Breaks []lineBreak   `xml:"br"`
	Text   []textElement `xml:"t"`
}

type lineBreak struct {
	Type string `xml:"type,attr"`
}

type textElement struct {
	Content string `xml:",chardata"`
}

// parseDocumentXML returns the text of each page. Malformed XML yields one empty page.
func parseDocumentXML(content []byte) []string {
	var doc documentXML
	if err := xml.Unmarshal(content, &doc); err != nil {
		return []string{""}
	}

	var pages []string
	var page strings.Builder
	flush := func() {
		pages = append(pages, strings.TrimSpace(page.String()))
		page.Reset()
	}

	for _, para := range doc.Body.Paragraphs {
		for _, r := range para.Runs {
			for _, br := range r.Breaks {
				if br.Type == "page" {
					flush()
				}
			}
			for _, text := range r.Text {
				page.WriteString(text.Content)
			}
		}
		page.WriteString("\n")
	}
	flush()

	return pages
}
