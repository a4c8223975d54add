package html

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/custodia-labs/dossier/internal/core/domain"
	"github.com/custodia-labs/dossier/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.TextExtractor = (*Extractor)(nil)

// Extractor handles saved HTML pages.
type Extractor struct{}

// New creates a new HTML extractor.
func New() *Extractor {
	return &Extractor{}
}

// Extensions returns the handled file extensions.
func (e *Extractor) Extensions() []string {
	return []string{".html", ".htm"}
}

// Extract returns the readable text of the page as a single page.
func (e *Extractor) Extract(_ context.Context, path string) (*domain.ExtractedText, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}

	return &domain.ExtractedText{
		Pages:  []string{Text(doc.Selection)},
		Method: domain.MethodNative,
	}, nil
}

// Elements dropped entirely.
const hiddenElements = "head, script, style, noscript, svg, template, iframe"

// Elements that start a new line.
var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "hr": true, "li": true, "tr": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"blockquote": true, "pre": true, "table": true, "section": true, "article": true,
	"header": true, "footer": true, "ul": true, "ol": true, "dd": true, "dt": true,
}

var multiSpaces = regexp.MustCompile(`[ \t\r\f\v]+`)

// Text renders the readable text of sel, one block element per line.
func Text(sel *goquery.Selection) string {
	sel = sel.Clone()
	sel.Find(hiddenElements).Remove()

	var b strings.Builder
	walk(sel, &b)

	lines := strings.Split(b.String(), "\n")
	out := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(multiSpaces.ReplaceAllString(line, " "))
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

func walk(sel *goquery.Selection, b *strings.Builder) {
	sel.Contents().Each(func(_ int, node *goquery.Selection) {
		name := goquery.NodeName(node)
		switch name {
		case "#text":
			b.WriteString(strings.ReplaceAll(node.Text(), "\n", " "))
			return
		case "#comment":
			return
		}

		block := blockElements[name]
		if block {
			b.WriteString("\n")
		}
		walk(node, b)
		if block {
			b.WriteString("\n")
		}
	})
}
