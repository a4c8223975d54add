// Package pdf extracts text from PDF files with poppler-utils, falling back
// to tesseract OCR for pages without a usable text layer.
package pdf

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/custodia-labs/dossier/internal/core/domain"
	"github.com/custodia-labs/dossier/internal/core/ports/driven"
	"github.com/custodia-labs/dossier/internal/logger"
)

// External programs.
const (
	PDFInfo   = "pdfinfo"
	PDFToText = "pdftotext"
	PDFToPPM  = "pdftoppm"
	Tesseract = "tesseract"
)

// Defaults.
const (
	DefaultMinCharsPerPage = 50
	DefaultOCRDPI          = 300
	DefaultLanguage        = "eng"
	DefaultMaxOCRPages     = 50
	DefaultPageTimeout     = 60 * time.Second
)

var pagesLine = regexp.MustCompile(`(?m)^Pages:\s+(\d+)`)

// Ensure Extractor implements the interface.
var _ driven.TextExtractor = (*Extractor)(nil)

// Config tunes the extractor.
type Config struct {
	// MinCharsPerPage is the native text threshold below which a page is OCR'd.
	MinCharsPerPage int

	OCRDPI   int
	Language string

	// MaxOCRPages caps OCR work per document.
	MaxOCRPages int

	// PageTimeout bounds each external call.
	PageTimeout time.Duration
}

// Extractor extracts PDF text page by page.
type Extractor struct {
	runner driven.CommandRunner
	cfg    Config
}

// New creates a PDF extractor running tools through runner.
func New(runner driven.CommandRunner, cfg Config) *Extractor {
	if cfg.MinCharsPerPage <= 0 {
		cfg.MinCharsPerPage = DefaultMinCharsPerPage
	}
	if cfg.OCRDPI <= 0 {
		cfg.OCRDPI = DefaultOCRDPI
	}
	if cfg.Language == "" {
		cfg.Language = DefaultLanguage
	}
	if cfg.MaxOCRPages < 0 {
		cfg.MaxOCRPages = 0
	} else if cfg.MaxOCRPages == 0 {
		cfg.MaxOCRPages = DefaultMaxOCRPages
	}
	if cfg.PageTimeout <= 0 {
		cfg.PageTimeout = DefaultPageTimeout
	}
	return &Extractor{runner: runner, cfg: cfg}
}

// Extensions returns the handled file extensions.
func (e *Extractor) Extensions() []string {
	return []string{".pdf"}
}

// CheckAvailable reports whether the native text tools are installed.
func (e *Extractor) CheckAvailable() error {
	for _, tool := range []string{PDFInfo, PDFToText} {
		if err := e.runner.LookPath(tool); err != nil {
			return err
		}
	}
	return nil
}

// OCRAvailable reports whether the OCR tools are installed.
func (e *Extractor) OCRAvailable() error {
	for _, tool := range []string{PDFToPPM, Tesseract} {
		if err := e.runner.LookPath(tool); err != nil {
			return err
		}
	}
	return nil
}

// InstallInstructions returns platform-specific installation instructions.
func InstallInstructions() string {
	return `PDF extraction requires poppler-utils (pdfinfo, pdftotext, pdftoppm).
OCR additionally requires tesseract.

Install with:
  macOS:         brew install poppler tesseract
  Ubuntu/Debian: apt install poppler-utils tesseract-ocr
  Fedora:        dnf install poppler-utils tesseract`
}

// Extract reads every page's text layer. When the average characters per
// page is below MinCharsPerPage, pages under the threshold are OCR'd, up to
// MaxOCRPages.
func (e *Extractor) Extract(ctx context.Context, path string) (*domain.ExtractedText, error) {
	pageCount, err := e.pageCount(ctx, path)
	if err != nil {
		return nil, err
	}
	if pageCount == 0 {
		return nil, fmt.Errorf("%s has no pages", filepath.Base(path))
	}

	pages := make([]string, pageCount)
	nativeFailures := 0
	var nativeErr error
	for p := 1; p <= pageCount; p++ {
		text, err := e.pageText(ctx, path, p)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if errors.Is(err, domain.ErrToolNotFound) {
				return nil, err
			}
			nativeFailures++
			nativeErr = err
			logger.Debug("pdftotext %s page %d: %v", filepath.Base(path), p, err)
			continue
		}
		pages[p-1] = strings.TrimSpace(text)
	}

	result := &domain.ExtractedText{Pages: pages, Method: domain.MethodNative}

	if result.CharCount()/pageCount >= e.cfg.MinCharsPerPage {
		return e.finish(result, nativeFailures, nativeErr, nil)
	}

	sparse := e.sparsePages(pages)
	if len(sparse) == 0 {
		return e.finish(result, nativeFailures, nativeErr, nil)
	}

	if err := e.OCRAvailable(); err != nil {
		logger.Debug("OCR unavailable for %s: %v", filepath.Base(path), err)
		return e.finish(result, nativeFailures, nativeErr, &domain.OCRFailure{Page: sparse[0], Err: err})
	}

	tmpDir, err := os.MkdirTemp("", "dossier-ocr-*")
	if err != nil {
		return nil, fmt.Errorf("creating OCR workspace: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	var ocrErr error
	for i, p := range sparse {
		if i >= e.cfg.MaxOCRPages {
			logger.Warn("OCR capped at %d pages for %s", e.cfg.MaxOCRPages, filepath.Base(path))
			break
		}
		text, err := e.ocrPage(ctx, path, p, tmpDir)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			ocrErr = &domain.OCRFailure{Page: p, Err: err}
			logger.Debug("OCR %s page %d: %v", filepath.Base(path), p, err)
			continue
		}
		if utf8.RuneCountInString(text) > utf8.RuneCountInString(pages[p-1]) {
			pages[p-1] = text
			result.OCRPages++
		}
	}
	if result.OCRPages > 0 {
		result.Method = domain.MethodOCR
	}

	return e.finish(result, nativeFailures, nativeErr, ocrErr)
}

// finish rejects results without any text, reporting the most specific cause.
func (e *Extractor) finish(result *domain.ExtractedText, nativeFailures int, nativeErr, ocrErr error) (*domain.ExtractedText, error) {
	if result.CharCount() > 0 {
		return result, nil
	}
	switch {
	case ocrErr != nil:
		return nil, ocrErr
	case nativeFailures == len(result.Pages) && nativeErr != nil:
		return nil, fmt.Errorf("native extraction failed: %w", nativeErr)
	default:
		return nil, errors.New("no text extracted")
	}
}

// sparsePages returns the 1-based numbers of pages below the threshold.
func (e *Extractor) sparsePages(pages []string) []int {
	var out []int
	for i, p := range pages {
		if utf8.RuneCountInString(p) < e.cfg.MinCharsPerPage {
			out = append(out, i+1)
		}
	}
	return out
}

func (e *Extractor) pageCount(ctx context.Context, path string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.PageTimeout)
	defer cancel()

	out, err := e.runner.Run(ctx, PDFInfo, path)
	if err != nil {
		return 0, fmt.Errorf("pdfinfo: %w", err)
	}
	m := pagesLine.FindSubmatch(out)
	if m == nil {
		return 0, errors.New("pdfinfo: page count missing")
	}
	n, err := strconv.Atoi(string(m[1]))
	if err != nil {
		return 0, fmt.Errorf("pdfinfo: parse page count: %w", err)
	}
	return n, nil
}

func (e *Extractor) pageText(ctx context.Context, path string, page int) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.PageTimeout)
	defer cancel()

	p := strconv.Itoa(page)
	out, err := e.runner.Run(ctx, PDFToText, "-layout", "-f", p, "-l", p, path, "-")
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// ocrPage renders one page to PNG and runs tesseract on it.
func (e *Extractor) ocrPage(ctx context.Context, path string, page int, tmpDir string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.PageTimeout)
	defer cancel()

	prefix := filepath.Join(tmpDir, "page-"+strconv.Itoa(page))
	p := strconv.Itoa(page)
	if _, err := e.runner.Run(ctx, PDFToPPM,
		"-f", p, "-l", p, "-r", strconv.Itoa(e.cfg.OCRDPI), "-png", path, prefix); err != nil {
		return "", fmt.Errorf("pdftoppm: %w", err)
	}

	images, err := filepath.Glob(prefix + "*.png")
	if err != nil || len(images) == 0 {
		return "", errors.New("pdftoppm produced no image")
	}
	sort.Strings(images)
	defer func() {
		for _, img := range images {
			os.Remove(img)
		}
	}()

	out, err := e.runner.Run(ctx, Tesseract, images[0], "stdout", "-l", e.cfg.Language)
	if err != nil {
		return "", fmt.Errorf("tesseract: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}
