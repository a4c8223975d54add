package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/custodia-labs/dossier/internal/core/domain"
	"github.com/custodia-labs/dossier/internal/core/ports/driven"
	"github.com/custodia-labs/dossier/internal/core/ports/driving"
	"github.com/custodia-labs/dossier/internal/logger"
)

// Ensure Extraction implements the interface.
var _ driving.ExtractionService = (*Extraction)(nil)

// ExtractedTextDir is the directory under the data dir holding text output.
const ExtractedTextDir = "extracted_text"

// Extraction converts downloaded documents to page-marked text files.
type Extraction struct {
	dataDir    string
	workers    int
	store      driven.ExtractionStore
	extractors map[string]driven.TextExtractor
	watcher    driven.ChangeWatcher
	metrics    driven.Metrics
}

// NewExtraction creates the extraction service. Extractors are matched by
// file extension; the first one registered for an extension wins.
// watcher and metrics may be nil.
func NewExtraction(
	cfg domain.AppConfig,
	store driven.ExtractionStore,
	extractors []driven.TextExtractor,
	watcher driven.ChangeWatcher,
	metrics driven.Metrics,
) *Extraction {
	byExt := make(map[string]driven.TextExtractor)
	for _, e := range extractors {
		for _, ext := range e.Extensions() {
			if _, ok := byExt[ext]; !ok {
				byExt[ext] = e
			}
		}
	}

	workers := cfg.Extraction.Workers
	if workers <= 0 {
		workers = 1
	}
	return &Extraction{
		dataDir:    cfg.DataDir,
		workers:    workers,
		store:      store,
		extractors: byExt,
		watcher:    watcher,
		metrics:    metricsOrNop(metrics),
	}
}

// Extensions returns the file extensions that can be extracted.
func (s *Extraction) Extensions() []string {
	exts := make([]string, 0, len(s.extractors))
	for ext := range s.extractors {
		exts = append(exts, ext)
	}
	return exts
}

// outcome is the result of one document.
type outcome int

const (
	outcomeSucceeded outcome = iota
	outcomeFailed
	outcomeUnsupported
	outcomeCancelled
)

// RunPending extracts every downloaded document lacking a successful extraction.
func (s *Extraction) RunPending(ctx context.Context, opts driving.ExtractOptions) (*domain.ExtractionReport, error) {
	docs, err := s.store.ListExtractable(ctx, opts.Source, opts.Force)
	if err != nil {
		return nil, fmt.Errorf("listing extraction candidates: %w", err)
	}

	report := &domain.ExtractionReport{Candidates: len(docs)}
	if len(docs) == 0 {
		return report, nil
	}
	logger.Info("Extracting %d document(s) with %d worker(s)", len(docs), s.workers)

	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		jobs = make(chan domain.Document)
	)
	for range s.workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for doc := range jobs {
				res, changed, method := s.extract(ctx, &doc)

				mu.Lock()
				switch res {
				case outcomeSucceeded:
					report.Succeeded++
					if method == domain.MethodOCR {
						report.OCR++
					}
				case outcomeFailed:
					report.Failed++
				case outcomeUnsupported:
					report.Unsupported++
				}
				if !changed && (res == outcomeSucceeded || res == outcomeFailed) {
					report.Unchanged++
				}
				mu.Unlock()
			}
		}()
	}

feed:
	for _, doc := range docs {
		select {
		case jobs <- doc:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	logger.Info("Extraction: %d succeeded (%d OCR), %d failed, %d unchanged, %d unsupported",
		report.Succeeded, report.OCR, report.Failed, report.Unchanged, report.Unsupported)
	return report, ctx.Err()
}

// extract processes one document. Failures are recorded on the extraction
// row; only cancellation leaves the document untouched.
func (s *Extraction) extract(ctx context.Context, doc *domain.Document) (outcome, bool, domain.ExtractionMethod) {
	extractor, ok := s.extractors[doc.Extension()]
	if !ok {
		logger.Debug("No extractor for %s (%s)", doc.Filename, doc.Extension())
		return outcomeUnsupported, false, ""
	}

	start := time.Now()
	e := &domain.Extraction{DocumentID: doc.ID}

	text, err := s.textOf(ctx, extractor, doc)
	if ctx.Err() != nil {
		return outcomeCancelled, false, ""
	}
	if err == nil {
		e.Method = text.Method
		e.PageCount = len(text.Pages)
		e.OCRPages = text.OCRPages
		e.CharCount = text.CharCount()
		if e.CharCount == 0 {
			err = errors.New("no text extracted")
		}
	}
	if err == nil {
		err = s.writeText(doc, text, e)
	}

	if err != nil {
		failure := &domain.ExtractionFailure{DocumentID: doc.ID, Err: err}
		logger.Warn("%v", failure)
		e.Status = domain.ExtractionFailed
		e.Error = err.Error()
		e.OutputPath = ""
		e.TextSHA256 = ""
	} else {
		e.Status = domain.ExtractionSuccess
	}

	changed, saveErr := s.store.SaveExtraction(ctx, e)
	if saveErr != nil {
		logger.Error("Saving extraction of %d: %v", doc.ID, saveErr)
		return outcomeFailed, false, e.Method
	}
	s.metrics.ExtractionFinished(e.Method, e.Status, time.Since(start))

	if e.Status == domain.ExtractionFailed {
		return outcomeFailed, changed, e.Method
	}
	logger.Debug("Extracted %s: %d page(s), %d chars (%s)", doc.Filename, e.PageCount, e.CharCount, e.Method)
	return outcomeSucceeded, changed, e.Method
}

func (s *Extraction) textOf(ctx context.Context, extractor driven.TextExtractor, doc *domain.Document) (*domain.ExtractedText, error) {
	if doc.LocalPath == "" {
		return nil, fmt.Errorf("%w: document has no local file", domain.ErrNotFound)
	}
	return extractor.Extract(ctx, doc.LocalPath)
}

// writeText renders the pages and writes them atomically to the document's
// output path.
func (s *Extraction) writeText(doc *domain.Document, text *domain.ExtractedText, e *domain.Extraction) error {
	body := domain.JoinPages(text.Pages)
	sum := sha256.Sum256([]byte(body))

	dir := filepath.Join(s.dataDir, ExtractedTextDir, doc.Source)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	base := doc.StorageStem()
	outPath := filepath.Join(dir, base+".txt")

	tmp, err := os.CreateTemp(dir, "."+base+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(body); err != nil {
		tmp.Close()
		return fmt.Errorf("writing text: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing text: %w", err)
	}
	if err := os.Rename(tmp.Name(), outPath); err != nil {
		return fmt.Errorf("renaming text: %w", err)
	}

	e.OutputPath = outPath
	e.TextSHA256 = hex.EncodeToString(sum[:])
	return nil
}

// Watch runs pending extraction once, then again whenever the downloads
// tree changes. Blocks until ctx is cancelled.
func (s *Extraction) Watch(ctx context.Context, opts driving.ExtractOptions) error {
	if s.watcher == nil {
		return errors.New("no change watcher configured")
	}

	changes, err := s.watcher.Watch(ctx, s.dataDir, s.Extensions())
	if err != nil {
		return fmt.Errorf("watching %s: %w", s.dataDir, err)
	}

	run := func() {
		if _, err := s.RunPending(ctx, opts); err != nil && ctx.Err() == nil {
			logger.Error("Extraction run failed: %v", err)
		}
	}

	logger.Info("Watching %s for new downloads", s.dataDir)
	run()
	for range changes {
		run()
	}
	return nil
}
