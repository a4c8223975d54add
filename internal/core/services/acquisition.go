package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/custodia-labs/dossier/internal/core/domain"
	"github.com/custodia-labs/dossier/internal/core/ports/driven"
	"github.com/custodia-labs/dossier/internal/core/ports/driving"
	"github.com/custodia-labs/dossier/internal/logger"
)

// Ensure Acquisition implements the interface.
var _ driving.AcquisitionService = (*Acquisition)(nil)

// ThrottleFactory creates the pacing limiter of one source.
type ThrottleFactory func(interval time.Duration) driven.Throttle

// Acquisition runs source discovery and downloads documents with bounded
// concurrency, per-source pacing and retries.
type Acquisition struct {
	cfg       domain.AppConfig
	registry  driven.SourceRegistry
	docs      driven.DocumentStore
	states    driven.SourceStateStore
	fetcher   driven.Fetcher
	pages     driven.PageClient
	throttles ThrottleFactory
	metrics   driven.Metrics

	// slots is the worker pool shared by every running source.
	slots chan struct{}

	mu        sync.Mutex
	limiters  map[string]driven.Throttle
	runs      map[string]*domain.RunStatus
	sleepFunc func(ctx context.Context, d time.Duration) error
}

// NewAcquisition creates the acquisition service.
// metrics may be nil.
func NewAcquisition(
	cfg domain.AppConfig,
	registry driven.SourceRegistry,
	docs driven.DocumentStore,
	states driven.SourceStateStore,
	fetcher driven.Fetcher,
	pages driven.PageClient,
	throttles ThrottleFactory,
	metrics driven.Metrics,
) *Acquisition {
	workers := cfg.Download.Workers
	if workers <= 0 {
		workers = 1
	}
	return &Acquisition{
		cfg:       cfg,
		registry:  registry,
		docs:      docs,
		states:    states,
		fetcher:   fetcher,
		pages:     pages,
		throttles: throttles,
		metrics:   metricsOrNop(metrics),
		slots:     make(chan struct{}, workers),
		limiters:  make(map[string]driven.Throttle),
		runs:      make(map[string]*domain.RunStatus),
		sleepFunc: sleep,
	}
}

// Sources lists every adapter with its effective enabled state.
func (a *Acquisition) Sources(ctx context.Context) []domain.SourceInfo {
	adapters := a.registry.List()
	infos := make([]domain.SourceInfo, 0, len(adapters))
	for _, adapter := range adapters {
		info := adapter.Info()
		info.Name = adapter.Name()
		info.RateLimit = a.cfg.SourceConfigFor(adapter.Name()).RateLimit
		if err := a.usable(ctx, adapter); err != nil {
			info.Enabled = false
			info.DisabledReason = err.Error()
		} else {
			info.Enabled = true
		}
		infos = append(infos, info)
	}
	return infos
}

// usable reports why a source cannot run, or nil.
func (a *Acquisition) usable(ctx context.Context, adapter driven.SourceAdapter) error {
	if !a.cfg.SourceConfigFor(adapter.Name()).Enabled {
		return fmt.Errorf("%w: disabled in config", domain.ErrSourceDisabled)
	}
	return adapter.Available(ctx)
}

// Status returns the live status of a source's most recent run.
func (a *Acquisition) Status(source string) (domain.RunStatus, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	st, ok := a.runs[source]
	if !ok {
		return domain.RunStatus{}, false
	}
	return *st, true
}

// RunAll runs the named sources concurrently.
func (a *Acquisition) RunAll(ctx context.Context, names []string, opts driving.AcquireOptions) ([]domain.RunReport, error) {
	if len(names) == 0 {
		for _, info := range a.Sources(ctx) {
			if info.Enabled {
				names = append(names, info.Name)
			} else {
				logger.Info("[%s] skipped: %s", info.Name, info.DisabledReason)
			}
		}
	}

	reports := make([]domain.RunReport, len(names))
	errs := make([]error, len(names))

	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func() {
			defer wg.Done()
			report, err := a.Run(ctx, name, opts)
			if report != nil {
				reports[i] = *report
			} else {
				reports[i] = domain.RunReport{Source: name}
			}
			if err != nil {
				reports[i].Error = err.Error()
				errs[i] = fmt.Errorf("%s: %w", name, err)
			}
		}()
	}
	wg.Wait()

	return reports, errors.Join(errs...)
}

// Run discovers and downloads documents for one source.
func (a *Acquisition) Run(ctx context.Context, source string, opts driving.AcquireOptions) (*domain.RunReport, error) {
	adapter, err := a.registry.Get(source)
	if err != nil {
		return nil, err
	}
	if err := a.usable(ctx, adapter); err != nil {
		return nil, err
	}
	if err := a.begin(source); err != nil {
		return nil, err
	}
	defer a.end(source)

	start := time.Now()
	logger.Section(fmt.Sprintf("Acquiring %s", source))

	throttle := a.throttle(source)
	r := &run{source: source, acq: a}

	discoverCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	descs, errs := adapter.Discover(discoverCtx, driven.DiscoveryEnv{
		Pages: &throttledPages{pages: a.pages, throttle: throttle},
		State: a.states,
	})

	var (
		wg       sync.WaitGroup
		fatalErr error
	)
	for desc := range descs {
		r.update(func(rep *domain.RunReport) { rep.Discovered++ })

		if desc.Source == "" {
			desc.Source = source
		}
		doc, _, err := a.docs.FindOrCreate(ctx, desc)
		if err != nil {
			fatalErr = fmt.Errorf("recording %s: %w", desc.URL, err)
			cancel()
			break
		}
		doc.Headers = desc.Headers

		if !needsDownload(doc, opts) {
			r.update(func(rep *domain.RunReport) { rep.Known++ })
			continue
		}

		if err := throttle.Wait(ctx); err != nil {
			fatalErr = err
			cancel()
			break
		}
		select {
		case a.slots <- struct{}{}:
		case <-ctx.Done():
			fatalErr = ctx.Err()
			cancel()
		}
		if fatalErr != nil {
			break
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-a.slots }()
			r.download(ctx, doc, throttle)
		}()
	}
	// Drain so the adapter goroutine can exit after a cancel.
	for range descs {
	}
	wg.Wait()

	if discErr := <-errs; discErr != nil && fatalErr == nil {
		fatalErr = discErr
	}
	if fatalErr == nil {
		fatalErr = ctx.Err()
	}

	report := r.snapshot()
	report.Duration = time.Since(start)
	if fatalErr != nil {
		report.Error = fatalErr.Error()
	}
	a.publish(source, report)

	logger.Info("[%s] discovered=%d downloaded=%d skipped=%d failed=%d known=%d (%s)",
		source, report.Discovered, report.Downloaded, report.Skipped, report.Failed, report.Known,
		report.Duration.Round(time.Millisecond))
	return &report, fatalErr
}

// needsDownload reports whether a discovered document should be fetched.
func needsDownload(doc *domain.Document, opts driving.AcquireOptions) bool {
	switch doc.DownloadStatus {
	case domain.StatusDownloaded, domain.StatusSkipped:
		return false
	case domain.StatusFailed:
		return opts.RetryFailed
	default:
		// pending, or downloading left over from an interrupted run
		return true
	}
}

func (a *Acquisition) begin(source string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if st, ok := a.runs[source]; ok && st.Running {
		return fmt.Errorf("%w: %s", domain.ErrRunInProgress, source)
	}
	a.runs[source] = &domain.RunStatus{
		Source:    source,
		Running:   true,
		StartedAt: time.Now(),
		Report:    domain.RunReport{Source: source},
	}
	return nil
}

func (a *Acquisition) end(source string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if st, ok := a.runs[source]; ok {
		st.Running = false
	}
}

func (a *Acquisition) publish(source string, report domain.RunReport) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if st, ok := a.runs[source]; ok {
		st.Report = report
	}
}

func (a *Acquisition) throttle(source string) driven.Throttle {
	a.mu.Lock()
	defer a.mu.Unlock()

	t, ok := a.limiters[source]
	if !ok {
		t = a.throttles(a.cfg.SourceConfigFor(source).RateLimit)
		a.limiters[source] = t
	}
	return t
}

// backoff returns the delay before retry number attempt (1-based).
func (a *Acquisition) backoff(attempt int) time.Duration {
	factor := a.cfg.Download.BackoffFactor
	if factor < 1 {
		factor = 1
	}
	return time.Duration(float64(a.cfg.Download.BackoffBase) * math.Pow(factor, float64(attempt-1)))
}

// run holds the report of one source run.
type run struct {
	source string
	acq    *Acquisition

	mu     sync.Mutex
	report domain.RunReport
}

func (r *run) update(fn func(*domain.RunReport)) {
	r.mu.Lock()
	fn(&r.report)
	r.report.Source = r.source
	snapshot := r.report
	r.mu.Unlock()

	r.acq.publish(r.source, snapshot)
}

func (r *run) snapshot() domain.RunReport {
	r.mu.Lock()
	defer r.mu.Unlock()
	rep := r.report
	rep.Source = r.source
	return rep
}

// download fetches one document with retries and records the outcome.
func (r *run) download(ctx context.Context, doc *domain.Document, throttle driven.Throttle) {
	a := r.acq
	maxAttempts := a.cfg.Download.MaxRetries
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	req := driven.FetchRequest{
		URL:          doc.URL,
		DestDir:      filepath.Join(a.cfg.DataDir, doc.Source),
		Filename:     doc.StorageStem() + filepath.Ext(doc.Filename),
		Headers:      doc.Headers,
		ExpectBinary: expectsBinary(doc),
		MaxSize:      a.cfg.Download.MaxFileSize,
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		doc.Attempts++
		doc.DownloadStatus = domain.StatusDownloading
		doc.Error = ""
		if err := a.docs.UpdateDownload(ctx, doc); err != nil {
			logger.Warn("[%s] marking %d downloading: %v", r.source, doc.ID, err)
		}

		res, err := a.fetchOnce(ctx, req)
		if err == nil {
			r.finish(ctx, doc, res)
			return
		}
		lastErr = err

		if ctx.Err() != nil {
			r.interrupted(ctx, doc)
			return
		}
		if !domain.IsRetryable(err) || attempt == maxAttempts {
			break
		}

		delay := a.backoff(attempt)
		var transient *domain.TransientNetworkError
		if errors.As(err, &transient) && transient.RetryAfter > 0 {
			throttle.Backoff(transient.RetryAfter)
			if transient.RetryAfter > delay {
				delay = transient.RetryAfter
			}
		}
		a.metrics.DownloadRetried(r.source)
		logger.Debug("[%s] attempt %d for %s failed, retrying in %s: %v", r.source, attempt, doc.URL, delay, err)

		if err := a.sleepFunc(ctx, delay); err != nil {
			r.interrupted(ctx, doc)
			return
		}
	}

	failure := &domain.DownloadFailedError{URL: doc.URL, Attempts: doc.Attempts, Err: lastErr}
	doc.DownloadStatus = domain.StatusFailed
	doc.Error = failure.Error()
	if err := a.docs.UpdateDownload(ctx, doc); err != nil {
		logger.Warn("[%s] recording failure of %d: %v", r.source, doc.ID, err)
	}
	logger.Warn("[%s] %v", r.source, failure)
	a.metrics.DownloadFinished(r.source, domain.StatusFailed, 0)
	r.update(func(rep *domain.RunReport) { rep.Failed++ })
}

func (a *Acquisition) fetchOnce(ctx context.Context, req driven.FetchRequest) (*driven.FetchResult, error) {
	if a.cfg.Download.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.Download.Timeout)
		defer cancel()
	}
	return a.fetcher.Download(ctx, req)
}

// finish records a completed fetch, skipping content already held by
// another document.
func (r *run) finish(ctx context.Context, doc *domain.Document, res *driven.FetchResult) {
	a := r.acq

	dup, err := a.docs.FindBySHA256(ctx, res.SHA256, doc.ID)
	if err != nil {
		logger.Warn("[%s] checking duplicates of %d: %v", r.source, doc.ID, err)
	}

	doc.SHA256 = res.SHA256
	doc.FileSize = res.Size
	if dup != nil {
		if res.Path != dup.LocalPath {
			if err := os.Remove(res.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
				logger.Warn("[%s] removing duplicate %s: %v", r.source, res.Path, err)
			}
		}
		doc.DownloadStatus = domain.StatusSkipped
		doc.LocalPath = ""
		doc.Error = fmt.Sprintf("duplicate of %d", dup.ID)
	} else {
		doc.DownloadStatus = domain.StatusDownloaded
		doc.LocalPath = res.Path
		doc.Error = ""
	}

	if err := a.docs.UpdateDownload(ctx, doc); err != nil {
		logger.Warn("[%s] recording download of %d: %v", r.source, doc.ID, err)
		r.update(func(rep *domain.RunReport) { rep.Failed++ })
		return
	}

	if doc.DownloadStatus == domain.StatusSkipped {
		logger.Debug("[%s] %s duplicates document %d", r.source, doc.Filename, dup.ID)
		a.metrics.DownloadFinished(r.source, domain.StatusSkipped, 0)
		r.update(func(rep *domain.RunReport) { rep.Skipped++ })
		return
	}
	logger.Debug("[%s] downloaded %s (%d bytes)", r.source, doc.Filename, res.Size)
	a.metrics.DownloadFinished(r.source, domain.StatusDownloaded, res.Size)
	r.update(func(rep *domain.RunReport) { rep.Downloaded++ })
}

// interrupted returns a document to pending so the next run picks it up.
func (r *run) interrupted(ctx context.Context, doc *domain.Document) {
	doc.DownloadStatus = domain.StatusPending
	if err := r.acq.docs.UpdateDownload(context.WithoutCancel(ctx), doc); err != nil {
		logger.Warn("[%s] resetting %d: %v", r.source, doc.ID, err)
	}
}

func expectsBinary(doc *domain.Document) bool {
	switch doc.Extension() {
	case ".pdf", ".zip":
		return true
	}
	return false
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// throttledPages paces discovery requests through the source's throttle.
type throttledPages struct {
	pages    driven.PageClient
	throttle driven.Throttle
}

func (p *throttledPages) GetText(ctx context.Context, url string, headers map[string]string) (string, error) {
	if err := p.throttle.Wait(ctx); err != nil {
		return "", err
	}
	body, err := p.pages.GetText(ctx, url, headers)
	p.noteRetryAfter(err)
	return body, err
}

func (p *throttledPages) GetJSON(ctx context.Context, url string, headers map[string]string, out any) error {
	if err := p.throttle.Wait(ctx); err != nil {
		return err
	}
	err := p.pages.GetJSON(ctx, url, headers, out)
	p.noteRetryAfter(err)
	return err
}

func (p *throttledPages) noteRetryAfter(err error) {
	var transient *domain.TransientNetworkError
	if errors.As(err, &transient) && transient.RetryAfter > 0 {
		p.throttle.Backoff(transient.RetryAfter)
	}
}
