package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/dossier/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/dossier/internal/core/domain"
	"github.com/custodia-labs/dossier/internal/core/ports/driven"
)

// --- Shared test doubles for the pipeline services ---

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.NewStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// fakeAdapter emits a fixed list of descriptors.
type fakeAdapter struct {
	name     string
	descs    []domain.SourceDescriptor
	availErr error
	discErr  error
	// block, when set, holds discovery open until closed.
	block chan struct{}
}

func (a *fakeAdapter) Name() string { return a.name }
func (a *fakeAdapter) Info() domain.SourceInfo {
	return domain.SourceInfo{Name: a.name, Description: "test source " + a.name, Enabled: true}
}
func (a *fakeAdapter) Available(context.Context) error { return a.availErr }

func (a *fakeAdapter) Discover(ctx context.Context, _ driven.DiscoveryEnv) (<-chan domain.SourceDescriptor, <-chan error) {
	out := make(chan domain.SourceDescriptor)
	errs := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errs)
		if a.block != nil {
			select {
			case <-a.block:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
		for _, d := range a.descs {
			select {
			case out <- d:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
		if a.discErr != nil {
			errs <- a.discErr
		}
	}()
	return out, errs
}

// fakeRegistry resolves adapters by name in insertion order.
type fakeRegistry struct {
	adapters []driven.SourceAdapter
}

func (r *fakeRegistry) Get(name string) (driven.SourceAdapter, error) {
	for _, a := range r.adapters {
		if a.Name() == name {
			return a, nil
		}
	}
	return nil, domain.ErrUnknownSource
}

func (r *fakeRegistry) List() []driven.SourceAdapter { return r.adapters }

// fakeFetcher writes scripted bodies to disk. Each URL may fail a number of
// times before it succeeds.
type fakeFetcher struct {
	mu       sync.Mutex
	bodies   map[string]string
	failures map[string][]error
	calls    map[string]int
	requests []driven.FetchRequest
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		bodies:   make(map[string]string),
		failures: make(map[string][]error),
		calls:    make(map[string]int),
	}
}

func (f *fakeFetcher) Download(ctx context.Context, req driven.FetchRequest) (*driven.FetchResult, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.calls[req.URL]++
	call := f.calls[req.URL]
	failures := f.failures[req.URL]
	body, ok := f.bodies[req.URL]
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if call <= len(failures) {
		return nil, failures[call-1]
	}
	if !ok {
		return nil, &domain.HTTPStatusError{URL: req.URL, StatusCode: 404}
	}

	if err := os.MkdirAll(req.DestDir, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(req.DestDir, req.Filename)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		return nil, err
	}
	sum := sha256.Sum256([]byte(body))
	return &driven.FetchResult{
		Path:   path,
		SHA256: hex.EncodeToString(sum[:]),
		Size:   int64(len(body)),
	}, nil
}

func (f *fakeFetcher) callsFor(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

func (f *fakeFetcher) requestFor(url string) (driven.FetchRequest, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.requests {
		if r.URL == url {
			return r, true
		}
	}
	return driven.FetchRequest{}, false
}

// nopThrottle never waits.
type nopThrottle struct {
	mu       sync.Mutex
	backoffs []time.Duration
}

func (t *nopThrottle) Wait(ctx context.Context) error { return ctx.Err() }
func (t *nopThrottle) Backoff(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.backoffs = append(t.backoffs, d)
}

// noPages fails every discovery request; the fake adapters never call it.
type noPages struct{}

func (noPages) GetText(context.Context, string, map[string]string) (string, error) {
	return "", domain.ErrNotFound
}
func (noPages) GetJSON(context.Context, string, map[string]string, any) error { return domain.ErrNotFound }

// recordingMetrics counts calls.
type recordingMetrics struct {
	mu          sync.Mutex
	downloads   map[domain.DownloadStatus]int
	retries     int
	extractions map[domain.ExtractionStatus]int
	chunks      int
	chat        []domain.ChatState
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		downloads:   make(map[domain.DownloadStatus]int),
		extractions: make(map[domain.ExtractionStatus]int),
	}
}

func (m *recordingMetrics) DownloadFinished(_ string, status domain.DownloadStatus, _ int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.downloads[status]++
}

func (m *recordingMetrics) DownloadRetried(string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retries++
}

func (m *recordingMetrics) ExtractionFinished(_ domain.ExtractionMethod, status domain.ExtractionStatus, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.extractions[status]++
}

func (m *recordingMetrics) ChunksEmbedded(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks += n
}

func (m *recordingMetrics) ChatTransition(_ string, state domain.ChatState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chat = append(m.chat, state)
}

func (m *recordingMetrics) chatStates() []domain.ChatState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.ChatState(nil), m.chat...)
}

func pdfDescriptor(source, id string) domain.SourceDescriptor {
	return domain.SourceDescriptor{
		URL:               "https://example.org/" + source + "/" + id + ".pdf",
		Source:            source,
		SourceID:          id,
		SuggestedFilename: id + ".pdf",
		Title:             "Document " + id,
	}
}

// keywordEmbedder maps text onto three axes by keyword, so similarity is
// predictable in tests.
type keywordEmbedder struct {
	mu    sync.Mutex
	err   error
	calls int

	// failAfter, when positive, fails every call after that many.
	failAfter int
}

func keywordVector(text string) []float32 {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "flight"):
		return []float32{1, 0.1, 0}
	case strings.Contains(lower, "bank"):
		return []float32{0.1, 1, 0}
	default:
		return []float32{0, 0.1, 1}
	}
}

func (e *keywordEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vs[0], nil
}

func (e *keywordEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	if e.failAfter > 0 && e.calls > e.failAfter {
		return nil, errors.New("embedding backend went away")
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = keywordVector(t)
	}
	return out, nil
}

func (e *keywordEmbedder) Dimensions() int              { return 3 }
func (e *keywordEmbedder) ModelName() string            { return "keywords" }
func (e *keywordEmbedder) Ping(context.Context) error   { return nil }
func (e *keywordEmbedder) Close() error                 { return nil }

// extracted creates a downloaded document with a successful extraction of text.
func extracted(t *testing.T, store *sqlite.Store, dataDir, source, filename, text string) (*domain.Document, *domain.Extraction) {
	t.Helper()
	doc := downloaded(t, store, dataDir, source, filename)

	out := filepath.Join(dataDir, "extracted_text", source, filename+".txt")
	require.NoError(t, os.MkdirAll(filepath.Dir(out), 0o755))
	require.NoError(t, os.WriteFile(out, []byte(text), 0o644))

	e := &domain.Extraction{
		DocumentID: doc.ID,
		OutputPath: out,
		Method:     domain.MethodNative,
		PageCount:  1,
		CharCount:  len(text),
		Status:     domain.ExtractionSuccess,
		TextSHA256: "sha-" + text,
	}
	_, err := store.ExtractionStore().SaveExtraction(context.Background(), e)
	require.NoError(t, err)
	return doc, e
}
