package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/dossier/internal/core/domain"
	"github.com/custodia-labs/dossier/internal/core/ports/driven"
)

func sha(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/doc.pdf", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "dossier-test", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.4 body"))
	})
	mux.HandleFunc("/gate.pdf", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html>Are you 18?</html>"))
	})
	mux.HandleFunc("/big.pdf", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte(strings.Repeat("x", 2048)))
	})
	mux.HandleFunc("/auth.json", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Token secret" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"count": 2, "next": null}`))
	})
	mux.HandleFunc("/busy", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("User-agent: *\nDisallow: /private/\n"))
	})
	mux.HandleFunc("/listing", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<a href="a.pdf">A</a>`))
	})
	mux.HandleFunc("/private/listing", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("secret"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPFetcher_Download(t *testing.T) {
	srv := newTestServer(t)
	f := NewHTTPFetcher(Options{UserAgent: "dossier-test"})
	ctx := context.Background()

	t.Run("writes file and digest", func(t *testing.T) {
		dir := t.TempDir()
		res, err := f.Download(ctx, driven.FetchRequest{
			URL: srv.URL + "/doc.pdf", DestDir: filepath.Join(dir, "doj"), Filename: "doc.pdf", ExpectBinary: true,
		})
		require.NoError(t, err)

		assert.Equal(t, filepath.Join(dir, "doj", "doc.pdf"), res.Path)
		assert.Equal(t, int64(len("%PDF-1.4 body")), res.Size)
		assert.Equal(t, sha("%PDF-1.4 body"), res.SHA256)
		assert.Equal(t, "application/pdf", res.ContentType)

		entries, err := os.ReadDir(filepath.Join(dir, "doj"))
		require.NoError(t, err)
		assert.Len(t, entries, 1, "no temp files left behind")
	})

	tests := []struct {
		name    string
		req     driven.FetchRequest
		wantErr error
	}{
		{
			name:    "html instead of binary",
			req:     driven.FetchRequest{URL: srv.URL + "/gate.pdf", Filename: "gate.pdf", ExpectBinary: true},
			wantErr: domain.ErrContentRejected,
		},
		{
			name:    "body over the size limit",
			req:     driven.FetchRequest{URL: srv.URL + "/big.pdf", Filename: "big.pdf", MaxSize: 1024},
			wantErr: domain.ErrContentRejected,
		},
		{
			name:    "missing destination",
			req:     driven.FetchRequest{URL: srv.URL + "/doc.pdf"},
			wantErr: domain.ErrInvalidInput,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			if tt.req.Filename != "" {
				tt.req.DestDir = dir
			}
			_, err := f.Download(ctx, tt.req)
			assert.ErrorIs(t, err, tt.wantErr)

			entries, _ := os.ReadDir(dir)
			assert.Empty(t, entries, "rejected downloads leave nothing on disk")
		})
	}

	t.Run("html accepted when not expecting binary", func(t *testing.T) {
		res, err := f.Download(ctx, driven.FetchRequest{
			URL: srv.URL + "/gate.pdf", DestDir: t.TempDir(), Filename: "page.html",
		})
		require.NoError(t, err)
		assert.NotZero(t, res.Size)
	})
}

func TestHTTPFetcher_StatusClassification(t *testing.T) {
	srv := newTestServer(t)
	f := NewHTTPFetcher(Options{})
	ctx := context.Background()

	_, err := f.GetText(ctx, srv.URL+"/busy", nil)
	var transient *domain.TransientNetworkError
	require.ErrorAs(t, err, &transient)
	assert.Equal(t, http.StatusTooManyRequests, transient.StatusCode)
	assert.Equal(t, 7*time.Second, transient.RetryAfter)
	assert.True(t, domain.IsRetryable(err))

	_, err = f.GetText(ctx, srv.URL+"/broken", nil)
	assert.True(t, domain.IsRetryable(err))

	_, err = f.GetText(ctx, srv.URL+"/missing", nil)
	var status *domain.HTTPStatusError
	require.ErrorAs(t, err, &status)
	assert.Equal(t, http.StatusNotFound, status.StatusCode)
	assert.False(t, domain.IsRetryable(err))

	_, err = f.GetText(ctx, "http://127.0.0.1:1/unreachable", nil)
	assert.True(t, domain.IsRetryable(err))
}

func TestHTTPFetcher_GetJSON(t *testing.T) {
	srv := newTestServer(t)
	f := NewHTTPFetcher(Options{})

	var out struct {
		Count int     `json:"count"`
		Next  *string `json:"next"`
	}
	err := f.GetJSON(context.Background(), srv.URL+"/auth.json", map[string]string{"Authorization": "Token secret"}, &out)
	require.NoError(t, err)
	assert.Equal(t, 2, out.Count)
	assert.Nil(t, out.Next)

	err = f.GetJSON(context.Background(), srv.URL+"/auth.json", nil, &out)
	var status *domain.HTTPStatusError
	assert.ErrorAs(t, err, &status)
}

func TestHTTPFetcher_Robots(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	polite := NewHTTPFetcher(Options{UserAgent: "dossier-test", RespectRobots: true})
	body, err := polite.GetText(ctx, srv.URL+"/listing", nil)
	require.NoError(t, err)
	assert.Contains(t, body, "a.pdf")

	_, err = polite.GetText(ctx, srv.URL+"/private/listing", nil)
	assert.ErrorIs(t, err, ErrDisallowed)

	rude := NewHTTPFetcher(Options{})
	body, err = rude.GetText(ctx, srv.URL+"/private/listing", nil)
	require.NoError(t, err)
	assert.Equal(t, "secret", body)
}

func TestHTTPFetcher_AgeGateCookie(t *testing.T) {
	f := NewHTTPFetcher(Options{})
	u, err := url.Parse("https://www.justice.gov/epstein/doj-disclosures/data-set-1-files")
	require.NoError(t, err)

	cookies := f.client.Jar.Cookies(u)
	require.Len(t, cookies, 1)
	assert.Equal(t, "justiceGovAgeVerified", cookies[0].Name)
	assert.Equal(t, "true", cookies[0].Value)
}

func TestRetryAfter(t *testing.T) {
	assert.Equal(t, time.Duration(0), retryAfter(""))
	assert.Equal(t, 30*time.Second, retryAfter("30"))
	assert.Equal(t, time.Duration(0), retryAfter("soon"))
	future := time.Now().Add(time.Minute).UTC().Format(http.TimeFormat)
	assert.InDelta(t, float64(time.Minute), float64(retryAfter(future)), float64(2*time.Second))
}

// fakeRunner simulates external commands.
type fakeRunner struct {
	missing bool
	run     func(args []string) error
	calls   [][]string
}

func (r *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	r.calls = append(r.calls, append([]string{name}, args...))
	if r.run != nil {
		return nil, r.run(args)
	}
	return nil, nil
}

func (r *fakeRunner) LookPath(name string) error {
	if r.missing {
		return domain.ErrToolNotFound
	}
	return nil
}

func stagingDir(args []string) string {
	for _, a := range args {
		if strings.HasPrefix(a, "--dir=") {
			return strings.TrimPrefix(a, "--dir=")
		}
	}
	return ""
}

func TestAria2Fetcher_Download(t *testing.T) {
	const magnet = "magnet:?xt=urn:btih:59975667f8bdd5baf9945b0e2db8a57d52d32957"
	ctx := context.Background()

	t.Run("moves named payload into place", func(t *testing.T) {
		runner := &fakeRunner{run: func(args []string) error {
			dir := filepath.Join(stagingDir(args), "DataSet 11")
			require.NoError(t, os.MkdirAll(dir, 0o755))
			require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte(strings.Repeat("y", 100)), 0o600))
			return os.WriteFile(filepath.Join(dir, "DataSet-11.zip"), []byte("zip"), 0o600)
		}}
		dest := t.TempDir()

		res, err := NewAria2Fetcher(runner).Download(ctx, driven.FetchRequest{
			URL: magnet, DestDir: dest, Filename: "DataSet-11.zip",
		})
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dest, "DataSet-11.zip"), res.Path)
		assert.Equal(t, sha("zip"), res.SHA256)
		assert.Equal(t, int64(3), res.Size)

		require.Len(t, runner.calls, 1)
		assert.Equal(t, Aria2Binary, runner.calls[0][0])
		assert.Contains(t, runner.calls[0], "--seed-time=0")
		assert.Equal(t, magnet, runner.calls[0][len(runner.calls[0])-1])

		entries, err := os.ReadDir(dest)
		require.NoError(t, err)
		assert.Len(t, entries, 1, "staging directory removed")
	})

	t.Run("falls back to the largest file", func(t *testing.T) {
		runner := &fakeRunner{run: func(args []string) error {
			dir := stagingDir(args)
			require.NoError(t, os.WriteFile(filepath.Join(dir, "small.bin"), []byte("a"), 0o600))
			require.NoError(t, os.WriteFile(filepath.Join(dir, "x.aria2"), []byte(strings.Repeat("c", 50)), 0o600))
			return os.WriteFile(filepath.Join(dir, "large.bin"), []byte("abcdef"), 0o600)
		}}
		res, err := NewAria2Fetcher(runner).Download(ctx, driven.FetchRequest{
			URL: magnet, DestDir: t.TempDir(), Filename: "full.tar.zst",
		})
		require.NoError(t, err)
		assert.Equal(t, sha("abcdef"), res.SHA256)
	})

	t.Run("aria2 failure is retryable", func(t *testing.T) {
		runner := &fakeRunner{run: func([]string) error { return errors.New("exit status 7") }}
		_, err := NewAria2Fetcher(runner).Download(ctx, driven.FetchRequest{
			URL: magnet, DestDir: t.TempDir(), Filename: "x.zip",
		})
		assert.True(t, domain.IsRetryable(err))
	})

	t.Run("empty torrent", func(t *testing.T) {
		_, err := NewAria2Fetcher(&fakeRunner{}).Download(ctx, driven.FetchRequest{
			URL: magnet, DestDir: t.TempDir(), Filename: "x.zip",
		})
		assert.ErrorIs(t, err, domain.ErrContentRejected)
	})

	t.Run("rejects non-magnet urls", func(t *testing.T) {
		_, err := NewAria2Fetcher(&fakeRunner{}).Download(ctx, driven.FetchRequest{
			URL: "https://example.org/x.zip", DestDir: t.TempDir(), Filename: "x.zip",
		})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	assert.ErrorIs(t, NewAria2Fetcher(&fakeRunner{missing: true}).Available(), domain.ErrToolNotFound)
}

type recordingFetcher struct{ urls []string }

func (f *recordingFetcher) Download(_ context.Context, req driven.FetchRequest) (*driven.FetchResult, error) {
	f.urls = append(f.urls, req.URL)
	return &driven.FetchResult{Path: req.Filename}, nil
}

func TestRouter(t *testing.T) {
	ctx := context.Background()
	web, torrent := &recordingFetcher{}, &recordingFetcher{}
	r := NewRouter(web, torrent)

	_, err := r.Download(ctx, driven.FetchRequest{URL: "https://example.org/a.pdf"})
	require.NoError(t, err)
	_, err = r.Download(ctx, driven.FetchRequest{URL: "magnet:?xt=urn:btih:abc"})
	require.NoError(t, err)

	assert.Equal(t, []string{"https://example.org/a.pdf"}, web.urls)
	assert.Equal(t, []string{"magnet:?xt=urn:btih:abc"}, torrent.urls)

	_, err = NewRouter(web, nil).Download(ctx, driven.FetchRequest{URL: "magnet:?xt=urn:btih:abc"})
	assert.ErrorIs(t, err, domain.ErrToolNotFound)
}
