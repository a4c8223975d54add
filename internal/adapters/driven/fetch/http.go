package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/dossier/internal/core/domain"
	"github.com/custodia-labs/dossier/internal/core/ports/driven"
)

// maxPageSize bounds listing pages and API responses.
const maxPageSize = 32 << 20

// Ensure HTTPFetcher implements the interfaces.
var (
	_ driven.Fetcher    = (*HTTPFetcher)(nil)
	_ driven.PageClient = (*HTTPFetcher)(nil)
)

// Options configures an HTTPFetcher.
type Options struct {
	UserAgent     string
	RespectRobots bool

	// Client overrides the HTTP client. Its Jar is replaced.
	Client *http.Client
}

// HTTPFetcher downloads documents and discovery pages over HTTP(S).
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
	robots    *robotsCache
}

// ageGateCookies are preset so age-verification interstitials never replace
// document bodies.
var ageGateCookies = map[string]*http.Cookie{
	"https://www.justice.gov/": {Name: "justiceGovAgeVerified", Value: "true", Path: "/", Domain: "justice.gov"},
}

// NewHTTPFetcher creates an HTTP fetcher.
func NewHTTPFetcher(opts Options) *HTTPFetcher {
	client := opts.Client
	if client == nil {
		client = &http.Client{}
	}

	jar, _ := cookiejar.New(nil)
	for raw, cookie := range ageGateCookies {
		u, _ := url.Parse(raw)
		jar.SetCookies(u, []*http.Cookie{cookie})
	}
	client.Jar = jar

	f := &HTTPFetcher{
		client:    client,
		userAgent: opts.UserAgent,
	}
	if opts.RespectRobots {
		f.robots = newRobotsCache(client, opts.UserAgent)
	}
	return f
}

// Download streams req.URL to a temporary file in req.DestDir, hashing as it
// goes, and renames it to req.Filename once the body is complete.
func (f *HTTPFetcher) Download(ctx context.Context, req driven.FetchRequest) (*driven.FetchResult, error) {
	if req.Filename == "" || req.DestDir == "" {
		return nil, fmt.Errorf("%w: download needs a destination", domain.ErrInvalidInput)
	}

	resp, err := f.do(ctx, req.URL, req.Headers)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")
	if req.ExpectBinary && isHTML(contentType) {
		return nil, fmt.Errorf("%w: %s returned an HTML page", domain.ErrContentRejected, req.URL)
	}
	if req.MaxSize > 0 && resp.ContentLength > req.MaxSize {
		return nil, fmt.Errorf("%w: %s is %d bytes, limit %d",
			domain.ErrContentRejected, req.URL, resp.ContentLength, req.MaxSize)
	}

	if err := os.MkdirAll(req.DestDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", req.DestDir, err)
	}
	tmp, err := os.CreateTemp(req.DestDir, "."+req.Filename+".part-*")
	if err != nil {
		return nil, fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	hash := sha256.New()
	var body io.Reader = resp.Body
	if req.MaxSize > 0 {
		body = io.LimitReader(resp.Body, req.MaxSize+1)
	}
	size, err := io.Copy(io.MultiWriter(tmp, hash), body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &domain.TransientNetworkError{URL: req.URL, Err: err}
	}
	if req.MaxSize > 0 && size > req.MaxSize {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", domain.ErrContentRejected, req.URL, req.MaxSize)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("closing temp file: %w", err)
	}

	dest := filepath.Join(req.DestDir, req.Filename)
	if err := os.Rename(tmpPath, dest); err != nil {
		return nil, fmt.Errorf("moving download into place: %w", err)
	}
	committed = true

	return &driven.FetchResult{
		Path:        dest,
		SHA256:      hex.EncodeToString(hash.Sum(nil)),
		Size:        size,
		ContentType: contentType,
	}, nil
}

// GetText fetches a page body. HTML pages are checked against robots.txt.
func (f *HTTPFetcher) GetText(ctx context.Context, rawURL string, headers map[string]string) (string, error) {
	if f.robots != nil {
		allowed, err := f.robots.Allowed(ctx, rawURL)
		if err != nil {
			return "", err
		}
		if !allowed {
			return "", fmt.Errorf("%w: %s", ErrDisallowed, rawURL)
		}
	}

	resp, err := f.do(ctx, rawURL, headers)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPageSize))
	if err != nil {
		return "", &domain.TransientNetworkError{URL: rawURL, Err: err}
	}
	return string(data), nil
}

// GetJSON fetches rawURL and decodes the JSON body into out.
func (f *HTTPFetcher) GetJSON(ctx context.Context, rawURL string, headers map[string]string, out any) error {
	h := map[string]string{"Accept": "application/json"}
	for k, v := range headers {
		h[k] = v
	}

	resp, err := f.do(ctx, rawURL, h)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxPageSize)).Decode(out); err != nil {
		return fmt.Errorf("decoding %s: %w", rawURL, err)
	}
	return nil
}

// do issues a GET and classifies failures. The caller closes the body of a
// successful response.
func (f *HTTPFetcher) do(ctx context.Context, rawURL string, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &domain.TransientNetworkError{URL: rawURL, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096)) //nolint:errcheck
		resp.Body.Close()

		statusErr := domain.StatusError(rawURL, resp.StatusCode)
		var transient *domain.TransientNetworkError
		if errors.As(statusErr, &transient) {
			transient.RetryAfter = retryAfter(resp.Header.Get("Retry-After"))
		}
		return nil, statusErr
	}
	return resp, nil
}

func isHTML(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.HasPrefix(strings.ToLower(contentType), "text/html")
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}

// retryAfter parses a Retry-After header given in seconds or as an HTTP date.
func retryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
