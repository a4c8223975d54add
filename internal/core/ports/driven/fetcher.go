package driven

import "context"

// Fetcher downloads one document to disk.
//
// Implementations write to a temporary file in DestDir and rename it into
// place only when the body is complete, so a failed or interrupted fetch
// never leaves a partial file under the final name.
type Fetcher interface {
	Download(ctx context.Context, req FetchRequest) (*FetchResult, error)
}

// FetchRequest describes one download.
type FetchRequest struct {
	URL      string
	DestDir  string
	Filename string

	// Headers are sent with the request (e.g. Authorization).
	Headers map[string]string

	// ExpectBinary rejects text/html responses (age gates, error pages).
	ExpectBinary bool

	// MaxSize rejects bodies larger than this many bytes. Zero means unlimited.
	MaxSize int64
}

// FetchResult describes a completed download.
type FetchResult struct {
	Path        string
	SHA256      string
	Size        int64
	ContentType string
}

// CommandRunner runs external programs (pdftotext, tesseract, aria2c).
type CommandRunner interface {
	// Run executes name with args and returns its standard output.
	// A missing executable is reported as domain.ErrToolNotFound.
	Run(ctx context.Context, name string, args ...string) ([]byte, error)

	// LookPath reports whether name is installed.
	LookPath(name string) error
}
