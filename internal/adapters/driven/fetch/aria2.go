package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/dossier/internal/core/domain"
	"github.com/custodia-labs/dossier/internal/core/ports/driven"
)

// Aria2Binary is the external BitTorrent client.
const Aria2Binary = "aria2c"

// Ensure Aria2Fetcher implements the interface.
var _ driven.Fetcher = (*Aria2Fetcher)(nil)

// Aria2Fetcher downloads magnet links with aria2c.
type Aria2Fetcher struct {
	runner driven.CommandRunner
}

// NewAria2Fetcher creates a magnet fetcher.
func NewAria2Fetcher(runner driven.CommandRunner) *Aria2Fetcher {
	return &Aria2Fetcher{runner: runner}
}

// Available reports whether aria2c is installed.
func (f *Aria2Fetcher) Available() error {
	return f.runner.LookPath(Aria2Binary)
}

// Download runs aria2c into a staging directory, then moves the payload to
// DestDir/Filename. A multi-file torrent keeps the file named Filename, or
// the largest file when none matches.
func (f *Aria2Fetcher) Download(ctx context.Context, req driven.FetchRequest) (*driven.FetchResult, error) {
	if !strings.HasPrefix(req.URL, "magnet:") {
		return nil, fmt.Errorf("%w: not a magnet link: %s", domain.ErrInvalidInput, req.URL)
	}
	if req.Filename == "" || req.DestDir == "" {
		return nil, fmt.Errorf("%w: download needs a destination", domain.ErrInvalidInput)
	}

	if err := os.MkdirAll(req.DestDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", req.DestDir, err)
	}
	staging, err := os.MkdirTemp(req.DestDir, "."+req.Filename+".torrent-*")
	if err != nil {
		return nil, fmt.Errorf("creating staging directory: %w", err)
	}
	defer os.RemoveAll(staging)

	_, err = f.runner.Run(ctx, Aria2Binary,
		"--dir="+staging,
		"--seed-time=0",
		"--max-tries=5",
		"--retry-wait=30",
		"--file-allocation=falloc",
		"--summary-interval=60",
		"--bt-stop-timeout=600",
		req.URL,
	)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &domain.TransientNetworkError{URL: req.URL, Err: err}
	}

	payload, err := pickPayload(staging, req.Filename)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(payload)
	if err != nil {
		return nil, fmt.Errorf("stat payload: %w", err)
	}
	if req.MaxSize > 0 && info.Size() > req.MaxSize {
		return nil, fmt.Errorf("%w: torrent payload is %d bytes, limit %d",
			domain.ErrContentRejected, info.Size(), req.MaxSize)
	}

	sum, err := hashFile(payload)
	if err != nil {
		return nil, err
	}

	dest := filepath.Join(req.DestDir, req.Filename)
	if err := os.Rename(payload, dest); err != nil {
		return nil, fmt.Errorf("moving torrent payload into place: %w", err)
	}

	return &driven.FetchResult{
		Path:        dest,
		SHA256:      sum,
		Size:        info.Size(),
		ContentType: "application/octet-stream",
	}, nil
}

// pickPayload finds the downloaded file, skipping aria2 control files.
func pickPayload(dir, want string) (string, error) {
	var best string
	var bestSize int64 = -1
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || strings.HasSuffix(path, ".aria2") || strings.HasSuffix(path, ".torrent") {
			return err
		}
		if d.Name() == want {
			best, bestSize = path, 1<<62
			return fs.SkipAll
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.Size() > bestSize {
			best, bestSize = path, info.Size()
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("scanning torrent payload: %w", err)
	}
	if best == "" {
		return "", fmt.Errorf("%w: torrent produced no files", domain.ErrContentRejected)
	}
	return best, nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
