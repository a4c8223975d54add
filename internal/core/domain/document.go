package domain

import (
	"path"
	"strconv"
	"strings"
	"time"
)

// DownloadStatus is the acquisition state of a Document.
type DownloadStatus string

const (
	// StatusPending means the document was discovered but not fetched yet.
	StatusPending DownloadStatus = "pending"

	// StatusDownloading means a worker is currently fetching the document.
	StatusDownloading DownloadStatus = "downloading"

	// StatusDownloaded means the bytes are persisted at LocalPath.
	StatusDownloaded DownloadStatus = "downloaded"

	// StatusFailed means every attempt failed; Error holds the last failure.
	StatusFailed DownloadStatus = "failed"

	// StatusSkipped means the content duplicates another document (same SHA-256).
	StatusSkipped DownloadStatus = "skipped"
)

// Valid reports whether s is a known download status.
func (s DownloadStatus) Valid() bool {
	switch s {
	case StatusPending, StatusDownloading, StatusDownloaded, StatusFailed, StatusSkipped:
		return true
	}
	return false
}

// Document is the durable record of a discovered file and its lifecycle.
// Documents are never deleted, only marked failed or skipped.
type Document struct {
	// ID is the store-assigned identifier.
	ID int64 `json:"id"`

	// Source is the name tag of the adapter that discovered the document.
	Source string `json:"source"`

	// SourceID is the adapter-local identifier (e.g. "part-03", "ds1-EFTA0001.pdf").
	SourceID string `json:"source_id"`

	// URL is where the document is fetched from. Unique across the store.
	URL string `json:"url"`

	// Filename is the on-disk file name.
	Filename string `json:"filename"`

	// Title is the human-readable title.
	Title string `json:"title"`

	// Metadata carries free-form adapter metadata.
	Metadata map[string]any `json:"metadata,omitempty"`

	// LocalPath is set once the document is downloaded.
	LocalPath string `json:"local_path,omitempty"`

	// SHA256 is the hex digest of the downloaded bytes.
	SHA256 string `json:"sha256,omitempty"`

	// FileSize is the downloaded size in bytes.
	FileSize int64 `json:"file_size"`

	// DownloadStatus is the acquisition state.
	DownloadStatus DownloadStatus `json:"download_status"`

	// Attempts counts download attempts made so far.
	Attempts int `json:"attempts"`

	// Error holds the last download failure, if any.
	Error string `json:"error,omitempty"`

	// Headers are request headers needed to fetch URL (e.g. API tokens).
	// They are not persisted.
	Headers map[string]string `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Extension returns the lower-cased file extension of the document, including the dot.
func (d *Document) Extension() string {
	name := d.LocalPath
	if name == "" {
		name = d.Filename
	}
	return strings.ToLower(path.Ext(name))
}

// StorageStem returns the name, without extension, under which the
// document's files are stored. The id prefix keeps it unique when two
// documents share a filename.
func (d *Document) StorageStem() string {
	name := strings.TrimSuffix(d.Filename, path.Ext(d.Filename))
	if name == "" {
		name = "document"
	}
	return strconv.FormatInt(d.ID, 10) + "-" + name
}

// DocumentFilter narrows a document listing.
type DocumentFilter struct {
	Source  string
	Status  DownloadStatus
	Page    int
	PerPage int
}

// DocumentPage is one page of a document listing.
type DocumentPage struct {
	Documents []Document `json:"documents"`
	Total     int        `json:"total"`
	Page      int        `json:"page"`
	PerPage   int        `json:"per_page"`
	Pages     int        `json:"pages"`
}

// DocumentDetail is a Document with its extraction and, when available, its text.
type DocumentDetail struct {
	Document   Document    `json:"document"`
	Extraction *Extraction `json:"extraction,omitempty"`
	Text       string      `json:"text,omitempty"`
}

// PageCount returns the number of pages needed to show total items at perPage per page.
func PageCount(total, perPage int) int {
	if perPage <= 0 || total <= 0 {
		return 0
	}
	return (total + perPage - 1) / perPage
}
