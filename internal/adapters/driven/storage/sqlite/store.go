package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/dossier/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/dossier/internal/core/domain"
	"github.com/custodia-labs/dossier/internal/core/ports/driven"
)

// timeLayout is fixed-width so that text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store is a unified SQLite-based storage that provides access to
// all metadata store interfaces through wrapper types.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store in the specified data directory.
// If dataDir is empty, defaults to ~/.dossier/data/dossier.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".dossier", "data")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "dossier.db")

	// WAL for concurrent readers; immediate transactions so writers queue on
	// busy_timeout instead of failing on lock upgrade.
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)" +
		"&_pragma=foreign_keys(1)&_txlock=immediate"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	// Run migrations
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// DocumentStore returns a DocumentStore interface backed by this store.
func (s *Store) DocumentStore() driven.DocumentStore {
	return &documentStore{store: s}
}

// ExtractionStore returns an ExtractionStore interface backed by this store.
func (s *Store) ExtractionStore() driven.ExtractionStore {
	return &extractionStore{store: s}
}

// SourceStateStore returns a SourceStateStore interface backed by this store.
func (s *Store) SourceStateStore() driven.SourceStateStore {
	return &sourceStateStore{store: s}
}

// VectorRecordStore returns a VectorRecordStore interface backed by this store.
func (s *Store) VectorRecordStore() driven.VectorRecordStore {
	return &vectorRecordStore{store: s}
}

// ChunkStore returns a ChunkStore backing the in-memory vector index.
func (s *Store) ChunkStore() driven.ChunkStore {
	return &chunkStore{store: s}
}

// StatsStore returns a StatsStore interface backed by this store.
func (s *Store) StatsStore() driven.StatsStore {
	return &statsStore{store: s}
}

// SchedulerStore returns a SchedulerStore interface backed by this store.
func (s *Store) SchedulerStore() driven.SchedulerStore {
	return &schedulerStore{store: s}
}

// LexicalIndex returns the FTS5 lexical index backed by this store.
func (s *Store) LexicalIndex(cfg domain.LexicalConfig) driven.LexicalIndex {
	return newLexicalIndex(s, cfg)
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	// Ensure schema_migrations table exists
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	// Find all up migrations
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	// Sort and run migrations
	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_documents.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}

		if version <= currentVersion {
			continue // Already applied
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning migration %s: %w", name, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %s: %w", name, err)
		}
	}

	return nil
}

// ==================== Document Store ====================

// documentStore implements driven.DocumentStore.
type documentStore struct {
	store *Store
}

var _ driven.DocumentStore = (*documentStore)(nil)

const documentColumns = `d.id, d.url, d.source, d.source_id, d.filename, d.title, d.metadata,
	d.local_path, d.sha256, d.file_size, d.download_status, d.attempts, d.error,
	d.created_at, d.updated_at`

// FindOrCreate returns the document with the descriptor's URL, creating it if absent.
func (s *documentStore) FindOrCreate(
	ctx context.Context, desc domain.SourceDescriptor,
) (*domain.Document, bool, error) {
	if desc.URL == "" {
		return nil, false, fmt.Errorf("%w: descriptor has no url", domain.ErrInvalidInput)
	}

	metadataJSON, err := marshalMetadata(desc.Metadata)
	if err != nil {
		return nil, false, err
	}

	now := formatTime(time.Now())
	res, err := s.store.db.ExecContext(ctx, `
		INSERT INTO documents (url, source, source_id, filename, title, metadata,
			download_status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(url) DO NOTHING
	`, desc.URL, desc.Source, desc.SourceID, desc.SuggestedFilename, desc.Title,
		metadataJSON, string(domain.StatusPending), now, now)
	if err != nil {
		return nil, false, fmt.Errorf("inserting document: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("reading rows affected: %w", err)
	}

	row := s.store.db.QueryRowContext(ctx,
		"SELECT "+documentColumns+" FROM documents d WHERE d.url = ?", desc.URL)
	doc, err := scanDocument(row)
	if err != nil {
		return nil, false, err
	}
	return doc, affected == 1, nil
}

// GetDocument retrieves a document by ID.
func (s *documentStore) GetDocument(ctx context.Context, id int64) (*domain.Document, error) {
	row := s.store.db.QueryRowContext(ctx,
		"SELECT "+documentColumns+" FROM documents d WHERE d.id = ?", id)
	return scanDocument(row)
}

// UpdateDownload persists the download fields of a document.
func (s *documentStore) UpdateDownload(ctx context.Context, doc *domain.Document) error {
	if doc == nil {
		return domain.ErrInvalidInput
	}
	if !doc.DownloadStatus.Valid() {
		return fmt.Errorf("%w: download status %q", domain.ErrInvalidInput, doc.DownloadStatus)
	}

	doc.UpdatedAt = time.Now().UTC()
	res, err := s.store.db.ExecContext(ctx, `
		UPDATE documents SET
			download_status = ?,
			attempts = ?,
			local_path = ?,
			sha256 = ?,
			file_size = ?,
			error = ?,
			updated_at = ?
		WHERE id = ?
	`, string(doc.DownloadStatus), doc.Attempts, nullString(doc.LocalPath),
		nullString(doc.SHA256), doc.FileSize, nullString(doc.Error),
		formatTime(doc.UpdatedAt), doc.ID)
	if err != nil {
		return fmt.Errorf("updating document %d: %w", doc.ID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// FindBySHA256 returns another downloaded document with the same digest.
func (s *documentStore) FindBySHA256(
	ctx context.Context, sha256 string, excludeID int64,
) (*domain.Document, error) {
	row := s.store.db.QueryRowContext(ctx, "SELECT "+documentColumns+` FROM documents d
		WHERE d.sha256 = ? AND d.download_status = ? AND d.id != ?
		ORDER BY d.id LIMIT 1`, sha256, string(domain.StatusDownloaded), excludeID)

	doc, err := scanDocument(row)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	return doc, err
}

// ListDocuments returns one page of documents, newest first.
func (s *documentStore) ListDocuments(
	ctx context.Context, filter domain.DocumentFilter,
) ([]domain.Document, int, error) {
	var where []string
	var args []any
	if filter.Source != "" {
		where = append(where, "d.source = ?")
		args = append(args, filter.Source)
	}
	if filter.Status != "" {
		where = append(where, "d.download_status = ?")
		args = append(args, string(filter.Status))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.store.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM documents d"+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting documents: %w", err)
	}

	page, perPage := filter.Page, filter.PerPage
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = domain.DefaultDocumentsLimit
	}

	rows, err := s.store.db.QueryContext(ctx, "SELECT "+documentColumns+" FROM documents d"+clause+
		" ORDER BY d.created_at DESC, d.id DESC LIMIT ? OFFSET ?",
		append(args, perPage, (page-1)*perPage)...)
	if err != nil {
		return nil, 0, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	docs, err := scanDocuments(rows)
	if err != nil {
		return nil, 0, err
	}
	return docs, total, nil
}

// ListByStatus returns the documents of a source with the given status.
func (s *documentStore) ListByStatus(
	ctx context.Context, source string, status domain.DownloadStatus,
) ([]domain.Document, error) {
	rows, err := s.store.db.QueryContext(ctx, "SELECT "+documentColumns+` FROM documents d
		WHERE d.source = ? AND d.download_status = ? ORDER BY d.id`, source, string(status))
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()
	return scanDocuments(rows)
}

// ==================== Source State Store ====================

// sourceStateStore implements driven.SourceStateStore.
type sourceStateStore struct {
	store *Store
}

var _ driven.SourceStateStore = (*sourceStateStore)(nil)

// GetSourceState returns the saved state of a source, or an empty state.
func (s *sourceStateStore) GetSourceState(ctx context.Context, source string) (domain.SourceState, error) {
	var raw string
	err := s.store.db.QueryRowContext(ctx,
		"SELECT state FROM source_state WHERE source = ?", source).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.SourceState{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting source state: %w", err)
	}

	state := domain.SourceState{}
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return nil, fmt.Errorf("unmarshalling source state: %w", err)
	}
	return state, nil
}

// SaveSourceState replaces the saved state of a source.
func (s *sourceStateStore) SaveSourceState(ctx context.Context, source string, state domain.SourceState) error {
	if state == nil {
		state = domain.SourceState{}
	}
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshalling source state: %w", err)
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO source_state (source, state, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(source) DO UPDATE SET state = excluded.state, updated_at = excluded.updated_at
	`, source, string(raw), formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("saving source state: %w", err)
	}
	return nil
}

// ==================== Helper Functions ====================

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocumentFrom(sc rowScanner) (*domain.Document, error) {
	var doc domain.Document
	var metadataJSON, status, createdAt, updatedAt string
	var localPath, sha, errMsg sql.NullString

	if err := sc.Scan(&doc.ID, &doc.URL, &doc.Source, &doc.SourceID, &doc.Filename,
		&doc.Title, &metadataJSON, &localPath, &sha, &doc.FileSize, &status,
		&doc.Attempts, &errMsg, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	if metadataJSON != "" && metadataJSON != "{}" {
		if err := json.Unmarshal([]byte(metadataJSON), &doc.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshalling metadata: %w", err)
		}
	}
	doc.LocalPath = localPath.String
	doc.SHA256 = sha.String
	doc.Error = errMsg.String
	doc.DownloadStatus = domain.DownloadStatus(status)
	doc.CreatedAt = parseTime(createdAt)
	doc.UpdatedAt = parseTime(updatedAt)
	return &doc, nil
}

// scanDocument scans a single document row.
func scanDocument(row *sql.Row) (*domain.Document, error) {
	doc, err := scanDocumentFrom(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning document: %w", err)
	}
	return doc, nil
}

// scanDocuments scans every document in rows.
func scanDocuments(rows *sql.Rows) ([]domain.Document, error) {
	var docs []domain.Document //nolint:prealloc // size unknown from query
	for rows.Next() {
		doc, err := scanDocumentFrom(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	return docs, nil
}

func marshalMetadata(m map[string]any) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("marshalling metadata: %w", err)
	}
	return string(raw), nil
}

// formatTime formats t in UTC with a fixed-width layout.
func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTime parses a stored timestamp, returning zero time on failure.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		if t, err = time.Parse(time.RFC3339, s); err != nil {
			return time.Time{}
		}
	}
	return t
}
