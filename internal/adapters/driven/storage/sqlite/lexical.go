package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	"unicode"

	"github.com/custodia-labs/dossier/internal/core/domain"
	"github.com/custodia-labs/dossier/internal/core/ports/driven"
)

const (
	lexicalIndexName = "lexical"

	// maxSnippetTokens is the FTS5 limit for snippet().
	maxSnippetTokens = 64
)

// lexicalIndex implements driven.LexicalIndex on an FTS5 table whose rowid
// is the document id. The index holds exactly the successful extractions
// with seq <= high_water.
type lexicalIndex struct {
	store *Store
	cfg   domain.LexicalConfig
}

var _ driven.LexicalIndex = (*lexicalIndex)(nil)

func newLexicalIndex(s *Store, cfg domain.LexicalConfig) *lexicalIndex {
	if cfg.TitleWeight <= 0 {
		cfg.TitleWeight = 1.0
	}
	if cfg.BodyWeight <= 0 {
		cfg.BodyWeight = 1.0
	}
	if cfg.SnippetTokens <= 0 || cfg.SnippetTokens > maxSnippetTokens {
		cfg.SnippetTokens = 48
	}
	return &lexicalIndex{store: s, cfg: cfg}
}

// Rebuild clears the index and repopulates it in one transaction.
func (l *lexicalIndex) Rebuild(ctx context.Context) (*domain.IndexReport, error) {
	return l.apply(ctx, true)
}

// Update indexes extractions whose revision is above the high-water mark.
func (l *lexicalIndex) Update(ctx context.Context) (*domain.IndexReport, error) {
	return l.apply(ctx, false)
}

type pendingExtraction struct {
	documentID int64
	title      string
	status     string
	outputPath string
	seq        int64
}

func (l *lexicalIndex) apply(ctx context.Context, reset bool) (*domain.IndexReport, error) {
	tx, err := l.store.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	report := &domain.IndexReport{}
	if reset {
		if _, err := tx.ExecContext(ctx, "DELETE FROM documents_fts"); err != nil {
			return nil, fmt.Errorf("clearing lexical index: %w", err)
		}
	} else {
		hw, err := highWater(ctx, tx)
		if err != nil {
			return nil, err
		}
		report.HighWater = hw
	}

	pending, err := l.changedSince(ctx, tx, report.HighWater)
	if err != nil {
		return nil, err
	}

	for _, p := range pending {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		res, err := tx.ExecContext(ctx, "DELETE FROM documents_fts WHERE rowid = ?", p.documentID)
		if err != nil {
			return nil, fmt.Errorf("removing document %d from lexical index: %w", p.documentID, err)
		}

		if p.status != string(domain.ExtractionSuccess) {
			if n, _ := res.RowsAffected(); n > 0 {
				report.Removed++
			}
			report.HighWater = p.seq
			continue
		}

		body, err := os.ReadFile(p.outputPath)
		if err != nil {
			return nil, &domain.IndexInconsistency{
				Index:  lexicalIndexName,
				Detail: fmt.Sprintf("document %d: reading %s: %v", p.documentID, p.outputPath, err),
			}
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO documents_fts (rowid, title, body) VALUES (?, ?, ?)",
			p.documentID, p.title, string(body)); err != nil {
			return nil, fmt.Errorf("indexing document %d: %w", p.documentID, err)
		}
		report.Indexed++
		report.HighWater = p.seq
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO index_state (name, high_water, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET high_water = excluded.high_water, updated_at = excluded.updated_at
	`, lexicalIndexName, report.HighWater, formatTime(time.Now())); err != nil {
		return nil, fmt.Errorf("saving high-water mark: %w", err)
	}

	// No writer can interleave inside this transaction, so the index must now
	// hold exactly the successful extractions.
	rows, expected, err := counts(ctx, tx)
	if err != nil {
		return nil, err
	}
	if rows != expected {
		return nil, &domain.IndexInconsistency{
			Index:  lexicalIndexName,
			Detail: fmt.Sprintf("%d indexed rows, %d successful extractions", rows, expected),
		}
	}
	report.Rows = rows

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing lexical index: %w", err)
	}
	return report, nil
}

// changedSince returns extractions with seq above hw, in seq order.
func (l *lexicalIndex) changedSince(ctx context.Context, tx *sql.Tx, hw int64) ([]pendingExtraction, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT e.document_id, d.title, e.status, e.output_path, e.seq
		FROM extractions e
		JOIN documents d ON d.id = e.document_id
		WHERE e.seq > ?
		ORDER BY e.seq`, hw)
	if err != nil {
		return nil, fmt.Errorf("querying changed extractions: %w", err)
	}
	defer rows.Close()

	var out []pendingExtraction
	for rows.Next() {
		var p pendingExtraction
		if err := rows.Scan(&p.documentID, &p.title, &p.status, &p.outputPath, &p.seq); err != nil {
			return nil, fmt.Errorf("scanning changed extraction: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating changed extractions: %w", err)
	}
	return out, nil
}

// Verify checks the index against the metadata store.
//
// When extractions changed after the last update, only dangling rows are
// checked; the full count check needs the index to be caught up.
func (l *lexicalIndex) Verify(ctx context.Context) error {
	tx, err := l.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var dangling int
	if err := tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM documents_fts f
		LEFT JOIN documents d ON d.id = f.rowid
		WHERE d.id IS NULL`).Scan(&dangling); err != nil {
		return fmt.Errorf("checking lexical index: %w", err)
	}
	if dangling > 0 {
		return &domain.IndexInconsistency{
			Index:  lexicalIndexName,
			Detail: fmt.Sprintf("%d rows reference missing documents", dangling),
		}
	}

	hw, err := highWater(ctx, tx)
	if err != nil {
		return err
	}
	var behind int
	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM extractions WHERE seq > ?", hw).Scan(&behind); err != nil {
		return fmt.Errorf("checking lexical index: %w", err)
	}
	if behind > 0 {
		return nil
	}

	rows, expected, err := counts(ctx, tx)
	if err != nil {
		return err
	}
	if rows != expected {
		return &domain.IndexInconsistency{
			Index:  lexicalIndexName,
			Detail: fmt.Sprintf("%d indexed rows, %d successful extractions", rows, expected),
		}
	}
	return nil
}

// Search runs a ranked full-text query. The query must already be normalised.
func (l *lexicalIndex) Search(ctx context.Context, q domain.SearchQuery) (*domain.SearchPage, error) {
	page := &domain.SearchPage{
		Results: []domain.SearchResult{},
		Page:    q.Page,
		PerPage: q.PerPage,
		Query:   q.Query,
	}

	match := ftsQuery(q.Query)
	if match == "" {
		return page, nil
	}

	filter := ""
	args := []any{match}
	if q.Source != "" {
		filter = " AND d.source = ?"
		args = append(args, q.Source)
	}

	if err := l.store.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM documents_fts
		JOIN documents d ON d.id = documents_fts.rowid
		WHERE documents_fts MATCH ?`+filter, args...).Scan(&page.Total); err != nil {
		return nil, fmt.Errorf("counting search results: %w", err)
	}
	page.Pages = domain.PageCount(page.Total, q.PerPage)
	if page.Total == 0 {
		return page, nil
	}

	searchArgs := append([]any{l.cfg.SnippetTokens, l.cfg.TitleWeight, l.cfg.BodyWeight}, args...)
	searchArgs = append(searchArgs, q.PerPage, q.Offset())
	rows, err := l.store.db.QueryContext(ctx, `
		SELECT d.id, d.title, d.source, d.filename, d.file_size, d.url,
			d.download_status, d.created_at,
			snippet(documents_fts, 1, '<mark>', '</mark>', '...', ?) AS snippet,
			bm25(documents_fts, ?, ?) AS score
		FROM documents_fts
		JOIN documents d ON d.id = documents_fts.rowid
		WHERE documents_fts MATCH ?`+filter+`
		ORDER BY score, d.id
		LIMIT ? OFFSET ?`, searchArgs...)
	if err != nil {
		return nil, fmt.Errorf("searching: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r domain.SearchResult
		var status, createdAt string
		if err := rows.Scan(&r.ID, &r.Title, &r.Source, &r.Filename, &r.FileSize, &r.URL,
			&status, &createdAt, &r.Snippet, &r.Rank); err != nil {
			return nil, fmt.Errorf("scanning search result: %w", err)
		}
		r.DownloadStatus = domain.DownloadStatus(status)
		r.CreatedAt = parseTime(createdAt)
		page.Results = append(page.Results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating search results: %w", err)
	}
	return page, nil
}

// ftsQuery turns free text into an FTS5 expression of quoted terms joined by
// implicit AND, so user input can never be parsed as FTS5 syntax.
func ftsQuery(q string) string {
	fields := strings.Fields(q)
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.ReplaceAll(f, `"`, "")
		if !strings.ContainsFunc(f, func(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) }) {
			continue
		}
		terms = append(terms, `"`+f+`"`)
	}
	return strings.Join(terms, " ")
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func highWater(ctx context.Context, q queryer) (int64, error) {
	var hw int64
	err := q.QueryRowContext(ctx,
		"SELECT high_water FROM index_state WHERE name = ?", lexicalIndexName).Scan(&hw)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading high-water mark: %w", err)
	}
	return hw, nil
}

// counts returns the FTS row count and the number of successful extractions.
func counts(ctx context.Context, q queryer) (rows, expected int, err error) {
	if err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents_fts").Scan(&rows); err != nil {
		return 0, 0, fmt.Errorf("counting lexical rows: %w", err)
	}
	if err := q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM extractions WHERE status = ?",
		string(domain.ExtractionSuccess)).Scan(&expected); err != nil {
		return 0, 0, fmt.Errorf("counting extractions: %w", err)
	}
	return rows, expected, nil
}
