package sqlite

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/custodia-labs/dossier/internal/core/domain"
	"github.com/custodia-labs/dossier/internal/core/ports/driven"
)

// Ensure chunkStore implements the interface.
var _ driven.ChunkStore = (*chunkStore)(nil)

// chunkStore implements driven.ChunkStore.
type chunkStore struct {
	store *Store
}

// SaveChunks upserts chunks in a single transaction.
func (s *chunkStore) SaveChunks(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO vector_chunks (id, document_id, page_num, char_offset, content, embedding,
			title, filename, source, url)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			document_id = excluded.document_id,
			page_num = excluded.page_num,
			char_offset = excluded.char_offset,
			content = excluded.content,
			embedding = excluded.embedding,
			title = excluded.title,
			filename = excluded.filename,
			source = excluded.source,
			url = excluded.url
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for i := range chunks {
		c := &chunks[i]
		if _, err := stmt.ExecContext(ctx, c.ID, c.DocumentID, c.PageNum, c.Offset, c.Text,
			float32SliceToBytes(c.Embedding), c.Title, c.Filename, c.Source, c.URL); err != nil {
			return fmt.Errorf("saving chunk %s: %w", c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// DeleteDocumentChunks removes every chunk of a document.
func (s *chunkStore) DeleteDocumentChunks(ctx context.Context, documentID int64) error {
	_, err := s.store.db.ExecContext(ctx, "DELETE FROM vector_chunks WHERE document_id = ?", documentID)
	if err != nil {
		return fmt.Errorf("deleting chunks: %w", err)
	}
	return nil
}

// ListChunks returns every chunk ordered by document and offset.
func (s *chunkStore) ListChunks(ctx context.Context) ([]domain.Chunk, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, document_id, page_num, char_offset, content, embedding, title, filename, source, url
		FROM vector_chunks
		ORDER BY document_id, char_offset
	`)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var chunks []domain.Chunk //nolint:prealloc // size unknown from query
	for rows.Next() {
		var c domain.Chunk
		var embedding []byte
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.PageNum, &c.Offset, &c.Text, &embedding,
			&c.Title, &c.Filename, &c.Source, &c.URL); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		c.Embedding = bytesToFloat32Slice(embedding)
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}
	return chunks, nil
}

// float32SliceToBytes converts a []float32 to a byte slice for storage.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}
