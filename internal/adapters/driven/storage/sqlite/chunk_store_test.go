package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/dossier/internal/core/domain"
)

func storedChunk(doc int64, offset int, vec ...float32) domain.Chunk {
	return domain.Chunk{
		ID:         domain.ChunkID(doc, offset),
		DocumentID: doc,
		PageNum:    2,
		Offset:     offset,
		Text:       "passenger manifest",
		Embedding:  vec,
		Title:      "Flight log",
		Filename:   "log.pdf",
		Source:     "doj",
		URL:        "https://example.org/log.pdf",
	}
}

func TestChunkStore(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	chunks := store.ChunkStore()

	require.NoError(t, chunks.SaveChunks(ctx, []domain.Chunk{
		storedChunk(1, 0, 0.25, -1.5),
		storedChunk(1, 800, 1, 0),
		storedChunk(2, 0, 0, 1),
	}))

	all, err := chunks.ListChunks(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, storedChunk(1, 0, 0.25, -1.5), all[0])
	assert.Equal(t, "1:800", all[1].ID)

	t.Run("upsert replaces by id", func(t *testing.T) {
		replaced := storedChunk(1, 0, 3, 4)
		replaced.Text = "revised"
		require.NoError(t, chunks.SaveChunks(ctx, []domain.Chunk{replaced}))

		all, err := chunks.ListChunks(ctx)
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, "revised", all[0].Text)
		assert.Equal(t, []float32{3, 4}, all[0].Embedding)
	})

	t.Run("delete removes one document", func(t *testing.T) {
		require.NoError(t, chunks.DeleteDocumentChunks(ctx, 1))

		all, err := chunks.ListChunks(ctx)
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, int64(2), all[0].DocumentID)
	})

	t.Run("empty save is a no-op", func(t *testing.T) {
		assert.NoError(t, chunks.SaveChunks(ctx, nil))
	})
}

func TestFloat32Bytes(t *testing.T) {
	tests := []struct {
		name string
		in   []float32
	}{
		{"empty", nil},
		{"values", []float32{0, 1.5, -2.25, 1e-7}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.in, bytesToFloat32Slice(float32SliceToBytes(tt.in)))
		})
	}
}
