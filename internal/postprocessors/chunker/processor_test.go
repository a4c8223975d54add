package chunker

import (
	"context"
	"strings"
	"testing"

	"github.com/custodia-labs/dossier/internal/core/domain"
)

func TestNew(t *testing.T) {
	t.Run("default values", func(t *testing.T) {
		p := New()
		if p.chunkSize != DefaultChunkSize {
			t.Errorf("expected chunkSize %d, got %d", DefaultChunkSize, p.chunkSize)
		}
		if p.overlap != DefaultChunkOverlap {
			t.Errorf("expected overlap %d, got %d", DefaultChunkOverlap, p.overlap)
		}
	})

	t.Run("overlap exceeds chunk size", func(t *testing.T) {
		p := New(WithChunkSize(100), WithOverlap(150))
		if p.overlap >= p.chunkSize {
			t.Error("overlap should be reduced when it exceeds chunk size")
		}
	})

	t.Run("zero values ignored", func(t *testing.T) {
		p := New(WithChunkSize(0), WithOverlap(-1))
		if p.chunkSize != DefaultChunkSize {
			t.Errorf("expected default chunkSize, got %d", p.chunkSize)
		}
		if p.overlap != DefaultChunkOverlap {
			t.Errorf("expected default overlap, got %d", p.overlap)
		}
	})
}

func testDoc() *domain.Document {
	return &domain.Document{
		ID:       42,
		Source:   "doj",
		Title:    "DOJ DataSet 1: a.pdf",
		Filename: "a.pdf",
		URL:      "https://www.justice.gov/a.pdf",
	}
}

func TestChunk_Empty(t *testing.T) {
	chunks, err := New().Chunk(context.Background(), testDoc(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if chunks != nil {
		t.Errorf("expected no chunks, got %d", len(chunks))
	}
}

func TestChunk_Windows(t *testing.T) {
	tests := []struct {
		name       string
		size       int
		overlap    int
		textLen    int
		wantChunks int
	}{
		{"shorter than one chunk", 100, 20, 50, 1},
		{"exactly one chunk", 100, 20, 100, 1},
		{"two chunks", 100, 20, 150, 2},
		{"no overlap", 10, 0, 35, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text := strings.Repeat("a", tt.textLen)
			chunks, err := New(WithChunkSize(tt.size), WithOverlap(tt.overlap)).Chunk(context.Background(), testDoc(), text)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(chunks) != tt.wantChunks {
				t.Fatalf("expected %d chunks, got %d", tt.wantChunks, len(chunks))
			}
			for i, c := range chunks {
				if c.Offset != i*(tt.size-tt.overlap) {
					t.Errorf("chunk %d: offset %d", i, c.Offset)
				}
				if c.ID != domain.ChunkID(42, c.Offset) {
					t.Errorf("chunk %d: id %q", i, c.ID)
				}
				if c.Source != "doj" || c.URL == "" || c.Filename != "a.pdf" {
					t.Errorf("chunk %d: citation fields not copied", i)
				}
			}
		})
	}
}

func TestChunk_RoundTrip(t *testing.T) {
	text := domain.JoinPages([]string{
		strings.Repeat("première page, ", 40),
		strings.Repeat("second page text ", 50),
		"short third page",
	})
	const size, overlap = 120, 30

	chunks, err := New(WithChunkSize(size), WithOverlap(overlap)).Chunk(context.Background(), testDoc(), text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var b strings.Builder
	for i, c := range chunks {
		r := []rune(c.Text)
		if i > 0 {
			r = r[overlap:]
		}
		b.WriteString(string(r))
	}
	if b.String() != text {
		t.Error("concatenating chunks minus overlaps should reproduce the text")
	}
}

func TestChunk_PageNumbers(t *testing.T) {
	page1 := strings.Repeat("x", 30)
	page2 := strings.Repeat("y", 30)
	text := domain.JoinPages([]string{page1, page2})

	chunks, err := New(WithChunkSize(20), WithOverlap(0)).Chunk(context.Background(), testDoc(), text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	secondMarker := strings.Index(text, domain.PageMarker(2))
	for _, c := range chunks {
		want := 1
		if c.Offset >= secondMarker {
			want = 2
		}
		if c.PageNum != want {
			t.Errorf("chunk at %d: expected page %d, got %d", c.Offset, want, c.PageNum)
		}
	}
	if last := chunks[len(chunks)-1]; last.PageNum != 2 {
		t.Errorf("last chunk should be on page 2, got %d", last.PageNum)
	}
}

func TestChunk_NoMarkersIsPageOne(t *testing.T) {
	chunks, _ := New(WithChunkSize(5), WithOverlap(0)).Chunk(context.Background(), testDoc(), "plain text without markers")
	for _, c := range chunks {
		if c.PageNum != 1 {
			t.Errorf("expected page 1, got %d", c.PageNum)
		}
	}
}

func TestChunk_StableIDs(t *testing.T) {
	text := strings.Repeat("stable ", 500)
	a, _ := New().Chunk(context.Background(), testDoc(), text)
	b, _ := New().Chunk(context.Background(), testDoc(), text)
	if len(a) != len(b) {
		t.Fatalf("chunk counts differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].ID != b[i].ID {
			t.Errorf("chunk %d id changed: %s vs %s", i, a[i].ID, b[i].ID)
		}
	}
}

func TestChunk_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New().Chunk(ctx, testDoc(), "some text"); err == nil {
		t.Error("expected cancellation error")
	}
}
