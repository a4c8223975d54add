// Package chunker provides a fixed-size, page-aware text chunker.
package chunker

import (
	"context"
	"regexp"
	"sort"
	"strconv"
	"unicode/utf8"

	"github.com/custodia-labs/dossier/internal/core/domain"
	"github.com/custodia-labs/dossier/internal/core/ports/driven"
)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = 1000

// DefaultChunkOverlap is the default number of overlapping characters.
const DefaultChunkOverlap = 200

// pageMarker matches the markers written by domain.JoinPages.
var pageMarker = regexp.MustCompile(`--- Page (\d+) ---`)

// Ensure Processor implements the interface.
var _ driven.Chunker = (*Processor)(nil)

// Processor splits extracted text into fixed-size, overlapping chunks.
// Sizes and offsets are counted in runes.
type Processor struct {
	chunkSize int
	overlap   int
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) Option {
	return func(p *Processor) {
		if size > 0 {
			p.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between chunks in characters.
func WithOverlap(overlap int) Option {
	return func(p *Processor) {
		if overlap >= 0 {
			p.overlap = overlap
		}
	}
}

// New creates a new chunker processor with the given options.
func New(opts ...Option) *Processor {
	p := &Processor{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
	}

	for _, opt := range opts {
		opt(p)
	}

	// Ensure overlap doesn't exceed chunk size
	if p.overlap >= p.chunkSize {
		p.overlap = p.chunkSize / 4
	}

	return p
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "chunker"
}

// Chunk splits text into windows of chunkSize runes, each starting
// chunkSize-overlap runes after the previous one. A chunk's page is the page
// whose marker precedes the chunk start; chunks may cross markers.
func (p *Processor) Chunk(ctx context.Context, doc *domain.Document, text string) ([]domain.Chunk, error) {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil, nil
	}

	pages := pageOffsets(text)
	step := p.chunkSize - p.overlap

	chunks := make([]domain.Chunk, 0, len(runes)/step+1)
	for start := 0; start < len(runes); start += step {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		end := start + p.chunkSize
		if end > len(runes) {
			end = len(runes)
		}

		chunks = append(chunks, domain.Chunk{
			ID:         domain.ChunkID(doc.ID, start),
			DocumentID: doc.ID,
			PageNum:    pages.at(start),
			Offset:     start,
			Text:       string(runes[start:end]),
			Title:      doc.Title,
			Filename:   doc.Filename,
			Source:     doc.Source,
			URL:        doc.URL,
		})

		if end == len(runes) {
			break
		}
	}

	return chunks, nil
}

// pageIndex maps rune offsets of page markers to page numbers.
type pageIndex struct {
	offsets []int
	pages   []int
}

func pageOffsets(text string) pageIndex {
	var idx pageIndex
	matches := pageMarker.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return idx
	}

	// Convert byte offsets to rune offsets in one pass.
	runeAt := 0
	byteAt := 0
	for _, m := range matches {
		for byteAt < m[0] {
			_, size := utf8.DecodeRuneInString(text[byteAt:])
			byteAt += size
			runeAt++
		}
		n, err := strconv.Atoi(text[m[2]:m[3]])
		if err != nil {
			continue
		}
		idx.offsets = append(idx.offsets, runeAt)
		idx.pages = append(idx.pages, n)
	}
	return idx
}

// at returns the page of the last marker starting at or before offset, or 1.
func (idx pageIndex) at(offset int) int {
	i := sort.SearchInts(idx.offsets, offset+1) - 1
	if i < 0 {
		return 1
	}
	return idx.pages[i]
}
