package domain

// SourceStats holds per-source counters.
type SourceStats struct {
	Source     string `json:"source"`
	Documents  int    `json:"documents"`
	Pending    int    `json:"pending"`
	Downloaded int    `json:"downloaded"`
	Failed     int    `json:"failed"`
	Skipped    int    `json:"skipped"`
	Bytes      int64  `json:"bytes"`

	Extracted        int   `json:"extracted"`
	ExtractionFailed int   `json:"extraction_failed"`
	Pages            int   `json:"pages"`
	Chars            int64 `json:"chars"`
	OCRPages         int   `json:"ocr_pages"`
}

// Stats aggregates the corpus state.
type Stats struct {
	Documents  int   `json:"documents"`
	Pending    int   `json:"pending"`
	Downloaded int   `json:"downloaded"`
	Failed     int   `json:"failed"`
	Skipped    int   `json:"skipped"`
	Bytes      int64 `json:"bytes"`

	Extracted        int   `json:"extracted"`
	ExtractionFailed int   `json:"extraction_failed"`
	Pages            int   `json:"pages"`
	Chars            int64 `json:"chars"`
	OCRPages         int   `json:"ocr_pages"`

	ChunksIndexed int `json:"chunks_indexed"`

	Sources []SourceStats `json:"sources"`
}

// Add folds a per-source row into the totals.
func (s *Stats) Add(src SourceStats) {
	s.Documents += src.Documents
	s.Pending += src.Pending
	s.Downloaded += src.Downloaded
	s.Failed += src.Failed
	s.Skipped += src.Skipped
	s.Bytes += src.Bytes
	s.Extracted += src.Extracted
	s.ExtractionFailed += src.ExtractionFailed
	s.Pages += src.Pages
	s.Chars += src.Chars
	s.OCRPages += src.OCRPages
	s.Sources = append(s.Sources, src)
}
