package domain

import "time"

// RunReport summarises one discovery+download cycle of a source.
type RunReport struct {
	Source     string        `json:"source"`
	Discovered int           `json:"discovered"`
	Downloaded int           `json:"downloaded"`
	Skipped    int           `json:"skipped"`
	Failed     int           `json:"failed"`
	Known      int           `json:"known"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration"`
}

// RunStatus is the live view of a source run.
type RunStatus struct {
	Source    string    `json:"source"`
	Running   bool      `json:"running"`
	StartedAt time.Time `json:"started_at"`
	Report    RunReport `json:"report"`
}

// ExtractionReport summarises one extraction batch.
type ExtractionReport struct {
	Candidates  int `json:"candidates"`
	Succeeded   int `json:"succeeded"`
	Failed      int `json:"failed"`
	Unchanged   int `json:"unchanged"`
	Unsupported int `json:"unsupported"`
	OCR         int `json:"ocr"`
}

// IndexReport summarises a lexical index build.
type IndexReport struct {
	Indexed   int   `json:"indexed"`
	Removed   int   `json:"removed"`
	HighWater int64 `json:"high_water"`
	Rows      int   `json:"rows"`
}

// IngestionReport summarises a vector ingestion batch.
type IngestionReport struct {
	Documents int `json:"documents"`
	Chunks    int `json:"chunks"`
	Failed    int `json:"failed"`
	Purged    int `json:"purged"`
}
