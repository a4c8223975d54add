package domain

import "time"

// SourceDescriptor is an ephemeral discovery result. It is never persisted
// directly; the download engine uses it to materialise or update a Document.
type SourceDescriptor struct {
	URL               string
	Source            string
	SourceID          string
	SuggestedFilename string
	Title             string
	Metadata          map[string]any

	// Headers are sent with the download request (e.g. API tokens).
	Headers map[string]string
}

// SourceInfo describes a source adapter for listings.
type SourceInfo struct {
	Name           string        `json:"name"`
	Description    string        `json:"description"`
	Enabled        bool          `json:"enabled"`
	DisabledReason string        `json:"disabled_reason,omitempty"`
	RateLimit      time.Duration `json:"rate_limit"`
	RequiresAuth   bool          `json:"requires_auth"`
}

// SourceState is opaque per-source resume state (pagination cursors, crawl queues).
type SourceState map[string]any

// String returns the string value stored at key, or "".
func (s SourceState) String(key string) string {
	if v, ok := s[key].(string); ok {
		return v
	}
	return ""
}

// Int returns the integer value stored at key, or 0.
// JSON round-trips numbers as float64, so both forms are accepted.
func (s SourceState) Int(key string) int {
	switch v := s[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

// Strings returns the string slice stored at key.
func (s SourceState) Strings(key string) []string {
	switch v := s[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	}
	return nil
}
