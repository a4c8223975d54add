// Package metrics records pipeline counters in a Prometheus registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/custodia-labs/dossier/internal/core/domain"
	"github.com/custodia-labs/dossier/internal/core/ports/driven"
)

const namespace = "dossier"

// Ensure Prometheus implements the interface.
var _ driven.Metrics = (*Prometheus)(nil)

// Prometheus exposes pipeline counters on its own registry.
type Prometheus struct {
	registry *prometheus.Registry

	downloads       *prometheus.CounterVec
	downloadBytes   *prometheus.CounterVec
	downloadRetries *prometheus.CounterVec
	extractions     *prometheus.CounterVec
	extractSeconds  *prometheus.HistogramVec
	chunksEmbedded  prometheus.Counter
	chatStates      *prometheus.CounterVec
}

// New creates the collectors and registers them, plus the Go runtime and
// process collectors, on a fresh registry.
func New() *Prometheus {
	m := &Prometheus{
		registry: prometheus.NewRegistry(),
		downloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "downloads_total",
			Help:      "Documents reaching a terminal download status.",
		}, []string{"source", "status"}),
		downloadBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "download_bytes_total",
			Help:      "Bytes of downloaded documents.",
		}, []string{"source"}),
		downloadRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "download_retries_total",
			Help:      "Retried download attempts.",
		}, []string{"source"}),
		extractions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extractions_total",
			Help:      "Finished extractions by method and status.",
		}, []string{"method", "status"}),
		extractSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "extraction_duration_seconds",
			Help:      "Time spent extracting one document.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"method"}),
		chunksEmbedded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_embedded_total",
			Help:      "Chunks written to the vector index.",
		}),
		chatStates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_transitions_total",
			Help:      "Chat requests entering each lifecycle state.",
		}, []string{"provider", "state"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.downloads,
		m.downloadBytes,
		m.downloadRetries,
		m.extractions,
		m.extractSeconds,
		m.chunksEmbedded,
		m.chatStates,
	)
	return m
}

// DownloadFinished counts a document reaching a terminal download status.
func (m *Prometheus) DownloadFinished(source string, status domain.DownloadStatus, bytes int64) {
	m.downloads.WithLabelValues(source, string(status)).Inc()
	if bytes > 0 {
		m.downloadBytes.WithLabelValues(source).Add(float64(bytes))
	}
}

// DownloadRetried counts a retried download attempt.
func (m *Prometheus) DownloadRetried(source string) {
	m.downloadRetries.WithLabelValues(source).Inc()
}

// ExtractionFinished counts a finished extraction and observes its duration.
func (m *Prometheus) ExtractionFinished(method domain.ExtractionMethod, status domain.ExtractionStatus, elapsed time.Duration) {
	label := string(method)
	if label == "" {
		label = "none"
	}
	m.extractions.WithLabelValues(label, string(status)).Inc()
	m.extractSeconds.WithLabelValues(label).Observe(elapsed.Seconds())
}

// ChunksEmbedded counts chunks written to the vector index.
func (m *Prometheus) ChunksEmbedded(n int) {
	if n > 0 {
		m.chunksEmbedded.Add(float64(n))
	}
}

// ChatTransition counts a chat request entering state.
func (m *Prometheus) ChatTransition(provider string, state domain.ChatState) {
	m.chatStates.WithLabelValues(provider, string(state)).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Prometheus) Registry() *prometheus.Registry {
	return m.registry
}
