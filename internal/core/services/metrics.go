package services

import (
	"time"

	"github.com/custodia-labs/dossier/internal/core/domain"
	"github.com/custodia-labs/dossier/internal/core/ports/driven"
)

// nopMetrics is used when no metrics sink is wired.
type nopMetrics struct{}

func (nopMetrics) DownloadFinished(string, domain.DownloadStatus, int64)                         {}
func (nopMetrics) DownloadRetried(string)                                                       {}
func (nopMetrics) ExtractionFinished(domain.ExtractionMethod, domain.ExtractionStatus, time.Duration) {}
func (nopMetrics) ChunksEmbedded(int)                                                           {}
func (nopMetrics) ChatTransition(string, domain.ChatState)                                      {}

func metricsOrNop(m driven.Metrics) driven.Metrics {
	if m == nil {
		return nopMetrics{}
	}
	return m
}
