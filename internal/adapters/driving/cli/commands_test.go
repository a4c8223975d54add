package cli

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/dossier/internal/core/domain"
	"github.com/custodia-labs/dossier/internal/core/ports/driving"
)

func TestCommands_ServiceNotConfigured(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"sources"}, "acquisition service not configured"},
		{[]string{"acquire"}, "acquisition service not configured"},
		{[]string{"extract"}, "extraction service not configured"},
		{[]string{"index", "rebuild"}, "index service not configured"},
		{[]string{"index", "update"}, "index service not configured"},
		{[]string{"ingest"}, "ingestion service not configured"},
		{[]string{"documents", "list"}, "document service not configured"},
		{[]string{"documents", "show", "1"}, "document service not configured"},
		{[]string{"chat", "who flew?"}, "chat service not configured"},
		{[]string{"stats"}, "stats service not configured"},
		{[]string{"serve"}, "search and document services not configured"},
		{[]string{"schedule", "run"}, "scheduler not configured"},
		{[]string{"schedule", "now", "acquire"}, "scheduler not configured"},
		{[]string{"mcp", "serve"}, "search service is required"},
	}
	for _, tt := range tests {
		t.Run(tt.args[0], func(t *testing.T) {
			SetServices(nil)

			_, err := execute(t, tt.args...)

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestSourcesCmd(t *testing.T) {
	setupTestServices(t)

	out, err := execute(t, "sources")

	require.NoError(t, err)
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "doj")
	assert.Contains(t, out, "enabled")
	assert.Contains(t, out, "courtlistener")
	assert.Contains(t, out, "api token not configured")
	assert.Contains(t, out, "DOJ disclosure portal")
}

func TestAcquireCmd(t *testing.T) {
	tests := []struct {
		name      string
		args      []string
		wantNames []string
		wantOpts  driving.AcquireOptions
		wantOut   string
	}{
		{"all sources", []string{"acquire"}, nil, driving.AcquireOptions{}, "Acquiring from all enabled sources"},
		{"named sources", []string{"acquire", "doj", "fbi_vault"}, []string{"doj", "fbi_vault"}, driving.AcquireOptions{}, "Acquiring from 2 source(s)"},
		{"retry failed", []string{"acquire", "--retry-failed", "doj"}, []string{"doj"}, driving.AcquireOptions{RetryFailed: true}, "Acquiring from 1 source(s)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := setupTestServices(t)

			out, err := execute(t, tt.args...)

			require.NoError(t, err)
			assert.ElementsMatch(t, tt.wantNames, svc.acquisition.names)
			assert.Equal(t, tt.wantOpts, svc.acquisition.opts)
			assert.Contains(t, out, tt.wantOut)
			assert.Contains(t, out, "DOWNLOADED")
			assert.Contains(t, out, "3s")
		})
	}
}

func TestAcquireCmd_ReportsFailureWithReports(t *testing.T) {
	svc := setupTestServices(t)
	svc.acquisition.reports = []domain.RunReport{{Source: "doj", Error: "listing unavailable"}}
	svc.acquisition.err = errors.New("doj: listing unavailable")

	out, err := execute(t, "acquire")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "acquire failed")
	assert.Contains(t, out, "listing unavailable")
}

func TestExtractCmd(t *testing.T) {
	t.Run("runs pending with flags", func(t *testing.T) {
		svc := setupTestServices(t)

		out, err := execute(t, "extract", "--source", "doj", "--force")

		require.NoError(t, err)
		assert.Equal(t, driving.ExtractOptions{Source: "doj", Force: true}, svc.extraction.opts)
		assert.False(t, svc.extraction.watched)
		assert.Contains(t, out, "Extracted 3 of 4 document(s): 1 failed")
		assert.Contains(t, out, "2 needed OCR")
	})

	t.Run("nothing to extract", func(t *testing.T) {
		svc := setupTestServices(t)
		svc.extraction.report = &domain.ExtractionReport{}

		out, err := execute(t, "extract")

		require.NoError(t, err)
		assert.Contains(t, out, "Nothing to extract.")
	})

	t.Run("watch", func(t *testing.T) {
		svc := setupTestServices(t)

		out, err := execute(t, "extract", "--watch")

		require.NoError(t, err)
		assert.True(t, svc.extraction.watched)
		assert.Contains(t, out, "Watching for new downloads")
	})

	t.Run("failure", func(t *testing.T) {
		svc := setupTestServices(t)
		svc.extraction.err = errors.New("store closed")

		_, err := execute(t, "extract")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "extraction failed: store closed")
	})
}

func TestIndexCmds(t *testing.T) {
	t.Run("rebuild", func(t *testing.T) {
		svc := setupTestServices(t)

		out, err := execute(t, "index", "rebuild")

		require.NoError(t, err)
		assert.Equal(t, 1, svc.index.rebuilt)
		assert.Contains(t, out, "Indexed 12 document(s), removed 0. Index holds 12 row(s).")
	})

	t.Run("update", func(t *testing.T) {
		svc := setupTestServices(t)

		out, err := execute(t, "index", "update")

		require.NoError(t, err)
		assert.Equal(t, 1, svc.index.updated)
		assert.Contains(t, out, "Indexed 2 document(s), removed 1.")
	})

	t.Run("inconsistent index", func(t *testing.T) {
		svc := setupTestServices(t)
		svc.index.err = &domain.IndexInconsistency{Index: "lexical", Detail: "row count mismatch"}

		_, err := execute(t, "index", "update")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "update failed")
	})
}

func TestIngestCmd(t *testing.T) {
	svc := setupTestServices(t)

	out, err := execute(t, "ingest")
	require.NoError(t, err)
	assert.Contains(t, out, "Ingested 3 document(s) as 41 chunk(s); 1 failed, 0 purged.")

	svc.ingestion.err = domain.ErrEmbeddingUnavailable
	_, err = execute(t, "ingest")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
}

func TestDocumentsListCmd(t *testing.T) {
	t.Run("lists with filter", func(t *testing.T) {
		svc := setupTestServices(t)

		out, err := execute(t, "documents", "list", "--source", "doj", "--status", "downloaded", "--page", "2", "--per-page", "10")

		require.NoError(t, err)
		assert.Equal(t, domain.DocumentFilter{Source: "doj", Status: domain.StatusDownloaded, Page: 2, PerPage: 10}, svc.documents.filter)
		assert.Contains(t, out, "Flight log 1997")
		assert.Contains(t, out, "downloaded")
		assert.Contains(t, out, "Page 1 of 1 (1 documents)")
	})

	t.Run("defaults", func(t *testing.T) {
		svc := setupTestServices(t)

		_, err := execute(t, "documents", "list")

		require.NoError(t, err)
		assert.Equal(t, domain.DocumentFilter{Page: 1, PerPage: domain.DefaultDocumentsLimit}, svc.documents.filter)
	})

	t.Run("unknown status", func(t *testing.T) {
		setupTestServices(t)

		_, err := execute(t, "documents", "list", "--status", "lost")

		require.Error(t, err)
		assert.Contains(t, err.Error(), `unknown status "lost"`)
	})

	t.Run("empty", func(t *testing.T) {
		svc := setupTestServices(t)
		svc.documents.page = &domain.DocumentPage{}

		out, err := execute(t, "documents", "list")

		require.NoError(t, err)
		assert.Contains(t, out, "No documents found.")
	})
}

func TestDocumentsShowCmd(t *testing.T) {
	t.Run("shows document and extraction", func(t *testing.T) {
		setupTestServices(t)

		out, err := execute(t, "documents", "show", "1")

		require.NoError(t, err)
		assert.Contains(t, out, "Document: 1")
		assert.Contains(t, out, "Title:    Flight log 1997")
		assert.Contains(t, out, "Source:   doj (ds1-EFTA0001.pdf)")
		assert.Contains(t, out, "Method:  ocr")
		assert.Contains(t, out, "Pages:   2 (1 OCR)")
		assert.NotContains(t, out, "Passenger manifest")
	})

	t.Run("prints text", func(t *testing.T) {
		setupTestServices(t)

		out, err := execute(t, "documents", "show", "--text", "1")

		require.NoError(t, err)
		assert.Contains(t, out, "--- Page 1 ---\nPassenger manifest")
	})

	t.Run("not found", func(t *testing.T) {
		setupTestServices(t)

		_, err := execute(t, "documents", "show", "2")

		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("invalid id", func(t *testing.T) {
		setupTestServices(t)

		_, err := execute(t, "documents", "show", "abc")

		require.Error(t, err)
		assert.Contains(t, err.Error(), `invalid document id "abc"`)
	})

	t.Run("requires one arg", func(t *testing.T) {
		_, err := execute(t, "documents", "show")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "accepts 1 arg(s)")
	})
}

func TestChatCmd(t *testing.T) {
	t.Run("streams answer then sources", func(t *testing.T) {
		svc := setupTestServices(t)
		svc.chat.events = []domain.ChatEvent{
			{Type: domain.EventSources, Sources: []domain.Citation{{Title: "Flight log 1997", PageNum: 2, Source: "doj", URL: "https://example.org/log.pdf"}}},
			{Type: domain.EventText, Text: "The log lists "},
			{Type: domain.EventText, Text: "four passengers."},
			{Type: domain.EventDone},
		}

		out, err := execute(t, "chat", "--provider", "ollama", "who flew?")

		require.NoError(t, err)
		assert.Equal(t, cliCaller, svc.chat.caller)
		assert.Equal(t, domain.ChatRequest{Message: "who flew?", Provider: "ollama"}, svc.chat.req)
		assert.Contains(t, out, "The log lists four passengers.")
		assert.Contains(t, out, "[1] Flight log 1997, page 2")
		assert.Contains(t, out, "https://example.org/log.pdf")
	})

	t.Run("error event", func(t *testing.T) {
		svc := setupTestServices(t)
		svc.chat.events = []domain.ChatEvent{
			{Type: domain.EventSources},
			{Type: domain.EventError, Error: "provider returned 500"},
		}

		_, err := execute(t, "chat", "who flew?")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "provider returned 500")
	})

	t.Run("rejected before streaming", func(t *testing.T) {
		svc := setupTestServices(t)
		svc.chat.err = domain.ErrRateLimited

		_, err := execute(t, "chat", "who flew?")

		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrRateLimited)
	})
}

func TestStatsCmd(t *testing.T) {
	t.Run("text", func(t *testing.T) {
		setupTestServices(t)

		out, err := execute(t, "stats")

		require.NoError(t, err)
		assert.Contains(t, out, "Documents:   10 (8 downloaded, 1 pending, 1 failed, 0 skipped)")
		assert.Contains(t, out, "Size:        3.0 MiB")
		assert.Contains(t, out, "Pages:       40 (6 OCR)")
		assert.Contains(t, out, "Chunks:      90")
		assert.Contains(t, out, "EXTRACTED")
	})

	t.Run("json", func(t *testing.T) {
		setupTestServices(t)

		out, err := execute(t, "stats", "--json")

		require.NoError(t, err)
		assert.Contains(t, out, `"chunks_indexed": 90`)
	})
}

func TestHumanBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KiB"},
		{3 << 20, "3.0 MiB"},
		{5 << 30, "5.0 GiB"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, humanBytes(tt.in))
		})
	}
}

func TestScheduleCmds(t *testing.T) {
	t.Run("run starts the scheduler", func(t *testing.T) {
		svc := setupTestServices(t)

		out, err := execute(t, "schedule", "run")

		require.NoError(t, err)
		assert.True(t, svc.scheduler.started)
		assert.Contains(t, out, "Scheduler running")
	})

	t.Run("now runs one task", func(t *testing.T) {
		svc := setupTestServices(t)

		out, err := execute(t, "schedule", "now", domain.TaskIDLexicalUpdate)

		require.NoError(t, err)
		assert.Equal(t, []string{domain.TaskIDLexicalUpdate}, svc.scheduler.ran)
		assert.Contains(t, out, "Task lexical_update completed.")
	})

	t.Run("now reports failure", func(t *testing.T) {
		svc := setupTestServices(t)
		svc.scheduler.err = domain.ErrNotFound

		_, err := execute(t, "schedule", "now", "bogus")

		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}
