package internetarchive

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/dossier/internal/connectors/connectortest"
)

const base = "https://archive.test"

func metadata(title any, files ...string) map[string]any {
	list := make([]map[string]string, 0, len(files))
	for _, f := range files {
		list = append(list, map[string]string{"name": f, "format": "Text PDF"})
	}
	return map[string]any{"metadata": map[string]any{"title": title}, "files": list}
}

func searchURL(cursor string) string {
	u := base + "/services/search/v1/scrape?count=100&fields=identifier%2Ctitle&q=epstein"
	if cursor != "" {
		u = base + "/services/search/v1/scrape?count=100&cursor=" + cursor + "&fields=identifier%2Ctitle&q=epstein"
	}
	return u
}

func TestDiscover(t *testing.T) {
	pages := connectortest.NewPages().
		JSON(base+"/metadata/known-item", metadata("Court Documents", "filing one.pdf", "scans/page.txt", "cover.jpg", "item_meta.xml")).
		JSON(base+"/metadata/listed-title", metadata([]string{"Listed Title"}, "a.DOCX")).
		JSON(searchURL(""), map[string]any{"items": []map[string]string{{"identifier": "known-item"}, {"identifier": "listed-title"}}, "cursor": "c1"}).
		JSON(searchURL("c1"), map[string]any{"items": []map[string]string{{"identifier": "missing"}}}).
		JSON(searchURL("c2"), map[string]any{"items": []any{}})
	state := connectortest.NewState()

	adapter := &Adapter{baseURL: base, collections: []string{"known-item", "known-item"}, queries: []string{"epstein"}}
	descs, err := connectortest.Collect(context.Background(), adapter, connectortest.Env(pages, state))
	require.NoError(t, err)

	require.Len(t, descs, 3)
	assert.Equal(t, base+"/download/known-item/filing%20one.pdf", descs[0].URL)
	assert.Equal(t, "known-item/filing one.pdf", descs[0].SourceID)
	assert.Equal(t, "known-item__filing one.pdf", descs[0].SuggestedFilename)
	assert.Equal(t, "Court Documents: filing one.pdf", descs[0].Title)

	assert.Equal(t, base+"/download/known-item/scans/page.txt", descs[1].URL)
	assert.Equal(t, "known-item__scans_page.txt", descs[1].SuggestedFilename)

	assert.Equal(t, "Listed Title: a.DOCX", descs[2].Title)

	saved, err := state.GetSourceState(context.Background(), Name)
	require.NoError(t, err)
	assert.Equal(t, "c1", saved.String("cursor_0"))
}

func TestDiscover_ResumesCursor(t *testing.T) {
	pages := connectortest.NewPages().
		JSON(searchURL("c2"), map[string]any{"items": []map[string]string{{"identifier": "late"}}}).
		JSON(base+"/metadata/late", metadata("Late", "late.pdf"))
	state := connectortest.NewState()
	require.NoError(t, state.SaveSourceState(context.Background(), Name, map[string]any{"cursor_0": "c2"}))

	adapter := &Adapter{baseURL: base, queries: []string{"epstein"}}
	descs, err := connectortest.Collect(context.Background(), adapter, connectortest.Env(pages, state))
	require.NoError(t, err)

	require.Len(t, descs, 1)
	assert.Equal(t, "late/late.pdf", descs[0].SourceID)
	assert.NotContains(t, pages.Requests(), searchURL(""))
}

func TestItemTitle(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"string", `"Title"`, "Title"},
		{"list", `["First","Second"]`, "First"},
		{"empty list", `[]`, "fallback"},
		{"missing", ``, "fallback"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, itemTitle([]byte(tt.raw), "fallback"))
		})
	}
}
