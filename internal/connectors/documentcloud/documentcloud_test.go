package documentcloud

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/dossier/internal/connectors/connectortest"
)

const (
	search = "https://api.test/search/"
	assets = "https://assets.test/documents"
)

func result(id int64, slug, title string) map[string]any {
	return map[string]any{"id": id, "slug": slug, "title": title, "page_count": 12}
}

func newTestAdapter(queries ...string) *Adapter {
	return &Adapter{searchURL: search, assetURL: assets, queries: queries}
}

func TestDiscover(t *testing.T) {
	pages := connectortest.NewPages().
		JSON(search+"?per_page=100&q=flight+logs", map[string]any{
			"next":    search + "?cursor=abc",
			"results": []any{result(1507315, "epstein-flight-manifests", "Flight Manifests"), result(9, "", "")},
		}).
		JSON(search+"?cursor=abc", map[string]any{
			"results": []any{result(1507315, "epstein-flight-manifests", "dup"), result(77, "grand-jury", "Grand Jury")},
		}).
		JSON(search+"?per_page=100&q=grand+jury", map[string]any{
			"results": []any{result(77, "grand-jury", "Grand Jury")},
		})
	state := connectortest.NewState()

	descs, err := connectortest.Collect(context.Background(), newTestAdapter("flight logs", "grand jury"), connectortest.Env(pages, state))
	require.NoError(t, err)

	require.Len(t, descs, 3)
	assert.Equal(t, assets+"/1507315/epstein-flight-manifests.pdf", descs[0].URL)
	assert.Equal(t, "1507315-epstein-flight-manifests.pdf", descs[0].SuggestedFilename)
	assert.Equal(t, "1507315", descs[0].SourceID)
	assert.Equal(t, "DocumentCloud 9", descs[1].Title)
	assert.Equal(t, assets+"/9/document.pdf", descs[1].URL)
	assert.Equal(t, "77", descs[2].SourceID)

	saved, err := state.GetSourceState(context.Background(), Name)
	require.NoError(t, err)
	assert.Empty(t, saved.String("next_url"), "finished queries clear resume state")
}

func TestDiscover_Resumes(t *testing.T) {
	pages := connectortest.NewPages().
		JSON(search+"?cursor=page3", map[string]any{"results": []any{result(5, "late", "Late")}})
	state := connectortest.NewState()
	require.NoError(t, state.SaveSourceState(context.Background(), Name,
		map[string]any{"next_url": search + "?cursor=page3", "query": "flight logs"}))

	descs, err := connectortest.Collect(context.Background(), newTestAdapter("flight logs"), connectortest.Env(pages, state))
	require.NoError(t, err)

	require.Len(t, descs, 1)
	assert.Equal(t, []string{search + "?cursor=page3"}, pages.Requests())
}
