package directurls

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/dossier/internal/connectors/connectortest"
)

func TestDiscover(t *testing.T) {
	pages := connectortest.NewPages()
	descs, err := connectortest.Collect(context.Background(), New(), connectortest.Env(pages, connectortest.NewState()))
	require.NoError(t, err)

	require.Len(t, descs, len(Documents))
	assert.Empty(t, pages.Requests())

	urls := make(map[string]bool)
	for i, d := range descs {
		assert.Equal(t, Name, d.Source)
		assert.Equal(t, Documents[i].SourceID, d.SourceID)
		assert.NotEmpty(t, d.Title)
		assert.False(t, urls[d.URL], "duplicate url %s", d.URL)
		urls[d.URL] = true
	}
}
