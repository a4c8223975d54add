package command

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/dossier/internal/core/domain"
)

func TestRunner_Run(t *testing.T) {
	r := NewRunner()
	if err := r.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	t.Run("captures stdout", func(t *testing.T) {
		out, err := r.Run(context.Background(), "sh", "-c", "printf hello")
		require.NoError(t, err)
		assert.Equal(t, "hello", string(out))
	})

	t.Run("failure carries stderr", func(t *testing.T) {
		_, err := r.Run(context.Background(), "sh", "-c", "echo broken >&2; exit 3")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "broken")
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		_, err := r.Run(ctx, "sh", "-c", "sleep 5")
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestRunner_MissingTool(t *testing.T) {
	r := NewRunner()

	err := r.LookPath("dossier-no-such-tool")
	assert.ErrorIs(t, err, domain.ErrToolNotFound)

	_, err = r.Run(context.Background(), "dossier-no-such-tool")
	assert.ErrorIs(t, err, domain.ErrToolNotFound)
}
