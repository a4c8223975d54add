package plaintext

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/dossier/internal/core/domain"
)

func TestExtensions(t *testing.T) {
	assert.Equal(t, []string{".txt", ".json"}, New().Extensions())
}

func TestExtract(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		content  []byte
		expected string
	}{
		{
			name:     "plain text trimmed",
			filename: "notes.txt",
			content:  []byte("\n  Flight log page one\n\n"),
			expected: "Flight log page one",
		},
		{
			name:     "json re-indented",
			filename: "person.json",
			content:  []byte(`{"name":"A","roles":["pilot"]}`),
			expected: "{\n  \"name\": \"A\",\n  \"roles\": [\n    \"pilot\"\n  ]\n}",
		},
		{
			name:     "invalid json kept verbatim",
			filename: "broken.JSON",
			content:  []byte(`{"name":`),
			expected: `{"name":`,
		},
		{
			name:     "invalid utf8 replaced",
			filename: "dump.txt",
			content:  []byte("ok \xff bytes"),
			expected: "ok � bytes",
		},
		{
			name:     "empty file",
			filename: "empty.txt",
			content:  nil,
			expected: "",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tc.filename)
			require.NoError(t, os.WriteFile(path, tc.content, 0o600))

			text, err := New().Extract(context.Background(), path)
			require.NoError(t, err)
			require.Len(t, text.Pages, 1)
			assert.Equal(t, tc.expected, text.Pages[0])
			assert.Equal(t, domain.MethodNative, text.Method)
			assert.Zero(t, text.OCRPages)
		})
	}
}

func TestExtract_MissingFile(t *testing.T) {
	_, err := New().Extract(context.Background(), filepath.Join(t.TempDir(), "nope.txt"))
	assert.Error(t, err)
}
