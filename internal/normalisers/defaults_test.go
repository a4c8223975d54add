package normalisers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/custodia-labs/dossier/internal/normalisers/pdf"
)

type noRunner struct{}

func (noRunner) Run(context.Context, string, ...string) ([]byte, error) { return nil, nil }
func (noRunner) LookPath(string) error { return nil }

func TestDefaults_ExtensionsUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, e := range Defaults(noRunner{}, pdf.Config{}) {
		for _, ext := range e.Extensions() {
			assert.False(t, seen[ext], "extension %s claimed twice", ext)
			seen[ext] = true
		}
	}
	for _, ext := range []string{".pdf", ".txt", ".json", ".docx", ".html"} {
		assert.True(t, seen[ext], "missing extractor for %s", ext)
	}
}
