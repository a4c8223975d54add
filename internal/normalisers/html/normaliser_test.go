package html

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/dossier/internal/core/domain"
)

func TestExtensions(t *testing.T) {
	assert.Equal(t, []string{".html", ".htm"}, New().Extensions())
}

func TestText(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "simple paragraph",
			input:    "<p>Hello World</p>",
			expected: "Hello World",
		},
		{
			name:     "nested tags",
			input:    "<div><p><strong>Bold</strong> text</p></div>",
			expected: "Bold text",
		},
		{
			name:     "script removed",
			input:    "<p>Before</p><script>alert('evil');</script><p>After</p>",
			expected: "Before\nAfter",
		},
		{
			name:     "head removed",
			input:    "<head><title>Title</title><style>.x{}</style></head><body>Content</body>",
			expected: "Content",
		},
		{
			name:     "br to newline",
			input:    "Line 1<br>Line 2<br/>Line 3",
			expected: "Line 1\nLine 2\nLine 3",
		},
		{
			name:     "entities decoded",
			input:    "<p>&lt;tag&gt; &amp; &quot;quotes&quot;</p>",
			expected: "<tag> & \"quotes\"",
		},
		{
			name:     "comments removed",
			input:    "<p>Before</p><!-- comment --><p>After</p>",
			expected: "Before\nAfter",
		},
		{
			name:     "list items",
			input:    "<ul><li>Item 1</li><li>Item 2</li></ul>",
			expected: "Item 1\nItem 2",
		},
		{
			name:     "whitespace collapsed",
			input:    "<p>See   <img src=\"x.png\">\n  here</p>",
			expected: "See here",
		},
		{
			name:     "table rows",
			input:    "<table><tr><td>Cell 1</td><td>Cell 2</td></tr><tr><td>Cell 3</td></tr></table>",
			expected: "Cell 1Cell 2\nCell 3",
		},
		{
			name:     "svg removed",
			input:    `<p>Before</p><svg width="100"><text>label</text></svg><p>After</p>`,
			expected: "Before\nAfter",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			doc, err := goquery.NewDocumentFromReader(strings.NewReader(tc.input))
			require.NoError(t, err)
			assert.Equal(t, tc.expected, Text(doc.Selection))
		})
	}
}

func TestText_DoesNotMutateInput(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<p>a</p><script>x</script>"))
	require.NoError(t, err)
	_ = Text(doc.Selection)
	assert.Equal(t, 1, doc.Find("script").Length())
}

func TestExtract(t *testing.T) {
	path := filepath.Join(t.TempDir(), "release.html")
	page := `<!DOCTYPE html><html><head><title>Release</title></head>
<body><h1>Oversight Committee Releases Records</h1><p>Documents were produced on
<b>September 8</b>.</p></body></html>`
	require.NoError(t, os.WriteFile(path, []byte(page), 0o600))

	text, err := New().Extract(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, text.Pages, 1)
	assert.Equal(t, "Oversight Committee Releases Records\nDocuments were produced on September 8.", text.Pages[0])
	assert.Equal(t, domain.MethodNative, text.Method)
}

func TestExtract_MissingFile(t *testing.T) {
	_, err := New().Extract(context.Background(), filepath.Join(t.TempDir(), "missing.html"))
	assert.Error(t, err)
}
