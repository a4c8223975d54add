package pdf

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/dossier/internal/core/domain"
)

// mockRunner is a test double for CommandRunner. Pages maps a page number to
// its native text; ocr maps a page number to tesseract output.
type mockRunner struct {
	pageCount string
	pages     map[string]string
	pageErr   error
	ocr       map[string]string
	missing   map[string]bool

	calls []string
}

func (m *mockRunner) LookPath(name string) error {
	if m.missing[name] {
		return domain.ErrToolNotFound
	}
	return nil
}

func (m *mockRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	m.calls = append(m.calls, name)
	if m.missing[name] {
		return nil, domain.ErrToolNotFound
	}

	switch name {
	case PDFInfo:
		return []byte("Producer: test\nPages:          " + m.pageCount + "\nEncrypted: no\n"), nil
	case PDFToText:
		if m.pageErr != nil {
			return nil, m.pageErr
		}
		return []byte(m.pages[args[2]]), nil
	case PDFToPPM:
		// args: -f p -l p -r dpi -png path prefix
		prefix := args[len(args)-1]
		return nil, os.WriteFile(prefix+"-"+args[1]+".png", []byte(args[1]), 0o600)
	case Tesseract:
		page, err := os.ReadFile(args[0])
		if err != nil {
			return nil, err
		}
		return []byte(m.ocr[string(page)]), nil
	}
	return nil, errors.New("unexpected command " + name)
}

func (m *mockRunner) count(name string) int {
	n := 0
	for _, c := range m.calls {
		if c == name {
			n++
		}
	}
	return n
}

var longText = strings.Repeat("The quick brown fox. ", 10)

func TestExtract_Native(t *testing.T) {
	runner := &mockRunner{
		pageCount: "2",
		pages:     map[string]string{"1": "  " + longText + "\n", "2": longText},
	}

	text, err := New(runner, Config{}).Extract(context.Background(), "/data/doj/a.pdf")
	require.NoError(t, err)

	assert.Equal(t, domain.MethodNative, text.Method)
	assert.Equal(t, []string{strings.TrimSpace(longText), strings.TrimSpace(longText)}, text.Pages)
	assert.Zero(t, text.OCRPages)
	assert.Zero(t, runner.count(Tesseract))
}

func TestExtract_OCRFallback(t *testing.T) {
	runner := &mockRunner{
		pageCount: "3",
		pages:     map[string]string{"1": "cover page", "2": "", "3": "x"},
		ocr:       map[string]string{"2": "scanned page two " + longText, "3": ""},
	}

	text, err := New(runner, Config{}).Extract(context.Background(), "/data/doj/scan.pdf")
	require.NoError(t, err)

	assert.Equal(t, domain.MethodOCR, text.Method)
	assert.Equal(t, 1, text.OCRPages, "OCR output shorter than native text is discarded")
	assert.Contains(t, text.Pages[1], "scanned page two")
	assert.Equal(t, "cover page", text.Pages[0])
	assert.Equal(t, "x", text.Pages[2])
	assert.Equal(t, 3, runner.count(PDFToPPM))
}

func TestExtract_OCRCap(t *testing.T) {
	runner := &mockRunner{
		pageCount: "4",
		pages:     map[string]string{},
		ocr:       map[string]string{"1": longText, "2": longText, "3": longText, "4": longText},
	}

	text, err := New(runner, Config{MaxOCRPages: 2}).Extract(context.Background(), "/data/x.pdf")
	require.NoError(t, err)
	assert.Equal(t, 2, text.OCRPages)
	assert.Equal(t, 2, runner.count(Tesseract))
	assert.Empty(t, text.Pages[3])
}

func TestExtract_Failures(t *testing.T) {
	tests := []struct {
		name   string
		runner *mockRunner
		check  func(t *testing.T, err error)
	}{
		{
			name:   "pdfinfo missing",
			runner: &mockRunner{missing: map[string]bool{PDFInfo: true}},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, domain.ErrToolNotFound)
			},
		},
		{
			name:   "no pages",
			runner: &mockRunner{pageCount: "0"},
			check: func(t *testing.T, err error) {
				assert.ErrorContains(t, err, "no pages")
			},
		},
		{
			name: "empty text and no OCR tools",
			runner: &mockRunner{
				pageCount: "1",
				pages:     map[string]string{"1": ""},
				missing:   map[string]bool{Tesseract: true},
			},
			check: func(t *testing.T, err error) {
				var ocrErr *domain.OCRFailure
				require.ErrorAs(t, err, &ocrErr)
				assert.ErrorIs(t, err, domain.ErrToolNotFound)
			},
		},
		{
			name: "native and OCR both empty",
			runner: &mockRunner{
				pageCount: "1",
				pages:     map[string]string{"1": ""},
				ocr:       map[string]string{"1": ""},
			},
			check: func(t *testing.T, err error) {
				assert.ErrorContains(t, err, "no text extracted")
			},
		},
		{
			name: "every native page fails",
			runner: &mockRunner{
				pageCount: "2",
				pageErr:   errors.New("Syntax Error: broken xref"),
				missing:   map[string]bool{PDFToPPM: true},
			},
			check: func(t *testing.T, err error) {
				assert.Error(t, err)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.runner, Config{}).Extract(context.Background(), "/data/x.pdf")
			tt.check(t, err)
		})
	}
}

func TestExtract_SparseButOCRUnavailableKeepsNativeText(t *testing.T) {
	runner := &mockRunner{
		pageCount: "2",
		pages:     map[string]string{"1": "cover", "2": "short"},
		missing:   map[string]bool{Tesseract: true},
	}

	text, err := New(runner, Config{}).Extract(context.Background(), "/data/x.pdf")
	require.NoError(t, err)
	assert.Equal(t, domain.MethodNative, text.Method)
	assert.Equal(t, "short", text.Pages[1])
}

func TestExtract_AverageAboveThresholdStaysNative(t *testing.T) {
	runner := &mockRunner{
		pageCount: "2",
		pages:     map[string]string{"1": longText + longText, "2": "x"},
		ocr:       map[string]string{"2": "scanned " + longText},
	}

	text, err := New(runner, Config{}).Extract(context.Background(), "/data/doj/mixed.pdf")
	require.NoError(t, err)

	assert.Equal(t, domain.MethodNative, text.Method)
	assert.Zero(t, text.OCRPages)
	assert.Equal(t, "x", text.Pages[1])
	assert.Zero(t, runner.count(PDFToPPM))
	assert.Zero(t, runner.count(Tesseract))
}

func TestCheckAvailable(t *testing.T) {
	assert.NoError(t, New(&mockRunner{}, Config{}).CheckAvailable())
	err := New(&mockRunner{missing: map[string]bool{PDFToText: true}}, Config{}).CheckAvailable()
	assert.ErrorIs(t, err, domain.ErrToolNotFound)
}

func TestInstallInstructions(t *testing.T) {
	instructions := InstallInstructions()
	assert.Contains(t, instructions, "pdftotext")
	assert.Contains(t, instructions, "brew install poppler")
	assert.Contains(t, instructions, "apt install poppler-utils tesseract-ocr")
}

func TestExtensions(t *testing.T) {
	assert.Equal(t, []string{".pdf"}, New(&mockRunner{}, Config{}).Extensions())
}
