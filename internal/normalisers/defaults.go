package normalisers

import (
	"github.com/custodia-labs/dossier/internal/core/ports/driven"
	"github.com/custodia-labs/dossier/internal/normalisers/docx"
	"github.com/custodia-labs/dossier/internal/normalisers/html"
	"github.com/custodia-labs/dossier/internal/normalisers/pdf"
	"github.com/custodia-labs/dossier/internal/normalisers/plaintext"
)

// Defaults returns every built-in extractor. PDF tools run through runner.
func Defaults(runner driven.CommandRunner, pdfConfig pdf.Config) []driven.TextExtractor {
	return []driven.TextExtractor{
		pdf.New(runner, pdfConfig),
		plaintext.New(),
		docx.New(),
		html.New(),
	}
}
