// Package domain defines the core business entities for dossier.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Document: a discovered file and its download lifecycle
//   - Extraction: the text extracted from a downloaded Document
//   - Chunk: a bounded span of extracted text used for semantic retrieval
//   - SourceDescriptor: an ephemeral discovery result from a source adapter
//   - ChatEvent: a typed event in a streamed, cited answer
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
