// Package normalisers provides the TextExtractor implementations, one
// package per file format. Each extractor declares the file extensions it
// handles; the extraction service dispatches on a document's extension.
package normalisers
