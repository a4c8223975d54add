// Package html extracts readable text from saved HTML pages.
//
// Script, style and other non-visible elements are dropped. Block elements
// (paragraphs, list items, table rows, headings) each start a new line, and
// runs of whitespace collapse to single spaces.
package html
