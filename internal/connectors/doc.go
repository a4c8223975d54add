// Package connectors provides the source adapters that discover documents in
// public archives. Each subpackage knows one source: where its listings live,
// how to page through them, and what resume state to keep between runs.
//
// Adapters are collected into a Registry at startup by Defaults.
package connectors
