// Package fetch implements the document fetchers and the discovery page client.
//
// HTTPFetcher streams bodies to a temporary file, hashing as it writes, and
// renames into place only on success. Aria2Fetcher handles magnet links by
// shelling out to aria2c. Router picks between them by URL scheme.
package fetch
