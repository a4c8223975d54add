// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - SourceAdapter: Discovers document descriptors for one source
//   - PageClient: Fetches listing pages and API responses during discovery
//   - Fetcher: Downloads document bytes to disk
//   - DocumentStore, ExtractionStore, SourceStateStore: Metadata persistence
//   - TextExtractor: Turns stored files into page text
//   - LexicalIndex: Full-text search (SQLite FTS5, BM25 ranking)
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - VectorIndex: Chunk embeddings storage/search. Only enabled when EmbeddingService is configured.
//   - EmbeddingService: Generates vector embeddings. Without it, ingestion and chat are disabled.
//   - ChatProvider: Streaming generation. Without one, chat is disabled.
//   - CallerLimiter: Per-caller request budget for chat.
//   - Metrics: Pipeline counters.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter, connector, or service package
package driven
