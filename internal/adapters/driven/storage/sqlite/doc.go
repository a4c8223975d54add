// Package sqlite provides a unified SQLite-based implementation of driven port interfaces.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. It implements multiple store interfaces
// through a single database connection:
//
//   - DocumentStore: Document and download lifecycle persistence
//   - ExtractionStore: Extraction records with a store-wide revision counter
//   - SourceStateStore: Per-source resume state
//   - VectorRecordStore: Which extraction revision each document was embedded from
//   - LexicalIndex: FTS5 full-text index with BM25 ranking
//   - SchedulerStore: Scheduled task state and history
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
//
// # Data Location
//
// The database is stored at <data-dir>/dossier.db
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking provided
// by SQLite in WAL mode; write transactions take the write lock up front.
package sqlite
