// Package store provides persistent action history for the relay using SQLite.
//
// # Architecture
//
// Store is the interface the gateway depends on. SQLiteStore implements it on
// modernc.org/sqlite (pure Go, no cgo); MockStore is an in-memory version for
// tests.
//
// # Data Models
//
//   - ActionRecord: one completed agent request with its terminal outcome
//   - ExtensionSession: one executor connection from attach to detach
//
// Values supplied to write actions are never stored; HasValue only records
// that one was present.
//
// # Timestamps
//
// Times are stored as fixed-width UTC strings so lexical order matches
// chronological order in ORDER BY and range filters.
package store
