// Package sqlite wraps one embedded SQLite connection for concurrent use.
//
// A DB owns a single engine connection guarded by a mutex. Each public
// operation holds the mutex for exactly one logical engine operation, so
// goroutines sharing a DB never observe a half-finished statement, batch or
// migration run. A panic while the mutex is held poisons the handle; every
// later operation fails with ErrLockFailure.
//
// On top of the connection the package provides:
//
//	Run, Exec, Query       single statements, batches and row queries
//	Begin, Tx.Savepoint    transactions and nested savepoints
//	Migrate, InitSchema    versioned schema migrations (schema_version table)
//	Prepare, Stmt, Cursor  prepared statements backed by an LRU cache
//	Tables, Columns, ...   schema introspection and export
//
// Parameters are bound through value.Classify and results are decoded with
// value.Decoder, so callers work with the closed value.Value set rather than
// driver types.
package sqlite
