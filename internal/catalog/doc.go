// Package catalog persists catalog records in SQLite.
//
// The Store is the single source of truth for records and the package
// artifacts they reference. It applies WAL pragmas, retries busy writes with a
// short backoff, and holds an exclusive file lock next to the database so only
// one writer process can mutate the catalog at a time. The schema is embedded
// and gated by PRAGMA user_version; a mismatch fails Open with ErrSchemaMismatch.
//
// Lookups that find nothing return ErrNotFound. Callers treat it as an
// existence answer rather than a failure.
package catalog
