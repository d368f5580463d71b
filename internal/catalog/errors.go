package catalog

import "errors"

var (
	// ErrNotFound reports a lookup that matched nothing.
	ErrNotFound = errors.New("catalog: not found")
	// ErrExists reports an insert whose key is already present.
	ErrExists = errors.New("catalog: already exists")
	// ErrLocked reports that another process holds the catalog writer lock.
	ErrLocked = errors.New("catalog: locked by another process")
	// ErrSchemaMismatch indicates the database schema version doesn't match the expected version.
	ErrSchemaMismatch = errors.New("catalog: schema version mismatch")
)
