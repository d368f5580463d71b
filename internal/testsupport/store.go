package testsupport

import (
	"context"
	"testing"

	"titlevault/internal/catalog"
	"titlevault/internal/config"
)

// MustOpenStore opens a catalog.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *catalog.Store {
	t.Helper()

	store, err := catalog.Open(cfg)
	if err != nil {
		t.Fatalf("catalog.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// SeedRecord inserts rec and returns it, failing the test on error.
func SeedRecord(t testing.TB, store *catalog.Store, rec *catalog.Record) *catalog.Record {
	t.Helper()

	if rec.ShortID == "" && len(rec.CanonicalID) >= 16 {
		rec.ShortID = rec.CanonicalID[7:16]
	}
	if err := store.Insert(context.Background(), rec); err != nil {
		t.Fatalf("store.Insert(%s): %v", rec.CanonicalID, err)
	}
	return rec
}

// MustFind fetches a record that must exist.
func MustFind(t testing.TB, store *catalog.Store, canonicalID string) *catalog.Record {
	t.Helper()

	rec, err := store.Find(context.Background(), canonicalID)
	if err != nil {
		t.Fatalf("store.Find(%s): %v", canonicalID, err)
	}
	return rec
}
