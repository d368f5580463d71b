package catalog_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"titlevault/internal/catalog"
	"titlevault/internal/testsupport"
)

func TestStoreInsertFindUpdateDelete(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	rec := &catalog.Record{
		CanonicalID: "EP1234-PCSG00001_00-0000000000000000",
		ShortID:     "PCSG00001",
		Category:    catalog.CategoryApp,
		Name:        "Gravity Rush",
		Locks:       catalog.LockCanonicalID,
	}
	if err := store.Insert(ctx, rec); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if rec.CreatedAt.IsZero() || rec.UpdatedAt.IsZero() {
		t.Fatal("expected timestamps to be stamped")
	}
	if err := store.Insert(ctx, rec.Clone()); !errors.Is(err, catalog.ErrExists) {
		t.Fatalf("expected ErrExists on duplicate insert, got %v", err)
	}

	got, err := store.Find(ctx, rec.CanonicalID)
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if got.Name != "Gravity Rush" || got.Category != catalog.CategoryApp || !got.Locks.Has(catalog.LockCanonicalID) {
		t.Fatalf("unexpected record %+v", got)
	}
	if got.ParentID != "" || got.PackageID != 0 || got.LicenseToken != "" {
		t.Fatalf("expected empty optional fields, got %+v", got)
	}

	got.AltName = "Gravity Daze"
	got.Locks = got.Locks.With(catalog.LockAltName)
	if err := store.Update(ctx, got); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	reloaded := testsupport.MustFind(t, store, rec.CanonicalID)
	if reloaded.AltName != "Gravity Daze" || !reloaded.Locks.Has(catalog.LockAltName) {
		t.Fatalf("update not persisted: %+v", reloaded)
	}

	if err := store.Delete(ctx, rec.CanonicalID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.Find(ctx, rec.CanonicalID); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := store.Delete(ctx, rec.CanonicalID); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("expected ErrNotFound deleting missing record, got %v", err)
	}
	if err := store.Update(ctx, rec); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("expected ErrNotFound updating missing record, got %v", err)
	}
}

func TestStoreUnknownCategoryStoredAsNull(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	rec := testsupport.SeedRecord(t, store, &catalog.Record{CanonicalID: "??????-PCSA00001_??-????????????????"})
	got := testsupport.MustFind(t, store, rec.CanonicalID)
	if got.Category != catalog.CategoryUnknown {
		t.Fatalf("expected unknown category, got %v", got.Category)
	}
	if got.ShortID != "PCSA00001" {
		t.Fatalf("expected short id derived by seed helper, got %q", got.ShortID)
	}
}

func TestStoreAllIsRestartable(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	ids := []string{
		"EP1234-PCSG00002_00-0000000000000000",
		"EP1234-PCSA00001_00-0000000000000000",
		"EP1234-PCSG00001_00-0000000000000000",
	}
	for _, id := range ids {
		testsupport.SeedRecord(t, store, &catalog.Record{CanonicalID: id})
	}

	collect := func() []string {
		var out []string
		for rec, err := range store.All(ctx) {
			if err != nil {
				t.Fatalf("All yielded error: %v", err)
			}
			out = append(out, rec.ShortID)
		}
		return out
	}
	first := collect()
	want := []string{"PCSA00001", "PCSG00001", "PCSG00002"}
	if len(first) != len(want) {
		t.Fatalf("unexpected records %v", first)
	}
	for i := range want {
		if first[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, first)
		}
	}

	if err := store.Delete(ctx, ids[0]); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if second := collect(); len(second) != 2 {
		t.Fatalf("expected second iteration to observe delete, got %v", second)
	}

	for range store.All(ctx) {
		break
	}
	if n, err := store.Count(ctx); err != nil || n != 2 {
		t.Fatalf("Count = %d, %v", n, err)
	}
}

func TestStoreFindByShortIDNewestFirst(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	older := testsupport.SeedRecord(t, store, &catalog.Record{CanonicalID: "EP1234-PCSB00042_00-0000000000000000"})
	time.Sleep(2 * time.Millisecond)
	testsupport.SeedRecord(t, store, &catalog.Record{CanonicalID: "EP1234-PCSB00042_00-0000000000000001", Category: catalog.CategoryDLC})
	testsupport.SeedRecord(t, store, &catalog.Record{CanonicalID: "EP1234-PCSB00043_00-0000000000000000"})

	time.Sleep(2 * time.Millisecond)
	older.Name = "touched"
	if err := store.Update(ctx, older); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	recs, err := store.FindByShortID(ctx, "PCSB00042")
	if err != nil {
		t.Fatalf("FindByShortID failed: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[0].CanonicalID != older.CanonicalID {
		t.Fatalf("expected most recently updated first, got %s", recs[0].CanonicalID)
	}
	if none, err := store.FindByShortID(ctx, "PCSZ99999"); err != nil || len(none) != 0 {
		t.Fatalf("expected no records, got %v (%v)", none, err)
	}
}

func TestStorePackages(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	pkg := &catalog.Package{URL: "http://example.com/a.pkg", ContentID: "EP1234-PCSG00001_00-0000000000000000", Size: 1024}
	if err := store.InsertPackage(ctx, pkg); err != nil {
		t.Fatalf("InsertPackage failed: %v", err)
	}
	if pkg.ID == 0 {
		t.Fatal("expected package id to be assigned")
	}

	again := &catalog.Package{URL: "http://example.com/a.pkg"}
	if err := store.InsertPackage(ctx, again); err != nil {
		t.Fatalf("InsertPackage (existing) failed: %v", err)
	}
	if again.ID != pkg.ID || again.Size != 1024 {
		t.Fatalf("expected existing package to be reused, got %+v", again)
	}

	got, err := store.GetPackage(ctx, pkg.ID)
	if err != nil {
		t.Fatalf("GetPackage failed: %v", err)
	}
	if got.ContentID != pkg.ContentID {
		t.Fatalf("unexpected package %+v", got)
	}
	if _, err := store.FindPackageByURL(ctx, "http://example.com/missing.pkg"); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	rec := testsupport.SeedRecord(t, store, &catalog.Record{CanonicalID: pkg.ContentID, PackageID: pkg.ID, Locks: catalog.LockPackage})
	if testsupport.MustFind(t, store, rec.CanonicalID).PackageID != pkg.ID {
		t.Fatal("expected package reference to persist")
	}
}

func TestOpenRejectsSecondWriter(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.MustOpenStore(t, cfg)

	if _, err := catalog.Open(cfg); !errors.Is(err, catalog.ErrLocked) {
		t.Fatalf("expected ErrLocked for second writer, got %v", err)
	}
}

func TestOpenAfterCloseSucceeds(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := catalog.Open(cfg)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	testsupport.SeedRecord(t, store, &catalog.Record{CanonicalID: "EP1234-PCSG00001_00-0000000000000000"})
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened := testsupport.MustOpenStore(t, cfg)
	if n, err := reopened.Count(context.Background()); err != nil || n != 1 {
		t.Fatalf("expected persisted record after reopen, got %d (%v)", n, err)
	}
}

func TestCheckHealth(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.SeedRecord(t, store, &catalog.Record{CanonicalID: "EP1234-PCSG00001_00-0000000000000000"})

	health, err := store.CheckHealth(context.Background())
	if err != nil {
		t.Fatalf("CheckHealth failed: %v", err)
	}
	if !health.DatabaseExists || !health.DatabaseReadable || !health.IntegrityCheck {
		t.Fatalf("unexpected health %+v", health)
	}
	if len(health.MissingColumns) != 0 {
		t.Fatalf("unexpected missing columns %v", health.MissingColumns)
	}
	if health.TotalRecords != 1 || health.SchemaVersion != 1 {
		t.Fatalf("unexpected counts %+v", health)
	}
}

func TestOpenRejectsOtherSchemaVersion(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	db, err := sql.Open("sqlite", cfg.DatabasePath())
	if err != nil {
		t.Fatalf("open raw db: %v", err)
	}
	if _, err := db.Exec("PRAGMA user_version = 9"); err != nil {
		t.Fatalf("bump user_version: %v", err)
	}
	_ = db.Close()

	if _, err := catalog.Open(cfg); !errors.Is(err, catalog.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}

func TestOpenRejectsUnversionedDatabase(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure dirs: %v", err)
	}
	db, err := sql.Open("sqlite", cfg.DatabasePath())
	if err != nil {
		t.Fatalf("open raw db: %v", err)
	}
	if _, err := db.Exec("CREATE TABLE something_else (id INTEGER)"); err != nil {
		t.Fatalf("create table: %v", err)
	}
	_ = db.Close()

	if _, err := catalog.Open(cfg); !errors.Is(err, catalog.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}

func TestStoreWritesRecordWithPackageAtomically(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	const id = "EP1234-PCSG00001_00-0000000000000000"

	pkg := &catalog.Package{URL: "http://example.com/a.pkg", ContentID: id, Size: 512}
	rec := &catalog.Record{CanonicalID: id, ShortID: "PCSG00001", Locks: catalog.LockPackage}
	if err := store.InsertWithPackage(ctx, rec, pkg); err != nil {
		t.Fatalf("InsertWithPackage failed: %v", err)
	}
	if pkg.ID == 0 || rec.PackageID != pkg.ID {
		t.Fatalf("expected record linked to new package, got rec=%d pkg=%d", rec.PackageID, pkg.ID)
	}
	if got := testsupport.MustFind(t, store, id); got.PackageID != pkg.ID {
		t.Fatalf("persisted package id %d, want %d", got.PackageID, pkg.ID)
	}

	missing := &catalog.Record{CanonicalID: "EP1234-PCSG00002_00-0000000000000000", ShortID: "PCSG00002"}
	orphan := &catalog.Package{URL: "http://example.com/b.pkg", ContentID: missing.CanonicalID}
	if err := store.UpdateWithPackage(ctx, missing, orphan); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("expected ErrNotFound updating a missing record, got %v", err)
	}
	if _, err := store.FindPackageByURL(ctx, orphan.URL); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("package of a failed write must be rolled back, got %v", err)
	}
	if orphan.ID != 0 {
		t.Fatalf("rolled back package kept id %d", orphan.ID)
	}
}
