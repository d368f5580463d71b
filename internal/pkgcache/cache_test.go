package pkgcache_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"titlevault/internal/pkgcache"
)

const pkgURL = "http://zeus.dl.playstation.net/cdn/UP1234/PCSE00001_00/abc.pkg"

func TestCacheStoreAndLookup(t *testing.T) {
	cache := pkgcache.NewCache(filepath.Join(t.TempDir(), "packages.json"), nil)

	entry := pkgcache.Entry{URL: pkgURL, ContentID: "UP1234-PCSE00001_00-0000000000000000", Size: 1 << 20}
	if err := cache.Store(entry); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	found, ok := cache.Lookup(" " + pkgURL + " ")
	if !ok {
		t.Fatal("Lookup failed to find stored entry")
	}
	if found.ContentID != entry.ContentID || found.Size != entry.Size {
		t.Fatalf("unexpected entry %+v", found)
	}
	if found.CachedAt.IsZero() {
		t.Fatal("expected CachedAt to be stamped")
	}
}

func TestCacheLookupMisses(t *testing.T) {
	cache := pkgcache.NewCache(filepath.Join(t.TempDir(), "packages.json"), nil)
	for _, url := range []string{"", "   ", "http://example.com/missing.pkg"} {
		if _, ok := cache.Lookup(url); ok {
			t.Fatalf("expected miss for %q", url)
		}
	}
}

func TestCacheRemoveAndClear(t *testing.T) {
	cache := pkgcache.NewCache(filepath.Join(t.TempDir(), "packages.json"), nil)
	for i, url := range []string{"http://a/1.pkg", "http://a/2.pkg", "http://a/3.pkg"} {
		if err := cache.Store(pkgcache.Entry{URL: url, Size: int64(i)}); err != nil {
			t.Fatalf("Store failed: %v", err)
		}
	}

	if err := cache.Remove("http://a/2.pkg"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if err := cache.Remove("http://a/2.pkg"); err == nil {
		t.Fatal("expected error removing absent entry")
	}
	if cache.Count() != 2 {
		t.Fatalf("expected 2 entries, got %d", cache.Count())
	}
	if err := cache.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if cache.Count() != 0 || len(cache.List()) != 0 {
		t.Fatal("expected empty cache after Clear")
	}
}

func TestCacheListNewestFirst(t *testing.T) {
	cache := pkgcache.NewCache(filepath.Join(t.TempDir(), "packages.json"), nil)
	now := time.Now()
	for _, e := range []pkgcache.Entry{
		{URL: "http://a/old.pkg", CachedAt: now.Add(-2 * time.Hour)},
		{URL: "http://a/new.pkg", CachedAt: now},
		{URL: "http://a/mid.pkg", CachedAt: now.Add(-time.Hour)},
	} {
		if err := cache.Store(e); err != nil {
			t.Fatalf("Store failed: %v", err)
		}
	}
	list := cache.List()
	if len(list) != 3 || list[0].URL != "http://a/new.pkg" || list[2].URL != "http://a/old.pkg" {
		t.Fatalf("unexpected order %+v", list)
	}
}

func TestCachePersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "packages.json")
	first := pkgcache.NewCache(path, nil)
	if err := first.Store(pkgcache.Entry{URL: pkgURL, ContentID: "UP1234-PCSE00001_00-0000000000000000", Size: 42}); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	second := pkgcache.NewCache(path, nil)
	found, ok := second.Lookup(pkgURL)
	if !ok || found.Size != 42 {
		t.Fatalf("expected persisted entry, got %+v (ok=%v)", found, ok)
	}
}

func TestCacheDisabledWithEmptyPath(t *testing.T) {
	cache := pkgcache.NewCache("", nil)
	if err := cache.Store(pkgcache.Entry{URL: pkgURL}); err != nil {
		t.Fatalf("Store on disabled cache failed: %v", err)
	}
	if _, ok := cache.Lookup(pkgURL); ok {
		t.Fatal("disabled cache should never hit")
	}
	if cache.Count() != 0 {
		t.Fatal("disabled cache should be empty")
	}
}

func TestCacheCorruptFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "packages.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write corrupt cache: %v", err)
	}
	cache := pkgcache.NewCache(path, nil)
	if cache.Count() != 0 {
		t.Fatalf("expected empty cache, got %d", cache.Count())
	}
	if err := cache.Store(pkgcache.Entry{URL: pkgURL}); err != nil {
		t.Fatalf("Store after corrupt load failed: %v", err)
	}
}
