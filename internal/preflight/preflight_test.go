package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"titlevault/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckFileReadable(t *testing.T) {
	f := filepath.Join(t.TempDir(), "zrif.dict")
	testsupport.WriteFile(t, f, "dictionary")
	if result := CheckFileReadable("dict", f); !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
	if result := CheckFileReadable("dict", t.TempDir()); result.Passed {
		t.Fatal("expected failure for directory")
	}
	if result := CheckFileReadable("dict", filepath.Join(t.TempDir(), "missing")); result.Passed {
		t.Fatal("expected failure for missing file")
	}
}

func TestCheckFreeSpace(t *testing.T) {
	dir := t.TempDir()
	if result := CheckFreeSpace("volume", dir, 1); !result.Passed {
		t.Fatalf("expected pass with tiny minimum, got: %s", result.Detail)
	}
	if result := CheckFreeSpace("volume", dir, ^uint64(0)); result.Passed {
		t.Fatal("expected failure with impossible minimum")
	}
	if result := CheckFreeSpace("volume", filepath.Join(dir, "nope"), 1); result.Passed {
		t.Fatal("expected failure for missing path")
	}
}

func TestCheckRemoteSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if r.Header.Get("User-Agent") != "titlevault-test" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		if r.URL.Path == "/missing.csv" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if result := CheckRemoteSource(context.Background(), "apps", srv.URL+"/apps.csv", "titlevault-test"); !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
	if result := CheckRemoteSource(context.Background(), "apps", srv.URL+"/missing.csv", "titlevault-test"); result.Passed {
		t.Fatal("expected failure for 404")
	}
	if result := CheckRemoteSource(context.Background(), "apps", "", ""); result.Passed {
		t.Fatal("expected failure for empty url")
	}
}

func TestCheckRemoteSource_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	if result := CheckRemoteSource(context.Background(), "apps", url, ""); result.Passed {
		t.Fatal("expected failure for closed server")
	}
}

func TestRunAll(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithLicenseDictionary([]byte("dict")))
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	results := RunAll(context.Background(), cfg)
	names := map[string]bool{}
	for _, r := range results {
		names[r.Name] = true
		if r.Name != "Data volume" && !r.Passed {
			t.Fatalf("check %s failed: %s", r.Name, r.Detail)
		}
	}
	for _, want := range []string{"Data directory", "Data volume", "Log directory", "License dictionary"} {
		if !names[want] {
			t.Fatalf("missing check %q in %+v", want, results)
		}
	}
	if names["Apps spreadsheet"] {
		t.Fatal("remote checks must be skipped when no source is configured")
	}
}

func TestRunAll_MissingDirectories(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	results := RunAll(context.Background(), cfg)
	if AllPassed(results) {
		t.Fatal("expected failures for directories that were never created")
	}
	if RunAll(context.Background(), nil) != nil {
		t.Fatal("expected nil results for nil config")
	}
}
