package extract_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"titlevault/internal/extract"
	"titlevault/internal/pkgcache"
	"titlevault/internal/testsupport"
)

func TestPackageResolverReadsRangedHeader(t *testing.T) {
	var requests int
	var rangeHeader string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		rangeHeader = r.Header.Get("Range")
		w.WriteHeader(http.StatusPartialContent)
		_, _ = w.Write(testsupport.PackageHeader(contentID, 123456789))
	}))
	defer server.Close()

	cache := pkgcache.NewCache(filepath.Join(t.TempDir(), "packages.json"), nil)
	resolver := extract.NewPackageResolver(extract.PackageConfig{UserAgent: "titlevault/test", Cache: cache})

	url := server.URL + "/cdn/EP1234/PCSG00001_00/game.pkg"
	info, err := resolver.Resolve(context.Background(), url)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if info.ContentID != contentID || info.Size != 123456789 {
		t.Fatalf("unexpected package info %+v", info)
	}
	if rangeHeader != "bytes=0-255" {
		t.Fatalf("unexpected Range header %q", rangeHeader)
	}

	if _, err := resolver.Resolve(context.Background(), url); err != nil {
		t.Fatalf("cached Resolve returned error: %v", err)
	}
	if requests != 1 {
		t.Fatalf("expected cache hit on second resolve, got %d requests", requests)
	}
}

func TestPackageResolverErrors(t *testing.T) {
	badMagic := testsupport.PackageHeader(contentID, 1)
	badMagic[1] = 'X'

	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    error
	}{
		{
			name:    "not found",
			handler: func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNotFound) },
			want:    extract.ErrUnreachablePackage,
		},
		{
			name:    "short body",
			handler: func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte{0x7F, 'P', 'K', 'G'}) },
			want:    extract.ErrMalformedPackage,
		},
		{
			name:    "bad magic",
			handler: func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write(badMagic) },
			want:    extract.ErrMalformedPackage,
		},
		{
			name: "invalid content id",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write(testsupport.PackageHeader("not-a-content-id", 1))
			},
			want: extract.ErrMalformedPackage,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(tc.handler)
			defer server.Close()

			resolver := extract.NewPackageResolver(extract.PackageConfig{})
			if _, err := resolver.Resolve(context.Background(), server.URL+"/x.pkg"); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestPackageResolverUnreachableHost(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL + "/gone.pkg"
	server.Close()

	resolver := extract.NewPackageResolver(extract.PackageConfig{})
	if _, err := resolver.Resolve(context.Background(), url); !errors.Is(err, extract.ErrUnreachablePackage) {
		t.Fatalf("expected ErrUnreachablePackage, got %v", err)
	}
}
