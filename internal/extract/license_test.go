package extract_test

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"titlevault/internal/extract"
	"titlevault/internal/testsupport"
)

const contentID = "EP1234-PCSG00001_00-0000000000000000"

func TestLicenseDecoderReadsContentID(t *testing.T) {
	dict := testsupport.LicenseDictionary()
	token := testsupport.LicenseToken(t, dict, contentID)
	if !strings.HasPrefix(token, "KO5i") {
		t.Fatalf("expected test token to carry the usual prefix, got %q", token[:8])
	}

	got, err := extract.NewLicenseDecoder(dict).ContentID(token)
	if err != nil {
		t.Fatalf("ContentID returned error: %v", err)
	}
	if got != contentID {
		t.Fatalf("got %q want %q", got, contentID)
	}
}

func TestLicenseDecoderRejectsGarbage(t *testing.T) {
	decoder := extract.NewLicenseDecoder(testsupport.LicenseDictionary())
	for _, token := range []string{"", "not base64 !!", "KO5iAAAA"} {
		if _, err := decoder.ContentID(token); !errors.Is(err, extract.ErrInvalidToken) {
			t.Fatalf("token %q: expected ErrInvalidToken, got %v", token, err)
		}
	}
}

func TestLicenseDecoderWrongDictionary(t *testing.T) {
	token := testsupport.LicenseToken(t, testsupport.LicenseDictionary(), contentID)
	other := extract.NewLicenseDecoder([]byte("some other dictionary"))
	if _, err := other.ContentID(token); !errors.Is(err, extract.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken with a foreign dictionary, got %v", err)
	}
}

func TestLoadLicenseDecoderFromConfig(t *testing.T) {
	dict := testsupport.LicenseDictionary()
	cfg := testsupport.NewConfig(t, testsupport.WithLicenseDictionary(dict))

	decoder, err := extract.LoadLicenseDecoder(cfg.License.ZRIFDictionaryPath)
	if err != nil {
		t.Fatalf("LoadLicenseDecoder: %v", err)
	}
	if got, err := decoder.ContentID(testsupport.LicenseToken(t, dict, contentID)); err != nil || got != contentID {
		t.Fatalf("unexpected decode %q, %v", got, err)
	}

	if _, err := extract.LoadLicenseDecoder(""); err == nil {
		t.Fatal("expected error for unconfigured dictionary")
	}
	if _, err := extract.LoadLicenseDecoder(filepath.Join(t.TempDir(), "missing.bin")); err == nil {
		t.Fatal("expected error for missing dictionary")
	}
}
