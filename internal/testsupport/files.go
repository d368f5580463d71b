package testsupport

import (
	"bytes"
	"compress/zlib"
	"encoding/base64"
	"encoding/binary"
	"hash/adler32"
	"os"
	"path/filepath"
	"testing"
)

// WriteFile creates path with content, making parent directories as needed.
func WriteFile(t testing.TB, path, content string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// LicenseDictionary is a deterministic zlib preset dictionary for tests. Its
// checksum is chosen so encoded tokens start with the same "KO5i" prefix as
// real ones.
func LicenseDictionary() []byte {
	body := bytes.Repeat([]byte("titlevault-license-dictionary;"), 32)
	for i := 0; i < 1<<16; i++ {
		dict := append([]byte{byte(i), byte(i >> 8)}, body...)
		if adler32.Checksum(dict)>>24 == 0x62 {
			return dict
		}
	}
	panic("testsupport: no license dictionary with a matching checksum")
}

// LicenseToken builds a compressed license token whose decoded blob carries
// contentID at offset 0x10.
func LicenseToken(t testing.TB, dict []byte, contentID string) string {
	t.Helper()

	blob := make([]byte, 0x200)
	copy(blob[0x10:], contentID)

	var buf bytes.Buffer
	w, err := zlib.NewWriterLevelDict(&buf, zlib.BestCompression, dict)
	if err != nil {
		t.Fatalf("zlib writer: %v", err)
	}
	if _, err := w.Write(blob); err != nil {
		t.Fatalf("compress license blob: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close zlib writer: %v", err)
	}
	raw := buf.Bytes()
	// Real tokens use a 1 KiB window header; inflate ignores the window size.
	raw[0], raw[1] = 0x28, 0xEE
	return base64.StdEncoding.EncodeToString(raw)
}

// PackageHeader returns a 256-byte package header carrying contentID and size.
func PackageHeader(contentID string, size uint64) []byte {
	header := make([]byte, 256)
	copy(header, []byte{0x7F, 'P', 'K', 'G'})
	binary.BigEndian.PutUint64(header[0x18:], size)
	copy(header[0x30:], contentID)
	return header
}
