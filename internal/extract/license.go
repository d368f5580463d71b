package extract

import (
	"bytes"
	"compress/zlib"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrInvalidToken reports a license token that cannot be decoded.
var ErrInvalidToken = errors.New("invalid license token")

const (
	licenseContentIDOffset = 0x10
	contentIDLength        = 36
	maxLicenseBlob         = 64 << 10
)

// LicenseDecoder decodes compressed license tokens: base64 text wrapping a
// zlib stream deflated against a preset dictionary.
type LicenseDecoder struct {
	dict []byte
}

// NewLicenseDecoder returns a decoder using dict as the zlib preset dictionary.
func NewLicenseDecoder(dict []byte) *LicenseDecoder {
	return &LicenseDecoder{dict: bytes.Clone(dict)}
}

// LoadLicenseDecoder reads the preset dictionary from path.
func LoadLicenseDecoder(path string) (*LicenseDecoder, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("license dictionary path is not configured")
	}
	dict, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read license dictionary: %w", err)
	}
	if len(dict) == 0 {
		return nil, fmt.Errorf("license dictionary %s is empty", path)
	}
	return NewLicenseDecoder(dict), nil
}

// ContentID returns the content ID embedded in token. The value is not
// validated beyond being present; callers decide what a well-formed ID is.
func (d *LicenseDecoder) ContentID(token string) (string, error) {
	blob, err := d.Decode(token)
	if err != nil {
		return "", err
	}
	if len(blob) < licenseContentIDOffset+contentIDLength {
		return "", fmt.Errorf("%w: license blob is %d bytes", ErrInvalidToken, len(blob))
	}
	id := trimField(blob[licenseContentIDOffset : licenseContentIDOffset+contentIDLength])
	if id == "" {
		return "", fmt.Errorf("%w: empty content id", ErrInvalidToken)
	}
	return id, nil
}

// Decode returns the raw license blob carried by token.
func (d *LicenseDecoder) Decode(token string) ([]byte, error) {
	if d == nil || len(d.dict) == 0 {
		return nil, fmt.Errorf("%w: no dictionary loaded", ErrInvalidToken)
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(token))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	zr, err := zlib.NewReaderDict(bytes.NewReader(raw), d.dict)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	defer zr.Close()

	blob, err := io.ReadAll(io.LimitReader(zr, maxLicenseBlob))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return blob, nil
}

// trimField strips NUL padding and surrounding whitespace from a fixed-width
// binary field.
func trimField(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return strings.TrimSpace(string(b))
}
