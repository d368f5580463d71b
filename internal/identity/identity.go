package identity

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// CanonicalLength is the fixed length of a canonical ID.
	CanonicalLength = 36
	// ShortLength is the maximum length of a short ID.
	ShortLength = 9

	shortOffset = 7

	placeholderMarker = "???"
)

// ErrInvalidIdentity reports a malformed canonical or short ID.
var ErrInvalidIdentity = errors.New("invalid identity")

// ValidateCanonicalID reports whether s has the canonical 36-character shape
// and carries a valid short ID at offset 7. Placeholders are rejected.
func ValidateCanonicalID(s string) bool {
	if len(s) != CanonicalLength {
		return false
	}
	if s[6] != '-' || s[16] != '_' || s[19] != '-' {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch i {
		case 6, 16, 19:
			continue
		}
		if !isUpper(c) && !isDigit(c) {
			return false
		}
	}
	short := s[shortOffset : shortOffset+ShortLength]
	return len(short) == ShortLength && ValidateShortID(short)
}

// ValidateShortID reports whether s is a non-empty prefix of the title-code
// grammar: four upper-case letters followed by five digits.
func ValidateShortID(s string) bool {
	if s == "" || len(s) > ShortLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		if i < 4 {
			if !isUpper(s[i]) {
				return false
			}
			continue
		}
		if !isDigit(s[i]) {
			return false
		}
	}
	return true
}

// ShortIDOf returns the short ID embedded in a canonical or placeholder ID, or
// "" when id is too short to carry one.
func ShortIDOf(id string) string {
	if len(id) < shortOffset+ShortLength {
		return ""
	}
	return id[shortOffset : shortOffset+ShortLength]
}

// NormalizeShortID truncates raw to at most nine characters and validates the
// result.
func NormalizeShortID(raw string) (string, error) {
	short := strings.TrimSpace(raw)
	if len(short) > ShortLength {
		short = short[:ShortLength]
	}
	if !ValidateShortID(short) {
		return "", fmt.Errorf("%w: short id %q", ErrInvalidIdentity, raw)
	}
	return short, nil
}

// Placeholder synthesizes the stand-in canonical ID used for base records
// whose identity is unknown. short is padded with '?' to nine characters so
// the result always has the canonical length.
func Placeholder(short string) string {
	if len(short) > ShortLength {
		short = short[:ShortLength]
	}
	short += strings.Repeat("?", ShortLength-len(short))
	return "??????-" + short + "_??-????????????????"
}

// IsPlaceholder reports whether id is an unresolved placeholder identity.
func IsPlaceholder(id string) bool {
	return strings.HasPrefix(id, placeholderMarker)
}

// IsResolved reports whether id is non-empty and not a placeholder.
func IsResolved(id string) bool {
	return id != "" && !IsPlaceholder(id)
}

// IsBundleID reports whether id has the package-bundle shape, whose segment
// at offset 7 is not a title code starting with 'P'.
func IsBundleID(id string) bool {
	return len(id) > shortOffset && id[shortOffset] != 'P'
}

func isUpper(c byte) bool { return c >= 'A' && c <= 'Z' }

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
