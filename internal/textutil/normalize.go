package textutil

import (
	"strings"

	"golang.org/x/text/cases"
)

var lineBreakReplacer = strings.NewReplacer(
	"\r\n", " ",
	"\r", " ",
	"\n", " ",
	"\u0085", " ",
	"\u2028", " ",
	"\u2029", " ",
)

// NormalizeName replaces every line break with a single space and trims
// surrounding whitespace.
func NormalizeName(value string) string {
	return strings.TrimSpace(lineBreakReplacer.Replace(value))
}

// IsNormalizedName reports whether NormalizeName would leave value unchanged.
func IsNormalizedName(value string) bool {
	return NormalizeName(value) == value
}

var folder = cases.Fold()

// ContainsFold reports whether substr occurs in s under Unicode case folding.
func ContainsFold(s, substr string) bool {
	return strings.Contains(folder.String(s), folder.String(substr))
}
