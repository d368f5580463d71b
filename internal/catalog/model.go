package catalog

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Category is the closed set of record kinds.
type Category int

const (
	CategoryUnknown Category = 0
	CategoryApp     Category = 1
	CategoryDemo    Category = 3
	CategoryDLC     Category = 101
	CategoryTheme   Category = 201
	CategoryPSM     Category = 601
)

// addonThreshold separates base kinds from add-on kinds.
const addonThreshold = 100

var categoryNames = map[Category]string{
	CategoryUnknown: "unknown",
	CategoryApp:     "app",
	CategoryDemo:    "demo",
	CategoryDLC:     "dlc",
	CategoryTheme:   "theme",
	CategoryPSM:     "psm",
}

// IsBase reports whether c is a base kind. Unknown counts as base.
func (c Category) IsBase() bool { return c < addonThreshold }

// IsAddon reports whether c is an add-on kind that must bundle into a base record.
func (c Category) IsAddon() bool { return c >= addonThreshold }

// Valid reports whether c is a member of the enumeration.
func (c Category) Valid() bool {
	_, ok := categoryNames[c]
	return ok
}

func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return strconv.Itoa(int(c))
}

// ParseCategory accepts a category name or its numeric value. The empty
// string parses as CategoryUnknown.
func ParseCategory(raw string) (Category, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	if value == "" {
		return CategoryUnknown, nil
	}
	if n, err := strconv.Atoi(value); err == nil {
		c := Category(n)
		if !c.Valid() {
			return CategoryUnknown, fmt.Errorf("unknown category %d", n)
		}
		return c, nil
	}
	switch value {
	case "apps", "game", "games":
		return CategoryApp, nil
	case "themes":
		return CategoryTheme, nil
	case "dlcs", "addon", "addons":
		return CategoryDLC, nil
	}
	for c, name := range categoryNames {
		if name == value {
			return c, nil
		}
	}
	return CategoryUnknown, fmt.Errorf("unknown category %q", raw)
}

// FieldLocks marks fields whose value came from an authoritative source.
type FieldLocks uint16

const (
	LockCanonicalID FieldLocks = 1 << iota
	LockName
	LockAltName
	LockCategory
	LockParentID
	LockPackage
	LockLicenseToken
)

// LockFields lists every lock bit in declaration order.
var LockFields = []FieldLocks{
	LockCanonicalID,
	LockName,
	LockAltName,
	LockCategory,
	LockParentID,
	LockPackage,
	LockLicenseToken,
}

var lockNames = map[FieldLocks]string{
	LockCanonicalID:  "canonical_id",
	LockName:         "name",
	LockAltName:      "alt_name",
	LockCategory:     "category",
	LockParentID:     "parent_id",
	LockPackage:      "package",
	LockLicenseToken: "license_token",
}

func (l FieldLocks) Has(field FieldLocks) bool { return l&field == field }

func (l FieldLocks) With(field FieldLocks) FieldLocks { return l | field }

func (l FieldLocks) Without(field FieldLocks) FieldLocks { return l &^ field }

func (l FieldLocks) String() string {
	if l == 0 {
		return "none"
	}
	names := make([]string, 0, len(LockFields))
	for _, field := range LockFields {
		if l.Has(field) {
			names = append(names, lockNames[field])
		}
	}
	return strings.Join(names, "|")
}

// LicenseNotRequired is the license-token sentinel for content that needs no license.
const LicenseNotRequired = "NOT REQUIRED"

// LicenseTokenPrefix starts every compressed license token stored in the
// catalog. Tokens with a custom zlib window exist but are not accepted.
const LicenseTokenPrefix = "KO5i"

// Record is one catalog entry.
type Record struct {
	CanonicalID  string
	ShortID      string
	Category     Category
	ParentID     string
	Name         string
	AltName      string
	PackageID    int64
	LicenseToken string
	Locks        FieldLocks
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Clone returns a copy of r.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	cp := *r
	return &cp
}

// FieldEmpty reports whether the value guarded by the lock bit field is empty.
func (r *Record) FieldEmpty(field FieldLocks) bool {
	switch field {
	case LockCanonicalID:
		return r.CanonicalID == ""
	case LockName:
		return r.Name == ""
	case LockAltName:
		return r.AltName == ""
	case LockCategory:
		return r.Category == CategoryUnknown
	case LockParentID:
		return r.ParentID == ""
	case LockPackage:
		return r.PackageID == 0
	case LockLicenseToken:
		return r.LicenseToken == ""
	default:
		return true
	}
}

// Package is a package artifact referenced by records.
type Package struct {
	ID        int64
	URL       string
	ContentID string
	Size      int64
	CreatedAt time.Time
}
