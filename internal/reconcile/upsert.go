package reconcile

import (
	"context"
	"errors"
	"fmt"

	"titlevault/internal/catalog"
	"titlevault/internal/textutil"
)

// UpsertResult reports which mutation Upsert performed.
type UpsertResult int

const (
	Unchanged UpsertResult = iota
	Inserted
	Updated
)

func (r UpsertResult) String() string {
	switch r {
	case Inserted:
		return "inserted"
	case Updated:
		return "updated"
	default:
		return "unchanged"
	}
}

// RecordStore is the subset of the catalog store used by Upsert. Both
// writes register pkg in the same transaction when it has no ID yet.
type RecordStore interface {
	Find(ctx context.Context, canonicalID string) (*catalog.Record, error)
	InsertWithPackage(ctx context.Context, rec *catalog.Record, pkg *catalog.Package) error
	UpdateWithPackage(ctx context.Context, rec *catalog.Record, pkg *catalog.Package) error
}

// Upsert merges candidate into the record with the same canonical ID. Locked
// fields of an existing record are never overwritten, unlocked fields take
// non-empty candidate values, and candidate lock bits are added. pkg, when
// not nil, is the package the evidence points at; an unregistered pkg is
// written only if the merged record adopts it. Upsert issues at most one
// store mutation and none when the merge changes nothing.
func Upsert(ctx context.Context, store RecordStore, candidate *catalog.Record, pkg *catalog.Package) (UpsertResult, error) {
	candidate.Name = textutil.NormalizeName(candidate.Name)
	candidate.AltName = textutil.NormalizeName(candidate.AltName)
	if pkg != nil && pkg.ID != 0 {
		candidate.PackageID = pkg.ID
		pkg = nil
	}

	existing, err := store.Find(ctx, candidate.CanonicalID)
	if errors.Is(err, catalog.ErrNotFound) {
		if err := store.InsertWithPackage(ctx, candidate, pkg); err != nil {
			return Unchanged, err
		}
		return Inserted, nil
	}
	if err != nil {
		return Unchanged, err
	}

	merged, changed := mergeRecord(existing, candidate)
	if pkg != nil {
		if existing.Locks.Has(catalog.LockPackage) {
			pkg = nil
		} else {
			changed = true
		}
	}
	if !changed {
		return Unchanged, nil
	}
	if err := store.UpdateWithPackage(ctx, merged, pkg); err != nil {
		return Unchanged, fmt.Errorf("update %s: %w", merged.CanonicalID, err)
	}
	return Updated, nil
}

func mergeRecord(existing, candidate *catalog.Record) (*catalog.Record, bool) {
	merged := existing.Clone()
	locks := existing.Locks

	mergeString(&merged.Name, candidate.Name, locks.Has(catalog.LockName))
	mergeString(&merged.AltName, candidate.AltName, locks.Has(catalog.LockAltName))
	mergeString(&merged.ParentID, candidate.ParentID, locks.Has(catalog.LockParentID))
	// The sentinel never replaces a real token.
	if candidate.LicenseToken != catalog.LicenseNotRequired || existing.LicenseToken == "" {
		mergeString(&merged.LicenseToken, candidate.LicenseToken, locks.Has(catalog.LockLicenseToken))
	}
	if candidate.ShortID != "" {
		merged.ShortID = candidate.ShortID
	}
	if candidate.Category != catalog.CategoryUnknown && !locks.Has(catalog.LockCategory) {
		merged.Category = candidate.Category
	}
	if candidate.PackageID != 0 && !locks.Has(catalog.LockPackage) {
		merged.PackageID = candidate.PackageID
	}
	merged.Locks = locks | candidate.Locks

	changed := merged.ShortID != existing.ShortID ||
		merged.Category != existing.Category ||
		merged.ParentID != existing.ParentID ||
		merged.Name != existing.Name ||
		merged.AltName != existing.AltName ||
		merged.PackageID != existing.PackageID ||
		merged.LicenseToken != existing.LicenseToken ||
		merged.Locks != existing.Locks
	return merged, changed
}

func mergeString(dst *string, value string, locked bool) {
	if locked || value == "" {
		return
	}
	*dst = value
}
