package reconcile

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"titlevault/internal/catalog"
	"titlevault/internal/identity"
)

// Source is the provenance of a candidate identity. Higher values win.
type Source int

const (
	SourceRowDirect Source = iota + 1
	SourceLicenseToken
	SourcePackageURL
)

func (s Source) String() string {
	switch s {
	case SourceRowDirect:
		return "row"
	case SourceLicenseToken:
		return "license_token"
	case SourcePackageURL:
		return "package_url"
	default:
		return "unknown"
	}
}

// Candidate is one independently derived canonical ID.
type Candidate struct {
	Source Source
	ID     string
}

// Resolution is the outcome of merging candidate identities.
type Resolution struct {
	// CanonicalID is empty when no candidate survived validation.
	CanonicalID string
	Source      Source
	// Locks holds the lock bits earned by the surviving provenance.
	Locks catalog.FieldLocks
	// Discarded lists candidates that failed validation, as ErrInvalidIdentity errors.
	Discarded []error
}

// Resolved reports whether a canonical ID was established.
func (r Resolution) Resolved() bool { return r.CanonicalID != "" }

// MergeEvidence resolves candidates to at most one canonical ID. Invalid
// candidates are discarded and reported in Discarded. Validated candidates
// that disagree produce a RejectError of kind ErrMismatchedIdentity listing
// every validated candidate. The result does not depend on candidate order.
func MergeEvidence(candidates []Candidate) (Resolution, error) {
	ordered := slices.Clone(candidates)
	slices.SortStableFunc(ordered, func(a, b Candidate) int {
		if c := cmp.Compare(b.Source, a.Source); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})

	var res Resolution
	var valid []Candidate
	for _, c := range ordered {
		id := strings.TrimSpace(c.ID)
		if id == "" {
			continue
		}
		if !identity.ValidateCanonicalID(id) {
			res.Discarded = append(res.Discarded,
				fmt.Errorf("%w: %s candidate %q", ErrInvalidIdentity, c.Source, id))
			continue
		}
		valid = append(valid, Candidate{Source: c.Source, ID: id})
	}
	if len(valid) == 0 {
		return res, nil
	}

	for _, c := range valid[1:] {
		if c.ID != valid[0].ID {
			return res, &RejectError{
				Kind:      ErrMismatchedIdentity,
				ShortID:   identity.ShortIDOf(valid[0].ID),
				Detail:    "sources disagree on canonical id",
				Conflicts: valid,
			}
		}
	}

	res.CanonicalID = valid[0].ID
	res.Source = valid[0].Source
	res.Locks = catalog.LockCanonicalID
	for _, c := range valid {
		if c.Source == SourcePackageURL {
			res.Locks = res.Locks.With(catalog.LockPackage)
		}
	}
	return res, nil
}

// ResolveShortID derives the short ID from canonicalID when raw is empty,
// otherwise truncates raw to nine characters and validates it.
func ResolveShortID(raw, canonicalID string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		if canonicalID == "" {
			return "", reject(ErrInvalidIdentity, "", "row has neither short id nor canonical id")
		}
		return identity.ShortIDOf(canonicalID), nil
	}
	short, err := identity.NormalizeShortID(raw)
	if err != nil {
		return "", &RejectError{Kind: ErrInvalidIdentity, ShortID: raw, Detail: "short id does not match the title-code grammar"}
	}
	return short, nil
}
