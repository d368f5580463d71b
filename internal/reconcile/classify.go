package reconcile

import (
	"context"
	"strings"

	"titlevault/internal/catalog"
	"titlevault/internal/identity"
	"titlevault/internal/textutil"
)

const (
	dlcMarker   = "dlc"
	themeMarker = "theme"
)

// InferCategory picks a category from markers in the raw short ID, then the
// row's explicit category, then the batch default.
func InferCategory(rawShortID string, explicit *catalog.Category, fallback catalog.Category) catalog.Category {
	switch {
	case textutil.ContainsFold(rawShortID, dlcMarker):
		return catalog.CategoryDLC
	case textutil.ContainsFold(rawShortID, themeMarker):
		return catalog.CategoryTheme
	case explicit != nil:
		return *explicit
	default:
		return fallback
	}
}

// ShortIDLookup finds records sharing a short ID, most recently updated first.
type ShortIDLookup interface {
	FindByShortID(ctx context.Context, shortID string) ([]*catalog.Record, error)
}

// Classifier assigns placeholder identities and parent links from catalog lookups.
type Classifier struct {
	lookup ShortIDLookup
}

// NewClassifier constructs a Classifier backed by lookup.
func NewClassifier(lookup ShortIDLookup) *Classifier {
	return &Classifier{lookup: lookup}
}

// GateAddon rejects add-on categories that lack a resolved identity.
func GateAddon(category catalog.Category, canonicalID, shortID string) error {
	if category.IsAddon() && !identity.IsResolved(canonicalID) {
		return reject(ErrUnresolvableAddon, shortID, "%s record has no resolved canonical id", category)
	}
	return nil
}

// CrossCheck verifies that canonicalID embeds shortID.
func CrossCheck(canonicalID, shortID string) error {
	if !strings.Contains(canonicalID, shortID) {
		return reject(ErrIdentityShortIDMismatch, shortID, "canonical id %s does not contain short id", canonicalID)
	}
	return nil
}

// PlaceholderFor returns the canonical ID of the most recently updated base
// record sharing shortID, preferring resolved records, or a synthesized
// placeholder when there is none.
func (c *Classifier) PlaceholderFor(ctx context.Context, shortID string) (string, error) {
	base, err := c.baseRecord(ctx, shortID, "")
	if err != nil {
		return "", err
	}
	if base != nil {
		return base.CanonicalID, nil
	}
	return identity.Placeholder(shortID), nil
}

// ParentFor returns the canonical ID of the base record an add-on with
// shortID bundles into, or "" when there is none.
func (c *Classifier) ParentFor(ctx context.Context, shortID, self string) (string, error) {
	base, err := c.baseRecord(ctx, shortID, self)
	if err != nil || base == nil {
		return "", err
	}
	return base.CanonicalID, nil
}

func (c *Classifier) baseRecord(ctx context.Context, shortID, exclude string) (*catalog.Record, error) {
	records, err := c.lookup.FindByShortID(ctx, shortID)
	if err != nil {
		return nil, err
	}
	var fallback *catalog.Record
	for _, rec := range records {
		if rec.CanonicalID == exclude || !rec.Category.IsBase() {
			continue
		}
		if identity.IsResolved(rec.CanonicalID) {
			return rec, nil
		}
		if fallback == nil {
			fallback = rec
		}
	}
	return fallback, nil
}
