package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"titlevault/internal/catalog"
	"titlevault/internal/logging"
	"titlevault/internal/textutil"
)

// Row is one catalog entry supplied by an import driver. A nil field is
// absent, which is distinct from an empty value.
type Row struct {
	ShortID      *string
	CanonicalID  *string
	Name         *string
	AltName      *string
	PackageURL   *string
	LicenseToken *string
	Category     *catalog.Category
	// DefaultCategory applies when neither a short-ID marker nor Category is present.
	DefaultCategory catalog.Category
}

// Field returns a pointer to s for building rows.
func Field(s string) *string { return &s }

// OutcomeKind classifies the result of MergeAndUpsert.
type OutcomeKind int

const (
	OutcomeInserted OutcomeKind = iota + 1
	OutcomeUpdated
	OutcomeUnchanged
	OutcomeRejected
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeInserted:
		return "inserted"
	case OutcomeUpdated:
		return "updated"
	case OutcomeUnchanged:
		return "unchanged"
	case OutcomeRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Outcome is the per-row result of MergeAndUpsert.
type Outcome struct {
	Kind        OutcomeKind
	CanonicalID string
	// Reason is a *RejectError when Kind is OutcomeRejected.
	Reason error
	// Warnings lists discarded candidate identities.
	Warnings []error
}

// LicenseDecoder extracts the canonical ID carried by a license token.
type LicenseDecoder interface {
	ContentID(token string) (string, error)
}

// PackageInfo is the metadata read from a package header.
type PackageInfo struct {
	ContentID string
	Size      int64
}

// PackageResolver reads the canonical ID and size from a package URL.
type PackageResolver interface {
	Resolve(ctx context.Context, url string) (PackageInfo, error)
}

// Store is the catalog surface the engine needs.
type Store interface {
	RecordStore
	ShortIDLookup
	FindPackageByURL(ctx context.Context, url string) (*catalog.Package, error)
}

// Engine reconciles rows into the catalog.
type Engine struct {
	store      Store
	classifier *Classifier
	license    LicenseDecoder
	packages   PackageResolver
	logger     *slog.Logger
}

// NewEngine wires an Engine. license and packages may be nil, in which case
// the corresponding evidence is ignored.
func NewEngine(store Store, license LicenseDecoder, packages PackageResolver, logger *slog.Logger) *Engine {
	return &Engine{
		store:      store,
		classifier: NewClassifier(store),
		license:    license,
		packages:   packages,
		logger:     logging.NewComponentLogger(logger, "reconcile"),
	}
}

// MergeAndUpsert resolves row to a single canonical ID, classifies it and
// upserts it. Per-row problems yield an OutcomeRejected; the returned error
// is reserved for store failures. Cancellation is the caller's concern: a row
// that has started is expected to run under a context that is not cancelled.
func (e *Engine) MergeAndUpsert(ctx context.Context, row Row) (Outcome, error) {
	logger := logging.WithContext(ctx, e.logger)

	rawShort := strings.TrimSpace(deref(row.ShortID))
	packageURL := cleanPackageURL(deref(row.PackageURL))
	token := cleanLicenseToken(deref(row.LicenseToken))

	var warnings []error
	candidates := []Candidate{{Source: SourceRowDirect, ID: deref(row.CanonicalID)}}

	var pkg *catalog.Package
	if packageURL != "" {
		resolved, err := e.resolvePackage(ctx, packageURL)
		switch {
		case err == nil:
			pkg = resolved
			candidates = append(candidates, Candidate{Source: SourcePackageURL, ID: resolved.ContentID})
		case isStoreError(err):
			return Outcome{}, err
		default:
			warnings = append(warnings, fmt.Errorf("%w: package url %s: %w", ErrInvalidIdentity, packageURL, err))
		}
	}
	if token != "" && token != catalog.LicenseNotRequired && e.license != nil {
		id, err := e.license.ContentID(token)
		if err != nil {
			warnings = append(warnings, fmt.Errorf("%w: license token: %w", ErrInvalidIdentity, err))
		} else {
			candidates = append(candidates, Candidate{Source: SourceLicenseToken, ID: id})
		}
	}

	res, err := MergeEvidence(candidates)
	warnings = append(warnings, res.Discarded...)
	e.logWarnings(logger, rawShort, warnings)
	if err != nil {
		return e.rejected(logger, err, warnings), nil
	}
	if !res.Locks.Has(catalog.LockPackage) {
		pkg = nil
	}

	shortID, err := ResolveShortID(rawShort, res.CanonicalID)
	if err != nil {
		return e.rejected(logger, err, warnings), nil
	}
	markerSource := rawShort
	if markerSource == "" {
		markerSource = shortID
	}
	category := InferCategory(markerSource, row.Category, row.DefaultCategory)

	canonicalID := res.CanonicalID
	if err := GateAddon(category, canonicalID, shortID); err != nil {
		return e.rejected(logger, err, warnings), nil
	}
	if canonicalID == "" {
		canonicalID, err = e.classifier.PlaceholderFor(ctx, shortID)
		if err != nil {
			return Outcome{}, err
		}
	}
	if err := CrossCheck(canonicalID, shortID); err != nil {
		return e.rejected(logger, err, warnings), nil
	}

	candidate := &catalog.Record{
		CanonicalID:  canonicalID,
		ShortID:      shortID,
		Category:     category,
		Name:         textutil.NormalizeName(deref(row.Name)),
		AltName:      textutil.NormalizeName(deref(row.AltName)),
		LicenseToken: token,
		Locks:        res.Locks,
	}
	if category.IsAddon() {
		parent, err := e.classifier.ParentFor(ctx, shortID, canonicalID)
		if err != nil {
			return Outcome{}, err
		}
		candidate.ParentID = parent
	}
	result, err := Upsert(ctx, e.store, candidate, pkg)
	if err != nil {
		return Outcome{}, err
	}

	outcome := Outcome{CanonicalID: canonicalID, Warnings: warnings}
	switch result {
	case Inserted:
		outcome.Kind = OutcomeInserted
	case Updated:
		outcome.Kind = OutcomeUpdated
	default:
		outcome.Kind = OutcomeUnchanged
	}
	logger.Debug("row reconciled",
		logging.String("outcome", outcome.Kind.String()),
		logging.String(logging.FieldCanonicalID, canonicalID),
		logging.String(logging.FieldShortID, shortID),
		logging.String("category", category.String()),
		logging.String("provenance", res.Source.String()),
	)
	return outcome, nil
}

type storeError struct{ err error }

func (e storeError) Error() string { return e.err.Error() }
func (e storeError) Unwrap() error { return e.err }

func isStoreError(err error) bool {
	var se storeError
	return errors.As(err, &se)
}

func (e *Engine) resolvePackage(ctx context.Context, url string) (*catalog.Package, error) {
	existing, err := e.store.FindPackageByURL(ctx, url)
	switch {
	case err == nil && existing.ContentID != "":
		return existing, nil
	case err != nil && !errors.Is(err, catalog.ErrNotFound):
		return nil, storeError{err}
	}
	if e.packages == nil {
		return nil, errors.New("no package resolver configured")
	}
	info, err := e.packages.Resolve(ctx, url)
	if err != nil {
		return nil, err
	}
	pkg := &catalog.Package{URL: url, ContentID: info.ContentID, Size: info.Size}
	if existing != nil {
		pkg.ID = existing.ID
	}
	return pkg, nil
}

func (e *Engine) rejected(logger *slog.Logger, err error, warnings []error) Outcome {
	var rejectErr *RejectError
	if !errors.As(err, &rejectErr) {
		rejectErr = &RejectError{Kind: ErrInvalidIdentity, Detail: err.Error()}
	}
	logging.WarnWithContext(logger, "row rejected", "row_rejected",
		logging.String("reason", ReasonLabel(rejectErr)),
		logging.String(logging.FieldShortID, rejectErr.ShortID),
		logging.Error(rejectErr),
		logging.String(logging.FieldErrorHint, rejectHint(rejectErr)),
		logging.String(logging.FieldImpact, "row skipped, nothing committed"),
	)
	return Outcome{Kind: OutcomeRejected, Reason: rejectErr, Warnings: warnings}
}

func (e *Engine) logWarnings(logger *slog.Logger, shortID string, warnings []error) {
	for _, w := range warnings {
		logging.WarnWithContext(logger, "candidate identity discarded", "identity_discarded",
			logging.String(logging.FieldShortID, shortID),
			logging.Error(w),
			logging.String(logging.FieldErrorHint, "check the source value"),
			logging.String(logging.FieldImpact, "row reconciled from the remaining evidence"),
		)
	}
}

func rejectHint(err *RejectError) string {
	switch {
	case errors.Is(err, ErrMismatchedIdentity):
		return "sources disagree; correct the row or the upstream data"
	case errors.Is(err, ErrUnresolvableAddon):
		return "supply a content id, package url or license token for add-ons"
	case errors.Is(err, ErrIdentityShortIDMismatch):
		return "title id column does not match the content id"
	default:
		return "fix the identifier in the source row"
	}
}

func cleanPackageURL(raw string) string {
	url := strings.TrimSpace(raw)
	if !strings.HasPrefix(url, "http") {
		return ""
	}
	if i := strings.IndexByte(url, '?'); i >= 0 {
		url = url[:i]
	}
	return url
}

func cleanLicenseToken(raw string) string {
	token := strings.TrimSpace(raw)
	switch {
	case token == "":
		return ""
	case textutil.ContainsFold(token, "not required"):
		return catalog.LicenseNotRequired
	case !strings.HasPrefix(token, catalog.LicenseTokenPrefix):
		return ""
	default:
		return token
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
