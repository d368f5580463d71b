package maintenance

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"

	"titlevault/internal/catalog"
	"titlevault/internal/identity"
	"titlevault/internal/textutil"
)

func shortIDInconsistent(rec *catalog.Record) bool {
	if identity.ShortIDOf(rec.CanonicalID) == "" {
		return false
	}
	return rec.ShortID == "" || !strings.Contains(rec.CanonicalID, rec.ShortID)
}

func (e *Engine) shortIDConsistency(ctx context.Context, logger *slog.Logger, report *PassReport) error {
	keys, err := e.collect(ctx, shortIDInconsistent)
	if err != nil {
		return err
	}
	return e.repairEach(ctx, logger, report, keys, func(rec *catalog.Record) []Repair {
		if !shortIDInconsistent(rec) {
			return nil
		}
		before := rec.ShortID
		rec.ShortID = identity.ShortIDOf(rec.CanonicalID)
		return []Repair{{CanonicalID: rec.CanonicalID, Field: "short_id", Before: before, After: rec.ShortID}}
	})
}

// resolvablePlaceholders deletes placeholder records once a resolved base
// record with the same short ID exists. Children still pointing at the
// placeholder are left for the dangling-parent report.
func (e *Engine) resolvablePlaceholders(ctx context.Context, logger *slog.Logger, report *PassReport) error {
	type group struct {
		placeholders []string
		resolved     bool
	}
	groups := map[string]*group{}
	var order []string
	for rec, err := range e.store.All(ctx) {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		g, ok := groups[rec.ShortID]
		if !ok {
			g = &group{}
			groups[rec.ShortID] = g
			order = append(order, rec.ShortID)
		}
		switch {
		case identity.IsPlaceholder(rec.CanonicalID):
			g.placeholders = append(g.placeholders, rec.CanonicalID)
		case rec.Category.IsBase():
			g.resolved = true
		}
	}

	for _, short := range order {
		g := groups[short]
		if !g.resolved {
			continue
		}
		for _, id := range g.placeholders {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := e.retirePlaceholder(context.WithoutCancel(ctx), logger, report, id); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Engine) retirePlaceholder(ctx context.Context, logger *slog.Logger, report *PassReport, id string) error {
	rec, err := e.store.Find(ctx, id)
	if errors.Is(err, catalog.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	siblings, err := e.store.FindByShortID(ctx, rec.ShortID)
	if err != nil {
		return err
	}
	var replacement string
	for _, sib := range siblings {
		if identity.IsResolved(sib.CanonicalID) && sib.Category.IsBase() {
			replacement = sib.CanonicalID
			break
		}
	}
	if replacement == "" {
		return nil
	}
	if err := e.store.Delete(ctx, id); err != nil && !errors.Is(err, catalog.ErrNotFound) {
		return err
	}
	report.Repaired++
	rep := Repair{CanonicalID: id, Field: "record", Before: id, After: replacement}
	report.addRepair(rep)
	logRepair(logger, rep)
	return nil
}

func namesDenormalized(rec *catalog.Record) bool {
	return !textutil.IsNormalizedName(rec.Name) || !textutil.IsNormalizedName(rec.AltName)
}

func (e *Engine) nameNormalization(ctx context.Context, logger *slog.Logger, report *PassReport) error {
	keys, err := e.collect(ctx, namesDenormalized)
	if err != nil {
		return err
	}
	return e.repairEach(ctx, logger, report, keys, func(rec *catalog.Record) []Repair {
		var repairs []Repair
		for _, f := range []struct {
			name  string
			value *string
		}{
			{"name", &rec.Name},
			{"alt_name", &rec.AltName},
		} {
			clean := textutil.NormalizeName(*f.value)
			if clean == *f.value {
				continue
			}
			repairs = append(repairs, Repair{CanonicalID: rec.CanonicalID, Field: f.name, Before: *f.value, After: clean})
			*f.value = clean
		}
		return repairs
	})
}

// staleLocks returns the lock bits of rec whose field holds no value.
func staleLocks(rec *catalog.Record) catalog.FieldLocks {
	var stale catalog.FieldLocks
	for _, lock := range catalog.LockFields {
		if rec.Locks.Has(lock) && rec.FieldEmpty(lock) {
			stale = stale.With(lock)
		}
	}
	return stale
}

func (e *Engine) lockConsistency(ctx context.Context, logger *slog.Logger, report *PassReport) error {
	keys, err := e.collect(ctx, func(rec *catalog.Record) bool { return staleLocks(rec) != 0 })
	if err != nil {
		return err
	}
	return e.repairEach(ctx, logger, report, keys, func(rec *catalog.Record) []Repair {
		stale := staleLocks(rec)
		if stale == 0 {
			return nil
		}
		before := rec.Locks
		rec.Locks = rec.Locks &^ stale
		return []Repair{{CanonicalID: rec.CanonicalID, Field: "field_locks", Before: before.String(), After: rec.Locks.String()}}
	})
}

// parentIDs returns the distinct non-empty parent IDs referenced by records.
func (e *Engine) parentIDs(ctx context.Context) ([]string, error) {
	seen := map[string]struct{}{}
	var parents []string
	for rec, err := range e.store.All(ctx) {
		if err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if rec.ParentID == "" {
			continue
		}
		if _, ok := seen[rec.ParentID]; ok {
			continue
		}
		seen[rec.ParentID] = struct{}{}
		parents = append(parents, rec.ParentID)
	}
	return parents, nil
}

func (e *Engine) danglingParents(ctx context.Context, _ *slog.Logger, report *PassReport) error {
	return e.reportParents(ctx, report, func(parent *catalog.Record, id string) bool {
		return parent == nil && !identity.IsBundleID(id)
	})
}

func (e *Engine) addonParents(ctx context.Context, _ *slog.Logger, report *PassReport) error {
	return e.reportParents(ctx, report, func(parent *catalog.Record, _ string) bool {
		return parent != nil && parent.Category.IsAddon()
	})
}

// reportParents lists parent IDs for which flag holds, sorted by the short
// ID they embed. parent is nil when the ID does not resolve.
func (e *Engine) reportParents(ctx context.Context, report *PassReport, flag func(parent *catalog.Record, id string) bool) error {
	parents, err := e.parentIDs(ctx)
	if err != nil {
		return err
	}
	for _, id := range parents {
		if err := ctx.Err(); err != nil {
			return err
		}
		parent, err := e.store.Find(ctx, id)
		if errors.Is(err, catalog.ErrNotFound) {
			parent, err = nil, nil
		}
		if err != nil {
			return err
		}
		if flag(parent, id) {
			report.Unresolved = append(report.Unresolved, id)
		}
	}
	slices.SortFunc(report.Unresolved, func(a, b string) int {
		return cmp.Or(cmp.Compare(identity.ShortIDOf(a), identity.ShortIDOf(b)), cmp.Compare(a, b))
	})
	return nil
}
