package reconcile_test

import (
	"context"
	"errors"
	"testing"

	"titlevault/internal/catalog"
	"titlevault/internal/reconcile"
	"titlevault/internal/testsupport"
)

type fakeLicense map[string]string

func (f fakeLicense) ContentID(token string) (string, error) {
	id, ok := f[token]
	if !ok {
		return "", errors.New("undecodable token")
	}
	return id, nil
}

type fakePackages struct {
	infos map[string]reconcile.PackageInfo
	calls []string
}

func (f *fakePackages) Resolve(_ context.Context, url string) (reconcile.PackageInfo, error) {
	f.calls = append(f.calls, url)
	info, ok := f.infos[url]
	if !ok {
		return reconcile.PackageInfo{}, errors.New("unreachable package")
	}
	return info, nil
}

func newEngine(t *testing.T, license fakeLicense, packages *fakePackages) (*reconcile.Engine, *catalog.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	if packages == nil {
		packages = &fakePackages{}
	}
	return reconcile.NewEngine(store, license, packages, nil), store
}

func mustMerge(t *testing.T, engine *reconcile.Engine, row reconcile.Row) reconcile.Outcome {
	t.Helper()
	outcome, err := engine.MergeAndUpsert(context.Background(), row)
	if err != nil {
		t.Fatalf("MergeAndUpsert returned error: %v", err)
	}
	return outcome
}

func TestLicenseTokenRowInsertsResolvedRecord(t *testing.T) {
	const token = "KO5ifR1dQ+eHBlIOMDQtest"
	const canonical = "EP1234-PCSG00001_00-0000000000000000"
	engine, store := newEngine(t, fakeLicense{token: canonical}, nil)

	outcome := mustMerge(t, engine, reconcile.Row{
		ShortID:         reconcile.Field("PCSG00001"),
		LicenseToken:    reconcile.Field(token),
		DefaultCategory: catalog.CategoryApp,
	})
	if outcome.Kind != reconcile.OutcomeInserted || outcome.CanonicalID != canonical {
		t.Fatalf("unexpected outcome %+v", outcome)
	}

	rec := testsupport.MustFind(t, store, canonical)
	if rec.Category != catalog.CategoryApp {
		t.Fatalf("expected base-app category, got %v", rec.Category)
	}
	if !rec.Locks.Has(catalog.LockCanonicalID) {
		t.Fatalf("expected canonical id lock, got %v", rec.Locks)
	}
	if rec.LicenseToken != token || rec.ShortID != "PCSG00001" {
		t.Fatalf("unexpected record %+v", rec)
	}
}

func TestAddonWithoutIdentityIsRejected(t *testing.T) {
	engine, store := newEngine(t, nil, nil)
	testsupport.SeedRecord(t, store, &catalog.Record{CanonicalID: "EP1234-PCSB00042_00-0000000000000000", Category: catalog.CategoryApp})

	dlc := catalog.CategoryDLC
	outcome := mustMerge(t, engine, reconcile.Row{
		ShortID:         reconcile.Field("PCSB00042"),
		Category:        &dlc,
		DefaultCategory: catalog.CategoryApp,
	})
	if outcome.Kind != reconcile.OutcomeRejected || !errors.Is(outcome.Reason, reconcile.ErrUnresolvableAddon) {
		t.Fatalf("expected unresolvable add-on rejection, got %+v", outcome)
	}
	if n, _ := store.Count(context.Background()); n != 1 {
		t.Fatalf("expected no new record, store has %d", n)
	}
}

func TestLicenseAndPackageMismatchIsRejected(t *testing.T) {
	const token = "KO5iMismatch"
	packages := &fakePackages{infos: map[string]reconcile.PackageInfo{
		"http://cdn.example/p.pkg": {ContentID: "UP1234-PCSG00001_00-0000000000000000", Size: 10},
	}}
	engine, store := newEngine(t, fakeLicense{token: "EP1234-PCSG00001_00-0000000000000000"}, packages)

	outcome := mustMerge(t, engine, reconcile.Row{
		ShortID:      reconcile.Field("PCSG00001"),
		LicenseToken: reconcile.Field(token),
		PackageURL:   reconcile.Field("http://cdn.example/p.pkg"),
	})
	if outcome.Kind != reconcile.OutcomeRejected || !errors.Is(outcome.Reason, reconcile.ErrMismatchedIdentity) {
		t.Fatalf("expected mismatch rejection, got %+v", outcome)
	}
	ctx := context.Background()
	if n, _ := store.Count(ctx); n != 0 {
		t.Fatalf("expected nothing committed, store has %d records", n)
	}
	if _, err := store.FindPackageByURL(ctx, "http://cdn.example/p.pkg"); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("expected no package committed, got %v", err)
	}
}

func TestMergeAndUpsertIsIdempotent(t *testing.T) {
	const token = "KO5iIdempotent"
	const canonical = "EP1234-PCSE00123_00-0000000000000000"
	packages := &fakePackages{infos: map[string]reconcile.PackageInfo{
		"https://cdn.example/game.pkg": {ContentID: canonical, Size: 4096},
	}}
	engine, store := newEngine(t, fakeLicense{token: canonical}, packages)

	row := reconcile.Row{
		ShortID:         reconcile.Field("PCSE00123"),
		CanonicalID:     reconcile.Field(canonical),
		Name:            reconcile.Field(" Tearaway\n"),
		AltName:         reconcile.Field("Tearaway Unfolded"),
		PackageURL:      reconcile.Field("https://cdn.example/game.pkg?token=abc"),
		LicenseToken:    reconcile.Field(token),
		DefaultCategory: catalog.CategoryApp,
	}
	first := mustMerge(t, engine, row)
	if first.Kind != reconcile.OutcomeInserted {
		t.Fatalf("expected insert, got %+v", first)
	}
	before := testsupport.MustFind(t, store, canonical)

	second := mustMerge(t, engine, row)
	if second.Kind != reconcile.OutcomeUnchanged {
		t.Fatalf("expected unchanged on second apply, got %+v", second)
	}
	after := testsupport.MustFind(t, store, canonical)
	if *before != *after {
		t.Fatalf("record changed on second apply:\nbefore %+v\nafter  %+v", before, after)
	}
	if before.Name != "Tearaway" {
		t.Fatalf("expected normalized name, got %q", before.Name)
	}
	if !before.Locks.Has(catalog.LockPackage) || before.PackageID == 0 {
		t.Fatalf("expected locked package reference, got %+v", before)
	}
	if len(packages.calls) != 1 || packages.calls[0] != "https://cdn.example/game.pkg" {
		t.Fatalf("expected a single resolver call with the query stripped, got %v", packages.calls)
	}
}

func TestLockedFieldsAreNeverOverwritten(t *testing.T) {
	const canonical = "EP1234-PCSG00001_00-0000000000000000"
	engine, store := newEngine(t, nil, nil)
	seed := testsupport.SeedRecord(t, store, &catalog.Record{
		CanonicalID: canonical,
		Category:    catalog.CategoryApp,
		Name:        "Official Name",
		PackageID:   0,
		Locks:       catalog.LockCanonicalID | catalog.LockName | catalog.LockCategory,
	})

	demo := catalog.CategoryDemo
	for _, name := range []string{"Other Name", "Third Name"} {
		outcome := mustMerge(t, engine, reconcile.Row{
			CanonicalID: reconcile.Field(canonical),
			Name:        reconcile.Field(name),
			AltName:     reconcile.Field("Alt " + name),
			Category:    &demo,
		})
		if outcome.Kind != reconcile.OutcomeUpdated {
			t.Fatalf("expected update for unlocked alt name, got %+v", outcome)
		}
		rec := testsupport.MustFind(t, store, canonical)
		if rec.Name != seed.Name || rec.Category != catalog.CategoryApp {
			t.Fatalf("locked field overwritten: %+v", rec)
		}
		if rec.AltName != "Alt "+name {
			t.Fatalf("unlocked field not updated: %+v", rec)
		}
	}
}

func TestInvalidCandidateIsDiscardedWithWarning(t *testing.T) {
	const token = "KO5iValid"
	const canonical = "EP1234-PCSG00001_00-0000000000000000"
	engine, _ := newEngine(t, fakeLicense{token: canonical}, nil)

	outcome := mustMerge(t, engine, reconcile.Row{
		CanonicalID:  reconcile.Field("EP1234-PCSG00001"),
		LicenseToken: reconcile.Field(token),
	})
	if outcome.Kind != reconcile.OutcomeInserted || outcome.CanonicalID != canonical {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
	if len(outcome.Warnings) != 1 || !errors.Is(outcome.Warnings[0], reconcile.ErrInvalidIdentity) {
		t.Fatalf("expected one invalid identity warning, got %v", outcome.Warnings)
	}
}

func TestUnreachablePackageIsDiscarded(t *testing.T) {
	const canonical = "EP1234-PCSG00001_00-0000000000000000"
	engine, store := newEngine(t, nil, &fakePackages{})

	outcome := mustMerge(t, engine, reconcile.Row{
		CanonicalID: reconcile.Field(canonical),
		PackageURL:  reconcile.Field("http://offline.example/x.pkg"),
	})
	if outcome.Kind != reconcile.OutcomeInserted || len(outcome.Warnings) != 1 {
		t.Fatalf("expected insert with warning, got %+v", outcome)
	}
	rec := testsupport.MustFind(t, store, canonical)
	if rec.PackageID != 0 || rec.Locks.Has(catalog.LockPackage) {
		t.Fatalf("expected no package reference, got %+v", rec)
	}
}

func TestBaseRowWithoutIdentityUsesPlaceholder(t *testing.T) {
	engine, store := newEngine(t, nil, nil)
	row := reconcile.Row{
		ShortID:         reconcile.Field("PCSC00010"),
		Name:            reconcile.Field("Unknown Title"),
		DefaultCategory: catalog.CategoryApp,
	}

	first := mustMerge(t, engine, row)
	if first.Kind != reconcile.OutcomeInserted || first.CanonicalID != "??????-PCSC00010_??-????????????????" {
		t.Fatalf("expected placeholder insert, got %+v", first)
	}
	if rec := testsupport.MustFind(t, store, first.CanonicalID); rec.Locks.Has(catalog.LockCanonicalID) {
		t.Fatal("placeholder identity must not be locked")
	}
	if second := mustMerge(t, engine, row); second.Kind != reconcile.OutcomeUnchanged || second.CanonicalID != first.CanonicalID {
		t.Fatalf("expected placeholder reuse, got %+v", second)
	}

	testsupport.SeedRecord(t, store, &catalog.Record{CanonicalID: "UP1234-PCSC00010_00-0000000000000000", Category: catalog.CategoryApp})
	third := mustMerge(t, engine, reconcile.Row{
		ShortID:         reconcile.Field("PCSC00010"),
		AltName:         reconcile.Field("Resolved Alt"),
		DefaultCategory: catalog.CategoryApp,
	})
	if third.CanonicalID != "UP1234-PCSC00010_00-0000000000000000" || third.Kind != reconcile.OutcomeUpdated {
		t.Fatalf("expected merge into resolved base record, got %+v", third)
	}
}

func TestAddonLinksToBaseParent(t *testing.T) {
	engine, store := newEngine(t, nil, nil)
	base := testsupport.SeedRecord(t, store, &catalog.Record{CanonicalID: "EP1234-PCSB00042_00-0000000000000000", Category: catalog.CategoryApp})

	outcome := mustMerge(t, engine, reconcile.Row{
		ShortID:         reconcile.Field("PCSB00042-DLC"),
		CanonicalID:     reconcile.Field("EP1234-PCSB00042_00-DLCPACK000000001"),
		DefaultCategory: catalog.CategoryApp,
	})
	if outcome.Kind != reconcile.OutcomeInserted {
		t.Fatalf("expected insert, got %+v", outcome)
	}
	rec := testsupport.MustFind(t, store, outcome.CanonicalID)
	if rec.Category != catalog.CategoryDLC || rec.ParentID != base.CanonicalID {
		t.Fatalf("expected dlc linked to base, got %+v", rec)
	}
	if rec.ShortID != "PCSB00042" {
		t.Fatalf("expected truncated short id, got %q", rec.ShortID)
	}
}

func TestShortIDMismatchIsRejected(t *testing.T) {
	engine, _ := newEngine(t, nil, nil)
	outcome := mustMerge(t, engine, reconcile.Row{
		ShortID:     reconcile.Field("PCSB00043"),
		CanonicalID: reconcile.Field("EP1234-PCSB00042_00-0000000000000000"),
	})
	if outcome.Kind != reconcile.OutcomeRejected || !errors.Is(outcome.Reason, reconcile.ErrIdentityShortIDMismatch) {
		t.Fatalf("expected short id mismatch, got %+v", outcome)
	}
}

func TestInvalidShortIDIsRejected(t *testing.T) {
	engine, _ := newEngine(t, nil, nil)
	outcome := mustMerge(t, engine, reconcile.Row{ShortID: reconcile.Field("12345"), DefaultCategory: catalog.CategoryApp})
	if outcome.Kind != reconcile.OutcomeRejected || !errors.Is(outcome.Reason, reconcile.ErrInvalidIdentity) {
		t.Fatalf("expected invalid identity, got %+v", outcome)
	}
}

func TestRowHygiene(t *testing.T) {
	packages := &fakePackages{}
	engine, store := newEngine(t, fakeLicense{}, packages)
	const canonical = "EP1234-PCSG00001_00-0000000000000000"

	outcome := mustMerge(t, engine, reconcile.Row{
		CanonicalID:  reconcile.Field(canonical),
		PackageURL:   reconcile.Field("ftp://mirror.example/x.pkg"),
		LicenseToken: reconcile.Field("Not Required"),
	})
	if outcome.Kind != reconcile.OutcomeInserted || len(outcome.Warnings) != 0 {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
	if len(packages.calls) != 0 {
		t.Fatalf("non-http package url must be dropped, resolver called with %v", packages.calls)
	}
	rec := testsupport.MustFind(t, store, canonical)
	if rec.LicenseToken != catalog.LicenseNotRequired {
		t.Fatalf("expected sentinel token, got %q", rec.LicenseToken)
	}

	outcome = mustMerge(t, engine, reconcile.Row{
		CanonicalID:  reconcile.Field(canonical),
		LicenseToken: reconcile.Field("garbage-token"),
	})
	if outcome.Kind != reconcile.OutcomeUnchanged {
		t.Fatalf("malformed token must be dropped, got %+v", outcome)
	}
}

func TestStoreErrorsPropagate(t *testing.T) {
	engine, store := newEngine(t, nil, nil)
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	_, err := engine.MergeAndUpsert(context.Background(), reconcile.Row{
		CanonicalID: reconcile.Field("EP1234-PCSG00001_00-0000000000000000"),
	})
	if err == nil {
		t.Fatal("expected store error to propagate")
	}
}

func TestLockedPackageReimportLeavesNoOrphan(t *testing.T) {
	const canonical = "UP1234-PCSA00001_00-0000000000000000"
	packages := &fakePackages{infos: map[string]reconcile.PackageInfo{
		"http://cdn.example/a.pkg": {ContentID: canonical, Size: 10},
		"http://cdn.example/b.pkg": {ContentID: canonical, Size: 20},
	}}
	engine, store := newEngine(t, nil, packages)
	ctx := context.Background()

	first := mustMerge(t, engine, reconcile.Row{ShortID: reconcile.Field("PCSA00001"), PackageURL: reconcile.Field("http://cdn.example/a.pkg")})
	if first.Kind != reconcile.OutcomeInserted {
		t.Fatalf("expected insert, got %+v", first)
	}
	second := mustMerge(t, engine, reconcile.Row{ShortID: reconcile.Field("PCSA00001"), PackageURL: reconcile.Field("http://cdn.example/b.pkg")})
	if second.Kind != reconcile.OutcomeUnchanged {
		t.Fatalf("expected unchanged, got %+v", second)
	}

	a, err := store.FindPackageByURL(ctx, "http://cdn.example/a.pkg")
	if err != nil {
		t.Fatalf("first package missing: %v", err)
	}
	if _, err := store.FindPackageByURL(ctx, "http://cdn.example/b.pkg"); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("expected no row for the ignored package, got %v", err)
	}
	if rec := testsupport.MustFind(t, store, canonical); rec.PackageID != a.ID {
		t.Fatalf("record package changed: %d want %d", rec.PackageID, a.ID)
	}
}
