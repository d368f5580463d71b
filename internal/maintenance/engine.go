package maintenance

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"titlevault/internal/catalog"
	"titlevault/internal/logging"
	"titlevault/internal/services"
)

// Store is the catalog surface maintenance needs.
type Store interface {
	All(ctx context.Context) iter.Seq2[*catalog.Record, error]
	Find(ctx context.Context, canonicalID string) (*catalog.Record, error)
	FindByShortID(ctx context.Context, shortID string) ([]*catalog.Record, error)
	Update(ctx context.Context, rec *catalog.Record) error
	Delete(ctx context.Context, canonicalID string) error
}

// Pass names in execution order.
const (
	PassShortIDConsistency    = "short_id_consistency"
	PassResolvablePlaceholder = "resolvable_placeholders"
	PassNameNormalization     = "name_normalization"
	PassLockConsistency       = "lock_consistency"
	PassDanglingParents       = "dangling_parents"
	PassAddonParents          = "addon_parents"
)

type pass struct {
	name string
	run  func(ctx context.Context, logger *slog.Logger, report *PassReport) error
}

// Engine runs the integrity passes against a Store.
type Engine struct {
	store  Store
	logger *slog.Logger
	passes []pass
}

// NewEngine wires an Engine.
func NewEngine(store Store, logger *slog.Logger) *Engine {
	e := &Engine{
		store:  store,
		logger: logging.NewComponentLogger(logger, "maintenance"),
	}
	e.passes = []pass{
		{name: PassShortIDConsistency, run: e.shortIDConsistency},
		{name: PassResolvablePlaceholder, run: e.resolvablePlaceholders},
		{name: PassNameNormalization, run: e.nameNormalization},
		{name: PassLockConsistency, run: e.lockConsistency},
		{name: PassDanglingParents, run: e.danglingParents},
		{name: PassAddonParents, run: e.addonParents},
	}
	return e
}

// Run executes every pass in order and returns one report per pass. The
// error is non-nil only when ctx was cancelled; per-pass failures are carried
// in the reports.
func (e *Engine) Run(ctx context.Context) ([]PassReport, error) {
	reports := make([]PassReport, 0, len(e.passes))
	for _, p := range e.passes {
		report := PassReport{Name: p.name}
		if ctx.Err() != nil {
			report.Status = StatusCancelled
			reports = append(reports, report)
			continue
		}
		e.runPass(ctx, p, &report)
		reports = append(reports, report)
	}
	return reports, ctx.Err()
}

func (e *Engine) runPass(ctx context.Context, p pass, report *PassReport) {
	ctx = services.WithPass(ctx, p.name)
	logger := logging.WithContext(ctx, e.logger)
	start := time.Now()

	logger.Debug("maintenance pass started")
	err := safeRun(ctx, logger, p, report)
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		report.Status = StatusCancelled
		report.Err = err
	default:
		report.Status = StatusError
		report.Err = err
		logging.ErrorWithContext(logger, "maintenance pass failed", "maintenance_pass_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "inspect the database with `titlevault health`"),
			logging.String(logging.FieldImpact, "remaining records of this pass were not checked"),
		)
	}
	report.finish()

	logger.Info("maintenance pass finished",
		logging.String("status", string(report.Status)),
		logging.Int("repaired", report.Repaired),
		logging.Int("unresolved", len(report.Unresolved)),
		logging.Duration("duration", time.Since(start)),
	)
	if len(report.Unresolved) > 0 {
		logging.WarnWithContext(logger, "maintenance found unresolved entries", "maintenance_unresolved",
			logging.Any("entries", report.Unresolved),
			logging.String(logging.FieldErrorHint, "import the missing base titles or correct the parent ids"),
			logging.String(logging.FieldImpact, "reported only, nothing was changed"),
		)
	}
}

func safeRun(ctx context.Context, logger *slog.Logger, p pass, report *PassReport) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pass %s panicked: %v", p.name, r)
		}
	}()
	return p.run(ctx, logger, report)
}

// collect scans every record and returns the canonical IDs matching match.
func (e *Engine) collect(ctx context.Context, match func(*catalog.Record) bool) ([]string, error) {
	var keys []string
	for rec, err := range e.store.All(ctx) {
		if err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if match(rec) {
			keys = append(keys, rec.CanonicalID)
		}
	}
	return keys, nil
}

// repairEach re-fetches every key and persists the changes fix makes. A
// record that vanished since collection is skipped. Cancellation is honored
// between records only, so an update in flight always completes.
func (e *Engine) repairEach(ctx context.Context, logger *slog.Logger, report *PassReport, keys []string, fix func(*catalog.Record) []Repair) error {
	for _, id := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		recCtx := context.WithoutCancel(ctx)
		rec, err := e.store.Find(recCtx, id)
		if errors.Is(err, catalog.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		repairs := fix(rec)
		if len(repairs) == 0 {
			continue
		}
		if err := e.store.Update(recCtx, rec); err != nil {
			return err
		}
		report.Repaired++
		for _, rep := range repairs {
			report.addRepair(rep)
			logRepair(logger, rep)
		}
	}
	return nil
}

func logRepair(logger *slog.Logger, rep Repair) {
	logger.Info("maintenance repair",
		logging.String(logging.FieldCanonicalID, rep.CanonicalID),
		logging.String("field", rep.Field),
		logging.String("before", rep.Before),
		logging.String("after", rep.After),
	)
}
