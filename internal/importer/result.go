package importer

import (
	"maps"
	"slices"
	"time"

	"titlevault/internal/reconcile"
)

// Result tallies the outcomes of one import batch.
type Result struct {
	Source    string
	Rows      int
	Inserted  int
	Updated   int
	Unchanged int
	Rejected  int
	// Skipped counts input lines that never reached the engine.
	Skipped int
	// Reasons counts rejections by reason label.
	Reasons   map[string]int
	Warnings  int
	Cancelled bool
	Duration  time.Duration
}

func newResult(source string) Result {
	return Result{Source: source, Reasons: map[string]int{}}
}

func (r *Result) record(outcome reconcile.Outcome) {
	r.Rows++
	r.Warnings += len(outcome.Warnings)
	switch outcome.Kind {
	case reconcile.OutcomeInserted:
		r.Inserted++
	case reconcile.OutcomeUpdated:
		r.Updated++
	case reconcile.OutcomeUnchanged:
		r.Unchanged++
	case reconcile.OutcomeRejected:
		r.Rejected++
		r.Reasons[reconcile.ReasonLabel(outcome.Reason)]++
	}
}

// ReasonLabels returns the rejection labels seen, sorted.
func (r Result) ReasonLabels() []string {
	return slices.Sorted(maps.Keys(r.Reasons))
}

// Merge adds other's tallies into r.
func (r *Result) Merge(other Result) {
	r.Rows += other.Rows
	r.Inserted += other.Inserted
	r.Updated += other.Updated
	r.Unchanged += other.Unchanged
	r.Rejected += other.Rejected
	r.Skipped += other.Skipped
	r.Warnings += other.Warnings
	r.Cancelled = r.Cancelled || other.Cancelled
	r.Duration += other.Duration
	if r.Reasons == nil {
		r.Reasons = map[string]int{}
	}
	for k, v := range other.Reasons {
		r.Reasons[k] += v
	}
}
