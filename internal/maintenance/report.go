package maintenance

import "fmt"

// Status is the outcome of one pass.
type Status string

const (
	StatusPass      Status = "PASS"
	StatusFail      Status = "FAIL"
	StatusError     Status = "ERROR"
	StatusCancelled Status = "CANCELLED"
)

// Repair describes one persisted change.
type Repair struct {
	CanonicalID string
	Field       string
	Before      string
	After       string
}

func (r Repair) String() string {
	return fmt.Sprintf("%s %s: %q -> %q", r.CanonicalID, r.Field, r.Before, r.After)
}

// PassReport summarizes one pass. Repaired counts records changed by repair
// passes; Unresolved lists entries report-only passes found.
type PassReport struct {
	Name       string
	Status     Status
	Repaired   int
	Repairs    []Repair
	Unresolved []string
	Err        error
}

func (r *PassReport) addRepair(rep Repair) {
	r.Repairs = append(r.Repairs, rep)
}

// finish derives the final status from what the pass observed.
func (r *PassReport) finish() {
	switch {
	case r.Status == StatusError || r.Status == StatusCancelled:
	case r.Repaired > 0 || len(r.Unresolved) > 0:
		r.Status = StatusFail
	default:
		r.Status = StatusPass
	}
}

// Failed reports whether any pass ended in ERROR.
func Failed(reports []PassReport) bool {
	for _, r := range reports {
		if r.Status == StatusError {
			return true
		}
	}
	return false
}
