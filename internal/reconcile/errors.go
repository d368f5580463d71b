package reconcile

import (
	"errors"
	"fmt"
	"strings"

	"titlevault/internal/identity"
)

var (
	// ErrInvalidIdentity marks a malformed candidate or short ID.
	ErrInvalidIdentity = identity.ErrInvalidIdentity
	// ErrMismatchedIdentity marks validated candidates that disagree.
	ErrMismatchedIdentity = errors.New("mismatched identity")
	// ErrUnresolvableAddon marks an add-on row without a resolved identity.
	ErrUnresolvableAddon = errors.New("unresolvable add-on")
	// ErrIdentityShortIDMismatch marks a canonical ID that does not contain the short ID.
	ErrIdentityShortIDMismatch = errors.New("identity/short-id mismatch")
)

// RejectError explains why a row was rejected. Kind is one of the sentinel
// errors above and is matched by errors.Is.
type RejectError struct {
	Kind      error
	ShortID   string
	Detail    string
	Conflicts []Candidate
}

func (e *RejectError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.ShortID != "" {
		fmt.Fprintf(&b, " [%s]", e.ShortID)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if len(e.Conflicts) > 0 {
		parts := make([]string, 0, len(e.Conflicts))
		for _, c := range e.Conflicts {
			parts = append(parts, fmt.Sprintf("%s=%s", c.Source, c.ID))
		}
		b.WriteString(" (")
		b.WriteString(strings.Join(parts, ", "))
		b.WriteString(")")
	}
	return b.String()
}

func (e *RejectError) Unwrap() error { return e.Kind }

func reject(kind error, shortID, format string, args ...any) *RejectError {
	return &RejectError{Kind: kind, ShortID: shortID, Detail: fmt.Sprintf(format, args...)}
}

// ReasonLabel returns a stable snake_case label for a rejection or warning,
// suitable for metrics and report tallies.
func ReasonLabel(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMismatchedIdentity):
		return "mismatched_identity"
	case errors.Is(err, ErrUnresolvableAddon):
		return "unresolvable_addon"
	case errors.Is(err, ErrIdentityShortIDMismatch):
		return "identity_short_id_mismatch"
	case errors.Is(err, ErrInvalidIdentity):
		return "invalid_identity"
	default:
		return "other"
	}
}
