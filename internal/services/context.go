package services

import "context"

type contextKey string

const (
	runIDKey contextKey = "run_id"
	rowKey   contextKey = "row"
	passKey  contextKey = "pass"
)

// WithRunID annotates context with the identifier shared by one command invocation.
func WithRunID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromContext extracts the run identifier if present.
func RunIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(runIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRow annotates context with the 1-based input row being reconciled.
func WithRow(ctx context.Context, row int) context.Context {
	if row <= 0 {
		return ctx
	}
	return context.WithValue(ctx, rowKey, row)
}

// RowFromContext returns the input row number if present.
func RowFromContext(ctx context.Context) (int, bool) {
	if v, ok := ctx.Value(rowKey).(int); ok && v > 0 {
		return v, true
	}
	return 0, false
}

// WithPass annotates context with the maintenance pass name.
func WithPass(ctx context.Context, pass string) context.Context {
	if pass == "" {
		return ctx
	}
	return context.WithValue(ctx, passKey, pass)
}

// PassFromContext returns the maintenance pass name if present.
func PassFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(passKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
