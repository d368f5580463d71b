// Package logging assembles structured slog loggers and formatting helpers used
// across titlevault.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so reconciliation and maintenance
// code can automatically tag log lines with run IDs, row numbers, and
// maintenance pass names. The console handler renders the component, pass and
// row as a line prefix such as "maintenance[dangling_parents]:" or
// "importer row 12:". The package also provides a no-op logger for tests and
// wiring code that cannot fail.
//
// Prefer these constructors over hand-rolled slog setup so every component
// emits data with the same shape.
package logging
