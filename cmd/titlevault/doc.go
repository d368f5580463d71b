// Package main hosts the titlevault CLI entrypoint and command graph.
//
// The Cobra command tree wires the catalog store, the reconcile engine and the
// importers together for one invocation, then renders results as tables,
// status lines or JSON. Every invocation carries a run id in its context so
// all log lines of one command can be correlated.
//
// Keep this package lean: behavior lives in the internal packages and the
// commands here only resolve configuration, open resources and print.
package main
