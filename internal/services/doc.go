// Package services defines small cross-cutting helpers shared by the catalog,
// reconciliation, maintenance and import layers.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, input row numbers and maintenance
//     pass names for logging.
//   - Structured error markers plus the Wrap helper that let the CLI map a
//     failure to an exit status.
package services
