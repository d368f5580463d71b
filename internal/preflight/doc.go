// Package preflight provides readiness checks for the filesystem paths and
// remote sources titlevault depends on.
//
// The CLI "titlevault health" command runs RunAll alongside the catalog
// database health check. Checks for optional features (license dictionary,
// remote spreadsheets) only run when the feature is configured.
package preflight
