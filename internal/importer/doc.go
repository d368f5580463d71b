// Package importer drives batches of rows into the reconcile engine and
// writes catalog exports.
//
// Import sources are delimited spreadsheets (local files or http(s) URLs),
// license-token lists, URL lists and saved search result pages. Every source
// is reduced to reconcile.Row values and fed to MergeAndUpsert one at a time;
// per-row rejections are tallied in a Result while store failures abort the
// batch. Cancellation is checked before each row.
package importer
