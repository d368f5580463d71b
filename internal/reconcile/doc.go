// Package reconcile turns one import row into at most one committed catalog
// record.
//
// MergeAndUpsert runs a row through four steps in order. Row hygiene drops
// unusable package URLs and license tokens. The evidence merger decodes
// candidate identities from the package URL, the license token and the row
// itself and resolves them to a single canonical ID. The classifier assigns
// category, placeholder identity and parent linkage. The upsert engine merges
// the candidate into the store while honoring per-field locks.
//
// Every per-row failure is reported as a Rejected outcome carrying a
// *RejectError; only store failures are returned as errors.
package reconcile
