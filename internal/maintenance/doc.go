// Package maintenance runs the ordered integrity passes over the catalog.
//
// Each pass scans the store, collects the keys that violate one invariant,
// then re-fetches and repairs them one record at a time. Report-only passes
// list the offending parent IDs instead of changing anything. A failing pass
// never stops the passes after it; cancellation does, and the remaining
// passes are reported as cancelled.
package maintenance
