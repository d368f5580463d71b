// Package extract recovers canonical content IDs from external evidence:
// compressed license tokens, package headers fetched over HTTP, saved search
// result pages and store URLs.
//
// LicenseDecoder and PackageResolver satisfy the collaborator interfaces of
// the reconcile engine. The link helpers are pure functions used by the
// search-page and URL-list importers.
package extract
