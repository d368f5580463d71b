// Package pkgcache keeps a local JSON cache of package header lookups.
//
// Resolving a package URL costs one ranged HTTP request. The cache maps the
// cleaned URL to the content ID and size read from the header so repeated
// imports of the same spreadsheet do not hit the network again.
//
// # Storage
//
// The cache lives at packages.cache_path (default
// ~/.cache/titlevault/packages.json) and is rewritten atomically on every
// change. An empty path disables caching.
//
// CLI commands for inspection and management:
//
//	titlevault cache list    # List cached package lookups
//	titlevault cache clear   # Remove all entries
package pkgcache
