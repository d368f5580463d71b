// Package config loads, normalizes, and validates titlevault configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// ZRIF_DICTIONARY. The Config type centralizes every knob the CLI and the
// reconciliation engine need, including the declarative column mapping used
// by spreadsheet imports, which is checked against the known row fields at load
// time.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, a validated column mapping, and clear validation errors.
// The loaded value is passed explicitly into constructors; there is no
// package-level configuration state.
package config
