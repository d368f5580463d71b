// Package textutil provides the small text helpers shared by record
// normalization and category inference.
package textutil
