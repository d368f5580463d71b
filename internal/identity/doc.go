// Package identity holds the structural predicates for catalog identifiers.
//
// A canonical ID has the fixed shape XXXXXXX-YYYYYYYYY_ZZ-WWWWWWWWWWWWWWWW:
// a hyphen at offset 7, the 9-character short ID (title code) at offsets
// 7..15, an underscore at 16 and a hyphen at 19. Base records whose real
// identity is not yet known carry a placeholder of the same length built by
// Placeholder. Every function here is pure.
package identity
