// Package ir provides the literal value model shared by the query AST,
// the SQL compiler and the executor boundary.
//
// This package contains value definitions only. All other internal packages
// import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Value is a sealed interface; only the types in this package implement it
//   - Null and Absent are distinct: Null is an explicit SQL NULL literal,
//     Absent marks a record field that was never supplied
//   - Canonical JSON never contains raw floats; Float and Decimal literals are
//     encoded as tagged strings so fingerprints stay byte-stable
package ir
