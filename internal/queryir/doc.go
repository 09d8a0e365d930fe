// Package queryir provides the query abstract syntax tree consumed by the
// SQL compiler.
//
// The AST sits between the upstream query-expression parser and the
// compiler:
//
//	[selector parser] -> [Query IR] -> [querysql] -> {sql, params}
//
// SEALED INTERFACES:
//
// Query, Predicate, Directive and Sort are sealed interfaces using the
// marker method pattern. Only types in this package implement them, so the
// compiler's type switches are exhaustive:
//
//	switch p := pred.(type) {
//	case Eq:
//	    // field = ?
//	case And:
//	    // (a) AND (b)
//	default:
//	    // UnknownOperator
//	}
//
// OPTIONAL CLAUSES:
//
//   - Selection: a nil Predicate means no filter
//   - Projection: a nil (or empty) directive list means every known column
//   - OrderBy: a nil (or empty) list means no ordering
//   - Limit / Offset: the zero Bound means no bound
//
// Every node is an immutable value. Nothing in this package holds state
// between calls, so ASTs may be shared freely across goroutines.
package queryir
