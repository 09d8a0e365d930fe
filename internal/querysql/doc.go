// Package querysql compiles queryir requests to parameterized SQL.
//
// Every compiler returns a Fragment: SQL text plus the ordered params bound
// to its "?" placeholders. Sub-compilers (key, value, values, selection,
// projection, orderby, limit, offset) are composed by six assemblers (find,
// count, remove, insert, upsert, update) into a complete statement ending
// in ";".
//
// Identifiers are quoted by the Dialect with embedded quote characters
// doubled. Literal values never appear in SQL text. Limit and offset are
// inlined as integers.
//
// Compilation is pure: identical input always yields identical output, and
// a SQLCompiler may be shared across goroutines.
package querysql
