// Package store executes compiled statements and reads table catalogs.
//
// It sits on the far side of the compiler's output contract: a
// querysql.Fragment goes in, rows or an {InsertID, AffectedRows} result
// come out. Two engines are supported:
//
//   - SQLite through github.com/mattn/go-sqlite3 (file or :memory:)
//   - MySQL through github.com/go-sql-driver/mysql
//
// The catalog side reverse-engineers a table's columns (name, data type,
// nullability, default, auto-increment, primary key) so callers can supply
// the column universe the compiler needs.
//
// # Database Configuration (SQLite)
//
//   - WAL mode for file databases: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON: enforce referential integrity
//
// Each statement is logged with log/slog at Debug level.
package store
