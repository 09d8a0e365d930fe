package querysql

import (
	"fmt"
	"strings"
)

// Dialect holds the statement details that differ between SQL engines.
//
// Every dialect uses "?" placeholders, so the placeholder/parameter
// correspondence of a Fragment does not depend on the dialect.
type Dialect interface {
	// Name is the configuration name of the dialect.
	Name() string

	// QuoteChar is the identifier quote character.
	QuoteChar() byte

	// InsertPrefix returns the statement prefix up to and including INTO.
	InsertPrefix(ignore bool) string

	// UpsertClause returns the conflict clause for already-quoted columns.
	UpsertClause(quoted []string) string
}

// MySQL is the default dialect.
type MySQL struct{}

func (MySQL) Name() string { return "mysql" }
func (MySQL) QuoteChar() byte { return '`' }

func (MySQL) InsertPrefix(ignore bool) string {
	if ignore {
		return "INSERT IGNORE INTO"
	}
	return "INSERT INTO"
}

func (MySQL) UpsertClause(quoted []string) string {
	parts := make([]string, len(quoted))
	for i, col := range quoted {
		parts[i] = fmt.Sprintf("%s = VALUES(%s)", col, col)
	}
	return "ON DUPLICATE KEY UPDATE " + strings.Join(parts, ", ")
}

// SQLite compiles for SQLite 3.35 or later.
type SQLite struct{}

func (SQLite) Name() string { return "sqlite" }
func (SQLite) QuoteChar() byte { return '"' }

func (SQLite) InsertPrefix(ignore bool) string {
	if ignore {
		return "INSERT OR IGNORE INTO"
	}
	return "INSERT INTO"
}

func (SQLite) UpsertClause(quoted []string) string {
	parts := make([]string, len(quoted))
	for i, col := range quoted {
		parts[i] = fmt.Sprintf("%s = excluded.%s", col, col)
	}
	return "ON CONFLICT DO UPDATE SET " + strings.Join(parts, ", ")
}

// DialectByName returns the dialect registered under name.
// An empty name selects MySQL.
func DialectByName(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "", "mysql":
		return MySQL{}, nil
	case "sqlite", "sqlite3":
		return SQLite{}, nil
	default:
		return nil, fmt.Errorf("unknown dialect %q (expected mysql or sqlite)", name)
	}
}
