package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/sqlcompile/internal/querysql"
)

// Driver names accepted by Open.
const (
	DriverSQLite = "sqlite3"
	DriverMySQL  = "mysql"
)

// Store wraps a database handle and the dialect its statements compile to.
type Store struct {
	db      *sql.DB
	driver  string
	dialect querysql.Dialect
}

// Open connects to dsn with the named driver.
//
// For SQLite the dsn is a file path or ":memory:"; the connection pool is
// limited to one connection and the pragmas listed in the package doc are
// applied. For MySQL the dsn is a go-sql-driver DSN; parseTime is forced on
// so DATETIME columns scan as time.Time.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	switch driver {
	case DriverSQLite, "sqlite":
		return openSQLite(ctx, dsn)
	case DriverMySQL:
		cfg, err := mysql.ParseDSN(dsn)
		if err != nil {
			return nil, fmt.Errorf("parse mysql dsn: %w", err)
		}
		return OpenMySQL(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported driver %q (expected %s or %s)", driver, DriverSQLite, DriverMySQL)
	}
}

// OpenMySQL connects with a structured go-sql-driver configuration.
func OpenMySQL(ctx context.Context, cfg *mysql.Config) (*Store, error) {
	cfg.ParseTime = true
	if cfg.Loc == nil {
		cfg.Loc = time.UTC
	}

	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to configure mysql: %w", err)
	}
	db := sql.OpenDB(connector)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &Store{db: db, driver: DriverMySQL, dialect: querysql.MySQL{}}, nil
}

// MySQLDSN builds a DSN from its parts.
func MySQLDSN(user, password, addr, database string) string {
	cfg := mysql.NewConfig()
	cfg.User = user
	cfg.Passwd = password
	cfg.Net = "tcp"
	cfg.Addr = addr
	cfg.DBName = database
	cfg.ParseTime = true
	return cfg.FormatDSN()
}

func openSQLite(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open(DriverSQLite, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time. A single connection also
	// keeps one :memory: database alive for the life of the handle.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := applyPragmas(ctx, db, isMemory(path)); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	return &Store{db: db, driver: DriverSQLite, dialect: querysql.SQLite{}}, nil
}

func isMemory(path string) bool {
	return path == ":memory:" || strings.Contains(path, "mode=memory")
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(ctx context.Context, db *sql.DB, memory bool) error {
	pragmas := []string{
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	if !memory {
		pragmas = append([]string{"PRAGMA journal_mode = WAL"}, pragmas...)
	}

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
// Use with caution - prefer using Store methods when available.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Driver returns the driver name the store was opened with.
func (s *Store) Driver() string {
	return s.driver
}

// Dialect returns the dialect statements for this store must compile to.
func (s *Store) Dialect() querysql.Dialect {
	return s.dialect
}
