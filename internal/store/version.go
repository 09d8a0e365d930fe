package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/go-version"
)

var (
	// MySQL 8.0.20 deprecates VALUES() inside ON DUPLICATE KEY UPDATE.
	mysqlValuesDeprecated = version.Must(version.NewVersion("8.0.20"))

	// SQLite accepts ON CONFLICT DO UPDATE without a conflict target from 3.35.0.
	sqliteBareUpsert = version.Must(version.NewVersion("3.35.0"))
)

// ServerInfo identifies the database engine behind a store.
type ServerInfo struct {
	Driver  string
	Raw     string // version string as reported by the server
	Version *version.Version
	MariaDB bool
}

// Server reads the engine version.
func (s *Store) Server(ctx context.Context) (ServerInfo, error) {
	query := "SELECT VERSION()"
	if s.driver == DriverSQLite {
		query = "SELECT sqlite_version()"
	}

	var raw string
	if err := s.db.QueryRowContext(ctx, query).Scan(&raw); err != nil {
		return ServerInfo{}, fmt.Errorf("read server version: %w", err)
	}
	v, err := ParseServerVersion(raw)
	if err != nil {
		return ServerInfo{}, err
	}
	return ServerInfo{
		Driver:  s.driver,
		Raw:     raw,
		Version: v,
		MariaDB: strings.Contains(strings.ToLower(raw), "mariadb"),
	}, nil
}

// ParseServerVersion parses strings such as "8.0.36-0ubuntu0.22.04.1",
// "10.11.6-MariaDB-log" and "3.45.1". Only the leading numeric part is kept.
func ParseServerVersion(raw string) (*version.Version, error) {
	core := raw
	if i := strings.IndexFunc(raw, func(r rune) bool {
		return (r < '0' || r > '9') && r != '.'
	}); i >= 0 {
		core = raw[:i]
	}
	v, err := version.NewVersion(strings.TrimSuffix(core, "."))
	if err != nil {
		return nil, fmt.Errorf("parse server version %q: %w", raw, err)
	}
	return v, nil
}

// Notes lists compatibility caveats for statements this module compiles.
func (i ServerInfo) Notes() []string {
	if i.Version == nil {
		return nil
	}
	var notes []string
	switch i.Driver {
	case DriverMySQL:
		if !i.MariaDB && i.Version.GreaterThanOrEqual(mysqlValuesDeprecated) {
			notes = append(notes, fmt.Sprintf(
				"MySQL %s deprecates VALUES() in ON DUPLICATE KEY UPDATE; upserts still run but raise a server warning", i.Version))
		}
	case DriverSQLite:
		if i.Version.LessThan(sqliteBareUpsert) {
			notes = append(notes, fmt.Sprintf(
				"SQLite %s rejects ON CONFLICT DO UPDATE without a conflict target; upserts need %s or later", i.Version, sqliteBareUpsert))
		}
	}
	return notes
}
