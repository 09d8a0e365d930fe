package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Column describes one table column.
type Column struct {
	Name          string  `json:"name"`
	DataType      string  `json:"data_type"`
	Nullable      bool    `json:"nullable"`
	AutoIncrement bool    `json:"auto_increment"`
	PrimaryKey    bool    `json:"primary_key"`
	Default       *string `json:"default,omitempty"`
}

// Catalog is the reverse-engineered shape of a table.
type Catalog struct {
	Table   string   `json:"table"`
	Columns []Column `json:"columns"`
}

// ColumnNames returns the column universe in ordinal order.
func (c Catalog) ColumnNames() []string {
	out := make([]string, len(c.Columns))
	for i, col := range c.Columns {
		out[i] = col.Name
	}
	return out
}

// PrimaryKey returns the primary-key columns in ordinal order.
func (c Catalog) PrimaryKey() []string {
	var out []string
	for _, col := range c.Columns {
		if col.PrimaryKey {
			out = append(out, col.Name)
		}
	}
	return out
}

// UpdateColumns returns the non-primary-key columns, the default set an
// upsert copies on conflict.
func (c Catalog) UpdateColumns() []string {
	var out []string
	for _, col := range c.Columns {
		if !col.PrimaryKey {
			out = append(out, col.Name)
		}
	}
	return out
}

// Introspect reads the catalog of table.
// Returns an error if the table does not exist.
func (s *Store) Introspect(ctx context.Context, table string) (Catalog, error) {
	var (
		cols []Column
		err  error
	)
	switch s.driver {
	case DriverMySQL:
		cols, err = s.introspectMySQL(ctx, table)
	default:
		cols, err = s.introspectSQLite(ctx, table)
	}
	if err != nil {
		return Catalog{}, fmt.Errorf("introspect %s: %w", table, err)
	}
	if len(cols) == 0 {
		return Catalog{}, fmt.Errorf("introspect %s: table not found", table)
	}
	return Catalog{Table: table, Columns: cols}, nil
}

// introspectSQLite reads pragma_table_info ordered by column id.
func (s *Store) introspectSQLite(ctx context.Context, table string) ([]Column, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, type, "notnull", dflt_value, pk
		FROM pragma_table_info(?)
		ORDER BY cid
	`, table)
	if err != nil {
		return nil, fmt.Errorf("query table_info: %w", err)
	}
	defer rows.Close()

	var cols []Column
	pkCount := 0
	for rows.Next() {
		var (
			col     Column
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&col.Name, &col.DataType, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		col.DataType = strings.ToLower(col.DataType)
		col.Nullable = notNull == 0 && pk == 0
		col.PrimaryKey = pk > 0
		if dflt.Valid {
			col.Default = &dflt.String
		}
		if pk > 0 {
			pkCount++
		}
		cols = append(cols, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}

	// A lone INTEGER PRIMARY KEY aliases the rowid and auto-increments.
	if pkCount == 1 {
		for i := range cols {
			if cols[i].PrimaryKey && cols[i].DataType == "integer" {
				cols[i].AutoIncrement = true
			}
		}
	}
	return cols, nil
}

// introspectMySQL reads information_schema.columns for the current database.
func (s *Store) introspectMySQL(ctx context.Context, table string) ([]Column, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT
			column_name,
			data_type,
			is_nullable,
			column_default,
			extra,
			column_key
		FROM information_schema.columns
		WHERE table_schema = DATABASE()
		  AND table_name = ?
		ORDER BY ordinal_position
	`, table)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		var (
			col        Column
			isNullable string
			dflt       sql.NullString
			extra      string
			columnKey  string
		)
		if err := rows.Scan(&col.Name, &col.DataType, &isNullable, &dflt, &extra, &columnKey); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		col.DataType = strings.ToLower(col.DataType)
		col.Nullable = strings.EqualFold(isNullable, "YES")
		col.AutoIncrement = strings.Contains(strings.ToLower(extra), "auto_increment")
		col.PrimaryKey = columnKey == "PRI"
		if dflt.Valid {
			col.Default = &dflt.String
		}
		cols = append(cols, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}
	return cols, nil
}
