package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/roach88/sqlcompile/internal/queryir"
	"github.com/roach88/sqlcompile/internal/querysql"
)

// Result reports the effect of a data-modifying statement.
type Result struct {
	InsertID     int64 `json:"insert_id"`
	AffectedRows int64 `json:"affected_rows"`
}

// Rows holds a result set in column order.
type Rows struct {
	Columns []string `json:"columns"`
	Values  [][]any  `json:"rows"`
}

// Records returns each row as a column-name map.
func (r Rows) Records() []map[string]any {
	out := make([]map[string]any, len(r.Values))
	for i, row := range r.Values {
		rec := make(map[string]any, len(r.Columns))
		for j, col := range r.Columns {
			rec[col] = row[j]
		}
		out[i] = rec
	}
	return out
}

// Outcome is what Run produced: Rows for find and count, Result otherwise.
type Outcome struct {
	Fragment querysql.Fragment
	Rows     *Rows
	Result   *Result
}

// Exec runs a data-modifying fragment.
// Absent and Null params both bind as SQL NULL.
func (s *Store) Exec(ctx context.Context, f querysql.Fragment) (Result, error) {
	start := time.Now()
	res, err := s.db.ExecContext(ctx, f.SQL, f.Args()...)
	if err != nil {
		slog.Error("statement failed", "sql", f.SQL, "params", len(f.Params), "error", err)
		return Result{}, fmt.Errorf("exec: %w", err)
	}

	var out Result
	if out.AffectedRows, err = res.RowsAffected(); err != nil {
		return Result{}, fmt.Errorf("rows affected: %w", err)
	}
	// Not every statement produces an insert id; zero means none.
	if id, err := res.LastInsertId(); err == nil {
		out.InsertID = id
	}

	slog.Debug("statement executed",
		"sql", f.SQL,
		"params", len(f.Params),
		"affected_rows", out.AffectedRows,
		"elapsed", time.Since(start),
	)
	return out, nil
}

// Query runs a row-returning fragment.
// Returns an empty Values slice (not nil) when no rows match.
func (s *Store) Query(ctx context.Context, f querysql.Fragment) (Rows, error) {
	start := time.Now()
	rows, err := s.db.QueryContext(ctx, f.SQL, f.Args()...)
	if err != nil {
		slog.Error("query failed", "sql", f.SQL, "params", len(f.Params), "error", err)
		return Rows{}, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return Rows{}, fmt.Errorf("columns: %w", err)
	}
	types, err := rows.ColumnTypes()
	if err != nil {
		return Rows{}, fmt.Errorf("column types: %w", err)
	}

	out := Rows{Columns: columns, Values: [][]any{}}
	for rows.Next() {
		dest := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range dest {
			ptrs[i] = &dest[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return Rows{}, fmt.Errorf("scan row: %w", err)
		}
		for i := range dest {
			dest[i] = normalizeScanned(dest[i], types[i].DatabaseTypeName())
		}
		out.Values = append(out.Values, dest)
	}
	if err := rows.Err(); err != nil {
		return Rows{}, fmt.Errorf("iterate rows: %w", err)
	}

	slog.Debug("query executed",
		"sql", f.SQL,
		"params", len(f.Params),
		"rows", len(out.Values),
		"elapsed", time.Since(start),
	)
	return out, nil
}

// Run compiles q with the store's dialect and executes it.
func (s *Store) Run(ctx context.Context, q queryir.Query) (Outcome, error) {
	f, err := querysql.NewSQLCompiler(s.dialect).CompileQuery(q)
	if err != nil {
		return Outcome{}, err
	}

	switch q.(type) {
	case queryir.Find, *queryir.Find, queryir.Count, *queryir.Count:
		rows, err := s.Query(ctx, f)
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Fragment: f, Rows: &rows}, nil
	default:
		res, err := s.Exec(ctx, f)
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Fragment: f, Result: &res}, nil
	}
}

// normalizeScanned turns driver byte slices into strings for text columns.
// Binary columns keep their bytes.
func normalizeScanned(v any, dbType string) any {
	b, ok := v.([]byte)
	if !ok {
		return v
	}
	switch t := strings.ToUpper(dbType); {
	case strings.Contains(t, "BLOB"), strings.Contains(t, "BINARY"):
		return b
	default:
		return string(b)
	}
}
