package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/sqlcompile/internal/ir"
	"github.com/roach88/sqlcompile/internal/queryir"
)

// SQLCompiler compiles queryir requests to parameterized SQL.
//
// A compiler holds only its dialect. It has no mutable state and is safe
// for concurrent use.
//
// CRITICAL: values are always bound as "?" params, never interpolated.
// Only identifiers (escaped) and limit/offset integers appear in SQL text.
type SQLCompiler struct {
	dialect Dialect
}

// NewSQLCompiler creates a compiler for d. A nil dialect selects MySQL.
func NewSQLCompiler(d Dialect) *SQLCompiler {
	if d == nil {
		d = MySQL{}
	}
	return &SQLCompiler{dialect: d}
}

// Dialect returns the compiler's dialect.
func (c *SQLCompiler) Dialect() Dialect {
	return c.dialect
}

// Compile converts a request to parameterized SQL.
// Returns (sql, params, error) with params ready for database/sql.
func (c *SQLCompiler) Compile(q queryir.Query) (string, []any, error) {
	f, err := c.CompileQuery(q)
	if err != nil {
		return "", nil, err
	}
	return f.SQL, f.Args(), nil
}

// CompileQuery dispatches q to its assembler.
func (c *SQLCompiler) CompileQuery(q queryir.Query) (Fragment, error) {
	switch query := q.(type) {
	case nil:
		return Fragment{}, NewError(CodeMalformedAST, "", "cannot compile nil query")
	case queryir.Find:
		return c.CompileFind(query)
	case *queryir.Find:
		return c.CompileFind(*query)
	case queryir.Count:
		return c.CompileCount(query)
	case *queryir.Count:
		return c.CompileCount(*query)
	case queryir.Remove:
		return c.CompileRemove(query)
	case *queryir.Remove:
		return c.CompileRemove(*query)
	case queryir.Insert:
		return c.CompileInsert(query)
	case *queryir.Insert:
		return c.CompileInsert(*query)
	case queryir.Upsert:
		return c.CompileUpsert(query)
	case *queryir.Upsert:
		return c.CompileUpsert(*query)
	case queryir.Update:
		return c.CompileUpdate(query)
	case *queryir.Update:
		return c.CompileUpdate(*query)
	default:
		return Fragment{}, NewError(CodeMalformedAST, "", "unsupported query type: %T", q)
	}
}

// CompileFind assembles
//
//	SELECT <projection> FROM <table> [WHERE ...] [ORDER BY ...] [LIMIT n [OFFSET m]];
//
// An offset without a limit is dropped.
func (c *SQLCompiler) CompileFind(q queryir.Find) (Fragment, error) {
	if len(q.Columns) == 0 {
		return Fragment{}, NewError(CodeMissingClause, "find", "find requires the column universe of %q", q.Table)
	}
	table, err := c.compileTable(q.Table)
	if err != nil {
		return Fragment{}, err
	}
	projection, err := c.CompileProjection(q.Projection, q.Columns)
	if err != nil {
		return Fragment{}, err
	}

	var stmt statement
	stmt.add("SELECT", projection)
	stmt.add("FROM", table)
	if err := c.addFilters(&stmt, q.Columns, q.Selection, q.OrderBy, q.Limit, q.Offset, true); err != nil {
		return Fragment{}, err
	}
	return stmt.finish(), nil
}

// CompileCount assembles the Find skeleton with COUNT(*) in place of the
// projection.
func (c *SQLCompiler) CompileCount(q queryir.Count) (Fragment, error) {
	table, err := c.compileTable(q.Table)
	if err != nil {
		return Fragment{}, err
	}
	alias, err := c.CompileKey("count")
	if err != nil {
		return Fragment{}, err
	}

	var stmt statement
	stmt.add("SELECT", text("COUNT(*) AS "+alias.SQL))
	stmt.add("FROM", table)
	if err := c.addFilters(&stmt, q.Columns, q.Selection, q.OrderBy, q.Limit, q.Offset, true); err != nil {
		return Fragment{}, err
	}
	return stmt.finish(), nil
}

// CompileRemove assembles
//
//	DELETE FROM <table> [WHERE ...] [ORDER BY ...] [LIMIT n];
func (c *SQLCompiler) CompileRemove(q queryir.Remove) (Fragment, error) {
	table, err := c.compileTable(q.Table)
	if err != nil {
		return Fragment{}, err
	}

	var stmt statement
	stmt.add("DELETE FROM", table)
	if err := c.addFilters(&stmt, q.Columns, q.Selection, q.OrderBy, q.Limit, queryir.None(), false); err != nil {
		return Fragment{}, err
	}
	return stmt.finish(), nil
}

// CompileInsert assembles
//
//	INSERT [IGNORE] INTO <table> (<cols>) VALUES (?, ...), ...;
//
// Params follow record order, then column order. A record without a column
// binds ir.Absent for it.
func (c *SQLCompiler) CompileInsert(q queryir.Insert) (Fragment, error) {
	table, err := c.compileTable(q.Table)
	if err != nil {
		return Fragment{}, err
	}
	values, columns, err := c.compileRows(q.Columns, q.Records)
	if err != nil {
		return Fragment{}, err
	}

	var stmt statement
	stmt.add(c.dialect.InsertPrefix(q.Ignore), table)
	stmt.add("", columns)
	stmt.add("VALUES", values)
	return stmt.finish(), nil
}

// CompileUpsert assembles an Insert followed by the dialect's conflict
// clause over UpdateColumns, which must be a non-empty subset of Columns.
func (c *SQLCompiler) CompileUpsert(q queryir.Upsert) (Fragment, error) {
	table, err := c.compileTable(q.Table)
	if err != nil {
		return Fragment{}, err
	}
	values, columns, err := c.compileRows(q.Columns, q.Records)
	if err != nil {
		return Fragment{}, err
	}
	if len(q.UpdateColumns) == 0 {
		return Fragment{}, NewError(CodeMissingClause, "upsert", "upsert requires at least one update column")
	}

	u := newUniverse(q.Columns)
	quoted := make([]string, len(q.UpdateColumns))
	for i, col := range q.UpdateColumns {
		key, err := c.compileKeyIn(u, queryir.Key(col), "update_columns")
		if err != nil {
			return Fragment{}, err
		}
		quoted[i] = key.SQL
	}

	var stmt statement
	stmt.add(c.dialect.InsertPrefix(false), table)
	stmt.add("", columns)
	stmt.add("VALUES", values)
	stmt.add("", text(c.dialect.UpsertClause(quoted)))
	return stmt.finish(), nil
}

// CompileUpdate assembles
//
//	UPDATE <table> SET <col> = ?, ... [WHERE ...] [ORDER BY ...] [LIMIT n];
//
// SET params precede selection params.
func (c *SQLCompiler) CompileUpdate(q queryir.Update) (Fragment, error) {
	table, err := c.compileTable(q.Table)
	if err != nil {
		return Fragment{}, err
	}
	if len(q.Set) == 0 {
		return Fragment{}, NewError(CodeMissingClause, "set", "update requires at least one assignment")
	}

	u := newUniverse(q.Columns)
	assignments := make([]Fragment, len(q.Set))
	for i, a := range q.Set {
		key, err := c.compileKeyIn(u, queryir.Key(a.Column), "set")
		if err != nil {
			return Fragment{}, err
		}
		val := c.CompileValue(a.Value)
		assignments[i] = Fragment{
			SQL:    key.SQL + " = " + val.SQL,
			Params: val.Params,
		}
	}

	var stmt statement
	stmt.add("UPDATE", table)
	stmt.add("SET", joinFragments(", ", assignments))
	if err := c.addFilters(&stmt, q.Columns, q.Selection, q.OrderBy, q.Limit, queryir.None(), false); err != nil {
		return Fragment{}, err
	}
	return stmt.finish(), nil
}

// compileTable compiles the collection identifier.
func (c *SQLCompiler) compileTable(table string) (Fragment, error) {
	f, err := c.CompileKey(queryir.Key(table))
	if err != nil {
		return Fragment{}, NewError(CodeInvalidIdentifier, "table", "table name must not be empty")
	}
	return f, nil
}

// addFilters appends WHERE, ORDER BY, LIMIT and (when allowed and a limit
// is present) OFFSET in that fixed order.
func (c *SQLCompiler) addFilters(stmt *statement, columns []string, sel queryir.Predicate,
	order queryir.OrderBy, limit, offset queryir.Bound, withOffset bool) error {
	selection, err := c.CompileSelection(sel, columns)
	if err != nil {
		return err
	}
	orderBy, err := c.CompileOrderBy(order, columns)
	if err != nil {
		return err
	}
	lim, err := c.CompileLimit(limit)
	if err != nil {
		return err
	}

	stmt.add("WHERE", selection)
	stmt.add("ORDER BY", orderBy)
	stmt.add("LIMIT", lim)
	// An offset without a limit is dropped unchecked.
	if withOffset && !lim.IsEmpty() {
		off, err := c.CompileOffset(offset)
		if err != nil {
			return err
		}
		stmt.add("OFFSET", off)
	}
	return nil
}

// compileRows compiles the VALUES groups and the parenthesized column list.
func (c *SQLCompiler) compileRows(cols []string, records []queryir.Record) (values, columns Fragment, err error) {
	if len(cols) == 0 {
		return Fragment{}, Fragment{}, NewError(CodeMissingClause, "columns", "insert requires at least one column")
	}
	if len(records) == 0 {
		return Fragment{}, Fragment{}, NewError(CodeMissingClause, "records", "insert requires at least one record")
	}

	quoted := make([]string, len(cols))
	for i, col := range cols {
		key, err := c.CompileKey(queryir.Key(col))
		if err != nil {
			return Fragment{}, Fragment{}, err
		}
		quoted[i] = key.SQL
	}

	group := placeholderGroup(len(cols))
	groups := make([]string, len(records))
	params := make([]ir.Value, 0, len(cols)*len(records))
	for i, rec := range records {
		for _, col := range cols {
			v := rec.Get(col)
			if v == nil {
				v = ir.Null{}
			}
			params = append(params, v)
		}
		groups[i] = group
	}

	values = Fragment{SQL: strings.Join(groups, ", "), Params: params}
	columns = text(fmt.Sprintf("(%s)", strings.Join(quoted, ", ")))
	return values, columns, nil
}
