package querysql

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sqlcompile/internal/ir"
	"github.com/roach88/sqlcompile/internal/queryir"
)

var employeeColumns = []string{"id", "firstname", "lastname", "age"}

func TestCompileFind_EndToEnd(t *testing.T) {
	compiler := NewSQLCompiler(nil)

	f, err := compiler.CompileQuery(queryir.Find{
		Table:      "employees",
		Columns:    employeeColumns,
		Projection: queryir.Projection{queryir.Include{Key: "firstname"}, queryir.Include{Key: "lastname"}},
		Selection:  queryir.Eq{Key: "age", Value: ir.Int(23)},
		OrderBy:    queryir.OrderBy{queryir.Asc{Key: "firstname"}, queryir.Desc{Key: "id"}},
		Limit:      queryir.Some(10),
		Offset:     queryir.Some(20),
	})
	require.NoError(t, err)

	assert.Equal(t,
		"SELECT `firstname`, `lastname` FROM `employees` WHERE `age` = ? ORDER BY `firstname` ASC, `id` DESC LIMIT 10 OFFSET 20;",
		f.SQL)
	assert.Equal(t, []ir.Value{ir.Int(23)}, f.Params)
}

func TestCompile_ReturnsDriverArgs(t *testing.T) {
	compiler := NewSQLCompiler(MySQL{})

	sql, params, err := compiler.Compile(&queryir.Find{
		Table:     "employees",
		Columns:   employeeColumns,
		Selection: queryir.Eq{Key: "firstname", Value: ir.String("Jack")},
	})
	require.NoError(t, err)

	assert.Equal(t, "SELECT `id`, `firstname`, `lastname`, `age` FROM `employees` WHERE `firstname` = ?;", sql)
	assert.NotContains(t, sql, "Jack")
	assert.Equal(t, []any{"Jack"}, params)
}

func TestCompileFind_OffsetRequiresLimit(t *testing.T) {
	compiler := NewSQLCompiler(nil)

	f, err := compiler.CompileFind(queryir.Find{
		Table:   "employees",
		Columns: []string{"id"},
		Offset:  queryir.Some(20),
	})
	require.NoError(t, err)
	assert.Equal(t, "SELECT `id` FROM `employees`;", f.SQL)
	assert.Empty(t, f.Params)
}

func TestCompileFind_DroppedOffsetIsNotChecked(t *testing.T) {
	compiler := NewSQLCompiler(nil)

	f, err := compiler.CompileFind(queryir.Find{
		Table:   "employees",
		Columns: []string{"id"},
		Offset:  queryir.Some(-1),
	})
	require.NoError(t, err)
	assert.Equal(t, "SELECT `id` FROM `employees`;", f.SQL)

	c, err := compiler.CompileCount(queryir.Count{Table: "employees", Offset: queryir.Some(-1)})
	require.NoError(t, err)
	assert.Equal(t, "SELECT COUNT(*) AS `count` FROM `employees`;", c.SQL)

	// With a limit the offset is emitted, so it must be valid.
	_, err = compiler.CompileFind(queryir.Find{
		Table:   "employees",
		Columns: []string{"id"},
		Limit:   queryir.Some(10),
		Offset:  queryir.Some(-1),
	})
	assert.Equal(t, CodeInvalidBound, CodeOf(err))
}

func TestCompileFind_RequiresColumns(t *testing.T) {
	compiler := NewSQLCompiler(nil)

	_, err := compiler.CompileFind(queryir.Find{Table: "employees"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingClause))
}

func TestCompileCount(t *testing.T) {
	compiler := NewSQLCompiler(nil)

	f, err := compiler.CompileCount(queryir.Count{
		Table:     "employees",
		Selection: queryir.Gt{Key: "age", Value: ir.Int(30)},
		Limit:     queryir.Some(1),
		Offset:    queryir.Some(0),
	})
	require.NoError(t, err)

	assert.Equal(t, "SELECT COUNT(*) AS `count` FROM `employees` WHERE `age` > ? LIMIT 1 OFFSET 0;", f.SQL)
	assert.Equal(t, []ir.Value{ir.Int(30)}, f.Params)
}

func TestCompileRemove(t *testing.T) {
	compiler := NewSQLCompiler(nil)

	f, err := compiler.CompileRemove(queryir.Remove{
		Table:     "employees",
		Selection: queryir.In{Key: "id", Values: queryir.Values{ir.Int(1), ir.Int(2)}},
		OrderBy:   queryir.OrderBy{queryir.Asc{Key: "id"}},
		Limit:     queryir.Some(2),
	})
	require.NoError(t, err)

	assert.Equal(t, "DELETE FROM `employees` WHERE `id` IN (?, ?) ORDER BY `id` ASC LIMIT 2;", f.SQL)
	assert.Equal(t, []ir.Value{ir.Int(1), ir.Int(2)}, f.Params)
}

func TestCompileRemove_NoFilter(t *testing.T) {
	compiler := NewSQLCompiler(nil)

	f, err := compiler.CompileRemove(queryir.Remove{Table: "employees"})
	require.NoError(t, err)
	assert.Equal(t, "DELETE FROM `employees`;", f.SQL)
}

func TestCompileInsert_RowParamOrdering(t *testing.T) {
	compiler := NewSQLCompiler(nil)

	f, err := compiler.CompileInsert(queryir.Insert{
		Table:   "employees",
		Columns: employeeColumns,
		Records: []queryir.Record{
			{"firstname": ir.String("Jack"), "lastname": ir.String("Sparrow"), "age": ir.Int(34)},
			{"id": ir.Int(2), "firstname": ir.String("Will"), "lastname": ir.String("Turner"), "age": ir.Null{}},
		},
	})
	require.NoError(t, err)

	assert.Equal(t,
		"INSERT INTO `employees` (`id`, `firstname`, `lastname`, `age`) VALUES (?, ?, ?, ?), (?, ?, ?, ?);",
		f.SQL)
	assert.Equal(t, []ir.Value{
		ir.Absent{}, ir.String("Jack"), ir.String("Sparrow"), ir.Int(34),
		ir.Int(2), ir.String("Will"), ir.String("Turner"), ir.Null{},
	}, f.Params)

	// Absent and Null both bind as NULL.
	args := f.Args()
	assert.Nil(t, args[0])
	assert.Nil(t, args[7])
}

func TestCompileInsert_Ignore(t *testing.T) {
	compiler := NewSQLCompiler(nil)

	f, err := compiler.CompileInsert(queryir.Insert{
		Table:   "employees",
		Columns: []string{"id"},
		Records: []queryir.Record{{"id": ir.Int(1)}},
		Ignore:  true,
	})
	require.NoError(t, err)
	assert.Equal(t, "INSERT IGNORE INTO `employees` (`id`) VALUES (?);", f.SQL)
}

func TestCompileInsert_MissingClauses(t *testing.T) {
	compiler := NewSQLCompiler(nil)

	_, err := compiler.CompileInsert(queryir.Insert{Table: "employees", Records: []queryir.Record{{}}})
	assert.Equal(t, CodeMissingClause, CodeOf(err))

	_, err = compiler.CompileInsert(queryir.Insert{Table: "employees", Columns: []string{"id"}})
	assert.Equal(t, CodeMissingClause, CodeOf(err))
}

func TestCompileUpsert(t *testing.T) {
	compiler := NewSQLCompiler(nil)

	f, err := compiler.CompileUpsert(queryir.Upsert{
		Table:         "employees",
		Columns:       []string{"id", "firstname", "age"},
		UpdateColumns: []string{"firstname", "age"},
		Records: []queryir.Record{
			{"id": ir.Int(1), "firstname": ir.String("Jack"), "age": ir.Int(34)},
		},
	})
	require.NoError(t, err)

	assert.Equal(t,
		"INSERT INTO `employees` (`id`, `firstname`, `age`) VALUES (?, ?, ?) "+
			"ON DUPLICATE KEY UPDATE `firstname` = VALUES(`firstname`), `age` = VALUES(`age`);",
		f.SQL)
	assert.Equal(t, []ir.Value{ir.Int(1), ir.String("Jack"), ir.Int(34)}, f.Params)
}

func TestCompileUpsert_UpdateColumnsRequired(t *testing.T) {
	compiler := NewSQLCompiler(nil)

	base := queryir.Upsert{
		Table:   "employees",
		Columns: []string{"id", "age"},
		Records: []queryir.Record{{"id": ir.Int(1), "age": ir.Int(34)}},
	}

	_, err := compiler.CompileUpsert(base)
	assert.True(t, errors.Is(err, ErrMissingClause))

	base.UpdateColumns = []string{"salary"}
	_, err = compiler.CompileUpsert(base)
	assert.True(t, errors.Is(err, ErrUnknownColumn))
}

func TestCompileUpdate(t *testing.T) {
	compiler := NewSQLCompiler(nil)

	f, err := compiler.CompileUpdate(queryir.Update{
		Table:     "employees",
		Set:       []queryir.Assignment{{Column: "age", Value: ir.Int(35)}},
		Selection: queryir.Eq{Key: "lastname", Value: ir.String("Sparrow")},
		OrderBy:   queryir.OrderBy{queryir.Asc{Key: "firstname"}, queryir.Desc{Key: "id"}},
		Limit:     queryir.Some(10),
	})
	require.NoError(t, err)

	assert.Equal(t,
		"UPDATE `employees` SET `age` = ? WHERE `lastname` = ? ORDER BY `firstname` ASC, `id` DESC LIMIT 10;",
		f.SQL)
	assert.Equal(t, []ir.Value{ir.Int(35), ir.String("Sparrow")}, f.Params)
}

func TestCompileUpdate_Errors(t *testing.T) {
	compiler := NewSQLCompiler(nil)

	_, err := compiler.CompileUpdate(queryir.Update{Table: "employees"})
	assert.Equal(t, CodeMissingClause, CodeOf(err))

	_, err = compiler.CompileUpdate(queryir.Update{
		Table:   "employees",
		Columns: employeeColumns,
		Set:     []queryir.Assignment{{Column: "salary", Value: ir.Int(1)}},
	})
	assert.Equal(t, CodeUnknownColumn, CodeOf(err))
}

func TestCompile_EmptyTable(t *testing.T) {
	compiler := NewSQLCompiler(nil)

	_, err := compiler.CompileQuery(queryir.Count{})
	assert.True(t, errors.Is(err, ErrInvalidIdentifier))
}

func TestCompile_NilAndUnknownQuery(t *testing.T) {
	compiler := NewSQLCompiler(nil)

	_, _, err := compiler.Compile(nil)
	assert.Equal(t, CodeMalformedAST, CodeOf(err))
}

func TestCompile_SQLiteDialect(t *testing.T) {
	compiler := NewSQLCompiler(SQLite{})

	f, err := compiler.CompileUpsert(queryir.Upsert{
		Table:         "employees",
		Columns:       []string{"id", "age"},
		UpdateColumns: []string{"age"},
		Records:       []queryir.Record{{"id": ir.Int(1), "age": ir.Int(34)}},
	})
	require.NoError(t, err)
	assert.Equal(t,
		`INSERT INTO "employees" ("id", "age") VALUES (?, ?) ON CONFLICT DO UPDATE SET "age" = excluded."age";`,
		f.SQL)

	f, err = compiler.CompileInsert(queryir.Insert{
		Table:   "employees",
		Columns: []string{"id"},
		Records: []queryir.Record{{"id": ir.Int(1)}},
		Ignore:  true,
	})
	require.NoError(t, err)
	assert.Equal(t, `INSERT OR IGNORE INTO "employees" ("id") VALUES (?);`, f.SQL)
}

// corpus covers every assembler and predicate for the property tests.
func corpus() map[string]queryir.Query {
	nested := queryir.And{Predicates: []queryir.Predicate{
		queryir.Or{Predicates: []queryir.Predicate{
			queryir.Eq{Key: "age", Value: ir.Int(18)},
			queryir.Eq{Key: "age", Value: ir.Int(23)},
		}},
		queryir.Ne{Key: "firstname", Value: ir.String("James")},
		queryir.Nin{Key: "id", Values: queryir.Values{ir.Int(1), ir.Int(2), ir.Int(3)}},
		queryir.Like{Key: "lastname", Value: ir.String("S%")},
		queryir.Eq{Key: "lastname", Value: ir.Null{}},
		queryir.Lte{Key: "age", Value: ir.Float(99.5)},
	}}

	return map[string]queryir.Query{
		"find": queryir.Find{
			Table: "employees", Columns: employeeColumns, Selection: nested,
			OrderBy: queryir.OrderBy{queryir.Desc{Key: "age"}}, Limit: queryir.Some(5), Offset: queryir.Some(5),
		},
		"count":  queryir.Count{Table: "employees", Selection: nested},
		"remove": queryir.Remove{Table: "employees", Selection: nested, Limit: queryir.Some(1)},
		"insert": queryir.Insert{
			Table: "employees", Columns: employeeColumns,
			Records: []queryir.Record{{"id": ir.Int(1)}, {"firstname": ir.String("Jack")}, {}},
		},
		"upsert": queryir.Upsert{
			Table: "employees", Columns: employeeColumns, UpdateColumns: []string{"age"},
			Records: []queryir.Record{{"id": ir.Int(1), "age": ir.Int(2)}},
		},
		"update": queryir.Update{
			Table: "employees",
			Set: []queryir.Assignment{
				{Column: "age", Value: ir.Int(35)},
				{Column: "lastname", Value: ir.Null{}},
			},
			Selection: nested,
		},
	}
}

func TestProperty_PlaceholderParity(t *testing.T) {
	for _, dialect := range []Dialect{MySQL{}, SQLite{}} {
		compiler := NewSQLCompiler(dialect)
		for name, q := range corpus() {
			t.Run(dialect.Name()+"/"+name, func(t *testing.T) {
				f, err := compiler.CompileQuery(q)
				require.NoError(t, err)
				assert.Equal(t, len(f.Params), strings.Count(f.SQL, "?"), f.SQL)
				assert.True(t, strings.HasSuffix(f.SQL, ";"))
			})
		}
	}
}

func TestProperty_Idempotent(t *testing.T) {
	compiler := NewSQLCompiler(nil)
	for name, q := range corpus() {
		t.Run(name, func(t *testing.T) {
			first, err := compiler.CompileQuery(q)
			require.NoError(t, err)
			second, err := compiler.CompileQuery(q)
			require.NoError(t, err)
			assert.Equal(t, first, second)
		})
	}
}

func TestCompileQuery_ErrorsAreNotWrapped(t *testing.T) {
	compiler := NewSQLCompiler(nil)

	_, err := compiler.CompileQuery(queryir.Find{
		Table:     "employees",
		Columns:   employeeColumns,
		Selection: queryir.In{Key: "id"},
	})
	require.Error(t, err)

	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, err, error(ce))
	assert.Equal(t, CodeEmptyValueList, ce.Code)
}
