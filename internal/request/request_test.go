package request

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sqlcompile/internal/ir"
	"github.com/roach88/sqlcompile/internal/queryir"
	"github.com/roach88/sqlcompile/internal/querysql"
)

const findYAML = `
find:
  table: employees
  columns: [id, firstname, lastname, age]
  projection:
    - include: firstname
    - include: lastname
  selection:
    eq: {key: age, value: 23}
  orderby:
    - asc: firstname
    - desc: id
  limit: 10
  offset: 20
`

func expectedFind() queryir.Find {
	return queryir.Find{
		Table:      "employees",
		Columns:    []string{"id", "firstname", "lastname", "age"},
		Projection: queryir.Projection{queryir.Include{Key: "firstname"}, queryir.Include{Key: "lastname"}},
		Selection:  queryir.Eq{Key: "age", Value: ir.Int(23)},
		OrderBy:    queryir.OrderBy{queryir.Asc{Key: "firstname"}, queryir.Desc{Key: "id"}},
		Limit:      queryir.Some(10),
		Offset:     queryir.Some(20),
	}
}

func TestParse_YAMLFind(t *testing.T) {
	q, err := Parse([]byte(findYAML), FormatYAML, "find.yaml")
	require.NoError(t, err)
	assert.Equal(t, expectedFind(), q)
}

func TestParse_JSONFind(t *testing.T) {
	doc := `{"find": {
		"table": "employees",
		"columns": ["id", "firstname", "lastname", "age"],
		"projection": [{"include": "firstname"}, {"include": "lastname"}],
		"selection": {"eq": {"key": "age", "value": 23}},
		"orderby": [{"asc": "firstname"}, {"desc": "id"}],
		"limit": 10,
		"offset": 20
	}}`

	q, err := Parse([]byte(doc), FormatJSON, "find.json")
	require.NoError(t, err)
	assert.Equal(t, expectedFind(), q)
}

func TestParse_CUEFind(t *testing.T) {
	doc := `
_columns: ["id", "firstname", "lastname", "age"]

find: {
	table:   "employees"
	columns: _columns
	projection: [{include: "firstname"}, {include: "lastname"}]
	selection: eq: {key: "age", value: 23}
	orderby: [{asc: "firstname"}, {desc: "id"}]
	limit:  10
	offset: 20
}
`

	q, err := Parse([]byte(doc), FormatCUE, "find.cue")
	require.NoError(t, err)
	assert.Equal(t, expectedFind(), q)
}

func TestParse_CUERejectsIncomplete(t *testing.T) {
	doc := `count: {table: string}`

	_, err := Parse([]byte(doc), FormatCUE, "count.cue")
	assert.Error(t, err)
}

func TestParse_NestedSelection(t *testing.T) {
	doc := `
count:
  table: employees
  selection:
    and:
      - or:
          - eq: {key: age, value: 18}
          - eq: {key: age, value: 23}
      - ne: {key: firstname, value: James}
      - nin: {key: id, values: [1, 2]}
      - eq: {key: lastname, value: null}
`

	q, err := Parse([]byte(doc), FormatYAML, "count.yaml")
	require.NoError(t, err)
	assert.Equal(t, queryir.Count{
		Table: "employees",
		Selection: queryir.And{Predicates: []queryir.Predicate{
			queryir.Or{Predicates: []queryir.Predicate{
				queryir.Eq{Key: "age", Value: ir.Int(18)},
				queryir.Eq{Key: "age", Value: ir.Int(23)},
			}},
			queryir.Ne{Key: "firstname", Value: ir.String("James")},
			queryir.Nin{Key: "id", Values: queryir.Values{ir.Int(1), ir.Int(2)}},
			queryir.Eq{Key: "lastname", Value: ir.Null{}},
		}},
	}, q)
}

func TestParse_DMLShapes(t *testing.T) {
	testCases := []struct {
		name string
		doc  string
		want queryir.Query
	}{
		{
			name: "insert ignore",
			doc: `
insert:
  table: employees
  columns: [id, firstname]
  ignore: true
  records:
    - {firstname: Jack}
    - {id: 2, firstname: {$absent: true}}
`,
			want: queryir.Insert{
				Table:   "employees",
				Columns: []string{"id", "firstname"},
				Ignore:  true,
				Records: []queryir.Record{
					{"firstname": ir.String("Jack")},
					{"id": ir.Int(2), "firstname": ir.Absent{}},
				},
			},
		},
		{
			name: "upsert update columns from primary key",
			doc: `
upsert:
  table: employees
  columns: [id, firstname, age]
  primary_key: [id]
  records:
    - {id: 1, firstname: Jack, age: 34}
`,
			want: queryir.Upsert{
				Table:         "employees",
				Columns:       []string{"id", "firstname", "age"},
				UpdateColumns: []string{"firstname", "age"},
				Records: []queryir.Record{
					{"id": ir.Int(1), "firstname": ir.String("Jack"), "age": ir.Int(34)},
				},
			},
		},
		{
			name: "update",
			doc: `
update:
  table: employees
  set:
    - {column: age, value: 35}
    - {column: nickname}
  selection: {eq: {key: lastname, value: Sparrow}}
  limit: 10
`,
			want: queryir.Update{
				Table: "employees",
				Set: []queryir.Assignment{
					{Column: "age", Value: ir.Int(35)},
					{Column: "nickname", Value: ir.Null{}},
				},
				Selection: queryir.Eq{Key: "lastname", Value: ir.String("Sparrow")},
				Limit:     queryir.Some(10),
			},
		},
		{
			name: "remove",
			doc:  `remove: {table: employees, selection: {lt: {key: age, value: 18}}}`,
			want: queryir.Remove{
				Table:     "employees",
				Selection: queryir.Lt{Key: "age", Value: ir.Int(18)},
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			q, err := Parse([]byte(tc.doc), FormatYAML, tc.name)
			require.NoError(t, err)
			assert.Equal(t, tc.want, q)
		})
	}
}

func TestParse_Errors(t *testing.T) {
	testCases := []struct {
		name string
		doc  string
		code querysql.ErrorCode
	}{
		{"two statements", `{find: {table: a}, count: {table: a}}`, querysql.CodeMalformedAST},
		{"unknown statement", `{select: {table: a}}`, querysql.CodeMalformedAST},
		{"unknown field", `{count: {table: a, having: x}}`, querysql.CodeMalformedAST},
		{"unknown operator", `{count: {table: a, selection: {between: {key: a, value: 1}}}}`, querysql.CodeUnknownOperator},
		{"fractional limit", `{count: {table: a, limit: 1.5}}`, querysql.CodeInvalidBound},
		{"string limit", `{count: {table: a, limit: ten}}`, querysql.CodeInvalidBound},
		{"values not a list", `{count: {table: a, selection: {in: {key: a, values: 1}}}}`, querysql.CodeMalformedAST},
		{"bad directive", `{find: {table: a, orderby: [{up: id}]}}`, querysql.CodeMalformedAST},
		{"bad literal", `{count: {table: a, selection: {eq: {key: a, value: {$uuid: x}}}}}`, querysql.CodeMalformedAST},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.doc), FormatYAML, tc.name)
			require.Error(t, err)
			assert.Equal(t, tc.code, querysql.CodeOf(err), "got %v", err)
		})
	}
}

func TestParse_IntegralFloatBound(t *testing.T) {
	q, err := Parse([]byte(`{"count": {"table": "a", "limit": 10.0}}`), FormatJSON, "a.json")
	require.NoError(t, err)
	assert.Equal(t, queryir.Some(10), q.(queryir.Count).Limit)
}

func TestParse_BoundOverflow(t *testing.T) {
	_, err := Parse([]byte(`{"count": {"table": "a", "limit": 9223372036854775808}}`), FormatJSON, "a.json")
	require.Error(t, err)
	assert.Equal(t, querysql.CodeInvalidBound, querysql.CodeOf(err))
	assert.Contains(t, err.Error(), "must be an integer")

	for _, f := range []float64{math.Pow(2, 63), -math.Pow(2, 63), math.Inf(1)} {
		_, err := boundFromFloat(f, "limit")
		assert.Equal(t, querysql.CodeInvalidBound, querysql.CodeOf(err), "%v", f)
	}

	b, err := boundFromFloat(math.Pow(2, 62), "limit")
	require.NoError(t, err)
	assert.Equal(t, queryir.Some(1<<62), b)
}

func TestParse_NegativeBoundReachesCompiler(t *testing.T) {
	q, err := Parse([]byte(`{count: {table: a, limit: -1}}`), FormatYAML, "a.yaml")
	require.NoError(t, err)

	_, err = querysql.NewSQLCompiler(nil).CompileQuery(q)
	assert.Equal(t, querysql.CodeInvalidBound, querysql.CodeOf(err))
}

func TestMarshal_RoundTrip(t *testing.T) {
	dec, err := ir.NewDecimal("19.99")
	require.NoError(t, err)

	queries := []queryir.Query{
		expectedFind(),
		queryir.Insert{
			Table:   "employees",
			Columns: []string{"id", "salary", "hired"},
			Records: []queryir.Record{{"id": ir.Int(1), "salary": dec, "hired": ir.Float(1.5)}},
		},
		queryir.Update{
			Table:     "employees",
			Set:       []queryir.Assignment{{Column: "age", Value: ir.Int(35)}},
			Selection: queryir.In{Key: "id", Values: queryir.Values{ir.Int(1), ir.Bool(true)}},
		},
	}

	for _, q := range queries {
		data, err := Marshal(q)
		require.NoError(t, err)

		back, err := Parse(data, FormatJSON, "roundtrip.json")
		require.NoError(t, err)

		again, err := Marshal(back)
		require.NoError(t, err)
		assert.Equal(t, string(data), string(again))
	}
}

func TestLoad_ByExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "find.yml")
	require.NoError(t, os.WriteFile(path, []byte(findYAML), 0o644))

	q, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, expectedFind(), q)

	_, err = Load(filepath.Join(dir, "find.toml"))
	assert.Error(t, err)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestNonKeyColumns(t *testing.T) {
	assert.Equal(t, []string{"firstname", "age"}, NonKeyColumns([]string{"id", "firstname", "age"}, []string{"id"}))
	assert.Nil(t, NonKeyColumns([]string{"id"}, []string{"id"}))
}
