package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/sqlcompile/internal/ir"
)

func TestValidate_CleanFind(t *testing.T) {
	result := Validate(Find{
		Table:     "employees",
		Columns:   []string{"id", "age"},
		Selection: Eq{Key: "age", Value: ir.Int(23)},
		OrderBy:   OrderBy{Asc{Key: "id"}},
		Limit:     Some(10),
		Offset:    Some(20),
	})

	assert.True(t, result.Clean)
	assert.Empty(t, result.Warnings)
}

func TestValidate_OffsetWithoutLimit(t *testing.T) {
	for _, q := range []Query{
		Find{Table: "employees", Offset: Some(20)},
		&Count{Table: "employees", Offset: Some(20)},
	} {
		result := Validate(q)
		assert.False(t, result.Clean)
		assert.Equal(t, []string{"offset 20 is ignored without a limit"}, result.Warnings)
	}
}

func TestValidate_DuplicateOrderBy(t *testing.T) {
	result := Validate(Find{
		Table:   "employees",
		OrderBy: OrderBy{Asc{Key: "id"}, Desc{Key: "id"}},
	})

	assert.Equal(t, []string{`column "id" appears more than once in ORDER BY`}, result.Warnings)
}

func TestValidate_NullOperands(t *testing.T) {
	result := Validate(Count{
		Table: "employees",
		Selection: Or{Predicates: []Predicate{
			Gt{Key: "age", Value: ir.Null{}},
			In{Key: "id", Values: Values{ir.Int(1), ir.Null{}, ir.Null{}}},
			Eq{Key: "lastname", Value: ir.Null{}},
		}},
	})

	assert.Equal(t, []string{
		`column "age" compared > NULL is never true`,
		`column "id" IN list contains NULL, which never matches`,
	}, result.Warnings)
}

func TestValidate_LikePattern(t *testing.T) {
	result := Validate(Find{
		Table:     "employees",
		Selection: Nlike{Key: "age", Value: ir.Int(3)},
	})

	assert.Equal(t, []string{`column "age" NOT LIKE pattern is int, not a string`}, result.Warnings)
}

func TestValidate_UnfilteredDML(t *testing.T) {
	assert.Equal(t,
		[]string{`remove from "employees" has no selection and deletes every row`},
		Validate(Remove{Table: "employees"}).Warnings)

	assert.Equal(t,
		[]string{`update of "employees" has no selection and modifies every row`},
		Validate(&Update{Table: "employees"}).Warnings)
}

func TestValidate_RecordFieldsOutsideColumns(t *testing.T) {
	result := Validate(Insert{
		Table:   "employees",
		Columns: []string{"id", "firstname"},
		Records: []Record{
			{"firstname": ir.String("Jack"), "nickname": ir.String("Cap"), "age": ir.Int(34)},
			{"firstname": ir.String("Will"), "nickname": ir.String("Bill")},
		},
	})

	assert.Equal(t, []string{
		`record 0 field "age" is not in the column list and is ignored`,
		`record 0 field "nickname" is not in the column list and is ignored`,
	}, result.Warnings)
}

func TestValidate_Nil(t *testing.T) {
	result := Validate(nil)
	assert.False(t, result.Clean)
	assert.Equal(t, []string{"nil query"}, result.Warnings)
}
