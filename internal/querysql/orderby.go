package querysql

import (
	"strconv"

	"github.com/roach88/sqlcompile/internal/queryir"
)

// CompileOrderBy compiles sort directives in declared order.
// Repeated keys are passed through.
func (c *SQLCompiler) CompileOrderBy(o queryir.OrderBy, columns []string) (Fragment, error) {
	if len(o) == 0 {
		return Fragment{}, nil
	}
	u := newUniverse(columns)
	frags := make([]Fragment, len(o))
	for i, s := range o {
		var direction string
		switch s.(type) {
		case queryir.Asc:
			direction = " ASC"
		case queryir.Desc:
			direction = " DESC"
		default:
			return Fragment{}, NewError(CodeMalformedAST, "orderby", "unsupported sort directive: %T", s)
		}
		key, err := c.compileKeyIn(u, queryir.SortKey(s), "orderby")
		if err != nil {
			return Fragment{}, err
		}
		key.SQL += direction
		frags[i] = key
	}
	return joinFragments(", ", frags), nil
}

// CompileLimit compiles a limit to an inline integer.
func (c *SQLCompiler) CompileLimit(b queryir.Bound) (Fragment, error) {
	return compileBound(b, "limit")
}

// CompileOffset compiles an offset to an inline integer.
func (c *SQLCompiler) CompileOffset(b queryir.Bound) (Fragment, error) {
	return compileBound(b, "offset")
}

// compileBound inlines n into the SQL text. Engines commonly reject
// placeholders in LIMIT/OFFSET position.
func compileBound(b queryir.Bound, clause string) (Fragment, error) {
	if !b.Set {
		return Fragment{}, nil
	}
	if b.N < 0 {
		return Fragment{}, NewError(CodeInvalidBound, clause, "%s must be non-negative, got %d", clause, b.N)
	}
	return text(strconv.FormatInt(b.N, 10)), nil
}
