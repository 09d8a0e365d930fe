package querysql

import (
	"strings"

	"github.com/roach88/sqlcompile/internal/ir"
	"github.com/roach88/sqlcompile/internal/queryir"
)

// universe is the set of known columns. A nil universe accepts every key.
type universe map[string]struct{}

func newUniverse(columns []string) universe {
	if len(columns) == 0 {
		return nil
	}
	u := make(universe, len(columns))
	for _, c := range columns {
		u[c] = struct{}{}
	}
	return u
}

func (u universe) check(k queryir.Key, clause string) error {
	if u == nil {
		return nil
	}
	if _, ok := u[string(k)]; !ok {
		return NewError(CodeUnknownColumn, clause, "unknown column %q", string(k))
	}
	return nil
}

// CompileKey compiles a column reference.
func (c *SQLCompiler) CompileKey(k queryir.Key) (Fragment, error) {
	escaped, err := EscapeIdentifier(c.dialect, string(k))
	if err != nil {
		return Fragment{}, err
	}
	return text(escaped), nil
}

// compileKeyIn compiles k after checking it against u.
func (c *SQLCompiler) compileKeyIn(u universe, k queryir.Key, clause string) (Fragment, error) {
	if err := u.check(k, clause); err != nil {
		return Fragment{}, err
	}
	return c.CompileKey(k)
}

// CompileValue compiles a single literal to one placeholder.
// A nil value binds as NULL.
func (c *SQLCompiler) CompileValue(v ir.Value) Fragment {
	if v == nil {
		v = ir.Null{}
	}
	return Fragment{SQL: "?", Params: []ir.Value{v}}
}

// CompileValues compiles a literal list to "(?, ?, ...)".
func (c *SQLCompiler) CompileValues(vals queryir.Values) (Fragment, error) {
	if len(vals) == 0 {
		return Fragment{}, NewError(CodeEmptyValueList, "", "value list must not be empty")
	}
	params := make([]ir.Value, len(vals))
	for i, v := range vals {
		if v == nil {
			v = ir.Null{}
		}
		params[i] = v
	}
	return Fragment{SQL: placeholderGroup(len(vals)), Params: params}, nil
}

// placeholderGroup returns "(?, ?, ..., ?)" with n placeholders.
func placeholderGroup(n int) string {
	return "(" + strings.TrimSuffix(strings.Repeat("?, ", n), ", ") + ")"
}
