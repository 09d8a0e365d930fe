package querysql

import (
	"fmt"

	"github.com/roach88/sqlcompile/internal/ir"
	"github.com/roach88/sqlcompile/internal/queryir"
)

// CompileSelection compiles a selection predicate to a WHERE body.
//
// A nil selection compiles to an empty fragment. When columns is non-empty,
// every key in the tree must belong to it.
//
// CRITICAL: literals are never interpolated, they always become "?" params.
func (c *SQLCompiler) CompileSelection(sel queryir.Predicate, columns []string) (Fragment, error) {
	if sel == nil {
		return Fragment{}, nil
	}
	return c.compilePredicate(sel, newUniverse(columns))
}

func (c *SQLCompiler) compilePredicate(p queryir.Predicate, u universe) (Fragment, error) {
	switch pred := p.(type) {
	case nil:
		return Fragment{}, NewError(CodeMalformedAST, "selection", "nil predicate")
	case queryir.Eq:
		if ir.IsNull(pred.Value) {
			return c.compileNullTest(pred.Key, "IS NULL", u)
		}
		return c.compileComparison(pred.Key, "=", pred.Value, u)
	case queryir.Ne:
		if ir.IsNull(pred.Value) {
			return c.compileNullTest(pred.Key, "IS NOT NULL", u)
		}
		return c.compileComparison(pred.Key, "!=", pred.Value, u)
	case queryir.Gt:
		return c.compileComparison(pred.Key, ">", pred.Value, u)
	case queryir.Gte:
		return c.compileComparison(pred.Key, ">=", pred.Value, u)
	case queryir.Lt:
		return c.compileComparison(pred.Key, "<", pred.Value, u)
	case queryir.Lte:
		return c.compileComparison(pred.Key, "<=", pred.Value, u)
	case queryir.Like:
		return c.compileComparison(pred.Key, "LIKE", pred.Value, u)
	case queryir.Nlike:
		return c.compileComparison(pred.Key, "NOT LIKE", pred.Value, u)
	case queryir.In:
		return c.compileMembership(pred.Key, "IN", pred.Values, u)
	case queryir.Nin:
		return c.compileMembership(pred.Key, "NOT IN", pred.Values, u)
	case queryir.And:
		return c.compileJunction("AND", pred.Predicates, u)
	case queryir.Or:
		return c.compileJunction("OR", pred.Predicates, u)
	default:
		return Fragment{}, NewError(CodeUnknownOperator, "selection", "unsupported predicate type: %T", p)
	}
}

// compileComparison compiles "<key> <op> ?".
func (c *SQLCompiler) compileComparison(k queryir.Key, op string, v ir.Value, u universe) (Fragment, error) {
	key, err := c.compileKeyIn(u, k, "selection")
	if err != nil {
		return Fragment{}, err
	}
	val := c.CompileValue(v)
	return Fragment{
		SQL:    fmt.Sprintf("%s %s %s", key.SQL, op, val.SQL),
		Params: append(key.Params, val.Params...),
	}, nil
}

// compileNullTest compiles "<key> IS [NOT] NULL" with no params.
func (c *SQLCompiler) compileNullTest(k queryir.Key, test string, u universe) (Fragment, error) {
	key, err := c.compileKeyIn(u, k, "selection")
	if err != nil {
		return Fragment{}, err
	}
	return Fragment{SQL: key.SQL + " " + test, Params: key.Params}, nil
}

// compileMembership compiles "<key> [NOT] IN (?, ...)".
func (c *SQLCompiler) compileMembership(k queryir.Key, op string, vals queryir.Values, u universe) (Fragment, error) {
	key, err := c.compileKeyIn(u, k, "selection")
	if err != nil {
		return Fragment{}, err
	}
	list, err := c.CompileValues(vals)
	if err != nil {
		return Fragment{}, err
	}
	return Fragment{
		SQL:    fmt.Sprintf("%s %s %s", key.SQL, op, list.SQL),
		Params: append(key.Params, list.Params...),
	}, nil
}

// compileJunction wraps each child in parentheses and joins them with op.
func (c *SQLCompiler) compileJunction(op string, children []queryir.Predicate, u universe) (Fragment, error) {
	if len(children) == 0 {
		return Fragment{}, NewError(CodeMalformedAST, "selection", "%s requires at least one predicate", op)
	}
	frags := make([]Fragment, len(children))
	for i, child := range children {
		f, err := c.compilePredicate(child, u)
		if err != nil {
			return Fragment{}, err
		}
		f.SQL = "(" + f.SQL + ")"
		frags[i] = f
	}
	return joinFragments(" "+op+" ", frags), nil
}
