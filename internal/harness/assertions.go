package harness

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/sqlcompile/internal/ir"
	"github.com/roach88/sqlcompile/internal/queryir"
	"github.com/roach88/sqlcompile/internal/querysql"
	"github.com/roach88/sqlcompile/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
	SQL      string // Statement under test, if any
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if e.SQL != "" {
		fmt.Fprintf(&buf, "\nStatement:\n  %s\n", e.SQL)
	}

	return buf.String()
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Ctx      context.Context
	Store    *store.Store // nil for compile-only scenarios
	Compiler *querysql.SQLCompiler

	// Queries are the decoded requests, parallel to Result.Cases.
	Queries []queryir.Query
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertPlaceholderParity:
			err = assertPlaceholderParity(result, actx)
		case AssertIdempotent:
			err = assertIdempotent(result, actx)
		case AssertFinalState:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: final_state requires database context", i)
			} else {
				err = assertFinalState(actx.Ctx, actx.Store, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}

// assertPlaceholderParity checks that every compiled statement binds exactly
// one param per placeholder.
func assertPlaceholderParity(result *Result, actx *AssertionContext) error {
	quote := byte('`')
	if actx != nil && actx.Compiler != nil {
		quote = actx.Compiler.Dialect().QuoteChar()
	}

	for _, cr := range result.Cases {
		if cr.SQL == "" {
			continue
		}
		if n := CountPlaceholders(cr.SQL, quote); n != len(cr.Params) {
			return &AssertionError{
				Type:     AssertPlaceholderParity,
				Expected: fmt.Sprintf("case %q binds %d params", cr.Name, n),
				Actual:   fmt.Sprintf("%d params", len(cr.Params)),
				SQL:      cr.SQL,
			}
		}
	}
	return nil
}

// CountPlaceholders counts "?" outside quoted identifiers.
// A doubled quote inside an identifier toggles twice and stays quoted.
func CountPlaceholders(sql string, quote byte) int {
	n := 0
	quoted := false
	for i := 0; i < len(sql); i++ {
		switch sql[i] {
		case quote:
			quoted = !quoted
		case '?':
			if !quoted {
				n++
			}
		}
	}
	return n
}

// assertIdempotent recompiles every decoded request with a fresh compiler
// and through a memo, and checks the output is unchanged.
func assertIdempotent(result *Result, actx *AssertionContext) error {
	if actx == nil || actx.Compiler == nil {
		return fmt.Errorf("idempotent assertion requires a compiler")
	}

	fresh := querysql.NewSQLCompiler(actx.Compiler.Dialect())
	memo := querysql.NewMemo(fresh)

	for i, q := range actx.Queries {
		if q == nil || i >= len(result.Cases) {
			continue
		}
		cr := result.Cases[i]
		if cr.SQL == "" {
			continue
		}

		for pass := 0; pass < 2; pass++ {
			f, err := memo.CompileQuery(q)
			if err != nil {
				return &AssertionError{
					Type:     AssertIdempotent,
					Expected: fmt.Sprintf("case %q compiles again", cr.Name),
					Actual:   err.Error(),
					SQL:      cr.SQL,
				}
			}
			if f.SQL != cr.SQL {
				return &AssertionError{
					Type:     AssertIdempotent,
					Expected: fmt.Sprintf("case %q recompiles to the same statement", cr.Name),
					Actual:   f.SQL,
					SQL:      cr.SQL,
				}
			}
			if msg := compareValues(cr.Params, f.Params); msg != "" {
				return &AssertionError{
					Type:     AssertIdempotent,
					Expected: fmt.Sprintf("case %q recompiles to the same params", cr.Name),
					Actual:   msg,
					SQL:      cr.SQL,
				}
			}
		}
	}
	return nil
}

// assertFinalState reads the table through the compiler and checks the
// matching rows.
//
// Rows are ordered by the table's first column. Where entries become
// equality predicates in sorted key order. Expected rows use subset
// semantics: only the listed fields are compared.
func assertFinalState(ctx context.Context, st *store.Store, assertion Assertion) error {
	sel, err := whereSelection(assertion.Where)
	if err != nil {
		return err
	}

	q, err := st.FillColumns(ctx, queryir.Find{Table: assertion.Table, Selection: sel})
	if err != nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("table %s exists", assertion.Table),
			Actual:   err.Error(),
		}
	}
	find := q.(queryir.Find)
	find.OrderBy = queryir.OrderBy{queryir.Asc{Key: queryir.Key(find.Columns[0])}}

	out, err := st.Run(ctx, find)
	if err != nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("query table %s", assertion.Table),
			Actual:   fmt.Sprintf("query error: %v", err),
			SQL:      out.Fragment.SQL,
		}
	}

	records := out.Rows.Records()
	if assertion.Count != nil && len(records) != *assertion.Count {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("%d rows in %s where %s", *assertion.Count, assertion.Table, formatWhereClause(assertion.Where)),
			Actual:   fmt.Sprintf("%d rows", len(records)),
			SQL:      out.Fragment.SQL,
		}
	}
	if assertion.Expect != nil {
		if msg := matchRows(assertion.Expect, records); msg != "" {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("rows in %s where %s", assertion.Table, formatWhereClause(assertion.Where)),
				Actual:   msg,
				SQL:      out.Fragment.SQL,
			}
		}
	}
	return nil
}

// whereSelection turns equality filters into a predicate, nil when empty.
func whereSelection(where map[string]interface{}) (queryir.Predicate, error) {
	if len(where) == 0 {
		return nil, nil
	}

	keys := sortedKeys(where)
	preds := make([]queryir.Predicate, 0, len(keys))
	for _, k := range keys {
		v, err := ir.FromAny(where[k])
		if err != nil {
			return nil, fmt.Errorf("where %q: %w", k, err)
		}
		preds = append(preds, queryir.Eq{Key: queryir.Key(k), Value: v})
	}
	if len(preds) == 1 {
		return preds[0], nil
	}
	return queryir.And{Predicates: preds}, nil
}

// formatWhereClause creates a human-readable description of WHERE conditions.
func formatWhereClause(where map[string]interface{}) string {
	if len(where) == 0 {
		return "(no conditions)"
	}

	keys := sortedKeys(where)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, where[k]))
	}
	return strings.Join(parts, " AND ")
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// matchRows checks row count and, per row, that every expected field is
// present with an equal value. Returns "" on match.
func matchRows(expected []map[string]interface{}, actual []map[string]any) string {
	if len(expected) != len(actual) {
		return fmt.Sprintf("expected %d rows, got %d", len(expected), len(actual))
	}
	for i, exp := range expected {
		for _, key := range sortedKeys(exp) {
			got, ok := actual[i][key]
			if !ok {
				return fmt.Sprintf("row %d: field %q not present in result", i, key)
			}
			if !valuesEqual(exp[key], got) {
				return fmt.Sprintf("row %d: field %q = %v (type %T), expected %v (type %T)", i, key, got, got, exp[key], exp[key])
			}
		}
	}
	return ""
}

// compareParams checks bound params against request literals.
func compareParams(expected []interface{}, actual []ir.Value) string {
	want := make([]ir.Value, len(expected))
	for i, raw := range expected {
		v, err := ir.FromAny(raw)
		if err != nil {
			return fmt.Sprintf("expected param %d: %v", i, err)
		}
		want[i] = v
	}
	if msg := compareValues(want, actual); msg != "" {
		return "params mismatch: " + msg
	}
	return ""
}

// compareValues compares literal lists by their canonical encoding.
func compareValues(expected, actual []ir.Value) string {
	if len(expected) != len(actual) {
		return fmt.Sprintf("expected %d params, got %d", len(expected), len(actual))
	}
	for i := range expected {
		want, err := canonicalLiteral(expected[i])
		if err != nil {
			return err.Error()
		}
		got, err := canonicalLiteral(actual[i])
		if err != nil {
			return err.Error()
		}
		if !bytes.Equal(want, got) {
			return fmt.Sprintf("param %d: expected %s, got %s", i, want, got)
		}
	}
	return ""
}

// valuesEqual compares a scenario literal with a scanned column value.
// Both sides are lifted to literals, so int and int64 compare equal and
// a string never equals a number.
func valuesEqual(expected, actual any) bool {
	want, err := literalBytes(expected)
	if err != nil {
		return false
	}
	got, err := literalBytes(actual)
	if err != nil {
		return false
	}
	return bytes.Equal(want, got)
}

func literalBytes(v any) ([]byte, error) {
	lit, err := ir.FromAny(v)
	if err != nil {
		return nil, err
	}
	return canonicalLiteral(lit)
}

func canonicalLiteral(v ir.Value) ([]byte, error) {
	return ir.MarshalCanonical(ir.LiteralTree(v))
}
