package queryir

import (
	"fmt"
	"slices"

	"github.com/roach88/sqlcompile/internal/ir"
)

// ValidationResult contains non-fatal findings about a query.
//
// A query with warnings still compiles. Warnings point at input the compiler
// accepts but that probably does not do what the caller meant, such as an
// offset that is dropped because no limit was given.
type ValidationResult struct {
	// Clean is true when no warnings were found.
	Clean bool

	// Warnings lists findings in traversal order.
	Warnings []string
}

// Validate lints q without compiling it.
//
// Checks:
//  1. Offset without limit (the offset is dropped by Find and Count)
//  2. Duplicate ORDER BY keys (passed through unchanged)
//  3. NULL operands where SQL comparison is never true (>, <, LIKE, IN lists)
//  4. LIKE patterns that are not strings
//  5. Remove and Update without a selection (every row is affected)
//  6. Insert/Upsert record fields outside the column list (silently ignored)
//
// Validate is a pure function with no side effects.
func Validate(q Query) ValidationResult {
	v := &validator{
		warnings: []string{},
	}
	v.validateQuery(q)

	return ValidationResult{
		Clean:    len(v.warnings) == 0,
		Warnings: v.warnings,
	}
}

// validator accumulates warnings during traversal.
type validator struct {
	warnings []string
}

func (v *validator) addWarning(format string, args ...any) {
	v.warnings = append(v.warnings, fmt.Sprintf(format, args...))
}

func (v *validator) validateQuery(q Query) {
	switch query := q.(type) {
	case nil:
		v.addWarning("nil query")
	case Find:
		v.validateBounds(query.Limit, query.Offset)
		v.validatePredicate(query.Selection)
		v.validateOrderBy(query.OrderBy)
	case *Find:
		v.validateQuery(*query)
	case Count:
		v.validateBounds(query.Limit, query.Offset)
		v.validatePredicate(query.Selection)
		v.validateOrderBy(query.OrderBy)
	case *Count:
		v.validateQuery(*query)
	case Remove:
		if query.Selection == nil {
			v.addWarning("remove from %q has no selection and deletes every row", query.Table)
		}
		v.validatePredicate(query.Selection)
		v.validateOrderBy(query.OrderBy)
	case *Remove:
		v.validateQuery(*query)
	case Update:
		if query.Selection == nil {
			v.addWarning("update of %q has no selection and modifies every row", query.Table)
		}
		v.validatePredicate(query.Selection)
		v.validateOrderBy(query.OrderBy)
	case *Update:
		v.validateQuery(*query)
	case Insert:
		v.validateRecords(query.Columns, query.Records)
	case *Insert:
		v.validateQuery(*query)
	case Upsert:
		v.validateRecords(query.Columns, query.Records)
	case *Upsert:
		v.validateQuery(*query)
	default:
		v.addWarning("unknown query type: %T", q)
	}
}

func (v *validator) validateBounds(limit, offset Bound) {
	if offset.Set && !limit.Set {
		v.addWarning("offset %d is ignored without a limit", offset.N)
	}
}

func (v *validator) validateOrderBy(o OrderBy) {
	seen := make(map[Key]bool, len(o))
	for _, k := range o.Keys() {
		if seen[k] {
			v.addWarning("column %q appears more than once in ORDER BY", k)
		}
		seen[k] = true
	}
}

func (v *validator) validatePredicate(p Predicate) {
	switch pred := p.(type) {
	case nil:
		return
	case Gt:
		v.checkOrdered(">", pred.Key, pred.Value)
	case Gte:
		v.checkOrdered(">=", pred.Key, pred.Value)
	case Lt:
		v.checkOrdered("<", pred.Key, pred.Value)
	case Lte:
		v.checkOrdered("<=", pred.Key, pred.Value)
	case Like:
		v.checkPattern("LIKE", pred.Key, pred.Value)
	case Nlike:
		v.checkPattern("NOT LIKE", pred.Key, pred.Value)
	case In:
		v.checkList("IN", pred.Key, pred.Values)
	case Nin:
		v.checkList("NOT IN", pred.Key, pred.Values)
	case And:
		for _, child := range pred.Predicates {
			v.validatePredicate(child)
		}
	case Or:
		for _, child := range pred.Predicates {
			v.validatePredicate(child)
		}
	}
}

func (v *validator) checkOrdered(op string, key Key, val ir.Value) {
	if ir.IsNull(val) {
		v.addWarning("column %q compared %s NULL is never true", key, op)
	}
}

func (v *validator) checkPattern(op string, key Key, val ir.Value) {
	if _, ok := val.(ir.String); !ok {
		v.addWarning("column %q %s pattern is %s, not a string", key, op, ir.Kind(val))
	}
}

func (v *validator) checkList(op string, key Key, vals Values) {
	for _, val := range vals {
		if ir.IsNull(val) {
			v.addWarning("column %q %s list contains NULL, which never matches", key, op)
			return
		}
	}
}

func (v *validator) validateRecords(columns []string, records []Record) {
	known := make(map[string]bool, len(columns))
	for _, c := range columns {
		known[c] = true
	}
	reported := make(map[string]bool)
	for i, rec := range records {
		fields := make([]string, 0, len(rec))
		for field := range rec {
			fields = append(fields, field)
		}
		slices.Sort(fields)
		for _, field := range fields {
			if !known[field] && !reported[field] {
				v.addWarning("record %d field %q is not in the column list and is ignored", i, field)
				reported[field] = true
			}
		}
	}
}
