package request

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"sort"

	"github.com/roach88/sqlcompile/internal/ir"
	"github.com/roach88/sqlcompile/internal/queryir"
	"github.com/roach88/sqlcompile/internal/querysql"
)

// allowedFields lists the clauses each statement shape accepts.
var allowedFields = map[string][]string{
	"find":   {"table", "columns", "projection", "selection", "orderby", "limit", "offset"},
	"count":  {"table", "columns", "selection", "orderby", "limit", "offset"},
	"remove": {"table", "columns", "selection", "orderby", "limit"},
	"insert": {"table", "columns", "records", "ignore"},
	"upsert": {"table", "columns", "update_columns", "primary_key", "records"},
	"update": {"table", "columns", "set", "selection", "orderby", "limit"},
}

// Decode converts a generic document tree to a query.
func Decode(doc any) (queryir.Query, error) {
	top, err := asMap(doc, "request")
	if err != nil {
		return nil, err
	}
	if len(top) != 1 {
		return nil, malformed("request", "expected exactly one of find, count, remove, insert, upsert or update, got %d keys", len(top))
	}

	for shape, raw := range top {
		allowed, ok := allowedFields[shape]
		if !ok {
			return nil, malformed("request", "unknown statement %q", shape)
		}
		body, err := asMap(raw, shape)
		if err != nil {
			return nil, err
		}
		if err := checkFields(shape, body, allowed); err != nil {
			return nil, err
		}
		return decodeShape(shape, body)
	}
	return nil, malformed("request", "empty request")
}

func decodeShape(shape string, body map[string]any) (queryir.Query, error) {
	table, err := optionalString(body, "table")
	if err != nil {
		return nil, err
	}
	columns, err := optionalStrings(body, "columns")
	if err != nil {
		return nil, err
	}

	switch shape {
	case "find":
		q := queryir.Find{Table: table, Columns: columns}
		if q.Projection, err = decodeProjection(body["projection"]); err != nil {
			return nil, err
		}
		if err := decodeFilters(body, &q.Selection, &q.OrderBy, &q.Limit); err != nil {
			return nil, err
		}
		if q.Offset, err = decodeBound(body["offset"], "offset"); err != nil {
			return nil, err
		}
		return q, nil
	case "count":
		q := queryir.Count{Table: table, Columns: columns}
		if err := decodeFilters(body, &q.Selection, &q.OrderBy, &q.Limit); err != nil {
			return nil, err
		}
		if q.Offset, err = decodeBound(body["offset"], "offset"); err != nil {
			return nil, err
		}
		return q, nil
	case "remove":
		q := queryir.Remove{Table: table, Columns: columns}
		if err := decodeFilters(body, &q.Selection, &q.OrderBy, &q.Limit); err != nil {
			return nil, err
		}
		return q, nil
	case "insert":
		q := queryir.Insert{Table: table, Columns: columns}
		if q.Records, err = decodeRecords(body["records"]); err != nil {
			return nil, err
		}
		if raw, ok := body["ignore"]; ok && raw != nil {
			b, ok := raw.(bool)
			if !ok {
				return nil, malformed("ignore", "expected a boolean, got %T", raw)
			}
			q.Ignore = b
		}
		return q, nil
	case "upsert":
		q := queryir.Upsert{Table: table, Columns: columns}
		if q.Records, err = decodeRecords(body["records"]); err != nil {
			return nil, err
		}
		if q.UpdateColumns, err = optionalStrings(body, "update_columns"); err != nil {
			return nil, err
		}
		primaryKey, err := optionalStrings(body, "primary_key")
		if err != nil {
			return nil, err
		}
		if len(q.UpdateColumns) == 0 && len(primaryKey) > 0 {
			q.UpdateColumns = NonKeyColumns(columns, primaryKey)
		}
		return q, nil
	case "update":
		q := queryir.Update{Table: table, Columns: columns}
		if q.Set, err = decodeAssignments(body["set"]); err != nil {
			return nil, err
		}
		if err := decodeFilters(body, &q.Selection, &q.OrderBy, &q.Limit); err != nil {
			return nil, err
		}
		return q, nil
	}
	return nil, malformed("request", "unknown statement %q", shape)
}

// NonKeyColumns returns columns minus primaryKey, in column order.
func NonKeyColumns(columns, primaryKey []string) []string {
	var out []string
	for _, c := range columns {
		if !slices.Contains(primaryKey, c) {
			out = append(out, c)
		}
	}
	return out
}

func decodeFilters(body map[string]any, sel *queryir.Predicate, order *queryir.OrderBy, limit *queryir.Bound) error {
	var err error
	if raw, ok := body["selection"]; ok && raw != nil {
		if *sel, err = DecodePredicate(raw); err != nil {
			return fmt.Errorf("selection: %w", err)
		}
	}
	if *order, err = decodeOrderBy(body["orderby"]); err != nil {
		return err
	}
	if *limit, err = decodeBound(body["limit"], "limit"); err != nil {
		return err
	}
	return nil
}

// DecodePredicate converts a predicate tree such as
// {"eq": {"key": "age", "value": 23}} to a queryir.Predicate.
func DecodePredicate(raw any) (queryir.Predicate, error) {
	node, err := asMap(raw, "predicate")
	if err != nil {
		return nil, err
	}
	if len(node) != 1 {
		return nil, malformed("predicate", "expected exactly one operator, got %d keys", len(node))
	}

	for op, arg := range node {
		switch op {
		case "and", "or":
			list, err := asList(arg, op)
			if err != nil {
				return nil, err
			}
			children := make([]queryir.Predicate, len(list))
			for i, child := range list {
				if children[i], err = DecodePredicate(child); err != nil {
					return nil, fmt.Errorf("%s[%d]: %w", op, i, err)
				}
			}
			if op == "and" {
				return queryir.And{Predicates: children}, nil
			}
			return queryir.Or{Predicates: children}, nil
		case "in", "nin":
			key, vals, err := decodeMembership(op, arg)
			if err != nil {
				return nil, err
			}
			if op == "in" {
				return queryir.In{Key: key, Values: vals}, nil
			}
			return queryir.Nin{Key: key, Values: vals}, nil
		case "eq", "ne", "gt", "gte", "lt", "lte", "like", "nlike":
			key, val, err := decodeComparison(op, arg)
			if err != nil {
				return nil, err
			}
			return comparison(op, key, val), nil
		default:
			return nil, querysql.NewError(querysql.CodeUnknownOperator, "predicate", "unknown operator %q", op)
		}
	}
	return nil, malformed("predicate", "empty predicate")
}

func comparison(op string, key queryir.Key, val ir.Value) queryir.Predicate {
	switch op {
	case "eq":
		return queryir.Eq{Key: key, Value: val}
	case "ne":
		return queryir.Ne{Key: key, Value: val}
	case "gt":
		return queryir.Gt{Key: key, Value: val}
	case "gte":
		return queryir.Gte{Key: key, Value: val}
	case "lt":
		return queryir.Lt{Key: key, Value: val}
	case "lte":
		return queryir.Lte{Key: key, Value: val}
	case "like":
		return queryir.Like{Key: key, Value: val}
	default:
		return queryir.Nlike{Key: key, Value: val}
	}
}

func decodeComparison(op string, arg any) (queryir.Key, ir.Value, error) {
	body, err := asMap(arg, op)
	if err != nil {
		return "", nil, err
	}
	if err := checkFields(op, body, []string{"key", "value"}); err != nil {
		return "", nil, err
	}
	key, err := requiredString(body, "key", op)
	if err != nil {
		return "", nil, err
	}
	val, err := literal(body["value"], op)
	if err != nil {
		return "", nil, err
	}
	return queryir.Key(key), val, nil
}

func decodeMembership(op string, arg any) (queryir.Key, queryir.Values, error) {
	body, err := asMap(arg, op)
	if err != nil {
		return "", nil, err
	}
	if err := checkFields(op, body, []string{"key", "values"}); err != nil {
		return "", nil, err
	}
	key, err := requiredString(body, "key", op)
	if err != nil {
		return "", nil, err
	}
	list, err := asList(body["values"], op+".values")
	if err != nil {
		return "", nil, err
	}
	vals := make(queryir.Values, len(list))
	for i, raw := range list {
		if vals[i], err = literal(raw, fmt.Sprintf("%s.values[%d]", op, i)); err != nil {
			return "", nil, err
		}
	}
	return queryir.Key(key), vals, nil
}

func decodeProjection(raw any) (queryir.Projection, error) {
	if raw == nil {
		return nil, nil
	}
	list, err := asList(raw, "projection")
	if err != nil {
		return nil, err
	}
	var out queryir.Projection
	for i, item := range list {
		dir, key, err := directive(item, fmt.Sprintf("projection[%d]", i), "include", "exclude")
		if err != nil {
			return nil, err
		}
		if dir == "include" {
			out = append(out, queryir.Include{Key: key})
		} else {
			out = append(out, queryir.Exclude{Key: key})
		}
	}
	return out, nil
}

func decodeOrderBy(raw any) (queryir.OrderBy, error) {
	if raw == nil {
		return nil, nil
	}
	list, err := asList(raw, "orderby")
	if err != nil {
		return nil, err
	}
	var out queryir.OrderBy
	for i, item := range list {
		dir, key, err := directive(item, fmt.Sprintf("orderby[%d]", i), "asc", "desc")
		if err != nil {
			return nil, err
		}
		if dir == "asc" {
			out = append(out, queryir.Asc{Key: key})
		} else {
			out = append(out, queryir.Desc{Key: key})
		}
	}
	return out, nil
}

// directive decodes a single-key object such as {"asc": "id"}.
func directive(raw any, node string, names ...string) (string, queryir.Key, error) {
	obj, err := asMap(raw, node)
	if err != nil {
		return "", "", err
	}
	if len(obj) != 1 {
		return "", "", malformed(node, "expected one of %v, got %d keys", names, len(obj))
	}
	for name, val := range obj {
		if !slices.Contains(names, name) {
			return "", "", malformed(node, "unknown directive %q (expected one of %v)", name, names)
		}
		key, ok := val.(string)
		if !ok {
			return "", "", malformed(node, "%s expects a column name, got %T", name, val)
		}
		return name, queryir.Key(key), nil
	}
	return "", "", malformed(node, "empty directive")
}

// decodeBound accepts integers, and floats with no fractional part.
func decodeBound(raw any, node string) (queryir.Bound, error) {
	switch val := raw.(type) {
	case nil:
		return queryir.None(), nil
	case int:
		return queryir.Some(int64(val)), nil
	case int64:
		return queryir.Some(val), nil
	case uint64:
		if val > math.MaxInt64 {
			return queryir.None(), invalidBound(node, raw)
		}
		return queryir.Some(int64(val)), nil
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return queryir.Some(n), nil
		}
		f, err := val.Float64()
		if err != nil {
			return queryir.None(), invalidBound(node, raw)
		}
		return boundFromFloat(f, node)
	case float64:
		return boundFromFloat(val, node)
	default:
		return queryir.None(), invalidBound(node, raw)
	}
}

func boundFromFloat(f float64, node string) (queryir.Bound, error) {
	if f != math.Trunc(f) || math.IsInf(f, 0) || math.Abs(f) >= math.MaxInt64 {
		return queryir.None(), invalidBound(node, f)
	}
	return queryir.Some(int64(f)), nil
}

func invalidBound(node string, raw any) error {
	return querysql.NewError(querysql.CodeInvalidBound, node, "%s must be an integer, got %v", node, raw)
}

func decodeRecords(raw any) ([]queryir.Record, error) {
	if raw == nil {
		return nil, nil
	}
	list, err := asList(raw, "records")
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	out := make([]queryir.Record, len(list))
	for i, item := range list {
		node := fmt.Sprintf("records[%d]", i)
		obj, err := asMap(item, node)
		if err != nil {
			return nil, err
		}
		rec := make(queryir.Record, len(obj))
		for field, v := range obj {
			if rec[field], err = literal(v, node+"."+field); err != nil {
				return nil, err
			}
		}
		out[i] = rec
	}
	return out, nil
}

func decodeAssignments(raw any) ([]queryir.Assignment, error) {
	if raw == nil {
		return nil, nil
	}
	list, err := asList(raw, "set")
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	out := make([]queryir.Assignment, len(list))
	for i, item := range list {
		node := fmt.Sprintf("set[%d]", i)
		obj, err := asMap(item, node)
		if err != nil {
			return nil, err
		}
		if err := checkFields(node, obj, []string{"column", "value"}); err != nil {
			return nil, err
		}
		col, err := requiredString(obj, "column", node)
		if err != nil {
			return nil, err
		}
		val, err := literal(obj["value"], node)
		if err != nil {
			return nil, err
		}
		out[i] = queryir.Assignment{Column: col, Value: val}
	}
	return out, nil
}

func literal(raw any, node string) (ir.Value, error) {
	v, err := ir.FromAny(raw)
	if err != nil {
		return nil, malformed(node, "%v", err)
	}
	return v, nil
}

func checkFields(node string, body map[string]any, allowed []string) error {
	var unknown []string
	for k := range body {
		if !slices.Contains(allowed, k) {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return malformed(node, "unknown field(s) %v", unknown)
	}
	return nil
}

func asMap(raw any, node string) (map[string]any, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, malformed(node, "expected an object, got %T", raw)
	}
	return m, nil
}

func asList(raw any, node string) ([]any, error) {
	l, ok := raw.([]any)
	if !ok {
		return nil, malformed(node, "expected a list, got %T", raw)
	}
	return l, nil
}

func requiredString(body map[string]any, field, node string) (string, error) {
	s, ok := body[field].(string)
	if !ok {
		return "", malformed(node, "%s must be a string, got %T", field, body[field])
	}
	return s, nil
}

func optionalString(body map[string]any, field string) (string, error) {
	raw, ok := body[field]
	if !ok || raw == nil {
		return "", nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", malformed(field, "expected a string, got %T", raw)
	}
	return s, nil
}

// optionalStrings returns nil for a missing or empty list.
func optionalStrings(body map[string]any, field string) ([]string, error) {
	raw, ok := body[field]
	if !ok || raw == nil {
		return nil, nil
	}
	list, err := asList(raw, field)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	out := make([]string, len(list))
	for i, item := range list {
		s, ok := item.(string)
		if !ok {
			return nil, malformed(field, "element %d must be a string, got %T", i, item)
		}
		out[i] = s
	}
	return out, nil
}

func malformed(node, format string, args ...any) error {
	return querysql.NewError(querysql.CodeMalformedAST, node, format, args...)
}
