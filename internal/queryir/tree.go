package queryir

import (
	"fmt"

	"github.com/roach88/sqlcompile/internal/ir"
)

// Tree converts q to a JSON-compatible tree of maps, slices and scalars.
//
// The tree has the same shape as a request document:
//
//	{"find": {"table": "employees", "columns": [...],
//	          "selection": {"eq": {"key": "age", "value": 23}},
//	          "orderby": [{"asc": "firstname"}], "limit": 10}}
//
// Absent optional clauses are omitted. Literals go through ir.LiteralTree so
// their types survive a round trip.
func Tree(q Query) (any, error) {
	switch query := q.(type) {
	case Find:
		body := map[string]any{
			"table":   query.Table,
			"columns": stringsTree(query.Columns),
		}
		if len(query.Projection) > 0 {
			body["projection"] = projectionTree(query.Projection)
		}
		if err := addFilterClauses(body, query.Selection, query.OrderBy, query.Limit); err != nil {
			return nil, err
		}
		addBound(body, "offset", query.Offset)
		return map[string]any{"find": body}, nil
	case *Find:
		return Tree(*query)
	case Count:
		body := map[string]any{"table": query.Table}
		addColumns(body, query.Columns)
		if err := addFilterClauses(body, query.Selection, query.OrderBy, query.Limit); err != nil {
			return nil, err
		}
		addBound(body, "offset", query.Offset)
		return map[string]any{"count": body}, nil
	case *Count:
		return Tree(*query)
	case Remove:
		body := map[string]any{"table": query.Table}
		addColumns(body, query.Columns)
		if err := addFilterClauses(body, query.Selection, query.OrderBy, query.Limit); err != nil {
			return nil, err
		}
		return map[string]any{"remove": body}, nil
	case *Remove:
		return Tree(*query)
	case Insert:
		body := map[string]any{
			"table":   query.Table,
			"columns": stringsTree(query.Columns),
			"records": recordsTree(query.Records),
		}
		if query.Ignore {
			body["ignore"] = true
		}
		return map[string]any{"insert": body}, nil
	case *Insert:
		return Tree(*query)
	case Upsert:
		body := map[string]any{
			"table":          query.Table,
			"columns":        stringsTree(query.Columns),
			"update_columns": stringsTree(query.UpdateColumns),
			"records":        recordsTree(query.Records),
		}
		return map[string]any{"upsert": body}, nil
	case *Upsert:
		return Tree(*query)
	case Update:
		set := make([]any, len(query.Set))
		for i, a := range query.Set {
			set[i] = map[string]any{"column": a.Column, "value": ir.LiteralTree(a.Value)}
		}
		body := map[string]any{"table": query.Table, "set": set}
		addColumns(body, query.Columns)
		if err := addFilterClauses(body, query.Selection, query.OrderBy, query.Limit); err != nil {
			return nil, err
		}
		return map[string]any{"update": body}, nil
	case *Update:
		return Tree(*query)
	default:
		return nil, fmt.Errorf("unsupported query type: %T", q)
	}
}

// PredicateTree converts a predicate to its document form.
func PredicateTree(p Predicate) (any, error) {
	switch pred := p.(type) {
	case nil:
		return nil, nil
	case Eq:
		return comparisonTree("eq", pred.Key, pred.Value), nil
	case Ne:
		return comparisonTree("ne", pred.Key, pred.Value), nil
	case Gt:
		return comparisonTree("gt", pred.Key, pred.Value), nil
	case Gte:
		return comparisonTree("gte", pred.Key, pred.Value), nil
	case Lt:
		return comparisonTree("lt", pred.Key, pred.Value), nil
	case Lte:
		return comparisonTree("lte", pred.Key, pred.Value), nil
	case Like:
		return comparisonTree("like", pred.Key, pred.Value), nil
	case Nlike:
		return comparisonTree("nlike", pred.Key, pred.Value), nil
	case In:
		return membershipTree("in", pred.Key, pred.Values), nil
	case Nin:
		return membershipTree("nin", pred.Key, pred.Values), nil
	case And:
		return junctionTree("and", pred.Predicates)
	case Or:
		return junctionTree("or", pred.Predicates)
	default:
		return nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

// Fingerprint returns a stable content hash of q.
//
// Identical ASTs always produce identical fingerprints, so the hash can key a
// cache of compiled fragments. The column universe is part of the hash.
func Fingerprint(q Query) (string, error) {
	tree, err := Tree(q)
	if err != nil {
		return "", err
	}
	return ir.HashCanonical(ir.DomainRequest, tree)
}

// ExactFingerprint is like Fingerprint but byte-exact: queries whose
// strings differ only in Unicode normalization or invalid UTF-8 bytes get
// different hashes. Use it to key caches whose hits must equal a fresh
// compile.
func ExactFingerprint(q Query) (string, error) {
	tree, err := Tree(q)
	if err != nil {
		return "", err
	}
	return ir.HashExact(ir.DomainExact, tree)
}

func comparisonTree(op string, key Key, val ir.Value) any {
	return map[string]any{op: map[string]any{"key": string(key), "value": ir.LiteralTree(val)}}
}

func membershipTree(op string, key Key, vals Values) any {
	list := make([]any, len(vals))
	for i, v := range vals {
		list[i] = ir.LiteralTree(v)
	}
	return map[string]any{op: map[string]any{"key": string(key), "values": list}}
}

func junctionTree(op string, preds []Predicate) (any, error) {
	children := make([]any, len(preds))
	for i, child := range preds {
		t, err := PredicateTree(child)
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", op, i, err)
		}
		children[i] = t
	}
	return map[string]any{op: children}, nil
}

func projectionTree(p Projection) []any {
	out := make([]any, 0, len(p))
	for _, d := range p {
		switch dir := d.(type) {
		case Include:
			out = append(out, map[string]any{"include": string(dir.Key)})
		case Exclude:
			out = append(out, map[string]any{"exclude": string(dir.Key)})
		}
	}
	return out
}

func orderByTree(o OrderBy) []any {
	out := make([]any, 0, len(o))
	for _, s := range o {
		switch dir := s.(type) {
		case Asc:
			out = append(out, map[string]any{"asc": string(dir.Key)})
		case Desc:
			out = append(out, map[string]any{"desc": string(dir.Key)})
		}
	}
	return out
}

func recordsTree(records []Record) []any {
	out := make([]any, len(records))
	for i, rec := range records {
		row := make(map[string]any, len(rec))
		for k, v := range rec {
			row[k] = ir.LiteralTree(v)
		}
		out[i] = row
	}
	return out
}

func stringsTree(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func addColumns(body map[string]any, columns []string) {
	if len(columns) > 0 {
		body["columns"] = stringsTree(columns)
	}
}

func addFilterClauses(body map[string]any, sel Predicate, order OrderBy, limit Bound) error {
	if sel != nil {
		t, err := PredicateTree(sel)
		if err != nil {
			return fmt.Errorf("selection: %w", err)
		}
		body["selection"] = t
	}
	if len(order) > 0 {
		body["orderby"] = orderByTree(order)
	}
	addBound(body, "limit", limit)
	return nil
}

func addBound(body map[string]any, name string, b Bound) {
	if b.Set {
		body[name] = b.N
	}
}
