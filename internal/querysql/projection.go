package querysql

import (
	"github.com/roach88/sqlcompile/internal/queryir"
)

// ResolveProjection returns the ordered column list a projection selects.
//
// With no directives every column of the universe is selected. Otherwise
// the base is the include list (or the universe when there are no includes)
// minus every excluded key.
func ResolveProjection(p queryir.Projection, columns []string) ([]queryir.Key, error) {
	if len(columns) == 0 {
		return nil, NewError(CodeMissingClause, "projection", "column universe is required to resolve a projection")
	}
	u := newUniverse(columns)

	var includes []queryir.Key
	excluded := make(map[queryir.Key]bool)
	for _, d := range p {
		switch dir := d.(type) {
		case queryir.Include:
			if err := u.check(dir.Key, "projection"); err != nil {
				return nil, err
			}
			includes = append(includes, dir.Key)
		case queryir.Exclude:
			if err := u.check(dir.Key, "projection"); err != nil {
				return nil, err
			}
			excluded[dir.Key] = true
		default:
			return nil, NewError(CodeMalformedAST, "projection", "unsupported projection directive: %T", d)
		}
	}

	base := includes
	if len(base) == 0 {
		base = make([]queryir.Key, len(columns))
		for i, col := range columns {
			base[i] = queryir.Key(col)
		}
	}

	resolved := make([]queryir.Key, 0, len(base))
	for _, k := range base {
		if !excluded[k] {
			resolved = append(resolved, k)
		}
	}
	if len(resolved) == 0 {
		return nil, NewError(CodeContradictoryProjection, "projection", "include and exclude directives cancel every column")
	}
	return resolved, nil
}

// CompileProjection compiles a projection to a comma-separated column list.
// Projection never binds params.
func (c *SQLCompiler) CompileProjection(p queryir.Projection, columns []string) (Fragment, error) {
	resolved, err := ResolveProjection(p, columns)
	if err != nil {
		return Fragment{}, err
	}
	frags := make([]Fragment, len(resolved))
	for i, k := range resolved {
		f, err := c.CompileKey(k)
		if err != nil {
			return Fragment{}, err
		}
		frags[i] = f
	}
	return joinFragments(", ", frags), nil
}
