package querysql

import (
	"strings"

	"github.com/roach88/sqlcompile/internal/ir"
)

// Fragment is compiled SQL text with its bound parameters.
//
// The placeholders in SQL correspond one-to-one, left to right, with Params.
type Fragment struct {
	SQL    string
	Params []ir.Value
}

// Args returns Params converted for database/sql.
func (f Fragment) Args() []any {
	return ir.DriverArgs(f.Params)
}

// IsEmpty reports whether the fragment has no SQL text.
func (f Fragment) IsEmpty() bool {
	return f.SQL == ""
}

func text(sql string) Fragment {
	return Fragment{SQL: sql}
}

// joinFragments joins non-empty fragments with sep, concatenating params in
// the same order.
func joinFragments(sep string, frags []Fragment) Fragment {
	var sqlParts []string
	var params []ir.Value
	for _, f := range frags {
		if f.IsEmpty() {
			continue
		}
		sqlParts = append(sqlParts, f.SQL)
		params = append(params, f.Params...)
	}
	return Fragment{SQL: strings.Join(sqlParts, sep), Params: params}
}

// statement collects clauses for an assembler.
type statement struct {
	parts []Fragment
}

func (s *statement) add(keyword string, f Fragment) {
	if f.IsEmpty() {
		return
	}
	if keyword != "" {
		s.parts = append(s.parts, text(keyword))
	}
	s.parts = append(s.parts, f)
}

func (s *statement) finish() Fragment {
	out := joinFragments(" ", s.parts)
	out.SQL += ";"
	if out.Params == nil {
		out.Params = []ir.Value{}
	}
	return out
}
