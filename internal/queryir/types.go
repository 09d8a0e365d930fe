package queryir

import "github.com/roach88/sqlcompile/internal/ir"

// Key is a column reference.
type Key string

// Values is an ordered list of literals used by membership operators.
// It must be non-empty when compiled.
type Values []ir.Value

// Predicate represents a boolean test or combinator inside a selection.
//
// Predicate types:
//   - Eq, Ne, Gt, Gte, Lt, Lte, Like, Nlike: Key <op> Value
//   - In, Nin: Key [NOT] IN Values
//   - And, Or: a non-empty list of child predicates
type Predicate interface {
	predicateNode() // Marker method - seals interface to this package
}

// Eq is `key = value`, or `key IS NULL` when Value is null.
type Eq struct {
	Key   Key
	Value ir.Value
}

// Ne is `key != value`, or `key IS NOT NULL` when Value is null.
type Ne struct {
	Key   Key
	Value ir.Value
}

// Gt is `key > value`.
type Gt struct {
	Key   Key
	Value ir.Value
}

// Gte is `key >= value`.
type Gte struct {
	Key   Key
	Value ir.Value
}

// Lt is `key < value`.
type Lt struct {
	Key   Key
	Value ir.Value
}

// Lte is `key <= value`.
type Lte struct {
	Key   Key
	Value ir.Value
}

// Like is `key LIKE pattern`.
type Like struct {
	Key   Key
	Value ir.Value
}

// Nlike is `key NOT LIKE pattern`.
type Nlike struct {
	Key   Key
	Value ir.Value
}

// In is `key IN (v1, ..., vn)`.
type In struct {
	Key    Key
	Values Values
}

// Nin is `key NOT IN (v1, ..., vn)`.
type Nin struct {
	Key    Key
	Values Values
}

// And is a conjunction. Each child is parenthesized when compiled.
type And struct {
	Predicates []Predicate
}

// Or is a disjunction. Each child is parenthesized when compiled.
type Or struct {
	Predicates []Predicate
}

func (Eq) predicateNode()    {}
func (Ne) predicateNode()    {}
func (Gt) predicateNode()    {}
func (Gte) predicateNode()   {}
func (Lt) predicateNode()    {}
func (Lte) predicateNode()   {}
func (Like) predicateNode()  {}
func (Nlike) predicateNode() {}
func (In) predicateNode()    {}
func (Nin) predicateNode()   {}
func (And) predicateNode()   {}
func (Or) predicateNode()    {}

// Directive is a single projection instruction: Include or Exclude.
type Directive interface {
	directiveNode()
}

// Include adds Key to the projected columns.
type Include struct {
	Key Key
}

// Exclude removes Key from the projected columns.
type Exclude struct {
	Key Key
}

func (Include) directiveNode() {}
func (Exclude) directiveNode() {}

// Projection is an ordered list of directives. Nil selects every column of
// the caller-supplied universe.
type Projection []Directive

// Sort is a single ORDER BY directive: Asc or Desc.
type Sort interface {
	sortNode()
}

// Asc orders by Key ascending.
type Asc struct {
	Key Key
}

// Desc orders by Key descending.
type Desc struct {
	Key Key
}

func (Asc) sortNode()  {}
func (Desc) sortNode() {}

// OrderBy is an ordered list of sort directives. Duplicates are preserved.
type OrderBy []Sort

// Bound is an optional LIMIT or OFFSET. The zero value means "no bound".
type Bound struct {
	N   int64
	Set bool
}

// Some returns a present bound.
func Some(n int64) Bound {
	return Bound{N: n, Set: true}
}

// None returns an absent bound.
func None() Bound {
	return Bound{}
}
