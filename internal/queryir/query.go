package queryir

import "github.com/roach88/sqlcompile/internal/ir"

// Query is a complete request for one of the six statement shapes.
//
// This is a sealed interface - only types in this package implement it.
//
// Query types:
//   - Find:   SELECT <projection> FROM ...
//   - Count:  SELECT COUNT(*) ...
//   - Remove: DELETE FROM ...
//   - Insert: INSERT [IGNORE] INTO ... VALUES ...
//   - Upsert: INSERT ... ON DUPLICATE KEY UPDATE ...
//   - Update: UPDATE ... SET ...
type Query interface {
	queryNode() // Marker method - seals interface to this package
}

// Find selects rows.
//
// Columns is the column universe of Table. It is required: an absent
// projection resolves to every column in it, and projection keys are
// checked against it.
type Find struct {
	Table      string
	Columns    []string
	Projection Projection
	Selection  Predicate
	OrderBy    OrderBy
	Limit      Bound
	Offset     Bound // Emitted only when Limit is set
}

// Count counts rows. Columns is optional; when present, selection and
// ordering keys are checked against it.
type Count struct {
	Table     string
	Columns   []string
	Selection Predicate
	OrderBy   OrderBy
	Limit     Bound
	Offset    Bound // Emitted only when Limit is set
}

// Remove deletes rows. There is no offset.
type Remove struct {
	Table     string
	Columns   []string
	Selection Predicate
	OrderBy   OrderBy
	Limit     Bound
}

// Insert adds one row group per record. Columns is the ordered insert
// column list; a record missing a column binds ir.Absent.
type Insert struct {
	Table   string
	Columns []string
	Records []Record
	Ignore  bool
}

// Upsert inserts records and, on duplicate key, copies UpdateColumns from
// the incoming row. UpdateColumns is typically every non-primary-key column.
type Upsert struct {
	Table         string
	Columns       []string
	UpdateColumns []string
	Records       []Record
}

// Update assigns Set in order to every matching row. There is no offset.
// Columns is optional; when present, every referenced key is checked.
type Update struct {
	Table     string
	Columns   []string
	Set       []Assignment
	Selection Predicate
	OrderBy   OrderBy
	Limit     Bound
}

func (Find) queryNode()   {}
func (Count) queryNode()  {}
func (Remove) queryNode() {}
func (Insert) queryNode() {}
func (Upsert) queryNode() {}
func (Update) queryNode() {}

// Record is a single row to insert, keyed by column name.
type Record map[string]ir.Value

// Get returns the value for column, or ir.Absent when the record omits it.
func (r Record) Get(column string) ir.Value {
	if v, ok := r[column]; ok {
		return v
	}
	return ir.Absent{}
}

// Assignment is one `column = value` pair of an UPDATE ... SET clause.
type Assignment struct {
	Column string
	Value  ir.Value
}

// Name returns the statement shape of q ("find", "count", ...), or "" for nil.
func Name(q Query) string {
	switch q.(type) {
	case Find, *Find:
		return "find"
	case Count, *Count:
		return "count"
	case Remove, *Remove:
		return "remove"
	case Insert, *Insert:
		return "insert"
	case Upsert, *Upsert:
		return "upsert"
	case Update, *Update:
		return "update"
	default:
		return ""
	}
}
