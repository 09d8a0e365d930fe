package ir

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Value is a sealed interface representing a single bindable literal.
// Only Null, Absent, String, Int, Float, Bool, Time, Bytes and Decimal
// implement it.
type Value interface {
	irValue() // Sealed - only these types implement it
}

// Null is an explicit SQL NULL literal.
type Null struct{}

func (Null) irValue() {}

// Absent marks a record field that was not supplied by the caller.
// The executor binds it as NULL; the compiler never interprets it.
type Absent struct{}

func (Absent) irValue() {}

// String is a text literal.
type String string

func (String) irValue() {}

// Int is an integer literal.
type Int int64

func (Int) irValue() {}

// Float is an approximate numeric literal.
type Float float64

func (Float) irValue() {}

// Bool is a boolean literal.
type Bool bool

func (Bool) irValue() {}

// Time is a date/time literal.
type Time struct {
	time.Time
}

func (Time) irValue() {}

// Bytes is a binary blob literal.
type Bytes []byte

func (Bytes) irValue() {}

// Decimal is an exact numeric literal for DECIMAL/NUMERIC columns.
type Decimal struct {
	decimal.Decimal
}

func (Decimal) irValue() {}

// NewTime creates a Time value.
func NewTime(t time.Time) Time {
	return Time{Time: t}
}

// NewDecimal parses s into a Decimal value.
func NewDecimal(s string) (Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Decimal{}, fmt.Errorf("invalid decimal %q: %w", s, err)
	}
	return Decimal{Decimal: d}, nil
}

// IsNull reports whether v is a Null literal (or a nil interface).
// Absent is not Null: it is a missing field, not a NULL comparison operand.
func IsNull(v Value) bool {
	if v == nil {
		return true
	}
	_, ok := v.(Null)
	return ok
}

// Kind returns a short lowercase name for the value's type.
func Kind(v Value) string {
	switch v.(type) {
	case nil, Null:
		return "null"
	case Absent:
		return "absent"
	case String:
		return "string"
	case Int:
		return "int"
	case Float:
		return "float"
	case Bool:
		return "bool"
	case Time:
		return "time"
	case Bytes:
		return "bytes"
	case Decimal:
		return "decimal"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// Driver converts v to a value accepted by database/sql drivers.
// Null and Absent both become nil; Decimal is bound as its exact string form.
func Driver(v Value) any {
	switch val := v.(type) {
	case nil, Null, Absent:
		return nil
	case String:
		return string(val)
	case Int:
		return int64(val)
	case Float:
		return float64(val)
	case Bool:
		return bool(val)
	case Time:
		return val.Time
	case Bytes:
		return []byte(val)
	case Decimal:
		return val.String()
	default:
		return nil
	}
}

// DriverArgs converts a parameter list for use with db.ExecContext / QueryContext.
func DriverArgs(params []Value) []any {
	args := make([]any, len(params))
	for i, p := range params {
		args[i] = Driver(p)
	}
	return args
}

// FromAny converts a decoded Go value (from YAML, JSON or CUE) to a Value.
//
// Supported inputs:
//   - nil -> Null
//   - string, bool, every Go integer type, float32/float64, json.Number
//   - time.Time, []byte, decimal.Decimal
//   - a single-key tagged object for types JSON cannot express directly:
//     {"$date": "2006-01-02T15:04:05Z"}, {"$binary": "<base64>"},
//     {"$decimal": "12.50"}, {"$float": "1"}, {"$absent": true}
//
// Floats with no fractional part stay Float; callers that need integers
// must supply integer literals.
func FromAny(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case string:
		return String(val), nil
	case bool:
		return Bool(val), nil
	case int:
		return Int(val), nil
	case int8:
		return Int(val), nil
	case int16:
		return Int(val), nil
	case int32:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case uint:
		return fromUint(uint64(val))
	case uint8:
		return Int(val), nil
	case uint16:
		return Int(val), nil
	case uint32:
		return Int(val), nil
	case uint64:
		return fromUint(val)
	case float32:
		return fromFloat(float64(val))
	case float64:
		return fromFloat(val)
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return Int(i), nil
		}
		f, err := val.Float64()
		if err != nil {
			return nil, fmt.Errorf("invalid number %q: %w", val.String(), err)
		}
		return fromFloat(f)
	case time.Time:
		return NewTime(val), nil
	case []byte:
		return Bytes(val), nil
	case decimal.Decimal:
		return Decimal{Decimal: val}, nil
	case map[string]any:
		return fromTagged(val)
	default:
		return nil, fmt.Errorf("unsupported literal type: %T", v)
	}
}

func fromUint(u uint64) (Value, error) {
	if u > math.MaxInt64 {
		return nil, fmt.Errorf("integer %d overflows int64", u)
	}
	return Int(int64(u)), nil
}

func fromFloat(f float64) (Value, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("non-finite float %v", f)
	}
	return Float(f), nil
}

// fromTagged decodes the single-key tagged literal forms.
func fromTagged(obj map[string]any) (Value, error) {
	if len(obj) != 1 {
		return nil, fmt.Errorf("tagged literal must have exactly one key, got %d", len(obj))
	}
	for tag, raw := range obj {
		switch tag {
		case "$date":
			s, ok := raw.(string)
			if !ok {
				return nil, fmt.Errorf("$date expects a string, got %T", raw)
			}
			t, err := time.Parse(time.RFC3339Nano, s)
			if err != nil {
				t, err = time.Parse(time.DateOnly, s)
			}
			if err != nil {
				return nil, fmt.Errorf("$date %q: %w", s, err)
			}
			return NewTime(t), nil
		case "$binary":
			s, ok := raw.(string)
			if !ok {
				return nil, fmt.Errorf("$binary expects a base64 string, got %T", raw)
			}
			b, err := base64.StdEncoding.DecodeString(s)
			if err != nil {
				return nil, fmt.Errorf("$binary: %w", err)
			}
			return Bytes(b), nil
		case "$decimal":
			s := fmt.Sprint(raw)
			return NewDecimal(s)
		case "$float":
			s, ok := raw.(string)
			if !ok {
				return nil, fmt.Errorf("$float expects a string, got %T", raw)
			}
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("$float %q: %w", s, err)
			}
			return fromFloat(f)
		case "$absent":
			return Absent{}, nil
		default:
			return nil, fmt.Errorf("unknown literal tag %q", tag)
		}
	}
	return nil, fmt.Errorf("empty tagged literal")
}
