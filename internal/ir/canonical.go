package ir

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode/utf16"

	"golang.org/x/text/unicode/norm"
)

// MarshalCanonical produces canonical JSON for hashing.
//
// Differences from json.Marshal:
//  1. Object keys sorted by UTF-16 code units (RFC 8785), not UTF-8 bytes
//  2. No HTML escaping (< > & are NOT escaped)
//  3. Strings are NFC normalized
//  4. Raw floats are rejected; literals are encoded with LiteralTree first
//
// Accepted inputs: nil, string, bool, int, int64, []any, map[string]any and
// any Value (encoded through LiteralTree).
func MarshalCanonical(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeCanonical(&buf, v, marshalCanonicalString); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MarshalExact is MarshalCanonical without string normalization. Strings
// are written as Go quoted literals, so byte-distinct strings (NFC versus
// NFD spellings, invalid UTF-8) always encode differently. The output is
// for hashing only and is not JSON.
func MarshalExact(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeCanonical(&buf, v, marshalExactString); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// LiteralTree maps a Value to a JSON-compatible tree that keeps the
// literal's type distinguishable: Int 1 and Float 1 must never hash alike.
func LiteralTree(v Value) any {
	switch val := v.(type) {
	case nil, Null:
		return nil
	case Absent:
		return map[string]any{"$absent": true}
	case String:
		return string(val)
	case Int:
		return int64(val)
	case Bool:
		return bool(val)
	case Float:
		return map[string]any{"$float": strconv.FormatFloat(float64(val), 'g', -1, 64)}
	case Time:
		return map[string]any{"$date": val.UTC().Format(time.RFC3339Nano)}
	case Bytes:
		return map[string]any{"$binary": base64.StdEncoding.EncodeToString(val)}
	case Decimal:
		return map[string]any{"$decimal": val.String()}
	default:
		return map[string]any{"$unknown": fmt.Sprintf("%T", v)}
	}
}

func writeCanonical(buf *bytes.Buffer, v any, str func(string) ([]byte, error)) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
	case Value:
		return writeCanonical(buf, LiteralTree(val), str)
	case string:
		s, err := str(val)
		if err != nil {
			return err
		}
		buf.Write(s)
	case int64:
		buf.WriteString(strconv.FormatInt(val, 10))
	case int:
		buf.WriteString(strconv.Itoa(val))
	case bool:
		buf.WriteString(strconv.FormatBool(val))
	case []any:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, elem, str); err != nil {
				return fmt.Errorf("array[%d]: %w", i, err)
			}
		}
		buf.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		slices.SortFunc(keys, compareKeysRFC8785)

		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			keyBytes, err := str(k)
			if err != nil {
				return fmt.Errorf("key %q: %w", k, err)
			}
			buf.Write(keyBytes)
			buf.WriteByte(':')
			if err := writeCanonical(buf, val[k], str); err != nil {
				return fmt.Errorf("value for key %q: %w", k, err)
			}
		}
		buf.WriteByte('}')
	case float64, float32:
		return fmt.Errorf("floats are forbidden in canonical JSON: %v", val)
	default:
		return fmt.Errorf("unsupported type for canonical JSON: %T", v)
	}
	return nil
}

// marshalCanonicalString produces a canonical JSON string with NFC normalization.
// Only control characters, backslash and quote are escaped.
func marshalCanonicalString(s string) ([]byte, error) {
	normalized := norm.NFC.String(s)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(normalized); err != nil {
		return nil, err
	}

	result := bytes.TrimSuffix(buf.Bytes(), []byte{'\n'})
	return unescapeLineSeparators(result), nil
}

func marshalExactString(s string) ([]byte, error) {
	return []byte(strconv.Quote(s)), nil
}

// unescapeLineSeparators turns the \u2028 and \u2029 escapes emitted by
// encoding/json back into literal characters, leaving \\u2028 (an escaped
// backslash followed by text) untouched.
func unescapeLineSeparators(data []byte) []byte {
	if !bytes.Contains(data, []byte(`\u202`)) {
		return data
	}

	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		if data[i] == '\\' && i+1 < len(data) {
			if i+5 < len(data) && string(data[i+1:i+5]) == "u202" && (data[i+5] == '8' || data[i+5] == '9') {
				if data[i+5] == '8' {
					out = append(out, "\u2028"...)
				} else {
					out = append(out, "\u2029"...)
				}
				i += 5
				continue
			}
			// Any other escape pair is copied whole so \\ never starts a match.
			out = append(out, data[i], data[i+1])
			i++
			continue
		}
		out = append(out, data[i])
	}
	return out
}

// compareKeysRFC8785 compares strings by UTF-16 code units.
// Go's default string comparison uses UTF-8 which produces a different order
// for characters outside the BMP.
func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))
	if c := slices.Compare(a16, b16); c != 0 {
		return c
	}
	// Distinct invalid UTF-8 sequences all decode to U+FFFD.
	return strings.Compare(a, b)
}
