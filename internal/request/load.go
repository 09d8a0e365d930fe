package request

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/roach88/sqlcompile/internal/ir"
	"github.com/roach88/sqlcompile/internal/queryir"
)

// Format identifies a document encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatCUE  Format = "cue"
)

// FormatFromPath picks a format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	case ".cue":
		return FormatCUE, nil
	default:
		return "", fmt.Errorf("unsupported request file extension %q (expected .yaml, .yml, .json or .cue)", filepath.Ext(path))
	}
}

// Load reads and decodes the request document at path.
func Load(path string) (queryir.Query, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read request: %w", err)
	}
	q, err := Parse(data, format, filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return q, nil
}

// Parse decodes a request document. name labels CUE diagnostics.
func Parse(data []byte, format Format, name string) (queryir.Query, error) {
	doc, err := parseTree(data, format, name)
	if err != nil {
		return nil, err
	}
	return Decode(doc)
}

// parseTree decodes data into generic maps, slices and scalars.
func parseTree(data []byte, format Format, name string) (any, error) {
	switch format {
	case FormatYAML:
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
		return Normalize(doc), nil
	case FormatJSON:
		return decodeJSON(data)
	case FormatCUE:
		ctx := cuecontext.New()
		v := ctx.CompileBytes(data, cue.Filename(name))
		if err := v.Err(); err != nil {
			return nil, fmt.Errorf("compile cue: %w", err)
		}
		if err := v.Validate(cue.Concrete(true)); err != nil {
			return nil, fmt.Errorf("validate cue: %w", err)
		}
		raw, err := v.MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("export cue: %w", err)
		}
		return decodeJSON(raw)
	default:
		return nil, fmt.Errorf("unsupported request format %q", format)
	}
}

// decodeJSON keeps numbers as json.Number so integers stay exact.
func decodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	return doc, nil
}

// Normalize converts map[any]any nodes (non-string keys) to
// map[string]any.
func Normalize(v any) any {
	switch val := v.(type) {
	case map[string]any:
		for k, child := range val {
			val[k] = Normalize(child)
		}
		return val
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, child := range val {
			out[fmt.Sprint(k)] = Normalize(child)
		}
		return out
	case []any:
		for i, child := range val {
			val[i] = Normalize(child)
		}
		return val
	default:
		return v
	}
}

// Marshal encodes q as a canonical JSON request document.
// Decoding the output yields q again.
func Marshal(q queryir.Query) ([]byte, error) {
	tree, err := queryir.Tree(q)
	if err != nil {
		return nil, err
	}
	return ir.MarshalCanonical(tree)
}
