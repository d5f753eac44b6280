// Package jsonflat turns arbitrary JSON documents into flat maps keyed by
// structural path ("main.temp", "weather.0.description") and back.
package jsonflat

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/i474232898/openweather-collector/internal/common"
)

// MaxDepth bounds how deeply nested a document may be.
const MaxDepth = 256

// Separator joins path segments in flat keys.
const Separator = "."

type null struct{}

func (null) String() string { return "null" }

// MarshalJSON keeps Null serialising as JSON null.
func (null) MarshalJSON() ([]byte, error) { return []byte("null"), nil }

// Null marks a JSON null leaf. It differs from a key that is not present at all.
var Null = null{}

// Map is a flattened document: path key -> float64, string, bool or Null.
type Map map[string]any

// Lookup returns the scalar stored under key.
func (m Map) Lookup(key string) (any, bool) {
	v, ok := m[key]
	return v, ok
}

// IsNull reports whether v is the Null marker.
func IsNull(v any) bool {
	_, ok := v.(null)
	return ok
}

// Keys returns the keys of m in sorted order.
func (m Map) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Flatten parses a JSON document and flattens it.
func Flatten(data []byte) (Map, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: empty document", common.ErrMalformedResponse)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrMalformedResponse, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: unexpected data after document", common.ErrMalformedResponse)
	}
	return FlattenValue(doc)
}

// FlattenValue flattens a document already decoded with encoding/json.
func FlattenValue(doc any) (Map, error) {
	out := make(Map)
	if err := flatten(out, "", doc, 0); err != nil {
		return nil, err
	}
	return out, nil
}

func flatten(out Map, prefix string, v any, depth int) error {
	if depth > MaxDepth {
		return fmt.Errorf("%w: nesting deeper than %d levels at %q", common.ErrMalformedResponse, MaxDepth, prefix)
	}

	switch t := v.(type) {
	case map[string]any:
		// Sorted keys make colliding paths resolve the same way on every run.
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if err := flatten(out, join(prefix, k), t[k], depth+1); err != nil {
				return err
			}
		}
	case []any:
		for i, item := range t {
			if err := flatten(out, join(prefix, strconv.Itoa(i)), item, depth+1); err != nil {
				return err
			}
		}
	case nil:
		out[prefix] = Null
	case float64, string, bool:
		out[prefix] = t
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return fmt.Errorf("%w: number %q at %q", common.ErrMalformedResponse, t, prefix)
		}
		out[prefix] = f
	default:
		return fmt.Errorf("%w: unsupported value %T at %q", common.ErrMalformedResponse, v, prefix)
	}
	return nil
}

func join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + Separator + key
}

// Expand re-nests a flat map. Nodes whose children are exactly the indices
// 0..n-1 become arrays; everything else becomes an object. A lone empty key
// expands to the root scalar.
func Expand(m Map) any {
	if v, ok := m[""]; ok && len(m) == 1 {
		return leaf(v)
	}

	root := map[string]any{}
	for _, key := range m.Keys() {
		parts := strings.Split(key, Separator)
		node := root
		for _, p := range parts[:len(parts)-1] {
			child, ok := node[p].(map[string]any)
			if !ok {
				child = map[string]any{}
				node[p] = child
			}
			node = child
		}
		node[parts[len(parts)-1]] = leaf(m[key])
	}
	return arrays(root)
}

func leaf(v any) any {
	if IsNull(v) {
		return nil
	}
	return v
}

func arrays(v any) any {
	obj, ok := v.(map[string]any)
	if !ok {
		return v
	}
	for k, child := range obj {
		obj[k] = arrays(child)
	}
	if len(obj) == 0 {
		return obj
	}
	list := make([]any, len(obj))
	for k, child := range obj {
		i, err := strconv.Atoi(k)
		if err != nil || i < 0 || i >= len(obj) || strconv.Itoa(i) != k {
			return obj
		}
		list[i] = child
	}
	return list
}
