package store

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// leaf is a single stored row: a scalar JSON value at a full path.
type leaf struct {
	Path  string `db:"path"`
	Value string `db:"value"`
}

// Normalize converts a Go value into the tree's canonical shape: objects are
// map[string]any, numbers are float64, arrays become index-keyed objects and
// empty objects or null children disappear. A value that normalizes to
// nothing returns nil.
func Normalize(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("normalize: %w", err)
	}
	var decoded any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, fmt.Errorf("normalize: %w", err)
	}
	return prune(decoded), nil
}

func prune(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, child := range val {
			if c := prune(child); c != nil {
				out[k] = c
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	case []any:
		out := make(map[string]any, len(val))
		for i, child := range val {
			if c := prune(child); c != nil {
				out[strconv.Itoa(i)] = c
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	default:
		return val
	}
}

// Equal reports whether two normalized values are identical.
func Equal(a, b any) bool {
	return reflect.DeepEqual(a, b)
}

// flatten turns a normalized value into leaf rows under base.
func flatten(base string, v any) ([]leaf, error) {
	var leaves []leaf
	var walk func(path string, v any) error
	walk = func(path string, v any) error {
		switch val := v.(type) {
		case nil:
			return nil
		case map[string]any:
			for k, child := range val {
				if err := validateSegment(k); err != nil {
					return fmt.Errorf("%w: key %q under %q: %v", ErrInvalidPath, k, path, err)
				}
				if err := walk(JoinPath(path, k), child); err != nil {
					return err
				}
			}
			return nil
		default:
			data, err := json.Marshal(val)
			if err != nil {
				return fmt.Errorf("marshal leaf %q: %w", path, err)
			}
			leaves = append(leaves, leaf{Path: path, Value: string(data)})
			return nil
		}
	}
	if err := walk(base, v); err != nil {
		return nil, err
	}
	sort.Slice(leaves, func(i, j int) bool { return leaves[i].Path < leaves[j].Path })
	return leaves, nil
}

// assemble rebuilds the value at base from the leaf rows of its subtree.
func assemble(base string, rows []leaf) (any, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	var root map[string]any
	for _, row := range rows {
		var scalar any
		if err := json.Unmarshal([]byte(row.Value), &scalar); err != nil {
			return nil, fmt.Errorf("decode leaf %q: %w", row.Path, err)
		}
		if row.Path == base {
			// A scalar at base shadows anything below it.
			return scalar, nil
		}

		rel := row.Path
		if base != "" {
			rel = strings.TrimPrefix(row.Path, base+"/")
		}
		if root == nil {
			root = make(map[string]any)
		}
		segs := strings.Split(rel, "/")
		node := root
		for _, seg := range segs[:len(segs)-1] {
			next, ok := node[seg].(map[string]any)
			if !ok {
				next = make(map[string]any)
				node[seg] = next
			}
			node = next
		}
		node[segs[len(segs)-1]] = scalar
	}
	if root == nil {
		return nil, nil
	}
	return root, nil
}

// childAt walks v along segs. Missing children yield nil.
func childAt(v any, segs []string) any {
	for _, seg := range segs {
		m, ok := v.(map[string]any)
		if !ok {
			return nil
		}
		v = m[seg]
	}
	return v
}

// withChild returns a shallow copy of obj with key set to v (or removed when
// v is nil). The result is nil when nothing remains.
func withChild(obj any, key string, v any) any {
	out := make(map[string]any)
	if m, ok := obj.(map[string]any); ok {
		for k, child := range m {
			out[k] = child
		}
	}
	if v == nil {
		delete(out, key)
	} else {
		out[key] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// sortedKeys returns the keys of m in byte order.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// encodeNullable marshals v for the change log; nil stays SQL NULL.
func encodeNullable(v any) (*string, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	s := string(data)
	return &s, nil
}

// decodeNullable is the inverse of encodeNullable.
func decodeNullable(s *string) (any, error) {
	if s == nil {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal([]byte(*s), &v); err != nil {
		return nil, err
	}
	return v, nil
}
