package domain

import (
	"encoding/json"
	"maps"
	"reflect"
	"slices"
	"sort"
	"time"
)

// Tree is the root of the application state. Each key names a top-level slice.
type Tree map[string]any

// Meta carries free-form annotations attached to commits and history entries.
type Meta map[string]any

// Clone returns a deep copy of the tree.
func (t Tree) Clone() Tree {
	if t == nil {
		return nil
	}
	return Tree(cloneMap(t))
}

// Keys returns the slice names in sorted order.
func (t Tree) Keys() []string {
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Merge returns a new Meta holding m overlaid with other. Neither input is modified.
func (m Meta) Merge(other Meta) Meta {
	if len(m) == 0 && len(other) == 0 {
		return Meta{}
	}
	out := make(Meta, len(m)+len(other))
	maps.Copy(out, m)
	maps.Copy(out, other)
	return out
}

// Clone returns a deep copy of v.
// Maps and sequences are copied recursively; scalars are returned as is.
func Clone(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case Tree:
		return t.Clone()
	case Meta:
		if t == nil {
			return Meta(nil)
		}
		return Meta(cloneMap(t))
	case map[string]any:
		if t == nil {
			return map[string]any(nil)
		}
		return cloneMap(t)
	case []any:
		if t == nil {
			return []any(nil)
		}
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = Clone(item)
		}
		return out
	case []string:
		return slices.Clone(t)
	case []int:
		return slices.Clone(t)
	case []float64:
		return slices.Clone(t)
	case []bool:
		return slices.Clone(t)
	default:
		return v
	}
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = Clone(v)
	}
	return out
}

// AsMap returns v as a plain map when it is one of the supported map shapes.
func AsMap(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case Tree:
		return map[string]any(t), true
	case Meta:
		return map[string]any(t), true
	default:
		return nil, false
	}
}

// Merge deep-merges patch into base and returns the result as a new value.
// When both sides are maps, keys are merged recursively; otherwise patch replaces base.
// Neither input is modified.
func Merge(base, patch any) any {
	bm, bok := AsMap(base)
	pm, pok := AsMap(patch)
	if !bok || !pok {
		return Clone(patch)
	}
	out := cloneMap(bm)
	for k, pv := range pm {
		if bv, exists := out[k]; exists {
			out[k] = Merge(bv, pv)
			continue
		}
		out[k] = Clone(pv)
	}
	if _, isTree := base.(Tree); isTree {
		return Tree(out)
	}
	return out
}

// MergeTree deep-merges patch into base and returns a new tree.
func MergeTree(base Tree, patch map[string]any) Tree {
	merged, _ := AsMap(Merge(base, patch))
	return Tree(merged)
}

// Equal reports whether a and b hold the same structure.
// Numbers compare by value regardless of their Go kind, so values that went
// through a JSON round trip still compare equal to their originals.
func Equal(a, b any) bool {
	am, aok := AsMap(a)
	bm, bok := AsMap(b)
	if aok || bok {
		if !aok || !bok || len(am) != len(bm) {
			return false
		}
		for k, av := range am {
			bv, ok := bm[k]
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	}

	as, aok := a.([]any)
	bs, bok := b.([]any)
	if aok || bok {
		if !aok || !bok || len(as) != len(bs) {
			return false
		}
		for i := range as {
			if !Equal(as[i], bs[i]) {
				return false
			}
		}
		return true
	}

	if af, ok := number(a); ok {
		bf, ok := number(b)
		return ok && af == bf
	}

	if at, ok := a.(time.Time); ok {
		bt, ok := b.(time.Time)
		return ok && at.Equal(bt)
	}

	return reflect.DeepEqual(a, b)
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
