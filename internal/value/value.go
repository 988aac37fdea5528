// Package value implements the closed Value sum type shared by every layer
// of the runbook execution core: literals, evaluation results, execution
// outputs, and signer state all flow through this representation.
package value

import (
	"fmt"
	"math/big"
	"sort"
)

// Kind tags the variant a Value currently holds.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindBytes
	KindArray
	KindObject
	KindAddon
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	case KindAddon:
		return "addon"
	default:
		return "unknown"
	}
}

// AddonBytes is the escape hatch for opaque, namespace-tagged domain values
// (e.g. evm::address). Equality compares both tag and bytes.
type AddonBytes struct {
	Namespace string
	Bytes     []byte
}

// Value is a tagged union over every shape the evaluation engine, the
// execution result cache, and signer state stores need to represent.
// Object key order is preserved via keys to keep map evaluation (§4.3)
// deterministic in source-declaration order.
type Value struct {
	kind  Kind
	b     bool
	i     *big.Int
	f     float64
	s     string
	bytes []byte
	arr   []Value
	obj   map[string]Value
	keys  []string
	addon AddonBytes
}

// Null returns the null Value.
func Null() Value { return Value{kind: KindNull} }

// Bool wraps a boolean.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Int wraps a signed 128-bit integer (represented with big.Int).
func Int(i int64) Value { return Value{kind: KindInt, i: big.NewInt(i)} }

// BigInt wraps an arbitrary-precision integer already known to fit in 128
// bits; callers that compute a new integer (internal/eval's arithmetic)
// must check InRangeInt128 first and report an overflow diagnostic instead
// of calling this with an out-of-range value.
func BigInt(i *big.Int) Value { return Value{kind: KindInt, i: new(big.Int).Set(i)} }

// maxInt128/minInt128 are the inclusive bounds of a signed 128-bit integer,
// per SPEC_FULL.md §3 ("Int128 … constrained to 128 bits").
var (
	maxInt128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
	minInt128 = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127))
)

// InRangeInt128 reports whether i fits in a signed 128-bit integer.
func InRangeInt128(i *big.Int) bool {
	return i.Cmp(minInt128) >= 0 && i.Cmp(maxInt128) <= 0
}

// Float wraps a 64-bit float.
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// String wraps a string.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Bytes wraps an opaque binary buffer.
func Bytes(b []byte) Value { return Value{kind: KindBytes, bytes: append([]byte(nil), b...)} }

// Array wraps an ordered array of Values.
func Array(items ...Value) Value { return Value{kind: KindArray, arr: append([]Value(nil), items...)} }

// Object builds an ordered string-keyed object, preserving insertion order
// of the given keys slice.
func Object(keys []string, fields map[string]Value) Value {
	ordered := make([]string, len(keys))
	copy(ordered, keys)
	copied := make(map[string]Value, len(fields))
	for k, v := range fields {
		copied[k] = v
	}
	return Value{kind: KindObject, obj: copied, keys: ordered}
}

// EmptyObject returns a fresh, empty object value.
func EmptyObject() Value { return Value{kind: KindObject, obj: map[string]Value{}} }

// WithField returns a copy of an object Value with the given field set,
// appending the key to the ordering if not already present. Calling this on
// a non-object Value is a programmer error and panics.
func (v Value) WithField(key string, field Value) Value {
	if v.kind != KindObject {
		panic(fmt.Sprintf("value: WithField called on non-object kind %s", v.kind))
	}
	obj := make(map[string]Value, len(v.obj)+1)
	for k, val := range v.obj {
		obj[k] = val
	}
	_, existed := obj[key]
	obj[key] = field
	keys := v.keys
	if !existed {
		keys = append(append([]string(nil), v.keys...), key)
	}
	return Value{kind: KindObject, obj: obj, keys: keys}
}

// Addon wraps namespace-tagged opaque bytes.
func Addon(namespace string, bytes []byte) Value {
	return Value{kind: KindAddon, addon: AddonBytes{Namespace: namespace, Bytes: append([]byte(nil), bytes...)}}
}

// Kind reports the active variant.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the Value is the null variant.
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsBool returns the boolean payload and whether the Value held one.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// AsInt returns the integer payload and whether the Value held one.
func (v Value) AsInt() (*big.Int, bool) {
	if v.kind != KindInt {
		return nil, false
	}
	return v.i, true
}

// AsFloat returns the float payload and whether the Value held one.
func (v Value) AsFloat() (float64, bool) { return v.f, v.kind == KindFloat }

// AsString returns the string payload and whether the Value held one.
func (v Value) AsString() (string, bool) { return v.s, v.kind == KindString }

// AsBytes returns the binary payload and whether the Value held one.
func (v Value) AsBytes() ([]byte, bool) { return v.bytes, v.kind == KindBytes }

// AsArray returns the array payload and whether the Value held one.
func (v Value) AsArray() ([]Value, bool) { return v.arr, v.kind == KindArray }

// AsObject returns the object payload (fields and declared key order) and
// whether the Value held one.
func (v Value) AsObject() (map[string]Value, []string, bool) {
	return v.obj, v.keys, v.kind == KindObject
}

// AsAddon returns the addon-tagged payload and whether the Value held one.
func (v Value) AsAddon() (AddonBytes, bool) { return v.addon, v.kind == KindAddon }

// ObjectField looks up a single field on an object Value.
func (v Value) ObjectField(key string) (Value, bool) {
	if v.kind != KindObject {
		return Value{}, false
	}
	field, ok := v.obj[key]
	return field, ok
}

// Equal implements deep equality across all variants. Addon-tagged bytes
// compare both namespace and payload, per the data model invariant.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindBool:
		return a.b == b.b
	case KindInt:
		if a.i == nil || b.i == nil {
			return a.i == b.i
		}
		return a.i.Cmp(b.i) == 0
	case KindFloat:
		return a.f == b.f
	case KindString:
		return a.s == b.s
	case KindBytes:
		return string(a.bytes) == string(b.bytes)
	case KindArray:
		if len(a.arr) != len(b.arr) {
			return false
		}
		for i := range a.arr {
			if !Equal(a.arr[i], b.arr[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(a.obj) != len(b.obj) {
			return false
		}
		for k, av := range a.obj {
			bv, ok := b.obj[k]
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	case KindAddon:
		return a.addon.Namespace == b.addon.Namespace && string(a.addon.Bytes) == string(b.addon.Bytes)
	default:
		return false
	}
}

// CanonicalBytes produces a deterministic byte encoding suitable for
// fingerprinting (§4.4) and identifier derivation (§3). Object keys are
// sorted lexicographically regardless of declaration order so the
// fingerprint is stable even if WithField call order differs.
func CanonicalBytes(v Value) []byte {
	var out []byte
	out = append(out, byte(v.kind))
	switch v.kind {
	case KindNull:
	case KindBool:
		if v.b {
			out = append(out, 1)
		} else {
			out = append(out, 0)
		}
	case KindInt:
		if v.i != nil {
			out = append(out, v.i.Bytes()...)
			if v.i.Sign() < 0 {
				out = append(out, 0xFF)
			}
		}
	case KindFloat:
		out = append(out, []byte(fmt.Sprintf("%g", v.f))...)
	case KindString:
		out = append(out, []byte(v.s)...)
	case KindBytes:
		out = append(out, v.bytes...)
	case KindArray:
		for _, item := range v.arr {
			out = append(out, CanonicalBytes(item)...)
		}
	case KindObject:
		keys := make([]string, 0, len(v.obj))
		for k := range v.obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			out = append(out, []byte(k)...)
			out = append(out, CanonicalBytes(v.obj[k])...)
		}
	case KindAddon:
		out = append(out, []byte(v.addon.Namespace)...)
		out = append(out, v.addon.Bytes...)
	}
	return out
}
