package value

import "fmt"

// PropertyDef describes one named property of a strict object Type.
type PropertyDef struct {
	Name     string
	Type     Type
	Optional bool
}

// Type is a reflective description of a Value's shape, used to coerce
// evaluated expressions into the declared input type of a construct
// (§3, §4.3 "coercion of objects/arrays into the declared Type").
type Type struct {
	Kind       Kind
	Elem       *Type         // array<T>
	Strict     []PropertyDef // object<definition>, strict
	Arbitrary  bool          // object<arbitrary>
	AddonNS    string        // addon<namespace>
	IsObjectTy bool
}

// Primitive constructs a Type for a scalar Kind.
func Primitive(k Kind) Type { return Type{Kind: k} }

// ArrayOf constructs array<T>.
func ArrayOf(elem Type) Type { return Type{Kind: KindArray, Elem: &elem} }

// StrictObject constructs object<definition> with enumerated properties.
func StrictObject(props ...PropertyDef) Type {
	return Type{Kind: KindObject, Strict: props, IsObjectTy: true}
}

// ArbitraryObject constructs an open map object type.
func ArbitraryObject() Type {
	return Type{Kind: KindObject, Arbitrary: true, IsObjectTy: true}
}

// AddonType constructs addon<namespace>.
func AddonType(namespace string) Type { return Type{Kind: KindAddon, AddonNS: namespace} }

// NullType is the null Type.
func NullType() Type { return Type{Kind: KindNull} }

// Accepts reports whether the given Value conforms to the Type, without
// mutating it. Use Coerce to additionally convert compatible shapes.
func (t Type) Accepts(v Value) bool {
	_, err := Coerce(t, v)
	return err == nil
}

// Coerce converts v into the shape described by t, recursing into arrays
// and objects. Strict objects require every non-optional property to be
// present; unknown properties on a strict object are rejected. Arbitrary
// objects accept any object Value unchanged.
func Coerce(t Type, v Value) (Value, error) {
	if t.Kind == KindNull {
		if v.IsNull() {
			return v, nil
		}
		return Value{}, fmt.Errorf("expected null, got %s", v.Kind())
	}
	if v.IsNull() {
		return Value{}, fmt.Errorf("expected %s, got null", t.Kind)
	}

	switch t.Kind {
	case KindArray:
		arr, ok := v.AsArray()
		if !ok {
			return Value{}, fmt.Errorf("expected array, got %s", v.Kind())
		}
		if t.Elem == nil {
			return v, nil
		}
		out := make([]Value, len(arr))
		for i, item := range arr {
			coerced, err := Coerce(*t.Elem, item)
			if err != nil {
				return Value{}, fmt.Errorf("array[%d]: %w", i, err)
			}
			out[i] = coerced
		}
		return Array(out...), nil
	case KindObject:
		obj, keys, ok := v.AsObject()
		if !ok {
			return Value{}, fmt.Errorf("expected object, got %s", v.Kind())
		}
		if t.Arbitrary {
			return v, nil
		}
		result := make(map[string]Value, len(t.Strict))
		resultKeys := make([]string, 0, len(t.Strict))
		seen := make(map[string]bool, len(obj))
		for _, prop := range t.Strict {
			field, present := obj[prop.Name]
			seen[prop.Name] = true
			if !present {
				if prop.Optional {
					continue
				}
				return Value{}, fmt.Errorf("missing required property %q", prop.Name)
			}
			coerced, err := Coerce(prop.Type, field)
			if err != nil {
				return Value{}, fmt.Errorf("property %q: %w", prop.Name, err)
			}
			result[prop.Name] = coerced
			resultKeys = append(resultKeys, prop.Name)
		}
		for _, k := range keys {
			if !seen[k] {
				return Value{}, fmt.Errorf("unexpected property %q for strict object type", k)
			}
		}
		return Object(resultKeys, result), nil
	case KindAddon:
		addon, ok := v.AsAddon()
		if !ok {
			return Value{}, fmt.Errorf("expected addon<%s>, got %s", t.AddonNS, v.Kind())
		}
		if t.AddonNS != "" && addon.Namespace != t.AddonNS {
			return Value{}, fmt.Errorf("expected addon namespace %q, got %q", t.AddonNS, addon.Namespace)
		}
		return v, nil
	default:
		if v.Kind() != t.Kind {
			return Value{}, fmt.Errorf("expected %s, got %s", t.Kind, v.Kind())
		}
		return v, nil
	}
}
