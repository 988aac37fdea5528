package value

import (
	"math/big"

	"gopkg.in/yaml.v3"
)

// yamlValue is the wire shape Value (de)serializes through for snapshot
// persistence (internal/snapshot): a closed tagged representation mirroring
// the Kind enum, since Value's fields are private and yaml.v3 cannot see
// them via reflection directly.
type yamlValue struct {
	Kind    string           `yaml:"kind"`
	Bool    bool             `yaml:"bool,omitempty"`
	Int     string           `yaml:"int,omitempty"` // decimal string, arbitrary precision
	Float   float64          `yaml:"float,omitempty"`
	String  string           `yaml:"string,omitempty"`
	Bytes   []byte           `yaml:"bytes,omitempty"`
	Array   []Value          `yaml:"array,omitempty"`
	Keys    []string         `yaml:"keys,omitempty"`
	Object  map[string]Value `yaml:"object,omitempty"`
	AddonNS string           `yaml:"addon_namespace,omitempty"`
	AddonBy []byte           `yaml:"addon_bytes,omitempty"`
}

// MarshalYAML implements yaml.Marshaler so Value can be embedded directly in
// a snapshot.Document without every caller hand-rolling a wire format.
func (v Value) MarshalYAML() (interface{}, error) {
	out := yamlValue{Kind: v.kind.String()}
	switch v.kind {
	case KindBool:
		out.Bool = v.b
	case KindInt:
		if v.i != nil {
			out.Int = v.i.String()
		}
	case KindFloat:
		out.Float = v.f
	case KindString:
		out.String = v.s
	case KindBytes:
		out.Bytes = v.bytes
	case KindArray:
		out.Array = v.arr
	case KindObject:
		out.Keys = v.keys
		out.Object = v.obj
	case KindAddon:
		out.AddonNS = v.addon.Namespace
		out.AddonBy = v.addon.Bytes
	}
	return out, nil
}

// UnmarshalYAML implements yaml.Unmarshaler, reconstructing a Value from the
// wire shape MarshalYAML produced.
func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	var in yamlValue
	if err := node.Decode(&in); err != nil {
		return err
	}

	switch in.Kind {
	case "null", "":
		*v = Null()
	case "bool":
		*v = Bool(in.Bool)
	case "int":
		i, ok := new(big.Int).SetString(in.Int, 10)
		if !ok {
			i = big.NewInt(0)
		}
		*v = Value{kind: KindInt, i: i}
	case "float":
		*v = Float(in.Float)
	case "string":
		*v = String(in.String)
	case "bytes":
		*v = Bytes(in.Bytes)
	case "array":
		*v = Array(in.Array...)
	case "object":
		*v = Object(in.Keys, in.Object)
	case "addon":
		*v = Addon(in.AddonNS, in.AddonBy)
	default:
		*v = Null()
	}
	return nil
}
