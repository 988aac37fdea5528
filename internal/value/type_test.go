package value

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCoerce_StrictObjectRejectsUnknownProperty(t *testing.T) {
	t.Parallel()

	schema := StrictObject(PropertyDef{Name: "amount", Type: Primitive(KindInt)})
	obj := EmptyObject().WithField("amount", Int(5)).WithField("extra", Bool(true))

	_, err := Coerce(schema, obj)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unexpected property")
}

func TestCoerce_StrictObjectRequiresNonOptionalProperty(t *testing.T) {
	t.Parallel()

	schema := StrictObject(PropertyDef{Name: "amount", Type: Primitive(KindInt)})
	_, err := Coerce(schema, EmptyObject())
	require.Error(t, err)
	require.Contains(t, err.Error(), "missing required property")
}

func TestCoerce_StrictObjectAllowsMissingOptionalProperty(t *testing.T) {
	t.Parallel()

	schema := StrictObject(PropertyDef{Name: "memo", Type: Primitive(KindString), Optional: true})
	coerced, err := Coerce(schema, EmptyObject())
	require.NoError(t, err)
	_, keys, _ := coerced.AsObject()
	require.Empty(t, keys)
}

func TestCoerce_ArbitraryObjectAcceptsAnyShape(t *testing.T) {
	t.Parallel()

	schema := ArbitraryObject()
	obj := EmptyObject().WithField("whatever", Int(1))
	coerced, err := Coerce(schema, obj)
	require.NoError(t, err)
	require.True(t, Equal(obj, coerced))
}

func TestCoerce_ArrayRecursesIntoElementType(t *testing.T) {
	t.Parallel()

	schema := ArrayOf(Primitive(KindInt))
	_, err := Coerce(schema, Array(Int(1), String("nope")))
	require.Error(t, err)
}

func TestCoerce_AddonTypeRequiresMatchingNamespace(t *testing.T) {
	t.Parallel()

	schema := AddonType("evm")
	_, err := Coerce(schema, Addon("solana", []byte{0x01}))
	require.Error(t, err)

	coerced, err := Coerce(schema, Addon("evm", []byte{0x01}))
	require.NoError(t, err)
	require.Equal(t, KindAddon, coerced.Kind())
}

func TestCoerce_NullTypeOnlyAcceptsNull(t *testing.T) {
	t.Parallel()

	_, err := Coerce(NullType(), Int(1))
	require.Error(t, err)

	_, err = Coerce(NullType(), Null())
	require.NoError(t, err)
}
