package value

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEqual_ComparesAddonBytesByNamespaceAndPayload(t *testing.T) {
	t.Parallel()

	a := Addon("evm", []byte{0x01, 0x02})
	b := Addon("evm", []byte{0x01, 0x02})
	c := Addon("solana", []byte{0x01, 0x02})
	d := Addon("evm", []byte{0x03})

	require.True(t, Equal(a, b))
	require.False(t, Equal(a, c))
	require.False(t, Equal(a, d))
}

func TestCanonicalBytes_ObjectKeyOrderDoesNotAffectEncoding(t *testing.T) {
	t.Parallel()

	obj1 := Object([]string{"a", "b"}, map[string]Value{"a": Int(1), "b": Int(2)})
	obj2 := Object([]string{"b", "a"}, map[string]Value{"a": Int(1), "b": Int(2)})

	require.Equal(t, CanonicalBytes(obj1), CanonicalBytes(obj2))
}

func TestCanonicalBytes_DiffersOnFieldValueChange(t *testing.T) {
	t.Parallel()

	obj1 := EmptyObject().WithField("amount", Int(100))
	obj2 := EmptyObject().WithField("amount", Int(101))

	require.NotEqual(t, CanonicalBytes(obj1), CanonicalBytes(obj2))
}

func TestWithField_PreservesInsertionOrderForNewKeys(t *testing.T) {
	t.Parallel()

	obj := EmptyObject().WithField("first", Int(1)).WithField("second", Int(2))
	_, keys, ok := obj.AsObject()
	require.True(t, ok)
	require.Equal(t, []string{"first", "second"}, keys)
}

func TestWithField_OverwritingExistingKeyDoesNotDuplicateOrder(t *testing.T) {
	t.Parallel()

	obj := EmptyObject().WithField("x", Int(1)).WithField("x", Int(2))
	_, keys, _ := obj.AsObject()
	require.Equal(t, []string{"x"}, keys)
	field, _ := obj.ObjectField("x")
	i, _ := field.AsInt()
	require.Equal(t, int64(2), i.Int64())
}

func TestBigInt_PreservesArbitraryPrecision(t *testing.T) {
	t.Parallel()

	huge, ok := new(big.Int).SetString("123456789012345678901234567890", 10)
	require.True(t, ok)
	v := BigInt(huge)
	got, ok := v.AsInt()
	require.True(t, ok)
	require.Equal(t, 0, huge.Cmp(got))
}

func TestKind_AccessorsReturnFalseForMismatchedKind(t *testing.T) {
	t.Parallel()

	v := String("hello")
	_, ok := v.AsBool()
	require.False(t, ok)
	_, ok = v.AsInt()
	require.False(t, ok)
}
