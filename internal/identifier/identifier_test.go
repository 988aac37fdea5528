package identifier

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewConstructID_IsDeterministicForIdenticalInputs(t *testing.T) {
	t.Parallel()

	runbook := NewRunbookID("demo")
	pkg := NewPackageID(runbook, ".", "main")

	a := NewConstructID(pkg, KindAction, "main.tx", "deploy")
	b := NewConstructID(pkg, KindAction, "main.tx", "deploy")
	require.Equal(t, a.ID, b.ID)
}

func TestNewConstructID_DiffersByKind(t *testing.T) {
	t.Parallel()

	runbook := NewRunbookID("demo")
	pkg := NewPackageID(runbook, ".", "main")

	action := NewConstructID(pkg, KindAction, "main.tx", "thing")
	signer := NewConstructID(pkg, KindSigner, "main.tx", "thing")
	require.NotEqual(t, action.ID, signer.ID)
}

func TestNewConstructID_DiffersByFileLocationEvenWithSameName(t *testing.T) {
	t.Parallel()

	runbook := NewRunbookID("demo")
	pkg := NewPackageID(runbook, ".", "main")

	a := NewConstructID(pkg, KindVariable, "a.tx", "x")
	b := NewConstructID(pkg, KindVariable, "b.tx", "x")
	require.NotEqual(t, a.ID, b.ID)
}

func TestDigest_SeparatorPreventsConcatenationCollision(t *testing.T) {
	t.Parallel()

	x := digest("ab", "c")
	y := digest("a", "bc")
	require.NotEqual(t, x, y)
}

func TestID_IsZero(t *testing.T) {
	t.Parallel()

	var zero ID
	require.True(t, zero.IsZero())

	nonZero := NewRunbookID("demo").ID
	require.False(t, nonZero.IsZero())
}

func TestID_StringIsStableAndTruncated(t *testing.T) {
	t.Parallel()

	id := NewRunbookID("demo").ID
	require.Len(t, id.String(), 16)
	require.Equal(t, id.String(), id.String())
}
