package graph

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/txtx-labs/runbook-core/internal/identifier"
)

func idFor(name string) identifier.ID {
	runbook := identifier.NewRunbookID("test")
	pkg := identifier.NewPackageID(runbook, ".", "test")
	return identifier.NewConstructID(pkg, identifier.KindAction, "main.tx", name).ID
}

func TestStableTopologicalSort_PreservesDeclaredOrder(t *testing.T) {
	t.Parallel()

	g := New()
	a, b, c := idFor("a"), idFor("b"), idFor("c")
	g.IndexConstruct(a)
	g.IndexConstruct(b)
	g.IndexConstruct(c)
	g.AddEdge(b, a) // b depends on a
	g.AddEdge(c, b) // c depends on b

	order, diag := g.StableTopologicalSort()
	require.Nil(t, diag)
	require.Equal(t, []identifier.ID{a, b, c}, order)
}

func TestStableTopologicalSort_MultipleZeroIndegreeNodesKeepDeclarationOrder(t *testing.T) {
	t.Parallel()

	g := New()
	a, b, c, d, e := idFor("a"), idFor("b"), idFor("c"), idFor("d"), idFor("e")
	for _, id := range []identifier.ID{a, b, c, d, e} {
		g.IndexConstruct(id)
	}
	g.AddEdge(d, c)
	g.AddEdge(e, c)

	order, diag := g.StableTopologicalSort()
	require.Nil(t, diag)
	require.Equal(t, []identifier.ID{a, b, c, d, e}, order)
}

func TestStableTopologicalSort_DetectsCycle(t *testing.T) {
	t.Parallel()

	g := New()
	a, b, c := idFor("a"), idFor("b"), idFor("c")
	g.IndexConstruct(a)
	g.IndexConstruct(b)
	g.IndexConstruct(c)
	g.AddEdge(a, c)
	g.AddEdge(b, a)
	g.AddEdge(c, b)

	order, diag := g.StableTopologicalSort()
	require.Nil(t, order)
	require.NotNil(t, diag)
	require.Contains(t, diag.Message, "cycling dependency")
}

func TestAddEdge_DropsSelfLoop(t *testing.T) {
	t.Parallel()

	g := New()
	a := idFor("a")
	g.IndexConstruct(a)
	g.AddEdge(a, a)

	order, diag := g.StableTopologicalSort()
	require.Nil(t, diag)
	require.Equal(t, []identifier.ID{a}, order)
}

func TestAddEdge_DeduplicatesRepeatedEdges(t *testing.T) {
	t.Parallel()

	g := New()
	a, b := idFor("a"), idFor("b")
	g.IndexConstruct(a)
	g.IndexConstruct(b)
	g.AddEdge(b, a)
	g.AddEdge(b, a)
	g.AddEdge(b, a)

	require.Len(t, g.UpstreamDependencies(b, false), 1)
}

func TestSignerDependentsOrder_OrdersByAscendingUpstreamCount(t *testing.T) {
	t.Parallel()

	g := New()
	signer := idFor("signer")
	shared := idFor("shared")
	tx1 := idFor("tx1")
	tx2 := idFor("tx2")
	g.IndexConstruct(signer)
	g.IndexConstruct(shared)
	g.IndexConstruct(tx1)
	g.IndexConstruct(tx2)

	// tx1 depends only on the signer.
	g.AddEdge(tx1, signer)
	// tx2 depends on the signer and on an extra non-signer construct.
	g.AddEdge(tx2, signer)
	g.AddEdge(tx2, shared)

	isSigner := func(id identifier.ID) bool { return id == signer }
	order := g.SignerDependentsOrder(signer, isSigner)
	require.Equal(t, []identifier.ID{tx1, tx2}, order)
}
