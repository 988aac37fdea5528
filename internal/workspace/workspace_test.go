package workspace

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/txtx-labs/runbook-core/internal/identifier"
	"github.com/txtx-labs/runbook-core/internal/syntax"
	"github.com/txtx-labs/runbook-core/internal/value"
)

// stubParser returns a fixed set of blocks per source location, so tests can
// exercise BuildFromSources without a real HCL parser.
type stubParser struct {
	blocksByLocation map[string][]*syntax.Block
}

func (s *stubParser) Parse(filename string, _ []byte) ([]*syntax.Block, error) {
	return s.blocksByLocation[filename], nil
}

func namedBlock(blockType, name string) *syntax.Block {
	return &syntax.Block{Type: blockType, Labels: []string{name}}
}

func actionBlock(name, matcher string) *syntax.Block {
	return &syntax.Block{Type: "action", Labels: []string{name, matcher}}
}

type noopGraph struct{ seen []identifier.ID }

func (g *noopGraph) IndexConstruct(id identifier.ID) { g.seen = append(g.seen, id) }

func TestBuildFromSources_IndexesEveryTopLevelBlock(t *testing.T) {
	t.Parallel()

	parser := &stubParser{blocksByLocation: map[string][]*syntax.Block{
		"main.tx": {
			namedBlock("var", "amount"),
			actionBlock("deploy", "evm::deploy_contract"),
			namedBlock("output", "result"),
		},
	}}

	ws := New(identifier.NewRunbookID("demo"))
	g := &noopGraph{}
	bag := ws.BuildFromSources(parser, []Source{{Location: "main.tx", PackageName: "main"}}, g)
	require.False(t, bag.HasErrors())
	require.Len(t, g.seen, 3)
}

func TestBuildFromSources_RejectsActionWithoutNamespacedMatcher(t *testing.T) {
	t.Parallel()

	parser := &stubParser{blocksByLocation: map[string][]*syntax.Block{
		"main.tx": {
			{Type: "action", Labels: []string{"deploy", "deploy_contract"}},
		},
	}}

	ws := New(identifier.NewRunbookID("demo"))
	bag := ws.BuildFromSources(parser, []Source{{Location: "main.tx", PackageName: "main"}}, nil)
	require.True(t, bag.HasErrors())
}

func TestResolveReference_ResolvesVariableByName(t *testing.T) {
	t.Parallel()

	ws := New(identifier.NewRunbookID("demo"))
	pkg := ws.IndexPackage(identifier.NewPackageID(ws.RunbookID, ".", "main"))
	cid := ws.IndexConstruct(pkg, identifier.KindVariable, "main.tx", "amount", nil, nil)

	ref, err := ws.ResolveReference(pkg, syntax.TraversalExpr{Root: "var", Name: "amount"})
	require.NoError(t, err)
	require.Equal(t, cid.ID, ref.ConstructID)
}

func TestResolveReference_UnknownReferenceReturnsError(t *testing.T) {
	t.Parallel()

	ws := New(identifier.NewRunbookID("demo"))
	pkg := ws.IndexPackage(identifier.NewPackageID(ws.RunbookID, ".", "main"))

	_, err := ws.ResolveReference(pkg, syntax.TraversalExpr{Root: "var", Name: "missing"})
	require.Error(t, err)
}

func TestResolveReference_FollowsImportAlias(t *testing.T) {
	t.Parallel()

	ws := New(identifier.NewRunbookID("demo"))
	mainPkg := ws.IndexPackage(identifier.NewPackageID(ws.RunbookID, ".", "main"))
	importCid := ws.IndexConstruct(mainPkg, identifier.KindImport, "main.tx", "shared", namedBlock("import", "shared"), nil)
	_ = importCid

	sharedPkg := ws.IndexPackage(identifier.NewPackageID(ws.RunbookID, "./shared", "shared"))
	outCid := ws.IndexConstruct(sharedPkg, identifier.KindOutput, "shared/main.tx", "value", nil, nil)

	ref, err := ws.ResolveReference(mainPkg, syntax.TraversalExpr{Root: "shared", Name: "output", Subpath: []string{"value"}})
	require.NoError(t, err)
	require.Equal(t, outCid.ID, ref.ConstructID)
}

func TestIndexEnvironmentVariable_ResolvesThroughEnvRoot(t *testing.T) {
	t.Parallel()

	ws := New(identifier.NewRunbookID("demo"))
	pkg := ws.IndexPackage(identifier.NewPackageID(ws.RunbookID, ".", "main"))
	id := ws.IndexEnvironmentVariable("network", value.Null())

	ref, err := ws.ResolveReference(pkg, syntax.TraversalExpr{Root: "env", Name: "network"})
	require.NoError(t, err)
	require.Equal(t, id, ref.ConstructID)
}
