package eval

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/txtx-labs/runbook-core/internal/diagnostic"
	"github.com/txtx-labs/runbook-core/internal/identifier"
	"github.com/txtx-labs/runbook-core/internal/syntax"
	"github.com/txtx-labs/runbook-core/internal/value"
	"github.com/txtx-labs/runbook-core/internal/workspace"
)

type fakeResults struct {
	values map[identifier.ID]value.Value
}

func (f *fakeResults) Result(id identifier.ID) (value.Value, bool) {
	v, ok := f.values[id]
	return v, ok
}

type fakeFunctions struct{}

func (fakeFunctions) CallFunction(namespace, function string, args []value.Value) (value.Value, *diagnostic.Diagnostic) {
	if namespace == "std" && function == "add_one" {
		i, ok := args[0].AsInt()
		if !ok {
			return value.Value{}, diagnostic.New("add_one requires an int argument")
		}
		return value.Int(i.Int64() + 1), nil
	}
	return value.Value{}, diagnostic.New("unknown function %s::%s", namespace, function)
}

func TestEvaluate_LiteralsAndArithmetic(t *testing.T) {
	t.Parallel()

	env := &Env{Results: &fakeResults{values: map[identifier.ID]value.Value{}}, Functions: fakeFunctions{}}

	expr := syntax.BinaryExpr{
		Op:    syntax.OpAdd,
		Left:  syntax.LiteralExpr{Value: value.Int(2)},
		Right: syntax.LiteralExpr{Value: value.Int(3)},
	}
	out := Evaluate(expr, env)
	require.Equal(t, OutcomeSuccess, out.Kind)
	i, _ := out.Value.AsInt()
	require.Equal(t, int64(5), i.Int64())
}

func TestEvaluate_DivisionByZeroFails(t *testing.T) {
	t.Parallel()

	env := &Env{Results: &fakeResults{values: map[identifier.ID]value.Value{}}, Functions: fakeFunctions{}}
	expr := syntax.BinaryExpr{Op: syntax.OpDiv, Left: syntax.LiteralExpr{Value: value.Int(1)}, Right: syntax.LiteralExpr{Value: value.Int(0)}}
	out := Evaluate(expr, env)
	require.Equal(t, OutcomeFailed, out.Kind)
}

func TestEvaluate_FunctionCallDispatchesToRegistry(t *testing.T) {
	t.Parallel()

	env := &Env{Results: &fakeResults{values: map[identifier.ID]value.Value{}}, Functions: fakeFunctions{}}
	expr := syntax.FunctionCallExpr{Namespace: "std", Function: "add_one", Args: []syntax.Expr{syntax.LiteralExpr{Value: value.Int(41)}}}
	out := Evaluate(expr, env)
	require.Equal(t, OutcomeSuccess, out.Kind)
	i, _ := out.Value.AsInt()
	require.Equal(t, int64(42), i.Int64())
}

func TestEvaluate_TraversalResolvesThroughWorkspace(t *testing.T) {
	t.Parallel()

	runbookID := identifier.NewRunbookID("demo")
	ws := workspace.New(runbookID)
	pkgID := identifier.NewPackageID(runbookID, ".", "main")
	pkg := ws.IndexPackage(pkgID)
	cid := ws.IndexConstruct(pkg, identifier.KindVariable, "main.tx", "amount", nil, nil)

	results := &fakeResults{values: map[identifier.ID]value.Value{cid.ID: value.Int(7)}}
	env := &Env{Workspace: ws, Package: pkg, Results: results, Functions: fakeFunctions{}}

	out := Evaluate(syntax.TraversalExpr{Root: "var", Name: "amount"}, env)
	require.Equal(t, OutcomeSuccess, out.Kind)
	i, _ := out.Value.AsInt()
	require.Equal(t, int64(7), i.Int64())
}

func TestEvaluate_TraversalToUnresolvedResultYieldsPendingAction(t *testing.T) {
	t.Parallel()

	runbookID := identifier.NewRunbookID("demo")
	ws := workspace.New(runbookID)
	pkgID := identifier.NewPackageID(runbookID, ".", "main")
	pkg := ws.IndexPackage(pkgID)
	cid := ws.IndexConstruct(pkg, identifier.KindAction, "main.tx", "deploy", nil, nil)
	_ = cid

	env := &Env{Workspace: ws, Package: pkg, Results: &fakeResults{values: map[identifier.ID]value.Value{}}, Functions: fakeFunctions{}}
	out := Evaluate(syntax.TraversalExpr{Root: "action", Name: "deploy", Subpath: []string{"tx_hash"}}, env)
	require.Equal(t, OutcomeNeedsAction, out.Kind)
	require.NotNil(t, out.Pending)
	require.Equal(t, cid.ID, out.Pending.ConstructID)
}

func TestEvaluate_ProjectsObjectAndArraySubpaths(t *testing.T) {
	t.Parallel()

	runbookID := identifier.NewRunbookID("demo")
	ws := workspace.New(runbookID)
	pkgID := identifier.NewPackageID(runbookID, ".", "main")
	pkg := ws.IndexPackage(pkgID)
	cid := ws.IndexConstruct(pkg, identifier.KindAction, "main.tx", "deploy", nil, nil)

	receipt := value.EmptyObject().WithField("logs", value.Array(
		value.EmptyObject().WithField("topic", value.String("Transfer")),
	))
	env := &Env{Workspace: ws, Package: pkg, Results: &fakeResults{values: map[identifier.ID]value.Value{cid.ID: receipt}}, Functions: fakeFunctions{}}

	out := Evaluate(syntax.TraversalExpr{Root: "action", Name: "deploy", Subpath: []string{"logs", "0", "topic"}}, env)
	require.Equal(t, OutcomeSuccess, out.Kind)
	s, _ := out.Value.AsString()
	require.Equal(t, "Transfer", s)
}
