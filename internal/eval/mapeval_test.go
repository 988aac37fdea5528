package eval

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/txtx-labs/runbook-core/internal/syntax"
	"github.com/txtx-labs/runbook-core/internal/value"
)

func block(blockType string, attrs map[string]syntax.Expr, order []string, children ...*syntax.Block) *syntax.Block {
	return &syntax.Block{Type: blockType, Attributes: attrs, AttributeOrder: order, Blocks: children}
}

func lit(v value.Value) syntax.Expr { return syntax.LiteralExpr{Value: v} }

func TestEvaluateArbitraryMap_OneEntryPerSiblingBlock(t *testing.T) {
	t.Parallel()

	blocks := []*syntax.Block{
		block("item", map[string]syntax.Expr{"a": lit(value.Int(1))}, []string{"a"}),
		block("item", map[string]syntax.Expr{"a": lit(value.Int(2))}, []string{"a"}),
		block("item", map[string]syntax.Expr{"a": lit(value.Int(3))}, []string{"a"}),
	}
	env := &Env{}
	out := EvaluateArbitraryMap(blocks, env)
	require.Equal(t, OutcomeSuccess, out.Kind)
	entries, ok := out.Value.AsArray()
	require.True(t, ok)
	require.Len(t, entries, 3)
	for i, entry := range entries {
		field, _ := entry.ObjectField("a")
		n, _ := field.AsInt()
		require.Equal(t, int64(i+1), n.Int64())
	}
}

func TestEvaluateArbitraryMap_NestedChildBlocksBecomeArrayField(t *testing.T) {
	t.Parallel()

	account := block("account", map[string]syntax.Expr{"address": lit(value.String("wallet1"))}, []string{"address"})
	instruction := block("instruction", map[string]syntax.Expr{"program_id": lit(value.String("abc123"))}, []string{"program_id"}, account)

	out := EvaluateArbitraryMap([]*syntax.Block{instruction}, &Env{})
	require.Equal(t, OutcomeSuccess, out.Kind)
	entries, _ := out.Value.AsArray()
	require.Len(t, entries, 1)

	accountsField, ok := entries[0].ObjectField("account")
	require.True(t, ok)
	accounts, ok := accountsField.AsArray()
	require.True(t, ok)
	require.Len(t, accounts, 1)
	addr, _ := accounts[0].ObjectField("address")
	s, _ := addr.AsString()
	require.Equal(t, "wallet1", s)
}

// TestEvaluateArbitraryMap_DuplicateBlocksDoNotLeakChildEntries is the
// regression test for sibling blocks of the same identifier sharing child
// accumulator state: each "instruction" must see only its own "payer".
func TestEvaluateArbitraryMap_DuplicateBlocksDoNotLeakChildEntries(t *testing.T) {
	t.Parallel()

	payer1 := block("payer", map[string]syntax.Expr{"address": lit(value.String("payer1"))}, []string{"address"})
	instruction1 := block("instruction", map[string]syntax.Expr{"program_id": lit(value.String("prog1"))}, []string{"program_id"}, payer1)

	payer2 := block("payer", map[string]syntax.Expr{"address": lit(value.String("payer2"))}, []string{"address"})
	instruction2 := block("instruction", map[string]syntax.Expr{"program_id": lit(value.String("prog2"))}, []string{"program_id"}, payer2)

	out := EvaluateArbitraryMap([]*syntax.Block{instruction1, instruction2}, &Env{})
	require.Equal(t, OutcomeSuccess, out.Kind)
	entries, _ := out.Value.AsArray()
	require.Len(t, entries, 2)

	payer0Field, _ := entries[0].ObjectField("payer")
	payer0, _ := payer0Field.AsArray()
	require.Len(t, payer0, 1, "first instruction's payer should have exactly one entry")

	payer1Field, _ := entries[1].ObjectField("payer")
	payer1Arr, _ := payer1Field.AsArray()
	require.Len(t, payer1Arr, 1, "second instruction's payer should have exactly one entry, not leak the first's")
}

func TestEvaluateStrictMap_RejectsMissingRequiredProperty(t *testing.T) {
	t.Parallel()

	schema := value.StrictObject(value.PropertyDef{Name: "amount", Type: value.Primitive(value.KindInt)})
	entry := block("transfer", map[string]syntax.Expr{}, nil)

	out := EvaluateStrictMap(schema, []*syntax.Block{entry}, &Env{})
	require.Equal(t, OutcomeFailed, out.Kind)
	require.Contains(t, out.Diagnostic.Message, "missing required property")
}
