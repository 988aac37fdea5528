package eval

import (
	"github.com/txtx-labs/runbook-core/internal/diagnostic"
	"github.com/txtx-labs/runbook-core/internal/syntax"
	"github.com/txtx-labs/runbook-core/internal/value"
)

// EvaluateArbitraryMap implements §4.3's map-evaluation rule for a map<...>
// input with no fixed schema: one object entry per sibling block of the
// given identifier, each built from a fresh accumulator. This is the
// regression the original implementation got wrong for duplicate block
// names — carrying a shared accumulator across siblings would let a later
// block's child entries leak into an earlier one's.
func EvaluateArbitraryMap(blocks []*syntax.Block, env *Env) Outcome {
	entries := make([]value.Value, 0, len(blocks))
	for _, block := range blocks {
		out := evaluateBlockEntry(block, env)
		if out.Kind != OutcomeSuccess {
			return out
		}
		entries = append(entries, out.Value)
	}
	return success(value.Array(entries...))
}

// evaluateBlockEntry evaluates one sibling block into its own object Value:
// its own attributes, plus one array-valued field per distinct child block
// identifier, each built independently via recursion (so a nested
// duplicate-identifier bug at one level cannot leak into a sibling at any
// other level).
func evaluateBlockEntry(block *syntax.Block, env *Env) Outcome {
	fields := map[string]value.Value{}
	keys := make([]string, 0, len(block.AttributeOrder)+len(block.Blocks))

	for _, name := range block.AttributeOrder {
		expr, _ := block.Attribute(name)
		out := Evaluate(expr, env)
		if out.Kind != OutcomeSuccess {
			return out
		}
		fields[name] = out.Value
		keys = append(keys, name)
	}

	seenChildTypes := map[string]bool{}
	for _, child := range block.Blocks {
		if seenChildTypes[child.Type] {
			continue
		}
		seenChildTypes[child.Type] = true
		siblings := block.ChildBlocksOfType(child.Type)
		out := EvaluateArbitraryMap(siblings, env)
		if out.Kind != OutcomeSuccess {
			return out
		}
		fields[child.Type] = out.Value
		keys = append(keys, child.Type)
	}

	return success(value.Object(keys, fields))
}

// EvaluateStrictMap is EvaluateArbitraryMap followed by coercion of every
// entry against a fixed schema, so missing required properties or type
// mismatches surface as a single diagnostic rather than a panic deep in a
// downstream capability.
func EvaluateStrictMap(schema value.Type, blocks []*syntax.Block, env *Env) Outcome {
	out := EvaluateArbitraryMap(blocks, env)
	if out.Kind != OutcomeSuccess {
		return out
	}
	entries, _ := out.Value.AsArray()
	coerced := make([]value.Value, 0, len(entries))
	for i, entry := range entries {
		c, err := value.Coerce(schema, entry)
		if err != nil {
			return failed(diagnostic.New("entry %d: %s", i, err.Error()))
		}
		coerced = append(coerced, c)
	}
	return success(value.Array(coerced...))
}
