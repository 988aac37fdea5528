// Package eval implements the L3 Evaluation Engine of spec.md §4.3: it walks
// the restricted expression grammar (internal/syntax) against already
// computed construct results, addon-dispatched functions, and workspace
// references, and implements the repeated-block "map evaluation" rule used
// to populate map<...>-typed inputs.
package eval

import (
	"math/big"
	"strconv"

	"github.com/txtx-labs/runbook-core/internal/diagnostic"
	"github.com/txtx-labs/runbook-core/internal/identifier"
	"github.com/txtx-labs/runbook-core/internal/syntax"
	"github.com/txtx-labs/runbook-core/internal/value"
	"github.com/txtx-labs/runbook-core/internal/workspace"
)

// FunctionCaller dispatches <namespace>::<function>(args...) calls to the
// addon registry (L5). Evaluation never knows how a function is implemented.
type FunctionCaller interface {
	CallFunction(namespace, function string, args []value.Value) (value.Value, *diagnostic.Diagnostic)
}

// ResultCache looks up the already-computed output of a construct. Backed by
// the L4 Execution Context's result cache; kept as a narrow interface here so
// the evaluation engine never depends forward on execctx.
type ResultCache interface {
	Result(id identifier.ID) (value.Value, bool)
}

// Env bundles everything a single expression evaluation needs.
type Env struct {
	Workspace *workspace.Workspace
	Package   *workspace.Package
	Functions FunctionCaller
	Results   ResultCache
}

// OutcomeKind tags which of the three evaluation outcomes (§4.3) applies.
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeNeedsAction
	OutcomeFailed
)

// PendingAction is the evaluation engine's dependency-not-ready signal. It
// carries only the blocking construct id; the capability/scheduler layers
// translate it into a full bus.ActionItemRequest, since eval cannot depend
// on the L7 Event Bus without creating a layering cycle.
type PendingAction struct {
	ConstructID identifier.ID
	Reason      string
}

// Outcome is the result of evaluating a single expression.
type Outcome struct {
	Kind       OutcomeKind
	Value      value.Value
	Pending    *PendingAction
	Diagnostic *diagnostic.Diagnostic
}

func success(v value.Value) Outcome { return Outcome{Kind: OutcomeSuccess, Value: v} }
func failed(d *diagnostic.Diagnostic) Outcome {
	return Outcome{Kind: OutcomeFailed, Diagnostic: d}
}
func pending(p PendingAction) Outcome { return Outcome{Kind: OutcomeNeedsAction, Pending: &p} }

// Evaluate walks expr to a single Outcome, short-circuiting dependent
// evaluation the moment any subexpression fails or blocks (§7: evaluation
// errors short-circuit the dependent, they never collect into a bag).
func Evaluate(expr syntax.Expr, env *Env) Outcome {
	switch e := expr.(type) {
	case nil:
		return success(value.Null())

	case syntax.LiteralExpr:
		return success(e.Value)

	case syntax.ArrayExpr:
		items := make([]value.Value, 0, len(e.Items))
		for _, item := range e.Items {
			out := Evaluate(item, env)
			if out.Kind != OutcomeSuccess {
				return out
			}
			items = append(items, out.Value)
		}
		return success(value.Array(items...))

	case syntax.ObjectExpr:
		fields := make(map[string]value.Value, len(e.Keys))
		for _, key := range e.Keys {
			out := Evaluate(e.Fields[key], env)
			if out.Kind != OutcomeSuccess {
				return out
			}
			fields[key] = out.Value
		}
		return success(value.Object(e.Keys, fields))

	case syntax.TraversalExpr:
		return evaluateTraversal(e, env)

	case syntax.FunctionCallExpr:
		return evaluateCall(e, env)

	case syntax.BinaryExpr:
		return evaluateBinary(e, env)

	case syntax.UnaryExpr:
		return evaluateUnary(e, env)

	default:
		return failed(diagnostic.New("eval: unsupported expression node %T", expr))
	}
}

func evaluateTraversal(t syntax.TraversalExpr, env *Env) Outcome {
	ref, err := env.Workspace.ResolveReference(env.Package, t)
	if err != nil {
		return failed(diagnostic.New("%s", err.Error()))
	}
	result, ok := env.Results.Result(ref.ConstructID)
	if !ok {
		return pending(PendingAction{ConstructID: ref.ConstructID, Reason: "upstream construct has not produced a result yet"})
	}
	return projectSubpath(result, ref.Subpath)
}

func projectSubpath(v value.Value, subpath []string) Outcome {
	current := v
	for _, step := range subpath {
		if idx, err := strconv.Atoi(step); err == nil {
			arr, ok := current.AsArray()
			if !ok || idx < 0 || idx >= len(arr) {
				return failed(diagnostic.New("index %d out of range", idx))
			}
			current = arr[idx]
			continue
		}
		field, ok := current.ObjectField(step)
		if !ok {
			return failed(diagnostic.New("no such field %q", step))
		}
		current = field
	}
	return success(current)
}

func evaluateCall(call syntax.FunctionCallExpr, env *Env) Outcome {
	args := make([]value.Value, 0, len(call.Args))
	for _, a := range call.Args {
		out := Evaluate(a, env)
		if out.Kind != OutcomeSuccess {
			return out
		}
		args = append(args, out.Value)
	}
	result, diag := env.Functions.CallFunction(call.Namespace, call.Function, args)
	if diag != nil {
		return failed(diag)
	}
	return success(result)
}

func evaluateUnary(u syntax.UnaryExpr, env *Env) Outcome {
	operand := Evaluate(u.Operand, env)
	if operand.Kind != OutcomeSuccess {
		return operand
	}
	switch u.Op {
	case syntax.OpNegate:
		if i, ok := operand.Value.AsInt(); ok {
			neg := new(big.Int).Neg(i)
			return intResult(neg)
		}
		if f, ok := operand.Value.AsFloat(); ok {
			return success(value.Float(-f))
		}
		return failed(diagnostic.New("unary - requires a numeric operand"))
	case syntax.OpNot:
		if b, ok := operand.Value.AsBool(); ok {
			return success(value.Bool(!b))
		}
		return failed(diagnostic.New("unary ! requires a boolean operand"))
	default:
		return failed(diagnostic.New("eval: unsupported unary operator"))
	}
}

func evaluateBinary(b syntax.BinaryExpr, env *Env) Outcome {
	left := Evaluate(b.Left, env)
	if left.Kind != OutcomeSuccess {
		return left
	}
	right := Evaluate(b.Right, env)
	if right.Kind != OutcomeSuccess {
		return right
	}

	switch b.Op {
	case syntax.OpAnd, syntax.OpOr:
		lb, lok := left.Value.AsBool()
		rb, rok := right.Value.AsBool()
		if !lok || !rok {
			return failed(diagnostic.New("logical operators require boolean operands"))
		}
		if b.Op == syntax.OpAnd {
			return success(value.Bool(lb && rb))
		}
		return success(value.Bool(lb || rb))

	case syntax.OpEqual:
		return success(value.Bool(value.Equal(left.Value, right.Value)))
	case syntax.OpNotEqual:
		return success(value.Bool(!value.Equal(left.Value, right.Value)))

	case syntax.OpAdd, syntax.OpSub, syntax.OpMul, syntax.OpDiv, syntax.OpMod,
		syntax.OpLess, syntax.OpLessEqual, syntax.OpGreater, syntax.OpGreaterEqual:
		return evaluateNumeric(b.Op, left.Value, right.Value)

	default:
		return failed(diagnostic.New("eval: unsupported binary operator"))
	}
}

func evaluateNumeric(op syntax.BinaryOp, left, right value.Value) Outcome {
	li, liok := left.AsInt()
	ri, riok := right.AsInt()
	if liok && riok {
		return evaluateIntOp(op, li, ri)
	}

	lf, lfok := asFloat(left)
	rf, rfok := asFloat(right)
	if !lfok || !rfok {
		return failed(diagnostic.New("arithmetic/comparison operators require numeric operands"))
	}
	return evaluateFloatOp(op, lf, rf)
}

func asFloat(v value.Value) (float64, bool) {
	if f, ok := v.AsFloat(); ok {
		return f, true
	}
	if i, ok := v.AsInt(); ok {
		f, _ := new(big.Float).SetInt(i).Float64()
		return f, true
	}
	return 0, false
}

func evaluateIntOp(op syntax.BinaryOp, l, r *big.Int) Outcome {
	switch op {
	case syntax.OpAdd:
		return intResult(new(big.Int).Add(l, r))
	case syntax.OpSub:
		return intResult(new(big.Int).Sub(l, r))
	case syntax.OpMul:
		return intResult(new(big.Int).Mul(l, r))
	case syntax.OpDiv:
		if r.Sign() == 0 {
			return failed(diagnostic.New("division by zero"))
		}
		return intResult(new(big.Int).Div(l, r))
	case syntax.OpMod:
		if r.Sign() == 0 {
			return failed(diagnostic.New("modulo by zero"))
		}
		return intResult(new(big.Int).Mod(l, r))
	case syntax.OpLess:
		return success(value.Bool(l.Cmp(r) < 0))
	case syntax.OpLessEqual:
		return success(value.Bool(l.Cmp(r) <= 0))
	case syntax.OpGreater:
		return success(value.Bool(l.Cmp(r) > 0))
	case syntax.OpGreaterEqual:
		return success(value.Bool(l.Cmp(r) >= 0))
	default:
		return failed(diagnostic.New("eval: unsupported integer operator"))
	}
}

// intResult wraps an arithmetic result as a Value, rejecting anything that
// would overflow the signed 128-bit range instead of silently wrapping
// (SPEC_FULL.md §3's Int128 bound).
func intResult(i *big.Int) Outcome {
	if !value.InRangeInt128(i) {
		return failed(diagnostic.New("integer overflow: %s does not fit in a signed 128-bit integer", i.String()))
	}
	return success(value.BigInt(i))
}

func evaluateFloatOp(op syntax.BinaryOp, l, r float64) Outcome {
	switch op {
	case syntax.OpAdd:
		return success(value.Float(l + r))
	case syntax.OpSub:
		return success(value.Float(l - r))
	case syntax.OpMul:
		return success(value.Float(l * r))
	case syntax.OpDiv:
		if r == 0 {
			return failed(diagnostic.New("division by zero"))
		}
		return success(value.Float(l / r))
	case syntax.OpMod:
		return failed(diagnostic.New("modulo is not defined for floating point operands"))
	case syntax.OpLess:
		return success(value.Bool(l < r))
	case syntax.OpLessEqual:
		return success(value.Bool(l <= r))
	case syntax.OpGreater:
		return success(value.Bool(l > r))
	case syntax.OpGreaterEqual:
		return success(value.Bool(l >= r))
	default:
		return failed(diagnostic.New("eval: unsupported float operator"))
	}
}
