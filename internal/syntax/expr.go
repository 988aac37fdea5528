// Package syntax implements the closed restricted expression AST (spec.md
// §4.3) shared by the workspace indexer (which only needs to extract
// traversals for dependency resolution) and the evaluation engine (which
// walks the full tree). Keeping it independent of both avoids a layering
// cycle between L1 (Workspace Context) and L3 (Evaluation Engine).
package syntax

import "github.com/txtx-labs/runbook-core/internal/value"

// Expr is the closed expression AST the evaluator walks. Every node kind is
// enumerated below; SourceParser implementations (e.g. internal/hclsource)
// translate their own syntax tree into this shape once, at parse time, so
// the evaluation engine's data model stays closed per Design Note §9.
type Expr interface {
	isExpr()
}

// LiteralExpr wraps a literal Value (number, string, bool, null).
type LiteralExpr struct {
	Value value.Value
}

func (LiteralExpr) isExpr() {}

// ArrayExpr is an array literal.
type ArrayExpr struct {
	Items []Expr
}

func (ArrayExpr) isExpr() {}

// ObjectExpr is an object literal, preserving declaration order.
type ObjectExpr struct {
	Keys   []string
	Fields map[string]Expr
}

func (ObjectExpr) isExpr() {}

// TraversalExpr is a dotted-traversal reference: <root>.<name>[.<subpath>...]
// where Root is one of "var", "module", "action", "signer", "output",
// "input", "env", or an import alias (§4.1).
type TraversalExpr struct {
	Root    string
	Name    string
	Subpath []string
}

func (TraversalExpr) isExpr() {}

// FunctionCallExpr is a dispatched call of the form
// <namespace>::<function_name>(args...). Its result cannot be traversed
// in-line per §4.1.
type FunctionCallExpr struct {
	Namespace string
	Function  string
	Args      []Expr
}

func (FunctionCallExpr) isExpr() {}

// BinaryOp enumerates the operators §4.3 allows.
type BinaryOp int

const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpEqual
	OpNotEqual
	OpLess
	OpLessEqual
	OpGreater
	OpGreaterEqual
	OpAnd
	OpOr
)

// BinaryExpr is a binary arithmetic, comparison, or logical operation.
type BinaryExpr struct {
	Op          BinaryOp
	Left, Right Expr
}

func (BinaryExpr) isExpr() {}

// UnaryOp enumerates unary operators.
type UnaryOp int

const (
	OpNegate UnaryOp = iota
	OpNot
)

// UnaryExpr is a unary operation.
type UnaryExpr struct {
	Op      UnaryOp
	Operand Expr
}

func (UnaryExpr) isExpr() {}
