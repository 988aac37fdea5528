// Package hclsource is a concrete default implementation of the §6 "HCL
// Parser" external collaborator, built on hashicorp/hcl/v2. It stands in
// for the real (out-of-scope) addon-aware parser so the module is runnable
// end to end; the core only ever consumes the resulting []*syntax.Block
// through the workspace.SourceParser interface and never imports this
// package directly.
package hclsource

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"

	"github.com/txtx-labs/runbook-core/internal/syntax"
	"github.com/txtx-labs/runbook-core/internal/value"
)

// namespacedCallPattern rewrites "<ident>::<ident>(" into a single legal HCL
// identifier before lexing, since HCL identifiers cannot contain "::". The
// separator is restored once the function name is extracted. This is a
// deliberate, narrow preprocessing step of the default parser; it does not
// change the restricted expression grammar, only how this one concrete
// SourceParser feeds it through an unmodified HCL lexer.
var namespacedCallPattern = regexp.MustCompile(`([A-Za-z_][A-Za-z0-9_]*)::([A-Za-z_][A-Za-z0-9_]*)\(`)

// nsSep is spelled entirely out of legal HCL identifier characters so the
// rewritten source still lexes; splitNamespacedName below reverses it.
const nsSep = "__txtxns__"

// Parser implements workspace.SourceParser.
type Parser struct{}

// New returns a Parser ready to use; it holds no state.
func New() *Parser { return &Parser{} }

// Parse turns raw HCL 2 source bytes into top-level blocks.
func (p *Parser) Parse(filename string, src []byte) ([]*syntax.Block, error) {
	rewritten := namespacedCallPattern.ReplaceAll(src, []byte("${1}"+nsSep+"${2}("))

	file, diags := hclsyntax.ParseConfig(rewritten, filename, hcl.InitialPos)
	if diags.HasErrors() {
		return nil, fmt.Errorf("hclsource: %s", diags.Error())
	}
	body, ok := file.Body.(*hclsyntax.Body)
	if !ok {
		return nil, fmt.Errorf("hclsource: unexpected body type %T", file.Body)
	}

	blocks := make([]*syntax.Block, 0, len(body.Blocks))
	for _, b := range body.Blocks {
		converted, err := convertBlock(filename, b)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, converted)
	}
	return blocks, nil
}

func convertBlock(filename string, b *hclsyntax.Block) (*syntax.Block, error) {
	out := &syntax.Block{
		Type:         b.Type,
		Labels:       append([]string(nil), b.Labels...),
		Attributes:   map[string]syntax.Expr{},
		FileLocation: filename,
		Span:         spanOf(b.Range()),
	}
	names := make([]string, 0, len(b.Body.Attributes))
	for name := range b.Body.Attributes {
		names = append(names, name)
	}
	sortByPosition(names, b.Body.Attributes)
	for _, name := range names {
		attr := b.Body.Attributes[name]
		expr, err := convertExpr(attr.Expr)
		if err != nil {
			return nil, fmt.Errorf("%s: attribute %q: %w", filename, name, err)
		}
		out.Attributes[name] = expr
		out.AttributeOrder = append(out.AttributeOrder, name)
	}

	for _, child := range b.Body.Blocks {
		converted, err := convertBlock(filename, child)
		if err != nil {
			return nil, err
		}
		out.Blocks = append(out.Blocks, converted)
	}
	return out, nil
}

func sortByPosition(names []string, attrs hclsyntax.Attributes) {
	sort.Slice(names, func(i, j int) bool {
		ra, rb := attrs[names[i]].Range(), attrs[names[j]].Range()
		if ra.Start.Line != rb.Start.Line {
			return ra.Start.Line < rb.Start.Line
		}
		return ra.Start.Column < rb.Start.Column
	})
}

func spanOf(r hcl.Range) syntax.Span {
	return syntax.Span{
		StartLine:   r.Start.Line,
		StartColumn: r.Start.Column,
		EndLine:     r.End.Line,
		EndColumn:   r.End.Column,
	}
}

func convertExpr(expr hclsyntax.Expression) (syntax.Expr, error) {
	switch e := expr.(type) {
	case *hclsyntax.LiteralValueExpr:
		return literalFromCty(e.Val)

	case *hclsyntax.TemplateExpr:
		if e.IsStringLiteral() {
			parts := e.Parts
			if len(parts) == 1 {
				return convertExpr(parts[0])
			}
			return syntax.LiteralExpr{Value: value.String("")}, nil
		}
		return nil, fmt.Errorf("interpolated templates are not part of the restricted expression grammar (%s)", rangeString(e.Range()))

	case *hclsyntax.ScopeTraversalExpr:
		return traversalToExpr(e.Traversal)

	case *hclsyntax.RelativeTraversalExpr:
		if _, isCall := e.Source.(*hclsyntax.FunctionCallExpr); isCall {
			return nil, fmt.Errorf("function-call results cannot be traversed in-line (%s)", rangeString(e.Range()))
		}
		base, err := convertExpr(e.Source)
		if err != nil {
			return nil, err
		}
		baseTraversal, ok := base.(syntax.TraversalExpr)
		if !ok {
			return nil, fmt.Errorf("unsupported relative traversal base (%s)", rangeString(e.Range()))
		}
		rest, err := traversalSteps(e.Traversal)
		if err != nil {
			return nil, err
		}
		baseTraversal.Subpath = append(baseTraversal.Subpath, rest...)
		return baseTraversal, nil

	case *hclsyntax.FunctionCallExpr:
		namespace, function, err := splitNamespacedName(e.Name)
		if err != nil {
			return nil, err
		}
		args := make([]syntax.Expr, 0, len(e.Args))
		for _, a := range e.Args {
			converted, err := convertExpr(a)
			if err != nil {
				return nil, err
			}
			args = append(args, converted)
		}
		return syntax.FunctionCallExpr{Namespace: namespace, Function: function, Args: args}, nil

	case *hclsyntax.TupleConsExpr:
		items := make([]syntax.Expr, 0, len(e.Exprs))
		for _, item := range e.Exprs {
			converted, err := convertExpr(item)
			if err != nil {
				return nil, err
			}
			items = append(items, converted)
		}
		return syntax.ArrayExpr{Items: items}, nil

	case *hclsyntax.ObjectConsExpr:
		keys := make([]string, 0, len(e.Items))
		fields := make(map[string]syntax.Expr, len(e.Items))
		for _, item := range e.Items {
			key, err := objectKeyLiteral(item.KeyExpr)
			if err != nil {
				return nil, err
			}
			val, err := convertExpr(item.ValueExpr)
			if err != nil {
				return nil, err
			}
			keys = append(keys, key)
			fields[key] = val
		}
		return syntax.ObjectExpr{Keys: keys, Fields: fields}, nil

	case *hclsyntax.BinaryOpExpr:
		op, err := binaryOp(e.Op)
		if err != nil {
			return nil, err
		}
		left, err := convertExpr(e.LHS)
		if err != nil {
			return nil, err
		}
		right, err := convertExpr(e.RHS)
		if err != nil {
			return nil, err
		}
		return syntax.BinaryExpr{Op: op, Left: left, Right: right}, nil

	case *hclsyntax.UnaryOpExpr:
		op, err := unaryOp(e.Op)
		if err != nil {
			return nil, err
		}
		operand, err := convertExpr(e.Val)
		if err != nil {
			return nil, err
		}
		return syntax.UnaryExpr{Op: op, Operand: operand}, nil

	default:
		return nil, fmt.Errorf("unsupported expression node %T (%s)", expr, rangeString(expr.Range()))
	}
}

func objectKeyLiteral(expr hclsyntax.Expression) (string, error) {
	if wrapped, ok := expr.(*hclsyntax.ObjectConsKeyExpr); ok {
		if wrapped.Wrapped != nil {
			return objectKeyLiteral(wrapped.Wrapped)
		}
	}
	if trav, ok := expr.(*hclsyntax.ScopeTraversalExpr); ok && len(trav.Traversal) == 1 {
		if root, ok := trav.Traversal[0].(hcl.TraverseRoot); ok {
			return root.Name, nil
		}
	}
	converted, err := convertExpr(expr)
	if err != nil {
		return "", err
	}
	lit, ok := converted.(syntax.LiteralExpr)
	if !ok {
		return "", fmt.Errorf("object keys must be literal strings (%s)", rangeString(expr.Range()))
	}
	s, ok := lit.Value.AsString()
	if !ok {
		return "", fmt.Errorf("object keys must be literal strings (%s)", rangeString(expr.Range()))
	}
	return s, nil
}

func traversalToExpr(t hcl.Traversal) (syntax.Expr, error) {
	if len(t) == 0 {
		return nil, fmt.Errorf("empty traversal")
	}
	root, ok := t[0].(hcl.TraverseRoot)
	if !ok {
		return nil, fmt.Errorf("traversal must begin with a root identifier")
	}
	steps, err := traversalSteps(t[1:])
	if err != nil {
		return nil, err
	}
	if len(steps) == 0 {
		return syntax.TraversalExpr{Root: root.Name}, nil
	}
	return syntax.TraversalExpr{Root: root.Name, Name: steps[0], Subpath: steps[1:]}, nil
}

func traversalSteps(t hcl.Traversal) ([]string, error) {
	steps := make([]string, 0, len(t))
	for _, step := range t {
		switch s := step.(type) {
		case hcl.TraverseRoot:
			steps = append(steps, s.Name)
		case hcl.TraverseAttr:
			steps = append(steps, s.Name)
		case hcl.TraverseIndex:
			if s.Key.Type() == cty.String {
				steps = append(steps, s.Key.AsString())
			} else if s.Key.Type() == cty.Number {
				bf := s.Key.AsBigFloat()
				steps = append(steps, bf.String())
			} else {
				return nil, fmt.Errorf("unsupported traversal index type %s", s.Key.Type().FriendlyName())
			}
		default:
			return nil, fmt.Errorf("unsupported traversal step %T", step)
		}
	}
	return steps, nil
}

func splitNamespacedName(name string) (namespace, function string, err error) {
	idx := strings.Index(name, nsSep)
	if idx < 0 {
		return "", "", fmt.Errorf("function %q must be namespaced as <namespace>::<function>", name)
	}
	return name[:idx], name[idx+len(nsSep):], nil
}

func binaryOp(op *hclsyntax.Operation) (syntax.BinaryOp, error) {
	switch op {
	case hclsyntax.OpAdd:
		return syntax.OpAdd, nil
	case hclsyntax.OpSubtract:
		return syntax.OpSub, nil
	case hclsyntax.OpMultiply:
		return syntax.OpMul, nil
	case hclsyntax.OpDivide:
		return syntax.OpDiv, nil
	case hclsyntax.OpModulo:
		return syntax.OpMod, nil
	case hclsyntax.OpEqual:
		return syntax.OpEqual, nil
	case hclsyntax.OpNotEqual:
		return syntax.OpNotEqual, nil
	case hclsyntax.OpLessThan:
		return syntax.OpLess, nil
	case hclsyntax.OpLessThanOrEqual:
		return syntax.OpLessEqual, nil
	case hclsyntax.OpGreaterThan:
		return syntax.OpGreater, nil
	case hclsyntax.OpGreaterThanOrEqual:
		return syntax.OpGreaterEqual, nil
	case hclsyntax.OpLogicalAnd:
		return syntax.OpAnd, nil
	case hclsyntax.OpLogicalOr:
		return syntax.OpOr, nil
	default:
		return 0, fmt.Errorf("unsupported binary operator")
	}
}

func unaryOp(op *hclsyntax.Operation) (syntax.UnaryOp, error) {
	switch op {
	case hclsyntax.OpNegate:
		return syntax.OpNegate, nil
	case hclsyntax.OpLogicalNot:
		return syntax.OpNot, nil
	default:
		return 0, fmt.Errorf("unsupported unary operator")
	}
}

func literalFromCty(v cty.Value) (syntax.Expr, error) {
	if v.IsNull() {
		return syntax.LiteralExpr{Value: value.Null()}, nil
	}
	switch v.Type() {
	case cty.String:
		return syntax.LiteralExpr{Value: value.String(v.AsString())}, nil
	case cty.Bool:
		return syntax.LiteralExpr{Value: value.Bool(v.True())}, nil
	case cty.Number:
		bf := v.AsBigFloat()
		if bf.IsInt() {
			i, _ := bf.Int(nil)
			return syntax.LiteralExpr{Value: value.BigInt(i)}, nil
		}
		f, _ := bf.Float64()
		return syntax.LiteralExpr{Value: value.Float(f)}, nil
	default:
		return nil, fmt.Errorf("unsupported literal type %s", v.Type().FriendlyName())
	}
}

func rangeString(r hcl.Range) string {
	return fmt.Sprintf("%s:%d:%d", r.Filename, r.Start.Line, r.Start.Column)
}
