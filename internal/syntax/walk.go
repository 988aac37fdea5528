package syntax

// CollectTraversals returns every TraversalExpr reachable within expr,
// depth-first, in a stable left-to-right order. Function-call results
// cannot be traversed in-line (§4.1), so a traversal nested inside a
// function call's arguments is still collected (the function's inputs are
// themselves dependencies) but the call's own result is not re-traversable.
func CollectTraversals(expr Expr) []TraversalExpr {
	var out []TraversalExpr
	collect(expr, &out)
	return out
}

func collect(expr Expr, out *[]TraversalExpr) {
	switch e := expr.(type) {
	case nil:
		return
	case LiteralExpr:
		return
	case TraversalExpr:
		*out = append(*out, e)
	case ArrayExpr:
		for _, item := range e.Items {
			collect(item, out)
		}
	case ObjectExpr:
		for _, key := range e.Keys {
			collect(e.Fields[key], out)
		}
	case FunctionCallExpr:
		for _, arg := range e.Args {
			collect(arg, out)
		}
	case BinaryExpr:
		collect(e.Left, out)
		collect(e.Right, out)
	case UnaryExpr:
		collect(e.Operand, out)
	}
}
