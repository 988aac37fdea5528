package syntax

// Span locates a block or attribute within its source file.
type Span struct {
	StartLine, StartColumn int
	EndLine, EndColumn     int
}

// Block is the syntax tree node a SourceParser (§6, the out-of-scope HCL
// Parser collaborator) hands to the Workspace Context. Top-level block
// types recognized by the core: variable, output, module, action, signer,
// addon, import, runtime, flow, runbook. action/signer blocks carry a
// second label of the form "<namespace>::<matcher>".
type Block struct {
	Type           string
	Labels         []string
	Attributes     map[string]Expr
	AttributeOrder []string
	Blocks         []*Block // repeated same-identifier child blocks (map evaluation, §4.3)
	FileLocation   string
	Span           Span
}

// Attribute looks up a single attribute by name.
func (b *Block) Attribute(name string) (Expr, bool) {
	if b == nil {
		return nil, false
	}
	expr, ok := b.Attributes[name]
	return expr, ok
}

// ChildBlocksOfType returns every direct child block matching the given
// identifier, in source-declaration order. Used by the map-evaluation rule
// (§4.3): "an input declared as map<...> is populated from repeated blocks
// of the same identifier in the surrounding construct."
func (b *Block) ChildBlocksOfType(ident string) []*Block {
	if b == nil {
		return nil
	}
	var out []*Block
	for _, child := range b.Blocks {
		if child.Type == ident {
			out = append(out, child)
		}
	}
	return out
}

// Name returns the construct's local name: the first label for
// action/signer blocks, or Labels[0] for single-labeled blocks like
// variable/output/module/import.
func (b *Block) Name() string {
	if b == nil || len(b.Labels) == 0 {
		return ""
	}
	return b.Labels[0]
}

// Matcher returns the second label ("<namespace>::<matcher>") carried by
// action and signer blocks, or "" if absent.
func (b *Block) Matcher() string {
	if b == nil || len(b.Labels) < 2 {
		return ""
	}
	return b.Labels[1]
}
