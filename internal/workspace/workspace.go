// Package workspace implements the L1 Workspace Context of spec.md §4.1: it
// turns parsed source files into indexed packages and constructs, and
// resolves the restricted expression grammar's dotted traversals into
// concrete construct references.
package workspace

import (
	"fmt"
	"strings"

	"github.com/txtx-labs/runbook-core/internal/diagnostic"
	"github.com/txtx-labs/runbook-core/internal/identifier"
	"github.com/txtx-labs/runbook-core/internal/syntax"
	"github.com/txtx-labs/runbook-core/internal/value"
)

// SourceParser is the boundary to the out-of-scope HCL Parser collaborator
// (§6). internal/hclsource is the module's own default implementation.
type SourceParser interface {
	Parse(filename string, src []byte) ([]*syntax.Block, error)
}

// Source is one file handed to the workspace indexer.
type Source struct {
	Location    string
	PackageName string
	Content     []byte
}

// AddonDefaults is a per-(package, namespace) bundle of addon-supplied
// default attribute values, e.g. an rpc_api_url a whole package of evm
// actions inherits unless overridden locally.
type AddonDefaults struct {
	Namespace string
	Values    map[string]value.Value
}

// Package groups the constructs declared together in one source file or
// directory, with a name lookup table per construct kind so traversal
// resolution never has to scan.
type Package struct {
	ID identifier.PackageID

	variables map[string]identifier.ID
	outputs   map[string]identifier.ID
	modules   map[string]identifier.ID
	actions   map[string]identifier.ID
	signers   map[string]identifier.ID
	imports   map[string]identifier.ID // alias -> import construct id
	addons    map[string]identifier.ID
	embedded  map[string]identifier.ID
}

func newPackage(id identifier.PackageID) *Package {
	return &Package{
		ID:        id,
		variables: map[string]identifier.ID{},
		outputs:   map[string]identifier.ID{},
		modules:   map[string]identifier.ID{},
		actions:   map[string]identifier.ID{},
		signers:   map[string]identifier.ID{},
		imports:   map[string]identifier.ID{},
		addons:    map[string]identifier.ID{},
		embedded:  map[string]identifier.ID{},
	}
}

func (p *Package) tableFor(kind identifier.ConstructKind) map[string]identifier.ID {
	switch kind {
	case identifier.KindVariable:
		return p.variables
	case identifier.KindOutput:
		return p.outputs
	case identifier.KindModule:
		return p.modules
	case identifier.KindAction:
		return p.actions
	case identifier.KindSigner:
		return p.signers
	case identifier.KindImport:
		return p.imports
	case identifier.KindAddonConfig:
		return p.addons
	case identifier.KindEmbeddedRunbook:
		return p.embedded
	default:
		return nil
	}
}

// Construct is a fully indexed top-level declaration: its identity plus the
// syntax block the evaluation engine will later walk.
type Construct struct {
	ID    identifier.ConstructID
	Block *syntax.Block
}

// Workspace is the L1 Workspace Context: every package, construct, import
// alias, addon-defaults bundle, and environment/top-level input in a single
// runbook.
type Workspace struct {
	RunbookID identifier.RunbookID

	packages   map[identifier.ID]*Package
	constructs map[identifier.ID]*Construct

	envLookup map[string]identifier.ID
	envValues map[identifier.ID]value.Value

	addonDefaults map[string]AddonDefaults // key: packageID.String()+"/"+namespace

	stdDefaults AddonDefaults
}

// New creates an empty Workspace for the given runbook.
func New(runbookID identifier.RunbookID) *Workspace {
	return &Workspace{
		RunbookID:     runbookID,
		packages:      map[identifier.ID]*Package{},
		constructs:    map[identifier.ID]*Construct{},
		envLookup:     map[string]identifier.ID{},
		envValues:     map[identifier.ID]value.Value{},
		addonDefaults: map[string]AddonDefaults{},
		stdDefaults:   AddonDefaults{Namespace: "std", Values: map[string]value.Value{}},
	}
}

// IndexEnvironmentVariable registers a flow-level input/env value as a
// synthetic construct under the "input" root (§4.1 Environment layer).
func (w *Workspace) IndexEnvironmentVariable(name string, v value.Value) identifier.ID {
	id := identifier.ID(digestInput(w.RunbookID, name))
	w.envValues[id] = v
	w.envLookup[name] = id
	return id
}

// GraphIndexer is implemented by the L2 Graph Context so the workspace
// indexer can register every construct as a node without importing the
// graph package (which depends forward on workspace for edge resolution).
type GraphIndexer interface {
	IndexConstruct(id identifier.ID)
}

// IndexPackage registers a package, returning the existing one if it was
// already indexed (re-visiting an import target is not an error).
func (w *Workspace) IndexPackage(pkgID identifier.PackageID) *Package {
	if existing, ok := w.packages[pkgID.ID]; ok {
		return existing
	}
	pkg := newPackage(pkgID)
	w.packages[pkgID.ID] = pkg
	return pkg
}

// IndexConstruct registers a single construct within pkg, recording it in
// the per-kind lookup table and the graph's node set.
func (w *Workspace) IndexConstruct(pkg *Package, kind identifier.ConstructKind, fileLocation, name string, block *syntax.Block, graph GraphIndexer) identifier.ConstructID {
	cid := identifier.NewConstructID(pkg.ID, kind, fileLocation, name)
	w.constructs[cid.ID] = &Construct{ID: cid, Block: block}
	if table := pkg.tableFor(kind); table != nil {
		table[name] = cid.ID
	}
	if graph != nil {
		graph.IndexConstruct(cid.ID)
	}
	return cid
}

// SetAddonDefaults installs a default-value bundle for (package, namespace).
func (w *Workspace) SetAddonDefaults(pkg *Package, namespace string, values map[string]value.Value) {
	w.addonDefaults[pkg.ID.ID.String()+"/"+namespace] = AddonDefaults{Namespace: namespace, Values: values}
}

// AddonDefaultsFor returns the installed defaults for (package, namespace),
// falling back to the empty "std" bundle the way the reference
// implementation does.
func (w *Workspace) AddonDefaultsFor(pkg *Package, namespace string) AddonDefaults {
	if d, ok := w.addonDefaults[pkg.ID.ID.String()+"/"+namespace]; ok {
		return d
	}
	return w.stdDefaults
}

// Construct looks up a fully indexed construct by id.
func (w *Workspace) Construct(id identifier.ID) (*Construct, bool) {
	c, ok := w.constructs[id]
	return c, ok
}

// BuildFromSources indexes every top-level block across every given source.
// Import blocks are indexed as constructs, but the sources they name are not
// loaded: only the sources passed in are parsed. Diagnostics are collected rather than returned on first failure, since one
// bad construct must not mask a second one (§7).
func (w *Workspace) BuildFromSources(parser SourceParser, sources []Source, graph GraphIndexer) *diagnostic.Bag {
	bag := &diagnostic.Bag{}
	visited := map[string]bool{}
	queue := append([]Source(nil), sources...)

	for len(queue) > 0 {
		src := queue[0]
		queue = queue[1:]
		if visited[src.Location] {
			continue
		}
		visited[src.Location] = true

		blocks, err := parser.Parse(src.Location, src.Content)
		if err != nil {
			bag.Add(diagnostic.New("parsing error: %s", err.Error()).WithLocation(src.Location))
			continue
		}

		pkgID := identifier.NewPackageID(w.RunbookID, parentLocation(src.Location), src.PackageName)
		pkg := w.IndexPackage(pkgID)

		for _, block := range blocks {
			w.indexBlock(pkg, src.Location, block, graph, bag)
		}
	}
	return bag
}

func (w *Workspace) indexBlock(pkg *Package, location string, block *syntax.Block, graph GraphIndexer, bag *diagnostic.Bag) {
	switch block.Type {
	case "import", "var", "variable", "output", "module", "addon", "runbook", "flow":
		name := block.Name()
		if name == "" {
			bag.Add(diagnostic.New("%s: %s block missing its name label", location, block.Type).WithLocation(location))
			return
		}
		kind := kindForBlockType(block.Type)
		w.IndexConstruct(pkg, kind, location, name, block, graph)

	case "action", "signer":
		name := block.Name()
		matcher := block.Matcher()
		if name == "" || matcher == "" {
			bag.Add(diagnostic.New("%s blocks require two labels: name and \"<namespace>::<matcher>\"", block.Type).WithLocation(location))
			return
		}
		if !strings.Contains(matcher, "::") {
			bag.Add(diagnostic.New("%s matcher %q must be namespaced as <namespace>::<matcher>", block.Type, matcher).WithLocation(location))
			return
		}
		kind := identifier.KindAction
		if block.Type == "signer" {
			kind = identifier.KindSigner
		}
		w.IndexConstruct(pkg, kind, location, name, block, graph)

	default:
		bag.Add(diagnostic.Warningf("unrecognized top-level block type %q", block.Type).WithLocation(location))
	}
}

func kindForBlockType(blockType string) identifier.ConstructKind {
	switch blockType {
	case "import":
		return identifier.KindImport
	case "var", "variable":
		return identifier.KindVariable
	case "output":
		return identifier.KindOutput
	case "module":
		return identifier.KindModule
	case "addon":
		return identifier.KindAddonConfig
	case "runbook", "flow":
		return identifier.KindEmbeddedRunbook
	default:
		return ""
	}
}

// ResolvedReference is the outcome of resolving a TraversalExpr against the
// workspace: the target construct, any remaining attribute-path components
// to project out of its evaluated value, and any index-path components
// (array/object subscripts, possibly non-literal in the general grammar but
// always literal here since §4.3 requires literal index operands).
type ResolvedReference struct {
	ConstructID identifier.ID
	Subpath     []string
}

// ResolveReference implements §4.1's try_resolve_construct_reference_in_expression:
// walks <root>.<name>[.<subpath>...], following import aliases across
// package boundaries, and returns the target construct id plus whatever
// path remains to project out of its evaluated value.
func (w *Workspace) ResolveReference(sourcePkg *Package, t syntax.TraversalExpr) (*ResolvedReference, error) {
	if t.Root == "env" {
		if id, ok := w.envLookup[t.Name]; ok {
			return &ResolvedReference{ConstructID: id, Subpath: t.Subpath}, nil
		}
		return nil, fmt.Errorf("unknown env reference %q", t.Name)
	}

	pkg := sourcePkg
	root := t.Root
	name := t.Name
	subpath := t.Subpath

	for {
		var table map[string]identifier.ID
		switch root {
		case "module":
			table = pkg.modules
		case "output":
			table = pkg.outputs
		case "var":
			table = pkg.variables
		case "action":
			table = pkg.actions
		case "signer":
			table = pkg.signers
		case "input":
			if id, ok := w.envLookup[name]; ok {
				return &ResolvedReference{ConstructID: id, Subpath: subpath}, nil
			}
			return nil, fmt.Errorf("unknown top-level input %q", name)
		default:
			table = nil
		}

		if table != nil {
			if id, ok := table[name]; ok {
				return &ResolvedReference{ConstructID: id, Subpath: subpath}, nil
			}
			return nil, fmt.Errorf("unresolved reference %s.%s in package %s", root, name, pkg.ID.PackageName)
		}

		// root wasn't a recognized keyword; treat it as an import alias and
		// shift the traversal one step in (root becomes name, name becomes
		// the new first subpath element).
		importID, ok := pkg.imports[root]
		if !ok {
			return nil, fmt.Errorf("unresolved reference root %q", root)
		}
		nextPkg, ok := w.packageOfImport(importID)
		if !ok {
			return nil, fmt.Errorf("import alias %q does not resolve to a package", root)
		}
		pkg = nextPkg
		root = name
		if len(subpath) == 0 {
			return nil, fmt.Errorf("incomplete reference through import alias %q", t.Root)
		}
		name = subpath[0]
		subpath = subpath[1:]
	}
}

// packageOfImport finds the package an import construct refers to: the
// indexed package whose PackageName equals the import's own name (its
// alias). Sources for that package must have been passed to
// BuildFromSources under that package name.
func (w *Workspace) packageOfImport(importID identifier.ID) (*Package, bool) {
	c, ok := w.constructs[importID]
	if !ok {
		return nil, false
	}
	for _, pkg := range w.packages {
		if pkg.ID.PackageName == c.ID.Name {
			return pkg, true
		}
	}
	return nil, false
}

func parentLocation(location string) string {
	idx := strings.LastIndexByte(location, '/')
	if idx < 0 {
		return "."
	}
	return location[:idx]
}

func digestInput(runbookID identifier.RunbookID, name string) [32]byte {
	full := identifier.NewConstructID(
		identifier.NewPackageID(runbookID, "<env>", "<env>"),
		identifier.KindInput,
		"<env>",
		name,
	)
	return full.ID
}
