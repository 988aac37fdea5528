package capability

import (
	"fmt"
	"sync"

	"github.com/txtx-labs/runbook-core/internal/diagnostic"
	"github.com/txtx-labs/runbook-core/internal/graph"
	"github.com/txtx-labs/runbook-core/internal/value"
)

// Function is a single <namespace>::<function> implementation an addon
// exposes to the restricted expression grammar (§4.1, §4.3).
type Function struct {
	Name string
	Call func(args []value.Value) (value.Value, *diagnostic.Diagnostic)
}

// GraphAugmenter is an optional hook an Addon may implement to inject extra
// dependency edges the workspace/evaluation layers cannot infer on their own
// (e.g. an implicit ordering between two actions sharing an external
// resource, such as two deployments to the same EVM nonce).
type GraphAugmenter interface {
	AugmentGraph(g *graph.Graph) error
}

// Addon is what a domain-specific extension registers at runtime: its
// namespace, the action/signer descriptors it contributes, and the
// functions it makes callable from the restricted expression grammar.
type Addon interface {
	Namespace() string
	Actions() []Descriptor
	Signers() []Descriptor
	Functions() []Function
}

// Registry collects every registered Addon's descriptors and functions, and
// implements eval.FunctionCaller by dispatching <namespace>::<function>
// calls to the addon that registered that namespace.
type Registry struct {
	mu      sync.RWMutex
	addons  map[string]Addon
	actions map[string]Descriptor // key: "<namespace>::<matcher>"
	signers map[string]Descriptor
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		addons:  map[string]Addon{},
		actions: map[string]Descriptor{},
		signers: map[string]Descriptor{},
	}
}

// Register installs an addon's descriptors and functions under its
// namespace, and runs its optional graph augmentation hook against g.
// Registering the same namespace twice is an error.
func (r *Registry) Register(addon Addon, g *graph.Graph) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ns := addon.Namespace()
	if _, exists := r.addons[ns]; exists {
		return fmt.Errorf("capability: addon namespace %q already registered", ns)
	}
	r.addons[ns] = addon

	for _, d := range addon.Actions() {
		r.actions[d.Matcher] = d
	}
	for _, d := range addon.Signers() {
		r.signers[d.Matcher] = d
	}

	if augmenter, ok := addon.(GraphAugmenter); ok && g != nil {
		if err := augmenter.AugmentGraph(g); err != nil {
			return fmt.Errorf("capability: addon %q graph augmentation: %w", ns, err)
		}
	}
	return nil
}

// Action looks up an action descriptor by its "<namespace>::<matcher>" key.
func (r *Registry) Action(matcher string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.actions[matcher]
	return d, ok
}

// Signer looks up a signer descriptor by its "<namespace>::<matcher>" key.
func (r *Registry) Signer(matcher string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.signers[matcher]
	return d, ok
}

// CallFunction implements eval.FunctionCaller, dispatching to the addon
// registered under namespace.
func (r *Registry) CallFunction(namespace, function string, args []value.Value) (value.Value, *diagnostic.Diagnostic) {
	r.mu.RLock()
	addon, ok := r.addons[namespace]
	r.mu.RUnlock()
	if !ok {
		return value.Value{}, diagnostic.New("no addon registered for namespace %q", namespace)
	}
	for _, fn := range addon.Functions() {
		if fn.Name == function {
			return fn.Call(args)
		}
	}
	return value.Value{}, diagnostic.New("addon %q has no function %q", namespace, function)
}
