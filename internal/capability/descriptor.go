// Package capability implements the L5 Command & Signer Abstraction of
// spec.md §4.5: the addon-facing Descriptor shape, the four lifecycle phase
// contracts of §4.4, composite commands, and the Addon registration surface.
package capability

import (
	"context"

	"github.com/txtx-labs/runbook-core/internal/diagnostic"
	"github.com/txtx-labs/runbook-core/internal/identifier"
	"github.com/txtx-labs/runbook-core/internal/value"
)

// InputDef describes one named input a Descriptor accepts (§4.5): its
// declared type, whether it may be omitted, whether it taints downstream
// evaluation until resolved, whether it is hidden from the supervisor UI,
// and whether it must be excluded from logs/snapshots and folded into the
// §4.4 result fingerprint instead.
type InputDef struct {
	Name          string
	Type          value.Type
	Optional      bool
	Tainting      bool
	Internal      bool
	Sensitive     bool
	Documentation string

	// Rules is a go-playground/validator/v10 struct-tag-compatible
	// constraint string (e.g. "required,gte=0", "oneof=legacy eip1559"),
	// checked by CheckInputs against the evaluated inputs during the
	// instantiability check, before executability and execution.
	Rules string
}

// OutputDef describes one named field a Descriptor's result object exposes
// to downstream traversal references.
type OutputDef struct {
	Name          string
	Type          value.Type
	Documentation string
}

// ActionRequest is the capability layer's addon-agnostic description of a
// piece of human/wallet interaction a phase needs before it can proceed. It
// deliberately does not reference the L7 bus types (ActionItemRequest,
// Block, ...), since L5 must not depend forward on L7; the scheduler/bus
// translate an ActionRequest into the supervisor-facing shape.
type ActionRequest struct {
	Title       string
	Description string
	Kind        string // e.g. "provide_public_key", "review_input", "provide_signed_transaction"
	Payload     value.Value
}

// PhaseContext bundles what every phase function needs: the construct's own
// identity, its evaluated inputs (the same object for every phase), and any addon defaults inherited from its package's addon block.
type PhaseContext struct {
	ConstructID   identifier.ID
	Inputs        value.Value // object of evaluated, not-yet-coerced input values
	AddonDefaults map[string]value.Value
}

// ExecutabilityResult is the outcome of check_executability/check_signability:
// either the construct is ready to run, or it still needs one or more
// ActionRequests satisfied first.
type ExecutabilityResult struct {
	Ready    bool
	Requests []ActionRequest
}

// RunResult is the outcome of run_execution/sign/activate: the construct's
// result object (conforming to the Descriptor's Outputs), or a diagnostic.
type RunResult struct {
	Result     value.Value
	Diagnostic *diagnostic.Diagnostic
}

// BackgroundTaskResult is the outcome of build_background_task: work that
// continues after the interactive phase (confirmation polling, contract
// verification) and may refine the published result.
type BackgroundTaskResult struct {
	Result     value.Value
	Diagnostic *diagnostic.Diagnostic
}

// Descriptor is a single addon-registered command or signer implementation,
// resolved at indexing time by "<namespace>::<matcher>" (§4.5).
type Descriptor struct {
	Name          string
	Matcher       string // "<namespace>::<matcher>", e.g. "evm::deploy_contract"
	Documentation string
	Inputs        []InputDef
	Outputs       []OutputDef

	// Parts, when non-empty, makes this a composite command: an ordered list
	// of atomic descriptors the scheduler runs as if they were inlined
	// constructs sharing the parent construct's id scope (§4.5).
	Parts []Descriptor

	CheckInstantiability func(PhaseContext) *diagnostic.Diagnostic
	CheckExecutability   func(context.Context, PhaseContext) (ExecutabilityResult, *diagnostic.Diagnostic)
	RunExecution         func(context.Context, PhaseContext) RunResult
	BuildBackgroundTask  func(context.Context, PhaseContext) BackgroundTaskResult
}

// IsComposite reports whether this descriptor declares ordered parts rather
// than its own phase functions.
func (d Descriptor) IsComposite() bool {
	return len(d.Parts) > 0
}

// InputByName looks up a single declared input definition.
func (d Descriptor) InputByName(name string) (InputDef, bool) {
	for _, in := range d.Inputs {
		if in.Name == name {
			return in, true
		}
	}
	return InputDef{}, false
}

// SensitiveInputNames returns the names of every input marked sensitive, in
// declaration order — exactly the field set execctx.Fingerprint folds into
// the §4.4 result fingerprint.
func (d Descriptor) SensitiveInputNames() []string {
	var names []string
	for _, in := range d.Inputs {
		if in.Sensitive {
			names = append(names, in.Name)
		}
	}
	return names
}
