// Package execctx implements the L4 Execution Context & Command Lifecycle
// of spec.md §4.4: per-construct state, the input evaluation cache, the
// execution result cache, the signer state store with pop/push check-out
// discipline, and the sensitive-input result fingerprint used to skip
// replayed work on a loaded prior run.
package execctx

import (
	"github.com/txtx-labs/runbook-core/internal/identifier"
	"github.com/txtx-labs/runbook-core/internal/value"
)

// State is one of the construct lifecycle states of §4.4. The zero value is
// StatePending.
type State int

const (
	StatePending State = iota
	StateInputsEvaluated
	StateAwaitingInteraction
	StateExecuting
	StateBackgroundTaskRunning
	StateComplete
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateInputsEvaluated:
		return "inputs_evaluated"
	case StateAwaitingInteraction:
		return "awaiting_interaction"
	case StateExecuting:
		return "executing"
	case StateBackgroundTaskRunning:
		return "background_task_running"
	case StateComplete:
		return "complete"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ConstructRecord is the execution-side record of a single construct: its
// current lifecycle state, its evaluated inputs (once available), its
// published result (once available), and the fingerprint computed the last
// time it produced a successful result.
type ConstructRecord struct {
	ID              identifier.ID
	State           State
	EvaluatedInputs value.Value // object, empty until StateInputsEvaluated
	Result          value.Value
	HasResult       bool
	Fingerprint     []byte
	LastDiagnostic  error
}
