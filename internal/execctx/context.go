package execctx

import (
	"crypto/sha256"
	"sync"

	"github.com/txtx-labs/runbook-core/internal/diagnostic"
	"github.com/txtx-labs/runbook-core/internal/eval"
	"github.com/txtx-labs/runbook-core/internal/identifier"
	"github.com/txtx-labs/runbook-core/internal/syntax"
	"github.com/txtx-labs/runbook-core/internal/value"
)

// PriorResults is the narrow read-only view the execution context needs of
// a loaded prior run (backed by internal/snapshot), kept as an interface so
// execctx never depends forward on the snapshot codec.
type PriorResults interface {
	CachedResult(id identifier.ID) (result value.Value, fingerprint []byte, ok bool)
}

// Context is the L4 Execution Context: one ConstructRecord per construct,
// the signer store, and (optionally) a prior run's cached results used for
// the replay-skip optimization.
type Context struct {
	mu      sync.RWMutex
	records map[identifier.ID]*ConstructRecord

	Signers *SignerStore
	Prior   PriorResults
}

// New returns an empty execution Context.
func New() *Context {
	return &Context{
		records: map[identifier.ID]*ConstructRecord{},
		Signers: NewSignerStore(),
	}
}

func (c *Context) record(id identifier.ID) *ConstructRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.records[id]
	if !ok {
		r = &ConstructRecord{ID: id, State: StatePending}
		c.records[id] = r
	}
	return r
}

// State reports a construct's current lifecycle state.
func (c *Context) State(id identifier.ID) State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.records[id]
	if !ok {
		return StatePending
	}
	return r.State
}

// SetInputsEvaluated records a construct's evaluated input object and
// advances its state.
func (c *Context) SetInputsEvaluated(id identifier.ID, inputs value.Value) {
	r := c.record(id)
	c.mu.Lock()
	defer c.mu.Unlock()
	r.EvaluatedInputs = inputs
	r.State = StateInputsEvaluated
}

// SetAwaitingInteraction advances a construct to the parked state while the
// scheduler waits on an ActionItemResponse.
func (c *Context) SetAwaitingInteraction(id identifier.ID) {
	r := c.record(id)
	c.mu.Lock()
	defer c.mu.Unlock()
	r.State = StateAwaitingInteraction
}

// SetExecuting advances a construct into its run_execution/sign/activate phase.
func (c *Context) SetExecuting(id identifier.ID) {
	r := c.record(id)
	c.mu.Lock()
	defer c.mu.Unlock()
	r.State = StateExecuting
}

// SetBackgroundTaskRunning advances a construct into its post-execution
// background phase.
func (c *Context) SetBackgroundTaskRunning(id identifier.ID) {
	r := c.record(id)
	c.mu.Lock()
	defer c.mu.Unlock()
	r.State = StateBackgroundTaskRunning
}

// SetResult publishes a construct's final output and marks it complete.
func (c *Context) SetResult(id identifier.ID, result value.Value, fingerprint []byte) {
	r := c.record(id)
	c.mu.Lock()
	defer c.mu.Unlock()
	r.Result = result
	r.HasResult = true
	r.Fingerprint = fingerprint
	r.State = StateComplete
}

// SetFailed marks a construct failed, recording the causing error.
func (c *Context) SetFailed(id identifier.ID, err error) {
	r := c.record(id)
	c.mu.Lock()
	defer c.mu.Unlock()
	r.LastDiagnostic = err
	r.State = StateFailed
}

// Result implements eval.ResultCache: only published (StateComplete) results
// are visible to downstream evaluation.
func (c *Context) Result(id identifier.ID) (value.Value, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.records[id]
	if !ok || !r.HasResult {
		return value.Value{}, false
	}
	return r.Result, true
}

var _ eval.ResultCache = (*Context)(nil)

// Fingerprint computes the §4.4 result fingerprint: SHA-256 over the
// canonical encoding of the evaluated inputs named sensitive, in the order
// given (so addon input declaration order drives the digest rather than Go
// map iteration order).
func Fingerprint(inputs value.Value, sensitiveFields []string) []byte {
	h := sha256.New()
	for _, name := range sensitiveFields {
		field, ok := inputs.ObjectField(name)
		if !ok {
			continue
		}
		h.Write([]byte(name))
		h.Write(value.CanonicalBytes(field))
	}
	return h.Sum(nil)
}

// ShouldSkip reports whether a construct's just-evaluated inputs fingerprint
// matches a prior run's cached successful result for the same construct; if
// so, that cached result should be republished unchanged instead of
// re-running the construct's phases (§4.4's replay-skip optimization, S6).
func (c *Context) ShouldSkip(id identifier.ID, fingerprint []byte) (value.Value, bool) {
	if c.Prior == nil || len(fingerprint) == 0 {
		return value.Value{}, false
	}
	cached, priorFingerprint, ok := c.Prior.CachedResult(id)
	if !ok || len(priorFingerprint) != len(fingerprint) {
		return value.Value{}, false
	}
	for i := range fingerprint {
		if fingerprint[i] != priorFingerprint[i] {
			return value.Value{}, false
		}
	}
	return cached, true
}

// EvaluateCondition evaluates a pre_condition/post_condition predicate
// expression against env, returning the boolean result. A condition that
// evaluates to anything but a bool, or that fails/blocks, is reported as a
// diagnostic rather than silently treated as true or false.
func EvaluateCondition(expr syntax.Expr, env *eval.Env) (bool, *diagnostic.Diagnostic) {
	if expr == nil {
		return true, nil
	}
	out := eval.Evaluate(expr, env)
	switch out.Kind {
	case eval.OutcomeSuccess:
		b, ok := out.Value.AsBool()
		if !ok {
			return false, diagnostic.New("condition expression must evaluate to a bool, got %s", out.Value.Kind())
		}
		return b, nil
	case eval.OutcomeFailed:
		return false, out.Diagnostic
	default:
		return false, diagnostic.New("condition expression cannot depend on a not-yet-evaluated construct")
	}
}
