package execctx

import (
	"sync"

	"github.com/txtx-labs/runbook-core/internal/identifier"
	"github.com/txtx-labs/runbook-core/internal/value"
	"github.com/txtx-labs/runbook-core/internal/xerrors"
)

// SignerStore holds the mutable per-signer state (keys, nonces, whatever an
// addon's signer implementation needs to carry between calls) under a strict
// pop/push check-out discipline: a signer's state is popped out to the one
// dependent currently using it and must be pushed back before anyone else
// may pop it, so at most one operation touches a given signer's state at a
// time (§3, §4.4 "signer threading").
type SignerStore struct {
	mu         sync.Mutex
	states     map[identifier.ID]value.Value
	checkedOut map[identifier.ID]bool
}

// NewSignerStore returns an empty SignerStore.
func NewSignerStore() *SignerStore {
	return &SignerStore{
		states:     map[identifier.ID]value.Value{},
		checkedOut: map[identifier.ID]bool{},
	}
}

// Register installs the initial state for a signer construct, overwriting
// nothing if it is already registered (registering the same signer twice
// across two flows sharing a runbook is not an error).
func (s *SignerStore) Register(id identifier.ID, initial value.Value) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.states[id]; ok {
		return
	}
	s.states[id] = initial
}

// Pop checks a signer's state out. It is an error to pop a signer that is
// already checked out, or one that was never registered.
func (s *SignerStore) Pop(id identifier.ID) (value.Value, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.states[id]
	if !ok {
		return value.Value{}, xerrors.NewStateError("pop of unregistered signer "+id.String(), nil)
	}
	if s.checkedOut[id] {
		return value.Value{}, xerrors.NewStateError("signer "+id.String()+" is already checked out", nil)
	}
	s.checkedOut[id] = true
	return state, nil
}

// Push returns a signer's state, recording any mutation the caller made
// while it was checked out. It is an error to push a signer that was not
// checked out.
func (s *SignerStore) Push(id identifier.ID, state value.Value) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.checkedOut[id] {
		return xerrors.NewStateError("push of signer "+id.String()+" that was never checked out", nil)
	}
	s.states[id] = state
	s.checkedOut[id] = false
	return nil
}

// IsCheckedOut reports whether a signer's state is currently popped out,
// letting the scheduler serialize a signer's dependents without racing the
// store itself.
func (s *SignerStore) IsCheckedOut(id identifier.ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checkedOut[id]
}

// Peek returns a signer's current state without checking it out, for
// read-only uses such as rendering an action item preview.
func (s *SignerStore) Peek(id identifier.ID) (value.Value, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.states[id]
	return v, ok
}

// Merge folds an interactive response (e.g. a provided public key) into a
// signer's state outside the Pop/Push checkout flow, for use while the
// scheduler is still in check_signability gathering ActionItemResponses and
// has not yet checked the signer out for sign/activate. It is an error to
// call this while the signer is checked out.
func (s *SignerStore) Merge(id identifier.ID, field string, v value.Value) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.checkedOut[id] {
		return xerrors.NewStateError("merge into signer "+id.String()+" while checked out", nil)
	}
	state, ok := s.states[id]
	if !ok {
		state = value.EmptyObject()
	}
	s.states[id] = state.WithField(field, v)
	return nil
}
