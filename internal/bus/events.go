// Package bus implements the L7 Event Bus & Action Items of spec.md §4.7:
// the closed BlockEvent enum, ActionItemRequest/Response with their payload
// variants, Block/group/sub-group aggregation, and the coalesced
// UpdateActionItems broadcast. It depends only on the leaf id/value/
// diagnostic packages so every other layer can report through it without
// creating an import cycle.
package bus

import (
	"github.com/google/uuid"

	"github.com/txtx-labs/runbook-core/internal/diagnostic"
	"github.com/txtx-labs/runbook-core/internal/identifier"
	"github.com/txtx-labs/runbook-core/internal/value"
)

// ActionItemStatus is a closed tagged status for a single action item.
type ActionItemStatus struct {
	Kind    string // "todo", "success", "warning", "error", "blocked"
	Message string
	Error   *diagnostic.Diagnostic
}

func StatusTodo() ActionItemStatus                 { return ActionItemStatus{Kind: "todo"} }
func StatusBlocked() ActionItemStatus              { return ActionItemStatus{Kind: "blocked"} }
func StatusSuccess(message string) ActionItemStatus {
	return ActionItemStatus{Kind: "success", Message: message}
}
func StatusWarning(message string) ActionItemStatus {
	return ActionItemStatus{Kind: "warning", Message: message}
}
func StatusError(diag *diagnostic.Diagnostic) ActionItemStatus {
	return ActionItemStatus{Kind: "error", Error: diag}
}

// ActionItemPayload is the closed set of interaction kinds a request may
// carry (§4.7).
type ActionItemPayload struct {
	Kind string // "provide_public_key", "review_input", "provide_signed_transaction", "verify_third_party_signature", "validate_block", "display_output"
	Data value.Value
}

// ActionItemID uniquely identifies a single request/response pair. It is a
// google/uuid V4, deliberately distinct from the content-addressed
// identifier.ID used internally, since it only needs to be unique for the
// lifetime of one supervised run rather than reproducible across runs.
type ActionItemID uuid.UUID

func NewActionItemID() ActionItemID { return ActionItemID(uuid.New()) }
func (id ActionItemID) String() string { return uuid.UUID(id).String() }

// ActionItemRequest is one piece of interaction the supervisor must resolve
// before a parked construct can proceed.
type ActionItemRequest struct {
	ID          ActionItemID
	ConstructID *identifier.ID // nil if not tied to a single construct
	Title       string
	Description string
	Status      ActionItemStatus
	Payload     ActionItemPayload
}

// ActionItemResponse resolves a previously emitted ActionItemRequest.
type ActionItemResponse struct {
	ID    ActionItemID
	Value value.Value
}

// ActionItemUpdate is one delta the scheduler wants to apply to a
// previously emitted request's status.
type ActionItemUpdate struct {
	ID     ActionItemID
	Status ActionItemStatus
}

// SubGroup aggregates action items under one heading within a group.
type SubGroup struct {
	Title string
	Items []ActionItemRequest
}

// Group aggregates sub-groups under one heading within a Block.
type Group struct {
	Title     string
	SubGroups []SubGroup
}

// BlockID uniquely identifies one emitted Block.
type BlockID uuid.UUID

func NewBlockID() BlockID { return BlockID(uuid.New()) }
func (id BlockID) String() string { return uuid.UUID(id).String() }

// Block aggregates groups of action items, modeling one supervisor-UI step
// (§4.7).
type Block struct {
	ID     BlockID
	Title  string
	Groups []Group
}

// BlockEventKind tags the closed BlockEvent enum.
type BlockEventKind int

const (
	EventAction BlockEventKind = iota
	EventModal
	EventProgressBar
	EventUpdateActionItems
	EventUpdateProgressBarStatus
	EventUpdateProgressBarVisibility
	EventClear
	EventRunbookCompleted
	EventError
	EventExit
)

// BlockEvent is the single closed event type delivered over the Supervisor
// Channel, in the order emitted (§4.7).
type BlockEvent struct {
	Kind    BlockEventKind
	Block   *Block              // Action, Modal, ProgressBar, Error
	Updates []ActionItemUpdate  // UpdateActionItems
	Visible bool                // UpdateProgressBarVisibility
}
