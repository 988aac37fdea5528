package bus

import "sync"

// Supervisor is the channel surface the scheduler drives: a single ordered
// stream of BlockEvents to the primary supervisor, plus a response channel
// the supervisor sends ActionItemResponses into. Kept as an interface so the scheduler can be driven by a
// test double without a real channel plumbing.
type Supervisor interface {
	Events() <-chan BlockEvent
	Responses() chan<- ActionItemResponse
}

// Bus is the concrete publish/subscribe event port: one MPSC channel to the
// primary supervisor, and any number of broadcast subscribers for passive
// observers (e.g. a log tee), modeled on the corpus's event-port pattern.
type Bus struct {
	mu          sync.Mutex
	primary     chan BlockEvent
	responses   chan ActionItemResponse
	subscribers []chan BlockEvent

	lastStatus map[ActionItemID]ActionItemStatus
}

// New returns a Bus with the given primary channel buffer size.
func New(bufferSize int) *Bus {
	return &Bus{
		primary:    make(chan BlockEvent, bufferSize),
		responses:  make(chan ActionItemResponse, bufferSize),
		lastStatus: map[ActionItemID]ActionItemStatus{},
	}
}

// Events satisfies Supervisor for the primary subscriber.
func (b *Bus) Events() <-chan BlockEvent { return b.primary }

// Responses satisfies Supervisor: the supervisor sends resolved action item
// values into this channel; the scheduler reads them via ResponseChannel.
func (b *Bus) Responses() chan<- ActionItemResponse { return b.responses }

// ResponseChannel exposes the read side for the scheduler's select loop.
func (b *Bus) ResponseChannel() <-chan ActionItemResponse { return b.responses }

// Subscribe registers a passive broadcast observer; events published after
// this call are also delivered to the returned channel.
func (b *Bus) Subscribe(bufferSize int) <-chan BlockEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan BlockEvent, bufferSize)
	b.subscribers = append(b.subscribers, ch)
	return ch
}

// Publish delivers an event to the primary channel and every broadcast
// subscriber, in order.
func (b *Bus) Publish(ev BlockEvent) {
	b.primary <- ev
	b.mu.Lock()
	subs := append([]chan BlockEvent(nil), b.subscribers...)
	b.mu.Unlock()
	for _, ch := range subs {
		ch <- ev
	}
}

// PublishUpdateActionItems coalesces the given updates against the status
// last published for each id, dropping any update that does not actually
// change a status, and publishing nothing at all if the coalesced set is
// empty (§4.7: "if no item's status actually changes, the update is
// dropped before broadcast to avoid UI chatter" — testable property #8).
func (b *Bus) PublishUpdateActionItems(updates []ActionItemUpdate) {
	b.mu.Lock()
	changed := make([]ActionItemUpdate, 0, len(updates))
	for _, u := range updates {
		if prev, ok := b.lastStatus[u.ID]; ok && prev == u.Status {
			continue
		}
		b.lastStatus[u.ID] = u.Status
		changed = append(changed, u)
	}
	b.mu.Unlock()

	if len(changed) == 0 {
		return
	}
	b.Publish(BlockEvent{Kind: EventUpdateActionItems, Updates: changed})
}

// PublishRequest wraps a single Block carrying one or more action item
// requests and publishes it as the given kind (Action or Modal).
func (b *Bus) PublishRequest(kind BlockEventKind, block Block) {
	b.Publish(BlockEvent{Kind: kind, Block: &block})
}

// PublishError publishes a Block describing a fatal construct failure.
func (b *Bus) PublishError(block Block) {
	b.Publish(BlockEvent{Kind: EventError, Block: &block})
}

// PublishExit publishes the terminal Exit event; no further events should
// follow on this Bus.
func (b *Bus) PublishExit() {
	b.Publish(BlockEvent{Kind: EventExit})
}

// PublishRunbookCompleted publishes the terminal success event.
func (b *Bus) PublishRunbookCompleted() {
	b.Publish(BlockEvent{Kind: EventRunbookCompleted})
}

var _ Supervisor = (*Bus)(nil)
