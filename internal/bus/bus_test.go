package bus

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBus_PublishDeliversToPrimaryAndSubscribers(t *testing.T) {
	t.Parallel()

	b := New(4)
	sub := b.Subscribe(4)

	b.PublishRunbookCompleted()

	ev := <-b.Events()
	require.Equal(t, EventRunbookCompleted, ev.Kind)

	subEv := <-sub
	require.Equal(t, EventRunbookCompleted, subEv.Kind)
}

func TestBus_CoalescesUpdateActionItems_DropsUnchangedStatus(t *testing.T) {
	t.Parallel()

	b := New(4)
	id := NewActionItemID()

	b.PublishUpdateActionItems([]ActionItemUpdate{{ID: id, Status: StatusTodo()}})
	ev := <-b.Events()
	require.Equal(t, EventUpdateActionItems, ev.Kind)
	require.Len(t, ev.Updates, 1)

	// Re-publishing the same status must be dropped entirely, not even an
	// empty event should land on the channel.
	b.PublishUpdateActionItems([]ActionItemUpdate{{ID: id, Status: StatusTodo()}})

	select {
	case unexpected := <-b.Events():
		t.Fatalf("expected no further event, got %+v", unexpected)
	default:
	}
}

func TestBus_CoalescesUpdateActionItems_KeepsChangedStatus(t *testing.T) {
	t.Parallel()

	b := New(4)
	id := NewActionItemID()

	b.PublishUpdateActionItems([]ActionItemUpdate{{ID: id, Status: StatusTodo()}})
	<-b.Events()

	b.PublishUpdateActionItems([]ActionItemUpdate{{ID: id, Status: StatusSuccess("done")}})
	ev := <-b.Events()
	require.Equal(t, EventUpdateActionItems, ev.Kind)
	require.Equal(t, "done", ev.Updates[0].Status.Message)
}

func TestBus_CoalescesMixedBatch_OnlyChangedSurvive(t *testing.T) {
	t.Parallel()

	b := New(4)
	unchanged := NewActionItemID()
	changing := NewActionItemID()

	b.PublishUpdateActionItems([]ActionItemUpdate{
		{ID: unchanged, Status: StatusTodo()},
		{ID: changing, Status: StatusTodo()},
	})
	<-b.Events()

	b.PublishUpdateActionItems([]ActionItemUpdate{
		{ID: unchanged, Status: StatusTodo()},
		{ID: changing, Status: StatusBlocked()},
	})
	ev := <-b.Events()
	require.Len(t, ev.Updates, 1)
	require.Equal(t, changing, ev.Updates[0].ID)
}
