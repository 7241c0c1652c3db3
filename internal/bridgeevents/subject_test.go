package bridgeevents

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEvent struct {
	Value int
}

func TestPublishSubscribeRoundTrip(t *testing.T) {
	s := NewSubject()
	received := make(chan testEvent, 1)

	Subscribe[testEvent](s, "test.topic", func(ctx context.Context, e testEvent) error {
		received <- e
		return nil
	})

	require.NoError(t, Publish(s, "test.topic", testEvent{Value: 42}))

	select {
	case got := <-received:
		assert.Equal(t, 42, got.Value)
	case <-time.After(time.Second):
		t.Fatal("event not received")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	s := NewSubject()
	received := make(chan testEvent, 2)

	sub := Subscribe[testEvent](s, "topic", func(ctx context.Context, e testEvent) error {
		received <- e
		return nil
	})
	sub.Unsubscribe()

	require.NoError(t, Publish(s, "topic", testEvent{Value: 1}))

	select {
	case <-received:
		t.Fatal("should not have received an event after unsubscribe")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCompleteStopsDelivery(t *testing.T) {
	s := NewSubject()
	received := make(chan testEvent, 1)
	Subscribe[testEvent](s, "topic", func(ctx context.Context, e testEvent) error {
		received <- e
		return nil
	})

	Complete(s)
	require.NoError(t, Publish(s, "topic", testEvent{Value: 1}))

	select {
	case <-received:
		t.Fatal("should not have received an event after Complete")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublishIgnoresMismatchedType(t *testing.T) {
	s := NewSubject()
	type otherEvent struct{ Name string }

	received := make(chan otherEvent, 1)
	Subscribe[otherEvent](s, "shared", func(ctx context.Context, e otherEvent) error {
		received <- e
		return nil
	})

	require.NoError(t, Publish(s, "shared", testEvent{Value: 1}))

	select {
	case <-received:
		t.Fatal("handler for otherEvent should not fire for a testEvent payload")
	case <-time.After(50 * time.Millisecond):
	}
}
