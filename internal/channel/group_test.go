package channel

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recvOne(t *testing.T, sub *Subscription) string {
	t.Helper()
	select {
	case msg, ok := <-sub.Receive():
		require.True(t, ok, "subscription closed unexpectedly")
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return ""
	}
}

func TestGroup_FanOut(t *testing.T) {
	g := newGroup("c1")
	sub1 := g.Subscribe()
	defer sub1.Close()
	sub2 := g.Subscribe()
	defer sub2.Close()

	g.Publish("hello")

	assert.Equal(t, "hello", recvOne(t, sub1))
	assert.Equal(t, "hello", recvOne(t, sub2))
}

func TestGroup_NoSubscribersIsNoop(t *testing.T) {
	g := newGroup("empty")
	assert.NotPanics(t, func() { g.Publish("into the void") })
	assert.Equal(t, 0, g.Subscribers())
}

func TestGroup_LateSubscriberSeesNoHistory(t *testing.T) {
	g := newGroup("c1")

	early := g.Subscribe()
	defer early.Close()
	g.Publish("before")

	late := g.Subscribe()
	defer late.Close()
	g.Publish("after")

	assert.Equal(t, "before", recvOne(t, early))
	assert.Equal(t, "after", recvOne(t, early))

	// The late subscriber only observes messages from subscription onward.
	assert.Equal(t, "after", recvOne(t, late))
	select {
	case msg := <-late.Receive():
		t.Fatalf("unexpected extra message: %q", msg)
	default:
	}
}

func TestGroup_SlowSubscriberDropsOldest(t *testing.T) {
	g := newGroup("c1")
	sub := g.Subscribe()
	defer sub.Close()

	// Overflow the ring by one: message 0 is evicted.
	for i := 0; i <= subscriberBuffer; i++ {
		g.Publish(fmt.Sprintf("msg-%d", i))
	}

	assert.Equal(t, "msg-1", recvOne(t, sub))

	// All later messages survive in order.
	for i := 2; i <= subscriberBuffer; i++ {
		assert.Equal(t, fmt.Sprintf("msg-%d", i), recvOne(t, sub))
	}
}

func TestGroup_PublishDoesNotBlockOnSlowSubscriber(t *testing.T) {
	g := newGroup("c1")
	sub := g.Subscribe()
	defer sub.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < subscriberBuffer*3; i++ {
			g.Publish("x")
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}

func TestSubscription_CloseIsIdempotentAndDetaches(t *testing.T) {
	g := newGroup("c1")
	sub := g.Subscribe()
	require.Equal(t, 1, g.Subscribers())

	sub.Close()
	sub.Close()
	assert.Equal(t, 0, g.Subscribers())

	// Receive channel is closed.
	_, ok := <-sub.Receive()
	assert.False(t, ok)

	// Publishing after close must not panic.
	assert.NotPanics(t, func() { g.Publish("after close") })
}

func TestGroup_IsolationBetweenSubscriptions(t *testing.T) {
	g1 := newGroup("c1")
	g2 := newGroup("c2")

	sub1 := g1.Subscribe()
	defer sub1.Close()
	sub2 := g2.Subscribe()
	defer sub2.Close()

	g1.Publish("only-c1")

	assert.Equal(t, "only-c1", recvOne(t, sub1))
	select {
	case msg := <-sub2.Receive():
		t.Fatalf("cross-channel delivery: %q", msg)
	case <-time.After(50 * time.Millisecond):
	}
}
