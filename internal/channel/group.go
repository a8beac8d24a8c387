// Package channel implements the in-memory fan-out core: broadcast groups
// holding live subscriber handles, and the registry mapping channel names to
// groups.
package channel

import (
	"sync"

	"github.com/ginger-society/ginger-ws/internal/metrics"
)

// subscriberBuffer is the per-subscriber ring depth. A subscriber that falls
// more than this many messages behind loses the oldest buffered ones.
const subscriberBuffer = 100

// Group is the multicast primitive backing one channel. Publishing never
// blocks: slow subscribers drop their oldest buffered message instead of
// applying backpressure to the publisher.
type Group struct {
	name string

	mu   sync.Mutex
	subs map[*Subscription]struct{}
}

func newGroup(name string) *Group {
	return &Group{
		name: name,
		subs: make(map[*Subscription]struct{}),
	}
}

// Name returns the channel name this group was created under.
func (g *Group) Name() string {
	return g.name
}

// Publish delivers text to every live subscription. Messages published to a
// group with no subscribers are discarded; that is a no-op, not an error.
func (g *Group) Publish(text string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for sub := range g.subs {
		select {
		case sub.ch <- text:
		default:
			// Buffer full: evict the oldest entry, then retry once. The
			// second send only fails if the subscriber drained concurrently,
			// in which case there is room anyway on the next iteration.
			select {
			case <-sub.ch:
				metrics.WebSocketMessagesDropped.Inc()
			default:
			}
			select {
			case sub.ch <- text:
			default:
			}
		}
	}
}

// Subscribe returns a fresh subscription that observes messages published
// from this moment onward. It never replays earlier history.
func (g *Group) Subscribe() *Subscription {
	sub := &Subscription{
		group: g,
		ch:    make(chan string, subscriberBuffer),
	}

	g.mu.Lock()
	g.subs[sub] = struct{}{}
	g.mu.Unlock()

	return sub
}

// Subscribers returns the number of live subscriptions.
func (g *Group) Subscribers() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.subs)
}

// Subscription is a private receive handle into one Group, fixed at creation.
type Subscription struct {
	group *Group
	ch    chan string
	once  sync.Once
}

// Receive exposes the ordered message stream. The channel is closed when the
// subscription is closed.
func (s *Subscription) Receive() <-chan string {
	return s.ch
}

// Close detaches the subscription from its group and closes the receive
// channel. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		// Removing under the group lock guarantees no Publish is mid-send
		// when the channel closes.
		s.group.mu.Lock()
		delete(s.group.subs, s)
		close(s.ch)
		s.group.mu.Unlock()
	})
}
