package dispatch

import (
	"sync"

	"github.com/muurk/wifiprov/internal/logging"
	"github.com/muurk/wifiprov/internal/wifi"
	"go.uber.org/zap"
)

// Subscription is the token returned by Bus.Subscribe. It is released with
// Bus.Unsubscribe.
type Subscription struct {
	id      uint64
	handler func(wifi.Event)
}

// Bus fans station events out to subscribers. Publish may be called from
// any goroutine; handlers always run on the Loop, in publish order.
type Bus struct {
	loop *Loop

	mu   sync.Mutex
	next uint64
	subs []*Subscription
}

// NewBus creates a bus delivering on loop.
func NewBus(loop *Loop) *Bus {
	return &Bus{loop: loop}
}

// Subscribe registers handler and returns its token.
func (b *Bus) Subscribe(handler func(wifi.Event)) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.next++
	sub := &Subscription{id: b.next, handler: handler}
	b.subs = append(b.subs, sub)
	return sub
}

// Unsubscribe removes the subscription. It returns false when sub is nil or
// was already removed.
func (b *Bus) Unsubscribe(sub *Subscription) bool {
	if sub == nil {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, s := range b.subs {
		if s == sub {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return true
		}
	}
	return false
}

// Subscribers returns the number of live subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Publish queues ev for delivery to the subscriptions live at the time of
// the call. A subscription added after Publish, or removed before delivery,
// does not receive it.
func (b *Bus) Publish(ev wifi.Event) {
	logging.Debug("Station event", zap.Stringer("event", ev))

	b.mu.Lock()
	snapshot := make([]*Subscription, len(b.subs))
	copy(snapshot, b.subs)
	b.mu.Unlock()

	b.loop.Post(func() {
		for _, sub := range snapshot {
			if b.live(sub) {
				sub.handler(ev)
			}
		}
	})
}

func (b *Bus) live(sub *Subscription) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, s := range b.subs {
		if s == sub {
			return true
		}
	}
	return false
}
