// Package eventbus fans a block's execution events out to any number of
// subscribers without ever blocking the state-machine task that produces
// them, per spec.md §4.5 ("best-effort fan-out; slow subscribers may drop
// events but must never block commit"). Grounded on the teacher's
// examples/timestampchain/vm/mempool.go Add, which uses a non-blocking
// select/default send on a bounded channel to avoid stalling its caller;
// this package generalizes that single-channel idiom to many independent
// subscriber channels.
package eventbus

import (
	"sync"

	"github.com/seloria/seloria/core/types"
)

const defaultBufferSize = 256

// Bus fans out types.Event values to every subscribed channel.
type Bus struct {
	mu   sync.Mutex
	subs map[int]chan types.Event
	next int
}

// New returns an empty event bus.
func New() *Bus {
	return &Bus{subs: make(map[int]chan types.Event)}
}

// Subscribe registers a new subscriber and returns its channel along with
// an unsubscribe function. The returned channel is buffered; a subscriber
// that falls behind has events dropped for it rather than stalling Publish.
func (b *Bus) Subscribe() (<-chan types.Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan types.Event, defaultBufferSize)
	id := b.next
	b.next++
	b.subs[id] = ch

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(ch)
		}
	}
	return ch, unsubscribe
}

// Publish delivers ev to every current subscriber. Delivery is
// non-blocking: a subscriber whose buffer is full simply misses ev.
func (b *Bus) Publish(ev types.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// PublishAll delivers every event in evs, in order, applying the same
// non-blocking rule to each — used after a block commit to emit
// BLOCK_COMMITTED followed by every tx's events per spec.md §4.5's
// ordering guarantee.
func (b *Bus) PublishAll(evs []types.Event) {
	for _, ev := range evs {
		b.Publish(ev)
	}
}
