// Package pubsub provides an in-process topic broker used to fan events out
// to subscription streams.  There is no replay: a subscriber sees only events
// published after it registered.
package pubsub

import (
	"context"
	"sync"
)

// Broker fans published values out to the current subscribers of a topic.
// Publish never blocks - a subscriber whose buffer is full misses the event.
type Broker[T any] struct {
	mu     sync.Mutex
	nextID int
	subs   map[string]map[int]chan T // topic -> subscriber ID -> channel
	buffer int
}

// New creates a broker whose subscribers each get a channel with the given
// buffer size (minimum 1, so a subscriber that keeps up never drops).
func New[T any](buffer int) *Broker[T] {
	if buffer < 1 {
		buffer = 1
	}
	return &Broker[T]{
		subs:   make(map[string]map[int]chan T),
		buffer: buffer,
	}
}

// Subscribe registers a new subscriber for a topic.  The returned channel
// yields events in publish order and is closed when ctx is cancelled.
func (b *Broker[T]) Subscribe(ctx context.Context, topic string) <-chan T {
	ch := make(chan T, b.buffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[int]chan T)
	}
	b.subs[topic][id] = ch
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs[topic], id)
		b.mu.Unlock()
		close(ch)
	}()

	return ch
}

// Publish delivers v to every current subscriber of the topic.
func (b *Broker[T]) Publish(topic string, v T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs[topic] {
		select {
		case ch <- v:
		default: // subscriber too slow - drop
		}
	}
}
