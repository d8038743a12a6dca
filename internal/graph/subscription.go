package graph

import (
	"context"
)

// Subscription declares the event streams.  A subscriber sees every book
// added after it registered, in publish order; there is no replay.
type Subscription struct {
	BookAdded func(context.Context) <-chan Book
}

func (r *Resolver) bookAdded(ctx context.Context) <-chan Book {
	return r.events.Subscribe(ctx, TopicBookAdded)
}
