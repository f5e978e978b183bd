package domain

import "context"

// RecordAppender defines the write half of the document store contract: an
// append accepting a field map and returning the store-assigned id once the
// write is durably queued. The store assigns the timestamp at write time.
type RecordAppender interface {
	Append(ctx context.Context, fields map[string]any) (string, error)
}

// Subscription is a live resource handle on the post collection. It delivers
// the complete current record set on establishment and again after every
// change (full snapshots, never deltas). Close releases the handle; holders
// must close a subscription before acquiring a new one.
type Subscription interface {
	// Snapshots yields full replacement snapshots. The channel is closed when
	// the subscription ends.
	Snapshots() <-chan []Record

	// Errors yields subscription failures (permission, transport). An error
	// does not invalidate previously delivered snapshots.
	Errors() <-chan error

	Close() error
}

// FeedSource opens subscriptions on the post collection.
type FeedSource interface {
	Subscribe(ctx context.Context) (Subscription, error)
}
