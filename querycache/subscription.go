package querycache

import (
	"github.com/goliatone/go-query-cache/cache"
	"github.com/google/uuid"
)

// Subscription is the handle returned by Client.Subscribe. Dropping the
// last subscription for a key arms the garbage-collection timer;
// resubscribing before it fires serves the cached payload with zero
// network calls.
type Subscription struct {
	id     uuid.UUID
	key    string
	client *Client
}

// Key returns the query key this subscription observes.
func (s *Subscription) Key() string {
	return s.key
}

// Current returns the entry's snapshot at this moment, without fetching.
func (s *Subscription) Current() (cache.Snapshot, bool) {
	return s.client.store.Get(s.key)
}

// Unsubscribe stops callback delivery for this handle. An in-flight fetch
// is not cancelled; its result still populates the cache for future
// subscribers. Unsubscribing twice returns ErrHandleNotFound.
func (s *Subscription) Unsubscribe() error {
	return s.client.store.Unsubscribe(s.id)
}
