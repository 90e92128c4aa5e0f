package querystore

import (
	"time"

	"github.com/goliatone/go-query-cache/cache"
	"github.com/google/uuid"
)

// entry is the store-owned record for one query key. All fields are guarded
// by the store mutex; snapshots of an entry are value copies and safe to
// hand out.
type entry struct {
	key           string
	endpoint      string
	data          any
	hasData       bool
	err           error
	status        cache.Status
	stale         bool
	tags          []cache.Tag
	lastFetchedAt time.Time
	loader        cache.Loader
	subscribers   map[uuid.UUID]cache.SubscribeFn
	gcTimer       *time.Timer
	patches       map[uuid.UUID]patchSnapshot
}

// patchSnapshot captures an entry's published state before an optimistic
// patch so a failed mutation can restore it exactly.
type patchSnapshot struct {
	data    any
	hasData bool
	err     error
	status  cache.Status
	stale   bool
}

func newEntry(key string) *entry {
	return &entry{
		key:         key,
		status:      cache.StatusIdle,
		subscribers: make(map[uuid.UUID]cache.SubscribeFn),
		patches:     make(map[uuid.UUID]patchSnapshot),
	}
}

// snapshot returns the published view of the entry. Caller must hold the
// store mutex.
func (e *entry) snapshot() cache.Snapshot {
	return cache.Snapshot{
		Key:           e.key,
		Data:          e.data,
		Err:           e.err,
		Status:        e.status,
		Stale:         e.stale,
		LastFetchedAt: e.lastFetchedAt,
	}
}

// callbacks returns the current subscriber functions. Caller must hold the
// store mutex; the returned slice is safe to invoke after release.
func (e *entry) callbacks() []cache.SubscribeFn {
	if len(e.subscribers) == 0 {
		return nil
	}
	fns := make([]cache.SubscribeFn, 0, len(e.subscribers))
	for _, fn := range e.subscribers {
		fns = append(fns, fn)
	}
	return fns
}
