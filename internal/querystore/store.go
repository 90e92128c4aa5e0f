package querystore

import (
	"sync"
	"time"

	"github.com/goliatone/go-query-cache/cache"
	"github.com/google/uuid"
)

// Store owns every QueryEntry and the tag inverted index. All operations
// mutate shared state under one mutex and run to completion before any
// subscriber callback fires, so the entry map and the tag index can never
// be observed mid-transition. Callbacks are invoked after the mutex is
// released.
type Store struct {
	mu      sync.Mutex
	cfg     cache.Config
	entries map[string]*entry
	byTag   map[string]map[string]struct{}
	handles map[uuid.UUID]string
}

// Refetch identifies a subscribed entry that was invalidated and must be
// refreshed immediately with its original loader. Endpoint is the path the
// entry was subscribed under, for error reporting.
type Refetch struct {
	Key      string
	Endpoint string
	Tags     []cache.Tag
	Loader   cache.Loader
}

// Stats reports store occupancy for debugging.
type Stats struct {
	Entries     int
	Subscribers int
	Tags        int
}

// notification pairs a snapshot with the subscribers that must observe it.
type notification struct {
	fns  []cache.SubscribeFn
	snap cache.Snapshot
}

// New constructs a Store after validating the configuration.
func New(cfg cache.Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Store{
		cfg:     cfg,
		entries: make(map[string]*entry),
		byTag:   make(map[string]map[string]struct{}),
		handles: make(map[uuid.UUID]string),
	}, nil
}

// Get returns the published snapshot for key, if an entry exists.
func (s *Store) Get(key string) (cache.Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return cache.Snapshot{}, false
	}
	return e.snapshot(), true
}

// Upsert replaces the entry's payload with a successful result, stamps it,
// and re-indexes the key under tags. Tags the entry previously declared but
// no longer does are dropped from the index in the same critical section.
// A nil tags slice keeps the existing tags.
func (s *Store) Upsert(key string, data any, tags []cache.Tag) {
	s.mu.Lock()
	e := s.ensureEntryLocked(key)
	e.data = data
	e.hasData = true
	e.err = nil
	e.status = cache.StatusSuccess
	e.stale = false
	e.lastFetchedAt = time.Now()
	if tags != nil {
		s.reindexLocked(e, cache.DedupeTags(tags))
	}
	if len(e.subscribers) == 0 && e.gcTimer == nil {
		s.armGCLocked(e)
	}
	n := notification{fns: e.callbacks(), snap: e.snapshot()}
	s.mu.Unlock()

	publish(n)
}

// SetError records a failed fetch. The previous successful payload, if any,
// is retained so subscribers can keep rendering last-known-good data.
func (s *Store) SetError(key string, err error) {
	s.mu.Lock()
	e := s.ensureEntryLocked(key)
	e.err = err
	e.status = cache.StatusError
	if len(e.subscribers) == 0 && e.gcTimer == nil {
		s.armGCLocked(e)
	}
	n := notification{fns: e.callbacks(), snap: e.snapshot()}
	s.mu.Unlock()

	publish(n)
}

// MarkLoading flips an existing entry to loading without touching its
// payload. Missing keys are a no-op.
func (s *Store) MarkLoading(key string) {
	s.mu.Lock()
	e, ok := s.entries[key]
	if !ok {
		s.mu.Unlock()
		return
	}
	e.status = cache.StatusLoading
	n := notification{fns: e.callbacks(), snap: e.snapshot()}
	s.mu.Unlock()

	publish(n)
}

// Subscribe registers fn as an observer of key, creating an idle entry if
// none exists. The entry's endpoint, loader, and tags are remembered for
// invalidation refetches. It returns the subscription handle, the current
// snapshot, and whether the caller should issue a fetch: true unless the
// entry holds an unexpired successful payload.
func (s *Store) Subscribe(key, endpoint string, loader cache.Loader, tags []cache.Tag, fn cache.SubscribeFn) (uuid.UUID, cache.Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.ensureEntryLocked(key)
	if endpoint != "" {
		e.endpoint = endpoint
	}
	if loader != nil {
		e.loader = loader
	}
	if tags != nil {
		s.reindexLocked(e, cache.DedupeTags(tags))
	}
	if e.gcTimer != nil {
		e.gcTimer.Stop()
		e.gcTimer = nil
	}

	id := uuid.New()
	e.subscribers[id] = fn
	s.handles[id] = key

	needsFetch := !(e.status == cache.StatusSuccess && !e.stale && s.freshLocked(e))
	return id, e.snapshot(), needsFetch
}

// Unsubscribe removes the observer. When the last observer leaves, the
// garbage-collection timer is armed; resubscribing before it fires cancels
// eviction and reuses the cached payload.
func (s *Store) Unsubscribe(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.handles[id]
	if !ok {
		return cache.ErrHandleNotFound
	}
	delete(s.handles, id)

	e, ok := s.entries[key]
	if !ok {
		return nil
	}
	delete(e.subscribers, id)
	if len(e.subscribers) == 0 {
		s.armGCLocked(e)
	}
	return nil
}

// InvalidateByTags marks every entry indexed under any of tags as stale.
// Entries with live subscribers flip to loading and are returned so the
// caller can refetch them with their original loader; cold entries stay as
// they are and refetch lazily on next subscription. Invoking this twice
// with no intervening upsert stales the same set.
func (s *Store) InvalidateByTags(tags []cache.Tag) []Refetch {
	s.mu.Lock()

	affected := make(map[string]struct{})
	for _, t := range cache.DedupeTags(tags) {
		for key := range s.byTag[t.String()] {
			affected[key] = struct{}{}
		}
	}

	var refetches []Refetch
	var notes []notification
	for key := range affected {
		e, ok := s.entries[key]
		if !ok {
			continue
		}
		e.stale = true
		if len(e.subscribers) == 0 {
			continue
		}
		e.status = cache.StatusLoading
		if e.loader != nil {
			refetches = append(refetches, Refetch{
				Key:      key,
				Endpoint: e.endpoint,
				Tags:     append([]cache.Tag(nil), e.tags...),
				Loader:   e.loader,
			})
		}
		notes = append(notes, notification{fns: e.callbacks(), snap: e.snapshot()})
	}
	s.mu.Unlock()

	for _, n := range notes {
		publish(n)
	}
	return refetches
}

// BeginPatch snapshots the entry's current state under mutID and applies the
// speculative patch, publishing the result before any network call. It
// returns false when no entry exists for key (nothing to patch) and
// ErrPatchPending when mutID already holds a snapshot for this entry.
func (s *Store) BeginPatch(key string, mutID uuid.UUID, apply func(any) any) (bool, error) {
	s.mu.Lock()
	e, ok := s.entries[key]
	if !ok {
		s.mu.Unlock()
		return false, nil
	}
	if _, dup := e.patches[mutID]; dup {
		s.mu.Unlock()
		return false, cache.ErrPatchPending
	}
	e.patches[mutID] = patchSnapshot{
		data:    e.data,
		hasData: e.hasData,
		err:     e.err,
		status:  e.status,
		stale:   e.stale,
	}
	e.data = apply(e.data)
	e.hasData = true
	e.err = nil
	e.status = cache.StatusSuccess
	n := notification{fns: e.callbacks(), snap: e.snapshot()}
	s.mu.Unlock()

	publish(n)
	return true, nil
}

// CommitPatch discards the snapshot held under mutID; the speculative
// payload stands until tag invalidation reconciles it with the server.
func (s *Store) CommitPatch(key string, mutID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return
	}
	delete(e.patches, mutID)
}

// RollbackPatch restores the entry to the state snapshotted under mutID,
// exactly: this is an undo, not a refetch.
func (s *Store) RollbackPatch(key string, mutID uuid.UUID) {
	s.mu.Lock()
	e, ok := s.entries[key]
	if !ok {
		s.mu.Unlock()
		return
	}
	snap, ok := e.patches[mutID]
	if !ok {
		s.mu.Unlock()
		return
	}
	delete(e.patches, mutID)
	e.data = snap.data
	e.hasData = snap.hasData
	e.err = snap.err
	e.status = snap.status
	e.stale = snap.stale
	n := notification{fns: e.callbacks(), snap: e.snapshot()}
	s.mu.Unlock()

	publish(n)
}

// Reset evicts everything and cancels all timers. Intended for teardown and
// per-test isolation.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.gcTimer != nil {
			e.gcTimer.Stop()
		}
	}
	s.entries = make(map[string]*entry)
	s.byTag = make(map[string]map[string]struct{})
	s.handles = make(map[uuid.UUID]string)
}

// Stats returns current occupancy counts.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Stats{Entries: len(s.entries), Tags: len(s.byTag)}
	for _, e := range s.entries {
		st.Subscribers += len(e.subscribers)
	}
	return st
}

func (s *Store) ensureEntryLocked(key string) *entry {
	e, ok := s.entries[key]
	if !ok {
		e = newEntry(key)
		s.entries[key] = e
	}
	return e
}

// reindexLocked moves the entry to its new tag set, removing it from tags
// no longer declared. Index and entry tags change in the same critical
// section so they can never disagree.
func (s *Store) reindexLocked(e *entry, tags []cache.Tag) {
	next := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		next[t.String()] = struct{}{}
	}
	for _, old := range e.tags {
		name := old.String()
		if _, keep := next[name]; keep {
			continue
		}
		if set, ok := s.byTag[name]; ok {
			delete(set, e.key)
			if len(set) == 0 {
				delete(s.byTag, name)
			}
		}
	}
	for name := range next {
		set, ok := s.byTag[name]
		if !ok {
			set = make(map[string]struct{})
			s.byTag[name] = set
		}
		set[e.key] = struct{}{}
	}
	e.tags = append([]cache.Tag(nil), tags...)
}

// deindexLocked removes the entry from every tag it declared.
func (s *Store) deindexLocked(e *entry) {
	for _, t := range e.tags {
		name := t.String()
		if set, ok := s.byTag[name]; ok {
			delete(set, e.key)
			if len(set) == 0 {
				delete(s.byTag, name)
			}
		}
	}
}

// armGCLocked schedules eviction after the configured TTL. An existing
// timer is replaced.
func (s *Store) armGCLocked(e *entry) {
	if e.gcTimer != nil {
		e.gcTimer.Stop()
	}
	key := e.key
	e.gcTimer = time.AfterFunc(s.cfg.GCTTL, func() {
		s.evict(key)
	})
}

// evict removes the entry if it is still cold when the GC timer fires.
// The fired timer is cleared first so a surviving entry can be re-armed
// later. Entries with live subscribers survive until the next
// unsubscribe-to-zero; entries with a pending optimistic patch survive the
// in-flight mutation and are retried after another TTL.
func (s *Store) evict(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return
	}
	e.gcTimer = nil
	if len(e.subscribers) > 0 {
		return
	}
	if len(e.patches) > 0 {
		s.armGCLocked(e)
		return
	}
	s.deindexLocked(e)
	delete(s.entries, key)
}

// freshLocked reports whether the entry's payload is within the freshness
// window. A zero FreshFor means fresh until invalidated.
func (s *Store) freshLocked(e *entry) bool {
	if s.cfg.FreshFor <= 0 {
		return true
	}
	return time.Since(e.lastFetchedAt) <= s.cfg.FreshFor
}

// publish invokes the callbacks outside the store lock. Delivery is
// synchronous with respect to the operation that caused the change.
func publish(n notification) {
	for _, fn := range n.fns {
		fn(n.snap)
	}
}
