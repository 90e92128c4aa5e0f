package querycache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goliatone/go-query-cache/cache"
	"github.com/goliatone/go-query-cache/internal/querystore"
	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/sync/singleflight"
)

// Client is the entry point of the query cache. It owns the store, the
// request deduplicator, and the per-entry mutation locks. One Client is
// shared by all consumers of an application; create a fresh one per test
// for isolation.
type Client struct {
	cfg    cache.Config
	store  *querystore.Store
	keys   cache.KeySerializer
	flight singleflight.Group
	locks  *xsync.MapOf[string, *sync.Mutex]
}

// Stats reports cache occupancy for debugging.
type Stats struct {
	Entries     int
	Subscribers int
	Tags        int
}

// NewClient constructs a Client with the default key serializer.
func NewClient(cfg cache.Config) (*Client, error) {
	return NewClientWithSerializer(cfg, cache.NewKeySerializerWithLimit(cfg.MaxInlineKeyLength))
}

// NewClientWithSerializer constructs a Client with a caller-provided key
// serializer, for applications that need a custom key scheme.
func NewClientWithSerializer(cfg cache.Config, keys cache.KeySerializer) (*Client, error) {
	if keys == nil {
		return nil, &cache.ConfigError{Field: "keys", Message: "serializer must not be nil"}
	}
	store, err := querystore.New(cfg)
	if err != nil {
		return nil, err
	}
	return &Client{
		cfg:   cfg,
		store: store,
		keys:  keys,
		locks: xsync.NewMapOf[string, *sync.Mutex](),
	}, nil
}

// KeyFor returns the deterministic query key for endpoint and params. Use
// it to build Patch targets for optimistic mutations.
func (c *Client) KeyFor(endpoint string, params any) (string, error) {
	return c.keys.SerializeKey(endpoint, params)
}

// Query returns the cached payload for the descriptor, fetching through the
// loader on a miss, a stale entry, or an expired freshness window.
// Concurrent queries for the same key share one loader call.
func (c *Client) Query(ctx context.Context, desc QueryDescriptor, loader cache.Loader) (any, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	if loader == nil {
		return nil, &cache.ConfigError{Field: "loader", Message: "must not be nil"}
	}
	key, err := c.keys.SerializeKey(desc.Endpoint, desc.Params)
	if err != nil {
		return nil, err
	}

	if snap, ok := c.store.Get(key); ok && c.hit(snap) {
		return snap.Data, nil
	}
	return c.fetchShared(ctx, key, desc.Endpoint, desc.Tags, loader)
}

// Prefetch warms the cache for a descriptor without subscribing. The entry
// is cold and subject to normal garbage collection.
func (c *Client) Prefetch(ctx context.Context, desc QueryDescriptor, loader cache.Loader) error {
	_, err := c.Query(ctx, desc, loader)
	return err
}

// Subscribe registers fn as an observer of the descriptor's entry and
// triggers a background fetch unless an unexpired payload is already
// cached. The loader is retained by the entry so tag invalidation can
// refetch it later. Cancelling ctx does not cancel an in-flight fetch; the
// result still lands in the cache for future subscribers.
func (c *Client) Subscribe(ctx context.Context, desc QueryDescriptor, loader cache.Loader, fn cache.SubscribeFn) (*Subscription, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	if loader == nil {
		return nil, &cache.ConfigError{Field: "loader", Message: "must not be nil"}
	}
	if fn == nil {
		return nil, &cache.ConfigError{Field: "fn", Message: "must not be nil"}
	}
	key, err := c.keys.SerializeKey(desc.Endpoint, desc.Params)
	if err != nil {
		return nil, err
	}

	id, _, needsFetch := c.store.Subscribe(key, desc.Endpoint, loader, desc.Tags, fn)
	if needsFetch {
		fetchCtx := context.WithoutCancel(ctx)
		go func() {
			_, _ = c.fetchShared(fetchCtx, key, desc.Endpoint, desc.Tags, loader)
		}()
	}
	return &Subscription{id: id, key: key, client: c}, nil
}

// InvalidateTags marks every entry indexed under tags as stale and
// refetches the subscribed ones immediately. Mutations call this on
// success; it is exported for server-push and manual refresh scenarios.
func (c *Client) InvalidateTags(tags []cache.Tag) error {
	if err := cache.ValidateTags(tags); err != nil {
		return err
	}
	c.applyInvalidations(tags)
	return nil
}

// Get exposes the current snapshot for a key without fetching.
func (c *Client) Get(key string) (cache.Snapshot, bool) {
	return c.store.Get(key)
}

// Stats returns current cache occupancy.
func (c *Client) Stats() Stats {
	st := c.store.Stats()
	return Stats{Entries: st.Entries, Subscribers: st.Subscribers, Tags: st.Tags}
}

// Reset evicts every entry and cancels all timers. Intended for app
// teardown and per-test cleanup.
func (c *Client) Reset() {
	c.store.Reset()
}

// hit reports whether a snapshot can satisfy a read without a fetch.
func (c *Client) hit(snap cache.Snapshot) bool {
	if snap.Status != cache.StatusSuccess || snap.Stale {
		return false
	}
	if c.cfg.FreshFor <= 0 {
		return true
	}
	return time.Since(snap.LastFetchedAt) <= c.cfg.FreshFor
}

// Query is the type-safe wrapper over Client.Query.
func Query[T any](ctx context.Context, c *Client, desc QueryDescriptor, loader cache.TypedLoader[T]) (T, error) {
	result, err := c.Query(ctx, desc, func(ctx context.Context) (any, error) {
		return loader(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return assertPayload[T](result)
}

// Mutate is the type-safe wrapper over Client.Mutate.
func Mutate[T any](ctx context.Context, c *Client, desc MutationDescriptor, mutator func(ctx context.Context) (T, error)) (T, error) {
	result, err := c.Mutate(ctx, desc, func(ctx context.Context) (any, error) {
		return mutator(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return assertPayload[T](result)
}

// assertPayload converts an any-typed payload back to T. A nil payload
// yields the zero value rather than a panicking type assertion.
func assertPayload[T any](result any) (T, error) {
	var zero T
	if result == nil {
		return zero, nil
	}
	typed, ok := result.(T)
	if !ok {
		return zero, &cache.ConfigError{
			Field:   "payload",
			Message: fmt.Sprintf("cached value is %T, not the requested type", result),
		}
	}
	return typed, nil
}
