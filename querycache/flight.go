package querycache

import (
	"context"
	"errors"

	"github.com/goliatone/go-query-cache/cache"
	"github.com/goliatone/go-query-cache/internal/querystore"
)

// fetchShared issues the network fetch for key, collapsing concurrent
// callers into a single loader invocation: every waiter observes the same
// resolution or rejection. Once settled the in-flight record is cleared,
// so the next call issues a fresh request. The loader runs with the
// initiating caller's context.
func (c *Client) fetchShared(ctx context.Context, key, endpoint string, tags []cache.Tag, loader cache.Loader) (any, error) {
	c.store.MarkLoading(key)
	result, err, _ := c.flight.Do(key, func() (any, error) {
		return loader(ctx)
	})
	if err != nil {
		typed := classifyFetchError(endpoint, err)
		c.store.SetError(key, typed)
		return nil, typed
	}
	c.store.Upsert(key, result, tags)
	return result, nil
}

// refetch refreshes one invalidated entry with its original loader. Runs in
// the background; the outcome is published through the store either way.
func (c *Client) refetch(r querystore.Refetch) {
	result, err, _ := c.flight.Do(r.Key, func() (any, error) {
		return r.Loader(context.Background())
	})
	if err != nil {
		c.store.SetError(r.Key, classifyFetchError(r.Endpoint, err))
		return
	}
	c.store.Upsert(r.Key, result, r.Tags)
}

// applyInvalidations stales everything under tags and refetches the hot
// entries concurrently.
func (c *Client) applyInvalidations(tags []cache.Tag) {
	for _, r := range c.store.InvalidateByTags(tags) {
		go c.refetch(r)
	}
}

// classifyFetchError keeps already-typed errors intact and wraps anything
// else as a transport failure.
func classifyFetchError(endpoint string, err error) error {
	var netErr *cache.NetworkError
	if errors.As(err, &netErr) {
		return err
	}
	var httpErr *cache.HTTPError
	if errors.As(err, &httpErr) {
		return err
	}
	var cfgErr *cache.ConfigError
	if errors.As(err, &cfgErr) {
		return err
	}
	return &cache.NetworkError{Endpoint: endpoint, Err: err}
}
