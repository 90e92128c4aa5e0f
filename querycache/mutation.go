package querycache

import (
	"context"
	"sort"
	"sync"

	"github.com/goliatone/go-query-cache/cache"
	"github.com/google/uuid"
)

// Mutate performs a write against the backend with optional optimistic
// patches. Patches are snapshotted and applied synchronously, so
// subscribers observe the speculative state before the network call. On
// success the snapshots are discarded and the descriptor's tags are
// invalidated to reconcile with the server; on failure every patched entry
// is restored to its snapshot exactly and the typed error is returned.
//
// Mutations touching the same entry are serialized: per-entry locks are
// held across the network call, so patches apply and settle in strict call
// order with no interleaved partial states. Multi-target mutations acquire
// their locks in sorted key order.
func (c *Client) Mutate(ctx context.Context, desc MutationDescriptor, mutator cache.Mutator) (any, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	if mutator == nil {
		return nil, &cache.ConfigError{Field: "mutator", Message: "must not be nil"}
	}

	mutID := uuid.New()
	unlock := c.lockPatchKeys(desc.Patches)

	applied := make([]string, 0, len(desc.Patches))
	for _, p := range desc.Patches {
		ok, err := c.store.BeginPatch(p.Key, mutID, p.Apply)
		if err != nil {
			c.rollbackPatches(applied, mutID)
			unlock()
			return nil, err
		}
		if ok {
			applied = append(applied, p.Key)
		}
	}

	result, err := mutator(ctx)
	if err != nil {
		c.rollbackPatches(applied, mutID)
		unlock()
		return nil, classifyFetchError(desc.Endpoint, err)
	}

	for _, key := range applied {
		c.store.CommitPatch(key, mutID)
	}
	unlock()

	c.applyInvalidations(desc.InvalidatesTags)
	return result, nil
}

// lockPatchKeys acquires the per-entry mutation locks for every patched key
// in sorted order and returns the release function. Mutations without
// patches take no locks.
func (c *Client) lockPatchKeys(patches []Patch) func() {
	if len(patches) == 0 {
		return func() {}
	}

	seen := make(map[string]struct{}, len(patches))
	keys := make([]string, 0, len(patches))
	for _, p := range patches {
		if _, ok := seen[p.Key]; ok {
			continue
		}
		seen[p.Key] = struct{}{}
		keys = append(keys, p.Key)
	}
	sort.Strings(keys)

	locked := make([]*sync.Mutex, 0, len(keys))
	for _, key := range keys {
		mu, _ := c.locks.LoadOrCompute(key, func() *sync.Mutex {
			return &sync.Mutex{}
		})
		mu.Lock()
		locked = append(locked, mu)
	}
	return func() {
		for i := len(locked) - 1; i >= 0; i-- {
			locked[i].Unlock()
		}
	}
}

// rollbackPatches undoes applied patches in reverse order.
func (c *Client) rollbackPatches(applied []string, mutID uuid.UUID) {
	for i := len(applied) - 1; i >= 0; i-- {
		c.store.RollbackPatch(applied[i], mutID)
	}
}
