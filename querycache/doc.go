// Package querycache orchestrates the client-side query cache: deduplicated
// fetches, tag-based invalidation, optimistic mutations, and subscriptions.
//
// # Overview
//
// The Client is the single entry point. Reads go through Query or
// Subscribe, writes through Mutate. Queries declare the tags they provide;
// mutations declare the tags they invalidate. When a mutation succeeds,
// every entry indexed under its tags is marked stale: entries with live
// subscribers refetch immediately with their original loader, cold entries
// refetch lazily the next time someone subscribes.
//
// # Basic Usage
//
//	client, err := querycache.NewClient(cache.DefaultConfig())
//	if err != nil {
//		return err
//	}
//
//	region, err := querycache.Query(ctx, client, querycache.QueryDescriptor{
//		Endpoint: "/regions/kathmandu",
//		Tags:     []cache.Tag{{Kind: cache.KindRegion, ID: "kathmandu"}},
//	}, fetchRegion)
//
// # Optimistic Mutations
//
// A mutation may carry patches that are applied to cached entries before
// the network call, so the UI reacts immediately:
//
//	key, _ := client.KeyFor("/regions/kathmandu", nil)
//	_, err = client.Mutate(ctx, querycache.MutationDescriptor{
//		Endpoint:        "/regions/kathmandu/like",
//		Method:          "POST",
//		InvalidatesTags: []cache.Tag{{Kind: cache.KindRegion, ID: "kathmandu"}},
//		Patches: []querycache.Patch{{Key: key, Apply: toggleLiked}},
//	}, postLike)
//
// If the mutator fails, every patched entry is restored to its pre-patch
// snapshot exactly; the error is returned to the caller, typed as
// *cache.NetworkError or *cache.HTTPError. Mutations on the same entry are
// serialized in call order, so overlapping toggles settle like sequential
// ones.
//
// # Deduplication and Freshness
//
// Concurrent fetches for one key share a single loader invocation. A
// successful entry satisfies reads without a network call until it is
// invalidated or its freshness window (Config.FreshFor) lapses. Entries
// with no subscribers are evicted after Config.GCTTL.
//
// # Concurrency
//
// All cache state changes happen under the store's mutex and run to
// completion before subscriber callbacks fire; the only suspension point is
// the network call itself. Subscriber callbacks are invoked synchronously
// after each state change, outside the lock.
//
// # See Also
//
// For keys, tags, errors, and configuration, see the cache package. For
// container wiring, see pkg/di.
package querycache
