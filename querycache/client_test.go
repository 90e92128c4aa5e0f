package querycache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-query-cache/cache"
	"github.com/goliatone/go-query-cache/pkg/testsupport"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	c, err := NewClient(cache.DefaultConfig())
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return c
}

func regionDesc(id string) QueryDescriptor {
	return QueryDescriptor{
		Endpoint: "/regions/" + id,
		Tags:     []cache.Tag{{Kind: cache.KindRegion, ID: id}},
	}
}

const waitTimeout = 2 * time.Second

func TestClient_Query_CacheHit(t *testing.T) {
	c := newTestClient(t)
	loader := &testsupport.CountingLoader{Value: "Kathmandu"}
	desc := regionDesc("kathmandu")

	got, err := c.Query(context.Background(), desc, loader.Load)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if got != "Kathmandu" {
		t.Errorf("Query() = %v, want Kathmandu", got)
	}

	// Second read is served from cache.
	if _, err := c.Query(context.Background(), desc, loader.Load); err != nil {
		t.Fatalf("second Query() error = %v", err)
	}
	if calls := loader.Calls(); calls != 1 {
		t.Errorf("loader calls = %d, want 1", calls)
	}
}

func TestClient_Query_DeduplicatesConcurrentFetches(t *testing.T) {
	c := newTestClient(t)
	loader := &testsupport.CountingLoader{Value: "Pokhara", Delay: 50 * time.Millisecond}
	desc := regionDesc("pokhara")

	var wg sync.WaitGroup
	results := make([]any, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.Query(context.Background(), desc, loader.Load)
		}(i)
	}
	wg.Wait()

	for i := 0; i < 2; i++ {
		if errs[i] != nil {
			t.Fatalf("Query() %d error = %v", i, errs[i])
		}
		if results[i] != "Pokhara" {
			t.Errorf("Query() %d = %v, want the shared resolution", i, results[i])
		}
	}
	if calls := loader.Calls(); calls != 1 {
		t.Errorf("loader calls = %d, want exactly 1 for concurrent fetches", calls)
	}
}

func TestClient_Query_WrapsUntypedErrors(t *testing.T) {
	c := newTestClient(t)
	loader := &testsupport.CountingLoader{Err: errors.New("connection reset")}

	_, err := c.Query(context.Background(), regionDesc("kathmandu"), loader.Load)
	var netErr *cache.NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("Query() error = %T, want *cache.NetworkError", err)
	}
	if !cache.Retryable(err) {
		t.Error("network errors must be retryable")
	}
}

func TestClient_Query_KeepsTypedErrors(t *testing.T) {
	c := newTestClient(t)
	httpErr := &cache.HTTPError{Endpoint: "/regions/kathmandu", Status: 422, Body: "bad payload"}
	loader := &testsupport.CountingLoader{Err: httpErr}

	_, err := c.Query(context.Background(), regionDesc("kathmandu"), loader.Load)
	var got *cache.HTTPError
	if !errors.As(err, &got) || got.Status != 422 {
		t.Fatalf("Query() error = %v, want the 422 preserved", err)
	}
	if cache.Retryable(err) {
		t.Error("validation errors must not be retryable")
	}
}

func TestClient_Query_StaleWhileError(t *testing.T) {
	c := newTestClient(t)
	desc := regionDesc("kathmandu")

	var calls int
	var mu sync.Mutex
	loader := func(context.Context) (any, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls > 1 {
			return nil, &cache.HTTPError{Endpoint: desc.Endpoint, Status: 503}
		}
		return "Kathmandu", nil
	}

	if _, err := c.Query(context.Background(), desc, loader); err != nil {
		t.Fatalf("seed Query() error = %v", err)
	}
	if err := c.InvalidateTags(desc.Tags); err != nil {
		t.Fatalf("InvalidateTags() error = %v", err)
	}

	// The refetch fails; the last good payload must survive.
	if _, err := c.Query(context.Background(), desc, loader); err == nil {
		t.Fatal("Query() after failing refetch expected error")
	}

	key, err := c.KeyFor(desc.Endpoint, desc.Params)
	if err != nil {
		t.Fatalf("KeyFor() error = %v", err)
	}
	snap, ok := c.Get(key)
	if !ok {
		t.Fatal("entry missing")
	}
	if snap.Status != cache.StatusError {
		t.Errorf("Status = %v, want error", snap.Status)
	}
	if snap.Data != "Kathmandu" {
		t.Errorf("Data = %v, want last-known-good payload for stale-while-error", snap.Data)
	}
}

func TestClient_InvalidationRefetchErrorKeepsEndpoint(t *testing.T) {
	c := newTestClient(t)
	desc := QueryDescriptor{
		Endpoint: "/regions/kathmandu",
		Params:   map[string]any{"expand": "media"},
		Tags:     []cache.Tag{{Kind: cache.KindRegion, ID: "kathmandu"}},
	}

	var mu sync.Mutex
	var calls int
	loader := func(context.Context) (any, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls > 1 {
			return nil, errors.New("connection reset")
		}
		return "Kathmandu", nil
	}

	rec := testsupport.NewSnapshotRecorder[cache.Snapshot]()
	sub, err := c.Subscribe(context.Background(), desc, loader, rec.Record)
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	defer sub.Unsubscribe()

	if _, ok := rec.WaitFor(waitTimeout, func(s cache.Snapshot) bool { return s.Status == cache.StatusSuccess }); !ok {
		t.Fatal("initial fetch never completed")
	}

	if err := c.InvalidateTags(desc.Tags); err != nil {
		t.Fatalf("InvalidateTags() error = %v", err)
	}

	// The background refetch fails; the wrapped error must name the
	// endpoint, not the serialized query key.
	snap, ok := rec.WaitFor(waitTimeout, func(s cache.Snapshot) bool { return s.Status == cache.StatusError })
	if !ok {
		t.Fatal("refetch failure never published")
	}
	var netErr *cache.NetworkError
	if !errors.As(snap.Err, &netErr) {
		t.Fatalf("Err = %T, want *cache.NetworkError", snap.Err)
	}
	if netErr.Endpoint != desc.Endpoint {
		t.Errorf("Endpoint = %q, want %q", netErr.Endpoint, desc.Endpoint)
	}
}

func TestClient_Subscribe_PublishesLoadingThenSuccess(t *testing.T) {
	c := newTestClient(t)
	loader := &testsupport.CountingLoader{Value: "Kathmandu"}
	rec := testsupport.NewSnapshotRecorder[cache.Snapshot]()

	sub, err := c.Subscribe(context.Background(), regionDesc("kathmandu"), loader.Load, rec.Record)
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	defer sub.Unsubscribe()

	success, ok := rec.WaitFor(waitTimeout, func(s cache.Snapshot) bool {
		return s.Status == cache.StatusSuccess
	})
	if !ok {
		t.Fatal("never observed a success snapshot")
	}
	if success.Data != "Kathmandu" {
		t.Errorf("Data = %v, want Kathmandu", success.Data)
	}

	all := rec.All()
	if len(all) < 2 {
		t.Fatalf("recorded %d snapshots, want loading then success", len(all))
	}
	if all[0].Status != cache.StatusLoading {
		t.Errorf("first published status = %v, want loading before success", all[0].Status)
	}
}

func TestClient_Subscribe_ReuseWithinGCWindow(t *testing.T) {
	c := newTestClient(t)
	loader := &testsupport.CountingLoader{Value: "Kathmandu"}
	rec := testsupport.NewSnapshotRecorder[cache.Snapshot]()
	desc := regionDesc("kathmandu")

	sub, err := c.Subscribe(context.Background(), desc, loader.Load, rec.Record)
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if _, ok := rec.WaitFor(waitTimeout, func(s cache.Snapshot) bool { return s.Status == cache.StatusSuccess }); !ok {
		t.Fatal("initial fetch never completed")
	}
	if err := sub.Unsubscribe(); err != nil {
		t.Fatalf("Unsubscribe() error = %v", err)
	}

	// Rapid navigation back: same query resubscribed well within the
	// default 5 minute GC TTL.
	sub2, err := c.Subscribe(context.Background(), desc, loader.Load, func(cache.Snapshot) {})
	if err != nil {
		t.Fatalf("resubscribe error = %v", err)
	}
	defer sub2.Unsubscribe()

	snap, ok := sub2.Current()
	if !ok || snap.Status != cache.StatusSuccess || snap.Data != "Kathmandu" {
		t.Errorf("Current() = (%+v, %v), want the cached payload", snap, ok)
	}
	if calls := loader.Calls(); calls != 1 {
		t.Errorf("loader calls = %d, want 1 (zero network calls on resubscribe)", calls)
	}
}

func TestClient_Prefetch(t *testing.T) {
	c := newTestClient(t)
	loader := &testsupport.CountingLoader{Value: "Pokhara"}
	desc := regionDesc("pokhara")

	if err := c.Prefetch(context.Background(), desc, loader.Load); err != nil {
		t.Fatalf("Prefetch() error = %v", err)
	}
	if _, err := c.Query(context.Background(), desc, loader.Load); err != nil {
		t.Fatalf("Query() after Prefetch error = %v", err)
	}
	if calls := loader.Calls(); calls != 1 {
		t.Errorf("loader calls = %d, want 1", calls)
	}
}

func TestClient_InvalidateTags_RejectsUnregisteredKind(t *testing.T) {
	c := newTestClient(t)
	err := c.InvalidateTags([]cache.Tag{{Kind: cache.Kind("regon"), ID: "kathmandu"}})
	var cfgErr *cache.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("InvalidateTags() error = %T, want *cache.ConfigError", err)
	}
}

func TestClient_Query_RejectsBadParams(t *testing.T) {
	c := newTestClient(t)
	desc := QueryDescriptor{Endpoint: "/regions", Params: map[string]any{"cb": func() {}}}

	_, err := c.Query(context.Background(), desc, staticAnyLoader("x"))
	var cfgErr *cache.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("Query() error = %T, want *cache.ConfigError", err)
	}
}

func TestQuery_TypedWrapper(t *testing.T) {
	type region struct{ Name string }
	c := newTestClient(t)

	got, err := Query(context.Background(), c, regionDesc("kathmandu"), func(context.Context) (region, error) {
		return region{Name: "Kathmandu"}, nil
	})
	if err != nil {
		t.Fatalf("Query[T]() error = %v", err)
	}
	if got.Name != "Kathmandu" {
		t.Errorf("Query[T]() = %+v", got)
	}

	// The cached any payload converts back on a hit as well.
	again, err := Query(context.Background(), c, regionDesc("kathmandu"), func(context.Context) (region, error) {
		t.Fatal("loader must not run on a cache hit")
		return region{}, nil
	})
	if err != nil {
		t.Fatalf("cached Query[T]() error = %v", err)
	}
	if again.Name != "Kathmandu" {
		t.Errorf("cached Query[T]() = %+v", again)
	}
}

func TestClient_Reset(t *testing.T) {
	c := newTestClient(t)
	loader := &testsupport.CountingLoader{Value: 1}

	if _, err := c.Query(context.Background(), regionDesc("kathmandu"), loader.Load); err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	c.Reset()

	if st := c.Stats(); st.Entries != 0 || st.Tags != 0 {
		t.Errorf("Stats() after Reset = %+v, want empty", st)
	}
}

func staticAnyLoader(v any) cache.Loader {
	return func(context.Context) (any, error) { return v, nil }
}
