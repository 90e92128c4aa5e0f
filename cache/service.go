package cache

import (
	"context"
	"time"
)

// Status describes where an entry is in its fetch lifecycle.
type Status int

// Entry statuses. An entry additionally carries a stale flag, which is
// orthogonal: a stale entry keeps its last successful payload while a
// refetch is pending or deferred.
const (
	StatusIdle Status = iota
	StatusLoading
	StatusSuccess
	StatusError
)

// String returns the lowercase name of the status.
func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Snapshot is the published view of a cache entry, handed to subscribers on
// every state change. Data holds the last successful payload even while
// Status is error (stale-while-error) or loading (stale-while-revalidate).
type Snapshot struct {
	Key           string
	Data          any
	Err           error
	Status        Status
	Stale         bool
	LastFetchedAt time.Time
}

// Loader fetches the authoritative value for one query key from the source
// of truth, typically an HTTP call against the backend API. It must return
// a *NetworkError or *HTTPError on failure so the cache can classify it.
type Loader func(ctx context.Context) (any, error)

// TypedLoader is the generic form of Loader used with the typed wrappers.
type TypedLoader[T any] func(ctx context.Context) (T, error)

// Mutator performs the network side of a mutation and returns the server's
// response payload.
type Mutator func(ctx context.Context) (any, error)

// KeySerializer builds a deterministic query key from an endpoint path and
// its parameters. Parameter order must not affect the key.
type KeySerializer interface {
	SerializeKey(endpoint string, params any) (string, error)
}

// SubscribeFn receives a Snapshot whenever the observed entry's published
// state changes.
type SubscribeFn func(Snapshot)
