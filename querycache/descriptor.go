package querycache

import (
	"github.com/goliatone/go-query-cache/cache"
)

// QueryDescriptor declares a cacheable read: the endpoint it hits, the
// parameters that shape it, and the tags it provides for invalidation.
type QueryDescriptor struct {
	Endpoint string
	Params   any
	Tags     []cache.Tag
}

// Validate checks the descriptor for programming errors.
func (d QueryDescriptor) Validate() error {
	if d.Endpoint == "" {
		return &cache.ConfigError{Field: "QueryDescriptor.Endpoint", Message: "must not be empty"}
	}
	return cache.ValidateTags(d.Tags)
}

// Patch applies a speculative local change to one cached entry. Apply must
// return a new payload value rather than mutating the one it receives;
// cached payloads are immutable by contract, which is what makes exact
// rollback possible.
type Patch struct {
	Key   string
	Apply func(any) any
}

// MutationDescriptor declares a write: the endpoint and method, the request
// body, the tags the mutation invalidates on success, and optional
// optimistic patches applied before the network call. Descriptors are
// transient; they exist only for the duration of one Mutate call.
type MutationDescriptor struct {
	Endpoint        string
	Method          string
	Body            any
	InvalidatesTags []cache.Tag
	Patches         []Patch
}

// Validate checks the descriptor for programming errors.
func (d MutationDescriptor) Validate() error {
	if d.Endpoint == "" {
		return &cache.ConfigError{Field: "MutationDescriptor.Endpoint", Message: "must not be empty"}
	}
	if err := cache.ValidateTags(d.InvalidatesTags); err != nil {
		return err
	}
	for _, p := range d.Patches {
		if p.Key == "" {
			return &cache.ConfigError{Field: "MutationDescriptor.Patches", Message: "patch key must not be empty"}
		}
		if p.Apply == nil {
			return &cache.ConfigError{Field: "MutationDescriptor.Patches", Message: "patch " + p.Key + " has no apply function"}
		}
	}
	return nil
}
