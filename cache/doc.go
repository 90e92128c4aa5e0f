// Package cache defines the shared vocabulary of the query cache: query key
// serialization, entry snapshots, tags, the error taxonomy, and configuration.
//
// # Overview
//
// This package is the leaf of the module. It exports:
//
//   - KeySerializer: builds deterministic query keys from an endpoint path
//     and its parameters
//   - Snapshot and Status: the published view of a cache entry
//   - Tag and Kind: typed invalidation labels with a closed kind set
//   - Config: garbage-collection TTL, freshness window, key limits
//   - NetworkError, HTTPError, ConfigError: the error taxonomy
//
// The orchestration layer lives in the querycache package; the entry store
// lives in internal/querystore.
//
// # Key Serialization Strategy
//
// The default key serializer walks parameters with reflection:
//
//   - Map keys and struct fields: sorted lexicographically, so parameter
//     order never affects the key
//   - Nil pointers, nil interfaces, nil maps, nil slices: omitted, so a
//     params value with a nil member keys identically to one without it
//   - Types implementing encoding.TextMarshaler (time.Time, uuid.UUID):
//     their canonical text form
//   - Slices and arrays: ordered elements (element order is significant)
//   - Funcs, channels, complex numbers, circular references: rejected with
//     a ConfigError at call time
//
// Serialized parameter segments longer than the configured inline limit are
// collapsed to an xxhash digest of the canonical form, keeping keys bounded
// without losing determinism.
//
// # Error Taxonomy
//
// ConfigError marks programming errors (bad params, unregistered tag kinds,
// invalid configuration) and fails loudly at call time. NetworkError and
// HTTPError describe fetch failures; they are stored on the affected entry
// and surfaced to subscribers while the previous successful payload, if
// any, remains available for stale-while-error rendering.
//
// # See Also
//
// For query, mutation, and subscription orchestration, see the querycache
// package. For container wiring, see pkg/di.
package cache
