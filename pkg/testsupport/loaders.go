package testsupport

import (
	"context"
	"sync"
	"time"
)

// CountingLoader is a cache loader double that records how many times it
// was invoked. Use it to assert deduplication and cache-hit behavior.
type CountingLoader struct {
	mu    sync.Mutex
	calls int

	// Value is returned on success; Err, when set, is returned instead.
	Value any
	Err   error

	// Delay holds the loader open to widen race windows in tests.
	Delay time.Duration
}

// Load implements the loader contract.
func (l *CountingLoader) Load(ctx context.Context) (any, error) {
	l.mu.Lock()
	l.calls++
	l.mu.Unlock()

	if l.Delay > 0 {
		select {
		case <-time.After(l.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if l.Err != nil {
		return nil, l.Err
	}
	return l.Value, nil
}

// Calls returns the number of times Load ran.
func (l *CountingLoader) Calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

// SequenceLoader returns its values in order across successive calls,
// repeating the last one once exhausted. Use it to observe refetches
// landing new payloads.
type SequenceLoader struct {
	mu     sync.Mutex
	calls  int
	Values []any
}

// Load implements the loader contract.
func (l *SequenceLoader) Load(_ context.Context) (any, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	idx := l.calls
	l.calls++
	if idx >= len(l.Values) {
		idx = len(l.Values) - 1
	}
	return l.Values[idx], nil
}

// Calls returns the number of times Load ran.
func (l *SequenceLoader) Calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

// SnapshotRecorder collects subscriber callbacks and signals arrivals, so
// tests can wait for a specific published state without sleeping.
type SnapshotRecorder[T any] struct {
	mu   sync.Mutex
	seen []T
	wake chan struct{}
}

// NewSnapshotRecorder creates a recorder.
func NewSnapshotRecorder[T any]() *SnapshotRecorder[T] {
	return &SnapshotRecorder[T]{wake: make(chan struct{}, 64)}
}

// Record appends a value and signals any waiter.
func (r *SnapshotRecorder[T]) Record(v T) {
	r.mu.Lock()
	r.seen = append(r.seen, v)
	r.mu.Unlock()
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// All returns a copy of everything recorded so far.
func (r *SnapshotRecorder[T]) All() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]T(nil), r.seen...)
}

// WaitFor blocks until pred matches a recorded value or the timeout lapses.
// It returns the matching value and whether one was found.
func (r *SnapshotRecorder[T]) WaitFor(timeout time.Duration, pred func(T) bool) (T, bool) {
	deadline := time.After(timeout)
	for {
		r.mu.Lock()
		for _, v := range r.seen {
			if pred(v) {
				r.mu.Unlock()
				return v, true
			}
		}
		r.mu.Unlock()

		select {
		case <-r.wake:
		case <-deadline:
			var zero T
			return zero, false
		}
	}
}
