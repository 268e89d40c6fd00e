// Package testutil provides a recording Subscriber for this module's own
// test suites, the Go analogue of Java reactor's AssertSubscriber/
// StepVerifier seen in the original_source test files this module's
// operators are grounded on. It is internal: consumers of the public API
// never see it.
package testutil

import (
	"sync"

	"github.com/fluxcore/reactor/pkg/reactive"
)

// Recorder subscribes to a Publisher and records every signal it receives,
// in order, for assertion afterward. InitialRequest controls what is
// requested synchronously from within OnSubscribe; leave it at zero to
// drive demand manually via Request.
type Recorder[T any] struct {
	InitialRequest uint64

	mu        sync.Mutex
	sub       reactive.Subscription
	values    []T
	err       error
	completed bool
	cancelled bool
}

// NewRecorder returns a Recorder that requests nothing until Request is
// called explicitly — the Go equivalent of AssertSubscriber.create(0L).
func NewRecorder[T any]() *Recorder[T] {
	return &Recorder[T]{}
}

// NewUnboundedRecorder returns a Recorder that requests reactive.Unbounded
// as soon as it is subscribed — the Go equivalent of the no-arg
// AssertSubscriber.create().
func NewUnboundedRecorder[T any]() *Recorder[T] {
	return &Recorder[T]{InitialRequest: reactive.Unbounded}
}

func (r *Recorder[T]) OnSubscribe(s reactive.Subscription) {
	r.mu.Lock()
	r.sub = s
	initial := r.InitialRequest
	r.mu.Unlock()
	if initial > 0 {
		s.Request(initial)
	}
}

func (r *Recorder[T]) OnNext(v T) {
	r.mu.Lock()
	r.values = append(r.values, v)
	r.mu.Unlock()
}

func (r *Recorder[T]) OnError(e error) {
	r.mu.Lock()
	r.err = e
	r.mu.Unlock()
}

func (r *Recorder[T]) OnComplete() {
	r.mu.Lock()
	r.completed = true
	r.mu.Unlock()
}

// Request forwards n to the Subscription this Recorder received via
// OnSubscribe. It panics if called before OnSubscribe — a misused test,
// not a stream condition.
func (r *Recorder[T]) Request(n uint64) {
	r.mu.Lock()
	sub := r.sub
	r.mu.Unlock()
	if sub == nil {
		panic("testutil: Request called before OnSubscribe")
	}
	sub.Request(n)
}

// Cancel forwards to the Subscription.
func (r *Recorder[T]) Cancel() {
	r.mu.Lock()
	sub := r.sub
	r.cancelled = true
	r.mu.Unlock()
	if sub != nil {
		sub.Cancel()
	}
}

// Values returns a snapshot of every value recorded so far, in order.
func (r *Recorder[T]) Values() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]T, len(r.values))
	copy(out, r.values)
	return out
}

// Err returns the error recorded via OnError, or nil.
func (r *Recorder[T]) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Completed reports whether OnComplete was recorded.
func (r *Recorder[T]) Completed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.completed
}

// Cancelled reports whether Cancel was called on this Recorder.
func (r *Recorder[T]) Cancelled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancelled
}
