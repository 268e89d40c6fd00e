// Package source provides the primitive emitters: empty, just, range,
// error, never, and from-iterable. Every source honors the drain-loop
// discipline so re-entrant demand from within OnNext/OnComplete never
// recurses the call stack.
package source

import "github.com/fluxcore/reactor/pkg/reactive"

// Empty returns a Publisher that, once subscribed, delivers OnSubscribe
// and then OnComplete — deferred until after OnSubscribe returns,
// regardless of downstream demand (demand is irrelevant since no Next is
// ever emitted).
func Empty[T any]() reactive.Publisher[T] {
	return &emptyPublisher[T]{}
}

type emptyPublisher[T any] struct{}

func (p *emptyPublisher[T]) Subscribe(s reactive.Subscriber[T]) {
	sub := &emptySubscription[T]{consumer: s}
	s.OnSubscribe(sub)
	sub.complete()
}

type emptySubscription[T any] struct {
	consumer reactive.Subscriber[T]
	done     bool
}

func (s *emptySubscription[T]) complete() {
	if s.done {
		return
	}
	s.done = true
	s.consumer.OnComplete()
}

func (s *emptySubscription[T]) Request(n uint64) {
	// No values are ever emitted, so any demand is accepted and ignored.
	// n <= 0 would normally be illegal, but there is nothing downstream
	// left to terminate once the stream has already completed, and
	// OnComplete already fired synchronously from Subscribe.
}

func (s *emptySubscription[T]) Cancel() {
	s.done = true
}
