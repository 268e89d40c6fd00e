package source

import (
	"sync/atomic"

	"github.com/fluxcore/reactor/pkg/reactive"
)

// Just returns a Publisher that, on the first Request(n >= 1), emits each
// of values in order followed by OnComplete. A single value behaves like
// Java reactor's Mono.just; multiple values behave like a bounded,
// range-style emitter over the given slice.
func Just[T any](values ...T) reactive.Publisher[T] {
	return &justPublisher[T]{values: values}
}

type justPublisher[T any] struct {
	values []T
}

func (p *justPublisher[T]) Subscribe(s reactive.Subscriber[T]) {
	sub := &justSubscription[T]{consumer: s, values: p.values}
	s.OnSubscribe(sub)
}

type justSubscription[T any] struct {
	consumer reactive.Subscriber[T]
	values   []T
	emitted  int
	demand   reactive.Demand
	drain    reactive.DrainLoop
	done     atomic.Bool
}

func (s *justSubscription[T]) Request(n uint64) {
	if s.done.Load() {
		return
	}
	if n == 0 {
		if s.done.CompareAndSwap(false, true) {
			s.consumer.OnError(reactive.ErrIllegalDemand)
		}
		return
	}
	s.demand.Add(n)
	s.drain.Drain(s.emit)
}

func (s *justSubscription[T]) emit() {
	unbounded := s.demand.IsUnbounded()
	for s.emitted < len(s.values) {
		if s.done.Load() {
			return
		}
		if !unbounded && s.demand.Get() == 0 {
			return
		}
		v := s.values[s.emitted]
		s.emitted++
		if !unbounded {
			s.demand.Consume()
		}
		s.consumer.OnNext(v)
		if s.done.Load() {
			return
		}
	}
	if s.done.CompareAndSwap(false, true) {
		s.consumer.OnComplete()
	}
}

func (s *justSubscription[T]) Cancel() {
	s.done.Store(true)
}
