package source

import (
	"sync/atomic"

	"github.com/fluxcore/reactor/pkg/reactive"
)

// Never returns a Publisher that emits OnSubscribe and then nothing,
// ever: no values, no terminal signal — except for an illegal Request(n)
// with n <= 0, which still errors the stream like every other source.
func Never[T any]() reactive.Publisher[T] {
	return &neverPublisher[T]{}
}

type neverPublisher[T any] struct{}

func (p *neverPublisher[T]) Subscribe(s reactive.Subscriber[T]) {
	s.OnSubscribe(&neverSubscription[T]{consumer: s})
}

type neverSubscription[T any] struct {
	consumer reactive.Subscriber[T]
	done     atomic.Bool
}

func (s *neverSubscription[T]) Request(n uint64) {
	if s.done.Load() {
		return
	}
	if n == 0 && s.done.CompareAndSwap(false, true) {
		s.consumer.OnError(reactive.ErrIllegalDemand)
	}
}

func (s *neverSubscription[T]) Cancel() {
	s.done.Store(true)
}
