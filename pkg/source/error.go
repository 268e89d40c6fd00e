package source

import "github.com/fluxcore/reactor/pkg/reactive"

// Error returns a Publisher that emits OnSubscribe then OnError(err).
func Error[T any](err error) reactive.Publisher[T] {
	return &errorPublisher[T]{err: err}
}

type errorPublisher[T any] struct {
	err error
}

func (p *errorPublisher[T]) Subscribe(s reactive.Subscriber[T]) {
	sub := &errorSubscription[T]{}
	s.OnSubscribe(sub)
	if !sub.done {
		sub.done = true
		s.OnError(reactive.Wrap(reactive.UpstreamError, p.err))
	}
}

type errorSubscription[T any] struct {
	done bool
}

func (s *errorSubscription[T]) Request(n uint64) {}

func (s *errorSubscription[T]) Cancel() {
	s.done = true
}
