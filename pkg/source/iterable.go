package source

import (
	"sync/atomic"

	"github.com/fluxcore/reactor/pkg/reactive"
)

// Iterator pulls values one at a time. HasNext/Next are only ever called
// from within this source's drain loop, so implementations need no
// internal synchronization.
type Iterator[T any] interface {
	HasNext() (bool, error)
	Next() (T, error)
}

// Sequence is a restartable lazy source of Iterators: each Subscribe to
// FromIterable calls NewIterator exactly once to get an independent
// cursor, so the same Sequence can be subscribed to more than once.
type Sequence[T any] interface {
	NewIterator() (Iterator[T], error)
}

// Releaser is implemented by Iterators that hold a resource (a file
// handle, a cursor) that must be released on Cancel or exhaustion.
type Releaser interface {
	Release()
}

// FromIterable returns a Publisher that pulls from seq under demand. An
// error from the sequence (building the iterator, HasNext, or Next)
// becomes OnError. On Cancel, the iterator is released if it implements
// Releaser.
func FromIterable[T any](seq Sequence[T]) reactive.Publisher[T] {
	return &iterablePublisher[T]{seq: seq}
}

type iterablePublisher[T any] struct {
	seq Sequence[T]
}

func (p *iterablePublisher[T]) Subscribe(s reactive.Subscriber[T]) {
	it, err := p.seq.NewIterator()
	sub := &iterableSubscription[T]{consumer: s, it: it}
	if err != nil {
		// Marked done before OnSubscribe so a Request made from within it
		// never reaches the missing iterator.
		sub.done.Store(true)
	}
	s.OnSubscribe(sub)
	if err != nil {
		s.OnError(reactive.Wrap(reactive.OperatorError, err))
	}
}

type iterableSubscription[T any] struct {
	consumer reactive.Subscriber[T]
	it       Iterator[T]
	demand   reactive.Demand
	drain    reactive.DrainLoop
	done     atomic.Bool
}

func (s *iterableSubscription[T]) Request(n uint64) {
	if s.done.Load() {
		return
	}
	if n == 0 {
		if s.done.CompareAndSwap(false, true) {
			s.release()
			s.consumer.OnError(reactive.ErrIllegalDemand)
		}
		return
	}
	s.demand.Add(n)
	s.drain.Drain(s.emit)
}

func (s *iterableSubscription[T]) emit() {
	unbounded := s.demand.IsUnbounded()
	for {
		if s.done.Load() {
			return
		}
		if !unbounded && s.demand.Get() == 0 {
			return
		}
		hasNext, err := s.it.HasNext()
		if err != nil {
			s.fail(err)
			return
		}
		if !hasNext {
			if s.done.CompareAndSwap(false, true) {
				s.release()
				s.consumer.OnComplete()
			}
			return
		}
		v, err := s.it.Next()
		if err != nil {
			s.fail(err)
			return
		}
		if !unbounded {
			s.demand.Consume()
		}
		s.consumer.OnNext(v)
	}
}

func (s *iterableSubscription[T]) fail(err error) {
	if s.done.CompareAndSwap(false, true) {
		s.release()
		s.consumer.OnError(reactive.Wrap(reactive.OperatorError, err))
	}
}

func (s *iterableSubscription[T]) release() {
	if r, ok := s.it.(Releaser); ok {
		r.Release()
	}
}

func (s *iterableSubscription[T]) Cancel() {
	if s.done.CompareAndSwap(false, true) {
		s.release()
	}
}
