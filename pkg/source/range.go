package source

import (
	"sync/atomic"

	"github.com/fluxcore/reactor/pkg/reactive"
)

// Range returns a Publisher emitting start, start+1, ..., start+count-1,
// decrementing demand per emission with a fast path when demand has
// saturated at reactive.Unbounded.
func Range(start int64, count uint64) reactive.Publisher[int64] {
	return &rangePublisher{start: start, count: count}
}

type rangePublisher struct {
	start int64
	count uint64
}

func (p *rangePublisher) Subscribe(s reactive.Subscriber[int64]) {
	sub := &rangeSubscription{
		consumer: s,
		start:    p.start,
		count:    p.count,
	}
	s.OnSubscribe(sub)
}

type rangeSubscription struct {
	consumer reactive.Subscriber[int64]

	start    int64
	count    uint64
	emitted  uint64
	demand   reactive.Demand
	drain    reactive.DrainLoop
	done     atomic.Bool
}

func (s *rangeSubscription) Request(n uint64) {
	if s.done.Load() {
		return
	}
	if n == 0 {
		s.terminateIllegalDemand()
		return
	}
	s.demand.Add(n)
	s.drain.Drain(s.emit)
}

func (s *rangeSubscription) terminateIllegalDemand() {
	if s.done.CompareAndSwap(false, true) {
		s.consumer.OnError(reactive.ErrIllegalDemand)
	}
}

func (s *rangeSubscription) emit() {
	unbounded := s.demand.IsUnbounded()
	for s.emitted < s.count {
		if s.done.Load() {
			return
		}
		if !unbounded && s.demand.Get() == 0 {
			return
		}
		v := s.start + int64(s.emitted)
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

func (s *rangeSubscription) Cancel() {
	s.done.Store(true)
}
