// Package operator implements map-signal (and its flat-map-signal
// sibling) and buffer, the dataflow core's two signal-transforming
// operators.
package operator

import (
	"fmt"
	"sync/atomic"

	"github.com/fluxcore/reactor/pkg/reactive"
)

// MapSignal returns a Publisher that replaces each of the upstream's
// Next/Error/Complete signals with an optional emitted value. Any subset
// of fN, fE, fC may be nil, but not all three: that is an IllegalArgument
// raised synchronously, not via OnError, because it is a programmer error
// rather than a stream error.
func MapSignal[T, U any](
	upstream reactive.Publisher[T],
	fN func(T) (U, error),
	fE func(error) (U, error),
	fC func() (U, error),
) (reactive.Publisher[U], error) {
	if upstream == nil {
		return nil, reactive.Newf(reactive.NullArgument, "map-signal: upstream publisher is nil")
	}
	if fN == nil && fE == nil && fC == nil {
		return nil, reactive.Newf(reactive.IllegalArgument, "map-signal: at least one of onNext/onError/onComplete must be non-nil")
	}
	return &mapSignalPublisher[T, U]{upstream: upstream, fN: fN, fE: fE, fC: fC}, nil
}

type mapSignalPublisher[T, U any] struct {
	upstream reactive.Publisher[T]
	fN       func(T) (U, error)
	fE       func(error) (U, error)
	fC       func() (U, error)
}

func (p *mapSignalPublisher[T, U]) Subscribe(consumer reactive.Subscriber[U]) {
	sub := &mapSignalSubscription[T, U]{
		consumer: consumer,
		fN:       p.fN,
		fE:       p.fE,
		fC:       p.fC,
	}
	consumer.OnSubscribe(sub)
	p.upstream.Subscribe(sub)
}

// mapSignalSubscription plays both roles in the chain: it is the
// Subscription the downstream consumer holds, and the Subscriber the
// upstream publisher delivers signals to. Its state machine is
// Idle/Running/PendingTerminalValue/Done: `hasPending` plus `pendingVal`
// hold the PendingTerminalValue state; `done` is Done.
type mapSignalSubscription[T, U any] struct {
	consumer reactive.Subscriber[U]
	fN       func(T) (U, error)
	fE       func(error) (U, error)
	fC       func() (U, error)

	upstreamSub       reactive.Subscription
	upstreamReady     atomic.Bool
	upstreamTerminated atomic.Bool

	demand        reactive.Demand
	pendingForward reactive.Demand
	drain         reactive.DrainLoop

	done       atomic.Bool
	hasPending atomic.Bool
	pendingVal U
}

// OnSubscribe is called by the upstream publisher, not the downstream
// consumer (mapSignalSubscription implements reactive.Subscriber[T] to
// play that role).
func (s *mapSignalSubscription[T, U]) OnSubscribe(sub reactive.Subscription) {
	s.upstreamSub = sub
	s.upstreamReady.Store(true)
	if pending := s.pendingForward.TakeAll(); pending > 0 {
		sub.Request(pending)
	}
}

func (s *mapSignalSubscription[T, U]) OnNext(v T) {
	if s.done.Load() {
		return
	}
	if s.fN == nil {
		// Dropped, but the upstream's demand must be replenished so it
		// keeps flowing: the value is silently dropped while the request
		// to upstream is still acknowledged.
		if s.upstreamSub != nil {
			s.upstreamSub.Request(1)
		}
		return
	}
	out, err := callMapper(s.fN, v)
	if err != nil {
		s.failOperator(err)
		return
	}
	s.demand.Consume()
	s.consumer.OnNext(out)
}

func (s *mapSignalSubscription[T, U]) OnError(e error) {
	if s.done.Load() || s.upstreamTerminated.Swap(true) {
		return
	}
	if s.fE == nil {
		if s.done.CompareAndSwap(false, true) {
			s.consumer.OnError(e)
		}
		return
	}
	out, err := callMapper(s.fE, e)
	if err != nil {
		s.failOperator(err)
		return
	}
	s.publishPendingTerminalValue(out)
}

func (s *mapSignalSubscription[T, U]) OnComplete() {
	if s.done.Load() || s.upstreamTerminated.Swap(true) {
		return
	}
	if s.fC == nil {
		if s.done.CompareAndSwap(false, true) {
			s.consumer.OnComplete()
		}
		return
	}
	out, err := callMapper0(s.fC)
	if err != nil {
		s.failOperator(err)
		return
	}
	s.publishPendingTerminalValue(out)
}

func (s *mapSignalSubscription[T, U]) publishPendingTerminalValue(val U) {
	s.pendingVal = val
	s.hasPending.Store(true)
	s.drain.Drain(s.drainPending)
}

// drainPending delivers the held terminal value as soon as downstream
// demand allows.
func (s *mapSignalSubscription[T, U]) drainPending() {
	if s.done.Load() || !s.hasPending.Load() {
		return
	}
	if s.demand.Get() == 0 {
		return
	}
	s.demand.Consume()
	if s.done.CompareAndSwap(false, true) {
		s.consumer.OnNext(s.pendingVal)
		s.consumer.OnComplete()
	}
}

func (s *mapSignalSubscription[T, U]) failOperator(err error) {
	if s.done.CompareAndSwap(false, true) {
		if s.upstreamSub != nil {
			s.upstreamSub.Cancel()
		}
		s.consumer.OnError(reactive.Wrap(reactive.OperatorError, err))
	}
}

// Request is the downstream-facing half of the Subscription interface.
func (s *mapSignalSubscription[T, U]) Request(n uint64) {
	if s.done.Load() {
		return
	}
	if n == 0 {
		if s.done.CompareAndSwap(false, true) {
			if s.upstreamSub != nil {
				s.upstreamSub.Cancel()
			}
			s.consumer.OnError(reactive.ErrIllegalDemand)
		}
		return
	}
	s.demand.Add(n)
	if !s.upstreamTerminated.Load() {
		if s.upstreamReady.Load() {
			s.upstreamSub.Request(n)
		} else {
			s.pendingForward.Add(n)
		}
	}
	if s.hasPending.Load() {
		s.drain.Drain(s.drainPending)
	}
}

func (s *mapSignalSubscription[T, U]) Cancel() {
	if s.done.CompareAndSwap(false, true) {
		s.upstreamTerminated.Store(true)
		if s.upstreamSub != nil {
			s.upstreamSub.Cancel()
		}
	}
}

// callMapper invokes a one-argument user mapping function, converting a
// panic into an error so a misbehaving callback cannot crash the stream.
func callMapper[A, B any](f func(A) (B, error), a A) (b B, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in mapping function: %v", r)
		}
	}()
	return f(a)
}

func callMapper0[B any](f func() (B, error)) (b B, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in mapping function: %v", r)
		}
	}()
	return f()
}
