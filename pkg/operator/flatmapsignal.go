package operator

import (
	"sync"
	"sync/atomic"

	"github.com/fluxcore/reactor/pkg/reactive"
)

// FlatMapSignal returns a Publisher that, like MapSignal, replaces each of
// the upstream's Next/Error/Complete signals — but with an inner
// Publisher rather than a value. Inner publishers produced for upstream
// values are subscribed strictly in arrival order, one at a time, rather
// than interleaved (see DESIGN.md); this is what the pinned
// synchronous-case tests require. The terminal hook's inner subscribes
// only after every value-derived inner has terminated.
func FlatMapSignal[T, U any](
	upstream reactive.Publisher[T],
	fN func(T) (reactive.Publisher[U], error),
	fE func(error) (reactive.Publisher[U], error),
	fC func() (reactive.Publisher[U], error),
) (reactive.Publisher[U], error) {
	if upstream == nil {
		return nil, reactive.Newf(reactive.NullArgument, "flat-map-signal: upstream publisher is nil")
	}
	if fN == nil && fE == nil && fC == nil {
		return nil, reactive.Newf(reactive.IllegalArgument, "flat-map-signal: at least one of onNext/onError/onComplete must be non-nil")
	}
	return &flatMapSignalPublisher[T, U]{upstream: upstream, fN: fN, fE: fE, fC: fC}, nil
}

type flatMapSignalPublisher[T, U any] struct {
	upstream reactive.Publisher[T]
	fN       func(T) (reactive.Publisher[U], error)
	fE       func(error) (reactive.Publisher[U], error)
	fC       func() (reactive.Publisher[U], error)
}

func (p *flatMapSignalPublisher[T, U]) Subscribe(consumer reactive.Subscriber[U]) {
	sub := &flatMapSignalSubscription[T, U]{
		consumer: consumer,
		fN:       p.fN,
		fE:       p.fE,
		fC:       p.fC,
	}
	consumer.OnSubscribe(sub)
	p.upstream.Subscribe(sub)
}

// flatMapItem is one pending unit of work in the strictly-ordered merge
// queue: either a value-derived inner producer, or the terminal action
// (an inner producer from fE/fC, or a raw pass-through error/complete
// when that hook is nil).
type flatMapItem[U any] struct {
	producer      func() (reactive.Publisher[U], error)
	final         bool // producer is the terminal hook's inner: finish downstream once it completes
	finalComplete bool
	finalErr      error
}

type flatMapSignalSubscription[T, U any] struct {
	consumer reactive.Subscriber[U]
	fN       func(T) (reactive.Publisher[U], error)
	fE       func(error) (reactive.Publisher[U], error)
	fC       func() (reactive.Publisher[U], error)

	upstreamSub reactive.Subscription

	mu            sync.Mutex
	queue         []flatMapItem[U]
	busy          bool
	activeInner   reactive.Subscription
	pendingForward reactive.Demand

	done          atomic.Bool
	upstreamEnded atomic.Bool
}

func (s *flatMapSignalSubscription[T, U]) OnSubscribe(sub reactive.Subscription) {
	s.upstreamSub = sub
	// The operator's own backpressure is applied downstream, at the
	// currently-active inner; the outer subscription just needs enough
	// values to keep the merge queue fed, so it requests everything
	// upfront. No pack repo ships an injectable "outer prefetch" knob to
	// adopt instead, so this is a deliberate simplification (see
	// DESIGN.md).
	sub.Request(reactive.Unbounded)
}

func (s *flatMapSignalSubscription[T, U]) OnNext(v T) {
	if s.done.Load() {
		return
	}
	if s.fN == nil {
		return
	}
	s.enqueue(flatMapItem[U]{producer: func() (reactive.Publisher[U], error) {
		return callMapper(s.fN, v)
	}})
}

func (s *flatMapSignalSubscription[T, U]) OnError(e error) {
	if s.done.Load() || s.upstreamEnded.Swap(true) {
		return
	}
	if s.fE == nil {
		s.enqueue(flatMapItem[U]{finalErr: reactive.Wrap(reactive.UpstreamError, e)})
		return
	}
	s.enqueue(flatMapItem[U]{final: true, producer: func() (reactive.Publisher[U], error) {
		return callMapper(s.fE, e)
	}})
}

func (s *flatMapSignalSubscription[T, U]) OnComplete() {
	if s.done.Load() || s.upstreamEnded.Swap(true) {
		return
	}
	if s.fC == nil {
		s.enqueue(flatMapItem[U]{finalComplete: true})
		return
	}
	s.enqueue(flatMapItem[U]{final: true, producer: func() (reactive.Publisher[U], error) {
		return callMapper0(s.fC)
	}})
}

// enqueue appends item to the merge queue and, if nothing is currently
// being processed, becomes the goroutine that drives the queue forward.
func (s *flatMapSignalSubscription[T, U]) enqueue(item flatMapItem[U]) {
	s.mu.Lock()
	s.queue = append(s.queue, item)
	kick := !s.busy
	if kick {
		s.busy = true
	}
	s.mu.Unlock()
	if kick {
		s.advance()
	}
}

// advance processes exactly one queued item, then — for synchronous
// inners — the inner's OnComplete callback calls advance again before
// this call returns, so the whole queue drains in a single logical chain
// without holding a lock across user code.
func (s *flatMapSignalSubscription[T, U]) advance() {
	s.mu.Lock()
	if s.done.Load() {
		s.busy = false
		s.mu.Unlock()
		return
	}
	if len(s.queue) == 0 {
		s.busy = false
		s.mu.Unlock()
		return
	}
	item := s.queue[0]
	s.queue = s.queue[1:]
	s.activeInner = nil
	s.mu.Unlock()

	switch {
	case item.finalComplete:
		s.finish(func() { s.consumer.OnComplete() })
	case item.finalErr != nil:
		s.finish(func() { s.consumer.OnError(item.finalErr) })
	default:
		s.subscribeInner(item.producer, item.final)
	}
}

func (s *flatMapSignalSubscription[T, U]) subscribeInner(producer func() (reactive.Publisher[U], error), final bool) {
	inner, err := producer()
	if err != nil {
		s.finish(func() { s.consumer.OnError(reactive.Wrap(reactive.OperatorError, err)) })
		return
	}
	if inner == nil {
		s.finish(func() {
			s.consumer.OnError(reactive.Newf(reactive.NullArgument, "flat-map-signal: mapping returned a nil publisher"))
		})
		return
	}
	parts := &reactive.ConsumerParts[U]{
		OnSubscribe: func(innerSub reactive.Subscription) {
			s.mu.Lock()
			s.activeInner = innerSub
			s.mu.Unlock()
			if pending := s.pendingForward.TakeAll(); pending > 0 {
				innerSub.Request(pending)
			}
		},
		OnNext: func(v U) {
			s.consumer.OnNext(v)
		},
		OnError: func(e error) {
			s.finish(func() { s.consumer.OnError(reactive.Wrap(reactive.InnerError, e)) })
		},
		OnComplete: func() {
			if final {
				s.finish(func() { s.consumer.OnComplete() })
				return
			}
			s.advance()
		},
	}
	inner.Subscribe(parts.Build())
}

// finish delivers the single terminal signal downstream and tears down
// the chain. It is only ever reached from within advance's single logical
// chain, so no extra locking is needed around the done check itself
// beyond the atomic guard.
func (s *flatMapSignalSubscription[T, U]) finish(deliver func()) {
	if s.done.CompareAndSwap(false, true) {
		deliver()
	}
}

func (s *flatMapSignalSubscription[T, U]) Request(n uint64) {
	if s.done.Load() {
		return
	}
	if n == 0 {
		if s.done.CompareAndSwap(false, true) {
			s.cancelUpstreamAndInner()
			s.consumer.OnError(reactive.ErrIllegalDemand)
		}
		return
	}
	s.mu.Lock()
	active := s.activeInner
	s.mu.Unlock()
	if active != nil {
		active.Request(n)
	} else {
		s.pendingForward.Add(n)
	}
}

func (s *flatMapSignalSubscription[T, U]) Cancel() {
	if s.done.CompareAndSwap(false, true) {
		s.cancelUpstreamAndInner()
	}
}

func (s *flatMapSignalSubscription[T, U]) cancelUpstreamAndInner() {
	if s.upstreamSub != nil {
		s.upstreamSub.Cancel()
	}
	s.mu.Lock()
	active := s.activeInner
	s.mu.Unlock()
	if active != nil {
		active.Cancel()
	}
}
