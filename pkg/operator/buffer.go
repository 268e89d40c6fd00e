package operator

import (
	"fmt"
	"sync"

	"github.com/fluxcore/reactor/pkg/reactive"
)

// Container accumulates the values of one buffer window. SliceContainer is
// the default, ArrayList-equivalent implementation; callers may supply
// their own via a custom factory.
type Container[T any] interface {
	Add(v T)
}

// SliceContainer is the default Container, backed by a plain slice.
type SliceContainer[T any] struct {
	Values []T
}

func (c *SliceContainer[T]) Add(v T) {
	c.Values = append(c.Values, v)
}

// NewSliceContainerFactory returns a factory suitable for Buffer's factory
// parameter, producing a fresh *SliceContainer[T] per window.
func NewSliceContainerFactory[T any]() func() (Container[T], error) {
	return func() (Container[T], error) {
		return &SliceContainer[T]{}, nil
	}
}

// Buffer returns a Publisher implementing windowed accumulation: size and
// skip control the three regimes (exact, larger-skip/gap,
// smaller-skip/overlap), and factory mints a fresh Container for every
// window opened.
//
// size == 0 or skip == 0 is an IllegalArgument, and a nil factory is a
// NullArgument, both raised synchronously here rather than via OnError,
// since they are invalid operator parameters rather than stream failures.
func Buffer[T any](
	upstream reactive.Publisher[T],
	size, skip uint32,
	factory func() (Container[T], error),
) (reactive.Publisher[Container[T]], error) {
	if upstream == nil {
		return nil, reactive.Newf(reactive.NullArgument, "buffer: upstream publisher is nil")
	}
	if factory == nil {
		return nil, reactive.Newf(reactive.NullArgument, "buffer: factory is nil")
	}
	if size == 0 {
		return nil, reactive.Newf(reactive.IllegalArgument, "buffer: size must be >= 1, got 0")
	}
	if skip == 0 {
		return nil, reactive.Newf(reactive.IllegalArgument, "buffer: skip must be >= 1, got 0")
	}
	return &bufferPublisher[T]{upstream: upstream, size: size, skip: skip, factory: factory}, nil
}

type bufferPublisher[T any] struct {
	upstream reactive.Publisher[T]
	size     uint32
	skip     uint32
	factory  func() (Container[T], error)
}

func (p *bufferPublisher[T]) Subscribe(consumer reactive.Subscriber[Container[T]]) {
	sub := &bufferSubscription[T]{
		consumer: consumer,
		size:     p.size,
		skip:     p.skip,
		factory:  p.factory,
	}
	consumer.OnSubscribe(sub)
	p.upstream.Subscribe(sub)
}

type windowState[T any] struct {
	container Container[T]
	count     uint32
}

// bufferSubscription is both the downstream-facing Subscription and the
// upstream-facing Subscriber[T]. All window/queue state is guarded by mu;
// it is read and mutated only while holding it. The factory and
// Container.Add run while mu is held; every call into the downstream
// consumer happens outside the lock so a re-entrant Request from within
// OnNext cannot deadlock.
type bufferSubscription[T any] struct {
	consumer reactive.Subscriber[Container[T]]
	size     uint32
	skip     uint32
	factory  func() (Container[T], error)

	upstreamSub reactive.Subscription
	demand      reactive.Demand

	mu                      sync.Mutex
	itemsReceived           uint64
	openWindows             []*windowState[T]
	readyQueue              []*windowState[T]
	windowsClosed           uint64
	pendingComplete         bool
	done                    bool
	upstreamRequestedTarget uint64
	unboundedRequested      bool
}

func (s *bufferSubscription[T]) OnSubscribe(sub reactive.Subscription) {
	s.mu.Lock()
	s.upstreamSub = sub
	s.mu.Unlock()
	// Forward any demand the downstream registered from within its own
	// OnSubscribe, before the upstream was subscribed.
	s.requestUpstream()
}

func (s *bufferSubscription[T]) OnNext(v T) {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return
	}
	i := s.itemsReceived
	s.itemsReceived++

	if i%uint64(s.skip) == 0 {
		container, err := callFactory(s.factory)
		if err != nil {
			s.done = true
			s.mu.Unlock()
			s.cancelUpstream()
			s.consumer.OnError(reactive.Wrap(reactive.OperatorError, err))
			return
		}
		if container == nil {
			s.done = true
			s.mu.Unlock()
			s.cancelUpstream()
			s.consumer.OnError(reactive.Newf(reactive.NullArgument, "buffer: factory returned a nil container"))
			return
		}
		s.openWindows = append(s.openWindows, &windowState[T]{container: container})
	}

	for _, w := range s.openWindows {
		w.container.Add(v)
		w.count++
	}
	for len(s.openWindows) > 0 && s.openWindows[0].count >= s.size {
		s.readyQueue = append(s.readyQueue, s.openWindows[0])
		s.openWindows = s.openWindows[1:]
		s.windowsClosed++
	}
	s.mu.Unlock()

	s.tryEmit()
}

// OnComplete flushes every currently open window, in open-order, and
// marks the stream as pending completion: the actual OnComplete downstream
// only fires once those flushed windows have cleared the ready queue
// under backpressure.
func (s *bufferSubscription[T]) OnComplete() {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return
	}
	s.readyQueue = append(s.readyQueue, s.openWindows...)
	s.openWindows = nil
	s.pendingComplete = true
	s.mu.Unlock()

	s.tryEmit()
}

// OnError discards every open window and forwards the error immediately;
// unlike completion, an error is not subject to downstream demand.
func (s *bufferSubscription[T]) OnError(e error) {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return
	}
	s.done = true
	s.openWindows = nil
	s.readyQueue = nil
	s.mu.Unlock()

	s.consumer.OnError(reactive.Wrap(reactive.UpstreamError, e))
}

// tryEmit delivers as many ready windows as outstanding demand allows,
// then — once the ready queue is drained and completion is pending —
// delivers the single downstream OnComplete.
func (s *bufferSubscription[T]) tryEmit() {
	for {
		s.mu.Lock()
		if s.done {
			s.mu.Unlock()
			return
		}
		if len(s.readyQueue) > 0 && s.demand.Get() > 0 {
			w := s.readyQueue[0]
			s.readyQueue = s.readyQueue[1:]
			s.mu.Unlock()
			s.demand.Consume()
			s.consumer.OnNext(w.container)
			continue
		}
		finish := s.pendingComplete && len(s.readyQueue) == 0
		if finish {
			s.done = true
		}
		s.mu.Unlock()
		if finish {
			s.consumer.OnComplete()
		}
		return
	}
}

func (s *bufferSubscription[T]) Request(n uint64) {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return
	}
	if n == 0 {
		s.done = true
		s.mu.Unlock()
		s.cancelUpstream()
		s.consumer.OnError(reactive.ErrIllegalDemand)
		return
	}
	s.mu.Unlock()

	s.demand.Add(n)
	s.requestUpstream()
	s.tryEmit()
}

// requestUpstream keeps the upstream item target at least enough to close
// every window still needed to satisfy outstanding demand. The Nth window
// (1-indexed, counting from the first window ever opened) closes once
// size+(N-1)*skip items have arrived, so the target is computed from the
// total number of windows ever targeted for closing — windows already
// closed (whether delivered or merely sitting in the ready queue) plus
// however many more outstanding demand still needs — never from
// outstanding demand alone, which undercounts whenever skip < size and
// overcounts whenever skip > size. The result is tracked as a
// monotonically increasing cumulative item target so that a never()-like
// upstream never receives an over-request.
func (s *bufferSubscription[T]) requestUpstream() {
	if s.demand.IsUnbounded() {
		s.mu.Lock()
		if s.upstreamSub == nil {
			s.mu.Unlock()
			return
		}
		already := s.unboundedRequested
		s.unboundedRequested = true
		s.mu.Unlock()
		if !already {
			s.upstreamSub.Request(reactive.Unbounded)
		}
		return
	}

	s.mu.Lock()
	if s.upstreamSub == nil {
		s.mu.Unlock()
		return
	}
	outstanding := s.demand.Get()
	queued := uint64(len(s.readyQueue))
	var stillToClose uint64
	if outstanding > queued {
		stillToClose = outstanding - queued
	}
	windowsTargeted := s.windowsClosed + stillToClose
	var target uint64
	if windowsTargeted > 0 {
		target = satAdd(uint64(s.size), satMul(windowsTargeted-1, uint64(s.skip)))
	}
	var delta uint64
	if target > s.upstreamRequestedTarget {
		delta = target - s.upstreamRequestedTarget
		s.upstreamRequestedTarget = target
	}
	s.mu.Unlock()

	if delta > 0 {
		s.upstreamSub.Request(delta)
	}
}

func (s *bufferSubscription[T]) Cancel() {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return
	}
	s.done = true
	s.mu.Unlock()
	s.cancelUpstream()
}

func (s *bufferSubscription[T]) cancelUpstream() {
	if s.upstreamSub != nil {
		s.upstreamSub.Cancel()
	}
}

func callFactory[T any](factory func() (Container[T], error)) (c Container[T], err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in buffer factory: %v", r)
		}
	}()
	return factory()
}

func satMul(a, b uint64) uint64 {
	if a == 0 || b == 0 {
		return 0
	}
	if a > (^uint64(0))/b {
		return ^uint64(0)
	}
	return a * b
}

func satAdd(a, b uint64) uint64 {
	if a > ^uint64(0)-b {
		return ^uint64(0)
	}
	return a + b
}
