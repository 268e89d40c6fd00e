package reactive

import "sync"

// ConsumerParts assembles a Subscriber[T] from plain functions, the
// generics-flavored descendant of a SubscriberParts/SubscriptionParts
// builder pair. OnSubscribe and OnNext are required, enforced at
// construction: Build panics if either is nil. Go has no compile-time
// interface-method-required-override check, so the enforcement happens at
// Build time instead.
type ConsumerParts[T any] struct {
	OnSubscribe func(Subscription)
	OnNext      func(T)
	OnError     func(error)
	OnComplete  func()
	OnCancel    func()
	// Finally runs exactly once, on whichever terminal pathway the
	// Subscription actually took.
	Finally func(SignalType)
}

// Build fills in defaults for the optional hooks and returns a
// BaseSubscriber ready to pass to Publisher.Subscribe.
func (p *ConsumerParts[T]) Build() *BaseSubscriber[T] {
	if p.OnSubscribe == nil {
		panic("reactive: ConsumerParts.OnSubscribe is required")
	}
	if p.OnNext == nil {
		panic("reactive: ConsumerParts.OnNext is required")
	}
	if p.OnError == nil {
		p.OnError = func(error) {}
	}
	if p.OnComplete == nil {
		p.OnComplete = func() {}
	}
	if p.OnCancel == nil {
		p.OnCancel = func() {}
	}
	if p.Finally == nil {
		p.Finally = func(SignalType) {}
	}
	return &BaseSubscriber[T]{parts: p}
}

// BaseSubscriber captures the incoming Subscription, exposes the
// consumer's hooks, and guarantees Finally runs exactly once regardless
// of which terminal pathway fired.
type BaseSubscriber[T any] struct {
	parts *ConsumerParts[T]

	mu         sync.Mutex
	sub        Subscription
	finallyRan bool
}

func (b *BaseSubscriber[T]) OnSubscribe(s Subscription) {
	b.mu.Lock()
	b.sub = s
	b.mu.Unlock()
	b.parts.OnSubscribe(s)
}

func (b *BaseSubscriber[T]) OnNext(v T) {
	b.parts.OnNext(v)
}

func (b *BaseSubscriber[T]) OnError(e error) {
	b.parts.OnError(e)
	b.runFinally(OnError)
}

func (b *BaseSubscriber[T]) OnComplete() {
	b.parts.OnComplete()
	b.runFinally(OnComplete)
}

func (b *BaseSubscriber[T]) runFinally(sig SignalType) {
	b.mu.Lock()
	if b.finallyRan {
		b.mu.Unlock()
		return
	}
	b.finallyRan = true
	b.mu.Unlock()
	b.parts.Finally(sig)
}

// Request delegates to the stored Subscription. Safe to call from any
// thread, at any time after OnSubscribe has run.
func (b *BaseSubscriber[T]) Request(n uint64) {
	b.mu.Lock()
	sub := b.sub
	b.mu.Unlock()
	if sub != nil {
		sub.Request(n)
	}
}

// Cancel delegates to the stored Subscription and runs Finally(Cancel),
// guarded the same way OnError/OnComplete are so a cancel racing a
// terminal signal only runs Finally once, with whichever pathway actually
// won.
func (b *BaseSubscriber[T]) Cancel() {
	b.mu.Lock()
	sub := b.sub
	b.mu.Unlock()
	if sub != nil {
		sub.Cancel()
	}
	b.parts.OnCancel()
	b.runFinally(Cancel)
}
