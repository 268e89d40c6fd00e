package reactive

import "sync/atomic"

// DrainLoop is a single-writer trampoline: any number of goroutines may
// call Enter concurrently (from OnNext, from a re-entrant Request, from
// Cancel), but only one of them ever runs the drain body at a time.
// Callers that lose the race just bump the work-in-progress counter and
// return; the active drainer observes the bump and loops again before
// releasing.
//
// This is an atomic work-in-progress counter — no locks, no thread
// recursion for re-entrant Request calls.
type DrainLoop struct {
	wip int32
}

// Enter reports whether the calling goroutine became the drainer (true) or
// merely registered more pending work for whoever is already draining
// (false).
func (d *DrainLoop) Enter() bool {
	return atomic.AddInt32(&d.wip, 1) == 1
}

// Leave is called by the active drainer after completing one pass. It
// returns true if the drainer must loop again (more work arrived while it
// was draining) and false if it is safe to stop.
func (d *DrainLoop) Leave() bool {
	return atomic.AddInt32(&d.wip, -1) != 0
}

// Drain runs body at least once, and again every time Enter raced in while
// body was executing. Just, Range, FromIterable and map-signal use this
// helper directly;
// buffer and flat-map-signal do not use DrainLoop and guard their queues
// with a mutex instead.
func (d *DrainLoop) Drain(body func()) {
	if !d.Enter() {
		return
	}
	for {
		body()
		if !d.Leave() {
			return
		}
	}
}
