package reactive

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Task is a unit of work handed to a Scheduler.
type Task func()

// Scheduler is the injectable capability asynchronous sources and
// operators use to move work off the subscribing thread. The core itself
// never assumes a particular scheduler implementation; this module ships
// one goroutine-backed reference implementation so its own tests and
// cmd/tck have something concrete to exercise.
type Scheduler interface {
	// Schedule runs task at most once, asynchronously.
	Schedule(task Task) Disposable
	// ScheduleDelayed runs task at most once, after delay.
	ScheduleDelayed(task Task, delay time.Duration) Disposable
	// SchedulePeriodic runs task repeatedly, every period, until disposed.
	SchedulePeriodic(task Task, period time.Duration) Disposable
	// Dispose cancels pending tasks and releases any owned resources.
	Dispose()
}

// GoroutineScheduler is a Scheduler backed directly by goroutines and the
// runtime timer wheel, with no worker-pool library; github.com/google/uuid
// supplies the scheduler and task identifiers (see DESIGN.md).
type GoroutineScheduler struct {
	id uuid.UUID
	mu sync.Mutex

	disposed bool
	pending  map[uuid.UUID]Disposable
	log      Logger
}

// NewGoroutineScheduler returns a Scheduler ready for use. Passing a
// zerolog-backed Logger is optional; the zero value logs nothing.
func NewGoroutineScheduler(log Logger) *GoroutineScheduler {
	return &GoroutineScheduler{
		id:      uuid.New(),
		pending: make(map[uuid.UUID]Disposable),
		log:     log,
	}
}

func (s *GoroutineScheduler) track(d Disposable) Disposable {
	id := uuid.New()
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		d.Dispose()
		return d
	}
	s.pending[id] = d
	s.mu.Unlock()
	return &trackedDisposable{id: id, owner: s, inner: d}
}

func (s *GoroutineScheduler) untrack(id uuid.UUID) {
	s.mu.Lock()
	delete(s.pending, id)
	s.mu.Unlock()
}

type trackedDisposable struct {
	id    uuid.UUID
	owner *GoroutineScheduler
	inner Disposable
	once  sync.Once
}

func (t *trackedDisposable) Dispose() {
	t.once.Do(func() {
		t.inner.Dispose()
		t.owner.untrack(t.id)
	})
}

type funcDisposable struct {
	dispose func()
	once    sync.Once
}

func (f *funcDisposable) Dispose() {
	f.once.Do(f.dispose)
}

func (s *GoroutineScheduler) Schedule(task Task) Disposable {
	done := make(chan struct{})
	go func() {
		defer close(done)
		task()
	}()
	return s.track(&funcDisposable{dispose: func() { <-done }})
}

func (s *GoroutineScheduler) ScheduleDelayed(task Task, delay time.Duration) Disposable {
	timer := time.AfterFunc(delay, task)
	return s.track(&funcDisposable{dispose: func() { timer.Stop() }})
}

func (s *GoroutineScheduler) SchedulePeriodic(task Task, period time.Duration) Disposable {
	ticker := time.NewTicker(period)
	stop := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				task()
			case <-stop:
				ticker.Stop()
				return
			}
		}
	}()
	return s.track(&funcDisposable{dispose: func() { close(stop) }})
}

func (s *GoroutineScheduler) Dispose() {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.disposed = true
	pending := s.pending
	s.pending = make(map[uuid.UUID]Disposable)
	s.mu.Unlock()

	s.log.Debug().Str("scheduler", s.id.String()).Int("pending", len(pending)).Msg("disposing scheduler")
	for _, d := range pending {
		d.Dispose()
	}
}
