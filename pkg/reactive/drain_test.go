package reactive

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDrainLoopRunsBodyOnce(t *testing.T) {
	var d DrainLoop
	calls := 0
	d.Drain(func() { calls++ })
	assert.Equal(t, 1, calls)
}

// TestDrainLoopReentrantCallDuringBodyLoopsAgain verifies the trampoline
// contract: a call to Enter that arrives while the drainer is running body
// causes the drainer to loop once more rather than the re-entrant caller
// running body itself.
func TestDrainLoopReentrantCallDuringBodyLoopsAgain(t *testing.T) {
	var d DrainLoop
	var runs []int
	pass := 0
	d.Drain(func() {
		pass++
		runs = append(runs, pass)
		if pass == 1 {
			// Simulate a concurrent producer bumping wip while we're draining.
			d.Enter()
		}
	})
	assert.Equal(t, []int{1, 2}, runs)
}

func TestDrainLoopConcurrentEnterOnlyOneDrainerAtATime(t *testing.T) {
	var d DrainLoop
	var mu sync.Mutex
	active := 0
	maxActive := 0

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.Drain(func() {
				mu.Lock()
				active++
				if active > maxActive {
					maxActive = active
				}
				mu.Unlock()
				mu.Lock()
				active--
				mu.Unlock()
			})
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxActive)
}
