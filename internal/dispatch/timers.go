package dispatch

import (
	"sync"
	"time"

	"github.com/muurk/wifiprov/internal/clock"
)

// TimerID identifies an armed one-shot timer. The zero value never refers
// to a timer.
type TimerID uint64

// Timers arms one-shot timers whose callbacks run on a Loop.
type Timers struct {
	loop  *Loop
	clock clock.Clock

	mu      sync.Mutex
	next    TimerID
	pending map[TimerID]clock.Timer
}

// NewTimers creates a timer service that fires callbacks on loop.
func NewTimers(loop *Loop, clk clock.Clock) *Timers {
	return &Timers{
		loop:    loop,
		clock:   clk,
		pending: make(map[TimerID]clock.Timer),
	}
}

// Arm schedules fn to run on the loop after d. A cancelled timer never runs
// its callback, even if it had already expired and was waiting in the queue.
func (t *Timers) Arm(d time.Duration, fn func()) TimerID {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.next++
	id := t.next
	t.pending[id] = t.clock.AfterFunc(d, func() {
		t.loop.Post(func() {
			if t.take(id) {
				fn()
			}
		})
	})
	return id
}

// Cancel stops the timer. Cancelling an unknown, fired or zero id is a no-op.
func (t *Timers) Cancel(id TimerID) {
	if id == 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if timer, ok := t.pending[id]; ok {
		timer.Stop()
		delete(t.pending, id)
	}
}

// Armed returns the number of timers that have neither fired nor been
// cancelled.
func (t *Timers) Armed() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

func (t *Timers) take(id TimerID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.pending[id]; !ok {
		return false
	}
	delete(t.pending, id)
	return true
}
