package dispatch

import (
	"context"
	"sync"

	"github.com/muurk/wifiprov/internal/logging"
	"go.uber.org/zap"
)

// Loop is a single-goroutine work queue. Timer callbacks and event
// deliveries are posted to it so that provisioning state is only ever
// mutated from one place at a time.
//
// The queue is unbounded: Post never blocks, so work running on the loop
// may post more work without deadlocking.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	stopped bool
}

// NewLoop creates an idle loop. Call Run to start processing, or Drain to
// process queued work on the calling goroutine.
func NewLoop() *Loop {
	return &Loop{wake: make(chan struct{}, 1)}
}

// Post queues fn to run on the loop. It returns false once the loop has
// stopped.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Run processes queued work until ctx is cancelled. Work still queued at
// that point is discarded.
func (l *Loop) Run(ctx context.Context) error {
	logging.Debug("Dispatch loop started")
	defer logging.Debug("Dispatch loop stopped")

	for {
		l.Drain()

		select {
		case <-ctx.Done():
			l.mu.Lock()
			l.stopped = true
			dropped := len(l.queue)
			l.queue = nil
			l.mu.Unlock()
			if dropped > 0 {
				logging.Warn("Dispatch loop discarded queued work", zap.Int("count", dropped))
			}
			return ctx.Err()
		case <-l.wake:
		}
	}
}

// Drain runs queued work, including work posted while draining, until the
// queue is empty. It returns the number of functions run.
func (l *Loop) Drain() int {
	n := 0
	for {
		l.mu.Lock()
		if len(l.queue) == 0 {
			l.mu.Unlock()
			return n
		}
		fn := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		l.mu.Unlock()

		l.run(fn)
		n++
	}
}

// Len returns the number of queued functions.
func (l *Loop) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

func (l *Loop) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error("Dispatch callback panicked", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()
	fn()
}
