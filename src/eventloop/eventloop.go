package eventloop

import (
	"context"
	"fmt"
	"log"
	"runtime/debug"
	"sync"
)

// Loop is the single-threaded coordinator. Every piece of presentation and
// session state is touched only from tasks running on it, in posting order.
type Loop struct {
	// wake holds at most one pending signal that the queue is non-empty.
	wake     chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	mu      sync.Mutex
	queue   []func()
	running bool
}

func New() *Loop {
	return &Loop{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Post queues fn to run on the loop. It never blocks, so tasks already running
// on the loop may post too. It returns false once the loop has stopped; fn is
// then never run. Tasks must not block.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Run executes posted tasks until ctx is cancelled or Stop is called.
// Only one Run may be active; a second call returns an error.
func (l *Loop) Run(ctx context.Context) error {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return fmt.Errorf("eventloop: already running")
	}
	l.running = true
	l.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			l.Stop()
			return ctx.Err()
		case <-l.done:
			return nil
		case <-l.wake:
			if err := l.drain(ctx); err != nil {
				return err
			}
		}
	}
}

// drain runs the tasks queued so far. Tasks they post are picked up by the
// next wake-up, after everything that was already queued.
func (l *Loop) drain(ctx context.Context) error {
	l.mu.Lock()
	batch := l.queue
	l.queue = nil
	l.mu.Unlock()

	for _, fn := range batch {
		select {
		case <-ctx.Done():
			l.Stop()
			return ctx.Err()
		case <-l.done:
			return nil
		default:
		}
		l.exec(fn)
	}
	return nil
}

func (l *Loop) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("EventLoop: task panicked: %v\n%s", r, debug.Stack())
		}
	}()
	fn()
}

// Stop ends Run. Tasks still queued are discarded. Safe to call more than once.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() {
		close(l.done)
		l.mu.Lock()
		l.queue = nil
		l.mu.Unlock()
	})
}

// Done is closed when the loop stops.
func (l *Loop) Done() <-chan struct{} { return l.done }
