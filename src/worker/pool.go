package worker

import (
	"fmt"
	"log"
	"runtime"
	"runtime/debug"
	"sync"
)

// Job is a unit of blocking work. It runs on a worker goroutine and must post
// any results back to the event loop itself.
type Job func()

// PanicHandler receives the recovered value of a panicking job.
type PanicHandler func(err error)

// Pool is a fixed-size worker pool with a bounded queue. Submit never blocks:
// when every worker is busy and the queue is full the job is refused.
type Pool struct {
	mu     sync.RWMutex
	jobs   chan Job
	closed bool
	wg     sync.WaitGroup

	onPanic PanicHandler
}

// New creates a worker pool. Size defaults to NumCPU when size<=0 and the
// queue holds at least one job.
func New(size, queue int) *Pool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	if queue <= 0 {
		queue = 1
	}
	p := &Pool{jobs: make(chan Job, queue)}
	p.start(size)
	return p
}

// OnPanic installs a handler for jobs that panic. Must be called before Submit.
func (p *Pool) OnPanic(h PanicHandler) { p.onPanic = h }

func (p *Pool) start(n int) {
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			for j := range p.jobs {
				p.run(id, j)
			}
		}(i)
	}
}

func (p *Pool) run(id int, j Job) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("worker %d: job panicked: %v", id, r)
			log.Printf("Worker: %v\n%s", err, debug.Stack())
			if p.onPanic != nil {
				p.onPanic(err)
			}
		}
	}()
	j()
}

// Submit enqueues a job if there is room. Returns false if the pool is closed or full.
func (p *Pool) Submit(j Job) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}
	select {
	case p.jobs <- j:
		return true
	default:
		return false
	}
}

// Close stops the pool after draining queued and running work. Safe to call twice.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()
	p.wg.Wait()
}
