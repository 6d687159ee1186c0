// Package task runs detached background work for the cache engine.
package task

import "sync"

// Runner is a fixed worker pool with a bounded queue. Submit never blocks:
// when the queue is full the task is dropped and the caller is told, so a
// slow backend can never stall a cache read. Close stops intake and waits
// for queued and running tasks to finish.
type Runner struct {
	q    chan func()
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	closed bool
}

// NewRunner starts workers goroutines draining a queue of size qlen.
// Non-positive arguments fall back to 1 worker / 1024 slots.
func NewRunner(workers, qlen int) *Runner {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}
	r := &Runner{q: make(chan func(), qlen)}
	r.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer r.wg.Done()
			for f := range r.q {
				f()
			}
		}()
	}
	return r
}

// Submit enqueues f. Returns false when the runner is closed or the
// queue is full.
func (r *Runner) Submit(f func()) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	select {
	case r.q <- f:
		return true
	default:
		return false
	}
}

// Close stops accepting work and waits for the queue to drain.
// Safe to call more than once.
func (r *Runner) Close() {
	r.once.Do(func() {
		r.mu.Lock()
		r.closed = true
		r.mu.Unlock()
		close(r.q)
		r.wg.Wait()
	})
}
