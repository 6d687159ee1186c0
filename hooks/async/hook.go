// Package asynchook decouples hook delivery from the engine's hot paths.
// Events are handed to a bounded queue and delivered by worker goroutines;
// when the queue is full the event is dropped rather than blocking a read.
//
// usage:
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{
//	    RefreshFailEvery: 10, // sample logs: ~every 10th refresh failure
//	})
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	cache, _ := scopecache.New[User](scopecache.Options[User]{
//	    Adapter: store,
//	    Hooks:   hooks, // or `raw` if you don't want async
//	})
package asynchook

import (
	"sync"

	"github.com/unkn0wn-root/scopecache"
)

type Hooks struct {
	inner scopecache.Hooks
	q     chan func()
	wg    sync.WaitGroup
	once  sync.Once
}

var _ scopecache.Hooks = (*Hooks)(nil)

func New(inner scopecache.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

func (h *Hooks) Close() {
	h.once.Do(func() {
		close(h.q)
		h.wg.Wait()
	})
}

func (h *Hooks) try(f func()) {
	select {
	case h.q <- f:
	default: // drop
	}
}

func (h *Hooks) RefreshFailed(k string, err error) { h.try(func() { h.inner.RefreshFailed(k, err) }) }
func (h *Hooks) RefreshDropped(k string)           { h.try(func() { h.inner.RefreshDropped(k) }) }
func (h *Hooks) VerifyFailed(k string, err error)  { h.try(func() { h.inner.VerifyFailed(k, err) }) }
func (h *Hooks) VerifyDivergence(k, cd, fd string) {
	h.try(func() { h.inner.VerifyDivergence(k, cd, fd) })
}
