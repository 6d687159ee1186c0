// Package memory provides the reference in-process storage adapter:
// a bounded entry store with least-recently-used eviction and a separate
// tag invalidation timestamp store.
package memory

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/unkn0wn-root/scopecache/adapter"
	"github.com/unkn0wn-root/scopecache/tag"
)

type Config struct {
	// MaxEntries bounds the entry store; 0 means unbounded.
	MaxEntries int

	// Tag invalidation records grow without bound under tag churn unless a
	// retention window is set. CleanupInterval > 0 and TagRetention > 0
	// enable a janitor that prunes records older than TagRetention.
	// TagRetention must exceed the longest TTL+grace in use: a pruned
	// record can no longer mark entries stale, which is only safe once
	// every entry it could affect has itself expired.
	CleanupInterval time.Duration
	TagRetention    time.Duration
}

type lruItem[V any] struct {
	key   string
	entry adapter.Entry[V]
}

// Adapter is the reference in-memory backend. A single mutex serializes
// every operation, reads included, so the LRU order and the entry map
// always agree under concurrent access.
type Adapter[V any] struct {
	mu      sync.Mutex
	order   *list.List // front = most recently used
	entries map[string]*list.Element
	invs    map[string]time.Time
	max     int

	ticker *time.Ticker
	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

var _ adapter.Adapter[any] = (*Adapter[any])(nil)

func New[V any](cfg Config) *Adapter[V] {
	a := &Adapter[V]{
		order:   list.New(),
		entries: make(map[string]*list.Element),
		invs:    make(map[string]time.Time),
		max:     cfg.MaxEntries,
	}
	if cfg.CleanupInterval > 0 && cfg.TagRetention > 0 {
		a.ticker = time.NewTicker(cfg.CleanupInterval)
		a.stopCh = make(chan struct{})
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			for {
				select {
				case <-a.ticker.C:
					a.pruneTags(cfg.TagRetention)
				case <-a.stopCh:
					return
				}
			}
		}()
	}
	return a
}

func (a *Adapter[V]) Get(_ context.Context, key string) (adapter.Entry[V], bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	el, ok := a.entries[key]
	if !ok {
		var zero adapter.Entry[V]
		return zero, false, nil
	}
	a.order.MoveToFront(el)
	return el.Value.(*lruItem[V]).entry, true, nil
}

func (a *Adapter[V]) Set(_ context.Context, key string, e adapter.Entry[V]) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if el, ok := a.entries[key]; ok {
		el.Value.(*lruItem[V]).entry = e
		a.order.MoveToFront(el)
		return nil
	}
	a.entries[key] = a.order.PushFront(&lruItem[V]{key: key, entry: e})
	if a.max > 0 && a.order.Len() > a.max {
		oldest := a.order.Back()
		a.order.Remove(oldest)
		delete(a.entries, oldest.Value.(*lruItem[V]).key)
	}
	return nil
}

func (a *Adapter[V]) Delete(_ context.Context, key string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if el, ok := a.entries[key]; ok {
		a.order.Remove(el)
		delete(a.entries, key)
	}
	return nil
}

func (a *Adapter[V]) TagInvalidatedAt(_ context.Context, p tag.Path) (time.Time, bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	ts, ok := a.invs[tag.Serialize(p)]
	return ts, ok, nil
}

func (a *Adapter[V]) SetTagInvalidatedAt(_ context.Context, p tag.Path, ts time.Time) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.invs[tag.Serialize(p)] = ts
	return nil
}

func (a *Adapter[V]) Clear(context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.order.Init()
	a.entries = make(map[string]*list.Element)
	a.invs = make(map[string]time.Time)
	return nil
}

// Close stops the janitor and drops all state. Idempotent.
func (a *Adapter[V]) Close(ctx context.Context) error {
	a.once.Do(func() {
		if a.stopCh != nil {
			close(a.stopCh)
			a.ticker.Stop()
			a.wg.Wait()
		}
	})
	return a.Clear(ctx)
}

// Len reports the current entry count. Exposed for capacity monitoring.
func (a *Adapter[V]) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.order.Len()
}

func (a *Adapter[V]) pruneTags(retention time.Duration) {
	cutoff := time.Now().Add(-retention)
	a.mu.Lock()
	for k, ts := range a.invs {
		if ts.Before(cutoff) {
			delete(a.invs, k)
		}
	}
	a.mu.Unlock()
}
