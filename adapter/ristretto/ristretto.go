// Package ristretto implements the storage adapter contract on
// dgraph-io/ristretto. Entries are stored as typed values (no codec);
// admission and eviction follow ristretto's cost model, so an acknowledged
// Set may still be dropped under pressure - acceptable for a cache entry
// store, where a dropped write is indistinguishable from an eviction.
//
// Tag invalidation records live in a plain in-process map guarded by a
// mutex. They are never evicted; use the memory adapter's retention
// janitor as a model if tag churn is a concern.
package ristretto

import (
	"context"
	"errors"
	"sync"
	"time"

	rc "github.com/dgraph-io/ristretto"

	"github.com/unkn0wn-root/scopecache/adapter"
	"github.com/unkn0wn-root/scopecache/tag"
)

type Config struct {
	NumCounters int64
	MaxCost     int64
	BufferItems int64
	Metrics     bool
}

type Adapter[V any] struct {
	c *rc.Cache

	mu   sync.RWMutex
	invs map[string]time.Time

	closeOnce sync.Once
}

var _ adapter.Adapter[any] = (*Adapter[any])(nil)

func New[V any](cfg Config) (*Adapter[V], error) {
	if cfg.NumCounters <= 0 || cfg.MaxCost <= 0 || cfg.BufferItems <= 0 {
		return nil, errors.New("ristretto adapter: invalid config")
	}
	c, err := rc.NewCache(&rc.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
		Metrics:     cfg.Metrics,
	})
	if err != nil {
		return nil, err
	}
	return &Adapter[V]{c: c, invs: make(map[string]time.Time)}, nil
}

func (a *Adapter[V]) Get(_ context.Context, key string) (adapter.Entry[V], bool, error) {
	var zero adapter.Entry[V]
	v, ok := a.c.Get(key)
	if !ok {
		return zero, false, nil
	}
	e, ok := v.(adapter.Entry[V])
	if !ok {
		// self-heal: drop unexpected entry shape
		a.c.Del(key)
		return zero, false, nil
	}
	return e, true, nil
}

func (a *Adapter[V]) Set(_ context.Context, key string, e adapter.Entry[V]) error {
	until := e.ExpiresAt
	if !e.GraceUntil.IsZero() {
		until = e.GraceUntil
	}
	ttl := time.Until(until)
	if ttl <= 0 {
		// already past its servable window; don't resurrect it
		a.c.Del(key)
		return nil
	}
	a.c.SetWithTTL(key, e, 1, ttl)
	return nil
}

func (a *Adapter[V]) Delete(_ context.Context, key string) error {
	a.c.Del(key)
	return nil
}

func (a *Adapter[V]) TagInvalidatedAt(_ context.Context, p tag.Path) (time.Time, bool, error) {
	a.mu.RLock()
	ts, ok := a.invs[tag.Serialize(p)]
	a.mu.RUnlock()
	return ts, ok, nil
}

func (a *Adapter[V]) SetTagInvalidatedAt(_ context.Context, p tag.Path, ts time.Time) error {
	a.mu.Lock()
	a.invs[tag.Serialize(p)] = ts
	a.mu.Unlock()
	return nil
}

func (a *Adapter[V]) Clear(context.Context) error {
	a.c.Clear()
	a.mu.Lock()
	a.invs = make(map[string]time.Time)
	a.mu.Unlock()
	return nil
}

func (a *Adapter[V]) Close(context.Context) error {
	a.closeOnce.Do(func() {
		a.c.Wait()
		a.c.Close()
	})
	return nil
}

// Metrics exposes ristretto metrics when enabled in Config.
func (a *Adapter[V]) Metrics() *rc.Metrics { return a.c.Metrics }
