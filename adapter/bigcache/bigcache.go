// Package bigcache implements the storage adapter contract on
// allegro/bigcache. Both entry envelopes and tag timestamps are stored as
// bytes. BigCache has no per-entry TTL; entries carry their own expiry
// metadata and the engine ignores anything past its servable window, so
// the global LifeWindow only needs to exceed the longest TTL+grace in use.
// The same holds for tag records: a record evicted by the LifeWindow can
// only be one no live entry still needs.
package bigcache

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	bc "github.com/allegro/bigcache/v3"

	"github.com/unkn0wn-root/scopecache/adapter"
	"github.com/unkn0wn-root/scopecache/codec"
	"github.com/unkn0wn-root/scopecache/internal/wire"
	"github.com/unkn0wn-root/scopecache/tag"
)

type Config[V any] struct {
	Codec              codec.Codec[V]
	LifeWindow         time.Duration
	CleanWindow        time.Duration
	MaxEntriesInWindow int
	MaxEntrySize       int
	HardMaxCacheSizeMB int // ~ memory limit; 0 = unlimited
}

type Adapter[V any] struct {
	c     *bc.BigCache
	codec codec.Codec[V]

	closeOnce sync.Once
	closeErr  error
}

var _ adapter.Adapter[any] = (*Adapter[any])(nil)

func New[V any](cfg Config[V]) (*Adapter[V], error) {
	if cfg.Codec == nil {
		return nil, errors.New("bigcache adapter: nil codec")
	}
	conf := bc.DefaultConfig(cfg.LifeWindow)
	if cfg.CleanWindow > 0 {
		conf.CleanWindow = cfg.CleanWindow
	}
	if cfg.MaxEntriesInWindow > 0 {
		conf.MaxEntriesInWindow = cfg.MaxEntriesInWindow
	}
	if cfg.MaxEntrySize > 0 {
		conf.MaxEntrySize = cfg.MaxEntrySize
	}
	if cfg.HardMaxCacheSizeMB > 0 {
		conf.HardMaxCacheSize = cfg.HardMaxCacheSizeMB
	}
	c, err := bc.NewBigCache(conf)
	if err != nil {
		return nil, err
	}
	return &Adapter[V]{c: c, codec: cfg.Codec}, nil
}

func (a *Adapter[V]) Get(_ context.Context, key string) (adapter.Entry[V], bool, error) {
	var zero adapter.Entry[V]
	b, err := a.c.Get("cache:" + key)
	if err == bc.ErrEntryNotFound {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, err
	}
	env, err := wire.Decode(b)
	if err != nil {
		_ = a.c.Delete("cache:" + key)
		return zero, false, nil
	}
	v, err := a.codec.Decode(env.Payload)
	if err != nil {
		_ = a.c.Delete("cache:" + key)
		return zero, false, nil
	}
	e := adapter.Entry[V]{
		Value:     v,
		Tags:      env.TagPaths(),
		CreatedAt: time.UnixMilli(env.CreatedAt),
		ExpiresAt: time.UnixMilli(env.ExpiresAt),
	}
	if env.GraceUntil != 0 {
		e.GraceUntil = time.UnixMilli(env.GraceUntil)
	}
	return e, true, nil
}

func (a *Adapter[V]) Set(_ context.Context, key string, e adapter.Entry[V]) error {
	payload, err := a.codec.Encode(e.Value)
	if err != nil {
		return err
	}
	env := wire.Envelope{
		Payload:   payload,
		Tags:      wire.FromPaths(e.Tags),
		CreatedAt: e.CreatedAt.UnixMilli(),
		ExpiresAt: e.ExpiresAt.UnixMilli(),
	}
	if !e.GraceUntil.IsZero() {
		env.GraceUntil = e.GraceUntil.UnixMilli()
	}
	b, err := wire.Encode(env)
	if err != nil {
		return err
	}
	return a.c.Set("cache:"+key, b)
}

func (a *Adapter[V]) Delete(_ context.Context, key string) error {
	err := a.c.Delete("cache:" + key)
	if err == bc.ErrEntryNotFound {
		return nil
	}
	return err
}

func (a *Adapter[V]) TagInvalidatedAt(_ context.Context, p tag.Path) (time.Time, bool, error) {
	b, err := a.c.Get("tag:" + tag.Serialize(p))
	if err == bc.ErrEntryNotFound {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	ms, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return time.Time{}, false, nil // malformed record; ignore
	}
	return time.UnixMilli(ms), true, nil
}

func (a *Adapter[V]) SetTagInvalidatedAt(_ context.Context, p tag.Path, ts time.Time) error {
	return a.c.Set("tag:"+tag.Serialize(p), []byte(strconv.FormatInt(ts.UnixMilli(), 10)))
}

func (a *Adapter[V]) Clear(context.Context) error {
	return a.c.Reset()
}

func (a *Adapter[V]) Close(context.Context) error {
	a.closeOnce.Do(func() { a.closeErr = a.c.Close() })
	return a.closeErr
}
