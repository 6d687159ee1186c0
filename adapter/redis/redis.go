// Package redis implements the storage adapter contract on Redis.
//
// Keys:
//
//	<prefix>:cache:<key>           - entry envelopes (expire at grace/TTL end)
//	<prefix>:tag:<serialized tag>  - invalidation timestamps, Unix ms
//
// Entry timestamps are stored with millisecond precision. Tag records do
// not expire by default; set Config.TagTTL to bound their growth (the TTL
// must exceed the longest entry TTL+grace in use, otherwise a pruned
// record could stop marking still-live entries stale).
package redis

import (
	"context"
	"errors"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/scopecache/adapter"
	"github.com/unkn0wn-root/scopecache/codec"
	"github.com/unkn0wn-root/scopecache/internal/wire"
	"github.com/unkn0wn-root/scopecache/tag"
)

var (
	ErrNilClient = errors.New("redis adapter: nil client")
	ErrNilCodec  = errors.New("redis adapter: nil codec")
)

type Config[V any] struct {
	Client goredis.UniversalClient
	Codec  codec.Codec[V]
	Prefix string // default "scopecache"
	// CloseClient releases the client on Close. Set only when this adapter
	// exclusively owns the client.
	CloseClient bool
	// TagTTL expires tag invalidation records; 0 keeps them forever.
	TagTTL time.Duration
}

type Adapter[V any] struct {
	rdb         goredis.UniversalClient
	codec       codec.Codec[V]
	prefix      string
	closeClient bool
	tagTTL      time.Duration
}

var _ adapter.Adapter[any] = (*Adapter[any])(nil)

func New[V any](cfg Config[V]) (*Adapter[V], error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	if cfg.Codec == nil {
		return nil, ErrNilCodec
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "scopecache"
	}
	return &Adapter[V]{
		rdb:         cfg.Client,
		codec:       cfg.Codec,
		prefix:      prefix,
		closeClient: cfg.CloseClient,
		tagTTL:      cfg.TagTTL,
	}, nil
}

func (a *Adapter[V]) cacheKey(key string) string { return a.prefix + ":cache:" + key }
func (a *Adapter[V]) tagKey(p tag.Path) string   { return a.prefix + ":tag:" + tag.Serialize(p) }

func (a *Adapter[V]) Get(ctx context.Context, key string) (adapter.Entry[V], bool, error) {
	var zero adapter.Entry[V]
	b, err := a.rdb.Get(ctx, a.cacheKey(key)).Bytes()
	if err == goredis.Nil {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, err
	}
	env, err := wire.Decode(b)
	if err != nil {
		// foreign or corrupt bytes under our key; self-heal and miss
		_ = a.rdb.Del(ctx, a.cacheKey(key)).Err()
		return zero, false, nil
	}
	v, err := a.codec.Decode(env.Payload)
	if err != nil {
		_ = a.rdb.Del(ctx, a.cacheKey(key)).Err()
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

func (a *Adapter[V]) Set(ctx context.Context, key string, e adapter.Entry[V]) error {
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
	// the key may live until the grace window closes
	expireAt := e.ExpiresAt
	if !e.GraceUntil.IsZero() {
		env.GraceUntil = e.GraceUntil.UnixMilli()
		expireAt = e.GraceUntil
	}
	b, err := wire.Encode(env)
	if err != nil {
		return err
	}
	if !expireAt.After(time.Now()) {
		// already past its servable window; a past EXAT is a redis error
		return a.rdb.Del(ctx, a.cacheKey(key)).Err()
	}
	return a.rdb.SetArgs(ctx, a.cacheKey(key), b, goredis.SetArgs{ExpireAt: expireAt}).Err()
}

func (a *Adapter[V]) Delete(ctx context.Context, key string) error {
	return a.rdb.Del(ctx, a.cacheKey(key)).Err()
}

func (a *Adapter[V]) TagInvalidatedAt(ctx context.Context, p tag.Path) (time.Time, bool, error) {
	res, err := a.rdb.Get(ctx, a.tagKey(p)).Result()
	if err == goredis.Nil {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	ms, err := strconv.ParseInt(res, 10, 64)
	if err != nil {
		return time.Time{}, false, errors.New("redis adapter: malformed tag timestamp " + strconv.Quote(res))
	}
	return time.UnixMilli(ms), true, nil
}

func (a *Adapter[V]) SetTagInvalidatedAt(ctx context.Context, p tag.Path, ts time.Time) error {
	return a.rdb.Set(ctx, a.tagKey(p), strconv.FormatInt(ts.UnixMilli(), 10), a.tagTTL).Err()
}

// Clear drops all entries and tag records under this adapter's prefix.
func (a *Adapter[V]) Clear(ctx context.Context) error {
	for _, pattern := range []string{a.prefix + ":cache:*", a.prefix + ":tag:*"} {
		iter := a.rdb.Scan(ctx, 0, pattern, 100).Iterator()
		batch := make([]string, 0, 100)
		for iter.Next(ctx) {
			batch = append(batch, iter.Val())
			if len(batch) == 100 {
				if err := a.rdb.Del(ctx, batch...).Err(); err != nil {
					return err
				}
				batch = batch[:0]
			}
		}
		if err := iter.Err(); err != nil {
			return err
		}
		if len(batch) > 0 {
			if err := a.rdb.Del(ctx, batch...).Err(); err != nil {
				return err
			}
		}
	}
	return nil
}

// Close releases the underlying client only when this adapter owns it.
// Safe to call multiple times; repeated calls become no-ops.
func (a *Adapter[V]) Close(context.Context) error {
	if a.closeClient {
		if err := a.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			return err
		}
	}
	return nil
}
