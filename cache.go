package scopecache

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/unkn0wn-root/scopecache/adapter"
	"github.com/unkn0wn-root/scopecache/internal/task"
	"github.com/unkn0wn-root/scopecache/tag"
)

const defaultTTL = 30 * time.Second

// exactMarker extends a path invalidated in exact mode. A NUL byte cannot
// appear in a caller segment that round-trips through tag.Serialize the way
// callers produce them, so prefix walks of real descendants never land here.
const exactMarker = "\x00exact"

type cache[V any] struct {
	ad           adapter.Adapter[V]
	prefix       string
	defaultTTL   time.Duration
	defaultGrace time.Duration
	sampleRate   float64
	digest       func(V) (string, error)
	enabled      bool

	log   Logger
	hooks Hooks

	group singleflight.Group
	tasks *task.Runner

	// injected in tests
	now func() time.Time
	rnd func() float64

	closeOnce sync.Once
	closeErr  error
}

func newCache[V any](opts Options[V]) (*cache[V], error) {
	if opts.Adapter == nil && !opts.Disabled {
		return nil, fmt.Errorf("scopecache: adapter is required")
	}
	if opts.VerifySampleRate < 0 || opts.VerifySampleRate > 1 {
		return nil, fmt.Errorf("scopecache: verify sample rate %v outside [0,1]", opts.VerifySampleRate)
	}
	if opts.DefaultTTL < 0 || opts.DefaultGrace < 0 {
		return nil, fmt.Errorf("scopecache: negative default ttl or grace")
	}

	c := &cache[V]{
		ad:      opts.Adapter,
		enabled: !opts.Disabled,
		now:     time.Now,
		rnd:     rand.Float64,
	}

	// defaults
	c.prefix = coalesce(opts.Prefix, "scopecache")
	c.defaultTTL = coalesce(opts.DefaultTTL, defaultTTL)
	c.defaultGrace = opts.DefaultGrace
	c.log = coalesce[Logger](opts.Logger, NopLogger{})
	c.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	c.tasks = task.NewRunner(opts.Workers, opts.QueueLen)

	if !opts.DisableVerify {
		c.sampleRate = coalesce(opts.VerifySampleRate, 0.1)
		if opts.Digest != nil {
			c.digest = opts.Digest
		} else {
			d, err := defaultDigest[V]()
			if err != nil {
				return nil, fmt.Errorf("scopecache: build default digest: %w", err)
			}
			c.digest = d
		}
	}

	return c, nil
}

func (c *cache[V]) Query(ctx context.Context, key string, q Query[V]) (V, error) {
	var zero V
	if q.Fetch == nil {
		return zero, ErrNilFetch
	}
	if !c.enabled {
		return q.Fetch(ctx)
	}
	k := c.storageKey(key)
	v, err, _ := c.group.Do(k, func() (any, error) {
		return c.query(ctx, k, q)
	})
	if err != nil {
		return zero, err
	}
	return v.(V), nil
}

// query runs inside the singleflight slot for k.
func (c *cache[V]) query(ctx context.Context, k string, q Query[V]) (V, error) {
	var zero V
	now := c.now()

	e, ok, err := c.ad.Get(ctx, k)
	if err != nil {
		return zero, fmt.Errorf("scopecache: read %q: %w", k, err)
	}
	if ok {
		fresh := false
		if now.Before(e.ExpiresAt) {
			stale, ierr := c.isStale(ctx, e)
			if ierr != nil {
				return zero, fmt.Errorf("scopecache: tag check %q: %w", k, ierr)
			}
			fresh = !stale
		}
		if fresh {
			c.maybeVerify(ctx, k, e.Value, q)
			return e.Value, nil
		}
		if !e.GraceUntil.IsZero() && !now.After(e.GraceUntil) {
			c.spawnRefresh(ctx, k, q)
			return e.Value, nil
		}
	}

	v, err := q.Fetch(ctx)
	if err != nil {
		return zero, err
	}
	if err := c.store(ctx, k, v, q.Tags, q.TTL, q.Grace); err != nil {
		return zero, fmt.Errorf("scopecache: write back %q: %w", k, err)
	}
	return v, nil
}

func (c *cache[V]) Get(ctx context.Context, key string) (V, bool, error) {
	var zero V
	if !c.enabled {
		return zero, false, nil
	}
	k := c.storageKey(key)
	e, ok, err := c.ad.Get(ctx, k)
	if err != nil || !ok {
		return zero, false, err
	}
	if !c.now().Before(e.ExpiresAt) {
		return zero, false, nil
	}
	stale, err := c.isStale(ctx, e)
	if err != nil {
		return zero, false, fmt.Errorf("scopecache: tag check %q: %w", k, err)
	}
	if stale {
		return zero, false, nil
	}
	return e.Value, true, nil
}

func (c *cache[V]) Set(ctx context.Context, key string, value V, opts SetOptions) error {
	if !c.enabled {
		return nil
	}
	return c.store(ctx, c.storageKey(key), value, opts.Tags, opts.TTL, opts.Grace)
}

func (c *cache[V]) Delete(ctx context.Context, key string) error {
	if !c.enabled {
		return nil
	}
	return c.ad.Delete(ctx, c.storageKey(key))
}

func (c *cache[V]) Invalidate(ctx context.Context, paths ...tag.Path) error {
	return c.invalidate(ctx, paths, false)
}

func (c *cache[V]) InvalidateExact(ctx context.Context, paths ...tag.Path) error {
	return c.invalidate(ctx, paths, true)
}

func (c *cache[V]) invalidate(ctx context.Context, paths []tag.Path, exact bool) error {
	if !c.enabled {
		return nil
	}
	now := c.now()
	var ierr *InvalidateError
	for _, p := range paths {
		target := p
		if exact {
			target = append(p.Clone(), exactMarker)
		}
		if err := c.ad.SetTagInvalidatedAt(ctx, target, now); err != nil {
			if ierr == nil {
				ierr = &InvalidateError{}
			}
			ierr.Failed = append(ierr.Failed, tag.Serialize(p))
			ierr.Errs = append(ierr.Errs, err)
			c.log.Error("invalidate tag failed", Fields{"tag": tag.Serialize(p), "err": err})
		}
	}
	if ierr != nil {
		return ierr
	}
	return nil
}

func (c *cache[V]) Clear(ctx context.Context) error {
	if !c.enabled {
		return nil
	}
	return c.ad.Clear(ctx)
}

func (c *cache[V]) Close(ctx context.Context) error {
	c.closeOnce.Do(func() {
		c.tasks.Close()
		if c.ad != nil {
			c.closeErr = c.ad.Close(ctx)
		}
	})
	return c.closeErr
}

// isStale reports whether any tag on the entry was invalidated at or after
// the entry's creation. For a tag path P it consults the hierarchical record
// at every prefix of P, plus the exact-mode record for P itself.
func (c *cache[V]) isStale(ctx context.Context, e adapter.Entry[V]) (bool, error) {
	for _, p := range e.Tags {
		for i := 1; i <= len(p); i++ {
			hit, err := c.tagHit(ctx, p[:i], e.CreatedAt)
			if err != nil || hit {
				return hit, err
			}
		}
		hit, err := c.tagHit(ctx, append(p.Clone(), exactMarker), e.CreatedAt)
		if err != nil || hit {
			return hit, err
		}
	}
	return false, nil
}

func (c *cache[V]) tagHit(ctx context.Context, p tag.Path, createdAt time.Time) (bool, error) {
	ts, ok, err := c.ad.TagInvalidatedAt(ctx, p)
	if err != nil {
		return false, err
	}
	return ok && !ts.Before(createdAt), nil
}

func (c *cache[V]) store(ctx context.Context, k string, v V, tags []tag.Path, ttl, grace time.Duration) error {
	now := c.now()
	t := c.resolveTTL(ttl)
	g := c.resolveGrace(grace)
	e := adapter.Entry[V]{
		Value:     v,
		Tags:      cloneTags(tags),
		CreatedAt: now,
		ExpiresAt: now.Add(t),
	}
	if g > 0 {
		e.GraceUntil = e.ExpiresAt.Add(g)
	}
	return c.ad.Set(ctx, k, e)
}

// spawnRefresh schedules a detached fetch + write-back for a stale-in-grace
// entry. Failures reach Hooks and the Logger only.
func (c *cache[V]) spawnRefresh(ctx context.Context, k string, q Query[V]) {
	bg := context.WithoutCancel(ctx)
	ok := c.tasks.Submit(func() {
		v, err := q.Fetch(bg)
		if err == nil {
			err = c.store(bg, k, v, q.Tags, q.TTL, q.Grace)
		}
		if err != nil {
			c.log.Warn("background refresh failed", Fields{"key": k, "err": err})
			c.hooks.RefreshFailed(k, err)
		}
	})
	if !ok {
		c.log.Warn("background refresh dropped", Fields{"key": k})
		c.hooks.RefreshDropped(k)
	}
}

// maybeVerify samples a fresh hit for a detached staleness probe: re-fetch,
// digest both values, report divergence. Never touches the served value.
func (c *cache[V]) maybeVerify(ctx context.Context, k string, cached V, q Query[V]) {
	if c.digest == nil || c.rnd() >= c.sampleRate {
		return
	}
	bg := context.WithoutCancel(ctx)
	ok := c.tasks.Submit(func() {
		fresh, err := q.Fetch(bg)
		if err != nil {
			c.hooks.VerifyFailed(k, fmt.Errorf("verify fetch: %w", err))
			return
		}
		cd, err := c.digest(cached)
		if err == nil {
			var fd string
			fd, err = c.digest(fresh)
			if err == nil {
				stale := cd != fd
				if stale {
					c.log.Warn("verification divergence", Fields{"key": k, "cached": cd, "fresh": fd})
					c.hooks.VerifyDivergence(k, cd, fd)
				}
				if rep, okv := c.ad.(adapter.Verifier); okv {
					if rerr := rep.ReportVerification(bg, k, stale, cd, fd); rerr != nil {
						c.hooks.VerifyFailed(k, fmt.Errorf("verify report: %w", rerr))
					}
				}
				return
			}
		}
		c.hooks.VerifyFailed(k, fmt.Errorf("verify digest: %w", err))
	})
	if !ok {
		c.log.Debug("verification probe dropped", Fields{"key": k})
	}
}

func (c *cache[V]) resolveTTL(d time.Duration) time.Duration {
	if d == DefaultDuration {
		return c.defaultTTL
	}
	if d < 0 {
		return 0
	}
	return d
}

func (c *cache[V]) resolveGrace(d time.Duration) time.Duration {
	if d == DefaultDuration {
		return c.defaultGrace
	}
	if d < 0 {
		return 0
	}
	return d
}

func (c *cache[V]) storageKey(userKey string) string {
	return c.prefix + ":" + userKey
}

func cloneTags(tags []tag.Path) []tag.Path {
	if len(tags) == 0 {
		return nil
	}
	out := make([]tag.Path, len(tags))
	for i, p := range tags {
		out[i] = p.Clone()
	}
	return out
}
