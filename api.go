package scopecache

import (
	"context"
	"time"

	"github.com/unkn0wn-root/scopecache/adapter"
	"github.com/unkn0wn-root/scopecache/tag"
)

// Duration sentinels for Query and SetOptions TTL/Grace fields.
const (
	// DefaultDuration selects the engine-wide default.
	DefaultDuration time.Duration = 0

	// ExpireImmediately writes an entry that is non-fresh on the very next
	// read. With a grace window it behaves as pure stale-while-revalidate.
	ExpireImmediately time.Duration = -1

	// NoGrace suppresses the engine default grace for one write.
	NoGrace time.Duration = -1
)

// Options configures a Cache. Adapter is required (unless Disabled);
// everything else has a default.
type Options[V any] struct {
	// Adapter is the storage backend.
	Adapter adapter.Adapter[V]

	// Prefix namespaces every key before it reaches the adapter.
	// Default "scopecache".
	Prefix string

	// DefaultTTL applies when a Query/Set passes DefaultDuration.
	// Default 30s.
	DefaultTTL time.Duration

	// DefaultGrace is the stale-while-revalidate window appended after
	// expiry when a Query/Set passes DefaultDuration for Grace.
	// Default 0 (no grace).
	DefaultGrace time.Duration

	// VerifySampleRate is the probability in [0,1] that a fresh hit
	// triggers a detached verification re-fetch. Zero selects the 0.1
	// default, it does NOT disable sampling; to turn sampling off set
	// DisableVerify.
	VerifySampleRate float64
	DisableVerify    bool

	// Digest produces a short content hash for verification comparison.
	// Default: SHA-256 over the canonical CBOR encoding, first 16 hex chars.
	Digest func(V) (string, error)

	// Workers / QueueLen size the background runner for refreshes and
	// verification probes. Defaults 1 worker, 1024 queued tasks.
	Workers  int
	QueueLen int

	Logger Logger // default NopLogger
	Hooks  Hooks  // default NopHooks

	// Disabled bypasses the cache: Query calls fetch directly, reads miss,
	// writes are no-ops. Useful as a kill switch.
	Disabled bool
}

// Query describes one cached read.
type Query[V any] struct {
	// Fetch produces the value on a miss or refresh. Required.
	Fetch func(ctx context.Context) (V, error)

	// Tags are the invalidation scopes the resulting entry belongs to.
	// May be empty; the entry is then removable only by Delete or Clear.
	Tags []tag.Path

	// TTL and Grace for the written entry. DefaultDuration selects the
	// engine defaults; ExpireImmediately / NoGrace override them to zero.
	TTL   time.Duration
	Grace time.Duration
}

// SetOptions carries the entry metadata for an unconditional Set.
type SetOptions struct {
	Tags  []tag.Path
	TTL   time.Duration
	Grace time.Duration
}

// Cache is the primitives engine over one storage adapter.
//
// All Query calls for one key are coalesced so at most one fetch is in
// flight per key; detached work (grace refreshes, verification probes)
// never surfaces failure to the caller that triggered it.
type Cache[V any] interface {
	// Query returns the cached value when fresh, serves a stale value
	// while refreshing in the background when within grace, and otherwise
	// fetches synchronously and writes the result back.
	Query(ctx context.Context, key string, q Query[V]) (V, error)

	// Get returns the value only when an entry exists and is fresh.
	// In-grace is not sufficient. Never fetches.
	Get(ctx context.Context, key string) (V, bool, error)

	// Set writes a new entry unconditionally, bypassing freshness checks.
	Set(ctx context.Context, key string, value V, opts SetOptions) error

	// Delete removes any entry for the key. Tag records are untouched.
	Delete(ctx context.Context, key string) error

	// Invalidate records now as the invalidation time of each path.
	// Freshness checks walk every prefix of an entry's tags, so one write
	// here invalidates the path and all of its descendants.
	Invalidate(ctx context.Context, paths ...tag.Path) error

	// InvalidateExact is like Invalidate but matches by equality only:
	// entries tagged with a descendant of the path are unaffected.
	InvalidateExact(ctx context.Context, paths ...tag.Path) error

	// Clear drops all entries and tag records.
	Clear(ctx context.Context) error

	// Close shuts down the background runner, waiting for queued and
	// running work, then closes the adapter. Idempotent.
	Close(ctx context.Context) error
}

// New validates opts and constructs a Cache.
func New[V any](opts Options[V]) (Cache[V], error) {
	return newCache(opts)
}
