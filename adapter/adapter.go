// Package adapter defines the storage abstraction used by scopecache.
//
// An Adapter owns two stores: one for cache entries and one for tag
// invalidation timestamps. Each operation is individually atomic from the
// caller's point of view, and no acknowledged write may be silently lost.
// Implementations must be safe for concurrent use.
//
// Networked implementations must provide at least read-your-writes
// consistency for a single key or tag record; without it the engine's
// freshness decisions are unsound.
package adapter

import (
	"context"
	"time"

	"github.com/unkn0wn-root/scopecache/tag"
)

// Entry is a cached value plus the metadata the engine needs for
// freshness decisions. Entries are immutable once written; a logical
// update replaces the whole entry under the same key.
type Entry[V any] struct {
	Value V
	Tags  []tag.Path

	CreatedAt time.Time
	ExpiresAt time.Time
	// GraceUntil is the end of the stale-while-revalidate window.
	// The zero time means the entry has no grace window.
	GraceUntil time.Time
}

// Adapter is the storage backend contract.
type Adapter[V any] interface {
	// Get returns (entry, true, nil) on hit; (zero, false, nil) on miss.
	// IO or backend errors return (zero, false, err).
	Get(ctx context.Context, key string) (Entry[V], bool, error)

	// Set stores the entry under key, replacing any previous entry.
	Set(ctx context.Context, key string, e Entry[V]) error

	// Delete removes the entry for key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// TagInvalidatedAt returns the most recent invalidation timestamp
	// recorded for exactly this path; ok=false when none was recorded.
	TagInvalidatedAt(ctx context.Context, p tag.Path) (time.Time, bool, error)

	// SetTagInvalidatedAt records the invalidation timestamp for exactly
	// this path, replacing any earlier record.
	SetTagInvalidatedAt(ctx context.Context, p tag.Path, ts time.Time) error

	// Clear drops all entries and all tag records.
	Clear(ctx context.Context) error

	// Close releases resources. Must be idempotent.
	Close(ctx context.Context) error
}

// Verifier is an optional extension for backends that accept staleness
// verification reports. The engine detects support with a type assertion;
// adapters without it simply never receive reports.
type Verifier interface {
	ReportVerification(ctx context.Context, key string, stale bool, cachedDigest, freshDigest string) error
}
