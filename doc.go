// Package scopecache is a cache-primitives engine over pluggable storage
// backends: request coalescing (one in-flight fetch per key), TTL expiry
// with an optional stale-while-revalidate grace window, hierarchical
// tag-based invalidation, and probabilistic verification sampling.
//
// A value is fresh while its TTL has not elapsed and none of its tags, nor
// any prefix of a tag, was invalidated at or after the entry was written.
// Invalidating ("posts", "1") therefore stales ("posts", "1", "comments")
// without enumerating affected entries. Expired entries inside their grace
// window are served stale while a detached refresh runs; outside it, Query
// fetches synchronously.
//
// Backends implement the small contract in the adapter package; the
// adapter/memory package is the bounded in-process reference, with redis,
// ristretto, and bigcache backends alongside it. The schema package layers
// declarative, arity-checked tag specs on top of the primitives.
package scopecache
