package scopecache

// Hooks are lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking; the engine calls them
// from background workers and, for drops, from the read path.
// All detached-work failures are only ever observable here (and via the
// Logger) - they never surface to the caller that triggered the work.
type Hooks interface {
	// A stale-while-revalidate refresh failed; the stale value was already
	// served and the next post-grace read will fetch synchronously.
	RefreshFailed(key string, err error)

	// A refresh could not be queued (worker queue full or engine closing).
	RefreshDropped(key string)

	// A verification probe failed before producing a comparison.
	VerifyFailed(key string, err error)

	// A verification probe found the cached value diverging from a fresh
	// fetch. Digests are short content hashes, not values.
	VerifyDivergence(key, cachedDigest, freshDigest string)
}

// NopHooks is the default no-op.
type NopHooks struct{}

func (NopHooks) RefreshFailed(string, error)             {}
func (NopHooks) RefreshDropped(string)                   {}
func (NopHooks) VerifyFailed(string, error)              {}
func (NopHooks) VerifyDivergence(string, string, string) {}
