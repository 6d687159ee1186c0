// Package sloghooks logs engine hook events through log/slog, with
// per-event sampling so a hot key cannot flood the log.
package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/scopecache"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	RefreshFailEvery uint64
	RefreshDropEvery uint64
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	refreshFailCtr atomic.Uint64
	refreshDropCtr atomic.Uint64
}

var _ scopecache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) RefreshFailed(key string, err error) {
	if h.l == nil || !sample(h.opts.RefreshFailEvery, &h.refreshFailCtr) {
		return
	}
	h.l.Warn("scopecache.refresh_failed",
		"key", h.redact(key),
		"err", err)
}

func (h *Hooks) RefreshDropped(key string) {
	if h.l == nil || !sample(h.opts.RefreshDropEvery, &h.refreshDropCtr) {
		return
	}
	h.l.Warn("scopecache.refresh_dropped",
		"key", h.redact(key))
}

func (h *Hooks) VerifyFailed(key string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("scopecache.verify_failed",
		"key", h.redact(key),
		"err", err)
}

func (h *Hooks) VerifyDivergence(key, cachedDigest, freshDigest string) {
	if h.l == nil {
		return
	}
	h.l.Error("scopecache.verify_divergence",
		"key", h.redact(key),
		"cached", cachedDigest,
		"fresh", freshDigest)
}
