// Package schema layers declarative tag specs over the cache primitives.
//
// A Spec is an immutable tag-path template mixing literal segments with
// indexed argument slots. Bind attaches a set of specs, a fetch function,
// and a declared arity to one cache; slot indices are checked against the
// arity once, at bind time, so a miswired spec fails at startup instead of
// producing wrong invalidation scopes at runtime.
package schema

import (
	"context"
	"fmt"
	"time"

	"github.com/unkn0wn-root/scopecache"
	"github.com/unkn0wn-root/scopecache/internal/util"
	"github.com/unkn0wn-root/scopecache/tag"
)

type segment struct {
	lit string
	arg int // -1 for literal segments
}

// Spec is an immutable tag-path template. Builder methods return copies;
// a Spec may be shared freely across bindings.
type Spec struct {
	segs []segment
}

// Lit starts a spec from literal segments.
func Lit(parts ...string) Spec {
	var s Spec
	return s.Lit(parts...)
}

// Lit appends literal segments.
func (s Spec) Lit(parts ...string) Spec {
	out := s.clone(len(parts))
	for _, p := range parts {
		out.segs = append(out.segs, segment{lit: p, arg: -1})
	}
	return out
}

// Arg appends a slot filled from the i-th bound argument.
func (s Spec) Arg(i int) Spec {
	out := s.clone(1)
	out.segs = append(out.segs, segment{arg: i})
	return out
}

func (s Spec) clone(extra int) Spec {
	segs := make([]segment, len(s.segs), len(s.segs)+extra)
	copy(segs, s.segs)
	return Spec{segs: segs}
}

// MaxArg returns the highest slot index, or -1 for an all-literal spec.
func (s Spec) MaxArg() int {
	max := -1
	for _, seg := range s.segs {
		if seg.arg > max {
			max = seg.arg
		}
	}
	return max
}

// Fill resolves the template into a concrete tag path.
func (s Spec) Fill(args []string) (tag.Path, error) {
	p := make(tag.Path, 0, len(s.segs))
	for _, seg := range s.segs {
		if seg.arg < 0 {
			p = append(p, seg.lit)
			continue
		}
		if seg.arg >= len(args) {
			return nil, fmt.Errorf("schema: spec %s: slot %d beyond %d args", s, seg.arg, len(args))
		}
		p = append(p, args[seg.arg])
	}
	return p, nil
}

func (s Spec) String() string {
	p := make(tag.Path, 0, len(s.segs))
	for _, seg := range s.segs {
		if seg.arg < 0 {
			p = append(p, seg.lit)
		} else {
			p = append(p, fmt.Sprintf("{%d}", seg.arg))
		}
	}
	return tag.Serialize(p)
}

// Config declares one bound cached operation.
type Config[V any] struct {
	// Name prefixes the cache key for every call. Required.
	Name string

	// Args is the number of string arguments every call takes. Every spec
	// slot index must be below it.
	Args int

	// Specs are the tag templates attached to cached entries.
	Specs []Spec

	// TTL / Grace per entry; zero selects the engine defaults.
	TTL   time.Duration
	Grace time.Duration

	// Fetch produces the value. Required. len(args) == Args always holds.
	Fetch func(ctx context.Context, args []string) (V, error)
}

// Bound is a validated binding of specs to one cache.
type Bound[V any] struct {
	cache scopecache.Cache[V]
	cfg   Config[V]
}

// Bind validates cfg against its declared arity and attaches it to c.
func Bind[V any](c scopecache.Cache[V], cfg Config[V]) (*Bound[V], error) {
	if c == nil {
		return nil, fmt.Errorf("schema: cache is required")
	}
	if cfg.Name == "" {
		return nil, fmt.Errorf("schema: name is required")
	}
	if cfg.Fetch == nil {
		return nil, fmt.Errorf("schema: fetch is required")
	}
	if cfg.Args < 0 {
		return nil, fmt.Errorf("schema: %s: negative arity", cfg.Name)
	}
	for _, s := range cfg.Specs {
		if m := s.MaxArg(); m >= cfg.Args {
			return nil, fmt.Errorf("schema: %s: spec %s references slot %d but arity is %d",
				cfg.Name, s, m, cfg.Args)
		}
	}
	return &Bound[V]{cache: c, cfg: cfg}, nil
}

// Get runs the cached read for args, coalesced and tagged per the binding.
func (b *Bound[V]) Get(ctx context.Context, args ...string) (V, error) {
	var zero V
	if err := b.checkArity(args); err != nil {
		return zero, err
	}
	tags, err := b.Tags(args...)
	if err != nil {
		return zero, err
	}
	return b.cache.Query(ctx, util.ArgsKey(b.cfg.Name, args), scopecache.Query[V]{
		Fetch: func(ctx context.Context) (V, error) { return b.cfg.Fetch(ctx, args) },
		Tags:  tags,
		TTL:   b.cfg.TTL,
		Grace: b.cfg.Grace,
	})
}

// Tags resolves every spec against args.
func (b *Bound[V]) Tags(args ...string) ([]tag.Path, error) {
	if err := b.checkArity(args); err != nil {
		return nil, err
	}
	out := make([]tag.Path, 0, len(b.cfg.Specs))
	for _, s := range b.cfg.Specs {
		p, err := s.Fill(args)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// Invalidate hierarchically invalidates every spec path for args.
func (b *Bound[V]) Invalidate(ctx context.Context, args ...string) error {
	tags, err := b.Tags(args...)
	if err != nil {
		return err
	}
	return b.cache.Invalidate(ctx, tags...)
}

func (b *Bound[V]) checkArity(args []string) error {
	if len(args) != b.cfg.Args {
		return fmt.Errorf("schema: %s: got %d args, want %d", b.cfg.Name, len(args), b.cfg.Args)
	}
	return nil
}
