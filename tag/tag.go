// Package tag defines hierarchical invalidation paths.
//
// A Path is an ordered sequence of string segments, e.g.
// {"posts", "42", "comments"}. A path Q is an ancestor of (or equal to)
// a path P when Q is a prefix of P. Invalidating Q therefore covers every
// entry tagged with any descendant of Q.
package tag

import "strings"

// Path is a hierarchical tag. Paths are treated as immutable values;
// callers must not mutate a Path after handing it to the cache.
type Path []string

// New builds a Path from segments.
func New(segments ...string) Path { return Path(segments) }

// HasPrefix reports whether q is a prefix of (or equal to) p.
func (p Path) HasPrefix(q Path) bool {
	if len(q) > len(p) {
		return false
	}
	for i := range q {
		if p[i] != q[i] {
			return false
		}
	}
	return true
}

// Equal reports segment-wise equality.
func (p Path) Equal(q Path) bool {
	return len(p) == len(q) && p.HasPrefix(q)
}

// Clone returns an independent copy of p.
func (p Path) Clone() Path {
	if p == nil {
		return nil
	}
	out := make(Path, len(p))
	copy(out, p)
	return out
}

// String renders the serialized form. Mainly for logs and debugging.
func (p Path) String() string { return Serialize(p) }

// Serialize joins segments with ':' for use as a storage key.
// Literal ':' and '\' inside a segment are escaped so distinct paths
// never collide after serialization.
func Serialize(p Path) string {
	var b strings.Builder
	for i, seg := range p {
		if i > 0 {
			b.WriteByte(':')
		}
		for j := 0; j < len(seg); j++ {
			switch seg[j] {
			case '\\', ':':
				b.WriteByte('\\')
			}
			b.WriteByte(seg[j])
		}
	}
	return b.String()
}

// Parse reverses Serialize.
func Parse(s string) Path {
	if s == "" {
		return Path{""}
	}
	var (
		parts   Path
		current strings.Builder
	)
	for i := 0; i < len(s); i++ {
		switch {
		case s[i] == '\\' && i+1 < len(s) && (s[i+1] == '\\' || s[i+1] == ':'):
			current.WriteByte(s[i+1])
			i++
		case s[i] == ':':
			parts = append(parts, current.String())
			current.Reset()
		default:
			current.WriteByte(s[i])
		}
	}
	parts = append(parts, current.String())
	return parts
}
