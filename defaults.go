package scopecache

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/unkn0wn-root/scopecache/codec"
)

// coalesce returns def when v is the zero value of T - otherwise v.
func coalesce[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}

// defaultDigest hashes the canonical CBOR encoding of a value and keeps a
// short prefix. Canonical encoding makes equal values digest equally
// regardless of map iteration order.
func defaultDigest[V any]() (func(V) (string, error), error) {
	enc, err := codec.NewCBOR[V](true)
	if err != nil {
		return nil, err
	}
	return func(v V) (string, error) {
		b, err := enc.Encode(v)
		if err != nil {
			return "", err
		}
		sum := sha256.Sum256(b)
		return hex.EncodeToString(sum[:8]), nil
	}, nil
}
