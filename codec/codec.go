// Package codec serializes cached values for byte-oriented storage
// backends. In-process adapters store typed entries directly and do not
// need a codec; the redis and bigcache adapters require one.
package codec

// Codec encodes/decodes values V to []byte for storage.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}
