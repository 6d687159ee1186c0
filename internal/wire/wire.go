// Package wire frames cache entries for byte-oriented backends.
//
// Envelope: magic(4) | ver(1) | msgpack(envelope body). The framing is
// strict: bad magic, unknown version, or trailing bytes are rejected as
// corruption so foreign writes under scopecache keys self-heal on read.
package wire

import (
	"bytes"
	"errors"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/unkn0wn-root/scopecache/tag"
)

const version byte = 1

var (
	ErrCorrupt = errors.New("scopecache: corrupt entry")
	magic4     = [...]byte{'S', 'C', 'P', 'C'}
)

// Envelope is the serialized form of an adapter entry. The value payload
// is already codec-encoded by the caller; timestamps are Unix milliseconds
// (GraceUntil 0 = no grace window).
type Envelope struct {
	Payload    []byte     `msgpack:"p"`
	Tags       [][]string `msgpack:"t"`
	CreatedAt  int64      `msgpack:"c"`
	ExpiresAt  int64      `msgpack:"e"`
	GraceUntil int64      `msgpack:"g"`
}

// TagPaths converts the serialized tag set back into paths.
func (e *Envelope) TagPaths() []tag.Path {
	if len(e.Tags) == 0 {
		return nil
	}
	out := make([]tag.Path, len(e.Tags))
	for i, t := range e.Tags {
		out[i] = tag.Path(t)
	}
	return out
}

// FromPaths serializes tag paths for the envelope.
func FromPaths(paths []tag.Path) [][]string {
	if len(paths) == 0 {
		return nil
	}
	out := make([][]string, len(paths))
	for i, p := range paths {
		out[i] = []string(p)
	}
	return out
}

func Encode(env Envelope) ([]byte, error) {
	body, err := msgpack.Marshal(&env)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(magic4)+1+len(body))
	out = append(out, magic4[:]...)
	out = append(out, version)
	out = append(out, body...)
	return out, nil
}

func Decode(b []byte) (Envelope, error) {
	const hdr = 4 + 1
	if len(b) < hdr || !bytes.Equal(b[:4], magic4[:]) || b[4] != version {
		return Envelope{}, ErrCorrupt
	}
	dec := msgpack.NewDecoder(bytes.NewReader(b[hdr:]))
	var env Envelope
	if err := dec.Decode(&env); err != nil {
		return Envelope{}, ErrCorrupt
	}
	// strict framing: nothing may follow the body
	if _, err := dec.DecodeInterface(); !errors.Is(err, io.EOF) {
		return Envelope{}, ErrCorrupt
	}
	return env, nil
}
