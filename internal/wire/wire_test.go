package wire

import (
	"testing"

	"github.com/unkn0wn-root/scopecache/tag"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	env := Envelope{
		Payload:    []byte(`{"id":"1"}`),
		Tags:       FromPaths([]tag.Path{{"users", "1"}, {"users", "1", "profile"}}),
		CreatedAt:  1_700_000_000_000,
		ExpiresAt:  1_700_000_030_000,
		GraceUntil: 1_700_000_090_000,
	}
	b, err := Encode(env)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(b)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if string(got.Payload) != string(env.Payload) {
		t.Fatalf("payload mismatch: %q", got.Payload)
	}
	paths := got.TagPaths()
	if len(paths) != 2 || !paths[0].Equal(tag.Path{"users", "1"}) {
		t.Fatalf("tags mismatch: %v", paths)
	}
	if got.CreatedAt != env.CreatedAt || got.ExpiresAt != env.ExpiresAt || got.GraceUntil != env.GraceUntil {
		t.Fatalf("timestamps mismatch: %+v", got)
	}
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	if _, err := Decode([]byte("not-wire-format")); err != ErrCorrupt {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
}

func TestDecodeRejectsWrongVersion(t *testing.T) {
	b, err := Encode(Envelope{Payload: []byte("x")})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	b[4] = 99
	if _, err := Decode(b); err != ErrCorrupt {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
}

func TestDecodeRejectsTrailingBytes(t *testing.T) {
	b, err := Encode(Envelope{Payload: []byte("x")})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	b = append(b, 0xDE, 0xAD)
	if _, err := Decode(b); err != ErrCorrupt {
		t.Fatalf("expected ErrCorrupt on trailing bytes, got %v", err)
	}
}

func TestDecodeTruncated(t *testing.T) {
	if _, err := Decode([]byte{'S', 'C', 'P'}); err != ErrCorrupt {
		t.Fatalf("expected ErrCorrupt on short input, got %v", err)
	}
}
