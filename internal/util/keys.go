package util

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// ArgsKey builds a deterministic cache key for a named query with
// positional arguments: "<name>:" plus a short hash over the escaped
// argument list. Hashing keeps keys bounded no matter how large the
// arguments are, while ':' escaping keeps distinct argument lists from
// colliding before the hash.
func ArgsKey(name string, args []string) string {
	if len(args) == 0 {
		return name
	}
	escaped := make([]string, len(args))
	for i, a := range args {
		escaped[i] = strings.ReplaceAll(strings.ReplaceAll(a, "\\", "\\\\"), ":", "\\:")
	}
	sum := sha256.Sum256([]byte(strings.Join(escaped, ":")))
	return name + ":" + hex.EncodeToString(sum[:8])
}
