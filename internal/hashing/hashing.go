// Package hashing computes the content fingerprints used for graph cache
// keys. Fingerprints are 64-bit xxHash digests rendered as "xxh64:<hex>"
// so the algorithm is visible in stored keys and a future algorithm change
// invalidates old entries by construction.
package hashing

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/cespare/xxhash/v2"
)

// Prefix identifies the digest algorithm in rendered fingerprints.
const Prefix = "xxh64"

// Sum fingerprints a sequence of byte parts. Each part is length-prefixed
// before hashing so part boundaries stay unambiguous: Sum(a, bc) and
// Sum(ab, c) produce different digests.
func Sum(parts ...[]byte) string {
	d := xxhash.New()
	var lenBuf [8]byte
	for _, p := range parts {
		binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(p)))
		_, _ = d.Write(lenBuf[:])
		_, _ = d.Write(p)
	}
	return fmt.Sprintf("%s:%016x", Prefix, d.Sum64())
}

// SumString fingerprints a single string.
func SumString(s string) string {
	return Sum([]byte(s))
}

// File computes the fingerprint of the file contents at path.
func File(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading file for hash: %w", err)
	}
	return Sum(data), nil
}
