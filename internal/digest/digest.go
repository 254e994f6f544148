// Package digest computes fixed-size content digests used for change detection.
// Digests are never used for identity or security.
package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Size is the length of a Digest in bytes.
const Size = sha256.Size

// Digest is the SHA-256 of a byte sequence.
type Digest [Size]byte

// Sum returns the digest of data. Binary inputs are hashed as-is.
func Sum(data []byte) Digest {
	return sha256.Sum256(data)
}

// SumString returns the digest of the UTF-8 bytes of s.
func SumString(s string) Digest {
	return sha256.Sum256([]byte(s))
}

// String returns the lowercase hex encoding of d.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// Parse decodes a hex digest produced by String.
func Parse(s string) (Digest, error) {
	var d Digest
	if len(s) != 2*Size {
		return d, fmt.Errorf("digest: wrong length %d", len(s))
	}
	if _, err := hex.Decode(d[:], []byte(s)); err != nil {
		return d, fmt.Errorf("digest: %w", err)
	}
	return d, nil
}
