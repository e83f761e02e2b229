// Package hashindex implements the local, crash-safe metadata layer of a
// content-addressed backup system: the mapping from content digest to
// reservation state, tree height, local payload, and external blob
// reference.
package hashindex

import (
	"bytes"
	"crypto/sha512"
	"encoding/hex"
)

// Digest is a fixed-length byte string identifying content. Equality is
// byte equality; the zero value is never a valid Digest.
type Digest []byte

// Equal reports whether d and other name the same content.
func (d Digest) Equal(other Digest) bool {
	return bytes.Equal(d, other)
}

// Empty reports whether d carries no bytes, which every public operation
// below treats as a programmer error.
func (d Digest) Empty() bool {
	return len(d) == 0
}

// NewDigest hashes text with SHA-512 and truncates the result to width
// bytes. A width of 0 or greater than sha512.Size keeps the full digest.
func NewDigest(text []byte, width int) Digest {
	sum := sha512.Sum512(text)
	if width <= 0 || width > len(sum) {
		width = len(sum)
	}
	out := make(Digest, width)
	copy(out, sum[:width])
	return out
}

// DecodeDigestHex parses a hex-encoded digest, the wire form the CLI
// and log output use.
func DecodeDigestHex(s string) (Digest, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	return Digest(b), nil
}

// String renders a digest as lowercase hex, for logging and CLI output.
func (d Digest) String() string {
	return hex.EncodeToString(d)
}
