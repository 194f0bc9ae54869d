// Package fileid generates the random identifiers used to name stored
// uploads on disk and correlate them with database records.
package fileid

import (
	"crypto/rand"
)

const (
	// Length of every generated identifier.
	Length = 16

	alphabet = "abcdefghijklmnopqrstuvwxyz"
)

// New returns a fresh identifier: exactly 16 characters drawn uniformly
// from the lowercase English alphabet. Generation is pure value production;
// uniqueness against existing files or records is the caller's concern.
func New() string {
	// 26 does not divide 256, so rejection-sample to keep the draw uniform.
	// Accept bytes below the largest multiple of 26 (0..233).
	const limit = 256 - 256%26 // 234

	out := make([]byte, 0, Length)
	buf := make([]byte, Length)
	for len(out) < Length {
		if _, err := rand.Read(buf); err != nil {
			// crypto/rand failure means the platform RNG is broken;
			// nothing sensible to degrade to.
			panic("fileid: " + err.Error())
		}
		for _, b := range buf {
			if b >= limit {
				continue
			}
			out = append(out, alphabet[b%26])
			if len(out) == Length {
				break
			}
		}
	}
	return string(out)
}

// Valid reports whether s has the shape of a generated identifier:
// exactly 16 lowercase ASCII letters.
func Valid(s string) bool {
	if len(s) != Length {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < 'a' || s[i] > 'z' {
			return false
		}
	}
	return true
}
