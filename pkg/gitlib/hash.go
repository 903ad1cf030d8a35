// Package gitlib provides read-side git queries over libgit2. Mutating
// operations (revert, reset, branch creation) go through the git CLI runner
// in internal/vcs; this package never writes to the repository.
package gitlib

import (
	"errors"
	"fmt"

	git2go "github.com/libgit2/git2go/v34"
)

// HashSize is the size of a SHA-1 hash in bytes.
const HashSize = 20

// HashHexSize is the size of a hex-encoded SHA-1 hash.
const HashHexSize = 40

// shortHashLen is the abbreviated hash length used in logs and UI output.
const shortHashLen = 8

// ErrInvalidHash reports a string that is not a full hex commit hash.
var ErrInvalidHash = errors.New("invalid commit hash")

// Hash represents a git object hash (SHA-1).
type Hash [HashSize]byte

// ParseHash converts a full 40-character hex string into a Hash.
func ParseHash(hexStr string) (Hash, error) {
	if len(hexStr) != HashHexSize {
		return Hash{}, fmt.Errorf("%w: %q has length %d, want %d", ErrInvalidHash, hexStr, len(hexStr), HashHexSize)
	}

	var hash Hash

	for i := range HashSize {
		hi, okHi := hexNibble(hexStr[i*2])
		lo, okLo := hexNibble(hexStr[i*2+1])

		if !okHi || !okLo {
			return Hash{}, fmt.Errorf("%w: %q contains a non-hex character", ErrInvalidHash, hexStr)
		}

		hash[i] = hi<<4 | lo
	}

	return hash, nil
}

// hexNibble converts one hex character to its 4-bit value.
func hexNibble(char byte) (byte, bool) {
	switch {
	case char >= '0' && char <= '9':
		return char - '0', true
	case char >= 'a' && char <= 'f':
		return char - 'a' + 10, true
	case char >= 'A' && char <= 'F':
		return char - 'A' + 10, true
	default:
		return 0, false
	}
}

// HashFromOid converts a libgit2 Oid to Hash.
func HashFromOid(oid *git2go.Oid) Hash {
	var h Hash
	copy(h[:], oid[:])

	return h
}

// String returns the hex representation of the hash.
func (h Hash) String() string {
	const hexChars = "0123456789abcdef"

	buf := make([]byte, HashHexSize)

	for i, byteVal := range h {
		buf[i*2] = hexChars[byteVal>>4]
		buf[i*2+1] = hexChars[byteVal&0x0f]
	}

	return string(buf)
}

// Short returns the abbreviated hex representation of the hash.
func (h Hash) Short() string {
	return h.String()[:shortHashLen]
}

// IsZero returns true if the hash is all zeros.
func (h Hash) IsZero() bool {
	for _, b := range h {
		if b != 0 {
			return false
		}
	}

	return true
}

// ToOid converts Hash back to libgit2 Oid.
func (h Hash) ToOid() *git2go.Oid {
	oid := new(git2go.Oid)
	copy(oid[:], h[:])

	return oid
}
