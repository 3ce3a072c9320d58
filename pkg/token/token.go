package token

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"

	"golang.org/x/crypto/blake2b"
)

const (
	// KeySize is the length of keys made by NewKey.
	KeySize = 32

	// DigestLength is the hex length of a digest.
	DigestLength = 2 * blake2b.Size256
)

// ErrKeyTooLong is returned for keys BLAKE2b cannot use.
var ErrKeyTooLong = errors.New("token: key longer than 64 bytes")

// Random returns n random bytes as unpadded base64url.
func Random(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// EncodedLen is the length of a Random(n) result.
func EncodedLen(n int) int {
	return base64.RawURLEncoding.EncodedLen(n)
}

// NewKey returns a fresh hashing key.
func NewKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	return key, nil
}

// Hasher computes keyed digests. It is safe for concurrent use.
type Hasher struct {
	key []byte
}

// NewHasher returns a hasher for key. An empty key gives unkeyed digests.
func NewHasher(key []byte) (*Hasher, error) {
	if len(key) > blake2b.Size {
		return nil, ErrKeyTooLong
	}
	return &Hasher{key: append([]byte(nil), key...)}, nil
}

// NewRandomHasher returns a hasher with a key that lives only in memory.
func NewRandomHasher() (*Hasher, error) {
	key, err := NewKey()
	if err != nil {
		return nil, err
	}
	return &Hasher{key: key}, nil
}

// Sum returns the hex digest of secret.
func (h *Hasher) Sum(secret string) string {
	// Key length is checked in the constructors.
	d, _ := blake2b.New256(h.key)
	d.Write([]byte(secret))
	return hex.EncodeToString(d.Sum(nil))
}

// Match reports whether secret hashes to digest, in constant time.
func (h *Hasher) Match(secret, digest string) bool {
	return subtle.ConstantTimeCompare([]byte(h.Sum(secret)), []byte(digest)) == 1
}
