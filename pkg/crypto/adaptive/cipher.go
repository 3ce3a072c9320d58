package adaptive

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"runtime"

	"golang.org/x/crypto/chacha20poly1305"
)

// KeySize is the key length in bytes for every cipher.
const KeySize = 32

// CipherType identifies the cipher algorithm.
type CipherType string

const (
	CipherAESGCM   CipherType = "aes-256-gcm"
	CipherChaCha20 CipherType = "chacha20-poly1305"
)

// Tags written as the first byte of sealed output.
const (
	tagAESGCM   byte = 1
	tagChaCha20 byte = 2
)

var (
	ErrKeySize        = fmt.Errorf("adaptive: key must be %d bytes", KeySize)
	ErrMalformed      = errors.New("adaptive: sealed data is malformed")
	ErrCipherMismatch = errors.New("adaptive: sealed with a different cipher")
)

// Cipher seals and opens data with one AEAD.
type Cipher interface {
	Type() CipherType

	// Seal returns tag || nonce || ciphertext.
	Seal(plaintext, additionalData []byte) ([]byte, error)

	// Open reverses Seal. It fails if the data was sealed with another
	// cipher type, a different key or different additional data.
	Open(sealed, additionalData []byte) ([]byte, error)
}

// New returns the preferred cipher for this host.
func New(key []byte) (Cipher, error) {
	return NewWithType(key, Preferred())
}

// NewWithType returns a cipher of the given type.
func NewWithType(key []byte, t CipherType) (Cipher, error) {
	if len(key) != KeySize {
		return nil, ErrKeySize
	}

	var (
		aead cipher.AEAD
		tag  byte
		err  error
	)
	switch t {
	case CipherAESGCM:
		var block cipher.Block
		if block, err = aes.NewCipher(key); err != nil {
			return nil, err
		}
		aead, err = cipher.NewGCM(block)
		tag = tagAESGCM
	case CipherChaCha20:
		aead, err = chacha20poly1305.New(key)
		tag = tagChaCha20
	default:
		return nil, fmt.Errorf("adaptive: unknown cipher type %q", t)
	}
	if err != nil {
		return nil, err
	}
	return &aeadCipher{typ: t, tag: tag, aead: aead}, nil
}

// Open opens data sealed by any cipher in this package.
func Open(key, sealed, additionalData []byte) ([]byte, error) {
	if len(sealed) == 0 {
		return nil, ErrMalformed
	}
	var t CipherType
	switch sealed[0] {
	case tagAESGCM:
		t = CipherAESGCM
	case tagChaCha20:
		t = CipherChaCha20
	default:
		return nil, ErrMalformed
	}
	c, err := NewWithType(key, t)
	if err != nil {
		return nil, err
	}
	return c.Open(sealed, additionalData)
}

// NewKey returns a random key.
func NewKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, err
	}
	return key, nil
}

// Preferred returns AES-GCM on amd64 and arm64, where Go uses the CPU's
// AES instructions, and ChaCha20-Poly1305 elsewhere.
func Preferred() CipherType {
	switch runtime.GOARCH {
	case "amd64", "arm64":
		return CipherAESGCM
	default:
		return CipherChaCha20
	}
}

type aeadCipher struct {
	typ  CipherType
	tag  byte
	aead cipher.AEAD
}

func (c *aeadCipher) Type() CipherType { return c.typ }

func (c *aeadCipher) Seal(plaintext, additionalData []byte) ([]byte, error) {
	ns := c.aead.NonceSize()
	out := make([]byte, 1+ns, 1+ns+len(plaintext)+c.aead.Overhead())
	out[0] = c.tag
	if _, err := io.ReadFull(rand.Reader, out[1:]); err != nil {
		return nil, err
	}
	return c.aead.Seal(out, out[1:], plaintext, additionalData), nil
}

func (c *aeadCipher) Open(sealed, additionalData []byte) ([]byte, error) {
	ns := c.aead.NonceSize()
	if len(sealed) < 1+ns+c.aead.Overhead() {
		return nil, ErrMalformed
	}
	if sealed[0] != c.tag {
		return nil, ErrCipherMismatch
	}
	return c.aead.Open(nil, sealed[1:1+ns], sealed[1+ns:], additionalData)
}
