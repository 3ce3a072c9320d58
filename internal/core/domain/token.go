package domain

import (
	"encoding/base64"
	"strings"

	"github.com/yndnr/pairmesh-go/pkg/token"
)

const (
	// TokenPrefix marks a plaintext resume token.
	TokenPrefix = "pmtk_"

	// TokenHashPrefix marks the stored digest of a resume token.
	TokenHashPrefix = "pmth_"

	tokenEntropy = 32
)

// TokenLength is the length of every resume token.
var TokenLength = len(TokenPrefix) + token.EncodedLen(tokenEntropy)

// TokenMinter issues resume tokens and maps them to their stored digest.
// Its key never leaves the process, so tokens do not survive a restart.
type TokenMinter struct {
	hasher *token.Hasher
}

// NewTokenMinter returns a minter with a fresh random key.
func NewTokenMinter() (*TokenMinter, error) {
	h, err := token.NewRandomHasher()
	if err != nil {
		return nil, ErrInternalServer.WithCause(err)
	}
	return &TokenMinter{hasher: h}, nil
}

// NewTokenMinterWithKey returns a minter bound to key.
func NewTokenMinterWithKey(key []byte) (*TokenMinter, error) {
	h, err := token.NewHasher(key)
	if err != nil {
		return nil, ErrInvalidArgument.WithCause(err)
	}
	return &TokenMinter{hasher: h}, nil
}

// Mint returns a new plaintext token and its digest. The plaintext goes to
// the client in the welcome frame and nowhere else.
func (m *TokenMinter) Mint() (plaintext, digest string, err error) {
	body, err := token.Random(tokenEntropy)
	if err != nil {
		return "", "", ErrInternalServer.WithCause(err)
	}
	plaintext = TokenPrefix + body
	return plaintext, m.Digest(plaintext), nil
}

// Digest returns the stored form of plaintext.
func (m *TokenMinter) Digest(plaintext string) string {
	return TokenHashPrefix + m.hasher.Sum(plaintext)
}

// WellFormedToken reports whether tok could have come from Mint.
func WellFormedToken(tok string) bool {
	body, ok := strings.CutPrefix(tok, TokenPrefix)
	if !ok || len(tok) != TokenLength {
		return false
	}
	_, err := base64.RawURLEncoding.DecodeString(body)
	return err == nil
}
