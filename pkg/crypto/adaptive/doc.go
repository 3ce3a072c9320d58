// Package adaptive seals small secrets with an AEAD chosen for the host.
//
// AES-256-GCM is used where the CPU accelerates AES, ChaCha20-Poly1305
// elsewhere. Sealed output starts with a one-byte cipher tag, so Open
// reads data sealed on any host given the same key.
//
//	c, err := adaptive.New(key)
//	sealed, err := c.Seal(secret, aad)
//	secret, err := adaptive.Open(key, sealed, aad)
package adaptive
