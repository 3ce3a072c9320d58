// Package token mints opaque bearer secrets and the keyed digests they are
// indexed by.
//
// Secrets are CSPRNG bytes in unpadded base64url. Digests are keyed
// BLAKE2b-256 in lowercase hex, so a leaked index is useless without the
// process key.
package token
