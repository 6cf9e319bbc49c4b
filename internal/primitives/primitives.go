// Package primitives provides a uniform, minimal interface over the four
// cryptographic building blocks the envelope protocol is built from:
// SHA-256, HMAC-SHA256, ChaCha20, and Curve25519. Nothing here makes a
// policy decision about key sizes, nonce reuse, or authentication — that
// belongs to the higher-level packages that drive these primitives.
package primitives

import (
	"crypto/hmac"
	"crypto/sha256"
	"fmt"
	"hash"

	"golang.org/x/crypto/chacha20"
	"golang.org/x/crypto/curve25519"
)

const (
	// ScalarSize is the size of a Curve25519 private scalar and of a
	// Curve25519 public point (they share a representation).
	ScalarSize = 32

	// DigestSize is the output size of SHA-256.
	DigestSize = 32

	// IVSize is the size of the ChaCha20 nonce used throughout this
	// protocol (also the agent rendezvous id and the KDF salt).
	IVSize = 8

	// MacSize is the output size of HMAC-SHA256.
	MacSize = 32
)

// Digest is an incremental SHA-256 hasher, exposing init/update/final as
// separate steps for callers that hash data as it streams by.
type Digest struct {
	h hash.Hash
}

// NewDigest starts a new incremental SHA-256 computation.
func NewDigest() *Digest {
	return &Digest{h: sha256.New()}
}

// Update feeds more data into the digest.
func (d *Digest) Update(p []byte) {
	d.h.Write(p)
}

// Final returns the 32-byte SHA-256 digest of everything written so far.
func (d *Digest) Final() [DigestSize]byte {
	var out [DigestSize]byte
	copy(out[:], d.h.Sum(nil))
	return out
}

// SHA256 hashes a single buffer in one call.
func SHA256(data []byte) [DigestSize]byte {
	return sha256.Sum256(data)
}

// HMACSHA256 computes HMAC-SHA256 over msg with a 32-byte key. The wrapper
// accepts 32-byte keys only: anything else is a programming error, not a
// runtime condition to recover from, since every key in this protocol is a
// fixed-size Scalar/ProtectionKey/SessionKey.
func HMACSHA256(key [32]byte, msg []byte) [MacSize]byte {
	mac := hmac.New(sha256.New, key[:])
	mac.Write(msg)
	var out [MacSize]byte
	copy(out[:], mac.Sum(nil))
	return out
}

// MAC is an incremental HMAC-SHA256 computation, used by the streaming
// codec so it never has to buffer a whole file to authenticate it.
type MAC struct {
	h hash.Hash
}

// NewMAC starts a new incremental HMAC-SHA256 computation under a 32-byte
// key.
func NewMAC(key [32]byte) *MAC {
	return &MAC{h: hmac.New(sha256.New, key[:])}
}

// Update feeds more message bytes into the MAC.
func (m *MAC) Update(p []byte) {
	m.h.Write(p)
}

// Final returns the 32-byte tag for everything written so far.
func (m *MAC) Final() [MacSize]byte {
	var out [MacSize]byte
	copy(out[:], m.h.Sum(nil))
	return out
}

// ChaCha20XOR XORs in with the ChaCha20 keystream under (key, nonce),
// writing the result to dst. The stream counter always starts at zero;
// callers that need to continue a stream across calls use ChaCha20Stream.
func ChaCha20XOR(key [32]byte, nonce [IVSize]byte, dst, src []byte) error {
	c, err := newChaCha20Cipher(key, nonce)
	if err != nil {
		return err
	}
	c.XORKeyStream(dst, src)
	return nil
}

// ChaCha20Stream is a resumable ChaCha20 keystream generator, used by the
// streaming codec so plaintext does not need to be buffered in full before
// encryption begins.
type ChaCha20Stream struct {
	c *chacha20.Cipher
}

// NewChaCha20Stream creates a keystream generator starting at counter zero.
func NewChaCha20Stream(key [32]byte, nonce [IVSize]byte) (*ChaCha20Stream, error) {
	c, err := newChaCha20Cipher(key, nonce)
	if err != nil {
		return nil, err
	}
	return &ChaCha20Stream{c: c}, nil
}

// XOR encrypts (or decrypts) the next len(src) bytes of the stream.
func (s *ChaCha20Stream) XOR(dst, src []byte) {
	s.c.XORKeyStream(dst, src)
}

func newChaCha20Cipher(key [32]byte, nonce [IVSize]byte) (*chacha20.Cipher, error) {
	// golang.org/x/crypto/chacha20 wants a 12-byte nonce; the protocol's
	// 8-byte IV fills the low 8 bytes with the high 4 left zero, matching
	// the reference implementation's 64-bit nonce convention.
	var nonce12 [chacha20.NonceSize]byte
	copy(nonce12[:], nonce[:])
	c, err := chacha20.NewUnauthenticatedCipher(key[:], nonce12[:])
	if err != nil {
		return nil, fmt.Errorf("chacha20: %w", err)
	}
	return c, nil
}

// ClampScalar enforces the Curve25519 private-scalar invariant in place:
// s[0] &7 == 0, s[31]&0x80 == 0, s[31]&0x40 == 0x40.
func ClampScalar(s *[ScalarSize]byte) {
	s[0] &= 248
	s[31] &= 127
	s[31] |= 64
}

// IsClamped reports whether s satisfies the Curve25519 clamp invariant.
func IsClamped(s [ScalarSize]byte) bool {
	return s[0]&7 == 0 && s[31]&0x80 == 0 && s[31]&0x40 == 0x40
}

// ScalarBaseMult computes the Curve25519 public point for scalar s, i.e.
// s * basepoint({9, 0, ..., 0}).
func ScalarBaseMult(s [ScalarSize]byte) [ScalarSize]byte {
	var out [ScalarSize]byte
	curve25519.ScalarBaseMult(&out, &s)
	return out
}

// ScalarMult computes the Curve25519 DH output s * point.
func ScalarMult(s, point [ScalarSize]byte) ([ScalarSize]byte, error) {
	var out [ScalarSize]byte
	curve25519.ScalarMult(&out, &s, &point)
	// A zero result indicates the peer supplied a low-order point; reject
	// it rather than handing back a degenerate shared secret.
	var zero [ScalarSize]byte
	if out == zero {
		return out, fmt.Errorf("curve25519: invalid point (low-order result)")
	}
	return out, nil
}

// Zero overwrites b with zeros. Call this on every Scalar, ProtectionKey,
// SessionKey, or passphrase buffer before it goes out of scope.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// ZeroArray overwrites a fixed-size key array with zeros.
func ZeroArray(b *[32]byte) {
	for i := range b {
		b[i] = 0
	}
}
