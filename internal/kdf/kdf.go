// Package kdf implements the memory-hard passphrase-derivation function
// that protects a secret key at rest. It is deliberately not a standard
// construction (not scrypt/argon2/PBKDF2): it is a simple chained-hash
// memory fill followed by a pointer-chasing scan, reproduced bit-exactly
// from the reference design so that existing protected secret-key files
// stay decryptable.
package kdf

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/postalsys/cryptarc/internal/primitives"
)

const (
	// MinIterationExponent is the smallest allowed iexp (memlen = 32 B).
	MinIterationExponent = 5
	// MaxIterationExponent is the largest allowed iexp (memlen = 2 GiB).
	MaxIterationExponent = 31

	blockSize = sha256.Size // 32
)

// Derive computes the 32-byte protection key for (passphrase, iexp, salt).
// salt is the secret-key file's 8-byte IV, or the zero value for the E5
// known-answer vector. The function is deterministic: the same inputs
// always produce the same output, on any platform.
func Derive(passphrase []byte, iexp int, salt [8]byte) ([32]byte, error) {
	var out [32]byte
	if iexp < MinIterationExponent || iexp > MaxIterationExponent {
		return out, fmt.Errorf("kdf: iteration exponent out of range [%d,%d]: %d",
			MinIterationExponent, MaxIterationExponent, iexp)
	}

	memlen := 1 << uint(iexp)
	iterations := 1 << uint(iexp-5)

	// Step 1: 64-byte salt block = salt || zeros, used as the HMAC key
	// for the seed digest.
	var saltBlock [64]byte
	copy(saltBlock[:8], salt[:])

	var saltKey [32]byte
	copy(saltKey[:], saltBlock[:32])
	// HMAC-SHA256 requires a 32-byte key per the primitives contract, but
	// the seed step needs the full 64-byte salt block as the HMAC key
	// (SHA-256's own block size). Use the local hmacSHA256 helper here since
	// this is the one place the KDF deviates from the primitive wrapper's
	// fixed-key-size rule.
	d0 := hmacSHA256(saltBlock[:], passphrase)

	// Step 2: fill M with memlen+32 bytes by chained hashing.
	m := make([]byte, memlen+blockSize)
	copy(m[0:blockSize], d0[:])
	for i := blockSize; i < len(m); i += blockSize {
		prev := primitives.SHA256(m[i-blockSize : i])
		copy(m[i:i+blockSize], prev[:])
	}

	// Step 3: pointer-chasing scan starting at the last block.
	off := memlen
	for i := 0; i < iterations; i++ {
		block := m[off : off+blockSize]
		digest := primitives.SHA256(block)
		copy(block, digest[:])
		// The offset is read from the freshly-written digest, after the
		// overwrite — order matters for bit-exact reproduction.
		o := binary.LittleEndian.Uint32(block[:4])
		off = int(o) & (memlen - 1)
	}

	copy(out[:], m[off:off+blockSize])
	return out, nil
}

// hmacSHA256 computes HMAC-SHA256 with an arbitrary-length key, used only
// for the KDF's initial seed step where the key is the 64-byte salt block.
func hmacSHA256(key, msg []byte) [32]byte {
	const blockLen = 64
	var k [blockLen]byte
	if len(key) > blockLen {
		sum := sha256.Sum256(key)
		copy(k[:], sum[:])
	} else {
		copy(k[:], key)
	}

	var ipad, opad [blockLen]byte
	for i := 0; i < blockLen; i++ {
		ipad[i] = k[i] ^ 0x36
		opad[i] = k[i] ^ 0x5c
	}

	inner := sha256.New()
	inner.Write(ipad[:])
	inner.Write(msg)
	innerSum := inner.Sum(nil)

	outer := sha256.New()
	outer.Write(opad[:])
	outer.Write(innerSum)
	var out [32]byte
	copy(out[:], outer.Sum(nil))
	return out
}
