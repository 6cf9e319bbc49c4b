// Package codec implements the authenticated stream cipher that drives
// archive/extract: ChaCha20 encryption with an HMAC-SHA256 tag computed
// over the plaintext and appended after the ciphertext (spec.md §4.5).
//
// This is a MAC-then-stream construction, not a modern AEAD: the MAC
// covers plaintext rather than ciphertext, and a decrypting reader cannot
// know the stream authenticated until it has already written every byte
// of plaintext out. spec.md §9 calls this out explicitly as a known
// weakness carried forward for file-format compatibility; a new design
// would use MAC-over-ciphertext instead.
package codec

import (
	"errors"
	"fmt"
	"io"

	"github.com/postalsys/cryptarc/internal/primitives"
)

// chunkSize is the natural I/O granularity; the wire format does not
// depend on it.
const chunkSize = 64 * 1024

// ErrTooShort is returned by Decrypt when the input is shorter than one
// HMAC tag (32 bytes) — too short to possibly be valid ciphertext.
var ErrTooShort = errors.New("ciphertext file too short")

// ErrChecksumMismatch is returned by Decrypt when the trailing HMAC tag
// does not match the HMAC of the decrypted plaintext.
var ErrChecksumMismatch = errors.New("checksum mismatch!")

// Encrypt reads plaintext from r, writes ChaCha20(key, iv)-encrypted bytes
// to w, and appends a 32-byte HMAC-SHA256 tag computed over the plaintext.
func Encrypt(w io.Writer, r io.Reader, key [32]byte, iv [primitives.IVSize]byte) error {
	stream, err := primitives.NewChaCha20Stream(key, iv)
	if err != nil {
		return err
	}

	mac := primitives.NewMAC(key)
	buf := make([]byte, chunkSize)
	out := make([]byte, chunkSize)

	for {
		n, readErr := r.Read(buf)
		if n > 0 {
			mac.Update(buf[:n])
			stream.XOR(out[:n], buf[:n])
			if _, err := w.Write(out[:n]); err != nil {
				return fmt.Errorf("codec: write ciphertext: %w", err)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return fmt.Errorf("codec: read plaintext: %w", readErr)
		}
	}

	tag := mac.Final()
	if _, err := w.Write(tag[:]); err != nil {
		return fmt.Errorf("codec: write checksum: %w", err)
	}
	return nil
}

// Decrypt reads ciphertext-then-tag from r, writes the decrypted plaintext
// to w as soon as it is known not to be part of the trailing tag, and
// verifies the HMAC only after every plaintext byte has already been
// written — matching spec.md §4.5's documented ordering. Returns
// ErrTooShort if r has fewer than 32 bytes, or ErrChecksumMismatch if the
// trailing tag does not match.
func Decrypt(w io.Writer, r io.Reader, key [32]byte, iv [primitives.IVSize]byte) error {
	stream, err := primitives.NewChaCha20Stream(key, iv)
	if err != nil {
		return err
	}
	mac := primitives.NewMAC(key)

	// window holds the most recent <=32 bytes read that have not yet been
	// proven to be ciphertext rather than the trailing tag.
	window := make([]byte, 0, primitives.MacSize)
	readBuf := make([]byte, chunkSize)

	fill := func(dst []byte) (int, error) {
		return io.ReadFull(r, dst)
	}

	n, err := fill(readBuf[:primitives.MacSize])
	if err != nil && err != io.ErrUnexpectedEOF {
		if err == io.EOF {
			return ErrTooShort
		}
		return fmt.Errorf("codec: read ciphertext: %w", err)
	}
	if n < primitives.MacSize {
		return ErrTooShort
	}
	window = append(window, readBuf[:primitives.MacSize]...)

	plain := make([]byte, chunkSize)
	for {
		n, readErr := r.Read(readBuf)
		if n > 0 {
			combined := append(window, readBuf[:n]...)
			emit := combined[:len(combined)-primitives.MacSize]
			if len(emit) > cap(plain) {
				plain = make([]byte, len(emit))
			}
			stream.XOR(plain[:len(emit)], emit)
			mac.Update(plain[:len(emit)])
			if _, err := w.Write(plain[:len(emit)]); err != nil {
				return fmt.Errorf("codec: write plaintext: %w", err)
			}
			window = append(window[:0], combined[len(combined)-primitives.MacSize:]...)
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return fmt.Errorf("codec: read ciphertext: %w", readErr)
		}
	}

	tag := mac.Final()
	if !hmacEqual(window, tag[:]) {
		return ErrChecksumMismatch
	}
	return nil
}

func hmacEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	var v byte
	for i := range a {
		v |= a[i] ^ b[i]
	}
	return v == 0
}
