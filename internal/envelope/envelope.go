// Package envelope implements the archive/extract wire protocol (C6):
// ephemeral-static Curve25519 key agreement, IV derivation and format-version
// binding, and driving the authenticated stream codec under the resulting
// shared secret. See spec.md §4.6.
package envelope

import (
	"errors"
	"fmt"
	"io"

	"github.com/postalsys/cryptarc/internal/codec"
	"github.com/postalsys/cryptarc/internal/entropy"
	"github.com/postalsys/cryptarc/internal/keyfile"
	"github.com/postalsys/cryptarc/internal/primitives"
)

// HeaderSize is the size of the archive header: 8-byte IV plus the 32-byte
// ephemeral public point.
const HeaderSize = primitives.IVSize + primitives.ScalarSize

// ErrInvalidKeyOrFormat is returned by Extract when the recomputed IV does
// not match the one stored in the archive header -- either the wrong secret
// key was used, or the input is not a well-formed archive.
var ErrInvalidKeyOrFormat = errors.New("invalid master key or format")

// Archive encrypts the plaintext from r into w as a complete archive: an
// 8-byte IV, a 32-byte ephemeral public point, the ChaCha20 ciphertext, and
// a trailing 32-byte HMAC tag over the plaintext (spec.md §4.6 Archive).
func Archive(w io.Writer, r io.Reader, recipient keyfile.PublicKey) error {
	e, err := entropy.GenerateScalar()
	if err != nil {
		return err
	}
	defer primitives.ZeroArray(&e)

	ephemeralPub := primitives.ScalarBaseMult(e)

	shared, err := primitives.ScalarMult(e, [primitives.ScalarSize]byte(recipient))
	if err != nil {
		return fmt.Errorf("envelope: %w", err)
	}
	defer primitives.ZeroArray(&shared)

	iv := deriveIV(shared)

	if _, err := w.Write(iv[:]); err != nil {
		return fmt.Errorf("envelope: write header: %w", err)
	}
	if _, err := w.Write(ephemeralPub[:]); err != nil {
		return fmt.Errorf("envelope: write header: %w", err)
	}

	return codec.Encrypt(w, r, shared, iv)
}

// Extract decrypts an archive produced by Archive, reading the header from r
// and writing the recovered plaintext to w. It returns ErrInvalidKeyOrFormat
// before writing any plaintext if the secret key does not match the one the
// archive was created for, and returns codec.ErrChecksumMismatch or
// codec.ErrTooShort for integrity/truncation failures in the body.
func Extract(w io.Writer, r io.Reader, secret [primitives.ScalarSize]byte) error {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return fmt.Errorf("envelope: %w: truncated header", codec.ErrTooShort)
		}
		return fmt.Errorf("envelope: read header: %w", err)
	}

	var iv [primitives.IVSize]byte
	copy(iv[:], header[:primitives.IVSize])
	var ephemeralPub [primitives.ScalarSize]byte
	copy(ephemeralPub[:], header[primitives.IVSize:])

	shared, err := primitives.ScalarMult(secret, ephemeralPub)
	if err != nil {
		return fmt.Errorf("envelope: %w", err)
	}
	defer primitives.ZeroArray(&shared)

	expectedIV := deriveIV(shared)
	if iv != expectedIV {
		return ErrInvalidKeyOrFormat
	}

	return codec.Decrypt(w, r, shared, iv)
}

// deriveIV computes SHA-256(shared)[0..8] with the first byte bound to the
// secret-key format version, per spec.md §4.6 steps 3/4.
func deriveIV(shared [primitives.ScalarSize]byte) [primitives.IVSize]byte {
	digest := primitives.SHA256(shared[:])
	var iv [primitives.IVSize]byte
	copy(iv[:], digest[:primitives.IVSize])
	iv[0] += keyfile.FormatVersion
	return iv
}
