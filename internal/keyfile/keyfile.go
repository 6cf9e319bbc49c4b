// Package keyfile implements the on-disk formats for the recipient public
// key and the (optionally passphrase-protected) secret key, per spec.md §3
// and §4.4. It owns the encode/decode logic only; passphrase collection is
// delegated to a Prompter so this package stays testable without a
// terminal, and agent lookups are delegated to an Agent so this package
// does not depend on process/socket machinery.
package keyfile

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/postalsys/cryptarc/internal/cleanup"
	"github.com/postalsys/cryptarc/internal/entropy"
	"github.com/postalsys/cryptarc/internal/kdf"
	"github.com/postalsys/cryptarc/internal/primitives"
)

// FormatVersion is the compiled-in secret-key file format version. It also
// participates in the archive IV binding (spec.md §4.6).
const FormatVersion = 2

const (
	secretFileSize = 64

	offIV           = 0
	offIterExponent = 8
	offVersion      = 9
	offProtectHash  = 12
	offScalar       = 32

	protectHashSize = 20
)

var (
	// ErrVersionMismatch is returned when a secret-key file was written by
	// a different protocol version than this build implements.
	ErrVersionMismatch = errors.New("secret key version mismatch")
	// ErrWrongPassphrase is returned when the supplied passphrase's
	// derived ProtectHash does not match the one stored in the file.
	ErrWrongPassphrase = errors.New("wrong passphrase")
	// ErrPassphraseMismatch is returned by WriteSecret when the two
	// passphrase prompts disagree.
	ErrPassphraseMismatch = errors.New("passphrases don't match")
)

// Prompter collects a passphrase from whatever the caller considers "the
// controlling terminal". cryptarc's real implementation is internal/tty;
// tests supply a canned Prompter instead.
type Prompter interface {
	// ReadPassphrase prompts once and returns the entered bytes.
	ReadPassphrase(prompt string) ([]byte, error)
}

// Agent abstracts the key-agent rendezvous (C7) so this package does not
// import internal/keyagent directly; cmd/cryptarc wires the real one in.
type Agent interface {
	// TryRead asks a running agent for the protection key cached for iv.
	// ok is false if no agent answered (not an error condition).
	TryRead(iv [primitives.IVSize]byte) (key [32]byte, ok bool)
	// Spawn starts (or re-primes) an agent caching key under iv. Failure
	// is a warning, never fatal.
	Spawn(key [32]byte, iv [primitives.IVSize]byte) error
}

// PublicKey is a recipient's Curve25519 public point.
type PublicKey [primitives.ScalarSize]byte

// WritePublic writes a 32-byte public-key file to path.
func WritePublic(path string, pub PublicKey) error {
	return writeKeyFile(path, pub[:], 0600)
}

// ReadPublic reads a 32-byte public-key file from path.
func ReadPublic(path string) (PublicKey, error) {
	var pub PublicKey
	data, err := os.ReadFile(path)
	if err != nil {
		return pub, fmt.Errorf("read public key %s: %w", path, err)
	}
	if len(data) != primitives.ScalarSize {
		return pub, fmt.Errorf("read public key %s: expected %d bytes, got %d",
			path, primitives.ScalarSize, len(data))
	}
	copy(pub[:], data)
	return pub, nil
}

// Fingerprint renders SHA-256(public)[0..16] as four dash-joined 8-hex-digit
// big-endian words, per spec.md §6.
func Fingerprint(pub PublicKey) string {
	sum := primitives.SHA256(pub[:])
	return fmt.Sprintf("%08x-%08x-%08x-%08x",
		beUint32(sum[0:4]), beUint32(sum[4:8]), beUint32(sum[8:12]), beUint32(sum[12:16]))
}

func beUint32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

// WriteSecretOptions configures WriteSecret.
type WriteSecretOptions struct {
	// IterationExponent is the KDF cost; 0 means write the scalar
	// unprotected.
	IterationExponent int
	Prompt            Prompter
}

// WriteSecret encodes scalar into the 64-byte secret-key container and
// writes it to path with owner-only permissions. If opts.IterationExponent
// is 0, the scalar is stored in the clear. Otherwise the caller is
// prompted twice for a passphrase; an empty passphrase silently downgrades
// to unprotected storage, matching the reference tool's behavior.
func WriteSecret(path string, scalar [primitives.ScalarSize]byte, opts WriteSecretOptions) error {
	buf, err := encodeSecret(scalar, opts)
	if err != nil {
		return err
	}
	defer primitives.Zero(buf)
	return writeKeyFile(path, buf, 0600)
}

func encodeSecret(scalar [primitives.ScalarSize]byte, opts WriteSecretOptions) ([]byte, error) {
	buf := make([]byte, secretFileSize)
	buf[offVersion] = FormatVersion

	iexp := opts.IterationExponent
	if iexp == 0 {
		copy(buf[offScalar:], scalar[:])
		return buf, nil
	}

	if opts.Prompt == nil {
		return nil, fmt.Errorf("keyfile: iteration exponent %d requires a passphrase prompter", iexp)
	}

	pass1, err := opts.Prompt.ReadPassphrase("passphrase: ")
	if err != nil {
		return nil, err
	}
	defer primitives.Zero(pass1)

	pass2, err := opts.Prompt.ReadPassphrase("passphrase (repeat): ")
	if err != nil {
		return nil, err
	}
	defer primitives.Zero(pass2)

	if !bytes.Equal(pass1, pass2) {
		return nil, ErrPassphraseMismatch
	}

	if len(pass1) == 0 {
		// Silent downgrade to unprotected storage, per spec.md §4.4.
		copy(buf[offScalar:], scalar[:])
		return buf, nil
	}

	iv, err := entropy.GenerateIV()
	if err != nil {
		return nil, err
	}
	protectionKey, err := kdf.Derive(pass1, iexp, iv)
	if err != nil {
		return nil, err
	}
	defer primitives.ZeroArray(&protectionKey)

	hash := primitives.SHA256(protectionKey[:])

	buf[offIterExponent] = byte(iexp)
	copy(buf[offIV:offIV+primitives.IVSize], iv[:])
	copy(buf[offProtectHash:offProtectHash+protectHashSize], hash[:protectHashSize])

	encScalar := make([]byte, primitives.ScalarSize)
	if err := primitives.ChaCha20XOR(protectionKey, iv, encScalar, scalar[:]); err != nil {
		return nil, err
	}
	copy(buf[offScalar:], encScalar)
	primitives.Zero(encScalar)

	return buf, nil
}

// ReadSecretOptions configures ReadSecret's passphrase/agent fallback path.
type ReadSecretOptions struct {
	Prompt Prompter
	Agent  Agent
	// SpawnAgent requests that a freshly-derived protection key be handed
	// to a newly spawned agent after a successful passphrase prompt, so
	// subsequent reads in the agent's timeout window skip the prompt.
	SpawnAgent bool
}

// ReadSecret decodes the 64-byte secret-key container at path, consulting
// opts.Agent before falling back to opts.Prompt, per spec.md §4.4.
func ReadSecret(path string, opts ReadSecretOptions) ([primitives.ScalarSize]byte, error) {
	var scalar [primitives.ScalarSize]byte

	data, err := os.ReadFile(path)
	if err != nil {
		return scalar, fmt.Errorf("read secret key %s: %w", path, err)
	}
	if len(data) != secretFileSize {
		return scalar, fmt.Errorf("read secret key %s: expected %d bytes, got %d",
			path, secretFileSize, len(data))
	}
	if data[offVersion] != FormatVersion {
		return scalar, fmt.Errorf("%w -- expected %d, got %d", ErrVersionMismatch, FormatVersion, data[offVersion])
	}

	iexp := int(data[offIterExponent])
	if iexp == 0 {
		copy(scalar[:], data[offScalar:offScalar+primitives.ScalarSize])
		return scalar, nil
	}

	var iv [primitives.IVSize]byte
	copy(iv[:], data[offIV:offIV+primitives.IVSize])
	storedHash := data[offProtectHash : offProtectHash+protectHashSize]

	protectionKey, agentHit, err := resolveProtectionKey(iv, storedHash, iexp, opts)
	if err != nil {
		return scalar, err
	}
	defer primitives.ZeroArray(&protectionKey)

	if !agentHit && opts.SpawnAgent && opts.Agent != nil {
		if err := opts.Agent.Spawn(protectionKey, iv); err != nil {
			// Agent spawn failure is a warning, never fatal (spec.md §4.7).
			fmt.Fprintf(os.Stderr, "cryptarc: warning: could not start key agent: %v\n", err)
		}
	}

	if err := primitives.ChaCha20XOR(protectionKey, iv, scalar[:], data[offScalar:offScalar+primitives.ScalarSize]); err != nil {
		return scalar, err
	}
	return scalar, nil
}

// resolveProtectionKey implements the agent-then-prompt fallback chain of
// spec.md §4.4 step 3. agentHit reports whether the agent (not the prompt)
// supplied the accepted key.
func resolveProtectionKey(iv [primitives.IVSize]byte, storedHash []byte, iexp int, opts ReadSecretOptions) ([32]byte, bool, error) {
	var zero [32]byte

	if opts.Agent != nil {
		if key, ok := opts.Agent.TryRead(iv); ok {
			hash := primitives.SHA256(key[:])
			if bytes.Equal(hash[:protectHashSize], storedHash) {
				return key, true, nil
			}
			// A mismatching agent response is treated exactly like a
			// miss: the agent is trusted for availability, not
			// integrity (spec.md §4.7 Contract).
			primitives.ZeroArray(&key)
		}
	}

	if opts.Prompt == nil {
		return zero, false, fmt.Errorf("keyfile: secret key is passphrase-protected but no prompter was configured")
	}

	pass, err := opts.Prompt.ReadPassphrase("passphrase: ")
	if err != nil {
		return zero, false, err
	}
	defer primitives.Zero(pass)

	var saltArr [8]byte
	copy(saltArr[:], iv[:])
	key, err := kdf.Derive(pass, iexp, saltArr)
	if err != nil {
		return zero, false, err
	}

	hash := primitives.SHA256(key[:])
	if !bytes.Equal(hash[:protectHashSize], storedHash) {
		primitives.ZeroArray(&key)
		return zero, false, ErrWrongPassphrase
	}
	return key, false, nil
}

func writeKeyFile(path string, data []byte, perm os.FileMode) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("failed to open key file for writing %s: %w", path, err)
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("failed to write key file %s: %w", path, err)
	}
	return nil
}

// EnsureNotClobbering returns an error unless force is set or path does not
// already exist, matching spec.md §7's user-input-error policy.
func EnsureNotClobbering(path string, force bool) error {
	if force {
		return nil
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("operation would clobber %s (use --force to overwrite)", path)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	return nil
}

// TrackedWriteSecret writes a secret key while registering it with a
// cleanup registry, so a later failure in the same command (e.g. writing
// the matching public key) unwinds this file too.
func TrackedWriteSecret(reg *cleanup.Registry, path string, scalar [primitives.ScalarSize]byte, opts WriteSecretOptions) (*cleanup.Handle, error) {
	h := reg.Track(path)
	if err := WriteSecret(path, scalar, opts); err != nil {
		return h, err
	}
	return h, nil
}

// TrackedWritePublic mirrors TrackedWriteSecret for the public-key file.
func TrackedWritePublic(reg *cleanup.Registry, path string, pub PublicKey) (*cleanup.Handle, error) {
	h := reg.Track(path)
	if err := WritePublic(path, pub); err != nil {
		return h, err
	}
	return h, nil
}
