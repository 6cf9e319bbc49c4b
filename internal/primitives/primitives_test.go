package primitives

import (
	"bytes"
	"testing"
)

func TestClampScalarSetsInvariantBits(t *testing.T) {
	s := [ScalarSize]byte{}
	for i := range s {
		s[i] = 0xff
	}
	ClampScalar(&s)

	if s[0]&7 != 0 {
		t.Errorf("s[0] low 3 bits not cleared: %08b", s[0])
	}
	if s[31]&0x80 != 0 {
		t.Errorf("s[31] high bit not cleared: %08b", s[31])
	}
	if s[31]&0x40 != 0x40 {
		t.Errorf("s[31] bit 6 not set: %08b", s[31])
	}
}

func TestClampScalarIsIdempotent(t *testing.T) {
	s := [ScalarSize]byte{1, 2, 3}
	ClampScalar(&s)
	once := s
	ClampScalar(&s)
	if s != once {
		t.Error("ClampScalar() is not idempotent")
	}
}

func TestIsClamped(t *testing.T) {
	s := [ScalarSize]byte{}
	for i := range s {
		s[i] = 0xff
	}
	if IsClamped(s) {
		t.Error("IsClamped() true for an unclamped scalar")
	}
	ClampScalar(&s)
	if !IsClamped(s) {
		t.Error("IsClamped() false for a freshly clamped scalar")
	}
}

func TestScalarBaseMultDeterministic(t *testing.T) {
	s := [ScalarSize]byte{1, 2, 3, 4, 5}
	ClampScalar(&s)
	a := ScalarBaseMult(s)
	b := ScalarBaseMult(s)
	if a != b {
		t.Error("ScalarBaseMult() is not deterministic for the same scalar")
	}
}

func TestScalarBaseMultDiffersByScalar(t *testing.T) {
	s1 := [ScalarSize]byte{1, 2, 3, 4, 5}
	s2 := [ScalarSize]byte{5, 4, 3, 2, 1}
	ClampScalar(&s1)
	ClampScalar(&s2)
	p1 := ScalarBaseMult(s1)
	p2 := ScalarBaseMult(s2)
	if p1 == p2 {
		t.Error("ScalarBaseMult() returned the same point for different scalars")
	}
}

// TestScalarMultAgreesBothWays exercises the Diffie-Hellman property the
// envelope protocol depends on: both sides of an ephemeral-static exchange
// must land on the same shared point regardless of which side is "ours".
func TestScalarMultAgreesBothWays(t *testing.T) {
	a := [ScalarSize]byte{10, 20, 30, 40, 50, 60, 70}
	b := [ScalarSize]byte{7, 6, 5, 4, 3, 2, 1}
	ClampScalar(&a)
	ClampScalar(&b)

	aPub := ScalarBaseMult(a)
	bPub := ScalarBaseMult(b)

	sharedFromA, err := ScalarMult(a, bPub)
	if err != nil {
		t.Fatalf("ScalarMult(a, bPub) error = %v", err)
	}
	sharedFromB, err := ScalarMult(b, aPub)
	if err != nil {
		t.Fatalf("ScalarMult(b, aPub) error = %v", err)
	}
	if sharedFromA != sharedFromB {
		t.Error("ScalarMult() disagrees between the two sides of the exchange")
	}
}

// TestScalarMultRejectsLowOrderPoint covers the invalid-point rejection path:
// the all-zero u-coordinate is a low-order point whose scalar multiple is
// always zero, regardless of the scalar, and must be rejected rather than
// handed back as a degenerate shared secret.
func TestScalarMultRejectsLowOrderPoint(t *testing.T) {
	var s [ScalarSize]byte
	for i := range s {
		s[i] = byte(i + 1)
	}
	ClampScalar(&s)

	var lowOrder [ScalarSize]byte // all-zero point
	if _, err := ScalarMult(s, lowOrder); err == nil {
		t.Error("ScalarMult() with a low-order point should have been rejected")
	}
}

func TestSHA256AndHMACSHA256(t *testing.T) {
	d := SHA256([]byte("hello"))
	d2 := SHA256([]byte("hello"))
	if d != d2 {
		t.Error("SHA256() is not deterministic")
	}

	var key [32]byte
	copy(key[:], []byte("0123456789abcdef0123456789abcdef"))
	m1 := HMACSHA256(key, []byte("message"))
	m2 := HMACSHA256(key, []byte("message"))
	if m1 != m2 {
		t.Error("HMACSHA256() is not deterministic")
	}
	m3 := HMACSHA256(key, []byte("different"))
	if m1 == m3 {
		t.Error("HMACSHA256() returned the same tag for different messages")
	}
}

func TestDigestMatchesSHA256(t *testing.T) {
	d := NewDigest()
	d.Update([]byte("hel"))
	d.Update([]byte("lo"))
	if d.Final() != SHA256([]byte("hello")) {
		t.Error("incremental Digest disagrees with one-shot SHA256")
	}
}

func TestMACMatchesHMACSHA256(t *testing.T) {
	var key [32]byte
	copy(key[:], []byte("0123456789abcdef0123456789abcdef"))
	m := NewMAC(key)
	m.Update([]byte("hel"))
	m.Update([]byte("lo"))
	if m.Final() != HMACSHA256(key, []byte("hello")) {
		t.Error("incremental MAC disagrees with one-shot HMACSHA256")
	}
}

func TestChaCha20XORRoundTrip(t *testing.T) {
	var key [32]byte
	copy(key[:], []byte("0123456789abcdef0123456789abcdef"))
	var nonce [IVSize]byte
	copy(nonce[:], []byte{1, 2, 3, 4, 5, 6, 7, 8})

	plaintext := []byte("the quick brown fox jumps over the lazy dog")
	ciphertext := make([]byte, len(plaintext))
	if err := ChaCha20XOR(key, nonce, ciphertext, plaintext); err != nil {
		t.Fatalf("ChaCha20XOR() encrypt error = %v", err)
	}
	if bytes.Equal(ciphertext, plaintext) {
		t.Error("ChaCha20XOR() did not change the plaintext")
	}

	recovered := make([]byte, len(ciphertext))
	if err := ChaCha20XOR(key, nonce, recovered, ciphertext); err != nil {
		t.Fatalf("ChaCha20XOR() decrypt error = %v", err)
	}
	if !bytes.Equal(recovered, plaintext) {
		t.Error("ChaCha20XOR() did not round-trip")
	}
}

// TestChaCha20StreamMatchesXOR checks that consuming the resumable stream in
// arbitrary chunk sizes produces exactly the same keystream as one call to
// ChaCha20XOR over the whole buffer -- the property the streaming codec (C5)
// depends on to encrypt a file without buffering it whole.
func TestChaCha20StreamMatchesXOR(t *testing.T) {
	var key [32]byte
	copy(key[:], []byte("abcdefghijklmnopqrstuvwxyz012345"))
	var nonce [IVSize]byte
	copy(nonce[:], []byte{9, 9, 9, 9, 9, 9, 9, 9})

	plaintext := bytes.Repeat([]byte{0}, 200)

	whole := make([]byte, len(plaintext))
	if err := ChaCha20XOR(key, nonce, whole, plaintext); err != nil {
		t.Fatalf("ChaCha20XOR() error = %v", err)
	}

	stream, err := NewChaCha20Stream(key, nonce)
	if err != nil {
		t.Fatalf("NewChaCha20Stream() error = %v", err)
	}
	chunked := make([]byte, len(plaintext))
	chunkSizes := []int{1, 7, 64, 128}
	pos := 0
	for _, size := range chunkSizes {
		if pos+size > len(plaintext) {
			size = len(plaintext) - pos
		}
		stream.XOR(chunked[pos:pos+size], plaintext[pos:pos+size])
		pos += size
	}

	if !bytes.Equal(whole, chunked) {
		t.Error("ChaCha20Stream chunked output disagrees with ChaCha20XOR over the whole buffer")
	}
}

func TestZeroAndZeroArray(t *testing.T) {
	b := []byte{1, 2, 3, 4}
	Zero(b)
	for i, v := range b {
		if v != 0 {
			t.Errorf("Zero() left b[%d] = %d", i, v)
		}
	}

	var arr [32]byte
	for i := range arr {
		arr[i] = 0xaa
	}
	ZeroArray(&arr)
	var zero [32]byte
	if arr != zero {
		t.Error("ZeroArray() did not zero the array")
	}
}
