package entropy

import (
	"bytes"
	"testing"

	"github.com/postalsys/cryptarc/internal/primitives"
)

func TestReadFillsBuffer(t *testing.T) {
	buf := make([]byte, 64)
	if err := Read(buf); err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	var zero [64]byte
	if bytes.Equal(buf, zero[:]) {
		t.Error("Read() left the buffer all-zero (vanishingly unlikely for the OS CSPRNG)")
	}
}

func TestReadProducesDistinctOutputs(t *testing.T) {
	a := make([]byte, 32)
	b := make([]byte, 32)
	if err := Read(a); err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if err := Read(b); err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if bytes.Equal(a, b) {
		t.Error("Read() produced identical output on consecutive calls")
	}
}

func TestGenerateScalarIsClamped(t *testing.T) {
	s, err := GenerateScalar()
	if err != nil {
		t.Fatalf("GenerateScalar() error = %v", err)
	}
	if !primitives.IsClamped(s) {
		t.Error("GenerateScalar() returned an unclamped scalar")
	}
}

func TestGenerateScalarIsRandom(t *testing.T) {
	a, err := GenerateScalar()
	if err != nil {
		t.Fatalf("GenerateScalar() error = %v", err)
	}
	b, err := GenerateScalar()
	if err != nil {
		t.Fatalf("GenerateScalar() error = %v", err)
	}
	if a == b {
		t.Error("GenerateScalar() returned identical scalars on consecutive calls")
	}
}

func TestGenerateIVLength(t *testing.T) {
	iv, err := GenerateIV()
	if err != nil {
		t.Fatalf("GenerateIV() error = %v", err)
	}
	if len(iv) != primitives.IVSize {
		t.Errorf("GenerateIV() length = %d, want %d", len(iv), primitives.IVSize)
	}
}
